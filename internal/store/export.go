package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pavelanni/biopractice/internal/model"
)

// ExportAllSessions builds export-ready records from all sessions, optionally for one board.
func (s *Store) ExportAllSessions(ctx context.Context, board model.ExamBoard) (model.SessionExport, error) {
	export := model.SessionExport{
		ExportedAt: time.Now().UTC(),
		ExamBoard:  string(board),
		Sessions:   []model.SessionRecord{},
	}

	sessions, err := s.ListAllSessions(ctx)
	if err != nil {
		return export, fmt.Errorf("list sessions: %w", err)
	}

	// Track session count per user for session_number.
	userSessionCount := make(map[int64]int)
	users := make(map[int64]*model.User)
	subtopics := make(map[int64]string)
	subcategories := make(map[int64]string)

	for _, sess := range sessions {
		userSessionCount[sess.UserID]++
		if board != "" && sess.ExamBoard != board {
			continue
		}

		user, ok := users[sess.UserID]
		if !ok {
			user, err = s.GetUserByID(ctx, sess.UserID)
			if err != nil {
				return export, fmt.Errorf("get user %d: %w", sess.UserID, err)
			}
			users[sess.UserID] = user
		}

		rec := model.SessionRecord{
			SessionNumber:     userSessionCount[sess.UserID],
			Topic:             sess.TopicName,
			ExamBoard:         sess.ExamBoard,
			NumberOfQuestions: sess.NumberOfQuestions,
			TotalScore:        sess.TotalScore,
			TotalAvailable:    sess.TotalAvailable,
			Status:            sess.Status,
			Feedback:          sess.Feedback,
			CreatedAt:         sess.CreatedAt,
			FinalizedAt:       sess.FinalizedAt,
		}
		if user != nil {
			rec.UserEmail = user.Email
			rec.Username = user.Username
		}
		if sess.SubTopicID != nil {
			title, ok := subtopics[*sess.SubTopicID]
			if !ok {
				st, err := s.GetSubTopic(ctx, *sess.SubTopicID)
				if err != nil {
					return export, fmt.Errorf("get subtopic %d: %w", *sess.SubTopicID, err)
				}
				title = st.Title
				subtopics[st.ID] = title
			}
			rec.SubTopic = title
		}
		if sess.SubCategoryID != nil {
			title, ok := subcategories[*sess.SubCategoryID]
			if !ok {
				sc, err := s.GetSubCategory(ctx, *sess.SubCategoryID)
				if err != nil {
					return export, fmt.Errorf("get subcategory %d: %w", *sess.SubCategoryID, err)
				}
				title = sc.Title
				subcategories[sc.ID] = title
			}
			rec.SubCategory = title
		}
		export.Sessions = append(export.Sessions, rec)
	}

	return export, nil
}
