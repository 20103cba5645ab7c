package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavelanni/biopractice/internal/model"
)

const sessionColumns = `qs.id, qs.user_id, qs.topic_id, t.name, qs.subtopic_id, qs.subcategory_id,
	qs.exam_board, qs.number_of_questions, qs.total_score, qs.total_available,
	qs.status, qs.feedback, qs.created_at, qs.finalized_at`

// CreateSession stores a new open session with a zero score and returns its ID.
func (s *Store) CreateSession(ctx context.Context, sess model.QuestionSession) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO question_sessions
		 (user_id, topic_id, subtopic_id, subcategory_id, exam_board, number_of_questions,
		  total_score, total_available, status, feedback, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, '', $9)
		 RETURNING id`,
		sess.UserID, sess.TopicID, sess.SubTopicID, sess.SubCategoryID, sess.ExamBoard,
		sess.NumberOfQuestions, sess.TotalAvailable, model.StatusOpen, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

// GetSession returns a session owned by userID. Sessions owned by someone else are reported as not found.
func (s *Store) GetSession(ctx context.Context, userID, id int64) (model.QuestionSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM question_sessions qs
		 JOIN topics t ON t.id = qs.topic_id
		 WHERE qs.id = $1 AND qs.user_id = $2`, id, userID)
	sess, err := scanSession(row)
	return sess, notFound(err, model.ErrSessionNotFound)
}

// ListSessions returns userID's sessions, newest first.
func (s *Store) ListSessions(ctx context.Context, userID int64) ([]model.QuestionSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM question_sessions qs
		 JOIN topics t ON t.id = qs.topic_id
		 WHERE qs.user_id = $1
		 ORDER BY qs.created_at DESC, qs.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	sessions := []model.QuestionSession{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// FinalizeSession records the score and feedback on an open session owned by userID.
// The transition from open to finalized happens at most once; a second call fails
// with a conflict and leaves the first result in place.
func (s *Store) FinalizeSession(ctx context.Context, userID, id int64, score float64, fb model.Feedback) error {
	fb.Version = model.FeedbackVersion
	data, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("marshal feedback: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE question_sessions
		 SET total_score = $1, feedback = $2, status = $3, finalized_at = $4
		 WHERE id = $5 AND user_id = $6 AND status = $7`,
		score, string(data), model.StatusFinalized, time.Now().UTC(), id, userID, model.StatusOpen,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	// Nothing updated: either the session is not ours or it was already finalized.
	sess, err := s.GetSession(ctx, userID, id)
	if err != nil {
		return err
	}
	if sess.Status == model.StatusFinalized {
		return model.Conflict(model.ErrSessionFinalized)
	}
	return fmt.Errorf("finalize session %d: no rows updated", id)
}

// ListAllSessions returns every session, oldest first, for export.
func (s *Store) ListAllSessions(ctx context.Context) ([]model.QuestionSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM question_sessions qs
		 JOIN topics t ON t.id = qs.topic_id
		 ORDER BY qs.created_at, qs.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []model.QuestionSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (model.QuestionSession, error) {
	var (
		sess        model.QuestionSession
		subtopic    sql.NullInt64
		subcategory sql.NullInt64
		feedback    string
		finalizedAt sql.NullTime
	)
	err := sc.Scan(&sess.ID, &sess.UserID, &sess.TopicID, &sess.TopicName, &subtopic, &subcategory,
		&sess.ExamBoard, &sess.NumberOfQuestions, &sess.TotalScore, &sess.TotalAvailable,
		&sess.Status, &feedback, &sess.CreatedAt, &finalizedAt)
	if err != nil {
		return sess, err
	}
	if subtopic.Valid {
		sess.SubTopicID = &subtopic.Int64
	}
	if subcategory.Valid {
		sess.SubCategoryID = &subcategory.Int64
	}
	if finalizedAt.Valid {
		sess.FinalizedAt = &finalizedAt.Time
	}
	if feedback != "" {
		fb, err := decodeFeedback(feedback)
		if err != nil {
			return sess, model.DataCorrupt(fmt.Errorf("session %d feedback: %w", sess.ID, err))
		}
		sess.Feedback = fb
	}
	return sess, nil
}

// decodeFeedback reads stored feedback. Rows written before versioning hold
// the bare {strengths, improvements[, raw]} object and decode as version 0.
func decodeFeedback(s string) (*model.Feedback, error) {
	var fb model.Feedback
	if err := json.Unmarshal([]byte(s), &fb); err != nil {
		return nil, err
	}
	if fb.Strengths == nil {
		fb.Strengths = []string{}
	}
	if fb.Improvements == nil {
		fb.Improvements = []string{}
	}
	return &fb, nil
}
