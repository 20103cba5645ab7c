package exam

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pavelanni/biopractice/internal/metrics"
	"github.com/pavelanni/biopractice/internal/model"
)

// FinalizeRequest submits the externally scored answers of a session.
type FinalizeRequest struct {
	SessionID int64                `json:"session_id"`
	Answers   []model.AnswerResult `json:"answers"`
}

// FinalizeResult is the aggregate outcome of a finalized session.
type FinalizeResult struct {
	Score    float64        `json:"score"`
	OutOf    int            `json:"out_of"`
	Feedback model.Feedback `json:"feedback"`
}

// FinalizeSession sums the answer scores, asks for holistic feedback and
// records both on the caller's session. A session is finalized only once.
func (s *Service) FinalizeSession(ctx context.Context, userID int64, req FinalizeRequest) (FinalizeResult, error) {
	if req.SessionID == 0 || len(req.Answers) == 0 {
		return FinalizeResult{}, model.Validation(model.ErrMissingFields)
	}
	var total float64
	for _, a := range req.Answers {
		if a.Score == nil {
			return FinalizeResult{}, model.Validation(model.ErrMissingFields)
		}
		if *a.Score < 0 {
			return FinalizeResult{}, model.Validation(model.ErrNegativeScore)
		}
		total += *a.Score
	}

	sess, err := s.store.GetSession(ctx, userID, req.SessionID)
	if err != nil {
		return FinalizeResult{}, err
	}
	if sess.Status == model.StatusFinalized {
		return FinalizeResult{}, model.Conflict(model.ErrSessionFinalized)
	}
	if total > float64(sess.TotalAvailable) {
		slog.Warn("submitted score exceeds marks available",
			"session_id", sess.ID, "score", total, "total_available", sess.TotalAvailable)
	}

	fb, err := s.feedback.Summarize(ctx, narrative(req.Answers))
	if err != nil {
		return FinalizeResult{}, fmt.Errorf("session feedback: %w", err)
	}

	if err := s.store.FinalizeSession(ctx, userID, sess.ID, total, fb); err != nil {
		return FinalizeResult{}, err
	}
	metrics.SessionEvents.WithLabelValues("finalized").Inc()
	slog.Info("finalized session", "session_id", sess.ID, "user_id", userID,
		"score", total, "total_available", sess.TotalAvailable, "answers", len(req.Answers))

	return FinalizeResult{Score: total, OutOf: sess.TotalAvailable, Feedback: fb}, nil
}

// narrative renders the answers for the feedback writer.
func narrative(answers []model.AnswerResult) string {
	var sb strings.Builder
	sb.WriteString("Give strengths and weaknesses based on these answers:\n")
	for _, a := range answers {
		score := strconv.FormatFloat(*a.Score, 'f', -1, 64)
		if a.OutOf != nil {
			score += "/" + strconv.Itoa(*a.OutOf)
		}
		fmt.Fprintf(&sb, "\nQuestion: %s\nAnswer: %s\nScore: %s\n", a.Question, a.UserAnswer, score)
	}
	return sb.String()
}

// ListSessions returns the caller's sessions, newest first.
func (s *Service) ListSessions(ctx context.Context, userID int64) ([]model.QuestionSession, error) {
	return s.store.ListSessions(ctx, userID)
}

// GetSession returns one of the caller's sessions.
func (s *Service) GetSession(ctx context.Context, userID, id int64) (model.QuestionSession, error) {
	return s.store.GetSession(ctx, userID, id)
}
