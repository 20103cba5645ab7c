package exam

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/biopractice/internal/model"
)

// MarkRequest is a single answer to be marked.
type MarkRequest struct {
	Question   string   `json:"question"`
	MarkScheme []string `json:"mark_scheme"`
	UserAnswer string   `json:"user_answer"`
	ExamBoard  string   `json:"exam_board"`
}

// MarkAnswer relays one answer to the marker.
func (s *Service) MarkAnswer(ctx context.Context, req MarkRequest) (model.MarkResult, error) {
	if strings.TrimSpace(req.Question) == "" || len(req.MarkScheme) == 0 || strings.TrimSpace(req.UserAnswer) == "" {
		return model.MarkResult{}, model.Validation(model.ErrMissingFields)
	}
	board, err := model.ParseExamBoard(req.ExamBoard)
	if err != nil {
		return model.MarkResult{}, err
	}

	res, err := s.marker.Mark(ctx, req.Question, req.MarkScheme, req.UserAnswer, board)
	if err != nil {
		return model.MarkResult{}, fmt.Errorf("mark answer: %w", err)
	}
	slog.Debug("marked answer", "exam_board", board, "score", res.Score, "out_of", res.OutOf)
	return res, nil
}
