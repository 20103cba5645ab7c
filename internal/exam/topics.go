package exam

import (
	"context"

	"github.com/pavelanni/biopractice/internal/model"
)

// parseOptionalBoard accepts an empty board as "all boards".
func parseOptionalBoard(s string) (model.ExamBoard, error) {
	if s == "" {
		return "", nil
	}
	return model.ParseExamBoard(s)
}

// ListTopics returns topics, optionally for one board.
func (s *Service) ListTopics(ctx context.Context, board string) ([]model.Topic, error) {
	b, err := parseOptionalBoard(board)
	if err != nil {
		return nil, err
	}
	return s.store.ListTopics(ctx, b)
}

// ListSubTopics returns subtopics, optionally for one topic and/or board.
func (s *Service) ListSubTopics(ctx context.Context, topicID int64, board string) ([]model.SubTopic, error) {
	b, err := parseOptionalBoard(board)
	if err != nil {
		return nil, err
	}
	return s.store.ListSubTopics(ctx, topicID, b)
}

// ListSubCategories returns subcategories, optionally for one subtopic and/or board.
func (s *Service) ListSubCategories(ctx context.Context, subtopicID int64, board string) ([]model.SubCategory, error) {
	b, err := parseOptionalBoard(board)
	if err != nil {
		return nil, err
	}
	return s.store.ListSubCategories(ctx, subtopicID, b)
}
