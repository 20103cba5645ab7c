// Package exam sources questions for practice sessions, records them in the
// session ledger and relays marking to the language model.
package exam

import (
	"context"
	"math/rand/v2"

	"github.com/pavelanni/biopractice/internal/model"
)

// Store is the relational store the service reads topics from and writes sessions to.
type Store interface {
	GetTopic(ctx context.Context, id int64) (model.Topic, error)
	GetSubTopic(ctx context.Context, id int64) (model.SubTopic, error)
	GetSubCategory(ctx context.Context, id int64) (model.SubCategory, error)
	ListTopics(ctx context.Context, board model.ExamBoard) ([]model.Topic, error)
	ListSubTopics(ctx context.Context, topicID int64, board model.ExamBoard) ([]model.SubTopic, error)
	ListSubCategories(ctx context.Context, subtopicID int64, board model.ExamBoard) ([]model.SubCategory, error)

	CreateSession(ctx context.Context, sess model.QuestionSession) (int64, error)
	GetSession(ctx context.Context, userID, id int64) (model.QuestionSession, error)
	ListSessions(ctx context.Context, userID int64) ([]model.QuestionSession, error)
	FinalizeSession(ctx context.Context, userID, id int64, score float64, fb model.Feedback) error
}

// QuestionBank loads the fallback questions for a board.
type QuestionBank interface {
	Load(board model.ExamBoard) (map[string][]model.Question, error)
}

// Generator produces new questions for a scope.
type Generator interface {
	Generate(ctx context.Context, scope string, board model.ExamBoard, count int) ([]model.Question, error)
}

// Marker marks one answer against its mark scheme.
type Marker interface {
	Mark(ctx context.Context, question string, markScheme []string, answer string, board model.ExamBoard) (model.MarkResult, error)
}

// FeedbackWriter turns a narrative of a finished session into strengths and improvements.
type FeedbackWriter interface {
	Summarize(ctx context.Context, narrative string) (model.Feedback, error)
}

// Rand is the randomness used for sampling and shuffling.
type Rand interface {
	Perm(n int) []int
	Shuffle(n int, swap func(i, j int))
}

// globalRand uses the auto-seeded, goroutine-safe top-level functions of math/rand/v2.
type globalRand struct{}

func (globalRand) Perm(n int) []int                  { return rand.Perm(n) }
func (globalRand) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

// Service implements the practice session workflow.
type Service struct {
	store        Store
	bank         QuestionBank
	generator    Generator
	marker       Marker
	feedback     FeedbackWriter
	rnd          Rand
	maxQuestions int
}

// Option configures a Service.
type Option func(*Service)

// WithRand replaces the random source.
func WithRand(r Rand) Option {
	return func(s *Service) { s.rnd = r }
}

// WithMaxQuestions caps the number of questions per session. Zero means no cap.
func WithMaxQuestions(n int) Option {
	return func(s *Service) { s.maxQuestions = n }
}

// New creates a Service.
func New(st Store, qb QuestionBank, gen Generator, marker Marker, fw FeedbackWriter, opts ...Option) *Service {
	s := &Service{
		store:     st,
		bank:      qb,
		generator: gen,
		marker:    marker,
		feedback:  fw,
		rnd:       globalRand{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
