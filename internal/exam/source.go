package exam

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/biopractice/internal/bank"
	"github.com/pavelanni/biopractice/internal/metrics"
	"github.com/pavelanni/biopractice/internal/model"
)

// CreateSessionRequest asks for a set of questions on a scope.
type CreateSessionRequest struct {
	TopicID           int64  `json:"topic_id"`
	ExamBoard         string `json:"exam_board"`
	NumberOfQuestions int    `json:"number_of_questions"`
	SubTopicID        *int64 `json:"subtopic_id,omitempty"`
	SubCategoryID     *int64 `json:"subcategory_id,omitempty"`
}

// CreateSessionResult is the question set handed to the client and its ledger entry.
type CreateSessionResult struct {
	Questions []model.Question `json:"questions"`
	SessionID int64            `json:"session_id"`
}

// scope is a validated request.
type scope struct {
	board       model.ExamBoard
	topic       model.Topic
	subtopic    *model.SubTopic
	subcategory *model.SubCategory
}

// String renders the scope for the generator prompt.
func (sc scope) String() string {
	var sb strings.Builder
	sb.WriteString(sc.topic.Name)
	if sc.subtopic != nil {
		sb.WriteString(" (SubTopic: " + sc.subtopic.Title + ")")
	}
	if sc.subcategory != nil {
		sb.WriteString(" (SubCategory: " + sc.subcategory.Title + ")")
	}
	return sb.String()
}

// validate checks the request in order and stops at the first failure.
func (s *Service) validate(ctx context.Context, req CreateSessionRequest) (scope, error) {
	var sc scope
	if req.TopicID == 0 || strings.TrimSpace(req.ExamBoard) == "" {
		return sc, model.Validation(model.ErrMissingFields)
	}
	if req.NumberOfQuestions < 1 {
		return sc, model.Validation(model.ErrInvalidCount)
	}
	if s.maxQuestions > 0 && req.NumberOfQuestions > s.maxQuestions {
		return sc, model.Validation(fmt.Errorf("%w (%d)", model.ErrTooManyQuestions, s.maxQuestions))
	}

	board, err := model.ParseExamBoard(req.ExamBoard)
	if err != nil {
		return sc, err
	}
	sc.board = board

	topic, err := s.store.GetTopic(ctx, req.TopicID)
	if err != nil {
		return sc, err
	}
	if topic.ExamBoard != board {
		return sc, model.Validation(model.ErrTopicBoardMismatch)
	}
	sc.topic = topic

	if req.SubTopicID != nil {
		st, err := s.store.GetSubTopic(ctx, *req.SubTopicID)
		if err != nil {
			return sc, err
		}
		if st.TopicID != topic.ID {
			return sc, model.Validation(model.ErrSubTopicMismatch)
		}
		sc.subtopic = &st
	}

	if req.SubCategoryID != nil {
		if sc.subtopic == nil {
			return sc, model.Validation(model.ErrSubCategoryNeedsSub)
		}
		cat, err := s.store.GetSubCategory(ctx, *req.SubCategoryID)
		if err != nil {
			return sc, err
		}
		if cat.SubTopicID != sc.subtopic.ID {
			return sc, model.Validation(model.ErrSubCategoryMismatch)
		}
		sc.subcategory = &cat
	}

	return sc, nil
}

// split returns how many questions to take from the fallback pool and how many to generate.
func split(requested, poolSize int) (fallback, generated int) {
	if poolSize == 0 {
		return 0, requested
	}
	fallback = requested / 2
	generated = requested - fallback
	if poolSize < fallback {
		fallback = poolSize
	}
	return fallback, generated
}

// sample picks n distinct questions from pool uniformly at random.
func sample(rnd Rand, pool []model.Question, n int) []model.Question {
	picked := make([]model.Question, 0, n)
	for _, i := range rnd.Perm(len(pool))[:n] {
		picked = append(picked, pool[i])
	}
	return picked
}

// CreateSession sources questions for req, mixing fallback and generated ones,
// and records a new open session owned by userID. No session is written if
// validation or sourcing fails.
func (s *Service) CreateSession(ctx context.Context, userID int64, req CreateSessionRequest) (CreateSessionResult, error) {
	sc, err := s.validate(ctx, req)
	if err != nil {
		return CreateSessionResult{}, err
	}

	mapping, err := s.bank.Load(sc.board)
	if err != nil {
		return CreateSessionResult{}, fmt.Errorf("load fallback bank: %w", err)
	}
	var subtopic, subcategory string
	if sc.subtopic != nil {
		subtopic = sc.subtopic.Title
	}
	if sc.subcategory != nil {
		subcategory = sc.subcategory.Title
	}
	pool := bank.Lookup(mapping, subcategory, subtopic, sc.topic.Name)

	fallbackTarget, generatedTarget := split(req.NumberOfQuestions, len(pool))
	fallback := sample(s.rnd, pool, fallbackTarget)

	var generated []model.Question
	if generatedTarget > 0 {
		generated, err = s.generator.Generate(ctx, sc.String(), sc.board, generatedTarget)
		if err != nil {
			return CreateSessionResult{}, fmt.Errorf("generate questions: %w", err)
		}
		if len(generated) > generatedTarget {
			generated = generated[:generatedTarget]
		}
		for _, q := range generated {
			if err := q.Validate(); err != nil {
				return CreateSessionResult{}, model.External(fmt.Errorf("%w: %v", model.ErrGeneratorResponse, err))
			}
		}
	}

	questions := make([]model.Question, 0, len(generated)+len(fallback))
	questions = append(questions, generated...)
	questions = append(questions, fallback...)
	s.rnd.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})

	sess := model.QuestionSession{
		UserID:            userID,
		TopicID:           sc.topic.ID,
		ExamBoard:         sc.board,
		NumberOfQuestions: req.NumberOfQuestions,
		TotalAvailable:    model.TotalMarks(questions),
	}
	if sc.subtopic != nil {
		sess.SubTopicID = &sc.subtopic.ID
	}
	if sc.subcategory != nil {
		sess.SubCategoryID = &sc.subcategory.ID
	}
	id, err := s.store.CreateSession(ctx, sess)
	if err != nil {
		return CreateSessionResult{}, fmt.Errorf("create session: %w", err)
	}

	metrics.QuestionsSourced.WithLabelValues("fallback", string(sc.board)).Add(float64(len(fallback)))
	metrics.QuestionsSourced.WithLabelValues("generated", string(sc.board)).Add(float64(len(generated)))
	metrics.SessionEvents.WithLabelValues("created").Inc()
	slog.Info("created session",
		"session_id", id,
		"user_id", userID,
		"topic_id", sc.topic.ID,
		"scope", sc.String(),
		"requested", req.NumberOfQuestions,
		"fallback", len(fallback),
		"generated", len(generated),
		"total_available", sess.TotalAvailable,
	)

	return CreateSessionResult{Questions: questions, SessionID: id}, nil
}
