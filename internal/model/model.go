package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ExamBoard is the awarding body a topic and its questions are scoped to.
type ExamBoard string

const (
	// BoardOCR is the OCR exam board.
	BoardOCR ExamBoard = "OCR"
	// BoardAQA is the AQA exam board.
	BoardAQA ExamBoard = "AQA"
)

// ExamBoards lists the supported boards in display order.
var ExamBoards = []ExamBoard{BoardOCR, BoardAQA}

// ParseExamBoard normalizes a board code. Unknown codes are rejected, never defaulted.
func ParseExamBoard(s string) (ExamBoard, error) {
	b := ExamBoard(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range ExamBoards {
		if b == known {
			return b, nil
		}
	}
	return "", Validation(fmt.Errorf("%w: %q", ErrUnsupportedBoard, s))
}

// User is an account known to the identity provider.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"-"`
	CreatedAt    time.Time `json:"-"`
}

type userIDCtxKey struct{}

// ContextWithUserID stores the authenticated user ID in the request context.
func ContextWithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, userIDCtxKey{}, id)
}

// UserIDFromContext retrieves the authenticated user ID from context, or 0.
func UserIDFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(userIDCtxKey{}).(int64)
	return id
}

// Topic is the root of the topic hierarchy, unique per (name, board).
type Topic struct {
	ID        int64     `json:"id"`
	Name      string    `json:"topic"`
	ExamBoard ExamBoard `json:"exam_board"`
}

// SubTopic narrows a Topic.
type SubTopic struct {
	ID      int64  `json:"id"`
	TopicID int64  `json:"topic_id"`
	Title   string `json:"title"`
}

// SubCategory narrows a SubTopic.
type SubCategory struct {
	ID         int64  `json:"id"`
	SubTopicID int64  `json:"subtopic_id"`
	Title      string `json:"title"`
}

// SessionStatus tracks whether a session has been finalized.
type SessionStatus string

const (
	StatusOpen      SessionStatus = "open"
	StatusFinalized SessionStatus = "finalized"
)

// QuestionSession is one user's request for a set of questions and its eventual score.
type QuestionSession struct {
	ID                int64         `json:"id"`
	UserID            int64         `json:"-"`
	TopicID           int64         `json:"topic_id"`
	TopicName         string        `json:"topic"`
	SubTopicID        *int64        `json:"subtopic_id,omitempty"`
	SubCategoryID     *int64        `json:"subcategory_id,omitempty"`
	ExamBoard         ExamBoard     `json:"exam_board"`
	NumberOfQuestions int           `json:"number_of_questions"`
	TotalScore        float64       `json:"total_score"`
	TotalAvailable    int           `json:"total_available"`
	Status            SessionStatus `json:"status"`
	Feedback          *Feedback     `json:"feedback,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	FinalizedAt       *time.Time    `json:"finalized_at,omitempty"`
}

// Question is an exam question from the generator or the fallback bank. It is never persisted.
// TotalMarks is authoritative; Mark is accepted from older fallback files.
type Question struct {
	Question   string   `json:"question" yaml:"question"`
	TotalMarks *int     `json:"total_marks,omitempty" yaml:"total_marks,omitempty"`
	Mark       *int     `json:"mark,omitempty" yaml:"mark,omitempty"`
	MarkScheme []string `json:"mark_scheme" yaml:"mark_scheme"`
}

// Marks returns the question's mark value: total_marks, else mark, else 0.
func (q Question) Marks() int {
	switch {
	case q.TotalMarks != nil:
		return *q.TotalMarks
	case q.Mark != nil:
		return *q.Mark
	default:
		return 0
	}
}

// Validate reports an empty question text or a negative mark value.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return errors.New("question text is empty")
	}
	if (q.TotalMarks != nil && *q.TotalMarks < 0) || (q.Mark != nil && *q.Mark < 0) {
		return fmt.Errorf("question %q has negative marks", q.Question)
	}
	return nil
}

// TotalMarks sums the mark value of every question.
func TotalMarks(qs []Question) int {
	total := 0
	for _, q := range qs {
		total += q.Marks()
	}
	return total
}

// MarkResult is the marker's verdict on a single answer.
type MarkResult struct {
	Score    float64 `json:"score"`
	OutOf    int     `json:"out_of"`
	Feedback string  `json:"feedback"`
}

// FeedbackVersion is the schema version written with persisted feedback.
const FeedbackVersion = 1

// Feedback is the holistic strengths/improvements summary for a finalized session.
// Raw holds the unparsed reply when the model did not return the expected structure.
type Feedback struct {
	Version      int      `json:"version"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
	Raw          string   `json:"raw,omitempty"`
}

// AnswerResult is one submitted answer with its externally assigned score.
type AnswerResult struct {
	Question   string   `json:"question"`
	UserAnswer string   `json:"user_answer"`
	MarkScheme []string `json:"mark_scheme,omitempty"`
	Score      *float64 `json:"score"`
	OutOf      *int     `json:"out_of,omitempty"`
}

// AppConfig holds runtime parameters set via CLI flags.
type AppConfig struct {
	FallbackDir  string   // directory holding <BOARD>.json / .yaml fallback banks
	CORSOrigins  []string // allowed browser origins for the API
	DefaultLang  string   // language for error messages when the client sends none
	MaxQuestions int      // upper bound on number_of_questions per request
}
