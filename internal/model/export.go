package model

import "time"

// SessionExport is the top-level JSON structure for the session export.
type SessionExport struct {
	ExportedAt time.Time       `json:"exported_at"`
	ExamBoard  string          `json:"exam_board,omitempty"`
	Sessions   []SessionRecord `json:"sessions"`
}

// SessionRecord holds one session with its owner for export.
type SessionRecord struct {
	UserEmail         string        `json:"user_email"`
	Username          string        `json:"username"`
	SessionNumber     int           `json:"session_number"`
	Topic             string        `json:"topic"`
	SubTopic          string        `json:"subtopic,omitempty"`
	SubCategory       string        `json:"subcategory,omitempty"`
	ExamBoard         ExamBoard     `json:"exam_board"`
	NumberOfQuestions int           `json:"number_of_questions"`
	TotalScore        float64       `json:"total_score"`
	TotalAvailable    int           `json:"total_available"`
	Status            SessionStatus `json:"status"`
	Feedback          *Feedback     `json:"feedback,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	FinalizedAt       *time.Time    `json:"finalized_at,omitempty"`
}
