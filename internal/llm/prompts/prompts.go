package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/biopractice/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	studentAnswerRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

const maxAnswerRunes = 10000

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[string]*template.Template
)

// GenerateData holds template data for question generation prompts.
type GenerateData struct {
	Scope     string
	ExamBoard model.ExamBoard
	Count     int
}

// MarkData holds template data for marking prompts.
type MarkData struct {
	Question   string
	MarkScheme []string
	Answer     string
	ExamBoard  model.ExamBoard
}

// load parses the embedded templates once.
func load() error {
	loadOnce.Do(func() {
		templates = make(map[string]*template.Template)
		for _, name := range []string{"generate", "mark", "feedback"} {
			file := "templates/" + name + ".tmpl"
			content, err := templateFS.ReadFile(file)
			if err != nil {
				loadErr = errors.New("failed to read prompt file " + file + ": " + err.Error())
				return
			}
			tmpl, err := template.New(name).Parse(string(content))
			if err != nil {
				loadErr = errors.New("failed to parse prompt template " + file + ": " + err.Error())
				return
			}
			templates[name] = tmpl
		}
	})
	return loadErr
}

func execute(name string, data any) (string, error) {
	if err := load(); err != nil {
		return "", fmt.Errorf("templates load failed: %w", err)
	}
	var buf bytes.Buffer
	if err := templates[name].Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildGeneratePrompt builds the question generation prompt for scope.
func BuildGeneratePrompt(scope string, board model.ExamBoard, count int) (string, error) {
	return execute("generate", GenerateData{Scope: scope, ExamBoard: board, Count: count})
}

// BuildMarkPrompt builds the marking prompt. Each mark scheme point is
// suffixed with "(1 mark)" and the answer is sanitized.
func BuildMarkPrompt(question string, markScheme []string, answer string, board model.ExamBoard) (string, error) {
	points := make([]string, len(markScheme))
	for i, p := range markScheme {
		points[i] = p + " (1 mark)"
	}
	return execute("mark", MarkData{
		Question:   question,
		MarkScheme: points,
		Answer:     SanitizeAnswer(answer),
		ExamBoard:  board,
	})
}

// BuildFeedbackPrompt returns the system prompt for holistic session feedback.
func BuildFeedbackPrompt() (string, error) {
	return execute("feedback", nil)
}

// SanitizeAnswer strips prompt delimiter tags from a student answer and caps its length.
func SanitizeAnswer(answer string) string {
	answer = studentAnswerRegex.ReplaceAllString(answer, "")
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)
		runes = runes[:maxAnswerRunes]
		answer = string(runes) + "\n\n[Answer truncated due to length]"
	}

	return answer
}
