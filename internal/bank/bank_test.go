package bank

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pavelanni/biopractice/internal/model"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "OCR.json", `{
		"Cell Structure": [
			{"question": "Q1", "total_marks": 3, "mark_scheme": ["a", "b", "c"]},
			{"question": "Q2", "mark": 2, "mark_scheme": ["a", "b"]},
			{"question": "Q3", "mark_scheme": []}
		]
	}`)

	got, err := New(dir).Load(model.BoardOCR)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	qs := got["Cell Structure"]
	if len(qs) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(qs))
	}
	if total := model.TotalMarks(qs); total != 5 {
		t.Errorf("expected 5 marks, got %d", total)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "aqa.yaml", `
Genetics:
  - question: What is an allele?
    total_marks: 2
    mark_scheme:
      - a version of a gene
      - at the same locus
`)

	got, err := New(dir).Load("aqa")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	qs := got["Genetics"]
	if len(qs) != 1 || qs[0].Marks() != 2 || len(qs[0].MarkScheme) != 2 {
		t.Errorf("unexpected questions: %+v", qs)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		content  string
		board    model.ExamBoard
		wantKind model.Kind
		wantErr  error
	}{
		{"unsupported board", "OCR.json", `{}`, "EDEXCEL", model.KindValidation, model.ErrUnsupportedBoard},
		{"malformed file", "OCR.json", `{"Cell Structure": [`, model.BoardOCR, model.KindDataCorrupt, model.ErrFallbackCorrupt},
		{
			name:     "negative total_marks",
			file:     "OCR.json",
			content:  `{"Cell Structure": [{"question": "Q1", "total_marks": -2, "mark_scheme": []}]}`,
			board:    model.BoardOCR,
			wantKind: model.KindDataCorrupt,
			wantErr:  model.ErrFallbackCorrupt,
		},
		{
			name:     "negative mark",
			file:     "AQA.yaml",
			content:  "Genetics:\n  - question: What is an allele?\n    mark: -1\n",
			board:    model.BoardAQA,
			wantKind: model.KindDataCorrupt,
			wantErr:  model.ErrFallbackCorrupt,
		},
		{
			name:     "empty question",
			file:     "OCR.json",
			content:  `{"Cell Structure": [{"question": "  ", "total_marks": 1}]}`,
			board:    model.BoardOCR,
			wantKind: model.KindDataCorrupt,
			wantErr:  model.ErrFallbackCorrupt,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, tt.file, tt.content)
			_, err := New(dir).Load(tt.board)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if model.KindOf(err) != tt.wantKind {
				t.Errorf("expected kind %q, got %q", tt.wantKind, model.KindOf(err))
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	for _, dir := range []string{"", t.TempDir()} {
		got, err := New(dir).Load(model.BoardAQA)
		if err != nil {
			t.Fatalf("Load(%q): %v", dir, err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("expected empty mapping, got %v", got)
		}
	}
}

func TestLookup(t *testing.T) {
	q := func(text string) []model.Question { return []model.Question{{Question: text}} }
	bank := map[string][]model.Question{
		"Cell Structure": q("topic"),
		"Microscopy":     q("subtopic"),
		"Staining":       q("subcategory"),
	}

	tests := []struct {
		name        string
		subcategory string
		subtopic    string
		topic       string
		want        string
	}{
		{"subcategory wins", "Staining", "Microscopy", "Cell Structure", "subcategory"},
		{"subtopic when subcategory missing", "Unknown", "Microscopy", "Cell Structure", "subtopic"},
		{"topic only", "", "", "Cell Structure", "topic"},
		{"falls through to topic", "", "Other", "Cell Structure", "topic"},
		{"nothing matches", "", "", "Genetics", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Lookup(bank, tt.subcategory, tt.subtopic, tt.topic)
			if tt.want == "" {
				if len(got) != 0 {
					t.Errorf("expected empty pool, got %+v", got)
				}
				return
			}
			if len(got) != 1 || got[0].Question != tt.want {
				t.Errorf("expected %q, got %+v", tt.want, got)
			}
		})
	}
}
