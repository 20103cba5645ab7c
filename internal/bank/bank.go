// Package bank loads the per-board fallback question files.
package bank

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pavelanni/biopractice/internal/model"

	"go.yaml.in/yaml/v3"
)

// Bank reads fallback questions from a directory holding one file per exam board.
type Bank struct {
	dir string
}

// New returns a Bank rooted at dir. An empty dir yields a bank with no questions.
func New(dir string) *Bank {
	return &Bank{dir: dir}
}

// candidates lists file names tried for a board, in order.
func candidates(board model.ExamBoard) []string {
	var names []string
	for _, base := range []string{string(board), strings.ToLower(string(board))} {
		for _, ext := range []string{".json", ".yaml", ".yml"} {
			names = append(names, base+ext)
		}
	}
	return names
}

// Load returns the scope-name to questions mapping for board.
// A missing file is an empty mapping. A malformed file, or one holding a question
// without text or with negative marks, is a data-corrupt error.
func (b *Bank) Load(board model.ExamBoard) (map[string][]model.Question, error) {
	board, err := model.ParseExamBoard(string(board))
	if err != nil {
		return nil, err
	}
	if b.dir == "" {
		return map[string][]model.Question{}, nil
	}

	for _, name := range candidates(board) {
		path := filepath.Join(b.dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read fallback %s: %w", path, err)
		}

		bank := map[string][]model.Question{}
		if filepath.Ext(name) == ".json" {
			err = json.Unmarshal(data, &bank)
		} else {
			err = yaml.Unmarshal(data, &bank)
		}
		if err != nil {
			slog.Error("fallback file is malformed", "path", path, "error", err)
			return nil, model.DataCorrupt(fmt.Errorf("%w: %s: %v", model.ErrFallbackCorrupt, path, err))
		}
		for scope, qs := range bank {
			for i, q := range qs {
				if err := q.Validate(); err != nil {
					slog.Error("fallback question is invalid", "path", path, "scope", scope, "index", i, "error", err)
					return nil, model.DataCorrupt(fmt.Errorf("%w: %s: %s[%d]: %v", model.ErrFallbackCorrupt, path, scope, i, err))
				}
			}
		}
		slog.Debug("loaded fallback bank", "path", path, "scopes", len(bank))
		return bank, nil
	}

	slog.Debug("no fallback file for board", "board", board, "dir", b.dir)
	return map[string][]model.Question{}, nil
}

// Lookup returns the pool for the most specific scope name present in bank:
// subcategory, then subtopic, then topic. Empty names are skipped.
func Lookup(bank map[string][]model.Question, subcategory, subtopic, topic string) []model.Question {
	for _, key := range []string{subcategory, subtopic, topic} {
		if key == "" {
			continue
		}
		if qs, ok := bank[key]; ok {
			return qs
		}
	}
	return nil
}
