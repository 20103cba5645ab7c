package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pavelanni/biopractice/internal/model"
	"github.com/pavelanni/biopractice/internal/store"
)

// topicImport is one topic with its subtopics in a hierarchy file.
type topicImport struct {
	Name      string           `json:"name" yaml:"name"`
	ExamBoard string           `json:"exam_board" yaml:"exam_board"`
	SubTopics []subtopicImport `json:"subtopics" yaml:"subtopics"`
}

type subtopicImport struct {
	Title         string   `json:"title" yaml:"title"`
	SubCategories []string `json:"subcategories" yaml:"subcategories"`
}

func topicsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "Manage the topic hierarchy",
	}
	imp := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import topics, subtopics and subcategories from JSON or YAML files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runTopicsImport,
	}
	addStoreFlags(imp)
	imp.Flags().Bool("force", false, "Re-import files even if they have not changed")

	del := &cobra.Command{
		Use:   "delete",
		Short: "Delete a topic or subtopic with everything beneath it",
		RunE:  runTopicsDelete,
	}
	addStoreFlags(del)
	del.Flags().Int64("topic-id", 0, "ID of the topic to delete")
	del.Flags().Int64("subtopic-id", 0, "ID of the subtopic to delete")
	del.MarkFlagsOneRequired("topic-id", "subtopic-id")
	del.MarkFlagsMutuallyExclusive("topic-id", "subtopic-id")

	cmd.AddCommand(imp, del)
	return cmd
}

func runTopicsImport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := context.Background()

	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, path := range args {
		if err := importTopicsFile(ctx, db, path, v.GetBool("force")); err != nil {
			return err
		}
	}
	return nil
}

func runTopicsDelete(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := context.Background()

	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	return deleteTopicNode(ctx, db, v.GetInt64("topic-id"), v.GetInt64("subtopic-id"))
}

// deleteTopicNode removes the topic or, when topicID is zero, the subtopic.
// Topic deletion cascades to subtopics, subcategories and sessions; subtopic
// deletion cascades to subcategories and leaves sessions with a null subtopic.
func deleteTopicNode(ctx context.Context, db *store.Store, topicID, subtopicID int64) error {
	if topicID != 0 {
		t, err := db.GetTopic(ctx, topicID)
		if err != nil {
			return fmt.Errorf("topic %d: %w", topicID, err)
		}
		if err := db.DeleteTopic(ctx, t.ID); err != nil {
			return fmt.Errorf("delete topic %d: %w", t.ID, err)
		}
		slog.Info("deleted topic", "id", t.ID, "name", t.Name, "exam_board", t.ExamBoard)
		return nil
	}

	st, err := db.GetSubTopic(ctx, subtopicID)
	if err != nil {
		return fmt.Errorf("subtopic %d: %w", subtopicID, err)
	}
	if err := db.DeleteSubTopic(ctx, st.ID); err != nil {
		return fmt.Errorf("delete subtopic %d: %w", st.ID, err)
	}
	slog.Info("deleted subtopic", "id", st.ID, "title", st.Title, "topic_id", st.TopicID)
	return nil
}

// importTopicsFile upserts the hierarchy in path. A file whose hash matches
// the last import is skipped unless force is set.
func importTopicsFile(ctx context.Context, db *store.Store, path string, force bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	hash := sha256sum(data)
	storedHash, err := db.GetImportedFileHash(ctx, path)
	if err != nil {
		return fmt.Errorf("check import status for %s: %w", path, err)
	}
	if storedHash == hash && !force {
		slog.Info("topics file unchanged, skipping", "path", path)
		return nil
	}

	topics, err := parseTopics(path, data)
	if err != nil {
		return err
	}

	var nTopics, nSub, nCat int
	for _, ti := range topics {
		board, err := model.ParseExamBoard(ti.ExamBoard)
		if err != nil {
			return fmt.Errorf("%s: topic %q: %w", path, ti.Name, err)
		}
		topicID, err := db.UpsertTopic(ctx, strings.TrimSpace(ti.Name), board)
		if err != nil {
			return fmt.Errorf("upsert topic %q: %w", ti.Name, err)
		}
		nTopics++
		for _, si := range ti.SubTopics {
			subID, err := db.UpsertSubTopic(ctx, topicID, strings.TrimSpace(si.Title))
			if err != nil {
				return fmt.Errorf("upsert subtopic %q: %w", si.Title, err)
			}
			nSub++
			for _, title := range si.SubCategories {
				if _, err := db.UpsertSubCategory(ctx, subID, strings.TrimSpace(title)); err != nil {
					return fmt.Errorf("upsert subcategory %q: %w", title, err)
				}
				nCat++
			}
		}
	}

	if err := db.SetImportedFileHash(ctx, path, hash); err != nil {
		return fmt.Errorf("record import for %s: %w", path, err)
	}
	slog.Info("imported topics", "path", path, "topics", nTopics, "subtopics", nSub, "subcategories", nCat)
	return nil
}

// parseTopics decodes a hierarchy file by extension: .yaml/.yml or JSON.
func parseTopics(path string, data []byte) ([]topicImport, error) {
	var topics []topicImport
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &topics)
	default:
		err = json.Unmarshal(data, &topics)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, ti := range topics {
		if strings.TrimSpace(ti.Name) == "" {
			return nil, fmt.Errorf("parse %s: topic %d: %w", path, i, model.ErrMissingFields)
		}
		for _, si := range ti.SubTopics {
			if strings.TrimSpace(si.Title) == "" {
				return nil, fmt.Errorf("parse %s: topic %q: subtopic: %w", path, ti.Name, model.ErrMissingFields)
			}
		}
	}
	return topics, nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
