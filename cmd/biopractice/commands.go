package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	appI18n "github.com/pavelanni/biopractice/internal/i18n"
	"github.com/pavelanni/biopractice/internal/model"
	"github.com/pavelanni/biopractice/internal/store"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export practice sessions as JSON",
		RunE:  runExport,
	}
	addStoreFlags(cmd)
	f := cmd.Flags()
	f.String("exam-board", "", "Only export sessions for this exam board (OCR, AQA)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	return cmd
}

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
	}
	del := &cobra.Command{
		Use:   "delete",
		Short: "Delete a user and all of their sessions",
		RunE:  runUsersDelete,
	}
	addStoreFlags(del)
	del.Flags().String("email", "", "Email of the user to delete (required)")
	_ = del.MarkFlagRequired("email")
	cmd.AddCommand(del)
	return cmd
}

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List a user's practice sessions",
		RunE:  runSessions,
	}
	addStoreFlags(cmd)
	f := cmd.Flags()
	f.String("email", "", "Email of the user (required)")
	f.StringP("lang", "l", "en", "Output language (en, ru)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := context.Background()

	var board model.ExamBoard
	if s := v.GetString("exam-board"); s != "" {
		b, err := model.ParseExamBoard(s)
		if err != nil {
			return err
		}
		board = b
	}

	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	export, err := db.ExportAllSessions(ctx, board)
	if err != nil {
		return fmt.Errorf("export sessions: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)
	return nil
}

// lookupUser finds a user by email or fails with a not-found error.
func lookupUser(ctx context.Context, db *store.Store, email string) (*model.User, error) {
	user, err := db.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, model.NotFound(fmt.Errorf("user %s: %w", email, model.ErrNotFound))
	}
	return user, nil
}

func runUsersDelete(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := context.Background()

	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := lookupUser(ctx, db, v.GetString("email"))
	if err != nil {
		return err
	}
	return db.DeleteUser(ctx, user.ID)
}

func runSessions(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := context.Background()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	ctx = appI18n.WithLocalizer(ctx, appI18n.NewLocalizer(lang))

	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := lookupUser(ctx, db, v.GetString("email"))
	if err != nil {
		return err
	}
	sessions, err := db.ListSessions(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	printSessions(ctx, cmd.OutOrStdout(), user, sessions)
	return nil
}

// printSessions writes one line per session, newest first.
func printSessions(ctx context.Context, w io.Writer, user *model.User, sessions []model.QuestionSession) {
	fmt.Fprintf(w, "%s <%s>: %s\n", user.Username, user.Email, appI18n.Tp(ctx, "SessionsFound", len(sessions)))
	for _, s := range sessions {
		score := appI18n.Td(ctx, "SessionScore", map[string]any{
			"Score": humanize.FtoaWithDigits(s.TotalScore, 2),
			"OutOf": s.TotalAvailable,
		})
		fmt.Fprintf(w, "  #%d  %-4s %-30s %-10s %s  %s\n",
			s.ID, s.ExamBoard, s.TopicName, s.Status, score, humanize.Time(s.CreatedAt))
	}
}
