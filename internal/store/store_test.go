package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pavelanni/biopractice/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestUser(t *testing.T, s *Store, email string) int64 {
	t.Helper()
	id, err := s.CreateUser(context.Background(), model.User{
		Email:        email,
		Username:     "user-" + email,
		PasswordHash: "hash",
		Active:       true,
	})
	if err != nil {
		t.Fatalf("insertTestUser: %v", err)
	}
	return id
}

func insertTestTopic(t *testing.T, s *Store, name string, board model.ExamBoard) int64 {
	t.Helper()
	id, err := s.UpsertTopic(context.Background(), name, board)
	if err != nil {
		t.Fatalf("insertTestTopic: %v", err)
	}
	return id
}

func insertTestSession(t *testing.T, s *Store, userID, topicID int64) int64 {
	t.Helper()
	id, err := s.CreateSession(context.Background(), model.QuestionSession{
		UserID:            userID,
		TopicID:           topicID,
		ExamBoard:         model.BoardOCR,
		NumberOfQuestions: 3,
		TotalAvailable:    10,
	})
	if err != nil {
		t.Fatalf("insertTestSession: %v", err)
	}
	return id
}

func TestTopicHierarchy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cell := insertTestTopic(t, s, "Cell Structure", model.BoardOCR)
	insertTestTopic(t, s, "Biodiversity", model.BoardOCR)
	insertTestTopic(t, s, "Genetics", model.BoardAQA)

	// Upserting again returns the same row.
	again := insertTestTopic(t, s, "Cell Structure", model.BoardOCR)
	if again != cell {
		t.Errorf("expected upsert to return id %d, got %d", cell, again)
	}

	tests := []struct {
		name  string
		board model.ExamBoard
		want  []string
	}{
		{"all boards", "", []string{"Genetics", "Biodiversity", "Cell Structure"}},
		{"OCR", model.BoardOCR, []string{"Biodiversity", "Cell Structure"}},
		{"AQA", model.BoardAQA, []string{"Genetics"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topics, err := s.ListTopics(ctx, tt.board)
			if err != nil {
				t.Fatalf("ListTopics: %v", err)
			}
			if len(topics) != len(tt.want) {
				t.Fatalf("expected %d topics, got %d", len(tt.want), len(topics))
			}
			for i, name := range tt.want {
				if topics[i].Name != name {
					t.Errorf("topic %d: expected %q, got %q", i, name, topics[i].Name)
				}
			}
		})
	}

	micro, err := s.UpsertSubTopic(ctx, cell, "Microscopy")
	if err != nil {
		t.Fatalf("UpsertSubTopic: %v", err)
	}
	if _, err := s.UpsertSubTopic(ctx, cell, "Cell organelles"); err != nil {
		t.Fatalf("UpsertSubTopic: %v", err)
	}
	if _, err := s.UpsertSubCategory(ctx, micro, "Staining"); err != nil {
		t.Fatalf("UpsertSubCategory: %v", err)
	}
	if _, err := s.UpsertSubCategory(ctx, micro, "Magnification"); err != nil {
		t.Fatalf("UpsertSubCategory: %v", err)
	}

	subs, err := s.ListSubTopics(ctx, cell, "")
	if err != nil {
		t.Fatalf("ListSubTopics: %v", err)
	}
	if len(subs) != 2 || subs[0].Title != "Cell organelles" || subs[1].Title != "Microscopy" {
		t.Errorf("unexpected subtopics: %+v", subs)
	}

	subs, err = s.ListSubTopics(ctx, 0, model.BoardAQA)
	if err != nil {
		t.Fatalf("ListSubTopics: %v", err)
	}
	if subs == nil || len(subs) != 0 {
		t.Errorf("expected empty non-nil list for AQA, got %+v", subs)
	}

	cats, err := s.ListSubCategories(ctx, micro, model.BoardOCR)
	if err != nil {
		t.Fatalf("ListSubCategories: %v", err)
	}
	if len(cats) != 2 || cats[0].Title != "Magnification" {
		t.Errorf("unexpected subcategories: %+v", cats)
	}

	// Deleting the topic cascades down the hierarchy.
	if err := s.DeleteTopic(ctx, cell); err != nil {
		t.Fatalf("DeleteTopic: %v", err)
	}
	if _, err := s.GetSubTopic(ctx, micro); model.KindOf(err) != model.KindNotFound {
		t.Errorf("expected not found after cascade, got %v", err)
	}
	cats, err = s.ListSubCategories(ctx, 0, "")
	if err != nil {
		t.Fatalf("ListSubCategories: %v", err)
	}
	if len(cats) != 0 {
		t.Errorf("expected subcategories removed, got %d", len(cats))
	}
}

func TestGetTopicNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetTopic(context.Background(), 9999)
	if !errors.Is(err, model.ErrTopicNotFound) {
		t.Errorf("expected ErrTopicNotFound, got %v", err)
	}
	if model.KindOf(err) != model.KindNotFound {
		t.Errorf("expected kind not_found, got %q", model.KindOf(err))
	}
}

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := insertTestUser(t, s, "Alice@Example.com")

	u, err := s.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if u == nil || u.ID != id {
		t.Fatalf("expected user %d, got %+v", id, u)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("expected lower-cased email, got %q", u.Email)
	}

	_, err = s.CreateUser(ctx, model.User{Email: "alice@example.com", Username: "dup", PasswordHash: "x"})
	if model.KindOf(err) != model.KindConflict {
		t.Errorf("expected conflict for duplicate email, got %v", err)
	}

	missing, err := s.GetUserByID(ctx, 9999)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil user, got %+v", missing)
	}

	count, err := s.UserCount(ctx)
	if err != nil {
		t.Fatalf("UserCount: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 user, got %d", count)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertTestUser(t, s, "alice@example.com")

	insert := func(email any) error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO users (email, username, password_hash, active, created_at) VALUES ($1, 'u', 'x', 1, $2)`,
			email, time.Now().UTC())
		return err
	}

	err := insert("alice@example.com")
	if err == nil {
		t.Fatal("expected duplicate insert to fail")
	}
	if !isUniqueViolation(err) {
		t.Errorf("expected unique violation, got %v", err)
	}

	err = insert(nil)
	if err == nil {
		t.Fatal("expected null email to fail")
	}
	if isUniqueViolation(err) {
		t.Errorf("NOT NULL failure reported as unique violation: %v", err)
	}
	if isUniqueViolation(errors.New("UNIQUE constraint failed")) {
		t.Error("plain error reported as unique violation")
	}
}

func TestCreateUserConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const n = 8
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateUser(ctx, model.User{Email: "race@example.com", Username: "r", PasswordHash: "x"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, model.ErrEmailTaken) || model.KindOf(err) != model.KindConflict:
			t.Errorf("expected conflict, got %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("expected exactly one registration to succeed, got %d", ok)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := insertTestUser(t, s, "a@example.com")
	topic := insertTestTopic(t, s, "Cell Structure", model.BoardOCR)

	id := insertTestSession(t, s, user, topic)

	sess, err := s.GetSession(ctx, user, id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Status != model.StatusOpen {
		t.Errorf("expected status open, got %q", sess.Status)
	}
	if sess.TotalScore != 0 || sess.TotalAvailable != 10 {
		t.Errorf("expected 0/10, got %v/%d", sess.TotalScore, sess.TotalAvailable)
	}
	if sess.TopicName != "Cell Structure" {
		t.Errorf("expected topic name, got %q", sess.TopicName)
	}
	if sess.Feedback != nil || sess.FinalizedAt != nil {
		t.Errorf("expected no feedback before finalization")
	}

	fb := model.Feedback{
		Strengths:    []string{"a", "b", "c"},
		Improvements: []string{"d", "e", "f"},
	}
	if err := s.FinalizeSession(ctx, user, id, 6, fb); err != nil {
		t.Fatalf("FinalizeSession: %v", err)
	}

	sess, err = s.GetSession(ctx, user, id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Status != model.StatusFinalized {
		t.Errorf("expected status finalized, got %q", sess.Status)
	}
	if sess.TotalScore != 6 {
		t.Errorf("expected total score 6, got %v", sess.TotalScore)
	}
	if sess.Feedback == nil || sess.Feedback.Version != model.FeedbackVersion {
		t.Fatalf("expected versioned feedback, got %+v", sess.Feedback)
	}
	if len(sess.Feedback.Strengths) != 3 || sess.Feedback.Improvements[2] != "f" {
		t.Errorf("unexpected feedback: %+v", sess.Feedback)
	}
	if sess.FinalizedAt == nil {
		t.Errorf("expected finalized_at set")
	}

	// A second finalization is rejected and leaves the first result.
	err = s.FinalizeSession(ctx, user, id, 1, model.Feedback{})
	if !errors.Is(err, model.ErrSessionFinalized) || model.KindOf(err) != model.KindConflict {
		t.Errorf("expected conflict on second finalize, got %v", err)
	}
	sess, _ = s.GetSession(ctx, user, id)
	if sess.TotalScore != 6 {
		t.Errorf("expected score unchanged at 6, got %v", sess.TotalScore)
	}
}

func TestSessionOwnership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := insertTestUser(t, s, "alice@example.com")
	bob := insertTestUser(t, s, "bob@example.com")
	topic := insertTestTopic(t, s, "Genetics", model.BoardAQA)

	a1 := insertTestSession(t, s, alice, topic)
	a2 := insertTestSession(t, s, alice, topic)
	b1 := insertTestSession(t, s, bob, topic)

	list, err := s.ListSessions(ctx, alice)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 sessions for alice, got %d", len(list))
	}
	if list[0].ID != a2 || list[1].ID != a1 {
		t.Errorf("expected newest first [%d %d], got [%d %d]", a2, a1, list[0].ID, list[1].ID)
	}
	for _, sess := range list {
		if sess.ID == b1 {
			t.Errorf("alice's list contains bob's session")
		}
	}

	if _, err := s.GetSession(ctx, alice, b1); !errors.Is(err, model.ErrSessionNotFound) {
		t.Errorf("expected not found for foreign session, got %v", err)
	}
	err = s.FinalizeSession(ctx, alice, b1, 3, model.Feedback{})
	if model.KindOf(err) != model.KindNotFound {
		t.Errorf("expected not found finalizing foreign session, got %v", err)
	}

	// Deleting a user removes their sessions only.
	if err := s.DeleteUser(ctx, alice); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	all, err := s.ListAllSessions(ctx)
	if err != nil {
		t.Fatalf("ListAllSessions: %v", err)
	}
	if len(all) != 1 || all[0].ID != b1 {
		t.Errorf("expected only bob's session left, got %+v", all)
	}
	if err := s.DeleteUser(ctx, alice); model.KindOf(err) != model.KindNotFound {
		t.Errorf("expected not found deleting missing user, got %v", err)
	}
}

func TestSubTopicDeleteNullsSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := insertTestUser(t, s, "a@example.com")
	topic := insertTestTopic(t, s, "Cell Structure", model.BoardOCR)
	sub, err := s.UpsertSubTopic(ctx, topic, "Microscopy")
	if err != nil {
		t.Fatalf("UpsertSubTopic: %v", err)
	}

	id, err := s.CreateSession(ctx, model.QuestionSession{
		UserID: user, TopicID: topic, SubTopicID: &sub,
		ExamBoard: model.BoardOCR, NumberOfQuestions: 2,
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := s.DeleteSubTopic(ctx, sub); err != nil {
		t.Fatalf("DeleteSubTopic: %v", err)
	}
	sess, err := s.GetSession(ctx, user, id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.SubTopicID != nil {
		t.Errorf("expected subtopic nulled, got %d", *sess.SubTopicID)
	}
}

func TestExportAllSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := insertTestUser(t, s, "a@example.com")
	ocr := insertTestTopic(t, s, "Cell Structure", model.BoardOCR)
	aqa := insertTestTopic(t, s, "Genetics", model.BoardAQA)
	sub, _ := s.UpsertSubTopic(ctx, ocr, "Microscopy")

	if _, err := s.CreateSession(ctx, model.QuestionSession{
		UserID: user, TopicID: ocr, SubTopicID: &sub,
		ExamBoard: model.BoardOCR, NumberOfQuestions: 2, TotalAvailable: 4,
	}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := s.CreateSession(ctx, model.QuestionSession{
		UserID: user, TopicID: aqa, ExamBoard: model.BoardAQA, NumberOfQuestions: 1,
	}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	export, err := s.ExportAllSessions(ctx, "")
	if err != nil {
		t.Fatalf("ExportAllSessions: %v", err)
	}
	if len(export.Sessions) != 2 {
		t.Fatalf("expected 2 records, got %d", len(export.Sessions))
	}
	first := export.Sessions[0]
	if first.UserEmail != "a@example.com" || first.SubTopic != "Microscopy" || first.SessionNumber != 1 {
		t.Errorf("unexpected first record: %+v", first)
	}

	export, err = s.ExportAllSessions(ctx, model.BoardAQA)
	if err != nil {
		t.Fatalf("ExportAllSessions: %v", err)
	}
	if len(export.Sessions) != 1 {
		t.Fatalf("expected 1 AQA record, got %d", len(export.Sessions))
	}
	if export.Sessions[0].SessionNumber != 2 {
		t.Errorf("expected session number 2, got %d", export.Sessions[0].SessionNumber)
	}
}

func TestRevokedTokens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Revoke(ctx, "live", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := s.Revoke(ctx, "live", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Revoke twice: %v", err)
	}
	if err := s.Revoke(ctx, "old", time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	revoked, err := s.IsRevoked(ctx, "live")
	if err != nil || !revoked {
		t.Errorf("expected live revoked, got %v, %v", revoked, err)
	}
	revoked, err = s.IsRevoked(ctx, "other")
	if err != nil || revoked {
		t.Errorf("expected other not revoked, got %v, %v", revoked, err)
	}

	n, err := s.PurgeExpiredRevocations(ctx)
	if err != nil {
		t.Fatalf("PurgeExpiredRevocations: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 purged, got %d", n)
	}
}

func TestMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	hash, err := s.GetImportedFileHash(ctx, "topics.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty hash, got %q", hash)
	}

	for _, h := range []string{"abc", "def"} {
		if err := s.SetImportedFileHash(ctx, "topics.json", h); err != nil {
			t.Fatalf("SetImportedFileHash: %v", err)
		}
	}
	hash, err = s.GetImportedFileHash(ctx, "topics.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "def" {
		t.Errorf("expected def, got %q", hash)
	}
}
