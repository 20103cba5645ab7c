package store

import (
	"context"
	"strconv"

	"github.com/pavelanni/biopractice/internal/model"
)

// UpsertTopic inserts a topic or returns the existing one's ID.
func (s *Store) UpsertTopic(ctx context.Context, name string, board model.ExamBoard) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO topics (name, exam_board) VALUES ($1, $2)
		 ON CONFLICT (name, exam_board) DO UPDATE SET name = excluded.name
		 RETURNING id`,
		name, board,
	).Scan(&id)
	return id, err
}

// UpsertSubTopic inserts a subtopic under topicID or returns the existing one's ID.
func (s *Store) UpsertSubTopic(ctx context.Context, topicID int64, title string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO subtopics (topic_id, title) VALUES ($1, $2)
		 ON CONFLICT (topic_id, title) DO UPDATE SET title = excluded.title
		 RETURNING id`,
		topicID, title,
	).Scan(&id)
	return id, err
}

// UpsertSubCategory inserts a subcategory under subtopicID or returns the existing one's ID.
func (s *Store) UpsertSubCategory(ctx context.Context, subtopicID int64, title string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO subcategories (subtopic_id, title) VALUES ($1, $2)
		 ON CONFLICT (subtopic_id, title) DO UPDATE SET title = excluded.title
		 RETURNING id`,
		subtopicID, title,
	).Scan(&id)
	return id, err
}

// DeleteTopic removes a topic with its subtopics, subcategories and sessions.
func (s *Store) DeleteTopic(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM topics WHERE id = $1`, id)
	return err
}

// DeleteSubTopic removes a subtopic; sessions referencing it keep their row with a null subtopic.
func (s *Store) DeleteSubTopic(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM subtopics WHERE id = $1`, id)
	return err
}

// GetTopic returns a topic by ID.
func (s *Store) GetTopic(ctx context.Context, id int64) (model.Topic, error) {
	var t model.Topic
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, exam_board FROM topics WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.ExamBoard)
	return t, notFound(err, model.ErrTopicNotFound)
}

// GetSubTopic returns a subtopic by ID.
func (s *Store) GetSubTopic(ctx context.Context, id int64) (model.SubTopic, error) {
	var st model.SubTopic
	err := s.db.QueryRowContext(ctx,
		`SELECT id, topic_id, title FROM subtopics WHERE id = $1`, id,
	).Scan(&st.ID, &st.TopicID, &st.Title)
	return st, notFound(err, model.ErrSubTopicNotFound)
}

// GetSubCategory returns a subcategory by ID.
func (s *Store) GetSubCategory(ctx context.Context, id int64) (model.SubCategory, error) {
	var sc model.SubCategory
	err := s.db.QueryRowContext(ctx,
		`SELECT id, subtopic_id, title FROM subcategories WHERE id = $1`, id,
	).Scan(&sc.ID, &sc.SubTopicID, &sc.Title)
	return sc, notFound(err, model.ErrSubCategoryNotFound)
}

// ListTopics returns topics ordered by name. An empty board means all boards,
// ordered by board first.
func (s *Store) ListTopics(ctx context.Context, board model.ExamBoard) ([]model.Topic, error) {
	query := `SELECT id, name, exam_board FROM topics`
	var args []any
	if board != "" {
		query += ` WHERE exam_board = $1 ORDER BY name`
		args = append(args, board)
	} else {
		query += ` ORDER BY exam_board, name`
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	topics := []model.Topic{}
	for rows.Next() {
		var t model.Topic
		if err := rows.Scan(&t.ID, &t.Name, &t.ExamBoard); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// ListSubTopics returns subtopics ordered by title. Zero topicID and empty board mean no filtering.
func (s *Store) ListSubTopics(ctx context.Context, topicID int64, board model.ExamBoard) ([]model.SubTopic, error) {
	query := `SELECT st.id, st.topic_id, st.title FROM subtopics st
		JOIN topics t ON t.id = st.topic_id WHERE 1=1`
	var args []any
	if topicID != 0 {
		args = append(args, topicID)
		query += ` AND st.topic_id = ` + placeholder(len(args))
	}
	if board != "" {
		args = append(args, board)
		query += ` AND t.exam_board = ` + placeholder(len(args))
	}
	query += ` ORDER BY st.title, st.id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	subtopics := []model.SubTopic{}
	for rows.Next() {
		var st model.SubTopic
		if err := rows.Scan(&st.ID, &st.TopicID, &st.Title); err != nil {
			return nil, err
		}
		subtopics = append(subtopics, st)
	}
	return subtopics, rows.Err()
}

// ListSubCategories returns subcategories ordered by title. Zero subtopicID and empty board mean no filtering.
func (s *Store) ListSubCategories(ctx context.Context, subtopicID int64, board model.ExamBoard) ([]model.SubCategory, error) {
	query := `SELECT sc.id, sc.subtopic_id, sc.title FROM subcategories sc
		JOIN subtopics st ON st.id = sc.subtopic_id
		JOIN topics t ON t.id = st.topic_id WHERE 1=1`
	var args []any
	if subtopicID != 0 {
		args = append(args, subtopicID)
		query += ` AND sc.subtopic_id = ` + placeholder(len(args))
	}
	if board != "" {
		args = append(args, board)
		query += ` AND t.exam_board = ` + placeholder(len(args))
	}
	query += ` ORDER BY sc.title, sc.id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	subcategories := []model.SubCategory{}
	for rows.Next() {
		var sc model.SubCategory
		if err := rows.Scan(&sc.ID, &sc.SubTopicID, &sc.Title); err != nil {
			return nil, err
		}
		subcategories = append(subcategories, sc)
	}
	return subcategories, rows.Err()
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}
