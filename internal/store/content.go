package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ashureev/glossgame/internal/domain"
)

// ListTopics returns every topic in creation order.
func (s *SQLStore) ListTopics(ctx context.Context) ([]domain.Topic, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, slug, title, description, skill_tag, sort_order
		FROM topics ORDER BY sort_order, id`))
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}
	defer rows.Close()

	topics := []domain.Topic{}
	for rows.Next() {
		var t domain.Topic
		if err := rows.Scan(&t.ID, &t.Slug, &t.Title, &t.Description, &t.SkillTag, &t.SortOrder); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		topics = append(topics, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topics: %w", err)
	}
	return topics, nil
}

// ListQuestions returns the question bank of a topic.
func (s *SQLStore) ListQuestions(ctx context.Context, topicID string) ([]domain.Question, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, topic_id, term, shown_definition, is_definition_correct,
		       explanation, icon_key, order_index
		FROM questions WHERE topic_id = ? ORDER BY order_index, id`), topicID)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	questions := []domain.Question{}
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.TopicID, &q.Term, &q.ShownDefinition, &q.IsDefinitionCorrect,
			&q.Explanation, &q.IconKey, &q.OrderIndex); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return questions, nil
}

// SeedContent inserts topics and questions that are not stored yet.
func (s *SQLStore) SeedContent(ctx context.Context, topics []domain.Topic, questions []domain.Question) error {
	return s.inTx(ctx, "seed content", func(tx *sql.Tx) error {
		for _, t := range topics {
			if _, err := tx.ExecContext(ctx, s.q(`
				INSERT INTO topics (id, slug, title, description, skill_tag, sort_order)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO NOTHING`),
				t.ID, t.Slug, t.Title, t.Description, t.SkillTag, t.SortOrder,
			); err != nil {
				return fmt.Errorf("insert topic %s: %w", t.ID, err)
			}
		}
		for _, q := range questions {
			if _, err := tx.ExecContext(ctx, s.q(`
				INSERT INTO questions (id, topic_id, term, shown_definition, is_definition_correct,
				                       explanation, icon_key, order_index)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO NOTHING`),
				q.ID, q.TopicID, q.Term, q.ShownDefinition, q.IsDefinitionCorrect,
				q.Explanation, q.IconKey, q.OrderIndex,
			); err != nil {
				return fmt.Errorf("insert question %s: %w", q.ID, err)
			}
		}
		return nil
	})
}
