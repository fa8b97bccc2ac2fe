package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adaptlearn/practice-engine/internal/catalog"
)

// PostgresStore is the pgx-backed Store implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store over the given pool.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) GetMastery(ctx context.Context, studentID, topicID string) (*MasteryState, error) {
	var st MasteryState
	err := s.pool.QueryRow(ctx,
		`SELECT student_id, topic_id, p, updated_at
		 FROM mastery_states
		 WHERE student_id = $1 AND topic_id = $2`,
		studentID, topicID,
	).Scan(&st.StudentID, &st.TopicID, &st.P, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get mastery: %w", err)
	}
	return &st, nil
}

func (s *PostgresStore) PutMastery(ctx context.Context, state MasteryState) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO mastery_states (student_id, topic_id, p, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (student_id, topic_id)
		 DO UPDATE SET p = EXCLUDED.p, updated_at = EXCLUDED.updated_at`,
		state.StudentID, state.TopicID, state.P, state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put mastery: %w", err)
	}
	return nil
}

func (s *PostgresStore) MasteryByStudent(ctx context.Context, studentID string) (map[string]float64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT topic_id, p FROM mastery_states WHERE student_id = $1`,
		studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("query mastery: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var topicID string
		var p float64
		if err := rows.Scan(&topicID, &p); err != nil {
			return nil, fmt.Errorf("scan mastery: %w", err)
		}
		out[topicID] = p
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetReview(ctx context.Context, studentID, itemID string) (*ReviewEntry, error) {
	var e ReviewEntry
	err := s.pool.QueryRow(ctx,
		`SELECT student_id, item_id, due_at, interval_days, repetition, ease
		 FROM review_schedules
		 WHERE student_id = $1 AND item_id = $2`,
		studentID, itemID,
	).Scan(&e.StudentID, &e.ItemID, &e.DueAt, &e.IntervalDays, &e.Repetition, &e.Ease)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	return &e, nil
}

func (s *PostgresStore) PutReview(ctx context.Context, entry ReviewEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO review_schedules (student_id, item_id, due_at, interval_days, repetition, ease, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 ON CONFLICT (student_id, item_id)
		 DO UPDATE SET due_at = EXCLUDED.due_at,
		               interval_days = EXCLUDED.interval_days,
		               repetition = EXCLUDED.repetition,
		               ease = EXCLUDED.ease,
		               updated_at = now()`,
		entry.StudentID, entry.ItemID, entry.DueAt, entry.IntervalDays, entry.Repetition, entry.Ease,
	)
	if err != nil {
		return fmt.Errorf("put review: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendEvent(ctx context.Context, event ExerciseEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO exercise_events (id, student_id, item_id, topic_id, correct, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.StudentID, event.ItemID, event.TopicID, event.Correct, event.DurationMs, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetItem(ctx context.Context, itemID string) (*catalog.Item, error) {
	return s.scanItem(s.pool.QueryRow(ctx,
		`SELECT id, COALESCE(topic_id, ''), stem, options, correct_answer, rationale, difficulty, source
		 FROM items WHERE id = $1`,
		itemID,
	))
}

func (s *PostgresStore) InsertItem(ctx context.Context, item catalog.Item) error {
	options, err := json.Marshal(item.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO items (id, topic_id, stem, options, correct_answer, rationale, difficulty, source)
		 VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		item.ID, item.TopicID, item.Stem, options, item.CorrectAnswer, item.Rationale, item.Difficulty, item.Source,
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

func (s *PostgresStore) PickItem(ctx context.Context, topicID string) (*catalog.Item, error) {
	return s.scanItem(s.pool.QueryRow(ctx,
		`SELECT id, COALESCE(topic_id, ''), stem, options, correct_answer, rationale, difficulty, source
		 FROM items WHERE topic_id = $1
		 ORDER BY id ASC
		 LIMIT 1`,
		topicID,
	))
}

func (s *PostgresStore) scanItem(row pgx.Row) (*catalog.Item, error) {
	var item catalog.Item
	var options []byte
	err := row.Scan(&item.ID, &item.TopicID, &item.Stem, &options, &item.CorrectAnswer, &item.Rationale, &item.Difficulty, &item.Source)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan item: %w", err)
	}
	if err := json.Unmarshal(options, &item.Options); err != nil {
		return nil, fmt.Errorf("unmarshal options: %w", err)
	}
	return &item, nil
}
