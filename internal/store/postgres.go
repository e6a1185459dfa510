// Package store provides storage backends for welcomebot.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "embed"

	"github.com/gdg-ntpu/welcomebot/internal/models"
	"github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists profiles, counters and answer vectors in
// PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// GetProfile returns the profile for the hashed user id, or nil when absent.
func (s *PostgresStore) GetProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, current_question, quiz_finished, reward_code,
		awaiting_reply, pending_feedback, seen_detail, last_question
		FROM profiles WHERE id = $1`, id)

	var p models.UserProfile
	err := row.Scan(&p.ID, &p.CurrentQuestion, &p.QuizFinished, &p.RewardCode,
		&p.AwaitingReply, &p.PendingFeedback, &p.SeenDetail, &p.LastQuestion)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetProfile not found", "id", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetProfile failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to query profile %s: %w", id, err)
	}
	return &p, nil
}

// InsertProfileIfAbsent inserts the profile unless its id is taken.
func (s *PostgresStore) InsertProfileIfAbsent(ctx context.Context, profile models.UserProfile) (bool, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO profiles
		(id, current_question, quiz_finished, reward_code, awaiting_reply, pending_feedback, seen_detail, last_question)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		profile.ID, profile.CurrentQuestion, profile.QuizFinished, profile.RewardCode,
		profile.AwaitingReply, profile.PendingFeedback, profile.SeenDetail, profile.LastQuestion)
	if err != nil {
		slog.Error("PostgresStore InsertProfileIfAbsent failed", "error", err, "id", profile.ID)
		return false, fmt.Errorf("failed to insert profile %s: %w", profile.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	slog.Debug("PostgresStore InsertProfileIfAbsent", "id", profile.ID, "inserted", n > 0)
	return n > 0, nil
}

// UpdateProfile applies only the set fields of the partial update.
func (s *PostgresStore) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) error {
	cols, args := profileUpdateFields(upd)
	if len(cols) == 0 {
		return nil
	}
	sets := make([]string, 0, len(cols)+1)
	for i, col := range cols {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i+1))
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)
	query := fmt.Sprintf("UPDATE profiles SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		slog.Error("PostgresStore UpdateProfile failed", "error", err, "id", id)
		return fmt.Errorf("failed to update profile %s: %w", id, err)
	}
	slog.Debug("PostgresStore UpdateProfile succeeded", "id", id, "fields", len(cols))
	return nil
}

// IncrementCounter atomically increments the named counter inside a single
// upsert statement and returns the new value.
func (s *PostgresStore) IncrementCounter(ctx context.Context, name string) (int64, error) {
	row := s.db.QueryRowContext(ctx, `INSERT INTO counters (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = counters.value + 1
		RETURNING value`, name)
	var value int64
	if err := row.Scan(&value); err != nil {
		slog.Error("PostgresStore IncrementCounter failed", "error", err, "name", name)
		return 0, fmt.Errorf("failed to increment counter %s: %w", name, err)
	}
	slog.Debug("PostgresStore IncrementCounter succeeded", "name", name, "value", value)
	return value, nil
}

// ListAnswerVectors loads every answer-index row.
func (s *PostgresStore) ListAnswerVectors(ctx context.Context) ([]models.AnswerVector, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT label, text, answer, embedding FROM answer_vectors`)
	if err != nil {
		slog.Error("PostgresStore ListAnswerVectors query failed", "error", err)
		return nil, fmt.Errorf("failed to query answer vectors: %w", err)
	}
	defer rows.Close()

	var vectors []models.AnswerVector
	for rows.Next() {
		var v models.AnswerVector
		var embedding pq.Float64Array
		if err := rows.Scan(&v.Label, &v.Text, &v.Answer, &embedding); err != nil {
			slog.Error("PostgresStore ListAnswerVectors scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan answer vector row: %w", err)
		}
		v.Embedding = []float64(embedding)
		vectors = append(vectors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate answer vector rows: %w", err)
	}
	slog.Debug("PostgresStore ListAnswerVectors succeeded", "count", len(vectors))
	return vectors, nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
