// Package store provides storage backends for welcomebot.
//
// This file implements the SQLite-backed store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "embed"

	"github.com/gdg-ntpu/welcomebot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists profiles, counters and answer vectors in a local
// SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// GetProfile returns the profile for the hashed user id, or nil when absent.
func (s *SQLiteStore) GetProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, current_question, quiz_finished, reward_code,
		awaiting_reply, pending_feedback, seen_detail, last_question
		FROM profiles WHERE id = ?`, id)

	var p models.UserProfile
	err := row.Scan(&p.ID, &p.CurrentQuestion, &p.QuizFinished, &p.RewardCode,
		&p.AwaitingReply, &p.PendingFeedback, &p.SeenDetail, &p.LastQuestion)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetProfile not found", "id", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetProfile failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to query profile %s: %w", id, err)
	}
	return &p, nil
}

// InsertProfileIfAbsent inserts the profile unless its id is taken.
func (s *SQLiteStore) InsertProfileIfAbsent(ctx context.Context, profile models.UserProfile) (bool, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO profiles
		(id, current_question, quiz_finished, reward_code, awaiting_reply, pending_feedback, seen_detail, last_question)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		profile.ID, profile.CurrentQuestion, profile.QuizFinished, profile.RewardCode,
		profile.AwaitingReply, profile.PendingFeedback, profile.SeenDetail, profile.LastQuestion)
	if err != nil {
		slog.Error("SQLiteStore InsertProfileIfAbsent failed", "error", err, "id", profile.ID)
		return false, fmt.Errorf("failed to insert profile %s: %w", profile.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	slog.Debug("SQLiteStore InsertProfileIfAbsent", "id", profile.ID, "inserted", n > 0)
	return n > 0, nil
}

// UpdateProfile applies only the set fields of the partial update.
func (s *SQLiteStore) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) error {
	cols, args := profileUpdateFields(upd)
	if len(cols) == 0 {
		return nil
	}
	sets := make([]string, 0, len(cols)+1)
	for _, col := range cols {
		sets = append(sets, col+" = ?")
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)
	query := fmt.Sprintf("UPDATE profiles SET %s WHERE id = ?", strings.Join(sets, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		slog.Error("SQLiteStore UpdateProfile failed", "error", err, "id", id)
		return fmt.Errorf("failed to update profile %s: %w", id, err)
	}
	slog.Debug("SQLiteStore UpdateProfile succeeded", "id", id, "fields", len(sets)-1)
	return nil
}

// IncrementCounter atomically increments the named counter inside a single
// upsert statement and returns the new value.
func (s *SQLiteStore) IncrementCounter(ctx context.Context, name string) (int64, error) {
	row := s.db.QueryRowContext(ctx, `INSERT INTO counters (name, value) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET value = value + 1
		RETURNING value`, name)
	var value int64
	if err := row.Scan(&value); err != nil {
		slog.Error("SQLiteStore IncrementCounter failed", "error", err, "name", name)
		return 0, fmt.Errorf("failed to increment counter %s: %w", name, err)
	}
	slog.Debug("SQLiteStore IncrementCounter succeeded", "name", name, "value", value)
	return value, nil
}

// ListAnswerVectors loads every answer-index row. Embeddings are stored as
// JSON arrays.
func (s *SQLiteStore) ListAnswerVectors(ctx context.Context) ([]models.AnswerVector, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT label, text, answer, embedding FROM answer_vectors`)
	if err != nil {
		slog.Error("SQLiteStore ListAnswerVectors query failed", "error", err)
		return nil, fmt.Errorf("failed to query answer vectors: %w", err)
	}
	defer rows.Close()

	var vectors []models.AnswerVector
	for rows.Next() {
		var v models.AnswerVector
		var embeddingJSON string
		if err := rows.Scan(&v.Label, &v.Text, &v.Answer, &embeddingJSON); err != nil {
			slog.Error("SQLiteStore ListAnswerVectors scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan answer vector row: %w", err)
		}
		if err := json.Unmarshal([]byte(embeddingJSON), &v.Embedding); err != nil {
			slog.Error("SQLiteStore ListAnswerVectors embedding decode failed", "error", err, "label", v.Label)
			return nil, fmt.Errorf("failed to decode embedding for %s: %w", v.Label, err)
		}
		vectors = append(vectors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate answer vector rows: %w", err)
	}
	slog.Debug("SQLiteStore ListAnswerVectors succeeded", "count", len(vectors))
	return vectors, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// profileUpdateFields lists the columns and values of the set fields of a
// partial update, in a stable order. Backends compose their own
// placeholder syntax around them.
func profileUpdateFields(upd models.ProfileUpdate) ([]string, []interface{}) {
	var cols []string
	var args []interface{}
	add := func(col string, val interface{}) {
		cols = append(cols, col)
		args = append(args, val)
	}
	if upd.CurrentQuestion != nil {
		add("current_question", *upd.CurrentQuestion)
	}
	if upd.QuizFinished != nil {
		add("quiz_finished", *upd.QuizFinished)
	}
	if upd.RewardCode != nil {
		add("reward_code", *upd.RewardCode)
	}
	if upd.AwaitingReply != nil {
		add("awaiting_reply", *upd.AwaitingReply)
	}
	if upd.PendingFeedback != nil {
		add("pending_feedback", *upd.PendingFeedback)
	}
	if upd.SeenDetail != nil {
		add("seen_detail", *upd.SeenDetail)
	}
	if upd.LastQuestion != nil {
		add("last_question", *upd.LastQuestion)
	}
	return cols, args
}
