// Package store provides storage backends for the outreach workflow engine.
//
// This file implements the SQLite-backed store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/FelixNg1022/agent-workflow/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN. The DSN is a
// file path to the database file; the containing directory is created if
// missing.
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

func (s *SQLiteStore) SaveConversation(ctx context.Context, state *models.ConversationState) error {
	doc, err := marshalConversation(state)
	if err != nil {
		slog.Error("SQLiteStore SaveConversation marshal failed", "error", err, "conversationID", state.ID)
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO conversations (id, phone_number, phase, state_json, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		state.ID, state.PhoneNumber, string(state.Phase), doc, state.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveConversation failed", "error", err, "conversationID", state.ID)
		return fmt.Errorf("failed to save conversation %s: %w", state.ID, err)
	}
	slog.Debug("SQLiteStore SaveConversation succeeded", "conversationID", state.ID, "phase", state.Phase)
	return nil
}

func (s *SQLiteStore) GetConversation(ctx context.Context, conversationID string) (*models.ConversationState, error) {
	row := s.db.QueryRowContext(ctx, `SELECT state_json FROM conversations WHERE id = ?`, conversationID)
	return scanConversationRow(row, conversationID)
}

func (s *SQLiteStore) GetConversationByPhone(ctx context.Context, phoneNumber string) (*models.ConversationState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT state_json FROM conversations WHERE phone_number = ?
		ORDER BY updated_at DESC LIMIT 1`, phoneNumber)
	return scanConversationRow(row, phoneNumber)
}

func (s *SQLiteStore) ListConversations(ctx context.Context) ([]*models.ConversationState, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state_json FROM conversations ORDER BY updated_at`)
	if err != nil {
		slog.Error("SQLiteStore ListConversations query failed", "error", err)
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()
	return scanConversations(rows)
}

func (s *SQLiteStore) DeleteConversation(ctx context.Context, conversationID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, conversationID)
	if err != nil {
		slog.Error("SQLiteStore DeleteConversation failed", "error", err, "conversationID", conversationID)
		return fmt.Errorf("failed to delete conversation %s: %w", conversationID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrConversationNotFound
	}
	slog.Debug("SQLiteStore DeleteConversation succeeded", "conversationID", conversationID)
	return nil
}

func (s *SQLiteStore) SaveInfluencer(ctx context.Context, influencer *models.Influencer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO influencers
			(id, phone_number, nickname, profile_url, bio, followers, content_type, platform, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		influencer.ID, influencer.PhoneNumber, nilIfEmpty(influencer.Nickname),
		nilIfEmpty(influencer.ProfileURL), nilIfEmpty(influencer.Bio), influencer.Followers,
		nilIfEmpty(influencer.ContentType), nilIfEmpty(influencer.Platform),
		influencer.CreatedAt, influencer.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveInfluencer failed", "error", err, "influencerID", influencer.ID)
		return fmt.Errorf("failed to save influencer %s: %w", influencer.ID, err)
	}
	slog.Debug("SQLiteStore SaveInfluencer succeeded", "influencerID", influencer.ID)
	return nil
}

func (s *SQLiteStore) GetInfluencer(ctx context.Context, influencerID string) (*models.Influencer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, phone_number, nickname, profile_url, bio, followers, content_type, platform, created_at, updated_at
		FROM influencers WHERE id = ?`, influencerID)
	inf, err := scanInfluencerRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetInfluencer failed", "error", err, "influencerID", influencerID)
		return nil, err
	}
	return inf, nil
}

func (s *SQLiteStore) ListInfluencers(ctx context.Context) ([]*models.Influencer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, phone_number, nickname, profile_url, bio, followers, content_type, platform, created_at, updated_at
		FROM influencers ORDER BY created_at`)
	if err != nil {
		slog.Error("SQLiteStore ListInfluencers query failed", "error", err)
		return nil, fmt.Errorf("failed to query influencers: %w", err)
	}
	defer rows.Close()
	return scanInfluencers(rows)
}

func (s *SQLiteStore) AddReceipt(ctx context.Context, r models.Receipt) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO receipts (recipient, status, time) VALUES (?, ?, ?)`, r.To, r.Status, r.Time)
	if err != nil {
		slog.Error("SQLiteStore AddReceipt failed", "error", err, "to", r.To)
		return fmt.Errorf("failed to insert receipt for %s: %w", r.To, err)
	}
	slog.Debug("SQLiteStore AddReceipt succeeded", "to", r.To, "status", r.Status)
	return nil
}

func (s *SQLiteStore) GetReceipts(ctx context.Context) ([]models.Receipt, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT recipient, status, time FROM receipts`)
	if err != nil {
		slog.Error("SQLiteStore GetReceipts query failed", "error", err)
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()

	var receipts []models.Receipt
	for rows.Next() {
		var r models.Receipt
		if err := rows.Scan(&r.To, &r.Status, &r.Time); err != nil {
			slog.Error("SQLiteStore GetReceipts scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan receipt row: %w", err)
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore GetReceipts rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate receipt rows: %w", err)
	}
	return receipts, nil
}

func (s *SQLiteStore) AddResponse(ctx context.Context, r models.Response) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO responses (sender, body, time) VALUES (?, ?, ?)`, r.From, r.Body, r.Time)
	if err != nil {
		slog.Error("SQLiteStore AddResponse failed", "error", err, "from", r.From)
		return fmt.Errorf("failed to insert response from %s: %w", r.From, err)
	}
	slog.Debug("SQLiteStore AddResponse succeeded", "from", r.From)
	return nil
}

func (s *SQLiteStore) GetResponses(ctx context.Context) ([]models.Response, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT sender, body, time FROM responses`)
	if err != nil {
		slog.Error("SQLiteStore GetResponses query failed", "error", err)
		return nil, err
	}
	defer rows.Close()

	var responses []models.Response
	for rows.Next() {
		var r models.Response
		if err := rows.Scan(&r.From, &r.Body, &r.Time); err != nil {
			slog.Error("SQLiteStore GetResponses scan failed", "error", err)
			return nil, err
		}
		responses = append(responses, r)
	}
	return responses, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
