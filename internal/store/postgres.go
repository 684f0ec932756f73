// Package store provides storage backends for the outreach workflow engine.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/FelixNg1022/agent-workflow/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

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

func (s *PostgresStore) SaveConversation(ctx context.Context, state *models.ConversationState) error {
	doc, err := marshalConversation(state)
	if err != nil {
		slog.Error("PostgresStore SaveConversation marshal failed", "error", err, "conversationID", state.ID)
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, phone_number, phase, state_json, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			phone_number = EXCLUDED.phone_number,
			phase = EXCLUDED.phase,
			state_json = EXCLUDED.state_json,
			updated_at = EXCLUDED.updated_at`,
		state.ID, state.PhoneNumber, string(state.Phase), doc, state.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveConversation failed", "error", err, "conversationID", state.ID)
		return fmt.Errorf("failed to save conversation %s: %w", state.ID, err)
	}
	slog.Debug("PostgresStore SaveConversation succeeded", "conversationID", state.ID, "phase", state.Phase)
	return nil
}

func (s *PostgresStore) GetConversation(ctx context.Context, conversationID string) (*models.ConversationState, error) {
	row := s.db.QueryRowContext(ctx, `SELECT state_json FROM conversations WHERE id = $1`, conversationID)
	return scanConversationRow(row, conversationID)
}

func (s *PostgresStore) GetConversationByPhone(ctx context.Context, phoneNumber string) (*models.ConversationState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT state_json FROM conversations WHERE phone_number = $1
		ORDER BY updated_at DESC LIMIT 1`, phoneNumber)
	return scanConversationRow(row, phoneNumber)
}

func (s *PostgresStore) ListConversations(ctx context.Context) ([]*models.ConversationState, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state_json FROM conversations ORDER BY updated_at`)
	if err != nil {
		slog.Error("PostgresStore ListConversations query failed", "error", err)
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()
	return scanConversations(rows)
}

func (s *PostgresStore) DeleteConversation(ctx context.Context, conversationID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, conversationID)
	if err != nil {
		slog.Error("PostgresStore DeleteConversation failed", "error", err, "conversationID", conversationID)
		return fmt.Errorf("failed to delete conversation %s: %w", conversationID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrConversationNotFound
	}
	slog.Debug("PostgresStore DeleteConversation succeeded", "conversationID", conversationID)
	return nil
}

func (s *PostgresStore) SaveInfluencer(ctx context.Context, influencer *models.Influencer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO influencers
			(id, phone_number, nickname, profile_url, bio, followers, content_type, platform, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			phone_number = EXCLUDED.phone_number,
			nickname = EXCLUDED.nickname,
			profile_url = EXCLUDED.profile_url,
			bio = EXCLUDED.bio,
			followers = EXCLUDED.followers,
			content_type = EXCLUDED.content_type,
			platform = EXCLUDED.platform,
			updated_at = EXCLUDED.updated_at`,
		influencer.ID, influencer.PhoneNumber, nilIfEmpty(influencer.Nickname),
		nilIfEmpty(influencer.ProfileURL), nilIfEmpty(influencer.Bio), influencer.Followers,
		nilIfEmpty(influencer.ContentType), nilIfEmpty(influencer.Platform),
		influencer.CreatedAt, influencer.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveInfluencer failed", "error", err, "influencerID", influencer.ID)
		return fmt.Errorf("failed to save influencer %s: %w", influencer.ID, err)
	}
	slog.Debug("PostgresStore SaveInfluencer succeeded", "influencerID", influencer.ID)
	return nil
}

func (s *PostgresStore) GetInfluencer(ctx context.Context, influencerID string) (*models.Influencer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, phone_number, nickname, profile_url, bio, followers, content_type, platform, created_at, updated_at
		FROM influencers WHERE id = $1`, influencerID)
	inf, err := scanInfluencerRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetInfluencer failed", "error", err, "influencerID", influencerID)
		return nil, err
	}
	return inf, nil
}

func (s *PostgresStore) ListInfluencers(ctx context.Context) ([]*models.Influencer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, phone_number, nickname, profile_url, bio, followers, content_type, platform, created_at, updated_at
		FROM influencers ORDER BY created_at`)
	if err != nil {
		slog.Error("PostgresStore ListInfluencers query failed", "error", err)
		return nil, fmt.Errorf("failed to query influencers: %w", err)
	}
	defer rows.Close()
	return scanInfluencers(rows)
}

func (s *PostgresStore) AddReceipt(ctx context.Context, r models.Receipt) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO receipts (recipient, status, time) VALUES ($1, $2, $3)`, r.To, r.Status, r.Time)
	if err != nil {
		slog.Error("PostgresStore AddReceipt failed", "error", err, "to", r.To)
		return fmt.Errorf("failed to insert receipt for %s: %w", r.To, err)
	}
	slog.Debug("PostgresStore AddReceipt succeeded", "to", r.To, "status", r.Status)
	return nil
}

func (s *PostgresStore) GetReceipts(ctx context.Context) ([]models.Receipt, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT recipient, status, time FROM receipts`)
	if err != nil {
		slog.Error("PostgresStore GetReceipts query failed", "error", err)
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()
	var receipts []models.Receipt
	for rows.Next() {
		var r models.Receipt
		if err := rows.Scan(&r.To, &r.Status, &r.Time); err != nil {
			slog.Error("PostgresStore GetReceipts scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan receipt row: %w", err)
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore GetReceipts rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate receipt rows: %w", err)
	}
	return receipts, nil
}

func (s *PostgresStore) AddResponse(ctx context.Context, r models.Response) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO responses (sender, body, time) VALUES ($1, $2, $3)`, r.From, r.Body, r.Time)
	if err != nil {
		slog.Error("PostgresStore AddResponse failed", "error", err, "from", r.From)
		return fmt.Errorf("failed to insert response from %s: %w", r.From, err)
	}
	slog.Debug("PostgresStore AddResponse succeeded", "from", r.From)
	return nil
}

func (s *PostgresStore) GetResponses(ctx context.Context) ([]models.Response, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT sender, body, time FROM responses`)
	if err != nil {
		slog.Error("PostgresStore GetResponses query failed", "error", err)
		return nil, fmt.Errorf("failed to query responses: %w", err)
	}
	defer rows.Close()
	var responses []models.Response
	for rows.Next() {
		var r models.Response
		if err := rows.Scan(&r.From, &r.Body, &r.Time); err != nil {
			slog.Error("PostgresStore GetResponses scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan response row: %w", err)
		}
		responses = append(responses, r)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore GetResponses rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate response rows: %w", err)
	}
	return responses, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
