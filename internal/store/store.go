// Package store provides storage backends for the outreach workflow engine.
//
// It includes an in-memory store for tests and ephemeral runs, plus SQLite
// and PostgreSQL backends for persistent deployments. Conversation state is
// stored as a JSON document per row so the workflow schema can evolve without
// migrations; lookup columns (id, phone, phase) are first-class.
package store

import (
	"context"
	"strings"
	"sync"

	"github.com/FelixNg1022/agent-workflow/internal/models"
)

// Opts holds configuration options for store backends.
type Opts struct {
	// DSN is the data source name: a file path for SQLite, a connection
	// string or URL for Postgres.
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the data source name.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports which driver a DSN belongs to: "postgres" for
// Postgres URLs and key=value connection strings, "sqlite3" for everything
// else (treated as a file path).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	for _, kv := range []string{"host=", "user=", "dbname=", "password="} {
		if strings.Contains(dsn, kv) {
			return "postgres"
		}
	}
	return "sqlite3"
}

// Store is the persistence interface the engine depends on. All backends
// implement it; the conversation methods also satisfy flow.StateManager.
type Store interface {
	SaveConversation(ctx context.Context, state *models.ConversationState) error
	GetConversation(ctx context.Context, conversationID string) (*models.ConversationState, error)
	GetConversationByPhone(ctx context.Context, phoneNumber string) (*models.ConversationState, error)
	ListConversations(ctx context.Context) ([]*models.ConversationState, error)
	DeleteConversation(ctx context.Context, conversationID string) error

	SaveInfluencer(ctx context.Context, influencer *models.Influencer) error
	GetInfluencer(ctx context.Context, influencerID string) (*models.Influencer, error)
	ListInfluencers(ctx context.Context) ([]*models.Influencer, error)

	AddReceipt(ctx context.Context, r models.Receipt) error
	GetReceipts(ctx context.Context) ([]models.Receipt, error)
	AddResponse(ctx context.Context, r models.Response) error
	GetResponses(ctx context.Context) ([]models.Response, error)

	Close() error
}

// InMemoryStore keeps everything in maps guarded by one mutex. Used by tests
// and by runs without a configured DSN.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*models.ConversationState
	byPhone       map[string]string
	influencers   map[string]*models.Influencer
	receipts      []models.Receipt
	responses     []models.Response
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conversations: make(map[string]*models.ConversationState),
		byPhone:       make(map[string]string),
		influencers:   make(map[string]*models.Influencer),
	}
}

func (s *InMemoryStore) SaveConversation(ctx context.Context, state *models.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[state.ID] = state.Clone()
	s.byPhone[state.PhoneNumber] = state.ID
	return nil
}

func (s *InMemoryStore) GetConversation(ctx context.Context, conversationID string) (*models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.conversations[conversationID]
	if !ok {
		return nil, models.ErrConversationNotFound
	}
	return state.Clone(), nil
}

func (s *InMemoryStore) GetConversationByPhone(ctx context.Context, phoneNumber string) (*models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPhone[phoneNumber]
	if !ok {
		return nil, models.ErrConversationNotFound
	}
	state, ok := s.conversations[id]
	if !ok {
		return nil, models.ErrConversationNotFound
	}
	return state.Clone(), nil
}

func (s *InMemoryStore) ListConversations(ctx context.Context) ([]*models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.ConversationState, 0, len(s.conversations))
	for _, state := range s.conversations {
		out = append(out, state.Clone())
	}
	return out, nil
}

func (s *InMemoryStore) DeleteConversation(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.conversations[conversationID]
	if !ok {
		return models.ErrConversationNotFound
	}
	delete(s.byPhone, state.PhoneNumber)
	delete(s.conversations, conversationID)
	return nil
}

func (s *InMemoryStore) SaveInfluencer(ctx context.Context, influencer *models.Influencer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *influencer
	s.influencers[influencer.ID] = &cp
	return nil
}

func (s *InMemoryStore) GetInfluencer(ctx context.Context, influencerID string) (*models.Influencer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inf, ok := s.influencers[influencerID]
	if !ok {
		return nil, nil
	}
	cp := *inf
	return &cp, nil
}

func (s *InMemoryStore) ListInfluencers(ctx context.Context) ([]*models.Influencer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Influencer, 0, len(s.influencers))
	for _, inf := range s.influencers {
		cp := *inf
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemoryStore) AddReceipt(ctx context.Context, r models.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts = append(s.receipts, r)
	return nil
}

func (s *InMemoryStore) GetReceipts(ctx context.Context) ([]models.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Receipt, len(s.receipts))
	copy(out, s.receipts)
	return out, nil
}

func (s *InMemoryStore) AddResponse(ctx context.Context, r models.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, r)
	return nil
}

func (s *InMemoryStore) GetResponses(ctx context.Context) ([]models.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Response, len(s.responses))
	copy(out, s.responses)
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
