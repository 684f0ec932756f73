package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/FelixNg1022/agent-workflow/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// marshalConversation serializes a conversation state to its JSON document
// form for storage.
func marshalConversation(state *models.ConversationState) (string, error) {
	doc, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("failed to marshal conversation %s: %w", state.ID, err)
	}
	return string(doc), nil
}

// unmarshalConversation rebuilds a conversation state from its stored JSON
// document, normalizing nil maps so callers can always write facts.
func unmarshalConversation(doc string) (*models.ConversationState, error) {
	var state models.ConversationState
	if err := json.Unmarshal([]byte(doc), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation document: %w", err)
	}
	if state.Facts == nil {
		state.Facts = make(map[models.FactKey]string)
	}
	return &state, nil
}

// scanConversationRow scans a single conversation document row, translating
// sql.ErrNoRows into the store's not-found sentinel.
func scanConversationRow(row *sql.Row, key string) (*models.ConversationState, error) {
	var doc string
	err := row.Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, models.ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan conversation row for %s: %w", key, err)
	}
	return unmarshalConversation(doc)
}

// scanConversations drains a result set of conversation documents.
func scanConversations(rows *sql.Rows) ([]*models.ConversationState, error) {
	var out []*models.ConversationState
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		state, err := unmarshalConversation(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversation rows: %w", err)
	}
	return out, nil
}

// scanInfluencerRow scans an influencer from a single sql.Row.
func scanInfluencerRow(row *sql.Row) (*models.Influencer, error) {
	var inf models.Influencer
	var nickname, profileURL, bio, contentType, platform sql.NullString
	err := row.Scan(&inf.ID, &inf.PhoneNumber, &nickname, &profileURL, &bio,
		&inf.Followers, &contentType, &platform, &inf.CreatedAt, &inf.UpdatedAt)
	if err != nil {
		return nil, err
	}
	inf.Nickname = nickname.String
	inf.ProfileURL = profileURL.String
	inf.Bio = bio.String
	inf.ContentType = contentType.String
	inf.Platform = platform.String
	return &inf, nil
}

// scanInfluencers drains an influencer result set.
func scanInfluencers(rows *sql.Rows) ([]*models.Influencer, error) {
	var out []*models.Influencer
	for rows.Next() {
		var inf models.Influencer
		var nickname, profileURL, bio, contentType, platform sql.NullString
		err := rows.Scan(&inf.ID, &inf.PhoneNumber, &nickname, &profileURL, &bio,
			&inf.Followers, &contentType, &platform, &inf.CreatedAt, &inf.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan influencer row: %w", err)
		}
		inf.Nickname = nickname.String
		inf.ProfileURL = profileURL.String
		inf.Bio = bio.String
		inf.ContentType = contentType.String
		inf.Platform = platform.String
		out = append(out, &inf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate influencer rows: %w", err)
	}
	return out, nil
}
