// Package models defines state structures for outreach conversations.
package models

import "time"

// DecodedReply is the structured parse of the most recent inbound reply.
// Entity extraction is stage-aware: the same raw text decodes differently
// depending on the stage that was awaiting it.
type DecodedReply struct {
	RawText     string            `json:"raw_text"`
	Stage       Stage             `json:"stage"`
	Entities    map[string]string `json:"entities,omitempty"`
	HasQuestion bool              `json:"has_question"`
}

// Entity returns a decoded entity value, or "" if absent.
func (d *DecodedReply) Entity(key string) string {
	if d == nil || d.Entities == nil {
		return ""
	}
	return d.Entities[key]
}

// ConversationState is the mutable record of one influencer's progress
// through the outreach workflow. It is exclusively owned by the single
// logical thread of control processing that conversation at any instant.
type ConversationState struct {
	ID            string `json:"id"`
	InfluencerRef string `json:"influencer_ref"`
	PhoneNumber   string `json:"phone_number"`

	CurrentStage      Stage `json:"current_stage"`
	CurrentStageIndex int   `json:"current_stage_index"`
	StageCompleted    bool  `json:"stage_completed"`

	Phase Phase `json:"phase"`

	PendingOutgoing string        `json:"pending_outgoing,omitempty"`
	PendingIncoming string        `json:"pending_incoming,omitempty"`
	Decoded         *DecodedReply `json:"decoded_reply,omitempty"`
	Intent          Intent        `json:"intent,omitempty"`
	Route           Route         `json:"route,omitempty"`

	NeedsHumanReview bool `json:"needs_human_review"`
	WorkflowComplete bool `json:"workflow_complete"`

	// UnclearStreak counts consecutive unclear intents within the current
	// stage. Reset on any non-unclear intent and on stage advancement.
	UnclearStreak int `json:"unclear_streak"`

	// Facts accumulate across stages; keys are append-only and written at
	// most once, by the stage that owns them.
	Facts map[FactKey]string `json:"collected_facts"`

	// MessageLog is the append-only audit record of exchanged messages.
	MessageLog []MessageRecord `json:"message_log"`

	LastActivityAt time.Time `json:"last_activity_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewConversationState builds the initial state for a fresh outreach thread:
// first catalog stage, all flags false, no collected facts.
func NewConversationState(id, influencerRef, phoneNumber string) *ConversationState {
	now := time.Now()
	catalog := StageCatalog()
	return &ConversationState{
		ID:                id,
		InfluencerRef:     influencerRef,
		PhoneNumber:       phoneNumber,
		CurrentStage:      catalog[0],
		CurrentStageIndex: 0,
		Phase:             PhaseDispatching,
		Facts:             make(map[FactKey]string),
		LastActivityAt:    now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Fact returns a collected fact value and whether it has been collected. A
// missing key means "not yet collected", never "collected as empty".
func (s *ConversationState) Fact(key FactKey) (string, bool) {
	v, ok := s.Facts[key]
	return v, ok
}

// AppendMessage appends an entry to the audit log. The log is never mutated
// in place.
func (s *ConversationState) AppendMessage(dir MessageDirection, body string) {
	s.MessageLog = append(s.MessageLog, MessageRecord{
		Direction: dir,
		Stage:     s.CurrentStage,
		Body:      body,
		Timestamp: time.Now(),
	})
}

// Touch updates the activity and modification timestamps.
func (s *ConversationState) Touch() {
	now := time.Now()
	s.LastActivityAt = now
	s.UpdatedAt = now
}

// Clone returns a deep copy, used for escalation snapshots so notifiers never
// hold a writable reference to live state.
func (s *ConversationState) Clone() *ConversationState {
	out := *s
	out.Facts = make(map[FactKey]string, len(s.Facts))
	for k, v := range s.Facts {
		out.Facts[k] = v
	}
	out.MessageLog = make([]MessageRecord, len(s.MessageLog))
	copy(out.MessageLog, s.MessageLog)
	if s.Decoded != nil {
		decoded := *s.Decoded
		if s.Decoded.Entities != nil {
			decoded.Entities = make(map[string]string, len(s.Decoded.Entities))
			for k, v := range s.Decoded.Entities {
				decoded.Entities[k] = v
			}
		}
		out.Decoded = &decoded
	}
	return &out
}

// StatePatch is the validated partial update a stage handler may return
// alongside its draft. The dispatcher enforces that a handler only touches
// fact keys its stage owns, so one stage cannot corrupt another stage's
// facts.
type StatePatch struct {
	Facts map[FactKey]string
}
