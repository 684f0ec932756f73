package flow

import (
	"context"

	"github.com/FelixNg1022/agent-workflow/internal/models"
)

// PoolEntry holds the canned text for one stage: an opener that fronts every
// outgoing message and an ask used when no generated content is available.
type PoolEntry struct {
	Opener string
	Ask    string
}

// ContentPool is a pure lookup of per-stage message text. The core never
// depends on specific wording, only on receiving some string.
type ContentPool struct {
	entries map[models.Stage]PoolEntry
}

// DefaultContentPool returns the built-in outreach message pool.
func DefaultContentPool() *ContentPool {
	return &ContentPool{entries: map[models.Stage]PoolEntry{
		models.StageGreet: {
			Opener: "Hi! We love your content and would like to talk about a collaboration.",
			Ask:    "Could you share links to your social platforms so we can take a look?",
		},
		models.StageConfirmType: {
			Opener: "Great to hear back from you!",
			Ask:    "Could you confirm the collaboration terms: type (solo/collection/commission), your price range, and preferred product arrangement?",
		},
		models.StageBrief: {
			Opener: "Here is the campaign brief for your review.",
			Ask:    "Please look it over and let us know once everything reads well. Happy to answer any questions.",
		},
		models.StageSchedule: {
			Opener: "Let's lock in timing.",
			Ask:    "What availability works for you? Please confirm a window and we will plan around it.",
		},
		models.StageProduct: {
			Opener: "Time to pick your product.",
			Ask:    "Please choose the product you'd like to feature from the catalog we shared.",
		},
		models.StageAddress: {
			Opener: "We'll get your product shipped out.",
			Ask:    "Could you send your full shipping address? We'll share tracking as soon as it goes out.",
		},
		models.StageReminder: {
			Opener: "Your package is on the way.",
			Ask:    "Please confirm once it arrives so we can move on to the next step.",
		},
		models.StageScriptReminder: {
			Opener: "A quick note before filming.",
			Ask:    "Please follow the script guide in the brief, and keep the agreed posting window. Let us know if anything needs adjusting.",
		},
		models.StageFinal: {
			Opener: "Thank you for the collaboration!",
			Ask:    "We'd love to work together again — we'll reach out when the next campaign comes up. All the best!",
		},
	}}
}

// Opener returns the stage's opener text, or "" for an unknown stage.
func (p *ContentPool) Opener(stage models.Stage) string {
	return p.entries[stage].Opener
}

// Ask returns the stage's ask text, or "" for an unknown stage.
func (p *ContentPool) Ask(stage models.Stage) string {
	return p.entries[stage].Ask
}

// StaticContentSource is the deterministic ContentSource fallback: it serves
// the pool's ask text verbatim, ignoring collected facts. Used when no GenAI
// client is configured and as the degrade path when generation fails.
type StaticContentSource struct {
	pool *ContentPool
}

// NewStaticContentSource creates a content source backed by the given pool.
func NewStaticContentSource(pool *ContentPool) *StaticContentSource {
	return &StaticContentSource{pool: pool}
}

// StageDraft returns the canned ask for the stage.
func (s *StaticContentSource) StageDraft(ctx context.Context, stage models.Stage, facts map[models.FactKey]string) (string, error) {
	return s.pool.Ask(stage), nil
}

// NoopPolisher passes drafts through unchanged. Used when no polishing
// backend is configured.
type NoopPolisher struct{}

// Polish returns the draft as-is.
func (NoopPolisher) Polish(ctx context.Context, draft string) (string, error) {
	return draft, nil
}
