package genai

import (
	"context"
	"log/slog"
	"strings"

	"github.com/FelixNg1022/agent-workflow/internal/models"
)

// classifySystem constrains the model to a single intent label so the output
// parses without a schema round-trip.
const classifySystem = "You classify a content creator's WhatsApp reply in a brand " +
	"collaboration conversation. Respond with exactly one word: accept, decline, " +
	"question, negotiate, or unclear. accept means the creator agrees with or answers " +
	"the current request. decline means they refuse or want out. question means they " +
	"ask something instead of answering. negotiate means they push back on price or " +
	"terms. Anything else is unclear."

// FallbackClassifier is the deterministic classifier the model-backed one
// degrades to, and the source of extracted entities in both cases.
type FallbackClassifier interface {
	Classify(ctx context.Context, rawReply string, state *models.ConversationState) (models.DecodedReply, models.Intent, error)
}

// IntentClassifier assigns reply intents with a chat model while leaving
// entity extraction to the deterministic fallback. On any model failure the
// fallback's intent stands, so classification never blocks a conversation on
// the API. Implements flow.Classifier.
type IntentClassifier struct {
	client   *Client
	fallback FallbackClassifier
}

// NewIntentClassifier creates a model-backed intent classifier over the given
// fallback.
func NewIntentClassifier(client *Client, fallback FallbackClassifier) *IntentClassifier {
	return &IntentClassifier{client: client, fallback: fallback}
}

// Classify runs the fallback for decoding and entity extraction, then asks
// the model for the intent label. Empty replies keep the fallback's error so
// the caller can treat them as classification failures.
func (ic *IntentClassifier) Classify(ctx context.Context, rawReply string, state *models.ConversationState) (models.DecodedReply, models.Intent, error) {
	decoded, ruleIntent, err := ic.fallback.Classify(ctx, rawReply, state)
	if err != nil {
		return decoded, ruleIntent, err
	}

	var b strings.Builder
	b.WriteString("Current step of the collaboration: ")
	b.WriteString(string(state.CurrentStage))
	b.WriteString("\nCreator's reply: ")
	b.WriteString(rawReply)
	label, err := ic.client.complete(ctx, classifySystem, b.String())
	if err != nil {
		slog.Warn("IntentClassifier.Classify: completion failed, using rule-based intent",
			"stage", state.CurrentStage, "error", err)
		return decoded, ruleIntent, nil
	}

	intent, ok := parseIntentLabel(label)
	if !ok {
		slog.Warn("IntentClassifier.Classify: unparseable label, using rule-based intent",
			"stage", state.CurrentStage, "label", label)
		return decoded, ruleIntent, nil
	}
	return decoded, intent, nil
}

// parseIntentLabel maps the model's one-word answer onto a reply intent.
func parseIntentLabel(label string) (models.Intent, bool) {
	label = strings.ToLower(strings.Trim(strings.TrimSpace(label), ".!\"'"))
	intent := models.Intent(label)
	if models.IsReplyIntent(intent) {
		return intent, true
	}
	return models.IntentUnclear, false
}
