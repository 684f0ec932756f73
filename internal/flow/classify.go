package flow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/FelixNg1022/agent-workflow/internal/models"
)

// RuleClassifier is the deterministic, stage-aware reply classifier. The same
// text always yields the same decoded structure and intent for the same stage.
// Ambiguity degrades to IntentUnclear, never to an optimistic accept.
type RuleClassifier struct{}

// NewRuleClassifier creates the rule-based classifier.
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

var (
	declineMarkers = []string{
		"not interested", "no thanks", "no thank you", "decline", "pass on this",
		"stop messaging", "don't contact", "do not contact", "unsubscribe",
		"leave me alone", "not a fit", "not for me",
	}
	negotiateMarkers = []string{
		"price", "rate", "budget", "fee", "cost", "charge", "discount",
		"counter", "negotiate", "my usual rate", "higher", "lower", "paid",
		"compensation", "how much",
	}
	questionWords = []string{
		"what", "when", "where", "who", "why", "how", "which",
		"can you", "could you", "do you", "does", "is there", "are there",
	}
	affirmations = []string{
		"yes", "yeah", "yep", "sure", "ok", "okay", "sounds good", "confirmed",
		"confirm", "agreed", "agree", "deal", "works for me", "got it",
		"received", "looks good", "perfect", "great", "will do", "done",
		"absolutely", "of course",
	}
)

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

func hasAffirmation(text string) bool {
	return containsAny(text, affirmations)
}

func looksLikeQuestion(text string) bool {
	if strings.Contains(text, "?") {
		return true
	}
	for _, w := range questionWords {
		if strings.HasPrefix(text, w+" ") || text == w {
			return true
		}
	}
	return false
}

// Classify decodes a raw reply against the conversation's current stage.
func (c *RuleClassifier) Classify(ctx context.Context, rawReply string, state *models.ConversationState) (models.DecodedReply, models.Intent, error) {
	decoded := models.DecodedReply{
		RawText:  rawReply,
		Stage:    state.CurrentStage,
		Entities: make(map[string]string),
	}

	text := strings.ToLower(strings.TrimSpace(rawReply))
	if text == "" {
		return decoded, models.IntentUnclear, models.ErrClassificationFailure
	}

	decoded.HasQuestion = looksLikeQuestion(text)

	// Rejection and price pushback outrank everything else; a reply that
	// declines while asking a question still routes to a human.
	if containsAny(text, declineMarkers) {
		return decoded, models.IntentDecline, nil
	}
	if containsAny(text, negotiateMarkers) {
		return decoded, models.IntentNegotiate, nil
	}
	if decoded.HasQuestion {
		return decoded, models.IntentQuestion, nil
	}

	extractEntities(&decoded, rawReply, text)

	intent := models.IntentUnclear
	if hasAffirmation(text) || len(decoded.Entities) > 0 {
		intent = models.IntentAccept
	}
	slog.Debug("RuleClassifier.Classify: reply classified",
		"conversationID", state.ID, "stage", state.CurrentStage,
		"intent", intent, "entities", len(decoded.Entities))
	return decoded, intent, nil
}

// extractEntities pulls stage-relevant values out of the reply. Entities are
// keyed by the fact key they feed, so the owning handler can commit them
// directly.
func extractEntities(decoded *models.DecodedReply, raw, text string) {
	switch decoded.Stage {
	case models.StageGreet:
		if links := extractLinks(raw); links != "" {
			decoded.Entities[string(models.FactPlatformLinks)] = links
		}
	case models.StageConfirmType:
		for _, kind := range []string{"solo", "collection", "commission"} {
			if strings.Contains(text, kind) {
				decoded.Entities[string(models.FactCollaborationType)] = kind
				break
			}
		}
		if containsAny(text, []string{"$", "usd", "per post", "per video"}) {
			decoded.Entities[string(models.FactPriceRange)] = strings.TrimSpace(raw)
		}
		for _, arrangement := range []string{"gift", "sample", "purchase", "loan"} {
			if strings.Contains(text, arrangement) {
				decoded.Entities[string(models.FactProductType)] = arrangement
				break
			}
		}
	case models.StageBrief:
		if hasAffirmation(text) {
			decoded.Entities[string(models.FactBriefAcknowledged)] = models.FactTrue
		}
	case models.StageSchedule:
		if hasAffirmation(text) {
			decoded.Entities[string(models.FactScheduleConfirmed)] = models.FactTrue
		}
	case models.StageProduct:
		// Any substantive non-affirmation reply names the chosen product.
		if !hasAffirmation(text) && len(text) >= 2 {
			decoded.Entities[string(models.FactProductChoice)] = strings.TrimSpace(raw)
		}
	case models.StageAddress:
		if looksLikeAddress(text) {
			decoded.Entities[string(models.FactShippingAddress)] = strings.TrimSpace(raw)
		}
	case models.StageReminder:
		if hasAffirmation(text) {
			decoded.Entities[string(models.FactReceiptConfirmed)] = models.FactTrue
		}
	case models.StageScriptReminder:
		if hasAffirmation(text) {
			decoded.Entities[string(models.FactScriptAcknowledged)] = models.FactTrue
		}
	}
}

// extractLinks collects URL-looking tokens from the reply, comma-joined.
func extractLinks(raw string) string {
	var links []string
	for _, tok := range strings.Fields(raw) {
		t := strings.Trim(tok, ".,;")
		lower := strings.ToLower(t)
		if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") ||
			strings.HasPrefix(lower, "www.") || strings.Contains(lower, ".com/") {
			links = append(links, t)
		}
	}
	return strings.Join(links, ", ")
}

// looksLikeAddress applies a cheap structural check: a street address carries
// digits and several words.
func looksLikeAddress(text string) bool {
	if !strings.ContainsAny(text, "0123456789") {
		return false
	}
	return len(strings.Fields(text)) >= 3
}
