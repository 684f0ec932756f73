// Package genai provides GenAI-backed content generation, message polishing,
// and question answering for outreach conversations, using the OpenAI API.
package genai

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/FelixNg1022/agent-workflow/internal/models"
)

// systemPersona frames every completion: the model writes as the brand's
// partnerships coordinator.
const systemPersona = "You are a partnerships coordinator for a consumer brand, " +
	"messaging a content creator on WhatsApp about a paid collaboration. " +
	"Write warm, concise messages in plain language. Never invent terms, prices, " +
	"or dates that were not provided. Keep replies under 120 words."

// chatCompleter is the minimal slice of the OpenAI client the package needs,
// kept as an interface so tests can substitute a fake.
type chatCompleter interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
	Model  openai.ChatModel
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the default chat model.
func WithModel(model openai.ChatModel) Option {
	return func(o *Opts) { o.Model = model }
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat  chatCompleter
	model openai.ChatModel
}

// NewClient initializes a GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Client{chat: &cli.Chat.Completions, model: cfg.Model}, nil
}

// complete runs one system+user chat completion and returns the text.
func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// stageInstructions tell the model what each stage's message must accomplish.
var stageInstructions = map[models.Stage]string{
	models.StageGreet:          "Introduce the brand and ask the creator to share links to their social platforms.",
	models.StageConfirmType:    "Ask the creator to confirm the collaboration type (solo, collection, or commission), their price range, and the product arrangement.",
	models.StageBrief:          "Walk the creator through the campaign brief and ask them to confirm it reads well.",
	models.StageSchedule:       "Propose scheduling the content and ask the creator to confirm a posting window.",
	models.StageProduct:        "Ask the creator to pick the product they want to feature.",
	models.StageAddress:        "Ask for the creator's full shipping address so the product can be sent.",
	models.StageReminder:       "Let the creator know the product has shipped and ask them to confirm when it arrives.",
	models.StageScriptReminder: "Remind the creator to follow the agreed script guide and posting window.",
	models.StageFinal:          "Thank the creator for the collaboration and close warmly.",
}

// StageDraft generates the body text for a stage's outgoing message from the
// stage goal and the facts collected so far. Implements flow.ContentSource.
func (c *Client) StageDraft(ctx context.Context, stage models.Stage, facts map[models.FactKey]string) (string, error) {
	instruction, ok := stageInstructions[stage]
	if !ok {
		return "", fmt.Errorf("no instructions for stage %q", stage)
	}

	var b strings.Builder
	b.WriteString("Goal of this message: ")
	b.WriteString(instruction)
	if len(facts) > 0 {
		b.WriteString("\nKnown details about this collaboration:\n")
		b.WriteString(formatFacts(facts))
	}
	b.WriteString("\nWrite only the message body, no greeting line (one is already prepended).")
	return c.complete(ctx, systemPersona, b.String())
}

// Polish rewrites a drafted message for tone and flow without changing its
// meaning. Implements flow.Polisher.
func (c *Client) Polish(ctx context.Context, draft string) (string, error) {
	const polishSystem = "You edit WhatsApp messages for a brand's partnerships coordinator. " +
		"Improve tone and flow. Keep every factual detail exactly as written. " +
		"Return only the rewritten message."
	polished, err := c.complete(ctx, polishSystem, draft)
	if err != nil {
		return "", err
	}
	if polished == "" {
		return "", fmt.Errorf("polish returned empty message")
	}
	return polished, nil
}

// Answer responds to a creator's question using the collaboration facts as
// context, staying within the current stage. Implements flow.QuestionAnswerer.
func (c *Client) Answer(ctx context.Context, question string, stage models.Stage, facts map[models.FactKey]string) (string, error) {
	var b strings.Builder
	b.WriteString("The creator asked: ")
	b.WriteString(question)
	b.WriteString("\nCurrent step of the collaboration: ")
	b.WriteString(string(stage))
	if len(facts) > 0 {
		b.WriteString("\nAgreed details so far:\n")
		b.WriteString(formatFacts(facts))
	}
	b.WriteString("\nAnswer the question directly. If the answer depends on something not in the agreed details, " +
		"say the team will confirm it, do not guess. End by returning to the current step.")
	return c.complete(ctx, systemPersona, b.String())
}

// formatFacts renders facts as stable, sorted key: value lines.
func formatFacts(facts map[models.FactKey]string) string {
	keys := make([]string, 0, len(facts))
	for k := range facts {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %s\n", strings.ReplaceAll(k, "_", " "), facts[models.FactKey(k)])
	}
	return b.String()
}
