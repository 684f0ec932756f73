// Package recovery restores engine state after an application restart: it
// re-registers reply hooks for live conversations and escalates any
// conversation that was caught mid-cycle by the crash.
package recovery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/FelixNg1022/agent-workflow/internal/messaging"
	"github.com/FelixNg1022/agent-workflow/internal/models"
	"github.com/FelixNg1022/agent-workflow/internal/store"
)

// Recoverable defines the interface for components that can recover their
// state during application startup.
type Recoverable interface {
	RecoverState(ctx context.Context, st store.Store) error
}

// Manager orchestrates recovery of all registered components.
type Manager struct {
	st           store.Store
	recoverables []Recoverable
}

// NewManager creates a recovery manager over the given store.
func NewManager(st store.Store) *Manager {
	return &Manager{st: st}
}

// Register adds a component that can be recovered.
func (m *Manager) Register(r Recoverable) {
	m.recoverables = append(m.recoverables, r)
}

// RecoverAll performs recovery of all registered components.
func (m *Manager) RecoverAll(ctx context.Context) error {
	slog.Info("Starting application recovery", "components", len(m.recoverables))

	recoveredCount := 0
	errorCount := 0
	for _, recoverable := range m.recoverables {
		if err := recoverable.RecoverState(ctx, m.st); err != nil {
			slog.Error("Component recovery failed", "error", err, "component", fmt.Sprintf("%T", recoverable))
			errorCount++
			continue
		}
		recoveredCount++
	}

	slog.Info("Application recovery completed", "recovered", recoveredCount, "errors", errorCount)
	if errorCount > 0 {
		return fmt.Errorf("recovery completed with %d errors out of %d components", errorCount, len(m.recoverables))
	}
	return nil
}

// InterruptedDriver is the slice of the workflow driver conversation recovery
// needs.
type InterruptedDriver interface {
	RecoverInterrupted(ctx context.Context) error
}

// HookRegistrar re-attaches reply hooks for live conversations.
type HookRegistrar interface {
	RegisterHook(recipient string, action messaging.ResponseAction) error
}

// HookFactory builds the reply hook for one conversation.
type HookFactory func(conversationID string) messaging.ResponseAction

// ConversationRecovery restores the workflow engine's runtime state: it
// escalates conversations interrupted mid-cycle and re-registers reply hooks
// for every conversation still awaiting an influencer.
type ConversationRecovery struct {
	driver    InterruptedDriver
	registrar HookRegistrar
	hookFor   HookFactory
}

// NewConversationRecovery creates the conversation recovery component.
func NewConversationRecovery(driver InterruptedDriver, registrar HookRegistrar, hookFor HookFactory) *ConversationRecovery {
	return &ConversationRecovery{driver: driver, registrar: registrar, hookFor: hookFor}
}

// RecoverState implements Recoverable.
func (cr *ConversationRecovery) RecoverState(ctx context.Context, st store.Store) error {
	// Interrupted cycles first: a conversation stuck in a processing phase
	// can never receive another reply, so it must be escalated before hooks
	// are attached.
	if err := cr.driver.RecoverInterrupted(ctx); err != nil {
		return fmt.Errorf("recovering interrupted conversations: %w", err)
	}

	conversations, err := st.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("listing conversations: %w", err)
	}

	registered := 0
	for _, state := range conversations {
		if state.Phase.Terminal() {
			continue
		}
		if err := cr.registrar.RegisterHook(state.PhoneNumber, cr.hookFor(state.ID)); err != nil {
			slog.Error("ConversationRecovery: hook registration failed",
				"error", err, "conversationID", state.ID, "phone", state.PhoneNumber)
			continue
		}
		registered++
		slog.Debug("ConversationRecovery: hook restored",
			"conversationID", state.ID, "stage", state.CurrentStage, "phase", state.Phase)
	}

	slog.Info("ConversationRecovery: hooks restored", "count", registered, "total", len(conversations))
	return nil
}

// EscalationSummary logs the escalated backlog at startup so operators see
// outstanding reviews immediately after a restart.
type EscalationSummary struct{}

// RecoverState implements Recoverable.
func (EscalationSummary) RecoverState(ctx context.Context, st store.Store) error {
	conversations, err := st.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("listing conversations: %w", err)
	}
	pending := 0
	for _, state := range conversations {
		if state.Phase == models.PhaseEscalated {
			pending++
		}
	}
	if pending > 0 {
		slog.Warn("EscalationSummary: conversations awaiting human review", "count", pending)
	}
	return nil
}
