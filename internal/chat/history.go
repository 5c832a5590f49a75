package chat

import (
	"context"

	"bookingchat/internal/models"
)

// HistoryProjector renders a session's remote thread as the chat history shown
// in the widget: hidden messages dropped, oldest first, content flattened to
// plain text.
type HistoryProjector struct {
	registry *ThreadRegistry
	client   AssistantClient
}

// NewHistoryProjector wires the projector to the registry and assistant client.
func NewHistoryProjector(registry *ThreadRegistry, client AssistantClient) *HistoryProjector {
	return &HistoryProjector{registry: registry, client: client}
}

// History returns the visible messages of the session in chronological order.
// A session that never chatted gets a fresh thread and an empty history.
func (p *HistoryProjector) History(ctx context.Context, session SessionKey) ([]models.Message, error) {
	threadID, err := p.registry.GetOrCreate(ctx, session)
	if err != nil {
		return nil, err
	}
	messages, err := p.client.ListMessages(ctx, threadID)
	if err != nil {
		return nil, err
	}
	// Provider order is newest first; walk backwards to get chronological order.
	history := make([]models.Message, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Hidden {
			continue
		}
		history = append(history, models.Message{Role: msg.Role, Content: msg.Text()})
	}
	return history, nil
}
