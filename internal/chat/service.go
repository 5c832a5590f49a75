package chat

import (
	"context"
	"log"

	"bookingchat/internal/models"
)

const apologyReply = "Sorry, there was an error processing your message."

// Service is the single entry point HTTP handlers talk to. It absorbs
// orchestration failures so the widget always gets something renderable: a
// failed turn becomes an apology message, a failed history read becomes an
// empty history. Only authentication errors propagate.
type Service struct {
	registry     *ThreadRegistry
	orchestrator *Orchestrator
	history      *HistoryProjector
}

// NewService assembles the chat core from its injected collaborators.
func NewService(store ThreadStore, client AssistantClient, gateway BookingGateway, poll PollPolicy) *Service {
	registry := NewThreadRegistry(store, client)
	return &Service{
		registry:     registry,
		orchestrator: NewOrchestrator(registry, client, NewToolDispatcher(gateway), poll),
		history:      NewHistoryProjector(registry, client),
	}
}

// SendMessage runs one conversational turn for the user and returns the
// assistant's reply.
func (s *Service) SendMessage(ctx context.Context, userID int64, text string, hidden bool) (string, error) {
	session, err := SessionKeyFor(userID)
	if err != nil {
		return "", err
	}
	reply, err := s.orchestrator.RunTurn(ctx, session, text, hidden)
	if err != nil {
		log.Printf("chat: turn failed for %s: %v", session, err)
		return apologyReply, nil
	}
	return reply, nil
}

// History returns the user's visible chat history.
func (s *Service) History(ctx context.Context, userID int64) ([]models.Message, error) {
	session, err := SessionKeyFor(userID)
	if err != nil {
		return nil, err
	}
	history, err := s.history.History(ctx, session)
	if err != nil {
		log.Printf("chat: history failed for %s: %v", session, err)
		return []models.Message{}, nil
	}
	return history, nil
}

// ClearHistory detaches the user's session from its thread by binding it to a
// fresh empty one. The old thread is not deleted remotely.
func (s *Service) ClearHistory(ctx context.Context, userID int64) error {
	session, err := SessionKeyFor(userID)
	if err != nil {
		return err
	}
	if _, err := s.registry.Reset(ctx, session); err != nil {
		return err
	}
	return nil
}
