package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"bookingchat/internal/models"
)

func newTestService(client *fakeAssistant) (*Service, *memoryStore) {
	store := newMemoryStore()
	svc := NewService(store, client, &fakeGateway{}, PollPolicy{})
	svc.orchestrator.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return svc, store
}

func TestSendMessageReturnsReply(t *testing.T) {
	client := &fakeAssistant{
		runStates: []*models.Run{{ID: "run_1", Status: models.RunCompleted}},
		listed: []models.ThreadMessage{
			{ID: "msg_1", Role: models.RoleAssistant, Segments: []string{"Hi!"}},
		},
	}
	svc, _ := newTestService(client)

	reply, err := svc.SendMessage(context.Background(), 1, "hello", false)
	if err != nil {
		t.Fatalf("SendMessage error: %v", err)
	}
	if reply != "Hi!" {
		t.Fatalf("unexpected reply %q", reply)
	}
}

func TestSendMessageDegradesToApology(t *testing.T) {
	client := &fakeAssistant{startErr: errors.New("upstream down")}
	svc, _ := newTestService(client)

	reply, err := svc.SendMessage(context.Background(), 1, "hello", false)
	if err != nil {
		t.Fatalf("expected degraded reply, got error %v", err)
	}
	if reply != "Sorry, there was an error processing your message." {
		t.Fatalf("unexpected reply %q", reply)
	}
}

func TestSendMessageUnauthenticated(t *testing.T) {
	svc, _ := newTestService(&fakeAssistant{})

	if _, err := svc.SendMessage(context.Background(), 0, "hello", false); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestHistoryDegradesToEmpty(t *testing.T) {
	client := &fakeAssistant{listErr: errors.New("upstream down")}
	svc, _ := newTestService(client)

	history, err := svc.History(context.Background(), 1)
	if err != nil {
		t.Fatalf("expected degraded history, got error %v", err)
	}
	if history == nil || len(history) != 0 {
		t.Fatalf("expected empty non-nil history, got %+v", history)
	}
}

func TestHistoryUnauthenticated(t *testing.T) {
	svc, _ := newTestService(&fakeAssistant{})

	if _, err := svc.History(context.Background(), -1); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestClearHistoryRebindsThread(t *testing.T) {
	client := &fakeAssistant{}
	svc, store := newTestService(client)
	ctx := context.Background()

	if _, err := svc.History(ctx, 1); err != nil {
		t.Fatalf("History error: %v", err)
	}
	before := store.data[threadKeyPrefix+"user_1"]

	if err := svc.ClearHistory(ctx, 1); err != nil {
		t.Fatalf("ClearHistory error: %v", err)
	}
	after := store.data[threadKeyPrefix+"user_1"]
	if after == "" || after == before {
		t.Fatalf("thread not rebound: %q vs %q", before, after)
	}
}

func TestClearHistoryUnauthenticated(t *testing.T) {
	svc, _ := newTestService(&fakeAssistant{})

	if err := svc.ClearHistory(context.Background(), 0); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}
