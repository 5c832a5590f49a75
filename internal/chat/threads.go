package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"bookingchat/internal/redis"
)

// ErrUnauthenticated is returned whenever no authenticated identity is present.
var ErrUnauthenticated = errors.New("user not authenticated")

// SessionKey is the durable identity-to-conversation binding for one user.
// Exactly one key exists per authenticated identity and it is stable across
// calls.
type SessionKey string

// SessionKeyFor derives the session key from an authenticated user id.
func SessionKeyFor(userID int64) (SessionKey, error) {
	if userID <= 0 {
		return "", ErrUnauthenticated
	}
	return SessionKey("user_" + strconv.FormatInt(userID, 10)), nil
}

const threadKeyPrefix = "thread:"

// ThreadStore is the durable string store holding session-to-thread mappings.
// *redis.Client satisfies it.
type ThreadStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// ThreadCreator creates remote conversation threads.
type ThreadCreator interface {
	CreateThread(ctx context.Context) (string, error)
}

// ThreadRegistry maps session keys to remote thread ids, creating threads
// lazily. The lookup-then-create has no cross-process lock: two concurrent
// first requests for one session may each create a thread, last write wins and
// the orphaned thread is left behind on the remote service.
type ThreadRegistry struct {
	store   ThreadStore
	threads ThreadCreator
}

// NewThreadRegistry wires the registry to its store and thread source.
func NewThreadRegistry(store ThreadStore, threads ThreadCreator) *ThreadRegistry {
	return &ThreadRegistry{store: store, threads: threads}
}

// GetOrCreate returns the thread id recorded for the session, creating and
// recording a new remote thread when none exists yet.
func (r *ThreadRegistry) GetOrCreate(ctx context.Context, session SessionKey) (string, error) {
	threadID, err := r.store.Get(ctx, threadKeyPrefix+string(session))
	if err == nil && threadID != "" {
		return threadID, nil
	}
	if err != nil && !errors.Is(err, redis.ErrCacheMiss) {
		return "", fmt.Errorf("lookup thread for %s: %w", session, err)
	}
	return r.Reset(ctx, session)
}

// Reset unconditionally creates a new remote thread and overwrites the stored
// mapping. Used to clear a session's history.
func (r *ThreadRegistry) Reset(ctx context.Context, session SessionKey) (string, error) {
	threadID, err := r.threads.CreateThread(ctx)
	if err != nil {
		return "", fmt.Errorf("create thread for %s: %w", session, err)
	}
	// Mappings never expire; one record accumulates per session key.
	if err := r.store.Set(ctx, threadKeyPrefix+string(session), threadID, 0); err != nil {
		return "", fmt.Errorf("store thread for %s: %w", session, err)
	}
	return threadID, nil
}
