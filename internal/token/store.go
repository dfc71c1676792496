// Package token keeps the session token fresh for the lifetime of a
// conference or registration. Store holds the current value; Refresher
// schedules refresh calls at the token's half-life.
package token

import (
	"context"
	"sync"
	"time"

	"confstream/client/internal/domain"
)

// task is one in-flight token replacement. Readers of the store block on
// it instead of racing the refresh.
type task struct {
	done  chan struct{}
	token domain.Token
	err   error
}

// Store holds the current token and serializes replacement. A failed
// replacement leaves its error sticky: readers see it until the next
// successful Replace or ReplaceWithTask.
type Store struct {
	mu      sync.Mutex
	token   domain.Token
	pending *task
	now     func() time.Time
}

func NewStore(tok domain.Token) *Store {
	return &Store{token: tok, now: time.Now}
}

// Token returns the current token, waiting for any in-flight replacement
// first. An expired token is reported as domain.ErrTokenExpired.
func (s *Store) Token(ctx context.Context) (domain.Token, error) {
	s.mu.Lock()
	pending := s.pending
	s.mu.Unlock()

	if pending != nil {
		select {
		case <-pending.done:
		case <-ctx.Done():
			return domain.Token{}, ctx.Err()
		}
		if pending.err != nil {
			return domain.Token{}, pending.err
		}
	}

	s.mu.Lock()
	tok := s.token
	s.mu.Unlock()
	if tok.IsExpired(s.now()) {
		return domain.Token{}, domain.ErrTokenExpired
	}
	return tok, nil
}

// Replace installs tok and clears any sticky failure.
func (s *Store) Replace(tok domain.Token) {
	s.mu.Lock()
	s.token = tok
	s.pending = nil
	s.mu.Unlock()
}

// ReplaceWithTask runs fn and installs its result. Concurrent Token calls
// wait for the outcome instead of reading the stale value. On failure the
// old token stays in place but readers get the error until the next
// replacement.
func (s *Store) ReplaceWithTask(ctx context.Context, fn func(ctx context.Context) (domain.Token, error)) (domain.Token, error) {
	t := &task{done: make(chan struct{})}
	s.mu.Lock()
	s.pending = t
	s.mu.Unlock()

	t.token, t.err = fn(ctx)
	s.mu.Lock()
	if t.err == nil && s.pending == t {
		s.token = t.token
		s.pending = nil
	}
	s.mu.Unlock()
	close(t.done)
	return t.token, t.err
}

// CancelPending forgets a failed or superseded replacement so readers
// fall back to the stored token.
func (s *Store) CancelPending() {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
}
