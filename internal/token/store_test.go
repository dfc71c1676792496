package token

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"confstream/client/internal/domain"
)

func freshToken(value string) domain.Token {
	return domain.Token{
		Value:     value,
		UpdatedAt: time.Now(),
		Expires:   120 * time.Second,
	}
}

func TestStoreTokenWaitsForReplacement(t *testing.T) {
	store := NewStore(freshToken("old"))
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		store.ReplaceWithTask(context.Background(), func(ctx context.Context) (domain.Token, error) {
			<-release
			return freshToken("new"), nil
		})
	}()

	// Give the task time to install itself as pending.
	time.Sleep(10 * time.Millisecond)
	done := make(chan domain.Token, 1)
	go func() {
		tok, err := store.Token(context.Background())
		if err != nil {
			t.Errorf("token: %v", err)
		}
		done <- tok
	}()

	select {
	case <-done:
		t.Fatal("reader did not wait for the in-flight replacement")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	wg.Wait()
	tok := <-done
	if tok.Value != "new" {
		t.Errorf("reader got %q, want the replaced value", tok.Value)
	}
}

func TestStoreStickyError(t *testing.T) {
	store := NewStore(freshToken("old"))
	boom := errors.New("refresh failed")
	_, err := store.ReplaceWithTask(context.Background(), func(ctx context.Context) (domain.Token, error) {
		return domain.Token{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("ReplaceWithTask error = %v, want %v", err, boom)
	}

	if _, err := store.Token(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Token error = %v, want sticky %v", err, boom)
	}

	store.Replace(freshToken("new"))
	tok, err := store.Token(context.Background())
	if err != nil {
		t.Fatalf("token after replace: %v", err)
	}
	if tok.Value != "new" {
		t.Errorf("token = %q, want new", tok.Value)
	}
}

func TestStoreCancelPending(t *testing.T) {
	store := NewStore(freshToken("old"))
	boom := errors.New("refresh failed")
	store.ReplaceWithTask(context.Background(), func(ctx context.Context) (domain.Token, error) {
		return domain.Token{}, boom
	})
	store.CancelPending()

	tok, err := store.Token(context.Background())
	if err != nil {
		t.Fatalf("token after cancel: %v", err)
	}
	if tok.Value != "old" {
		t.Errorf("token = %q, want old", tok.Value)
	}
}

func TestStoreExpiredToken(t *testing.T) {
	tok := domain.Token{
		Value:     "old",
		UpdatedAt: time.Now().Add(-5 * time.Minute),
		Expires:   120 * time.Second,
	}
	store := NewStore(tok)
	if _, err := store.Token(context.Background()); !errors.Is(err, domain.ErrTokenExpired) {
		t.Errorf("Token error = %v, want ErrTokenExpired", err)
	}
}

func TestStoreTokenContextCancelled(t *testing.T) {
	store := NewStore(freshToken("old"))
	release := make(chan struct{})
	go store.ReplaceWithTask(context.Background(), func(ctx context.Context) (domain.Token, error) {
		<-release
		return freshToken("new"), nil
	})
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Token(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Token error = %v, want context.Canceled", err)
	}
	close(release)
}
