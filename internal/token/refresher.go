package token

import (
	"context"
	"errors"
	"sync"
	"time"

	"confstream/client/internal/domain"
	"confstream/client/internal/logging"
)

// Refresher refreshes the stored token at its half-life for as long as it
// runs. It does not retry: a failed refresh stops the loop and notifies
// onError, leaving recovery to the owner of the session.
type Refresher struct {
	service domain.TokenService
	store   *Store
	logger  logging.Logger
	onError func(error)

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRefresher builds a stopped refresher. onError may be nil.
func NewRefresher(service domain.TokenService, store *Store, logger logging.Logger, onError func(error)) *Refresher {
	return &Refresher{
		service: service,
		store:   store,
		logger:  logger,
		onError: onError,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// Start begins refreshing. It reports false when already running or when
// the stored token has already expired.
func (r *Refresher) Start() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return false
	}

	tok, err := r.store.Token(context.Background())
	if err != nil {
		r.logger.Warnf("refresher not started: %v", err)
		return false
	}
	if tok.IsExpired(r.now()) {
		r.logger.Warnf("refresher not started: token already expired")
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.run(ctx, r.done)
	return true
}

// IsRefreshing reports whether the refresh loop is running.
func (r *Refresher) IsRefreshing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

// Stop ends the refresh loop. When release is true and the token is still
// valid, it is released server-side on a best effort basis. Stop reports
// false when the refresher was not running.
func (r *Refresher) Stop(release bool) bool {
	r.mu.Lock()
	if r.cancel == nil {
		r.mu.Unlock()
		return false
	}
	cancel, done := r.cancel, r.done
	r.cancel = nil
	r.done = nil
	r.mu.Unlock()

	cancel()
	<-done

	if release {
		r.store.CancelPending()
		tok, err := r.store.Token(context.Background())
		if err == nil && !tok.IsExpired(r.now()) {
			if err := r.service.ReleaseToken(context.Background(), tok); err != nil {
				r.logger.Errorf("failed to release token: %v", err)
			}
		}
	}
	return true
}

func (r *Refresher) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		tok, err := r.store.Token(ctx)
		if err != nil {
			r.fail(ctx, err)
			return
		}

		delay := tok.RefreshAt().Sub(r.now())
		if err := r.sleep(ctx, delay); err != nil {
			return
		}

		_, err = r.store.ReplaceWithTask(ctx, func(ctx context.Context) (domain.Token, error) {
			refresh, err := r.service.RefreshToken(ctx, tok)
			if err != nil {
				return domain.Token{}, err
			}
			return tok.Updating(refresh.Token, refresh.Expires, r.now()), nil
		})
		if err != nil {
			r.fail(ctx, err)
			return
		}
		r.logger.Debugf("token refreshed, next refresh in %v", tok.Expires/2)
	}
}

// fail reports a refresh failure and clears the running state so the
// refresher can be restarted with a new token.
func (r *Refresher) fail(ctx context.Context, err error) {
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return
	}
	r.logger.Errorf("token refresh failed: %v", err)

	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.done = nil
	r.mu.Unlock()

	if r.onError != nil {
		r.onError(err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
