package sse

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"confstream/client/internal/logging"
)

const (
	defaultReconnectionTime = 3 * time.Second
	maxReconnectionTime     = 10 * time.Second
)

// OpenFunc opens one stream attempt, resuming from lastEventID when the
// server supports it.
type OpenFunc func(ctx context.Context, lastEventID string) (*Stream, error)

// ParseFunc decodes a named event payload. ok=false drops the event.
type ParseFunc[T any] func(name string, data []byte) (T, bool)

// Session keeps an event stream alive across connection failures,
// reconnecting with jittered exponential backoff and fanning decoded
// events out to subscribers. The zero value is not usable; use NewSession.
type Session[T any] struct {
	open             OpenFunc
	parse            ParseFunc[T]
	logger           logging.Logger
	reconnectionTime time.Duration
	rnd              *rand.Rand

	mu          sync.Mutex
	subscribers map[uint64]chan T
	nextSub     uint64
	lastEventID string
	attempts    uint
	cancel      context.CancelFunc
	done        chan struct{}
}

func NewSession[T any](open OpenFunc, parse ParseFunc[T], logger logging.Logger) *Session[T] {
	return &Session[T]{
		open:             open,
		parse:            parse,
		logger:           logger,
		reconnectionTime: defaultReconnectionTime,
		rnd:              rand.New(rand.NewSource(time.Now().UnixNano())),
		subscribers:      make(map[uint64]chan T),
	}
}

// Open starts the receive loop. It reports false when the session is
// already running.
func (s *Session[T]) Open(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return false
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
	return true
}

// Close stops the receive loop and closes all subscriber channels. It
// reports false when the session is not running.
func (s *Session[T]) Close() bool {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return false
	}
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	cancel()
	<-done

	s.mu.Lock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.mu.Unlock()
	return true
}

// Subscribe registers a receiver for decoded events. The returned func
// removes the subscription; after Close the channel is closed.
func (s *Session[T]) Subscribe() (<-chan T, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan T, 16)
	s.subscribers[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *Session[T]) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		s.mu.Lock()
		lastEventID := s.lastEventID
		s.mu.Unlock()

		stream, err := s.open(ctx, lastEventID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warnf("event stream connect failed: %v", err)
			if !s.backoff(ctx) {
				return
			}
			continue
		}

		for ev := range stream.Events() {
			s.handleEvent(ctx, ev)
		}
		if ctx.Err() != nil {
			stream.Close()
			return
		}
		if err := stream.Err(); err != nil {
			s.logger.Warnf("event stream interrupted: %v", err)
		}
		if !s.backoff(ctx) {
			return
		}
	}
}

func (s *Session[T]) handleEvent(ctx context.Context, ev Event) {
	s.mu.Lock()
	s.attempts = 0
	if ev.ID != "" {
		s.lastEventID = ev.ID
	}
	if ev.Retry > 0 {
		s.reconnectionTime = ev.Retry
	}
	s.mu.Unlock()

	msg, ok := s.parse(ev.Name, []byte(ev.Data))
	if !ok {
		return
	}

	s.mu.Lock()
	targets := make([]chan T, 0, len(s.subscribers))
	for _, ch := range s.subscribers {
		targets = append(targets, ch)
	}
	s.mu.Unlock()

	for _, ch := range targets {
		select {
		case ch <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// backoff sleeps before the next reconnect attempt. The wait doubles per
// attempt up to maxReconnectionTime and is jittered into the upper half
// of the window. It reports false when the context ended first.
func (s *Session[T]) backoff(ctx context.Context) bool {
	s.mu.Lock()
	attempts := s.attempts
	if attempts > 16 {
		attempts = 16
	}
	maxWait := s.reconnectionTime * (1 << attempts)
	if maxWait > maxReconnectionTime {
		maxWait = maxReconnectionTime
	}
	half := maxWait / 2
	wait := half + time.Duration(s.rnd.Int63n(int64(half)+1))
	s.attempts++
	s.mu.Unlock()

	s.logger.Debugf("reconnecting to event stream in %v", wait)
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
