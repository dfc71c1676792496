package call

import (
	"context"
	"fmt"
	"sync"

	"confstream/client/internal/domain"
	"confstream/client/internal/logging"
)

// State is the lifecycle state of a call session.
type State int

const (
	StateIdle State = iota
	StateOffering
	StateStarted
	StateConnected
	StateDisconnected
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOffering:
		return "offering"
	case StateStarted:
		return "started"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session runs the signaling handshake for one call: create the offer,
// exchange it, relay candidates, ack on connection and tear down. Media
// itself stays behind domain.MediaConnection.
type Session struct {
	media     domain.MediaConnection
	signaling *SignalingChannel
	logger    logging.Logger
	callType  string

	mu       sync.Mutex
	state    State
	onChange func(State)
}

func NewSession(media domain.MediaConnection, signaling *SignalingChannel, callType string, logger logging.Logger) *Session {
	return &Session{
		media:     media,
		signaling: signaling,
		logger:    logger,
		callType:  callType,
		state:     StateIdle,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnStateChange registers the state observer. Must be set before Start.
func (s *Session) OnStateChange(fn func(State)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Start performs the handshake. Candidate relay is registered only after
// the offer round trip completes, so candidates never race the call
// creation; the media engine re-emits any gathered earlier.
func (s *Session) Start(ctx context.Context) error {
	if !s.transition(StateIdle, StateOffering) {
		return fmt.Errorf("call already started")
	}

	offer, err := s.media.CreateOffer(ctx)
	if err != nil {
		s.set(StateFailed)
		return fmt.Errorf("create offer: %w", err)
	}

	answer, err := s.signaling.SendOffer(ctx, s.callType, offer, false)
	if err != nil {
		s.set(StateFailed)
		return fmt.Errorf("send offer: %w", err)
	}

	if err := s.media.ApplyAnswer(ctx, answer); err != nil {
		s.set(StateFailed)
		return fmt.Errorf("apply answer: %w", err)
	}

	s.media.OnCandidate(func(candidate, mid string) {
		if err := s.signaling.SendCandidate(context.Background(), candidate, mid); err != nil {
			s.logger.Warnf("failed to send candidate: %v", err)
		}
	})
	s.media.OnStateChange(func(state domain.MediaConnectionState) {
		s.handleMediaState(state)
	})

	s.set(StateStarted)
	return nil
}

// Stop tears the call down: media first, then a best-effort server-side
// disconnect. Safe to call in any state.
func (s *Session) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err := s.media.Close(); err != nil {
		s.logger.Warnf("failed to close media connection: %v", err)
	}
	s.signaling.Disconnect(ctx)
	s.set(StateClosed)
}

func (s *Session) handleMediaState(state domain.MediaConnectionState) {
	switch state {
	case domain.MediaConnected:
		ok, err := s.signaling.Ack(context.Background())
		if err != nil {
			s.logger.Errorf("failed to ack call: %v", err)
			s.set(StateFailed)
			return
		}
		if !ok {
			s.logger.Warnf("call ack was rejected")
		}
		s.set(StateConnected)
	case domain.MediaDisconnected:
		s.set(StateDisconnected)
	case domain.MediaFailed:
		s.set(StateFailed)
	}
}

func (s *Session) transition(from, to State) bool {
	s.mu.Lock()
	if s.state != from {
		s.mu.Unlock()
		return false
	}
	s.state = to
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(to)
	}
	return true
}

func (s *Session) set(state State) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(state)
	}
}
