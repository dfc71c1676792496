package call

import (
	"context"
	"errors"
	"sync"
	"testing"

	"confstream/client/internal/domain"
	"confstream/client/internal/logging"
)

type fakeMedia struct {
	mu          sync.Mutex
	offerErr    error
	answer      string
	closed      bool
	onCandidate func(candidate, mid string)
	onState     func(domain.MediaConnectionState)
}

func (m *fakeMedia) CreateOffer(ctx context.Context) (string, error) {
	if m.offerErr != nil {
		return "", m.offerErr
	}
	return testSDP, nil
}

func (m *fakeMedia) ApplyAnswer(ctx context.Context, sdp string) error {
	m.mu.Lock()
	m.answer = sdp
	m.mu.Unlock()
	return nil
}

func (m *fakeMedia) OnCandidate(fn func(candidate, mid string)) {
	m.mu.Lock()
	m.onCandidate = fn
	m.mu.Unlock()
}

func (m *fakeMedia) OnStateChange(fn func(domain.MediaConnectionState)) {
	m.mu.Lock()
	m.onState = fn
	m.mu.Unlock()
}

func (m *fakeMedia) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *fakeMedia) connect() {
	m.mu.Lock()
	fn := m.onState
	m.mu.Unlock()
	fn(domain.MediaConnected)
}

func TestSessionHandshake(t *testing.T) {
	channel, b, _ := newTestChannel(t)
	media := &fakeMedia{}
	session := NewSession(media, channel, "WEBRTC", logging.Nop{})

	var states []State
	session.OnStateChange(func(s State) { states = append(states, s) })

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if media.answer != answerSDP {
		t.Errorf("answer not applied: %q", media.answer)
	}
	if session.State() != StateStarted {
		t.Errorf("state = %v, want started", session.State())
	}

	media.connect()
	if session.State() != StateConnected {
		t.Errorf("state = %v, want connected", session.State())
	}
	if !b.saw("/ack") {
		t.Errorf("ack not sent: %v", b.requests)
	}

	// Candidates gathered after the handshake flow through signaling.
	media.onCandidate("candidate:1 1 UDP 1 192.0.2.1 1 typ host ufrag abcd", "0")
	if !b.saw("/new_candidate") {
		t.Errorf("candidate not sent: %v", b.requests)
	}

	session.Stop(context.Background())
	if !media.closed {
		t.Error("media connection not closed")
	}
	if !b.saw("/disconnect") {
		t.Errorf("disconnect not sent: %v", b.requests)
	}
	if session.State() != StateClosed {
		t.Errorf("state = %v, want closed", session.State())
	}
}

func TestSessionStartTwice(t *testing.T) {
	channel, _, _ := newTestChannel(t)
	session := NewSession(&fakeMedia{}, channel, "WEBRTC", logging.Nop{})

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := session.Start(context.Background()); err == nil {
		t.Error("second start did not fail")
	}
}

func TestSessionOfferFailure(t *testing.T) {
	channel, _, _ := newTestChannel(t)
	media := &fakeMedia{offerErr: errors.New("no codecs")}
	session := NewSession(media, channel, "WEBRTC", logging.Nop{})

	if err := session.Start(context.Background()); err == nil {
		t.Fatal("start did not fail")
	}
	if session.State() != StateFailed {
		t.Errorf("state = %v, want failed", session.State())
	}
}

func TestSessionStopWithoutAckSkipsDisconnect(t *testing.T) {
	channel, b, _ := newTestChannel(t)
	media := &fakeMedia{}
	session := NewSession(media, channel, "WEBRTC", logging.Nop{})

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	session.Stop(context.Background())

	if b.saw("/disconnect") {
		t.Errorf("disconnect sent for an unacked call: %v", b.requests)
	}
	if !media.closed {
		t.Error("media connection not closed")
	}
}

func TestSessionMediaFailure(t *testing.T) {
	channel, _, _ := newTestChannel(t)
	media := &fakeMedia{}
	session := NewSession(media, channel, "WEBRTC", logging.Nop{})

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	media.mu.Lock()
	fn := media.onState
	media.mu.Unlock()
	fn(domain.MediaFailed)

	if session.State() != StateFailed {
		t.Errorf("state = %v, want failed", session.State())
	}
}
