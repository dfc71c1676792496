package call

import (
	"context"
	"errors"
	"sync"

	"confstream/client/internal/api"
	"confstream/client/internal/domain"
	"confstream/client/internal/logging"
	"confstream/client/internal/roster"
	"confstream/client/internal/token"
)

// ErrCallNotStarted is returned for operations that need an established
// call before SendOffer has completed.
var ErrCallNotStarted = errors.New("call not started")

// SignalingChannel relays SDP and ICE material between the local media
// engine and the backend for one participant. The first SendOffer
// establishes the call; later offers renegotiate it.
type SignalingChannel struct {
	participant *api.ParticipantService
	store       *token.Store
	roster      *roster.Roster
	logger      logging.Logger

	mu    sync.Mutex
	call  *api.CallService
	pwds  map[string]string
	acked bool
}

func NewSignalingChannel(participant *api.ParticipantService, store *token.Store, ros *roster.Roster, logger logging.Logger) *SignalingChannel {
	return &SignalingChannel{
		participant: participant,
		store:       store,
		roster:      ros,
		logger:      logger,
	}
}

// SendOffer sends the local SDP offer and returns the remote answer.
// presentationInMain asks the server to mix presentation video into the
// main stream.
func (c *SignalingChannel) SendOffer(ctx context.Context, callType, sdp string, presentationInMain bool) (string, error) {
	tok, err := c.store.Token(ctx)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.pwds = icePasswords(sdp)
	call := c.call
	c.mu.Unlock()

	if call != nil {
		return call.Update(ctx, tok, sdp)
	}

	fields := api.CallsFields{CallType: callType, SDP: sdp}
	if presentationInMain {
		fields.Present = "main"
	}
	details, err := c.participant.Calls(ctx, tok, fields)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.call = c.participant.Call(details.CallID)
	c.mu.Unlock()
	return details.SDP, nil
}

// SendCandidate relays a locally gathered ICE candidate, attaching the
// password matching the candidate's ufrag when the offer carried one.
func (c *SignalingChannel) SendCandidate(ctx context.Context, candidate, mid string) error {
	c.mu.Lock()
	call := c.call
	var ufrag, pwd string
	if u := candidateUfrag(candidate); u != "" {
		ufrag = u
		pwd = c.pwds[u]
	}
	c.mu.Unlock()

	if call == nil {
		return ErrCallNotStarted
	}

	tok, err := c.store.Token(ctx)
	if err != nil {
		return err
	}
	return call.NewCandidate(ctx, tok, domain.IceCandidate{
		Candidate: candidate,
		Mid:       mid,
		Ufrag:     ufrag,
		Pwd:       pwd,
	})
}

// Ack confirms the applied answer so media can start flowing.
func (c *SignalingChannel) Ack(ctx context.Context) (bool, error) {
	c.mu.Lock()
	call := c.call
	c.mu.Unlock()
	if call == nil {
		return false, ErrCallNotStarted
	}

	tok, err := c.store.Token(ctx)
	if err != nil {
		return false, err
	}
	ok, err := call.Ack(ctx, tok)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	c.acked = ok
	c.mu.Unlock()
	return ok, nil
}

// Disconnect ends the call server-side. Calls that never completed the
// ack have nothing to disconnect; failures are logged, not returned, as
// the local teardown proceeds regardless.
func (c *SignalingChannel) Disconnect(ctx context.Context) {
	c.mu.Lock()
	call := c.call
	acked := c.acked
	c.call = nil
	c.acked = false
	c.mu.Unlock()

	if call == nil || !acked {
		return
	}
	tok, err := c.store.Token(ctx)
	if err != nil {
		c.logger.Warnf("skipping call disconnect: %v", err)
		return
	}
	if err := call.Disconnect(ctx, tok); err != nil {
		c.logger.Warnf("failed to disconnect call: %v", err)
	}
}

// SendDTMF sends DTMF digits on the established call.
func (c *SignalingChannel) SendDTMF(ctx context.Context, digits string) (bool, error) {
	c.mu.Lock()
	call := c.call
	c.mu.Unlock()
	if call == nil {
		return false, ErrCallNotStarted
	}
	tok, err := c.store.Token(ctx)
	if err != nil {
		return false, err
	}
	return call.DTMF(ctx, tok, digits)
}

// MuteAudio flips the server-side audio mute state of the local
// participant.
func (c *SignalingChannel) MuteAudio(ctx context.Context, muted bool) (bool, error) {
	tok, err := c.store.Token(ctx)
	if err != nil {
		return false, err
	}
	if muted {
		return c.participant.Mute(ctx, tok)
	}
	return c.participant.Unmute(ctx, tok)
}

// MuteVideo flips the server-side video mute state of the local
// participant.
func (c *SignalingChannel) MuteVideo(ctx context.Context, muted bool) (bool, error) {
	tok, err := c.store.Token(ctx)
	if err != nil {
		return false, err
	}
	if muted {
		return c.participant.VideoMuted(ctx, tok)
	}
	return c.participant.VideoUnmuted(ctx, tok)
}

// TakeFloor requests the presentation floor. A no-op while the local
// participant is already presenting.
func (c *SignalingChannel) TakeFloor(ctx context.Context) error {
	if c.roster.IsPresenting() {
		return nil
	}
	tok, err := c.store.Token(ctx)
	if err != nil {
		return err
	}
	return c.participant.TakeFloor(ctx, tok)
}

// ReleaseFloor gives up the presentation floor. A no-op unless the local
// participant is presenting.
func (c *SignalingChannel) ReleaseFloor(ctx context.Context) error {
	if !c.roster.IsPresenting() {
		return nil
	}
	tok, err := c.store.Token(ctx)
	if err != nil {
		return err
	}
	return c.participant.ReleaseFloor(ctx, tok)
}
