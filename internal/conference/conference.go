// Package conference is the top-level entry point: joining a conference
// wires up the token lifecycle, the event stream, the roster and call
// signaling behind one facade.
package conference

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"confstream/client/internal/api"
	"confstream/client/internal/call"
	"confstream/client/internal/domain"
	"confstream/client/internal/logging"
	"confstream/client/internal/roster"
	"confstream/client/internal/sse"
	"confstream/client/internal/token"
)

// ErrNotHost is returned for operations that need host privileges.
var ErrNotHost = errors.New("operation requires host role")

// ErrCaptionsUnavailable is returned when toggling captions in a
// conference that does not offer them.
var ErrCaptionsUnavailable = errors.New("live captions not available")

// Params identify the conference to join.
type Params struct {
	// Node is the base URL of the conferencing node, e.g. "https://node.example.com".
	Node string
	// Alias is the conference alias to join.
	Alias string
	// DisplayName is shown to other participants.
	DisplayName string
	// PIN is the conference PIN, empty when the conference has none.
	PIN string
}

// Conference is one joined conference. All methods are safe for
// concurrent use. Background failures, such as a token refresh that could
// not complete, arrive on Errors.
type Conference struct {
	service   *api.ConferenceService
	store     *token.Store
	refresher *token.Refresher
	session   *sse.Session[domain.ServerMessage]
	roster    *roster.Roster
	signaling *call.SignalingChannel
	logger    logging.Logger
	errs      chan error

	mu           sync.Mutex
	status       domain.ConferenceStatus
	callSession  *call.Session
	disconnected bool

	subscribers  map[uint64]chan domain.ServerMessage
	nextSub      uint64
	dispatchDone chan struct{}
}

// Join requests a token for the conference and starts the token
// refresher and the event stream. The returned Conference must be ended
// with Leave.
func Join(ctx context.Context, params Params, logger logging.Logger) (*Conference, error) {
	client := api.NewClient(logger)
	service := api.NewConferenceService(params.Node, params.Alias, client, logger)

	fields := api.TokenRequestFields{DisplayName: params.DisplayName}
	pin := params.PIN
	tok, err := service.RequestToken(ctx, fields, pin)
	if err != nil {
		var challenge *api.PINChallengeError
		if errors.As(err, &challenge) && !challenge.GuestPIN {
			// Only hosts need a PIN here; join as a guest.
			tok, err = service.RequestToken(ctx, fields, "none")
		}
		if err != nil {
			return nil, fmt.Errorf("request token: %w", err)
		}
	}

	c := &Conference{
		service:     service,
		store:       token.NewStore(tok),
		logger:      logger,
		errs:        make(chan error, 1),
		subscribers: make(map[uint64]chan domain.ServerMessage),
	}
	c.roster = roster.New(tok.ParticipantID, tok.DisplayName)
	c.signaling = call.NewSignalingChannel(service.Participant(tok.ParticipantID), c.store, c.roster, logger)
	c.refresher = token.NewRefresher(service, c.store, logger, func(err error) {
		select {
		case c.errs <- err:
		default:
		}
	})
	c.refresher.Start()

	open := func(ctx context.Context, lastEventID string) (*sse.Stream, error) {
		tok, err := c.store.Token(ctx)
		if err != nil {
			return nil, err
		}
		return service.OpenEvents(ctx, tok, lastEventID)
	}
	parse := func(name string, data []byte) (domain.ServerMessage, bool) {
		return domain.ParseServerMessage(name, data, logger)
	}
	c.session = sse.NewSession(open, parse, logger)

	events, _ := c.session.Subscribe()
	c.session.Open(context.Background())
	c.dispatchDone = make(chan struct{})
	go c.dispatch(events)

	return c, nil
}

// Errors delivers background failures. A message here means the session
// can no longer keep its token fresh and should be left.
func (c *Conference) Errors() <-chan error { return c.errs }

// Roster is the live participant list.
func (c *Conference) Roster() *roster.Roster { return c.roster }

// Token returns the current session token, waiting for any in-flight
// refresh.
func (c *Conference) Token(ctx context.Context) (domain.Token, error) {
	return c.store.Token(ctx)
}

// Status is the last received conference-wide status.
func (c *Conference) Status() domain.ConferenceStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Subscribe registers a receiver for decoded stream events. The returned
// func removes the subscription.
func (c *Conference) Subscribe() (<-chan domain.ServerMessage, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	ch := make(chan domain.ServerMessage, 16)
	c.subscribers[id] = ch
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
}

func (c *Conference) dispatch(events <-chan domain.ServerMessage) {
	defer close(c.dispatchDone)
	for msg := range events {
		switch m := msg.(type) {
		case domain.ConferenceUpdateMessage:
			c.mu.Lock()
			c.status = m.Status
			c.mu.Unlock()
		case domain.ParticipantSyncBeginMessage:
			c.roster.SetSyncing(true)
		case domain.ParticipantSyncEndMessage:
			c.roster.SetSyncing(false)
		case domain.ParticipantCreateMessage:
			c.roster.AddParticipant(m.Participant)
		case domain.ParticipantUpdateMessage:
			c.roster.UpdateParticipant(m.Participant)
		case domain.ParticipantDeleteMessage:
			c.roster.RemoveParticipant(m.ID)
		case domain.ClientDisconnectedMessage:
			c.logger.Infof("disconnected by server: %s", m.Reason)
			c.mu.Lock()
			c.disconnected = true
			c.mu.Unlock()
			c.roster.Clear()
		}
		c.forward(msg)
	}
}

func (c *Conference) forward(msg domain.ServerMessage) {
	c.mu.Lock()
	targets := make([]chan domain.ServerMessage, 0, len(c.subscribers))
	for _, ch := range c.subscribers {
		targets = append(targets, ch)
	}
	c.mu.Unlock()
	for _, ch := range targets {
		select {
		case ch <- msg:
		default:
		}
	}
}

// SendMessage broadcasts a chat message. It reports whether the server
// accepted it; chat may be disabled conference-wide.
func (c *Conference) SendMessage(ctx context.Context, payload string) (bool, error) {
	tok, err := c.store.Token(ctx)
	if err != nil {
		return false, err
	}
	if !tok.ChatEnabled {
		return false, nil
	}
	return c.service.SendMessage(ctx, tok, payload)
}

// ToggleLiveCaptions turns live caption delivery on or off for the local
// participant.
func (c *Conference) ToggleLiveCaptions(ctx context.Context, show bool) error {
	c.mu.Lock()
	available := c.status.LiveCaptionsAvailable
	c.mu.Unlock()
	if !available {
		return ErrCaptionsUnavailable
	}

	tok, err := c.store.Token(ctx)
	if err != nil {
		return err
	}
	participant := c.service.Participant(tok.ParticipantID)
	if show {
		return participant.ShowLiveCaptions(ctx, tok)
	}
	return participant.HideLiveCaptions(ctx, tok)
}

// MuteParticipant flips the audio mute state of another participant.
// Requires the host role.
func (c *Conference) MuteParticipant(ctx context.Context, id string, muted bool) (bool, error) {
	tok, err := c.store.Token(ctx)
	if err != nil {
		return false, err
	}
	if tok.Role != domain.RoleHost {
		return false, ErrNotHost
	}
	participant := c.service.Participant(id)
	if muted {
		return participant.Mute(ctx, tok)
	}
	return participant.Unmute(ctx, tok)
}

// MuteAudio flips the server-side audio mute state of the local
// participant.
func (c *Conference) MuteAudio(ctx context.Context, muted bool) (bool, error) {
	return c.signaling.MuteAudio(ctx, muted)
}

// MuteVideo flips the server-side video mute state of the local
// participant.
func (c *Conference) MuteVideo(ctx context.Context, muted bool) (bool, error) {
	return c.signaling.MuteVideo(ctx, muted)
}

// TakeFloor requests the presentation floor.
func (c *Conference) TakeFloor(ctx context.Context) error {
	return c.signaling.TakeFloor(ctx)
}

// ReleaseFloor gives up the presentation floor.
func (c *Conference) ReleaseFloor(ctx context.Context) error {
	return c.signaling.ReleaseFloor(ctx)
}

// StartCall establishes a media call over the given connection. Only one
// call may run at a time.
func (c *Conference) StartCall(ctx context.Context, media domain.MediaConnection) (*call.Session, error) {
	c.mu.Lock()
	if c.callSession != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("call already in progress")
	}
	session := call.NewSession(media, c.signaling, "WEBRTC", c.logger)
	c.callSession = session
	c.mu.Unlock()

	if err := session.Start(ctx); err != nil {
		c.mu.Lock()
		c.callSession = nil
		c.mu.Unlock()
		return nil, err
	}
	return session, nil
}

// StopCall tears down the running call, if any.
func (c *Conference) StopCall(ctx context.Context) {
	c.mu.Lock()
	session := c.callSession
	c.callSession = nil
	c.mu.Unlock()
	if session != nil {
		session.Stop(ctx)
	}
}

// Leave ends the session: any running call is stopped, the event stream
// closed and the token released. Safe to call after a server-side
// disconnect; the token release is skipped in that case.
func (c *Conference) Leave(ctx context.Context) {
	c.StopCall(ctx)
	c.session.Close()
	<-c.dispatchDone

	c.mu.Lock()
	disconnected := c.disconnected
	for id, ch := range c.subscribers {
		close(ch)
		delete(c.subscribers, id)
	}
	c.mu.Unlock()

	c.refresher.Stop(!disconnected)
	c.roster.Clear()
}
