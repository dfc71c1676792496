package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"confstream/client/internal/domain"
	"confstream/client/internal/logging"
	"confstream/client/internal/sse"
)

// pinHeader carries the conference PIN on token requests.
const pinHeader = "pin"

// TokenRequestFields are the caller-supplied parameters of a token request.
type TokenRequestFields struct {
	DisplayName         string `json:"display_name"`
	ConferenceExtension string `json:"conference_extension,omitempty"`
	DirectMedia         bool   `json:"direct_media,omitempty"`
}

// tokenResponse is the backend's token payload. Expiry comes over the
// wire as a string of seconds.
type tokenResponse struct {
	Token          string `json:"token"`
	Expires        string `json:"expires"`
	ParticipantID  string `json:"participant_uuid"`
	RegistrationID string `json:"registration_uuid"`
	DisplayName    string `json:"display_name"`
	Role           string `json:"role"`
	ConferenceName string `json:"conference_name"`
	ChatEnabled    bool   `json:"chat_enabled"`
	Stun           []struct {
		URL string `json:"url"`
	} `json:"stun"`
	Turn []struct {
		URLs       []string `json:"urls"`
		Username   string   `json:"username"`
		Credential string   `json:"credential"`
	} `json:"turn"`
}

// parseExpires converts the wire's string of seconds to a duration.
func parseExpires(expires string) (time.Duration, error) {
	seconds, err := strconv.ParseFloat(expires, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token expiry %q: %w", expires, err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func (r tokenResponse) toToken(now time.Time) (domain.Token, error) {
	expires, err := parseExpires(r.Expires)
	if err != nil {
		return domain.Token{}, err
	}
	tok := domain.Token{
		Value:          r.Token,
		UpdatedAt:      now,
		Expires:        expires,
		ParticipantID:  r.ParticipantID,
		RegistrationID: r.RegistrationID,
		Role:           domain.Role(r.Role),
		DisplayName:    r.DisplayName,
		ConferenceName: r.ConferenceName,
		ChatEnabled:    r.ChatEnabled,
	}
	for _, s := range r.Stun {
		tok.Stun = append(tok.Stun, s.URL)
	}
	for _, t := range r.Turn {
		tok.Turn = append(tok.Turn, domain.TurnServer{
			URLs:       t.URLs,
			Username:   t.Username,
			Credential: t.Credential,
		})
	}
	return tok, nil
}

// ConferenceService addresses one conference alias on one node.
type ConferenceService struct {
	baseURL string
	client  *Client
	sse     *sse.Client
	logger  logging.Logger
}

// NewConferenceService builds a service rooted at
// <node>/api/client/v2/conferences/<alias>.
func NewConferenceService(node, alias string, client *Client, logger logging.Logger) *ConferenceService {
	return &ConferenceService{
		baseURL: strings.TrimSuffix(node, "/") + "/api/client/v2/conferences/" + alias,
		client:  client,
		sse:     sse.NewClient(logger),
		logger:  logger,
	}
}

// RequestToken asks for a session token. pin is sent as-is when non-empty;
// for conferences that only gate hosts, pass "none" to join as a guest
// without one. A PIN challenge answered with a wrong PIN comes back as
// ErrInvalidPIN.
func (s *ConferenceService) RequestToken(ctx context.Context, fields TokenRequestFields, pin string) (domain.Token, error) {
	req, err := s.client.request(ctx, http.MethodPost, s.baseURL+"/request_token", "", fields)
	if err != nil {
		return domain.Token{}, err
	}
	if pin != "" {
		req.Header.Set(pinHeader, pin)
	}

	var resp tokenResponse
	if err := s.client.do(req, &resp); err != nil {
		var challenge *PINChallengeError
		if pin != "" && errors.As(err, &challenge) {
			return domain.Token{}, ErrInvalidPIN
		}
		return domain.Token{}, err
	}
	return resp.toToken(time.Now())
}

// RefreshToken exchanges a live token for a fresh value.
func (s *ConferenceService) RefreshToken(ctx context.Context, token domain.Token) (domain.TokenRefresh, error) {
	req, err := s.client.request(ctx, http.MethodPost, s.baseURL+"/refresh_token", token.Value, nil)
	if err != nil {
		return domain.TokenRefresh{}, err
	}
	var resp struct {
		Token   string `json:"token"`
		Expires string `json:"expires"`
	}
	if err := s.client.do(req, &resp); err != nil {
		return domain.TokenRefresh{}, err
	}
	expires, err := parseExpires(resp.Expires)
	if err != nil {
		return domain.TokenRefresh{}, err
	}
	return domain.TokenRefresh{Token: resp.Token, Expires: expires}, nil
}

// ReleaseToken invalidates the token server-side.
func (s *ConferenceService) ReleaseToken(ctx context.Context, token domain.Token) error {
	req, err := s.client.request(ctx, http.MethodPost, s.baseURL+"/release_token", token.Value, nil)
	if err != nil {
		return err
	}
	return s.client.do(req, nil)
}

// SendMessage broadcasts a chat message to the conference.
func (s *ConferenceService) SendMessage(ctx context.Context, token domain.Token, payload string) (bool, error) {
	body := map[string]string{
		"type":    "text/plain",
		"payload": payload,
	}
	req, err := s.client.request(ctx, http.MethodPost, s.baseURL+"/message", token.Value, body)
	if err != nil {
		return false, err
	}
	var accepted bool
	if err := s.client.do(req, &accepted); err != nil {
		return false, err
	}
	return accepted, nil
}

// OpenEvents opens the conference event stream.
func (s *ConferenceService) OpenEvents(ctx context.Context, token domain.Token, lastEventID string) (*sse.Stream, error) {
	req, err := http.NewRequest(http.MethodGet, s.baseURL+"/events", nil)
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set(tokenHeader, token.Value)
	return s.sse.Open(ctx, req, lastEventID)
}

// Participant addresses one participant of this conference.
func (s *ConferenceService) Participant(id string) *ParticipantService {
	return &ParticipantService{
		baseURL: s.baseURL + "/participants/" + id,
		client:  s.client,
	}
}
