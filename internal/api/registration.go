package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"confstream/client/internal/domain"
	"confstream/client/internal/logging"
	"confstream/client/internal/sse"
)

// RegistrationService addresses one device alias on one node. Token
// requests authenticate with HTTP Basic credentials instead of a PIN.
type RegistrationService struct {
	baseURL string
	client  *Client
	sse     *sse.Client
	logger  logging.Logger
}

// NewRegistrationService builds a service rooted at
// <node>/api/client/v2/registrations/<alias>.
func NewRegistrationService(node, alias string, client *Client, logger logging.Logger) *RegistrationService {
	return &RegistrationService{
		baseURL: strings.TrimSuffix(node, "/") + "/api/client/v2/registrations/" + alias,
		client:  client,
		sse:     sse.NewClient(logger),
		logger:  logger,
	}
}

// RequestToken registers the device and returns its session token.
func (s *RegistrationService) RequestToken(ctx context.Context, username, password string) (domain.Token, error) {
	req, err := s.client.request(ctx, http.MethodPost, s.baseURL+"/request_token", "", nil)
	if err != nil {
		return domain.Token{}, err
	}
	req.SetBasicAuth(username, password)

	var resp tokenResponse
	if err := s.client.do(req, &resp); err != nil {
		return domain.Token{}, err
	}
	return resp.toToken(time.Now())
}

// RefreshToken exchanges a live registration token for a fresh value.
func (s *RegistrationService) RefreshToken(ctx context.Context, token domain.Token) (domain.TokenRefresh, error) {
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
	refresh, err := parseExpires(resp.Expires)
	if err != nil {
		return domain.TokenRefresh{}, err
	}
	return domain.TokenRefresh{Token: resp.Token, Expires: refresh}, nil
}

// ReleaseToken unregisters the device.
func (s *RegistrationService) ReleaseToken(ctx context.Context, token domain.Token) error {
	req, err := s.client.request(ctx, http.MethodPost, s.baseURL+"/release_token", token.Value, nil)
	if err != nil {
		return err
	}
	return s.client.do(req, nil)
}

// OpenEvents opens the registration event stream carrying incoming call
// notifications.
func (s *RegistrationService) OpenEvents(ctx context.Context, token domain.Token, lastEventID string) (*sse.Stream, error) {
	req, err := http.NewRequest(http.MethodGet, s.baseURL+"/events", nil)
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set(tokenHeader, token.Value)
	return s.sse.Open(ctx, req, lastEventID)
}
