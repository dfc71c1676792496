package api

import (
	"context"
	"net/http"

	"confstream/client/internal/domain"
)

// CallService addresses one established call. Instances come from
// ParticipantService.Call after a successful Calls request.
type CallService struct {
	baseURL string
	client  *Client
}

// NewCandidate posts a locally gathered ICE candidate.
func (s *CallService) NewCandidate(ctx context.Context, token domain.Token, candidate domain.IceCandidate) error {
	req, err := s.client.request(ctx, http.MethodPost, s.baseURL+"/new_candidate", token.Value, candidate)
	if err != nil {
		return err
	}
	return s.client.do(req, nil)
}

// Ack confirms that the remote description was applied and media can
// start flowing. It reports whether the server accepted the ack.
func (s *CallService) Ack(ctx context.Context, token domain.Token) (bool, error) {
	req, err := s.client.request(ctx, http.MethodPost, s.baseURL+"/ack", token.Value, nil)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := s.client.do(req, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// Update renegotiates the call with a new offer and returns the answer.
func (s *CallService) Update(ctx context.Context, token domain.Token, sdp string) (string, error) {
	body := map[string]string{"sdp": sdp}
	req, err := s.client.request(ctx, http.MethodPost, s.baseURL+"/update", token.Value, body)
	if err != nil {
		return "", err
	}
	var result struct {
		SDP string `json:"sdp"`
	}
	if err := s.client.do(req, &result); err != nil {
		return "", err
	}
	return result.SDP, nil
}

// Disconnect ends the call server-side.
func (s *CallService) Disconnect(ctx context.Context, token domain.Token) error {
	req, err := s.client.request(ctx, http.MethodPost, s.baseURL+"/disconnect", token.Value, nil)
	if err != nil {
		return err
	}
	return s.client.do(req, nil)
}

// DTMF sends a DTMF digit sequence on the call.
func (s *CallService) DTMF(ctx context.Context, token domain.Token, digits string) (bool, error) {
	body := map[string]string{"digits": digits}
	req, err := s.client.request(ctx, http.MethodPost, s.baseURL+"/dtmf", token.Value, body)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := s.client.do(req, &ok); err != nil {
		return false, err
	}
	return ok, nil
}
