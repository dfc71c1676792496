package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"confstream/client/internal/domain"
)

// CallsFields are the parameters of a new call request.
type CallsFields struct {
	CallType string `json:"call_type"`
	SDP      string `json:"sdp"`
	Present  string `json:"present,omitempty"`
}

// ParticipantService addresses one participant of a conference. All
// operations require a live token.
type ParticipantService struct {
	baseURL string
	client  *Client
}

// Calls establishes a new call for the participant and returns the
// server's call id and SDP answer.
func (s *ParticipantService) Calls(ctx context.Context, token domain.Token, fields CallsFields) (domain.CallDetails, error) {
	req, err := s.client.request(ctx, http.MethodPost, s.baseURL+"/calls", token.Value, fields)
	if err != nil {
		return domain.CallDetails{}, err
	}
	var details domain.CallDetails
	if err := s.client.do(req, &details); err != nil {
		return domain.CallDetails{}, err
	}
	return details, nil
}

func (s *ParticipantService) action(ctx context.Context, token domain.Token, name string) (bool, error) {
	req, err := s.client.request(ctx, http.MethodPost, s.baseURL+"/"+name, token.Value, nil)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := s.client.do(req, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// Mute and the methods below flip server-side participant state. Each
// reports whether the server accepted the change.

func (s *ParticipantService) Mute(ctx context.Context, token domain.Token) (bool, error) {
	return s.action(ctx, token, "mute")
}

func (s *ParticipantService) Unmute(ctx context.Context, token domain.Token) (bool, error) {
	return s.action(ctx, token, "unmute")
}

func (s *ParticipantService) VideoMuted(ctx context.Context, token domain.Token) (bool, error) {
	return s.action(ctx, token, "video_muted")
}

func (s *ParticipantService) VideoUnmuted(ctx context.Context, token domain.Token) (bool, error) {
	return s.action(ctx, token, "video_unmuted")
}

func (s *ParticipantService) TakeFloor(ctx context.Context, token domain.Token) error {
	req, err := s.client.request(ctx, http.MethodPost, s.baseURL+"/take_floor", token.Value, nil)
	if err != nil {
		return err
	}
	return s.client.do(req, nil)
}

func (s *ParticipantService) ReleaseFloor(ctx context.Context, token domain.Token) error {
	req, err := s.client.request(ctx, http.MethodPost, s.baseURL+"/release_floor", token.Value, nil)
	if err != nil {
		return err
	}
	return s.client.do(req, nil)
}

func (s *ParticipantService) ShowLiveCaptions(ctx context.Context, token domain.Token) error {
	req, err := s.client.request(ctx, http.MethodPost, s.baseURL+"/show_live_captions", token.Value, nil)
	if err != nil {
		return err
	}
	return s.client.do(req, nil)
}

func (s *ParticipantService) HideLiveCaptions(ctx context.Context, token domain.Token) error {
	req, err := s.client.request(ctx, http.MethodPost, s.baseURL+"/hide_live_captions", token.Value, nil)
	if err != nil {
		return err
	}
	return s.client.do(req, nil)
}

// DTMF sends a DTMF digit sequence to the participant.
func (s *ParticipantService) DTMF(ctx context.Context, token domain.Token, digits string) (bool, error) {
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

// AvatarURL is the address of the participant's avatar image.
func (s *ParticipantService) AvatarURL() string {
	return s.baseURL + "/avatar.jpg"
}

// Call addresses one established call of this participant.
func (s *ParticipantService) Call(id uuid.UUID) *CallService {
	return &CallService{
		baseURL: s.baseURL + "/calls/" + id.String(),
		client:  s.client,
	}
}
