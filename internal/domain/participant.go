package domain

import (
	"bytes"
	"encoding/json"
)

// ParticipantRole is the privilege level of a conference participant.
type ParticipantRole string

const (
	ParticipantRoleChair ParticipantRole = "chair"
	ParticipantRoleGuest ParticipantRole = "guest"
)

// Flag decodes the JSON "YES"/"NO" string booleans used by participant
// payloads. Plain true/false is accepted as well.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	switch {
	case bytes.Equal(b, []byte("true")):
		*f = true
	case bytes.Equal(b, []byte("false")):
		*f = false
	default:
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = s == "YES"
	}
	return nil
}

func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte(`"YES"`), nil
	}
	return []byte(`"NO"`), nil
}

// Participant is one entry of the conference roster, keyed by its stable id.
type Participant struct {
	ID                    string          `json:"uuid"`
	DisplayName           string          `json:"display_name"`
	OverlayText           string          `json:"overlay_text"`
	Role                  ParticipantRole `json:"role"`
	ServiceType           string          `json:"service_type"`
	CallDirection         string          `json:"call_direction"`
	Protocol              string          `json:"protocol"`
	HasMedia              bool            `json:"has_media"`
	IsExternal            bool            `json:"is_external"`
	IsVideoMuted          bool            `json:"is_video_muted"`
	IsAudioMuted          Flag            `json:"is_muted"`
	IsPresenting          Flag            `json:"is_presenting"`
	IsVideoCall           Flag            `json:"is_video_call"`
	IsAudioOnlyCall       Flag            `json:"is_audio_only_call"`
	IsMuteSupported       Flag            `json:"is_mute_supported"`
	IsDisconnectSupported Flag            `json:"is_disconnect_supported"`
}
