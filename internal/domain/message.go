package domain

import (
	"encoding/json"

	"github.com/google/uuid"

	"confstream/client/internal/logging"
)

// ServerMessage is a decoded event from the conference event stream.
// The set is closed; consumers branch on the concrete type.
type ServerMessage interface {
	serverMessage()
}

// ConferenceStatus carries conference-wide properties from a
// conference_update event. Absent fields decode to false.
type ConferenceStatus struct {
	Started               bool `json:"started"`
	Locked                bool `json:"locked"`
	AllMuted              bool `json:"all_muted"`
	GuestsMuted           bool `json:"guests_muted"`
	PresentationAllowed   bool `json:"presentation_allowed"`
	DirectMedia           bool `json:"direct_media"`
	LiveCaptionsAvailable bool `json:"live_captions_available"`
}

// ConferenceUpdateMessage reports changed conference properties.
type ConferenceUpdateMessage struct {
	Status ConferenceStatus
}

// ChatMessage is a text message broadcast to the conference.
type ChatMessage struct {
	SenderName string `json:"origin"`
	SenderID   string `json:"uuid"`
	Type       string `json:"type"`
	Payload    string `json:"payload"`
}

// LiveCaptionsMessage is one fragment of live caption text.
type LiveCaptionsMessage struct {
	Data    string `json:"data"`
	IsFinal bool   `json:"is_final"`
}

// PresentationStartMessage marks the start of a presentation.
type PresentationStartMessage struct {
	PresenterName string `json:"presenter_name"`
	PresenterURI  string `json:"presenter_uri"`
}

// PresentationStopMessage marks the end of a presentation.
type PresentationStopMessage struct{}

// ParticipantSyncBeginMessage marks the start of a full roster resync.
type ParticipantSyncBeginMessage struct{}

// ParticipantSyncEndMessage marks the end of a full roster resync.
type ParticipantSyncEndMessage struct{}

// ParticipantCreateMessage reports a participant joining.
type ParticipantCreateMessage struct {
	Participant Participant
}

// ParticipantUpdateMessage reports changed participant properties.
type ParticipantUpdateMessage struct {
	Participant Participant
}

// ParticipantDeleteMessage reports a participant leaving.
type ParticipantDeleteMessage struct {
	ID string `json:"uuid"`
}

// CallDisconnectedMessage reports that a child call was disconnected.
type CallDisconnectedMessage struct {
	CallID uuid.UUID `json:"call_uuid"`
	Reason string    `json:"reason"`
}

// ClientDisconnectedMessage reports that the server is disconnecting
// this participant.
type ClientDisconnectedMessage struct {
	Reason string `json:"reason"`
}

func (ConferenceUpdateMessage) serverMessage()     {}
func (ChatMessage) serverMessage()                 {}
func (LiveCaptionsMessage) serverMessage()         {}
func (PresentationStartMessage) serverMessage()    {}
func (PresentationStopMessage) serverMessage()     {}
func (ParticipantSyncBeginMessage) serverMessage() {}
func (ParticipantSyncEndMessage) serverMessage()   {}
func (ParticipantCreateMessage) serverMessage()    {}
func (ParticipantUpdateMessage) serverMessage()    {}
func (ParticipantDeleteMessage) serverMessage()    {}
func (CallDisconnectedMessage) serverMessage()     {}
func (ClientDisconnectedMessage) serverMessage()   {}

// ParseServerMessage decodes a named stream event into a ServerMessage.
// Events without a name, with an unrecognized name, or with an undecodable
// payload are dropped (false), never fatal.
func ParseServerMessage(name string, data []byte, logger logging.Logger) (ServerMessage, bool) {
	if name == "" {
		logger.Debugf("received event without a name")
		return nil, false
	}

	var (
		msg ServerMessage
		err error
	)

	switch name {
	case "conference_update":
		var status ConferenceStatus
		err = json.Unmarshal(data, &status)
		msg = ConferenceUpdateMessage{Status: status}
	case "message_received":
		var m ChatMessage
		err = json.Unmarshal(data, &m)
		msg = m
	case "live_captions":
		var m LiveCaptionsMessage
		err = json.Unmarshal(data, &m)
		msg = m
	case "presentation_start":
		var m PresentationStartMessage
		err = json.Unmarshal(data, &m)
		msg = m
	case "presentation_stop":
		msg = PresentationStopMessage{}
	case "participant_sync_begin":
		msg = ParticipantSyncBeginMessage{}
	case "participant_sync_end":
		msg = ParticipantSyncEndMessage{}
	case "participant_create":
		var p Participant
		err = json.Unmarshal(data, &p)
		msg = ParticipantCreateMessage{Participant: p}
	case "participant_update":
		var p Participant
		err = json.Unmarshal(data, &p)
		msg = ParticipantUpdateMessage{Participant: p}
	case "participant_delete":
		var m ParticipantDeleteMessage
		err = json.Unmarshal(data, &m)
		msg = m
	case "call_disconnected":
		var m CallDisconnectedMessage
		err = json.Unmarshal(data, &m)
		msg = m
	case "disconnect":
		var m ClientDisconnectedMessage
		err = json.Unmarshal(data, &m)
		msg = m
	default:
		logger.Debugf("event %q was not handled", name)
		return nil, false
	}

	if err != nil {
		logger.Errorf("failed to decode event %q: %v", name, err)
		return nil, false
	}
	return msg, true
}

// RegistrationMessage is a decoded event from the registration event stream.
type RegistrationMessage interface {
	registrationMessage()
}

// IncomingCallMessage reports an incoming call to a registered device.
type IncomingCallMessage struct {
	ConferenceAlias   string `json:"conference_alias"`
	RemoteDisplayName string `json:"remote_display_name"`
	Token             string `json:"token"`
}

// IncomingCallCancelledMessage reports that an incoming call was cancelled.
type IncomingCallCancelledMessage struct {
	Token string `json:"token"`
}

func (IncomingCallMessage) registrationMessage()          {}
func (IncomingCallCancelledMessage) registrationMessage() {}

// ParseRegistrationMessage decodes a named stream event into a
// RegistrationMessage, with the same drop semantics as ParseServerMessage.
func ParseRegistrationMessage(name string, data []byte, logger logging.Logger) (RegistrationMessage, bool) {
	var (
		msg RegistrationMessage
		err error
	)

	switch name {
	case "incoming":
		var m IncomingCallMessage
		err = json.Unmarshal(data, &m)
		msg = m
	case "incoming_cancelled":
		var m IncomingCallCancelledMessage
		err = json.Unmarshal(data, &m)
		msg = m
	default:
		logger.Debugf("registration event %q was not handled", name)
		return nil, false
	}

	if err != nil {
		logger.Errorf("failed to decode registration event %q: %v", name, err)
		return nil, false
	}
	return msg, true
}
