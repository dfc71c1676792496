package domain

import "github.com/google/uuid"

// CallDetails is the backend's record of an established call: the
// server-assigned id and the SDP answer to the local offer. Immutable once
// received; all subsequent signaling actions reference the id.
type CallDetails struct {
	CallID uuid.UUID `json:"call_uuid"`
	SDP    string    `json:"sdp"`
}

// IceCandidate is a network path descriptor POSTed to the backend during
// media negotiation. Ufrag and Pwd come from the local SDP, not the
// candidate itself; the signaling backend requires both on every candidate
// sent after the initial offer.
type IceCandidate struct {
	Candidate string `json:"candidate"`
	Mid       string `json:"mid,omitempty"`
	Ufrag     string `json:"ufrag,omitempty"`
	Pwd       string `json:"pwd,omitempty"`
}
