// Package webrtc implements domain.MediaConnection on Pion.
package webrtc

import (
	"context"
	"fmt"
	"strings"

	"github.com/pion/interceptor"
	pion "github.com/pion/webrtc/v4"

	"confstream/client/internal/domain"
	"confstream/client/internal/logging"
)

// Connection wraps a Pion PeerConnection behind the media port the call
// session drives.
type Connection struct {
	pc     *pion.PeerConnection
	logger logging.Logger
}

// NewConnection creates a peer connection configured with the STUN and
// TURN servers granted by the session token, with bidirectional audio
// and video transceivers.
func NewConnection(tok domain.Token, logger logging.Logger) (*Connection, error) {
	m := &pion.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	reg := &interceptor.Registry{}
	if err := pion.RegisterDefaultInterceptors(m, reg); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	api := pion.NewAPI(
		pion.WithMediaEngine(m),
		pion.WithInterceptorRegistry(reg),
	)

	var servers []pion.ICEServer
	for _, url := range tok.Stun {
		servers = append(servers, pion.ICEServer{URLs: []string{url}})
	}
	for _, t := range tok.Turn {
		servers = append(servers, pion.ICEServer{
			URLs:       t.URLs,
			Username:   t.Username,
			Credential: t.Credential,
		})
	}

	pc, err := api.NewPeerConnection(pion.Configuration{
		ICEServers:   servers,
		BundlePolicy: pion.BundlePolicyMaxBundle,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	for _, kind := range []pion.RTPCodecType{pion.RTPCodecTypeAudio, pion.RTPCodecTypeVideo} {
		_, err := pc.AddTransceiverFromKind(kind, pion.RTPTransceiverInit{
			Direction: pion.RTPTransceiverDirectionSendrecv,
		})
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("add %s transceiver: %w", kind, err)
		}
	}

	return &Connection{pc: pc, logger: logger}, nil
}

// CreateOffer generates an SDP offer and installs it as the local
// description.
func (c *Connection) CreateOffer(ctx context.Context) (string, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	c.logger.Debugf("local SDP offer set")
	return offer.SDP, nil
}

// ApplyAnswer installs the remote SDP answer.
func (c *Connection) ApplyAnswer(ctx context.Context, sdp string) error {
	answer := pion.SessionDescription{
		Type: pion.SDPTypeAnswer,
		SDP:  sdp,
	}
	if err := c.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	c.logger.Debugf("remote SDP answer set")
	return nil
}

// OnCandidate registers the callback for locally discovered ICE
// candidates. Loopback candidates are filtered out.
func (c *Connection) OnCandidate(fn func(candidate, mid string)) {
	c.pc.OnICECandidate(func(cand *pion.ICECandidate) {
		if cand == nil {
			c.logger.Debugf("ICE gathering complete")
			return
		}
		j := cand.ToJSON()
		if isLoopback(j.Candidate) {
			return
		}
		mid := ""
		if j.SDPMid != nil {
			mid = *j.SDPMid
		}
		fn(j.Candidate, mid)
	})
}

// OnStateChange registers the callback for transport state changes.
func (c *Connection) OnStateChange(fn func(domain.MediaConnectionState)) {
	c.pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		c.logger.Debugf("peer connection state: %s", state)
		fn(mapState(state))
	})
}

// Close shuts the peer connection down.
func (c *Connection) Close() error {
	return c.pc.Close()
}

func mapState(state pion.PeerConnectionState) domain.MediaConnectionState {
	switch state {
	case pion.PeerConnectionStateNew:
		return domain.MediaNew
	case pion.PeerConnectionStateConnecting:
		return domain.MediaConnecting
	case pion.PeerConnectionStateConnected:
		return domain.MediaConnected
	case pion.PeerConnectionStateDisconnected:
		return domain.MediaDisconnected
	case pion.PeerConnectionStateFailed:
		return domain.MediaFailed
	default:
		return domain.MediaClosed
	}
}

func isLoopback(candidate string) bool {
	return strings.Contains(candidate, "127.0.0.1") || strings.Contains(candidate, "::1 ")
}
