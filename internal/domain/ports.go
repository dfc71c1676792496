package domain

import "context"

// TokenService refreshes and releases session tokens against the backend.
type TokenService interface {
	RefreshToken(ctx context.Context, token Token) (TokenRefresh, error)
	ReleaseToken(ctx context.Context, token Token) error
}

// MediaConnectionState mirrors the connection state of the media transport.
type MediaConnectionState int

const (
	MediaNew MediaConnectionState = iota
	MediaConnecting
	MediaConnected
	MediaDisconnected
	MediaFailed
	MediaClosed
)

func (s MediaConnectionState) String() string {
	switch s {
	case MediaNew:
		return "new"
	case MediaConnecting:
		return "connecting"
	case MediaConnected:
		return "connected"
	case MediaDisconnected:
		return "disconnected"
	case MediaFailed:
		return "failed"
	case MediaClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MediaConnection is the narrow surface of the real-time media engine the
// call session drives. Codec and transport internals stay behind it.
type MediaConnection interface {
	// CreateOffer generates a local SDP offer and installs it as the
	// local description.
	CreateOffer(ctx context.Context) (string, error)

	// ApplyAnswer installs the remote SDP answer.
	ApplyAnswer(ctx context.Context, sdp string) error

	// OnCandidate registers the callback for locally discovered ICE
	// candidates. Candidates may arrive at any time until the
	// connection is closed.
	OnCandidate(fn func(candidate, mid string))

	// OnStateChange registers the callback for transport state changes.
	OnStateChange(fn func(MediaConnectionState))

	Close() error
}
