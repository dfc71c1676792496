package domain

import (
	"errors"
	"time"
)

// ErrTokenExpired is returned when an API call is attempted with a token
// whose validity window has passed. Callers must request a new token;
// retrying with the same token is a programming error.
var ErrTokenExpired = errors.New("token expired")

// Role is the privilege level granted by a token.
type Role string

const (
	RoleHost  Role = "HOST"
	RoleGuest Role = "GUEST"
)

// TurnServer holds TURN relay configuration returned with a token.
type TurnServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username"`
	Credential string   `json:"credential"`
}

// Token is the short-lived bearer credential authorizing API calls for a
// conference or registration session. Tokens are replaced wholesale on each
// refresh, never mutated in place.
type Token struct {
	Value          string
	UpdatedAt      time.Time
	Expires        time.Duration
	ParticipantID  string
	RegistrationID string
	Role           Role
	DisplayName    string
	ConferenceName string
	ChatEnabled    bool
	Stun           []string
	Turn           []TurnServer
}

// ExpiresAt is the instant after which the token is no longer usable.
func (t Token) ExpiresAt() time.Time {
	return t.UpdatedAt.Add(t.Expires)
}

// RefreshAt is the instant at which a refresh should be scheduled,
// halfway through the validity window.
func (t Token) RefreshAt() time.Time {
	return t.UpdatedAt.Add(t.Expires / 2)
}

// IsExpired reports whether the token is unusable at the given instant.
func (t Token) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt())
}

// Updating returns a copy of the token with a new value and validity window.
func (t Token) Updating(value string, expires time.Duration, now time.Time) Token {
	t.Value = value
	t.Expires = expires
	t.UpdatedAt = now
	return t
}

// TokenRefresh is the result of a refresh call: the replacement value and
// its validity window.
type TokenRefresh struct {
	Token   string
	Expires time.Duration
}
