package api

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when credentials were rejected outright.
var ErrUnauthorized = errors.New("unauthorized")

// ErrInvalidPIN is returned when a supplied PIN was wrong.
var ErrInvalidPIN = errors.New("invalid pin")

// NotFoundError is returned when the addressed resource does not exist.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

// StatusError is returned for HTTP statuses with no more specific mapping.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// PINChallengeError is returned when a token request needs a PIN the
// caller did not supply. GuestPIN reports whether guests need one too;
// when false a guest may retry with an empty PIN.
type PINChallengeError struct {
	GuestPIN bool
}

func (e *PINChallengeError) Error() string {
	return "pin required"
}

// ConferenceExtensionError is returned when the alias addresses a
// gateway that needs a conference extension to complete the route.
type ConferenceExtensionError struct {
	ExtensionType string
}

func (e *ConferenceExtensionError) Error() string {
	return "conference extension required"
}
