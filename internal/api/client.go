// Package api is the HTTP client for the conferencing backend's REST
// surface. Every response uses the same envelope; helpers here decode it
// and map error statuses to typed errors.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"confstream/client/internal/logging"
)

const requestTimeout = 30 * time.Second

// tokenHeader carries the session token on authenticated requests.
const tokenHeader = "token"

// envelope is the response wrapper used by every endpoint.
type envelope struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
}

// Client issues requests and decodes enveloped responses. It is shared by
// the per-resource services.
type Client struct {
	http   *http.Client
	logger logging.Logger
}

func NewClient(logger logging.Logger) *Client {
	return &Client{
		http:   &http.Client{Timeout: requestTimeout},
		logger: logger,
	}
}

// request builds an authenticated JSON request. token may be empty for
// unauthenticated endpoints; body may be nil.
func (c *Client) request(ctx context.Context, method, url, token string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(tokenHeader, token)
	}
	return req, nil
}

// do runs the request and decodes the result field into out. A nil out
// discards the result. Error statuses become typed errors; the 403 body
// is inspected for PIN and extension challenges.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return forbiddenError(body)
	case http.StatusNotFound:
		return &NotFoundError{Resource: "conference"}
	default:
		c.logger.Debugf("%s %s returned %d: %s", req.Method, req.URL, resp.StatusCode, body)
		return &StatusError{Code: resp.StatusCode}
	}

	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	return nil
}

// forbiddenError distinguishes the 403 variants. A guest_pin field means
// the conference is PIN-protected; a conference_extension field means the
// alias routes through a gateway. Anything else surfaces as a plain
// status error.
func forbiddenError(body []byte) error {
	var env struct {
		Result struct {
			GuestPIN      string `json:"guest_pin"`
			ConferenceExt string `json:"conference_extension"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		if env.Result.ConferenceExt != "" {
			return &ConferenceExtensionError{ExtensionType: env.Result.ConferenceExt}
		}
		if env.Result.GuestPIN != "" {
			return &PINChallengeError{GuestPIN: env.Result.GuestPIN == "required"}
		}
	}
	return &StatusError{Code: http.StatusForbidden}
}
