package sse

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"

	"confstream/client/internal/logging"
)

// StreamError reports why a stream could not be opened or was cut short.
// Response is the server response that terminated the stream, when one
// exists.
type StreamError struct {
	Response *http.Response
	Err      error
}

func (e *StreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("event stream: %v", e.Err)
	}
	if e.Response != nil {
		return fmt.Sprintf("event stream closed with status %d", e.Response.StatusCode)
	}
	return "event stream closed"
}

func (e *StreamError) Unwrap() error { return e.Err }

// Client opens server-sent event streams over HTTP. The underlying client
// must not carry a timeout; streams are long-lived and are ended by
// cancelling the request context.
type Client struct {
	http   *http.Client
	logger logging.Logger
}

func NewClient(logger logging.Logger) *Client {
	return &Client{
		http:   &http.Client{},
		logger: logger,
	}
}

// Open issues req and hands the response body to a Stream. lastEventID,
// when non-empty, is sent as Last-Event-Id so the server can resume.
func (c *Client) Open(ctx context.Context, req *http.Request, lastEventID string) (*Stream, error) {
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if lastEventID != "" {
		req.Header.Set("Last-Event-Id", lastEventID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &StreamError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StreamError{Response: resp}
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "text/event-stream" {
		resp.Body.Close()
		return nil, &StreamError{
			Response: resp,
			Err:      fmt.Errorf("unexpected content type %q", mediaType),
		}
	}

	s := &Stream{
		resp:   resp,
		events: make(chan Event),
		done:   make(chan struct{}),
	}
	go s.read()
	return s, nil
}

// Stream is one open event stream. Events are delivered on Events until
// the stream ends; Err then reports why.
type Stream struct {
	resp   *http.Response
	events chan Event
	done   chan struct{}
	err    error
}

// Events yields decoded events in arrival order. The channel is closed
// when the stream ends.
func (s *Stream) Events() <-chan Event { return s.events }

// Err reports why the stream ended. Valid after Events is closed.
func (s *Stream) Err() error { return s.err }

// Close terminates the stream and releases the connection.
func (s *Stream) Close() {
	s.resp.Body.Close()
	<-s.done
}

func (s *Stream) read() {
	defer close(s.done)
	defer close(s.events)
	defer s.resp.Body.Close()

	var parser Parser
	buf := make([]byte, 4096)
	for {
		n, err := s.resp.Body.Read(buf)
		if n > 0 {
			for _, ev := range parser.Feed(buf[:n]) {
				s.events <- ev
			}
		}
		if err != nil {
			if err == io.EOF {
				err = nil
			}
			s.err = &StreamError{Response: s.resp, Err: err}
			return
		}
	}
}
