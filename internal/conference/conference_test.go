package conference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"confstream/client/internal/api"
	"confstream/client/internal/domain"
	"confstream/client/internal/logging"
)

// testNode fakes the conferencing backend: token endpoints plus an event
// stream that replays the configured frames.
type testNode struct {
	mu       sync.Mutex
	requests []string
	frames   []string
	pin      string
	// start gates the event stream so tests can subscribe before any
	// frame is sent. Nil means send immediately.
	start chan struct{}
}

func (n *testNode) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n.mu.Lock()
		n.requests = append(n.requests, r.URL.Path)
		n.mu.Unlock()

		switch {
		case strings.HasSuffix(r.URL.Path, "/request_token"):
			n.mu.Lock()
			wantPIN := n.pin
			n.mu.Unlock()
			if wantPIN != "" && r.Header.Get("pin") != wantPIN {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				json.NewEncoder(w).Encode(map[string]any{
					"status": "success",
					"result": map[string]string{"guest_pin": "required"},
				})
				return
			}
			writeJSON(w, map[string]any{
				"token":            "tok-1",
				"expires":          "120",
				"participant_uuid": "p1",
				"display_name":     "Alice",
				"role":             "HOST",
				"conference_name":  "meet",
				"chat_enabled":     true,
			})
		case strings.HasSuffix(r.URL.Path, "/refresh_token"):
			writeJSON(w, map[string]string{"token": "tok-2", "expires": "120"})
		case strings.HasSuffix(r.URL.Path, "/release_token"):
			writeJSON(w, true)
		case strings.HasSuffix(r.URL.Path, "/events"):
			w.Header().Set("Content-Type", "text/event-stream")
			w.WriteHeader(http.StatusOK)
			w.(http.Flusher).Flush()
			n.mu.Lock()
			frames := n.frames
			start := n.start
			n.mu.Unlock()
			if start != nil {
				<-start
			}
			for _, f := range frames {
				w.Write([]byte(f))
			}
			w.(http.Flusher).Flush()
			<-r.Context().Done()
		case strings.HasSuffix(r.URL.Path, "/message"):
			writeJSON(w, true)
		default:
			writeJSON(w, true)
		}
	})
}

func (n *testNode) saw(suffix string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, p := range n.requests {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"status": "success", "result": result})
}

func event(name, data string) string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", name, data)
}

func TestJoinFollowsRosterAndLeaves(t *testing.T) {
	node := &testNode{start: make(chan struct{}), frames: []string{
		event("participant_sync_begin", "{}"),
		event("participant_create", `{"uuid":"p1","display_name":"Alice"}`),
		event("participant_create", `{"uuid":"p2","display_name":"Bob"}`),
		event("participant_sync_end", "{}"),
		event("conference_update", `{"locked":true,"live_captions_available":true}`),
		event("message_received", `{"origin":"Bob","payload":"hi"}`),
	}}
	srv := httptest.NewServer(node.handler(t))
	defer srv.Close()

	conf, err := Join(context.Background(), Params{
		Node:        srv.URL,
		Alias:       "meet",
		DisplayName: "Alice",
	}, logging.Nop{})
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	events, unsubscribe := conf.Subscribe()
	defer unsubscribe()
	close(node.start)

	// Wait for the chat message; roster and status events precede it on
	// the stream.
	var chat domain.ChatMessage
	deadline := time.After(5 * time.Second)
wait:
	for {
		select {
		case msg := <-events:
			if m, ok := msg.(domain.ChatMessage); ok {
				chat = m
				break wait
			}
		case <-deadline:
			t.Fatal("chat message never arrived")
		}
	}
	if chat.SenderName != "Bob" || chat.Payload != "hi" {
		t.Errorf("unexpected chat: %+v", chat)
	}

	list := conf.Roster().Participants()
	if len(list) != 2 {
		t.Fatalf("roster = %+v, want 2 participants", list)
	}
	if !conf.Status().Locked || !conf.Status().LiveCaptionsAvailable {
		t.Errorf("status not tracked: %+v", conf.Status())
	}

	if ok, err := conf.SendMessage(context.Background(), "hello"); err != nil || !ok {
		t.Errorf("send message = %v, %v", ok, err)
	}
	if err := conf.ToggleLiveCaptions(context.Background(), true); err != nil {
		t.Errorf("toggle captions: %v", err)
	}
	if !node.saw("/show_live_captions") {
		t.Error("show_live_captions not hit")
	}

	conf.Leave(context.Background())
	if !node.saw("/release_token") {
		t.Errorf("token not released on leave: %v", node.requests)
	}
}

func TestJoinRetriesWithoutGuestPIN(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/request_token") {
			calls++
			if r.Header.Get("pin") == "" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				json.NewEncoder(w).Encode(map[string]any{
					"status": "success",
					"result": map[string]string{"guest_pin": "none"},
				})
				return
			}
			writeJSON(w, map[string]any{
				"token":            "tok-1",
				"expires":          "120",
				"participant_uuid": "p1",
				"role":             "GUEST",
			})
			return
		}
		if strings.HasSuffix(r.URL.Path, "/events") {
			w.Header().Set("Content-Type", "text/event-stream")
			w.WriteHeader(http.StatusOK)
			w.(http.Flusher).Flush()
			<-r.Context().Done()
			return
		}
		writeJSON(w, true)
	}))
	defer srv.Close()

	conf, err := Join(context.Background(), Params{Node: srv.URL, Alias: "meet", DisplayName: "Alice"}, logging.Nop{})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	defer conf.Leave(context.Background())

	if calls != 2 {
		t.Errorf("request_token called %d times, want a retry with pin none", calls)
	}
}

func TestJoinWrongPIN(t *testing.T) {
	node := &testNode{pin: "1234"}
	srv := httptest.NewServer(node.handler(t))
	defer srv.Close()

	_, err := Join(context.Background(), Params{
		Node:        srv.URL,
		Alias:       "meet",
		DisplayName: "Alice",
		PIN:         "9999",
	}, logging.Nop{})
	if !errors.Is(err, api.ErrInvalidPIN) {
		t.Errorf("join error = %v, want ErrInvalidPIN", err)
	}
}

func TestMuteParticipantRequiresHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/request_token") {
			writeJSON(w, map[string]any{
				"token":            "tok-1",
				"expires":          "120",
				"participant_uuid": "p1",
				"role":             "GUEST",
			})
			return
		}
		if strings.HasSuffix(r.URL.Path, "/events") {
			w.Header().Set("Content-Type", "text/event-stream")
			w.WriteHeader(http.StatusOK)
			w.(http.Flusher).Flush()
			<-r.Context().Done()
			return
		}
		writeJSON(w, true)
	}))
	defer srv.Close()

	conf, err := Join(context.Background(), Params{Node: srv.URL, Alias: "meet", DisplayName: "Alice"}, logging.Nop{})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	defer conf.Leave(context.Background())

	if _, err := conf.MuteParticipant(context.Background(), "p2", true); !errors.Is(err, ErrNotHost) {
		t.Errorf("error = %v, want ErrNotHost", err)
	}
}

func TestServerDisconnectSkipsRelease(t *testing.T) {
	node := &testNode{start: make(chan struct{}), frames: []string{
		event("disconnect", `{"reason":"conference ended"}`),
	}}
	srv := httptest.NewServer(node.handler(t))
	defer srv.Close()

	conf, err := Join(context.Background(), Params{Node: srv.URL, Alias: "meet", DisplayName: "Alice"}, logging.Nop{})
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	events, unsubscribe := conf.Subscribe()
	defer unsubscribe()
	close(node.start)
	select {
	case msg := <-events:
		if _, ok := msg.(domain.ClientDisconnectedMessage); !ok {
			t.Fatalf("unexpected message %T", msg)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("disconnect never arrived")
	}

	conf.Leave(context.Background())
	if node.saw("/release_token") {
		t.Error("token released despite server-side disconnect")
	}
}
