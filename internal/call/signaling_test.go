package call

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"confstream/client/internal/api"
	"confstream/client/internal/domain"
	"confstream/client/internal/logging"
	"confstream/client/internal/roster"
	"confstream/client/internal/token"
)

const answerSDP = "v=0\r\na=ice-ufrag:srv\r\na=ice-pwd:srv-pwd\r\n"

type backend struct {
	mu       sync.Mutex
	requests []string
	bodies   map[string]json.RawMessage
}

func (b *backend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(map[string]any{})
		if r.Body != nil {
			raw := json.RawMessage{}
			if err := json.NewDecoder(r.Body).Decode(&raw); err == nil {
				body = raw
			}
		}
		b.mu.Lock()
		b.requests = append(b.requests, r.URL.Path)
		b.bodies[r.URL.Path] = body
		b.mu.Unlock()

		switch {
		case strings.HasSuffix(r.URL.Path, "/calls"):
			writeResult(w, map[string]string{
				"call_uuid": "b1f0a53e-5200-4f45-9f0a-7e58b3a2d9be",
				"sdp":       answerSDP,
			})
		case strings.HasSuffix(r.URL.Path, "/ack"):
			writeResult(w, true)
		case strings.HasSuffix(r.URL.Path, "/update"):
			writeResult(w, map[string]string{"sdp": "renegotiated"})
		default:
			writeResult(w, true)
		}
	})
}

func (b *backend) saw(suffix string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.requests {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}

func writeResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"status": "success", "result": result})
}

func newTestChannel(t *testing.T) (*SignalingChannel, *backend, *roster.Roster) {
	t.Helper()
	b := &backend{bodies: make(map[string]json.RawMessage)}
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)

	logger := logging.Nop{}
	client := api.NewClient(logger)
	service := api.NewConferenceService(srv.URL, "meet", client, logger)
	store := token.NewStore(domain.Token{
		Value:     "tok",
		UpdatedAt: time.Now(),
		Expires:   120 * time.Second,
	})
	ros := roster.New("p1", "Me")
	return NewSignalingChannel(service.Participant("p1"), store, ros, logger), b, ros
}

func TestSignalingSendOffer(t *testing.T) {
	channel, b, _ := newTestChannel(t)

	answer, err := channel.SendOffer(context.Background(), "WEBRTC", testSDP, false)
	if err != nil {
		t.Fatalf("send offer: %v", err)
	}
	if answer != answerSDP {
		t.Errorf("unexpected answer %q", answer)
	}
	if !b.saw("/participants/p1/calls") {
		t.Errorf("calls endpoint not hit: %v", b.requests)
	}
}

func TestSignalingRenegotiationUsesUpdate(t *testing.T) {
	channel, b, _ := newTestChannel(t)

	if _, err := channel.SendOffer(context.Background(), "WEBRTC", testSDP, false); err != nil {
		t.Fatalf("send offer: %v", err)
	}
	answer, err := channel.SendOffer(context.Background(), "WEBRTC", testSDP, false)
	if err != nil {
		t.Fatalf("renegotiate: %v", err)
	}
	if answer != "renegotiated" {
		t.Errorf("unexpected answer %q", answer)
	}
	if !b.saw("/update") {
		t.Errorf("update endpoint not hit: %v", b.requests)
	}
}

func TestSignalingCandidateBeforeOffer(t *testing.T) {
	channel, _, _ := newTestChannel(t)
	err := channel.SendCandidate(context.Background(), "candidate:1", "0")
	if !errors.Is(err, ErrCallNotStarted) {
		t.Errorf("error = %v, want ErrCallNotStarted", err)
	}
}

func TestSignalingCandidateCarriesPwd(t *testing.T) {
	channel, b, _ := newTestChannel(t)
	if _, err := channel.SendOffer(context.Background(), "WEBRTC", testSDP, false); err != nil {
		t.Fatalf("send offer: %v", err)
	}

	candidate := "candidate:1 1 UDP 2122252543 192.0.2.1 54321 typ host ufrag abcd"
	if err := channel.SendCandidate(context.Background(), candidate, "0"); err != nil {
		t.Fatalf("send candidate: %v", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	var path string
	for p := range b.bodies {
		if strings.HasSuffix(p, "/new_candidate") {
			path = p
		}
	}
	if path == "" {
		t.Fatalf("new_candidate endpoint not hit: %v", b.requests)
	}
	var sent domain.IceCandidate
	if err := json.Unmarshal(b.bodies[path], &sent); err != nil {
		t.Fatalf("decode candidate body: %v", err)
	}
	if sent.Ufrag != "abcd" || sent.Pwd != "secret-one" {
		t.Errorf("candidate ufrag=%q pwd=%q, want abcd/secret-one", sent.Ufrag, sent.Pwd)
	}
	if sent.Mid != "0" {
		t.Errorf("candidate mid = %q, want 0", sent.Mid)
	}
}

func TestSignalingAckThenDisconnect(t *testing.T) {
	channel, b, _ := newTestChannel(t)
	if _, err := channel.SendOffer(context.Background(), "WEBRTC", testSDP, false); err != nil {
		t.Fatalf("send offer: %v", err)
	}

	ok, err := channel.Ack(context.Background())
	if err != nil || !ok {
		t.Fatalf("ack = %v, %v", ok, err)
	}

	channel.Disconnect(context.Background())
	if !b.saw("/disconnect") {
		t.Errorf("disconnect endpoint not hit: %v", b.requests)
	}
}

func TestSignalingDisconnectWithoutAckSkipped(t *testing.T) {
	channel, b, _ := newTestChannel(t)
	if _, err := channel.SendOffer(context.Background(), "WEBRTC", testSDP, false); err != nil {
		t.Fatalf("send offer: %v", err)
	}

	channel.Disconnect(context.Background())
	if b.saw("/disconnect") {
		t.Errorf("disconnect was sent without an ack: %v", b.requests)
	}
}

func TestSignalingFloorGating(t *testing.T) {
	channel, b, ros := newTestChannel(t)

	// Not presenting: release_floor is a no-op, take_floor goes out.
	if err := channel.ReleaseFloor(context.Background()); err != nil {
		t.Fatalf("release floor: %v", err)
	}
	if b.saw("/release_floor") {
		t.Error("release_floor sent while not presenting")
	}
	if err := channel.TakeFloor(context.Background()); err != nil {
		t.Fatalf("take floor: %v", err)
	}
	if !b.saw("/take_floor") {
		t.Error("take_floor not sent")
	}

	me := domain.Participant{ID: "p1", DisplayName: "Me", IsPresenting: true}
	ros.AddParticipant(me)

	// Presenting: take_floor is a no-op, release_floor goes out.
	b.mu.Lock()
	b.requests = nil
	b.mu.Unlock()
	if err := channel.TakeFloor(context.Background()); err != nil {
		t.Fatalf("take floor: %v", err)
	}
	if b.saw("/take_floor") {
		t.Error("take_floor sent while presenting")
	}
	if err := channel.ReleaseFloor(context.Background()); err != nil {
		t.Fatalf("release floor: %v", err)
	}
	if !b.saw("/release_floor") {
		t.Error("release_floor not sent")
	}
}

func TestSignalingMute(t *testing.T) {
	channel, b, _ := newTestChannel(t)

	if _, err := channel.MuteAudio(context.Background(), true); err != nil {
		t.Fatalf("mute audio: %v", err)
	}
	if !b.saw("/mute") {
		t.Error("mute endpoint not hit")
	}
	if _, err := channel.MuteVideo(context.Background(), false); err != nil {
		t.Fatalf("unmute video: %v", err)
	}
	if !b.saw("/video_unmuted") {
		t.Error("video_unmuted endpoint not hit")
	}
}
