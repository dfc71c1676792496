package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	ossignal "os/signal"
	"syscall"

	"confstream/client/internal/conference"
	"confstream/client/internal/config"
	"confstream/client/internal/domain"
	"confstream/client/internal/logging"
	"confstream/client/internal/node"
	"confstream/client/internal/webrtc"
)

const helpText = `confstream - Join a conference and dial a WebRTC call from the terminal

Joins the conference, keeps the session token refreshed, follows the
roster over the event stream and establishes an audio/video call.

Environment Variables:
  CONF_NODE   Conferencing node host or base URL (required)
  CONF_ALIAS  Conference alias to join (required)
  CONF_NAME   Display name (default "confstream")
  CONF_PIN    Conference PIN, if protected

Options:
  -h, --help  Show this help message
`

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		fmt.Print(helpText)
		os.Exit(0)
	}

	logger := logging.New("confstream")
	logging.SetLevel("confstream", "info")

	cfg, err := config.Load()
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("received %s, shutting down", sig)
		cancel()
	}()

	// Step 1: Resolve the node
	nodeURL := cfg.Node
	if u, err := url.Parse(cfg.Node); err != nil || u.Scheme == "" {
		resolver := node.NewResolver(logger)
		urls, err := resolver.Resolve(ctx, cfg.Node)
		if err != nil {
			logger.Errorf("resolve node: %v", err)
			os.Exit(1)
		}
		nodeURL = urls[0]
	}

	// Step 2: Join the conference
	logger.Infof("joining %s as %q", cfg.Alias, cfg.DisplayName)
	conf, err := conference.Join(ctx, conference.Params{
		Node:        nodeURL,
		Alias:       cfg.Alias,
		DisplayName: cfg.DisplayName,
		PIN:         cfg.PIN,
	}, logger)
	if err != nil {
		logger.Errorf("join: %v", err)
		os.Exit(1)
	}
	logger.Infof("joined conference %q", conf.Roster().CurrentName())

	// Step 3: Dial the call
	if tok, err := conf.Token(ctx); err == nil {
		media, err := webrtc.NewConnection(tok, logger)
		if err != nil {
			logger.Errorf("create media connection: %v", err)
		} else if _, err := conf.StartCall(ctx, media); err != nil {
			logger.Errorf("start call: %v", err)
		}
	}

	// Step 4: Follow events until shutdown
	events, unsubscribe := conf.Subscribe()
	defer unsubscribe()

loop:
	for {
		select {
		case msg, ok := <-events:
			if !ok {
				break loop
			}
			printEvent(logger, msg)
		case err := <-conf.Errors():
			logger.Errorf("session failed: %v", err)
			break loop
		case <-ctx.Done():
			break loop
		}
	}

	logger.Infof("leaving conference")
	conf.Leave(context.Background())
}

func printEvent(logger logging.Logger, msg domain.ServerMessage) {
	switch m := msg.(type) {
	case domain.ChatMessage:
		logger.Infof("%s: %s", m.SenderName, m.Payload)
	case domain.LiveCaptionsMessage:
		logger.Infof("[captions] %s", m.Data)
	case domain.ParticipantCreateMessage:
		logger.Infof("%s joined", m.Participant.DisplayName)
	case domain.ParticipantDeleteMessage:
		logger.Infof("participant %s left", m.ID)
	case domain.PresentationStartMessage:
		logger.Infof("%s started presenting", m.PresenterName)
	case domain.PresentationStopMessage:
		logger.Infof("presentation stopped")
	case domain.ClientDisconnectedMessage:
		logger.Infof("disconnected: %s", m.Reason)
	}
}
