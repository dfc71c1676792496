package conference

import (
	"context"
	"fmt"

	"confstream/client/internal/api"
	"confstream/client/internal/domain"
	"confstream/client/internal/logging"
	"confstream/client/internal/sse"
	"confstream/client/internal/token"
)

// RegistrationParams identify the device registration.
type RegistrationParams struct {
	// Node is the base URL of the conferencing node.
	Node string
	// Alias is the device alias to register.
	Alias string
	// Username and Password authenticate the registration.
	Username string
	Password string
}

// Registration is one registered device. Incoming call notifications
// arrive on Subscribe channels until Unregister.
type Registration struct {
	service   *api.RegistrationService
	store     *token.Store
	refresher *token.Refresher
	session   *sse.Session[domain.RegistrationMessage]
	logger    logging.Logger
	errs      chan error
}

// Register requests a registration token and starts the refresher and
// the registration event stream.
func Register(ctx context.Context, params RegistrationParams, logger logging.Logger) (*Registration, error) {
	client := api.NewClient(logger)
	service := api.NewRegistrationService(params.Node, params.Alias, client, logger)

	tok, err := service.RequestToken(ctx, params.Username, params.Password)
	if err != nil {
		return nil, fmt.Errorf("request registration token: %w", err)
	}

	r := &Registration{
		service: service,
		store:   token.NewStore(tok),
		logger:  logger,
		errs:    make(chan error, 1),
	}
	r.refresher = token.NewRefresher(service, r.store, logger, func(err error) {
		select {
		case r.errs <- err:
		default:
		}
	})
	r.refresher.Start()

	open := func(ctx context.Context, lastEventID string) (*sse.Stream, error) {
		tok, err := r.store.Token(ctx)
		if err != nil {
			return nil, err
		}
		return service.OpenEvents(ctx, tok, lastEventID)
	}
	parse := func(name string, data []byte) (domain.RegistrationMessage, bool) {
		return domain.ParseRegistrationMessage(name, data, logger)
	}
	r.session = sse.NewSession(open, parse, logger)
	r.session.Open(context.Background())

	return r, nil
}

// Errors delivers background failures of the registration session.
func (r *Registration) Errors() <-chan error { return r.errs }

// Subscribe registers a receiver for incoming call notifications.
func (r *Registration) Subscribe() (<-chan domain.RegistrationMessage, func()) {
	return r.session.Subscribe()
}

// Unregister ends the registration and releases its token.
func (r *Registration) Unregister(ctx context.Context) {
	r.session.Close()
	r.refresher.Stop(true)
}
