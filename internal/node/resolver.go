// Package node resolves a host to conferencing node addresses, trying
// SRV records first and falling back to a plain host lookup.
package node

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"confstream/client/internal/logging"
)

const lookupTimeout = 5 * time.Second

// Resolver finds node base URLs for a host. Lookup functions are fields
// so tests can stub DNS.
type Resolver struct {
	lookupSRV  func(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)
	lookupHost func(ctx context.Context, host string) ([]string, error)
	logger     logging.Logger
}

func NewResolver(logger logging.Logger) *Resolver {
	r := net.DefaultResolver
	return &Resolver{
		lookupSRV:  r.LookupSRV,
		lookupHost: r.LookupHost,
		logger:     logger,
	}
}

// Resolve returns candidate node base URLs for host in priority order.
// SRV targets keep their advertised ports; the fallback assumes HTTPS on
// the default port.
func (r *Resolver) Resolve(ctx context.Context, host string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	_, records, err := r.lookupSRV(ctx, "pexapp", "tcp", host)
	if err == nil && len(records) > 0 {
		urls := make([]string, 0, len(records))
		for _, rec := range records {
			target := rec.Target
			if n := len(target); n > 0 && target[n-1] == '.' {
				target = target[:n-1]
			}
			urls = append(urls, "https://"+net.JoinHostPort(target, strconv.Itoa(int(rec.Port))))
		}
		return urls, nil
	}
	if err != nil {
		r.logger.Debugf("SRV lookup for %s failed: %v", host, err)
	}

	addrs, err := r.lookupHost(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve node %s: %w", host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("resolve node %s: no addresses", host)
	}
	return []string{"https://" + host}, nil
}
