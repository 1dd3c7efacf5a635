// Package fetch reads the bytes behind a preload item, either over HTTP or
// from a virtual filesystem.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/Lundis/go-gameassets/preload"
)

// Request describes one fetch.
type Request struct {
	Item preload.Item
	// PreferNetwork routes relative sources to the network fetcher.
	PreferNetwork bool
	// Progress, if set, is called as bytes arrive. total is -1 when unknown.
	Progress func(loaded, total int64)
}

// Fetcher returns the complete payload of a request.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

// Func adapts a function to the Fetcher interface.
type Func func(ctx context.Context, req Request) ([]byte, error)

func (f Func) Fetch(ctx context.Context, req Request) ([]byte, error) {
	return f(ctx, req)
}

// ErrNoFetcher is returned by a Router without a fetcher for the request.
var ErrNoFetcher = errors.New("fetch: no fetcher for source")

var remotePattern = regexp.MustCompile(`^(?:(?i:https?):)?//`)

// IsRemote reports whether src names a network location.
func IsRemote(src string) bool {
	return remotePattern.MatchString(src)
}

// Router sends remote sources to Network and everything else to Local,
// unless the request prefers the network.
type Router struct {
	Network Fetcher
	Local   Fetcher
}

func (r Router) Fetch(ctx context.Context, req Request) ([]byte, error) {
	f := r.pick(req)
	if f == nil {
		return nil, fmt.Errorf("%w: %w %q", preload.ErrFileLoad, ErrNoFetcher, req.Item.Src)
	}
	return f.Fetch(ctx, req)
}

func (r Router) pick(req Request) Fetcher {
	if IsRemote(req.Item.Src) || (req.PreferNetwork && r.Network != nil) {
		return r.Network
	}
	if r.Local != nil {
		return r.Local
	}
	return r.Network
}

func fileError(src string, err error) error {
	return fmt.Errorf("%w: %s: %w", preload.ErrFileLoad, src, err)
}

// Load fetches item through f on behalf of a preload loader, forwarding byte
// progress to r.
func Load(ctx context.Context, f Fetcher, item preload.Item, preferNetwork bool, r preload.Reporter) ([]byte, error) {
	req := Request{Item: item, PreferNetwork: preferNetwork}
	if r != nil {
		req.Progress = r.Progress
	}
	return f.Fetch(ctx, req)
}
