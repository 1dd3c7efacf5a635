// Package manifest provides a composite preload strategy: a manifest file
// lists further items, which are loaded through a child queue and reported
// as sub-items of the manifest.
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Lundis/go-gameassets/fetch"
	"github.com/Lundis/go-gameassets/loaders/text"
	"github.com/Lundis/go-gameassets/preload"
)

// fileShare is the part of the manifest's progress taken by the manifest
// file itself; the rest follows the child queue.
const fileShare = 0.25

// Manifest is the result value of a manifest item.
type Manifest struct {
	Path  string
	Items []preload.Loaded
}

// Strategy loads manifest items through f. child returns the options of the
// queue each manifest's items are loaded with; it is called once per load so
// the registry may include this strategy for nested manifests.
func Strategy(f fetch.Fetcher, child func() preload.Options) *preload.FuncStrategy {
	return preload.NewStrategy("manifest", preload.ForTypes(preload.TypeManifest), func(item preload.Item, preferNetwork bool) preload.Loader {
		return &Loader{item: item, fetcher: f, preferNetwork: preferNetwork, child: child}
	})
}

// Loader loads one manifest. It implements preload.Composite.
type Loader struct {
	item          preload.Item
	fetcher       fetch.Fetcher
	preferNetwork bool
	child         func() preload.Options

	mu     sync.Mutex
	loaded []preload.Loaded
}

func (l *Loader) LoadedItems() []preload.Loaded {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]preload.Loaded(nil), l.loaded...)
}

func (l *Loader) Load(ctx context.Context, r preload.Reporter) (preload.Result, error) {
	data, err := fetch.Load(ctx, l.fetcher, l.item, l.preferNetwork, progressScale{r, 0, fileShare})
	if err != nil {
		return preload.Result{}, err
	}
	m, err := parse(l.item, data)
	if err != nil {
		return preload.Result{}, err
	}
	r.Received()
	result := func() preload.Result {
		return preload.Result{Value: Manifest{Path: m.Path, Items: l.LoadedItems()}, Raw: data}
	}
	if len(m.Manifest) == 0 {
		r.Progress(1, 1)
		return result(), nil
	}

	var opts preload.Options
	if l.child != nil {
		opts = l.child()
	}
	opts.PreferNetwork = opts.PreferNetwork || l.preferNetwork
	q := preload.New(opts)
	done := make(chan struct{})
	q.On(preload.EventFileLoad, func(ev preload.Event) {
		res := preload.Result{Value: ev.Result, Raw: ev.Raw}
		l.mu.Lock()
		l.loaded = append(l.loaded, preload.Loaded{Item: ev.Item, Result: res})
		l.mu.Unlock()
		r.FileLoad(ev.Item, res)
	})
	q.On(preload.EventFileError, func(ev preload.Event) {
		cause := ev.Err
		var ie *preload.ItemError
		if errors.As(cause, &ie) {
			cause = ie.Err
		}
		r.FileError(ev.Item, cause)
	})
	q.On(preload.EventProgress, func(ev preload.Event) {
		progressScale{r, fileShare, 1}.Progress(int64(ev.Progress*1000), 1000)
	})
	q.On(preload.EventComplete, func(preload.Event) { close(done) })

	if err := q.EnqueueMany(m); err != nil {
		return preload.Result{}, fmt.Errorf("%w: %w", preload.ErrJSONFormat, err)
	}
	select {
	case <-done:
	case <-ctx.Done():
		q.CancelAll()
		return preload.Result{}, ctx.Err()
	}
	// complete is delivered after every fileload of the child queue
	return result(), nil
}

func parse(item preload.Item, data []byte) (preload.Manifest, error) {
	if item.Callback != "" {
		body, err := text.UnwrapJSONP(item.Callback, data)
		if err != nil {
			return preload.Manifest{}, err
		}
		data = body
	}
	var m preload.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return preload.Manifest{}, fmt.Errorf("%w: %w", preload.ErrJSONFormat, err)
	}
	if m.Manifest == nil {
		return preload.Manifest{}, fmt.Errorf("%w: %s has no manifest list", preload.ErrJSONFormat, item.Src)
	}
	return m, nil
}

// progressScale maps progress into the range [from, to] of the parent's.
type progressScale struct {
	preload.Reporter
	from, to float64
}

func (p progressScale) Progress(loaded, total int64) {
	if total <= 0 {
		return
	}
	f := p.from + (p.to-p.from)*float64(loaded)/float64(total)
	p.Reporter.Progress(int64(f*1000), 1000)
}
