package preload

import (
	"context"
	"reflect"
	"sync"
)

// Result is what a Loader produces. Value is the formatted payload and Raw
// the unprocessed one; strategies without a separate raw form set both.
type Result struct {
	Value any
	Raw   any
}

// Reporter receives notifications from a running Loader. It is safe to call
// from any goroutine. Calls made after the load was canceled are ignored.
type Reporter interface {
	// Progress reports loaded bytes (or units) out of total. A total of zero
	// or less means unknown.
	Progress(loaded, total int64)
	// FileLoad and FileError report sub-items of composite loaders.
	FileLoad(item Item, result Result)
	FileError(item Item, err error)
	// Received tells the queue the item's own payload has arrived. The
	// item's load timeout no longer applies after it, so composite loaders
	// call it before loading their sub-items, which carry their own.
	Received()
}

// Loader loads exactly one Item. Load blocks until the payload is available
// or ctx is done.
type Loader interface {
	Load(ctx context.Context, r Reporter) (Result, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, r Reporter) (Result, error)

func (f LoaderFunc) Load(ctx context.Context, r Reporter) (Result, error) {
	return f(ctx, r)
}

// Loaded pairs a sub-item with its result.
type Loaded struct {
	Item   Item
	Result Result
}

// Composite is implemented by loaders that load further items themselves,
// such as manifests. Their sub-items become retrievable from the queue.
type Composite interface {
	LoadedItems() []Loaded
}

// Strategy decides whether it can load an item and builds a Loader for it.
type Strategy interface {
	CanLoad(item Item) bool
	NewLoader(item Item, preferNetwork bool) Loader
}

// FuncStrategy is a Strategy made of a predicate and a factory.
type FuncStrategy struct {
	Name    string
	match   func(Item) bool
	factory func(Item, bool) Loader
}

// NewStrategy returns a pointer so the strategy has a stable identity for
// Register and Unregister.
func NewStrategy(name string, match func(Item) bool, factory func(item Item, preferNetwork bool) Loader) *FuncStrategy {
	return &FuncStrategy{Name: name, match: match, factory: factory}
}

func (s *FuncStrategy) CanLoad(item Item) bool { return s.match(item) }

func (s *FuncStrategy) NewLoader(item Item, preferNetwork bool) Loader {
	return s.factory(item, preferNetwork)
}

func (s *FuncStrategy) String() string { return s.Name }

// ForTypes returns a predicate accepting items of any of the given types.
func ForTypes(types ...Type) func(Item) bool {
	return func(it Item) bool {
		for _, t := range types {
			if it.Type == t {
				return true
			}
		}
		return false
	}
}

// Registry is an ordered list of strategies. Strategies registered after
// construction are searched before the built-in ones, newest first.
type Registry struct {
	mu       sync.RWMutex
	custom   []Strategy
	builtins []Strategy
}

// NewRegistry returns a registry whose built-in strategies are builtins,
// searched in the given order.
func NewRegistry(builtins ...Strategy) *Registry {
	return &Registry{builtins: append([]Strategy(nil), builtins...)}
}

func sameStrategy(a, b Strategy) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

func (r *Registry) contains(s Strategy) bool {
	for _, list := range [][]Strategy{r.custom, r.builtins} {
		for _, existing := range list {
			if sameStrategy(existing, s) {
				return true
			}
		}
	}
	return false
}

// Register prepends s so it gets the first chance at every item.
func (r *Registry) Register(s Strategy) error {
	if s == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.contains(s) {
		return ErrDuplicateStrategy
	}
	r.custom = append([]Strategy{s}, r.custom...)
	return nil
}

// Unregister removes a strategy added with Register. Built-ins stay.
func (r *Registry) Unregister(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.custom {
		if sameStrategy(existing, s) {
			r.custom = append(r.custom[:i:i], r.custom[i+1:]...)
			return
		}
	}
}

// Resolve returns the first strategy accepting item, or nil.
func (r *Registry) Resolve(item Item) Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.custom {
		if s.CanLoad(item) {
			return s
		}
	}
	for _, s := range r.builtins {
		if s.CanLoad(item) {
			return s
		}
	}
	return nil
}

// Strategies returns the search order.
func (r *Registry) Strategies() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Strategy, 0, len(r.custom)+len(r.builtins))
	out = append(out, r.custom...)
	return append(out, r.builtins...)
}
