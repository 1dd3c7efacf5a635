package preload

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Lundis/go-gameassets/internal/event"
)

// Options configures a Queue. The zero value is usable.
type Options struct {
	// MaxConnections caps the number of items loading at once. Defaults to 1.
	MaxConnections int
	// PreferNetwork is passed to strategies when building loaders.
	PreferNetwork bool
	// BasePath is prepended to relative sources, see Item.
	BasePath string
	// StopOnError pauses the queue on the first failed item.
	StopOnError bool
	// IgnoreScriptOrder lets javascript items surface in completion order.
	IgnoreScriptOrder bool
	// LoadTimeout is the default per-item timeout. Defaults to DefaultLoadTimeout.
	LoadTimeout time.Duration
	// Registry resolves strategies. Defaults to an empty registry.
	Registry *Registry
	Plugins  []Plugin
	// OnScript receives javascript items in the order they become visible.
	OnScript func(Item, Result)
	Logger   *zerolog.Logger
}

type entryState int

const (
	statePending entryState = iota
	stateActive
	stateDone
	stateCanceled
)

type entry struct {
	item     Item
	loader   Loader
	state    entryState
	progress float64
	cancel   context.CancelFunc
	timer    *time.Timer
	// slot is the index into the ordered slots, -1 for unordered items.
	slot int
	// serial items wait for every earlier ordered item and never load
	// alongside another serial item.
	serial bool
	failed bool
	result Result
	subs   []Loaded
}

type slotState int

const (
	slotPending slotState = iota
	slotFilled
	slotFailed
	slotSkipped
	slotFlushed
)

type slot struct {
	state slotState
	entry *entry
}

const progressEpsilon = 1e-9

const scriptEvent = "script"

// Queue loads items through strategies with bounded concurrency.
//
// All state is guarded by one mutex. Loaders run on their own goroutines and
// listeners are called on the emitter goroutine, so listeners may call back
// into the queue.
type Queue struct {
	mu       sync.Mutex
	opts     Options
	log      zerolog.Logger
	registry *Registry
	plugins  []Plugin
	events   event.Emitter[Event]

	maxConns int
	paused   bool
	started  bool
	loaded   bool
	next     *Queue

	pending []*entry
	active  []*entry
	order   []*entry
	byID    map[string]*entry
	bySrc   map[string]*entry
	results map[string]Loaded
	backup  []Item

	slots   []slot
	flushed int
	// scriptLoading is set while a serial item is active.
	scriptLoading bool

	total        int
	done         int
	lastProgress float64
	// floor holds progress reached before an active item was canceled. It
	// is cleared when new items are queued.
	floor float64
}

// New returns a paused queue. Items start loading once they are enqueued
// with auto start, or on Load.
func New(opts Options) *Queue {
	if opts.MaxConnections < 1 {
		opts.MaxConnections = 1
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	q := &Queue{
		opts:         opts,
		log:          logger.With().Str("component", "preload").Logger(),
		registry:     opts.Registry,
		plugins:      append([]Plugin(nil), opts.Plugins...),
		maxConns:     opts.MaxConnections,
		paused:       true,
		byID:         make(map[string]*entry),
		bySrc:        make(map[string]*entry),
		results:      make(map[string]Loaded),
		lastProgress: math.NaN(),
	}
	if opts.OnScript != nil {
		onScript := opts.OnScript
		q.events.On(scriptEvent, func(ev Event) {
			onScript(ev.Item, Result{Value: ev.Result, Raw: ev.Raw})
		})
	}
	return q
}

// Registry returns the strategy registry used by the queue.
func (q *Queue) Registry() *Registry {
	return q.registry
}

// RegisterStrategy adds s ahead of every other strategy.
func (q *Queue) RegisterStrategy(s Strategy) error {
	return q.registry.Register(s)
}

// InstallPlugin adds p after the plugins already installed.
func (q *Queue) InstallPlugin(p Plugin) {
	q.mu.Lock()
	q.plugins = append(q.plugins, p)
	q.mu.Unlock()
}

// On registers fn for events of type t and returns a function removing it.
func (q *Queue) On(t EventType, fn func(Event)) (off func()) {
	return q.events.On(string(t), fn)
}

// Wait blocks until every event emitted so far has been delivered. It must
// not be called from a listener.
func (q *Queue) Wait() {
	q.events.Wait()
}

// SetNext chains another queue that starts once this one completes.
func (q *Queue) SetNext(next *Queue) {
	q.mu.Lock()
	q.next = next
	q.mu.Unlock()
}

// EnqueueOption adjusts a single Enqueue call.
type EnqueueOption func(*enqueueConfig)

type enqueueConfig struct {
	paused   bool
	basePath string
	hasBase  bool
}

// Paused adds items without starting the queue. Call Load to start.
func Paused() EnqueueOption {
	return func(c *enqueueConfig) { c.paused = true }
}

// WithBasePath overrides Options.BasePath for this call. The override takes
// part in the fetched src but not in generated ids.
func WithBasePath(p string) EnqueueOption {
	return func(c *enqueueConfig) {
		c.basePath = p
		c.hasBase = true
	}
}

type prepared struct {
	item   Item
	loader Loader
}

func (q *Queue) normalize(value any, path string, cfg enqueueConfig) (Item, error) {
	basePath := q.opts.BasePath
	if cfg.hasBase {
		basePath = cfg.basePath
	}
	return normalize(value, path, basePath, q.opts.LoadTimeout)
}

// preprocess runs plugins. It must be called without holding q.mu since
// plugins may call into other components.
func (q *Queue) preprocess(it Item) (prepared, bool) {
	q.mu.Lock()
	plugins := q.plugins
	q.mu.Unlock()
	loader, keep := runPlugins(plugins, &it)
	if !keep {
		q.log.Debug().Str("id", it.ID).Msg("item skipped by plugin")
		return prepared{}, false
	}
	return prepared{item: it, loader: loader}, true
}

// EnqueueOne adds a single item, given as a path string, an Item, an *Item
// or a decoded JSON object. Load failures are reported through events; only
// invalid input and id clashes are returned.
func (q *Queue) EnqueueOne(value any, opts ...EnqueueOption) error {
	cfg := buildConfig(opts)
	it, err := q.normalize(value, "", cfg)
	if err != nil {
		return err
	}
	var batch []prepared
	if p, keep := q.preprocess(it); keep {
		batch = append(batch, p)
	}
	return q.commit(batch, cfg)
}

// Manifest is a list of items sharing a path prefix.
type Manifest struct {
	Path     string `json:"path,omitempty"`
	Manifest []any  `json:"manifest"`
}

// EnqueueMany adds several items at once. value may be a manifest file path,
// a Manifest, a map with a "manifest" key, or a slice of items. Nothing is
// added if any item is invalid.
func (q *Queue) EnqueueMany(value any, opts ...EnqueueOption) error {
	cfg := buildConfig(opts)
	path, values, err := manifestValues(value)
	if err != nil {
		return err
	}
	items := make([]Item, 0, len(values))
	for _, v := range values {
		it, err := q.normalize(v, path, cfg)
		if err != nil {
			return err
		}
		items = append(items, it)
	}
	batch := make([]prepared, 0, len(items))
	for _, it := range items {
		if p, keep := q.preprocess(it); keep {
			batch = append(batch, p)
		}
	}
	return q.commit(batch, cfg)
}

func buildConfig(opts []EnqueueOption) enqueueConfig {
	var cfg enqueueConfig
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

func manifestValues(value any) (string, []any, error) {
	switch v := value.(type) {
	case string:
		return "", []any{Item{Src: v, Type: TypeManifest}}, nil
	case Manifest:
		return v.Path, v.Manifest, nil
	case *Manifest:
		if v == nil {
			return "", nil, fmt.Errorf("%w: nil manifest", ErrUnrecognizedItem)
		}
		return v.Path, v.Manifest, nil
	case []any:
		return "", v, nil
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return "", out, nil
	case []Item:
		out := make([]any, len(v))
		for i, it := range v {
			out[i] = it
		}
		return "", out, nil
	case map[string]any:
		list, ok := v["manifest"].([]any)
		if !ok {
			// a single item object
			return "", []any{v}, nil
		}
		path, _ := v["path"].(string)
		return path, list, nil
	case nil:
		return "", nil, fmt.Errorf("%w: nil manifest", ErrUnrecognizedItem)
	default:
		return "", []any{v}, nil
	}
}

// commit adds a prepared batch atomically.
func (q *Queue) commit(batch []prepared, cfg enqueueConfig) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	fresh := batch[:0:0]
	seen := make(map[string]string, len(batch))
	for _, p := range batch {
		id, src := p.item.ID, p.item.Src
		if prev, ok := seen[id]; ok {
			if prev != src {
				return fmt.Errorf("%w: %q", ErrDuplicateID, id)
			}
			continue
		}
		seen[id] = src
		if existing, ok := q.byID[id]; ok {
			if existing.item.Src != src {
				return fmt.Errorf("%w: %q", ErrDuplicateID, id)
			}
			continue
		}
		fresh = append(fresh, p)
	}
	for _, p := range fresh {
		q.add(p)
	}

	if cfg.paused {
		q.paused = true
		return nil
	}
	q.paused = false
	q.drain()
	return nil
}

func (q *Queue) add(p prepared) {
	it := p.item
	loader := p.loader
	if loader == nil {
		if s := q.registry.Resolve(it); s != nil {
			loader = s.NewLoader(it, q.opts.PreferNetwork)
		}
	}
	if loader == nil {
		loader = noStrategy(it)
	}
	e := &entry{item: it, loader: loader, slot: -1}
	isScript := it.Type == TypeJavaScript && !q.opts.IgnoreScriptOrder
	if it.MaintainOrder || isScript {
		e.slot = len(q.slots)
		q.slots = append(q.slots, slot{})
		e.serial = isScript && !q.opts.PreferNetwork
	}
	q.pending = append(q.pending, e)
	q.order = append(q.order, e)
	q.byID[it.ID] = e
	q.bySrc[it.Src] = e
	q.backup = append(q.backup, it)
	q.total++
	q.floor = 0
	q.loaded = false
	q.log.Debug().Str("id", it.ID).Str("src", it.Src).Str("type", string(it.Type)).Msg("item queued")
}

func noStrategy(it Item) Loader {
	return LoaderFunc(func(context.Context, Reporter) (Result, error) {
		return Result{}, fmt.Errorf("%w for type %q", ErrNoStrategy, it.Type)
	})
}

// Load starts or resumes the queue.
func (q *Queue) Load() {
	q.Resume()
}

// Resume lets the queue start new items again.
func (q *Queue) Resume() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = false
	q.drain()
}

// Pause stops new items from starting. Items already loading continue.
func (q *Queue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
}

// IsPaused reports whether the queue is paused.
func (q *Queue) IsPaused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

// Loaded reports whether every queued item has completed or failed.
func (q *Queue) Loaded() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loaded
}

// SetMaxConnections changes the concurrency cap, filling new slots at once.
func (q *Queue) SetMaxConnections(n int) {
	if n < 1 {
		n = 1
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.maxConns = n
	if !q.paused {
		q.drain()
	}
}

// drain starts pending items in submission order while slots are free.
func (q *Queue) drain() {
	if q.paused {
		return
	}
	if !q.started {
		q.started = true
		q.emit(Event{Type: EventLoadStart})
	}
	if len(q.active) == 0 && len(q.pending) == 0 && q.done >= q.total {
		if !q.loaded {
			q.loaded = true
			q.updateProgress()
			q.log.Debug().Int("items", q.total).Msg("queue complete")
			q.emit(Event{Type: EventComplete, Progress: 1})
			if next := q.next; next != nil {
				go next.Load()
			}
		}
		return
	}
	for i := 0; i < len(q.pending) && len(q.active) < q.maxConns; {
		e := q.pending[i]
		if !q.canStart(e) {
			i++
			continue
		}
		q.pending = append(q.pending[:i], q.pending[i+1:]...)
		q.start(e)
	}
}

func (q *Queue) canStart(e *entry) bool {
	if !e.serial {
		return true
	}
	if q.scriptLoading {
		return false
	}
	for i := 0; i < e.slot; i++ {
		if q.slots[i].state == slotPending {
			return false
		}
	}
	return true
}

func (q *Queue) start(e *entry) {
	e.state = stateActive
	q.active = append(q.active, e)
	if e.serial {
		q.scriptLoading = true
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	timeout := e.item.LoadTimeout
	e.timer = time.AfterFunc(timeout, func() {
		q.finish(e, Result{}, fmt.Errorf("%w after %s", ErrLoadTimeout, timeout))
	})
	q.emit(Event{Type: EventFileStart, Item: e.item})
	q.log.Debug().Str("id", e.item.ID).Int("active", len(q.active)).Msg("item started")

	loader := e.loader
	rep := &reporter{q: q, e: e}
	go func() {
		res, err := loader.Load(ctx, rep)
		if err != nil && errors.Is(err, context.Canceled) && !errors.Is(err, ErrLoadAborted) {
			err = fmt.Errorf("%w: %w", ErrLoadAborted, err)
		}
		q.finish(e, res, err)
	}()
}

func (q *Queue) stopEntry(e *entry) {
	if e.timer != nil {
		e.timer.Stop()
	}
	if e.cancel != nil {
		e.cancel()
	}
	for i, a := range q.active {
		if a == e {
			q.active = append(q.active[:i], q.active[i+1:]...)
			break
		}
	}
	if e.serial {
		q.scriptLoading = false
	}
}

// finish handles the outcome of an active entry. Late results of canceled or
// timed out loads are ignored.
func (q *Queue) finish(e *entry, res Result, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e.state != stateActive {
		return
	}
	q.stopEntry(e)
	e.state = stateDone
	q.done++

	if err != nil {
		e.failed = true
		if e.slot >= 0 {
			q.slots[e.slot] = slot{state: slotFailed, entry: e}
		}
		q.log.Warn().Err(err).Str("id", e.item.ID).Str("src", e.item.Src).Msg("item failed")
		q.updateProgress()
		ierr := &ItemError{Item: e.item, Err: err}
		q.emit(Event{Type: EventFileError, Item: e.item, Err: ierr})
		q.emit(Event{Type: EventError, Item: e.item, Err: ierr})
		q.flush()
		if q.opts.StopOnError {
			q.paused = true
			return
		}
		q.drain()
		return
	}

	e.result = res
	q.store(Loaded{Item: e.item, Result: res})
	if c, ok := e.loader.(Composite); ok {
		e.subs = c.LoadedItems()
		for _, sub := range e.subs {
			q.store(sub)
		}
	}
	q.log.Debug().Str("id", e.item.ID).Msg("item loaded")
	q.updateProgress()
	if e.slot >= 0 {
		q.slots[e.slot] = slot{state: slotFilled, entry: e}
		q.flush()
	} else {
		q.surface(e)
	}
	q.drain()
}

func (q *Queue) store(l Loaded) {
	q.results[l.Item.ID] = l
	q.results[l.Item.Src] = l
}

func (q *Queue) unstore(it Item) {
	if l, ok := q.results[it.ID]; ok && l.Item.Src == it.Src {
		delete(q.results, it.ID)
	}
	if l, ok := q.results[it.Src]; ok && l.Item.ID == it.ID {
		delete(q.results, it.Src)
	}
}

// flush surfaces every contiguous completed ordered item from the front.
func (q *Queue) flush() {
	for q.flushed < len(q.slots) {
		s := &q.slots[q.flushed]
		switch s.state {
		case slotPending:
			return
		case slotFilled:
			q.surface(s.entry)
			s.state = slotFlushed
		}
		q.flushed++
	}
}

func (q *Queue) surface(e *entry) {
	if e.item.Type == TypeJavaScript {
		q.emit(Event{Type: scriptEvent, Item: e.item, Result: e.result.Value, Raw: e.result.Raw})
	}
	q.emit(Event{Type: EventFileLoad, Item: e.item, Result: e.result.Value, Raw: e.result.Raw})
}

func (q *Queue) computeProgress() float64 {
	if q.total == 0 {
		if q.loaded {
			return 1
		}
		return q.floor
	}
	p := float64(q.done) / float64(q.total)
	remaining := q.total - q.done
	if remaining > 0 {
		var sum float64
		for _, e := range q.active {
			sum += e.progress
		}
		p += (sum / float64(remaining)) * (float64(remaining) / float64(q.total))
	}
	return math.Max(p, q.floor)
}

func (q *Queue) updateProgress() {
	p := q.computeProgress()
	if math.Abs(p-q.lastProgress) < progressEpsilon {
		return
	}
	q.lastProgress = p
	q.emit(Event{Type: EventProgress, Progress: p})
}

// Progress returns the aggregate progress in [0, 1].
func (q *Queue) Progress() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.computeProgress()
}

func (q *Queue) emit(ev Event) {
	q.events.Emit(string(ev.Type), ev)
}

type reporter struct {
	q *Queue
	e *entry
}

func (r *reporter) Progress(loaded, total int64) {
	if total <= 0 {
		return
	}
	p := float64(loaded) / float64(total)
	p = math.Min(math.Max(p, 0), 1)

	q := r.q
	q.mu.Lock()
	defer q.mu.Unlock()
	if r.e.state != stateActive || p <= r.e.progress {
		return
	}
	r.e.progress = p
	q.emit(Event{Type: EventFileProgress, Item: r.e.item, Progress: p})
	q.updateProgress()
}

func (r *reporter) Received() {
	q := r.q
	q.mu.Lock()
	defer q.mu.Unlock()
	if r.e.state == stateActive && r.e.timer != nil {
		r.e.timer.Stop()
	}
}

func (r *reporter) FileLoad(item Item, result Result) {
	q := r.q
	q.mu.Lock()
	defer q.mu.Unlock()
	if r.e.state != stateActive {
		return
	}
	q.emit(Event{Type: EventFileLoad, Item: item, Result: result.Value, Raw: result.Raw})
}

func (r *reporter) FileError(item Item, err error) {
	q := r.q
	q.mu.Lock()
	defer q.mu.Unlock()
	if r.e.state != stateActive {
		return
	}
	q.emit(Event{Type: EventFileError, Item: item, Err: &ItemError{Item: item, Err: err}})
}

func (q *Queue) lookup(key string) *entry {
	if e, ok := q.byID[key]; ok {
		return e
	}
	return q.bySrc[key]
}

// GetItem returns the item registered under an id or src. Sub-items loaded
// by composite loaders are found too.
func (q *Queue) GetItem(key string) (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e := q.lookup(key); e != nil {
		return e.item, true
	}
	if l, ok := q.results[key]; ok {
		return l.Item, true
	}
	return Item{}, false
}

// GetResult returns the formatted result, or the raw one when raw is set,
// of a loaded item. It returns nil if nothing was loaded under key.
func (q *Queue) GetResult(key string, raw bool) any {
	q.mu.Lock()
	defer q.mu.Unlock()
	l, ok := q.results[key]
	if !ok {
		return nil
	}
	if raw {
		return l.Result.Raw
	}
	return l.Result.Value
}

// GetItems lists items in submission order, each followed by the sub-items
// it loaded. With onlyLoaded, items without a result are left out.
func (q *Queue) GetItems(onlyLoaded bool) []Loaded {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Loaded, 0, len(q.order))
	for _, e := range q.order {
		loaded := e.state == stateDone && !e.failed
		if onlyLoaded && !loaded {
			continue
		}
		out = append(out, Loaded{Item: e.item, Result: e.result})
		out = append(out, e.subs...)
	}
	return out
}

// CancelItem removes the items registered under the given ids or srcs.
// Pending items are dropped, active ones canceled and loaded ones forgotten
// together with their results.
func (q *Queue) CancelItem(keys ...string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, key := range keys {
		if e := q.lookup(key); e != nil {
			q.remove(e)
		} else if l, ok := q.results[key]; ok {
			q.unstore(l.Item)
		}
	}
	q.flush()
	q.updateProgress()
	q.drain()
}

func (q *Queue) remove(e *entry) {
	switch e.state {
	case statePending:
		for i, p := range q.pending {
			if p == e {
				q.pending = append(q.pending[:i], q.pending[i+1:]...)
				break
			}
		}
		q.total--
	case stateActive:
		q.floor = math.Max(q.floor, q.computeProgress())
		q.stopEntry(e)
		q.total--
	case stateDone:
		// the work was done; counts stay so progress does not go backwards
		q.unstore(e.item)
		for _, sub := range e.subs {
			q.unstore(sub.Item)
		}
	}
	if e.slot >= 0 && q.slots[e.slot].state == slotPending {
		q.slots[e.slot].state = slotSkipped
	}
	e.state = stateCanceled
	q.log.Debug().Str("id", e.item.ID).Msg("item canceled")

	delete(q.byID, e.item.ID)
	if q.bySrc[e.item.Src] == e {
		delete(q.bySrc, e.item.Src)
	}
	for i, o := range q.order {
		if o == e {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	for i, it := range q.backup {
		if it.ID == e.item.ID {
			q.backup = append(q.backup[:i], q.backup[i+1:]...)
			break
		}
	}
}

// stopAll cancels every pending and active entry and clears scheduling state.
func (q *Queue) stopAll() {
	for _, e := range q.active {
		if e.timer != nil {
			e.timer.Stop()
		}
		e.cancel()
		e.state = stateCanceled
	}
	for _, e := range q.pending {
		e.state = stateCanceled
	}
	q.active = nil
	q.pending = nil
	q.slots = nil
	q.flushed = 0
	q.scriptLoading = false
	q.total = 0
	q.done = 0
	q.started = false
	q.loaded = false
	q.paused = true
	q.lastProgress = math.NaN()
	q.floor = 0
}

// Close stops all loading. Loaded results stay available and Reset can
// replay the original items.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopAll()
	kept := q.order[:0]
	for _, e := range q.order {
		if e.state == stateDone {
			kept = append(kept, e)
			continue
		}
		delete(q.byID, e.item.ID)
		if q.bySrc[e.item.Src] == e {
			delete(q.bySrc, e.item.Src)
		}
	}
	q.order = kept
}

// CancelAll stops all loading and forgets every item and result.
func (q *Queue) CancelAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopAll()
	q.clear()
}

func (q *Queue) clear() {
	q.order = nil
	q.backup = nil
	q.byID = make(map[string]*entry)
	q.bySrc = make(map[string]*entry)
	q.results = make(map[string]Loaded)
}

// Reset stops all loading, forgets results and queues the original items
// again, paused.
func (q *Queue) Reset() {
	q.mu.Lock()
	items := q.backup
	q.stopAll()
	q.clear()
	q.mu.Unlock()

	batch := make([]prepared, 0, len(items))
	for _, it := range items {
		if p, keep := q.preprocess(it); keep {
			batch = append(batch, p)
		}
	}
	if err := q.commit(batch, enqueueConfig{paused: true}); err != nil {
		q.log.Warn().Err(err).Int("items", len(batch)).Msg("reset could not queue items again")
	}
}
