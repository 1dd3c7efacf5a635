// Copyright 2021 The Oto Authors
// Copyright 2025 Lundis
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package audio

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Lundis/go-gameassets/internal/event"
	"github.com/Lundis/go-gameassets/preload"
)

const (
	DefaultSampleRate = 44100
	ChannelCount      = 2
	// DefaultCapacity is the number of simultaneous instances per source
	// when a source does not set its own.
	DefaultCapacity = 100
)

// DefaultExtensions are the file types sources may be registered with.
var DefaultExtensions = []string{"ogg", "mp3", "wav", "aiff", "aif"}

// Options configure NewContext.
type Options struct {
	// Format is the format clips are converted to when they are loaded.
	// It should match the backend. The zero value means 44100Hz stereo.
	Format  Format
	Backend Backend
	// Capacity is the default number of simultaneous instances per source.
	Capacity   int
	Extensions []string
	// Queue, when set, loads registered sources. The context installs
	// itself as a plugin for sound items of the queue.
	Queue  *preload.Queue
	Logger *zerolog.Logger
}

// Context registers sources, owns their channels and creates playback
// instances. All the functions of a Context are concurrent-safe.
type Context struct {
	mu         sync.Mutex
	log        zerolog.Logger
	format     Format
	backend    Backend
	capacity   int
	extensions map[string]bool
	queue      *preload.Queue

	sources  map[string]*Source
	sprites  map[string]spriteRef
	channels map[string]*channel
	live     map[*Instance]struct{}
	groups   map[Group]groupSettings
	volume   float64
	muted    bool

	events event.Emitter[SourceEvent]
}

// NewContext creates a context. If opts.Queue is set, sound items the
// queue loads become playable sources.
func NewContext(opts Options) *Context {
	c := &Context{
		log:        zerolog.Nop(),
		format:     opts.Format,
		backend:    opts.Backend,
		capacity:   opts.Capacity,
		extensions: make(map[string]bool),
		queue:      opts.Queue,
		sources:    make(map[string]*Source),
		sprites:    make(map[string]spriteRef),
		channels:   make(map[string]*channel),
		live:       make(map[*Instance]struct{}),
		groups:     make(map[Group]groupSettings),
		volume:     1,
	}
	if opts.Logger != nil {
		c.log = opts.Logger.With().Str("component", "audio").Logger()
	}
	if c.format.SampleRate <= 0 {
		c.format.SampleRate = DefaultSampleRate
	}
	if c.format.Channels <= 0 {
		c.format.Channels = ChannelCount
	}
	if c.capacity <= 0 {
		c.capacity = DefaultCapacity
	}
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	for _, ext := range exts {
		c.extensions[ext] = true
	}
	if c.queue != nil {
		c.queue.InstallPlugin(c)
		c.queue.On(preload.EventFileLoad, c.handleFileLoad)
		c.queue.On(preload.EventFileError, c.handleFileError)
	}
	return c
}

func (c *Context) Format() Format {
	return c.format
}

// On registers fn for source events of type t.
func (c *Context) On(t SourceEventType, fn func(SourceEvent)) (off func()) {
	return c.events.On(string(t), fn)
}

// Wait blocks until all source events emitted so far have been delivered.
func (c *Context) Wait() {
	c.events.Wait()
}

// CreateInstance returns an instance of the source, sprite or id key without
// playing it. An unknown key still yields an instance, which fails when
// played.
func (c *Context) CreateInstance(key string, opts ...PlayOption) *Instance {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.newInstanceLocked(key, opts)
}

func (c *Context) newInstanceLocked(key string, opts []PlayOption) *Instance {
	in := &Instance{ctx: c, id: uuid.New(), key: key, props: DefaultPlayProps()}
	if ref, ok := c.sprites[key]; ok {
		in.source = ref.source
		in.props = ref.source.Defaults
		in.props.StartTime = ref.sprite.StartTime
		in.props.Duration = ref.sprite.Duration
	} else if s, ok := c.sources[key]; ok {
		in.source = s
		in.props = s.Defaults
	}
	for _, o := range opts {
		o(&in.props)
	}
	return in
}

// Play creates an instance of key and plays it. The returned instance is
// never nil; check its PlayState to see whether it was admitted.
func (c *Context) Play(key string, opts ...PlayOption) *Instance {
	in := c.CreateInstance(key, opts...)
	in.Play()
	return in
}

// StopAll stops every playing or delayed instance.
func (c *Context) StopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for in := range c.live {
		in.stopLocked()
	}
}

func (c *Context) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// SetVolume sets the master volume, applied on top of every instance's.
func (c *Context) SetVolume(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volume = clamp(v, 0, 1)
	c.applyAllLocked()
}

func (c *Context) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

func (c *Context) SetMuted(m bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.muted = m
	c.applyAllLocked()
}

func (c *Context) SetGroupVolume(g Group, v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.group(g)
	s.volume = clamp(v, 0, 1)
	c.groups[g] = s
	c.applyAllLocked()
}

// SetGroupPaused pauses or resumes all instances of sources in group g.
// Instances paused on their own stay paused.
func (c *Context) SetGroupPaused(g Group, paused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.group(g)
	if s.paused == paused {
		return
	}
	s.paused = paused
	c.groups[g] = s
	for in := range c.live {
		if in.voice == nil || in.source.Group != g || in.paused {
			continue
		}
		if paused {
			in.voice.Pause()
		} else {
			in.voice.Resume()
		}
	}
}

func (c *Context) group(g Group) groupSettings {
	if s, ok := c.groups[g]; ok {
		return s
	}
	return defaultGroupSettings()
}

func (c *Context) applyAllLocked() {
	for in := range c.live {
		in.applyLocked()
	}
}

func (c *Context) effectiveVolume(in *Instance) float64 {
	if c.muted || in.muted {
		return 0
	}
	v := in.props.Volume * c.volume
	if in.source != nil {
		v *= c.group(in.source.Group).volume
	}
	return v
}

// Playing returns the number of instances currently playing or waiting for
// a delayed start.
func (c *Context) Playing() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.live)
}

// Types, Extensions and Preload make the context a preload.Plugin: sound
// items are registered as sources before they load.
func (c *Context) Types() []preload.Type { return []preload.Type{preload.TypeSound} }

func (c *Context) Extensions() []string { return nil }

func (c *Context) Preload(item *preload.Item) (preload.Loader, bool) {
	opts := SourceOptions{ID: item.ID}
	applyItemData(&opts, item.Data)
	c.mu.Lock()
	var err error
	if _, ok := c.sources[item.ID]; !ok {
		_, _, err = c.registerLocked(item.Src, opts)
	}
	c.mu.Unlock()
	if err != nil {
		c.log.Warn().Err(err).Str("src", item.Src).Msg("sound item not registered")
	}
	return nil, true
}

func (c *Context) handleFileLoad(ev preload.Event) {
	clip, ok := ev.Result.(*Clip)
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.lookupLocked(ev.Item.ID, ev.Item.Src)
	if s == nil {
		return
	}
	c.setClipLocked(s, clip)
}

func (c *Context) handleFileError(ev preload.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.lookupLocked(ev.Item.ID, ev.Item.Src)
	if s == nil {
		return
	}
	s.err = ev.Err
	c.log.Warn().Err(ev.Err).Str("src", s.Src).Msg("sound failed to load")
	c.events.Emit(string(EventSourceError), SourceEvent{Type: EventSourceError, ID: s.ID, Src: s.Src, Err: ev.Err})
}

func (c *Context) lookupLocked(id, src string) *Source {
	if s, ok := c.sources[id]; ok {
		return s
	}
	return c.sources[src]
}

func (c *Context) setClipLocked(s *Source, clip *Clip) {
	if err := clip.Validate(); err != nil {
		s.err = err
		c.events.Emit(string(EventSourceError), SourceEvent{Type: EventSourceError, ID: s.ID, Src: s.Src, Err: err})
		return
	}
	s.clip = clip.Convert(c.format)
	s.err = nil
	c.log.Debug().Str("src", s.Src).Dur("duration", s.clip.Duration()).Msg("sound loaded")
	c.events.Emit(string(EventSourceLoad), SourceEvent{Type: EventSourceLoad, ID: s.ID, Src: s.Src})
}
