package audio

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Lundis/go-gameassets/preload"
)

// SourceEventType names a Context event.
type SourceEventType string

const (
	EventSourceLoad  SourceEventType = "fileload"
	EventSourceError SourceEventType = "fileerror"
)

type SourceEvent struct {
	Type SourceEventType
	ID   string
	Src  string
	Err  error
}

// Sprite is a named part of a source's clip.
type Sprite struct {
	ID        string
	StartTime time.Duration
	Duration  time.Duration
}

type spriteRef struct {
	source *Source
	sprite Sprite
}

// Source is a registered sound file.
type Source struct {
	ID       string
	Src      string
	Group    Group
	Capacity int
	Defaults PlayProps
	Sprites  []Sprite

	clip *Clip
	err  error
}

// Loaded reports whether the clip of the source is available.
func (s Source) Loaded() bool { return s.clip != nil }

// Err returns the reason the source failed to load, if it did.
func (s Source) Err() error { return s.err }

// SourceOptions configure RegisterSource.
type SourceOptions struct {
	// ID defaults to src.
	ID       string
	BasePath string
	Group    Group
	// Capacity limits simultaneous instances. Zero uses the context default.
	Capacity int
	// Defaults are the properties new instances start with. Nil means
	// DefaultPlayProps.
	Defaults *PlayProps
	Sprites  []Sprite
	// Clip registers already decoded audio; nothing is loaded.
	Clip *Clip
}

// RegisterSource makes src playable by its path, its id and the ids of its
// sprites. Unless opts.Clip is given, the file is loaded through the
// context's queue. Registering the same src again returns the existing
// source.
func (c *Context) RegisterSource(src string, opts SourceOptions) (Source, error) {
	c.mu.Lock()
	s, created, err := c.registerLocked(src, opts)
	if err != nil {
		c.mu.Unlock()
		return Source{}, err
	}
	if opts.Clip != nil {
		c.setClipLocked(s, opts.Clip)
	}
	info := *s
	q := c.queue
	c.mu.Unlock()

	if created && opts.Clip == nil && q != nil {
		err := q.EnqueueOne(preload.Item{Src: s.Src, ID: s.ID, Type: preload.TypeSound})
		if err != nil && !errors.Is(err, preload.ErrDuplicateID) {
			return info, err
		}
	}
	return info, nil
}

func (c *Context) registerLocked(src string, opts SourceOptions) (*Source, bool, error) {
	if strings.TrimSpace(src) == "" {
		return nil, false, fmt.Errorf("%w: empty src", ErrUnsupportedSource)
	}
	full := opts.BasePath + src
	if opts.Clip == nil {
		if ext := preload.ExtensionOf(full); !c.extensions[ext] {
			return nil, false, fmt.Errorf("%w: %s", ErrUnsupportedSource, full)
		}
	}
	if s, ok := c.sources[full]; ok && s.Src == full {
		return s, false, nil
	}
	id := opts.ID
	if id == "" {
		id = src
	}
	if other, ok := c.sources[id]; ok && other.Src != full {
		return nil, false, fmt.Errorf("%w: %q is used by %s", ErrDuplicateID, id, other.Src)
	}

	s := &Source{
		ID:       id,
		Src:      full,
		Group:    opts.Group,
		Capacity: opts.Capacity,
		Defaults: DefaultPlayProps(),
		Sprites:  opts.Sprites,
	}
	if s.Capacity <= 0 {
		s.Capacity = c.capacity
	}
	if opts.Defaults != nil {
		s.Defaults = *opts.Defaults
	}
	c.sources[id] = s
	c.sources[full] = s
	for _, sp := range s.Sprites {
		c.sprites[sp.ID] = spriteRef{source: s, sprite: sp}
	}
	c.channels[full] = newChannel(full, s.Capacity)
	c.log.Debug().Str("id", id).Str("src", full).Int("capacity", s.Capacity).Msg("source registered")
	return s, true, nil
}

// Source returns the source registered for an id, src or sprite id.
func (c *Context) Source(key string) (Source, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.sourceLocked(key)
	if s == nil {
		return Source{}, false
	}
	return *s, true
}

func (c *Context) sourceLocked(key string) *Source {
	if ref, ok := c.sprites[key]; ok {
		return ref.source
	}
	return c.sources[key]
}

// Loaded reports whether the source for key is ready to play.
func (c *Context) Loaded(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.sourceLocked(key)
	return s != nil && s.clip != nil
}

// SetCapacity changes how many instances of the source may play at once.
func (c *Context) SetCapacity(key string, n int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.sourceLocked(key)
	if s == nil {
		return false
	}
	s.Capacity = max(n, 1)
	c.channels[s.Src].setMax(s.Capacity)
	return true
}

// RemoveSource stops the instances of the source and forgets it.
func (c *Context) RemoveSource(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.sourceLocked(key)
	if s == nil {
		return false
	}
	c.removeLocked(s)
	return true
}

func (c *Context) RemoveAllSources() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.sources {
		c.removeLocked(s)
	}
}

func (c *Context) removeLocked(s *Source) {
	for in := range c.live {
		if in.source == s {
			in.stopLocked()
		}
	}
	delete(c.sources, s.ID)
	delete(c.sources, s.Src)
	for _, sp := range s.Sprites {
		if c.sprites[sp.ID].source == s {
			delete(c.sprites, sp.ID)
		}
	}
	delete(c.channels, s.Src)
}

// applyItemData reads channel capacity and sprites from preload item data.
// Data is either a capacity number or an object with "channels" and
// "audioSprite" entries, times in milliseconds.
func applyItemData(opts *SourceOptions, data any) {
	switch d := data.(type) {
	case int:
		opts.Capacity = d
	case float64:
		opts.Capacity = int(d)
	case map[string]any:
		if n, ok := d["channels"].(float64); ok {
			opts.Capacity = int(n)
		}
		sprites, _ := d["audioSprite"].([]any)
		for _, v := range sprites {
			m, ok := v.(map[string]any)
			if !ok {
				continue
			}
			id, _ := m["id"].(string)
			if id == "" {
				continue
			}
			start, _ := m["startTime"].(float64)
			dur, _ := m["duration"].(float64)
			opts.Sprites = append(opts.Sprites, Sprite{
				ID:        id,
				StartTime: time.Duration(start * float64(time.Millisecond)),
				Duration:  time.Duration(dur * float64(time.Millisecond)),
			})
		}
	}
}
