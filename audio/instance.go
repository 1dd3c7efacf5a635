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
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Lundis/go-gameassets/internal/event"
)

// InstanceEventType names an Instance event.
type InstanceEventType string

const (
	EventSucceeded   InstanceEventType = "succeeded"
	EventInterrupted InstanceEventType = "interrupted"
	EventFailed      InstanceEventType = "failed"
	EventLoop        InstanceEventType = "loop"
	EventComplete    InstanceEventType = "complete"
)

type InstanceEvent struct {
	Type     InstanceEventType
	Instance *Instance
	Err      error
}

// Instance is one playback of a source. It is created by Context.Play or
// Context.CreateInstance and can be played again after it ended.
//
// All the methods of an Instance are concurrent-safe. Events are delivered
// on a separate goroutine in the order they happened.
type Instance struct {
	ctx    *Context
	id     uuid.UUID
	key    string
	source *Source

	props  PlayProps
	state  PlayState
	err    error
	paused bool
	muted  bool

	voice Voice
	// gen invalidates end notifications from voices that were replaced.
	gen   int
	delay *time.Timer

	events event.Emitter[InstanceEvent]
}

func (in *Instance) ID() uuid.UUID { return in.id }

// Key returns the id, src or sprite id the instance was created for.
func (in *Instance) Key() string { return in.key }

// On registers fn for events of type t and returns a function removing it.
func (in *Instance) On(t InstanceEventType, fn func(InstanceEvent)) (off func()) {
	return in.events.On(string(t), fn)
}

// Wait blocks until all events emitted so far have been delivered.
func (in *Instance) Wait() {
	in.events.Wait()
}

// Play starts the instance, applying opts on top of its current properties.
// Playing an instance that is already playing only applies the properties
// and resumes it if paused.
func (in *Instance) Play(opts ...PlayOption) {
	c := in.ctx
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, o := range opts {
		o(&in.props)
	}
	seek := in.props.seek
	in.props.seek = false
	if in.state == PlaySucceeded {
		in.applyLocked()
		if seek && in.voice != nil {
			in.voice.SetPosition(in.props.Offset)
		}
		if in.paused {
			in.setPausedLocked(false)
		}
		return
	}
	in.cleanUpLocked()
	in.paused = false
	in.err = nil
	in.state = PlayInited

	if d := in.props.Delay; d > 0 {
		c.live[in] = struct{}{}
		var t *time.Timer
		t = time.AfterFunc(d, func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if in.delay != t {
				return
			}
			in.delay = nil
			in.beginLocked()
		})
		in.delay = t
		return
	}
	in.beginLocked()
}

func (in *Instance) beginLocked() {
	c := in.ctx
	src := in.source
	switch {
	case src == nil:
		in.failLocked(fmt.Errorf("%w: %s", ErrUnknownSource, in.key))
		return
	case src.clip == nil:
		in.failLocked(fmt.Errorf("%w: %s", ErrSourceNotLoaded, in.key))
		return
	case c.backend == nil:
		in.failLocked(ErrNoBackend)
		return
	}

	ch := c.channels[src.Src]
	if ch == nil {
		// the source was removed after the instance was created
		in.source = nil
		in.failLocked(fmt.Errorf("%w: %s", ErrUnknownSource, in.key))
		return
	}
	if !ch.add(in, in.props.Interrupt) {
		in.failLocked(fmt.Errorf("%w: %s", ErrPlaybackAdmission, in.key))
		return
	}
	in.gen++
	gen := in.gen
	region := Region{Start: in.props.StartTime, Duration: in.props.Duration, FadeIn: in.props.FadeIn}
	v, err := c.backend.NewVoice(src.clip, region, func(looped bool) { in.ended(gen, looped) })
	if err != nil {
		ch.remove(in)
		in.failLocked(err)
		return
	}
	in.voice = v
	c.live[in] = struct{}{}
	in.applyLocked()
	v.Start(in.props.Offset)
	if c.group(src.Group).paused {
		v.Pause()
	}
	in.state = PlaySucceeded
	in.emitLocked(EventSucceeded, nil)
}

// ended is called by the backend when the voice of generation gen reached
// the end of its region.
func (in *Instance) ended(gen int, looped bool) {
	c := in.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != in.gen || in.state != PlaySucceeded {
		return
	}
	if looped {
		if in.props.Loop > 0 {
			in.props.Loop--
		}
		if in.props.Loop == 0 {
			in.voice.SetLooping(false)
		}
		in.emitLocked(EventLoop, nil)
		return
	}
	in.cleanUpLocked()
	in.props.Offset = 0
	in.state = PlayFinished
	in.emitLocked(EventComplete, nil)
}

// Stop ends playback, or cancels a delayed start, and rewinds the instance.
// No event is emitted.
func (in *Instance) Stop() {
	c := in.ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	in.stopLocked()
}

func (in *Instance) stopLocked() {
	in.cleanUpLocked()
	in.props.Offset = 0
	in.paused = false
	in.state = PlayFinished
}

// Destroy stops the instance and removes all its listeners.
func (in *Instance) Destroy() {
	in.Stop()
	in.events.RemoveAll()
}

func (in *Instance) interrupt() {
	in.cleanUpLocked()
	in.state = PlayInterrupted
	in.emitLocked(EventInterrupted, nil)
}

func (in *Instance) failLocked(err error) {
	in.cleanUpLocked()
	in.state = PlayFailed
	in.err = err
	in.ctx.log.Debug().Err(err).Str("src", in.key).Msg("playback failed")
	in.emitLocked(EventFailed, err)
}

// cleanUpLocked releases the voice, any pending delayed start and the channel
// slot.
func (in *Instance) cleanUpLocked() {
	c := in.ctx
	if in.delay != nil {
		in.delay.Stop()
		in.delay = nil
	}
	if in.voice != nil {
		in.voice.Close()
		in.voice = nil
	}
	in.gen++
	if in.source != nil {
		if ch := c.channels[in.source.Src]; ch != nil {
			ch.remove(in)
		}
	}
	delete(c.live, in)
}

func (in *Instance) emitLocked(t InstanceEventType, err error) {
	in.events.Emit(string(t), InstanceEvent{Type: t, Instance: in, Err: err})
}

func (in *Instance) playState() PlayState { return in.state }

func (in *Instance) position() time.Duration {
	if in.voice != nil {
		return in.voice.Position()
	}
	return in.props.Offset
}

// applyLocked pushes volume, pan and looping to the voice.
func (in *Instance) applyLocked() {
	if in.voice == nil {
		return
	}
	in.voice.SetVolume(in.ctx.effectiveVolume(in))
	in.voice.SetPan(in.props.Pan)
	in.voice.SetLooping(in.props.Loop != 0)
}

func (in *Instance) PlayState() PlayState {
	in.ctx.mu.Lock()
	defer in.ctx.mu.Unlock()
	return in.state
}

// Err returns the reason of the last failure.
func (in *Instance) Err() error {
	in.ctx.mu.Lock()
	defer in.ctx.mu.Unlock()
	return in.err
}

// SetPaused pauses or resumes a playing instance. It returns false when the
// instance is not playing.
func (in *Instance) SetPaused(paused bool) bool {
	in.ctx.mu.Lock()
	defer in.ctx.mu.Unlock()
	if in.state != PlaySucceeded {
		return false
	}
	in.setPausedLocked(paused)
	return true
}

func (in *Instance) setPausedLocked(paused bool) {
	if in.paused == paused {
		return
	}
	in.paused = paused
	if paused {
		in.voice.Pause()
	} else if !in.ctx.group(in.source.Group).paused {
		in.voice.Resume()
	}
}

func (in *Instance) Paused() bool {
	in.ctx.mu.Lock()
	defer in.ctx.mu.Unlock()
	return in.paused
}

// Position returns the playback position within the sprite or clip. For an
// instance that is not playing it is the position the next Play starts at.
func (in *Instance) Position() time.Duration {
	in.ctx.mu.Lock()
	defer in.ctx.mu.Unlock()
	return in.position()
}

func (in *Instance) SetPosition(d time.Duration) {
	in.ctx.mu.Lock()
	defer in.ctx.mu.Unlock()
	d = max(d, 0)
	if in.voice != nil {
		in.voice.SetPosition(d)
		return
	}
	in.props.Offset = d
}

// Duration returns the length of the sprite, or of the whole clip.
func (in *Instance) Duration() time.Duration {
	in.ctx.mu.Lock()
	defer in.ctx.mu.Unlock()
	if in.props.Duration > 0 {
		return in.props.Duration
	}
	if in.source == nil || in.source.clip == nil {
		return 0
	}
	return max(in.source.clip.Duration()-in.props.StartTime, 0)
}

func (in *Instance) Volume() float64 {
	in.ctx.mu.Lock()
	defer in.ctx.mu.Unlock()
	return in.props.Volume
}

func (in *Instance) SetVolume(v float64) {
	in.ctx.mu.Lock()
	defer in.ctx.mu.Unlock()
	in.props.Volume = clamp(v, 0, 1)
	in.applyLocked()
}

func (in *Instance) Pan() float64 {
	in.ctx.mu.Lock()
	defer in.ctx.mu.Unlock()
	return in.props.Pan
}

func (in *Instance) SetPan(p float64) {
	in.ctx.mu.Lock()
	defer in.ctx.mu.Unlock()
	in.props.Pan = clamp(p, -1, 1)
	in.applyLocked()
}

func (in *Instance) Muted() bool {
	in.ctx.mu.Lock()
	defer in.ctx.mu.Unlock()
	return in.muted
}

func (in *Instance) SetMuted(m bool) {
	in.ctx.mu.Lock()
	defer in.ctx.mu.Unlock()
	in.muted = m
	in.applyLocked()
}

// Loop returns the remaining number of extra plays, negative for forever.
func (in *Instance) Loop() int {
	in.ctx.mu.Lock()
	defer in.ctx.mu.Unlock()
	return in.props.Loop
}

func (in *Instance) SetLoop(n int) {
	in.ctx.mu.Lock()
	defer in.ctx.mu.Unlock()
	in.props.Loop = n
	in.applyLocked()
}
