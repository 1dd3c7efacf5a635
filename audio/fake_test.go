package audio

import (
	"sync"
	"testing"
	"time"
)

type fakeBackend struct {
	mu     sync.Mutex
	voices []*fakeVoice
	err    error
}

func (b *fakeBackend) NewVoice(clip *Clip, region Region, ended func(looped bool)) (Voice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	v := &fakeVoice{clip: clip, region: region, ended: ended}
	b.voices = append(b.voices, v)
	return v, nil
}

func (b *fakeBackend) last() *fakeVoice {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.voices[len(b.voices)-1]
}

type fakeVoice struct {
	mu      sync.Mutex
	clip    *Clip
	region  Region
	ended   func(looped bool)
	started bool
	pos     time.Duration
	volume  float64
	pan     float64
	loop    bool
	paused  bool
	closed  bool
}

func (v *fakeVoice) Start(offset time.Duration) {
	v.mu.Lock()
	v.started, v.pos = true, offset
	v.mu.Unlock()
}
func (v *fakeVoice) Pause()  { v.mu.Lock(); v.paused = true; v.mu.Unlock() }
func (v *fakeVoice) Resume() { v.mu.Lock(); v.paused = false; v.mu.Unlock() }
func (v *fakeVoice) SetVolume(x float64) {
	v.mu.Lock()
	v.volume = x
	v.mu.Unlock()
}
func (v *fakeVoice) SetPan(p float64) { v.mu.Lock(); v.pan = p; v.mu.Unlock() }
func (v *fakeVoice) SetPosition(d time.Duration) {
	v.mu.Lock()
	v.pos = d
	v.mu.Unlock()
}
func (v *fakeVoice) Position() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pos
}
func (v *fakeVoice) SetLooping(l bool) { v.mu.Lock(); v.loop = l; v.mu.Unlock() }
func (v *fakeVoice) Close()            { v.mu.Lock(); v.closed = true; v.mu.Unlock() }

func (v *fakeVoice) state() fakeVoice {
	v.mu.Lock()
	defer v.mu.Unlock()
	return fakeVoice{started: v.started, pos: v.pos, volume: v.volume, pan: v.pan, loop: v.loop, paused: v.paused, closed: v.closed}
}

// finish simulates the backend reaching the end of the region.
func (v *fakeVoice) finish(looped bool) { v.ended(looped) }

func testClip() *Clip {
	return &Clip{Samples: make([]float32, 2*44100), SampleRate: 44100, Channels: 2}
}

func newTestContext(t *testing.T, capacity int) (*Context, *fakeBackend) {
	t.Helper()
	b := &fakeBackend{}
	c := NewContext(Options{Backend: b})
	if _, err := c.RegisterSource("shot.ogg", SourceOptions{ID: "shot", Capacity: capacity, Clip: testClip()}); err != nil {
		t.Fatalf("register: %v", err)
	}
	return c, b
}

func waitEvent(t *testing.T, ch <-chan InstanceEvent) InstanceEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for instance event")
	}
	return InstanceEvent{}
}

func collect(in *Instance, types ...InstanceEventType) <-chan InstanceEvent {
	ch := make(chan InstanceEvent, 16)
	for _, typ := range types {
		in.On(typ, func(ev InstanceEvent) { ch <- ev })
	}
	return ch
}
