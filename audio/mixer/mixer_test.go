package mixer

import (
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/Lundis/go-gameassets/audio"
)

var testFormat = audio.Format{SampleRate: 1000, Channels: 2}

func constantClip(frames int, v float32) *audio.Clip {
	c := &audio.Clip{Samples: make([]float32, frames*2), SampleRate: 1000, Channels: 2}
	for i := range c.Samples {
		c.Samples[i] = v
	}
	return c
}

func rampClip(frames int) *audio.Clip {
	c := &audio.Clip{Samples: make([]float32, frames*2), SampleRate: 1000, Channels: 2}
	for i := 0; i < frames; i++ {
		c.Samples[2*i] = float32(i)
		c.Samples[2*i+1] = float32(i)
	}
	return c
}

type endLog struct {
	mu    sync.Mutex
	calls []bool
}

func (l *endLog) ended(looped bool) {
	l.mu.Lock()
	l.calls = append(l.calls, looped)
	l.mu.Unlock()
}

func newVoice(t *testing.T, m *Mixer, clip *audio.Clip, r audio.Region, l *endLog) audio.Voice {
	t.Helper()
	v, err := m.NewVoice(clip, r, l.ended)
	if err != nil {
		t.Fatalf("new voice: %v", err)
	}
	return v
}

func TestMixSumsVoices(t *testing.T) {
	m := New(testFormat)
	var l endLog
	newVoice(t, m, constantClip(10, 0.25), audio.Region{}, &l).Start(0)
	newVoice(t, m, constantClip(10, 0.5), audio.Region{}, &l).Start(0)

	buf := make([]float32, 8)
	m.ReadFloat32s(buf)
	for i, v := range buf {
		if v != 0.75 {
			t.Fatalf("sample %d: expected 0.75, got %v", i, v)
		}
	}
	if m.Active() != 2 {
		t.Fatalf("expected 2 active voices, got %d", m.Active())
	}
}

func TestVoiceEnds(t *testing.T) {
	m := New(testFormat)
	var l endLog
	v := newVoice(t, m, constantClip(4, 1), audio.Region{}, &l)
	v.Start(0)

	buf := make([]float32, 16)
	m.ReadFloat32s(buf)
	if len(l.calls) != 1 || l.calls[0] {
		t.Fatalf("expected one final end notification, got %v", l.calls)
	}
	if buf[7] != 1 || buf[8] != 0 {
		t.Fatalf("expected 4 frames of data then silence, got %v", buf)
	}
	if m.Active() != 0 {
		t.Fatalf("ended voice should be removed")
	}
	m.ReadFloat32s(buf)
	if len(l.calls) != 1 {
		t.Fatalf("end must be reported once, got %v", l.calls)
	}
}

func TestVoiceLoops(t *testing.T) {
	m := New(testFormat)
	var l endLog
	v := newVoice(t, m, rampClip(4), audio.Region{}, &l)
	v.SetLooping(true)
	v.Start(0)

	buf := make([]float32, 20)
	m.ReadFloat32s(buf)
	want := []float32{0, 1, 2, 3, 0, 1, 2, 3, 0, 1}
	for i, w := range want {
		if buf[2*i] != w {
			t.Fatalf("frame %d: expected %v, got %v", i, w, buf[2*i])
		}
	}
	if len(l.calls) != 2 || !l.calls[0] || !l.calls[1] {
		t.Fatalf("expected two loop notifications, got %v", l.calls)
	}

	v.SetLooping(false)
	m.ReadFloat32s(buf)
	if n := len(l.calls); n != 3 || l.calls[2] {
		t.Fatalf("expected a final end after looping stops, got %v", l.calls)
	}
}

func TestRegionOffsetAndPosition(t *testing.T) {
	m := New(testFormat)
	var l endLog
	v := newVoice(t, m, rampClip(100), audio.Region{Start: 10 * time.Millisecond, Duration: 5 * time.Millisecond}, &l)
	v.Start(2 * time.Millisecond)
	if p := v.Position(); p != 2*time.Millisecond {
		t.Fatalf("expected position 2ms, got %s", p)
	}

	buf := make([]float32, 10)
	m.ReadFloat32s(buf)
	want := []float32{12, 13, 14, 0, 0}
	for i, w := range want {
		if buf[2*i] != w {
			t.Fatalf("frame %d: expected %v, got %v", i, w, buf[2*i])
		}
	}
	if len(l.calls) != 1 {
		t.Fatalf("expected the region end to be reported, got %v", l.calls)
	}
}

func TestVolumePanAndPause(t *testing.T) {
	m := New(testFormat)
	var l endLog
	v := newVoice(t, m, constantClip(100, 1), audio.Region{}, &l)
	v.SetVolume(0.5)
	v.SetPan(-1)
	v.Start(0)

	buf := make([]float32, 2)
	m.ReadFloat32s(buf)
	if buf[0] != 0.5 || buf[1] != 0 {
		t.Fatalf("expected hard left at half volume, got %v", buf)
	}

	v.Pause()
	m.ReadFloat32s(buf)
	if buf[0] != 0 || v.Position() != time.Millisecond {
		t.Fatalf("paused voice must not advance, got %v at %s", buf, v.Position())
	}
	v.Resume()
	m.ReadFloat32s(buf)
	if v.Position() != 2*time.Millisecond {
		t.Fatalf("expected 2ms after resume, got %s", v.Position())
	}

	v.Close()
	m.ReadFloat32s(buf)
	if buf[0] != 0 || m.Active() != 0 {
		t.Fatalf("closed voice still mixed")
	}
}

func TestFadeIn(t *testing.T) {
	m := New(testFormat)
	var l endLog
	newVoice(t, m, constantClip(10, 1), audio.Region{FadeIn: 4 * time.Millisecond}, &l).Start(0)

	buf := make([]float32, 12)
	m.ReadFloat32s(buf)
	want := []float32{0, 0.25, 0.5, 0.75, 1, 1}
	for i, w := range want {
		if buf[2*i] != w {
			t.Fatalf("frame %d: expected %v, got %v", i, w, buf[2*i])
		}
	}
}

func TestFormatMismatch(t *testing.T) {
	m := New(testFormat)
	clip := &audio.Clip{Samples: make([]float32, 4), SampleRate: 44100, Channels: 2}
	if _, err := m.NewVoice(clip, audio.Region{}, func(bool) {}); !errors.Is(err, ErrFormatMismatch) {
		t.Fatalf("expected ErrFormatMismatch, got %v", err)
	}
	bad := &audio.Clip{Samples: make([]float32, 3), SampleRate: 1000, Channels: 2}
	if _, err := m.NewVoice(bad, audio.Region{}, func(bool) {}); !errors.Is(err, audio.ErrInvalidClip) {
		t.Fatalf("expected ErrInvalidClip, got %v", err)
	}
}

func TestReader(t *testing.T) {
	m := New(testFormat)
	var l endLog
	newVoice(t, m, constantClip(10, 0.5), audio.Region{}, &l).Start(0)

	p := make([]byte, 21)
	n, err := m.Reader().Read(p)
	if err != nil || n != 16 {
		t.Fatalf("expected 16 bytes (two whole frames), got %d, %v", n, err)
	}
	for i := 0; i < 4; i++ {
		if v := math.Float32frombits(binary.LittleEndian.Uint32(p[4*i:])); v != 0.5 {
			t.Fatalf("sample %d: expected 0.5, got %v", i, v)
		}
	}
}

// pullUntil mixes buffers until done returns true.
func pullUntil(t *testing.T, m *Mixer, done func() bool) {
	t.Helper()
	buf := make([]float32, 64)
	for i := 0; i < 1000; i++ {
		if done() {
			return
		}
		m.ReadFloat32s(buf)
	}
	t.Fatalf("condition not reached")
}

func TestContextPlaysThroughMixer(t *testing.T) {
	m := New(testFormat)
	ctx := audio.NewContext(audio.Options{Format: testFormat, Backend: m})
	mono := &audio.Clip{Samples: make([]float32, 50), SampleRate: 500, Channels: 1}
	if _, err := ctx.RegisterSource("beep", audio.SourceOptions{Clip: mono}); err != nil {
		t.Fatalf("register: %v", err)
	}

	loops := make(chan struct{}, 4)
	done := make(chan struct{})
	in := ctx.CreateInstance("beep", audio.WithLoop(2))
	in.On(audio.EventLoop, func(audio.InstanceEvent) { loops <- struct{}{} })
	in.On(audio.EventComplete, func(audio.InstanceEvent) { close(done) })
	in.Play()
	if in.PlayState() != audio.PlaySucceeded {
		t.Fatalf("expected succeeded, got %s", in.PlayState())
	}
	if d := in.Duration(); d != 100*time.Millisecond {
		t.Fatalf("expected the converted clip to last 100ms, got %s", d)
	}

	pullUntil(t, m, func() bool { return in.PlayState() == audio.PlayFinished })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("complete not delivered")
	}
	if len(loops) != 2 {
		t.Fatalf("expected 2 loop events, got %d", len(loops))
	}
	if m.Active() != 0 || ctx.Playing() != 0 {
		t.Fatalf("finished instance still holds a voice")
	}
}
