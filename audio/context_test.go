package audio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Lundis/go-gameassets/preload"
)

func TestCapacityWithInterruptNone(t *testing.T) {
	c, _ := newTestContext(t, 2)
	a := c.Play("shot")
	b := c.Play("shot")
	third := c.CreateInstance("shot")
	events := collect(third, EventFailed)
	third.Play()

	if a.PlayState() != PlaySucceeded || b.PlayState() != PlaySucceeded {
		t.Fatalf("first two instances should play, got %s and %s", a.PlayState(), b.PlayState())
	}
	if third.PlayState() != PlayFailed || !errors.Is(third.Err(), ErrPlaybackAdmission) {
		t.Fatalf("expected admission failure, got %s (%v)", third.PlayState(), third.Err())
	}
	if ev := waitEvent(t, events); !errors.Is(ev.Err, ErrPlaybackAdmission) {
		t.Fatalf("failed event should carry the cause, got %v", ev.Err)
	}
	if c.Playing() != 2 {
		t.Fatalf("expected 2 playing, got %d", c.Playing())
	}
}

func TestInterruptModes(t *testing.T) {
	tests := []struct {
		mode InterruptMode
		// positions of the two playing instances
		positions [2]time.Duration
		victim    int
	}{
		{InterruptAny, [2]time.Duration{500 * time.Millisecond, 100 * time.Millisecond}, 0},
		{InterruptEarly, [2]time.Duration{500 * time.Millisecond, 100 * time.Millisecond}, 1},
		{InterruptLate, [2]time.Duration{100 * time.Millisecond, 500 * time.Millisecond}, 1},
		{InterruptLate, [2]time.Duration{500 * time.Millisecond, 100 * time.Millisecond}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.mode.String(), func(t *testing.T) {
			c, b := newTestContext(t, 2)
			var playing [2]*Instance
			for i := range playing {
				playing[i] = c.Play("shot")
				b.last().SetPosition(tc.positions[i])
			}
			interrupted := collect(playing[tc.victim], EventInterrupted)

			n := c.Play("shot", WithInterrupt(tc.mode))
			if n.PlayState() != PlaySucceeded {
				t.Fatalf("new instance should be admitted, got %s", n.PlayState())
			}
			if s := playing[tc.victim].PlayState(); s != PlayInterrupted {
				t.Fatalf("expected instance %d interrupted, got %s", tc.victim, s)
			}
			if s := playing[1-tc.victim].PlayState(); s != PlaySucceeded {
				t.Fatalf("other instance should keep playing, got %s", s)
			}
			waitEvent(t, interrupted)
			if c.Playing() != 2 {
				t.Fatalf("expected 2 playing, got %d", c.Playing())
			}
		})
	}
}

func TestEndedInstanceFreesSlot(t *testing.T) {
	c, b := newTestContext(t, 1)
	first := c.Play("shot")
	events := collect(first, EventComplete)
	b.last().finish(false)
	waitEvent(t, events)
	if first.PlayState() != PlayFinished {
		t.Fatalf("expected finished, got %s", first.PlayState())
	}
	if !b.voices[0].state().closed {
		t.Fatalf("voice of a finished instance must be closed")
	}

	second := c.Play("shot")
	if second.PlayState() != PlaySucceeded {
		t.Fatalf("slot of a finished instance should be reused, got %s", second.PlayState())
	}

	second.Stop()
	if second.PlayState() != PlayFinished || c.Playing() != 0 {
		t.Fatalf("stop should release the slot")
	}
	if c.Play("shot").PlayState() != PlaySucceeded {
		t.Fatalf("slot of a stopped instance should be reused")
	}
}

func TestLoopCount(t *testing.T) {
	c, b := newTestContext(t, 1)
	in := c.CreateInstance("shot", WithLoop(2))
	events := collect(in, EventLoop, EventComplete)
	in.Play()
	v := b.last()
	if !v.state().loop {
		t.Fatalf("voice should loop while loops remain")
	}

	v.finish(true)
	if ev := waitEvent(t, events); ev.Type != EventLoop || in.Loop() != 1 {
		t.Fatalf("expected loop event with 1 loop left, got %s, %d", ev.Type, in.Loop())
	}
	v.finish(true)
	waitEvent(t, events)
	if v.state().loop || in.Loop() != 0 {
		t.Fatalf("looping should stop after the last loop")
	}
	if in.PlayState() != PlaySucceeded {
		t.Fatalf("looping instance stays succeeded, got %s", in.PlayState())
	}
	v.finish(false)
	if ev := waitEvent(t, events); ev.Type != EventComplete {
		t.Fatalf("expected complete, got %s", ev.Type)
	}

	// notifications from a released voice are ignored
	v.finish(false)
	if in.PlayState() != PlayFinished {
		t.Fatalf("expected finished, got %s", in.PlayState())
	}
}

func TestInfiniteLoop(t *testing.T) {
	c, b := newTestContext(t, 1)
	in := c.Play("shot", WithLoop(-1))
	for i := 0; i < 5; i++ {
		b.last().finish(true)
	}
	if in.Loop() != -1 || !b.last().state().loop {
		t.Fatalf("negative loop count must loop forever")
	}
}

func TestDelayedPlay(t *testing.T) {
	c, _ := newTestContext(t, 1)
	in := c.CreateInstance("shot", WithDelay(20*time.Millisecond))
	events := collect(in, EventSucceeded)
	in.Play()
	if in.PlayState() != PlayInited {
		t.Fatalf("delayed instance should wait, got %s", in.PlayState())
	}
	if in.SetPaused(true) {
		t.Fatalf("pausing is only possible while playing")
	}
	waitEvent(t, events)
	if in.PlayState() != PlaySucceeded {
		t.Fatalf("expected succeeded after the delay, got %s", in.PlayState())
	}

	cancelled := c.Play("shot", WithDelay(20*time.Millisecond))
	cancelled.Stop()
	time.Sleep(50 * time.Millisecond)
	if cancelled.PlayState() != PlayFinished {
		t.Fatalf("stopped delayed instance must not start, got %s", cancelled.PlayState())
	}
}

func TestPauseAndPosition(t *testing.T) {
	c, b := newTestContext(t, 1)
	in := c.Play("shot", WithOffset(300*time.Millisecond))
	v := b.last()
	if v.state().pos != 300*time.Millisecond {
		t.Fatalf("voice should start at the offset, got %s", v.state().pos)
	}
	if !in.SetPaused(true) || !v.state().paused || !in.Paused() {
		t.Fatalf("pause not applied")
	}
	in.Play()
	if v.state().paused || in.Paused() {
		t.Fatalf("play on a paused instance resumes it")
	}
	in.SetPosition(time.Second / 2)
	if in.Position() != time.Second/2 {
		t.Fatalf("expected position 500ms, got %s", in.Position())
	}
	in.Stop()
	if in.Position() != 0 {
		t.Fatalf("stop should rewind, got %s", in.Position())
	}
	if in.Duration() != time.Second {
		t.Fatalf("expected duration 1s, got %s", in.Duration())
	}
}

func TestPlayAppliesOffsetInPlace(t *testing.T) {
	c, b := newTestContext(t, 1)
	in := c.Play("shot", WithOffset(300*time.Millisecond))
	v := b.last()

	in.Play(WithOffset(700*time.Millisecond), WithVolume(0.5))
	if got := v.state().pos; got != 700*time.Millisecond {
		t.Fatalf("offset not applied in place: pos=%s want 700ms", got)
	}
	if v.state().volume != 0.5 {
		t.Fatalf("expected volume 0.5, got %v", v.state().volume)
	}
	if b.last() != v {
		t.Fatalf("playing a playing instance must keep its voice")
	}

	// without a new offset the position is kept
	v.SetPosition(100 * time.Millisecond)
	in.Play(WithVolume(1))
	if got := v.state().pos; got != 100*time.Millisecond {
		t.Fatalf("position changed without an offset: %s", got)
	}
}

func TestPlayAfterSourceRemoved(t *testing.T) {
	c, _ := newTestContext(t, 1)
	created := c.CreateInstance("shot")
	ended := c.Play("shot")
	ended.Stop()

	c.RemoveSource("shot")
	for _, in := range []*Instance{created, ended} {
		in.Play()
		if in.PlayState() != PlayFailed || !errors.Is(in.Err(), ErrUnknownSource) {
			t.Fatalf("expected unknown source failure, got %s %v", in.PlayState(), in.Err())
		}
	}
}

func TestFailures(t *testing.T) {
	c, b := newTestContext(t, 1)
	if in := c.Play("missing"); in.PlayState() != PlayFailed || !errors.Is(in.Err(), ErrUnknownSource) {
		t.Fatalf("expected unknown source failure, got %s %v", in.PlayState(), in.Err())
	}

	b.err = errors.New("no voices left")
	in := c.Play("shot")
	if in.PlayState() != PlayFailed || in.Err() != b.err {
		t.Fatalf("backend error should fail the instance, got %s %v", in.PlayState(), in.Err())
	}
	b.err = nil
	if c.Play("shot").PlayState() != PlaySucceeded {
		t.Fatalf("failed instance must not hold a slot")
	}

	noBackend := NewContext(Options{})
	noBackend.RegisterSource("a.wav", SourceOptions{Clip: testClip()})
	if in := noBackend.Play("a.wav"); !errors.Is(in.Err(), ErrNoBackend) {
		t.Fatalf("expected ErrNoBackend, got %v", in.Err())
	}
}

func TestVolumeAndMute(t *testing.T) {
	c, b := newTestContext(t, 2)
	in := c.Play("shot", WithVolume(0.5), WithPan(2))
	v := b.last()
	if got := v.state(); got.volume != 0.5 || got.pan != 1 {
		t.Fatalf("expected volume 0.5 and clamped pan 1, got %v %v", got.volume, got.pan)
	}
	c.SetVolume(0.5)
	if got := v.state().volume; got != 0.25 {
		t.Fatalf("master volume should scale live voices, got %v", got)
	}
	c.SetMuted(true)
	if got := v.state().volume; got != 0 {
		t.Fatalf("muted context should silence voices, got %v", got)
	}
	c.SetMuted(false)
	in.SetMuted(true)
	if got := v.state().volume; got != 0 {
		t.Fatalf("muted instance should be silent, got %v", got)
	}
	in.SetMuted(false)
	c.SetGroupVolume(GroupDefault, 0.5)
	if got := v.state().volume; got != 0.125 {
		t.Fatalf("group volume should apply, got %v", got)
	}
	c.SetGroupPaused(GroupDefault, true)
	if !v.state().paused {
		t.Fatalf("group pause should pause voices")
	}
	c.SetGroupPaused(GroupDefault, false)
	if v.state().paused {
		t.Fatalf("group resume should resume voices")
	}

	c.StopAll()
	if in.PlayState() != PlayFinished || c.Playing() != 0 {
		t.Fatalf("StopAll should stop every instance")
	}
}

func TestSprites(t *testing.T) {
	b := &fakeBackend{}
	c := NewContext(Options{Backend: b})
	_, err := c.RegisterSource("sfx.mp3", SourceOptions{
		Clip:    testClip(),
		Sprites: []Sprite{{ID: "click", StartTime: 100 * time.Millisecond, Duration: 50 * time.Millisecond}},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	in := c.Play("click")
	if in.PlayState() != PlaySucceeded {
		t.Fatalf("sprite should play, got %s %v", in.PlayState(), in.Err())
	}
	if r := b.last().region; r.Start != 100*time.Millisecond || r.Duration != 50*time.Millisecond {
		t.Fatalf("unexpected region %+v", r)
	}
	if in.Duration() != 50*time.Millisecond {
		t.Fatalf("expected sprite duration, got %s", in.Duration())
	}
}

func TestRegisterSource(t *testing.T) {
	c := NewContext(Options{})
	if _, err := c.RegisterSource("notes.txt", SourceOptions{}); !errors.Is(err, ErrUnsupportedSource) {
		t.Fatalf("expected ErrUnsupportedSource, got %v", err)
	}
	first, err := c.RegisterSource("a.ogg", SourceOptions{BasePath: "sounds/"})
	if err != nil || first.Src != "sounds/a.ogg" || first.ID != "a.ogg" || first.Capacity != DefaultCapacity {
		t.Fatalf("unexpected source %+v %v", first, err)
	}
	again, err := c.RegisterSource("a.ogg", SourceOptions{BasePath: "sounds/", Capacity: 3})
	if err != nil || again.Capacity != DefaultCapacity {
		t.Fatalf("registering twice should return the existing source, got %+v %v", again, err)
	}
	if _, err := c.RegisterSource("b.ogg", SourceOptions{ID: "a.ogg"}); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	if c.Loaded("a.ogg") {
		t.Fatalf("source without a clip is not loaded")
	}
	if in := c.Play("a.ogg"); !errors.Is(in.Err(), ErrSourceNotLoaded) {
		t.Fatalf("expected ErrSourceNotLoaded, got %v", in.Err())
	}
	if !c.RemoveSource("sounds/a.ogg") || c.RemoveSource("a.ogg") {
		t.Fatalf("remove should forget id and src")
	}
}

func TestQueueLoadsSources(t *testing.T) {
	clip := &Clip{Samples: make([]float32, 22050), SampleRate: 22050, Channels: 1}
	sound := preload.NewStrategy("sound", preload.ForTypes(preload.TypeSound), func(preload.Item, bool) preload.Loader {
		return preload.LoaderFunc(func(context.Context, preload.Reporter) (preload.Result, error) {
			return preload.Result{Value: clip}, nil
		})
	})
	q := preload.New(preload.Options{Registry: preload.NewRegistry(sound)})
	c := NewContext(Options{Backend: &fakeBackend{}, Queue: q})

	loaded := make(chan SourceEvent, 4)
	c.On(EventSourceLoad, func(ev SourceEvent) { loaded <- ev })

	if _, err := c.RegisterSource("music.ogg", SourceOptions{ID: "music"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	// items enqueued directly become sources through the plugin hook
	if err := q.EnqueueOne(preload.Item{Src: "hit.wav", ID: "hit", Data: map[string]any{"channels": 3.0}}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	q.Load()

	got := map[string]bool{}
	for len(got) < 2 {
		select {
		case ev := <-loaded:
			got[ev.ID] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("sources not loaded, got %v", got)
		}
	}
	src, ok := c.Source("hit")
	if !ok || src.Capacity != 3 || !src.Loaded() {
		t.Fatalf("unexpected plugin source %+v", src)
	}
	if in := c.Play("music"); in.PlayState() != PlaySucceeded {
		t.Fatalf("loaded source should play, got %s %v", in.PlayState(), in.Err())
	}
	if in := c.Play("music"); in.Duration() != time.Second {
		t.Fatalf("clip should be converted to the context format, got %s", in.Duration())
	}
}

func TestApplyItemData(t *testing.T) {
	var opts SourceOptions
	applyItemData(&opts, map[string]any{
		"channels": 4.0,
		"audioSprite": []any{
			map[string]any{"id": "a", "startTime": 0.0, "duration": 250.0},
			map[string]any{"startTime": 10.0},
		},
	})
	if opts.Capacity != 4 || len(opts.Sprites) != 1 || opts.Sprites[0].Duration != 250*time.Millisecond {
		t.Fatalf("unexpected options %+v", opts)
	}
}
