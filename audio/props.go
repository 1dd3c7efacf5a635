package audio

import "time"

// PlayProps are the properties a playback starts with.
type PlayProps struct {
	Interrupt InterruptMode
	// Delay postpones admission to the channel.
	Delay time.Duration
	// Offset is the start position within the clip or sprite.
	Offset time.Duration
	// Loop is the number of extra plays; negative loops forever.
	Loop   int
	Volume float64
	Pan    float64
	// StartTime and Duration select a part of the clip. A zero Duration
	// plays to the end.
	StartTime time.Duration
	Duration  time.Duration
	// FadeIn ramps the volume up from silence over the first part of each
	// play.
	FadeIn time.Duration

	// seek is set by WithOffset until Play consumed it.
	seek bool
}

// DefaultPlayProps plays the whole clip once at full volume, centered.
func DefaultPlayProps() PlayProps {
	return PlayProps{Volume: 1}
}

// PlayOption changes one play property.
type PlayOption func(*PlayProps)

func WithInterrupt(m InterruptMode) PlayOption {
	return func(p *PlayProps) { p.Interrupt = m }
}

func WithDelay(d time.Duration) PlayOption {
	return func(p *PlayProps) { p.Delay = d }
}

func WithOffset(d time.Duration) PlayOption {
	return func(p *PlayProps) {
		p.Offset = d
		p.seek = true
	}
}

// WithLoop sets the number of extra plays. Use -1 to loop until stopped.
func WithLoop(n int) PlayOption {
	return func(p *PlayProps) { p.Loop = n }
}

func WithVolume(v float64) PlayOption {
	return func(p *PlayProps) { p.Volume = clamp(v, 0, 1) }
}

func WithPan(pan float64) PlayOption {
	return func(p *PlayProps) { p.Pan = clamp(pan, -1, 1) }
}

// WithSprite plays only the part of the clip starting at start and lasting d.
func WithSprite(start, d time.Duration) PlayOption {
	return func(p *PlayProps) {
		p.StartTime = start
		p.Duration = d
	}
}

func WithFadeIn(d time.Duration) PlayOption {
	return func(p *PlayProps) { p.FadeIn = d }
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
