package audio

import "time"

// Region selects the part of a clip a voice plays. A zero Duration extends
// to the end of the clip.
type Region struct {
	Start    time.Duration
	Duration time.Duration
	FadeIn   time.Duration
}

// Backend renders clips. NewVoice must not start playback.
//
// ended is called when a voice reaches the end of its region: with looped
// set when the voice wrapped around because looping is on, and unset when it
// stopped. Backends must not hold their own locks while calling it.
type Backend interface {
	NewVoice(clip *Clip, region Region, ended func(looped bool)) (Voice, error)
}

// Voice is one playing sound within a Backend. Positions are relative to the
// voice's region. Methods are safe for concurrent use; calls after Close are
// ignored.
type Voice interface {
	Start(offset time.Duration)
	Pause()
	Resume()
	SetVolume(v float64)
	SetPan(p float64)
	SetPosition(d time.Duration)
	Position() time.Duration
	SetLooping(loop bool)
	Close()
}
