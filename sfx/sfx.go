package sfx

import (
	"time"

	"github.com/Lundis/go-gameassets/audio"
)

// Sfx is a sound effect with one or more variations, one of which is picked
// at random each time it plays.
type Sfx struct {
	Id           Id
	Volume       float64
	ThrottlingMs int
	// Interrupt decides what happens when all channels of a variation are
	// busy.
	Interrupt audio.InterruptMode
	// Channels limits simultaneous plays per variation file. Zero uses the
	// context default.
	Channels   int
	Variations []*SfxVariant
	DebugMode  bool
	lastPlayed time.Time
}

type SfxVariant struct {
	Path         string
	Probability  float64
	Volume       float64
	ThrottlingMs int
	lastPlayed   time.Time
}

// pick returns a variation that is not throttled, weighted by probability.
func (e *Sfx) pick(now time.Time, random func() float64) *SfxVariant {
	if len(e.Variations) == 0 {
		return nil
	}
	if now.Sub(e.lastPlayed) <= time.Duration(e.ThrottlingMs)*time.Millisecond {
		return nil
	}
	unThrottled := make([]*SfxVariant, 0, len(e.Variations))
	probabilitySum := 0.0
	for _, v := range e.Variations {
		if now.Sub(v.lastPlayed) > time.Duration(v.ThrottlingMs)*time.Millisecond {
			unThrottled = append(unThrottled, v)
			probabilitySum += v.Probability
		}
	}
	if len(unThrottled) == 0 {
		return nil
	}
	r := random() * probabilitySum
	for _, v := range unThrottled {
		if r <= v.Probability+0.001 {
			return v
		}
		r -= v.Probability
	}
	return unThrottled[len(unThrottled)-1]
}
