package sfx

import (
	"math/rand/v2"
	"time"

	"github.com/Lundis/go-gameassets/audio"
)

// Id is used to identify a specific sound effect
// Use Registry.Play to play the sounds after loading them
type Id string

func (r *Registry) Play(id Id) bool {
	return r.PlayFadeIn(id, 0)
}

func (r *Registry) PlayRandomFadeIn(id Id, maxFadeIn time.Duration) bool {
	return r.PlayFadeIn(id, r.randomFadeIn(maxFadeIn))
}

func (r *Registry) randomFadeIn(maxFadeIn time.Duration) time.Duration {
	if maxFadeIn <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Duration(r.rand.Int64N(int64(maxFadeIn)))
}

// PlayFadeIn plays a variation of the effect. It returns false when the
// effect is unknown, throttled or could not get a channel.
func (r *Registry) PlayFadeIn(id Id, fadeIn time.Duration) bool {
	r.mu.Lock()
	e, ok := r.effects[id]
	if !ok {
		r.mu.Unlock()
		r.log.Warn().Str("sfx", string(id)).Msg("sfx not loaded")
		return false
	}
	now := r.now()
	v := e.pick(now, r.rand.Float64)
	if v == nil {
		r.mu.Unlock()
		return false
	}
	in := r.ctx.Play(v.Path,
		audio.WithVolume(e.Volume*v.Volume),
		audio.WithInterrupt(e.Interrupt),
		audio.WithFadeIn(fadeIn),
	)
	ok = in.PlayState() == audio.PlaySucceeded
	if ok {
		v.lastPlayed = now
		e.lastPlayed = now
	}
	r.mu.Unlock()

	if !ok {
		r.log.Warn().Err(in.Err()).Str("sfx", string(id)).Str("variation", v.Path).Msg("sfx not played")
	} else if e.DebugMode {
		r.log.Debug().Str("sfx", string(id)).Str("variation", v.Path).Msg("playing sound effect")
	}
	return ok
}

func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}
