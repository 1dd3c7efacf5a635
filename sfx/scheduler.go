package sfx

import (
	"slices"
	"time"
)

// Scheduler holds sound effects that should play at a later time.
//
// Time is whatever the game uses: simulation ticks, turns, or real seconds.
// Sounds can be queued together with the animation they belong to and are
// played by Process once their time has come, so nothing has to fire at
// exactly the right moment.
//
// Process must be called from the game loop. A Scheduler is not safe for
// concurrent use.
type Scheduler struct {
	registry *Registry
	// MaxLateness is how far past its time a sound is still played.
	// Older sounds are dropped.
	MaxLateness float64
	// sorted by time, ties in insertion order
	sounds []queuedSound
}

type queuedSound struct {
	id     Id
	at     float64
	fadeIn time.Duration
}

const defaultMaxLateness = 3

func NewScheduler(r *Registry) *Scheduler {
	return &Scheduler{
		registry:    r,
		MaxLateness: defaultMaxLateness,
		sounds:      make([]queuedSound, 0, 100),
	}
}

func (s *Scheduler) PlaySoundEffectAt(id Id, at float64) {
	s.PlaySoundEffectAtFadeIn(id, at, 0)
}

func (s *Scheduler) PlaySoundEffectAtFadeIn(id Id, at float64, fadeIn time.Duration) {
	i, _ := slices.BinarySearchFunc(s.sounds, at, func(q queuedSound, at float64) int {
		if q.at <= at {
			return -1
		}
		return 1
	})
	s.sounds = slices.Insert(s.sounds, i, queuedSound{id: id, at: at, fadeIn: fadeIn})
}

// PlaySoundEffectAtRandomFadeIn fades the sound in over up to maxFadeIn.
func (s *Scheduler) PlaySoundEffectAtRandomFadeIn(id Id, at float64, maxFadeIn time.Duration) {
	s.PlaySoundEffectAtFadeIn(id, at, s.registry.randomFadeIn(maxFadeIn))
}

// Pending returns the number of sounds waiting to be played.
func (s *Scheduler) Pending() int {
	return len(s.sounds)
}

func (s *Scheduler) Clear() {
	s.sounds = s.sounds[:0]
}

// Process plays every sound that is due at now and returns how many were
// played and how many were dropped for being too late.
func (s *Scheduler) Process(now float64) (played, dropped int) {
	due := 0
	for due < len(s.sounds) && s.sounds[due].at <= now {
		q := s.sounds[due]
		if q.at >= now-s.MaxLateness && s.registry.PlayFadeIn(q.id, q.fadeIn) {
			played++
		} else {
			dropped++
		}
		due++
	}
	s.sounds = slices.Delete(s.sounds, 0, due)
	return played, dropped
}
