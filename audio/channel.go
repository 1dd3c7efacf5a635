package audio

import "time"

// Group is a mixing group sources belong to. Every group has its own volume
// and pause state on top of the context's.
type Group int

const (
	GroupDefault Group = iota
	GroupMusic
	GroupAmbience
	GroupSfx
	GroupUi
	GroupDialog
	// GroupLast is for when you want to define additional groups yourself
	GroupLast
)

type groupSettings struct {
	volume float64
	paused bool
}

func defaultGroupSettings() groupSettings {
	return groupSettings{volume: 1}
}

// occupant is what a channel holds. Calls happen with the context lock held.
type occupant interface {
	playState() PlayState
	position() time.Duration
	interrupt()
}

// channel bounds the number of simultaneous instances of one source.
type channel struct {
	src       string
	max       int
	instances []occupant
}

func newChannel(src string, max int) *channel {
	return &channel{src: src, max: max}
}

// add admits o, interrupting an instance according to mode if the channel is
// full. It returns false when no slot could be found.
func (c *channel) add(o occupant, mode InterruptMode) bool {
	if c.indexOf(o) >= 0 {
		return true
	}
	if len(c.instances) >= c.max && !c.freeSlot(mode) {
		return false
	}
	c.instances = append(c.instances, o)
	return true
}

// freeSlot removes one instance to make room. Instances that are already
// done are preferred. Otherwise InterruptAny picks the oldest, InterruptEarly
// the one with the smallest position and InterruptLate the largest.
func (c *channel) freeSlot(mode InterruptMode) bool {
	var replacement occupant
	if mode != InterruptNone && len(c.instances) > 0 {
		replacement = c.instances[0]
	}
	stale := false
	for _, target := range c.instances {
		if target.playState().ended() {
			replacement = target
			stale = true
			break
		}
		switch mode {
		case InterruptEarly:
			if target.position() < replacement.position() {
				replacement = target
			}
		case InterruptLate:
			if target.position() > replacement.position() {
				replacement = target
			}
		}
	}
	if replacement == nil {
		return false
	}
	c.remove(replacement)
	if !stale {
		replacement.interrupt()
	}
	return true
}

func (c *channel) remove(o occupant) bool {
	i := c.indexOf(o)
	if i < 0 {
		return false
	}
	c.instances = append(c.instances[:i], c.instances[i+1:]...)
	return true
}

func (c *channel) indexOf(o occupant) int {
	for i, v := range c.instances {
		if v == o {
			return i
		}
	}
	return -1
}

// setMax changes the capacity. Instances above a lowered capacity keep
// playing until they end.
func (c *channel) setMax(n int) {
	c.max = max(n, 1)
}
