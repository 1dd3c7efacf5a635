package audio

import (
	"fmt"
	"strings"
)

// PlayState is the state of a playback Instance.
type PlayState int

const (
	PlayInited PlayState = iota
	PlaySucceeded
	PlayInterrupted
	PlayFinished
	PlayFailed
)

func (s PlayState) String() string {
	switch s {
	case PlayInited:
		return "inited"
	case PlaySucceeded:
		return "succeeded"
	case PlayInterrupted:
		return "interrupted"
	case PlayFinished:
		return "finished"
	case PlayFailed:
		return "failed"
	}
	return fmt.Sprintf("PlayState(%d)", int(s))
}

// ended reports whether the instance is done with its current play cycle.
func (s PlayState) ended() bool {
	return s == PlayInterrupted || s == PlayFinished || s == PlayFailed
}

// InterruptMode decides which playing instance, if any, a new one may
// replace when its channel is full.
type InterruptMode int

const (
	// InterruptNone rejects the new instance.
	InterruptNone InterruptMode = iota
	// InterruptAny replaces the oldest instance.
	InterruptAny
	// InterruptEarly replaces the instance with the smallest position.
	InterruptEarly
	// InterruptLate replaces the instance with the largest position.
	InterruptLate
)

func (m InterruptMode) String() string {
	switch m {
	case InterruptNone:
		return "none"
	case InterruptAny:
		return "any"
	case InterruptEarly:
		return "early"
	case InterruptLate:
		return "late"
	}
	return fmt.Sprintf("InterruptMode(%d)", int(m))
}

// ParseInterruptMode accepts the names returned by String.
func ParseInterruptMode(s string) (InterruptMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return InterruptNone, nil
	case "any":
		return InterruptAny, nil
	case "early":
		return InterruptEarly, nil
	case "late":
		return InterruptLate, nil
	}
	return InterruptNone, fmt.Errorf("audio: unknown interrupt mode %q", s)
}

func (m *InterruptMode) UnmarshalText(text []byte) error {
	v, err := ParseInterruptMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func (m InterruptMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
