// Copyright 2021 The Oto Authors
// Copyright 2025 Lundis
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mixer implements audio.Backend in software. Voices are summed into
// interleaved float32 buffers pulled with ReadFloat32s, or as bytes through
// Reader for an output device.
package mixer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Lundis/go-gameassets/audio"
)

// ErrFormatMismatch is returned for clips that are not in the mixer's format.
var ErrFormatMismatch = errors.New("mixer: clip format does not match")

// Mixer is a multiplexer of voices.
type Mixer struct {
	format audio.Format

	mu sync.Mutex
	// voices in start order
	voices []*voice
}

// New creates a mixer producing data in format f.
func New(f audio.Format) *Mixer {
	return &Mixer{format: f}
}

func (m *Mixer) Format() audio.Format {
	return m.format
}

// NewVoice implements audio.Backend.
func (m *Mixer) NewVoice(clip *audio.Clip, region audio.Region, ended func(looped bool)) (audio.Voice, error) {
	if err := clip.Validate(); err != nil {
		return nil, err
	}
	if clip.Format() != m.format {
		return nil, fmt.Errorf("%w: got %+v, want %+v", ErrFormatMismatch, clip.Format(), m.format)
	}
	start := clip.FrameAt(region.Start)
	end := clip.Frames()
	if region.Duration > 0 {
		end = clip.FrameAt(region.Start + region.Duration)
	}
	ch := m.format.Channels
	return &voice{
		mixer:      m,
		data:       clip.Samples[start*ch : end*ch],
		channels:   ch,
		sampleRate: m.format.SampleRate,
		fadeIn:     clip.FrameAt(region.FadeIn),
		volume:     1,
		ended:      ended,
	}, nil
}

func (m *Mixer) addVoice(v *voice) {
	for _, o := range m.voices {
		if o == v {
			return
		}
	}
	m.voices = append(m.voices, v)
}

func (m *Mixer) removeVoice(v *voice) {
	for i, o := range m.voices {
		if o == v {
			m.voices = append(m.voices[:i], m.voices[i+1:]...)
			return
		}
	}
}

// Active returns the number of started voices that have not ended.
func (m *Mixer) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

// ReadFloat32s fills buf with the mixed data of all playing voices. End
// notifications are delivered after mixing, outside the mixer's lock.
func (m *Mixer) ReadFloat32s(buf []float32) {
	for i := range buf {
		buf[i] = 0
	}
	var notify []func()

	m.mu.Lock()
	voices := append([]*voice(nil), m.voices...)
	for _, v := range voices {
		notify = v.readAndAdd(buf, notify)
	}
	m.mu.Unlock()

	for _, f := range notify {
		f()
	}
}
