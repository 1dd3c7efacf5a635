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

package mixer

import "time"

// voice is the state of one audio.Voice. All fields are guarded by the
// mixer's lock.
type voice struct {
	mixer      *Mixer
	data       []float32
	channels   int
	sampleRate int

	pos     int // frame
	played  int // frames since Start, for the fade in
	fadeIn  int
	volume  float32
	pan     float32
	loop    bool
	started bool
	paused  bool
	closed  bool

	ended func(looped bool)
}

func (v *voice) frames() int {
	return len(v.data) / v.channels
}

func (v *voice) Start(offset time.Duration) {
	m := v.mixer
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.closed {
		return
	}
	v.pos = min(v.frameAt(offset), v.frames())
	v.played = 0
	v.started = true
	v.paused = false
	m.addVoice(v)
}

func (v *voice) Pause() {
	v.mixer.mu.Lock()
	v.paused = true
	v.mixer.mu.Unlock()
}

func (v *voice) Resume() {
	v.mixer.mu.Lock()
	v.paused = false
	v.mixer.mu.Unlock()
}

func (v *voice) SetVolume(volume float64) {
	v.mixer.mu.Lock()
	v.volume = float32(volume)
	v.mixer.mu.Unlock()
}

func (v *voice) SetPan(pan float64) {
	v.mixer.mu.Lock()
	v.pan = float32(pan)
	v.mixer.mu.Unlock()
}

func (v *voice) SetLooping(loop bool) {
	v.mixer.mu.Lock()
	v.loop = loop
	v.mixer.mu.Unlock()
}

func (v *voice) SetPosition(d time.Duration) {
	v.mixer.mu.Lock()
	v.pos = min(v.frameAt(d), v.frames())
	v.mixer.mu.Unlock()
}

func (v *voice) Position() time.Duration {
	v.mixer.mu.Lock()
	defer v.mixer.mu.Unlock()
	return time.Duration(v.pos) * time.Second / time.Duration(v.sampleRate)
}

func (v *voice) Close() {
	m := v.mixer
	m.mu.Lock()
	defer m.mu.Unlock()
	v.closed = true
	m.removeVoice(v)
}

func (v *voice) frameAt(d time.Duration) int {
	return max(int(d*time.Duration(v.sampleRate)/time.Second), 0)
}

// gains returns the per channel multipliers. Pan only affects the first two
// channels.
func (v *voice) gains(dst []float32) {
	for i := range dst {
		dst[i] = v.volume
	}
	if len(dst) >= 2 {
		dst[0] *= min(1, 1-v.pan)
		dst[1] *= min(1, 1+v.pan)
	}
}

// readAndAdd mixes the voice into buf and appends the end notifications it
// produced to notify.
func (v *voice) readAndAdd(buf []float32, notify []func()) []func() {
	if !v.started || v.paused || v.closed {
		return notify
	}
	var g [8]float32
	gain := g[:min(v.channels, len(g))]
	v.gains(gain)

	total := v.frames()
	want := len(buf) / v.channels
	out := 0
	for out < want {
		if v.pos >= total {
			if !v.loop || total == 0 {
				break
			}
			v.pos = 0
			notify = append(notify, func() { v.ended(true) })
		}
		n := min(want-out, total-v.pos)
		for f := 0; f < n; f++ {
			fade := float32(1)
			if v.played < v.fadeIn {
				fade = float32(v.played) / float32(v.fadeIn)
			}
			src := v.data[(v.pos+f)*v.channels:]
			dst := buf[(out+f)*v.channels:]
			for c := 0; c < v.channels; c++ {
				k := float32(1)
				if c < len(gain) {
					k = gain[c]
				}
				dst[c] += src[c] * k * fade
			}
			v.played++
		}
		v.pos += n
		out += n
	}
	if v.pos >= total && (!v.loop || total == 0) {
		v.started = false
		v.mixer.removeVoice(v)
		notify = append(notify, func() { v.ended(false) })
	}
	return notify
}
