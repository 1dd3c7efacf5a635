// Copyright 2022 The Oto Authors
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

// Package device plays a mixer on the platform's audio output.
package device

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/rs/zerolog"

	"github.com/Lundis/go-gameassets/audio/mixer"
)

// firstError keeps the first error stored into it.
type firstError struct {
	p atomic.Pointer[error]
}

func (e *firstError) Store(err error) {
	if err != nil {
		e.p.CompareAndSwap(nil, &err)
	}
}

func (e *firstError) Load() error {
	if p := e.p.Load(); p != nil {
		return *p
	}
	return nil
}

// Options configure Open.
type Options struct {
	// BufferSize specifies a buffer size in the underlying device.
	//
	// If 0 is specified, the driver's default buffer size is used.
	// Too big buffer size can increase the latency time.
	// On the other hand, too small buffer size can cause glitch noises due to buffer shortage.
	BufferSize time.Duration
	// AllowNull keeps the mixer running in real time without sound when no
	// device could be opened.
	AllowNull bool
	Logger    *zerolog.Logger
}

// Device is an opened output. Only one Device with a real output may exist
// per process.
type Device struct {
	log    zerolog.Logger
	ctx    *oto.Context
	player *oto.Player
	cancel context.CancelFunc
	err    firstError
}

// the platform context can only be created once
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
)

func platformContext(op *oto.NewContextOptions) (*oto.Context, error) {
	otoOnce.Do(func() {
		var ready chan struct{}
		otoCtx, ready, otoErr = oto.NewContext(op)
		if otoErr == nil {
			// Initializing drivers might take some time.
			<-ready
		}
	})
	return otoCtx, otoErr
}

// Open starts playing m. When the platform output cannot be opened and
// opts.AllowNull is set, m is pulled in real time without sound instead.
func Open(m *mixer.Mixer, opts Options) (*Device, error) {
	d := &Device{log: zerolog.Nop()}
	if opts.Logger != nil {
		d.log = opts.Logger.With().Str("component", "device").Logger()
	}
	f := m.Format()
	ctx, err := platformContext(&oto.NewContextOptions{
		SampleRate:   f.SampleRate,
		ChannelCount: f.Channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   opts.BufferSize,
	})
	if err != nil {
		if !opts.AllowNull {
			return nil, fmt.Errorf("device: initialization failed: %w", err)
		}
		d.log.Warn().Err(err).Msg("no audio output, playing silently")
		d.err.Store(err)
		nullCtx, cancel := context.WithCancel(context.Background())
		d.cancel = cancel
		go m.RunNull(nullCtx)
		return d, nil
	}
	d.ctx = ctx
	d.player = ctx.NewPlayer(reader{m.Reader()})
	d.player.Play()
	d.log.Debug().Int("sampleRate", f.SampleRate).Int("channels", f.Channels).Msg("audio output opened")
	return d, nil
}

// reader hides the concrete type so the player does not seek.
type reader struct{ io.Reader }

// Silent reports whether the device runs without a real output.
func (d *Device) Silent() bool {
	return d.player == nil
}

// Err returns the first error the output reported.
func (d *Device) Err() error {
	if err := d.err.Load(); err != nil {
		return err
	}
	if d.ctx != nil {
		if err := d.ctx.Err(); err != nil {
			d.err.Store(err)
			return err
		}
	}
	return nil
}

// Suspend pauses the whole output, for example while the game is in the
// background.
func (d *Device) Suspend() error {
	if d.ctx == nil {
		return nil
	}
	return d.ctx.Suspend()
}

func (d *Device) Resume() error {
	if d.ctx == nil {
		return nil
	}
	return d.ctx.Resume()
}

// Close stops pulling from the mixer. The platform context stays open and
// is reused by the next Open.
func (d *Device) Close() error {
	if d.cancel != nil {
		d.cancel()
	}
	if d.player == nil {
		return nil
	}
	return d.player.Close()
}
