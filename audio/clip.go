package audio

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidClip is returned for clips whose layout is inconsistent.
var ErrInvalidClip = errors.New("audio: invalid clip")

// Format describes interleaved float32 sample data.
type Format struct {
	SampleRate int
	Channels   int
}

// Clip is decoded audio held in memory.
//
//	[Samples]   = [frame 1] [frame 2] [frame 3] ...
//	[frame *]   = [channel 1] [channel 2] ...
//	[channel *] = [float32]
type Clip struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

func (c *Clip) Format() Format {
	return Format{SampleRate: c.SampleRate, Channels: c.Channels}
}

// Frames returns the number of sample frames.
func (c *Clip) Frames() int {
	if c.Channels <= 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

// FrameAt converts a time offset to a frame index, clamped to the clip.
func (c *Clip) FrameAt(d time.Duration) int {
	f := int(d * time.Duration(c.SampleRate) / time.Second)
	return min(max(f, 0), c.Frames())
}

func (c *Clip) Validate() error {
	switch {
	case c == nil:
		return fmt.Errorf("%w: nil", ErrInvalidClip)
	case c.Channels <= 0:
		return fmt.Errorf("%w: %d channels", ErrInvalidClip, c.Channels)
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %d", ErrInvalidClip, c.SampleRate)
	case len(c.Samples)%c.Channels != 0:
		return fmt.Errorf("%w: %d samples do not fill %d channels", ErrInvalidClip, len(c.Samples), c.Channels)
	}
	return nil
}

// Convert returns the clip in format f. Mono is duplicated into every
// output channel, more channels are averaged down, and the sample rate is
// changed by cubic interpolation. c is returned as is when it already
// matches.
func (c *Clip) Convert(f Format) *Clip {
	if c.Format() == f {
		return c
	}
	out := c.remix(f.Channels)
	if out.SampleRate != f.SampleRate {
		out = out.resample(f.SampleRate)
	}
	return out
}

func (c *Clip) remix(channels int) *Clip {
	if c.Channels == channels {
		return c
	}
	frames := c.Frames()
	out := &Clip{Samples: make([]float32, frames*channels), SampleRate: c.SampleRate, Channels: channels}
	inv := 1 / float32(c.Channels)
	for i := 0; i < frames; i++ {
		in := c.Samples[i*c.Channels : (i+1)*c.Channels]
		dst := out.Samples[i*channels : (i+1)*channels]
		switch {
		case c.Channels == 1:
			for ch := range dst {
				dst[ch] = in[0]
			}
		case channels == 1 && c.Channels == 2:
			dst[0] = (in[0] + in[1]) * 0.5
		case channels == 1:
			var sum float32
			for _, v := range in {
				sum += v
			}
			dst[0] = sum * inv
		default:
			for ch := range dst {
				dst[ch] = in[min(ch, len(in)-1)]
			}
		}
	}
	return out
}

// lowPassAlpha is the coefficient of the one-pole filter applied before
// downsampling.
const lowPassAlpha = 0.5

// resample changes the sample rate with a Catmull-Rom spline over four
// neighbouring frames. Frames past either end repeat the edge frame.
func (c *Clip) resample(rate int) *Clip {
	frames := c.Frames()
	if frames == 0 {
		return &Clip{SampleRate: rate, Channels: c.Channels}
	}
	src := c.Samples
	if rate < c.SampleRate {
		src = lowPass(src, c.Channels, lowPassAlpha)
	}
	at := func(f, ch int) float32 {
		f = min(max(f, 0), frames-1)
		return src[f*c.Channels+ch]
	}

	outFrames := int(int64(frames) * int64(rate) / int64(c.SampleRate))
	out := &Clip{Samples: make([]float32, outFrames*c.Channels), SampleRate: rate, Channels: c.Channels}
	step := float64(c.SampleRate) / float64(rate)
	for i := 0; i < outFrames; i++ {
		pos := float64(i) * step
		f := int(pos)
		x := float32(pos - float64(f))
		for ch := 0; ch < c.Channels; ch++ {
			out.Samples[i*c.Channels+ch] = cubic(at(f-1, ch), at(f, ch), at(f+1, ch), at(f+2, ch), x)
		}
	}
	return out
}

// cubic interpolates between y1 and y2 at x in [0, 1).
func cubic(y0, y1, y2, y3, x float32) float32 {
	a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
	a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
	a2 := -0.5*y0 + 0.5*y2
	return ((a0*x+a1)*x+a2)*x + y1
}

// lowPass runs samples through y[n] = alpha*x[n] + (1-alpha)*y[n-1] per
// channel, starting from the first frame so there is no warm-up transient.
func lowPass(samples []float32, channels int, alpha float32) []float32 {
	out := make([]float32, len(samples))
	state := make([]float32, channels)
	copy(state, samples)
	for i, v := range samples {
		ch := i % channels
		state[ch] = alpha*v + (1-alpha)*state[ch]
		out[i] = state[ch]
	}
	return out
}
