// Package wav decodes WAV (RIFF) files into clips.
package wav

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/go-audio/wav"

	"github.com/Lundis/go-gameassets/audio"
	"github.com/Lundis/go-gameassets/internal/pcm"
)

var ErrInvalidHeader = errors.New("wav: invalid header")

const (
	formatPCM   = 1
	formatFloat = 3
)

// Decode reads a whole WAV file. Linear PCM of 8, 16, 24 or 32 bits and
// 32 bit float data are supported, with any number of channels.
func Decode(data []byte) (*audio.Clip, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, ErrInvalidHeader
	}
	switch {
	case d.WavAudioFormat == formatPCM:
	case d.WavAudioFormat == formatFloat && d.BitDepth == 32:
	default:
		return nil, fmt.Errorf("wav: unsupported format %d with %d bits", d.WavAudioFormat, d.BitDepth)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}

	var samples []float32
	switch {
	case d.WavAudioFormat == formatFloat:
		samples = make([]float32, len(buf.Data))
		for i, v := range buf.Data {
			samples[i] = math.Float32frombits(uint32(v))
		}
	case d.BitDepth == 8:
		samples = pcm.Unsigned8(buf.Data)
	default:
		samples = pcm.Signed(buf.Data, int(d.BitDepth))
	}
	clip := &audio.Clip{
		Samples:    samples,
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
	}
	if err := clip.Validate(); err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	return clip, nil
}
