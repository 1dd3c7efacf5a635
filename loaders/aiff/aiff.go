// Package aiff decodes AIFF files into clips.
package aiff

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-audio/aiff"

	"github.com/Lundis/go-gameassets/audio"
	"github.com/Lundis/go-gameassets/internal/pcm"
)

var ErrInvalidHeader = errors.New("aiff: invalid header")

// Decode reads a whole AIFF file of 8, 16, 24 or 32 bit samples.
func Decode(data []byte) (*audio.Clip, error) {
	d := aiff.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, ErrInvalidHeader
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("aiff: %w", err)
	}
	if buf.Format == nil {
		return nil, ErrInvalidHeader
	}
	clip := &audio.Clip{
		Samples:    pcm.Signed(buf.Data, int(d.BitDepth)),
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
	}
	if err := clip.Validate(); err != nil {
		return nil, fmt.Errorf("aiff: %w", err)
	}
	return clip, nil
}
