// Package oggvorbis decodes Ogg Vorbis files into clips.
package oggvorbis

import (
	"bytes"
	"fmt"

	"github.com/jfreymuth/oggvorbis"

	"github.com/Lundis/go-gameassets/audio"
)

// Decode reads a whole Ogg Vorbis stream.
func Decode(oggData []byte) (*audio.Clip, error) {
	data, format, err := oggvorbis.ReadAll(bytes.NewReader(oggData))
	if err != nil {
		return nil, fmt.Errorf("oggvorbis: %w", err)
	}
	clip := &audio.Clip{
		Samples:    data,
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
	}
	if err := clip.Validate(); err != nil {
		return nil, fmt.Errorf("oggvorbis: %w", err)
	}
	return clip, nil
}
