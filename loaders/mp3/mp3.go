// Package mp3 decodes MPEG-1/2 layer 3 files into clips.
package mp3

import (
	"bytes"
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/Lundis/go-gameassets/audio"
	"github.com/Lundis/go-gameassets/internal/pcm"
)

// Decode reads a whole mp3 stream. The decoder always produces 16 bit
// stereo.
func Decode(data []byte) (*audio.Clip, error) {
	dec, err := gomp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	raw := make([]byte, 0, max(dec.Length(), 0))
	raw, err = readAll(dec, raw)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	clip := &audio.Clip{
		Samples:    pcm.Int16LE(raw),
		SampleRate: dec.SampleRate(),
		Channels:   2,
	}
	// drop a partial trailing frame
	clip.Samples = clip.Samples[:clip.Frames()*2]
	return clip, nil
}

func readAll(r io.Reader, b []byte) ([]byte, error) {
	buf := bytes.NewBuffer(b)
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
