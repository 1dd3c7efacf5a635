package oggvorbis_test

import (
	"testing"

	"github.com/Lundis/go-gameassets/loaders/oggvorbis"
)

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("OggS but not really"), []byte("RIFF....WAVE")} {
		if _, err := oggvorbis.Decode(data); err == nil {
			t.Fatalf("%q: expected an error", data)
		}
	}
}
