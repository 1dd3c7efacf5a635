// Package sound provides the preload strategy for sound items. Files are
// decoded by extension into *audio.Clip values.
package sound

import (
	"context"
	"errors"
	"fmt"

	"github.com/Lundis/go-gameassets/audio"
	"github.com/Lundis/go-gameassets/fetch"
	"github.com/Lundis/go-gameassets/loaders/aiff"
	"github.com/Lundis/go-gameassets/loaders/mp3"
	"github.com/Lundis/go-gameassets/loaders/oggvorbis"
	"github.com/Lundis/go-gameassets/loaders/wav"
	"github.com/Lundis/go-gameassets/preload"
)

var ErrUnsupportedFormat = errors.New("sound: unsupported format")

// Decoder turns a complete file into a clip.
type Decoder func(data []byte) (*audio.Clip, error)

// Decoders maps lower-case file extensions to decoders.
var Decoders = map[string]Decoder{
	"wav":  wav.Decode,
	"ogg":  oggvorbis.Decode,
	"mp3":  mp3.Decode,
	"aif":  aiff.Decode,
	"aiff": aiff.Decode,
}

// Decode decodes data with the decoder registered for ext.
func Decode(ext string, data []byte) (*audio.Clip, error) {
	dec, ok := Decoders[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return dec(data)
}

// Strategy loads sound items through f. The result value is the decoded
// *audio.Clip and the raw result the file's bytes.
func Strategy(f fetch.Fetcher) *preload.FuncStrategy {
	return preload.NewStrategy("sound", preload.ForTypes(preload.TypeSound), func(item preload.Item, preferNetwork bool) preload.Loader {
		return preload.LoaderFunc(func(ctx context.Context, r preload.Reporter) (preload.Result, error) {
			data, err := fetch.Load(ctx, f, item, preferNetwork, r)
			if err != nil {
				return preload.Result{}, err
			}
			clip, err := Decode(item.Ext, data)
			if err != nil {
				return preload.Result{}, fmt.Errorf("%s: %w", item.Src, err)
			}
			return preload.Result{Value: clip, Raw: data}, nil
		})
	})
}
