// Package binary provides preload strategies for binary item types: raw
// binary data, fonts, images and video.
package binary

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"path"
	"strings"

	"github.com/Lundis/go-gameassets/fetch"
	"github.com/Lundis/go-gameassets/preload"
)

// ErrUnsupportedImage is returned for image payloads no decoder accepts.
var ErrUnsupportedImage = errors.New("binary: unsupported image format")

// Strategies returns a strategy per binary type, all fetching through f.
func Strategies(f fetch.Fetcher) []preload.Strategy {
	return []preload.Strategy{
		New("binary", f, formatBinary, preload.TypeBinary),
		New("font", f, formatFont, preload.TypeFont),
		New("image", f, formatImage, preload.TypeImage),
		New("video", f, formatVideo, preload.TypeVideo),
	}
}

// Formatter turns a fetched payload into the item's result value.
type Formatter func(item preload.Item, data []byte) (any, error)

// New returns a strategy for the given types. The raw result is the payload.
func New(name string, f fetch.Fetcher, format Formatter, types ...preload.Type) *preload.FuncStrategy {
	return preload.NewStrategy(name, preload.ForTypes(types...), func(item preload.Item, preferNetwork bool) preload.Loader {
		return preload.LoaderFunc(func(ctx context.Context, r preload.Reporter) (preload.Result, error) {
			data, err := fetch.Load(ctx, f, item, preferNetwork, r)
			if err != nil {
				return preload.Result{}, err
			}
			v, err := format(item, data)
			if err != nil {
				return preload.Result{}, err
			}
			return preload.Result{Value: v, Raw: data}, nil
		})
	})
}

func formatBinary(_ preload.Item, data []byte) (any, error) {
	return data, nil
}

// Font is the result of a font item.
type Font struct {
	// Family is derived from the file name.
	Family string
	Data   []byte
}

func formatFont(item preload.Item, data []byte) (any, error) {
	name := path.Base(strings.SplitN(item.Src, "?", 2)[0])
	return Font{Family: strings.TrimSuffix(name, path.Ext(name)), Data: data}, nil
}

// Image is the result of an image item.
type Image struct {
	Image  image.Image
	Format string
}

func formatImage(item preload.Item, data []byte) (any, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnsupportedImage, item.Src, err)
	}
	return Image{Image: img, Format: format}, nil
}

// Video is the result of a video item. Decoding is left to the player.
type Video struct {
	MimeType string
	Data     []byte
}

func formatVideo(item preload.Item, data []byte) (any, error) {
	mime := item.MimeType
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return Video{MimeType: mime, Data: data}, nil
}
