package text

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path"

	"github.com/Lundis/go-gameassets/fetch"
	"github.com/Lundis/go-gameassets/preload"
)

// SpriteSheet is the result of a spritesheet item. Frames and animations are
// kept undecoded since their layout depends on the producing tool.
type SpriteSheet struct {
	Images     []string                   `json:"images"`
	Frames     json.RawMessage            `json:"frames"`
	Animations map[string]json.RawMessage `json:"animations,omitempty"`
	Framerate  float64                    `json:"framerate,omitempty"`
}

// formatSpriteSheet parses the definition and resolves image paths relative
// to the sheet itself.
func formatSpriteSheet(item preload.Item, data []byte) (any, error) {
	var sheet SpriteSheet
	if err := json.Unmarshal(data, &sheet); err != nil {
		return nil, fmt.Errorf("%w: %w", preload.ErrJSONFormat, err)
	}
	if len(sheet.Images) == 0 {
		return nil, fmt.Errorf("%w: sprite sheet %q lists no images", preload.ErrJSONFormat, item.ID)
	}
	for i, img := range sheet.Images {
		sheet.Images[i] = resolveImage(item.Src, img)
	}
	return &sheet, nil
}

func resolveImage(sheetSrc, img string) string {
	if fetch.IsRemote(img) || path.IsAbs(img) {
		return img
	}
	if fetch.IsRemote(sheetSrc) {
		base, err := url.Parse(sheetSrc)
		if err != nil {
			return img
		}
		ref, err := url.Parse(img)
		if err != nil {
			return img
		}
		return base.ResolveReference(ref).String()
	}
	if dir := path.Dir(sheetSrc); dir != "." {
		return path.Join(dir, img)
	}
	return img
}
