// Package text provides preload strategies for text based item types:
// plain text, JSON, JSONP, XML, SVG, CSS, font CSS, javascript and sprite
// sheet definitions.
package text

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Lundis/go-gameassets/fetch"
	"github.com/Lundis/go-gameassets/preload"
)

// Strategies returns a strategy per text type, all fetching through f.
func Strategies(f fetch.Fetcher) []preload.Strategy {
	return []preload.Strategy{
		New("text", f, formatText, preload.TypeText),
		New("json", f, formatJSON, preload.TypeJSON),
		New("jsonp", f, formatJSONP, preload.TypeJSONP),
		New("xml", f, formatXML, preload.TypeXML, preload.TypeSVG),
		New("css", f, formatCSS, preload.TypeCSS),
		New("fontcss", f, formatFontCSS, preload.TypeFontCSS),
		New("javascript", f, formatScript, preload.TypeJavaScript),
		New("spritesheet", f, formatSpriteSheet, preload.TypeSpriteSheet),
	}
}

// Formatter turns a fetched payload into the item's result value.
type Formatter func(item preload.Item, data []byte) (any, error)

// New returns a strategy for the given types. The raw result is always the
// payload as a string.
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
			return preload.Result{Value: v, Raw: string(data)}, nil
		})
	})
}

func formatText(_ preload.Item, data []byte) (any, error) {
	return string(data), nil
}

func parseJSON(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", preload.ErrJSONFormat, err)
	}
	return v, nil
}

func formatJSON(_ preload.Item, data []byte) (any, error) {
	return parseJSON(data)
}

// formatJSONP unwraps `callback(...)` and parses the argument.
func formatJSONP(item preload.Item, data []byte) (any, error) {
	if item.Callback == "" {
		return nil, fmt.Errorf("%w: jsonp item %q has no callback", preload.ErrJSONFormat, item.ID)
	}
	body, err := UnwrapJSONP(item.Callback, data)
	if err != nil {
		return nil, err
	}
	return parseJSON(body)
}

// UnwrapJSONP returns the argument of a `callback(...)` payload. A trailing
// semicolon is allowed.
func UnwrapJSONP(callback string, data []byte) ([]byte, error) {
	s := strings.TrimSpace(string(data))
	s = strings.TrimSpace(strings.TrimSuffix(s, ";"))
	prefix := callback + "("
	if !strings.HasPrefix(s, prefix) || !strings.HasSuffix(s, ")") {
		return nil, fmt.Errorf("%w: payload is not wrapped in %s()", preload.ErrJSONFormat, callback)
	}
	return []byte(s[len(prefix) : len(s)-1]), nil
}

// Script is the result of a javascript item.
type Script struct {
	Src  string
	Code string
}

func formatScript(item preload.Item, data []byte) (any, error) {
	return Script{Src: item.Src, Code: string(data)}, nil
}
