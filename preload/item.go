package preload

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultLoadTimeout applies to items that do not set their own timeout.
const DefaultLoadTimeout = 8 * time.Second

// Item describes one thing to load. Items handed to strategies and listeners
// are copies; changing them has no effect on the queue.
type Item struct {
	Src           string `json:"src"`
	Type          Type   `json:"type,omitempty"`
	ID            string `json:"id,omitempty"`
	MaintainOrder bool   `json:"maintainOrder,omitempty"`

	// Callback is the global function name wrapping a JSONP payload.
	Callback        string            `json:"callback,omitempty"`
	Method          string            `json:"method,omitempty"`
	Values          map[string]string `json:"values,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
	CrossOrigin     string            `json:"crossOrigin,omitempty"`
	WithCredentials bool              `json:"withCredentials,omitempty"`
	MimeType        string            `json:"mimeType,omitempty"`
	LoadTimeout     time.Duration     `json:"-"`

	// Path is the prefix that was prepended to Src during normalization.
	Path string `json:"path,omitempty"`
	// Ext is the extension derived from Src, lower case and without the dot.
	Ext  string `json:"-"`
	Data any    `json:"data,omitempty"`
}

// UnmarshalJSON accepts loadTimeout in milliseconds.
func (it *Item) UnmarshalJSON(data []byte) error {
	type plain Item
	aux := struct {
		*plain
		LoadTimeout int64 `json:"loadTimeout,omitempty"`
	}{plain: (*plain)(it)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.LoadTimeout > 0 {
		it.LoadTimeout = time.Duration(aux.LoadTimeout) * time.Millisecond
	}
	return nil
}

var (
	absolutePattern  = regexp.MustCompile(`^(?:\w+:)?//`)
	relativePattern  = regexp.MustCompile(`^[./]*?/`)
	extensionPattern = regexp.MustCompile(`\.(\w{1,5})$`)
)

func isAbsolute(src string) bool { return absolutePattern.MatchString(src) }
func isRelative(src string) bool { return relativePattern.MatchString(src) }

// ExtensionOf returns the lower-cased extension of the last path segment of src,
// ignoring any query string or fragment.
func ExtensionOf(src string) string {
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	if i := strings.LastIndex(src, "/"); i >= 0 {
		src = src[i+1:]
	}
	m := extensionPattern.FindStringSubmatch(src)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

// toItem converts the accepted input shapes into an Item: a path string,
// an Item or *Item, a decoded JSON object, or raw JSON.
func toItem(value any) (Item, error) {
	var it Item
	switch v := value.(type) {
	case string:
		it.Src = v
	case Item:
		it = v
	case *Item:
		if v == nil {
			return Item{}, fmt.Errorf("%w: nil item", ErrUnrecognizedItem)
		}
		it = *v
	case map[string]any:
		data, err := json.Marshal(v)
		if err != nil {
			return Item{}, fmt.Errorf("%w: %w", ErrUnrecognizedItem, err)
		}
		if err := json.Unmarshal(data, &it); err != nil {
			return Item{}, fmt.Errorf("%w: %w", ErrUnrecognizedItem, err)
		}
	case json.RawMessage:
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			it.Src = s
		} else if err := json.Unmarshal(v, &it); err != nil {
			return Item{}, fmt.Errorf("%w: %w", ErrUnrecognizedItem, err)
		}
	default:
		return Item{}, fmt.Errorf("%w: unsupported value of type %T", ErrUnrecognizedItem, value)
	}
	if strings.TrimSpace(it.Src) == "" {
		return Item{}, fmt.Errorf("%w: missing src", ErrUnrecognizedItem)
	}
	return it, nil
}

// normalize builds a fully populated Item.
//
// path is the manifest-level prefix and basePath the queue or call level one.
// The generated id includes path but not basePath, while the src used for
// fetching includes both.
func normalize(value any, path, basePath string, timeout time.Duration) (Item, error) {
	it, err := toItem(value)
	if err != nil {
		return Item{}, err
	}
	it.Ext = ExtensionOf(it.Src)
	if it.Type == "" {
		it.Type = TypeForExtension(it.Ext)
	}
	if it.Method == "" {
		it.Method = "GET"
	}
	it.Method = strings.ToUpper(it.Method)
	if it.LoadTimeout <= 0 {
		it.LoadTimeout = timeout
	}

	autoID := it.Src
	prefix := ""
	if !isAbsolute(it.Src) && !isRelative(it.Src) {
		if path != "" {
			prefix = path
			autoID = path + autoID
			if basePath != "" && !isAbsolute(path) && !isRelative(path) {
				prefix = basePath + prefix
			}
		} else if basePath != "" {
			prefix = basePath
		}
		it.Src = prefix + it.Src
	}
	it.Path = prefix
	if it.ID == "" {
		it.ID = autoID
	}
	return it, nil
}
