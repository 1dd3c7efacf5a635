package preload

import "strings"

// Type names the kind of payload an Item holds. It selects the strategy
// used to load it.
type Type string

const (
	TypeBinary      Type = "binary"
	TypeCSS         Type = "css"
	TypeFont        Type = "font"
	TypeFontCSS     Type = "fontcss"
	TypeImage       Type = "image"
	TypeJavaScript  Type = "javascript"
	TypeJSON        Type = "json"
	TypeJSONP       Type = "jsonp"
	TypeManifest    Type = "manifest"
	TypeSound       Type = "sound"
	TypeVideo       Type = "video"
	TypeSpriteSheet Type = "spritesheet"
	TypeSVG         Type = "svg"
	TypeText        Type = "text"
	TypeXML         Type = "xml"
)

var extensionTypes = map[string]Type{
	"png":   TypeImage,
	"jpg":   TypeImage,
	"jpeg":  TypeImage,
	"gif":   TypeImage,
	"bmp":   TypeImage,
	"webp":  TypeImage,
	"ogg":   TypeSound,
	"mp3":   TypeSound,
	"webm":  TypeSound,
	"wav":   TypeSound,
	"aif":   TypeSound,
	"aiff":  TypeSound,
	"mp4":   TypeVideo,
	"ts":    TypeVideo,
	"mov":   TypeVideo,
	"json":  TypeJSON,
	"xml":   TypeXML,
	"css":   TypeCSS,
	"js":    TypeJavaScript,
	"svg":   TypeSVG,
	"ttf":   TypeFont,
	"otf":   TypeFont,
	"woff":  TypeFont,
	"woff2": TypeFont,
}

// TypeForExtension maps a file extension (without the dot) to a Type.
// Unknown extensions map to TypeText.
func TypeForExtension(ext string) Type {
	if t, ok := extensionTypes[strings.ToLower(ext)]; ok {
		return t
	}
	return TypeText
}
