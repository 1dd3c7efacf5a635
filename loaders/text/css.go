package text

import (
	"regexp"
	"strings"

	"github.com/Lundis/go-gameassets/preload"
)

func formatCSS(_ preload.Item, data []byte) (any, error) {
	return string(data), nil
}

// FontCSS is the result of a fontcss item.
type FontCSS struct {
	CSS      string
	Families []string
	// Sources lists the url() references of the @font-face rules.
	Sources []string
}

var (
	familyPattern = regexp.MustCompile(`font-family\s*:\s*['"]?([^;'"}]+)['"]?`)
	urlPattern    = regexp.MustCompile(`url\(\s*['"]?([^)'"]+)['"]?\s*\)`)
)

func formatFontCSS(_ preload.Item, data []byte) (any, error) {
	css := string(data)
	fc := FontCSS{CSS: css}
	seen := map[string]bool{}
	for _, m := range familyPattern.FindAllStringSubmatch(css, -1) {
		name := strings.TrimSpace(m[1])
		if !seen[name] {
			seen[name] = true
			fc.Families = append(fc.Families, name)
		}
	}
	for _, m := range urlPattern.FindAllStringSubmatch(css, -1) {
		fc.Sources = append(fc.Sources, strings.TrimSpace(m[1]))
	}
	return fc, nil
}
