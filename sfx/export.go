package sfx

import (
	"strings"
)

// ExportConstants is used to export all currently loaded SFX,
// in a format that can be used to generate go constants.
func (r *Registry) ExportConstants() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	export := make(map[string]string)
	for id := range r.effects {
		export[constantName(string(id))] = string(id)
	}
	return export
}

func constantName(id string) string {
	var b strings.Builder
	capsNext := true
	for i := 0; i < len(id); i++ {
		c := id[i]
		if c == '-' || c == '_' || c == '.' || c == ' ' {
			capsNext = true
			continue
		}
		if capsNext {
			c = strings.ToUpper(string(c))[0]
			capsNext = false
		}
		b.WriteByte(c)
	}
	return b.String()
}
