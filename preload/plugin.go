package preload

// Plugin pre-processes items of selected types or extensions before a
// strategy is resolved.
type Plugin interface {
	// Types and Extensions select the items Preload is called for.
	Types() []Type
	Extensions() []string
	// Preload may modify item in place. It returns keep=false to drop the
	// item entirely, and a non-nil loader to bypass strategy resolution.
	Preload(item *Item) (loader Loader, keep bool)
}

func pluginMatches(p Plugin, it Item) bool {
	for _, t := range p.Types() {
		if t == it.Type {
			return true
		}
	}
	for _, ext := range p.Extensions() {
		if ext == it.Ext {
			return true
		}
	}
	return false
}

// runPlugins applies every matching plugin in installation order. The
// first plugin returning a loader wins; later plugins still see the item.
func runPlugins(plugins []Plugin, it *Item) (Loader, bool) {
	var loader Loader
	for _, p := range plugins {
		if !pluginMatches(p, *it) {
			continue
		}
		l, keep := p.Preload(it)
		if !keep {
			return nil, false
		}
		if loader == nil && l != nil {
			loader = l
		}
	}
	return loader, true
}
