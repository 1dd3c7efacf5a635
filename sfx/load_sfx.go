package sfx

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/tools/godoc/vfs"

	"github.com/Lundis/go-gameassets/audio"
	"github.com/Lundis/go-gameassets/loaders/sound"
	"github.com/Lundis/go-gameassets/preload"
)

// Registry holds loaded sound effects and plays them through an audio
// context. All methods are concurrent-safe.
type Registry struct {
	mu      sync.Mutex
	ctx     *audio.Context
	log     zerolog.Logger
	effects map[Id]*Sfx
	now     func() time.Time
	rand    *rand.Rand
}

func New(ctx *audio.Context, logger *zerolog.Logger) *Registry {
	r := &Registry{
		ctx:     ctx,
		log:     zerolog.Nop(),
		effects: make(map[Id]*Sfx),
		now:     time.Now,
		rand:    newRand(),
	}
	if logger != nil {
		r.log = logger.With().Str("component", "sfx").Logger()
	}
	return r
}

// LoadFolder loads sound effects from a regular folder.
// See Load for more information.
func (r *Registry) LoadFolder(folder string) error {
	return r.Load(vfs.OS(folder))
}

// Load loads sound effects from a virtual filesystem.
// At the root of the filesystem there must be a "sfx.json" file, which references any files to be loaded.
// Every variation file becomes a source of the audio context in the sfx group.
// Files that fail to load are logged and skipped.
func (r *Registry) Load(fileSystem vfs.Opener) error {
	start := time.Now()
	soundEffects, err := loadRegistry(fileSystem, "sfx.json")
	if err != nil {
		return err
	}
	registered := make(map[string]bool)
	effects := make(map[Id]*Sfx, len(soundEffects))
	for _, e := range soundEffects {
		variations := e.Variations[:0]
		for _, v := range e.Variations {
			if !registered[v.Path] {
				if err := r.register(fileSystem, e, v.Path); err != nil {
					r.log.Warn().Err(err).Str("path", v.Path).Msg("failed to load sound effect")
					continue
				}
				registered[v.Path] = true
			}
			variations = append(variations, v)
		}
		e.Variations = variations
		effects[e.Id] = e
	}

	r.mu.Lock()
	r.effects = effects
	r.mu.Unlock()

	r.log.Info().Int("count", len(effects)).Dur("took", time.Since(start)).Msg("loaded sound effects")
	return nil
}

func (r *Registry) register(fileSystem vfs.Opener, e *Sfx, path string) error {
	raw, err := readFile(fileSystem, path)
	if err != nil {
		return err
	}
	clip, err := sound.Decode(preload.ExtensionOf(path), raw)
	if err != nil {
		return err
	}
	_, err = r.ctx.RegisterSource(path, audio.SourceOptions{
		Group:    audio.GroupSfx,
		Capacity: e.Channels,
		Clip:     clip,
	})
	return err
}

func readFile(fs vfs.Opener, path string) (data []byte, err error) {
	file, err := fs.Open(path)
	if err != nil {
		return
	}
	data, err = io.ReadAll(file)
	_ = file.Close()
	return
}

func loadRegistry(fs vfs.Opener, path string) (registry []*Sfx, err error) {
	data, err := readFile(fs, path)
	if err != nil {
		err = fmt.Errorf("failed to open %s: %w", path, err)
		return
	}
	err = json.Unmarshal(data, &registry)
	if err != nil {
		err = fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return
}
