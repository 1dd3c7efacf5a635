package playlist

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"golang.org/x/tools/godoc/vfs"

	"github.com/Lundis/go-gameassets/audio"
	"github.com/Lundis/go-gameassets/loaders/sound"
	"github.com/Lundis/go-gameassets/preload"
)

// LoadFolder loads playlists from a regular folder.
// See Load for more information.
func (p *Player) LoadFolder(folder string) error {
	return p.Load(vfs.OS(folder))
}

// Load loads playlists from a virtual filesystem.
// At the root of the filesystem there must be a "playlist.json" file, which references any files to be loaded.
// A playlist with a track that fails to load is skipped.
func (p *Player) Load(fileSystem vfs.Opener) error {
	start := time.Now()
	playlists, err := loadRegistry(fileSystem, "playlist.json")
	if err != nil {
		return err
	}
	loaded := make(map[Id]*PlayList, len(playlists))
playlistLoop:
	for _, pl := range playlists {
		if len(pl.Tracks) == 0 {
			continue
		}
		for _, track := range pl.Tracks {
			if err := p.register(fileSystem, track); err != nil {
				p.log.Warn().Err(err).Str("track", track.Path).Str("playlist", string(pl.Id)).Msg("failed to load music")
				continue playlistLoop
			}
		}
		loaded[pl.Id] = pl
	}

	p.mu.Lock()
	p.stopLocked()
	p.playLists = loaded
	p.mu.Unlock()

	p.log.Info().Int("count", len(loaded)).Dur("took", time.Since(start)).Msg("loaded playlists")
	return nil
}

func (p *Player) register(fileSystem vfs.Opener, track *Track) error {
	if p.ctx.Loaded(track.Path) {
		return nil
	}
	raw, err := readFile(fileSystem, track.Path)
	if err != nil {
		return err
	}
	clip, err := sound.Decode(preload.ExtensionOf(track.Path), raw)
	if err != nil {
		return err
	}
	_, err = p.ctx.RegisterSource(track.Path, audio.SourceOptions{
		Group:    audio.GroupMusic,
		Capacity: 1,
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

func loadRegistry(fs vfs.Opener, path string) (registry []*PlayList, err error) {
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
