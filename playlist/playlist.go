package playlist

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/Lundis/go-gameassets/audio"
)

type Id string

type PlayList struct {
	Id           Id
	Tracks       []*Track
	currentTrack int
}

type Track struct {
	Path   string
	Name   string
	Author string
	Volume float64
}

// Player plays one playlist at a time through the music group of an audio
// context. Playlists with several tracks advance when a track completes and
// wrap around; a single track loops forever.
type Player struct {
	mu        sync.Mutex
	ctx       *audio.Context
	log       zerolog.Logger
	playLists map[Id]*PlayList
	current   *PlayList
	instance  *audio.Instance
}

func New(ctx *audio.Context, logger *zerolog.Logger) *Player {
	p := &Player{
		ctx:       ctx,
		log:       zerolog.Nop(),
		playLists: make(map[Id]*PlayList),
	}
	if logger != nil {
		p.log = logger.With().Str("component", "playlist").Logger()
	}
	return p
}

func (p *Player) Pause() {
	p.ctx.SetGroupPaused(audio.GroupMusic, true)
}

// Play starts the playlist, or resumes it if it is the current one.
func (p *Player) Play(playListId Id) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ctx.SetGroupPaused(audio.GroupMusic, false)
	if p.current != nil && p.current.Id == playListId {
		return true
	}
	p.stopLocked()
	pl, ok := p.playLists[playListId]
	if !ok {
		p.log.Warn().Str("playlist", string(playListId)).Msg("playlist not loaded")
		return false
	}
	p.current = pl
	return p.playLocked(pl)
}

// Stop ends the current playlist.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// Current returns the playing playlist and track.
func (p *Player) Current() (Id, *Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return "", nil, false
	}
	return p.current.Id, p.current.Tracks[p.current.currentTrack], true
}

func (p *Player) playLocked(pl *PlayList) bool {
	track := pl.Tracks[pl.currentTrack]
	opts := []audio.PlayOption{audio.WithVolume(track.Volume)}
	if len(pl.Tracks) == 1 {
		opts = append(opts, audio.WithLoop(-1))
	}
	in := p.ctx.CreateInstance(track.Path, opts...)
	if len(pl.Tracks) > 1 {
		in.On(audio.EventComplete, func(audio.InstanceEvent) { p.playNext(pl, in) })
	}
	in.Play()
	if in.PlayState() != audio.PlaySucceeded {
		p.log.Warn().Err(in.Err()).Str("track", track.Path).Msg("track not played")
		in.Destroy()
		p.current = nil
		return false
	}
	p.instance = in
	return true
}

func (p *Player) stopLocked() {
	if p.instance != nil {
		p.instance.Destroy()
		p.instance = nil
	}
	p.current = nil
}

// playNext advances pl if finished is still its playing instance.
func (p *Player) playNext(pl *PlayList, finished *audio.Instance) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != pl || p.instance != finished {
		return
	}
	p.instance = nil
	pl.currentTrack = (pl.currentTrack + 1) % len(pl.Tracks)
	p.playLocked(pl)
}
