// Package gameassets wires the asset queue, the built-in loading strategies
// and the audio stack together.
//
//	a, err := gameassets.New(gameassets.Config{Assets: vfs.OS("assets")})
//	...
//	a.Queue.EnqueueOne("sounds/jump.ogg")
//	a.Queue.Wait()
//	a.Audio.Play("sounds/jump.ogg")
package gameassets

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/tools/godoc/vfs"

	"github.com/Lundis/go-gameassets/audio"
	"github.com/Lundis/go-gameassets/audio/device"
	"github.com/Lundis/go-gameassets/audio/mixer"
	"github.com/Lundis/go-gameassets/fetch"
	"github.com/Lundis/go-gameassets/loaders/binary"
	"github.com/Lundis/go-gameassets/loaders/manifest"
	"github.com/Lundis/go-gameassets/loaders/sound"
	"github.com/Lundis/go-gameassets/loaders/text"
	"github.com/Lundis/go-gameassets/preload"
)

// Config configures New. Only one of Assets and HTTP is required.
type Config struct {
	// Assets serves relative sources.
	Assets vfs.Opener
	// HTTP enables fetching remote sources.
	HTTP *fetch.HTTPOptions
	// Queue is used for the main queue and for the queues of manifests.
	// Registry and Plugins are filled in by New.
	Queue preload.Options
	// Audio configures the audio context. Backend and Queue are filled in
	// by New.
	Audio audio.Options
	// Output opens the platform audio device on the mixer.
	Output bool
	Device device.Options
	Logger *zerolog.Logger
}

// Assets is the bundle returned by New.
type Assets struct {
	Queue *preload.Queue
	Audio *audio.Context
	Mixer *mixer.Mixer
	// Device is nil unless Config.Output was set.
	Device *device.Device

	http *fetch.HTTP
}

// DefaultFetcher returns a fetcher reading relative sources from assets and
// remote ones over HTTP. Either may be nil.
func DefaultFetcher(assets vfs.Opener, network fetch.Fetcher) fetch.Fetcher {
	r := fetch.Router{Network: network}
	if assets != nil {
		r.Local = fetch.NewFS(assets)
	}
	return r
}

// DefaultStrategies returns every built-in strategy reading through f.
// Manifests load their items with a queue built from child.
func DefaultStrategies(f fetch.Fetcher, child func() preload.Options) []preload.Strategy {
	strategies := text.Strategies(f)
	strategies = append(strategies, binary.Strategies(f)...)
	return append(strategies, sound.Strategy(f), manifest.Strategy(f, child))
}

// New builds a queue with the default strategies and an audio context whose
// sources are loaded by that queue and played through a software mixer.
func New(cfg Config) (*Assets, error) {
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	a := &Assets{}
	var network fetch.Fetcher
	if cfg.HTTP != nil {
		h, err := fetch.NewHTTP(*cfg.HTTP)
		if err != nil {
			return nil, fmt.Errorf("gameassets: %w", err)
		}
		a.http = h
		network = h
	}
	f := DefaultFetcher(cfg.Assets, network)

	format := cfg.Audio.Format
	if format.SampleRate == 0 {
		format = audio.Format{SampleRate: audio.DefaultSampleRate, Channels: audio.ChannelCount}
	}
	a.Mixer = mixer.New(format)

	queueOpts := cfg.Queue
	if queueOpts.Logger == nil {
		queueOpts.Logger = &logger
	}
	var registry *preload.Registry
	child := func() preload.Options {
		opts := queueOpts
		opts.Registry = registry
		opts.Plugins = []preload.Plugin{a.Audio}
		opts.OnScript = nil
		// a child failure is reported by the manifest item; pausing the
		// child would keep the manifest from ever finishing
		opts.StopOnError = false
		return opts
	}
	registry = preload.NewRegistry(DefaultStrategies(f, child)...)
	queueOpts.Registry = registry
	a.Queue = preload.New(queueOpts)

	audioOpts := cfg.Audio
	audioOpts.Format = format
	audioOpts.Backend = a.Mixer
	audioOpts.Queue = a.Queue
	if audioOpts.Logger == nil {
		audioOpts.Logger = &logger
	}
	a.Audio = audio.NewContext(audioOpts)

	if cfg.Output {
		devOpts := cfg.Device
		if devOpts.Logger == nil {
			devOpts.Logger = &logger
		}
		d, err := device.Open(a.Mixer, devOpts)
		if err != nil {
			a.Queue.Close()
			return nil, fmt.Errorf("gameassets: %w", err)
		}
		a.Device = d
	}
	return a, nil
}

// Close stops loading and playback and releases the output.
func (a *Assets) Close() error {
	a.Queue.Close()
	a.Audio.StopAll()
	var errs []error
	if a.Device != nil {
		errs = append(errs, a.Device.Close())
	}
	if a.http != nil {
		errs = append(errs, a.http.Close())
	}
	return errors.Join(errs...)
}
