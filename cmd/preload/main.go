// Command preload loads a manifest or a single asset with the gameassets
// queue, showing progress in the terminal, and optionally plays a sound once
// everything is loaded.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"golang.org/x/tools/godoc/vfs"

	gameassets "github.com/Lundis/go-gameassets"
	"github.com/Lundis/go-gameassets/audio"
	"github.com/Lundis/go-gameassets/audio/device"
	"github.com/Lundis/go-gameassets/fetch"
	"github.com/Lundis/go-gameassets/internal/config"
	"github.com/Lundis/go-gameassets/internal/logging"
	"github.com/Lundis/go-gameassets/internal/progressui"
	"github.com/Lundis/go-gameassets/internal/wsfeed"
	"github.com/Lundis/go-gameassets/preload"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "preload: %v\n", err)
		return 2
	}
	logger := logging.New("preload", cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := preloadAssets(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("preload failed")
		return 1
	}
	return 0
}

var errItemsFailed = errors.New("some items failed to load")

func preloadAssets(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	opts := gameassets.Config{
		Assets: vfs.OS(cfg.Root),
		Queue: preload.Options{
			MaxConnections: cfg.MaxConnections,
			PreferNetwork:  cfg.PreferNetwork,
			BasePath:       cfg.BasePath,
			StopOnError:    cfg.StopOnError,
			LoadTimeout:    cfg.LoadTimeout,
		},
		Output: cfg.Output && cfg.Play != "",
		Device: device.Options{AllowNull: true},
		Logger: &logger,
	}
	if cfg.BaseURL != "" || cfg.HTTP3 {
		opts.HTTP = &fetch.HTTPOptions{BaseURL: cfg.BaseURL, HTTP3: cfg.HTTP3}
	}
	assets, err := gameassets.New(opts)
	if err != nil {
		return err
	}
	defer assets.Close()

	if cfg.FeedAddr != "" {
		stop := serveFeed(cfg.FeedAddr, assets.Queue, logger)
		defer stop()
	}

	var failed atomic.Int32
	assets.Queue.On(preload.EventFileError, func(ev preload.Event) {
		failed.Add(1)
		if cfg.NoUI {
			logger.Warn().Err(ev.Err).Str("id", ev.Item.ID).Msg("item failed")
		}
	})

	if cfg.NoUI {
		err = loadWithLog(ctx, cfg, assets.Queue, logger)
	} else {
		err = loadWithUI(ctx, cfg, assets.Queue)
	}
	if err != nil {
		return err
	}
	if n := failed.Load(); n > 0 {
		logger.Warn().Int32("count", n).Msg("some items failed")
	}

	if cfg.Play != "" {
		if err := play(ctx, assets.Audio, cfg.Play); err != nil {
			return err
		}
	}
	if failed.Load() > 0 {
		return errItemsFailed
	}
	return nil
}

func enqueue(q *preload.Queue, manifest string) error {
	if preload.ExtensionOf(manifest) == "json" {
		return q.EnqueueMany(manifest)
	}
	return q.EnqueueOne(manifest)
}

func loadWithLog(ctx context.Context, cfg config.Config, q *preload.Queue, logger zerolog.Logger) error {
	done := make(chan struct{})
	q.On(preload.EventComplete, func(preload.Event) { close(done) })
	q.On(preload.EventFileLoad, func(ev preload.Event) {
		logger.Info().Str("id", ev.Item.ID).Msg("loaded")
	})
	// the queue pauses on the first failure and never completes
	stopped := make(chan error, 1)
	if cfg.StopOnError {
		q.On(preload.EventError, func(ev preload.Event) {
			select {
			case stopped <- ev.Err:
			default:
			}
		})
	}
	start := time.Now()
	if err := enqueue(q, cfg.Manifest); err != nil {
		return err
	}
	select {
	case <-done:
		logger.Info().Dur("took", time.Since(start)).Msg("all items processed")
		return nil
	case err := <-stopped:
		logger.Error().Err(err).Msg("queue stopped")
		q.Close()
		return errItemsFailed
	case <-ctx.Done():
		q.Close()
		return ctx.Err()
	}
}

func loadWithUI(ctx context.Context, cfg config.Config, q *preload.Queue) error {
	p := tea.NewProgram(progressui.New("Loading "+cfg.Manifest), tea.WithContext(ctx))
	detach := progressui.Watch(p, q, cfg.StopOnError)
	defer detach()
	if err := enqueue(q, cfg.Manifest); err != nil {
		return err
	}
	final, err := p.Run()
	if err != nil {
		q.Close()
		return err
	}
	m, ok := final.(progressui.Model)
	if !ok {
		return nil
	}
	if m.Stopped() != nil {
		q.Close()
		return errItemsFailed
	}
	if !m.Done() {
		q.Close()
		return context.Canceled
	}
	return nil
}

func play(ctx context.Context, a *audio.Context, id string) error {
	in := a.CreateInstance(id)
	done := make(chan struct{})
	in.On(audio.EventComplete, func(audio.InstanceEvent) { close(done) })
	in.Play()
	if in.PlayState() != audio.PlaySucceeded {
		return fmt.Errorf("play %s: %w", id, in.Err())
	}
	select {
	case <-done:
	case <-ctx.Done():
		in.Stop()
	}
	return nil
}

func serveFeed(addr string, q *preload.Queue, logger zerolog.Logger) (stop func()) {
	feed := wsfeed.New(&logger)
	detach := feed.Attach(q)
	mux := http.NewServeMux()
	mux.Handle("/events", feed)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("event feed stopped")
		}
	}()
	logger.Info().Str("addr", addr).Msg("serving queue events on /events")
	return func() {
		detach()
		feed.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
