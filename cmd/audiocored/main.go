// Command audiocored is the core playback daemon (SPEC_FULL.md's
// cmd/audiocored): it opens the bbolt database, wires every component
// (repositories, queue, playlists, DSP, playback engine, scanner,
// dispatcher, event bus) and serves the WebSocket/HTTP surface until
// told to stop.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kallax-audio/audiocore/internal/config"
	"github.com/kallax-audio/audiocore/internal/dispatcher"
	"github.com/kallax-audio/audiocore/internal/dsp"
	"github.com/kallax-audio/audiocore/internal/events"
	"github.com/kallax-audio/audiocore/internal/kvstore"
	"github.com/kallax-audio/audiocore/internal/logging"
	"github.com/kallax-audio/audiocore/internal/model"
	"github.com/kallax-audio/audiocore/internal/playback"
	"github.com/kallax-audio/audiocore/internal/playlist"
	"github.com/kallax-audio/audiocore/internal/queue"
	"github.com/kallax-audio/audiocore/internal/repository"
	"github.com/kallax-audio/audiocore/internal/scanner"
	transporthttp "github.com/kallax-audio/audiocore/internal/transport/http"
	"github.com/kallax-audio/audiocore/internal/transport/ws"
	"github.com/kallax-audio/audiocore/pkg/musicbrainz"
	"github.com/kallax-audio/audiocore/pkg/objstore"
)

func main() {
	logging.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	dbPath := config.Env("DB_PATH", "./data/audiocore.db")
	port := config.Env("PORT", "8080")

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	db, err := kvstore.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	slog.Info("database opened", "path", dbPath)

	open := func(name string) *kvstore.Tree {
		t, terr := db.Tree(name)
		if terr != nil {
			err = fmt.Errorf("open tree %s: %w", name, terr)
		}
		return t
	}

	songTree := open("songs")
	albumTree := open("albums")
	ignoredTree := open("ignored")
	statsTree := open("stats")
	playlistTree := open("playlists")
	queueTree := open("queue")
	statusTree := open("status")
	historyTree := open("history")
	configTree := open("config")
	if err != nil {
		return err
	}

	songs := repository.NewSongRepository(songTree)
	albums := repository.NewAlbumRepository(albumTree)
	stats := repository.NewStatsRepository(statsTree)

	cfg := config.Open(configTree)
	settings, err := cfg.LoadSettings()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if port == "" {
		port = settings.HTTPPort
	}

	playlists := playlist.New(playlistTree, songs, albums)
	q := queue.New(queueTree, statusTree, historyTree, songs, playlists)

	artwork, err := objstore.NewLocalFS(settings.ArtworkDirectory)
	if err != nil {
		return fmt.Errorf("open artwork store: %w", err)
	}

	bus := events.NewBus()
	dspProc := dsp.NewProcessor(model.DspSettings{})
	engine := playback.NewEngine(dspProc, bus, stats)

	mb := musicbrainz.New()
	// settingsFn re-reads the bbolt document on every call rather than
	// caching it in a shared variable: it's invoked concurrently from
	// the dispatcher's driver goroutine, the scanner's worker pool, and
	// the startup scan goroutine below, and cfg.LoadSettings() is safe
	// for concurrent use (each call is its own bbolt transaction).
	settingsFn := func() config.Settings {
		s, loadErr := cfg.LoadSettings()
		if loadErr != nil {
			slog.Warn("audiocored: reloading settings failed, using defaults", "err", loadErr)
			return settings
		}
		return s
	}

	sc := scanner.New(songs, albums, ignoredTree, artwork, bus, mb, settingsFn)

	disp := dispatcher.New(q, playlists, songs, albums, sc, engine, stats, cfg, bus, settingsFn)
	go disp.Run(ctx)

	startErr := &transporthttp.StartupError{}
	wsHandler := ws.Handler(disp, bus)
	httpSvc := transporthttp.New(cfg, artwork, startErr, wsHandler)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      httpSvc.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // the /api/ws route needs to stay open indefinitely
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
		disp.Shutdown()
		bus.Publish(events.NewShutdown())
	}()

	go func() {
		if scanErr := sc.Run(ctx, false); scanErr != nil {
			slog.Warn("audiocored: startup scan failed", "err", scanErr)
		}
	}()

	slog.Info("listening", "port", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}
