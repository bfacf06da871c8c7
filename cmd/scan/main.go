// Command scan is a standalone CLI around internal/scanner (component
// B): reconcile the configured music directory against the bbolt
// metadata store without starting the full audiocored daemon, for use
// in provisioning scripts and cron-driven rescans. Adapted from
// cmd/ingest/main.go's cobra/flag skeleton and fsnotify watch loop;
// the worker-pool walk itself lives in internal/scanner, which this
// command only drives.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/kallax-audio/audiocore/internal/config"
	"github.com/kallax-audio/audiocore/internal/events"
	"github.com/kallax-audio/audiocore/internal/kvstore"
	"github.com/kallax-audio/audiocore/internal/logging"
	"github.com/kallax-audio/audiocore/internal/repository"
	"github.com/kallax-audio/audiocore/internal/scanner"
	"github.com/kallax-audio/audiocore/pkg/musicbrainz"
	"github.com/kallax-audio/audiocore/pkg/objstore"
)

var (
	flagDB    string
	flagFull  bool
	flagWatch bool
)

var rootCmd = &cobra.Command{
	Use:   "audiocore-scan",
	Short: "Reconcile the music directory against the audiocore database",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&flagDB, "db", config.Env("DB_PATH", "./data/audiocore.db"), "Path to the bbolt database")
	rootCmd.Flags().BoolVar(&flagFull, "full", false, "Clear the song index and rescan from scratch")
	rootCmd.Flags().BoolVar(&flagWatch, "watch", false, "Keep running and rescan when the music directory changes")
}

func main() {
	logging.Init()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := kvstore.Open(flagDB)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	songTree, err := db.Tree("songs")
	if err != nil {
		return fmt.Errorf("open songs tree: %w", err)
	}
	albumTree, err := db.Tree("albums")
	if err != nil {
		return fmt.Errorf("open albums tree: %w", err)
	}
	ignoredTree, err := db.Tree("ignored")
	if err != nil {
		return fmt.Errorf("open ignored tree: %w", err)
	}
	configTree, err := db.Tree("config")
	if err != nil {
		return fmt.Errorf("open config tree: %w", err)
	}

	songs := repository.NewSongRepository(songTree)
	albums := repository.NewAlbumRepository(albumTree)
	cfg := config.Open(configTree)

	settings, err := cfg.LoadSettings()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	settingsFn := func() config.Settings { return settings }

	artwork, err := objstore.NewLocalFS(settings.ArtworkDirectory)
	if err != nil {
		return fmt.Errorf("open artwork store: %w", err)
	}

	bus := events.NewBus()
	sub := bus.Subscribe()
	go logProgress(sub)
	defer sub.Close()

	sc := scanner.New(songs, albums, ignoredTree, artwork, bus, musicbrainz.New(), settingsFn)

	if err := sc.Run(ctx, flagFull); err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	if !flagWatch {
		return nil
	}
	return watchAndRescan(ctx, sc, settings.MusicDirectory)
}

// logProgress prints scan events to stdout until sub is closed, the
// CLI's stand-in for the WebSocket event feed audiocored's clients get.
func logProgress(sub *events.Subscription) {
	for ev := range sub.C {
		switch ev.Kind {
		case events.MetadataSongScanned:
			slog.Info("scanning", "file", ev.ScanProgress.CurrentFile)
		case events.MetadataSongScanFinished:
			slog.Info("scan complete", "added", ev.ScanProgress.Count, "seconds", ev.ScanProgress.Seconds)
		}
	}
}

// watchAndRescan triggers an incremental rescan whenever a relevant
// filesystem event fires under root, debounced so a burst of writes
// (e.g. an rsync of a whole album) triggers one rescan, not one per
// file — unlike cmd/ingest's per-event goroutine, which fits a
// Postgres-backed per-track upsert better than a whole-tree bbolt scan.
func watchAndRescan(ctx context.Context, sc *scanner.Scanner, root string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr == nil && d.IsDir() {
			_ = watcher.Add(path)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("walk for watch registration: %w", err)
	}

	slog.Info("watching", "dir", root)

	const debounce = 2 * time.Second
	var timer *time.Timer
	rescan := func() {
		if sc.Running() {
			return
		}
		if err := sc.Run(ctx, false); err != nil {
			slog.Warn("scan: watch-triggered rescan failed", "err", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if fi, statErr := os.Stat(ev.Name); statErr == nil && fi.IsDir() {
				_ = watcher.Add(ev.Name)
			}
			if timer == nil {
				timer = time.AfterFunc(debounce, rescan)
			} else {
				timer.Reset(debounce)
			}

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", "err", watchErr)
		}
	}
}
