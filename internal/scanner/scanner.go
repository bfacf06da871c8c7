// Package scanner reconciles the on-disk music tree against the
// metadata store (component B of the core spec): a single mutual-
// exclusion-guarded walk that diffs the filesystem against the
// repository, probes added files for tags, persists artwork, and
// reports progress on the event bus.
package scanner

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kallax-audio/audiocore/internal/config"
	"github.com/kallax-audio/audiocore/internal/events"
	"github.com/kallax-audio/audiocore/internal/kvstore"
	"github.com/kallax-audio/audiocore/internal/model"
	"github.com/kallax-audio/audiocore/internal/repository"
	"github.com/kallax-audio/audiocore/pkg/musicbrainz"
	"github.com/kallax-audio/audiocore/pkg/objstore"
)

// flushEvery matches spec.md §4.B step 6's "flush every 100 songs".
const flushEvery = 100

// Scanner owns one metadata reconciliation pass. Only one Run may be
// in flight at a time; a second call while one is running returns
// ErrAlreadyRunning rather than blocking.
type Scanner struct {
	songs   *repository.SongRepository
	albums  *repository.AlbumRepository
	ignored *repository.IgnoredRepository
	artwork objstore.ArtworkStore
	bus     *events.Bus
	mb      *musicbrainz.Client

	settingsFn func() config.Settings

	running atomic.Bool
	mu      sync.Mutex
	albumMu sync.Mutex // serializes UpdateFromSong's read-modify-write across workers

	prober proberFunc // overridden in tests
}

// proberFunc decodes the header and tags of one audio file into a Song,
// along with any embedded cover art found (nil if none). Swappable so
// tests can exercise the diff/persist algorithm without real audio
// fixtures.
type proberFunc func(path string, modifiedAt int64) (model.Song, []byte, error)

// ErrAlreadyRunning is returned by Run when a scan is already in progress.
var ErrAlreadyRunning = fmt.Errorf("scanner: a scan is already running")

// New returns a Scanner. settingsFn is called at the start of every Run
// so a changed music_directory/extensions takes effect on the next
// scan without restarting the process.
func New(songs *repository.SongRepository, albums *repository.AlbumRepository, ignoredTree *kvstore.Tree, artwork objstore.ArtworkStore, bus *events.Bus, mb *musicbrainz.Client, settingsFn func() config.Settings) *Scanner {
	return &Scanner{
		songs:      songs,
		albums:     albums,
		ignored:    repository.NewIgnoredRepository(ignoredTree),
		artwork:    artwork,
		bus:        bus,
		mb:         mb,
		settingsFn: settingsFn,
		prober:     defaultProbe,
	}
}

// Running reports whether a scan is currently in flight.
func (s *Scanner) Running() bool { return s.running.Load() }

// ClearIgnored un-ignores a previously failed path so the next scan
// retries probing it, e.g. after the user repairs a corrupt tag.
func (s *Scanner) ClearIgnored(key string) error { return s.ignored.Forget(key) }

// Run executes one scan per spec.md §4.B's numbered algorithm. ctx
// cancellation stops the walk between files, not mid-file.
func (s *Scanner) Run(ctx context.Context, fullScan bool) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	settings := s.settingsFn()

	s.bus.Publish(events.NewScanStarted())

	if fullScan {
		if err := s.songs.DeleteAll(); err != nil {
			return fmt.Errorf("scanner: clear songs for full scan: %w", err)
		}
	}

	if err := os.MkdirAll(settings.ArtworkDirectory, 0o755); err != nil {
		return fmt.Errorf("scanner: ensure artwork directory: %w", err)
	}

	walked, err := s.walk(settings)
	if err != nil {
		return fmt.Errorf("scanner: walk music directory: %w", err)
	}

	added, unchanged, deleted := s.diff(walked)

	count := s.ingestAdded(ctx, settings, added)

	if !fullScan {
		for _, key := range deleted {
			if err := s.songs.Delete(key); err != nil {
				slog.Warn("scanner: delete stale song failed", "key", key, "err", err)
			}
		}
	}

	if err := s.songs.Flush(); err != nil {
		slog.Warn("scanner: final flush failed", "err", err)
	}

	elapsed := time.Since(start).Seconds()
	s.bus.Publish(events.NewScanFinished(count, elapsed))
	slog.Info("scan finished", "added", count, "deleted", len(deleted), "unchanged", len(unchanged), "seconds", elapsed)
	return nil
}

// ingestAdded fans added (relative keys not yet in the repository) out
// to a bounded worker pool, mirroring cmd/ingest/main.go's scan()
// shape: a buffered path channel, fixed worker goroutines, atomic
// progress counters. Returns the number successfully ingested.
func (s *Scanner) ingestAdded(ctx context.Context, settings config.Settings, added []string) int {
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	if len(added) < workers {
		workers = len(added)
	}
	if workers == 0 {
		return 0
	}

	pathCh := make(chan string, workers*2)
	var count int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rel := range pathCh {
				abs := filepath.Join(settings.MusicDirectory, filepath.FromSlash(rel))
				if err := s.ingestOne(ctx, rel, abs); err != nil {
					slog.Warn("scanner: probe failed, marking ignored", "path", rel, "err", err)
					if ignErr := s.ignored.MarkIgnored(rel, err.Error()); ignErr != nil {
						slog.Warn("scanner: failed to record ignored file", "path", rel, "err", ignErr)
					}
					continue
				}
				n := atomic.AddInt64(&count, 1)
				s.bus.Publish(events.NewScanned(rel))
				if n%flushEvery == 0 {
					if err := s.songs.Flush(); err != nil {
						slog.Warn("scanner: periodic flush failed", "err", err)
					}
				}
			}
		}()
	}

feed:
	for _, rel := range added {
		select {
		case <-ctx.Done():
			break feed
		case pathCh <- rel:
		}
	}
	close(pathCh)
	wg.Wait()

	return int(count)
}

// diff implements spec.md §4.B step 5: added/unchanged by presence in
// the repository, deleted by subtracting what's still on disk from
// what the repository already has.
func (s *Scanner) diff(walked []string) (added, unchanged, deleted []string) {
	onDisk := make(map[string]bool, len(walked))
	for _, p := range walked {
		onDisk[p] = true
	}

	known := make(map[string]bool)
	for _, key := range s.songs.AllKeys() {
		known[key] = true
		if !onDisk[key] {
			deleted = append(deleted, key)
		}
	}

	for _, p := range walked {
		if known[p] {
			unchanged = append(unchanged, p)
		} else {
			added = append(added, p)
		}
	}
	return added, unchanged, deleted
}

// walk returns every matching file's key (path relative to
// MusicDirectory, forward-slashed, not yet escaped), sorted by name,
// following symlinks per settings.FollowSymlinks, filtered to the
// configured extension whitelist, skipping permanently-ignored paths.
func (s *Scanner) walk(settings config.Settings) ([]string, error) {
	root := settings.MusicDirectory
	ext := make(map[string]bool, len(settings.Extensions))
	for _, e := range settings.Extensions {
		ext[strings.ToLower(e)] = true
	}

	var keys []string
	walkFn := func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			slog.Warn("scanner: walk error", "path", path, "err", walkErr)
			return nil
		}
		info, err := d.Info()
		if err == nil && info.Mode()&os.ModeSymlink != 0 {
			if !settings.FollowSymlinks {
				return nil
			}
			target, err := filepath.EvalSymlinks(path)
			if err != nil {
				return nil
			}
			fi, err := os.Stat(target)
			if err != nil {
				return nil
			}
			if fi.IsDir() {
				return filepath.WalkDir(target, walkFn)
			}
		}
		if d.IsDir() {
			return nil
		}
		if !ext[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel := relativeKey(root, path)
		if s.ignored.IsIgnored(rel) {
			return nil
		}
		keys = append(keys, rel)
		return nil
	}

	if err := filepath.WalkDir(root, walkFn); err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// ingestOne probes one added file, persists its artwork, and upserts
// the song and its album.
func (s *Scanner) ingestOne(ctx context.Context, rel, absPath string) error {
	fi, err := os.Stat(absPath)
	if err != nil {
		return err
	}

	song, picture, err := s.prober(absPath, fi.ModTime().Unix())
	if err != nil {
		return err
	}
	song.File = rel

	if len(picture) == 0 {
		picture = bestFolderImage(filepath.Dir(absPath))
	}
	if len(picture) > 0 {
		id := uuid.NewString()
		if err := s.artwork.Put(ctx, id, bytes.NewReader(picture), int64(len(picture))); err != nil {
			slog.Warn("scanner: store artwork failed", "path", rel, "err", err)
		} else {
			song.ArtworkID = id
		}
	}

	if s.mb != nil {
		s.enrich(ctx, &song)
	}

	if err := s.songs.Save(song); err != nil {
		return fmt.Errorf("save song: %w", err)
	}

	s.albumMu.Lock()
	err = s.albums.UpdateFromSong(song)
	s.albumMu.Unlock()
	if err != nil {
		slog.Warn("scanner: update album failed", "album", song.Album, "err", err)
	}
	return nil
}

// enrich fills in genre from MusicBrainz when the tag reader found
// none. Best-effort: a failure here never fails the scan.
func (s *Scanner) enrich(ctx context.Context, song *model.Song) {
	if song.Genre != "" || song.Artist == "" {
		return
	}
	result, err := s.mb.EnrichTrack(ctx, song.Title, song.Artist)
	if err != nil || result == nil || len(result.Genres) == 0 {
		return
	}
	song.Genre = result.Genres[0]
}

// relativeKey turns an absolute path under root into a forward-slashed
// key relative to root, the form stored (after escaping) as the song's
// primary key.
func relativeKey(root, absPath string) string {
	rel, err := filepath.Rel(root, absPath)
	if err != nil {
		rel = absPath
	}
	return filepath.ToSlash(rel)
}
