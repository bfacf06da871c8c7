package dispatcher

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kallax-audio/audiocore/internal/config"
	"github.com/kallax-audio/audiocore/internal/events"
	"github.com/kallax-audio/audiocore/internal/kvstore"
	"github.com/kallax-audio/audiocore/internal/model"
	"github.com/kallax-audio/audiocore/internal/playback"
	"github.com/kallax-audio/audiocore/internal/playlist"
	"github.com/kallax-audio/audiocore/internal/queue"
	"github.com/kallax-audio/audiocore/internal/repository"
)

// fakeScanner and fakeStats satisfy the dispatcher's narrowed
// scanner/stats interfaces without a real filesystem walk or store.
type fakeScanner struct {
	mu   sync.Mutex
	runs int
}

func (f *fakeScanner) Run(ctx context.Context, fullScan bool) error {
	f.mu.Lock()
	f.runs++
	f.mu.Unlock()
	return nil
}

func (f *fakeScanner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

type fakeStats struct {
	mu   sync.Mutex
	plays map[string]int
	likes map[string]int
}

func newFakeStats() *fakeStats {
	return &fakeStats{plays: map[string]int{}, likes: map[string]int{}}
}

func (f *fakeStats) IncrementPlayCount(id string) (model.PlayItemStatistics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays[id]++
	return model.PlayItemStatistics{PlayItemID: id, PlayCount: f.plays[id]}, nil
}

func (f *fakeStats) Like(id string) (model.PlayItemStatistics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.likes[id]++
	return model.PlayItemStatistics{PlayItemID: id, LikedCount: f.likes[id]}, nil
}

func (f *fakeStats) Dislike(id string) (model.PlayItemStatistics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.likes[id]--
	return model.PlayItemStatistics{PlayItemID: id, LikedCount: f.likes[id]}, nil
}

// fakeEngine substitutes for *playback.Engine so the driver loop can be
// exercised without a real audio device. outcomes/errs are consumed in
// order, one per PlayTrack call; once outcomes is exhausted its last
// entry repeats, while calls past the end of errs return no error.
type fakeEngine struct {
	mu       sync.Mutex
	outcomes []playback.Outcome
	errs     []error
	calls    []model.Song
	stopped  bool
	onPlay   func()
}

func (f *fakeEngine) PlayTrack(ctx context.Context, song model.Song, musicDir string, ringMs int) (playback.Outcome, error) {
	f.mu.Lock()
	i := len(f.calls)
	f.calls = append(f.calls, song)
	f.mu.Unlock()
	if f.onPlay != nil {
		f.onPlay()
	}
	if i < len(f.errs) && f.errs[i] != nil {
		return playback.Stopped, f.errs[i]
	}
	if i < len(f.outcomes) {
		return f.outcomes[i], nil
	}
	if len(f.outcomes) > 0 {
		return f.outcomes[len(f.outcomes)-1], nil
	}
	return playback.Finished, nil
}

func (f *fakeEngine) Stop()            { f.mu.Lock(); f.stopped = true; f.mu.Unlock() }
func (f *fakeEngine) Pause()           {}
func (f *fakeEngine) Resume()          {}
func (f *fakeEngine) Seek(int)         {}
func (f *fakeEngine) Stopped() bool    { f.mu.Lock(); defer f.mu.Unlock(); return f.stopped }
func (f *fakeEngine) callCount() int   { f.mu.Lock(); defer f.mu.Unlock(); return len(f.calls) }

// harness wires a Dispatcher over real temp-bbolt-backed queue,
// playlist, and repository stores, matching internal/scanner's test
// style, with fake scanner/engine/stats substituted via the dispatcher's
// narrowed interfaces.
type harness struct {
	t       *testing.T
	d       *Dispatcher
	queue   *queue.Queue
	songs   *repository.SongRepository
	albums  *repository.AlbumRepository
	cfg     *config.Store
	bus     *events.Bus
	scanner *fakeScanner
	engine  *fakeEngine
	stats   *fakeStats
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := kvstore.Open(filepath.Join(t.TempDir(), "dispatcher.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	songTree, _ := db.Tree("songs")
	albumTree, _ := db.Tree("albums")
	playlistTree, _ := db.Tree("playlists")
	queueTree, _ := db.Tree("queue")
	statusTree, _ := db.Tree("status")
	historyTree, _ := db.Tree("random_history")
	cfgTree, _ := db.Tree("config")

	songs := repository.NewSongRepository(songTree)
	albums := repository.NewAlbumRepository(albumTree)
	pls := playlist.New(playlistTree, songs, albums)
	q := queue.New(queueTree, statusTree, historyTree, songs, pls)
	cfg := config.Open(cfgTree)
	bus := events.NewBus()

	h := &harness{
		t: t, queue: q, songs: songs, albums: albums, cfg: cfg, bus: bus,
		scanner: &fakeScanner{}, engine: &fakeEngine{}, stats: newFakeStats(),
	}
	settings := config.Settings{MusicDirectory: t.TempDir(), RingBufferMs: 1500, ByFolderDepth: 1}
	h.d = New(q, pls, songs, albums, h.scanner, h.engine, h.stats, cfg, bus, func() config.Settings { return settings })
	return h
}

func (h *harness) addSong(file string) model.Song {
	h.t.Helper()
	s := model.Song{File: file}
	if err := h.songs.Save(s); err != nil {
		h.t.Fatalf("Save: %v", err)
	}
	if err := h.queue.AddSong(s); err != nil {
		h.t.Fatalf("AddSong: %v", err)
	}
	return s
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for condition")
}

func TestDriverPlaysQueueToCompletionAndIncrementsPlayCount(t *testing.T) {
	h := newHarness(t)
	h.addSong("a.flac")
	h.addSong("b.flac")
	h.engine.outcomes = []playback.Outcome{playback.Finished, playback.Finished}

	h.d.handle(context.Background(), NewPlayCommand())

	waitFor(t, func() bool { return h.engine.callCount() >= 2 })
	waitFor(t, func() bool {
		h.stats.mu.Lock()
		defer h.stats.mu.Unlock()
		return h.stats.plays["a.flac"] == 1 && h.stats.plays["b.flac"] == 1
	})
}

func TestDriverAbortsImmediatelyOnHTTPSourceFailure(t *testing.T) {
	h := newHarness(t)
	h.addSong("http://radio.example/stream")
	h.engine.errs = []error{errors.New("connection refused")}

	h.d.handle(context.Background(), NewPlayCommand())

	waitFor(t, func() bool { return !h.d.driverRunning.Load() })
	if got := h.engine.callCount(); got != 1 {
		t.Fatalf("PlayTrack called %d times, want exactly 1 (no retry on HTTP source)", got)
	}
}

func TestDriverAbortsAfterTenConsecutiveFailures(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 20; i++ {
		h.addSong(filepath.Join("dir", "song.flac"))
	}
	errs := make([]error, 20)
	for i := range errs {
		errs[i] = errors.New("decode failed")
	}
	h.engine.errs = errs

	h.d.handle(context.Background(), NewPlayCommand())

	waitFor(t, func() bool { return !h.d.driverRunning.Load() })
	if got := h.engine.callCount(); got != maxConsecutiveFailures {
		t.Fatalf("PlayTrack called %d times, want exactly %d", got, maxConsecutiveFailures)
	}
}

func TestDriverAbortsWhenFailuresReachQueueLength(t *testing.T) {
	h := newHarness(t)
	h.addSong("only-one.flac")
	h.engine.errs = []error{errors.New("decode failed"), errors.New("decode failed")}

	h.d.handle(context.Background(), NewPlayCommand())

	waitFor(t, func() bool { return !h.d.driverRunning.Load() })
	if got := h.engine.callCount(); got != 1 {
		t.Fatalf("PlayTrack called %d times, want exactly 1 (queue length 1)", got)
	}
}

func TestPlayerNextKeepsDriverAliveAcrossTrackBoundary(t *testing.T) {
	h := newHarness(t)
	h.addSong("a.flac")
	h.addSong("b.flac")

	release := make(chan struct{})
	h.engine.onPlay = func() {
		h.t.Helper()
		if h.engine.callCount() == 1 {
			<-release
		}
	}
	h.engine.outcomes = []playback.Outcome{playback.Stopped, playback.Finished}

	h.d.handle(context.Background(), NewPlayCommand())
	waitFor(t, func() bool { return h.d.driverRunning.Load() })

	h.d.handle(context.Background(), NewNextCommand())
	close(release)

	waitFor(t, func() bool { return h.engine.callCount() >= 2 })
	waitFor(t, func() bool { return !h.d.driverRunning.Load() })
}

func TestQueueClearStopsDriverAndEmptiesQueue(t *testing.T) {
	h := newHarness(t)
	h.addSong("a.flac")
	h.engine.outcomes = []playback.Outcome{playback.Stopped}

	h.d.handle(context.Background(), NewPlayCommand())
	waitFor(t, func() bool { return h.d.driverRunning.Load() })

	h.d.handle(context.Background(), NewQueueClearCommand())

	if h.d.driverRunning.Load() {
		t.Fatal("driver should have exited after Queue::Clear")
	}
	if _, ok := h.queue.GetCurrentSong(); ok {
		t.Fatal("queue should be empty after Clear")
	}
}

func TestPlayerPlayResumesInPlaceWhenDriverAlreadyRunning(t *testing.T) {
	h := newHarness(t)
	h.addSong("a.flac")
	block := make(chan struct{})
	h.engine.onPlay = func() { <-block }
	h.engine.outcomes = []playback.Outcome{playback.Finished}

	h.d.handle(context.Background(), NewPlayCommand())
	waitFor(t, func() bool { return h.d.driverRunning.Load() })

	h.d.handle(context.Background(), NewPlayCommand())
	if got := h.engine.callCount(); got != 1 {
		t.Fatalf("second Play should resume in place, not start a new PlayTrack call; got %d calls", got)
	}
	close(block)
	waitFor(t, func() bool { return !h.d.driverRunning.Load() })
}

func TestMetadataRescanInvokesScanner(t *testing.T) {
	h := newHarness(t)
	h.d.handle(context.Background(), NewMetadataRescanCommand(true))
	waitFor(t, func() bool { return h.scanner.callCount() == 1 })
}

func TestMetadataLikeAndDislike(t *testing.T) {
	h := newHarness(t)
	h.d.handle(context.Background(), NewMetadataLikeCommand("a.flac"))
	h.d.handle(context.Background(), NewMetadataLikeCommand("a.flac"))
	h.d.handle(context.Background(), NewMetadataDislikeCommand("a.flac"))

	h.stats.mu.Lock()
	defer h.stats.mu.Unlock()
	if h.stats.likes["a.flac"] != 1 {
		t.Fatalf("liked_count = %d, want 1", h.stats.likes["a.flac"])
	}
}

func TestSystemVolumeUpDownAndSetPersist(t *testing.T) {
	h := newHarness(t)
	h.d.handle(context.Background(), NewSystemVolumeUpCommand())
	state, err := h.cfg.LoadStreamerState()
	if err != nil {
		t.Fatalf("LoadStreamerState: %v", err)
	}
	if state.Volume.Current != 52 {
		t.Fatalf("volume after one VolumeUp = %d, want 52", state.Volume.Current)
	}

	h.d.handle(context.Background(), NewSystemSetVolumeCommand(10))
	state, _ = h.cfg.LoadStreamerState()
	if state.Volume.Current != 10 {
		t.Fatalf("volume after SetVolume(10) = %d, want 10", state.Volume.Current)
	}
}

func TestPlaylistSaveQueryDelete(t *testing.T) {
	h := newHarness(t)
	h.addSong("a.flac")

	h.d.handle(context.Background(), NewPlaylistSaveCommand("My Mix"))

	found := false
	for _, pl := range h.d.playlists.QueryPlaylist() {
		if pl.Name == "My Mix" {
			found = true
		}
	}
	if !found {
		t.Fatal("saved playlist not present in catalogue")
	}

	h.d.handle(context.Background(), NewPlaylistDeleteCommand("My Mix"))
	for _, pl := range h.d.playlists.QueryPlaylist() {
		if pl.Name == "My Mix" {
			t.Fatal("deleted playlist still present in catalogue")
		}
	}
}

func TestQueueAddAndRemoveSong(t *testing.T) {
	h := newHarness(t)
	h.addSong("a.flac")

	h.d.handle(context.Background(), NewQueueAddSongCommand("a.flac"))
	if got := h.queue.Len(); got != 2 {
		t.Fatalf("queue length after duplicate add = %d, want 2", got)
	}

	h.d.handle(context.Background(), NewQueueRemoveCommand("a.flac"))
	if got := h.queue.Len(); got != 1 {
		t.Fatalf("queue length after remove = %d, want 1", got)
	}
}
