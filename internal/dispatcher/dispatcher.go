package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kallax-audio/audiocore/internal/config"
	"github.com/kallax-audio/audiocore/internal/events"
	"github.com/kallax-audio/audiocore/internal/model"
	"github.com/kallax-audio/audiocore/internal/playback"
	"github.com/kallax-audio/audiocore/internal/playlist"
	"github.com/kallax-audio/audiocore/internal/queue"
	"github.com/kallax-audio/audiocore/internal/repository"
)

// maxConsecutiveFailures is spec.md §4.F's track-level error handling
// condition (b).
const maxConsecutiveFailures = 10

// scanner is the subset of *scanner.Scanner the dispatcher needs,
// narrowed to avoid an import cycle (scanner doesn't depend on
// dispatcher, but naming the concrete type here would still pull its
// whole dependency set into every command-handling test).
type scanner interface {
	Run(ctx context.Context, fullScan bool) error
}

// stats is the subset of *repository.StatsRepository the dispatcher needs.
type stats interface {
	IncrementPlayCount(id string) (model.PlayItemStatistics, error)
	Like(id string) (model.PlayItemStatistics, error)
	Dislike(id string) (model.PlayItemStatistics, error)
}

// engine is the subset of *playback.Engine the dispatcher drives,
// narrowed so driver-loop tests can substitute a fake track player
// without a real audio device.
type engine interface {
	PlayTrack(ctx context.Context, song model.Song, musicDir string, ringMs int) (playback.Outcome, error)
	Stop()
	Pause()
	Resume()
	Seek(seconds int)
	Stopped() bool
}

// Dispatcher runs the single command loop described in spec.md §4.G:
// commands arrive strictly in order on one channel and each emits at
// most one user-visible notification event. A second, longer-lived
// goroutine (the "driver") advances the queue across track boundaries
// while Player::Play is active; Submit never blocks the driver.
type Dispatcher struct {
	queue     *queue.Queue
	playlists *playlist.Store
	songs     *repository.SongRepository
	albums    *repository.AlbumRepository
	scanner   scanner
	engine    engine
	stats     stats
	cfg       *config.Store
	bus       *events.Bus

	settingsFn func() config.Settings
	powerCmd   func(action string) error // swappable in tests

	in chan Command

	mu            sync.Mutex
	driverRunning atomic.Bool
	skip          atomic.Bool
	driverCancel  context.CancelFunc
}

// New wires a Dispatcher. settingsFn is consulted at the start of
// every driver loop iteration and every rescan, so a changed
// music_directory takes effect without restarting the process.
func New(q *queue.Queue, playlists *playlist.Store, songs *repository.SongRepository, albums *repository.AlbumRepository, sc scanner, eng engine, st stats, cfg *config.Store, bus *events.Bus, settingsFn func() config.Settings) *Dispatcher {
	return &Dispatcher{
		queue:      q,
		playlists:  playlists,
		songs:      songs,
		albums:     albums,
		scanner:    sc,
		engine:     eng,
		stats:      st,
		cfg:        cfg,
		bus:        bus,
		settingsFn: settingsFn,
		powerCmd:   runPowerCommand,
		in:         make(chan Command, 64),
	}
}

// Submit enqueues cmd for processing. Never blocks the caller for long:
// the channel is generously buffered, matching the async command realm
// described in spec.md §5.
func (d *Dispatcher) Submit(cmd Command) { d.in <- cmd }

// Run consumes commands strictly in arrival order until ctx is
// cancelled or the channel is closed.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-d.in:
			if !ok {
				return
			}
			d.handle(ctx, cmd)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, cmd Command) {
	switch cmd.Family {
	case Player:
		d.handlePlayer(ctx, cmd)
	case Queue:
		d.handleQueue(cmd)
	case Playlist:
		d.handlePlaylist(cmd)
	case Metadata:
		d.handleMetadata(ctx, cmd)
	case System:
		d.handleSystem(cmd)
	}
}

// --- Player family ---

func (d *Dispatcher) handlePlayer(ctx context.Context, cmd Command) {
	switch cmd.Action {
	case PlayerPlay:
		d.startOrResumeDriver()
	case PlayerPause:
		d.engine.Pause()
		d.bus.Publish(events.NewPlaybackState(model.Paused))
	case PlayerNext:
		d.advanceDuring(d.queue.MoveToNext)
	case PlayerPrev:
		d.advanceDuring(d.queue.MoveToPrevious)
	case PlayerSeek:
		d.engine.Seek(cmd.Seconds)
	case PlayerPlayItem:
		if d.queue.MoveTo(cmd.ID) {
			d.restartDriver()
		}
	case PlayerRandomToggle:
		mode := d.queue.CyclePlaybackMode()
		d.bus.Publish(events.NewModeChanged(mode))
	}
}

// startOrResumeDriver implements Player::Play: resume in place if a
// track is merely paused, otherwise (re)start the driver from the
// current queue position.
func (d *Dispatcher) startOrResumeDriver() {
	if d.driverRunning.Load() {
		d.engine.Resume()
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.driverRunning.Load() {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.driverCancel = cancel
	d.driverRunning.Store(true)
	go func() {
		defer cancel()
		d.runDriver(ctx)
	}()
}

// Shutdown interrupts any in-flight track and waits for the driver to
// exit, for use by the process's graceful-shutdown path.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	cancel := d.driverCancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	d.stopDriverAndWait()
}

// advanceDuring implements Player::Next/Prev: move the queue cursor
// per move, then keep the driver alive across the track boundary by
// marking skip before interrupting the in-flight PlayTrack call.
func (d *Dispatcher) advanceDuring(move func() bool) {
	if !d.driverRunning.Load() {
		if move() {
			d.startOrResumeDriver()
		}
		return
	}
	d.skip.Store(true)
	if !move() {
		d.skip.Store(false)
	}
	d.engine.Stop()
}

// restartDriver implements Player::PlayItem: jump to an arbitrary
// queue entry, interrupting whatever is currently playing.
func (d *Dispatcher) restartDriver() {
	if !d.driverRunning.Load() {
		d.startOrResumeDriver()
		return
	}
	d.skip.Store(true)
	d.engine.Stop()
}

// stopDriverAndWait implements the "stop engine then clear queue"
// barrier Queue::Clear needs: Stop clears running, then this polls the
// driver's own running flag every 10ms, giving up after about 2s.
func (d *Dispatcher) stopDriverAndWait() {
	if !d.driverRunning.Load() {
		return
	}
	d.engine.Stop()
	for i := 0; i < 200 && d.driverRunning.Load(); i++ {
		time.Sleep(10 * time.Millisecond)
	}
}

// runDriver is the per-queue driver named in spec.md §4.F's
// track-level error handling section: it plays the current song,
// advances on success, retries past isolated failures, and aborts
// per the three conditions spec.md §4.F lists.
func (d *Dispatcher) runDriver(ctx context.Context) {
	defer d.driverRunning.Store(false)

	consecutiveFailures := 0
	for {
		song, ok := d.queue.GetCurrentSong()
		if !ok {
			d.bus.Publish(events.NewPlaybackState(model.Stopped))
			return
		}

		settings := d.settingsFn()
		outcome, err := d.engine.PlayTrack(ctx, song, settings.MusicDirectory, settings.RingBufferMs)
		if err != nil {
			consecutiveFailures++
			slog.Warn("dispatcher: track failed", "song", song.File, "consecutive_failures", consecutiveFailures, "err", err)
			isHTTP := strings.HasPrefix(song.File, "http://") || strings.HasPrefix(song.File, "https://")
			if isHTTP || consecutiveFailures >= maxConsecutiveFailures || consecutiveFailures >= d.queue.Len() {
				d.bus.Publish(events.NewNotification(fmt.Sprintf("playback stopped: %v", err)))
				d.bus.Publish(events.NewPlaybackState(model.Stopped))
				return
			}
			if !d.queue.MoveToNext() {
				d.bus.Publish(events.NewPlaybackState(model.Stopped))
				return
			}
			continue
		}

		if outcome == playback.Stopped {
			if d.skip.Swap(false) {
				continue // Next/Prev/PlayItem already repositioned current song
			}
			return
		}

		// Finished: adopted song played to completion.
		consecutiveFailures = 0
		if d.stats != nil {
			if _, err := d.stats.IncrementPlayCount(song.ID()); err != nil {
				slog.Warn("dispatcher: increment play count failed", "song", song.File, "err", err)
			}
		}
		if !d.queue.MoveToNext() {
			d.bus.Publish(events.NewPlaybackState(model.Stopped))
			return
		}
	}
}

// --- Queue family ---

func (d *Dispatcher) handleQueue(cmd Command) {
	switch cmd.Action {
	case QueueAddSong:
		d.mustOK(d.queue.AddSongByID(cmd.ID), "add song to queue")
	case QueueAddPlaylist:
		d.addPlaylistSongs(cmd.ID)
	case QueueAddAlbum:
		d.addAlbumSongs(cmd.ID)
	case QueueAddDirectory:
		d.mustOK(d.queue.AddSongsFromDir(cmd.ID), "add directory to queue")
	case QueueLoadSong:
		if song, ok := d.songs.FindByID(cmd.ID); ok {
			d.mustOK(d.queue.ReplaceAll([]model.Song{song}), "load song")
		}
	case QueueLoadPlaylist:
		settings := d.settingsFn()
		d.mustOK(d.queue.LoadPlaylistInQueue(cmd.ID, settings.ByFolderDepth), "load playlist")
	case QueueLoadAlbum:
		d.loadAlbumSongs(cmd.ID)
	case QueueLoadDirectory:
		d.mustOK(d.queue.LoadSongsFromDir(cmd.ID), "load directory")
	case QueueRemove:
		d.mustOK(d.queue.Remove(cmd.ID), "remove from queue")
	case QueueClear:
		d.stopDriverAndWait()
		d.mustOK(d.queue.Clear(), "clear queue")
	case QueueQueryCurrent:
		d.publishQueuePage(cmd)
	}
}

func (d *Dispatcher) publishQueuePage(cmd Command) {
	if cmd.SearchTerm == "" {
		// Unfiltered queries page from the current song.
		items := d.queue.GetQueuePageStartingFromCurrent(cmd.Limit)
		d.bus.Publish(events.NewCurrentQueue(model.Page{Total: d.queue.Len(), Offset: cmd.Offset, Limit: cmd.Limit, Items: items}))
		return
	}
	var filter func(model.Song) bool
	if cmd.SearchTerm != "" {
		term := strings.ToLower(cmd.SearchTerm)
		filter = func(s model.Song) bool { return strings.Contains(strings.ToLower(s.AllText()), term) }
	}
	total, items := d.queue.GetQueuePage(cmd.Offset, cmd.Limit, filter)
	d.bus.Publish(events.NewCurrentQueue(model.Page{Total: total, Offset: cmd.Offset, Limit: cmd.Limit, Items: items}))
}

func (d *Dispatcher) addPlaylistSongs(id string) {
	page := d.playlists.GetPlaylistPageByName(id, 0, 20000)
	for _, s := range page.Items {
		if err := d.queue.AddSong(s); err != nil {
			slog.Warn("dispatcher: add playlist song failed", "song", s.File, "err", err)
		}
	}
	d.bus.Publish(events.NewNotification("added playlist to queue"))
}

func (d *Dispatcher) addAlbumSongs(title string) {
	album, ok := d.albums.FindByID(title)
	if !ok {
		return
	}
	for _, key := range album.SongKeys {
		if s, ok := d.songs.FindByID(key); ok {
			if err := d.queue.AddSong(s); err != nil {
				slog.Warn("dispatcher: add album song failed", "song", s.File, "err", err)
			}
		}
	}
	d.bus.Publish(events.NewNotification("added album to queue"))
}

func (d *Dispatcher) loadAlbumSongs(title string) {
	album, ok := d.albums.FindByID(title)
	if !ok {
		return
	}
	songs := make([]model.Song, 0, len(album.SongKeys))
	for _, key := range album.SongKeys {
		if s, ok := d.songs.FindByID(key); ok {
			songs = append(songs, s)
		}
	}
	d.mustOK(d.queue.ReplaceAll(songs), "load album")
}

// --- Playlist family ---

func (d *Dispatcher) handlePlaylist(cmd Command) {
	switch cmd.Action {
	case PlaylistSave:
		songs := d.queue.GetAllSongs()
		if err := d.playlists.SaveQueueAsPlaylist(cmd.ID, songs); err != nil {
			slog.Warn("dispatcher: save playlist failed", "name", cmd.ID, "err", err)
			return
		}
		d.bus.Publish(events.NewNotification(fmt.Sprintf("saved playlist %q", cmd.ID)))
	case PlaylistDelete:
		d.mustOK(d.playlists.DeletePlaylist(cmd.ID), "delete playlist")
	case PlaylistQuery:
		d.bus.Publish(events.Event{Kind: events.PlaylistsEvent, Playlists: d.playlists.QueryPlaylist()})
	}
}

// --- Metadata family ---

func (d *Dispatcher) handleMetadata(ctx context.Context, cmd Command) {
	switch cmd.Action {
	case MetadataRescan:
		go func() {
			if err := d.scanner.Run(ctx, cmd.FullScan); err != nil {
				slog.Warn("dispatcher: rescan failed", "err", err)
			}
		}()
	case MetadataLike:
		if _, err := d.stats.Like(cmd.ID); err != nil {
			slog.Warn("dispatcher: like failed", "id", cmd.ID, "err", err)
		}
	case MetadataDislike:
		if _, err := d.stats.Dislike(cmd.ID); err != nil {
			slog.Warn("dispatcher: dislike failed", "id", cmd.ID, "err", err)
		}
	}
}

// --- System family ---

func (d *Dispatcher) handleSystem(cmd Command) {
	switch cmd.Action {
	case SystemSetVolume, SystemVolumeUp, SystemVolumeDown:
		d.adjustVolume(cmd)
	case SystemRestartPlayer:
		if err := d.powerCmd("restart-player"); err != nil {
			slog.Warn("dispatcher: restart player failed", "err", err)
		}
	case SystemPowerOff:
		if err := d.powerCmd("poweroff"); err != nil {
			slog.Warn("dispatcher: power off failed", "err", err)
		}
	case SystemRestartSystem:
		if err := d.powerCmd("reboot"); err != nil {
			slog.Warn("dispatcher: restart system failed", "err", err)
		}
	}
}

func (d *Dispatcher) adjustVolume(cmd Command) {
	state, err := d.cfg.LoadStreamerState()
	if err != nil {
		slog.Warn("dispatcher: load streamer state failed", "err", err)
		return
	}
	switch cmd.Action {
	case SystemSetVolume:
		v := state.Volume
		v.Current = cmd.VolumeStep
		state.Volume = v.Clamp()
	case SystemVolumeUp:
		state.Volume = state.Volume.Up()
	case SystemVolumeDown:
		state.Volume = state.Volume.Down()
	}
	if err := d.cfg.SaveStreamerState(state); err != nil {
		slog.Warn("dispatcher: save streamer state failed", "err", err)
		return
	}
	d.bus.Publish(events.NewStreamerState(state))
}

func (d *Dispatcher) mustOK(err error, what string) {
	if err != nil {
		slog.Warn("dispatcher: "+what+" failed", "err", err)
		return
	}
	d.bus.Publish(events.NewNotification(what + " succeeded"))
}

// runPowerCommand is the real-world implementation of the System
// family's shell-out actions, matching the reference implementation's
// systemctl/poweroff invocations. Swappable via powerCmd for tests.
func runPowerCommand(action string) error {
	switch action {
	case "poweroff":
		return exec.Command("systemctl", "poweroff").Start()
	case "reboot":
		return exec.Command("systemctl", "reboot").Start()
	case "restart-player":
		return exec.Command("systemctl", "restart", "audiocored").Start()
	default:
		return fmt.Errorf("dispatcher: unknown power action %q", action)
	}
}
