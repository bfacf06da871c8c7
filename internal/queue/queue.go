// Package queue implements the playback queue (component D): an
// ordered, persistent cursor over songs plus a four-mode playback-mode
// state machine, grounded on the reference implementation's
// queue.rs (sled-backed) generalized from its binary random toggle to
// the spec's Sequential/LoopQueue/LoopSingle/Random cycle.
package queue

import (
	"math/rand"
	"strings"

	"github.com/kallax-audio/audiocore/internal/kvstore"
	"github.com/kallax-audio/audiocore/internal/model"
	"github.com/kallax-audio/audiocore/internal/repository"
)

const (
	keyCurrentSong  = "current_song_key"
	keyPlaybackMode = "playback_mode"
)

// SongSource resolves a song by id and lists songs, the queue's view of
// the metadata store — satisfied by *repository.SongRepository.
type SongSource interface {
	FindByID(key string) (model.Song, bool)
	GetAllIterator() []model.Song
}

// Queue is backed by three trees: queue (ordered by monotonic key),
// status (scalars: current_song_key, playback_mode), and random_history
// (incrementing index -> song key), matching spec.md §4.D.
type Queue struct {
	queueTree   *kvstore.Tree
	statusTree  *kvstore.Tree
	historyTree *kvstore.Tree
	metadata    SongSource
	playlists   PlaylistSource
}

// PlaylistSource resolves a named saved playlist's songs, used by
// LoadPlaylistInQueue's fallback arm.
type PlaylistSource interface {
	GetPlaylistPageByName(name string, offset, limit int) model.Page
}

// New constructs a Queue over the three given trees.
func New(queueTree, statusTree, historyTree *kvstore.Tree, metadata SongSource, playlists PlaylistSource) *Queue {
	return &Queue{queueTree: queueTree, statusTree: statusTree, historyTree: historyTree, metadata: metadata, playlists: playlists}
}

// --- basic mutation ---

// AddSong appends song with a fresh monotonic key.
func (q *Queue) AddSong(s model.Song) error {
	id, err := q.queueTree.NextID()
	if err != nil {
		return err
	}
	b, err := s.Bytes()
	if err != nil {
		return err
	}
	return q.queueTree.Put(kvstore.Uint64Key(id), b)
}

// AddSongByID resolves id via metadata; if id starts with "http", adds
// a minimal song whose File is the URL even though no metadata record
// exists for it (internet radio streams aren't scanned).
func (q *Queue) AddSongByID(id string) error {
	if s, ok := q.metadata.FindByID(id); ok {
		return q.AddSong(s)
	}
	if strings.HasPrefix(id, "http") {
		return q.AddSong(model.Song{File: id})
	}
	return nil
}

// ReplaceAll clears the queue and current-song pointer, then appends
// every song from songs in order.
func (q *Queue) ReplaceAll(songs []model.Song) error {
	if err := q.queueTree.DeleteAll(); err != nil {
		return err
	}
	if err := q.statusTree.Delete([]byte(keyCurrentSong)); err != nil {
		return err
	}
	for _, s := range songs {
		if err := q.AddSong(s); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes the first entry whose File equals songID.
func (q *Queue) Remove(songID string) error {
	if e, ok := q.findEntryBySongID(songID); ok {
		return q.queueTree.Delete(e.Key)
	}
	return nil
}

// Len returns the number of songs currently queued, used by the
// command dispatcher's consecutive-failure abort check (spec.md §4.F
// track-level error handling, condition (c)).
func (q *Queue) Len() int { return q.queueTree.Len() }

// Clear empties the queue and status trees.
func (q *Queue) Clear() error {
	if err := q.queueTree.DeleteAll(); err != nil {
		return err
	}
	return q.statusTree.Delete([]byte(keyCurrentSong))
}

func (q *Queue) findEntryBySongID(songID string) (kvstore.Entry, bool) {
	for _, e := range q.queueTree.All() {
		if s, ok := model.SongFromBytes(e.Value); ok && s.File == songID {
			return e, true
		}
	}
	return kvstore.Entry{}, false
}

// --- current-song cursor ---

// GetCurrentSong deserializes the entry pointed to by current_song_key;
// if absent, it falls back to the first entry and adopts it as current.
// Per the resolved open question, removing the current song does NOT
// eagerly re-seat this pointer — only this call re-seats, lazily, to
// the queue head.
func (q *Queue) GetCurrentSong() (model.Song, bool) {
	key, ok := q.currentOrFirstKey()
	if !ok {
		return model.Song{}, false
	}
	v, ok := q.queueTree.Get(key)
	if !ok {
		// The current entry was removed: re-seat to the queue head.
		_ = q.statusTree.Delete([]byte(keyCurrentSong))
		if key, ok = q.currentOrFirstKey(); !ok {
			return model.Song{}, false
		}
		if v, ok = q.queueTree.Get(key); !ok {
			return model.Song{}, false
		}
	}
	return model.SongFromBytes(v)
}

func (q *Queue) currentOrFirstKey() ([]byte, bool) {
	if v, ok := q.statusTree.Get([]byte(keyCurrentSong)); ok {
		return v, true
	}
	first, ok := q.queueTree.First()
	if !ok {
		return nil, false
	}
	_ = q.statusTree.Put([]byte(keyCurrentSong), first.Key)
	return first.Key, true
}

// MoveTo points current_song_key at the first entry matching songID.
func (q *Queue) MoveTo(songID string) bool {
	e, ok := q.findEntryBySongID(songID)
	if !ok {
		return false
	}
	_ = q.statusTree.Put([]byte(keyCurrentSong), e.Key)
	return true
}

// --- playback mode ---

// Mode returns the persisted playback mode, defaulting to Sequential.
func (q *Queue) Mode() model.PlaybackMode {
	v, ok := q.statusTree.Get([]byte(keyPlaybackMode))
	if !ok || len(v) != 1 {
		return model.Sequential
	}
	return model.PlaybackMode(v[0])
}

// CyclePlaybackMode advances Sequential -> LoopQueue -> LoopSingle ->
// Random -> Sequential and persists the result. Driven only by explicit
// user command, never automatically on song end.
func (q *Queue) CyclePlaybackMode() model.PlaybackMode {
	next := q.Mode().Next()
	_ = q.statusTree.Put([]byte(keyPlaybackMode), []byte{byte(next)})
	return next
}

// ToggleRandomNext is preserved from the reference implementation as a
// convenience that jumps directly to Random (or back to Sequential if
// already there), without cycling through the intermediate modes.
func (q *Queue) ToggleRandomNext() model.PlaybackMode {
	var next model.PlaybackMode
	if q.Mode() == model.Random {
		next = model.Sequential
	} else {
		next = model.Random
	}
	_ = q.statusTree.Put([]byte(keyPlaybackMode), []byte{byte(next)})
	return next
}

// --- advance/retreat state machine ---

// MoveToNext applies the per-mode "advance" semantics in spec.md §4.D
// and returns true iff a new current song exists.
func (q *Queue) MoveToNext() bool {
	queueLen := q.queueTree.Len()
	switch q.Mode() {
	case model.LoopSingle:
		// Current stays unchanged; caller reloads the same file.
		_, ok := q.currentOrFirstKey()
		return ok
	case model.Random:
		if queueLen < 2 {
			return false
		}
		return q.advanceRandom(queueLen)
	case model.LoopQueue:
		if queueLen < 1 {
			return false
		}
		return q.advanceSequentialWrapping(true)
	default: // Sequential
		if queueLen < 1 {
			return false
		}
		return q.advanceSequentialWrapping(false)
	}
}

func (q *Queue) advanceSequentialWrapping(wrap bool) bool {
	key, ok := q.currentOrFirstKey()
	if !ok {
		return false
	}
	if next, ok := q.queueTree.NextAfter(key); ok {
		_ = q.statusTree.Put([]byte(keyCurrentSong), next.Key)
		return true
	}
	if !wrap {
		return false
	}
	first, ok := q.queueTree.First()
	if !ok {
		return false
	}
	_ = q.statusTree.Put([]byte(keyCurrentSong), first.Key)
	return true
}

// advanceRandom pushes the pre-jump current song onto the history tree
// (so MoveToPrevious can undo the jump later) before picking a
// uniformly random next entry. Because it's the pre-jump song and not
// the newly-chosen one that gets pushed, a run of N random advances
// followed by N Prev calls replays the N prior current songs in
// reverse, not the N random picks themselves.
func (q *Queue) advanceRandom(queueLen int) bool {
	pos := rand.Intn(queueLen)
	e, ok := q.queueTree.NthFromStart(pos)
	if !ok {
		return false
	}
	if oldKey, ok := q.currentOrFirstKey(); ok {
		idx, err := q.historyTree.NextID()
		if err != nil {
			return false
		}
		_ = q.historyTree.Put(kvstore.Uint64Key(idx), oldKey)
	}
	_ = q.statusTree.Put([]byte(keyCurrentSong), e.Key)
	return true
}

// MoveToPrevious applies the per-mode "previous" semantics: in Random
// mode, consults history, falling through to the ordering-based
// previous below once history is exhausted; otherwise takes the
// greatest key strictly less than current, wrapping in LoopQueue.
func (q *Queue) MoveToPrevious() bool {
	if q.Mode() == model.Random && q.previousFromHistory() {
		return true
	}
	key, ok := q.currentOrFirstKey()
	if !ok {
		return false
	}
	if prev, ok := q.queueTree.PrevBefore(key); ok {
		_ = q.statusTree.Put([]byte(keyCurrentSong), prev.Key)
		return true
	}
	if q.Mode() != model.LoopQueue {
		return false
	}
	last, ok := q.queueTree.Last()
	if !ok {
		return false
	}
	_ = q.statusTree.Put([]byte(keyCurrentSong), last.Key)
	return true
}

// previousFromHistory pops the most recently pushed pre-jump song off
// the history tree and restores it as current, undoing the last random
// jump. This gives move_to_next/move_to_previous the exact inverse
// relationship invariant 5 requires; with no history to pop (no random
// jump has happened yet), it returns false.
func (q *Queue) previousFromHistory() bool {
	last, ok := q.historyTree.Last()
	if !ok {
		return false
	}
	_ = q.statusTree.Put([]byte(keyCurrentSong), last.Value)
	_ = q.historyTree.Delete(last.Key)
	return true
}

// --- paging ---

// GetQueuePage starts from the offset-th entry (or from current if
// offset is out of range), returning up to limit songs matching filter,
// plus the total queue length.
func (q *Queue) GetQueuePage(offset, limit int, filter func(model.Song) bool) (int, []model.Song) {
	total := q.queueTree.Len()
	if total == 0 {
		return 0, nil
	}
	from, ok := q.queueTree.NthFromStart(offset)
	var fromKey []byte
	if ok {
		fromKey = from.Key
	} else {
		fromKey, ok = q.currentOrFirstKey()
		if !ok {
			return total, nil
		}
	}
	var out []model.Song
	for _, e := range q.queueTree.RangeFrom(fromKey) {
		s, ok := model.SongFromBytes(e.Value)
		if !ok {
			continue
		}
		if filter != nil && !filter(s) {
			continue
		}
		out = append(out, s)
		if len(out) >= limit {
			break
		}
	}
	return total, out
}

// GetQueuePageStartingFromCurrent starts at current, taking up to limit songs.
func (q *Queue) GetQueuePageStartingFromCurrent(limit int) []model.Song {
	key, ok := q.currentOrFirstKey()
	if !ok {
		return nil
	}
	var out []model.Song
	for _, e := range q.queueTree.RangeFrom(key) {
		if s, ok := model.SongFromBytes(e.Value); ok {
			out = append(out, s)
		}
		if len(out) >= limit {
			break
		}
	}
	return out
}

// GetAllSongs returns every song currently queued.
func (q *Queue) GetAllSongs() []model.Song {
	var out []model.Song
	for _, e := range q.queueTree.All() {
		if s, ok := model.SongFromBytes(e.Value); ok {
			out = append(out, s)
		}
	}
	return out
}

// --- directory / playlist loading ---

// AddSongsFromDir appends every song whose File begins with prefix.
func (q *Queue) AddSongsFromDir(prefix string) error {
	for _, s := range q.metadata.GetAllIterator() {
		if strings.HasPrefix(s.File, prefix) {
			if err := q.AddSong(s); err != nil {
				return err
			}
		}
	}
	return nil
}

// LoadSongsFromDir replaces the queue with every song whose File begins
// with prefix.
func (q *Queue) LoadSongsFromDir(prefix string) error {
	var songs []model.Song
	for _, s := range q.metadata.GetAllIterator() {
		if strings.HasPrefix(s.File, prefix) {
			songs = append(songs, s)
		}
	}
	return q.ReplaceAll(songs)
}

// LoadPlaylistInQueue dispatches on the dynamic-playlist id prefixes
// (by_genre/by_date/by_artist/by_folder), falling through to a named
// saved-playlist lookup — mirrors queue.rs's load_playlist_in_queue.
func (q *Queue) LoadPlaylistInQueue(plID string, byFolderDepth int) error {
	switch {
	case strings.HasPrefix(plID, model.ByGenrePrefix):
		genre := strings.TrimPrefix(plID, model.ByGenrePrefix)
		return q.ReplaceAll(filterSongs(q.metadata.GetAllIterator(), func(s model.Song) bool { return s.Genre == genre }))
	case strings.HasPrefix(plID, model.ByDatePrefix):
		date := strings.TrimPrefix(plID, model.ByDatePrefix)
		return q.ReplaceAll(filterSongs(q.metadata.GetAllIterator(), func(s model.Song) bool { return s.Date == date }))
	case strings.HasPrefix(plID, model.ByArtistPrefix):
		artist := strings.TrimPrefix(plID, model.ByArtistPrefix)
		return q.ReplaceAll(filterSongs(q.metadata.GetAllIterator(), func(s model.Song) bool { return s.Artist == artist }))
	case strings.HasPrefix(plID, model.ByFolderPrefix):
		folder := strings.TrimPrefix(plID, model.ByFolderPrefix)
		return q.ReplaceAll(filterSongs(q.metadata.GetAllIterator(), func(s model.Song) bool {
			return strings.EqualFold(repository.FolderOf(s.File, byFolderDepth-1), folder)
		}))
	default:
		page := q.playlists.GetPlaylistPageByName(plID, 0, 20000)
		return q.ReplaceAll(page.Items)
	}
}

func filterSongs(songs []model.Song, pred func(model.Song) bool) []model.Song {
	var out []model.Song
	for _, s := range songs {
		if pred(s) {
			out = append(out, s)
		}
	}
	return out
}
