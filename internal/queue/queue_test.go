package queue

import (
	"path/filepath"
	"testing"

	"github.com/kallax-audio/audiocore/internal/kvstore"
	"github.com/kallax-audio/audiocore/internal/model"
)

type fakeMetadata struct {
	songs map[string]model.Song
}

func (f *fakeMetadata) FindByID(key string) (model.Song, bool) {
	s, ok := f.songs[key]
	return s, ok
}

func (f *fakeMetadata) GetAllIterator() []model.Song {
	out := make([]model.Song, 0, len(f.songs))
	for _, s := range f.songs {
		out = append(out, s)
	}
	return out
}

type fakePlaylists struct{}

func (fakePlaylists) GetPlaylistPageByName(name string, offset, limit int) model.Page {
	return model.Page{}
}

func newTestQueue(t *testing.T) (*Queue, *fakeMetadata) {
	t.Helper()
	db, err := kvstore.Open(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	qt, _ := db.Tree("queue")
	st, _ := db.Tree("status")
	ht, _ := db.Tree("random_history")
	md := &fakeMetadata{songs: map[string]model.Song{}}
	return New(qt, st, ht, md, fakePlaylists{}), md
}

func addSongs(t *testing.T, q *Queue, files ...string) {
	t.Helper()
	for _, f := range files {
		if err := q.AddSong(model.Song{File: f}); err != nil {
			t.Fatalf("AddSong(%q): %v", f, err)
		}
	}
}

// Invariant 1: GetCurrentSong returns Some iff queue non-empty.
func TestInvariantCurrentSongIffNonEmpty(t *testing.T) {
	q, _ := newTestQueue(t)
	if _, ok := q.GetCurrentSong(); ok {
		t.Fatalf("empty queue: GetCurrentSong returned ok")
	}
	addSongs(t, q, "a", "b")
	if _, ok := q.GetCurrentSong(); !ok {
		t.Fatalf("non-empty queue: GetCurrentSong returned not-ok")
	}
}

// Invariant 2: after ReplaceAll, current is the first element.
func TestInvariantReplaceAllSeatsFirst(t *testing.T) {
	q, _ := newTestQueue(t)
	songs := []model.Song{{File: "a"}, {File: "b"}, {File: "c"}}
	if err := q.ReplaceAll(songs); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	cur, ok := q.GetCurrentSong()
	if !ok || cur.File != "a" {
		t.Fatalf("current = %+v, %v, want a", cur, ok)
	}
}

// Invariant 3: AddSongByID with an http URL always appends exactly one
// entry; with a known file key, appends iff the song exists.
func TestInvariantAddSongByID(t *testing.T) {
	q, md := newTestQueue(t)

	if err := q.AddSongByID("http://stream.example/radio"); err != nil {
		t.Fatalf("AddSongByID(http): %v", err)
	}
	if got := q.GetAllSongs(); len(got) != 1 {
		t.Fatalf("queue len = %d, want 1", len(got))
	}

	if err := q.AddSongByID("unknown/file.flac"); err != nil {
		t.Fatalf("AddSongByID(unknown): %v", err)
	}
	if got := q.GetAllSongs(); len(got) != 1 {
		t.Fatalf("queue len after unknown id = %d, want 1 (no-op)", len(got))
	}

	md.songs["known/file.flac"] = model.Song{File: "known/file.flac"}
	if err := q.AddSongByID("known/file.flac"); err != nil {
		t.Fatalf("AddSongByID(known): %v", err)
	}
	if got := q.GetAllSongs(); len(got) != 2 {
		t.Fatalf("queue len after known id = %d, want 2", len(got))
	}
}

// Invariant 4: in LoopSingle, N successive MoveToNext calls leave
// current unchanged.
func TestInvariantLoopSingleStaysOnCurrent(t *testing.T) {
	q, _ := newTestQueue(t)
	addSongs(t, q, "a", "b", "c")
	q.CyclePlaybackMode() // -> LoopQueue
	q.CyclePlaybackMode() // -> LoopSingle
	if q.Mode() != model.LoopSingle {
		t.Fatalf("mode = %v, want LoopSingle", q.Mode())
	}
	first, _ := q.GetCurrentSong()
	for i := 0; i < 5; i++ {
		if !q.MoveToNext() {
			t.Fatalf("MoveToNext returned false in LoopSingle")
		}
	}
	cur, _ := q.GetCurrentSong()
	if cur.File != first.File {
		t.Fatalf("current changed: %q -> %q", first.File, cur.File)
	}
}

// Invariant 5: in Random mode, MoveToNext then MoveToPrevious returns
// to the previously-current song.
func TestInvariantRandomNextThenPrevReturnsToStart(t *testing.T) {
	q, _ := newTestQueue(t)
	addSongs(t, q, "a", "b", "c", "d", "e")
	for i := 0; i < 3; i++ {
		q.CyclePlaybackMode()
	}
	if q.Mode() != model.Random {
		t.Fatalf("mode = %v, want Random", q.Mode())
	}
	start, _ := q.GetCurrentSong()
	if !q.MoveToNext() {
		t.Fatalf("MoveToNext returned false")
	}
	if !q.MoveToPrevious() {
		t.Fatalf("MoveToPrevious returned false")
	}
	cur, _ := q.GetCurrentSong()
	if cur.File != start.File {
		t.Fatalf("current = %q, want %q (the pre-Next song)", cur.File, start.File)
	}
}

// Scenario 3 (random with history): Next, Next, Prev, Prev undoes both jumps in order.
func TestRandomNextNextPrevPrevUndoesInOrder(t *testing.T) {
	q, _ := newTestQueue(t)
	addSongs(t, q, "a", "b", "c", "d", "e")
	for i := 0; i < 3; i++ {
		q.CyclePlaybackMode()
	}
	start, _ := q.GetCurrentSong()

	q.MoveToNext()
	afterFirstNext, _ := q.GetCurrentSong()
	q.MoveToNext()

	if !q.MoveToPrevious() {
		t.Fatalf("first Prev returned false")
	}
	cur, _ := q.GetCurrentSong()
	if cur.File != afterFirstNext.File {
		t.Fatalf("first Prev = %q, want %q", cur.File, afterFirstNext.File)
	}

	if !q.MoveToPrevious() {
		t.Fatalf("second Prev returned false")
	}
	cur, _ = q.GetCurrentSong()
	if cur.File != start.File {
		t.Fatalf("second Prev = %q, want %q", cur.File, start.File)
	}
}

func TestSequentialAdvanceStopsAtEnd(t *testing.T) {
	q, _ := newTestQueue(t)
	addSongs(t, q, "a", "b")
	if !q.MoveToNext() {
		t.Fatalf("first MoveToNext (a->b) returned false")
	}
	cur, _ := q.GetCurrentSong()
	if cur.File != "b" {
		t.Fatalf("current = %q, want b", cur.File)
	}
	if q.MoveToNext() {
		t.Fatalf("MoveToNext at end of Sequential queue returned true, want false")
	}
}

func TestLoopQueueWrapsAround(t *testing.T) {
	q, _ := newTestQueue(t)
	addSongs(t, q, "a", "b")
	q.CyclePlaybackMode() // LoopQueue
	q.MoveToNext()        // a -> b
	if !q.MoveToNext() {  // b -> wrap to a
		t.Fatalf("MoveToNext wrap returned false")
	}
	cur, _ := q.GetCurrentSong()
	if cur.File != "a" {
		t.Fatalf("current after wrap = %q, want a", cur.File)
	}
}

func TestRandomNextNoOpBelowTwoSongs(t *testing.T) {
	q, _ := newTestQueue(t)
	addSongs(t, q, "a")
	for i := 0; i < 3; i++ {
		q.CyclePlaybackMode()
	}
	if q.MoveToNext() {
		t.Fatalf("MoveToNext with queue len 1 in Random mode returned true, want false (no-op)")
	}
}

func TestRemoveCurrentDoesNotEagerlyReseat(t *testing.T) {
	q, _ := newTestQueue(t)
	addSongs(t, q, "a", "b", "c")
	q.MoveTo("b")
	if err := q.Remove("b"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	// Next GetCurrentSong call re-seats to the queue head (a), per the
	// resolved open question — it is not re-seated eagerly by Remove.
	cur, ok := q.GetCurrentSong()
	if !ok {
		t.Fatalf("GetCurrentSong not ok after removing current")
	}
	if cur.File != "a" {
		t.Fatalf("current = %q, want a (re-seated to head)", cur.File)
	}
}

func TestByFolderDynamicPlaylist(t *testing.T) {
	q, md := newTestQueue(t)
	md.songs["rock/one.flac"] = model.Song{File: "rock/one.flac"}
	md.songs["rock/two.flac"] = model.Song{File: "rock/two.flac"}
	md.songs["jazz/three.flac"] = model.Song{File: "jazz/three.flac"}

	if err := q.LoadPlaylistInQueue(model.ByFolderPrefix+"rock", 1); err != nil {
		t.Fatalf("LoadPlaylistInQueue: %v", err)
	}
	songs := q.GetAllSongs()
	if len(songs) != 2 {
		t.Fatalf("queue len = %d, want 2", len(songs))
	}
}
