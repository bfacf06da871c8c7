package kvstore

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestTreeBasicCRUD(t *testing.T) {
	s := openTestStore(t)
	tr, err := s.Tree("songs")
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if err := tr.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v, ok := tr.Get([]byte("a"))
	if !ok || string(v) != "1" {
		t.Fatalf("Get = %q, %v, want 1, true", v, ok)
	}
	if err := tr.Delete([]byte("a")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := tr.Get([]byte("a")); ok {
		t.Fatalf("Get after delete still found")
	}
}

func TestTreeOrderedScans(t *testing.T) {
	s := openTestStore(t)
	tr, _ := s.Tree("queue")
	for _, k := range []string{"a", "b", "c", "d"} {
		_ = tr.Put([]byte(k), []byte(k))
	}

	if e, ok := tr.NextAfter([]byte("b")); !ok || string(e.Key) != "c" {
		t.Fatalf("NextAfter(b) = %+v, %v, want c", e, ok)
	}
	if e, ok := tr.PrevBefore([]byte("c")); !ok || string(e.Key) != "b" {
		t.Fatalf("PrevBefore(c) = %+v, %v, want b", e, ok)
	}
	if _, ok := tr.NextAfter([]byte("d")); ok {
		t.Fatalf("NextAfter(d) found an entry, want none")
	}
	if _, ok := tr.PrevBefore([]byte("a")); ok {
		t.Fatalf("PrevBefore(a) found an entry, want none")
	}
}

func TestTreePrefixScan(t *testing.T) {
	s := openTestStore(t)
	tr, _ := s.Tree("songs")
	keys := []string{"rock/a", "rock/b", "jazz/c"}
	for _, k := range keys {
		_ = tr.Put([]byte(k), []byte(k))
	}
	got := tr.PrefixScan([]byte("rock/"))
	if len(got) != 2 {
		t.Fatalf("PrefixScan(rock/) returned %d entries, want 2", len(got))
	}
}

func TestUint64KeyOrderPreserving(t *testing.T) {
	s := openTestStore(t)
	tr, _ := s.Tree("queue")
	ids := []uint64{1, 2, 300, 4}
	for _, id := range ids {
		_ = tr.Put(Uint64Key(id), []byte("x"))
	}
	all := tr.All()
	if len(all) != 4 {
		t.Fatalf("All returned %d entries, want 4", len(all))
	}
	prev := uint64(0)
	for _, e := range all {
		n := Uint64FromKey(e.Key)
		if n < prev {
			t.Fatalf("keys out of numeric order: %d before %d", prev, n)
		}
		prev = n
	}
}

func TestPathKeyEscapeRoundTrip(t *testing.T) {
	cases := []string{
		"music/rock/song.flac",
		"a/b/c/d.mp3",
		"no-slashes.wav",
		"music/with\x01control/song.mp3",
	}
	for _, p := range cases {
		got := UnescapePathKey(EscapePathKey(p))
		if got != p {
			t.Errorf("round-trip(%q) = %q", p, got)
		}
	}
}

func TestPathKeyPrefixListsImmediateChildren(t *testing.T) {
	s := openTestStore(t)
	tr, _ := s.Tree("songs")
	paths := []string{
		"rock/a.flac",
		"rock/b.flac",
		"rock/sub/c.flac",
		"jazz/d.flac",
	}
	for _, p := range paths {
		_ = tr.Put([]byte(EscapePathKey(p)), []byte(p))
	}
	got := tr.PrefixScan([]byte(EscapePathKey("rock/")))
	if len(got) != 3 {
		t.Fatalf("prefix scan under rock/ returned %d, want 3 (a, b, sub/c)", len(got))
	}
}
