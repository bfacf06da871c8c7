// Package repository exposes typed CRUD and scan operations over the
// metadata store's song and album trees (component A of the core spec).
package repository

import (
	"strings"

	"github.com/kallax-audio/audiocore/internal/kvstore"
	"github.com/kallax-audio/audiocore/internal/model"
)

// SongRepository is the song tree's typed view.
type SongRepository struct {
	tree *kvstore.Tree
}

// NewSongRepository wraps the given tree (normally store.Tree("songs")).
func NewSongRepository(tree *kvstore.Tree) *SongRepository {
	return &SongRepository{tree: tree}
}

// FindByID returns the song keyed by the (escaped) file path.
func (r *SongRepository) FindByID(key string) (model.Song, bool) {
	b, ok := r.tree.Get([]byte(kvstore.EscapePathKey(key)))
	if !ok {
		return model.Song{}, false
	}
	return model.SongFromBytes(b)
}

// FindByKeyPrefix returns every song whose (unescaped) key starts with
// prefix, e.g. all songs directly or transitively under a folder.
func (r *SongRepository) FindByKeyPrefix(prefix string) []model.Song {
	entries := r.tree.PrefixScan([]byte(kvstore.EscapePathKey(prefix)))
	out := make([]model.Song, 0, len(entries))
	for _, e := range entries {
		if s, ok := model.SongFromBytes(e.Value); ok {
			out = append(out, s)
		}
	}
	return out
}

// FindByKeyContains linearly scans for songs whose key contains substr.
func (r *SongRepository) FindByKeyContains(substr string) []model.Song {
	var out []model.Song
	for _, e := range r.tree.All() {
		if strings.Contains(kvstore.UnescapePathKey(string(e.Key)), substr) {
			if s, ok := model.SongFromBytes(e.Value); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

// Save upserts the song.
func (r *SongRepository) Save(s model.Song) error {
	b, err := s.Bytes()
	if err != nil {
		return err
	}
	return r.tree.Put([]byte(kvstore.EscapePathKey(s.File)), b)
}

// Delete removes the song keyed by key.
func (r *SongRepository) Delete(key string) error {
	return r.tree.Delete([]byte(kvstore.EscapePathKey(key)))
}

// DeleteAll empties the song tree, used by a full rescan.
func (r *SongRepository) DeleteAll() error { return r.tree.DeleteAll() }

// AllKeys returns every (unescaped) key currently in the store, used by
// the scanner's diff against the filesystem walk.
func (r *SongRepository) AllKeys() []string {
	entries := r.tree.All()
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, kvstore.UnescapePathKey(string(e.Key)))
	}
	return out
}

// GetAllIterator returns every song as a slice.
// Real "lazy sequence" semantics aren't needed at this corpus's scale;
// tree.All materialises the whole tree once per call, matching the design note's
// advice to avoid this only when a prefix/filter suffices (see
// FindByKeyPrefix above for the narrower path).
func (r *SongRepository) GetAllIterator() []model.Song {
	entries := r.tree.All()
	out := make([]model.Song, 0, len(entries))
	for _, e := range entries {
		if s, ok := model.SongFromBytes(e.Value); ok {
			out = append(out, s)
		}
	}
	return out
}

// Flush fsyncs the underlying store.
func (r *SongRepository) Flush() error { return r.tree.Flush() }
