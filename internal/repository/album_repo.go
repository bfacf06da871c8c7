package repository

import (
	"sort"
	"strings"

	"github.com/kallax-audio/audiocore/internal/kvstore"
	"github.com/kallax-audio/audiocore/internal/model"
)

// AlbumRepository is the album tree's typed view, keyed by album title.
type AlbumRepository struct {
	tree *kvstore.Tree
}

func NewAlbumRepository(tree *kvstore.Tree) *AlbumRepository {
	return &AlbumRepository{tree: tree}
}

func (r *AlbumRepository) FindByID(title string) (model.Album, bool) {
	b, ok := r.tree.Get([]byte(title))
	if !ok {
		return model.Album{}, false
	}
	return model.AlbumFromBytes(b)
}

func (r *AlbumRepository) Save(a model.Album) error {
	b, err := a.Bytes()
	if err != nil {
		return err
	}
	return r.tree.Put([]byte(a.Title), b)
}

func (r *AlbumRepository) Delete(title string) error { return r.tree.Delete([]byte(title)) }
func (r *AlbumRepository) DeleteAll() error           { return r.tree.DeleteAll() }

func (r *AlbumRepository) GetAllIterator() []model.Album {
	entries := r.tree.All()
	out := make([]model.Album, 0, len(entries))
	for _, e := range entries {
		if a, ok := model.AlbumFromBytes(e.Value); ok {
			out = append(out, a)
		}
	}
	return out
}

// FindByArtist returns every album whose Artist field equals name.
func (r *AlbumRepository) FindByArtist(name string) []model.Album {
	var out []model.Album
	for _, a := range r.GetAllIterator() {
		if a.Artist == name {
			out = append(out, a)
		}
	}
	return out
}

// FindAllAlbumArtists returns the deduplicated, ascending list of every
// album's Artist field.
func (r *AlbumRepository) FindAllAlbumArtists() []string {
	seen := map[string]bool{}
	for _, a := range r.GetAllIterator() {
		if a.Artist != "" {
			seen[a.Artist] = true
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// FindAllSortByAddedDesc returns up to limit albums, newest AddedAt first.
func (r *AlbumRepository) FindAllSortByAddedDesc(limit int) []model.Album {
	all := r.GetAllIterator()
	sort.Slice(all, func(i, j int) bool { return all[i].AddedAt > all[j].AddedAt })
	return truncate(all, limit)
}

// FindAllSortByReleasedDesc returns up to limit albums, newest Released
// first. Albums with no Released date sort last.
func (r *AlbumRepository) FindAllSortByReleasedDesc(limit int) []model.Album {
	all := r.GetAllIterator()
	sort.Slice(all, func(i, j int) bool {
		if all[i].Released == "" {
			return false
		}
		if all[j].Released == "" {
			return true
		}
		return all[i].Released > all[j].Released
	})
	return truncate(all, limit)
}

// UpdateFromSong loads the song's album (creating it if absent), merges
// the song into it, and saves it back — the typed wrapper over
// Album.UpdateFromSong that the scanner calls per added file.
func (r *AlbumRepository) UpdateFromSong(s model.Song) error {
	if s.Album == "" {
		return nil
	}
	a, ok := r.FindByID(s.Album)
	if !ok {
		a = model.Album{Title: s.Album}
	}
	a.UpdateFromSong(s)
	return r.Save(a)
}

// FilterStaleSongKeys returns a's SongKeys with any entry removed that
// no longer resolves to an existing song, tolerating deletions per the
// album invariant in the data model.
func (r *AlbumRepository) FilterStaleSongKeys(a model.Album, songs *SongRepository) []string {
	out := make([]string, 0, len(a.SongKeys))
	for _, key := range a.SongKeys {
		if _, ok := songs.FindByID(key); ok {
			out = append(out, key)
		}
	}
	return out
}

func truncate(albums []model.Album, limit int) []model.Album {
	if limit <= 0 || limit > len(albums) {
		limit = len(albums)
	}
	return albums[:limit]
}

// FolderOf returns the path component at the given zero-based depth,
// used by the by_folder dynamic playlist generator (depth is a
// configuration parameter per the resolved open question in SPEC_FULL.md).
func FolderOf(file string, depth int) string {
	parts := strings.Split(file, "/")
	if depth < 0 || depth >= len(parts) {
		return ""
	}
	return parts[depth]
}
