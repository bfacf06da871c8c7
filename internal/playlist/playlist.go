// Package playlist implements the saved/dynamic playlist catalogue
// (spec.md §4.G's Playlist::SaveQueueAsPlaylist / QueryPlaylist), and
// satisfies internal/queue's PlaylistSource for named, non-prefixed
// playlist ids.
package playlist

import (
	"encoding/json"
	"sort"

	"github.com/kallax-audio/audiocore/internal/kvstore"
	"github.com/kallax-audio/audiocore/internal/model"
	"github.com/kallax-audio/audiocore/internal/repository"
)

const (
	nameRecentlyAdded = "Recently Added"
	nameLatestRelease = "Latest Release"
	dynamicPageLimit  = 30
)

// Store is the saved-playlist tree's typed view, backed by its own
// tree (normally store.Tree("playlists")), plus read-through access to
// the album/song repositories for the two built-in dynamic playlists.
type Store struct {
	tree   *kvstore.Tree
	songs  *repository.SongRepository
	albums *repository.AlbumRepository
}

func New(tree *kvstore.Tree, songs *repository.SongRepository, albums *repository.AlbumRepository) *Store {
	return &Store{tree: tree, songs: songs, albums: albums}
}

// SaveQueueAsPlaylist snapshots songs as a Saved playlist under name,
// overwriting any existing playlist with that name.
func (s *Store) SaveQueueAsPlaylist(name string, songs []model.Song) error {
	keys := make([]string, 0, len(songs))
	for _, song := range songs {
		keys = append(keys, song.File)
	}
	pl := model.Playlist{Name: name, Kind: model.KindSaved, Songs: keys}
	b, err := json.Marshal(pl)
	if err != nil {
		return err
	}
	return s.tree.Put([]byte(name), b)
}

// DeletePlaylist removes the saved playlist named name.
func (s *Store) DeletePlaylist(name string) error { return s.tree.Delete([]byte(name)) }

// QueryPlaylist returns the full catalogue: every user-saved playlist
// (summary only — song keys are resolved lazily by
// GetPlaylistPageByName), plus the two built-in dynamic playlists.
func (s *Store) QueryPlaylist() []model.Playlist {
	out := make([]model.Playlist, 0, len(s.tree.All())+2)
	for _, e := range s.tree.All() {
		var pl model.Playlist
		if err := json.Unmarshal(e.Value, &pl); err == nil {
			pl.Songs = nil // catalogue view is a summary, not the full song list
			out = append(out, pl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	out = append(out,
		model.Playlist{Name: nameRecentlyAdded, Kind: model.KindDynamic},
		model.Playlist{Name: nameLatestRelease, Kind: model.KindDynamic},
	)
	return out
}

// GetPlaylistPageByName resolves name to a windowed page of songs,
// dispatching to the two built-in dynamic playlists or a saved
// playlist's stored song keys. Unknown names yield an empty page.
func (s *Store) GetPlaylistPageByName(name string, offset, limit int) model.Page {
	switch name {
	case nameRecentlyAdded:
		return s.dynamicAlbumPage(s.albums.FindAllSortByAddedDesc(dynamicPageLimit), offset, limit)
	case nameLatestRelease:
		return s.dynamicAlbumPage(s.albums.FindAllSortByReleasedDesc(dynamicPageLimit), offset, limit)
	default:
		return s.savedPage(name, offset, limit)
	}
}

func (s *Store) dynamicAlbumPage(albums []model.Album, offset, limit int) model.Page {
	var keys []string
	for _, a := range albums {
		keys = append(keys, a.SongKeys...)
	}
	return s.page(keys, offset, limit)
}

func (s *Store) savedPage(name string, offset, limit int) model.Page {
	b, ok := s.tree.Get([]byte(name))
	if !ok {
		return model.Page{Offset: offset, Limit: limit}
	}
	var pl model.Playlist
	if err := json.Unmarshal(b, &pl); err != nil {
		return model.Page{Offset: offset, Limit: limit}
	}
	return s.page(pl.Songs, offset, limit)
}

func (s *Store) page(keys []string, offset, limit int) model.Page {
	total := len(keys)
	if offset < 0 || offset > total {
		offset = 0
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	items := make([]model.Song, 0, end-offset)
	for _, key := range keys[offset:end] {
		if song, ok := s.songs.FindByID(key); ok {
			items = append(items, song)
		}
	}
	return model.Page{Total: total, Offset: offset, Limit: limit, Items: items}
}
