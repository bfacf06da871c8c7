package model

import "encoding/json"

// Album is identified by its title. Invariant: every entry in SongKeys
// must resolve to an existing song, unless the song was deleted — stale
// keys are tolerated and filtered out at read time by the repository.
type Album struct {
	Title     string   `json:"title"`
	Artist    string   `json:"artist,omitempty"`
	Released  string   `json:"released,omitempty"`   // RFC3339 date, YYYY-MM-DD or YYYY
	AddedAt   int64    `json:"added_at"`             // unix seconds, set on first creation
	Genre     string   `json:"genre,omitempty"`
	Label     string   `json:"label,omitempty"`
	ArtworkID string   `json:"artwork_id,omitempty"`
	SongKeys  []string `json:"song_keys,omitempty"`
}

// ID returns the album's primary key, its title.
func (a Album) ID() string { return a.Title }

func (a Album) Bytes() ([]byte, error) { return json.Marshal(a) }

func AlbumFromBytes(b []byte) (Album, bool) {
	var a Album
	if err := json.Unmarshal(b, &a); err != nil {
		return Album{}, false
	}
	return a, true
}

// UpdateFromSong merges a song's fields into the album: appends
// song.File to SongKeys if not already present, refreshes artwork and
// release date when the song carries them, and prefers AlbumArtist over
// Artist when both are present.
func (a *Album) UpdateFromSong(s Song) {
	if a.Title == "" {
		a.Title = s.Album
	}
	if a.AddedAt == 0 {
		a.AddedAt = s.ModifiedAt
	}
	artist := s.Artist
	if s.AlbumArtist != "" {
		artist = s.AlbumArtist
	}
	if artist != "" {
		a.Artist = artist
	}
	if s.Genre != "" && a.Genre == "" {
		a.Genre = s.Genre
	}
	if s.Label != "" && a.Label == "" {
		a.Label = s.Label
	}
	if s.ArtworkID != "" {
		a.ArtworkID = s.ArtworkID
	}
	if rel, ok := NormalizeReleaseDate(s.Date); ok {
		a.Released = rel
	}
	for _, key := range a.SongKeys {
		if key == s.File {
			return
		}
	}
	a.SongKeys = append(a.SongKeys, s.File)
}
