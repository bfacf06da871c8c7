// Package model defines the core records shared by the metadata store,
// playback queue, and dispatcher: songs, albums, categories, playlists,
// and the small enums describing player/streamer state.
package model

import "encoding/json"

// Song is identified by its relative file path, used as the primary key
// in the metadata store after a reversible escape of path separators
// (see internal/kvstore.EscapePathKey). All fields other than File are optional.
type Song struct {
	File        string            `json:"file"`
	Title       string            `json:"title,omitempty"`
	Artist      string            `json:"artist,omitempty"`
	Album       string            `json:"album,omitempty"`
	AlbumArtist string            `json:"album_artist,omitempty"`
	Date        string            `json:"date,omitempty"`
	Genre       string            `json:"genre,omitempty"`
	Track       int               `json:"track,omitempty"`
	Disc        int               `json:"disc,omitempty"`
	Composer    string            `json:"composer,omitempty"`
	Performer   string            `json:"performer,omitempty"`
	Label       string            `json:"label,omitempty"`
	Duration    int               `json:"duration_secs,omitempty"`
	ModifiedAt  int64             `json:"modified_at,omitempty"` // unix seconds
	ArtworkID   string            `json:"artwork_id,omitempty"`
	ImageURL    string            `json:"image_url,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// ID returns the song's primary key, which is simply its file path.
func (s Song) ID() string { return s.File }

// AllText concatenates the searchable text fields, used by queue search
// filters (e.g. Queue.WithSearchTerm).
func (s Song) AllText() string {
	return s.Title + " " + s.Artist + " " + s.Album + " " + s.Genre
}

// Bytes serializes the song to its KV-store byte representation.
func (s Song) Bytes() ([]byte, error) { return json.Marshal(s) }

// SongFromBytes deserializes a song previously written by Bytes. It
// returns false (rather than an error) on malformed data, mirroring the
// original store's lenient bytes_to_song which skips unreadable entries
// instead of aborting an iteration.
func SongFromBytes(b []byte) (Song, bool) {
	var s Song
	if err := json.Unmarshal(b, &s); err != nil {
		return Song{}, false
	}
	return s, true
}
