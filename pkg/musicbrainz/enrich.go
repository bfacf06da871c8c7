package musicbrainz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
)

// TrackEnrichment holds the MusicBrainz recording metadata EnrichTrack
// finds: its recording MBID, ISRC, and genre tags. The scanner copies
// only the first genre into a Song.
type TrackEnrichment struct {
	RecordingMbid string
	Isrc          string
	Genres        []string
}

// minRecordingScore is the lowest MusicBrainz search confidence score
// (0-100) EnrichTrack accepts before treating a match as unreliable.
const minRecordingScore = 80

// EnrichTrack looks up title/artistName on MusicBrainz's recording
// search, accepts the top hit only at or above minRecordingScore, and fetches
// its full detail for genres and ISRC. Returns (nil, nil) when nothing
// matches closely enough.
func (c *Client) EnrichTrack(ctx context.Context, title, artistName string) (*TrackEnrichment, error) {
	hits, err := c.SearchRecording(ctx, title, artistName)
	if err != nil {
		return nil, err
	}
	if len(hits.Recordings) == 0 {
		slog.Debug("musicbrainz: no recording results", "title", title, "artist", artistName)
		return nil, nil
	}

	top := hits.Recordings[0]
	if top.Score < minRecordingScore {
		slog.Debug("musicbrainz: recording score too low", "title", title, "score", top.Score, "match", top.Title)
		return nil, nil
	}

	detail, err := c.GetRecording(ctx, top.ID)
	if err != nil {
		slog.Warn("musicbrainz: failed to get recording detail", "mbid", top.ID, "err", err)
		detail = &top
	}

	enrichment := &TrackEnrichment{
		RecordingMbid: detail.ID,
		Genres:        genreNames(detail.Genres, detail.Tags),
	}
	if len(detail.ISRCs) > 0 {
		enrichment.Isrc = detail.ISRCs[0]
	}

	slog.Info("musicbrainz: enriched track", "title", title, "artist", artistName, "mbid", detail.ID)
	return enrichment, nil
}

// genreNames prefers MusicBrainz's curated genres and falls back to
// user-submitted tags that look genre-like when there are none.
func genreNames(genres []MBGenre, tags []MBTag) []string {
	if len(genres) > 0 {
		names := make([]string, 0, len(genres))
		for _, g := range genres {
			if g.Name != "" {
				names = append(names, g.Name)
			}
		}
		if len(names) > 0 {
			return names
		}
	}
	names := make([]string, 0)
	for _, t := range tags {
		if t.Count > 0 && looksLikeGenre(t.Name) {
			names = append(names, t.Name)
		}
	}
	return names
}

// looksLikeGenre reports whether name is lowercase with only hyphens or
// spaces beyond letters/digits, the shape MusicBrainz tags use for genres.
func looksLikeGenre(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == ' ' {
			continue
		}
		return false
	}
	return true
}

// GenreID returns a deterministic, storage-friendly ID for a genre name.
func GenreID(name string) string {
	h := sha256.Sum256([]byte("genre:" + strings.ToLower(name)))
	return hex.EncodeToString(h[:8])
}
