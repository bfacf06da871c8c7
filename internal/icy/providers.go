package icy

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kallax-audio/audiocore/internal/model"
)

// Provider enriches a station descriptor by calling a vendor's sidecar
// "now playing" API once the stream's Server header identifies it.
type Provider interface {
	Enrich(streamURL string, station *model.RadioStation)
}

var httpClient = &http.Client{Timeout: 5 * time.Second}

// matchProvider returns the registered provider for server: an exact
// "radiosphere" Server header, or one starting with "QuantumCast
// Streamer". It returns nil if neither matches.
func matchProvider(server string) Provider {
	switch {
	case server == "radiosphere":
		return radiosphereProvider{}
	case strings.HasPrefix(server, "QuantumCast Streamer"):
		return quantumCastProvider{}
	default:
		return nil
	}
}

// radiosphereProvider mirrors the reference implementation's
// radiosphere API pair: a current-track endpoint for name, and a
// channel endpoint for description/cover art.
type radiosphereProvider struct{}

func (radiosphereProvider) Enrich(streamURL string, station *model.RadioStation) {
	channelID, source, ok := parseRadiosphereURL(streamURL)
	if !ok {
		return
	}
	if body, err := getJSON(fmt.Sprintf("https://%s/channels/%s/current-track", source, channelID)); err == nil {
		var payload struct {
			TrackInfo struct {
				Title          string `json:"title"`
				ArtistCredits  string `json:"artistCredits"`
			} `json:"trackInfo"`
		}
		if json.Unmarshal(body, &payload) == nil && (payload.TrackInfo.Title != "" || payload.TrackInfo.ArtistCredits != "") {
			station.Name = strings.TrimSpace(payload.TrackInfo.ArtistCredits + " - " + payload.TrackInfo.Title)
		}
	}
	if body, err := getJSON(fmt.Sprintf("https://%s/channels/%s/", source, channelID)); err == nil {
		var payload struct {
			Title          string `json:"title"`
			CoverImageURL  string `json:"coverImageUrl"`
		}
		if json.Unmarshal(body, &payload) == nil {
			station.ImageURL = payload.CoverImageURL
			station.Description = joinNonEmpty(capitalize(strings.SplitN(source, ".", 2)[0]), payload.Title)
		}
	}
}

// quantumCastProvider mirrors the reference implementation's
// QuantumCast metadata channel API.
type quantumCastProvider struct{}

func (quantumCastProvider) Enrich(streamURL string, station *model.RadioStation) {
	// The channel key arrives as a response header
	// (x-quantumcast-channelkey), not in the stream URL, so this is a
	// no-op; ProbeStation reads that header and calls
	// EnrichWithChannelKey itself.
	_ = streamURL
}

// EnrichWithChannelKey performs the QuantumCast sidecar lookup given the
// x-quantumcast-channelkey header value, since (unlike radiosphere) the
// channel id isn't derivable from the stream URL alone.
func EnrichWithChannelKey(channelKey string, station *model.RadioStation) {
	body, err := getJSON(fmt.Sprintf("https://api.streamabc.net/metadata/channel/%s.json", channelKey))
	if err != nil {
		return
	}
	var payload struct {
		Song    string `json:"song"`
		Artist  string `json:"artist"`
		Cover   string `json:"cover"`
		Channel string `json:"channel"`
		Station string `json:"station"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return
	}
	if payload.Song != "" || payload.Artist != "" {
		station.Name = strings.TrimSpace(payload.Artist + " - " + payload.Song)
	}
	station.ImageURL = payload.Cover
	station.Description = joinNonEmpty(payload.Station, payload.Channel)
}

func joinNonEmpty(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " - ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// parseRadiosphereURL extracts the channel id and upstream source host
// from a stream URL shaped like
// https://.../channels/<id>/...?...&source=<host>&...
func parseRadiosphereURL(streamURL string) (channelID, source string, ok bool) {
	_, rest, found := strings.Cut(streamURL, "/channels/")
	if !found {
		return "", "", false
	}
	channelID = strings.SplitN(rest, "/", 2)[0]

	_, query, found := strings.Cut(streamURL, "?")
	if !found {
		return "", "", false
	}
	for _, pair := range strings.Split(query, "&") {
		key, value, ok := strings.Cut(pair, "=")
		if ok && key == "source" {
			return channelID, value, true
		}
	}
	return "", "", false
}

func getJSON(url string) ([]byte, error) {
	resp, err := httpClient.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("icy: sidecar %s: status %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}
