// Package icy implements the ICY (SHOCKcast/Icecast) metadata reader
// wrapped around an HTTP audio stream body (component C of the core
// spec): station descriptor probing from response headers, inline
// StreamTitle metadata parsing, and two vendor sidecar "now playing"
// provider adapters.
package icy

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/kallax-audio/audiocore/internal/model"
)

// ProbeStation builds a RadioStation descriptor from an HTTP response's
// ICY headers (icy-name/-description/-genre/-url, ice-audio-info), then
// asks the provider registry to fill in name/description/artwork from a
// vendor sidecar API when the Server header matches a known provider.
func ProbeStation(resp *http.Response) model.RadioStation {
	station := model.RadioStation{
		Name:        resp.Header.Get("icy-name"),
		Description: resp.Header.Get("icy-description"),
		Genre:       resp.Header.Get("icy-genre"),
		URL:         resp.Header.Get("icy-url"),
	}
	if station.URL == "" {
		station.URL = resp.Request.URL.String()
	}
	parseAudioInfo(resp.Header.Get("ice-audio-info"), &station)

	server := resp.Header.Get("Server")
	if p := matchProvider(server); p != nil {
		p.Enrich(resp.Request.URL.String(), &station)
	}
	if key := resp.Header.Get("x-quantumcast-channelkey"); key != "" && strings.HasPrefix(server, "QuantumCast Streamer") {
		EnrichWithChannelKey(key, &station)
	}
	return station
}

// parseAudioInfo parses the "ice-audio-info" header's
// "samplerate=44100;channels=2;bitrate=128" shape.
func parseAudioInfo(header string, station *model.RadioStation) {
	for _, part := range strings.Split(header, ";") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		n, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		switch key {
		case "samplerate":
			station.SampleRate = n
		case "channels":
			station.Channels = n
		case "bitrate":
			station.BitrateKbps = n
		}
	}
}
