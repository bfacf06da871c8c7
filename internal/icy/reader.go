package icy

import (
	"bytes"
	"io"
	"strings"

	"github.com/kallax-audio/audiocore/internal/events"
	"github.com/kallax-audio/audiocore/internal/model"
)

// MetadataReader wraps an ICY audio stream body, stripping and parsing
// the inline StreamTitle metadata blocks interleaved every metaint
// bytes, and publishing a CurrentSong event to bus whenever the title
// changes. Grounded line-for-line on the reference IcyMetadataReader.
type MetadataReader struct {
	inner     io.Reader
	metaint   int
	remaining int
	bus       *events.Bus
	station   model.RadioStation
	lastTitle string
}

// NewMetadataReader wraps inner, whose StreamTitle blocks recur every
// metaint bytes of audio (the value of the icy-metaint response
// header). station seeds the synthesized Song's album/genre/image_url
// fallback fields for every parsed title.
func NewMetadataReader(inner io.Reader, metaint int, bus *events.Bus, station model.RadioStation) *MetadataReader {
	return &MetadataReader{inner: inner, metaint: metaint, remaining: metaint, bus: bus, station: station}
}

// Read implements io.Reader, transparently consuming and parsing
// metadata blocks as they're encountered, yielding only audio bytes to
// the caller.
func (r *MetadataReader) Read(buf []byte) (int, error) {
	if r.remaining == 0 {
		if err := r.parseMetadata(); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return 0, io.EOF
			}
			return 0, err
		}
	}

	readLen := len(buf)
	if r.remaining < readLen {
		readLen = r.remaining
	}
	n, err := r.inner.Read(buf[:readLen])
	if n == 0 {
		return 0, io.EOF
	}
	r.remaining -= n
	return n, err
}

func (r *MetadataReader) parseMetadata() error {
	var lenByte [1]byte
	if _, err := io.ReadFull(r.inner, lenByte[:]); err != nil {
		return err
	}
	length := int(lenByte[0]) * 16

	if length > 0 {
		block := make([]byte, length)
		if _, err := io.ReadFull(r.inner, block); err != nil {
			return err
		}
		r.handleMetadataBlock(block)
	}
	r.remaining = r.metaint
	return nil
}

func (r *MetadataReader) handleMetadataBlock(block []byte) {
	text := string(bytes.TrimRight(block, "\x00"))
	title, ok := extractStreamTitle(text)
	if !ok || title == "" || title == r.lastTitle {
		return
	}
	r.lastTitle = title

	var artist, songTitle string
	if a, t, found := strings.Cut(title, " - "); found {
		artist, songTitle = a, t
	} else {
		songTitle = title
	}

	if r.bus != nil {
		r.bus.Publish(events.NewCurrentSong(model.Song{
			File:     r.station.URL,
			Title:    songTitle,
			Artist:   artist,
			Album:    r.station.AlbumFallback(),
			Genre:    r.station.Genre,
			ImageURL: r.station.ImageURL,
		}))
	}
}

// extractStreamTitle pulls the value out of "...StreamTitle='X';...".
func extractStreamTitle(metadata string) (string, bool) {
	_, rest, found := strings.Cut(metadata, "StreamTitle='")
	if !found {
		return "", false
	}
	title, _, found := strings.Cut(rest, "';")
	return title, found
}
