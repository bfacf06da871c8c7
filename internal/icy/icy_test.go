package icy

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kallax-audio/audiocore/internal/events"
	"github.com/kallax-audio/audiocore/internal/model"
)

func metadataBlock(title string) []byte {
	payload := "StreamTitle='" + title + "';"
	for len(payload)%16 != 0 {
		payload += "\x00"
	}
	lenByte := byte(len(payload) / 16)
	return append([]byte{lenByte}, payload...)
}

func TestMetadataReaderParsesTitleAndPublishes(t *testing.T) {
	const metaint = 4
	var stream bytes.Buffer
	stream.WriteString("AUDI") // one metaint-sized audio chunk
	stream.Write(metadataBlock("The Beatles - Strawberry Fields Forever"))
	stream.WriteString("MORE") // second chunk, no more metadata (empty block)
	stream.Write([]byte{0})

	bus := events.NewBus()
	sub := bus.Subscribe()
	defer sub.Close()

	r := NewMetadataReader(&stream, metaint, bus, model.RadioStation{URL: "http://stream.example/radio"})
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(out) != "AUDIMORE" {
		t.Fatalf("audio = %q, want AUDIMORE", out)
	}

	select {
	case ev := <-sub.C:
		if ev.Kind != events.CurrentSongEvent {
			t.Fatalf("event kind = %v, want CurrentSongEvent", ev.Kind)
		}
		if ev.CurrentSong.Artist != "The Beatles" || ev.CurrentSong.Title != "Strawberry Fields Forever" {
			t.Fatalf("song = %+v", ev.CurrentSong)
		}
	default:
		t.Fatalf("no event published")
	}
}

func TestMetadataReaderSkipsUnchangedTitle(t *testing.T) {
	const metaint = 4
	var stream bytes.Buffer
	stream.WriteString("AUDI")
	stream.Write(metadataBlock("Same Title"))
	stream.WriteString("MORE")
	stream.Write(metadataBlock("Same Title"))
	stream.WriteString("MORE")
	stream.Write([]byte{0})

	bus := events.NewBus()
	sub := bus.Subscribe()
	defer sub.Close()

	r := NewMetadataReader(&stream, metaint, bus, model.RadioStation{})
	if _, err := io.ReadAll(r); err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	count := 0
	for {
		select {
		case <-sub.C:
			count++
		default:
			if count != 1 {
				t.Fatalf("published %d times, want 1 (unchanged title suppressed)", count)
			}
			return
		}
	}
}

func TestProbeStationParsesIcyHeadersAndAudioInfo(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://stream.example/radio", nil)
	resp := &http.Response{
		Header:  http.Header{},
		Request: req,
	}
	resp.Header.Set("icy-name", "Example FM")
	resp.Header.Set("icy-genre", "Jazz")
	resp.Header.Set("ice-audio-info", "samplerate=44100;channels=2;bitrate=128")

	station := ProbeStation(resp)
	if station.Name != "Example FM" || station.Genre != "Jazz" {
		t.Fatalf("station = %+v", station)
	}
	if station.SampleRate != 44100 || station.Channels != 2 || station.BitrateKbps != 128 {
		t.Fatalf("audio info not parsed: %+v", station)
	}
}
