package playback

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kallax-audio/audiocore/internal/events"
	"github.com/kallax-audio/audiocore/internal/icy"
	"github.com/kallax-audio/audiocore/internal/model"
)

// openSource implements spec.md §4.F step 2: a filesystem path opens
// directly; anything else is treated as an HTTP GET, wrapped in the
// ICY metadata reader (§4.C) when the response carries icy-metaint.
func openSource(ctx context.Context, client *http.Client, bus *events.Bus, song model.Song, musicDir string) (io.ReadCloser, bool, error) {
	if !strings.HasPrefix(song.File, "http://") && !strings.HasPrefix(song.File, "https://") {
		path := filepath.Join(musicDir, filepath.FromSlash(song.File))
		f, err := os.Open(path)
		if err != nil {
			return nil, false, err
		}
		return f, false, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, song.File, nil)
	if err != nil {
		return nil, true, err
	}
	req.Header.Set("Icy-MetaData", "1")

	resp, err := client.Do(req)
	if err != nil {
		return nil, true, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, true, fmt.Errorf("playback: stream returned status %d", resp.StatusCode)
	}

	station := icy.ProbeStation(resp)
	station.URL = song.File

	metaint, _ := strconv.Atoi(resp.Header.Get("icy-metaint"))
	if metaint <= 0 {
		return resp.Body, true, nil
	}

	return icyBody{
		ReadCloser: resp.Body,
		Reader:     icy.NewMetadataReader(resp.Body, metaint, bus, station),
	}, true, nil
}

// icyBody adapts icy.NewMetadataReader's plain io.Reader back to an
// io.ReadCloser by keeping the original response body around to close.
type icyBody struct {
	io.ReadCloser
	Reader io.Reader
}

func (b icyBody) Read(p []byte) (int, error) { return b.Reader.Read(p) }
