package scanner

import (
	"bytes"
	"encoding/binary"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
	"github.com/kallax-audio/audiocore/internal/model"
)

// defaultProbe decodes path's tags via dhowden/tag (codec-agnostic:
// it sniffs ID3/FLAC/OGG/MP4 containers itself) plus a best-effort
// container-level duration read, and returns the embedded picture
// bytes separately so the caller decides whether/how to persist them.
func defaultProbe(path string, modifiedAt int64) (model.Song, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Song{}, nil, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return model.Song{}, nil, err
	}

	track, _ := m.Track()
	disc, _ := m.Disc()

	song := model.Song{
		Title:       m.Title(),
		Artist:      m.Artist(),
		Album:       m.Album(),
		AlbumArtist: m.AlbumArtist(),
		Genre:       m.Genre(),
		Composer:    m.Composer(),
		Track:       track,
		Disc:        disc,
		ModifiedAt:  modifiedAt,
	}
	if y := m.Year(); y > 0 {
		song.Date = strconv.Itoa(y)
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if secs := probeDuration(f, ext); secs > 0 {
		song.Duration = secs
	}

	var picture []byte
	if pic := m.Picture(); pic != nil {
		picture = pic.Data
	}

	return song, picture, nil
}

// probeDuration reads just enough of the container header to compute a
// duration in whole seconds, without fully decoding audio. f is
// already open and positioned arbitrarily (tag.ReadFrom may have
// consumed it); the read always starts by seeking back to 0.
// Supports FLAC (STREAMINFO) and canonical PCM WAV; other formats
// return 0, which the scanner leaves unset rather than guessing.
func probeDuration(f *os.File, ext string) int {
	switch ext {
	case "flac":
		return flacDurationSecs(f)
	case "wav":
		return wavDurationSecs(f)
	}
	return 0
}

// flacDurationSecs reads the FLAC STREAMINFO block: 4-byte "fLaC"
// marker + 4-byte block header + 34-byte STREAMINFO payload.
func flacDurationSecs(f *os.File) int {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0
	}
	buf := make([]byte, 42)
	if _, err := io.ReadFull(f, buf); err != nil {
		return 0
	}
	if string(buf[0:4]) != "fLaC" || buf[4]&0x7F != 0 {
		return 0
	}
	if binary.BigEndian.Uint32([]byte{0, buf[5], buf[6], buf[7]}) != 34 {
		return 0
	}
	si := buf[8:] // 34-byte STREAMINFO payload
	sampleRate := int(uint32(si[10])<<12 | uint32(si[11])<<4 | uint32(si[12])>>4)
	totalSamples := int64(si[13]&0x0F)<<32 |
		int64(si[14])<<24 | int64(si[15])<<16 |
		int64(si[16])<<8 | int64(si[17])
	if sampleRate <= 0 || totalSamples <= 0 {
		return 0
	}
	return int(totalSamples / int64(sampleRate))
}

// wavDurationSecs reads a canonical RIFF/WAVE "fmt " chunk for byte
// rate and the "data" chunk's declared size to compute duration
// without decoding any samples.
func wavDurationSecs(f *os.File) int {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0
	}
	header := make([]byte, 12)
	if _, err := io.ReadFull(f, header); err != nil {
		return 0
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return 0
	}

	var byteRate uint32
	var dataSize uint32
	chunkHeader := make([]byte, 8)
	for {
		if _, err := io.ReadFull(f, chunkHeader); err != nil {
			break
		}
		id := string(chunkHeader[0:4])
		size := binary.LittleEndian.Uint32(chunkHeader[4:8])
		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(f, body); err != nil {
				return 0
			}
			if len(body) >= 16 {
				byteRate = binary.LittleEndian.Uint32(body[8:12])
			}
		case "data":
			dataSize = size
			if byteRate > 0 {
				return int(dataSize / byteRate)
			}
			if _, err := f.Seek(int64(size), io.SeekCurrent); err != nil {
				return 0
			}
		default:
			if _, err := f.Seek(int64(size), io.SeekCurrent); err != nil {
				return 0
			}
		}
	}
	if byteRate == 0 {
		return 0
	}
	return int(dataSize / byteRate)
}

// bestFolderImage scans dir for image files and returns the bytes of
// the one closest to square (the conventional album-art heuristic),
// used as the artwork fallback when a track has no embedded picture.
func bestFolderImage(dir string) []byte {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var bestData []byte
	bestDelta := int(^uint(0) >> 1)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		if !strings.HasSuffix(name, ".jpg") && !strings.HasSuffix(name, ".jpeg") && !strings.HasSuffix(name, ".png") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil || len(b) == 0 {
			continue
		}
		img, _, err := image.Decode(bytes.NewReader(b))
		if err != nil {
			continue
		}
		w, h := img.Bounds().Dx(), img.Bounds().Dy()
		delta := w - h
		if delta < 0 {
			delta = -delta
		}
		if delta < bestDelta {
			bestDelta = delta
			bestData = b
		}
	}
	return bestData
}
