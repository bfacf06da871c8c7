package playback

import (
	"io"
	"strings"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
)

// decodeByExtension probes r and builds a decoder, dispatching on the
// container extension the way the reference implementation's
// Hint::with_extension steers Symphonia's probe. Streams with no
// recognisable extension (bare radio URLs) default to mp3, the most
// common internet-radio container.
func decodeByExtension(r io.ReadCloser, ext string) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(ext) {
	case "flac":
		return flac.Decode(r)
	case "wav":
		return wav.Decode(r)
	case "ogg", "oga":
		return vorbis.Decode(r)
	case "mp3", "":
		return mp3.Decode(r)
	default:
		return nil, beep.Format{}, unsupportedFormatError{ext: ext}
	}
}
