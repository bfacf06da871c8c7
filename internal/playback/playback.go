// Package playback implements the playback engine (component F of the
// core spec): per-track source resolution, decode, DSP, and output,
// driven by four cross-goroutine control signals and grounded on the
// original implementation's rsp::play module, adapted from its
// Symphonia demux/decode loop to github.com/gopxl/beep's decoder and
// speaker packages.
package playback

import "fmt"

// Outcome is the terminal result of one PlayTrack call, matching
// spec.md §4.F step 7's two return states. A failed open/probe (step
// 2/3) is reported as an error instead, per the track-level error
// handling section.
type Outcome int

const (
	// Finished means the stream decoded to exhaustion; the queue
	// driver should advance per the playback mode.
	Finished Outcome = iota
	// Stopped means running was cleared mid-track, either by an
	// explicit Stop or because the engine itself gave up.
	Stopped
)

func (o Outcome) String() string {
	if o == Finished {
		return "Finished"
	}
	return "Stopped"
}

func extensionOf(file string) string {
	for i := len(file) - 1; i >= 0; i-- {
		if file[i] == '.' {
			return file[i+1:]
		}
		if file[i] == '/' {
			break
		}
	}
	return ""
}

// unsupportedFormatError is returned by decodeByExtension for an extension
// none of the wired decoders recognise.
type unsupportedFormatError struct{ ext string }

func (e unsupportedFormatError) Error() string {
	return fmt.Sprintf("playback: unsupported format %q", e.ext)
}
