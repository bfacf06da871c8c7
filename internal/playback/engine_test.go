package playback

import (
	"testing"

	"github.com/gopxl/beep"

	"github.com/kallax-audio/audiocore/internal/dsp"
	"github.com/kallax-audio/audiocore/internal/events"
	"github.com/kallax-audio/audiocore/internal/model"
)

// fakeStreamer is a minimal beep.StreamSeekCloser stand-in: a fixed
// number of silent frames, with Seek recording the last requested
// position. Exercises controlledStreamer's control-signal handling
// without a real audio decoder or output device.
type fakeStreamer struct {
	total    int
	position int
	seekErr  error
	lastSeek int
}

func (f *fakeStreamer) Stream(samples [][2]float64) (int, bool) {
	if f.position >= f.total {
		return 0, false
	}
	n := len(samples)
	if remaining := f.total - f.position; n > remaining {
		n = remaining
	}
	f.position += n
	return n, true
}
func (f *fakeStreamer) Err() error          { return nil }
func (f *fakeStreamer) Len() int            { return f.total }
func (f *fakeStreamer) Position() int       { return f.position }
func (f *fakeStreamer) Seek(p int) error {
	f.lastSeek = p
	f.position = p
	return f.seekErr
}
func (f *fakeStreamer) Close() error { return nil }

func newTestEngine() *Engine {
	return &Engine{
		dsp: dsp.NewProcessor(model.DspSettings{}),
		bus: events.NewBus(),
		vu:  NewVUMeter(),
	}
}

func TestControlledStreamerStopsWhenRunningCleared(t *testing.T) {
	e := newTestEngine()
	cs := &controlledStreamer{underlying: &fakeStreamer{total: 1000}, engine: e}

	buf := make([][2]float64, 64)
	e.running.Store(false)
	n, ok := cs.Stream(buf)
	if ok || n != 0 {
		t.Fatalf("Stream with running=false = (%d, %v), want (0, false)", n, ok)
	}
}

func TestControlledStreamerServicesSeekAndClearsSignal(t *testing.T) {
	e := newTestEngine()
	fs := &fakeStreamer{total: 1_000_000}
	cs := &controlledStreamer{underlying: fs, format: beep.Format{SampleRate: beep.SampleRate(44100)}, engine: e}
	e.running.Store(true)

	e.Seek(10)
	buf := make([][2]float64, 64)
	if _, ok := cs.Stream(buf); !ok {
		t.Fatal("Stream returned not-ok")
	}
	if fs.lastSeek != 44100*10 {
		t.Fatalf("lastSeek = %d, want %d", fs.lastSeek, 44100*10)
	}
	if e.skipToTime.Load() != 0 {
		t.Fatal("skipToTime should be cleared after servicing")
	}
}

func TestControlledStreamerYieldsSilentlyWhilePausedThenResumes(t *testing.T) {
	e := newTestEngine()
	fs := &fakeStreamer{total: 1000}
	cs := &controlledStreamer{underlying: fs, engine: e}
	e.running.Store(true)
	e.paused.Store(true)

	done := make(chan struct{})
	go func() {
		buf := make([][2]float64, 8)
		cs.Stream(buf)
		close(done)
	}()

	e.Resume()
	<-done
	if fs.position == 0 {
		t.Fatal("expected underlying stream to have been consumed after resume")
	}
}

func TestEngineSeekClampsToUint16Range(t *testing.T) {
	e := newTestEngine()
	e.Seek(-5)
	if e.skipToTime.Load() != 0 {
		t.Fatalf("negative seek should clamp to 0, got %d", e.skipToTime.Load())
	}
	e.Seek(1 << 20)
	if e.skipToTime.Load() != 1<<16-1 {
		t.Fatalf("oversized seek should clamp to uint16 max, got %d", e.skipToTime.Load())
	}
}

func TestEngineStopClearsRunning(t *testing.T) {
	e := newTestEngine()
	e.running.Store(true)
	e.Stop()
	if e.running.Load() {
		t.Fatal("Stop should clear running")
	}
}

func TestExtensionOf(t *testing.T) {
	cases := map[string]string{
		"artist/album/track.flac":        "flac",
		"track.MP3":                      "MP3",
		"http://stream.example/radio":    "",
		"dir.with.dots/file":             "",
	}
	for in, want := range cases {
		if got := extensionOf(in); got != want {
			t.Errorf("extensionOf(%q) = %q, want %q", in, got, want)
		}
	}
}
