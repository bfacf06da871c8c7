package playback

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"

	"github.com/kallax-audio/audiocore/internal/dsp"
	"github.com/kallax-audio/audiocore/internal/events"
	"github.com/kallax-audio/audiocore/internal/model"
	"github.com/kallax-audio/audiocore/internal/perr"
)

// songTimeInterval is how many decoded chunks pass between
// SongTimeEvent publications, spec.md §4.F step 6's "periodically
// (e.g. every N packets)".
const songTimeInterval = 20

// defaultRingMs is used when settings carry a non-positive ring buffer
// size, keeping speaker.Init from receiving a zero buffer.
const defaultRingMs = 1500

// Engine owns the single playback thread described in spec.md §4.F:
// it runs one PlayTrack at a time, decoding through an optional DSP
// chain into the speaker package's output device, honouring four
// cross-goroutine control signals the command dispatcher (§4.G) drives.
type Engine struct {
	dsp        *dsp.Processor
	bus        *events.Bus
	stats      statsIncrementer
	httpClient *http.Client
	vu         *VUMeter

	running    atomic.Bool
	paused     atomic.Bool
	skipToTime atomic.Int32
	stopped    atomic.Bool
}

// statsIncrementer is satisfied by *repository.StatsRepository; narrowed
// so the engine doesn't need the whole repository package to bump a
// play count on track start.
type statsIncrementer interface {
	IncrementPlayCount(id string) (model.PlayItemStatistics, error)
}

// NewEngine wires a playback engine around the given DSP processor
// handle, event bus, and play-count repository.
func NewEngine(dspProc *dsp.Processor, bus *events.Bus, stats statsIncrementer) *Engine {
	return &Engine{
		dsp:        dspProc,
		bus:        bus,
		stats:      stats,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		vu:         NewVUMeter(),
	}
}

// VUMeter returns the engine's running peak meter.
func (e *Engine) VUMeter() *VUMeter { return e.vu }

// --- cross-goroutine control signals (spec.md §4.F) ---

// Stop clears running; the packet loop exits at its next iteration.
func (e *Engine) Stop() { e.running.Store(false) }

// Pause sets paused; the packet loop yields without consuming packets.
func (e *Engine) Pause() { e.paused.Store(true) }

// Resume clears paused.
func (e *Engine) Resume() { e.paused.Store(false) }

// Paused reports the current pause state.
func (e *Engine) Paused() bool { return e.paused.Load() }

// Seek requests a seek to the given whole-second timestamp, serviced
// by the packet loop and cleared once applied.
func (e *Engine) Seek(seconds int) {
	if seconds < 0 {
		seconds = 0
	}
	if seconds > 1<<16-1 {
		seconds = 1<<16 - 1
	}
	e.skipToTime.Store(int32(seconds))
}

// Stopped reports whether the playback thread has exited. The command
// dispatcher's Queue::Clear barrier does not use it; it polls its own
// driver-running flag instead.
func (e *Engine) Stopped() bool { return e.stopped.Load() }

// PlayTrack runs spec.md §4.F's per-track loop for one song, blocking
// the caller until the track finishes, is stopped, or fails to
// open/probe. musicDir resolves filesystem song.File values; ringMs
// sizes the output ring buffer per settings.RingBufferMs.
func (e *Engine) PlayTrack(ctx context.Context, song model.Song, musicDir string, ringMs int) (Outcome, error) {
	e.running.Store(true)
	e.paused.Store(false)
	e.skipToTime.Store(0)
	e.stopped.Store(false)
	defer e.stopped.Store(true)

	rc, _, err := openSource(ctx, e.httpClient, e.bus, song, musicDir)
	if err != nil {
		return Stopped, fmt.Errorf("%w: open %s: %v", perr.ErrProbe, song.File, err)
	}
	defer rc.Close()

	underlying, format, err := decodeByExtension(rc, extensionOf(song.File))
	if err != nil {
		return Stopped, fmt.Errorf("%w: probe %s: %v", perr.ErrProbe, song.File, err)
	}
	defer underlying.Close()

	if ringMs <= 0 {
		ringMs = defaultRingMs
	}
	bufferSize := format.SampleRate.N(time.Duration(ringMs) * time.Millisecond)
	if err := speaker.Init(format.SampleRate, bufferSize); err != nil {
		return Stopped, fmt.Errorf("%w: init output: %v", perr.ErrDevice, err)
	}

	// beep normalises every decoder to interleaved stereo frames
	// regardless of the source's channel count, so the DSP chain is
	// always built for 2 channels.
	e.dsp.NoteFormat(2, int(format.SampleRate))
	e.dsp.Handle().Rebuild(2, int(format.SampleRate))

	if e.stats != nil {
		if _, err := e.stats.IncrementPlayCount(song.ID()); err != nil {
			slog.Warn("playback: increment play count failed", "song", song.File, "err", err)
		}
	}

	e.bus.Publish(events.NewCurrentSong(song))
	e.bus.Publish(events.NewPlaybackState(model.Playing))

	cs := &controlledStreamer{underlying: underlying, format: format, engine: e}
	done := make(chan struct{})
	speaker.Play(beep.Seq(cs, beep.Callback(func() { close(done) })))

	select {
	case <-done:
	case <-ctx.Done():
		e.running.Store(false)
		<-done
	}
	speaker.Clear()

	if err := underlying.Err(); err != nil {
		return Stopped, fmt.Errorf("%w: %v", perr.ErrDecode, err)
	}
	if !e.running.Load() {
		e.bus.Publish(events.NewPlaybackState(model.Stopped))
		return Stopped, nil
	}
	e.bus.Publish(events.NewPlaybackState(model.Stopped))
	return Finished, nil
}

// controlledStreamer wraps the decoder with the four control signals,
// the DSP hot-swap handle, VU metering, and periodic SongTimeEvent
// publication: spec.md §4.F step 6's packet loop, expressed as a beep
// Streamer since gopxl/beep's own speaker goroutine already plays the
// role of the device callback thread pulling from a ring buffer.
type controlledStreamer struct {
	underlying beep.StreamSeekCloser
	format     beep.Format
	engine     *Engine
	currentEQ  *dsp.Equalizer
	chunks     int
}

func (c *controlledStreamer) Stream(samples [][2]float64) (int, bool) {
	if !c.engine.running.Load() {
		return 0, false
	}
	for c.engine.paused.Load() {
		if !c.engine.running.Load() {
			return 0, false
		}
		time.Sleep(20 * time.Millisecond)
	}
	if secs := c.engine.skipToTime.Swap(0); secs > 0 {
		target := c.format.SampleRate.N(time.Duration(secs) * time.Second)
		if err := c.underlying.Seek(target); err != nil {
			slog.Warn("playback: seek failed", "err", err)
		}
	}

	n, ok := c.underlying.Stream(samples)
	if !ok {
		return 0, false
	}

	if eq, adopted := c.engine.dsp.Handle().TakePending(); adopted {
		c.currentEQ = eq
	}
	if c.engine.dsp.Handle().HasFilters() && c.currentEQ != nil {
		frame := make([]float64, 2)
		for i := 0; i < n; i++ {
			frame[0], frame[1] = samples[i][0], samples[i][1]
			c.currentEQ.ProcessFrame(frame)
			samples[i][0], samples[i][1] = frame[0], frame[1]
		}
	}
	c.engine.vu.Update(samples[:n])

	c.chunks++
	if c.chunks%songTimeInterval == 0 {
		rate := int(c.format.SampleRate)
		if rate > 0 {
			c.engine.bus.Publish(events.NewSongTime(c.underlying.Position()/rate, c.underlying.Len()/rate))
		}
	}
	return n, true
}

func (c *controlledStreamer) Err() error { return c.underlying.Err() }
