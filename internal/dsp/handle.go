package dsp

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/kallax-audio/audiocore/internal/model"
)

// Handle is the cross-goroutine view the playback engine holds: a
// pending slot for a freshly built equalizer awaiting adoption, an
// atomic fast-path flag, and the settings the engine consults only
// when it rebuilds for a new track. Cheap to copy; every field is a
// pointer/atomic shared with the owning Processor.
type Handle struct {
	pendingMu *sync.Mutex
	pending   **Equalizer
	hasFilters *atomic.Bool
	settingsMu *sync.Mutex
	settings   *model.DspSettings
}

// Rebuild builds a fresh equalizer for (channels, rate) from the
// current settings and pushes it into the pending slot, updating the
// has-filters fast path. Called by the engine when a new track opens.
func (h *Handle) Rebuild(channels, rate int) {
	h.settingsMu.Lock()
	settings := *h.settings
	h.settingsMu.Unlock()

	eq := buildEqualizer(settings, channels, rate)

	h.pendingMu.Lock()
	*h.pending = eq
	h.pendingMu.Unlock()
	h.hasFilters.Store(eq.HasFilters())
}

// HasFilters is the zero-overhead check the engine makes on every
// streamed chunk, right after TakePending, to skip equalizer processing
// when no filter is configured.
func (h *Handle) HasFilters() bool { return h.hasFilters.Load() }

// TakePending performs a non-blocking try-lock of the pending slot; if
// it succeeds and a new chain is waiting, the caller takes ownership
// and the slot is cleared. Returns (nil, false) if nothing is pending
// or the lock is currently held by a concurrent Rebuild/UpdateSettings.
func (h *Handle) TakePending() (*Equalizer, bool) {
	if !h.pendingMu.TryLock() {
		return nil, false
	}
	defer h.pendingMu.Unlock()
	eq := *h.pending
	if eq == nil {
		return nil, false
	}
	*h.pending = nil
	return eq, true
}

// Processor owns the DSP settings and the handle given to the playback
// engine, which also holds the Processor itself and calls NoteFormat on
// it at each track open. The channels/rate fields have no lock; all
// other cross-goroutine state lives behind the Arc-equivalent pointers
// inside Handle.
type Processor struct {
	channels int
	rate     int
	handle   Handle
}

// NewProcessor returns a Processor with no channels/rate resolved yet
// (the engine fills those in on each track open via NoteFormat).
func NewProcessor(settings model.DspSettings) *Processor {
	return &Processor{
		handle: Handle{
			pendingMu:  &sync.Mutex{},
			pending:    new(*Equalizer),
			hasFilters: &atomic.Bool{},
			settingsMu: &sync.Mutex{},
			settings:   &settings,
		},
	}
}

// Handle returns the shared handle to pass to the playback engine.
func (p *Processor) Handle() *Handle { return &p.handle }

// UpdateSettings replaces the DSP configuration and, if a track is
// already open (channels/rate resolved), immediately rebuilds and
// publishes a new equalizer so the change takes effect without a
// track restart.
func (p *Processor) UpdateSettings(settings model.DspSettings) {
	p.handle.settingsMu.Lock()
	*p.handle.settings = settings
	p.handle.settingsMu.Unlock()

	if p.channels <= 0 || p.rate <= 0 {
		slog.Warn("dsp: skipping equalizer rebuild, channels/rate not yet resolved")
		p.handle.hasFilters.Store(false)
		return
	}
	p.handle.Rebuild(p.channels, p.rate)
}

// NoteFormat records the (channels, rate) of the currently open track,
// called by the engine once it knows them, so a later UpdateSettings
// can rebuild without waiting for the next track.
func (p *Processor) NoteFormat(channels, rate int) {
	p.channels, p.rate = channels, rate
}

func buildEqualizer(settings model.DspSettings, channels, rate int) *Equalizer {
	eq := NewEqualizer(channels)
	for _, cfg := range settings.Filters {
		if cfg.Kind == model.FilterGain {
			applyGain(eq, cfg)
			continue
		}
		var err error
		if len(cfg.Channels) == 0 {
			err = eq.AddGlobalBiquadFilter(rate, cfg)
		} else {
			for _, ch := range cfg.Channels {
				if e := eq.AddBiquadFilter(ch, rate, cfg); e != nil {
					err = e
				}
			}
		}
		if err != nil {
			slog.Warn("dsp: failed to add filter", "kind", cfg.Kind, "error", err)
		}
	}
	return eq
}

func applyGain(eq *Equalizer, cfg model.DspFilterConfig) {
	if len(cfg.Channels) == 0 {
		_ = eq.AddGlobalGainFilter(cfg.GainDB)
		return
	}
	for _, ch := range cfg.Channels {
		if err := eq.AddGainFilter(ch, cfg.GainDB); err != nil {
			slog.Warn("dsp: failed to add gain filter", "channel", ch, "error", err)
		}
	}
}
