package dsp

import (
	"fmt"
	"math"

	"github.com/kallax-audio/audiocore/internal/model"
)

// Equalizer is a per-channel chain of biquad sections plus optional
// global/per-channel pre-gain, built for a fixed (channels, rate) pair.
// Not safe for concurrent use; callers swap whole instances rather than
// mutating one shared across goroutines (see Handle).
type Equalizer struct {
	channels    int
	globalGain  float64
	channelGain map[int]float64
	global      []*Biquad
	perChannel  map[int][]*Biquad
}

// NewEqualizer returns an equalizer with no filters configured, unity
// gain, for the given channel count.
func NewEqualizer(channels int) *Equalizer {
	return &Equalizer{
		channels:    channels,
		globalGain:  1,
		channelGain: map[int]float64{},
		perChannel:  map[int][]*Biquad{},
	}
}

// HasFilters reports whether any section or non-unity gain is active,
// the value latched into Handle's atomic fast-path flag.
func (eq *Equalizer) HasFilters() bool {
	if eq.globalGain != 1 || len(eq.global) > 0 {
		return true
	}
	for _, g := range eq.channelGain {
		if g != 1 {
			return true
		}
	}
	return len(eq.perChannel) > 0
}

// AddGlobalGainFilter multiplies every channel by the linear equivalent
// of gainDB.
func (eq *Equalizer) AddGlobalGainFilter(gainDB float64) error {
	eq.globalGain *= dbToLinear(gainDB)
	return nil
}

// AddGainFilter multiplies channel ch by the linear equivalent of gainDB.
func (eq *Equalizer) AddGainFilter(ch int, gainDB float64) error {
	if err := eq.checkChannel(ch); err != nil {
		return err
	}
	current, ok := eq.channelGain[ch]
	if !ok {
		current = 1
	}
	eq.channelGain[ch] = current * dbToLinear(gainDB)
	return nil
}

// AddGlobalBiquadFilter appends a section applied identically to every
// channel.
func (eq *Equalizer) AddGlobalBiquadFilter(rate int, cfg model.DspFilterConfig) error {
	bq, err := buildSection(cfg, float64(rate))
	if err != nil {
		return err
	}
	eq.global = append(eq.global, bq)
	return nil
}

// AddBiquadFilter appends a section applied only to channel ch.
func (eq *Equalizer) AddBiquadFilter(ch, rate int, cfg model.DspFilterConfig) error {
	if err := eq.checkChannel(ch); err != nil {
		return err
	}
	bq, err := buildSection(cfg, float64(rate))
	if err != nil {
		return err
	}
	eq.perChannel[ch] = append(eq.perChannel[ch], bq)
	return nil
}

func (eq *Equalizer) checkChannel(ch int) error {
	if ch < 0 || ch >= eq.channels {
		return fmt.Errorf("dsp: channel %d out of range for %d-channel equalizer", ch, eq.channels)
	}
	return nil
}

// ProcessFrame filters one interleaved sample frame (len(frame) ==
// channels) in place: global gain and sections first, then
// per-channel gain and sections.
func (eq *Equalizer) ProcessFrame(frame []float64) {
	for ch := range frame {
		x := frame[ch] * eq.globalGain
		for _, bq := range eq.global {
			x = bq.Process(x)
		}
		if g, ok := eq.channelGain[ch]; ok {
			x *= g
		}
		for _, bq := range eq.perChannel[ch] {
			x = bq.Process(x)
		}
		frame[ch] = x
	}
}

func dbToLinear(db float64) float64 {
	if db == 0 {
		return 1
	}
	return math.Pow(10, db/20)
}

// buildSection dispatches cfg.Kind to the matching RBJ coefficient
// computation. FilterGain is handled by the caller (Equalizer's own
// gain fields) and never reaches here.
func buildSection(cfg model.DspFilterConfig, rate float64) (*Biquad, error) {
	q := qOrDefault(cfg.Q)
	switch cfg.Kind {
	case model.FilterPeaking:
		return peaking(cfg.Freq, rate, q, cfg.GainDB), nil
	case model.FilterLowShelf:
		if cfg.Slope != nil {
			return lowShelfSlope(cfg.Freq, rate, *cfg.Slope, cfg.GainDB), nil
		}
		return lowShelfQ(cfg.Freq, rate, q, cfg.GainDB), nil
	case model.FilterHighShelf:
		if cfg.Slope != nil {
			return highShelfSlope(cfg.Freq, rate, *cfg.Slope, cfg.GainDB), nil
		}
		return highShelfQ(cfg.Freq, rate, q, cfg.GainDB), nil
	case model.FilterLowPass:
		return lowPass(cfg.Freq, rate, q), nil
	case model.FilterHighPass:
		return highPass(cfg.Freq, rate, q), nil
	case model.FilterBandPass:
		return bandPass(cfg.Freq, rate, q), nil
	case model.FilterNotch:
		return notch(cfg.Freq, rate, q), nil
	case model.FilterAllPass:
		return allPass(cfg.Freq, rate, q), nil
	case model.FilterLowPassFO:
		return lowPassFO(cfg.Freq, rate), nil
	case model.FilterHighPassFO:
		return highPassFO(cfg.Freq, rate), nil
	case model.FilterLowShelfFO:
		return lowShelfFO(cfg.Freq, rate, cfg.GainDB), nil
	case model.FilterHighShelfFO:
		return highShelfFO(cfg.Freq, rate, cfg.GainDB), nil
	case model.FilterLinkwitzTransform:
		return linkwitzTransform(cfg.FreqActual, cfg.QActual, cfg.FreqTarget, cfg.QTarget, rate), nil
	default:
		return nil, fmt.Errorf("dsp: unsupported filter kind %q", cfg.Kind)
	}
}
