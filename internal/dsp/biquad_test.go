package dsp

import (
	"math"
	"testing"
)

// runTone filters n samples of a sine wave at freq through bq and
// returns the RMS of the steady-state tail (first quarter discarded to
// let the section settle).
func runTone(bq *Biquad, freq, rate float64, n int) float64 {
	var sumSq float64
	settle := n / 4
	for i := 0; i < n; i++ {
		x := math.Sin(2 * math.Pi * freq * float64(i) / rate)
		y := bq.Process(x)
		if i >= settle {
			sumSq += y * y
		}
	}
	return math.Sqrt(sumSq / float64(n-settle))
}

func TestLowPassAttenuatesAboveCutoff(t *testing.T) {
	const rate = 44100.0
	bq := lowPass(1000, rate, defaultQ)
	passband := runTone(bq, 100, rate, 4000)

	bq2 := lowPass(1000, rate, defaultQ)
	stopband := runTone(bq2, 10000, rate, 4000)

	if stopband >= passband {
		t.Fatalf("expected stopband RMS (%v) below passband RMS (%v)", stopband, passband)
	}
}

func TestHighPassAttenuatesBelowCutoff(t *testing.T) {
	const rate = 44100.0
	bq := highPass(1000, rate, defaultQ)
	stopband := runTone(bq, 50, rate, 4000)

	bq2 := highPass(1000, rate, defaultQ)
	passband := runTone(bq2, 8000, rate, 4000)

	if stopband >= passband {
		t.Fatalf("expected stopband RMS (%v) below passband RMS (%v)", stopband, passband)
	}
}

func TestNotchAttenuatesAtCenter(t *testing.T) {
	const rate = 44100.0
	bq := notch(1000, rate, 4)
	atCenter := runTone(bq, 1000, rate, 4000)

	bq2 := notch(1000, rate, 4)
	awayFromCenter := runTone(bq2, 3000, rate, 4000)

	if atCenter >= awayFromCenter {
		t.Fatalf("expected center RMS (%v) below off-center RMS (%v)", atCenter, awayFromCenter)
	}
}

func TestPeakingBoostsAtCenter(t *testing.T) {
	const rate = 44100.0
	bq := peaking(1000, rate, 1, 12)
	boosted := runTone(bq, 1000, rate, 4000)

	flatBq := newBiquad(1, 0, 0, 1, 0, 0)
	baseline := runTone(flatBq, 1000, rate, 4000)

	if boosted <= baseline {
		t.Fatalf("expected boosted RMS (%v) above unfiltered baseline (%v)", boosted, baseline)
	}
}

func TestAllPassPreservesMagnitude(t *testing.T) {
	const rate = 44100.0
	bq := allPass(1000, rate, defaultQ)
	out := runTone(bq, 1000, rate, 8000)

	flatBq := newBiquad(1, 0, 0, 1, 0, 0)
	in := runTone(flatBq, 1000, rate, 8000)

	if math.Abs(out-in) > 0.05*in {
		t.Fatalf("allpass should preserve magnitude: in=%v out=%v", in, out)
	}
}

func TestLowShelfQAndSlopeAgreeAtStandardQ(t *testing.T) {
	const rate, freq, gain = 44100.0, 200.0, 6.0
	slope := 1.0
	a := lowShelfQ(freq, rate, defaultQ, gain)
	b := lowShelfSlope(freq, rate, slope, gain)

	out1 := runTone(a, 50, rate, 4000)
	out2 := runTone(b, 50, rate, 4000)
	if math.Abs(out1-out2) > 0.2*out1 {
		t.Fatalf("Q-form and slope-form shelves diverged too far: %v vs %v", out1, out2)
	}
}

func TestLinkwitzTransformIsIdentityWhenTargetMatchesActual(t *testing.T) {
	const rate = 44100.0
	bq := linkwitzTransform(80, 0.7, 80, 0.7, rate)
	out := runTone(bq, 100, rate, 4000)

	flatBq := newBiquad(1, 0, 0, 1, 0, 0)
	in := runTone(flatBq, 100, rate, 4000)

	if math.Abs(out-in) > 0.05*in {
		t.Fatalf("linkwitz transform with matching target/actual should be near-identity: in=%v out=%v", in, out)
	}
}

func TestQOrDefault(t *testing.T) {
	if got := qOrDefault(nil); got != defaultQ {
		t.Fatalf("nil Q should default, got %v", got)
	}
	zero := 0.0
	if got := qOrDefault(&zero); got != defaultQ {
		t.Fatalf("zero Q should default, got %v", got)
	}
	custom := 3.5
	if got := qOrDefault(&custom); got != custom {
		t.Fatalf("explicit Q should pass through, got %v", got)
	}
}
