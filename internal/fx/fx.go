// Package fx defines the abstract audio-effect boundary that stands
// in for a real plugin host (Lv2fx vertices consume this interface,
// never a concrete plugin binding) and ships one concrete effect,
// BandPass, built on the math the project gives us for free.
package fx

import "math"

// AudioEffect processes one stereo sample pair through an effect
// instance identified by index. A real LV2 host implements this by
// forwarding to the loaded plugin. BandPass does not implement it;
// graph.BandPassVertex calls BandPass.Apply directly.
type AudioEffect interface {
	Process(index int, l, r float32) (float32, float32)
}

// BandPass is a pair of single-pole low/high-pass filters composed
// into either a band-cut or band-pass response.
type BandPass struct {
	LowGamma  float32
	HighGamma float32

	lowPrevL  float32
	lowPrevR  float32
	highPrevL float32
	highPrevR float32
	first     bool

	Pass bool
}

// NewBandPass builds a BandPass with cutoffs clamped to [0, 20000] Hz
// converted to per-sample gammas at the given sampling rate.
func NewBandPass(cutLowHz, cutHighHz float32, pass bool, sampleRate int) *BandPass {
	lco := clamp(cutLowHz, 0, 20000)
	hco := clamp(cutHighHz, 0, 20000)
	lgamma := 1.0 - float32(math.Exp(float64(-2.0*math.Pi*lco/float32(sampleRate))))
	hgamma := 1.0 - float32(math.Exp(float64(-2.0*math.Pi*hco/float32(sampleRate))))
	return &BandPass{
		LowGamma:  lgamma,
		HighGamma: hgamma,
		first:     true,
		Pass:      pass,
	}
}

func clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// SetTime re-arms first-sample seeding, as happens on any graph time jump.
func (bp *BandPass) SetTime() {
	bp.first = true
}

// Apply filters the first n frames of l and r in place. A no-op below
// the wet threshold or when both gammas are zero.
func (bp *BandPass) Apply(l, r []float32, n int, wet float32) {
	if wet < 0.0001 {
		return
	}
	if bp.LowGamma == 0 && bp.HighGamma == 0 {
		return
	}
	lmul := float32(1.0)
	if bp.LowGamma == 0 {
		lmul = 0
	}
	hmul := float32(1.0)
	if bp.HighGamma == 0 {
		hmul = 0
	}
	passMul := float32(0.0)
	if bp.Pass {
		passMul = 1.0
	}
	cutMul := 1.0 - passMul

	if bp.first && n > 0 {
		bp.lowPrevL = l[0]
		bp.lowPrevR = r[0]
		bp.highPrevL = l[0]
		bp.highPrevR = r[0]
		bp.first = false
	}

	for i := 0; i < n; i++ {
		lv := l[i]
		rv := r[i]

		ll := bp.lowPrevL + bp.LowGamma*(lv-bp.lowPrevL)
		lr := bp.lowPrevR + bp.LowGamma*(rv-bp.lowPrevR)
		hl := bp.highPrevL + bp.HighGamma*(lv-bp.highPrevL)
		hr := bp.highPrevR + bp.HighGamma*(rv-bp.highPrevR)
		bp.lowPrevL, bp.lowPrevR = ll, lr
		bp.highPrevL, bp.highPrevR = hl, hr

		cutl := (lmul*ll + hmul*(lv-hl)) * 0.5
		cutr := (lmul*lr + hmul*(rv-hr)) * 0.5
		passl := lv - cutl
		passr := rv - cutr

		l[i] = cutl*cutMul + passl*passMul
		r[i] = cutr*cutMul + passr*passMul
	}
}
