// Package adsr implements the attack-decay-sustain-release amplitude
// envelope used by every note-triggered generator in the graph.
package adsr

// Conf is an attack-decay-sustain-release envelope configuration.
// All times are in seconds, all velocities are unitless multipliers.
type Conf struct {
	StdVel     float32
	AttackSec  float32
	AttackVel  float32
	DecaySec   float32
	DecayVel   float32
	SustainSec float32
	SustainVel float32
	ReleaseSec float32
	ReleaseVel float32
}

// HitConf builds a conf for a percussive hit: starts and ends at zero
// velocity, attack ramps to full (1.0).
func HitConf(attackSec, decaySec, decayVel, sustainSec, sustainVel, releaseSec float32) Conf {
	return Conf{
		StdVel:     0,
		AttackSec:  attackSec,
		AttackVel:  1.0,
		DecaySec:   decaySec,
		DecayVel:   decayVel,
		SustainSec: sustainSec,
		SustainVel: sustainVel,
		ReleaseVel: 0,
		ReleaseSec: releaseSec,
	}
}

// BuildConf dispatches on array length: 0 -> zero conf, 6 -> HitConf,
// 9 -> full conf. Any other length is adsr-config-invalid.
func BuildConf(arr []float32) (Conf, bool) {
	switch len(arr) {
	case 0:
		return Conf{}, true
	case 6:
		return HitConf(arr[0], arr[1], arr[2], arr[3], arr[4], arr[5]), true
	case 9:
		return Conf{
			StdVel:     arr[0],
			AttackSec:  arr[1],
			AttackVel:  arr[2],
			DecaySec:   arr[3],
			DecayVel:   arr[4],
			SustainSec: arr[5],
			SustainVel: arr[6],
			ReleaseSec: arr[7],
			ReleaseVel: arr[8],
		}, true
	default:
		return Conf{}, false
	}
}

// applyADSInternal returns the ads-only curve value, or -1000 past the
// end of the sustain window (a sentinel the callers below check for).
func applyADSInternal(conf Conf, t float32) float32 {
	switch {
	case t <= conf.AttackSec:
		return conf.StdVel + (conf.AttackVel-conf.StdVel)*(t/conf.AttackSec)
	case t <= conf.AttackSec+conf.DecaySec:
		return conf.AttackVel + (conf.DecayVel-conf.AttackVel)*((t-conf.AttackSec)/conf.DecaySec)
	case t <= conf.AttackSec+conf.DecaySec+conf.SustainSec:
		return conf.DecayVel + (conf.SustainVel-conf.DecayVel)*((t-conf.AttackSec-conf.DecaySec)/conf.SustainSec)
	default:
		return -1000.0
	}
}

// ApplyADS samples the attack-decay-sustain portion only, holding at
// SustainVel forever past the sustain window.
func ApplyADS(conf Conf, t float32) float32 {
	res := applyADSInternal(conf, t)
	if res <= -1.0 {
		return conf.SustainVel
	}
	return res
}

// ApplyR samples a release ramp from oldVal to ReleaseVel over
// [0, ReleaseSec], clamped past ReleaseSec.
func ApplyR(conf Conf, t, oldVal float32) float32 {
	frac := t / conf.ReleaseSec
	if frac > 1.0 {
		frac = 1.0
	}
	return oldVal + (conf.ReleaseVel-oldVal)*frac
}

// ApplyADSR samples the full four-segment envelope including release.
func ApplyADSR(conf Conf, t float32) float32 {
	res := applyADSInternal(conf, t)
	if res <= -1.0 {
		frac := (t - conf.AttackSec - conf.DecaySec - conf.SustainSec) / conf.ReleaseSec
		if frac > 1.0 {
			frac = 1.0
		}
		return conf.SustainVel + (conf.ReleaseVel-conf.SustainVel)*frac
	}
	return res
}

// ApplyRRT applies release using a release *origin time* (rt) rather
// than a pre-sampled hold value: the hold value is derived as
// ApplyADS(conf, rt).
func ApplyRRT(conf Conf, t, rt float32) float32 {
	rv := ApplyADS(conf, rt)
	return ApplyR(conf, t, rv)
}

// MaxVel returns the largest |velocity| among the five envelope
// points, used to normalize amplitude across differently shaped
// envelopes.
func (c Conf) MaxVel() float32 {
	max := abs(c.StdVel)
	max = fmax(max, abs(c.AttackVel))
	max = fmax(max, abs(c.DecayVel))
	max = fmax(max, abs(c.SustainVel))
	max = fmax(max, abs(c.ReleaseVel))
	return max
}

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func fmax(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
