// Package osc implements the additive-synth oscillator primitives
// (square-clipped-sine, top-flat-sine, triangle) and the wavetable
// sampler used by the Synth and SampSyn graph vertices.
package osc

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/codybloemhard/termdaw-go/internal/adsr"
)

// Conf is one oscillator's mix weight, shape parameter z, and
// per-oscillator envelope.
type Conf struct {
	Volume float32
	Z      float32
	Adsr   adsr.Conf
}

// SquareSine clips a sine wave at +-z and rescales to [-1,1],
// producing a square-ish wave at low z and a pure sine at z=1.
func SquareSine(t, hz, z float32) float32 {
	s := sin32(t * hz * 2.0 * math.Pi)
	if s > z {
		s = z
	}
	if s < -z {
		s = -z
	}
	return s * (1.0 / z)
}

// TopflatSine flattens only the top of a sine wave at z.
func TopflatSine(t, hz, z float32) float32 {
	s := sin32(t * hz * 2.0 * math.Pi)
	if s > z {
		s = z
	}
	return (s + (1.0-z)/2.0) * (2.0 / (1.0 + z))
}

// Triangle is a standard bipolar triangle wave.
func Triangle(t, hz float32) float32 {
	x := t * hz
	return 4.0*abs32(x-floor32(x+0.5)) - 1.0
}

func sin32(x float32) float32   { return float32(math.Sin(float64(x))) }
func floor32(x float32) float32 { return float32(math.Floor(float64(x))) }
func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

// WaveTable is one cycle of a periodic waveform, sampled at an
// arbitrary resolution and linearly interpolated at playback time.
type WaveTable []float32

// DefaultWaveTable is a single-cycle sine, the fallback used when a
// wavetable fails to parse.
func DefaultWaveTable() WaveTable {
	const n = 2048
	wt := make(WaveTable, n)
	for i := range wt {
		wt[i] = sin32(2.0 * math.Pi * float32(i) / float32(n))
	}
	return wt
}

// ParseWaveTable decodes a buffer of little-endian float32 samples
// into a WaveTable. An empty or malformed buffer is an error; callers
// fall back to DefaultWaveTable with a warning.
func ParseWaveTable(data []byte) (WaveTable, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, errors.New("osc: ParseWaveTable: buffer is empty or not float32-aligned")
	}
	n := len(data) / 4
	wt := make(WaveTable, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
		wt[i] = math.Float32frombits(bits)
	}
	return wt, nil
}

// State is a single voice's wavetable read cursor: a phase in [0,1)
// advanced by hz/P per sample.
type State struct {
	Phase float32
}

// Sample reads wt at the current phase with linear interpolation,
// then advances the phase by hz/sampleRate.
func (s *State) Sample(wt WaveTable, hz float32, sampleRate int) float32 {
	if len(wt) == 0 {
		return 0
	}
	phase := s.Phase - floor32(s.Phase)
	pos := phase * float32(len(wt))
	i0 := int(pos) % len(wt)
	i1 := (i0 + 1) % len(wt)
	frac := pos - floor32(pos)
	out := wt[i0]*(1.0-frac) + wt[i1]*frac

	s.Phase += hz / float32(sampleRate)
	return out
}
