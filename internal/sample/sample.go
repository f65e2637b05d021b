// Package sample implements the stereo PCM container used throughout
// the graph (Sample) and a named, indexed WAV loader
// (SampleBank).
package sample

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/dh1tw/gosamplerate"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Sample is a stereo PCM buffer: two equal-length channels of
// unitless float32 amplitude.
type Sample struct {
	L []float32
	R []float32
}

// New returns a Sample of bl frames, zero-filled.
func New(bl int) Sample {
	return Sample{
		L: make([]float32, bl),
		R: make([]float32, bl),
	}
}

// From builds a Sample from two channels. Both must be non-empty and
// of equal length.
func From(l, r []float32) (Sample, error) {
	if len(l) != len(r) {
		return Sample{}, fmt.Errorf("sample: From: l and r do not have the same length: %d and %d", len(l), len(r))
	}
	if len(l) == 0 {
		return Sample{}, errors.New("sample: From: l and r have length 0")
	}
	return Sample{L: l, R: r}, nil
}

// Len returns the frame count.
func (s Sample) Len() int { return len(s.L) }

// IsEmpty reports whether the sample has zero frames.
func (s Sample) IsEmpty() bool { return len(s.L) == 0 }

// Zero clears both channels in place.
func (s Sample) Zero() {
	for i := range s.L {
		s.L[i] = 0
		s.R[i] = 0
	}
}

// ScanMax returns max(|s|) over the first n frames of both channels.
func (s Sample) ScanMax(n int) float32 {
	var max float32
	for i := 0; i < n && i < len(s.L); i++ {
		if v := abs32(s.L[i]); v > max {
			max = v
		}
		if v := abs32(s.R[i]); v > max {
			max = v
		}
	}
	return max
}

// Scale multiplies the first n frames of both channels by k.
func (s Sample) Scale(n int, k float32) {
	for i := 0; i < n && i < len(s.L); i++ {
		s.L[i] *= k
		s.R[i] *= k
	}
}

// ApplyAngle applies equal-power pan over the first n frames. alpha is
// in degrees; values within 0.001 of zero are a no-op.
func (s Sample) ApplyAngle(alpha float32, n int) {
	if abs32(alpha) < 0.001 {
		return
	}
	beta := alpha * math.Pi / 360.0
	sq := float32(math.Sqrt2) / 2.0
	lGain := sq * (cos32(beta) + sin32(beta))
	rGain := sq * (cos32(beta) - sin32(beta))
	for i := 0; i < n && i < len(s.L); i++ {
		s.L[i] *= lGain
		s.R[i] *= rGain
	}
}

// ApplyGain multiplies the first n frames by g. A no-op if |g-1|<0.001.
func (s Sample) ApplyGain(g float32, n int) {
	if abs32(g-1.0) < 0.001 {
		return
	}
	s.Scale(n, g)
}

// Normalize scales the first n frames so ScanMax(n) == 1. A no-op on
// silence (ScanMax == 0).
func (s Sample) Normalize(n int) {
	max := s.ScanMax(n)
	if max == 0 {
		return
	}
	s.Scale(n, 1.0/max)
}

// Resample converts s from srcRate to dstRate using a sinc
// interpolator (libsamplerate's best-quality sinc converter stands in
// for the 256-tap Blackman-Harris windowed sinc the project format
// calls for; see DESIGN.md).
func Resample(s Sample, srcRate, dstRate int) (Sample, error) {
	if srcRate == dstRate || s.IsEmpty() {
		return s, nil
	}
	ratio := float64(dstRate) / float64(srcRate)
	interleaved := Interleave(s)
	out, err := gosamplerate.Simple(interleaved, ratio, 2, gosamplerate.SRC_SINC_BEST_QUALITY)
	if err != nil {
		return Sample{}, fmt.Errorf("sample: Resample: %w", err)
	}
	l, r := Deinterleave(out)
	return From(l, r)
}

// Interleave returns s as L,R,L,R,... frames, the layout
// gosamplerate and WAV encoders expect.
func Interleave(s Sample) []float32 {
	out := make([]float32, 2*len(s.L))
	for i := range s.L {
		out[2*i] = s.L[i]
		out[2*i+1] = s.R[i]
	}
	return out
}

// Deinterleave splits L,R,L,R,... frames back into two channels.
func Deinterleave(frames []float32) (l, r []float32) {
	n := len(frames) / 2
	l = make([]float32, n)
	r = make([]float32, n)
	for i := 0; i < n; i++ {
		l[i] = frames[2*i]
		r[i] = frames[2*i+1]
	}
	return l, r
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func sin32(x float32) float32 { return float32(math.Sin(float64(x))) }
func cos32(x float32) float32 { return float32(math.Cos(float64(x))) }

// LoadMethod is the channel-mixing policy applied when ingesting a WAV
// file that may be mono, stereo, or otherwise-channeled.
type LoadMethod int

const (
	// Stereo requires exactly 2 source channels, loaded as-is.
	Stereo LoadMethod = iota
	// LeftOfMono takes channel 0 as L, zeroes R. Requires <= 2 channels.
	LeftOfMono
	// RightOfMono takes channel 0 as R (or channel 1 if present), zeroes L.
	RightOfMono
	// Loudest picks whichever of the (<=2) channels has the greater
	// mean |amplitude| and duplicates it to both L and R.
	Loudest
	// NormalizeSeparate loads stereo and peak-normalizes L and R
	// independently rather than jointly.
	NormalizeSeparate
	// MixDown averages all source channels (<=2) into a single
	// channel, duplicated to both L and R.
	MixDown
)

var (
	// ErrDuplicateName is returned by Add when the name is already in use.
	ErrDuplicateName = errors.New("sample: duplicate name")
	// ErrOpenFailed is returned when the WAV file cannot be opened or decoded.
	ErrOpenFailed = errors.New("sample: open failed")
	// ErrChannelCountMismatch is returned when the source channel count
	// does not satisfy the requested LoadMethod.
	ErrChannelCountMismatch = errors.New("sample: channel count mismatch")
)

// Bank is a named, indexed store of Samples (no reference counts): loaded
// peak-normalized and resampled to the project rate P on ingest, with
// deferred deletion via MarkDead/Refresh so in-flight vertex indices
// stay valid until the caller chooses to compact.
type Bank struct {
	projectRate int
	samples     []Sample
	names       map[string]int
	marked      map[int]bool
	maxSR       int
	maxBD       int
}

// NewBank returns an empty Bank resampling ingested files to rate P.
func NewBank(projectRate int) *Bank {
	return &Bank{
		projectRate: projectRate,
		names:       make(map[string]int),
		marked:      make(map[int]bool),
	}
}

// Add loads path under name using method, peak-normalizes it, and
// resamples it to the bank's project rate if the source rate differs.
func (b *Bank) Add(name, path string, method LoadMethod) error {
	if _, exists := b.names[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrOpenFailed, path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return fmt.Errorf("%w: %q: not a valid WAV file", ErrOpenFailed, path)
	}
	srcChannels := int(dec.NumChans)
	srcRate := int(dec.SampleRate)
	srcBD := int(dec.BitDepth)

	if method == Stereo && srcChannels != 2 {
		return fmt.Errorf("%w: %q: stereo load requires 2 channels, found %d", ErrChannelCountMismatch, path, srcChannels)
	}
	if method != Stereo && srcChannels > 2 {
		return fmt.Errorf("%w: %q: non-stereo load requires <= 2 channels, found %d", ErrChannelCountMismatch, path, srcChannels)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrOpenFailed, path, err)
	}

	l, r := splitChannels(buf, srcChannels, method)
	if len(l) == 0 {
		return fmt.Errorf("%w: %q: file contains no frames", ErrOpenFailed, path)
	}

	s, err := From(l, r)
	if err != nil {
		return fmt.Errorf("sample: Add: %w", err)
	}

	switch method {
	case NormalizeSeparate:
		s.L = normalizeChannel(s.L)
		s.R = normalizeChannel(s.R)
	default:
		s.Normalize(s.Len())
	}

	if srcRate != b.projectRate {
		s, err = Resample(s, srcRate, b.projectRate)
		if err != nil {
			return fmt.Errorf("sample: Add: %q: %w", path, err)
		}
	}

	b.samples = append(b.samples, s)
	b.names[name] = len(b.samples) - 1
	if srcRate > b.maxSR {
		b.maxSR = srcRate
	}
	if srcBD > b.maxBD {
		b.maxBD = srcBD
	}
	return nil
}

// splitChannels extracts L/R float32 slices from a decoded PCM buffer
// according to method. Every value is read from the decoder's integer
// buffer and divided by full scale for the source bit depth; there is
// no separate path for float-format files.
func splitChannels(buf *audio.IntBuffer, srcChannels int, method LoadMethod) (l, r []float32) {
	frames := len(buf.Data) / srcChannels
	max := float32(int(1)<<(buf.SourceBitDepth-1)) - 1
	if max <= 0 {
		max = 1
	}

	chans := make([][]float32, srcChannels)
	for c := range chans {
		chans[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < srcChannels; c++ {
			chans[c][i] = float32(buf.Data[i*srcChannels+c]) / max
		}
	}

	ch0 := chans[0]
	var ch1 []float32
	if srcChannels > 1 {
		ch1 = chans[1]
	} else {
		ch1 = make([]float32, frames)
	}

	switch method {
	case Stereo:
		return ch0, ch1
	case LeftOfMono:
		return ch0, make([]float32, frames)
	case RightOfMono:
		if srcChannels > 1 {
			return make([]float32, frames), ch1
		}
		return make([]float32, frames), ch0
	case Loudest:
		chosen := ch0
		if srcChannels > 1 && meanAbs(ch1) > meanAbs(ch0) {
			chosen = ch1
		}
		dup := make([]float32, frames)
		copy(dup, chosen)
		return chosen, dup
	case MixDown:
		mixed := make([]float32, frames)
		for i := range mixed {
			mixed[i] = (ch0[i] + ch1[i]) / 2
		}
		dup := make([]float32, frames)
		copy(dup, mixed)
		return mixed, dup
	default:
		return ch0, ch1
	}
}

func meanAbs(xs []float32) float32 {
	if len(xs) == 0 {
		return 0
	}
	var sum float32
	for _, x := range xs {
		sum += abs32(x)
	}
	return sum / float32(len(xs))
}

func normalizeChannel(xs []float32) []float32 {
	var max float32
	for _, x := range xs {
		if v := abs32(x); v > max {
			max = v
		}
	}
	if max == 0 {
		return xs
	}
	out := make([]float32, len(xs))
	for i, x := range xs {
		out[i] = x / max
	}
	return out
}

// MarkDead defers name for removal on the next Refresh. A no-op if
// name is unknown.
func (b *Bank) MarkDead(name string) {
	if idx, ok := b.names[name]; ok {
		b.marked[idx] = true
	}
}

// Refresh compacts out all marked samples, reassigning indices.
func (b *Bank) Refresh() {
	if len(b.marked) == 0 {
		return
	}
	newSamples := make([]Sample, 0, len(b.samples))
	newNames := make(map[string]int, len(b.names))
	for name, idx := range b.names {
		if b.marked[idx] {
			continue
		}
		newSamples = append(newSamples, b.samples[idx])
		newNames[name] = len(newSamples) - 1
	}
	b.samples = newSamples
	b.names = newNames
	b.marked = make(map[int]bool)
}

// GetIndex returns the current index of name, if present.
func (b *Bank) GetIndex(name string) (int, bool) {
	idx, ok := b.names[name]
	return idx, ok
}

// GetSample returns the sample at index.
func (b *Bank) GetSample(index int) Sample {
	return b.samples[index]
}

// GetMaxSRBD returns the largest source sample-rate and bit-depth
// observed across every sample ever added.
func (b *Bank) GetMaxSRBD() (int, int) {
	return b.maxSR, b.maxBD
}
