package graph

import (
	"math"

	"github.com/codybloemhard/termdaw-go/internal/adsr"
	"github.com/codybloemhard/termdaw-go/internal/floww"
	"github.com/codybloemhard/termdaw-go/internal/fx"
	"github.com/codybloemhard/termdaw-go/internal/osc"
	"github.com/codybloemhard/termdaw-go/internal/sample"
)

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func lerp(a, b, t float32) float32 { return a + (b-a)*t }

func pow2(x float32) float32 { return float32(math.Pow(2, float64(x))) }

func noteToHz(note float32) float32 { return 440.0 * pow2((note-69.0)/12.0) }

// Sum adds its inputs together; the input summation itself happens in
// Vertex.generate before Generate is called, so this body is empty.
type Sum struct{}

func NewSum() *Sum { return &Sum{} }

func (*Sum) Generate(GenArgs, *sample.Bank, *floww.Bank, float32, sample.Sample, []sample.Sample) {}
func (*Sum) HasInput() bool                                                                     { return true }
func (*Sum) SetTime(int)                                                                         {}

// Normalize sums its inputs, then divides by its peak divisor. A
// render pass first raises the divisor to the buffer's peak when that
// is higher; a scan pass leaves the divisor as it is and tracks a
// separate scan peak, which ApplyScan copies into the divisor.
type Normalize struct {
	max     float32
	scanMax float32
}

func NewNormalize() *Normalize { return &Normalize{} }

func (n *Normalize) Generate(ga GenArgs, _ *sample.Bank, _ *floww.Bank, _ float32, buf sample.Sample, _ []sample.Sample) {
	bufMax := buf.ScanMax(ga.Len)
	if ga.IsScan {
		if bufMax > n.scanMax {
			n.scanMax = bufMax
		}
	} else if bufMax > n.max {
		n.max = bufMax
	}
	buf.Scale(ga.Len, 1.0/n.max)
}

func (n *Normalize) HasInput() bool { return true }
func (n *Normalize) SetTime(int)    {}

func (n *Normalize) ResetScan()            { n.scanMax = 0 }
func (n *Normalize) ApplyScan()            { n.max = n.scanMax }
func (n *Normalize) ResetNormalization()   { n.max = 0.000001 }
func (n *Normalize) NormalizationValue() float32 { return n.max }

// SampleLoop plays a sample on repeat, wrapping the read cursor.
type SampleLoop struct {
	SampleIndex int
	t           int
}

func NewSampleLoop(sampleIndex int) *SampleLoop { return &SampleLoop{SampleIndex: sampleIndex} }

func (s *SampleLoop) Generate(ga GenArgs, sb *sample.Bank, _ *floww.Bank, _ float32, buf sample.Sample, _ []sample.Sample) {
	src := sb.GetSample(s.SampleIndex)
	n := src.Len()
	for i := 0; i < ga.Len; i++ {
		idx := (s.t + i) % n
		buf.L[i] = src.L[idx]
		buf.R[i] = src.R[idx]
	}
	s.t += ga.Len
}

func (s *SampleLoop) HasInput() bool { return false }
func (s *SampleLoop) SetTime(t int)  { s.t = t }

type voiceOffset struct {
	Start int64
	Vel   float32
}

// SampleMulti is the polyphonic drum player: every drum hit starts a
// new independent playthrough of the sample, summed together.
type SampleMulti struct {
	SampleIndex int
	FlowwIndex  int
	Note        *int
	voices      []voiceOffset
}

func NewSampleMulti(sampleIndex, flowwIndex int, note *int) *SampleMulti {
	return &SampleMulti{SampleIndex: sampleIndex, FlowwIndex: flowwIndex, Note: note}
}

func (s *SampleMulti) Generate(ga GenArgs, sb *sample.Bank, fb *floww.Bank, _ float32, buf sample.Sample, _ []sample.Sample) {
	src := sb.GetSample(s.SampleIndex)
	fb.StartBlock(s.FlowwIndex)
	for i := 0; i < ga.Len; i++ {
		if note, v, ok := fb.GetBlockDrum(s.FlowwIndex, i); ok {
			matched := s.Note == nil || abs32(note-float32(*s.Note)) < 0.01
			if matched {
				s.voices = append(s.voices, voiceOffset{Start: int64(-i), Vel: v})
			}
		}

		buf.L[i] = 0
		buf.R[i] = 0
		pops := 0
		for _, v := range s.voices {
			pos := v.Start + int64(i)
			if pos < 0 {
				pos = 0
			}
			if int(pos) >= src.Len() {
				pops++
			} else {
				buf.L[i] += src.L[pos] * v.Vel
				buf.R[i] += src.R[pos] * v.Vel
			}
		}
		s.voices = s.voices[pops:]
	}
	for i := range s.voices {
		s.voices[i].Start += int64(ga.Len)
	}
}

func (s *SampleMulti) HasInput() bool { return false }
func (s *SampleMulti) SetTime(int)    {}

func clampPos(x int64, n int) int {
	if x < 0 {
		x = 0
	}
	if int(x) > n-1 {
		return n - 1
	}
	return int(x)
}

// SampleLerp is the monophonic drum player: a retrigger crossfades
// from the previous ("ghost") playthrough into the new ("primary")
// one over LerpLen samples instead of cutting hard.
type SampleLerp struct {
	SampleIndex int
	FlowwIndex  int
	Note        *int
	LerpLen     int
	countdown   int
	primary     voiceOffset
	ghost       voiceOffset
}

func NewSampleLerp(sampleIndex, flowwIndex int, note *int, lerpLen int) *SampleLerp {
	return &SampleLerp{SampleIndex: sampleIndex, FlowwIndex: flowwIndex, Note: note, LerpLen: lerpLen}
}

func (s *SampleLerp) Generate(ga GenArgs, sb *sample.Bank, fb *floww.Bank, _ float32, buf sample.Sample, _ []sample.Sample) {
	src := sb.GetSample(s.SampleIndex)
	fb.StartBlock(s.FlowwIndex)
	for i := 0; i < ga.Len; i++ {
		if note, v, ok := fb.GetBlockDrum(s.FlowwIndex, i); ok {
			matched := s.Note == nil || abs32(note-float32(*s.Note)) < 0.01
			if matched {
				s.ghost = s.primary
				s.primary = voiceOffset{Start: int64(-i), Vel: v}
				s.countdown = s.LerpLen
			}
		}

		primaryPos := clampPos(s.primary.Start+int64(i), src.Len())
		l := src.L[primaryPos] * s.primary.Vel
		r := src.R[primaryPos] * s.primary.Vel

		if s.countdown > 0 {
			s.countdown--
			frac := float32(s.countdown) / float32(s.LerpLen)
			ghostPos := clampPos(s.ghost.Start+int64(i), src.Len())
			gl := src.L[ghostPos] * s.ghost.Vel
			gr := src.R[ghostPos] * s.ghost.Vel
			l = gl*frac + l*(1-frac)
			r = gr*frac + r*(1-frac)
		}
		buf.L[i] = l
		buf.R[i] = r
	}
	s.primary.Start += int64(ga.Len)
	s.ghost.Start += int64(ga.Len)
}

func (s *SampleLerp) HasInput() bool { return false }
func (s *SampleLerp) SetTime(int)    {}

type heldNote struct {
	Note, Vel float32
}

// DebugSine sums a pure sine per held note, upserting on note-on and
// removing on note-off; used to sanity-check a floww without loading
// any sample.
type DebugSine struct {
	FlowwIndex int
	notes      []heldNote
}

func NewDebugSine(flowwIndex int) *DebugSine { return &DebugSine{FlowwIndex: flowwIndex} }

func (s *DebugSine) Generate(ga GenArgs, _ *sample.Bank, fb *floww.Bank, _ float32, buf sample.Sample, _ []sample.Sample) {
	fb.StartBlock(s.FlowwIndex)
	for i := 0; i < ga.Len; i++ {
		for _, ev := range fb.GetBlockSimple(s.FlowwIndex, i) {
			if ev.On {
				has := false
				for j := range s.notes {
					if abs32(s.notes[j].Note-ev.Note) < 0.001 {
						s.notes[j].Vel = ev.Velocity
						has = true
						break
					}
				}
				if !has {
					s.notes = append(s.notes, heldNote{Note: ev.Note, Vel: ev.Velocity})
				}
			} else {
				kept := s.notes[:0]
				for _, n := range s.notes {
					if abs32(n.Note-ev.Note) > 0.001 {
						kept = append(kept, n)
					}
				}
				s.notes = kept
			}
		}

		buf.L[i] = 0
		buf.R[i] = 0
		time := float32(ga.T+i) / float32(ga.SR)
		for _, n := range s.notes {
			hz := noteToHz(n.Note)
			v := float32(math.Sin(float64(time*hz*2.0*math.Pi))) * n.Vel
			buf.L[i] += v
			buf.R[i] += v
		}
	}
}

func (s *DebugSine) HasInput() bool { return false }
func (s *DebugSine) SetTime(int)    { s.notes = nil }

type synthNote struct {
	Note, Vel, EnvT, RelT float32
}

// Synth is the three-oscillator additive synthesizer: square-clipped-
// sine, top-flat-sine, and triangle, each independently weighted and
// enveloped, summed and normalized by the combined envelope headroom.
type Synth struct {
	FlowwIndex                   int
	Square, Topflat, Triangle    osc.Conf
	notes                        []synthNote
}

func NewSynth(flowwIndex int, square, topflat, triangle osc.Conf) *Synth {
	return &Synth{FlowwIndex: flowwIndex, Square: square, Topflat: topflat, Triangle: triangle}
}

func (s *Synth) envVel(conf adsr.Conf, envT, relT float32) float32 {
	if relT == 0 {
		return adsr.ApplyADS(conf, envT)
	}
	return adsr.ApplyRRT(conf, envT, relT)
}

func (s *Synth) Generate(ga GenArgs, _ *sample.Bank, fb *floww.Bank, _ float32, buf sample.Sample, _ []sample.Sample) {
	ampMul := 1.0 / (s.Square.Volume*s.Square.Adsr.MaxVel() +
		s.Topflat.Volume*s.Topflat.Adsr.MaxVel() +
		s.Triangle.Volume*s.Triangle.Adsr.MaxVel())

	var releaseSec float32
	if s.Square.Volume > 0 {
		releaseSec = s.Square.Adsr.ReleaseSec
	}
	if s.Topflat.Volume > 0 && s.Topflat.Adsr.ReleaseSec > releaseSec {
		releaseSec = s.Topflat.Adsr.ReleaseSec
	}
	if s.Triangle.Volume > 0 && s.Triangle.Adsr.ReleaseSec > releaseSec {
		releaseSec = s.Triangle.Adsr.ReleaseSec
	}

	sr := float32(ga.SR)
	fb.StartBlock(s.FlowwIndex)
	for i := 0; i < ga.Len; i++ {
		for _, ev := range fb.GetBlockSimple(s.FlowwIndex, i) {
			if ev.On {
				s.notes = append(s.notes, synthNote{Note: ev.Note, Vel: ev.Velocity, EnvT: -float32(i) / sr, RelT: 0})
				continue
			}
			kept := s.notes[:0]
			for _, n := range s.notes {
				if abs32(n.Note-ev.Note) > 0.001 || n.RelT == 0 {
					kept = append(kept, n)
				}
			}
			s.notes = kept
			for j := range s.notes {
				if abs32(s.notes[j].Note-ev.Note) > 0.001 {
					continue
				}
				if s.notes[j].RelT == 0 {
					s.notes[j].RelT = s.notes[j].EnvT + float32(i)/sr
					s.notes[j].EnvT = -float32(i) / sr
				} else {
					panic("graph: Synth: impossible release stage note")
				}
			}
		}

		buf.L[i] = 0
		buf.R[i] = 0
		time := float32(ga.T+i) / sr
		for _, n := range s.notes {
			envTime := n.EnvT + float32(i)/sr
			hz := noteToHz(n.Note)

			var sum float32
			if s.Square.Volume > 0 {
				sum += osc.SquareSine(time, hz, s.Square.Z) * n.Vel * s.envVel(s.Square.Adsr, envTime, n.RelT) * s.Square.Volume
			}
			if s.Topflat.Volume > 0 {
				sum += osc.TopflatSine(time, hz, s.Topflat.Z) * n.Vel * s.envVel(s.Topflat.Adsr, envTime, n.RelT) * s.Topflat.Volume
			}
			if s.Triangle.Volume > 0 {
				sum += osc.Triangle(time, hz) * n.Vel * s.envVel(s.Triangle.Adsr, envTime, n.RelT) * s.Triangle.Volume
			}
			sum *= ampMul
			buf.L[i] += sum
			buf.R[i] += sum
		}
	}

	for i := range s.notes {
		s.notes[i].EnvT += float32(ga.Len) / sr
	}
	kept := s.notes[:0]
	for _, n := range s.notes {
		if n.RelT == 0 || n.EnvT <= releaseSec {
			kept = append(kept, n)
		}
	}
	s.notes = kept
}

func (s *Synth) HasInput() bool { return false }
func (s *Synth) SetTime(int)    { s.notes = nil }

type sampSynNote struct {
	Note, Vel, EnvT, RelT float32
	state                 osc.State
}

// SampSyn is a wavetable-sampled monophonic-oscillator synth sharing
// Synth's note/envelope voice protocol.
type SampSyn struct {
	FlowwIndex int
	Adsr       adsr.Conf
	WaveTable  osc.WaveTable
	notes      []sampSynNote
}

func NewSampSyn(flowwIndex int, conf adsr.Conf, wt osc.WaveTable) *SampSyn {
	return &SampSyn{FlowwIndex: flowwIndex, Adsr: conf, WaveTable: wt}
}

func (s *SampSyn) Generate(ga GenArgs, _ *sample.Bank, fb *floww.Bank, _ float32, buf sample.Sample, _ []sample.Sample) {
	ampMul := 1.0 / s.Adsr.MaxVel()
	sr := float32(ga.SR)
	fb.StartBlock(s.FlowwIndex)
	for i := 0; i < ga.Len; i++ {
		for _, ev := range fb.GetBlockSimple(s.FlowwIndex, i) {
			if ev.On {
				s.notes = append(s.notes, sampSynNote{Note: ev.Note, Vel: ev.Velocity, EnvT: -float32(i) / sr, RelT: 0})
				continue
			}
			kept := s.notes[:0]
			for _, n := range s.notes {
				if abs32(n.Note-ev.Note) > 0.001 || n.RelT == 0 {
					kept = append(kept, n)
				}
			}
			s.notes = kept
			for j := range s.notes {
				if abs32(s.notes[j].Note-ev.Note) > 0.001 {
					continue
				}
				if s.notes[j].RelT == 0 {
					s.notes[j].RelT = s.notes[j].EnvT + float32(i)/sr
					s.notes[j].EnvT = -float32(i) / sr
				} else {
					panic("graph: SampSyn: impossible release stage note")
				}
			}
		}

		buf.L[i] = 0
		buf.R[i] = 0
		for j := range s.notes {
			n := &s.notes[j]
			envTime := n.EnvT + float32(i)/sr
			hz := noteToHz(n.Note)

			var envVel float32
			if n.RelT == 0 {
				envVel = adsr.ApplyADS(s.Adsr, envTime)
			} else {
				envVel = adsr.ApplyRRT(s.Adsr, envTime, n.RelT)
			}
			vel := n.Vel * envVel * ampMul
			out := n.state.Sample(s.WaveTable, hz, ga.SR) * vel
			buf.L[i] += out
			buf.R[i] += out
		}
	}

	for i := range s.notes {
		s.notes[i].EnvT += float32(ga.Len) / sr
	}
	kept := s.notes[:0]
	for _, n := range s.notes {
		if n.RelT == 0 || n.EnvT <= s.Adsr.ReleaseSec {
			kept = append(kept, n)
		}
	}
	s.notes = kept
}

func (s *SampSyn) HasInput() bool { return false }
func (s *SampSyn) SetTime(int)    { s.notes = nil }

// Lv2fx forwards each sample pair through an external AudioEffect
// (the LV2-host substitute), blending dry/wet linearly.
type Lv2fx struct {
	Index  int
	Effect fx.AudioEffect
}

func NewLv2fx(index int, effect fx.AudioEffect) *Lv2fx {
	return &Lv2fx{Index: index, Effect: effect}
}

func (l *Lv2fx) Generate(ga GenArgs, _ *sample.Bank, _ *floww.Bank, wet float32, buf sample.Sample, _ []sample.Sample) {
	if wet < 0.0001 {
		return
	}
	for i := 0; i < ga.Len; i++ {
		pl, pr := l.Effect.Process(l.Index, buf.L[i], buf.R[i])
		buf.L[i] = lerp(buf.L[i], pl, wet)
		buf.R[i] = lerp(buf.R[i], pr, wet)
	}
}

func (l *Lv2fx) HasInput() bool { return true }
func (l *Lv2fx) SetTime(int)    {}

type envVoice struct {
	EnvT, Vel, ReleaseValue float32
}

// Adsr is a side-chain amplitude envelope applied to its summed
// inputs, triggered either by note-on/off pairs or by drum hits.
type Adsr struct {
	UseOff, UseMax bool
	Conf           adsr.Conf
	FlowwIndex     int
	Note           *int
	primary, ghost envVoice
}

func NewAdsr(useOff, useMax bool, conf adsr.Conf, flowwIndex int, note *int) *Adsr {
	return &Adsr{UseOff: useOff, UseMax: useMax, Conf: conf, FlowwIndex: flowwIndex, Note: note}
}

func (a *Adsr) Generate(ga GenArgs, _ *sample.Bank, fb *floww.Bank, wet float32, buf sample.Sample, _ []sample.Sample) {
	if wet < 0.0001 {
		return
	}
	maxMul := float32(0.0)
	if a.UseMax {
		maxMul = 1.0
	}
	minMul := 1.0 - maxMul
	sr := float32(ga.SR)

	fb.StartBlock(a.FlowwIndex)
	if a.UseOff {
		for i := 0; i < ga.Len; i++ {
			offset := float32(i) / sr
			for _, ev := range fb.GetBlockSimple(a.FlowwIndex, i) {
				if a.Note != nil && abs32(float32(*a.Note)-ev.Note) > 0.01 {
					continue
				}
				if ev.On {
					a.ghost = a.primary
					a.primary = envVoice{EnvT: -float32(i) / sr, Vel: ev.Velocity, ReleaseValue: 0}
				} else if a.ghost.ReleaseValue == 0 {
					a.ghost.EnvT = -float32(i) / sr
					a.ghost.ReleaseValue = adsr.ApplyADS(a.Conf, a.ghost.EnvT+offset) * a.ghost.Vel
				} else {
					a.primary.EnvT = -float32(i) / sr
					a.primary.ReleaseValue = adsr.ApplyADS(a.Conf, a.primary.EnvT+offset) * a.primary.Vel
				}
			}

			pvel := a.voiceVel(a.primary, offset)
			gvel := a.voiceVel(a.ghost, offset)
			adsrVel := fmax32(pvel, gvel)*maxMul + fmin32(pvel, gvel)*minMul
			vel := lerp(1.0, adsrVel, wet)
			buf.L[i] *= vel
			buf.R[i] *= vel
		}
	} else {
		for i := 0; i < ga.Len; i++ {
			if note, v, ok := fb.GetBlockDrum(a.FlowwIndex, i); ok {
				if a.Note == nil || abs32(float32(*a.Note)-note) <= 0.01 {
					a.ghost = a.primary
					a.primary = envVoice{EnvT: -float32(i) / sr, Vel: v, ReleaseValue: 0}
				}
			}
			offset := float32(i) / sr
			pvel := adsr.ApplyADSR(a.Conf, a.primary.EnvT+offset) * a.primary.Vel
			gvel := adsr.ApplyADSR(a.Conf, a.ghost.EnvT+offset) * a.ghost.Vel
			adsrVel := fmax32(pvel, gvel)*maxMul + fmin32(pvel, gvel)*minMul
			vel := lerp(1.0, adsrVel, wet)
			buf.L[i] *= vel
			buf.R[i] *= vel
		}
	}
	a.primary.EnvT += float32(ga.Len) / sr
	a.ghost.EnvT += float32(ga.Len) / sr
}

func (a *Adsr) voiceVel(v envVoice, offset float32) float32 {
	if v.ReleaseValue == 0 {
		return adsr.ApplyADS(a.Conf, v.EnvT+offset) * v.Vel
	}
	return adsr.ApplyR(a.Conf, v.EnvT+offset, v.ReleaseValue) * v.Vel
}

func fmax32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func fmin32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func (a *Adsr) HasInput() bool { return true }
func (a *Adsr) SetTime(int)    {}

// BandPassVertex adapts fx.BandPass (a plain DSP filter) into a
// VertexExt.
type BandPassVertex struct {
	*fx.BandPass
}

func NewBandPassVertex(cutLowHz, cutHighHz float32, pass bool, sampleRate int) *BandPassVertex {
	return &BandPassVertex{BandPass: fx.NewBandPass(cutLowHz, cutHighHz, pass, sampleRate)}
}

func (b *BandPassVertex) Generate(ga GenArgs, _ *sample.Bank, _ *floww.Bank, wet float32, buf sample.Sample, _ []sample.Sample) {
	b.Apply(buf.L, buf.R, ga.Len, wet)
}

func (b *BandPassVertex) HasInput() bool { return true }
func (b *BandPassVertex) SetTime(int)    { b.BandPass.SetTime() }
