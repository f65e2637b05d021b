package graph

import (
	"testing"

	"github.com/codybloemhard/termdaw-go/internal/adsr"
	"github.com/codybloemhard/termdaw-go/internal/floww"
	"github.com/codybloemhard/termdaw-go/internal/fx"
	"github.com/codybloemhard/termdaw-go/internal/osc"
	"github.com/codybloemhard/termdaw-go/internal/sample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frames4(ga *GenArgs) {
	*ga = GenArgs{T: 0, SR: 44100, Len: 4, IsScan: false}
}

func TestSumPassesThroughSummedInputs(t *testing.T) {
	g := newGraph()
	g.Add(NewVertex(4, 1, 0, 1, NewSampleLoop(0)), "src")
	g.Add(NewVertex(4, 1, 0, 1, NewSum()), "out")
	require.True(t, g.Connect("src", "out"))
	require.True(t, g.SetOutput("out"))

	sb := sampleBankWithTone(t)
	fb := floww.NewBank(44100, 4)

	buf, ok := g.Render(sb, fb)
	require.True(t, ok)
	assert.NotEqual(t, float32(0), buf.L[0])
}

func TestNormalizeDividesByMax(t *testing.T) {
	s, err := sample.From([]float32{0.2, 0.4, 0.8, -0.1}, []float32{0.2, 0.4, 0.8, -0.1})
	require.NoError(t, err)

	n := NewNormalize()
	n.ResetNormalization()
	n.max = 0.8

	var ga GenArgs
	frames4(&ga)
	n.Generate(ga, nil, nil, 1, s, nil)

	assert.InDelta(t, 1.0, s.L[2], 1e-6)
}

func TestSampleLoopWrapsAroundSampleLength(t *testing.T) {
	sb := sampleBankWithTone(t)
	idx, ok := sb.GetIndex("tone")
	require.True(t, ok)
	src := sb.GetSample(idx)

	loop := NewSampleLoop(idx)
	buf := sample.New(4)
	var ga GenArgs
	frames4(&ga)

	loop.Generate(ga, sb, nil, 1, buf, nil)
	assert.Equal(t, src.L, buf.L)

	// second chunk should continue wrapping, not restart
	loop.Generate(ga, sb, nil, 1, buf, nil)
	assert.Equal(t, src.L, buf.L)
}

func drumFloww(t *testing.T, events []floww.Event) (*floww.Bank, int) {
	t.Helper()
	fb := floww.NewBank(44100, 4)
	fb.DeclareStream("drum")
	fb.AppendStreams([]floww.Packet{{Stream: "drum", Events: events}})
	idx, ok := fb.GetIndex("drum")
	require.True(t, ok)
	return fb, idx
}

func TestSampleMultiPlaysHitFromItsTriggerFrame(t *testing.T) {
	sb := sampleBankWithTone(t)
	sampleIdx, ok := sb.GetIndex("tone")
	require.True(t, ok)
	src := sb.GetSample(sampleIdx)

	fb, flowwIdx := drumFloww(t, []floww.Event{
		{Time: 0, Note: 60, Velocity: 1.0},
	})

	sm := NewSampleMulti(sampleIdx, flowwIdx, nil)
	buf := sample.New(4)
	var ga GenArgs
	frames4(&ga)

	fb.SetTime(0)
	sm.Generate(ga, sb, fb, 1, buf, nil)

	assert.InDelta(t, src.L[0], buf.L[0], 1e-5)
	assert.InDelta(t, src.L[1], buf.L[1], 1e-5)
}

func TestSampleMultiFiltersByNote(t *testing.T) {
	sb := sampleBankWithTone(t)
	sampleIdx, ok := sb.GetIndex("tone")
	require.True(t, ok)

	fb, flowwIdx := drumFloww(t, []floww.Event{
		{Time: 0, Note: 61, Velocity: 1.0},
	})

	note := 60
	sm := NewSampleMulti(sampleIdx, flowwIdx, &note)
	buf := sample.New(4)
	var ga GenArgs
	frames4(&ga)

	fb.SetTime(0)
	sm.Generate(ga, sb, fb, 1, buf, nil)

	for _, v := range buf.L {
		assert.Equal(t, float32(0), v)
	}
}

func TestSampleLerpCrossfadesOnRetrigger(t *testing.T) {
	sb := sampleBankWithTone(t)
	sampleIdx, ok := sb.GetIndex("tone")
	require.True(t, ok)

	fb, flowwIdx := drumFloww(t, []floww.Event{
		{Time: 0, Note: 60, Velocity: 1.0},
	})

	sl := NewSampleLerp(sampleIdx, flowwIdx, nil, 2)
	buf := sample.New(4)
	var ga GenArgs
	frames4(&ga)

	fb.SetTime(0)
	sl.Generate(ga, sb, fb, 1, buf, nil)
	assert.Equal(t, 0, sl.countdown)
}

func TestDebugSineEmitsToneWhileNoteHeld(t *testing.T) {
	fb, flowwIdx := drumFloww(t, []floww.Event{
		{Time: 0, Note: 69, Velocity: 1.0},
	})

	ds := NewDebugSine(flowwIdx)
	buf := sample.New(4)
	var ga GenArgs
	frames4(&ga)

	fb.SetTime(0)
	ds.Generate(ga, nil, fb, 1, buf, nil)

	assert.Equal(t, float32(0), buf.L[0])
	assert.NotEqual(t, float32(0), buf.L[1])
	require.Len(t, ds.notes, 1)
}

func TestSynthProducesNormalizedOutput(t *testing.T) {
	fb, flowwIdx := drumFloww(t, []floww.Event{
		{Time: 0, Note: 69, Velocity: 1.0},
	})

	square := osc.Conf{Volume: 1, Z: 1, Adsr: adsr.Conf{StdVel: 1, AttackVel: 1, DecayVel: 1, SustainVel: 1, ReleaseVel: 1, AttackSec: 0.001, DecaySec: 0.001, SustainSec: 10, ReleaseSec: 0.01}}
	synth := NewSynth(flowwIdx, square, osc.Conf{}, osc.Conf{})
	buf := sample.New(4)
	var ga GenArgs
	frames4(&ga)

	fb.SetTime(0)
	synth.Generate(ga, nil, fb, 1, buf, nil)

	for _, v := range buf.L {
		assert.LessOrEqual(t, v, float32(1.001))
		assert.GreaterOrEqual(t, v, float32(-1.001))
	}
}

func TestSampSynUsesWaveTable(t *testing.T) {
	fb, flowwIdx := drumFloww(t, []floww.Event{
		{Time: 0, Note: 69, Velocity: 1.0},
	})

	conf := adsr.Conf{StdVel: 1, AttackVel: 1, DecayVel: 1, SustainVel: 1, ReleaseVel: 1, AttackSec: 0.001, DecaySec: 0.001, SustainSec: 10, ReleaseSec: 0.01}
	ss := NewSampSyn(flowwIdx, conf, osc.DefaultWaveTable())
	buf := sample.New(4)
	var ga GenArgs
	frames4(&ga)

	fb.SetTime(0)
	ss.Generate(ga, nil, fb, 1, buf, nil)
	require.Len(t, ss.notes, 1)
	assert.NotEqual(t, float32(0), ss.notes[0].state.Phase)
}

type passthroughEffect struct{}

func (passthroughEffect) Process(_ int, l, r float32) (float32, float32) { return l * 0.5, r * 0.5 }

func TestLv2fxBlendsDryWet(t *testing.T) {
	lv := NewLv2fx(0, passthroughEffect{})
	buf, err := sample.From([]float32{1, 1}, []float32{1, 1})
	require.NoError(t, err)

	var ga GenArgs
	ga = GenArgs{T: 0, SR: 44100, Len: 2}
	lv.Generate(ga, nil, nil, 0.5, buf, nil)

	assert.InDelta(t, 0.75, buf.L[0], 1e-6)
}

func TestLv2fxSkipsOnLowWet(t *testing.T) {
	lv := NewLv2fx(0, passthroughEffect{})
	buf, err := sample.From([]float32{1}, []float32{1})
	require.NoError(t, err)

	var ga GenArgs
	ga = GenArgs{T: 0, SR: 44100, Len: 1}
	lv.Generate(ga, nil, nil, 0.00001, buf, nil)

	assert.Equal(t, float32(1), buf.L[0])
}

func TestAdsrDrumModeShapesAmplitude(t *testing.T) {
	fb, flowwIdx := drumFloww(t, []floww.Event{
		{Time: 0, Note: 60, Velocity: 1.0},
	})

	conf := adsr.Conf{StdVel: 1, AttackVel: 1, DecayVel: 0.5, SustainVel: 0.5, ReleaseVel: 0, AttackSec: 0.0001, DecaySec: 0.0001, SustainSec: 10, ReleaseSec: 0.01}
	a := NewAdsr(false, true, conf, flowwIdx, nil)
	buf, err := sample.From([]float32{1, 1, 1, 1}, []float32{1, 1, 1, 1})
	require.NoError(t, err)

	var ga GenArgs
	frames4(&ga)
	fb.SetTime(0)
	a.Generate(ga, nil, fb, 1, buf, nil)

	assert.InDelta(t, 1.0, buf.L[0], 1e-2)
}

func TestBandPassVertexFiltersConstantSignal(t *testing.T) {
	bpv := NewBandPassVertex(500, 5000, false, 44100)
	buf, err := sample.From([]float32{0.3, 0.3, 0.3}, []float32{0.3, 0.3, 0.3})
	require.NoError(t, err)

	var ga GenArgs
	ga = GenArgs{T: 0, SR: 44100, Len: 3}
	bpv.SetTime(0)
	bpv.Generate(ga, nil, nil, 1, buf, nil)

	assert.InDelta(t, 0.15, buf.L[2], 1e-3)
}

var _ = fx.AudioEffect(passthroughEffect{})
