package graph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/codybloemhard/termdaw-go/internal/floww"
	"github.com/codybloemhard/termdaw-go/internal/sample"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestWAV(t *testing.T, path string, frames [][]int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, 44100, 16, 2, 1)
	data := make([]int, 0, len(frames)*2)
	for _, fr := range frames {
		data = append(data, fr...)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: 44100},
		Data:           data,
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
}

func sampleBankWithTone(t *testing.T) *sample.Bank {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tone.wav")
	max := (1 << 15) - 1
	writeTestWAV(t, path, [][]int{{max / 2, max / 2}, {-max / 2, -max / 2}, {max / 4, max / 4}, {-max / 4, -max / 4}})

	bank := sample.NewBank(44100)
	require.NoError(t, bank.Add("tone", path, sample.Stereo))
	return bank
}

// countingVertex wraps a VertexExt and counts how many times Generate
// actually ran, to assert the ran-flags discipline (at most once per
// chunk even when reached through multiple paths).
type countingVertex struct {
	VertexExt
	calls int
}

func (c *countingVertex) Generate(ga GenArgs, sb *sample.Bank, fb *floww.Bank, wet float32, buf sample.Sample, inputs []sample.Sample) {
	c.calls++
	c.VertexExt.Generate(ga, sb, fb, wet, buf, inputs)
}

func newGraph() *Graph {
	return New(4, 44100)
}

func TestConnectRejectsSelfLoop(t *testing.T) {
	g := newGraph()
	g.Add(NewVertex(4, 1, 0, 1, NewSum()), "a")
	assert.False(t, g.Connect("a", "a"))
}

func TestConnectRejectsUnknownNames(t *testing.T) {
	g := newGraph()
	g.Add(NewVertex(4, 1, 0, 1, NewSum()), "a")
	assert.False(t, g.Connect("missing", "a"))
	assert.False(t, g.Connect("a", "missing"))
}

func TestConnectRejectsNoInputTarget(t *testing.T) {
	g := newGraph()
	g.Add(NewVertex(4, 1, 0, 1, NewSum()), "a")
	g.Add(NewVertex(4, 1, 0, 1, NewSampleLoop(0)), "loop")
	assert.False(t, g.Connect("a", "loop"))
}

func TestConnectRejectsCycle(t *testing.T) {
	g := newGraph()
	g.Add(NewVertex(4, 1, 0, 1, NewSum()), "a")
	g.Add(NewVertex(4, 1, 0, 1, NewSum()), "b")
	require.True(t, g.Connect("a", "b"))
	assert.False(t, g.Connect("b", "a"))
}

func TestCheckGraphNoOutput(t *testing.T) {
	g := newGraph()
	g.Add(NewVertex(4, 1, 0, 1, NewSum()), "a")
	_, _, err := g.CheckGraph()
	assert.ErrorIs(t, err, ErrOutputNotSet)
}

func TestCheckGraphOutputNoInput(t *testing.T) {
	g := newGraph()
	g.Add(NewVertex(4, 1, 0, 1, NewSum()), "a")
	require.True(t, g.SetOutput("a"))
	_, _, err := g.CheckGraph()
	assert.ErrorIs(t, err, ErrOutputNoInput)
}

func TestCheckGraphReportsUnreachableVertex(t *testing.T) {
	g := newGraph()
	g.Add(NewVertex(4, 1, 0, 1, NewSampleLoop(0)), "src")
	g.Add(NewVertex(4, 1, 0, 1, NewSum()), "out")
	g.Add(NewVertex(4, 1, 0, 1, NewSampleLoop(0)), "orphan")
	require.True(t, g.Connect("src", "out"))
	require.True(t, g.SetOutput("out"))

	ok, warnings, err := g.CheckGraph()
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "orphan")
}

func TestRenderRunsEachVertexOncePerChunk(t *testing.T) {
	g := newGraph()
	g.Add(NewVertex(4, 1, 0, 1, NewSampleLoop(0)), "src")
	sumA := &countingVertex{VertexExt: NewSum()}
	sumB := &countingVertex{VertexExt: NewSum()}
	g.Add(NewVertex(4, 1, 0, 1, sumA), "a")
	g.Add(NewVertex(4, 1, 0, 1, sumB), "b")
	require.True(t, g.Connect("src", "a"))
	require.True(t, g.Connect("src", "b"))
	require.True(t, g.Connect("a", "b"))
	require.True(t, g.SetOutput("b"))

	sb := sampleBankWithTone(t)
	fb := floww.NewBank(44100, 4)

	_, ok := g.Render(sb, fb)
	require.True(t, ok)

	assert.Equal(t, 1, sumA.calls)
	assert.Equal(t, 1, sumB.calls)
}

func TestSetTimeAndChangeTime(t *testing.T) {
	g := newGraph()
	g.Add(NewVertex(4, 1, 0, 1, NewSum()), "a")

	g.SetTime(100)
	assert.Equal(t, 100, g.currentFrame)
	assert.Equal(t, 100, g.GetTime())

	next := g.ChangeTime(50, true)
	assert.Equal(t, 150, next)
	assert.Equal(t, 150, g.GetTime())

	next = g.ChangeTime(1000, false)
	assert.Equal(t, 0, next)
}

func TestSetGainAndSetAngleClamp(t *testing.T) {
	g := newGraph()
	g.Add(NewVertex(4, 1, 0, 1, NewSum()), "a")
	idx, ok := g.GetIndex("a")
	require.True(t, ok)

	g.SetGain(idx, 0.5)
	assert.Equal(t, float32(0.5), g.vertices[idx].Gain)

	g.SetAngle(idx, 150)
	assert.Equal(t, float32(90), g.vertices[idx].Angle)
	g.SetAngle(idx, -150)
	assert.Equal(t, float32(-90), g.vertices[idx].Angle)
}

func TestNamesAndGainAngleReflectInsertionAndUpdates(t *testing.T) {
	g := newGraph()
	g.Add(NewVertex(4, 1, 10, 1, NewSum()), "a")
	g.Add(NewVertex(4, 2, -20, 1, NewSum()), "b")

	assert.Equal(t, []string{"a", "b"}, g.Names())

	idx, ok := g.GetIndex("b")
	require.True(t, ok)
	gain, angle := g.GainAngle(idx)
	assert.Equal(t, float32(2), gain)
	assert.Equal(t, float32(-20), angle)
}

func TestOutputBufferReflectsLastRender(t *testing.T) {
	g := newGraph()
	_, ok := g.OutputBuffer()
	assert.False(t, ok)

	g.Add(NewVertex(4, 1, 0, 1, NewSampleLoop(0)), "src")
	require.True(t, g.SetOutput("src"))

	sb := sampleBankWithTone(t)
	fb := floww.NewBank(44100, 4)
	_, ok = g.Render(sb, fb)
	require.True(t, ok)

	buf, ok := g.OutputBuffer()
	require.True(t, ok)
	assert.NotEqual(t, float32(0), buf.L[0])
}

func TestTrueNormalizeScanSeedsThenRestoresTime(t *testing.T) {
	g := newGraph()
	g.Add(NewVertex(4, 1, 0, 1, NewSampleLoop(0)), "src")
	g.Add(NewVertex(4, 1, 0, 1, NewNormalize()), "norm")
	require.True(t, g.Connect("src", "norm"))
	require.True(t, g.SetOutput("norm"))
	g.ResetNormalizeVertices()

	sb := sampleBankWithTone(t)
	fb := floww.NewBank(44100, 4)

	g.SetTime(20)
	g.TrueNormalizeScan(sb, fb, 3)

	assert.Equal(t, 0, g.currentFrame)
	values := g.NormalizationValues()
	require.Contains(t, values, "norm")
}
