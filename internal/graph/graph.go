// Package graph implements the directed audio processing graph: a
// Vertex per generator/effect/sum node, executed in reverse-topological
// order from a single declared output, and the eleven VertexExt
// variants that produce or transform audio (spec section 4.5-4.7).
package graph

import (
	"errors"
	"fmt"

	"github.com/codybloemhard/termdaw-go/internal/floww"
	"github.com/codybloemhard/termdaw-go/internal/sample"
)

// GenArgs is the per-chunk context passed to every vertex's Generate.
type GenArgs struct {
	T      int
	SR     int
	Len    int
	IsScan bool
}

// VertexExt is one generator/effect variant. Generate receives the
// already-length-clamped input buffers (gathered from the vertex's
// incoming edges) and must write at most ga.Len frames into buf.
type VertexExt interface {
	Generate(ga GenArgs, sb *sample.Bank, fb *floww.Bank, wet float32, buf sample.Sample, inputs []sample.Sample)
	HasInput() bool
	SetTime(t int)
}

// normalizer is implemented by VertexExt variants that carry a
// normalization divisor (only Normalize), used by the scan pass and
// by the "print normalization values" CLI verb.
type normalizer interface {
	ResetScan()
	ApplyScan()
	ResetNormalization()
	NormalizationValue() float32
}

// Vertex owns one node's output buffer, post-processing (gain/pan),
// and generator variant.
type Vertex struct {
	Buf   sample.Sample
	Gain  float32
	Angle float32
	Wet   float32
	Ext   VertexExt
}

// NewVertex builds a vertex with a zeroed buffer of bl frames. Angle
// is clamped to [-90, 90] exactly as the original engine does.
func NewVertex(bl int, gain, angle, wet float32, ext VertexExt) Vertex {
	if angle > 90 {
		angle = 90
	}
	if angle < -90 {
		angle = -90
	}
	return Vertex{
		Buf:   sample.New(bl),
		Gain:  gain,
		Angle: angle,
		Wet:   wet,
		Ext:   ext,
	}
}

func sumInputs(buf sample.Sample, length int, inputs []sample.Sample) {
	buf.Zero()
	for _, in := range inputs {
		l := in.Len()
		if l > length {
			l = length
		}
		for i := 0; i < l; i++ {
			buf.L[i] += in.L[i]
			buf.R[i] += in.R[i]
		}
	}
}

func (v *Vertex) generate(ga GenArgs, sb *sample.Bank, fb *floww.Bank, inputs []sample.Sample) {
	length := v.Buf.Len()
	if ga.Len < length {
		length = ga.Len
	}
	ga.Len = length

	if v.Ext.HasInput() {
		sumInputs(v.Buf, length, inputs)
	}
	v.Ext.Generate(ga, sb, fb, v.Wet, v.Buf, inputs)
	v.Buf.ApplyAngle(v.Angle, length)
	v.Buf.ApplyGain(v.Gain, length)
}

var (
	// ErrOutputNotSet is returned by CheckGraph when no output vertex was declared.
	ErrOutputNotSet = errors.New("graph: output vertex not set")
	// ErrOutputNoInput is returned by CheckGraph when the output vertex has no incoming edges.
	ErrOutputNoInput = errors.New("graph: output vertex receives no input")
)

// Graph is the directed processing graph: vertices plus reverse
// adjacency (each vertex's edges list is what feeds *into* it).
type Graph struct {
	vertices     []Vertex
	edges        [][]int
	names        []string
	nameMap      map[string]int
	ranStatus    []bool
	maxBufferLen int
	sampleRate   int
	outputVertex *int
	currentFrame int
}

// New returns an empty Graph whose vertex buffers are sized to
// maxBufferLen (the project's block length B), generating at
// sampleRate (the project rate P).
func New(maxBufferLen, sampleRate int) *Graph {
	return &Graph{
		nameMap:      make(map[string]int),
		maxBufferLen: maxBufferLen,
		sampleRate:   sampleRate,
	}
}

// Reset empties the graph entirely.
func (g *Graph) Reset() {
	g.vertices = nil
	g.edges = nil
	g.names = nil
	g.nameMap = make(map[string]int)
	g.ranStatus = nil
	g.outputVertex = nil
	g.currentFrame = 0
}

// Add appends a vertex under name.
func (g *Graph) Add(v Vertex, name string) {
	g.vertices = append(g.vertices, v)
	g.ranStatus = append(g.ranStatus, false)
	g.edges = append(g.edges, nil)
	index := len(g.vertices) - 1
	g.nameMap[name] = index
	g.names = append(g.names, name)
}

func hasLoop(x, target int, edges [][]int) bool {
	if x == target {
		return true
	}
	for _, y := range edges[x] {
		if hasLoop(y, target, edges) {
			return true
		}
	}
	return false
}

func (g *Graph) connectInternal(a, b int) bool {
	if a == b {
		return false
	}
	n := len(g.vertices)
	if a >= n || b >= n {
		return false
	}
	if !g.vertices[b].Ext.HasInput() {
		return false
	}
	if hasLoop(a, b, g.edges) {
		return false
	}
	g.edges[b] = append(g.edges[b], a)
	return true
}

// Connect wires a's output into b's input, rejecting self-loops,
// unknown names, a target with no input slot, and any edge that
// would create a cycle.
func (g *Graph) Connect(a, b string) bool {
	aIdx, aOK := g.nameMap[a]
	if !aOK {
		fmt.Printf("TermDaw: warning: vertex %q cannot be found and thus can't be connected.\n", a)
		return false
	}
	bIdx, bOK := g.nameMap[b]
	if !bOK {
		fmt.Printf("TermDaw: warning: vertex %q cannot be found and thus can't be connected to.\n", b)
		return false
	}
	return g.connectInternal(aIdx, bIdx)
}

// SetOutput designates the named vertex as the root of rendering.
func (g *Graph) SetOutput(name string) bool {
	index, ok := g.nameMap[name]
	if !ok {
		return false
	}
	g.outputVertex = &index
	return true
}

// CheckGraph verifies the output is set and fed, and reports (without
// failing) every vertex unreachable from the output.
func (g *Graph) CheckGraph() (bool, []string, error) {
	if g.outputVertex == nil {
		return false, nil, ErrOutputNotSet
	}
	out := *g.outputVertex
	if len(g.edges[out]) == 0 {
		return false, nil, ErrOutputNoInput
	}

	reached := make([]bool, len(g.vertices))
	var mark func(x int)
	mark = func(x int) {
		if reached[x] {
			return
		}
		reached[x] = true
		for _, y := range g.edges[x] {
			mark(y)
		}
	}
	mark(out)

	var warnings []string
	for i, ok := range reached {
		if !ok {
			warnings = append(warnings, fmt.Sprintf("vertex %q does not reach output", g.names[i]))
		}
	}
	return true, warnings, nil
}

func (g *Graph) resetRanStati() {
	for i := range g.ranStatus {
		g.ranStatus[i] = false
	}
}

func (g *Graph) runVertex(sb *sample.Bank, fb *floww.Bank, index int, ga GenArgs) {
	if index >= len(g.vertices) || g.ranStatus[index] {
		return
	}
	g.ranStatus[index] = true
	incoming := g.edges[index]
	for _, in := range incoming {
		g.runVertex(sb, fb, in, ga)
	}
	inputs := make([]sample.Sample, len(incoming))
	for i, in := range incoming {
		inputs[i] = g.vertices[in].Buf
	}
	g.vertices[index].generate(ga, sb, fb, inputs)
}

// SetTime broadcasts a new time to every vertex, resetting
// variant-local time fields, and moves the graph's own frame cursor.
func (g *Graph) SetTime(t int) {
	for i := range g.vertices {
		g.vertices[i].Ext.SetTime(t)
	}
	g.currentFrame = t
}

// GetTime returns the graph's current frame cursor.
func (g *Graph) GetTime() int {
	return g.currentFrame
}

// ChangeTime saturating-adds or -subtracts delta from the current
// frame and rebroadcasts via SetTime, returning the new frame.
func (g *Graph) ChangeTime(delta int, plus bool) int {
	next := g.currentFrame
	if plus {
		next += delta
	} else {
		next -= delta
		if next < 0 {
			next = 0
		}
	}
	g.SetTime(next)
	return next
}

// Render runs one chunk at the graph's current frame, advances the
// frame by the block length, and returns the output vertex's buffer.
func (g *Graph) Render(sb *sample.Bank, fb *floww.Bank) (sample.Sample, bool) {
	g.resetRanStati()
	if g.outputVertex == nil {
		return sample.Sample{}, false
	}
	index := *g.outputVertex
	ga := GenArgs{T: g.currentFrame, SR: g.sampleRate, Len: g.maxBufferLen, IsScan: false}
	g.runVertex(sb, fb, index, ga)
	g.currentFrame += g.maxBufferLen
	return g.vertices[index].Buf, true
}

// TrueNormalizeScan runs `chunks` is_scan=true passes from frame 0 to
// seed every Normalize vertex's divisor, then restores frame 0.
func (g *Graph) TrueNormalizeScan(sb *sample.Bank, fb *floww.Bank, chunks int) {
	if g.outputVertex == nil {
		return
	}
	index := *g.outputVertex

	for i := range g.vertices {
		if n, ok := g.vertices[i].Ext.(normalizer); ok {
			n.ResetScan()
		}
	}

	g.SetTime(0)
	fb.SetTime(0)
	frame := 0
	for c := 0; c < chunks; c++ {
		g.resetRanStati()
		ga := GenArgs{T: frame, SR: g.sampleRate, Len: g.maxBufferLen, IsScan: true}
		g.runVertex(sb, fb, index, ga)
		fb.SetTimeToNextBlock()
		frame += g.maxBufferLen
	}

	for i := range g.vertices {
		if n, ok := g.vertices[i].Ext.(normalizer); ok {
			n.ApplyScan()
		}
	}

	g.SetTime(0)
	fb.SetTime(0)
}

// ResetNormalizeVertices reseeds every Normalize vertex's divisor to
// the division-by-zero-avoiding epsilon.
func (g *Graph) ResetNormalizeVertices() {
	for i := range g.vertices {
		if n, ok := g.vertices[i].Ext.(normalizer); ok {
			n.ResetNormalization()
		}
	}
}

// NormalizationValues returns the current divisor for every Normalize
// vertex, keyed by name, for the "print-normalization-values" verb.
func (g *Graph) NormalizationValues() map[string]float32 {
	out := make(map[string]float32)
	for i := range g.vertices {
		if n, ok := g.vertices[i].Ext.(normalizer); ok {
			out[g.names[i]] = n.NormalizationValue()
		}
	}
	return out
}

// GetIndex returns the index of a declared vertex, if present.
func (g *Graph) GetIndex(name string) (int, bool) {
	idx, ok := g.nameMap[name]
	return idx, ok
}

// Names returns every vertex name in insertion order, for UI listings.
func (g *Graph) Names() []string {
	out := make([]string, len(g.names))
	copy(out, g.names)
	return out
}

// GainAngle returns a vertex's current post-processing gain and pan angle.
func (g *Graph) GainAngle(index int) (gain, angle float32) {
	return g.vertices[index].Gain, g.vertices[index].Angle
}

// OutputBuffer returns the output vertex's current buffer, for
// waveform/VU display; ok is false if no output is set.
func (g *Graph) OutputBuffer() (sample.Sample, bool) {
	if g.outputVertex == nil {
		return sample.Sample{}, false
	}
	return g.vertices[*g.outputVertex].Buf, true
}

// SetGain updates a vertex's post-processing gain.
func (g *Graph) SetGain(index int, gain float32) {
	g.vertices[index].Gain = gain
}

// SetAngle updates a vertex's post-processing pan angle, clamped to
// [-90, 90].
func (g *Graph) SetAngle(index int, angle float32) {
	if angle > 90 {
		angle = 90
	}
	if angle < -90 {
		angle = -90
	}
	g.vertices[index].Angle = angle
}
