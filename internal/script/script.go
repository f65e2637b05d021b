// Package script evaluates the declarative project description: a Lua
// chunk that calls a fixed vocabulary of seed functions (add_sum,
// load_sample, connect, ...) which this package registers as Go
// closures appending to a Declaration. Nothing here touches the graph
// or the banks directly -- Run only collects typed seeds, the way
// state.rs's `lua.scope` block collects into plain Vecs before the
// caller does anything with them.
package script

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// SampleSeed is one load_sample(name, file, method) call.
type SampleSeed struct{ Name, File, Method string }

// ResourceSeed is one load_resource(name, file) call.
type ResourceSeed struct{ Name, File string }

// MidiSeed is one load_midi_floww(name, file) call.
type MidiSeed struct{ Name, File string }

// Lv2PluginSeed is one load_lv2(name, uri) call.
type Lv2PluginSeed struct{ Name, URI string }

// Lv2ParamSeed is one parameter(plugin, name, value) call.
type Lv2ParamSeed struct {
	Plugin, Name string
	Value        float32
}

// SumSeed is one add_sum(name, gain, angle) call.
type SumSeed struct {
	Name        string
	Gain, Angle float32
}

// NormalizeSeed is one add_normalize(name, gain, angle) call.
type NormalizeSeed struct {
	Name        string
	Gain, Angle float32
}

// SampleLoopSeed is one add_sampleloop(name, gain, angle, sample) call.
type SampleLoopSeed struct {
	Name        string
	Gain, Angle float32
	Sample      string
}

// SampleMultiSeed is one add_sample_multi(...) call. Note < 0 means
// "match any note".
type SampleMultiSeed struct {
	Name          string
	Gain, Angle   float32
	Sample, Floww string
	Note          int
}

// SampleLerpSeed is one add_sample_lerp(...) call.
type SampleLerpSeed struct {
	Name          string
	Gain, Angle   float32
	Sample, Floww string
	Note          int
	LerpLen       int
}

// DebugSineSeed is one add_debug_sine(name, gain, angle, floww) call.
type DebugSineSeed struct {
	Name        string
	Gain, Angle float32
	Floww       string
}

// SynthSeed is one add_synth(...) call. The three *Adsr fields are
// raw ADSR arrays (length 0, 6 or 9) for adsr.BuildConf.
type SynthSeed struct {
	Name            string
	Gain, Angle     float32
	Floww           string
	SquareVel       float32
	SquareZ         float32
	SquareAdsr      []float32
	TopflatVel      float32
	TopflatZ        float32
	TopflatAdsr     []float32
	TriangleVel     float32
	TriangleAdsr    []float32
}

// SampSynSeed is one add_sampsyn(name, gain, angle, floww, adsr, resource) call.
type SampSynSeed struct {
	Name        string
	Gain, Angle float32
	Floww       string
	Adsr        []float32
	Resource    string
}

// Lv2fxSeed is one add_lv2fx(name, gain, angle, wet, plugin) call.
type Lv2fxSeed struct {
	Name              string
	Gain, Angle, Wet  float32
	Plugin            string
}

// AdsrSeed is one add_adsr(...) call.
type AdsrSeed struct {
	Name             string
	Gain, Angle, Wet float32
	Floww            string
	UseOff, UseMax   bool
	Note             int
	Conf             []float32
}

// BandPassSeed is one add_bandpass(...) call.
type BandPassSeed struct {
	Name                       string
	Gain, Angle, Wet           float32
	CutLowHz, CutHighHz        float32
	Pass                       bool
}

// Edge is one connect(source, target) call.
type Edge struct{ From, To string }

// Declaration is everything a single script run produced: the
// settings singletons (seeded from the previous run so a script that
// never calls a setter keeps its old value, mirroring state.rs's
// `std::mem::take`/reassign dance) plus every seed list and edge.
type Declaration struct {
	Chunks           int
	RenderSampleRate int
	RenderBitDepth   int
	OutputFile       string
	OutputVertex     string

	Samples    []SampleSeed
	Resources  []ResourceSeed
	Midis      []MidiSeed
	Streams    []string
	Lv2Plugins []Lv2PluginSeed
	Lv2Params  []Lv2ParamSeed

	Sums         []SumSeed
	Normalizes   []NormalizeSeed
	SampleLoops  []SampleLoopSeed
	SampleMultis []SampleMultiSeed
	SampleLerps  []SampleLerpSeed
	DebugSines   []DebugSineSeed
	Synths       []SynthSeed
	SampSyns     []SampSynSeed
	Lv2fxs       []Lv2fxSeed
	Adsrs        []AdsrSeed
	BandPasses   []BandPassSeed

	Edges []Edge
}

// Host evaluates declaration scripts. It carries no state between
// runs; Run's prev argument supplies the carried-over settings.
type Host struct{}

// New returns a ready-to-use Host.
func New() *Host { return &Host{} }

// Run executes contents as a Lua chunk with the full seed vocabulary
// registered as globals, against a project sample rate psr and block
// length bl (both needed to turn set_length's seconds into a chunk
// count). prev supplies the settings carried forward when the script
// does not call the corresponding setter.
func (h *Host) Run(contents string, psr, bl int, prev Declaration) (Declaration, error) {
	d := Declaration{
		Chunks:           prev.Chunks,
		RenderSampleRate: prev.RenderSampleRate,
		RenderBitDepth:   prev.RenderBitDepth,
		OutputFile:       prev.OutputFile,
		OutputVertex:     prev.OutputVertex,
	}

	L := lua.NewState()
	defer L.Close()

	reg := func(name string, fn lua.LGFunction) {
		L.SetGlobal(name, L.NewFunction(fn))
	}

	// ---- Settings
	reg("set_length", func(L *lua.LState) int {
		seconds := float32(L.CheckNumber(1))
		d.Chunks = ceilDiv(psr, bl, seconds)
		return 0
	})
	reg("set_render_samplerate", func(L *lua.LState) int {
		d.RenderSampleRate = L.CheckInt(1)
		return 0
	})
	reg("set_render_bitdepth", func(L *lua.LState) int {
		d.RenderBitDepth = L.CheckInt(1)
		return 0
	})
	reg("set_output_file", func(L *lua.LState) int {
		d.OutputFile = L.CheckString(1)
		return 0
	})
	reg("set_output", func(L *lua.LState) int {
		d.OutputVertex = L.CheckString(1)
		return 0
	})

	// ---- Resources
	reg("load_sample", func(L *lua.LState) int {
		d.Samples = append(d.Samples, SampleSeed{Name: L.CheckString(1), File: L.CheckString(2), Method: L.CheckString(3)})
		return 0
	})
	reg("load_resource", func(L *lua.LState) int {
		d.Resources = append(d.Resources, ResourceSeed{Name: L.CheckString(1), File: L.CheckString(2)})
		return 0
	})
	reg("load_midi_floww", func(L *lua.LState) int {
		d.Midis = append(d.Midis, MidiSeed{Name: L.CheckString(1), File: L.CheckString(2)})
		return 0
	})
	reg("declare_stream", func(L *lua.LState) int {
		d.Streams = append(d.Streams, L.CheckString(1))
		return 0
	})
	reg("load_lv2", func(L *lua.LState) int {
		d.Lv2Plugins = append(d.Lv2Plugins, Lv2PluginSeed{Name: L.CheckString(1), URI: L.CheckString(2)})
		return 0
	})
	reg("parameter", func(L *lua.LState) int {
		d.Lv2Params = append(d.Lv2Params, Lv2ParamSeed{Plugin: L.CheckString(1), Name: L.CheckString(2), Value: float32(L.CheckNumber(3))})
		return 0
	})

	// ---- Graph
	reg("add_sum", func(L *lua.LState) int {
		d.Sums = append(d.Sums, SumSeed{Name: L.CheckString(1), Gain: f32(L, 2), Angle: f32(L, 3)})
		return 0
	})
	reg("add_normalize", func(L *lua.LState) int {
		d.Normalizes = append(d.Normalizes, NormalizeSeed{Name: L.CheckString(1), Gain: f32(L, 2), Angle: f32(L, 3)})
		return 0
	})
	reg("add_sampleloop", func(L *lua.LState) int {
		d.SampleLoops = append(d.SampleLoops, SampleLoopSeed{
			Name: L.CheckString(1), Gain: f32(L, 2), Angle: f32(L, 3), Sample: L.CheckString(4),
		})
		return 0
	})
	reg("add_sample_multi", func(L *lua.LState) int {
		d.SampleMultis = append(d.SampleMultis, SampleMultiSeed{
			Name: L.CheckString(1), Gain: f32(L, 2), Angle: f32(L, 3),
			Sample: L.CheckString(4), Floww: L.CheckString(5), Note: L.CheckInt(6),
		})
		return 0
	})
	reg("add_sample_lerp", func(L *lua.LState) int {
		d.SampleLerps = append(d.SampleLerps, SampleLerpSeed{
			Name: L.CheckString(1), Gain: f32(L, 2), Angle: f32(L, 3),
			Sample: L.CheckString(4), Floww: L.CheckString(5), Note: L.CheckInt(6), LerpLen: L.CheckInt(7),
		})
		return 0
	})
	reg("add_debug_sine", func(L *lua.LState) int {
		d.DebugSines = append(d.DebugSines, DebugSineSeed{
			Name: L.CheckString(1), Gain: f32(L, 2), Angle: f32(L, 3), Floww: L.CheckString(4),
		})
		return 0
	})
	reg("add_synth", func(L *lua.LState) int {
		d.Synths = append(d.Synths, SynthSeed{
			Name: L.CheckString(1), Gain: f32(L, 2), Angle: f32(L, 3), Floww: L.CheckString(4),
			SquareVel: f32(L, 5), SquareZ: f32(L, 6), SquareAdsr: floatArray(L.CheckTable(7)),
			TopflatVel: f32(L, 8), TopflatZ: f32(L, 9), TopflatAdsr: floatArray(L.CheckTable(10)),
			TriangleVel: f32(L, 11), TriangleAdsr: floatArray(L.CheckTable(12)),
		})
		return 0
	})
	reg("add_sampsyn", func(L *lua.LState) int {
		d.SampSyns = append(d.SampSyns, SampSynSeed{
			Name: L.CheckString(1), Gain: f32(L, 2), Angle: f32(L, 3), Floww: L.CheckString(4),
			Adsr: floatArray(L.CheckTable(5)), Resource: L.CheckString(6),
		})
		return 0
	})
	reg("add_lv2fx", func(L *lua.LState) int {
		d.Lv2fxs = append(d.Lv2fxs, Lv2fxSeed{
			Name: L.CheckString(1), Gain: f32(L, 2), Angle: f32(L, 3), Wet: f32(L, 4), Plugin: L.CheckString(5),
		})
		return 0
	})
	reg("add_adsr", func(L *lua.LState) int {
		d.Adsrs = append(d.Adsrs, AdsrSeed{
			Name: L.CheckString(1), Gain: f32(L, 2), Angle: f32(L, 3), Wet: f32(L, 4), Floww: L.CheckString(5),
			UseOff: L.CheckBool(6), UseMax: L.CheckBool(7), Note: L.CheckInt(8), Conf: floatArray(L.CheckTable(9)),
		})
		return 0
	})
	reg("add_bandpass", func(L *lua.LState) int {
		d.BandPasses = append(d.BandPasses, BandPassSeed{
			Name: L.CheckString(1), Gain: f32(L, 2), Angle: f32(L, 3), Wet: f32(L, 4),
			CutLowHz: f32(L, 5), CutHighHz: f32(L, 6), Pass: L.CheckBool(7),
		})
		return 0
	})
	reg("connect", func(L *lua.LState) int {
		d.Edges = append(d.Edges, Edge{From: L.CheckString(1), To: L.CheckString(2)})
		return 0
	})

	if err := L.DoString(contents); err != nil {
		return Declaration{}, fmt.Errorf("script: Run: %w", err)
	}
	return d, nil
}

func f32(L *lua.LState, idx int) float32 { return float32(L.CheckNumber(idx)) }

func floatArray(t *lua.LTable) []float32 {
	n := t.Len()
	if n == 0 {
		return nil
	}
	arr := make([]float32, n)
	for i := 1; i <= n; i++ {
		arr[i-1] = float32(lua.LVAsNumber(t.RawGetInt(i)))
	}
	return arr
}

func ceilDiv(psr, bl int, seconds float32) int {
	raw := float32(psr) * seconds / float32(bl)
	n := int(raw)
	if float32(n) < raw {
		n++
	}
	return n
}
