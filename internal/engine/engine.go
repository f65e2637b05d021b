// Package engine ties the script, sample/resource banks, floww bank
// and graph together into the one stateful object a workflow drives:
// Refresh (re-run the project script and rebuild the graph), Render
// (offline WAV render) and the per-chunk primitives a playback loop
// calls directly. Grounded on state.rs's State/refresh/render.
package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/codybloemhard/termdaw-go/internal/adsr"
	"github.com/codybloemhard/termdaw-go/internal/bufferbank"
	"github.com/codybloemhard/termdaw-go/internal/config"
	"github.com/codybloemhard/termdaw-go/internal/floww"
	"github.com/codybloemhard/termdaw-go/internal/graph"
	"github.com/codybloemhard/termdaw-go/internal/osc"
	"github.com/codybloemhard/termdaw-go/internal/sample"
	"github.com/codybloemhard/termdaw-go/internal/script"
	"github.com/codybloemhard/termdaw-go/internal/wavio"
)

// State is the engine's full working state for one project. It is not
// safe for concurrent use; workflows serialize access to it.
type State struct {
	Log    *Logger
	WDir   string
	Config config.Config

	SB   *sample.Bank
	BB   *bufferbank.Bank
	FB   *floww.Bank
	G    *graph.Graph
	Host *PluginHost

	scriptHost *script.Host
	decl       script.Declaration
	loaded     bool

	curSamples   []script.SampleSeed
	curResources []script.ResourceSeed
	curPlugins   []script.Lv2PluginSeed
	curParams    []script.Lv2ParamSeed
}

// New builds a State for a project rooted at wdir (where the main
// script and relative resource paths are resolved against).
func New(wdir string, cfg config.Config, logger *Logger) *State {
	psr := cfg.Settings.ProjectSampleRate()
	bl := cfg.Settings.BufferLength()
	return &State{
		Log:        logger,
		WDir:       wdir,
		Config:     cfg,
		SB:         sample.NewBank(psr),
		BB:         bufferbank.New(),
		FB:         floww.NewBank(psr, bl),
		G:          graph.New(bl, psr),
		Host:       NewPluginHost(),
		scriptHost: script.New(),
	}
}

// Loaded reports whether the last Refresh succeeded.
func (s *State) Loaded() bool { return s.loaded }

// Refresh re-evaluates the project's main script and rebuilds the
// graph from it. A structural failure (missing script, bad Lua, a
// vertex referencing a name that was never declared, an invalid
// graph) leaves the engine unloaded; resource-load failures (a
// sample/resource file that fails to open) are soft: the offending
// seed is dropped and everything else still loads.
func (s *State) Refresh() {
	s.loaded = false
	psr := s.Config.Settings.ProjectSampleRate()
	bl := s.Config.Settings.BufferLength()

	path := filepath.Join(s.WDir, s.Config.Settings.Main)
	contents, err := os.ReadFile(path)
	if err != nil {
		s.Log.Error("could not open main script %q: %v", path, err)
		return
	}

	decl, err := s.scriptHost.Run(string(contents), psr, bl, s.decl)
	if err != nil {
		s.Log.Error("could not run script: %v", err)
		return
	}
	s.decl = decl

	s.refreshSamples(decl.Samples)
	s.refreshResources(decl.Resources)
	s.refreshPlugins(decl.Lv2Plugins, decl.Lv2Params)

	s.Log.Status("reloading floww bank.")
	s.FB.Reset()
	for _, m := range decl.Midis {
		if err := s.FB.AddFloww(m.Name, m.File); err != nil {
			s.Log.Error("could not load midi floww %q: %v", m.Name, err)
			return
		}
	}
	for _, st := range decl.Streams {
		s.FB.DeclareStream(st)
	}

	if !s.rebuildGraph(decl) {
		return
	}

	s.G.ResetNormalizeVertices()
	s.Log.Ok("refreshed.")
	s.loaded = true
}

func (s *State) refreshSamples(wanted []script.SampleSeed) {
	added, removed := diffSamples(s.curSamples, wanted)
	for _, r := range removed {
		s.Log.Info("sample %q will be removed from the sample bank.", r.Name)
		s.SB.MarkDead(r.Name)
	}
	s.Log.Status("refreshing sample bank.")
	s.SB.Refresh()

	var excluded []string
	for _, a := range added {
		s.Log.Status("adding sample %q to the sample bank.", a.Name)
		method, ok := parseLoadMethod(a.Method)
		if !ok {
			s.Log.Error("unknown sample load method %q for %q.", a.Method, a.Name)
			excluded = append(excluded, a.Name)
			continue
		}
		if err := s.SB.Add(a.Name, a.File, method); err != nil {
			s.Log.Error("%v", err)
			excluded = append(excluded, a.Name)
		}
	}
	s.curSamples = excludeSamples(wanted, excluded)
}

func (s *State) refreshResources(wanted []script.ResourceSeed) {
	added, removed := diffResources(s.curResources, wanted)
	for _, r := range removed {
		s.Log.Info("resource %q will be removed from the buffer bank.", r.Name)
		s.BB.MarkDead(r.Name)
	}
	s.Log.Status("refreshing buffer bank.")
	s.BB.Refresh()

	var excluded []string
	for _, a := range added {
		s.Log.Status("adding resource %q to the buffer bank.", a.Name)
		if err := s.BB.Add(a.Name, a.File); err != nil {
			s.Log.Error("%v", err)
			excluded = append(excluded, a.Name)
		}
	}
	s.curResources = excludeResources(wanted, excluded)
}

func (s *State) refreshPlugins(wantedPlugins []script.Lv2PluginSeed, wantedParams []script.Lv2ParamSeed) {
	addedPlugins, removedPlugins := diff(s.curPlugins, wantedPlugins)
	for _, r := range removedPlugins {
		s.Host.RemovePlugin(r.Name)
	}
	for _, a := range addedPlugins {
		s.Log.Info("registered plugin %q (%s).", a.Name, a.URI)
		s.Host.AddPlugin(a.Name, a.URI)
	}
	s.curPlugins = wantedPlugins

	addedParams, removedParams := diff(s.curParams, wantedParams)
	for _, r := range removedParams {
		s.Host.ResetValue(r.Plugin, r.Name)
	}
	for _, a := range addedParams {
		s.Host.SetValue(a.Plugin, a.Name, a.Value)
	}
	s.curParams = wantedParams
}

// rebuildGraph adds every vertex and edge from decl. It returns false
// (and has already logged why) the moment any vertex references a
// name that does not resolve, matching state.rs's get_index! macro
// aborting refresh on a missing index.
func (s *State) rebuildGraph(decl script.Declaration) bool {
	s.Log.Status("rebuilding graph.")
	bl := s.Config.Settings.BufferLength()
	psr := s.Config.Settings.ProjectSampleRate()
	s.G.Reset()

	for _, v := range decl.Sums {
		s.G.Add(graph.NewVertex(bl, v.Gain, v.Angle, 0, graph.NewSum()), v.Name)
	}
	for _, v := range decl.Normalizes {
		s.G.Add(graph.NewVertex(bl, v.Gain, v.Angle, 0, graph.NewNormalize()), v.Name)
	}
	for _, v := range decl.SampleLoops {
		idx, ok := s.SB.GetIndex(v.Sample)
		if !ok {
			s.Log.Error("vertex %q: no such sample %q.", v.Name, v.Sample)
			return false
		}
		s.G.Add(graph.NewVertex(bl, v.Gain, v.Angle, 0, graph.NewSampleLoop(idx)), v.Name)
	}
	for _, v := range decl.SampleMultis {
		sIdx, ok := s.SB.GetIndex(v.Sample)
		if !ok {
			s.Log.Error("vertex %q: no such sample %q.", v.Name, v.Sample)
			return false
		}
		fIdx, ok := s.FB.GetIndex(v.Floww)
		if !ok {
			s.Log.Error("vertex %q: no such floww %q.", v.Name, v.Floww)
			return false
		}
		s.G.Add(graph.NewVertex(bl, v.Gain, v.Angle, 0, graph.NewSampleMulti(sIdx, fIdx, noteRef(v.Note))), v.Name)
	}
	for _, v := range decl.SampleLerps {
		sIdx, ok := s.SB.GetIndex(v.Sample)
		if !ok {
			s.Log.Error("vertex %q: no such sample %q.", v.Name, v.Sample)
			return false
		}
		fIdx, ok := s.FB.GetIndex(v.Floww)
		if !ok {
			s.Log.Error("vertex %q: no such floww %q.", v.Name, v.Floww)
			return false
		}
		lerpLen := v.LerpLen
		if lerpLen < 0 {
			lerpLen = 0
		}
		s.G.Add(graph.NewVertex(bl, v.Gain, v.Angle, 0, graph.NewSampleLerp(sIdx, fIdx, noteRef(v.Note), lerpLen)), v.Name)
	}
	for _, v := range decl.DebugSines {
		fIdx, ok := s.FB.GetIndex(v.Floww)
		if !ok {
			s.Log.Error("vertex %q: no such floww %q.", v.Name, v.Floww)
			return false
		}
		s.G.Add(graph.NewVertex(bl, v.Gain, v.Angle, 0, graph.NewDebugSine(fIdx)), v.Name)
	}
	for _, v := range decl.Synths {
		fIdx, ok := s.FB.GetIndex(v.Floww)
		if !ok {
			s.Log.Error("vertex %q: no such floww %q.", v.Name, v.Floww)
			return false
		}
		sq := buildOscConf(v.SquareVel, v.SquareZ, v.SquareAdsr)
		tf := buildOscConf(v.TopflatVel, v.TopflatZ, v.TopflatAdsr)
		tr := buildOscConf(v.TriangleVel, 0, v.TriangleAdsr)
		s.G.Add(graph.NewVertex(bl, v.Gain, v.Angle, 0, graph.NewSynth(fIdx, sq, tf, tr)), v.Name)
	}
	for _, v := range decl.SampSyns {
		fIdx, ok := s.FB.GetIndex(v.Floww)
		if !ok {
			s.Log.Error("vertex %q: no such floww %q.", v.Name, v.Floww)
			return false
		}
		bufIdx, ok := s.BB.GetIndex(v.Resource)
		if !ok {
			s.Log.Error("vertex %q: no such resource %q.", v.Name, v.Resource)
			return false
		}
		conf, ok := adsr.BuildConf(v.Adsr)
		if !ok {
			panic(fmt.Sprintf("vertex %q: adsr config must have 0, 6 or 9 elements", v.Name))
		}
		table, err := osc.ParseWaveTable(s.BB.GetBuffer(bufIdx))
		if err != nil {
			s.Log.Warn("vertex %q: could not parse wavetable from resource %q, using default table.", v.Name, v.Resource)
			table = osc.DefaultWaveTable()
		}
		s.G.Add(graph.NewVertex(bl, v.Gain, v.Angle, 0, graph.NewSampSyn(fIdx, conf, table)), v.Name)
	}
	for _, v := range decl.Lv2fxs {
		idx, ok := s.Host.GetIndex(v.Plugin)
		if !ok {
			s.Log.Error("vertex %q: no such plugin %q.", v.Name, v.Plugin)
			return false
		}
		s.G.Add(graph.NewVertex(bl, v.Gain, v.Angle, v.Wet, graph.NewLv2fx(idx, s.Host.Effect(idx))), v.Name)
	}
	for _, v := range decl.Adsrs {
		fIdx, ok := s.FB.GetIndex(v.Floww)
		if !ok {
			s.Log.Error("vertex %q: no such floww %q.", v.Name, v.Floww)
			return false
		}
		conf, ok := adsr.BuildConf(v.Conf)
		if !ok {
			panic(fmt.Sprintf("vertex %q: adsr config must have 0, 6 or 9 elements", v.Name))
		}
		s.G.Add(graph.NewVertex(bl, v.Gain, v.Angle, v.Wet, graph.NewAdsr(v.UseOff, v.UseMax, conf, fIdx, noteRef(v.Note))), v.Name)
	}
	for _, v := range decl.BandPasses {
		s.G.Add(graph.NewVertex(bl, v.Gain, v.Angle, v.Wet, graph.NewBandPassVertex(v.CutLowHz, v.CutHighHz, v.Pass, psr)), v.Name)
	}

	for _, e := range decl.Edges {
		if !s.G.Connect(e.From, e.To) {
			s.Log.Warn("could not connect %q -> %q.", e.From, e.To)
		}
	}

	if !s.G.SetOutput(decl.OutputVertex) {
		s.Log.Error("output vertex %q does not exist.", decl.OutputVertex)
		return false
	}
	_, warnings, err := s.G.CheckGraph()
	if err != nil {
		s.Log.Error("graph is invalid: %v", err)
		return false
	}
	for _, w := range warnings {
		s.Log.Info(w)
	}
	return true
}

// ScanExact runs a normalization scan over the whole project length;
// afterwards graph and floww time are both back at frame 0.
func (s *State) ScanExact() {
	s.G.TrueNormalizeScan(s.SB, s.FB, s.decl.Chunks)
}

// PrintNormalizationValues logs every Normalize vertex's current
// normalization divisor.
func (s *State) PrintNormalizationValues() {
	for name, val := range s.G.NormalizationValues() {
		s.Log.Status("%s: %f", name, val)
	}
}

// Render writes the whole project to the configured output file,
// resampling/requantizing to the configured render rate/bit depth.
func (s *State) Render() error {
	s.Log.Status("started rendering.")
	psr := s.Config.Settings.ProjectSampleRate()
	maxSR, maxBD := s.SB.GetMaxSRBD()
	for _, w := range wavio.QualityWarnings(psr, s.decl.RenderSampleRate, maxSR, s.decl.RenderBitDepth, maxBD) {
		s.Log.Warn(w)
	}

	writer, err := wavio.New(s.decl.OutputFile, psr, s.decl.RenderSampleRate, s.decl.RenderBitDepth)
	if err != nil {
		s.Log.Error("%v", err)
		return err
	}

	for i := 0; i < s.decl.Chunks; i++ {
		chunk, ok := s.G.Render(s.SB, s.FB)
		if ok {
			if err := writer.WriteChunk(chunk); err != nil {
				s.Log.Error("%v", err)
				writer.Close()
				return err
			}
		}
		s.FB.SetTimeToNextBlock()
	}
	s.G.SetTime(0)

	if err := writer.Close(); err != nil {
		s.Log.Error("%v", err)
		return err
	}
	s.Log.Ok("done rendering.")
	return nil
}

func noteRef(note int) *int {
	if note < 0 {
		return nil
	}
	n := note
	return &n
}

func buildOscConf(volume, z float32, arr []float32) osc.Conf {
	conf, ok := adsr.BuildConf(arr)
	if !ok {
		panic("oscillator adsr config must have 0, 6 or 9 elements")
	}
	return osc.Conf{Volume: volume, Z: z, Adsr: conf}
}

func parseLoadMethod(name string) (sample.LoadMethod, bool) {
	switch name {
	case "stereo":
		return sample.Stereo, true
	case "left":
		return sample.LeftOfMono, true
	case "right":
		return sample.RightOfMono, true
	case "loudest":
		return sample.Loudest, true
	case "normalize-seperate":
		return sample.NormalizeSeparate, true
	case "mix-down":
		return sample.MixDown, true
	default:
		return 0, false
	}
}
