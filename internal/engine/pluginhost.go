package engine

import "github.com/codybloemhard/termdaw-go/internal/fx"

// PluginHost stands in for the LV2 plugin host: no LV2 binding exists
// in this port, so plugins are registered by name and produce a
// pass-through fx.AudioEffect, giving add_lv2fx vertices something
// concrete to call through without requiring a real plugin binary.
type PluginHost struct {
	names   map[string]int
	effects []fx.AudioEffect
	params  map[string]map[string]float32
}

// NewPluginHost returns an empty host.
func NewPluginHost() *PluginHost {
	return &PluginHost{
		names:  make(map[string]int),
		params: make(map[string]map[string]float32),
	}
}

// AddPlugin registers name (uri is recorded for diffing purposes
// only; nothing is actually loaded from it). Re-adding an existing
// name is a no-op.
func (h *PluginHost) AddPlugin(name, uri string) {
	if _, exists := h.names[name]; exists {
		return
	}
	h.effects = append(h.effects, passthroughEffect{})
	h.names[name] = len(h.effects) - 1
	h.params[name] = make(map[string]float32)
}

// RemovePlugin forgets name; vertices referencing it will fail their
// next GetIndex lookup.
func (h *PluginHost) RemovePlugin(name string) {
	delete(h.names, name)
	delete(h.params, name)
}

// GetIndex resolves a registered plugin name to its effect index.
func (h *PluginHost) GetIndex(name string) (int, bool) {
	idx, ok := h.names[name]
	return idx, ok
}

// Effect returns the AudioEffect at index.
func (h *PluginHost) Effect(index int) fx.AudioEffect {
	return h.effects[index]
}

// SetValue records a parameter value for plugin.
func (h *PluginHost) SetValue(plugin, name string, value float32) {
	if m, ok := h.params[plugin]; ok {
		m[name] = value
	}
}

// ResetValue forgets a previously set parameter value.
func (h *PluginHost) ResetValue(plugin, name string) {
	if m, ok := h.params[plugin]; ok {
		delete(m, name)
	}
}

type passthroughEffect struct{}

func (passthroughEffect) Process(_ int, l, r float32) (float32, float32) { return l, r }
