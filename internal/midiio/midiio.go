// Package midiio connects to a live MIDI input port and turns note
// on/off messages into floww.Packets, the live counterpart to
// floww.AddFloww's offline SMF decoding. It generalizes the teacher's
// control-change listener (midi/midi.go) from a single message kind
// into full note decoding feeding a Stream workflow.
package midiio

import (
	"fmt"
	"sync"
	"time"

	"github.com/codybloemhard/termdaw-go/internal/floww"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// Ports lists the names of the MIDI input ports currently visible to
// the driver.
func Ports() []string {
	ins := midi.GetInPorts()
	names := make([]string, len(ins))
	for i, p := range ins {
		names[i] = p.String()
	}
	return names
}

// Handler listens to one MIDI input port and decodes it into
// floww.Packets delivered over a bounded channel. A full channel
// drops the newest packet rather than blocking the MIDI callback,
// mirroring the teacher's bounded CC queue.
type Handler struct {
	mu        sync.RWMutex
	connected bool
	in        drivers.In
	stop      func()
	events    chan floww.Packet
}

// New returns a Handler whose Packets channel buffers up to buffer
// pending packets.
func New(buffer int) *Handler {
	return &Handler{events: make(chan floww.Packet, buffer)}
}

// Packets is the channel of decoded note events, one Packet per
// incoming note on/off message.
func (h *Handler) Packets() <-chan floww.Packet { return h.events }

// Connected reports whether a port is currently open.
func (h *Handler) Connected() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.connected
}

// Connect opens portName for input and starts decoding note on/off
// messages into stream (the floww.Bank stream name the events are
// tagged with). Event times are in seconds since the moment Connect
// is called; sampleRate does not affect them.
func (h *Handler) Connect(portName, stream string, sampleRate int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.connected {
		h.disconnect()
	}

	in, err := findInPort(portName)
	if err != nil {
		return fmt.Errorf("midiio: Connect: %w", err)
	}

	start := time.Now()
	stop, err := midi.ListenTo(in, func(msg midi.Message, _ int32) {
		var channel, note, velocity uint8
		var ev floww.Event
		switch {
		case msg.GetNoteOn(&channel, &note, &velocity):
			ev = floww.Event{
				Channel:  int(channel),
				Time:     float32(time.Since(start).Seconds()),
				Note:     float32(note),
				Velocity: float32(velocity) / 127,
			}
		case msg.GetNoteOff(&channel, &note, &velocity):
			ev = floww.Event{
				Channel:  int(channel),
				Time:     float32(time.Since(start).Seconds()),
				Note:     float32(note),
				Velocity: 0,
			}
		default:
			return
		}

		select {
		case h.events <- floww.Packet{Stream: stream, Events: []floww.Event{ev}}:
		default:
		}
	}, midi.UseSysEx())
	if err != nil {
		return fmt.Errorf("midiio: Connect: could not listen: %w", err)
	}

	h.in = in
	h.stop = stop
	h.connected = true
	return nil
}

// Close disconnects, if connected, and closes the Packets channel.
func (h *Handler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnect()
	close(h.events)
}

func (h *Handler) disconnect() {
	if h.stop != nil {
		h.stop()
		h.stop = nil
	}
	if h.in != nil {
		h.in.Close()
		h.in = nil
	}
	h.connected = false
}

func framesSince(start time.Time, sampleRate int) float32 {
	return float32(time.Since(start).Seconds() * float64(sampleRate))
}

func findInPort(name string) (drivers.In, error) {
	for _, p := range midi.GetInPorts() {
		if p.String() == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("midiio: no input port named %q", name)
}
