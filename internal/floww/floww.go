// Package floww implements the time-sorted MIDI-derived note event
// stream ("floww") and FlowwBank, the per-chunk block-cursor protocol
// every note-driven vertex generator polls.
package floww

import (
	"fmt"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"
)

// Event is a single note event: channel, time in seconds, note number
// (as float32 to match the generator math), and velocity in [0,1]
// (0 marks a note-off).
type Event struct {
	Channel  int
	Time     float32
	Note     float32
	Velocity float32
}

// Floww is a chronologically ordered sequence of Events.
type Floww []Event

// Packet is an externally decoded batch of events to append to a
// named streaming floww.
type Packet struct {
	Stream string
	Events []Event
}

// Bank holds every declared floww (file-backed or streaming), their
// block cursors, and the streaming subset eligible for trimming.
type Bank struct {
	sr           int
	bl           int
	frame        int
	blockIndex   int
	flowws       []Floww
	startIndices []int
	names        map[string]int
	streamList   []int
}

// NewBank returns an empty Bank at project sample rate sr and block
// length bl.
func NewBank(sr, bl int) *Bank {
	return &Bank{
		sr:    sr,
		bl:    bl,
		names: make(map[string]int),
	}
}

// Reset clears every floww, cursor, and name.
func (b *Bank) Reset() {
	b.frame = 0
	b.blockIndex = 0
	b.flowws = nil
	b.startIndices = nil
	b.names = make(map[string]int)
	b.streamList = nil
}

func (b *Bank) declareFloww(name string, fw Floww) int {
	b.flowws = append(b.flowws, fw)
	b.startIndices = append(b.startIndices, 0)
	index := len(b.flowws) - 1
	b.names[name] = index
	return index
}

// AddFloww parses a standard MIDI file into a floww and declares it
// under name.
func (b *Bank) AddFloww(name, path string) error {
	fw, err := readFlowwFromMIDI(path)
	if err != nil {
		return fmt.Errorf("floww: AddFloww: could not read midi file %q: %w", path, err)
	}
	b.declareFloww(name, fw)
	return nil
}

// DeclareStream creates an empty floww under name and marks it as a
// live-appendable stream.
func (b *Bank) DeclareStream(name string) {
	index := b.declareFloww(name, nil)
	b.streamList = append(b.streamList, index)
}

// AppendStreams appends each packet's events to its named stream,
// assuming monotonically increasing time per stream. Returns the
// names of any packets whose stream is not declared.
func (b *Bank) AppendStreams(packets []Packet) []string {
	var unknown []string
	for _, p := range packets {
		index, ok := b.names[p.Stream]
		if !ok {
			unknown = append(unknown, p.Stream)
			continue
		}
		b.flowws[index] = append(b.flowws[index], p.Events...)
	}
	return unknown
}

// TrimStreams drops, for every streaming floww, events before its
// current cursor, bounding memory growth for long-running sessions.
func (b *Bank) TrimStreams() {
	for _, index := range b.streamList {
		start := b.startIndices[index]
		b.flowws[index] = append(Floww{}, b.flowws[index][start:]...)
		b.startIndices[index] = 0
	}
}

// GetIndex returns the current index of name, if declared.
func (b *Bank) GetIndex(name string) (int, bool) {
	idx, ok := b.names[name]
	return idx, ok
}

// setStartIndicesToFrame rescans (or, if doSkip, resumes from the
// current cursor) to find the first event at or after tFrame.
func (b *Bank) setStartIndicesToFrame(tFrame int, doSkip bool) {
	for i, fw := range b.flowws {
		skip := 0
		if doSkip {
			skip = b.startIndices[i]
		}
		for j := skip; j < len(fw); j++ {
			if int(fw[j].Time*float32(b.sr)) >= tFrame {
				b.startIndices[i] = j
				break
			}
			if j == len(fw)-1 {
				b.startIndices[i] = len(fw)
			}
		}
	}
}

// SetTime performs a full re-scan from index 0 to locate each
// floww's cursor at frame t.
func (b *Bank) SetTime(t int) {
	b.setStartIndicesToFrame(t, false)
	b.frame = t
}

// SetTimeToNextBlock advances frame by the block length and resumes
// scanning forward from the current cursors.
func (b *Bank) SetTimeToNextBlock() {
	b.frame += b.bl
	b.setStartIndicesToFrame(b.frame, true)
}

// StartBlock loads the per-chunk block cursor for floww index from
// its start index, to be consumed by GetBlockDrum/GetBlockSimple.
func (b *Bank) StartBlock(index int) {
	if index < 0 || index >= len(b.flowws) {
		return
	}
	b.blockIndex = b.startIndices[index]
}

// GetBlockDrum advances past any stale events (time < frame+offset),
// then returns the event landing exactly at frame+offset, if any,
// but only when it is a hit (velocity > 0.001) -- note-offs are
// consumed silently. Returns at most one event per call.
func (b *Bank) GetBlockDrum(index, offset int) (note, velocity float32, ok bool) {
	if index < 0 || index >= len(b.flowws) {
		return 0, 0, false
	}
	fw := b.flowws[index]
	target := b.frame + offset
	for {
		if b.blockIndex >= len(fw) {
			return 0, 0, false
		}
		ev := fw[b.blockIndex]
		evFrame := int(ev.Time * float32(b.sr))
		if evFrame < target {
			b.blockIndex++
			continue
		}
		if evFrame == target {
			b.blockIndex++
			if ev.Velocity > 0.001 {
				return ev.Note, ev.Velocity, true
			}
			continue
		}
		return 0, 0, false
	}
}

// SimpleEvent is one event drained by GetBlockSimple.
type SimpleEvent struct {
	On       bool
	Note     float32
	Velocity float32
}

// GetBlockSimple drains all events landing exactly at frame+offset,
// tagged with On = velocity > 0.001, preserving full note-on/off
// structure.
func (b *Bank) GetBlockSimple(index, offset int) []SimpleEvent {
	var res []SimpleEvent
	if index < 0 || index >= len(b.flowws) {
		return res
	}
	fw := b.flowws[index]
	target := b.frame + offset
	for {
		if b.blockIndex >= len(fw) {
			break
		}
		ev := fw[b.blockIndex]
		evFrame := int(ev.Time * float32(b.sr))
		if evFrame != target {
			break
		}
		b.blockIndex++
		res = append(res, SimpleEvent{On: ev.Velocity > 0.001, Note: ev.Note, Velocity: ev.Velocity})
	}
	return res
}

// readFlowwFromMIDI parses a standard MIDI file into a chronologically
// ordered floww: ticks are converted to seconds per-track using the
// track's running tempo (default 60 BPM, i.e. 1,000,000 microseconds
// per quarter note, until a SetTempo meta event updates it).
func readFlowwFromMIDI(path string) (Floww, error) {
	s, err := smf.ReadFile(path)
	if err != nil {
		return nil, err
	}

	ticksPerQuarter := uint32(480)
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok {
		ticksPerQuarter = uint32(mt)
	}

	var fw Floww
	for _, track := range s.Tracks {
		var elapsedSec float64
		microsPerQuarter := 1_000_000.0

		for _, te := range track {
			deltaSec := float64(te.Delta) * microsPerQuarter / float64(ticksPerQuarter) / 1_000_000.0
			elapsedSec += deltaSec

			var bpm float64
			if te.Message.GetMetaTempo(&bpm) && bpm > 0 {
				microsPerQuarter = 60_000_000.0 / bpm
				continue
			}

			var channel, key, vel uint8
			if te.Message.GetNoteOn(&channel, &key, &vel) {
				velocity := float32(vel) / 127.0
				fw = append(fw, Event{
					Channel:  int(channel),
					Time:     float32(elapsedSec),
					Note:     float32(key),
					Velocity: velocity,
				})
				continue
			}
			if te.Message.GetNoteOff(&channel, &key, &vel) {
				fw = append(fw, Event{
					Channel:  int(channel),
					Time:     float32(elapsedSec),
					Note:     float32(key),
					Velocity: 0,
				})
			}
		}
	}

	sort.SliceStable(fw, func(i, j int) bool { return fw[i].Time < fw[j].Time })
	return fw, nil
}
