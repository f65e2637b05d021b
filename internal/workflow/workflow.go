// Package workflow drives the single-threaded engine worker from
// either a UI command thread or a live MIDI ingest thread, over
// bounded channels with a synchronous ready handshake per verb.
// Grounded on ui_workflow.rs/stream_workflow.rs: the worker polls its
// command channel between chunks, renders ahead by a fixed lookahead
// while playing, and sleeps briefly when idle.
package workflow

import (
	"context"
	"time"

	"github.com/codybloemhard/termdaw-go/internal/engine"
	"github.com/codybloemhard/termdaw-go/internal/floww"
	"github.com/codybloemhard/termdaw-go/internal/sample"
)

// Device is the playback queue a Runner drives: audiodevice.Device
// satisfies it, standing in for the sdl2::audio::AudioQueue<f32> the
// original workflows call directly.
type Device interface {
	Queue(chunk sample.Sample)
	Clear()
	Pause()
	Resume()
}

// Msg names a control verb sent from a UI command thread to the
// engine worker.
type Msg int

const (
	MsgNone Msg = iota
	MsgQuit
	MsgRefresh
	MsgRender
	MsgNormalize
	MsgPlay
	MsgPause
	MsgStop
	MsgSkip
	MsgPrev
	MsgSet
	MsgGet
	MsgNormVals
)

// Command is one control-verb request. Seconds is only meaningful for MsgSet.
type Command struct {
	Msg     Msg
	Seconds float64
}

// lookaheadMillis is how far ahead of the wall clock the worker keeps
// the device's queue filled before it stops rendering and goes back
// to polling for commands.
const lookaheadMillis = 500.0

// skipSeconds is how far >skip/<prev move the play cursor.
const skipSeconds = 5

// Runner owns one engine.State and audiodevice.Device pair and runs
// the single-threaded worker loop against them. It is not safe for
// concurrent use; only one Run* method should be driving a given
// Runner at a time.
type Runner struct {
	State     *engine.State
	Device    Device
	ProjectSR int
	BufferLen int
}

// New builds a Runner over an already-constructed engine and device.
func New(state *engine.State, device Device, projectSR, bufferLen int) *Runner {
	return &Runner{State: state, Device: device, ProjectSR: projectSR, BufferLen: bufferLen}
}

// RunUI drives the manual workflow: commands arrive from a UI thread
// (e.g. a fuzzy-finder menu loop), and acks (if non-nil) receives one
// value after each command is fully handled, the synchronous
// handshake the UI blocks on before presenting its menu again.
func (r *Runner) RunUI(ctx context.Context, commands <-chan Command, acks chan<- struct{}) {
	var playing bool
	var since time.Time
	var millisGenerated float64

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		select {
		case cmd, ok := <-commands:
			if !ok || cmd.Msg == MsgQuit {
				return
			}
			r.handle(cmd, &playing, &since, &millisGenerated)
			if acks != nil {
				acks <- struct{}{}
			}
		default:
		}

		if playing && r.State.Loaded() {
			r.pump(&millisGenerated, since, false)
		}

		time.Sleep(10 * time.Millisecond)
	}
}

// RunStream drives the live workflow: packets arrive continuously
// from a MIDI ingest thread (internal/midiio) and are appended to the
// floww bank as they come in; commands carries the same control verbs
// as RunUI, typically just an initial MsgPlay.
func (r *Runner) RunStream(ctx context.Context, commands <-chan Command, packets <-chan floww.Packet, acks chan<- struct{}) {
	var playing bool
	var since time.Time
	var millisGenerated float64
	var pending []floww.Packet

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		select {
		case cmd, ok := <-commands:
			if !ok || cmd.Msg == MsgQuit {
				return
			}
			r.handle(cmd, &playing, &since, &millisGenerated)
			if acks != nil {
				acks <- struct{}{}
			}
		default:
		}

		pending = pending[:0]
	drain:
		for {
			select {
			case p, ok := <-packets:
				if !ok {
					break drain
				}
				pending = append(pending, p)
			default:
				break drain
			}
		}
		if len(pending) > 0 && r.State.Loaded() {
			r.State.FB.TrimStreams()
			r.State.FB.AppendStreams(pending)
			r.State.FB.SetTime(r.State.G.GetTime())
		}

		if playing && r.State.Loaded() {
			r.pump(&millisGenerated, since, true)
		}

		time.Sleep(10 * time.Millisecond)
	}
}

// handle applies one control verb. Every verb but Refresh/Quit is
// inert while the engine is unloaded, matching state.rs's
// check_loaded! guard.
func (r *Runner) handle(cmd Command, playing *bool, since *time.Time, millisGenerated *float64) {
	if cmd.Msg != MsgRefresh && !r.State.Loaded() {
		r.State.Log.Error("state not loaded!")
		return
	}

	switch cmd.Msg {
	case MsgRefresh:
		r.State.Refresh()
		*playing = false
		r.Device.Clear()
		r.Device.Pause()
	case MsgRender:
		r.Device.Clear()
		r.Device.Pause()
		*playing = false
		r.State.Render()
	case MsgNormalize:
		r.Device.Clear()
		r.Device.Pause()
		*playing = false
		r.State.ScanExact()
	case MsgPlay:
		*playing = true
		*since = time.Now()
		*millisGenerated = 0
		r.Device.Resume()
	case MsgPause:
		*playing = false
		r.Device.Pause()
	case MsgStop:
		*playing = false
		r.Device.Pause()
		r.Device.Clear()
		r.State.G.SetTime(0)
		r.State.FB.SetTime(0)
	case MsgSkip:
		r.Device.Clear()
		t := r.State.G.ChangeTime(skipSeconds*r.ProjectSR, true)
		r.State.FB.SetTime(t)
	case MsgPrev:
		r.Device.Clear()
		t := r.State.G.ChangeTime(skipSeconds*r.ProjectSR, false)
		r.State.FB.SetTime(t)
	case MsgSet:
		r.Device.Clear()
		frame := int(cmd.Seconds * float64(r.ProjectSR))
		r.State.G.SetTime(frame)
		r.State.FB.SetTime(frame)
	case MsgGet:
		frame := r.State.G.GetTime()
		r.State.Log.Status("time: %d frames (%.3fs)", frame, float64(frame)/float64(r.ProjectSR))
	case MsgNormVals:
		r.State.PrintNormalizationValues()
	}
}

// pump renders and queues chunks until the device has lookaheadMillis
// of audio buffered. resyncFloww re-syncs the floww cursor to the
// graph's current frame before every chunk, needed only for the
// stream workflow where AppendStreams can land packets the cursor
// hasn't accounted for yet.
func (r *Runner) pump(millisGenerated *float64, since time.Time, resyncFloww bool) {
	elapsedMillis := float64(time.Since(since)) / float64(time.Millisecond)
	for elapsedMillis > *millisGenerated-lookaheadMillis {
		if resyncFloww {
			r.State.FB.SetTime(r.State.G.GetTime())
		}
		chunk, ok := r.State.G.Render(r.State.SB, r.State.FB)
		if ok {
			r.Device.Queue(chunk)
		}
		r.State.FB.SetTimeToNextBlock()
		*millisGenerated += float64(r.BufferLen) / float64(r.ProjectSR) * 1000.0
		elapsedMillis = float64(time.Since(since)) / float64(time.Millisecond)
	}
}
