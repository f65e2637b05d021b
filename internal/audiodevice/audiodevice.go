// Package audiodevice drives live playback through oto, the same
// library the teacher's fixed drum-machine engine used. Here it backs
// a generic queue of pre-rendered chunks rather than synthesizing
// audio itself, standing in for the sdl2::audio::AudioQueue<f32> the
// original playback loops (ui_workflow, stream_workflow) call
// queue/clear/pause/resume on directly.
package audiodevice

import (
	"fmt"
	"sync"

	"github.com/codybloemhard/termdaw-go/internal/sample"
	"github.com/hajimehoshi/oto/v2"
)

const bytesPerFrame = 4 // stereo, 16-bit

// Device is an unbounded byte queue played back through the system
// audio output; Queue never blocks or drops data.
type Device struct {
	player     oto.Player
	stream     *queueStream
	sampleRate int
}

// New opens the default audio output at sampleRate, stereo 16-bit PCM.
func New(sampleRate int) (*Device, error) {
	ctx, ready, err := oto.NewContext(sampleRate, 2, 2)
	if err != nil {
		return nil, fmt.Errorf("audiodevice: New: %w", err)
	}
	<-ready

	stream := &queueStream{paused: true}
	player := ctx.NewPlayer(stream)
	player.Play()

	return &Device{player: player, stream: stream, sampleRate: sampleRate}, nil
}

// Queue converts chunk to interleaved int16 PCM and appends it to the
// playback queue.
func (d *Device) Queue(chunk sample.Sample) {
	d.stream.queue(encodeInt16(chunk))
}

// Clear drops everything queued but not yet played.
func (d *Device) Clear() { d.stream.clear() }

// Pause stops consuming queued audio; the stream emits silence while
// paused rather than blocking the underlying player.
func (d *Device) Pause() { d.stream.setPaused(true) }

// Resume resumes consuming queued audio.
func (d *Device) Resume() { d.stream.setPaused(false) }

// QueuedMillis reports how much queued audio remains unplayed.
func (d *Device) QueuedMillis() float64 {
	frames := d.stream.queuedBytes() / bytesPerFrame
	return float64(frames) / float64(d.sampleRate) * 1000.0
}

// Close releases the underlying player.
func (d *Device) Close() error {
	if err := d.player.Close(); err != nil {
		return fmt.Errorf("audiodevice: Close: %w", err)
	}
	return nil
}

func encodeInt16(chunk sample.Sample) []byte {
	n := chunk.Len()
	data := make([]byte, n*bytesPerFrame)
	for i := 0; i < n; i++ {
		l := clampInt16(chunk.L[i])
		r := clampInt16(chunk.R[i])
		o := i * bytesPerFrame
		data[o] = byte(l)
		data[o+1] = byte(l >> 8)
		data[o+2] = byte(r)
		data[o+3] = byte(r >> 8)
	}
	return data
}

func clampInt16(v float32) int16 {
	scaled := v * 32767
	if scaled > 32767 {
		scaled = 32767
	}
	if scaled < -32768 {
		scaled = -32768
	}
	return int16(scaled)
}

// queueStream is the io.Reader oto's player pulls from. It never
// blocks: with nothing queued, or while paused, it emits silence so
// the player's pull thread keeps running.
type queueStream struct {
	mu     sync.Mutex
	buf    []byte
	paused bool
}

func (q *queueStream) Read(p []byte) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.paused || len(q.buf) == 0 {
		zero(p)
		return len(p), nil
	}
	n := copy(p, q.buf)
	q.buf = q.buf[n:]
	if n < len(p) {
		zero(p[n:])
	}
	return len(p), nil
}

func (q *queueStream) queue(data []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.buf = append(q.buf, data...)
}

func (q *queueStream) clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.buf = q.buf[:0]
}

func (q *queueStream) queuedBytes() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

func (q *queueStream) setPaused(p bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = p
}

func zero(p []byte) {
	for i := range p {
		p[i] = 0
	}
}
