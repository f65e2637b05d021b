package workflow

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/codybloemhard/termdaw-go/internal/config"
	"github.com/codybloemhard/termdaw-go/internal/engine"
	"github.com/codybloemhard/termdaw-go/internal/floww"
	"github.com/codybloemhard/termdaw-go/internal/sample"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	mu     sync.Mutex
	queued []sample.Sample
	paused bool
	clears int
}

func (f *fakeDevice) Queue(chunk sample.Sample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued = append(f.queued, chunk)
}
func (f *fakeDevice) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued = nil
	f.clears++
}
func (f *fakeDevice) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = true
}
func (f *fakeDevice) Resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = false
}
func (f *fakeDevice) queuedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queued)
}

func writeToneWav(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, 44100, 16, 2, 1)
	max := (1 << 15) - 1
	data := []int{max / 2, max / 2, -max / 2, -max / 2, max / 4, max / 4, -max / 4, -max / 4}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: 44100},
		Data:           data,
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
}

func newTestState(t *testing.T) *engine.State {
	t.Helper()
	wdir := t.TempDir()
	wavPath := filepath.Join(wdir, "tone.wav")
	writeToneWav(t, wavPath)

	script := `
set_output("out")
set_length(1.0)
load_sample("tone", "` + wavPath + `", "stereo")
add_sampleloop("loop", 1.0, 0.0, "tone")
add_sum("out", 1.0, 0.0)
connect("loop", "out")
`
	require.NoError(t, os.WriteFile(filepath.Join(wdir, "main.lua"), []byte(script), 0o644))

	logger := engine.NewLogger(&bytes.Buffer{})
	state := engine.New(wdir, config.Config{Settings: config.Settings{Main: "main.lua"}}, logger)
	state.Refresh()
	require.True(t, state.Loaded())
	return state
}

func TestHandlePlayThenPauseTogglesDeviceAndPlayingFlag(t *testing.T) {
	state := newTestState(t)
	dev := &fakeDevice{}
	r := New(state, dev, 44100, 1024)

	var playing bool
	var since time.Time
	var gen float64

	r.handle(Command{Msg: MsgPlay}, &playing, &since, &gen)
	assert.True(t, playing)
	assert.False(t, dev.paused)

	r.handle(Command{Msg: MsgPause}, &playing, &since, &gen)
	assert.False(t, playing)
	assert.True(t, dev.paused)
}

func TestHandleStopResetsTimeAndClearsDevice(t *testing.T) {
	state := newTestState(t)
	dev := &fakeDevice{}
	r := New(state, dev, 44100, 1024)
	state.G.SetTime(500)

	var playing bool
	var since time.Time
	var gen float64
	r.handle(Command{Msg: MsgStop}, &playing, &since, &gen)

	assert.False(t, playing)
	assert.Equal(t, 0, state.G.GetTime())
	assert.Equal(t, 1, dev.clears)
}

func TestHandleSkipAndPrevMoveByFiveSeconds(t *testing.T) {
	state := newTestState(t)
	dev := &fakeDevice{}
	r := New(state, dev, 44100, 1024)

	var playing bool
	var since time.Time
	var gen float64
	r.handle(Command{Msg: MsgSkip}, &playing, &since, &gen)
	assert.Equal(t, 5*44100, state.G.GetTime())

	r.handle(Command{Msg: MsgPrev}, &playing, &since, &gen)
	assert.Equal(t, 0, state.G.GetTime())
}

func TestHandleSetSeeksToExactFrame(t *testing.T) {
	state := newTestState(t)
	dev := &fakeDevice{}
	r := New(state, dev, 44100, 1024)

	var playing bool
	var since time.Time
	var gen float64
	r.handle(Command{Msg: MsgSet, Seconds: 2.0}, &playing, &since, &gen)
	assert.Equal(t, 2*44100, state.G.GetTime())
}

func TestHandleIgnoresVerbsOtherThanRefreshWhenUnloaded(t *testing.T) {
	logger := engine.NewLogger(&bytes.Buffer{})
	state := engine.New(t.TempDir(), config.Config{Settings: config.Settings{Main: "missing.lua"}}, logger)
	dev := &fakeDevice{}
	r := New(state, dev, 44100, 1024)

	var playing bool
	var since time.Time
	var gen float64
	r.handle(Command{Msg: MsgPlay}, &playing, &since, &gen)
	assert.False(t, playing)
}

func TestRunUIQuitsOnQuitCommand(t *testing.T) {
	state := newTestState(t)
	dev := &fakeDevice{}
	r := New(state, dev, 44100, 1024)

	commands := make(chan Command, 1)
	acks := make(chan struct{}, 1)
	commands <- Command{Msg: MsgQuit}

	done := make(chan struct{})
	go func() {
		r.RunUI(context.Background(), commands, acks)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunUI did not return after MsgQuit")
	}
}

func TestRunUIPlaysAndQueuesAudio(t *testing.T) {
	state := newTestState(t)
	dev := &fakeDevice{}
	r := New(state, dev, 44100, 1024)

	ctx, cancel := context.WithCancel(context.Background())
	commands := make(chan Command, 2)
	acks := make(chan struct{}, 2)
	commands <- Command{Msg: MsgPlay}

	go r.RunUI(ctx, commands, acks)

	require.Eventually(t, func() bool {
		return dev.queuedCount() > 0
	}, time.Second, 10*time.Millisecond)

	cancel()
}

func TestRunStreamAppendsIncomingPackets(t *testing.T) {
	state := newTestState(t)
	state.FB.DeclareStream("live")
	dev := &fakeDevice{}
	r := New(state, dev, 44100, 1024)

	ctx, cancel := context.WithCancel(context.Background())
	commands := make(chan Command, 1)
	packets := make(chan floww.Packet, 1)
	acks := make(chan struct{}, 1)

	packets <- floww.Packet{Stream: "live", Events: []floww.Event{{Time: 0, Note: 60, Velocity: 1}}}

	go r.RunStream(ctx, commands, packets, acks)

	require.Eventually(t, func() bool {
		idx, ok := state.FB.GetIndex("live")
		if !ok {
			return false
		}
		state.FB.StartBlock(idx)
		return len(state.FB.GetBlockSimple(idx, 0)) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
}
