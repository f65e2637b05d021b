package wavio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/codybloemhard/termdaw-go/internal/sample"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQualityWarningsReportsEachDegradation(t *testing.T) {
	assert.Empty(t, QualityWarnings(44100, 44100, 44100, 16, 16))

	w := QualityWarnings(48000, 44100, 44100, 16, 16)
	require.Len(t, w, 1)
	assert.Contains(t, w[0], "project samplerate")

	w = QualityWarnings(44100, 44100, 48000, 16, 16)
	require.Len(t, w, 1)
	assert.Contains(t, w[0], "sample's samplerate")

	w = QualityWarnings(44100, 44100, 44100, 16, 24)
	require.Len(t, w, 1)
	assert.Contains(t, w[0], "sample's bitdepth")
}

func TestNewRejectsUnsupportedBitDepth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	_, err := New(path, 44100, 44100, 12)
	assert.ErrorIs(t, err, ErrUnsupportedBitDepth)
}

func TestWriteChunkRoundTripsAtMatchingRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	w, err := New(path, 44100, 44100, 16)
	require.NoError(t, err)

	chunk, err := sample.From([]float32{0.5, -0.5}, []float32{0.25, -0.25})
	require.NoError(t, err)
	require.NoError(t, w.WriteChunk(chunk))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)

	assert.Equal(t, 2, buf.Format.NumChannels)
	assert.Equal(t, 44100, buf.Format.SampleRate)
	require.Len(t, buf.Data, 4)

	max := float64((1 << 15) - 1)
	assert.InDelta(t, 0.5*max, buf.Data[0], 2)
	assert.InDelta(t, 0.25*max, buf.Data[1], 2)
}

func toneChunk(frames int) sample.Sample {
	l := make([]float32, frames)
	r := make([]float32, frames)
	for i := range l {
		l[i] = 0.1
		r[i] = 0.1
	}
	chunk, _ := sample.From(l, r)
	return chunk
}

// TestWriteChunkResamplesOnlyWhenProjectRateExceedsRenderRate pins the
// spec's one-directional resample rule: project rate above render
// rate resamples, render rate at or above project rate writes raw.
func TestWriteChunkResamplesOnlyWhenProjectRateExceedsRenderRate(t *testing.T) {
	downPath := filepath.Join(t.TempDir(), "down.wav")
	down, err := New(downPath, 48000, 44100, 16)
	require.NoError(t, err)
	assert.True(t, down.resample)
	require.NoError(t, down.Close())

	upPath := filepath.Join(t.TempDir(), "up.wav")
	up, err := New(upPath, 44100, 48000, 16)
	require.NoError(t, err)
	assert.False(t, up.resample)
	require.NoError(t, up.Close())

	samePath := filepath.Join(t.TempDir(), "same.wav")
	same, err := New(samePath, 44100, 44100, 16)
	require.NoError(t, err)
	assert.False(t, same.resample)
	require.NoError(t, same.Close())
}

// TestWriteChunkUpsampleWritesChunksUnchanged exercises spec.md:175's
// "render rate >= project rate" branch: every frame passed in must
// come out, none dropped or resampled away.
func TestWriteChunkUpsampleWritesChunksUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	w, err := New(path, 44100, 48000, 16)
	require.NoError(t, err)

	chunk := toneChunk(128)
	require.NoError(t, w.WriteChunk(chunk))
	require.NoError(t, w.WriteChunk(chunk))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, 48000, buf.Format.SampleRate)
	assert.Len(t, buf.Data, 2*128*2)
}

// TestWriteChunkDownsampleReusesResamplerStateAcrossChunks drives many
// chunks through the same Writer and checks the persistent resampler
// keeps producing output proportional to total input across chunk
// boundaries, rather than resetting (and thus losing most of its
// delay-line warm-up) on every call the way a stateless per-chunk
// Simple() call would.
func TestWriteChunkDownsampleReusesResamplerStateAcrossChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	w, err := New(path, 48000, 44100, 16)
	require.NoError(t, err)
	require.True(t, w.resample)

	const chunkFrames = 128
	const numChunks = 20
	chunk := toneChunk(chunkFrames)
	for i := 0; i < numChunks; i++ {
		require.NoError(t, w.WriteChunk(chunk))
	}
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, 44100, buf.Format.SampleRate)

	gotFrames := len(buf.Data) / 2
	wantFrames := int(float64(chunkFrames*numChunks) * 44100.0 / 48000.0)
	assert.InDelta(t, wantFrames, gotFrames, 64, "total resampled frame count should track total input, not be clipped by per-chunk resets")
}

func TestScaleSampleClampsToRange(t *testing.T) {
	assert.Equal(t, int(32767), scaleSample(2.0, 32767))
	assert.Equal(t, int(-32768), scaleSample(-2.0, 32767))
}
