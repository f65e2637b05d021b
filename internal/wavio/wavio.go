// Package wavio renders a sequence of sample.Sample chunks to a PCM
// WAV file, the offline counterpart to live playback through
// internal/audiodevice. It mirrors state.rs's render: warn about
// quality loss up front, then stream chunk by chunk rather than
// buffering the whole render in memory.
package wavio

import (
	"fmt"
	"math"
	"os"

	"github.com/codybloemhard/termdaw-go/internal/sample"
	"github.com/dh1tw/gosamplerate"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// resamplerBufferLen is the internal frame buffer libsamplerate
// preallocates per gosamplerate.New call; generous relative to any
// realistic project buffer length.
const resamplerBufferLen = 65536

// ErrUnsupportedBitDepth is returned by New when bitDepth is not one
// of 8, 16, 24 or 32.
var ErrUnsupportedBitDepth = fmt.Errorf("wavio: unsupported bit depth")

// QualityWarnings reports every way a render configuration throws
// away source quality: the project running above the render rate, a
// loaded sample's native rate exceeding the render rate, and a
// sample's native bit depth exceeding the render bit depth. Callers
// log these; none of them block the render.
func QualityWarnings(projectSR, renderSR, maxSampleSR, renderBD, maxSampleBD int) []string {
	var warnings []string
	if projectSR > renderSR {
		warnings = append(warnings, fmt.Sprintf("project samplerate (%d) is higher than the render samplerate (%d), quality will be lost.", projectSR, renderSR))
	}
	if maxSampleSR > renderSR {
		warnings = append(warnings, fmt.Sprintf("a loaded sample's samplerate (%d) is higher than the render samplerate (%d), quality will be lost.", maxSampleSR, renderSR))
	}
	if maxSampleBD > renderBD {
		warnings = append(warnings, fmt.Sprintf("a loaded sample's bitdepth (%d) is higher than the render bitdepth (%d), quality will be lost.", maxSampleBD, renderBD))
	}
	return warnings
}

// Writer encodes chunks into a stereo PCM WAV file. When the project
// rate exceeds the render rate, chunks pass through a persistent sinc
// resampler before writing; render rate at or above project rate
// writes raw, matching state.rs's render loop exactly (only the
// downsample direction resamples, never the upsample one).
type Writer struct {
	file      *os.File
	enc       *wav.Encoder
	projectSR int
	renderSR  int
	amplitude float64

	resample      bool
	resampler     gosamplerate.Src
	resampleRatio float64
}

// New opens path and prepares a stereo PCM encoder at renderSR /
// bitDepth. projectSR is the rate chunks passed to WriteChunk are
// assumed to already be rendered at; WriteChunk resamples down to
// renderSR when projectSR > renderSR. The resampler, if needed, is
// built once here and reused across every WriteChunk call so its sinc
// filter's delay-line state carries across chunk boundaries, exactly
// like state.rs building one SincFixedIn before its per-chunk loop.
func New(path string, projectSR, renderSR, bitDepth int) (*Writer, error) {
	var amplitude float64
	switch bitDepth {
	case 8, 16, 24:
		amplitude = float64(int(1)<<(bitDepth-1)) - 1
	case 32:
		amplitude = math.MaxInt32
	default:
		return nil, fmt.Errorf("wavio: New: bitdepth %d: %w", bitDepth, ErrUnsupportedBitDepth)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("wavio: New: could not create %q: %w", path, err)
	}

	w := &Writer{
		file:      f,
		enc:       wav.NewEncoder(f, renderSR, bitDepth, 2, 1),
		projectSR: projectSR,
		renderSR:  renderSR,
		amplitude: amplitude,
	}

	if projectSR > renderSR {
		resampler, err := gosamplerate.New(gosamplerate.SRC_SINC_BEST_QUALITY, 2, resamplerBufferLen)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("wavio: New: could not create resampler: %w", err)
		}
		w.resample = true
		w.resampler = resampler
		w.resampleRatio = float64(renderSR) / float64(projectSR)
	}

	return w, nil
}

// WriteChunk resamples chunk down to the render rate if the project
// rate exceeds it, scales it to the target bit depth, and appends it
// to the file.
func (w *Writer) WriteChunk(chunk sample.Sample) error {
	if w.resample {
		interleaved := sample.Interleave(chunk)
		out, err := w.resampler.Process(interleaved, w.resampleRatio, false)
		if err != nil {
			return fmt.Errorf("wavio: WriteChunk: %w", err)
		}
		if len(out) == 0 {
			// the sinc filter is still filling its delay line; no
			// output frames yet, nothing to write for this chunk.
			return nil
		}
		l, r := sample.Deinterleave(out)
		resampled, err := sample.From(l, r)
		if err != nil {
			return fmt.Errorf("wavio: WriteChunk: %w", err)
		}
		chunk = resampled
	}

	n := chunk.Len()
	data := make([]int, 0, n*2)
	for i := 0; i < n; i++ {
		data = append(data, scaleSample(chunk.L[i], w.amplitude), scaleSample(chunk.R[i], w.amplitude))
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: w.renderSR},
		Data:           data,
		SourceBitDepth: w.enc.BitDepth,
	}
	if err := w.enc.Write(buf); err != nil {
		return fmt.Errorf("wavio: WriteChunk: %w", err)
	}
	return nil
}

func scaleSample(v float32, amplitude float64) int {
	scaled := float64(v) * amplitude
	if scaled > amplitude {
		scaled = amplitude
	}
	if scaled < -amplitude-1 {
		scaled = -amplitude - 1
	}
	return int(scaled)
}

// Close finalizes the WAV header, closes the underlying file, and
// frees the resampler's underlying libsamplerate state, if any.
func (w *Writer) Close() error {
	if w.resample {
		gosamplerate.Delete(w.resampler)
	}
	if err := w.enc.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("wavio: Close: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("wavio: Close: %w", err)
	}
	return nil
}
