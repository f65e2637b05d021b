package fx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewBandPassGammaZeroAtZeroCutoff(t *testing.T) {
	bp := NewBandPass(0, 0, false, 44100)
	assert.Equal(t, float32(0), bp.LowGamma)
	assert.Equal(t, float32(0), bp.HighGamma)
}

func TestApplyNoOpBelowWetThreshold(t *testing.T) {
	bp := NewBandPass(500, 5000, false, 44100)
	l := []float32{1, 1, 1}
	r := []float32{1, 1, 1}
	bp.Apply(l, r, 3, 0.00001)
	assert.Equal(t, []float32{1, 1, 1}, l)
}

func TestApplyNoOpWhenBothGammasZero(t *testing.T) {
	bp := NewBandPass(0, 0, false, 44100)
	l := []float32{0.5, -0.5}
	r := []float32{0.5, -0.5}
	bp.Apply(l, r, 2, 1.0)
	assert.Equal(t, []float32{0.5, -0.5}, l)
}

func TestApplySeedsFirstSample(t *testing.T) {
	bp := NewBandPass(500, 5000, false, 44100)
	l := []float32{0.2, 0.2, 0.2}
	r := []float32{0.2, 0.2, 0.2}
	bp.Apply(l, r, 3, 1.0)
	// cut mode averages the low-pass output (which passes a constant)
	// with the high-pass output (which removes it), so a constant input
	// through a seeded filter settles at half its level
	assert.InDelta(t, 0.1, l[1], 1e-3)
	assert.InDelta(t, 0.1, l[2], 1e-3)
}

func TestSetTimeRearmsSeeding(t *testing.T) {
	bp := NewBandPass(500, 5000, false, 44100)
	l := []float32{1, 1}
	r := []float32{1, 1}
	bp.Apply(l, r, 2, 1.0)
	bp.SetTime()
	assert.True(t, bp.first)
}
