package audiodevice

import (
	"testing"

	"github.com/codybloemhard/termdaw-go/internal/sample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueStreamEmitsSilenceWhenEmpty(t *testing.T) {
	q := &queueStream{}
	p := make([]byte, 8)
	for i := range p {
		p[i] = 0xFF
	}
	n, err := q.Read(p)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	for _, b := range p {
		assert.Equal(t, byte(0), b)
	}
}

func TestQueueStreamEmitsSilenceWhilePaused(t *testing.T) {
	q := &queueStream{paused: true}
	q.queue([]byte{1, 2, 3, 4})
	p := make([]byte, 4)
	_, err := q.Read(p)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, p)
}

func TestQueueStreamDrainsQueuedBytesInOrder(t *testing.T) {
	q := &queueStream{}
	q.queue([]byte{1, 2, 3, 4})
	p := make([]byte, 2)
	n, err := q.Read(p)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte{1, 2}, p)
	assert.Equal(t, 2, q.queuedBytes())

	n, err = q.Read(p)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 4}, p)
	assert.Equal(t, 0, q.queuedBytes())
}

func TestQueueStreamReadPadsWithSilenceWhenUnderfilled(t *testing.T) {
	q := &queueStream{}
	q.queue([]byte{9})
	p := make([]byte, 4)
	_, err := q.Read(p)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 0, 0, 0}, p)
}

func TestQueueStreamClearDropsQueuedBytes(t *testing.T) {
	q := &queueStream{}
	q.queue([]byte{1, 2, 3, 4})
	q.clear()
	assert.Equal(t, 0, q.queuedBytes())
}

func TestClampInt16ClampsOutOfRangeValues(t *testing.T) {
	assert.Equal(t, int16(32767), clampInt16(2.0))
	assert.Equal(t, int16(-32768), clampInt16(-2.0))
	assert.Equal(t, int16(0), clampInt16(0))
}

func TestEncodeInt16ProducesLittleEndianStereoFrames(t *testing.T) {
	chunk, err := sample.From([]float32{1.0}, []float32{-1.0})
	require.NoError(t, err)

	data := encodeInt16(chunk)
	require.Len(t, data, 4)
	assert.Equal(t, byte(0xFF), data[0])
	assert.Equal(t, byte(0x7F), data[1])
}
