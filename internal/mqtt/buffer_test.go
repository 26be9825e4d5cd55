package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func push(rb *ringBuffer, from, to int) {
	for i := from; i < to; i++ {
		rb.push(bufferedMsg{topic: TopicEvents, payload: []byte{byte(i)}})
	}
}

func payloadBytes(msgs []bufferedMsg) []byte {
	out := make([]byte, len(msgs))
	for i, m := range msgs {
		out[i] = m.payload[0]
	}
	return out
}

func TestRingBufferEmptyDrain(t *testing.T) {
	assert.Nil(t, newRingBuffer(10).drainAll())
}

func TestRingBufferDefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultBufferSize, newRingBuffer(0).capacity)
}

func TestRingBufferPushAndDrain(t *testing.T) {
	rb := newRingBuffer(10)
	push(rb, 0, 5)
	assert.Equal(t, 5, rb.len())

	assert.Equal(t, []byte{0, 1, 2, 3, 4}, payloadBytes(rb.drainAll()))
	assert.Nil(t, rb.drainAll(), "second drain is empty")
	assert.Zero(t, rb.len())
}

func TestRingBufferOverflowKeepsNewest(t *testing.T) {
	rb := newRingBuffer(5)

	var firsts int
	for i := 0; i < 8; i++ {
		if rb.push(bufferedMsg{payload: []byte{byte(i)}}) {
			firsts++
		}
	}
	assert.Equal(t, 1, firsts, "overflow reported once per drain cycle")
	assert.Equal(t, []byte{3, 4, 5, 6, 7}, payloadBytes(rb.drainAll()))

	// Overflow reporting re-arms after a drain
	push(rb, 0, 5)
	assert.True(t, rb.push(bufferedMsg{payload: []byte{9}}))
}

func TestRingBufferMultipleCycles(t *testing.T) {
	rb := newRingBuffer(5)
	push(rb, 0, 3)
	require.Len(t, rb.drainAll(), 3)

	push(rb, 10, 14)
	assert.Equal(t, []byte{10, 11, 12, 13}, payloadBytes(rb.drainAll()))
}

func TestRingBufferPreservesFields(t *testing.T) {
	rb := newRingBuffer(10)
	rb.push(bufferedMsg{
		topic:    TopicSystem,
		payload:  []byte(`{"test":true}`),
		qos:      1,
		retained: true,
	})

	got := rb.drainAll()
	require.Len(t, got, 1)
	assert.Equal(t, TopicSystem, got[0].topic)
	assert.Equal(t, `{"test":true}`, string(got[0].payload))
	assert.Equal(t, byte(1), got[0].qos)
	assert.True(t, got[0].retained)
}
