package simendpoint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDummyIsAlwaysZero(t *testing.T) {
	d := NewDummy()
	require.NoError(t, d.Start())
	n, err := d.Produce(make([]byte, 16))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	n, err = d.Consume(make([]byte, 16))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	require.NoError(t, d.Stop())
}

func TestSinusLoopsAndResetsOnStart(t *testing.T) {
	s := NewSinus(SineFreq1K)
	buf := make([]byte, 200) // 100 samples, longer than the 48-sample table
	n, err := s.Produce(buf)
	require.NoError(t, err)
	assert.Equal(t, 200, n)

	require.NoError(t, s.Start())
	buf2 := make([]byte, 96)
	n, err = s.Produce(buf2)
	require.NoError(t, err)
	assert.Equal(t, buf[:96], buf2[:n])
}

func TestLoopbackDeliversAndReportsClosed(t *testing.T) {
	producer, consumer := NewLoopbackLink(4)

	payload := []byte{1, 2, 3, 4}
	n, err := consumer.Consume(payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)

	out := make([]byte, 4)
	n, err = producer.Produce(out)
	require.NoError(t, err)
	assert.Equal(t, payload, out[:n])

	require.NoError(t, consumer.Stop())

	_, err = producer.Produce(out)
	assert.ErrorIs(t, err, ErrClosed)

	_, err = consumer.Consume(payload)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestLoopbackConsumeDropsWhenFull(t *testing.T) {
	_, consumer := NewLoopbackLink(1)

	n, err := consumer.Consume([]byte{1})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = consumer.Consume([]byte{2})
	require.NoError(t, err)
	assert.Equal(t, 0, n, "link buffer is full, packet should be dropped rather than block")
}

func TestLoopbackProduceBlocksUntilDelivery(t *testing.T) {
	producer, consumer := NewLoopbackLink(1)

	done := make(chan struct{})
	out := make([]byte, 2)
	go func() {
		producer.Produce(out)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Produce returned before any packet was enqueued")
	case <-time.After(20 * time.Millisecond):
	}

	_, err := consumer.Consume([]byte{9, 9})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Produce did not unblock after a packet was delivered")
	}
}
