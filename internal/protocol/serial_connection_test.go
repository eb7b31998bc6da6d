package protocol

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

// scriptedPort returns queued chunks, otherwise waits one short read timeout
type scriptedPort struct {
	serial.Port

	mu       sync.Mutex
	chunks   [][]byte
	timeout  time.Duration
	inflight atomic.Int32
}

func (p *scriptedPort) push(chunk []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chunks = append(p.chunks, chunk)
}

func (p *scriptedPort) Read(b []byte) (int, error) {
	p.inflight.Add(1)
	defer p.inflight.Add(-1)

	p.mu.Lock()
	if len(p.chunks) > 0 {
		n := copy(b, p.chunks[0])
		p.chunks = p.chunks[1:]
		p.mu.Unlock()
		return n, nil
	}
	p.mu.Unlock()

	time.Sleep(5 * time.Millisecond)
	return 0, nil
}

func (p *scriptedPort) SetReadTimeout(t time.Duration) error {
	p.timeout = t
	return nil
}

func (p *scriptedPort) Close() error { return nil }

func openScripted(timeout time.Duration) (*SerialConnection, *scriptedPort) {
	port := &scriptedPort{}
	sc := NewSerialConnection(&SerialConfig{Port: "/dev/ttyTEST", Timeout: timeout}, zap.NewNop())
	sc.port = port
	sc.isOpen = true
	return sc, port
}

func TestSerialReadCancelLeavesNoReadBehind(t *testing.T) {
	sc, port := openScripted(0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := sc.Read(ctx, 16)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, port.inflight.Load())

	port.push([]byte{0xA5, 0x5A})
	data, err := sc.Read(context.Background(), 16)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xA5, 0x5A}, data)
	assert.EqualValues(t, 2, sc.Stats().BytesRead)
}

func TestSerialReadTimesOutEmpty(t *testing.T) {
	sc, _ := openScripted(30 * time.Millisecond)

	start := time.Now()
	data, err := sc.Read(context.Background(), 16)
	require.NoError(t, err)
	assert.Empty(t, data)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestSerialSetTimeoutBoundsPortReads(t *testing.T) {
	sc, port := openScripted(0)

	require.NoError(t, sc.SetTimeout(20*time.Millisecond))
	assert.Equal(t, 20*time.Millisecond, port.timeout)

	require.NoError(t, sc.SetTimeout(5*time.Second))
	assert.Equal(t, serialPollInterval, port.timeout)
}
