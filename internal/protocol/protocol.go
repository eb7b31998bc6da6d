// internal/protocol/protocol.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dive-service/internal/model"
)

var (
	// ErrEndpointNotFound is returned when an address cannot be resolved to a reachable endpoint
	ErrEndpointNotFound = errors.New("endpoint not found")

	// ErrTimeout is returned when a read produced no data within the channel timeout
	ErrTimeout = errors.New("channel timeout")

	// ErrChannelClosed is returned for I/O on a closed channel
	ErrChannelClosed = errors.New("channel closed")

	// ErrUnsupported is returned when a transport is not available on this platform
	ErrUnsupported = errors.New("transport not supported on this platform")
)

// Channel is an opened bidirectional byte channel to an instrument
type Channel interface {
	// Data communication
	Read(ctx context.Context, maxBytes int) ([]byte, error)
	Write(ctx context.Context, data []byte) error

	// SetTimeout bounds every subsequent read
	SetTimeout(timeout time.Duration) error

	// Close is idempotent
	Close() error
	IsOpen() bool

	Address() string
	Kind() model.TransportKind
	Stats() ChannelStats
}

// ChannelStats provides channel-level statistics
type ChannelStats struct {
	BytesWritten   int64     `json:"bytes_written"`
	BytesRead      int64     `json:"bytes_read"`
	OperationCount int64     `json:"operation_count"`
	ErrorCount     int64     `json:"error_count"`
	LastActivity   time.Time `json:"last_activity"`
	IsConnected    bool      `json:"is_connected"`
}

// statsRecorder is embedded by channel implementations
type statsRecorder struct {
	mu    sync.Mutex
	stats ChannelStats
}

func (s *statsRecorder) recordRead(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.BytesRead += int64(n)
	s.stats.OperationCount++
	s.stats.LastActivity = time.Now()
}

func (s *statsRecorder) recordWrite(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.BytesWritten += int64(n)
	s.stats.OperationCount++
	s.stats.LastActivity = time.Now()
}

func (s *statsRecorder) recordError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.ErrorCount++
}

func (s *statsRecorder) setConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.IsConnected = connected
	s.stats.LastActivity = time.Now()
}

// Stats returns a snapshot of the channel statistics
func (s *statsRecorder) Stats() ChannelStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// ReadFull reads exactly len(buf) bytes from the channel
func ReadFull(ctx context.Context, ch Channel, buf []byte) error {
	read := 0
	for read < len(buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk, err := ch.Read(ctx, len(buf)-read)
		if err != nil {
			return err
		}
		if len(chunk) == 0 {
			return fmt.Errorf("read %d of %d bytes: %w", read, len(buf), ErrTimeout)
		}
		read += copy(buf[read:], chunk)
	}
	return nil
}
