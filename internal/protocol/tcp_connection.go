// internal/protocol/tcp_connection.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"dive-service/internal/model"
)

// TCPConnection implements Channel for serial-over-TCP bridges and simulators
type TCPConnection struct {
	statsRecorder

	config *TCPConfig
	conn   net.Conn
	logger *zap.Logger
	mutex  sync.Mutex
	isOpen bool
}

// NewTCPConnection creates a new TCP connection
func NewTCPConnection(config *TCPConfig, logger *zap.Logger) *TCPConnection {
	return &TCPConnection{
		config: config,
		logger: logger.With(
			zap.String("protocol", "tcp"),
			zap.String("host", config.Host),
			zap.Int("port", config.Port),
		),
	}
}

// Open dials the bridge
func (tc *TCPConnection) Open(ctx context.Context) error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if tc.isOpen {
		return nil
	}

	address := net.JoinHostPort(tc.config.Host, strconv.Itoa(tc.config.Port))
	tc.logger.Info("Opening TCP connection")

	dialer := &net.Dialer{Timeout: tc.config.ConnectTimeout}
	if tc.config.KeepAlive {
		dialer.KeepAlive = 30 * time.Second
	}

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return fmt.Errorf("host %s: %w", tc.config.Host, ErrEndpointNotFound)
		}
		tc.logger.Error("Failed to open TCP connection", zap.Error(err))
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	tc.conn = conn
	tc.isOpen = true
	tc.setConnected(true)

	tc.logger.Info("TCP connection opened successfully")
	return nil
}

// SetTimeout bounds subsequent reads
func (tc *TCPConnection) SetTimeout(timeout time.Duration) error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	tc.config.Timeout = timeout
	return nil
}

// Close closes the TCP connection
func (tc *TCPConnection) Close() error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if !tc.isOpen || tc.conn == nil {
		return nil
	}

	err := tc.conn.Close()
	tc.conn = nil
	tc.isOpen = false
	tc.setConnected(false)

	if err != nil {
		tc.logger.Error("Failed to close TCP connection", zap.Error(err))
		return fmt.Errorf("failed to close TCP connection: %w", err)
	}

	tc.logger.Info("TCP connection closed successfully")
	return nil
}

// IsOpen returns whether the connection is open
func (tc *TCPConnection) IsOpen() bool {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	return tc.isOpen
}

// Write writes data to the TCP connection
func (tc *TCPConnection) Write(ctx context.Context, data []byte) error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if !tc.isOpen {
		return ErrChannelClosed
	}

	stop := context.AfterFunc(ctx, func() {
		tc.conn.SetWriteDeadline(time.Now())
	})
	defer stop()

	if tc.config.Timeout > 0 {
		tc.conn.SetWriteDeadline(time.Now().Add(tc.config.Timeout))
	}

	n, err := tc.conn.Write(data)
	if err != nil {
		tc.recordError()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("failed to write to TCP connection: %w", err)
	}

	tc.recordWrite(n)
	return nil
}

// Read reads up to maxBytes. A read that hits the timeout returns an empty result.
func (tc *TCPConnection) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if !tc.isOpen {
		return nil, ErrChannelClosed
	}

	stop := context.AfterFunc(ctx, func() {
		tc.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if tc.config.Timeout > 0 {
		tc.conn.SetReadDeadline(time.Now().Add(tc.config.Timeout))
	} else {
		tc.conn.SetReadDeadline(time.Time{})
	}

	buffer := make([]byte, maxBytes)
	n, err := tc.conn.Read(buffer)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return buffer[:0], nil
		}
		tc.recordError()
		return nil, fmt.Errorf("failed to read from TCP connection: %w", err)
	}

	tc.recordRead(n)
	return buffer[:n], nil
}

// Address returns host:port
func (tc *TCPConnection) Address() string {
	return net.JoinHostPort(tc.config.Host, strconv.Itoa(tc.config.Port))
}

// Kind returns the transport kind
func (tc *TCPConnection) Kind() model.TransportKind {
	return model.TransportTCP
}
