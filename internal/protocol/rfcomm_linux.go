// internal/protocol/rfcomm_linux.go
//go:build linux

package protocol

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"dive-service/internal/model"
)

// RFCOMMConnection implements Channel over a Bluetooth serial port profile socket
type RFCOMMConnection struct {
	statsRecorder

	config *RFCOMMConfig
	fd     int
	logger *zap.Logger
	mutex  sync.Mutex
	isOpen bool
}

// NewRFCOMMConnection creates a new RFCOMM connection
func NewRFCOMMConnection(config *RFCOMMConfig, logger *zap.Logger) *RFCOMMConnection {
	return &RFCOMMConnection{
		config: config,
		fd:     -1,
		logger: logger.With(
			zap.String("protocol", "rfcomm"),
			zap.String("bdaddr", config.Address),
			zap.Int("channel", config.Channel),
		),
	}
}

// Open connects the socket to the remote channel
func (rc *RFCOMMConnection) Open(ctx context.Context) error {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	if rc.isOpen {
		return nil
	}

	bdaddr, err := ParseBluetoothAddress(rc.config.Address)
	if err != nil {
		return fmt.Errorf("bluetooth address %q: %w", rc.config.Address, ErrEndpointNotFound)
	}

	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.BTPROTO_RFCOMM)
	if err != nil {
		if errors.Is(err, unix.EAFNOSUPPORT) || errors.Is(err, unix.EPROTONOSUPPORT) {
			return fmt.Errorf("rfcomm socket: %w", ErrUnsupported)
		}
		return fmt.Errorf("failed to create rfcomm socket: %w", err)
	}

	rc.logger.Info("Opening RFCOMM connection")

	// The kernel stores bdaddr little-endian
	sa := &unix.SockaddrRFCOMM{Channel: uint8(rc.config.Channel)}
	for i := 0; i < 6; i++ {
		sa.Addr[i] = bdaddr[5-i]
	}

	done := make(chan error, 1)
	go func() { done <- unix.Connect(fd, sa) }()

	select {
	case err = <-done:
	case <-ctx.Done():
		unix.Close(fd)
		<-done
		return ctx.Err()
	}
	if err != nil {
		unix.Close(fd)
		rc.logger.Error("Failed to open RFCOMM connection", zap.Error(err))
		return fmt.Errorf("failed to connect rfcomm channel %d: %w", rc.config.Channel, err)
	}

	rc.fd = fd
	rc.isOpen = true
	rc.setConnected(true)

	if rc.config.Timeout > 0 {
		if err := rc.applyTimeout(rc.config.Timeout); err != nil {
			rc.logger.Warn("Failed to apply read timeout", zap.Error(err))
		}
	}

	rc.logger.Info("RFCOMM connection opened successfully")
	return nil
}

// SetTimeout bounds subsequent reads
func (rc *RFCOMMConnection) SetTimeout(timeout time.Duration) error {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	rc.config.Timeout = timeout
	if !rc.isOpen {
		return nil
	}
	return rc.applyTimeout(timeout)
}

func (rc *RFCOMMConnection) applyTimeout(timeout time.Duration) error {
	tv := unix.NsecToTimeval(timeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(rc.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		return fmt.Errorf("failed to set receive timeout: %w", err)
	}
	return nil
}

// Close closes the socket
func (rc *RFCOMMConnection) Close() error {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	if !rc.isOpen {
		return nil
	}

	err := unix.Close(rc.fd)
	rc.fd = -1
	rc.isOpen = false
	rc.setConnected(false)

	if err != nil {
		return fmt.Errorf("failed to close rfcomm socket: %w", err)
	}

	rc.logger.Info("RFCOMM connection closed successfully")
	return nil
}

// IsOpen returns whether the socket is connected
func (rc *RFCOMMConnection) IsOpen() bool {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()
	return rc.isOpen
}

// Write writes data to the socket
func (rc *RFCOMMConnection) Write(ctx context.Context, data []byte) error {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	if !rc.isOpen {
		return ErrChannelClosed
	}

	written := 0
	for written < len(data) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := unix.Write(rc.fd, data[written:])
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			rc.recordError()
			return fmt.Errorf("failed to write to rfcomm socket: %w", err)
		}
		written += n
	}

	rc.recordWrite(written)
	return nil
}

// Read reads up to maxBytes. A read that hits the timeout returns an empty result.
func (rc *RFCOMMConnection) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	if !rc.isOpen {
		return nil, ErrChannelClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buffer := make([]byte, maxBytes)
	for {
		n, err := unix.Read(rc.fd, buffer)
		switch {
		case err == nil && n == 0:
			rc.recordError()
			return nil, fmt.Errorf("rfcomm peer closed the connection: %w", ErrChannelClosed)
		case err == nil:
			rc.recordRead(n)
			return buffer[:n], nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return buffer[:0], nil
		default:
			rc.recordError()
			return nil, fmt.Errorf("failed to read from rfcomm socket: %w", err)
		}
	}
}

// Address returns the remote Bluetooth address
func (rc *RFCOMMConnection) Address() string {
	return rc.config.Address
}

// Kind returns the transport kind
func (rc *RFCOMMConnection) Kind() model.TransportKind {
	return model.TransportBluetooth
}
