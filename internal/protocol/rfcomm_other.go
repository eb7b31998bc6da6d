// internal/protocol/rfcomm_other.go
//go:build !linux

package protocol

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dive-service/internal/model"
)

// RFCOMMConnection is unavailable on this platform. Bluetooth serial ports
// can still be reached through their bound serial device.
type RFCOMMConnection struct {
	statsRecorder
	config *RFCOMMConfig
}

// NewRFCOMMConnection creates a connection that fails to open
func NewRFCOMMConnection(config *RFCOMMConfig, logger *zap.Logger) *RFCOMMConnection {
	return &RFCOMMConnection{config: config}
}

func (rc *RFCOMMConnection) Open(ctx context.Context) error {
	return fmt.Errorf("rfcomm: %w", ErrUnsupported)
}

func (rc *RFCOMMConnection) SetTimeout(timeout time.Duration) error { return nil }
func (rc *RFCOMMConnection) Close() error                          { return nil }
func (rc *RFCOMMConnection) IsOpen() bool                          { return false }
func (rc *RFCOMMConnection) Address() string                       { return rc.config.Address }
func (rc *RFCOMMConnection) Kind() model.TransportKind             { return model.TransportBluetooth }

func (rc *RFCOMMConnection) Write(ctx context.Context, data []byte) error {
	return ErrChannelClosed
}

func (rc *RFCOMMConnection) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	return nil, ErrChannelClosed
}
