// internal/protocol/serial_connection.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"dive-service/internal/model"
)

// serialPollInterval bounds a single port read so cancellation is noticed
const serialPollInterval = 100 * time.Millisecond

// SerialConnection implements Channel for serial ports, including bound
// rfcomm devices such as /dev/rfcomm0
type SerialConnection struct {
	statsRecorder

	config *SerialConfig
	port   serial.Port
	logger *zap.Logger
	mutex  sync.Mutex
	isOpen bool
}

// NewSerialConnection creates a new serial connection
func NewSerialConnection(config *SerialConfig, logger *zap.Logger) *SerialConnection {
	return &SerialConnection{
		config: config,
		logger: logger.With(
			zap.String("protocol", "serial"),
			zap.String("port", config.Port),
		),
	}
}

// Open opens the serial port
func (sc *SerialConnection) Open(ctx context.Context) error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if sc.isOpen {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	sc.logger.Info("Opening serial port", zap.Int("baud_rate", sc.config.BaudRate))

	mode := &serial.Mode{
		BaudRate: sc.config.BaudRate,
		DataBits: sc.config.DataBits,
		StopBits: serialStopBits(sc.config.StopBits),
		Parity:   serialParity(sc.config.Parity),
	}

	port, err := serial.Open(sc.config.Port, mode)
	if err != nil {
		var portErr *serial.PortError
		if errors.Is(err, fs.ErrNotExist) || (errors.As(err, &portErr) && portErr.Code() == serial.PortNotFound) {
			return fmt.Errorf("serial port %s: %w", sc.config.Port, ErrEndpointNotFound)
		}
		sc.logger.Error("Failed to open serial port", zap.Error(err))
		return fmt.Errorf("failed to open serial port: %w", err)
	}

	if err := port.SetReadTimeout(pollTimeout(sc.config.Timeout)); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout: %w", err)
	}

	sc.port = port
	sc.isOpen = true
	sc.setConnected(true)

	sc.logger.Info("Serial port opened successfully")
	return nil
}

// SetTimeout changes the read timeout of the open port
func (sc *SerialConnection) SetTimeout(timeout time.Duration) error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	sc.config.Timeout = timeout
	if !sc.isOpen {
		return nil
	}
	if err := sc.port.SetReadTimeout(pollTimeout(timeout)); err != nil {
		return fmt.Errorf("failed to set read timeout: %w", err)
	}
	return nil
}

// Close closes the serial port
func (sc *SerialConnection) Close() error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return nil
	}

	err := sc.port.Close()
	sc.port = nil
	sc.isOpen = false
	sc.setConnected(false)

	if err != nil {
		sc.logger.Error("Failed to close serial port", zap.Error(err))
		return fmt.Errorf("failed to close serial port: %w", err)
	}

	sc.logger.Info("Serial port closed successfully")
	return nil
}

// IsOpen returns whether the port is open
func (sc *SerialConnection) IsOpen() bool {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	return sc.isOpen
}

// Write writes data to the serial port
func (sc *SerialConnection) Write(ctx context.Context, data []byte) error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen {
		return ErrChannelClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	n, err := sc.port.Write(data)
	if err != nil {
		sc.recordError()
		return fmt.Errorf("failed to write to serial port: %w", err)
	}
	if n != len(data) {
		sc.recordError()
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}

	sc.recordWrite(n)
	return nil
}

// Read reads up to maxBytes. An empty result means the read timed out.
// The port is polled in short reads so no read outlives the call.
func (sc *SerialConnection) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen {
		return nil, ErrChannelClosed
	}

	var deadline time.Time
	if sc.config.Timeout > 0 {
		deadline = time.Now().Add(sc.config.Timeout)
	}

	buffer := make([]byte, maxBytes)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := sc.port.Read(buffer)
		if err != nil {
			sc.recordError()
			return nil, fmt.Errorf("failed to read from serial port: %w", err)
		}
		if n > 0 {
			sc.recordRead(n)
			return buffer[:n], nil
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return buffer[:0], nil
		}
	}
}

// Address returns the port name
func (sc *SerialConnection) Address() string {
	return sc.config.Port
}

// Kind returns the transport kind
func (sc *SerialConnection) Kind() model.TransportKind {
	return model.TransportSerial
}

func pollTimeout(timeout time.Duration) time.Duration {
	if timeout > 0 && timeout < serialPollInterval {
		return timeout
	}
	return serialPollInterval
}

func serialParity(parity string) serial.Parity {
	switch parity {
	case "odd":
		return serial.OddParity
	case "even":
		return serial.EvenParity
	case "mark":
		return serial.MarkParity
	case "space":
		return serial.SpaceParity
	default:
		return serial.NoParity
	}
}

func serialStopBits(stopBits int) serial.StopBits {
	if stopBits == 2 {
		return serial.TwoStopBits
	}
	return serial.OneStopBit
}
