// internal/protocol/usb_connection.go
package protocol

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"dive-service/internal/model"
)

// USBConnection implements Channel for instruments exposing bulk endpoints
type USBConnection struct {
	statsRecorder

	config   *USBConfig
	ctx      *gousb.Context
	device   *gousb.Device
	intf     *gousb.Interface
	done     func()
	outEndpt *gousb.OutEndpoint
	inEndpt  *gousb.InEndpoint
	logger   *zap.Logger
	mutex    sync.Mutex
	isOpen   bool
}

// NewUSBConnection creates a new USB connection
func NewUSBConnection(config *USBConfig, logger *zap.Logger) *USBConnection {
	return &USBConnection{
		config: config,
		logger: logger.With(
			zap.String("protocol", "usb"),
			zap.String("vendor_id", config.VendorID),
			zap.String("product_id", config.ProductID),
		),
	}
}

// Open claims the default interface of the first matching device
func (uc *USBConnection) Open(ctx context.Context) error {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	if uc.isOpen {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	vendorID, err := ParseHexID(uc.config.VendorID)
	if err != nil {
		return fmt.Errorf("invalid vendor ID: %w", err)
	}
	productID, err := ParseHexID(uc.config.ProductID)
	if err != nil {
		return fmt.Errorf("invalid product ID: %w", err)
	}

	uc.logger.Info("Opening USB connection", zap.Int("endpoint", uc.config.Endpoint))

	usbCtx := gousb.NewContext()

	device, err := uc.findAndOpenDevice(usbCtx, vendorID, productID)
	if err != nil {
		usbCtx.Close()
		return err
	}

	intf, done, err := device.DefaultInterface()
	if err != nil {
		device.Close()
		usbCtx.Close()
		return fmt.Errorf("failed to claim interface: %w", err)
	}

	outEndpt, err := intf.OutEndpoint(uc.config.Endpoint)
	if err != nil {
		done()
		device.Close()
		usbCtx.Close()
		return fmt.Errorf("failed to get out endpoint: %w", err)
	}

	inEndpt, err := intf.InEndpoint(uc.config.Endpoint)
	if err != nil {
		done()
		device.Close()
		usbCtx.Close()
		return fmt.Errorf("failed to get in endpoint: %w", err)
	}

	uc.ctx = usbCtx
	uc.device = device
	uc.intf = intf
	uc.done = done
	uc.outEndpt = outEndpt
	uc.inEndpt = inEndpt
	uc.isOpen = true
	uc.setConnected(true)

	uc.logger.Info("USB connection opened successfully")
	return nil
}

// SetTimeout bounds subsequent reads
func (uc *USBConnection) SetTimeout(timeout time.Duration) error {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	uc.config.Timeout = timeout
	return nil
}

// Close releases the interface, device and libusb context
func (uc *USBConnection) Close() error {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	if !uc.isOpen {
		return nil
	}

	if uc.done != nil {
		uc.done()
		uc.done = nil
	}

	var closeErr error
	if uc.device != nil {
		closeErr = uc.device.Close()
		uc.device = nil
	}
	if uc.ctx != nil {
		if err := uc.ctx.Close(); err != nil && closeErr == nil {
			closeErr = err
		}
		uc.ctx = nil
	}

	uc.intf = nil
	uc.outEndpt = nil
	uc.inEndpt = nil
	uc.isOpen = false
	uc.setConnected(false)

	if closeErr != nil {
		return fmt.Errorf("failed to close USB device: %w", closeErr)
	}

	uc.logger.Info("USB connection closed successfully")
	return nil
}

// IsOpen returns whether the connection is open
func (uc *USBConnection) IsOpen() bool {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()
	return uc.isOpen
}

// Write writes data to the out endpoint
func (uc *USBConnection) Write(ctx context.Context, data []byte) error {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	if !uc.isOpen {
		return ErrChannelClosed
	}

	n, err := uc.outEndpt.WriteContext(ctx, data)
	if err != nil {
		uc.recordError()
		return fmt.Errorf("failed to write to USB device: %w", err)
	}
	if n != len(data) {
		uc.recordError()
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}

	uc.recordWrite(n)
	return nil
}

// Read reads one transfer from the in endpoint. A timed out transfer returns an empty result.
func (uc *USBConnection) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	uc.mutex.Lock()
	defer uc.mutex.Unlock()

	if !uc.isOpen {
		return nil, ErrChannelClosed
	}

	readCtx := ctx
	if uc.config.Timeout > 0 {
		var cancel context.CancelFunc
		readCtx, cancel = context.WithTimeout(ctx, uc.config.Timeout)
		defer cancel()
	}

	size := maxBytes
	if uc.config.ReadSize > size {
		size = uc.config.ReadSize
	}
	buffer := make([]byte, size)

	n, err := uc.inEndpt.ReadContext(readCtx, buffer)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if readCtx.Err() != nil {
			return buffer[:0], nil
		}
		uc.recordError()
		return nil, fmt.Errorf("failed to read from USB device: %w", err)
	}
	if n > maxBytes {
		n = maxBytes
	}

	uc.recordRead(n)
	return buffer[:n], nil
}

// Address returns the usb://VID:PID form of the endpoint
func (uc *USBConnection) Address() string {
	return fmt.Sprintf("usb://%s:%s", uc.config.VendorID, uc.config.ProductID)
}

// Kind returns the transport kind
func (uc *USBConnection) Kind() model.TransportKind {
	return model.TransportUSB
}

// findAndOpenDevice opens the first device matching vendor and product
func (uc *USBConnection) findAndOpenDevice(usbCtx *gousb.Context, vendorID, productID gousb.ID) (*gousb.Device, error) {
	devices, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == vendorID && desc.Product == productID
	})
	if err != nil && len(devices) == 0 {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}

	if len(devices) == 0 {
		return nil, fmt.Errorf("USB device %04x:%04x: %w", uint16(vendorID), uint16(productID), ErrEndpointNotFound)
	}

	for _, extra := range devices[1:] {
		extra.Close()
	}
	if len(devices) > 1 {
		uc.logger.Warn("Multiple matching USB devices found, using first one")
	}

	return devices[0], nil
}

// ParseHexID parses a hex ID string (0x1234 or 1234)
func ParseHexID(hexStr string) (gousb.ID, error) {
	hexStr = strings.TrimPrefix(strings.ToLower(hexStr), "0x")

	id, err := strconv.ParseUint(hexStr, 16, 16)
	if err != nil {
		return 0, err
	}

	return gousb.ID(id), nil
}
