// internal/discovery/usb/scanner.go
package usb

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"dive-service/internal/discovery"
)

// Scanner lists attached USB dive instruments found in the device database
type Scanner struct {
	logger       *zap.Logger
	knownDevices *DeviceDatabase
	listDescs    func() ([]*gousb.DeviceDesc, error)
}

// NewScanner creates a new USB scanner
func NewScanner(logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		logger:       logger.With(zap.String("scanner", "usb")),
		knownDevices: NewDeviceDatabase(),
		listDescs:    listDeviceDescriptors,
	}
}

// GetScannerType returns scanner type identifier
func (s *Scanner) GetScannerType() string {
	return "usb"
}

// ListKnownEndpoints returns known instruments ordered by bus and device address
func (s *Scanner) ListKnownEndpoints(ctx context.Context) ([]discovery.KnownEndpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	descs, err := s.listDescs()
	if err != nil {
		s.logger.Error("USB subsystem access failed", zap.Error(err))
		return nil, fmt.Errorf("USB subsystem not accessible: %v: %w", err, discovery.ErrSubsystemUnavailable)
	}

	sort.Slice(descs, func(i, j int) bool {
		if descs[i].Bus != descs[j].Bus {
			return descs[i].Bus < descs[j].Bus
		}
		return descs[i].Address < descs[j].Address
	})

	var endpoints []discovery.KnownEndpoint
	for _, desc := range descs {
		product, ok := s.knownDevices.Lookup(desc.Vendor, desc.Product)
		if !ok {
			continue
		}
		name := product.DisplayName
		endpoints = append(endpoints, discovery.KnownEndpoint{
			Name:    &name,
			Address: fmt.Sprintf("usb://%04x:%04x", uint16(desc.Vendor), uint16(desc.Product)),
			Source:  "usb",
		})
	}

	s.logger.Debug("USB instruments listed", zap.Int("count", len(endpoints)))
	return endpoints, nil
}

// listDeviceDescriptors reads every device descriptor without opening a device
func listDeviceDescriptors() ([]*gousb.DeviceDesc, error) {
	usbCtx := gousb.NewContext()
	defer usbCtx.Close()

	var descs []*gousb.DeviceDesc
	_, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		descs = append(descs, desc)
		return false
	})
	if err != nil {
		return nil, err
	}
	return descs, nil
}
