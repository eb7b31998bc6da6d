// internal/discovery/serial/scanner.go
package serial

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"dive-service/internal/discovery"
)

// Scanner lists serial ports, including bound rfcomm devices and USB serial cables
type Scanner struct {
	logger    *zap.Logger
	patterns  []string
	listPorts func() ([]*enumerator.PortDetails, error)
}

// NewScanner creates a serial port scanner. Ports are kept when they match
// one of the glob patterns, or always when no pattern is given.
func NewScanner(logger *zap.Logger, patterns ...string) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		logger:    logger.With(zap.String("scanner", "serial")),
		patterns:  patterns,
		listPorts: enumerator.GetDetailedPortsList,
	}
}

// GetScannerType returns scanner type identifier
func (s *Scanner) GetScannerType() string {
	return "serial"
}

// ListKnownEndpoints returns the serial ports present on the host in enumeration order
func (s *Scanner) ListKnownEndpoints(ctx context.Context) ([]discovery.KnownEndpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ports, err := s.listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports: %v: %w", err, discovery.ErrSubsystemUnavailable)
	}

	endpoints := make([]discovery.KnownEndpoint, 0, len(ports))
	for _, port := range ports {
		if !s.matches(port.Name) {
			continue
		}

		ep := discovery.KnownEndpoint{Address: port.Name, Source: "serial"}
		if product := strings.TrimSpace(port.Product); product != "" {
			ep.Name = &product
		}
		endpoints = append(endpoints, ep)
	}

	s.logger.Debug("Serial ports listed", zap.Int("count", len(endpoints)))
	return endpoints, nil
}

func (s *Scanner) matches(name string) bool {
	if len(s.patterns) == 0 {
		return true
	}
	for _, pattern := range s.patterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
