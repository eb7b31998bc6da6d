// internal/discovery/scanner.go
package discovery

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrSubsystemUnavailable is returned when the enumeration subsystem is absent
	ErrSubsystemUnavailable = errors.New("enumeration subsystem unavailable")

	// ErrSubsystemDisabled is returned when the subsystem is present but turned off
	ErrSubsystemDisabled = errors.New("enumeration subsystem disabled")
)

// KnownEndpoint is one bonded or attached endpoint reported by a source
type KnownEndpoint struct {
	Name    *string
	Address string
	Source  string
}

// Enumerator lists the endpoints currently known to the host
type Enumerator interface {
	ListKnownEndpoints(ctx context.Context) ([]KnownEndpoint, error)
}

// Scanner is an Enumerator for one kind of source
type Scanner interface {
	Enumerator
	GetScannerType() string
}

// ScannerManager combines several scanners into one Enumerator
type ScannerManager struct {
	scanners []Scanner
	logger   *zap.Logger
}

// NewScannerManager creates an empty scanner manager
func NewScannerManager(logger *zap.Logger) *ScannerManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScannerManager{
		logger: logger.With(zap.String("component", "scanner_manager")),
	}
}

// RegisterScanner appends a scanner. Results keep registration order.
func (sm *ScannerManager) RegisterScanner(scanner Scanner) {
	sm.scanners = append(sm.scanners, scanner)
	sm.logger.Info("Scanner registered", zap.String("type", scanner.GetScannerType()))
}

// ListKnownEndpoints concatenates every source's endpoints. It fails only when
// every source failed, returning the first failure.
func (sm *ScannerManager) ListKnownEndpoints(ctx context.Context) ([]KnownEndpoint, error) {
	if len(sm.scanners) == 0 {
		return nil, fmt.Errorf("no scanners registered: %w", ErrSubsystemUnavailable)
	}

	var (
		all      []KnownEndpoint
		firstErr error
		failures int
	)

	for _, scanner := range sm.scanners {
		scannerType := scanner.GetScannerType()

		endpoints, err := scanner.ListKnownEndpoints(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			sm.logger.Warn("Scanner failed", zap.String("type", scannerType), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			failures++
			continue
		}

		for i := range endpoints {
			if endpoints[i].Source == "" {
				endpoints[i].Source = scannerType
			}
		}
		all = append(all, endpoints...)

		sm.logger.Debug("Scanner completed",
			zap.String("type", scannerType),
			zap.Int("endpoints_found", len(endpoints)),
		)
	}

	if failures == len(sm.scanners) {
		return nil, firstErr
	}
	return all, nil
}

// GetScannerTypes returns the registered scanner types in order
func (sm *ScannerManager) GetScannerTypes() []string {
	types := make([]string, 0, len(sm.scanners))
	for _, scanner := range sm.scanners {
		types = append(types, scanner.GetScannerType())
	}
	return types
}
