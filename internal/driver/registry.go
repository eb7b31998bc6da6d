// internal/driver/registry.go
package driver

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"dive-service/internal/model"
	"dive-service/internal/protocol"
	"dive-service/pkg/driver"
)

// DriverFactory opens a device protocol session over an opened channel
type DriverFactory func(ctx context.Context, profile model.InstrumentProfile, channel protocol.Channel, logger *zap.Logger) (driver.Device, error)

// Registry maps instrument families to device drivers
type Registry struct {
	drivers map[model.FamilyTag]DriverFactory
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewRegistry creates a new driver registry
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		drivers: make(map[model.FamilyTag]DriverFactory),
		logger:  logger.With(zap.String("component", "driver_registry")),
	}
}

// Register registers a driver factory for a family
func (r *Registry) Register(family model.FamilyTag, factory DriverFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.drivers[family] = factory
	r.logger.Info("Driver registered", zap.String("family", string(family)))
}

// Open creates a device for the profile's family, falling back to the generic driver
func (r *Registry) Open(ctx context.Context, profile model.InstrumentProfile, channel protocol.Channel) (driver.Device, error) {
	factory, err := r.lookup(profile.Family)
	if err != nil {
		return nil, err
	}
	return factory(ctx, profile, channel, r.logger)
}

func (r *Registry) lookup(family model.FamilyTag) (DriverFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if factory, exists := r.drivers[family]; exists {
		return factory, nil
	}
	if factory, exists := r.drivers[model.FamilyGeneric]; exists {
		return factory, nil
	}
	return nil, fmt.Errorf("no driver found for family=%s", family)
}

// ListDrivers returns the registered families in lexical order
func (r *Registry) ListDrivers() []model.FamilyTag {
	r.mu.RLock()
	defer r.mu.RUnlock()

	families := make([]model.FamilyTag, 0, len(r.drivers))
	for family := range r.drivers {
		families = append(families, family)
	}
	sort.Slice(families, func(i, j int) bool { return families[i] < families[j] })
	return families
}

// IsSupported checks whether a family resolves to a driver
func (r *Registry) IsSupported(family model.FamilyTag) bool {
	_, err := r.lookup(family)
	return err == nil
}
