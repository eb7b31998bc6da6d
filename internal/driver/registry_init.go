// internal/driver/registry_init.go
package driver

import (
	"go.uber.org/zap"

	"dive-service/internal/driver/stream"
	"dive-service/internal/model"
)

// RegisterDefaultDrivers registers all default device drivers
func RegisterDefaultDrivers(registry *Registry, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Framed stream bridge, used for every family without a dedicated driver
	registry.Register(model.FamilyGeneric, stream.Open)

	logger.Info("Default drivers registered", zap.Int("drivers", len(registry.ListDrivers())))
}
