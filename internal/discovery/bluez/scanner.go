// internal/discovery/bluez/scanner.go
package bluez

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"dive-service/internal/discovery"
)

const (
	bluezService    = "org.bluez"
	adapterIface    = "org.bluez.Adapter1"
	deviceIface     = "org.bluez.Device1"
	objManagerIface = "org.freedesktop.DBus.ObjectManager"

	errServiceUnknown = "org.freedesktop.DBus.Error.ServiceUnknown"
	errNameHasNoOwner = "org.freedesktop.DBus.Error.NameHasNoOwner"
)

// ManagedObjects is the reply shape of ObjectManager.GetManagedObjects
type ManagedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// Scanner lists bonded Bluetooth devices known to BlueZ
type Scanner struct {
	adapter string
	logger  *zap.Logger
	connect func() (*dbus.Conn, error)
}

// NewScanner creates a BlueZ scanner. An empty adapter selects the first adapter found.
func NewScanner(adapter string, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		adapter: adapter,
		logger:  logger.With(zap.String("scanner", "bluetooth")),
		connect: func() (*dbus.Conn, error) { return dbus.ConnectSystemBus() },
	}
}

// GetScannerType returns scanner type identifier
func (s *Scanner) GetScannerType() string {
	return "bluetooth"
}

// CheckAdapter reports whether an adapter is present and powered
func (s *Scanner) CheckAdapter(ctx context.Context) error {
	objects, err := s.managedObjects(ctx)
	if err != nil {
		return err
	}
	_, err = selectAdapter(objects, s.adapter)
	return err
}

// ListKnownEndpoints returns paired devices of the selected adapter ordered by object path
func (s *Scanner) ListKnownEndpoints(ctx context.Context) ([]discovery.KnownEndpoint, error) {
	objects, err := s.managedObjects(ctx)
	if err != nil {
		return nil, err
	}

	endpoints, err := BondedEndpoints(objects, s.adapter)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Bonded devices listed", zap.Int("count", len(endpoints)))
	return endpoints, nil
}

func (s *Scanner) managedObjects(ctx context.Context) (ManagedObjects, error) {
	conn, err := s.connect()
	if err != nil {
		s.logger.Debug("System bus not reachable", zap.Error(err))
		return nil, fmt.Errorf("connect system bus: %v: %w", err, discovery.ErrSubsystemUnavailable)
	}
	defer conn.Close()

	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	call := conn.Object(bluezService, "/").CallWithContext(ctx, objManagerIface+".GetManagedObjects", 0)
	if call.Err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if isDBusErrorName(call.Err, errServiceUnknown) || isDBusErrorName(call.Err, errNameHasNoOwner) {
			return nil, fmt.Errorf("bluez not running: %w", discovery.ErrSubsystemUnavailable)
		}
		return nil, fmt.Errorf("GetManagedObjects: %v: %w", call.Err, discovery.ErrSubsystemUnavailable)
	}
	if err := call.Store(&objects); err != nil {
		return nil, fmt.Errorf("decode managed objects: %w", err)
	}
	return ManagedObjects(objects), nil
}

// BondedEndpoints extracts paired devices of one adapter from a managed objects reply
func BondedEndpoints(objects ManagedObjects, adapter string) ([]discovery.KnownEndpoint, error) {
	adapterPath, err := selectAdapter(objects, adapter)
	if err != nil {
		return nil, err
	}

	paths := make([]dbus.ObjectPath, 0, len(objects))
	for path, ifaces := range objects {
		if _, ok := ifaces[deviceIface]; ok {
			paths = append(paths, path)
		}
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })

	endpoints := make([]discovery.KnownEndpoint, 0, len(paths))
	for _, path := range paths {
		props := objects[path][deviceIface]

		if owner, ok := variantValue[dbus.ObjectPath](props, "Adapter"); ok && owner != adapterPath {
			continue
		}
		if paired, _ := variantValue[bool](props, "Paired"); !paired {
			continue
		}
		address, ok := variantValue[string](props, "Address")
		if !ok || address == "" {
			continue
		}

		ep := discovery.KnownEndpoint{Address: strings.ToUpper(address), Source: "bluetooth"}
		if name, ok := variantValue[string](props, "Name"); ok {
			ep.Name = &name
		}
		endpoints = append(endpoints, ep)
	}

	return endpoints, nil
}

func selectAdapter(objects ManagedObjects, adapter string) (dbus.ObjectPath, error) {
	var paths []dbus.ObjectPath
	for path, ifaces := range objects {
		if _, ok := ifaces[adapterIface]; !ok {
			continue
		}
		if adapter != "" && !strings.HasSuffix(string(path), "/"+adapter) {
			continue
		}
		paths = append(paths, path)
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("no bluetooth adapter: %w", discovery.ErrSubsystemUnavailable)
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })

	for _, path := range paths {
		if powered, _ := variantValue[bool](objects[path][adapterIface], "Powered"); powered {
			return path, nil
		}
	}
	return "", fmt.Errorf("adapter %s powered off: %w", paths[0], discovery.ErrSubsystemDisabled)
}

func variantValue[T any](props map[string]dbus.Variant, key string) (T, bool) {
	var zero T
	v, ok := props[key]
	if !ok {
		return zero, false
	}
	value, ok := v.Value().(T)
	return value, ok
}

func isDBusErrorName(err error, want string) bool {
	var dbusErrPtr *dbus.Error
	if errors.As(err, &dbusErrPtr) && dbusErrPtr != nil && dbusErrPtr.Name == want {
		return true
	}

	var dbusErr dbus.Error
	return errors.As(err, &dbusErr) && dbusErr.Name == want
}
