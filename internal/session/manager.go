// internal/session/manager.go
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"dive-service/internal/catalog"
	"dive-service/internal/discovery"
	"dive-service/internal/model"
	"dive-service/internal/protocol"
	"dive-service/internal/utils"
	"dive-service/pkg/driver"
)

var errManagerClosed = errors.New("manager closed")

// DescriptorResolver maps an optional family to a releasable profile descriptor
type DescriptorResolver interface {
	Resolve(family *model.FamilyTag) (driver.Descriptor, error)
}

// ChannelOpener opens a transport channel to an address
type ChannelOpener interface {
	Open(ctx context.Context, address string, profile model.InstrumentProfile) (protocol.Channel, error)
}

// ConnectRequest holds the arguments of a connect call
type ConnectRequest struct {
	Address       string
	Family        *model.FamilyTag
	TimeoutMillis *int
}

// DeviceSession is the live descriptor, channel and device triple
type DeviceSession struct {
	address     string
	family      *model.FamilyTag
	descriptor  driver.Descriptor
	channel     protocol.Channel
	device      driver.Device
	guard       *ResourceGuard
	connectedAt time.Time

	released       atomic.Bool
	busy           atomic.Bool
	hasFingerprint bool
}

// Address returns the instrument address
func (s *DeviceSession) Address() string { return s.address }

// Family returns the requested family, nil when none was given
func (s *DeviceSession) Family() *model.FamilyTag { return s.family }

// Profile returns the resolved instrument profile
func (s *DeviceSession) Profile() model.InstrumentProfile { return s.descriptor.Profile() }

// ConnectedAt returns when the session was established
func (s *DeviceSession) ConnectedAt() time.Time { return s.connectedAt }

// ChannelStats returns transport statistics
func (s *DeviceSession) ChannelStats() protocol.ChannelStats { return s.channel.Stats() }

// Connected reports whether the session still holds its resources
func (s *DeviceSession) Connected() bool { return s != nil && !s.released.Load() }

// Busy reports whether a download is running
func (s *DeviceSession) Busy() bool { return s != nil && s.busy.Load() }

func (s *DeviceSession) familyName() string {
	if s.family == nil {
		return ""
	}
	return string(*s.family)
}

// Manager owns at most one device session at a time
type Manager struct {
	enumerator discovery.Enumerator
	resolver   DescriptorResolver
	channels   ChannelOpener
	devices    driver.Opener
	downloads  *DownloadSession
	logger     *zap.Logger

	mu      sync.Mutex
	current *DeviceSession
	closed  bool
}

// NewManager creates a connection manager from its collaborators
func NewManager(enumerator discovery.Enumerator, resolver DescriptorResolver, channels ChannelOpener, devices driver.Opener, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "connection_manager"))
	return &Manager{
		enumerator: enumerator,
		resolver:   resolver,
		channels:   channels,
		devices:    devices,
		downloads:  NewDownloadSession(logger),
		logger:     logger,
	}
}

// Discover lists known endpoints in enumeration order, classified by display name
func (m *Manager) Discover(ctx context.Context) ([]model.InstrumentEndpoint, error) {
	known, err := m.enumerator.ListKnownEndpoints(ctx)
	if err != nil {
		kind := ErrTransportUnavailable
		if errors.Is(err, discovery.ErrSubsystemDisabled) {
			kind = ErrTransportDisabled
		}
		m.logger.Warn("Discovery failed", zap.Error(err))
		return nil, &Error{Op: "discover", Kind: kind, Err: err}
	}

	endpoints := make([]model.InstrumentEndpoint, 0, len(known))
	for _, k := range known {
		endpoints = append(endpoints, model.InstrumentEndpoint{
			DisplayName: k.Name,
			Address:     k.Address,
			Family:      catalog.ClassifyEndpoint(k.Name),
		})
	}

	m.logger.Info("Discovery completed", zap.Int("endpoints", len(endpoints)))
	return endpoints, nil
}

// Connect opens a new session, tearing down any existing one first. Resources
// acquired before a failure are released before the error is returned.
func (m *Manager) Connect(ctx context.Context, req ConnectRequest) (*DeviceSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	familyName := ""
	if req.Family != nil {
		familyName = string(*req.Family)
	}
	ilog := utils.NewInstrumentLogger(m.logger, req.Address, familyName)
	fail := func(kind, cause error) error {
		err := &Error{Op: "connect", Address: req.Address, Family: familyName, Kind: kind, Err: cause}
		ilog.LogConnection("connect", err)
		return err
	}

	if m.closed {
		return nil, fail(ErrConnectFailed, errManagerClosed)
	}

	if m.current != nil {
		if err := m.teardownLocked(); err != nil {
			ilog.Warn("Previous session released with errors", zap.Error(err))
		}
	}

	if req.TimeoutMillis != nil && *req.TimeoutMillis < 0 {
		return nil, fail(ErrConnectFailed, fmt.Errorf("invalid timeout %dms", *req.TimeoutMillis))
	}

	guard := NewResourceGuard(ilog.LogRelease)
	unwind := func() {
		if err := guard.Release(); err != nil {
			ilog.Warn("Unwinding partial connect failed", zap.Error(err))
		}
	}

	descriptor, err := m.resolver.Resolve(req.Family)
	if err != nil {
		return nil, fail(ErrConnectFailed, fmt.Errorf("resolve profile: %w", err))
	}
	guard.Acquire("descriptor", descriptor.Close)
	profile := descriptor.Profile()

	channel, err := m.channels.Open(ctx, req.Address, profile)
	if err != nil {
		unwind()
		if errors.Is(err, protocol.ErrEndpointNotFound) {
			return nil, fail(ErrEndpointNotFound, err)
		}
		return nil, fail(ErrConnectFailed, fmt.Errorf("open transport: %w", err))
	}
	guard.Acquire("channel", channel.Close)

	if req.TimeoutMillis != nil {
		if err := channel.SetTimeout(time.Duration(*req.TimeoutMillis) * time.Millisecond); err != nil {
			unwind()
			return nil, fail(ErrConnectFailed, fmt.Errorf("set timeout: %w", err))
		}
	}

	device, err := m.devices.Open(ctx, profile, channel)
	if err != nil {
		unwind()
		return nil, fail(ErrConnectFailed, fmt.Errorf("open device: %w", err))
	}
	guard.Acquire("device", device.Close)

	s := &DeviceSession{
		address:     req.Address,
		family:      req.Family,
		descriptor:  descriptor,
		channel:     channel,
		device:      device,
		guard:       guard,
		connectedAt: time.Now().UTC(),
	}
	m.current = s

	ilog.LogConnection("connect", nil)
	ilog.Debug("Session established",
		zap.String("profile", string(profile.Family)),
		zap.Bool("generic_profile", profile.Generic),
		zap.String("transport", string(channel.Kind())),
	)
	return s, nil
}

// Disconnect releases the current session. Without a session it is a no-op.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.teardownLocked()
}

func (m *Manager) teardownLocked() error {
	s := m.current
	m.current = nil
	if s == nil {
		return nil
	}

	s.released.Store(true)
	ilog := utils.NewInstrumentLogger(m.logger, s.address, s.familyName())

	if err := s.guard.Release(); err != nil {
		ilog.LogConnection("disconnect", err)
		return &Error{Op: "disconnect", Address: s.address, Family: s.familyName(), Kind: ErrResourceReleaseFailed, Err: err}
	}

	ilog.LogConnection("disconnect", nil)
	return nil
}

// Session returns the live session, or nil
func (m *Manager) Session() *DeviceSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Download runs a download on the current session
func (m *Manager) Download(ctx context.Context, opts DownloadOptions) ([]model.DiveRecord, error) {
	return m.downloads.Run(ctx, m.Session(), opts)
}

// Close releases the current session and rejects further connects
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return m.teardownLocked()
}
