// internal/service/dive_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"dive-service/internal/config"
	"dive-service/internal/discovery"
	"dive-service/internal/model"
	"dive-service/internal/repository"
	"dive-service/internal/session"
	"dive-service/internal/utils"
)

// SessionManager is the connection manager used by the service
type SessionManager interface {
	Discover(ctx context.Context) ([]model.InstrumentEndpoint, error)
	Connect(ctx context.Context, req session.ConnectRequest) (*session.DeviceSession, error)
	Download(ctx context.Context, opts session.DownloadOptions) ([]model.DiveRecord, error)
	Disconnect() error
	Session() *session.DeviceSession
	Close() error
}

// AdapterChecker reports whether the wireless adapter is present and powered
type AdapterChecker interface {
	CheckAdapter(ctx context.Context) error
}

// EventPublisher receives session events for live subscribers
type EventPublisher interface {
	PublishSessionEvent(envelope model.EventEnvelope)
}

// FamilyLister lists the known instrument families
type FamilyLister interface {
	Families() []model.FamilyTag
}

// DiveComputerService exposes the session operations to the host bridge.
// Calls are serialized; a call made while another runs fails with session.ErrSessionBusy.
type DiveComputerService struct {
	sessions   SessionManager
	dives      repository.DiveRepository
	watermarks repository.WatermarkRepository
	adapter    AdapterChecker
	families   FamilyLister
	publisher  EventPublisher
	config     *config.Config
	logger     *utils.ServiceLogger

	mu          sync.Mutex
	initialized atomic.Bool
}

// Dependencies groups the optional collaborators of the service
type Dependencies struct {
	Dives      repository.DiveRepository
	Watermarks repository.WatermarkRepository
	Adapter    AdapterChecker
	Families   FamilyLister
	Publisher  EventPublisher
}

// NewDiveComputerService creates a new service instance
func NewDiveComputerService(sessions SessionManager, deps Dependencies, cfg *config.Config, logger *zap.Logger) *DiveComputerService {
	return &DiveComputerService{
		sessions:   sessions,
		dives:      deps.Dives,
		watermarks: deps.Watermarks,
		adapter:    deps.Adapter,
		families:   deps.Families,
		publisher:  deps.Publisher,
		config:     cfg,
		logger:     utils.NewServiceLogger(logger, "dive-computer-service"),
	}
}

func (s *DiveComputerService) acquire(op string) error {
	if !s.mu.TryLock() {
		return &session.Error{Op: op, Kind: session.ErrSessionBusy}
	}
	return nil
}

// Initialize checks the wireless subsystem and marks the service ready
func (s *DiveComputerService) Initialize(ctx context.Context) (*InitializeResult, error) {
	if err := s.acquire("initialize"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	result := &InitializeResult{Success: true}
	if s.families != nil {
		result.Families = s.families.Families()
	}

	if s.adapter != nil {
		err := s.adapter.CheckAdapter(ctx)
		switch {
		case err == nil:
			result.BluetoothAvailable = true
			result.BluetoothEnabled = true
		case errors.Is(err, discovery.ErrSubsystemDisabled):
			result.BluetoothAvailable = true
		default:
			s.logger.Info("Bluetooth adapter not available", zap.Error(err))
		}
	}

	s.initialized.Store(true)
	s.logger.Info("Service initialized",
		zap.Bool("bluetooth_available", result.BluetoothAvailable),
		zap.Bool("bluetooth_enabled", result.BluetoothEnabled),
	)
	return result, nil
}

// ScanDevices lists known instruments
func (s *DiveComputerService) ScanDevices(ctx context.Context) (*ScanResult, error) {
	if err := s.acquire("discover"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if timeout := s.config.Discovery.ScanTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	devices, err := s.sessions.Discover(ctx)
	if err != nil {
		return nil, err
	}
	return &ScanResult{Devices: devices}, nil
}

// ConnectDevice opens a session, replacing any current one
func (s *DiveComputerService) ConnectDevice(ctx context.Context, req *ConnectDeviceRequest) (*ConnectResult, error) {
	if err := s.acquire("connect"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if timeout := s.config.Download.ConnectTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ds, err := s.sessions.Connect(ctx, session.ConnectRequest{
		Address:       req.Address,
		Family:        req.Family,
		TimeoutMillis: req.Timeout,
	})
	if err != nil {
		return nil, err
	}

	return &ConnectResult{Success: true, Address: ds.Address(), Profile: ds.Profile()}, nil
}

// DownloadDives downloads from the open session, stores the dives and advances
// the stored watermark. Without an explicit fingerprint the stored one is used
// unless ForceAll is set.
func (s *DiveComputerService) DownloadDives(ctx context.Context, req *DownloadDivesRequest) (*DownloadResult, error) {
	if err := s.acquire("download"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	ds := s.sessions.Session()
	address := ""
	family := ""
	if ds != nil {
		address = ds.Address()
		family = string(ds.Profile().Family)
	}

	watermark := req.Fingerprint
	if !req.ForceAll && watermark == nil && ds != nil {
		watermark = s.storedWatermark(ctx, address)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.config.Download.MaxRecords
	}

	sinks := session.MultiSink{session.NewLoggingSink(s.logger.Logger)}
	if s.publisher != nil {
		sinks = append(sinks, session.EventSinkFunc(func(event model.SessionEvent) {
			s.publisher.PublishSessionEvent(model.NewEventEnvelope(address, event))
		}))
	}

	records, err := s.sessions.Download(ctx, session.DownloadOptions{
		ForceAll:  req.ForceAll,
		Watermark: watermark,
		Sink:      sinks,
		Limit:     limit,
	})
	if err != nil {
		return nil, err
	}

	result := &DownloadResult{Dives: records}
	if len(records) == 0 {
		return result, nil
	}

	// records arrive newest first; a download cut short by the limit leaves
	// older records behind the newest fingerprint, so the watermark stays put
	var advance *model.StoredWatermark
	if limit <= 0 || len(records) < limit {
		result.Watermark = records[0].Fingerprint
		advance = &model.StoredWatermark{
			Address:     address,
			Family:      family,
			Fingerprint: result.Watermark,
		}
	} else {
		s.logger.Info("Download reached the record limit, watermark not advanced",
			zap.String("address", address),
			zap.Int("limit", limit),
		)
	}

	switch {
	case s.dives != nil:
		if advance != nil && s.watermarks == nil {
			advance = nil
		}
		stored, err := s.dives.SaveDownload(ctx, address, records, advance)
		if err != nil {
			return nil, fmt.Errorf("failed to store dives: %w", err)
		}
		result.Stored = stored
	case s.watermarks != nil && advance != nil:
		if err := s.watermarks.Upsert(ctx, advance); err != nil {
			return nil, fmt.Errorf("failed to store watermark: %w", err)
		}
	}

	return result, nil
}

func (s *DiveComputerService) storedWatermark(ctx context.Context, address string) *string {
	if s.watermarks == nil {
		return nil
	}
	w, err := s.watermarks.Get(ctx, address)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("Stored watermark unavailable, downloading full history", zap.Error(err))
		}
		return nil
	}
	return &w.Fingerprint
}

// DisconnectDevice releases the current session
func (s *DiveComputerService) DisconnectDevice(ctx context.Context) (*DisconnectResult, error) {
	if err := s.acquire("disconnect"); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if err := s.sessions.Disconnect(); err != nil {
		return nil, err
	}
	return &DisconnectResult{Success: true}, nil
}

// ListDives returns stored dives of an address
func (s *DiveComputerService) ListDives(ctx context.Context, address string, filter *repository.DiveFilter) ([]model.DiveRecord, error) {
	if s.dives == nil {
		return nil, errors.New("dive storage not configured")
	}
	return s.dives.ListByAddress(ctx, address, filter)
}

// Status describes the current session without blocking on running calls
func (s *DiveComputerService) Status() *StatusResponse {
	resp := &StatusResponse{Initialized: s.initialized.Load()}

	ds := s.sessions.Session()
	if ds == nil || !ds.Connected() {
		return resp
	}

	connectedAt := ds.ConnectedAt()
	stats := ds.ChannelStats()
	profile := ds.Profile()

	resp.Connected = true
	resp.Downloading = ds.Busy()
	resp.Address = ds.Address()
	resp.Family = ds.Family()
	resp.ConnectedAt = &connectedAt
	resp.Channel = &stats
	resp.Profile = &profile
	return resp
}

// Close releases the session at shutdown, waiting for a running call
func (s *DiveComputerService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions.Close()
}
