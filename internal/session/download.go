// internal/session/download.go
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dive-service/internal/model"
	"dive-service/internal/utils"
	"dive-service/pkg/driver"
)

// DownloadOptions controls one download call
type DownloadOptions struct {
	// ForceAll ignores Watermark and fetches the full history
	ForceAll bool
	// Watermark is the text form of the resume fingerprint
	Watermark *string
	// Sink receives session events; nil discards them
	Sink EventSink
	// Limit stops after this many records when > 0
	Limit int
}

// DownloadSession drives the record enumeration of a connected session
type DownloadSession struct {
	logger *zap.Logger
	now    func() time.Time
	newID  func() uuid.UUID
}

// NewDownloadSession creates a download driver
func NewDownloadSession(logger *zap.Logger) *DownloadSession {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DownloadSession{
		logger: logger,
		now:    time.Now,
		newID:  uuid.New,
	}
}

// Run downloads records from s. It returns every record of this call in
// receipt order, or an error and no records.
func (d *DownloadSession) Run(ctx context.Context, s *DeviceSession, opts DownloadOptions) ([]model.DiveRecord, error) {
	if !s.Connected() {
		return nil, &Error{Op: "download", Kind: ErrNoActiveSession}
	}
	fail := func(kind, cause error) error {
		e := &Error{Op: "download", Address: s.address, Family: s.familyName(), Kind: kind, Err: cause}
		if kind == ErrInvalidWatermark && opts.Watermark != nil {
			e.Watermark = *opts.Watermark
		}
		return e
	}

	if !s.busy.CompareAndSwap(false, true) {
		return nil, fail(ErrSessionBusy, nil)
	}
	defer s.busy.Store(false)

	op := utils.NewOperationLogger(d.logger, "download", uuid.NewString())
	op.Start(zap.String("address", s.address), zap.Bool("force_all", opts.ForceAll))

	if err := d.installWatermark(s, opts); err != nil {
		op.Error(err)
		return nil, err
	}

	sink := opts.Sink
	if sink == nil {
		sink = nopSink{}
	}
	onEvent := func(event model.SessionEvent) {
		if p, ok := event.(model.ProgressEvent); ok {
			op.Progress("Download progress", p.Percent)
		}
		sink.OnEvent(event)
	}

	records := make([]model.DiveRecord, 0)
	onDive := func(data, fingerprint []byte) driver.Continuation {
		records = append(records, model.NewDiveRecord(d.newID(), data, fingerprint, d.now()))
		if opts.Limit > 0 && len(records) >= opts.Limit {
			return driver.Stop
		}
		return driver.Continue
	}

	if err := s.device.Foreach(ctx, onEvent, onDive); err != nil {
		op.Error(err, zap.Int("discarded", len(records)))
		return nil, fail(ErrDownloadFailed, err)
	}

	op.Success(zap.Int("dives", len(records)))
	return records, nil
}

// installWatermark sets the resume point unless the full history is requested.
// A fingerprint left by an earlier call on the same session is cleared.
func (d *DownloadSession) installWatermark(s *DeviceSession, opts DownloadOptions) error {
	fail := func(kind, cause error) error {
		e := &Error{Op: "download", Address: s.address, Family: s.familyName(), Kind: kind, Err: cause}
		if opts.Watermark != nil {
			e.Watermark = *opts.Watermark
		}
		return e
	}

	if opts.ForceAll || opts.Watermark == nil {
		if s.hasFingerprint {
			if err := s.device.ClearFingerprint(); err != nil {
				return fail(ErrDownloadFailed, err)
			}
			s.hasFingerprint = false
		}
		return nil
	}

	watermark, err := model.ParseWatermark(*opts.Watermark)
	if err != nil {
		return fail(ErrInvalidWatermark, err)
	}
	if err := s.device.SetFingerprint(watermark); err != nil {
		return fail(ErrDownloadFailed, err)
	}
	s.hasFingerprint = true
	return nil
}
