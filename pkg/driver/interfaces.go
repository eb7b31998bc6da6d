// pkg/driver/interfaces.go
package driver

import (
	"context"

	"dive-service/internal/model"
	"dive-service/internal/protocol"
)

// Descriptor is the resolved profile handle held for the life of a session
type Descriptor interface {
	Profile() model.InstrumentProfile
	Close() error
}

// Device is an opened instrument protocol session bound to a transport channel
type Device interface {
	// SetFingerprint installs the resume watermark. Enumeration stops at the
	// record whose fingerprint equals it.
	SetFingerprint(fingerprint []byte) error

	// ClearFingerprint removes an installed watermark so the next Foreach
	// enumerates the full history
	ClearFingerprint() error

	// Foreach enumerates stored records newest first. Events are delivered
	// through onEvent, records through onDive; a non-zero Continuation from
	// onDive ends the enumeration without error.
	Foreach(ctx context.Context, onEvent EventFunc, onDive DiveFunc) error

	Close() error
}

// Opener opens the device protocol for a profile over an opened channel
type Opener interface {
	Open(ctx context.Context, profile model.InstrumentProfile, channel protocol.Channel) (Device, error)
}
