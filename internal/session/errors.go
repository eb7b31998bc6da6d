// internal/session/errors.go
package session

import (
	"errors"
	"strings"
)

// Error kinds, matched with errors.Is
var (
	ErrTransportUnavailable  = errors.New("transport unavailable")
	ErrTransportDisabled     = errors.New("transport disabled")
	ErrEndpointNotFound      = errors.New("endpoint not found")
	ErrConnectFailed         = errors.New("connect failed")
	ErrNoActiveSession       = errors.New("no active session")
	ErrInvalidWatermark      = errors.New("invalid watermark")
	ErrDownloadFailed        = errors.New("download failed")
	ErrSessionBusy           = errors.New("session busy")
	ErrResourceReleaseFailed = errors.New("resource release failed")
)

// Error carries the failing operation, its context and the underlying cause
type Error struct {
	Op        string
	Address   string
	Family    string
	Watermark string
	Kind      error
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Address != "" {
		b.WriteString(" ")
		b.WriteString(e.Address)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Family != "" {
		b.WriteString(" (family=")
		b.WriteString(e.Family)
		b.WriteString(")")
	}
	if e.Watermark != "" {
		b.WriteString(" (watermark=")
		b.WriteString(e.Watermark)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the error kind carried by err, or nil
func KindOf(err error) error {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	for _, kind := range []error{
		ErrTransportUnavailable, ErrTransportDisabled, ErrEndpointNotFound, ErrConnectFailed,
		ErrNoActiveSession, ErrInvalidWatermark, ErrDownloadFailed, ErrSessionBusy, ErrResourceReleaseFailed,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
