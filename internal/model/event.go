// internal/model/event.go
package model

import (
	"fmt"
	"time"
)

// EventKind represents the type of a session event
type EventKind string

const (
	EventWaiting    EventKind = "waiting"
	EventProgress   EventKind = "progress"
	EventDeviceInfo EventKind = "devinfo"
	EventClockSkew  EventKind = "clock"
	EventVendorBlob EventKind = "vendor"
)

// SessionEvent is a diagnostic or progress notification emitted by an
// instrument during a download. The set of implementations is closed.
type SessionEvent interface {
	Kind() EventKind
	String() string
	sessionEvent()
}

// WaitingEvent signals that the instrument expects user action
type WaitingEvent struct{}

// ProgressEvent carries download completion in percent
type ProgressEvent struct {
	Percent float64 `json:"percent"`
}

// DeviceInfoEvent carries the identity the instrument reported
type DeviceInfoEvent struct {
	Model    uint32 `json:"model"`
	Firmware uint32 `json:"firmware"`
	Serial   uint32 `json:"serial"`
}

// ClockSkewEvent pairs the instrument clock with the host clock at the same instant
type ClockSkewEvent struct {
	DeviceTime uint32 `json:"devtime"`
	SystemTime int64  `json:"systime"`
}

// VendorBlobEvent carries an uninterpreted vendor-specific payload
type VendorBlobEvent struct {
	Data []byte `json:"data"`
}

// NewProgressEvent converts a current/maximum pair into a percentage in [0, 100]
func NewProgressEvent(current, maximum uint32) ProgressEvent {
	if maximum == 0 {
		return ProgressEvent{}
	}
	percent := 100 * float64(current) / float64(maximum)
	if percent > 100 {
		percent = 100
	}
	return ProgressEvent{Percent: percent}
}

func (WaitingEvent) Kind() EventKind    { return EventWaiting }
func (ProgressEvent) Kind() EventKind   { return EventProgress }
func (DeviceInfoEvent) Kind() EventKind { return EventDeviceInfo }
func (ClockSkewEvent) Kind() EventKind  { return EventClockSkew }
func (VendorBlobEvent) Kind() EventKind { return EventVendorBlob }

func (WaitingEvent) String() string { return "Waiting for user action" }

func (e ProgressEvent) String() string {
	return fmt.Sprintf("Download progress: %.1f%%", e.Percent)
}

func (e DeviceInfoEvent) String() string {
	return fmt.Sprintf("Device info: model=%d, firmware=%d, serial=%d", e.Model, e.Firmware, e.Serial)
}

func (e ClockSkewEvent) String() string {
	return fmt.Sprintf("Clock: devtime=%d, systime=%d", e.DeviceTime, e.SystemTime)
}

func (e VendorBlobEvent) String() string {
	return fmt.Sprintf("Vendor event: %d bytes", len(e.Data))
}

func (WaitingEvent) sessionEvent()    {}
func (ProgressEvent) sessionEvent()   {}
func (DeviceInfoEvent) sessionEvent() {}
func (ClockSkewEvent) sessionEvent()  {}
func (VendorBlobEvent) sessionEvent() {}

// EventEnvelope is the transport form of a session event
type EventEnvelope struct {
	Kind      EventKind    `json:"kind"`
	Address   string       `json:"address,omitempty"`
	Payload   SessionEvent `json:"payload,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewEventEnvelope wraps an event for publication
func NewEventEnvelope(address string, event SessionEvent) EventEnvelope {
	return EventEnvelope{
		Kind:      event.Kind(),
		Address:   address,
		Payload:   event,
		Timestamp: time.Now().UTC(),
	}
}
