// pkg/driver/types.go
package driver

import "dive-service/internal/model"

// Continuation is returned by a DiveFunc. Continue keeps the enumeration
// going; any other value stops it early.
type Continuation int

const (
	Continue Continuation = 0
	Stop     Continuation = 1
)

// EventFunc receives events emitted during enumeration
type EventFunc func(event model.SessionEvent)

// DiveFunc receives one raw record and its raw fingerprint
type DiveFunc func(data, fingerprint []byte) Continuation
