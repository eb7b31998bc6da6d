// internal/model/watermark.go
package model

import "time"

// StoredWatermark is the last fingerprint saved for an instrument address
type StoredWatermark struct {
	Address     string    `json:"address" db:"address"`
	Family      string    `json:"family,omitempty" db:"family"`
	Fingerprint string    `json:"fingerprint" db:"fingerprint"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}
