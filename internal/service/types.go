// internal/service/types.go
package service

import (
	"time"

	"dive-service/internal/model"
	"dive-service/internal/protocol"
)

// InitializeResult reports the state of the enumeration subsystem
type InitializeResult struct {
	Success            bool              `json:"success"`
	BluetoothAvailable bool              `json:"bluetoothAvailable"`
	BluetoothEnabled   bool              `json:"bluetoothEnabled"`
	Families           []model.FamilyTag `json:"families"`
}

// ScanResult lists discovered instruments
type ScanResult struct {
	Devices []model.InstrumentEndpoint `json:"devices"`
}

// ConnectDeviceRequest represents a request to open a session
type ConnectDeviceRequest struct {
	Address string           `json:"address" binding:"required"`
	Family  *model.FamilyTag `json:"family,omitempty"`
	// Timeout in milliseconds, applied to the transport
	Timeout *int `json:"timeout,omitempty"`
}

// ConnectResult describes the opened session
type ConnectResult struct {
	Success bool                    `json:"success"`
	Address string                  `json:"address"`
	Profile model.InstrumentProfile `json:"profile"`
}

// DownloadDivesRequest represents a request to download dives from the open session
type DownloadDivesRequest struct {
	ForceAll    bool    `json:"forceAll"`
	Fingerprint *string `json:"fingerprint,omitempty"`
	Limit       int     `json:"limit,omitempty"`
}

// DownloadResult holds the dives of one download
type DownloadResult struct {
	Dives     []model.DiveRecord `json:"dives"`
	Stored    int                `json:"stored"`
	Watermark string             `json:"watermark,omitempty"`
}

// DisconnectResult reports a completed disconnect
type DisconnectResult struct {
	Success bool `json:"success"`
}

// StatusResponse describes the current session
type StatusResponse struct {
	Initialized bool                     `json:"initialized"`
	Connected   bool                     `json:"connected"`
	Downloading bool                     `json:"downloading"`
	Address     string                   `json:"address,omitempty"`
	Family      *model.FamilyTag         `json:"family,omitempty"`
	ConnectedAt *time.Time               `json:"connectedAt,omitempty"`
	Channel     *protocol.ChannelStats   `json:"channel,omitempty"`
	Profile     *model.InstrumentProfile `json:"profile,omitempty"`
}
