// internal/model/dive.go
package model

import (
	"database/sql/driver"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ResumeWatermark is the opaque fingerprint of the most recent record a caller already holds
type ResumeWatermark []byte

// ParseWatermark decodes the text form of a watermark. Line breaks are tolerated.
func ParseWatermark(text string) (ResumeWatermark, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
	if err != nil {
		return nil, fmt.Errorf("malformed watermark: %w", err)
	}
	return ResumeWatermark(raw), nil
}

// String returns the text form of the watermark
func (w ResumeWatermark) String() string {
	return EncodeBytes(w)
}

// EncodeBytes converts raw bytes to the text encoding used for watermarks and payloads
func EncodeBytes(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

// DiveRecord is one downloaded dive. Decoded metrics are never populated by
// the download core and stay null.
type DiveRecord struct {
	ID              uuid.UUID           `json:"id" db:"id"`
	Fingerprint     string              `json:"fingerprint" db:"fingerprint"`
	CapturedAt      time.Time           `json:"datetime" db:"captured_at"`
	Data            string              `json:"data" db:"data"`
	SizeBytes       int                 `json:"sizeBytes" db:"size_bytes"`
	MaxDepth        decimal.NullDecimal `json:"maxDepth" db:"max_depth"`
	DurationSeconds *int                `json:"duration" db:"duration_seconds"`
	AdditionalInfo  JSONObject          `json:"additionalInfo,omitempty" db:"additional_info"`
}

// NewDiveRecord builds a record from raw payload and watermark bytes
func NewDiveRecord(id uuid.UUID, payload, watermark []byte, capturedAt time.Time) DiveRecord {
	return DiveRecord{
		ID:          id,
		Fingerprint: EncodeBytes(watermark),
		CapturedAt:  capturedAt.UTC(),
		Data:        EncodeBytes(payload),
		SizeBytes:   len(payload),
		AdditionalInfo: JSONObject{
			"rawSize": len(payload),
		},
	}
}

// Payload decodes the raw dive bytes
func (d *DiveRecord) Payload() ([]byte, error) {
	return base64.StdEncoding.DecodeString(d.Data)
}

// Watermark decodes the record fingerprint
func (d *DiveRecord) Watermark() (ResumeWatermark, error) {
	return ParseWatermark(d.Fingerprint)
}

// JSONObject type for JSON document columns
type JSONObject map[string]interface{}

func (j *JSONObject) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return fmt.Errorf("unsupported JSON column type %T", value)
	}
}

func (j JSONObject) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
