// internal/repository/interfaces.go
package repository

import (
	"context"
	"errors"

	"dive-service/internal/model"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// DiveRepository defines dive data access operations
type DiveRepository interface {
	// CreateBatch stores dives for an address in one transaction. Dives whose
	// fingerprint is already stored for the address are skipped.
	CreateBatch(ctx context.Context, address string, dives []model.DiveRecord) (int, error)

	// SaveDownload is CreateBatch plus an optional watermark upsert, committed
	// together or not at all
	SaveDownload(ctx context.Context, address string, dives []model.DiveRecord, watermark *model.StoredWatermark) (int, error)

	// ListByAddress returns stored dives, newest capture first
	ListByAddress(ctx context.Context, address string, filter *DiveFilter) ([]model.DiveRecord, error)

	Count(ctx context.Context, address string) (int, error)
}

// WatermarkRepository defines resume fingerprint data access operations
type WatermarkRepository interface {
	Get(ctx context.Context, address string) (*model.StoredWatermark, error)
	Upsert(ctx context.Context, watermark *model.StoredWatermark) error
	Delete(ctx context.Context, address string) error
}

// DiveFilter represents dive listing filters
type DiveFilter struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

func (f *DiveFilter) limitOffset() (int, int) {
	if f == nil {
		return 100, 0
	}
	perPage := f.PerPage
	if perPage <= 0 || perPage > 500 {
		perPage = 100
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	return perPage, (page - 1) * perPage
}
