// internal/repository/watermark_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dive-service/internal/database"
	"dive-service/internal/model"
)

// watermarkRepository implements WatermarkRepository interface
type watermarkRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewWatermarkRepository creates a new watermark repository
func NewWatermarkRepository(db *database.DB, logger *zap.Logger) WatermarkRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &watermarkRepository{
		db:     db,
		logger: logger.With(zap.String("repository", "watermarks")),
	}
}

// Get returns the stored watermark for an address, or ErrNotFound
func (r *watermarkRepository) Get(ctx context.Context, address string) (*model.StoredWatermark, error) {
	query := r.db.Rebind(`SELECT address, family, fingerprint, updated_at FROM watermarks WHERE address = ?`)

	w := &model.StoredWatermark{}
	err := r.db.QueryRowContext(ctx, query, address).Scan(&w.Address, &w.Family, &w.Fingerprint, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("watermark for %s: %w", address, ErrNotFound)
		}
		r.logger.Error("Failed to get watermark", zap.Error(err), zap.String("address", address))
		return nil, fmt.Errorf("failed to get watermark: %w", err)
	}

	w.UpdatedAt = w.UpdatedAt.UTC()
	return w, nil
}

const upsertWatermarkQuery = `
	INSERT INTO watermarks (address, family, fingerprint, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (address) DO UPDATE SET
		family = excluded.family,
		fingerprint = excluded.fingerprint,
		updated_at = excluded.updated_at
`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// upsertWatermark runs the watermark upsert on db or on an open transaction
func upsertWatermark(ctx context.Context, db *database.DB, exec execer, w *model.StoredWatermark) error {
	if w.UpdatedAt.IsZero() {
		w.UpdatedAt = time.Now().UTC()
	}
	_, err := exec.ExecContext(ctx, db.Rebind(upsertWatermarkQuery), w.Address, w.Family, w.Fingerprint, w.UpdatedAt)
	return err
}

// Upsert stores the watermark, replacing any previous one for the address
func (r *watermarkRepository) Upsert(ctx context.Context, w *model.StoredWatermark) error {
	if err := upsertWatermark(ctx, r.db, r.db, w); err != nil {
		r.logger.Error("Failed to upsert watermark", zap.Error(err), zap.String("address", w.Address))
		return fmt.Errorf("failed to upsert watermark: %w", err)
	}

	r.logger.Debug("Watermark stored", zap.String("address", w.Address))
	return nil
}

// Delete removes the stored watermark for an address
func (r *watermarkRepository) Delete(ctx context.Context, address string) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM watermarks WHERE address = ?`), address); err != nil {
		return fmt.Errorf("failed to delete watermark: %w", err)
	}
	return nil
}
