// internal/repository/dive_repository.go
package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"dive-service/internal/database"
	"dive-service/internal/model"
)

// diveRepository implements DiveRepository interface
type diveRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewDiveRepository creates a new dive repository
func NewDiveRepository(db *database.DB, logger *zap.Logger) DiveRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &diveRepository{
		db:     db,
		logger: logger.With(zap.String("repository", "dives")),
	}
}

// CreateBatch inserts dives, skipping fingerprints already stored for the address
func (r *diveRepository) CreateBatch(ctx context.Context, address string, dives []model.DiveRecord) (int, error) {
	return r.SaveDownload(ctx, address, dives, nil)
}

// SaveDownload inserts dives and, when watermark is set, advances the stored
// watermark in the same transaction
func (r *diveRepository) SaveDownload(ctx context.Context, address string, dives []model.DiveRecord, watermark *model.StoredWatermark) (int, error) {
	if len(dives) == 0 && watermark == nil {
		return 0, nil
	}

	query := r.db.Rebind(`
		INSERT INTO dives (
			id, address, fingerprint, captured_at, data, size_bytes,
			max_depth, duration_seconds, additional_info
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (address, fingerprint) DO NOTHING
	`)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range dives {
		d := &dives[i]
		result, err := stmt.ExecContext(ctx,
			d.ID, address, d.Fingerprint, d.CapturedAt, d.Data, d.SizeBytes,
			d.MaxDepth, d.DurationSeconds, d.AdditionalInfo,
		)
		if err != nil {
			r.logger.Error("Failed to insert dive", zap.Error(err), zap.String("address", address))
			return 0, fmt.Errorf("failed to insert dive %s: %w", d.ID, err)
		}
		if n, err := result.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if watermark != nil {
		if err := upsertWatermark(ctx, r.db, tx, watermark); err != nil {
			r.logger.Error("Failed to upsert watermark", zap.Error(err), zap.String("address", address))
			return 0, fmt.Errorf("failed to upsert watermark: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit dives: %w", err)
	}

	r.logger.Info("Dives stored",
		zap.String("address", address),
		zap.Int("received", len(dives)),
		zap.Int("inserted", inserted),
	)
	return inserted, nil
}

// ListByAddress returns stored dives, newest capture first
func (r *diveRepository) ListByAddress(ctx context.Context, address string, filter *DiveFilter) ([]model.DiveRecord, error) {
	limit, offset := filter.limitOffset()
	query := r.db.Rebind(`
		SELECT id, fingerprint, captured_at, data, size_bytes,
			   max_depth, duration_seconds, additional_info
		FROM dives WHERE address = ?
		ORDER BY captured_at DESC, id
		LIMIT ? OFFSET ?
	`)

	rows, err := r.db.QueryContext(ctx, query, address, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list dives", zap.Error(err), zap.String("address", address))
		return nil, fmt.Errorf("failed to list dives: %w", err)
	}
	defer rows.Close()

	dives := make([]model.DiveRecord, 0)
	for rows.Next() {
		var d model.DiveRecord
		if err := rows.Scan(
			&d.ID, &d.Fingerprint, &d.CapturedAt, &d.Data, &d.SizeBytes,
			&d.MaxDepth, &d.DurationSeconds, &d.AdditionalInfo,
		); err != nil {
			return nil, fmt.Errorf("failed to scan dive: %w", err)
		}
		d.CapturedAt = d.CapturedAt.UTC()
		dives = append(dives, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dives: %w", err)
	}

	return dives, nil
}

// Count returns the number of stored dives for an address
func (r *diveRepository) Count(ctx context.Context, address string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, r.db.Rebind(`SELECT COUNT(*) FROM dives WHERE address = ?`), address).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count dives: %w", err)
	}
	return count, nil
}
