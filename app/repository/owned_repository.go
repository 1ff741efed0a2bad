package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/fleetward/fleetward/internal/pkg/ownership"
)

type ownedRepository[T any] struct {
	db *gorm.DB
}

// NewOwnedRepository returns the GORM repository for record type T.
func NewOwnedRepository[T any](db *gorm.DB) OwnedRepository[T] {
	return &ownedRepository[T]{db: db}
}

func (r *ownedRepository[T]) Create(ctx context.Context, record *T) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *ownedRepository[T]) GetByID(ctx context.Context, id uint) (*T, error) {
	var record T
	if err := r.db.WithContext(ctx).First(&record, id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// List applies the ownership filter, newest first.
func (r *ownedRepository[T]) List(ctx context.Context, filter ownership.Filter, opts ListOptions) ([]T, int64, error) {
	opts = normalizeListOptions(opts)
	query := filter.Scope(r.db.WithContext(ctx).Model(new(T))).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}
	var records []T
	err := query.Order("id DESC").Offset(opts.Offset).Limit(opts.Limit).Find(&records).Error
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// Update writes every column except the immutable ownership and creation time.
func (r *ownedRepository[T]) Update(ctx context.Context, record *T) error {
	return r.db.WithContext(ctx).Omit("created_by", "stand_alone_id", "created_at").Save(record).Error
}

// Delete soft deletes the record.
func (r *ownedRepository[T]) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(new(T), id).Error
}

func normalizeListOptions(opts ListOptions) ListOptions {
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultListLimit
	}
	if opts.Limit > MaxListLimit {
		opts.Limit = MaxListLimit
	}
	return opts
}

type temporalRepository[T any] struct {
	db   *gorm.DB
	kind string
}

// NewTemporalRepository exposes the date projection of T, which must embed
// models.TemporalFields.
func NewTemporalRepository[T any](db *gorm.DB, kind string) TemporalRepository {
	return &temporalRepository[T]{db: db, kind: kind}
}

func (r *temporalRepository[T]) Kind() string {
	return r.kind
}

// ListTemporal reads live rows only; soft-deleted records are excluded by the model scope.
func (r *temporalRepository[T]) ListTemporal(ctx context.Context) ([]TemporalRow, error) {
	var rows []TemporalRow
	err := r.db.WithContext(ctx).Model(new(T)).
		Select("id", "start_date", "due_date", "reminder_set", "reminder_date", "status", "updated_at").
		Order("id").
		Find(&rows).Error
	return rows, err
}

func (r *temporalRepository[T]) UpdateStatus(ctx context.Context, row TemporalRow, status string) (bool, error) {
	res := r.db.WithContext(ctx).Model(new(T)).
		Where("id = ? AND updated_at = ?", row.ID, row.UpdatedAt).
		Update("status", status)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
