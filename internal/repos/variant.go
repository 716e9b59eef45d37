package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mediavault/mediavault-backend/internal/domain/assets"
	"github.com/mediavault/mediavault-backend/internal/platform/logger"
)

type VariantRepo interface {
	Create(ctx context.Context, tx *gorm.DB, variant *assets.Variant) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*assets.Variant, error)
	ListByAsset(ctx context.Context, tx *gorm.DB, assetID string) ([]*assets.Variant, error)
	Save(ctx context.Context, tx *gorm.DB, variant *assets.Variant) error
	// CountPending returns how many of the asset's variants are not yet done.
	CountPending(ctx context.Context, tx *gorm.DB, assetID string) (int64, error)
}

type variantRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVariantRepo(db *gorm.DB, baseLog *logger.Logger) VariantRepo {
	return &variantRepo{
		db:  db,
		log: baseLog.With("repo", "VariantRepo"),
	}
}

func (r *variantRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *variantRepo) Create(ctx context.Context, tx *gorm.DB, variant *assets.Variant) error {
	if variant == nil {
		return nil
	}
	// (asset_id, preset, format) is unique; re-planning the same preset is a no-op.
	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(variant).Error
}

func (r *variantRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*assets.Variant, error) {
	var variant assets.Variant
	err := r.conn(tx).WithContext(ctx).First(&variant, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

func (r *variantRepo) ListByAsset(ctx context.Context, tx *gorm.DB, assetID string) ([]*assets.Variant, error) {
	var out []*assets.Variant
	err := r.conn(tx).WithContext(ctx).
		Where("asset_id = ?", assetID).
		Order("preset ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *variantRepo) Save(ctx context.Context, tx *gorm.DB, variant *assets.Variant) error {
	if variant == nil {
		return nil
	}
	return r.conn(tx).WithContext(ctx).Save(variant).Error
}

func (r *variantRepo) CountPending(ctx context.Context, tx *gorm.DB, assetID string) (int64, error) {
	var n int64
	err := r.conn(tx).WithContext(ctx).
		Model(&assets.Variant{}).
		Where("asset_id = ? AND marking <> ?", assetID, assets.PlaceVariantDone).
		Count(&n).Error
	return n, err
}
