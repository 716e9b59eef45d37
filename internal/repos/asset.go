package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mediavault/mediavault-backend/internal/domain/assets"
	"github.com/mediavault/mediavault-backend/internal/platform/logger"
)

type AssetRepo interface {
	Create(ctx context.Context, tx *gorm.DB, asset *assets.Asset) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*assets.Asset, error)
	// GetByIDWithVariants preloads the variant collection for fan-in checks.
	GetByIDWithVariants(ctx context.Context, tx *gorm.DB, id string) (*assets.Asset, error)
	Save(ctx context.Context, tx *gorm.DB, asset *assets.Asset) error
	UpdateFields(ctx context.Context, tx *gorm.DB, id string, updates map[string]interface{}) error
	ListByDocumentType(ctx context.Context, tx *gorm.DB, documentType string, limit int) ([]*assets.Asset, error)
}

type assetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssetRepo(db *gorm.DB, baseLog *logger.Logger) AssetRepo {
	return &assetRepo{
		db:  db,
		log: baseLog.With("repo", "AssetRepo"),
	}
}

func (r *assetRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *assetRepo) Create(ctx context.Context, tx *gorm.DB, asset *assets.Asset) error {
	if asset == nil {
		return nil
	}
	// The id is deterministic from the source URL, so a conflict means the
	// same source was registered twice; keep the existing row.
	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(asset).Error
}

func (r *assetRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*assets.Asset, error) {
	var asset assets.Asset
	err := r.conn(tx).WithContext(ctx).First(&asset, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

func (r *assetRepo) GetByIDWithVariants(ctx context.Context, tx *gorm.DB, id string) (*assets.Asset, error) {
	var asset assets.Asset
	err := r.conn(tx).WithContext(ctx).
		Preload("Variants").
		First(&asset, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

func (r *assetRepo) Save(ctx context.Context, tx *gorm.DB, asset *assets.Asset) error {
	if asset == nil {
		return nil
	}
	return r.conn(tx).WithContext(ctx).Save(asset).Error
}

func (r *assetRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.conn(tx).WithContext(ctx).
		Model(&assets.Asset{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *assetRepo) ListByDocumentType(ctx context.Context, tx *gorm.DB, documentType string, limit int) ([]*assets.Asset, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*assets.Asset
	err := r.conn(tx).WithContext(ctx).
		Where("ai_document_type = ?", documentType).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
