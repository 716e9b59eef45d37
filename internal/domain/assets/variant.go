package assets

import (
	"time"

	"gorm.io/gorm"
)

// Variant lifecycle states. A variant is created in PlaceVariantNew when its
// preset is planned, moves to done when built, error on failure, and may be
// retried from error back to done.
const (
	PlaceVariantNew   = "new"
	PlaceVariantDone  = "done"
	PlaceVariantError = "error"
)

// Variant is one preset×format rendition of an asset, unique per
// (asset, preset, format). Rows cascade-delete with the asset.
type Variant struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	AssetID string `gorm:"type:varchar(16);not null;uniqueIndex:ux_variant_asset_preset_format,priority:1" json:"asset_id"`
	Asset   *Asset `gorm:"foreignKey:AssetID;references:ID" json:"-"`

	Preset string `gorm:"not null;uniqueIndex:ux_variant_asset_preset_format,priority:2" json:"preset"`
	Format string `gorm:"not null;uniqueIndex:ux_variant_asset_preset_format,priority:3" json:"format"`

	Marking string `gorm:"column:marking;not null;index" json:"marking"`

	URL            string `gorm:"column:url;type:text" json:"url,omitempty"`
	StorageBackend string `gorm:"column:storage_backend" json:"storage_backend,omitempty"`
	StorageKey     string `gorm:"column:storage_key;type:text" json:"storage_key,omitempty"`
	Size           int64  `gorm:"column:size" json:"size,omitempty"`
	Width          int    `gorm:"column:width" json:"width,omitempty"`
	Height         int    `gorm:"column:height" json:"height,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Variant) TableName() string { return "variant" }

func (v *Variant) CurrentMarking() string { return v.Marking }
func (v *Variant) SetMarking(m string)    { v.Marking = m }

// NewVariant plans one rendition for an asset.
func NewVariant(assetID, preset, format string) *Variant {
	return &Variant{
		AssetID: assetID,
		Preset:  preset,
		Format:  format,
		Marking: PlaceVariantNew,
	}
}
