package assets

import (
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Lifecycle states for the asset state machine. Terminal states are
// PlaceComplete and PlaceFailed.
const (
	PlaceNew            = "new"
	PlaceDownloaded     = "downloaded"
	PlaceAnalyzed       = "analyzed"
	PlaceArchived       = "archived"
	PlaceVariantsQueued = "variants_queued"
	PlaceVariantsBuilt  = "variants_built"
	PlaceComplete       = "complete"
	PlaceFailed         = "failed"
)

// Result is one task's JSON-serializable output, stored verbatim inside
// AICompleted. Well-known keys: "text", "type", "failed", "skipped",
// "reason", "error", "raw_response", "blocks", "_tokens".
type Result map[string]any

func (r Result) Failed() bool {
	v, _ := r["failed"].(bool)
	return v
}

func (r Result) Skipped() bool {
	v, _ := r["skipped"].(bool)
	return v
}

// Text returns the string under key, or "" when absent or not a string.
func (r Result) Text(key string) string {
	v, _ := r[key].(string)
	return v
}

// CompletedEntry is one record of the append-only task log.
type CompletedEntry struct {
	Task   string    `json:"task"`
	At     time.Time `json:"at"`
	Result Result    `json:"result"`
}

// Asset is the canonical record for one ingested media object, addressed by
// a deterministic hash of its source URL.
type Asset struct {
	// 16 lowercase hex chars: xxhash64 of OriginalURL. Identical source
	// URLs collide by construction, which is the dedup mechanism.
	ID string `gorm:"type:varchar(16);primaryKey" json:"id"`

	OriginalURL string `gorm:"column:original_url;type:text;not null" json:"original_url"`

	// Current lifecycle state. Only the workflow machine writes this.
	Marking string `gorm:"column:marking;not null;index" json:"marking"`

	// HTTP status from the last fetch; 200 = OK. Read by transition guards.
	StatusCode int    `gorm:"column:status_code" json:"status_code,omitempty"`
	Mime       string `gorm:"column:mime;index" json:"mime,omitempty"`
	Size       int64  `gorm:"column:size" json:"size,omitempty"`
	Width      int    `gorm:"column:width" json:"width,omitempty"`
	Height     int    `gorm:"column:height" json:"height,omitempty"`
	Ext        string `gorm:"column:ext;type:varchar(12)" json:"ext,omitempty"`

	// Opaque structured bag for ancillary metadata (analysis features,
	// client/collection hints).
	Context datatypes.JSONMap `gorm:"column:context;type:jsonb" json:"context,omitempty"`

	Variants []Variant `gorm:"constraint:OnDelete:CASCADE;foreignKey:AssetID;references:ID" json:"variants,omitempty"`

	// Ordered FIFO of pending task identifiers.
	AIQueue datatypes.JSONSlice[string] `gorm:"column:ai_queue;type:jsonb" json:"ai_queue"`

	// Append-only log of completed tasks. Never mutated or truncated.
	AICompleted datatypes.JSONSlice[CompletedEntry] `gorm:"column:ai_completed;type:jsonb" json:"ai_completed"`

	// Cooperative mutex: when true the runner skips this asset entirely.
	AILocked bool `gorm:"column:ai_locked;not null;default:false" json:"ai_locked"`

	// Denormalized projection of the classify task's primary output, kept
	// as a real column for SQL filtering. Everything else is computed on
	// read by Project.
	AIDocumentType *string `gorm:"column:ai_document_type;type:varchar(64);index" json:"ai_document_type,omitempty"`

	StorageBackend string `gorm:"column:storage_backend" json:"storage_backend,omitempty"`
	StorageKey     string `gorm:"column:storage_key;type:text" json:"storage_key,omitempty"`
	ArchiveURL     string `gorm:"column:archive_url;type:text" json:"archive_url,omitempty"`
	SmallURL       string `gorm:"column:small_url;type:text" json:"small_url,omitempty"`

	// Temp filename during fetch; not a durable path.
	TempFilename string `gorm:"column:temp_filename;type:text" json:"-"`

	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Asset) TableName() string { return "asset" }

// New builds an asset in its initial marking with the deterministic id.
func New(originalURL string) *Asset {
	return &Asset{
		ID:          IDFromURL(originalURL),
		OriginalURL: originalURL,
		Marking:     PlaceNew,
		AIQueue:     datatypes.JSONSlice[string]{},
		AICompleted: datatypes.JSONSlice[CompletedEntry]{},
	}
}

func (a *Asset) CurrentMarking() string { return a.Marking }
func (a *Asset) SetMarking(m string)    { a.Marking = m }

// ImageURL picks the best available image reference for vision calls.
func (a *Asset) ImageURL() string {
	for _, u := range []string{a.SmallURL, a.ArchiveURL, a.OriginalURL} {
		if u != "" {
			return u
		}
	}
	return ""
}

// IsMedia reports whether the sniffed mime is one we ingest.
func (a *Asset) IsMedia() bool {
	return strings.HasPrefix(a.Mime, "image/") ||
		strings.HasPrefix(a.Mime, "audio/") ||
		strings.HasPrefix(a.Mime, "video/")
}

// Results returns the latest logged result per task. A later failed or
// skipped entry replaces an earlier success.
func (a *Asset) Results() map[string]Result {
	byTask := map[string]Result{}
	for _, entry := range a.AICompleted {
		if entry.Task == "" || entry.Result == nil {
			continue
		}
		byTask[entry.Task] = entry.Result
	}
	return byTask
}

// RawResult returns the earliest logged result for a task without any
// sanitization, including large provider payloads. Used by the layout task
// to re-read raw OCR responses straight from the log.
func (a *Asset) RawResult(task string) (Result, bool) {
	for _, entry := range a.AICompleted {
		if entry.Task == task {
			return entry.Result, true
		}
	}
	return nil, false
}
