package repository

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AssetStatus is the lifecycle status of an asset. It feeds the visibility
// predicate together with the lifecycle timestamps; processing outcomes never
// touch it.
type AssetStatus string

const (
	AssetStatusVisible AssetStatus = "VISIBLE"
	AssetStatusHidden  AssetStatus = "HIDDEN"
	AssetStatusFailed  AssetStatus = "FAILED"
)

// ThumbnailStatus is the preview engine's state machine.
type ThumbnailStatus string

const (
	ThumbnailStatusPending    ThumbnailStatus = "PENDING"
	ThumbnailStatusProcessing ThumbnailStatus = "PROCESSING"
	ThumbnailStatusCompleted  ThumbnailStatus = "COMPLETED"
	ThumbnailStatusFailed     ThumbnailStatus = "FAILED"
	ThumbnailStatusSkipped    ThumbnailStatus = "SKIPPED"
)

// Terminal reports whether no further automatic transition occurs.
func (s ThumbnailStatus) Terminal() bool {
	return s == ThumbnailStatusCompleted || s == ThumbnailStatusFailed || s == ThumbnailStatusSkipped
}

// Ready reports whether pixel-consuming stages may proceed. FAILED is
// deliberately not ready: gated stages keep waiting until a retry succeeds
// or their own attempt ceiling expires.
func (s ThumbnailStatus) Ready() bool {
	return s == ThumbnailStatusCompleted || s == ThumbnailStatusSkipped
}

// AnalysisStatus tracks the AI analysis stages as a group.
type AnalysisStatus string

const (
	AnalysisStatusPending   AnalysisStatus = "PENDING"
	AnalysisStatusCompleted AnalysisStatus = "COMPLETED"
	AnalysisStatusFailed    AnalysisStatus = "FAILED"
	AnalysisStatusSkipped   AnalysisStatus = "SKIPPED"
)

// PipelineStatus is the per-version processing outcome.
type PipelineStatus string

const (
	PipelineStatusPending   PipelineStatus = "PENDING"
	PipelineStatusRunning   PipelineStatus = "RUNNING"
	PipelineStatusCompleted PipelineStatus = "COMPLETED"
)

// Reason codes stored in thumbnail_reason.
const (
	ReasonTimeout         = "timeout"
	ReasonUnsupportedType = "unsupported-type"
	ReasonVectorNoPreview = "vector-no-preview"
)

// Asset-scoped metadata keys. These must survive every finalize merge
// regardless of what the current version contributes.
const (
	MetadataKeyCategoryID        = "category_id"
	MetadataKeyExtractionSkipped = "extraction_skipped"
	MetadataKeyPreviewSkipped    = "preview_skipped"
	MetadataKeyAISkipped         = "ai_skipped"
)

// Version-scoped metadata keys written by the pipeline stages.
const (
	MetadataKeyThumbnailQuality = "thumbnail_quality"
	MetadataKeyAITags           = "ai_tags"
	MetadataKeyAISuggested      = "ai_suggested_metadata"
)

// ThumbnailQualityDegraded marks previews produced under the pixel-area
// ceiling: only the two smallest sizes were generated.
const ThumbnailQualityDegraded = "degraded"

// AssetModel is the unit of work. The pipeline owns the processing-derived
// fields; identity and governance fields belong to the upload and approval
// collaborators.
type AssetModel struct {
	UID                uuid.UUID         `gorm:"column:uid;type:uuid;primaryKey" json:"uid"`
	TenantUID          uuid.UUID         `gorm:"column:tenant_uid;type:uuid;not null" json:"tenant_uid"`
	CategoryUID        *uuid.UUID        `gorm:"column:category_uid;type:uuid" json:"category_uid"`
	Status             AssetStatus       `gorm:"column:status;size:32;not null;default:VISIBLE" json:"status"`
	PublishedAt        *time.Time        `gorm:"column:published_at" json:"published_at"`
	ArchivedAt         *time.Time        `gorm:"column:archived_at" json:"archived_at"`
	DeletedAt          *time.Time        `gorm:"column:deleted_at" json:"deleted_at"`
	ThumbnailStatus    ThumbnailStatus   `gorm:"column:thumbnail_status;size:32;not null;default:PENDING" json:"thumbnail_status"`
	ThumbnailStartedAt *time.Time        `gorm:"column:thumbnail_started_at" json:"thumbnail_started_at"`
	ThumbnailReason    string            `gorm:"column:thumbnail_reason;size:64" json:"thumbnail_reason"`
	AnalysisStatus     AnalysisStatus    `gorm:"column:analysis_status;size:32;not null;default:PENDING" json:"analysis_status"`
	ProcessingStarted  bool              `gorm:"column:processing_started;not null;default:false" json:"processing_started"`
	Metadata           datatypes.JSONMap `gorm:"column:metadata;type:jsonb" json:"metadata"`
	StoragePath        string            `gorm:"column:storage_path;size:512;not null" json:"storage_path"`
	Bucket             string            `gorm:"column:bucket;size:255;not null" json:"bucket"`
	CreateTime         *time.Time        `gorm:"column:create_time;not null;autoCreateTime" json:"create_time"`
	UpdateTime         *time.Time        `gorm:"column:update_time;not null;autoUpdateTime" json:"update_time"`
}

// TableName overrides the table name
func (AssetModel) TableName() string {
	return "asset"
}

// Thumbnail is one generated preview output.
type Thumbnail struct {
	Size   string `json:"size"`
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// AssetVersionModel is one processing attempt's output. Exactly one current
// version exists per asset; it is mutated only by pipeline stages and becomes
// immutable once the pipeline reaches a terminal state.
type AssetVersionModel struct {
	UID                 uuid.UUID         `gorm:"column:uid;type:uuid;primaryKey" json:"uid"`
	AssetUID            uuid.UUID         `gorm:"column:asset_uid;type:uuid;not null" json:"asset_uid"`
	IsCurrent           bool              `gorm:"column:is_current;not null;default:true" json:"is_current"`
	MimeType            string            `gorm:"column:mime_type;size:255" json:"mime_type"`
	Width               int               `gorm:"column:width" json:"width"`
	Height              int               `gorm:"column:height" json:"height"`
	Thumbnails          datatypes.JSON    `gorm:"column:thumbnails;type:jsonb" json:"thumbnails"`
	Metadata            datatypes.JSONMap `gorm:"column:metadata;type:jsonb" json:"metadata"`
	PipelineStatus      PipelineStatus    `gorm:"column:pipeline_status;size:32;not null;default:PENDING" json:"pipeline_status"`
	PipelineCompletedAt *time.Time        `gorm:"column:pipeline_completed_at" json:"pipeline_completed_at"`
	CreateTime          *time.Time        `gorm:"column:create_time;not null;autoCreateTime" json:"create_time"`
	UpdateTime          *time.Time        `gorm:"column:update_time;not null;autoUpdateTime" json:"update_time"`
}

// TableName overrides the table name
func (AssetVersionModel) TableName() string {
	return "asset_version"
}

// ThumbnailList decodes the thumbnails column.
func (v *AssetVersionModel) ThumbnailList() ([]Thumbnail, error) {
	if len(v.Thumbnails) == 0 {
		return nil, nil
	}
	var out []Thumbnail
	if err := json.Unmarshal(v.Thumbnails, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarshalThumbnails encodes thumbnails into the column representation.
func MarshalThumbnails(thumbs []Thumbnail) (datatypes.JSON, error) {
	b, err := json.Marshal(thumbs)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// FailureRecordModel is one stage failure. Append-mostly: the pipeline never
// deletes these, only recovery tooling resolves them.
type FailureRecordModel struct {
	UID        uuid.UUID  `gorm:"column:uid;type:uuid;primaryKey" json:"uid"`
	AssetUID   uuid.UUID  `gorm:"column:asset_uid;type:uuid;not null" json:"asset_uid"`
	Stage      string     `gorm:"column:stage;size:64;not null" json:"stage"`
	Category   string     `gorm:"column:category;size:64;not null" json:"category"`
	Message    string     `gorm:"column:message" json:"message"`
	Attempts   int        `gorm:"column:attempts;not null;default:1" json:"attempts"`
	ResolvedAt *time.Time `gorm:"column:resolved_at" json:"resolved_at"`
	CreateTime *time.Time `gorm:"column:create_time;not null;autoCreateTime" json:"create_time"`
}

// TableName overrides the table name
func (FailureRecordModel) TableName() string {
	return "failure_record"
}

// BeforeCreate assigns the UID when the caller did not.
func (a *AssetModel) BeforeCreate(_ *gorm.DB) error {
	if a.UID.IsNil() {
		uid, err := uuid.NewV4()
		if err != nil {
			return err
		}
		a.UID = uid
	}
	return nil
}

// BeforeCreate assigns the UID when the caller did not.
func (v *AssetVersionModel) BeforeCreate(_ *gorm.DB) error {
	if v.UID.IsNil() {
		uid, err := uuid.NewV4()
		if err != nil {
			return err
		}
		v.UID = uid
	}
	return nil
}

// BeforeCreate assigns the UID when the caller did not.
func (f *FailureRecordModel) BeforeCreate(_ *gorm.DB) error {
	if f.UID.IsNil() {
		uid, err := uuid.NewV4()
		if err != nil {
			return err
		}
		f.UID = uid
	}
	return nil
}

// table columns map
type AssetColumns struct {
	UID                string
	TenantUID          string
	CategoryUID        string
	Status             string
	PublishedAt        string
	ArchivedAt         string
	DeletedAt          string
	ThumbnailStatus    string
	ThumbnailStartedAt string
	ThumbnailReason    string
	AnalysisStatus     string
	ProcessingStarted  string
	Metadata           string
	StoragePath        string
	Bucket             string
	CreateTime         string
	UpdateTime         string
}

var AssetColumn = AssetColumns{
	UID:                "uid",
	TenantUID:          "tenant_uid",
	CategoryUID:        "category_uid",
	Status:             "status",
	PublishedAt:        "published_at",
	ArchivedAt:         "archived_at",
	DeletedAt:          "deleted_at",
	ThumbnailStatus:    "thumbnail_status",
	ThumbnailStartedAt: "thumbnail_started_at",
	ThumbnailReason:    "thumbnail_reason",
	AnalysisStatus:     "analysis_status",
	ProcessingStarted:  "processing_started",
	Metadata:           "metadata",
	StoragePath:        "storage_path",
	Bucket:             "bucket",
	CreateTime:         "create_time",
	UpdateTime:         "update_time",
}

type AssetVersionColumns struct {
	UID                 string
	AssetUID            string
	IsCurrent           string
	MimeType            string
	Width               string
	Height              string
	Thumbnails          string
	Metadata            string
	PipelineStatus      string
	PipelineCompletedAt string
}

var AssetVersionColumn = AssetVersionColumns{
	UID:                 "uid",
	AssetUID:            "asset_uid",
	IsCurrent:           "is_current",
	MimeType:            "mime_type",
	Width:               "width",
	Height:              "height",
	Thumbnails:          "thumbnails",
	Metadata:            "metadata",
	PipelineStatus:      "pipeline_status",
	PipelineCompletedAt: "pipeline_completed_at",
}

type FailureRecordColumns struct {
	UID        string
	AssetUID   string
	Stage      string
	Category   string
	Message    string
	Attempts   string
	ResolvedAt string
	CreateTime string
}

var FailureRecordColumn = FailureRecordColumns{
	UID:        "uid",
	AssetUID:   "asset_uid",
	Stage:      "stage",
	Category:   "category",
	Message:    "message",
	Attempts:   "attempts",
	ResolvedAt: "resolved_at",
	CreateTime: "create_time",
}
