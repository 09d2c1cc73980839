package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MaterialStatusPending    = "pending"
	MaterialStatusProcessing = "processing"
	MaterialStatusReady      = "ready"
	MaterialStatusFailed     = "failed"
)

const (
	MaterialKindText    = "text"
	MaterialKindPDF     = "pdf"
	MaterialKindVideo   = "video"
	MaterialKindYouTube = "youtube"
)

type Material struct {
	gorm.Model
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index" json:"project_id"`
	Project   *Project  `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProjectID;references:ID" json:"project,omitempty"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`

	Name      string `gorm:"column:name;not null" json:"name"`
	Kind      string `gorm:"column:kind;not null" json:"kind"`
	Status    string `gorm:"column:status;not null;default:'pending';index" json:"status"`
	MimeType  string `gorm:"column:mime_type" json:"mime_type"`
	SizeBytes int64  `gorm:"column:size_bytes" json:"size_bytes"`

	StorageKey string `gorm:"column:storage_key" json:"storage_key"`
	FileURL    string `gorm:"column:file_url" json:"file_url"`
	SourceURL  string `gorm:"column:source_url" json:"source_url"`

	// Reference to the copy held by the generation provider, once uploaded.
	ProviderFileName string `gorm:"column:provider_file_name" json:"provider_file_name"`
	ProviderFileURI  string `gorm:"column:provider_file_uri" json:"provider_file_uri"`

	ExtractedText string `gorm:"column:extracted_text" json:"extracted_text,omitempty"`
	Summary       string `gorm:"column:summary" json:"summary"`
	Error         string `gorm:"column:error" json:"error,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Material) TableName() string {
	return "material"
}
