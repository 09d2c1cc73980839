package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ArtifactTypeLesson     = "lesson"
	ArtifactTypeStudyPlan  = "study_plan"
	ArtifactTypeFlashcards = "flashcards"
)

const (
	ArtifactStatusActive   = "active"
	ArtifactStatusArchived = "archived"
)

type Artifact struct {
	gorm.Model
	ID        uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID uuid.UUID  `gorm:"type:uuid;not null;index" json:"project_id"`
	Project   *Project   `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProjectID;references:ID" json:"project,omitempty"`
	ChatID    *uuid.UUID `gorm:"type:uuid;index" json:"chat_id,omitempty"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`

	Type        string         `gorm:"column:type;not null" json:"type"`
	Title       string         `gorm:"column:title;not null" json:"title"`
	Description string         `gorm:"column:description" json:"description"`
	Content     datatypes.JSON `gorm:"column:content;type:jsonb" json:"content"`
	Status      string         `gorm:"column:status;not null;default:'active';index" json:"status"`
	Version     int            `gorm:"column:version;not null;default:1" json:"version"`

	SourceMessageID *uuid.UUID `gorm:"type:uuid" json:"source_message_id,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Artifact) TableName() string {
	return "artifact"
}

func ValidArtifactType(t string) bool {
	switch t {
	case ArtifactTypeLesson, ArtifactTypeStudyPlan, ArtifactTypeFlashcards:
		return true
	}
	return false
}
