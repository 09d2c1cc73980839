package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MemoryCategoryPreference    = "preference"
	MemoryCategoryUnderstanding = "understanding"
	MemoryCategoryWeakness      = "weakness"
	MemoryCategoryStrength      = "strength"
	MemoryCategoryGoal          = "goal"
	MemoryCategoryContext       = "context"
	MemoryCategoryOther         = "other"
)

const (
	MemoryImportanceMin     = 1
	MemoryImportanceMax     = 5
	MemoryImportanceDefault = 3
)

// Memory rows are written only by the tutor's tool calls during a chat turn.
// Deletion is the is_active flag so past conversations keep their references.
type Memory struct {
	gorm.Model
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index" json:"project_id"`
	Project   *Project  `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProjectID;references:ID" json:"project,omitempty"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Content    string `gorm:"column:content;not null" json:"content"`
	Category   string `gorm:"column:category;not null;default:'other'" json:"category"`
	Importance int    `gorm:"column:importance;not null;default:3" json:"importance"`
	IsActive   bool   `gorm:"column:is_active;not null;default:true;index" json:"is_active"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Memory) TableName() string {
	return "memory"
}

func ValidMemoryCategory(c string) bool {
	switch c {
	case MemoryCategoryPreference, MemoryCategoryUnderstanding, MemoryCategoryWeakness,
		MemoryCategoryStrength, MemoryCategoryGoal, MemoryCategoryContext, MemoryCategoryOther:
		return true
	}
	return false
}
