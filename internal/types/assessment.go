package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	AssessmentStatusGenerating = "generating"
	AssessmentStatusReady      = "ready"
	AssessmentStatusFailed     = "failed"
)

const (
	QuestionTypeMultipleChoice = "multiple_choice"
	QuestionTypeMultipleSelect = "multiple_select"
	QuestionTypeTrueFalse      = "true_false"
	QuestionTypeShortAnswer    = "short_answer"
	QuestionTypeFillBlank      = "fill_blank"
	QuestionTypeEssay          = "essay"
)

type Assessment struct {
	gorm.Model
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index" json:"project_id"`
	Project   *Project  `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProjectID;references:ID" json:"project,omitempty"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Title     string         `gorm:"column:title;not null" json:"title"`
	Status    string         `gorm:"column:status;not null;default:'generating'" json:"status"`
	Settings  datatypes.JSON `gorm:"column:settings;type:jsonb" json:"settings"`
	Questions datatypes.JSON `gorm:"column:questions;type:jsonb" json:"questions"`
	Error     string         `gorm:"column:error" json:"error,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Assessment) TableName() string {
	return "assessment"
}

const (
	AttemptStatusInProgress = "in_progress"
	AttemptStatusGraded     = "graded"
)

type AssessmentAttempt struct {
	gorm.Model
	ID           uuid.UUID   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	AssessmentID uuid.UUID   `gorm:"type:uuid;not null;index" json:"assessment_id"`
	Assessment   *Assessment `gorm:"constraint:OnDelete:CASCADE;foreignKey:AssessmentID;references:ID" json:"assessment,omitempty"`
	ProjectID    uuid.UUID   `gorm:"type:uuid;not null;index" json:"project_id"`
	UserID       uuid.UUID   `gorm:"type:uuid;not null;index" json:"user_id"`

	Answers  datatypes.JSON `gorm:"column:answers;type:jsonb" json:"answers"`
	Results  datatypes.JSON `gorm:"column:results;type:jsonb" json:"results"`
	Score    float64        `gorm:"column:score;not null;default:0" json:"score"`
	MaxScore float64        `gorm:"column:max_score;not null;default:0" json:"max_score"`
	Status   string         `gorm:"column:status;not null;default:'in_progress'" json:"status"`

	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (AssessmentAttempt) TableName() string {
	return "assessment_attempt"
}
