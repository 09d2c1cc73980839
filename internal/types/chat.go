package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ChatStatusActive   = "active"
	ChatStatusArchived = "archived"
)

const DefaultChatTitle = "New chat"

type Chat struct {
	gorm.Model
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index" json:"project_id"`
	Project   *Project  `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProjectID;references:ID" json:"project,omitempty"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`

	Title          string     `gorm:"column:title;not null;default:'New chat'" json:"title"`
	Status         string     `gorm:"column:status;not null;default:'active'" json:"status"`
	MessageCount   int        `gorm:"column:message_count;not null;default:0" json:"message_count"`
	LastActivityAt *time.Time `gorm:"column:last_activity_at;index" json:"last_activity_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Chat) TableName() string {
	return "chat"
}

const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

const (
	MessageStatusPending   = "pending"
	MessageStatusStreaming = "streaming"
	MessageStatusComplete  = "complete"
	MessageStatusError     = "error"
)

type Message struct {
	gorm.Model
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ChatID    uuid.UUID `gorm:"type:uuid;not null;index" json:"chat_id"`
	Chat      *Chat     `gorm:"constraint:OnDelete:CASCADE;foreignKey:ChatID;references:ID" json:"chat,omitempty"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index" json:"project_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Role    string `gorm:"column:role;not null" json:"role"`
	Content string `gorm:"column:content" json:"content"`
	Status  string `gorm:"column:status;not null;default:'complete'" json:"status"`

	Attachments     datatypes.JSON `gorm:"column:attachments;type:jsonb" json:"attachments,omitempty"`
	ToolCalls       datatypes.JSON `gorm:"column:tool_calls;type:jsonb" json:"tool_calls,omitempty"`
	ArtifactActions datatypes.JSON `gorm:"column:artifact_actions;type:jsonb" json:"artifact_actions,omitempty"`
	InlineQuestion  datatypes.JSON `gorm:"column:inline_question;type:jsonb" json:"inline_question,omitempty"`
	Metadata        datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Message) TableName() string {
	return "message"
}
