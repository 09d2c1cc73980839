package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/studypilot-backend/internal/sse"
	"github.com/yungbote/studypilot-backend/internal/types"
)

// Notifier pushes background status changes onto the user's hub channel.
// Everything here is fire-and-forget; a dead stream never fails the caller.
// Inside a request the emitter parks messages in the ssedata buffer and the
// handler flushes them once the work has committed.
type Notifier interface {
	MaterialStatusChanged(ctx context.Context, userID uuid.UUID, material *types.Material)
	AssessmentStatusChanged(ctx context.Context, userID uuid.UUID, assessment *types.Assessment)
	ArtifactChanged(ctx context.Context, userID uuid.UUID, action string, artifact *types.Artifact)
	AvatarUpdated(ctx context.Context, userID uuid.UUID, avatarURL string)
}

type notifier struct {
	emit SSEEmitter
}

func NewNotifier(emit SSEEmitter) Notifier {
	return &notifier{emit: emit}
}

func (n *notifier) MaterialStatusChanged(ctx context.Context, userID uuid.UUID, material *types.Material) {
	if n == nil || n.emit == nil || userID == uuid.Nil || material == nil {
		return
	}
	n.emit.Emit(ctx, sse.SSEMessage{
		Channel: sse.UserChannel(userID),
		Event:   sse.SSEEventMaterialStatusChanged,
		Data: map[string]any{
			"material_id": material.ID,
			"project_id":  material.ProjectID,
			"status":      material.Status,
			"error":       material.Error,
		},
	})
}

func (n *notifier) AssessmentStatusChanged(ctx context.Context, userID uuid.UUID, assessment *types.Assessment) {
	if n == nil || n.emit == nil || userID == uuid.Nil || assessment == nil {
		return
	}
	n.emit.Emit(ctx, sse.SSEMessage{
		Channel: sse.UserChannel(userID),
		Event:   sse.SSEEventAssessmentStatusChange,
		Data: map[string]any{
			"assessment_id": assessment.ID,
			"project_id":    assessment.ProjectID,
			"status":        assessment.Status,
		},
	})
}

func (n *notifier) ArtifactChanged(ctx context.Context, userID uuid.UUID, action string, artifact *types.Artifact) {
	if n == nil || n.emit == nil || userID == uuid.Nil || artifact == nil {
		return
	}
	n.emit.Emit(ctx, sse.SSEMessage{
		Channel: sse.UserChannel(userID),
		Event:   sse.SSEEventArtifactChanged,
		Data: map[string]any{
			"action":      action,
			"artifact_id": artifact.ID,
			"project_id":  artifact.ProjectID,
			"type":        artifact.Type,
			"version":     artifact.Version,
		},
	})
}

func (n *notifier) AvatarUpdated(ctx context.Context, userID uuid.UUID, avatarURL string) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(ctx, sse.SSEMessage{
		Channel: sse.UserChannel(userID),
		Event:   sse.SSEEventUserAvatarUpdated,
		Data:    map[string]any{"avatar_url": avatarURL},
	})
}
