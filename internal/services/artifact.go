package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/studypilot-backend/internal/pkg/dbctx"
	"github.com/yungbote/studypilot-backend/internal/pkg/logger"
	"github.com/yungbote/studypilot-backend/internal/repos"
	"github.com/yungbote/studypilot-backend/internal/types"
)

// ArtifactUpdate is a partial update. Content, when set, replaces the whole
// document; the Add/Remove fields then splice individual entries. Ops that
// do not match the artifact's type are ignored.
type ArtifactUpdate struct {
	Title       *string
	Description *string
	Content     map[string]any

	AddSections     []any
	RemoveSectionID string
	AddItems        []any
	RemoveItemID    string
	AddCards        []any
	RemoveCardID    string
}

type ArtifactService interface {
	ListByProject(ctx context.Context, projectID, userID uuid.UUID) ([]*types.Artifact, error)
	ListActiveByProject(ctx context.Context, projectID, userID uuid.UUID) ([]*types.Artifact, error)
	GetOwned(ctx context.Context, artifactID, projectID, userID uuid.UUID) (*types.Artifact, error)
	Create(ctx context.Context, projectID, userID uuid.UUID, chatID, sourceMessageID *uuid.UUID, artifactType, title, description string, content map[string]any) (*types.Artifact, error)
	Update(ctx context.Context, projectID, userID, artifactID uuid.UUID, update ArtifactUpdate) (*types.Artifact, error)
	Archive(ctx context.Context, projectID, userID, artifactID uuid.UUID) error
}

type artifactService struct {
	db           *gorm.DB
	log          *logger.Logger
	artifactRepo repos.ArtifactRepo
}

func NewArtifactService(db *gorm.DB, baseLog *logger.Logger, artifactRepo repos.ArtifactRepo) ArtifactService {
	serviceLog := baseLog.With("service", "ArtifactService")
	return &artifactService{db: db, log: serviceLog, artifactRepo: artifactRepo}
}

func (as *artifactService) ListByProject(ctx context.Context, projectID, userID uuid.UUID) ([]*types.Artifact, error) {
	return as.artifactRepo.ListByProject(dbctx.Context{Ctx: ctx}, projectID, userID)
}

func (as *artifactService) ListActiveByProject(ctx context.Context, projectID, userID uuid.UUID) ([]*types.Artifact, error) {
	return as.artifactRepo.ListActiveByProject(dbctx.Context{Ctx: ctx}, projectID, userID)
}

func (as *artifactService) GetOwned(ctx context.Context, artifactID, projectID, userID uuid.UUID) (*types.Artifact, error) {
	return as.artifactRepo.GetOwned(dbctx.Context{Ctx: ctx}, artifactID, projectID, userID)
}

func (as *artifactService) Create(ctx context.Context, projectID, userID uuid.UUID, chatID, sourceMessageID *uuid.UUID, artifactType, title, description string, content map[string]any) (*types.Artifact, error) {
	artifactType = strings.ToLower(strings.TrimSpace(artifactType))
	if !types.ValidArtifactType(artifactType) {
		return nil, fmt.Errorf("invalid artifact type %q", artifactType)
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = "Untitled"
	}

	raw, err := encodeArtifactContent(NormalizeArtifactContent(artifactType, content))
	if err != nil {
		return nil, err
	}

	artifact := &types.Artifact{
		ID:              uuid.New(),
		ProjectID:       projectID,
		ChatID:          chatID,
		UserID:          userID,
		Type:            artifactType,
		Title:           title,
		Description:     strings.TrimSpace(description),
		Content:         raw,
		Status:          types.ArtifactStatusActive,
		Version:         1,
		SourceMessageID: sourceMessageID,
	}

	created, err := as.artifactRepo.Create(dbctx.Context{Ctx: ctx}, []*types.Artifact{artifact})
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact: %w", err)
	}
	return created[0], nil
}

// Update applies the partial update, re-normalizes the document and bumps the
// version. The returned artifact is re-read so the caller sees the stored row.
func (as *artifactService) Update(ctx context.Context, projectID, userID, artifactID uuid.UUID, update ArtifactUpdate) (*types.Artifact, error) {
	dbc := dbctx.Context{Ctx: ctx}

	artifact, err := as.artifactRepo.GetOwned(dbc, artifactID, projectID, userID)
	if err != nil {
		return nil, err
	}

	content := update.Content
	if content == nil {
		content = decodeArtifactContent(artifact.Content)
	}
	content = applyArtifactListOps(artifact.Type, content, update)
	raw, err := encodeArtifactContent(NormalizeArtifactContent(artifact.Type, content))
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"content": raw,
		"version": gorm.Expr("version + 1"),
	}
	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title != "" {
			updates["title"] = title
		}
	}
	if update.Description != nil {
		updates["description"] = strings.TrimSpace(*update.Description)
	}

	if err := as.artifactRepo.UpdateFields(dbc, artifactID, projectID, userID, updates); err != nil {
		return nil, fmt.Errorf("failed to update artifact: %w", err)
	}
	return as.artifactRepo.GetOwned(dbc, artifactID, projectID, userID)
}

// Archive is the delete path; the row stays for history and version lineage.
func (as *artifactService) Archive(ctx context.Context, projectID, userID, artifactID uuid.UUID) error {
	dbc := dbctx.Context{Ctx: ctx}

	if _, err := as.artifactRepo.GetOwned(dbc, artifactID, projectID, userID); err != nil {
		return err
	}
	return as.artifactRepo.UpdateFields(dbc, artifactID, projectID, userID, map[string]interface{}{
		"status": types.ArtifactStatusArchived,
	})
}

func applyArtifactListOps(artifactType string, content map[string]any, update ArtifactUpdate) map[string]any {
	if content == nil {
		content = map[string]any{}
	}

	switch artifactType {
	case types.ArtifactTypeLesson:
		if len(update.AddSections) > 0 {
			existing, _ := content["sections"].([]any)
			content["sections"] = append(existing, update.AddSections...)
		}
		if update.RemoveSectionID != "" {
			existing, _ := content["sections"].([]any)
			content["sections"] = removeEntryByID(existing, update.RemoveSectionID)
		}
	case types.ArtifactTypeStudyPlan:
		if len(update.AddItems) > 0 {
			existing, _ := content["items"].([]any)
			content["items"] = append(existing, update.AddItems...)
		}
		if update.RemoveItemID != "" {
			existing, _ := content["items"].([]any)
			content["items"] = removePlanItemByID(existing, update.RemoveItemID)
		}
	case types.ArtifactTypeFlashcards:
		if len(update.AddCards) > 0 {
			existing, _ := content["cards"].([]any)
			content["cards"] = append(existing, update.AddCards...)
		}
		if update.RemoveCardID != "" {
			existing, _ := content["cards"].([]any)
			content["cards"] = removeEntryByID(existing, update.RemoveCardID)
		}
	}
	return content
}

func removeEntryByID(entries []any, id string) []any {
	out := make([]any, 0, len(entries))
	for _, re := range entries {
		entry, ok := re.(map[string]any)
		if ok {
			if entryID, _ := entry["id"].(string); entryID == id {
				continue
			}
		}
		out = append(out, re)
	}
	return out
}

// removePlanItemByID walks nested children so an item can be removed at any
// depth of the plan tree.
func removePlanItemByID(items []any, id string) []any {
	out := make([]any, 0, len(items))
	for _, ri := range items {
		item, ok := ri.(map[string]any)
		if !ok {
			out = append(out, ri)
			continue
		}
		if itemID, _ := item["id"].(string); itemID == id {
			continue
		}
		if children, ok := item["children"].([]any); ok {
			item["children"] = removePlanItemByID(children, id)
		}
		out = append(out, item)
	}
	return out
}

func decodeArtifactContent(raw datatypes.JSON) map[string]any {
	content := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &content)
	}
	return content
}

func encodeArtifactContent(content map[string]any) (datatypes.JSON, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("failed to encode artifact content: %w", err)
	}
	return datatypes.JSON(raw), nil
}
