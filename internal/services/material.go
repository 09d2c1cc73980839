package services

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/studypilot-backend/internal/pkg/dbctx"
	"github.com/yungbote/studypilot-backend/internal/pkg/logger"
	"github.com/yungbote/studypilot-backend/internal/repos"
	"github.com/yungbote/studypilot-backend/internal/types"
)

type MaterialService interface {
	CreateText(ctx context.Context, projectID, userID uuid.UUID, name, content string) (*types.Material, error)
	CreateYouTube(ctx context.Context, projectID, userID uuid.UUID, name, sourceURL string) (*types.Material, error)
	CreateFile(ctx context.Context, projectID, userID uuid.UUID, name, mimeType string, size int64, file io.Reader) (*types.Material, error)
	ListByProject(ctx context.Context, projectID, userID uuid.UUID) ([]*types.Material, error)
	GetOwned(ctx context.Context, materialID, projectID, userID uuid.UUID) (*types.Material, error)
	Delete(ctx context.Context, materialID, projectID, userID uuid.UUID) error
}

type materialService struct {
	log         *logger.Logger
	projectRepo repos.ProjectRepo
	repo        repos.MaterialRepo
	bucket      BucketService
}

func NewMaterialService(
	baseLog *logger.Logger,
	projectRepo repos.ProjectRepo,
	repo repos.MaterialRepo,
	bucket BucketService,
) MaterialService {
	return &materialService{
		log:         baseLog.With("service", "MaterialService"),
		projectRepo: projectRepo,
		repo:        repo,
		bucket:      bucket,
	}
}

func (ms *materialService) CreateText(ctx context.Context, projectID, userID uuid.UUID, name, content string) (*types.Material, error) {
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := ms.projectRepo.GetOwned(dbc, projectID, userID); err != nil {
		return nil, fmt.Errorf("project not found: %w", err)
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("text content is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Pasted text"
	}

	material := &types.Material{
		ID:            uuid.New(),
		ProjectID:     projectID,
		UserID:        userID,
		Name:          name,
		Kind:          types.MaterialKindText,
		Status:        types.MaterialStatusPending,
		MimeType:      "text/plain",
		SizeBytes:     int64(len(content)),
		ExtractedText: content,
	}
	created, err := ms.repo.Create(dbc, []*types.Material{material})
	if err != nil {
		return nil, fmt.Errorf("create material: %w", err)
	}
	return created[0], nil
}

func (ms *materialService) CreateYouTube(ctx context.Context, projectID, userID uuid.UUID, name, sourceURL string) (*types.Material, error) {
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := ms.projectRepo.GetOwned(dbc, projectID, userID); err != nil {
		return nil, fmt.Errorf("project not found: %w", err)
	}

	sourceURL = strings.TrimSpace(sourceURL)
	if !isYouTubeURL(sourceURL) {
		return nil, fmt.Errorf("not a YouTube url: %q", sourceURL)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = sourceURL
	}

	material := &types.Material{
		ID:        uuid.New(),
		ProjectID: projectID,
		UserID:    userID,
		Name:      name,
		Kind:      types.MaterialKindYouTube,
		Status:    types.MaterialStatusPending,
		SourceURL: sourceURL,
	}
	created, err := ms.repo.Create(dbc, []*types.Material{material})
	if err != nil {
		return nil, fmt.Errorf("create material: %w", err)
	}
	return created[0], nil
}

// CreateFile streams the upload straight to object storage; the worker pulls
// it back down for extraction and the provider upload.
func (ms *materialService) CreateFile(ctx context.Context, projectID, userID uuid.UUID, name, mimeType string, size int64, file io.Reader) (*types.Material, error) {
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := ms.projectRepo.GetOwned(dbc, projectID, userID); err != nil {
		return nil, fmt.Errorf("project not found: %w", err)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = "Uploaded file"
	}
	kind, err := materialKindForMime(mimeType, name)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("material/%s/%s%s", projectID, uuid.NewString(), filepath.Ext(name))
	if err := ms.bucket.UploadFile(ctx, key, file); err != nil {
		return nil, fmt.Errorf("upload material blob: %w", err)
	}

	material := &types.Material{
		ID:         uuid.New(),
		ProjectID:  projectID,
		UserID:     userID,
		Name:       name,
		Kind:       kind,
		Status:     types.MaterialStatusPending,
		MimeType:   mimeType,
		SizeBytes:  size,
		StorageKey: key,
		FileURL:    ms.bucket.GetPublicURL(key),
	}
	created, err := ms.repo.Create(dbc, []*types.Material{material})
	if err != nil {
		return nil, fmt.Errorf("create material: %w", err)
	}
	return created[0], nil
}

func (ms *materialService) ListByProject(ctx context.Context, projectID, userID uuid.UUID) ([]*types.Material, error) {
	return ms.repo.ListByProject(dbctx.Context{Ctx: ctx}, projectID, userID)
}

func (ms *materialService) GetOwned(ctx context.Context, materialID, projectID, userID uuid.UUID) (*types.Material, error) {
	return ms.repo.GetOwned(dbctx.Context{Ctx: ctx}, materialID, projectID, userID)
}

func (ms *materialService) Delete(ctx context.Context, materialID, projectID, userID uuid.UUID) error {
	dbc := dbctx.Context{Ctx: ctx}
	material, err := ms.repo.GetOwned(dbc, materialID, projectID, userID)
	if err != nil {
		return fmt.Errorf("material not found: %w", err)
	}

	// Blob delete is best effort; the row is the source of truth.
	if material.StorageKey != "" {
		if err := ms.bucket.DeleteFile(ctx, material.StorageKey); err != nil {
			ms.log.Warn("Failed to delete material blob", "material_id", materialID, "key", material.StorageKey, "error", err)
		}
	}
	return ms.repo.SoftDelete(dbc, materialID, projectID, userID)
}

func materialKindForMime(mimeType, name string) (string, error) {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	ext := strings.ToLower(filepath.Ext(name))

	switch {
	case mt == "application/pdf" || ext == ".pdf":
		return types.MaterialKindPDF, nil
	case strings.HasPrefix(mt, "video/"):
		return types.MaterialKindVideo, nil
	case strings.HasPrefix(mt, "text/") || ext == ".txt" || ext == ".md" || ext == ".markdown":
		return types.MaterialKindText, nil
	}
	return "", fmt.Errorf("unsupported material type: mime=%q name=%q", mimeType, name)
}

func isYouTubeURL(raw string) bool {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return false
	}
	return strings.Contains(raw, "youtube.com/") || strings.Contains(raw, "youtu.be/")
}
