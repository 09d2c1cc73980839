package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/yungbote/studypilot-backend/internal/pkg/dbctx"
	"github.com/yungbote/studypilot-backend/internal/pkg/logger"
	"github.com/yungbote/studypilot-backend/internal/repos"
	"github.com/yungbote/studypilot-backend/internal/types"
	"github.com/yungbote/studypilot-backend/internal/utils"
)

const materialSummarySystemPrompt = `You summarize study materials for a personal tutor. Write 2 to 3 plain sentences covering what the material is and the main topics it teaches. No markdown, no preamble.`

// MaterialWorker drains pending materials: extract text where possible, park
// file blobs with the generation provider, produce a short summary, then flip
// the row to ready or failed and push the status to the owner's SSE channel.
type MaterialWorker interface {
	StartWorker(ctx context.Context)
}

type materialWorker struct {
	log      *logger.Logger
	repo     repos.MaterialRepo
	bucket   BucketService
	gemini   GeminiClient
	notifier Notifier

	pollInterval    time.Duration
	staleProcessing time.Duration
	processTimeout  time.Duration
}

func NewMaterialWorker(
	baseLog *logger.Logger,
	repo repos.MaterialRepo,
	bucket BucketService,
	gemini GeminiClient,
	notifier Notifier,
) MaterialWorker {
	workerLog := baseLog.With("service", "MaterialWorker")
	return &materialWorker{
		log:             workerLog,
		repo:            repo,
		bucket:          bucket,
		gemini:          gemini,
		notifier:        notifier,
		pollInterval:    utils.GetEnvAsDuration("MATERIAL_WORKER_POLL_INTERVAL", 2*time.Second, workerLog),
		staleProcessing: utils.GetEnvAsDuration("MATERIAL_WORKER_STALE_PROCESSING", 5*time.Minute, workerLog),
		processTimeout:  utils.GetEnvAsDuration("MATERIAL_WORKER_PROCESS_TIMEOUT", 10*time.Minute, workerLog),
	}
}

func (mw *materialWorker) StartWorker(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(mw.pollInterval)
		defer ticker.Stop()
		mw.log.Info("Material worker started", "poll_interval", mw.pollInterval.String())
		for {
			select {
			case <-ctx.Done():
				mw.log.Info("Material worker stopped")
				return
			case <-ticker.C:
				mw.tick(ctx)
			}
		}
	}()
}

func (mw *materialWorker) tick(ctx context.Context) {
	material, err := mw.repo.ClaimNextPending(dbctx.Context{Ctx: ctx}, mw.staleProcessing)
	if err != nil {
		mw.log.Error("Failed to claim material", "error", err)
		return
	}
	if material == nil {
		return
	}

	procCtx, cancel := context.WithTimeout(ctx, mw.processTimeout)
	defer cancel()
	mw.process(procCtx, material)
}

func (mw *materialWorker) process(ctx context.Context, material *types.Material) {
	log := mw.log.With("material_id", material.ID, "kind", material.Kind)
	log.Info("Processing material")

	updates := map[string]interface{}{}

	switch material.Kind {
	case types.MaterialKindText:
		if strings.TrimSpace(material.ExtractedText) == "" && material.StorageKey != "" {
			data, err := mw.download(ctx, material.StorageKey)
			if err != nil {
				mw.fail(material, err)
				return
			}
			text, err := ExtractMaterialText(material.Name, material.MimeType, data)
			if err != nil {
				mw.fail(material, fmt.Errorf("text extraction: %w", err))
				return
			}
			material.ExtractedText = text
			updates["extracted_text"] = text
		}
		if strings.TrimSpace(material.ExtractedText) == "" {
			mw.fail(material, fmt.Errorf("no text content"))
			return
		}

	case types.MaterialKindPDF:
		data, err := mw.download(ctx, material.StorageKey)
		if err != nil {
			mw.fail(material, err)
			return
		}
		// Local extraction feeds assessment prompts; the provider copy is what
		// the tutor reads, so extraction failure alone does not fail the row.
		if text, extractErr := ExtractMaterialText(material.Name, material.MimeType, data); extractErr != nil {
			log.Warn("Local text extraction failed", "error", extractErr)
		} else {
			material.ExtractedText = text
			updates["extracted_text"] = text
		}
		pf, err := mw.gemini.UploadFile(ctx, bytes.NewReader(data), "application/pdf", material.Name)
		if err != nil {
			mw.fail(material, fmt.Errorf("provider upload: %w", err))
			return
		}
		material.ProviderFileName = pf.Name
		material.ProviderFileURI = pf.URI
		updates["provider_file_name"] = pf.Name
		updates["provider_file_uri"] = pf.URI

	case types.MaterialKindVideo:
		if material.StorageKey == "" {
			mw.fail(material, fmt.Errorf("material has no stored blob"))
			return
		}
		r, err := mw.bucket.DownloadFile(ctx, material.StorageKey)
		if err != nil {
			mw.fail(material, err)
			return
		}
		pf, uploadErr := mw.gemini.UploadFile(ctx, r, material.MimeType, material.Name)
		r.Close()
		if uploadErr != nil {
			mw.fail(material, fmt.Errorf("provider upload: %w", uploadErr))
			return
		}
		material.ProviderFileName = pf.Name
		material.ProviderFileURI = pf.URI
		updates["provider_file_name"] = pf.Name
		updates["provider_file_uri"] = pf.URI

	case types.MaterialKindYouTube:
		// Nothing to stage; the provider fetches the link itself.
		if material.SourceURL == "" {
			mw.fail(material, fmt.Errorf("material has no source url"))
			return
		}

	default:
		mw.fail(material, fmt.Errorf("unknown material kind %q", material.Kind))
		return
	}

	summary, err := mw.summarize(ctx, material)
	if err != nil {
		mw.fail(material, fmt.Errorf("summary generation: %w", err))
		return
	}
	updates["summary"] = summary
	updates["status"] = types.MaterialStatusReady
	updates["error"] = ""

	if err := mw.repo.UpdateFields(dbctx.Context{Ctx: ctx}, material.ID, updates); err != nil {
		log.Error("Failed to persist material result", "error", err)
		return
	}
	material.Summary = summary
	material.Status = types.MaterialStatusReady
	material.Error = ""
	mw.notifier.MaterialStatusChanged(ctx, material.UserID, material)
	log.Info("Material ready")
}

func (mw *materialWorker) summarize(ctx context.Context, material *types.Material) (string, error) {
	req := ChatRequest{System: materialSummarySystemPrompt}

	switch {
	case material.Kind == types.MaterialKindYouTube:
		req.Attachments = []ChatAttachment{{FileURI: material.SourceURL, MimeType: "video/mp4"}}
		req.UserText = fmt.Sprintf("Summarize the YouTube video %q.", material.Name)
	case material.ProviderFileURI != "":
		req.Attachments = []ChatAttachment{{FileURI: material.ProviderFileURI, MimeType: material.MimeType}}
		req.UserText = fmt.Sprintf("Summarize the attached file %q.", material.Name)
	default:
		req.UserText = fmt.Sprintf("Summarize this study material, titled %q:\n\n%s",
			material.Name, truncateRunes(material.ExtractedText, 12000))
	}

	result, err := mw.gemini.StreamChat(ctx, req, StreamCallbacks{})
	if err != nil {
		return "", err
	}
	summary := strings.TrimSpace(result.Text)
	if summary == "" {
		return "", fmt.Errorf("empty summary")
	}
	return summary, nil
}

// fail writes with a background ctx so a processing timeout cannot also kill
// the failure write.
func (mw *materialWorker) fail(material *types.Material, cause error) {
	mw.log.Error("Material processing failed", "material_id", material.ID, "error", cause)
	updates := map[string]interface{}{
		"status": types.MaterialStatusFailed,
		"error":  cause.Error(),
	}
	if err := mw.repo.UpdateFields(dbctx.Context{Ctx: context.Background()}, material.ID, updates); err != nil {
		mw.log.Error("Failed to mark material failed", "material_id", material.ID, "error", err)
		return
	}
	material.Status = types.MaterialStatusFailed
	material.Error = cause.Error()
	mw.notifier.MaterialStatusChanged(context.Background(), material.UserID, material)
}

func (mw *materialWorker) download(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, fmt.Errorf("material has no stored blob")
	}
	r, err := mw.bucket.DownloadFile(ctx, key)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read material blob: %w", err)
	}
	return data, nil
}
