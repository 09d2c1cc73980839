package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/yungbote/studypilot-backend/internal/pkg/backoff"
	"github.com/yungbote/studypilot-backend/internal/pkg/logger"
)

// ChatTurnMessage is one prior exchange in provider order.
type ChatTurnMessage struct {
	Role    string
	Content string
}

// ChatAttachment references a file already uploaded to the provider.
type ChatAttachment struct {
	FileURI  string
	MimeType string
}

type ToolDefinition struct {
	Name        string
	Description string
	Parameters  *genai.Schema
}

type ToolInvocation struct {
	Name string
	Args map[string]any
}

type ChatRequest struct {
	System      string
	History     []ChatTurnMessage
	UserText    string
	Attachments []ChatAttachment
	Tools       []ToolDefinition
}

// ChatResult carries the full text plus tool calls in generation order.
type ChatResult struct {
	Text      string
	ToolCalls []ToolInvocation
}

type JSONRequest struct {
	System string
	User   string
	Schema *genai.Schema
}

type StreamCallbacks struct {
	OnDelta   func(text string)
	OnThought func(text string)
}

type ProviderFile struct {
	Name     string
	URI      string
	MimeType string
}

type GeminiClient interface {
	StreamChat(ctx context.Context, req ChatRequest, cb StreamCallbacks) (*ChatResult, error)
	GenerateJSON(ctx context.Context, req JSONRequest, cb StreamCallbacks) (json.RawMessage, error)
	UploadFile(ctx context.Context, r io.Reader, mimeType, displayName string) (*ProviderFile, error)
}

type geminiClient struct {
	log    *logger.Logger
	client *genai.Client
	model  string

	fileWaitTimeout  time.Duration
	filePollInterval time.Duration
	maxRetries       int
}

func NewGeminiClient(log *logger.Logger) (GeminiClient, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}

	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = "gemini-2.5-flash"
	}

	fileWaitSec := 120
	if v := os.Getenv("GEMINI_FILE_WAIT_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			fileWaitSec = parsed
		}
	}

	maxRetries := 2
	if v := os.Getenv("GEMINI_MAX_RETRIES"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("Failed to create genai client: %w", err)
	}

	return &geminiClient{
		log:              log.With("service", "GeminiClient"),
		client:           client,
		model:            model,
		fileWaitTimeout:  time.Duration(fileWaitSec) * time.Second,
		filePollInterval: 2 * time.Second,
		maxRetries:       maxRetries,
	}, nil
}

func (gc *geminiClient) StreamChat(ctx context.Context, req ChatRequest, cb StreamCallbacks) (*ChatResult, error) {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, m := range req.History {
		role := genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	userParts := make([]*genai.Part, 0, len(req.Attachments)+1)
	for _, a := range req.Attachments {
		userParts = append(userParts, genai.NewPartFromURI(a.FileURI, a.MimeType))
	}
	userParts = append(userParts, genai.NewPartFromText(req.UserText))
	contents = append(contents, genai.NewContentFromParts(userParts, genai.RoleUser))

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0.7)),
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	result := &ChatResult{}
	var text strings.Builder

	for resp, err := range gc.client.Models.GenerateContentStream(ctx, gc.model, contents, config) {
		if err != nil {
			return nil, fmt.Errorf("gemini stream: %w", err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}
		for _, part := range resp.Candidates[0].Content.Parts {
			if part == nil {
				continue
			}
			if part.FunctionCall != nil {
				result.ToolCalls = append(result.ToolCalls, ToolInvocation{
					Name: part.FunctionCall.Name,
					Args: part.FunctionCall.Args,
				})
				continue
			}
			if part.Text == "" {
				continue
			}
			if part.Thought {
				if cb.OnThought != nil {
					cb.OnThought(part.Text)
				}
				continue
			}
			text.WriteString(part.Text)
			if cb.OnDelta != nil {
				cb.OnDelta(part.Text)
			}
		}
	}

	result.Text = text.String()
	return result, nil
}

func (gc *geminiClient) GenerateJSON(ctx context.Context, req JSONRequest, cb StreamCallbacks) (json.RawMessage, error) {
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0.2)),
		ResponseMIMEType: "application/json",
	}
	if req.Schema != nil {
		config.ResponseSchema = req.Schema
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	contents := []*genai.Content{genai.NewContentFromText(req.User, genai.RoleUser)}

	if cb.OnDelta != nil || cb.OnThought != nil {
		var out strings.Builder
		for resp, err := range gc.client.Models.GenerateContentStream(ctx, gc.model, contents, config) {
			if err != nil {
				return nil, fmt.Errorf("gemini json stream: %w", err)
			}
			if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				continue
			}
			for _, part := range resp.Candidates[0].Content.Parts {
				if part == nil || part.Text == "" {
					continue
				}
				if part.Thought {
					if cb.OnThought != nil {
						cb.OnThought(part.Text)
					}
					continue
				}
				out.WriteString(part.Text)
				if cb.OnDelta != nil {
					cb.OnDelta(part.Text)
				}
			}
		}
		return json.RawMessage(out.String()), nil
	}

	var lastErr error
	for attempt := 0; attempt <= gc.maxRetries; attempt++ {
		if attempt > 0 {
			gc.log.Warn("Retrying gemini json call", "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff.Jitter(time.Duration(attempt) * time.Second)):
			}
		}
		resp, err := gc.client.Models.GenerateContent(ctx, gc.model, contents, config)
		if err != nil {
			lastErr = err
			continue
		}
		text := resp.Text()
		if text == "" {
			lastErr = fmt.Errorf("empty response")
			continue
		}
		return json.RawMessage(text), nil
	}
	return nil, fmt.Errorf("gemini json call failed: %w", lastErr)
}

// UploadFile pushes the blob to the provider's file API and, for media that
// the provider processes asynchronously, waits (bounded) until it is usable.
func (gc *geminiClient) UploadFile(ctx context.Context, r io.Reader, mimeType, displayName string) (*ProviderFile, error) {
	file, err := gc.client.Files.Upload(ctx, r, &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: displayName,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini file upload: %w", err)
	}

	deadline := time.Now().Add(gc.fileWaitTimeout)
	for file.State == genai.FileStateProcessing {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("gemini file %q still processing after %s", file.Name, gc.fileWaitTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(gc.filePollInterval):
		}
		file, err = gc.client.Files.Get(ctx, file.Name, nil)
		if err != nil {
			return nil, fmt.Errorf("gemini file poll: %w", err)
		}
	}
	if file.State == genai.FileStateFailed {
		return nil, fmt.Errorf("gemini file %q failed processing", file.Name)
	}

	return &ProviderFile{
		Name:     file.Name,
		URI:      file.URI,
		MimeType: mimeType,
	}, nil
}
