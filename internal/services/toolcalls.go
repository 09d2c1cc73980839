package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/yungbote/studypilot-backend/internal/pkg/logger"
	"github.com/yungbote/studypilot-backend/internal/sse"
	"github.com/yungbote/studypilot-backend/internal/types"
)

// ToolKind is the closed set of tutor tools. Every raw tool name coming back
// from the model is parsed into one of these before anything is applied.
type ToolKind string

const (
	ToolMemoryCreate   ToolKind = "memory_create"
	ToolMemoryUpdate   ToolKind = "memory_update"
	ToolMemoryDelete   ToolKind = "memory_delete"
	ToolQuestionCreate ToolKind = "question_create"
	ToolArtifactCreate ToolKind = "artifact_create"
	ToolArtifactUpdate ToolKind = "artifact_update"
	ToolArtifactDelete ToolKind = "artifact_delete"
)

// Older prompt revisions exposed one create tool per artifact type and some
// model snapshots still call them. They parse to ToolArtifactCreate with the
// type injected into the args.
var artifactCreateVariants = map[string]string{
	"artifact_create_lesson":     types.ArtifactTypeLesson,
	"artifact_create_study_plan": types.ArtifactTypeStudyPlan,
	"artifact_create_flashcards": types.ArtifactTypeFlashcards,
}

type ParsedToolCall struct {
	Kind ToolKind
	Name string
	Args map[string]any
}

// ParseToolCall maps a raw model tool invocation onto the closed tool set.
// Unknown names return ok=false; the caller skips them instead of failing
// the turn.
func ParseToolCall(inv ToolInvocation) (ParsedToolCall, bool) {
	args := inv.Args
	if args == nil {
		args = map[string]any{}
	}

	if artifactType, ok := artifactCreateVariants[inv.Name]; ok {
		if _, exists := args["type"]; !exists {
			args["type"] = artifactType
		}
		return ParsedToolCall{Kind: ToolArtifactCreate, Name: inv.Name, Args: args}, true
	}

	switch ToolKind(inv.Name) {
	case ToolMemoryCreate, ToolMemoryUpdate, ToolMemoryDelete,
		ToolQuestionCreate,
		ToolArtifactCreate, ToolArtifactUpdate, ToolArtifactDelete:
		return ParsedToolCall{Kind: ToolKind(inv.Name), Name: inv.Name, Args: args}, true
	}
	return ParsedToolCall{}, false
}

// TurnScope identifies the chat turn a batch of tool calls belongs to.
type TurnScope struct {
	ProjectID uuid.UUID
	UserID    uuid.UUID
	ChatID    uuid.UUID
	MessageID uuid.UUID
}

// TurnEffects accumulates what a turn's tool calls did, in call order. The
// three exported fields are persisted onto the assistant message.
type TurnEffects struct {
	ProcessedToolCalls []map[string]any
	ArtifactActions    []map[string]any
	InlineQuestion     map[string]any

	artifactsCreatingSent bool
}

// EmitFunc pushes an SSE frame to the streaming response of the current turn.
type EmitFunc func(kind string, fields map[string]any)

type ToolDispatcher struct {
	log       *logger.Logger
	memories  MemoryService
	artifacts ArtifactService
	notifier  Notifier
}

func NewToolDispatcher(baseLog *logger.Logger, memories MemoryService, artifacts ArtifactService, notifier Notifier) *ToolDispatcher {
	return &ToolDispatcher{
		log:       baseLog.With("service", "ToolDispatcher"),
		memories:  memories,
		artifacts: artifacts,
		notifier:  notifier,
	}
}

// Apply folds the model's tool calls into side effects. One bad call never
// aborts the batch: it is recorded as failed and the fold moves on.
func (td *ToolDispatcher) Apply(ctx context.Context, scope TurnScope, calls []ToolInvocation, emit EmitFunc) TurnEffects {
	if emit == nil {
		emit = func(string, map[string]any) {}
	}

	effects := TurnEffects{}
	for _, inv := range calls {
		emit(sse.EventToolCall, map[string]any{"name": inv.Name})

		parsed, ok := ParseToolCall(inv)
		if !ok {
			td.log.Warn("Skipping unknown tool call", "tool", inv.Name, "chat_id", scope.ChatID)
			effects.ProcessedToolCalls = append(effects.ProcessedToolCalls, map[string]any{
				"name":   inv.Name,
				"args":   inv.Args,
				"status": "failed",
				"error":  "unknown tool",
			})
			continue
		}

		record := map[string]any{
			"name":   parsed.Name,
			"args":   parsed.Args,
			"status": "completed",
		}
		if err := td.dispatch(ctx, scope, parsed, &effects, emit); err != nil {
			td.log.Warn("Tool call failed", "tool", parsed.Name, "chat_id", scope.ChatID, "error", err)
			record["status"] = "failed"
			record["error"] = err.Error()
		}
		effects.ProcessedToolCalls = append(effects.ProcessedToolCalls, record)
	}
	return effects
}

func (td *ToolDispatcher) dispatch(ctx context.Context, scope TurnScope, call ParsedToolCall, effects *TurnEffects, emit EmitFunc) error {
	switch call.Kind {
	case ToolMemoryCreate:
		_, err := td.memories.Create(ctx, scope.ProjectID, scope.UserID,
			argString(call.Args, "content"),
			argString(call.Args, "category"),
			argInt(call.Args, "importance"))
		return err

	case ToolMemoryUpdate:
		memoryID, err := argUUID(call.Args, "memory_id")
		if err != nil {
			return err
		}
		fields := MemoryUpdate{}
		if v, ok := lookupString(call.Args, "content"); ok {
			fields.Content = &v
		}
		if v, ok := lookupString(call.Args, "category"); ok {
			fields.Category = &v
		}
		if _, ok := call.Args["importance"]; ok {
			importance := argInt(call.Args, "importance")
			fields.Importance = &importance
		}
		_, err = td.memories.Update(ctx, scope.ProjectID, scope.UserID, memoryID, fields)
		return err

	case ToolMemoryDelete:
		memoryID, err := argUUID(call.Args, "memory_id")
		if err != nil {
			return err
		}
		return td.memories.Deactivate(ctx, scope.ProjectID, scope.UserID, memoryID)

	case ToolQuestionCreate:
		if effects.InlineQuestion != nil {
			return fmt.Errorf("only one inline question per turn")
		}
		question, err := buildInlineQuestion(call.Args)
		if err != nil {
			return err
		}
		effects.InlineQuestion = question
		emit(sse.EventQuestion, map[string]any{"question": question})
		return nil

	case ToolArtifactCreate:
		if !effects.artifactsCreatingSent {
			emit(sse.EventArtifactsCreating, map[string]any{})
			effects.artifactsCreatingSent = true
		}
		chatID := scope.ChatID
		messageID := scope.MessageID
		artifact, err := td.artifacts.Create(ctx, scope.ProjectID, scope.UserID, &chatID, &messageID,
			argString(call.Args, "type"),
			argString(call.Args, "title"),
			argString(call.Args, "description"),
			argMap(call.Args, "content"))
		if err != nil {
			return err
		}
		td.recordArtifactAction(ctx, scope, effects, emit, "created", sse.EventArtifactCreated, artifact)
		return nil

	case ToolArtifactUpdate:
		artifactID, err := argUUID(call.Args, "artifact_id")
		if err != nil {
			return err
		}
		update := ArtifactUpdate{
			Content:         argMap(call.Args, "content"),
			AddSections:     argSlice(call.Args, "add_sections"),
			RemoveSectionID: argString(call.Args, "remove_section_id"),
			AddItems:        argSlice(call.Args, "add_items"),
			RemoveItemID:    argString(call.Args, "remove_item_id"),
			AddCards:        argSlice(call.Args, "add_cards"),
			RemoveCardID:    argString(call.Args, "remove_card_id"),
		}
		if v, ok := lookupString(call.Args, "title"); ok {
			update.Title = &v
		}
		if v, ok := lookupString(call.Args, "description"); ok {
			update.Description = &v
		}
		artifact, err := td.artifacts.Update(ctx, scope.ProjectID, scope.UserID, artifactID, update)
		if err != nil {
			return err
		}
		td.recordArtifactAction(ctx, scope, effects, emit, "updated", sse.EventArtifactUpdated, artifact)
		return nil

	case ToolArtifactDelete:
		artifactID, err := argUUID(call.Args, "artifact_id")
		if err != nil {
			return err
		}
		artifact, err := td.artifacts.GetOwned(ctx, artifactID, scope.ProjectID, scope.UserID)
		if err != nil {
			return err
		}
		if err := td.artifacts.Archive(ctx, scope.ProjectID, scope.UserID, artifactID); err != nil {
			return err
		}
		td.recordArtifactAction(ctx, scope, effects, emit, "deleted", sse.EventArtifactDeleted, artifact)
		return nil
	}
	return fmt.Errorf("unsupported tool %q", call.Name)
}

func (td *ToolDispatcher) recordArtifactAction(ctx context.Context, scope TurnScope, effects *TurnEffects, emit EmitFunc, action, eventKind string, artifact *types.Artifact) {
	fields := map[string]any{
		"action":        action,
		"artifact_id":   artifact.ID.String(),
		"artifact_type": artifact.Type,
		"title":         artifact.Title,
		"version":       artifact.Version,
	}
	effects.ArtifactActions = append(effects.ArtifactActions, fields)
	emit(eventKind, map[string]any{
		"artifact_id":   artifact.ID.String(),
		"artifact_type": artifact.Type,
		"title":         artifact.Title,
		"version":       artifact.Version,
	})
	td.notifier.ArtifactChanged(ctx, scope.UserID, action, artifact)
}

// buildInlineQuestion shapes the question_create args into the object the
// client renders inline in the conversation.
func buildInlineQuestion(args map[string]any) (map[string]any, error) {
	text := strings.TrimSpace(argString(args, "question"))
	if text == "" {
		return nil, fmt.Errorf("question text is required")
	}

	questionType := strings.ToLower(strings.TrimSpace(argString(args, "type")))
	if !questionSubtypes[questionType] {
		questionType = types.QuestionTypeMultipleChoice
	}

	question := map[string]any{
		"id":       uuid.NewString(),
		"type":     questionType,
		"question": text,
	}
	if options := argSlice(args, "options"); len(options) > 0 {
		question["options"] = options
	}
	if v, ok := args["correctAnswer"]; ok {
		question["correctAnswer"] = v
	}
	if v, ok := lookupString(args, "explanation"); ok {
		question["explanation"] = v
	}
	return question, nil
}

func argString(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func lookupString(args map[string]any, key string) (string, bool) {
	v, ok := args[key].(string)
	return v, ok
}

// argInt tolerates the numeric shapes JSON decoding produces.
func argInt(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return 0
}

func argUUID(args map[string]any, key string) (uuid.UUID, error) {
	raw := strings.TrimSpace(argString(args, key))
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%s is required", key)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q", key, raw)
	}
	return id, nil
}

func argMap(args map[string]any, key string) map[string]any {
	v, _ := args[key].(map[string]any)
	return v
}

func argSlice(args map[string]any, key string) []any {
	v, _ := args[key].([]any)
	return v
}

// TutorToolDefinitions declares the tool surface handed to the model on every
// chat turn.
func TutorToolDefinitions() []ToolDefinition {
	memoryCategories := []string{
		types.MemoryCategoryPreference, types.MemoryCategoryUnderstanding,
		types.MemoryCategoryWeakness, types.MemoryCategoryStrength,
		types.MemoryCategoryGoal, types.MemoryCategoryContext, types.MemoryCategoryOther,
	}
	questionTypes := []string{
		types.QuestionTypeMultipleChoice, types.QuestionTypeMultipleSelect,
		types.QuestionTypeTrueFalse, types.QuestionTypeShortAnswer,
		types.QuestionTypeFillBlank, types.QuestionTypeEssay,
	}
	artifactTypes := []string{
		types.ArtifactTypeLesson, types.ArtifactTypeStudyPlan, types.ArtifactTypeFlashcards,
	}

	return []ToolDefinition{
		{
			Name:        string(ToolMemoryCreate),
			Description: "Save a durable fact about the learner: a preference, a goal, something they understand well or struggle with.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"content":    {Type: genai.TypeString, Description: "The fact to remember, stated in one sentence."},
					"category":   {Type: genai.TypeString, Enum: memoryCategories},
					"importance": {Type: genai.TypeInteger, Description: "1 (minor) to 5 (critical)."},
				},
				Required: []string{"content"},
			},
		},
		{
			Name:        string(ToolMemoryUpdate),
			Description: "Revise an existing memory when the learner's situation has changed.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"memory_id":  {Type: genai.TypeString, Description: "Id of the memory to update."},
					"content":    {Type: genai.TypeString},
					"category":   {Type: genai.TypeString, Enum: memoryCategories},
					"importance": {Type: genai.TypeInteger},
				},
				Required: []string{"memory_id"},
			},
		},
		{
			Name:        string(ToolMemoryDelete),
			Description: "Remove a memory that no longer holds.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"memory_id": {Type: genai.TypeString},
				},
				Required: []string{"memory_id"},
			},
		},
		{
			Name:        string(ToolQuestionCreate),
			Description: "Ask the learner a single quick check question rendered inline in the conversation. Use at most once per reply.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"type":          {Type: genai.TypeString, Enum: questionTypes},
					"question":      {Type: genai.TypeString},
					"options":       {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
					"correctAnswer": {Type: genai.TypeString, Description: "The correct option text, or true/false."},
					"explanation":   {Type: genai.TypeString},
				},
				Required: []string{"question"},
			},
		},
		{
			Name:        string(ToolArtifactCreate),
			Description: "Create a study artifact the learner keeps: a lesson, a study plan or a flashcard deck.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"type":        {Type: genai.TypeString, Enum: artifactTypes},
					"title":       {Type: genai.TypeString},
					"description": {Type: genai.TypeString},
					"content": {
						Type:        genai.TypeObject,
						Description: "lesson: {sections: [{title, type: content|question, content, question}]}. study_plan: {items: [{title, description, completed, children}]}. flashcards: {cards: [{front, back, hint}]}.",
					},
				},
				Required: []string{"type", "title", "content"},
			},
		},
		{
			Name:        string(ToolArtifactUpdate),
			Description: "Update an existing artifact by id instead of creating a near duplicate. Pass content to replace the document, or the add/remove fields to splice entries.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"artifact_id":       {Type: genai.TypeString},
					"title":             {Type: genai.TypeString},
					"description":       {Type: genai.TypeString},
					"content":           {Type: genai.TypeObject, Description: "Full replacement document."},
					"add_sections":      {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeObject}},
					"remove_section_id": {Type: genai.TypeString},
					"add_items":         {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeObject}},
					"remove_item_id":    {Type: genai.TypeString},
					"add_cards":         {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeObject}},
					"remove_card_id":    {Type: genai.TypeString},
				},
				Required: []string{"artifact_id"},
			},
		},
		{
			Name:        string(ToolArtifactDelete),
			Description: "Archive an artifact the learner no longer needs.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"artifact_id": {Type: genai.TypeString},
				},
				Required: []string{"artifact_id"},
			},
		},
	}
}
