package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/studypilot-backend/internal/pkg/logger"
	"github.com/yungbote/studypilot-backend/internal/sse"
	"github.com/yungbote/studypilot-backend/internal/types"
)

func TestParseToolCall(t *testing.T) {
	cases := []struct {
		name     string
		toolName string
		args     map[string]any
		wantOK   bool
		wantKind ToolKind
		wantType string
	}{
		{
			name:     "memory_create",
			toolName: "memory_create",
			args:     map[string]any{"content": "prefers worked examples"},
			wantOK:   true,
			wantKind: ToolMemoryCreate,
		},
		{
			name:     "artifact_update",
			toolName: "artifact_update",
			args:     map[string]any{"artifact_id": uuid.NewString()},
			wantOK:   true,
			wantKind: ToolArtifactUpdate,
		},
		{
			name:     "nil_args_become_empty_map",
			toolName: "memory_delete",
			wantOK:   true,
			wantKind: ToolMemoryDelete,
		},
		{
			name:     "legacy_lesson_create_injects_type",
			toolName: "artifact_create_lesson",
			args:     map[string]any{"title": "Cell structure"},
			wantOK:   true,
			wantKind: ToolArtifactCreate,
			wantType: types.ArtifactTypeLesson,
		},
		{
			name:     "legacy_create_keeps_explicit_type",
			toolName: "artifact_create_flashcards",
			args:     map[string]any{"type": types.ArtifactTypeStudyPlan, "title": "Week plan"},
			wantOK:   true,
			wantKind: ToolArtifactCreate,
			wantType: types.ArtifactTypeStudyPlan,
		},
		{
			name:     "unknown_tool",
			toolName: "web_search",
			args:     map[string]any{"query": "mitosis"},
			wantOK:   false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			parsed, ok := ParseToolCall(ToolInvocation{Name: tc.toolName, Args: tc.args})
			if ok != tc.wantOK {
				t.Fatalf("ParseToolCall(%q) ok=%v, want %v", tc.toolName, ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if parsed.Kind != tc.wantKind {
				t.Fatalf("kind: want=%q got=%q", tc.wantKind, parsed.Kind)
			}
			if parsed.Args == nil {
				t.Fatalf("parsed args: want non-nil map")
			}
			if tc.wantType != "" {
				if got := parsed.Args["type"]; got != tc.wantType {
					t.Fatalf("artifact type: want=%q got=%v", tc.wantType, got)
				}
			}
		})
	}
}

func TestToolDispatcherApplyMemoryCreate(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	memories := &fakeMemoryService{}
	td := NewToolDispatcher(log, memories, &fakeArtifactService{}, &fakeTurnNotifier{})

	effects := td.Apply(context.Background(), testTurnScope(), []ToolInvocation{
		{Name: "memory_create", Args: map[string]any{
			"content":    "wants diagrams before equations",
			"category":   types.MemoryCategoryPreference,
			"importance": float64(4),
		}},
	}, nil)

	if memories.createCalls != 1 {
		t.Fatalf("create call count: want=1 got=%d", memories.createCalls)
	}
	if memories.lastContent != "wants diagrams before equations" {
		t.Fatalf("content: got=%q", memories.lastContent)
	}
	if memories.lastCategory != types.MemoryCategoryPreference {
		t.Fatalf("category: want=%q got=%q", types.MemoryCategoryPreference, memories.lastCategory)
	}
	if memories.lastImportance != 4 {
		t.Fatalf("importance: want=4 got=%d", memories.lastImportance)
	}
	if len(effects.ProcessedToolCalls) != 1 {
		t.Fatalf("processed count: want=1 got=%d", len(effects.ProcessedToolCalls))
	}
	if got := effects.ProcessedToolCalls[0]["status"]; got != "completed" {
		t.Fatalf("status: want=completed got=%v", got)
	}
}

func TestToolDispatcherApplyUnknownToolRecordsFailure(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	memories := &fakeMemoryService{}
	td := NewToolDispatcher(log, memories, &fakeArtifactService{}, &fakeTurnNotifier{})

	var frames []capturedFrame
	emit := func(kind string, fields map[string]any) {
		frames = append(frames, capturedFrame{kind: kind, fields: fields})
	}

	effects := td.Apply(context.Background(), testTurnScope(), []ToolInvocation{
		{Name: "web_search", Args: map[string]any{"query": "mitosis"}},
	}, emit)

	if len(effects.ProcessedToolCalls) != 1 {
		t.Fatalf("processed count: want=1 got=%d", len(effects.ProcessedToolCalls))
	}
	record := effects.ProcessedToolCalls[0]
	if record["status"] != "failed" {
		t.Fatalf("status: want=failed got=%v", record["status"])
	}
	if record["error"] != "unknown tool" {
		t.Fatalf("error: want=%q got=%v", "unknown tool", record["error"])
	}
	if got := frameKinds(frames); got != sse.EventToolCall {
		t.Fatalf("frames: want=%q got=%q", sse.EventToolCall, got)
	}
}

func TestToolDispatcherApplyContinuesAfterFailure(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	memories := &fakeMemoryService{}
	td := NewToolDispatcher(log, memories, &fakeArtifactService{}, &fakeTurnNotifier{})

	effects := td.Apply(context.Background(), testTurnScope(), []ToolInvocation{
		{Name: "memory_update", Args: map[string]any{"content": "no id on this one"}},
		{Name: "memory_create", Args: map[string]any{"content": "still lands"}},
	}, nil)

	if len(effects.ProcessedToolCalls) != 2 {
		t.Fatalf("processed count: want=2 got=%d", len(effects.ProcessedToolCalls))
	}
	if got := effects.ProcessedToolCalls[0]["status"]; got != "failed" {
		t.Fatalf("first status: want=failed got=%v", got)
	}
	if got := effects.ProcessedToolCalls[0]["error"]; got != "memory_id is required" {
		t.Fatalf("first error: got=%v", got)
	}
	if got := effects.ProcessedToolCalls[1]["status"]; got != "completed" {
		t.Fatalf("second status: want=completed got=%v", got)
	}
	if memories.updateCalls != 0 {
		t.Fatalf("update call count: want=0 got=%d", memories.updateCalls)
	}
	if memories.createCalls != 1 {
		t.Fatalf("create call count: want=1 got=%d", memories.createCalls)
	}
}

func TestToolDispatcherApplyInlineQuestionFirstWins(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	td := NewToolDispatcher(log, &fakeMemoryService{}, &fakeArtifactService{}, &fakeTurnNotifier{})

	var frames []capturedFrame
	emit := func(kind string, fields map[string]any) {
		frames = append(frames, capturedFrame{kind: kind, fields: fields})
	}

	effects := td.Apply(context.Background(), testTurnScope(), []ToolInvocation{
		{Name: "question_create", Args: map[string]any{"question": "What does the mitochondria do?"}},
		{Name: "question_create", Args: map[string]any{"question": "Second question, should be refused"}},
	}, emit)

	if effects.InlineQuestion == nil {
		t.Fatalf("inline question: want set")
	}
	if got := effects.InlineQuestion["question"]; got != "What does the mitochondria do?" {
		t.Fatalf("inline question text: got=%v", got)
	}
	if got := effects.ProcessedToolCalls[1]["error"]; got != "only one inline question per turn" {
		t.Fatalf("second call error: got=%v", got)
	}
	questionFrames := 0
	for _, f := range frames {
		if f.kind == sse.EventQuestion {
			questionFrames++
		}
	}
	if questionFrames != 1 {
		t.Fatalf("question frame count: want=1 got=%d", questionFrames)
	}
}

func TestToolDispatcherApplyLegacyArtifactCreate(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	artifacts := &fakeArtifactService{}
	notif := &fakeTurnNotifier{}
	td := NewToolDispatcher(log, &fakeMemoryService{}, artifacts, notif)

	var frames []capturedFrame
	emit := func(kind string, fields map[string]any) {
		frames = append(frames, capturedFrame{kind: kind, fields: fields})
	}

	effects := td.Apply(context.Background(), testTurnScope(), []ToolInvocation{
		{Name: "artifact_create_lesson", Args: map[string]any{
			"title":   "Photosynthesis basics",
			"content": map[string]any{"sections": []any{}},
		}},
	}, emit)

	if artifacts.createCalls != 1 {
		t.Fatalf("create call count: want=1 got=%d", artifacts.createCalls)
	}
	if artifacts.lastType != types.ArtifactTypeLesson {
		t.Fatalf("artifact type: want=%q got=%q", types.ArtifactTypeLesson, artifacts.lastType)
	}
	if artifacts.lastTitle != "Photosynthesis basics" {
		t.Fatalf("artifact title: got=%q", artifacts.lastTitle)
	}

	want := sse.EventToolCall + "," + sse.EventArtifactsCreating + "," + sse.EventArtifactCreated
	if got := frameKinds(frames); got != want {
		t.Fatalf("frames: want=%q got=%q", want, got)
	}
	if notif.artifactCalls != 1 {
		t.Fatalf("notifier call count: want=1 got=%d", notif.artifactCalls)
	}
	if notif.lastAction != "created" {
		t.Fatalf("notifier action: want=%q got=%q", "created", notif.lastAction)
	}
	if len(effects.ArtifactActions) != 1 {
		t.Fatalf("artifact action count: want=1 got=%d", len(effects.ArtifactActions))
	}
	if got := effects.ArtifactActions[0]["action"]; got != "created" {
		t.Fatalf("artifact action: want=created got=%v", got)
	}
}

func TestToolDispatcherApplyArtifactsCreatingSentOnce(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	td := NewToolDispatcher(log, &fakeMemoryService{}, &fakeArtifactService{}, &fakeTurnNotifier{})

	var frames []capturedFrame
	emit := func(kind string, fields map[string]any) {
		frames = append(frames, capturedFrame{kind: kind, fields: fields})
	}

	td.Apply(context.Background(), testTurnScope(), []ToolInvocation{
		{Name: "artifact_create", Args: map[string]any{"type": types.ArtifactTypeFlashcards, "title": "Deck 1", "content": map[string]any{}}},
		{Name: "artifact_create", Args: map[string]any{"type": types.ArtifactTypeFlashcards, "title": "Deck 2", "content": map[string]any{}}},
	}, emit)

	creating := 0
	created := 0
	for _, f := range frames {
		switch f.kind {
		case sse.EventArtifactsCreating:
			creating++
		case sse.EventArtifactCreated:
			created++
		}
	}
	if creating != 1 {
		t.Fatalf("artifacts_creating frame count: want=1 got=%d", creating)
	}
	if created != 2 {
		t.Fatalf("artifact_created frame count: want=2 got=%d", created)
	}
}

func TestToolDispatcherApplyArtifactDeleteArchives(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	artifacts := &fakeArtifactService{}
	notif := &fakeTurnNotifier{}
	td := NewToolDispatcher(log, &fakeMemoryService{}, artifacts, notif)

	artifactID := uuid.New()
	effects := td.Apply(context.Background(), testTurnScope(), []ToolInvocation{
		{Name: "artifact_delete", Args: map[string]any{"artifact_id": artifactID.String()}},
	}, nil)

	if artifacts.archiveCalls != 1 {
		t.Fatalf("archive call count: want=1 got=%d", artifacts.archiveCalls)
	}
	if artifacts.lastID != artifactID {
		t.Fatalf("archived id: want=%s got=%s", artifactID, artifacts.lastID)
	}
	if notif.lastAction != "deleted" {
		t.Fatalf("notifier action: want=%q got=%q", "deleted", notif.lastAction)
	}
	if got := effects.ProcessedToolCalls[0]["status"]; got != "completed" {
		t.Fatalf("status: want=completed got=%v", got)
	}
}

func TestBuildInlineQuestion(t *testing.T) {
	cases := []struct {
		name     string
		args     map[string]any
		wantErr  bool
		wantType string
	}{
		{
			name:    "missing_text",
			args:    map[string]any{"type": types.QuestionTypeTrueFalse},
			wantErr: true,
		},
		{
			name:     "unknown_type_defaults_to_multiple_choice",
			args:     map[string]any{"question": "Is water wet?", "type": "trivia"},
			wantType: types.QuestionTypeMultipleChoice,
		},
		{
			name:     "known_type_kept",
			args:     map[string]any{"question": "Is water wet?", "type": "True_False"},
			wantType: types.QuestionTypeTrueFalse,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q, err := buildInlineQuestion(tc.args)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("buildInlineQuestion: expected error, got %v", q)
				}
				return
			}
			if err != nil {
				t.Fatalf("buildInlineQuestion: %v", err)
			}
			if got := q["type"]; got != tc.wantType {
				t.Fatalf("type: want=%q got=%v", tc.wantType, got)
			}
			if id, _ := q["id"].(string); id == "" {
				t.Fatalf("id: want non-empty")
			}
		})
	}
}

func TestBuildInlineQuestionCarriesOptionsAndAnswer(t *testing.T) {
	q, err := buildInlineQuestion(map[string]any{
		"question":      "Which organelle produces ATP?",
		"type":          types.QuestionTypeMultipleChoice,
		"options":       []any{"Mitochondria", "Ribosome"},
		"correctAnswer": "Mitochondria",
		"explanation":   "ATP synthesis happens in the mitochondria.",
	})
	if err != nil {
		t.Fatalf("buildInlineQuestion: %v", err)
	}
	options, _ := q["options"].([]any)
	if len(options) != 2 {
		t.Fatalf("options length: want=2 got=%d", len(options))
	}
	if q["correctAnswer"] != "Mitochondria" {
		t.Fatalf("correctAnswer: got=%v", q["correctAnswer"])
	}
	if q["explanation"] != "ATP synthesis happens in the mitochondria." {
		t.Fatalf("explanation: got=%v", q["explanation"])
	}
}

func TestArgInt(t *testing.T) {
	cases := []struct {
		name string
		args map[string]any
		want int
	}{
		{name: "float64", args: map[string]any{"n": float64(3)}, want: 3},
		{name: "int", args: map[string]any{"n": 2}, want: 2},
		{name: "numeric_string", args: map[string]any{"n": " 7 "}, want: 7},
		{name: "garbage_string", args: map[string]any{"n": "many"}, want: 0},
		{name: "missing", args: map[string]any{}, want: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := argInt(tc.args, "n"); got != tc.want {
				t.Fatalf("argInt=%d, want %d", got, tc.want)
			}
		})
	}
}

func testTurnScope() TurnScope {
	return TurnScope{
		ProjectID: uuid.New(),
		UserID:    uuid.New(),
		ChatID:    uuid.New(),
		MessageID: uuid.New(),
	}
}

type capturedFrame struct {
	kind   string
	fields map[string]any
}

func frameKinds(frames []capturedFrame) string {
	kinds := make([]string, 0, len(frames))
	for _, f := range frames {
		kinds = append(kinds, f.kind)
	}
	return strings.Join(kinds, ",")
}

type fakeMemoryService struct {
	createCalls     int
	updateCalls     int
	deactivateCalls int
	lastContent     string
	lastCategory    string
	lastImportance  int
	lastMemoryID    uuid.UUID
	lastUpdate      MemoryUpdate
	err             error
}

func (f *fakeMemoryService) ListActive(_ context.Context, _, _ uuid.UUID) ([]*types.Memory, error) {
	return nil, nil
}

func (f *fakeMemoryService) Create(_ context.Context, _, _ uuid.UUID, content, category string, importance int) (*types.Memory, error) {
	f.createCalls++
	f.lastContent = content
	f.lastCategory = category
	f.lastImportance = importance
	if f.err != nil {
		return nil, f.err
	}
	return &types.Memory{ID: uuid.New(), Content: content, Category: category, Importance: importance}, nil
}

func (f *fakeMemoryService) Update(_ context.Context, _, _, memoryID uuid.UUID, fields MemoryUpdate) (*types.Memory, error) {
	f.updateCalls++
	f.lastMemoryID = memoryID
	f.lastUpdate = fields
	if f.err != nil {
		return nil, f.err
	}
	return &types.Memory{ID: memoryID}, nil
}

func (f *fakeMemoryService) Deactivate(_ context.Context, _, _, memoryID uuid.UUID) error {
	f.deactivateCalls++
	f.lastMemoryID = memoryID
	return f.err
}

type fakeArtifactService struct {
	createCalls  int
	updateCalls  int
	archiveCalls int
	lastType     string
	lastTitle    string
	lastContent  map[string]any
	lastUpdate   ArtifactUpdate
	lastID       uuid.UUID
	err          error
}

func (f *fakeArtifactService) ListByProject(_ context.Context, _, _ uuid.UUID) ([]*types.Artifact, error) {
	return nil, nil
}

func (f *fakeArtifactService) ListActiveByProject(_ context.Context, _, _ uuid.UUID) ([]*types.Artifact, error) {
	return nil, nil
}

func (f *fakeArtifactService) GetOwned(_ context.Context, artifactID, _, _ uuid.UUID) (*types.Artifact, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &types.Artifact{ID: artifactID, Type: types.ArtifactTypeLesson, Title: "Existing lesson", Version: 2}, nil
}

func (f *fakeArtifactService) Create(_ context.Context, _, _ uuid.UUID, _, _ *uuid.UUID, artifactType, title, _ string, content map[string]any) (*types.Artifact, error) {
	f.createCalls++
	f.lastType = artifactType
	f.lastTitle = title
	f.lastContent = content
	if f.err != nil {
		return nil, f.err
	}
	return &types.Artifact{ID: uuid.New(), Type: artifactType, Title: title, Version: 1}, nil
}

func (f *fakeArtifactService) Update(_ context.Context, _, _, artifactID uuid.UUID, update ArtifactUpdate) (*types.Artifact, error) {
	f.updateCalls++
	f.lastID = artifactID
	f.lastUpdate = update
	if f.err != nil {
		return nil, f.err
	}
	return &types.Artifact{ID: artifactID, Type: types.ArtifactTypeLesson, Title: "Updated lesson", Version: 2}, nil
}

func (f *fakeArtifactService) Archive(_ context.Context, _, _, artifactID uuid.UUID) error {
	f.archiveCalls++
	f.lastID = artifactID
	return f.err
}

type fakeTurnNotifier struct {
	artifactCalls int
	lastAction    string
	lastArtifact  *types.Artifact
}

func (f *fakeTurnNotifier) MaterialStatusChanged(_ context.Context, _ uuid.UUID, _ *types.Material) {}

func (f *fakeTurnNotifier) AssessmentStatusChanged(_ context.Context, _ uuid.UUID, _ *types.Assessment) {
}

func (f *fakeTurnNotifier) ArtifactChanged(_ context.Context, _ uuid.UUID, action string, artifact *types.Artifact) {
	f.artifactCalls++
	f.lastAction = action
	f.lastArtifact = artifact
}

func (f *fakeTurnNotifier) AvatarUpdated(_ context.Context, _ uuid.UUID, _ string) {}
