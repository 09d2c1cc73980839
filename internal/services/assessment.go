package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"google.golang.org/genai"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/studypilot-backend/internal/pkg/dbctx"
	"github.com/yungbote/studypilot-backend/internal/pkg/logger"
	"github.com/yungbote/studypilot-backend/internal/repos"
	"github.com/yungbote/studypilot-backend/internal/sse"
	"github.com/yungbote/studypilot-backend/internal/types"
)

const (
	minQuestionCount     = 5
	maxQuestionCount     = 30
	defaultQuestionCount = 10
)

// AssessmentSettings is the generation request body. Everything is optional;
// out-of-range values are clamped, unknown question types dropped.
type AssessmentSettings struct {
	Title         string   `json:"title"`
	QuestionCount int      `json:"question_count"`
	QuestionTypes []string `json:"question_types"`
	Difficulty    string   `json:"difficulty"`
	Focus         string   `json:"focus"`
	Instructions  string   `json:"instructions"`
	MaterialIDs   []string `json:"material_ids"`
}

type AssessmentService interface {
	Generate(ctx context.Context, stream *sse.Stream, projectID, userID uuid.UUID, settings AssessmentSettings)
	ListByProject(ctx context.Context, projectID, userID uuid.UUID) ([]*types.Assessment, error)
	GetOwned(ctx context.Context, assessmentID, projectID, userID uuid.UUID) (*types.Assessment, error)
	Delete(ctx context.Context, assessmentID, projectID, userID uuid.UUID) error
	SubmitAttempt(ctx context.Context, projectID, userID, assessmentID uuid.UUID, answers map[string]any) (*types.AssessmentAttempt, error)
	ListAttempts(ctx context.Context, projectID, userID, assessmentID uuid.UUID) ([]*types.AssessmentAttempt, error)
}

type assessmentService struct {
	db  *gorm.DB
	log *logger.Logger

	projectRepo  repos.ProjectRepo
	materialRepo repos.MaterialRepo
	repo         repos.AssessmentRepo
	attemptRepo  repos.AssessmentAttemptRepo

	gemini   GeminiClient
	notifier Notifier
}

func NewAssessmentService(
	db *gorm.DB,
	baseLog *logger.Logger,
	projectRepo repos.ProjectRepo,
	materialRepo repos.MaterialRepo,
	assessmentRepo repos.AssessmentRepo,
	attemptRepo repos.AssessmentAttemptRepo,
	gemini GeminiClient,
	notifier Notifier,
) AssessmentService {
	return &assessmentService{
		db:           db,
		log:          baseLog.With("service", "AssessmentService"),
		projectRepo:  projectRepo,
		materialRepo: materialRepo,
		repo:         assessmentRepo,
		attemptRepo:  attemptRepo,
		gemini:       gemini,
		notifier:     notifier,
	}
}

// Generate runs the one-shot structured generation over the project's ready
// materials, streaming progress frames while the model works. The assessment
// row is created up front in `generating` and flipped to ready or failed.
func (as *assessmentService) Generate(ctx context.Context, stream *sse.Stream, projectID, userID uuid.UUID, settings AssessmentSettings) {
	dbc := dbctx.Context{Ctx: ctx}
	catalog := currentQuestionCatalog(as.log)
	settings = normalizeAssessmentSettings(catalog, settings)

	project, err := as.projectRepo.GetOwned(dbc, projectID, userID)
	if err != nil {
		stream.SendError("project not found")
		return
	}

	materials, err := as.materialRepo.ListReadyByProject(dbc, projectID, userID)
	if err != nil {
		as.log.Error("Failed to list materials", "project_id", projectID, "error", err)
		stream.SendError("failed to load materials")
		return
	}
	if len(settings.MaterialIDs) > 0 {
		wanted := lo.SliceToMap(settings.MaterialIDs, func(id string) (string, bool) { return id, true })
		materials = lo.Filter(materials, func(m *types.Material, _ int) bool {
			return wanted[m.ID.String()]
		})
	}
	if len(materials) == 0 {
		stream.SendError("no ready materials to generate from")
		return
	}

	stream.Send(sse.EventMetadata, map[string]any{
		"has_videos": lo.SomeBy(materials, func(m *types.Material) bool {
			return m.Kind == types.MaterialKindVideo || m.Kind == types.MaterialKindYouTube
		}),
		"has_files": lo.SomeBy(materials, func(m *types.Material) bool {
			return m.Kind == types.MaterialKindPDF
		}),
		"has_text": lo.SomeBy(materials, func(m *types.Material) bool {
			return m.Kind == types.MaterialKindText
		}),
		"material_count": len(materials),
	})

	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		stream.SendError("invalid settings")
		return
	}
	assessment := &types.Assessment{
		ID:        uuid.New(),
		ProjectID: projectID,
		UserID:    userID,
		Title:     settings.Title,
		Status:    types.AssessmentStatusGenerating,
		Settings:  datatypes.JSON(settingsJSON),
	}
	if _, err := as.repo.Create(dbc, []*types.Assessment{assessment}); err != nil {
		as.log.Error("Failed to create assessment", "project_id", projectID, "error", err)
		stream.SendError("failed to create assessment")
		return
	}

	system, user := buildAssessmentPrompt(project, materials, settings)
	raw, err := as.gemini.GenerateJSON(ctx, JSONRequest{
		System: system,
		User:   user,
		Schema: assessmentResponseSchema(settings),
	}, StreamCallbacks{
		OnDelta: func(text string) {
			stream.Send(sse.EventContent, map[string]any{"delta": text})
		},
		OnThought: func(text string) {
			stream.Send(sse.EventThinking, map[string]any{"text": text})
		},
	})
	if err != nil {
		as.failAssessment(dbc, assessment, userID, "generation failed")
		as.log.Error("Assessment generation failed", "assessment_id", assessment.ID, "error", err)
		stream.SendError("generation failed")
		return
	}

	var generated struct {
		Questions []map[string]any `json:"questions"`
	}
	if err := json.Unmarshal(raw, &generated); err != nil {
		as.failAssessment(dbc, assessment, userID, "malformed generation output")
		as.log.Error("Assessment output did not parse", "assessment_id", assessment.ID, "error", err)
		stream.SendError("generation returned malformed output")
		return
	}

	questions := validateQuestions(catalog, generated.Questions)
	if dropped := len(generated.Questions) - len(questions); dropped > 0 {
		as.log.Warn("Dropped invalid questions", "assessment_id", assessment.ID, "dropped", dropped, "kept", len(questions))
	}
	if len(questions) == 0 {
		as.failAssessment(dbc, assessment, userID, "no valid questions")
		stream.SendError("no valid questions")
		return
	}

	questionsJSON, err := json.Marshal(questions)
	if err != nil {
		as.failAssessment(dbc, assessment, userID, "failed to encode questions")
		stream.SendError("failed to save assessment")
		return
	}
	if err := as.repo.UpdateFields(dbc, assessment.ID, map[string]interface{}{
		"status":    types.AssessmentStatusReady,
		"questions": datatypes.JSON(questionsJSON),
	}); err != nil {
		as.log.Error("Failed to persist questions", "assessment_id", assessment.ID, "error", err)
		stream.SendError("failed to save assessment")
		return
	}
	assessment.Status = types.AssessmentStatusReady
	as.notifier.AssessmentStatusChanged(ctx, userID, assessment)

	stream.Send(sse.EventComplete, map[string]any{
		"assessment_id":  assessment.ID.String(),
		"title":          assessment.Title,
		"question_count": len(questions),
		"questions":      questions,
	})
}

func (as *assessmentService) failAssessment(dbc dbctx.Context, assessment *types.Assessment, userID uuid.UUID, reason string) {
	if err := as.repo.UpdateFields(dbc, assessment.ID, map[string]interface{}{
		"status": types.AssessmentStatusFailed,
		"error":  reason,
	}); err != nil {
		as.log.Warn("Failed to mark assessment failed", "assessment_id", assessment.ID, "error", err)
	}
	assessment.Status = types.AssessmentStatusFailed
	assessment.Error = reason
	as.notifier.AssessmentStatusChanged(dbc.Ctx, userID, assessment)
}

func (as *assessmentService) ListByProject(ctx context.Context, projectID, userID uuid.UUID) ([]*types.Assessment, error) {
	return as.repo.ListByProject(dbctx.Context{Ctx: ctx}, projectID, userID)
}

func (as *assessmentService) GetOwned(ctx context.Context, assessmentID, projectID, userID uuid.UUID) (*types.Assessment, error) {
	return as.repo.GetOwned(dbctx.Context{Ctx: ctx}, assessmentID, projectID, userID)
}

func (as *assessmentService) Delete(ctx context.Context, assessmentID, projectID, userID uuid.UUID) error {
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := as.repo.GetOwned(dbc, assessmentID, projectID, userID); err != nil {
		return err
	}
	return as.repo.SoftDelete(dbc, assessmentID, projectID, userID)
}

func normalizeAssessmentSettings(catalog *questionCatalog, settings AssessmentSettings) AssessmentSettings {
	settings.Title = strings.TrimSpace(settings.Title)
	if settings.Title == "" {
		settings.Title = "Practice assessment"
	}

	if settings.QuestionCount == 0 {
		settings.QuestionCount = defaultQuestionCount
	}
	if settings.QuestionCount < minQuestionCount {
		settings.QuestionCount = minQuestionCount
	}
	if settings.QuestionCount > maxQuestionCount {
		settings.QuestionCount = maxQuestionCount
	}

	settings.QuestionTypes = lo.Uniq(lo.FilterMap(settings.QuestionTypes, func(t string, _ int) (string, bool) {
		t = strings.ToLower(strings.TrimSpace(t))
		_, known := catalog.Rules[t]
		return t, known
	}))
	if len(settings.QuestionTypes) == 0 {
		settings.QuestionTypes = []string{
			types.QuestionTypeMultipleChoice,
			types.QuestionTypeTrueFalse,
			types.QuestionTypeShortAnswer,
		}
	}

	settings.Difficulty = strings.ToLower(strings.TrimSpace(settings.Difficulty))
	if !catalog.Difficulties[settings.Difficulty] {
		settings.Difficulty = catalog.DefaultDifficulty
	}
	return settings
}

// validateQuestions enforces the per-type rules from the catalog and applies
// defaults. Invalid rows are dropped, never repaired into something the model
// did not say.
func validateQuestions(catalog *questionCatalog, raw []map[string]any) []map[string]any {
	questions := make([]map[string]any, 0, len(raw))

	for _, q := range raw {
		if q == nil {
			continue
		}

		text := strings.TrimSpace(argString(q, "question"))
		if text == "" {
			continue
		}
		questionType := strings.ToLower(strings.TrimSpace(argString(q, "type")))
		rule, known := catalog.Rules[questionType]
		if !known {
			continue
		}

		options := normalizeOptions(q["options"])
		if rule.RequireOptions {
			if len(options) < 2 || len(options) < rule.MinOptions {
				continue
			}
			if rule.ExactOptions > 0 && len(options) != rule.ExactOptions {
				continue
			}
		}

		answer, answerOK := normalizeCorrectAnswer(rule, q["correctAnswer"])
		if !answerOK {
			continue
		}

		out := map[string]any{
			"id":         uuid.NewString(),
			"type":       questionType,
			"question":   text,
			"points":     normalizePoints(catalog, q["points"]),
			"difficulty": normalizeDifficulty(catalog, argString(q, "difficulty")),
		}
		if len(options) > 0 {
			out["options"] = options
		}
		if answer != nil {
			out["correctAnswer"] = answer
		}
		for _, key := range []string{"explanation", "topic", "hint"} {
			if v := strings.TrimSpace(argString(q, key)); v != "" {
				out[key] = v
			}
		}
		questions = append(questions, out)
	}
	return questions
}

func normalizeOptions(v any) []string {
	raw, _ := v.([]any)
	options := make([]string, 0, len(raw))
	for _, o := range raw {
		if s := strings.TrimSpace(stringifyAnswer(o)); s != "" {
			options = append(options, s)
		}
	}
	return options
}

// normalizeCorrectAnswer unwraps the uniform array the response schema asks
// for. List-answer types must stay lists; single-answer types take the first
// entry.
func normalizeCorrectAnswer(rule QuestionRule, v any) (any, bool) {
	if rule.ListAnswer {
		raw, ok := v.([]any)
		if !ok {
			return nil, false
		}
		answers := make([]string, 0, len(raw))
		for _, a := range raw {
			if s := strings.TrimSpace(stringifyAnswer(a)); s != "" {
				answers = append(answers, s)
			}
		}
		if len(answers) == 0 {
			return nil, false
		}
		return answers, true
	}

	switch a := v.(type) {
	case nil:
		return nil, true
	case []any:
		if len(a) == 0 {
			return nil, true
		}
		return strings.TrimSpace(stringifyAnswer(a[0])), true
	default:
		return strings.TrimSpace(stringifyAnswer(a)), true
	}
}

func stringifyAnswer(v any) string {
	switch a := v.(type) {
	case string:
		return a
	case bool:
		if a {
			return "True"
		}
		return "False"
	case float64:
		return strconv.FormatFloat(a, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", a)
	}
}

func normalizePoints(catalog *questionCatalog, v any) float64 {
	switch p := v.(type) {
	case float64:
		if p > 0 {
			return p
		}
	case int:
		if p > 0 {
			return float64(p)
		}
	}
	return catalog.DefaultPoints
}

func normalizeDifficulty(catalog *questionCatalog, d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	if !catalog.Difficulties[d] {
		return catalog.DefaultDifficulty
	}
	return d
}

func buildAssessmentPrompt(project *types.Project, materials []*types.Material, settings AssessmentSettings) (string, string) {
	var system strings.Builder
	system.WriteString("You are an assessment author. Write exam questions strictly grounded in the study materials provided.\n\n")
	system.WriteString("Rules:\n")
	system.WriteString(fmt.Sprintf("- Produce exactly %d questions.\n", settings.QuestionCount))
	system.WriteString(fmt.Sprintf("- Use only these question types: %s.\n", strings.Join(settings.QuestionTypes, ", ")))
	system.WriteString(fmt.Sprintf("- Target difficulty: %s.\n", settings.Difficulty))
	system.WriteString("- multiple_choice and multiple_select need at least 2 options; true_false needs exactly the options \"True\" and \"False\".\n")
	system.WriteString("- correctAnswer is always an array: one entry for single-answer types, every correct option for multiple_select, one entry per blank for fill_blank.\n")
	system.WriteString("- For fill_blank, mark each blank in the question text with ____.\n")
	system.WriteString("- Every question gets a short explanation of the correct answer.\n")

	var user strings.Builder
	user.WriteString(fmt.Sprintf("Project: %s\n", project.Name))
	if settings.Focus != "" {
		user.WriteString(fmt.Sprintf("Focus on: %s\n", settings.Focus))
	}
	if settings.Instructions != "" {
		user.WriteString(fmt.Sprintf("Additional instructions: %s\n", settings.Instructions))
	}
	user.WriteString("\nStudy materials:\n")
	for _, m := range materials {
		user.WriteString(fmt.Sprintf("\n## %s (%s)\n", m.Name, m.Kind))
		if m.Summary != "" {
			user.WriteString(m.Summary + "\n")
		}
		if m.ExtractedText != "" {
			user.WriteString(truncateRunes(m.ExtractedText, 4000) + "\n")
		}
	}
	return system.String(), user.String()
}

func assessmentResponseSchema(settings AssessmentSettings) *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"questions": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"type":          {Type: genai.TypeString, Enum: settings.QuestionTypes},
						"question":      {Type: genai.TypeString},
						"options":       {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
						"correctAnswer": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
						"explanation":   {Type: genai.TypeString},
						"points":        {Type: genai.TypeNumber},
						"difficulty":    {Type: genai.TypeString, Enum: []string{"easy", "medium", "hard"}},
						"topic":         {Type: genai.TypeString},
						"hint":          {Type: genai.TypeString},
					},
					Required: []string{"type", "question", "correctAnswer"},
				},
			},
		},
		Required: []string{"questions"},
	}
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
