package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/studypilot-backend/internal/pkg/dbctx"
	"github.com/yungbote/studypilot-backend/internal/pkg/logger"
	"github.com/yungbote/studypilot-backend/internal/types"
)

func TestGradeQuestionObjectiveTypes(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	svc := &assessmentService{log: log}

	cases := []struct {
		name         string
		question     map[string]any
		answer       any
		maxPoints    float64
		wantPoints   float64
		wantCorrect  bool
		wantFeedback string
		wantReview   bool
	}{
		{
			name:         "multiple_choice_correct_ignores_case_and_space",
			question:     map[string]any{"type": types.QuestionTypeMultipleChoice, "correctAnswer": "Paris"},
			answer:       "  paris ",
			maxPoints:    2,
			wantPoints:   2,
			wantCorrect:  true,
			wantFeedback: "Correct.",
		},
		{
			name:         "multiple_choice_wrong",
			question:     map[string]any{"type": types.QuestionTypeMultipleChoice, "correctAnswer": "Paris", "explanation": "Paris is the capital."},
			answer:       "Lyon",
			maxPoints:    2,
			wantPoints:   0,
			wantFeedback: "Paris is the capital.",
		},
		{
			name:         "multiple_choice_missing_expected_never_correct",
			question:     map[string]any{"type": types.QuestionTypeMultipleChoice},
			answer:       "anything",
			maxPoints:    1,
			wantPoints:   0,
			wantFeedback: "Incorrect.",
		},
		{
			name:         "true_false_bool_answer",
			question:     map[string]any{"type": types.QuestionTypeTrueFalse, "correctAnswer": "True"},
			answer:       true,
			maxPoints:    1,
			wantPoints:   1,
			wantCorrect:  true,
			wantFeedback: "Correct.",
		},
		{
			name:         "multiple_select_order_insensitive",
			question:     map[string]any{"type": types.QuestionTypeMultipleSelect, "correctAnswer": []any{"A", "B"}},
			answer:       []any{"b", "a"},
			maxPoints:    3,
			wantPoints:   3,
			wantCorrect:  true,
			wantFeedback: "Correct.",
		},
		{
			name:         "multiple_select_extra_selection",
			question:     map[string]any{"type": types.QuestionTypeMultipleSelect, "correctAnswer": []any{"A", "B"}},
			answer:       []any{"A", "B", "C"},
			maxPoints:    3,
			wantPoints:   0,
			wantFeedback: "Incorrect.",
		},
		{
			name:         "fill_blank_in_order",
			question:     map[string]any{"type": types.QuestionTypeFillBlank, "correctAnswer": []any{"cell", "membrane"}},
			answer:       []any{"Cell", "Membrane"},
			maxPoints:    2,
			wantPoints:   2,
			wantCorrect:  true,
			wantFeedback: "Correct.",
		},
		{
			name:         "fill_blank_order_matters",
			question:     map[string]any{"type": types.QuestionTypeFillBlank, "correctAnswer": []any{"cell", "membrane"}},
			answer:       []any{"membrane", "cell"},
			maxPoints:    2,
			wantPoints:   0,
			wantFeedback: "Incorrect.",
		},
		{
			name:         "empty_answer",
			question:     map[string]any{"type": types.QuestionTypeMultipleChoice, "correctAnswer": "Paris"},
			answer:       "   ",
			maxPoints:    2,
			wantPoints:   0,
			wantFeedback: "No answer provided.",
		},
		{
			name:         "unknown_type_flags_review",
			question:     map[string]any{"type": "matching", "correctAnswer": "A"},
			answer:       "A",
			maxPoints:    1,
			wantPoints:   0,
			wantFeedback: manualReviewFeedback,
			wantReview:   true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := svc.gradeQuestion(context.Background(), tc.question, tc.answer, tc.maxPoints)
			if got.PointsEarned != tc.wantPoints {
				t.Fatalf("points: want=%v got=%v", tc.wantPoints, got.PointsEarned)
			}
			if got.IsCorrect != tc.wantCorrect {
				t.Fatalf("isCorrect: want=%v got=%v", tc.wantCorrect, got.IsCorrect)
			}
			if got.Feedback != tc.wantFeedback {
				t.Fatalf("feedback: want=%q got=%q", tc.wantFeedback, got.Feedback)
			}
			if got.NeedsReview != tc.wantReview {
				t.Fatalf("needsReview: want=%v got=%v", tc.wantReview, got.NeedsReview)
			}
		})
	}
}

func TestGradeAnswerWithModel(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}

	cases := []struct {
		name        string
		response    string
		err         error
		wantPoints  float64
		wantCorrect bool
		wantReview  bool
	}{
		{
			name:        "partial_credit",
			response:    `{"pointsEarned": 4.5, "feedback": "Mostly right.", "confidence": 0.8}`,
			wantPoints:  4.5,
			wantCorrect: true,
		},
		{
			name:        "points_clamped_to_max",
			response:    `{"pointsEarned": 12, "feedback": "Over-generous.", "confidence": 1.5}`,
			wantPoints:  5,
			wantCorrect: true,
		},
		{
			name:       "below_threshold",
			response:   `{"pointsEarned": 3, "feedback": "Half there.", "confidence": 0.9}`,
			wantPoints: 3,
		},
		{
			name:       "provider_error_degrades",
			err:        errors.New("rate limited"),
			wantReview: true,
		},
		{
			name:       "garbage_output_degrades",
			response:   "not json",
			wantReview: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gemini := &fakeGeminiClient{response: json.RawMessage(tc.response), err: tc.err}
			svc := &assessmentService{log: log, gemini: gemini}

			got := svc.gradeAnswerWithModel(context.Background(), "Explain osmosis.", "Movement of water.", "Water moves.", 5)
			if got.PointsEarned != tc.wantPoints {
				t.Fatalf("points: want=%v got=%v", tc.wantPoints, got.PointsEarned)
			}
			if got.IsCorrect != tc.wantCorrect {
				t.Fatalf("isCorrect: want=%v got=%v", tc.wantCorrect, got.IsCorrect)
			}
			if got.NeedsReview != tc.wantReview {
				t.Fatalf("needsReview: want=%v got=%v", tc.wantReview, got.NeedsReview)
			}
			if tc.wantReview && got.Feedback != manualReviewFeedback {
				t.Fatalf("feedback: want manual review message, got=%q", got.Feedback)
			}
			if got.Confidence < 0 || got.Confidence > 1 {
				t.Fatalf("confidence out of range: %v", got.Confidence)
			}
		})
	}
}

func TestSubmitAttemptGradesObjectiveQuestions(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}

	questions := []map[string]any{
		{
			"id":            "q1",
			"type":          types.QuestionTypeMultipleChoice,
			"question":      "Capital of France?",
			"options":       []string{"Paris", "Lyon"},
			"correctAnswer": "Paris",
			"points":        2,
			"explanation":   "Paris is the capital.",
		},
		{
			"id":            "q2",
			"type":          types.QuestionTypeFillBlank,
			"question":      "Water is ____.",
			"correctAnswer": []string{"wet"},
			"points":        1,
		},
	}
	questionsJSON, err := json.Marshal(questions)
	if err != nil {
		t.Fatalf("marshal questions: %v", err)
	}

	assessmentID := uuid.New()
	repo := &fakeAssessmentRepo{assessment: &types.Assessment{
		ID:        assessmentID,
		Status:    types.AssessmentStatusReady,
		Questions: datatypes.JSON(questionsJSON),
	}}
	attempts := &fakeAttemptRepo{}
	svc := &assessmentService{log: log, repo: repo, attemptRepo: attempts}

	attempt, err := svc.SubmitAttempt(context.Background(), uuid.New(), uuid.New(), assessmentID, map[string]any{
		"q1": "paris",
		"q2": []any{"dry"},
	})
	if err != nil {
		t.Fatalf("SubmitAttempt: %v", err)
	}

	if attempt.Score != 2 {
		t.Fatalf("score: want=2 got=%v", attempt.Score)
	}
	if attempt.MaxScore != 3 {
		t.Fatalf("max score: want=3 got=%v", attempt.MaxScore)
	}
	if attempt.Status != types.AttemptStatusGraded {
		t.Fatalf("status: want=%q got=%q", types.AttemptStatusGraded, attempt.Status)
	}
	if attempt.CompletedAt == nil {
		t.Fatalf("completed at: want set")
	}
	if len(attempts.created) != 1 {
		t.Fatalf("persisted attempt count: want=1 got=%d", len(attempts.created))
	}

	var results []map[string]any
	if err := json.Unmarshal(attempt.Results, &results); err != nil {
		t.Fatalf("unmarshal results: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("result count: want=2 got=%d", len(results))
	}
	if results[0]["question_id"] != "q1" || results[0]["isCorrect"] != true {
		t.Fatalf("first result: got=%v", results[0])
	}
	if results[0]["feedback"] != "Paris is the capital." {
		t.Fatalf("first feedback: got=%v", results[0]["feedback"])
	}
	if results[1]["isCorrect"] != false {
		t.Fatalf("second result should be wrong: got=%v", results[1])
	}
}

func TestSubmitAttemptRejectsUnreadyAssessment(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}

	repo := &fakeAssessmentRepo{assessment: &types.Assessment{
		ID:     uuid.New(),
		Status: types.AssessmentStatusGenerating,
	}}
	svc := &assessmentService{log: log, repo: repo, attemptRepo: &fakeAttemptRepo{}}

	_, err = svc.SubmitAttempt(context.Background(), uuid.New(), uuid.New(), uuid.New(), map[string]any{})
	if err == nil {
		t.Fatalf("SubmitAttempt: expected error for generating assessment")
	}
	if err.Error() != "assessment is not ready" {
		t.Fatalf("error: got=%q", err.Error())
	}
}

func TestAnswerSetsEqual(t *testing.T) {
	cases := []struct {
		name     string
		expected any
		given    any
		want     bool
	}{
		{name: "same_order", expected: []any{"A", "B"}, given: []any{"A", "B"}, want: true},
		{name: "different_order", expected: []any{"A", "B"}, given: []any{"b", "a"}, want: true},
		{name: "missing_entry", expected: []any{"A", "B"}, given: []any{"A"}, want: false},
		{name: "extra_entry", expected: []any{"A"}, given: []any{"A", "B"}, want: false},
		{name: "empty_expected", expected: []any{}, given: []any{}, want: false},
		{name: "single_string", expected: "A", given: []any{"a"}, want: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := answerSetsEqual(tc.expected, tc.given); got != tc.want {
				t.Fatalf("answerSetsEqual=%v, want %v", got, tc.want)
			}
		})
	}
}

func TestAnswerListsEqual(t *testing.T) {
	cases := []struct {
		name     string
		expected any
		given    any
		want     bool
	}{
		{name: "in_order", expected: []any{"cell", "wall"}, given: []any{" Cell ", "WALL"}, want: true},
		{name: "swapped", expected: []any{"cell", "wall"}, given: []any{"wall", "cell"}, want: false},
		{name: "length_mismatch", expected: []any{"cell"}, given: []any{"cell", "wall"}, want: false},
		{name: "empty", expected: nil, given: nil, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := answerListsEqual(tc.expected, tc.given); got != tc.want {
				t.Fatalf("answerListsEqual=%v, want %v", got, tc.want)
			}
		})
	}
}

func TestClampFloat(t *testing.T) {
	cases := []struct {
		name string
		v    float64
		want float64
	}{
		{name: "below", v: -1, want: 0},
		{name: "inside", v: 3.5, want: 3.5},
		{name: "above", v: 9, want: 5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := clampFloat(tc.v, 0, 5); got != tc.want {
				t.Fatalf("clampFloat(%v)=%v, want %v", tc.v, got, tc.want)
			}
		})
	}
}

type fakeGeminiClient struct {
	jsonCalls int
	lastJSON  JSONRequest
	response  json.RawMessage
	err       error
}

func (f *fakeGeminiClient) StreamChat(_ context.Context, _ ChatRequest, _ StreamCallbacks) (*ChatResult, error) {
	return &ChatResult{}, nil
}

func (f *fakeGeminiClient) GenerateJSON(_ context.Context, req JSONRequest, _ StreamCallbacks) (json.RawMessage, error) {
	f.jsonCalls++
	f.lastJSON = req
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func (f *fakeGeminiClient) UploadFile(_ context.Context, _ io.Reader, mimeType, _ string) (*ProviderFile, error) {
	return &ProviderFile{Name: "files/fake", URI: "https://files.fake/1", MimeType: mimeType}, nil
}

type fakeAssessmentRepo struct {
	assessment *types.Assessment
	getErr     error
	updates    []map[string]interface{}
}

func (f *fakeAssessmentRepo) Create(_ dbctx.Context, assessments []*types.Assessment) ([]*types.Assessment, error) {
	return assessments, nil
}

func (f *fakeAssessmentRepo) GetOwned(_ dbctx.Context, _, _, _ uuid.UUID) (*types.Assessment, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.assessment, nil
}

func (f *fakeAssessmentRepo) ListByProject(_ dbctx.Context, _, _ uuid.UUID) ([]*types.Assessment, error) {
	return nil, nil
}

func (f *fakeAssessmentRepo) UpdateFields(_ dbctx.Context, _ uuid.UUID, updates map[string]interface{}) error {
	f.updates = append(f.updates, updates)
	return nil
}

func (f *fakeAssessmentRepo) SoftDelete(_ dbctx.Context, _, _, _ uuid.UUID) error {
	return nil
}

type fakeAttemptRepo struct {
	created []*types.AssessmentAttempt
}

func (f *fakeAttemptRepo) Create(_ dbctx.Context, attempts []*types.AssessmentAttempt) ([]*types.AssessmentAttempt, error) {
	f.created = append(f.created, attempts...)
	return attempts, nil
}

func (f *fakeAttemptRepo) GetOwned(_ dbctx.Context, _, _, _ uuid.UUID) (*types.AssessmentAttempt, error) {
	return nil, nil
}

func (f *fakeAttemptRepo) ListByAssessment(_ dbctx.Context, _, _ uuid.UUID) ([]*types.AssessmentAttempt, error) {
	return f.created, nil
}

func (f *fakeAttemptRepo) UpdateFields(_ dbctx.Context, _ uuid.UUID, _ map[string]interface{}) error {
	return nil
}
