package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"
	"gorm.io/datatypes"

	"github.com/yungbote/studypilot-backend/internal/pkg/dbctx"
	"github.com/yungbote/studypilot-backend/internal/types"
)

// GradeResult is the grading outcome for a single answer.
type GradeResult struct {
	PointsEarned float64 `json:"pointsEarned"`
	IsCorrect    bool    `json:"isCorrect"`
	Feedback     string  `json:"feedback"`
	Confidence   float64 `json:"confidence"`
	NeedsReview  bool    `json:"needsReview,omitempty"`
}

const correctThreshold = 0.7

const manualReviewFeedback = "This answer could not be graded automatically and has been flagged for manual review."

// SubmitAttempt grades every question against the submitted answers and
// stores the attempt. Objective types are matched locally; free-text types go
// through the model, degrading to a manual-review result on any failure.
func (as *assessmentService) SubmitAttempt(ctx context.Context, projectID, userID, assessmentID uuid.UUID, answers map[string]any) (*types.AssessmentAttempt, error) {
	dbc := dbctx.Context{Ctx: ctx}

	assessment, err := as.repo.GetOwned(dbc, assessmentID, projectID, userID)
	if err != nil {
		return nil, err
	}
	if assessment.Status != types.AssessmentStatusReady {
		return nil, fmt.Errorf("assessment is not ready")
	}

	var questions []map[string]any
	if err := json.Unmarshal(assessment.Questions, &questions); err != nil {
		return nil, fmt.Errorf("failed to decode assessment questions: %w", err)
	}

	var score, maxScore float64
	results := make([]map[string]any, 0, len(questions))
	for _, q := range questions {
		questionID := argString(q, "id")
		maxPoints := normalizePoints(currentQuestionCatalog(as.log), q["points"])
		answer := answers[questionID]

		grade := as.gradeQuestion(ctx, q, answer, maxPoints)
		score += grade.PointsEarned
		maxScore += maxPoints

		result := map[string]any{
			"question_id":  questionID,
			"type":         argString(q, "type"),
			"answer":       answer,
			"maxPoints":    maxPoints,
			"pointsEarned": grade.PointsEarned,
			"isCorrect":    grade.IsCorrect,
			"feedback":     grade.Feedback,
			"confidence":   grade.Confidence,
		}
		if grade.NeedsReview {
			result["needsReview"] = true
		}
		results = append(results, result)
	}

	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode answers: %w", err)
	}
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("failed to encode results: %w", err)
	}

	now := time.Now()
	attempt := &types.AssessmentAttempt{
		ID:           uuid.New(),
		AssessmentID: assessmentID,
		ProjectID:    projectID,
		UserID:       userID,
		Answers:      datatypes.JSON(answersJSON),
		Results:      datatypes.JSON(resultsJSON),
		Score:        score,
		MaxScore:     maxScore,
		Status:       types.AttemptStatusGraded,
		CompletedAt:  &now,
	}
	created, err := as.attemptRepo.Create(dbc, []*types.AssessmentAttempt{attempt})
	if err != nil {
		return nil, fmt.Errorf("failed to save attempt: %w", err)
	}
	return created[0], nil
}

func (as *assessmentService) ListAttempts(ctx context.Context, projectID, userID, assessmentID uuid.UUID) ([]*types.AssessmentAttempt, error) {
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := as.repo.GetOwned(dbc, assessmentID, projectID, userID); err != nil {
		return nil, err
	}
	return as.attemptRepo.ListByAssessment(dbc, assessmentID, userID)
}

func (as *assessmentService) gradeQuestion(ctx context.Context, q map[string]any, answer any, maxPoints float64) GradeResult {
	if answer == nil || strings.TrimSpace(stringifyAnswer(answer)) == "" {
		return GradeResult{Feedback: "No answer provided.", Confidence: 1}
	}

	explanation := argString(q, "explanation")
	questionType := argString(q, "type")

	switch questionType {
	case types.QuestionTypeMultipleChoice, types.QuestionTypeTrueFalse:
		expected := normalizeAnswerText(stringifyAnswer(q["correctAnswer"]))
		given := normalizeAnswerText(stringifyAnswer(answer))
		return objectiveResult(expected != "" && given == expected, maxPoints, explanation)

	case types.QuestionTypeMultipleSelect:
		return objectiveResult(answerSetsEqual(q["correctAnswer"], answer), maxPoints, explanation)

	case types.QuestionTypeFillBlank:
		return objectiveResult(answerListsEqual(q["correctAnswer"], answer), maxPoints, explanation)

	case types.QuestionTypeShortAnswer, types.QuestionTypeEssay:
		return as.gradeAnswerWithModel(ctx,
			argString(q, "question"),
			stringifyAnswer(q["correctAnswer"]),
			stringifyAnswer(answer),
			maxPoints)
	}

	return GradeResult{Feedback: manualReviewFeedback, NeedsReview: true}
}

func objectiveResult(correct bool, maxPoints float64, explanation string) GradeResult {
	result := GradeResult{Confidence: 1, Feedback: explanation}
	if correct {
		result.PointsEarned = maxPoints
		result.IsCorrect = true
		if result.Feedback == "" {
			result.Feedback = "Correct."
		}
	} else if result.Feedback == "" {
		result.Feedback = "Incorrect."
	}
	return result
}

// gradeAnswerWithModel never fails the attempt: provider or parse errors
// degrade to the zero-point manual review result.
func (as *assessmentService) gradeAnswerWithModel(ctx context.Context, question, expected, given string, maxPoints float64) GradeResult {
	ungraded := GradeResult{Feedback: manualReviewFeedback, NeedsReview: true}

	system := fmt.Sprintf(
		"You grade a learner's free-text answer. Award partial credit where deserved. "+
			"pointsEarned must be between 0 and %.2f. Keep feedback to two sentences, addressed to the learner.",
		maxPoints)
	user := fmt.Sprintf("Question: %s\n\nExpected answer: %s\n\nLearner's answer: %s", question, expected, given)

	raw, err := as.gemini.GenerateJSON(ctx, JSONRequest{
		System: system,
		User:   user,
		Schema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"pointsEarned": {Type: genai.TypeNumber},
				"feedback":     {Type: genai.TypeString},
				"confidence":   {Type: genai.TypeNumber, Description: "0 to 1"},
			},
			Required: []string{"pointsEarned", "feedback", "confidence"},
		},
	}, StreamCallbacks{})
	if err != nil {
		as.log.Warn("Model grading failed", "error", err)
		return ungraded
	}

	var graded struct {
		PointsEarned float64 `json:"pointsEarned"`
		Feedback     string  `json:"feedback"`
		Confidence   float64 `json:"confidence"`
	}
	if err := json.Unmarshal(raw, &graded); err != nil {
		as.log.Warn("Model grading output did not parse", "error", err)
		return ungraded
	}

	points := clampFloat(graded.PointsEarned, 0, maxPoints)
	return GradeResult{
		PointsEarned: points,
		IsCorrect:    points >= correctThreshold*maxPoints,
		Feedback:     graded.Feedback,
		Confidence:   clampFloat(graded.Confidence, 0, 1),
	}
}

func answerSetsEqual(expected, given any) bool {
	want := normalizedAnswerSet(expected)
	got := normalizedAnswerSet(given)
	if len(want) == 0 || len(want) != len(got) {
		return false
	}
	for v := range want {
		if !got[v] {
			return false
		}
	}
	return true
}

// answerListsEqual compares blank-by-blank in order.
func answerListsEqual(expected, given any) bool {
	want := answerToStrings(expected)
	got := answerToStrings(given)
	if len(want) == 0 || len(want) != len(got) {
		return false
	}
	for i := range want {
		if normalizeAnswerText(want[i]) != normalizeAnswerText(got[i]) {
			return false
		}
	}
	return true
}

func normalizedAnswerSet(v any) map[string]bool {
	set := map[string]bool{}
	for _, s := range answerToStrings(v) {
		if n := normalizeAnswerText(s); n != "" {
			set[n] = true
		}
	}
	return set
}

func answerToStrings(v any) []string {
	switch a := v.(type) {
	case []any:
		out := make([]string, 0, len(a))
		for _, e := range a {
			out = append(out, stringifyAnswer(e))
		}
		return out
	case []string:
		return a
	case nil:
		return nil
	default:
		return []string{stringifyAnswer(a)}
	}
}

func normalizeAnswerText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
