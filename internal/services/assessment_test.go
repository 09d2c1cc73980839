package services

import (
	"strings"
	"testing"

	"github.com/yungbote/studypilot-backend/internal/types"
)

func TestNormalizeAssessmentSettingsDefaults(t *testing.T) {
	catalog := currentQuestionCatalog(nil)

	settings := normalizeAssessmentSettings(catalog, AssessmentSettings{})
	if settings.Title != "Practice assessment" {
		t.Fatalf("title: want=%q got=%q", "Practice assessment", settings.Title)
	}
	if settings.QuestionCount != defaultQuestionCount {
		t.Fatalf("question count: want=%d got=%d", defaultQuestionCount, settings.QuestionCount)
	}
	wantTypes := []string{
		types.QuestionTypeMultipleChoice,
		types.QuestionTypeTrueFalse,
		types.QuestionTypeShortAnswer,
	}
	if strings.Join(settings.QuestionTypes, ",") != strings.Join(wantTypes, ",") {
		t.Fatalf("question types: want=%v got=%v", wantTypes, settings.QuestionTypes)
	}
	if settings.Difficulty != "medium" {
		t.Fatalf("difficulty: want=medium got=%q", settings.Difficulty)
	}
}

func TestNormalizeAssessmentSettingsClampsAndFilters(t *testing.T) {
	catalog := currentQuestionCatalog(nil)

	cases := []struct {
		name      string
		in        AssessmentSettings
		wantCount int
		wantTypes string
		wantDiff  string
	}{
		{
			name:      "count_below_min",
			in:        AssessmentSettings{QuestionCount: 2},
			wantCount: minQuestionCount,
			wantTypes: "multiple_choice,true_false,short_answer",
			wantDiff:  "medium",
		},
		{
			name:      "count_above_max",
			in:        AssessmentSettings{QuestionCount: 500},
			wantCount: maxQuestionCount,
			wantTypes: "multiple_choice,true_false,short_answer",
			wantDiff:  "medium",
		},
		{
			name: "types_lowercased_deduped_unknown_dropped",
			in: AssessmentSettings{
				QuestionCount: 10,
				QuestionTypes: []string{" Essay ", "essay", "FILL_BLANK", "word_search"},
			},
			wantCount: 10,
			wantTypes: "essay,fill_blank",
			wantDiff:  "medium",
		},
		{
			name:      "difficulty_normalized",
			in:        AssessmentSettings{QuestionCount: 10, Difficulty: " HARD "},
			wantCount: 10,
			wantTypes: "multiple_choice,true_false,short_answer",
			wantDiff:  "hard",
		},
		{
			name:      "unknown_difficulty_falls_back",
			in:        AssessmentSettings{QuestionCount: 10, Difficulty: "impossible"},
			wantCount: 10,
			wantTypes: "multiple_choice,true_false,short_answer",
			wantDiff:  "medium",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := normalizeAssessmentSettings(catalog, tc.in)
			if out.QuestionCount != tc.wantCount {
				t.Fatalf("question count: want=%d got=%d", tc.wantCount, out.QuestionCount)
			}
			if got := strings.Join(out.QuestionTypes, ","); got != tc.wantTypes {
				t.Fatalf("question types: want=%q got=%q", tc.wantTypes, got)
			}
			if out.Difficulty != tc.wantDiff {
				t.Fatalf("difficulty: want=%q got=%q", tc.wantDiff, out.Difficulty)
			}
		})
	}
}

func TestValidateQuestionsDropsInvalidRows(t *testing.T) {
	catalog := currentQuestionCatalog(nil)

	raw := []map[string]any{
		nil,
		{"type": types.QuestionTypeMultipleChoice, "question": "   "},
		{"type": "crossword", "question": "Unknown type"},
		{"type": types.QuestionTypeMultipleChoice, "question": "One option only", "options": []any{"A"}, "correctAnswer": []any{"A"}},
		{"type": types.QuestionTypeTrueFalse, "question": "Three options", "options": []any{"True", "False", "Maybe"}, "correctAnswer": []any{"True"}},
		{"type": types.QuestionTypeMultipleSelect, "question": "List answer required", "options": []any{"A", "B"}, "correctAnswer": "A"},
		{"type": types.QuestionTypeFillBlank, "question": "Blank is ____.", "correctAnswer": []any{}},
		{
			"type":          types.QuestionTypeMultipleChoice,
			"question":      "Which survives?",
			"options":       []any{"This one", "Not this one"},
			"correctAnswer": []any{"This one"},
		},
	}

	questions := validateQuestions(catalog, raw)
	if len(questions) != 1 {
		t.Fatalf("question count: want=1 got=%d", len(questions))
	}
	q := questions[0]
	if q["question"] != "Which survives?" {
		t.Fatalf("question text: got=%v", q["question"])
	}
	if q["correctAnswer"] != "This one" {
		t.Fatalf("single answer should unwrap to the first entry, got=%v", q["correctAnswer"])
	}
	if id, _ := q["id"].(string); id == "" {
		t.Fatalf("id: want non-empty")
	}
}

func TestValidateQuestionsAppliesDefaults(t *testing.T) {
	catalog := currentQuestionCatalog(nil)

	raw := []map[string]any{
		{
			"type":          types.QuestionTypeShortAnswer,
			"question":      "Define diffusion.",
			"points":        float64(-2),
			"difficulty":    "brutal",
			"explanation":   "  Movement down a gradient.  ",
			"topic":         "",
			"correctAnswer": []any{"movement of particles down a concentration gradient"},
		},
	}

	questions := validateQuestions(catalog, raw)
	if len(questions) != 1 {
		t.Fatalf("question count: want=1 got=%d", len(questions))
	}
	q := questions[0]
	if q["points"] != catalog.DefaultPoints {
		t.Fatalf("points: want=%v got=%v", catalog.DefaultPoints, q["points"])
	}
	if q["difficulty"] != catalog.DefaultDifficulty {
		t.Fatalf("difficulty: want=%q got=%v", catalog.DefaultDifficulty, q["difficulty"])
	}
	if q["explanation"] != "Movement down a gradient." {
		t.Fatalf("explanation: got=%v", q["explanation"])
	}
	if _, present := q["topic"]; present {
		t.Fatalf("empty topic must be omitted")
	}
	if _, present := q["options"]; present {
		t.Fatalf("short answer has no options, got=%v", q["options"])
	}
}

func TestValidateQuestionsListAnswers(t *testing.T) {
	catalog := currentQuestionCatalog(nil)

	raw := []map[string]any{
		{
			"type":          types.QuestionTypeMultipleSelect,
			"question":      "Select the organelles.",
			"options":       []any{"Mitochondria", "Ribosome", "Water"},
			"correctAnswer": []any{"Mitochondria", "Ribosome"},
		},
		{
			"type":          types.QuestionTypeFillBlank,
			"question":      "Water is made of ____ and ____.",
			"correctAnswer": []any{"hydrogen", "oxygen"},
		},
	}

	questions := validateQuestions(catalog, raw)
	if len(questions) != 2 {
		t.Fatalf("question count: want=2 got=%d", len(questions))
	}

	multi, _ := questions[0]["correctAnswer"].([]string)
	if len(multi) != 2 || multi[0] != "Mitochondria" || multi[1] != "Ribosome" {
		t.Fatalf("multiple_select answer: got=%v", questions[0]["correctAnswer"])
	}
	blanks, _ := questions[1]["correctAnswer"].([]string)
	if len(blanks) != 2 || blanks[0] != "hydrogen" || blanks[1] != "oxygen" {
		t.Fatalf("fill_blank answer: got=%v", questions[1]["correctAnswer"])
	}
}

func TestStringifyAnswer(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want string
	}{
		{name: "string", in: "Paris", want: "Paris"},
		{name: "bool_true", in: true, want: "True"},
		{name: "bool_false", in: false, want: "False"},
		{name: "whole_float", in: float64(3), want: "3"},
		{name: "fraction", in: 2.5, want: "2.5"},
		{name: "nil", in: nil, want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := stringifyAnswer(tc.in); got != tc.want {
				t.Fatalf("stringifyAnswer(%v)=%q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("short", 10); got != "short" {
		t.Fatalf("short input: got=%q", got)
	}
	long := strings.Repeat("é", 12)
	got := truncateRunes(long, 10)
	if []rune(got)[10] != '…' {
		t.Fatalf("long input should end with ellipsis, got=%q", got)
	}
	if len([]rune(got)) != 11 {
		t.Fatalf("rune length: want=11 got=%d", len([]rune(got)))
	}
}

func TestLoadQuestionCatalog(t *testing.T) {
	catalog, err := loadQuestionCatalog()
	if err != nil {
		t.Fatalf("loadQuestionCatalog: %v", err)
	}
	if catalog.DefaultPoints != 1 {
		t.Fatalf("default points: want=1 got=%v", catalog.DefaultPoints)
	}
	if catalog.DefaultDifficulty != "medium" {
		t.Fatalf("default difficulty: want=medium got=%q", catalog.DefaultDifficulty)
	}
	if len(catalog.Rules) != 6 {
		t.Fatalf("rule count: want=6 got=%d", len(catalog.Rules))
	}

	tf := catalog.Rules[types.QuestionTypeTrueFalse]
	if !tf.RequireOptions || tf.ExactOptions != 2 {
		t.Fatalf("true_false rule: got=%+v", tf)
	}
	ms := catalog.Rules[types.QuestionTypeMultipleSelect]
	if !ms.ListAnswer || ms.MinOptions != 2 {
		t.Fatalf("multiple_select rule: got=%+v", ms)
	}
	essay := catalog.Rules[types.QuestionTypeEssay]
	if !essay.AIGraded {
		t.Fatalf("essay rule: want ai graded, got=%+v", essay)
	}
}

func TestValidateQuestionCatalog(t *testing.T) {
	valid := func() *yamlQuestionCatalog {
		spec := &yamlQuestionCatalog{Catalog: "assessment_questions", Version: 1}
		spec.Types = []yamlQuestionType{
			{Name: types.QuestionTypeMultipleChoice, Options: "required", MinOptions: 2},
			{Name: types.QuestionTypeEssay, AIGraded: true},
		}
		return spec
	}

	cases := []struct {
		name    string
		mutate  func(*yamlQuestionCatalog)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*yamlQuestionCatalog) {},
		},
		{
			name:    "wrong_catalog_name",
			mutate:  func(s *yamlQuestionCatalog) { s.Catalog = "trivia" },
			wantErr: "unexpected catalog",
		},
		{
			name:    "no_types",
			mutate:  func(s *yamlQuestionCatalog) { s.Types = nil },
			wantErr: "no question types",
		},
		{
			name: "unknown_type",
			mutate: func(s *yamlQuestionCatalog) {
				s.Types = append(s.Types, yamlQuestionType{Name: "crossword"})
			},
			wantErr: "unknown question type",
		},
		{
			name: "duplicate_type",
			mutate: func(s *yamlQuestionCatalog) {
				s.Types = append(s.Types, yamlQuestionType{Name: types.QuestionTypeEssay})
			},
			wantErr: "duplicate question type",
		},
		{
			name: "exact_options_without_required",
			mutate: func(s *yamlQuestionCatalog) {
				s.Types = append(s.Types, yamlQuestionType{Name: types.QuestionTypeTrueFalse, ExactOptions: 2})
			},
			wantErr: "exact_options without required options",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spec := valid()
			tc.mutate(spec)
			err := validateQuestionCatalog(spec)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("validateQuestionCatalog: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("validateQuestionCatalog: expected error containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error: want contains %q, got=%q", tc.wantErr, err.Error())
			}
		})
	}
}
