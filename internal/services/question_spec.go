package services

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/studypilot-backend/internal/pkg/logger"
	"github.com/yungbote/studypilot-backend/internal/types"
)

const questionCatalogEnv = "ASSESSMENT_QUESTION_CATALOG_YAML"

//go:embed question_catalog.yaml
var questionCatalogFS embed.FS

// QuestionRule is the validation contract for one question type.
type QuestionRule struct {
	Name           string
	RequireOptions bool
	MinOptions     int
	ExactOptions   int
	ListAnswer     bool
	AIGraded       bool
}

type questionCatalog struct {
	DefaultPoints     float64
	DefaultDifficulty string
	Difficulties      map[string]bool
	Rules             map[string]QuestionRule
}

// fallback catalog used when YAML is missing or invalid
var fallbackQuestionCatalog = &questionCatalog{
	DefaultPoints:     1,
	DefaultDifficulty: "medium",
	Difficulties:      map[string]bool{"easy": true, "medium": true, "hard": true},
	Rules: map[string]QuestionRule{
		types.QuestionTypeMultipleChoice: {Name: types.QuestionTypeMultipleChoice, RequireOptions: true, MinOptions: 2},
		types.QuestionTypeMultipleSelect: {Name: types.QuestionTypeMultipleSelect, RequireOptions: true, MinOptions: 2, ListAnswer: true},
		types.QuestionTypeTrueFalse:      {Name: types.QuestionTypeTrueFalse, RequireOptions: true, MinOptions: 2, ExactOptions: 2},
		types.QuestionTypeShortAnswer:    {Name: types.QuestionTypeShortAnswer, AIGraded: true},
		types.QuestionTypeFillBlank:      {Name: types.QuestionTypeFillBlank, ListAnswer: true},
		types.QuestionTypeEssay:          {Name: types.QuestionTypeEssay, AIGraded: true},
	},
}

type yamlQuestionCatalog struct {
	Catalog  string `yaml:"catalog"`
	Version  int    `yaml:"version"`
	Defaults struct {
		Points     float64 `yaml:"points"`
		Difficulty string  `yaml:"difficulty"`
	} `yaml:"defaults"`
	Difficulties []string           `yaml:"difficulties"`
	Types        []yamlQuestionType `yaml:"types"`
}

type yamlQuestionType struct {
	Name         string `yaml:"name"`
	Options      string `yaml:"options"`
	MinOptions   int    `yaml:"min_options"`
	ExactOptions int    `yaml:"exact_options"`
	Answer       string `yaml:"answer"`
	AIGraded     bool   `yaml:"ai_graded"`
}

var questionCatalogOnce sync.Once
var questionCatalogCache *questionCatalog
var questionCatalogErr error

func currentQuestionCatalog(log *logger.Logger) *questionCatalog {
	questionCatalogOnce.Do(func() {
		questionCatalogCache, questionCatalogErr = loadQuestionCatalog()
	})
	if questionCatalogErr != nil {
		if log != nil {
			log.Warn("assessment: question catalog load failed; using fallback", "error", questionCatalogErr)
		}
		return fallbackQuestionCatalog
	}
	return questionCatalogCache
}

func loadQuestionCatalog() (*questionCatalog, error) {
	data, err := readQuestionCatalog()
	if err != nil {
		return nil, err
	}

	var spec yamlQuestionCatalog
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, err
	}
	if err := validateQuestionCatalog(&spec); err != nil {
		return nil, err
	}

	catalog := &questionCatalog{
		DefaultPoints:     spec.Defaults.Points,
		DefaultDifficulty: strings.TrimSpace(spec.Defaults.Difficulty),
		Difficulties:      map[string]bool{},
		Rules:             map[string]QuestionRule{},
	}
	if catalog.DefaultPoints <= 0 {
		catalog.DefaultPoints = 1
	}
	if catalog.DefaultDifficulty == "" {
		catalog.DefaultDifficulty = "medium"
	}
	for _, d := range spec.Difficulties {
		if d = strings.TrimSpace(d); d != "" {
			catalog.Difficulties[d] = true
		}
	}
	for _, t := range spec.Types {
		name := strings.TrimSpace(t.Name)
		catalog.Rules[name] = QuestionRule{
			Name:           name,
			RequireOptions: t.Options == "required",
			MinOptions:     t.MinOptions,
			ExactOptions:   t.ExactOptions,
			ListAnswer:     t.Answer == "list",
			AIGraded:       t.AIGraded,
		}
	}
	return catalog, nil
}

func readQuestionCatalog() ([]byte, error) {
	if path := strings.TrimSpace(os.Getenv(questionCatalogEnv)); path != "" {
		return os.ReadFile(path)
	}
	return questionCatalogFS.ReadFile("question_catalog.yaml")
}

// validateQuestionCatalog keeps the YAML honest: it can tune rules but cannot
// widen the question type set the rest of the system understands.
func validateQuestionCatalog(spec *yamlQuestionCatalog) error {
	if spec == nil {
		return errors.New("missing catalog")
	}
	if strings.TrimSpace(spec.Catalog) != "assessment_questions" {
		return fmt.Errorf("unexpected catalog: %s", spec.Catalog)
	}
	if len(spec.Types) == 0 {
		return errors.New("no question types defined")
	}

	seen := map[string]bool{}
	for _, t := range spec.Types {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return errors.New("question type name is required")
		}
		if !validQuestionType(name) {
			return fmt.Errorf("unknown question type: %s", name)
		}
		if seen[name] {
			return fmt.Errorf("duplicate question type: %s", name)
		}
		seen[name] = true
		if t.ExactOptions > 0 && t.Options != "required" {
			return fmt.Errorf("question type %s: exact_options without required options", name)
		}
	}
	return nil
}

func validQuestionType(t string) bool {
	switch t {
	case types.QuestionTypeMultipleChoice, types.QuestionTypeMultipleSelect,
		types.QuestionTypeTrueFalse, types.QuestionTypeShortAnswer,
		types.QuestionTypeFillBlank, types.QuestionTypeEssay:
		return true
	}
	return false
}
