package services

import (
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/studypilot-backend/internal/types"
)

// Artifact content normalization. Total and idempotent: any input shape comes
// out in canonical form with stable ids, and re-applying is the identity.

var questionSubtypes = map[string]bool{
	types.QuestionTypeMultipleChoice: true,
	types.QuestionTypeMultipleSelect: true,
	types.QuestionTypeTrueFalse:      true,
	types.QuestionTypeShortAnswer:    true,
	types.QuestionTypeFillBlank:      true,
	types.QuestionTypeEssay:          true,
}

func NormalizeArtifactContent(artifactType string, content map[string]any) map[string]any {
	if content == nil {
		content = map[string]any{}
	}
	switch artifactType {
	case types.ArtifactTypeLesson:
		return normalizeLessonContent(content)
	case types.ArtifactTypeStudyPlan:
		return normalizeStudyPlanContent(content)
	case types.ArtifactTypeFlashcards:
		return normalizeFlashcardContent(content)
	}
	return content
}

func normalizeLessonContent(content map[string]any) map[string]any {
	rawSections, _ := content["sections"].([]any)
	sections := make([]any, 0, len(rawSections))
	for _, rs := range rawSections {
		sec, ok := rs.(map[string]any)
		if !ok {
			continue
		}
		sections = append(sections, normalizeLessonSection(sec))
	}
	content["sections"] = sections
	return content
}

func normalizeLessonSection(sec map[string]any) map[string]any {
	ensureID(sec)
	secType, _ := sec["type"].(string)

	switch {
	case secType == "question":
		sec["question"] = normalizeNestedQuestion(sec["question"])
	case questionSubtypes[secType]:
		// The model sometimes types the section as the question itself.
		// Push everything but the section envelope down into a question
		// object and retype the section.
		q := map[string]any{"type": secType}
		for k, v := range sec {
			switch k {
			case "id", "title", "type":
			default:
				q[k] = v
				delete(sec, k)
			}
		}
		ensureID(q)
		sec["question"] = q
		sec["type"] = "question"
	case secType == "content":
		// canonical already
	default:
		if _, hasQuestion := sec["question"].(map[string]any); hasQuestion {
			sec["type"] = "question"
			sec["question"] = normalizeNestedQuestion(sec["question"])
		} else {
			sec["type"] = "content"
		}
	}
	return sec
}

func normalizeNestedQuestion(v any) map[string]any {
	switch q := v.(type) {
	case map[string]any:
		ensureID(q)
		return q
	case string:
		nested := map[string]any{"question": q}
		ensureID(nested)
		return nested
	default:
		nested := map[string]any{}
		ensureID(nested)
		return nested
	}
}

func normalizeStudyPlanContent(content map[string]any) map[string]any {
	content["items"] = normalizePlanItems(content["items"])
	return content
}

func normalizePlanItems(v any) []any {
	rawItems, _ := v.([]any)
	items := make([]any, 0, len(rawItems))
	for _, ri := range rawItems {
		item, ok := ri.(map[string]any)
		if !ok {
			continue
		}
		ensureID(item)
		if _, hasChildren := item["children"]; hasChildren {
			item["children"] = normalizePlanItems(item["children"])
		}
		items = append(items, item)
	}
	return items
}

func normalizeFlashcardContent(content map[string]any) map[string]any {
	rawCards, _ := content["cards"].([]any)
	cards := make([]any, 0, len(rawCards))
	for _, rc := range rawCards {
		card, ok := rc.(map[string]any)
		if !ok {
			continue
		}
		ensureID(card)
		cards = append(cards, card)
	}
	content["cards"] = cards
	return content
}

func ensureID(m map[string]any) {
	if id, ok := m["id"].(string); ok && strings.TrimSpace(id) != "" {
		return
	}
	m["id"] = uuid.NewString()
}
