package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yungbote/studypilot-backend/internal/types"
)

// PromptContext is everything the tutor knows about the project when a turn
// starts. Assembly is pure; the orchestrator fetches, this formats.
type PromptContext struct {
	ProjectName string
	Memories    []*types.Memory
	Materials   []*types.Material
	Artifacts   []*types.Artifact
}

var memoryCategoryLabels = map[string]string{
	types.MemoryCategoryPreference:    "Learning preferences",
	types.MemoryCategoryUnderstanding: "Current understanding",
	types.MemoryCategoryWeakness:      "Weak areas",
	types.MemoryCategoryStrength:      "Strong areas",
	types.MemoryCategoryGoal:          "Goals",
	types.MemoryCategoryContext:       "Context",
	types.MemoryCategoryOther:         "Other notes",
}

// Order in which memory groups appear in the prompt.
var memoryCategoryOrder = []string{
	types.MemoryCategoryGoal,
	types.MemoryCategoryPreference,
	types.MemoryCategoryUnderstanding,
	types.MemoryCategoryStrength,
	types.MemoryCategoryWeakness,
	types.MemoryCategoryContext,
	types.MemoryCategoryOther,
}

func BuildTutorSystemPrompt(pc PromptContext) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, `You are a personal study tutor helping the student with their project %q.
Teach clearly and adapt to what you know about the student. Prefer short, focused explanations and check understanding as you go.`, pc.ProjectName)

	if len(pc.Memories) > 0 {
		sb.WriteString("\n\nWhat you know about the student:\n")
		grouped := make(map[string][]*types.Memory, len(memoryCategoryOrder))
		for _, m := range pc.Memories {
			grouped[m.Category] = append(grouped[m.Category], m)
		}
		for _, cat := range memoryCategoryOrder {
			items := grouped[cat]
			if len(items) == 0 {
				continue
			}
			fmt.Fprintf(&sb, "%s:\n", memoryCategoryLabels[cat])
			for _, m := range items {
				fmt.Fprintf(&sb, "- %s\n", m.Content)
			}
		}
	}

	if len(pc.Materials) > 0 {
		sb.WriteString("\nStudy materials available in this project:\n")
		for _, m := range pc.Materials {
			if m.Summary != "" {
				fmt.Fprintf(&sb, "- %s (%s): %s\n", m.Name, m.Kind, m.Summary)
			} else {
				fmt.Fprintf(&sb, "- %s (%s)\n", m.Name, m.Kind)
			}
		}
	}

	if len(pc.Artifacts) > 0 {
		sb.WriteString("\nStudy artifacts already created (reference them by id when updating):\n")
		for _, a := range pc.Artifacts {
			sb.WriteString("- " + artifactSummaryLine(a) + "\n")
		}
	}

	sb.WriteString(`
Tool usage:
- Use memory_create when you learn something durable about the student (a goal, a preference, a gap). Use memory_update or memory_delete when a memory becomes stale.
- Use the artifact tools to create or revise lessons, study plans, and flashcard decks when the student asks for one or clearly needs one. Use artifact_update with the artifact id for revisions instead of creating duplicates.
- Use question_create for a single inline check of understanding. Never produce batches of quiz questions in conversation; the student generates assessments separately.
- Always include a normal conversational reply alongside any tool call so the student sees what you did and why.

Formatting:
- Markdown is supported.
- For math, use LaTeX delimited by $...$ or $$...$$, and double-escape backslashes in LaTeX commands (write \\frac, not \frac).`)

	return sb.String()
}

// artifactSummaryLine compresses one artifact to the line the model sees.
func artifactSummaryLine(a *types.Artifact) string {
	desc := ""
	if a.Description != "" {
		desc = ": " + a.Description
	}
	switch a.Type {
	case types.ArtifactTypeLesson:
		var content struct {
			Sections []json.RawMessage `json:"sections"`
		}
		_ = json.Unmarshal(a.Content, &content)
		return fmt.Sprintf("[%s] lesson %q (%d sections)%s", a.ID, a.Title, len(content.Sections), desc)
	case types.ArtifactTypeStudyPlan:
		total, completed := countPlanItems(a.Content)
		return fmt.Sprintf("[%s] study plan %q (%d items, %d completed)%s", a.ID, a.Title, total, completed, desc)
	case types.ArtifactTypeFlashcards:
		var content struct {
			Cards []json.RawMessage `json:"cards"`
		}
		_ = json.Unmarshal(a.Content, &content)
		return fmt.Sprintf("[%s] flashcard deck %q (%d cards)%s", a.ID, a.Title, len(content.Cards), desc)
	}
	return fmt.Sprintf("[%s] %s %q%s", a.ID, a.Type, a.Title, desc)
}

func countPlanItems(content []byte) (total, completed int) {
	var parsed struct {
		Items []planItem `json:"items"`
	}
	if err := json.Unmarshal(content, &parsed); err != nil {
		return 0, 0
	}
	var walk func(items []planItem)
	walk = func(items []planItem) {
		for _, it := range items {
			total++
			if it.Completed {
				completed++
			}
			walk(it.Children)
		}
	}
	walk(parsed.Items)
	return total, completed
}

type planItem struct {
	Completed bool       `json:"completed"`
	Children  []planItem `json:"children"`
}
