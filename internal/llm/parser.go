package llm

import (
	"encoding/json"

	"github.com/dlclark/regexp2"

	"github.com/classhub/studybuddy/internal/apperr"
)

// jsonObjectRe greedily matches the first balanced-looking {...} span, with
// dot matching newlines, for recovering JSON the model wrapped in prose.
var jsonObjectRe = regexp2.MustCompile(`\{.*\}`, regexp2.Singleline)

const rawSnippetLimit = 500

// SummaryFields is the model's summary payload after defaulting. List fields
// are never nil and the enum/time fields are always populated.
type SummaryFields struct {
	Title              string   `json:"title"`
	KeyConcepts        []string `json:"key_concepts"`
	MainPoints         []string `json:"main_points"`
	StudyTips          []string `json:"study_tips"`
	QuestionsForReview []string `json:"questions_for_review"`
	DifficultyLevel    string   `json:"difficulty_level"`
	EstimatedStudyTime string   `json:"estimated_study_time"`
}

// parseSummary parses raw model output into SummaryFields. It first tries the
// whole response as JSON, then falls back to extracting an embedded object.
// Both failing is MalformedAIOutput, carrying a truncated copy of the raw
// text for diagnostics.
func parseSummary(raw string) (SummaryFields, error) {
	var fields SummaryFields
	if err := json.Unmarshal([]byte(raw), &fields); err == nil {
		normalizeSummary(&fields)
		return fields, nil
	}

	if m, _ := jsonObjectRe.FindStringMatch(raw); m != nil {
		if err := json.Unmarshal([]byte(m.String()), &fields); err == nil {
			normalizeSummary(&fields)
			return fields, nil
		} else {
			return SummaryFields{}, apperr.Wrap(apperr.KindMalformedAIOutput,
				"AI returned invalid JSON: "+truncate(raw, rawSnippetLimit), err)
		}
	}

	return SummaryFields{}, apperr.New(apperr.KindMalformedAIOutput,
		"no JSON object in AI response: "+truncate(raw, rawSnippetLimit))
}

// normalizeSummary applies every default in one place so tests can target the
// defaulting rules directly.
func normalizeSummary(f *SummaryFields) {
	if f.KeyConcepts == nil {
		f.KeyConcepts = []string{}
	}
	if f.MainPoints == nil {
		f.MainPoints = []string{}
	}
	if f.StudyTips == nil {
		f.StudyTips = []string{}
	}
	if f.QuestionsForReview == nil {
		f.QuestionsForReview = []string{}
	}
	if f.DifficultyLevel == "" {
		f.DifficultyLevel = "intermediate"
	}
	if f.EstimatedStudyTime == "" {
		f.EstimatedStudyTime = "30 minutes"
	}
}

// resolveTitle picks the user's title when given, then the model's, then the
// caller's generic fallback.
func resolveTitle(userTitle, modelTitle, fallback string) string {
	if userTitle != "" {
		return userTitle
	}
	if modelTitle != "" {
		return modelTitle
	}
	return fallback
}
