package classify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/orange-taco/ainsight-backend/internal/models"
)

// Categories is the closed set the classifier may answer with. Any value
// outside it is coerced to "other" rather than failing the job.
var Categories = []string{
	"web_framework", "data_science", "ml_ai", "cli", "testing",
	"database", "http", "devtools", "auth", "messaging", "cloud",
	"ui", "validation", "logging", "networking", "other",
}

const promptTemplate = `You are a classifier. Determine if this GitHub repository is a reusable library/package or an end-user application.

Repository: %s

README:
%s

Respond with ONLY valid JSON, no other text. Follow this exact format:

{
  "is_library": true,
  "category": "web_framework",
  "confidence": 0.85,
  "reason": "This is a reusable HTTP client library"
}

Rules:
- "is_library": must be true or false
- "category": one of %s
- "confidence": number between 0.0 and 1.0
- "reason": one sentence explanation
- Do NOT include any text outside the JSON object`

// BuildPrompt renders the classification prompt for one repository.
func BuildPrompt(fullName, readme string) string {
	quoted := make([]string, len(Categories))
	for i, c := range Categories {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	return fmt.Sprintf(promptTemplate, fullName, readme, strings.Join(quoted, ", "))
}

// verdictJSON mirrors the expected response; pointer fields distinguish
// a missing key from a zero value.
type verdictJSON struct {
	IsLibrary  *bool    `json:"is_library"`
	Category   *string  `json:"category"`
	Confidence *float64 `json:"confidence"`
	Reason     *string  `json:"reason"`
}

// ParseVerdict parses the model's response into a classification. The
// response must be a JSON object carrying all four keys; an unknown
// category is coerced to "other".
func ParseVerdict(response string) (*models.Classification, error) {
	// Strip markdown code fences if present
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	var raw verdictJSON
	if err := json.Unmarshal([]byte(response), &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON from LLM: %w", err)
	}

	switch {
	case raw.IsLibrary == nil:
		return nil, fmt.Errorf("LLM response missing key: is_library")
	case raw.Confidence == nil:
		return nil, fmt.Errorf("LLM response missing key: confidence")
	case raw.Reason == nil:
		return nil, fmt.Errorf("LLM response missing key: reason")
	case raw.Category == nil:
		return nil, fmt.Errorf("LLM response missing key: category")
	}

	category := *raw.Category
	if !validCategory(category) {
		category = "other"
	}

	return &models.Classification{
		IsLibrary:  *raw.IsLibrary,
		Category:   category,
		Confidence: *raw.Confidence,
		Reason:     *raw.Reason,
	}, nil
}

func validCategory(c string) bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}
