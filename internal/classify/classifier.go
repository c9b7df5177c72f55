// Package classify assigns a job category to free-text bid card input
// using Claude. Callers use it only when the homeowner did not pick a
// category themselves.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/homebid/match-cli/internal/model"
	"github.com/homebid/match-cli/pkg/anthropic"
)

// maxDescriptionChars truncates the job description sent to Claude.
const maxDescriptionChars = 4000

// systemPrompt pins the answer to the category enum. The response schema
// keeps parsing trivial even when the model adds surrounding prose.
const systemPrompt = `You are classifying a homeowner's job request for a contractor marketplace. Pick exactly one category:
- repair: fixing something broken or damaged
- renovation: remodeling or upgrading an existing space
- installation: adding or fitting new equipment or fixtures
- maintenance: recurring or preventive upkeep
- construction: building new structures or additions
- other: anything that fits none of the above

Respond with ONLY valid JSON, no other text:
{"category": "repair", "confidence": 0.0}`

type classifyResponse struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// Classifier maps job text onto the category enum.
type Classifier struct {
	ai    anthropic.Client
	model string
}

// NewClassifier returns a Classifier that calls Claude with the given model.
func NewClassifier(ai anthropic.Client, model string) *Classifier {
	return &Classifier{ai: ai, model: model}
}

// Classify returns the category for a job described by jobType and
// description. A malformed or off-enum answer falls back to CategoryOther;
// only the request itself failing surfaces as an error.
func (c *Classifier) Classify(ctx context.Context, jobType, description string) (model.Category, error) {
	if len(description) > maxDescriptionChars {
		description = description[:maxDescriptionChars]
	}
	userMsg := fmt.Sprintf("Job type: %s\n\nDescription:\n%s", jobType, description)

	resp, err := c.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: 128,
		System:    []anthropic.SystemBlock{{Text: systemPrompt}},
		Messages:  []anthropic.Message{{Role: "user", Content: userMsg}},
	})
	if err != nil {
		return "", eris.Wrap(err, "classify: claude request")
	}
	resp.Usage.LogCost(c.model, "classify")

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}

	cat, parseErr := parseCategoryResponse(text)
	if parseErr != nil {
		zap.L().Warn("unusable classifier response, falling back",
			zap.String("job_type", jobType),
			zap.Error(parseErr))
		return model.CategoryOther, nil
	}
	return cat, nil
}

// parseCategoryResponse pulls the JSON object out of the model's answer
// and validates the category against the enum.
func parseCategoryResponse(text string) (model.Category, error) {
	if text == "" {
		return "", eris.New("classify: empty claude response")
	}

	jsonStart := strings.Index(text, "{")
	jsonEnd := strings.LastIndex(text, "}")
	if jsonStart < 0 || jsonEnd < 0 || jsonEnd <= jsonStart {
		return "", eris.Errorf("classify: no JSON in response: %s", text)
	}

	var result classifyResponse
	if err := json.Unmarshal([]byte(text[jsonStart:jsonEnd+1]), &result); err != nil {
		return "", eris.Wrap(err, "classify: parse response JSON")
	}

	cat, err := model.ParseCategory(strings.ToLower(strings.TrimSpace(result.Category)))
	if err != nil {
		return "", eris.Wrap(err, "classify: off-enum category")
	}
	return cat, nil
}
