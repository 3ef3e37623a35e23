package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gametester/internal/types"

	"google.golang.org/genai"
)

// GenAIGenerator drafts test cases with the Gemini API.
type GenAIGenerator struct {
	client *genai.Client
	model  string
}

// NewGenAIGenerator creates an LLM-backed draft generator.
func NewGenAIGenerator(apiKey, model string) (*GenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIGenerator{client: client, model: model}, nil
}

// Draft asks the model for count candidate cases as a JSON array and parses
// them. Drafts are raw model output; the planner sanitizes them.
func (g *GenAIGenerator) Draft(ctx context.Context, targetURL, analysis string, count int) ([]types.TestCase, error) {
	prompt := draftPrompt(targetURL, analysis, count)

	result, err := g.client.Models.GenerateContent(ctx,
		g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("GenAI draft failed: %w", err)
	}

	text := stripCodeFence(result.Text())
	var drafts []types.TestCase
	if err := json.Unmarshal([]byte(text), &drafts); err != nil {
		return nil, fmt.Errorf("failed to parse drafted cases: %w", err)
	}
	return drafts, nil
}

func draftPrompt(targetURL, analysis string, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are an exploratory QA engineer for browser games.
Draft %d test cases for the game at %s.
`, count, targetURL)
	if analysis != "" {
		fmt.Fprintf(&b, "\nPage analysis:\n%s\n", analysis)
	}
	b.WriteString(`
Respond with a JSON array only. Each element:
{
  "name": "short descriptive name",
  "category": "functionality|edge_case|error_handling|ui_ux|performance",
  "steps": ["imperative browser step", "..."],
  "expected_outcome": "what success looks like",
  "priority": "High|Medium|Low",
  "estimated_duration": 20
}
Steps must be executable by a browser driver: navigate, click <button>,
enter <number>, wait <seconds>, solve the puzzle.`)
	return b.String()
}

// stripCodeFence removes a markdown fence the model sometimes wraps JSON in
// despite the JSON response mime type.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
