package ranker

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/psychesim/psychemem-go/pkg/llm"
)

// Evaluator estimates the long-term importance of an event description.
//
// It supports two evaluation modes:
//   - LLM-based: asks the configured provider for a score (more accurate)
//   - Rule-based: keyword matching and heuristics (fast, no provider needed)
//
// When the LLM call fails for any reason the evaluator silently falls back
// to the rule-based path, so importance estimation never blocks a
// perception.
//
// Example usage:
//
//	evaluator := ranker.NewEvaluator(provider)
//	score := evaluator.EvaluateImportance(ctx, "Maria told me the mill is closing")
//	// score is in [0.0, 1.0]
type Evaluator struct {
	// llm is the provider for LLM-based evaluation. If nil, evaluation is
	// always rule-based.
	llm llm.Provider
}

// NewEvaluator creates an importance evaluator.
//
// Pass a nil provider for rule-based-only evaluation.
func NewEvaluator(provider llm.Provider) *Evaluator {
	return &Evaluator{llm: provider}
}

// EvaluateImportance scores how important an event description is for an
// agent to remember long-term.
//
// The result is in [0, 1]:
//   - 1.0 = life-changing, identity-level event
//   - 0.5 = moderately notable
//   - 0.0 = forgettable background noise
//
// LLM evaluation is attempted first when a provider is configured; any
// failure falls back to the rule-based heuristics.
func (e *Evaluator) EvaluateImportance(ctx context.Context, content string) float64 {
	if e.llm != nil {
		score, err := e.evaluateWithLLM(ctx, content)
		if err == nil {
			return score
		}
		// Fall back to rules if the provider fails
	}
	return e.evaluateWithRules(content)
}

// evaluateWithLLM asks the provider to score the event.
func (e *Evaluator) evaluateWithLLM(ctx context.Context, content string) (float64, error) {
	systemPrompt := `You are an importance evaluator for an agent's episodic memory.
Rate how important the given event is for the agent to remember long-term,
on a scale from 0.0 (forgettable) to 1.0 (life-changing).
Consider emotional weight, consequences for relationships and goals, and novelty.
Return a JSON object with an "importance_score" field.`

	userPrompt := fmt.Sprintf("Event: %s\n\nEvaluate the importance and return JSON: {\"importance_score\": 0.0-1.0}", content)

	messages := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}

	response, err := e.llm.GenerateWithMessages(ctx, messages, llm.WithTemperature(0.0), llm.WithMaxTokens(64))
	if err != nil {
		return 0.5, err
	}

	return parseImportanceResponse(response), nil
}

// Event vocabulary for the rule-based heuristics. Weights reflect how
// strongly each class of word marks a memorable moment.
var (
	majorEventWords = []string{
		"died", "death", "born", "birth", "married", "wedding", "divorce",
		"fired", "hired", "promoted", "betrayed", "attacked", "accident",
		"disaster", "war", "moved away", "fell in love",
	}

	emotionalWords = []string{
		"love", "hate", "afraid", "terrified", "furious", "angry",
		"heartbroken", "thrilled", "devastated", "proud", "ashamed",
		"jealous", "grateful",
	}

	socialWords = []string{
		"friend", "enemy", "family", "mother", "father", "sister",
		"brother", "neighbor", "promised", "apologized", "argued",
		"confided", "trusted",
	}

	firstPersonMarkers = []string{
		"i ", "me ", "my ", "myself",
	}
)

// evaluateWithRules scores importance using keyword heuristics.
func (e *Evaluator) evaluateWithRules(content string) float64 {
	if strings.TrimSpace(content) == "" {
		return 0
	}

	score := 0.1 // every event is minimally memorable
	contentLower := strings.ToLower(content)

	for _, word := range majorEventWords {
		if strings.Contains(contentLower, word) {
			score += 0.25
		}
	}

	for _, word := range emotionalWords {
		if strings.Contains(contentLower, word) {
			score += 0.1
		}
	}

	for _, word := range socialWords {
		if strings.Contains(contentLower, word) {
			score += 0.05
		}
	}

	for _, marker := range firstPersonMarkers {
		if strings.Contains(" "+contentLower, " "+strings.TrimSpace(marker)+" ") {
			score += 0.05
			break
		}
	}

	// Longer descriptions tend to describe richer events
	if len(content) > 120 {
		score += 0.1
	} else if len(content) > 60 {
		score += 0.05
	}

	if strings.Contains(content, "!") {
		score += 0.05
	}

	return math.Min(score, 1.0)
}

var numberPattern = regexp.MustCompile(`\d+\.?\d*`)

// parseImportanceResponse extracts an importance score from an LLM reply.
//
// It first looks for a JSON object with an "importance_score" field, then
// falls back to the first number in the text, then to 0.5.
func parseImportanceResponse(response string) float64 {
	if start := strings.Index(response, "{"); start >= 0 {
		if end := strings.LastIndex(response, "}") + 1; end > start {
			var result map[string]interface{}
			if err := json.Unmarshal([]byte(response[start:end]), &result); err == nil {
				if score, ok := result["importance_score"].(float64); ok {
					return math.Max(0.0, math.Min(1.0, score))
				}
			}
		}
	}

	if matches := numberPattern.FindAllString(response, 1); len(matches) > 0 {
		var score float64
		if _, err := fmt.Sscanf(matches[0], "%f", &score); err == nil {
			return math.Max(0.0, math.Min(1.0, score))
		}
	}

	return 0.5
}
