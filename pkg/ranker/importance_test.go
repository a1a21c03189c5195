package ranker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/psychesim/psychemem-go/pkg/llm"
	"github.com/psychesim/psychemem-go/pkg/ranker"
)

// stubProvider is a canned llm.Provider for tests.
type stubProvider struct {
	reply string
	err   error
}

func (s *stubProvider) Generate(_ context.Context, _ string, _ ...llm.GenerateOption) (string, error) {
	return s.reply, s.err
}

func (s *stubProvider) GenerateWithMessages(_ context.Context, _ []llm.Message, _ ...llm.GenerateOption) (string, error) {
	return s.reply, s.err
}

func (s *stubProvider) Close() error { return nil }

func TestEvaluateImportanceRules(t *testing.T) {
	evaluator := ranker.NewEvaluator(nil)
	ctx := context.Background()

	assert.Equal(t, 0.0, evaluator.EvaluateImportance(ctx, "   "),
		"blank content is worthless")

	mundane := evaluator.EvaluateImportance(ctx, "walked past the bakery")
	major := evaluator.EvaluateImportance(ctx, "My father died in the accident")
	assert.Greater(t, major, mundane, "life events outrank background noise")

	// Scores never escape [0, 1] even for keyword-stuffed content
	stuffed := evaluator.EvaluateImportance(ctx,
		"I married my love after the war! My mother died, my brother was born, "+
			"we moved away heartbroken and terrified but proud and grateful!")
	assert.LessOrEqual(t, stuffed, 1.0)
	assert.GreaterOrEqual(t, mundane, 0.0)
}

func TestEvaluateImportanceWithLLM(t *testing.T) {
	evaluator := ranker.NewEvaluator(&stubProvider{
		reply: `{"importance_score": 0.85}`,
	})

	score := evaluator.EvaluateImportance(context.Background(), "Maria told me the mill is closing")
	assert.InDelta(t, 0.85, score, 1e-9)
}

func TestEvaluateImportanceLLMOutOfRange(t *testing.T) {
	evaluator := ranker.NewEvaluator(&stubProvider{
		reply: `{"importance_score": 7.5}`,
	})

	score := evaluator.EvaluateImportance(context.Background(), "anything")
	assert.Equal(t, 1.0, score, "out-of-range provider scores are clamped")
}

func TestEvaluateImportanceFallsBackOnLLMError(t *testing.T) {
	evaluator := ranker.NewEvaluator(&stubProvider{
		err: errors.New("provider down"),
	})

	score := evaluator.EvaluateImportance(context.Background(), "My father died in the accident")
	assert.Greater(t, score, 0.1, "rule-based fallback still scores the event")
	assert.LessOrEqual(t, score, 1.0)
}

func TestEvaluateImportanceParsesLooseReplies(t *testing.T) {
	// Providers do not always return clean JSON
	evaluator := ranker.NewEvaluator(&stubProvider{
		reply: "I would rate this 0.6 out of 1.",
	})
	score := evaluator.EvaluateImportance(context.Background(), "anything")
	assert.InDelta(t, 0.6, score, 1e-9)

	evaluator = ranker.NewEvaluator(&stubProvider{reply: "hard to say"})
	score = evaluator.EvaluateImportance(context.Background(), "anything")
	assert.Equal(t, 0.5, score, "unparseable replies default to medium importance")
}
