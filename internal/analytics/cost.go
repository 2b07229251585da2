package analytics

import "github.com/mbenaiss/InsightRun/internal/domain"

// defaultCostPerToken is the flat estimate applied when a model has no
// pricing entry. The resulting figure is a rough estimate for analytics,
// not billing-grade.
const defaultCostPerToken = 0.000002

type modelPricing struct {
	inputPer1K  float64
	outputPer1K float64
}

var pricing = map[string]modelPricing{
	"gpt-4o":        {inputPer1K: 0.005, outputPer1K: 0.015},
	"gpt-4o-mini":   {inputPer1K: 0.00015, outputPer1K: 0.0006},
	"gpt-4-turbo":   {inputPer1K: 0.01, outputPer1K: 0.03},
	"gpt-3.5-turbo": {inputPer1K: 0.0005, outputPer1K: 0.0015},
}

// EstimateCost approximates the USD cost of a completion. Known models
// use per-direction pricing; anything else falls back to a flat
// per-token constant over the total.
func EstimateCost(model string, usage domain.Usage) float64 {
	if p, ok := pricing[model]; ok {
		inputCost := float64(usage.PromptTokens) / 1000 * p.inputPer1K
		outputCost := float64(usage.CompletionTokens) / 1000 * p.outputPer1K
		return inputCost + outputCost
	}
	return float64(usage.TotalTokens) * defaultCostPerToken
}
