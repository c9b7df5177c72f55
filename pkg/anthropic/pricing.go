package anthropic

import "go.uber.org/zap"

// Per-million-token pricing, input and output, for models we invoke.
var modelPricing = map[string][2]float64{
	"claude-haiku-4-5-20251001":  {0.80, 4.00},
	"claude-sonnet-4-5-20250929": {3.00, 15.00},
	"claude-opus-4-6":            {15.00, 75.00},
}

// TokenUsage tracks token consumption for one call.
type TokenUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

// EstimateCost converts usage into USD for the given model. Unknown
// models cost 0. Cache writes bill at 1.25x the input rate, cache reads
// at 0.1x.
func (u TokenUsage) EstimateCost(model string) float64 {
	pricing, ok := modelPricing[model]
	if !ok {
		return 0
	}
	in, out := pricing[0], pricing[1]
	cost := float64(u.InputTokens) / 1e6 * in
	cost += float64(u.OutputTokens) / 1e6 * out
	cost += float64(u.CacheCreationInputTokens) / 1e6 * in * 1.25
	cost += float64(u.CacheReadInputTokens) / 1e6 * in * 0.1
	return cost
}

// LogCost emits a structured cost attribution line for one call.
func (u TokenUsage) LogCost(model, phase string) {
	zap.L().Info("cost attribution",
		zap.String("model", model),
		zap.String("phase", phase),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Int64("cache_write_tokens", u.CacheCreationInputTokens),
		zap.Int64("cache_read_tokens", u.CacheReadInputTokens),
		zap.Float64("estimated_cost_usd", u.EstimateCost(model)),
	)
}
