// Package moodboard composes the paid analysis pipeline: top market entries
// are fetched, handed to the model, and the reply is normalized into a
// validated mood report.
package moodboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/basstimam/jatevo-moodboard-agent/logger"
	"github.com/basstimam/jatevo-moodboard-agent/marketdata"
	"github.com/basstimam/jatevo-moodboard-agent/metrics"
	"github.com/basstimam/jatevo-moodboard-agent/normalizer"
	"github.com/basstimam/jatevo-moodboard-agent/telemetry"
	"github.com/basstimam/jatevo-moodboard-agent/types"
)

// MarketData is the data collaborator consumed by the agent.
type MarketData interface {
	FetchTopCoins(ctx context.Context, limit int, currency string) ([]marketdata.Coin, error)
}

// Inference is the model collaborator. Replies may be empty, markdown-wrapped,
// or not valid JSON.
type Inference interface {
	Complete(ctx context.Context, prompt, model string) (string, error)
}

// Agent runs the paid pipeline for one invocation at a time. All entities are
// created fresh per request; the agent holds no mutable state.
type Agent struct {
	market  MarketData
	llm     Inference
	model   string
	timeout time.Duration
	logger  logger.Logger
	metrics metrics.Recorder
	obs     telemetry.Observer
}

// New creates an agent over the given collaborators. The model identifier is
// echoed back as provenance on every response.
func New(market MarketData, llm Inference, model string, opts ...Option) (*Agent, error) {
	if market == nil || llm == nil {
		return nil, fmt.Errorf("moodboard: market data and inference collaborators are required")
	}
	if model == "" {
		return nil, fmt.Errorf("moodboard: model identifier is required")
	}

	a := &Agent{
		market:  market,
		llm:     llm,
		model:   model,
		timeout: 60 * time.Second,
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
		obs:     telemetry.NoopObserver{},
	}

	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// Analyze performs the paid operation: fetch, prompt, complete, normalize.
// Collaborator failures abort the invocation with a wrapped error naming the
// collaborator; a reply that fails normalization is a degraded success.
func (a *Agent) Analyze(ctx context.Context, req types.AnalysisRequest) (*types.AnalysisResponse, error) {
	start := time.Now()

	currency := req.Currency
	if currency == "" {
		currency = "usd"
	}

	coins, err := a.market.FetchTopCoins(ctx, req.Count, currency)
	if err != nil {
		return nil, &types.AgentError{
			Code:    types.ErrMarketData,
			Message: fmt.Sprintf("market data collaborator failed: %v", err),
		}
	}

	llmCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.llm.Complete(llmCtx, buildPrompt(coins, currency), a.model)
	if err != nil {
		return nil, &types.AgentError{
			Code:    types.ErrInference,
			Message: fmt.Sprintf("inference collaborator failed: %v", err),
		}
	}

	output := normalizer.Normalize(raw, normalizer.Timestamps{AnalyzedAt: start})
	if !output.Validated {
		a.obs.NormalizationDegraded("model reply did not conform to the report schema")
	}

	elapsed := time.Since(start)
	a.metrics.ObserveLatency("analyze", elapsed, map[string]string{})
	a.logger.Debug("analysis finished", map[string]any{
		"model":     a.model,
		"coins":     len(coins),
		"validated": output.Validated,
		"elapsedMs": elapsed.Milliseconds(),
	})

	return &types.AnalysisResponse{
		Model:     a.model,
		ElapsedMs: elapsed.Milliseconds(),
		Output:    output,
	}, nil
}

func buildPrompt(coins []marketdata.Coin, currency string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a crypto market mood analyst. Given today's top %d coins by market cap (prices in %s):\n\n",
		len(coins), strings.ToUpper(currency))

	for i, c := range coins {
		fmt.Fprintf(&b, "%d. %s (%s): price %.6f, 24h change %.2f%%\n",
			i+1, c.Name, strings.ToUpper(c.Symbol), c.CurrentPrice, c.Change24h)
	}

	b.WriteString(`
Respond with ONLY a JSON object, no prose, matching exactly:
{
  "market_mood": "<one short phrase for the overall market>",
  "coins": [
    {"symbol": "<SYMBOL>", "mood": "<emoji>", "narrative": "<one sentence>", "score": <0.0-1.0>}
  ]
}
Include one entry per coin listed above. "score" is your confidence in the mood, between 0 and 1.`)

	return b.String()
}
