// Package harness quantifies end-to-end reliability of the paid invocation
// path by running it repeatedly and scoring the outcomes.
package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/basstimam/jatevo-moodboard-agent/telemetry"
	"github.com/basstimam/jatevo-moodboard-agent/types"
)

// Invoker runs one full paid invocation (challenge, sign, retry, normalize)
// and reports the final transport status. client.Client satisfies this.
type Invoker interface {
	Analyze(ctx context.Context, req types.AnalysisRequest) (*types.AnalysisResponse, int, error)
}

// Harness drives N trials sequentially. Trials are deliberately not
// concurrent: concurrent paid trials would multiply real cost and muddy
// per-trial latency attribution. That is a policy choice, not a technical
// limitation.
type Harness struct {
	invoker Invoker
	obs     telemetry.Observer
}

func New(invoker Invoker, obs telemetry.Observer) (*Harness, error) {
	if invoker == nil {
		return nil, fmt.Errorf("harness: invoker is required")
	}
	if obs == nil {
		obs = telemetry.NoopObserver{}
	}

	return &Harness{invoker: invoker, obs: obs}, nil
}

// Run executes trialCount trials with interTrialDelay between them and
// aggregates the results. A single trial's failure is recorded and the run
// proceeds; only context cancellation aborts the run early. Whether the run
// as a whole passed is answered by the report's AllSucceeded.
func (h *Harness) Run(ctx context.Context, trialCount int, req types.AnalysisRequest, interTrialDelay time.Duration) (*types.ConsistencyReport, error) {
	if trialCount <= 0 {
		return nil, fmt.Errorf("harness: trial count must be positive")
	}

	report := &types.ConsistencyReport{
		Trials:  trialCount,
		Results: make([]types.TrialResult, 0, trialCount),
	}

	var totalLatency int64

	for i := 0; i < trialCount; i++ {
		if i > 0 && interTrialDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(interTrialDelay):
			}
		}

		result := h.trial(ctx, i+1, req)
		h.obs.TrialFinished(result)
		report.Results = append(report.Results, result)

		if result.Success {
			report.Successes++
		}
		if result.Validated {
			report.ValidatedRuns++
		}
		totalLatency += result.LatencyMs
	}

	report.SuccessRate = float64(report.Successes) / float64(trialCount)
	report.ValidatedRate = float64(report.ValidatedRuns) / float64(trialCount)
	report.MeanLatencyMs = float64(totalLatency) / float64(trialCount)

	return report, nil
}

// trial runs one invocation. Success is transport-level: a 200 counts even
// when normalization degraded; validated additionally requires a conformant
// report.
func (h *Harness) trial(ctx context.Context, n int, req types.AnalysisRequest) types.TrialResult {
	start := time.Now()
	resp, status, err := h.invoker.Analyze(ctx, req)
	latency := time.Since(start).Milliseconds()

	result := types.TrialResult{
		Trial:      n,
		HTTPStatus: status,
		LatencyMs:  latency,
	}

	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Success = status == 200
	if resp != nil {
		result.Validated = resp.Output.Validated
	}

	return result
}
