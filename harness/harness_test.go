package harness

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basstimam/jatevo-moodboard-agent/types"
)

type scriptedInvoker struct {
	calls   int
	outcome func(call int) (*types.AnalysisResponse, int, error)
}

func (s *scriptedInvoker) Analyze(_ context.Context, _ types.AnalysisRequest) (*types.AnalysisResponse, int, error) {
	s.calls++
	return s.outcome(s.calls)
}

func validatedResponse() *types.AnalysisResponse {
	return &types.AnalysisResponse{
		Model:     "llama-3.3-70b",
		ElapsedMs: 120,
		Output:    types.NormalizedOutput{SchemaVersion: "1", Validated: true},
	}
}

func TestRunAllTrialsSucceedAndValidate(t *testing.T) {
	inv := &scriptedInvoker{outcome: func(int) (*types.AnalysisResponse, int, error) {
		return validatedResponse(), 200, nil
	}}
	h, err := New(inv, nil)
	require.NoError(t, err)

	report, err := h.Run(context.Background(), 5, types.AnalysisRequest{Count: 5}, 0)
	require.NoError(t, err)

	assert.Equal(t, 5, inv.calls)
	assert.Equal(t, 5, report.Trials)
	assert.Equal(t, 1.0, report.SuccessRate)
	assert.Equal(t, 1.0, report.ValidatedRate)
	assert.True(t, report.AllSucceeded())
	assert.Len(t, report.Results, 5)
}

func TestRunSingleFailureDoesNotAbort(t *testing.T) {
	inv := &scriptedInvoker{outcome: func(call int) (*types.AnalysisResponse, int, error) {
		if call == 2 {
			return nil, 0, errors.New("connection reset")
		}
		return validatedResponse(), 200, nil
	}}
	h, err := New(inv, nil)
	require.NoError(t, err)

	report, err := h.Run(context.Background(), 4, types.AnalysisRequest{Count: 5}, 0)
	require.NoError(t, err)

	assert.Equal(t, 4, inv.calls)
	assert.Equal(t, 3, report.Successes)
	assert.InDelta(t, 0.75, report.SuccessRate, 1e-9)
	assert.False(t, report.AllSucceeded())
	assert.Equal(t, "connection reset", report.Results[1].Error)
	assert.False(t, report.Results[1].Success)
}

func TestRunDegradedTrialCountsSuccessNotValidated(t *testing.T) {
	inv := &scriptedInvoker{outcome: func(int) (*types.AnalysisResponse, int, error) {
		resp := validatedResponse()
		resp.Output.Validated = false
		resp.Output.RawFallback = "I cannot help with that."
		return resp, 200, nil
	}}
	h, err := New(inv, nil)
	require.NoError(t, err)

	report, err := h.Run(context.Background(), 3, types.AnalysisRequest{Count: 5}, 0)
	require.NoError(t, err)

	assert.Equal(t, 1.0, report.SuccessRate)
	assert.Equal(t, 0.0, report.ValidatedRate)
	assert.True(t, report.AllSucceeded())
}

func TestRunRejectedPaymentIsRecordedFailure(t *testing.T) {
	inv := &scriptedInvoker{outcome: func(int) (*types.AnalysisResponse, int, error) {
		return nil, 402, errors.New("analysis failed with status 402")
	}}
	h, err := New(inv, nil)
	require.NoError(t, err)

	report, err := h.Run(context.Background(), 2, types.AnalysisRequest{Count: 5}, 0)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Successes)
	assert.Equal(t, 402, report.Results[0].HTTPStatus)
	assert.False(t, report.AllSucceeded())
}

func TestRunHonorsContextBetweenTrials(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inv := &scriptedInvoker{outcome: func(call int) (*types.AnalysisResponse, int, error) {
		if call == 1 {
			cancel()
		}
		return validatedResponse(), 200, nil
	}}
	h, err := New(inv, nil)
	require.NoError(t, err)

	_, err = h.Run(ctx, 5, types.AnalysisRequest{Count: 5}, 50*time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, inv.calls)
}

func TestRunRejectsNonPositiveTrialCount(t *testing.T) {
	h, err := New(&scriptedInvoker{outcome: func(int) (*types.AnalysisResponse, int, error) {
		return validatedResponse(), 200, nil
	}}, nil)
	require.NoError(t, err)

	_, err = h.Run(context.Background(), 0, types.AnalysisRequest{Count: 5}, 0)
	assert.Error(t, err)
}
