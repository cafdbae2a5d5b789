// Package telemetry decouples lifecycle observation from the invocation
// control flow. Components call the Observer at well-defined points instead
// of logging inline.
package telemetry

import (
	"time"

	"github.com/basstimam/jatevo-moodboard-agent/logger"
	"github.com/basstimam/jatevo-moodboard-agent/metrics"
	"github.com/basstimam/jatevo-moodboard-agent/types"
)

// Observer receives lifecycle events from the gate, the normalizer, and the
// harness. Implementations must be safe for concurrent use.
type Observer interface {
	ChallengeIssued(resource string, accepts int)
	ProofVerified(resource, network, payer string)
	ProofRejected(resource string, reason types.RejectReason, detail string)
	NormalizationDegraded(reason string)
	TrialFinished(result types.TrialResult)
}

type NoopObserver struct{}

func (NoopObserver) ChallengeIssued(string, int)                      {}
func (NoopObserver) ProofVerified(string, string, string)             {}
func (NoopObserver) ProofRejected(string, types.RejectReason, string) {}
func (NoopObserver) NormalizationDegraded(string)                     {}
func (NoopObserver) TrialFinished(types.TrialResult)                  {}

// LogObserver forwards events to a structured logger and a metrics recorder.
type LogObserver struct {
	log logger.Logger
	rec metrics.Recorder
}

var _ Observer = (*LogObserver)(nil)

func NewLogObserver(log logger.Logger, rec metrics.Recorder) *LogObserver {
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &LogObserver{log: log, rec: rec}
}

func (o *LogObserver) ChallengeIssued(resource string, accepts int) {
	o.log.Info("payment challenge issued", map[string]any{
		"resource": resource,
		"accepts":  accepts,
	})
	o.rec.IncCounter("challenge_issued", map[string]string{"resource": resource})
}

func (o *LogObserver) ProofVerified(resource, network, payer string) {
	o.log.Info("payment proof verified", map[string]any{
		"resource": resource,
		"network":  network,
		"payer":    payer,
	})
	o.rec.IncCounter("proof_verified", map[string]string{"resource": resource})
}

func (o *LogObserver) ProofRejected(resource string, reason types.RejectReason, detail string) {
	o.log.Warn("payment proof rejected", map[string]any{
		"resource": resource,
		"reason":   string(reason),
		"detail":   detail,
	})
	o.rec.IncCounter("proof_rejected", map[string]string{"resource": resource})
}

func (o *LogObserver) NormalizationDegraded(reason string) {
	o.log.Warn("model reply failed normalization", map[string]any{
		"reason": reason,
	})
	o.rec.IncCounter("normalization_degraded", map[string]string{})
}

func (o *LogObserver) TrialFinished(result types.TrialResult) {
	o.log.Info("consistency trial finished", map[string]any{
		"trial":     result.Trial,
		"success":   result.Success,
		"validated": result.Validated,
		"status":    result.HTTPStatus,
		"latencyMs": result.LatencyMs,
		"error":     result.Error,
	})
	o.rec.ObserveLatency("trial", time.Duration(result.LatencyMs)*time.Millisecond, map[string]string{})
}
