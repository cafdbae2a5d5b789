package moodboard

import (
	"time"

	"github.com/basstimam/jatevo-moodboard-agent/logger"
	"github.com/basstimam/jatevo-moodboard-agent/metrics"
	"github.com/basstimam/jatevo-moodboard-agent/telemetry"
)

type Option func(*Agent)

func WithLogger(l logger.Logger) Option {
	return func(a *Agent) {
		a.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(a *Agent) {
		a.metrics = r
	}
}

func WithObserver(o telemetry.Observer) Option {
	return func(a *Agent) {
		a.obs = o
	}
}

// WithTimeout bounds the inference call. A hung upstream fails the invocation
// with a transport-level error instead of blocking it.
func WithTimeout(t time.Duration) Option {
	return func(a *Agent) {
		if t > 0 {
			a.timeout = t
		}
	}
}
