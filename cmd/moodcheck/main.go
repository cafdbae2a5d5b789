// moodcheck runs the full paid invocation path repeatedly against a live
// agent and reports aggregate success and validation rates. Exit code is
// non-zero unless every trial succeeded.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/basstimam/jatevo-moodboard-agent/client"
	"github.com/basstimam/jatevo-moodboard-agent/harness"
	"github.com/basstimam/jatevo-moodboard-agent/logger"
	"github.com/basstimam/jatevo-moodboard-agent/metrics"
	"github.com/basstimam/jatevo-moodboard-agent/signer"
	"github.com/basstimam/jatevo-moodboard-agent/telemetry"
	"github.com/basstimam/jatevo-moodboard-agent/types"
)

func main() {
	var (
		url      = flag.String("url", "http://localhost:8080/api/analyze", "analysis endpoint")
		network  = flag.String("network", "base-sepolia", "payment network")
		trials   = flag.Int("trials", 5, "number of sequential trials")
		delay    = flag.Duration("delay", 2*time.Second, "delay between trials")
		count    = flag.Int("count", 5, "coins per analysis")
		currency = flag.String("currency", "usd", "quote currency")
		logLevel = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	log := logger.NewZapLogger("moodcheck", *logLevel)

	key := os.Getenv("MOODCHECK_PRIVATE_KEY")
	if key == "" {
		log.Error("MOODCHECK_PRIVATE_KEY is required", nil)
		os.Exit(2)
	}

	sc, err := signer.NewEVMSigner(key)
	if err != nil {
		log.Error("invalid private key", map[string]any{"error": err.Error()})
		os.Exit(2)
	}

	c, err := client.New(*url, types.Network(*network), sc, 2*time.Minute)
	if err != nil {
		log.Error("failed to build client", map[string]any{"error": err.Error()})
		os.Exit(2)
	}

	obs := telemetry.NewLogObserver(log, metrics.NoopRecorder{})
	h, err := harness.New(c, obs)
	if err != nil {
		log.Error("failed to build harness", map[string]any{"error": err.Error()})
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting consistency run", map[string]any{
		"url":    *url,
		"trials": *trials,
		"delay":  delay.String(),
		"payer":  sc.Address().Hex(),
	})

	report, err := h.Run(ctx, *trials, types.AnalysisRequest{Count: *count, Currency: *currency}, *delay)
	if err != nil {
		log.Error("consistency run aborted", map[string]any{"error": err.Error()})
		os.Exit(2)
	}

	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))

	if !report.AllSucceeded() {
		os.Exit(1)
	}
}
