package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	moodboard "github.com/basstimam/jatevo-moodboard-agent"
	"github.com/basstimam/jatevo-moodboard-agent/config"
	"github.com/basstimam/jatevo-moodboard-agent/facilitator"
	"github.com/basstimam/jatevo-moodboard-agent/gate"
	"github.com/basstimam/jatevo-moodboard-agent/inference"
	"github.com/basstimam/jatevo-moodboard-agent/logger"
	"github.com/basstimam/jatevo-moodboard-agent/marketdata"
	"github.com/basstimam/jatevo-moodboard-agent/metrics"
	"github.com/basstimam/jatevo-moodboard-agent/server"
	"github.com/basstimam/jatevo-moodboard-agent/telemetry"
)

func main() {
	var envFile = flag.String("env", "", "Optional .env file to load")
	flag.Parse()

	bootLog := logger.NewZapLogger("moodboardd", "info")

	cfg, err := config.Load(*envFile)
	if err != nil {
		bootLog.Error("failed to load config", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	log := logger.NewZapLogger("moodboardd", cfg.LogLevel)
	rec := metrics.NewPrometheusRecorder(prometheus.DefaultRegisterer)
	obs := telemetry.NewLogObserver(log, rec)

	var fac facilitator.Facilitator
	if cfg.FacilitatorURL != "" {
		fac = facilitator.NewHTTPClient(cfg.FacilitatorURL, 30*time.Second)
	} else {
		fac = facilitator.NewLocal()
	}

	g, err := gate.New(gate.PriceConfig{
		Resource:          cfg.ResourceURL,
		Description:       "Crypto market moodboard analysis",
		MaxTimeoutSeconds: 300,
		Options: []gate.PriceOption{{
			Network:      cfg.Network,
			Asset:        cfg.Asset,
			PayTo:        cfg.PayTo,
			Amount:       cfg.Price,
			TokenName:    cfg.TokenName,
			TokenVersion: cfg.TokenVersion,
		}},
	}, fac, obs)
	if err != nil {
		log.Error("failed to build payment gate", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	market := marketdata.NewClient(cfg.MarketDataURL, cfg.MarketDataKey, 15*time.Second)
	llm := inference.NewClient(cfg.InferenceURL, cfg.InferenceKey, cfg.InferenceTimeout)

	agent, err := moodboard.New(market, llm, cfg.Model,
		moodboard.WithLogger(log),
		moodboard.WithMetrics(rec),
		moodboard.WithObserver(obs),
		moodboard.WithTimeout(cfg.InferenceTimeout),
	)
	if err != nil {
		log.Error("failed to build agent", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	srv, err := server.New(g, agent, log, server.Config{
		RateRPS:   cfg.RateRPS,
		RateBurst: cfg.RateBurst,
	})
	if err != nil {
		log.Error("failed to build server", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("moodboard agent listening", map[string]any{
			"addr":     cfg.HTTPAddr,
			"network":  cfg.Network.String(),
			"resource": cfg.ResourceURL,
			"model":    cfg.Model,
		})
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown did not finish cleanly", map[string]any{"error": err.Error()})
	}
}
