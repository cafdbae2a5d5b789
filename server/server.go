// Package server exposes the payment-gated analysis endpoint over HTTP.
package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	moodboard "github.com/basstimam/jatevo-moodboard-agent"
	"github.com/basstimam/jatevo-moodboard-agent/gate"
	"github.com/basstimam/jatevo-moodboard-agent/logger"
	"github.com/basstimam/jatevo-moodboard-agent/types"
)

const (
	// PaymentHeader carries the opaque payment proof.
	PaymentHeader = "X-Payment"

	maxBodyBytes = 1 << 20
)

var validate = validator.New()

// Server routes the analysis endpoint through the payment gate. The proof
// travels as a single opaque header alongside the original request body; the
// same body must be resubmitted byte-for-byte since the proof is bound to the
// request fingerprint.
type Server struct {
	gate    *gate.Gate
	agent   *moodboard.Agent
	log     logger.Logger
	limiter *ipRateLimiter
	mux     *http.ServeMux
}

// Config tunes the HTTP surface; zero values disable rate limiting.
type Config struct {
	RateRPS   float64
	RateBurst int
}

func New(g *gate.Gate, agent *moodboard.Agent, log logger.Logger, cfg Config) (*Server, error) {
	if g == nil || agent == nil {
		return nil, fmt.Errorf("server: gate and agent are required")
	}
	if log == nil {
		log = logger.NoopLogger{}
	}

	s := &Server{
		gate:    g,
		agent:   agent,
		log:     log,
		limiter: newIPRateLimiter(cfg.RateRPS, cfg.RateBurst),
		mux:     http.NewServeMux(),
	}

	s.mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.allow(clientKey(r), time.Now()) {
		writeError(w, http.StatusTooManyRequests, &types.AgentError{
			Code:    types.ErrInvalidRequest,
			Message: "rate limit exceeded",
		})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, &types.AgentError{
			Code:    types.ErrInvalidRequest,
			Message: "could not read request body",
		})
		return
	}

	// Input validation happens before any paid work.
	var req types.AnalysisRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, &types.AgentError{
			Code:    types.ErrInvalidRequest,
			Message: fmt.Sprintf("request body is not valid JSON: %v", err),
		})
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, &types.AgentError{
			Code:    types.ErrInvalidRequest,
			Message: fmt.Sprintf("invalid request: %v", err),
		})
		return
	}

	decision := s.gate.Evaluate(r.Context(), body, r.Header.Get(PaymentHeader))

	switch decision.Status {
	case gate.StatusChallenge:
		writeJSON(w, http.StatusPaymentRequired, decision.Challenge)

	case gate.StatusRejected:
		challenge := &types.PaymentChallenge{
			X402Version: int(types.X402Version1),
			Accepts:     s.gate.Requirements(),
			Error:       string(decision.Reason),
		}
		writeJSON(w, http.StatusPaymentRequired, challenge)

	case gate.StatusAuthorized:
		resp, err := s.agent.Analyze(r.Context(), req)
		if err != nil {
			s.log.Error("paid invocation failed after authorization", map[string]any{
				"payer": decision.Payer,
				"error": err.Error(),
			})
			status := http.StatusBadGateway
			agentErr, ok := err.(*types.AgentError)
			if !ok {
				agentErr = &types.AgentError{Code: types.ErrInference, Message: err.Error()}
			}
			writeError(w, status, agentErr)
			return
		}
		writeJSON(w, http.StatusOK, resp)

	default:
		writeError(w, http.StatusInternalServerError, &types.AgentError{
			Code:    types.ErrConfigError,
			Message: "unknown gate decision",
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err *types.AgentError) {
	writeJSON(w, status, err)
}
