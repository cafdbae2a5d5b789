package types

// AnalysisRequest is the caller-supplied invocation body. Immutable once
// accepted; validated before any paid work begins.
type AnalysisRequest struct {
	// Number of top market entries to analyze.
	Count int `json:"count" validate:"required,min=1,max=50"`

	// Quote currency code, e.g. "usd". Defaults to "usd" when empty.
	Currency string `json:"currency,omitempty" validate:"omitempty,alpha,min=3,max=4"`
}

// CoinMood is one entry of the model's mood analysis.
type CoinMood struct {
	Symbol    string  `json:"symbol" validate:"required"`
	Mood      string  `json:"mood" validate:"required"`
	Narrative string  `json:"narrative" validate:"required"`
	Score     float64 `json:"score" validate:"gte=0,lte=1"`
}

// MoodReport is the schema the model's reply must conform to.
type MoodReport struct {
	SchemaVersion string     `json:"schema_version,omitempty"`
	MarketMood    string     `json:"market_mood,omitempty"`
	Coins         []CoinMood `json:"coins" validate:"required,min=1,dive"`

	// Always overwritten from the invocation clock; the model is never
	// trusted for wall-clock time.
	AnalyzedAt string `json:"analyzed_at"`
}

// NormalizedOutput is the validated form of a raw model reply. Every
// normalization path produces one; an unparsable or schema-invalid reply is
// the documented degraded outcome, not an error.
type NormalizedOutput struct {
	SchemaVersion string `json:"schemaVersion"`

	// True when the reply parsed and every schema constraint held.
	Validated bool `json:"validated"`

	// Best-effort parsed report. Present on the validated path and, when
	// parsing succeeded but validation failed, on the degraded path too.
	Report *MoodReport `json:"report,omitempty"`

	// The raw model reply, verbatim, whenever Validated is false.
	RawFallback string `json:"rawFallback,omitempty"`
}

// AnalysisResponse is the 200 body for an authorized invocation.
type AnalysisResponse struct {
	Model     string           `json:"model"`
	ElapsedMs int64            `json:"elapsedMs"`
	Output    NormalizedOutput `json:"output"`
}

// TrialResult is the per-run outcome of one consistency trial.
type TrialResult struct {
	Trial      int    `json:"trial"`
	Success    bool   `json:"success"`
	HTTPStatus int    `json:"httpStatus"`
	Validated  bool   `json:"validated"`
	LatencyMs  int64  `json:"latencyMs"`
	Error      string `json:"error,omitempty"`
}

// ConsistencyReport aggregates a harness run. An operational smoke signal,
// not a formal reliability estimate: no confidence intervals are computed.
type ConsistencyReport struct {
	Trials        int           `json:"trials"`
	Successes     int           `json:"successes"`
	ValidatedRuns int           `json:"validatedRuns"`
	SuccessRate   float64       `json:"successRate"`
	ValidatedRate float64       `json:"validatedRate"`
	MeanLatencyMs float64       `json:"meanLatencyMs"`
	Results       []TrialResult `json:"results"`
}

// AllSucceeded reports whether the run as a whole passed.
func (r *ConsistencyReport) AllSucceeded() bool {
	return r.Trials > 0 && r.Successes == r.Trials
}
