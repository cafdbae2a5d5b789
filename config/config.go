// Package config loads the explicit configuration value handed to each
// component constructor. Nothing here is global; Load is called once at
// startup and the result is passed down.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/basstimam/jatevo-moodboard-agent/types"
)

type Config struct {
	// HTTP configuration
	HTTPAddr    string
	ResourceURL string
	RateRPS     float64
	RateBurst   int

	// Payment configuration
	Network      types.Network
	PayTo        string
	Asset        string
	Price        string // atomic units
	TokenName    string
	TokenVersion string

	// External facilitator; empty means in-process verification
	FacilitatorURL string

	// Inference configuration
	InferenceURL     string
	InferenceKey     string
	Model            string
	InferenceTimeout time.Duration

	// Market data configuration
	MarketDataURL string
	MarketDataKey string

	// Logging
	LogLevel string
}

func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := loadDotEnv(envFile); err != nil {
			return nil, fmt.Errorf("could not load env file %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		ResourceURL:      getEnv("RESOURCE_URL", "http://localhost:8080/api/analyze"),
		RateRPS:          getEnvFloat("RATE_LIMIT_RPS", 10),
		RateBurst:        getEnvInt("RATE_LIMIT_BURST", 20),
		Network:          types.Network(getEnv("PAYMENT_NETWORK", "base-sepolia")),
		PayTo:            getEnv("PAYMENT_PAY_TO", ""),
		Asset:            getEnv("PAYMENT_ASSET", ""),
		Price:            getEnv("PAYMENT_PRICE", "10000"),
		TokenName:        getEnv("PAYMENT_TOKEN_NAME", "USDC"),
		TokenVersion:     getEnv("PAYMENT_TOKEN_VERSION", "2"),
		FacilitatorURL:   getEnv("FACILITATOR_URL", ""),
		InferenceURL:     getEnv("INFERENCE_URL", "https://inference.jatevo.id/v1"),
		InferenceKey:     getEnv("INFERENCE_API_KEY", ""),
		Model:            getEnv("INFERENCE_MODEL", "llama-3.3-70b"),
		InferenceTimeout: getEnvDuration("INFERENCE_TIMEOUT", "60s"),
		MarketDataURL:    getEnv("MARKETDATA_URL", ""),
		MarketDataKey:    getEnv("MARKETDATA_API_KEY", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if !c.Network.IsSupported() {
		return &types.AgentError{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("unsupported payment network: %s", c.Network),
		}
	}
	if c.PayTo == "" {
		return &types.AgentError{
			Code:    types.ErrConfigError,
			Message: "PAYMENT_PAY_TO is required",
		}
	}
	if c.Asset == "" {
		return &types.AgentError{
			Code:    types.ErrConfigError,
			Message: "PAYMENT_ASSET is required",
		}
	}
	return nil
}

func loadDotEnv(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			os.Setenv(key, value)
		}
	}
	return scanner.Err()
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key, defaultVal string) time.Duration {
	val := getEnv(key, defaultVal)
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	d, _ := time.ParseDuration(defaultVal)
	return d
}
