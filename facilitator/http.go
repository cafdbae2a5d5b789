package facilitator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/basstimam/jatevo-moodboard-agent/types"
)

// verifyRequest is the wire payload sent to a remote facilitator.
type verifyRequest struct {
	X402Version         int                       `json:"x402Version"`
	PaymentPayload      types.PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements types.PaymentRequirements `json:"paymentRequirements"`
}

// HTTPClient talks to a remote x402 facilitator's verify endpoint.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

var _ Facilitator = (*HTTPClient)(nil)

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Verify posts the payload and requirement to the facilitator. Transport
// failures surface as errors so the gate can fail closed.
func (c *HTTPClient) Verify(ctx context.Context, payload *types.PaymentPayload, requirement types.PaymentRequirements) (*types.VerificationResult, error) {
	body, err := json.Marshal(verifyRequest{
		X402Version:         int(types.X402Version1),
		PaymentPayload:      *payload,
		PaymentRequirements: requirement,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/verify", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("facilitator unreachable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read facilitator response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("facilitator returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var result types.VerificationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode facilitator response: %w", err)
	}

	return &result, nil
}
