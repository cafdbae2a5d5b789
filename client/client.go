// Package client implements the caller side of the payment-gated invocation:
// POST, receive a 402 challenge, pick a requirement on the caller's network,
// sign a proof, and resubmit the identical body with the proof header.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/basstimam/jatevo-moodboard-agent/signer"
	"github.com/basstimam/jatevo-moodboard-agent/types"
)

// PaymentHeader is the header the proof travels in.
const PaymentHeader = "X-Payment"

// SelectRequirement picks the first requirement on the caller's network.
// First-match-wins by network; the challenge order is the server's preference.
func SelectRequirement(accepts []types.PaymentRequirements, network types.Network) (types.PaymentRequirements, error) {
	for _, req := range accepts {
		if req.Network == network.String() && req.Scheme == string(types.SchemeExact) {
			return req, nil
		}
	}
	return types.PaymentRequirements{}, &types.AgentError{
		Code:    types.ErrUnsupportedNetwork,
		Message: fmt.Sprintf("challenge offers no requirement on network %q", network),
	}
}

// Client drives the challenge/sign/retry flow against one analysis endpoint.
type Client struct {
	url     string
	network types.Network
	signer  signer.SigningClient
	client  *http.Client
}

func New(url string, network types.Network, sc signer.SigningClient, timeout time.Duration) (*Client, error) {
	if sc == nil {
		return nil, fmt.Errorf("client: signing client is required")
	}
	if !network.IsSupported() {
		return nil, &types.AgentError{
			Code:    types.ErrUnsupportedNetwork,
			Message: fmt.Sprintf("unsupported network: %s", network),
		}
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &Client{
		url:     url,
		network: network,
		signer:  sc,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Analyze runs one full paid invocation. It returns the final HTTP status
// alongside the parsed response so callers can attribute failures. The body
// is marshaled once and resubmitted byte-for-byte: the proof is bound to the
// request fingerprint.
func (c *Client) Analyze(ctx context.Context, req types.AnalysisRequest) (*types.AnalysisResponse, int, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, 0, err
	}

	status, data, err := c.post(ctx, body, "")
	if err != nil {
		return nil, 0, err
	}

	if status == http.StatusPaymentRequired {
		var challenge types.PaymentChallenge
		if err := json.Unmarshal(data, &challenge); err != nil {
			return nil, status, fmt.Errorf("could not decode payment challenge: %w", err)
		}

		requirement, err := SelectRequirement(challenge.Accepts, c.network)
		if err != nil {
			return nil, status, err
		}

		header, err := c.signer.Sign(ctx, requirement, body)
		if err != nil {
			return nil, status, fmt.Errorf("failed to sign payment proof: %w", err)
		}

		status, data, err = c.post(ctx, body, header)
		if err != nil {
			return nil, 0, err
		}
	}

	if status != http.StatusOK {
		return nil, status, fmt.Errorf("analysis failed with status %d: %s", status, strings.TrimSpace(string(data)))
	}

	var resp types.AnalysisResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, status, fmt.Errorf("could not decode analysis response: %w", err)
	}

	return &resp, status, nil
}

func (c *Client) post(ctx context.Context, body []byte, proofHeader string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if proofHeader != "" {
		req.Header.Set(PaymentHeader, proofHeader)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, data, nil
}
