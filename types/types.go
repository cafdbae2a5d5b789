package types

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// X402Version represents the version of the x402 protocol
type X402Version int

const (
	X402Version1 X402Version = 1
)

// PaymentScheme represents different payment schemes
type PaymentScheme string

const (
	SchemeExact PaymentScheme = "exact"
)

// PaymentRequirements defines one payment option the agent accepts for an
// invocation. A challenge carries one entry per configured network;
// first-match-wins by the caller's chosen network.
type PaymentRequirements struct {
	// Scheme of the payment protocol to use (e.g., "exact").
	Scheme string `json:"scheme"`

	// Network of the blockchain to send payment on (e.g., "base-sepolia").
	Network string `json:"network"`

	// Maximum amount required to pay for the resource in atomic units of the asset.
	// Represented as a string because Go does not support uint256.
	MaxAmountRequired string `json:"maxAmountRequired"`

	// URL of the resource to pay for.
	Resource string `json:"resource"`

	// Description of the resource being purchased.
	Description string `json:"description"`

	// MIME type of the resource response.
	MimeType string `json:"mimeType"`

	// Address to which the payment must be sent.
	PayTo string `json:"payTo"`

	// Maximum time in seconds for the resource server to respond.
	MaxTimeoutSeconds int `json:"maxTimeoutSeconds"`

	// Address of the EIP-3009 compliant ERC20 contract.
	Asset string `json:"asset"`

	// Extra information about payment details specific to the scheme.
	// For the `exact` scheme on EVM this includes the token's EIP-712
	// domain `name` and `version`.
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// Validate checks that the requirements contain all required fields.
func (pr *PaymentRequirements) Validate() error {
	if pr.Scheme == "" {
		return fmt.Errorf("paymentRequirements.scheme is required")
	}

	if pr.Network == "" {
		return fmt.Errorf("paymentRequirements.network is required")
	}

	if pr.MaxAmountRequired == "" {
		return fmt.Errorf("paymentRequirements.maxAmountRequired is required")
	}

	if pr.PayTo == "" {
		return fmt.Errorf("paymentRequirements.payTo is required")
	}

	if pr.Asset == "" {
		return fmt.Errorf("paymentRequirements.asset is required")
	}

	if pr.MaxTimeoutSeconds <= 0 {
		return fmt.Errorf("paymentRequirements.maxTimeoutSeconds must be greater than 0")
	}

	return nil
}

// PaymentChallenge is the body returned with HTTP 402 when a request arrives
// without a valid payment proof. It is recomputed per request, never stored.
type PaymentChallenge struct {
	// Version of the x402 payment protocol.
	X402Version int `json:"x402Version"`

	// List of payment requirements that the agent accepts.
	Accepts []PaymentRequirements `json:"accepts"`

	// Message indicating any processing error.
	Error string `json:"error,omitempty"`
}

// PaymentPayload is the decoded form of the X-Payment proof header.
type PaymentPayload struct {
	// Version of the x402 payment protocol.
	X402Version int `json:"x402Version"`

	Scheme string `json:"scheme"`

	Network string `json:"network"`

	// Base64-encoded JSON of ExactEvmPayload.
	Payload string `json:"payload"`
}

// ExactEvmPayload carries an EIP-3009 transfer authorization, its signature,
// and the fingerprint of the request body the proof was produced for.
type ExactEvmPayload struct {
	// The 65-byte ECDSA signature (r,s,v), hex encoded.
	Signature string `json:"signature"`

	Authorization EvmAuthorization `json:"authorization"`

	// Keccak-256 of the exact request body bytes, hex encoded. Binds the
	// proof to one invocation; the gate recomputes and compares it.
	RequestHash string `json:"requestHash"`
}

type EvmAuthorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`       // uint256
	ValidAfter  string `json:"validAfter"`  // uint256 timestamp
	ValidBefore string `json:"validBefore"` // uint256 timestamp
	Nonce       string `json:"nonce"`       // bytes32
}

// EncodeHeader serializes the payload into the opaque X-Payment header value.
func (p *PaymentPayload) EncodeHeader() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodePaymentHeader parses an X-Payment header value.
func DecodePaymentHeader(header string) (*PaymentPayload, error) {
	data, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, fmt.Errorf("payment header is not valid base64: %w", err)
	}

	var payload PaymentPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("payment header is not valid JSON: %w", err)
	}

	if payload.X402Version <= 0 {
		return nil, fmt.Errorf("x402Version must be greater than 0")
	}

	if payload.Payload == "" {
		return nil, fmt.Errorf("payment payload is empty")
	}

	return &payload, nil
}

// DecodeExact decodes the inner EVM payload.
func (p *PaymentPayload) DecodeExact() (*ExactEvmPayload, error) {
	data, err := base64.StdEncoding.DecodeString(p.Payload)
	if err != nil {
		return nil, fmt.Errorf("inner payload is not valid base64: %w", err)
	}

	var exact ExactEvmPayload
	if err := json.Unmarshal(data, &exact); err != nil {
		return nil, fmt.Errorf("inner payload is not valid JSON: %w", err)
	}

	return &exact, nil
}

// Encode wraps the EVM payload in a PaymentPayload envelope.
func (e *ExactEvmPayload) Encode(network Network) (*PaymentPayload, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}

	return &PaymentPayload{
		X402Version: int(X402Version1),
		Scheme:      string(SchemeExact),
		Network:     network.String(),
		Payload:     base64.StdEncoding.EncodeToString(data),
	}, nil
}

// VerificationResult contains the result of payment proof verification.
type VerificationResult struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// RejectReason classifies why the gate refused a payment proof.
type RejectReason string

const (
	RejectMalformed             RejectReason = "malformed"
	RejectRequirementMismatch   RejectReason = "requirement_mismatch"
	RejectInsufficientAmount    RejectReason = "insufficient_amount"
	RejectExpired               RejectReason = "expired"
	RejectSettlementUnreachable RejectReason = "settlement_unreachable"
)

// Error types
type AgentError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *AgentError) Error() string {
	return e.Message
}

// Common error codes
const (
	ErrInvalidRequest     = "INVALID_REQUEST"
	ErrUnsupportedNetwork = "UNSUPPORTED_NETWORK"
	ErrPaymentRequired    = "PAYMENT_REQUIRED"
	ErrPaymentRejected    = "PAYMENT_REJECTED"
	ErrMarketData         = "MARKET_DATA_ERROR"
	ErrInference          = "INFERENCE_ERROR"
	ErrConfigError        = "CONFIG_ERROR"
)
