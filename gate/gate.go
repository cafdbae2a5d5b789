// Package gate enforces the payment challenge/response protocol in front of
// the paid analysis pipeline: no proof means a 402 challenge, a valid proof
// means an authorized pass-through, anything else is a terminal rejection.
package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/basstimam/jatevo-moodboard-agent/facilitator"
	"github.com/basstimam/jatevo-moodboard-agent/telemetry"
	"github.com/basstimam/jatevo-moodboard-agent/types"
)

// PriceOption is one accepted payment route for the resource.
type PriceOption struct {
	Network      types.Network
	Asset        string // EIP-3009 token contract
	PayTo        string
	Amount       string // atomic units
	TokenName    string // EIP-712 domain name, e.g. "USDC"
	TokenVersion string // EIP-712 domain version, e.g. "2"
}

// PriceConfig is the explicit price configuration passed to the gate
// constructor. There is no ambient global pricing state.
type PriceConfig struct {
	Resource          string
	Description       string
	MaxTimeoutSeconds int
	Options           []PriceOption
}

func (c *PriceConfig) Validate() error {
	if c.Resource == "" {
		return fmt.Errorf("price config: resource is required")
	}
	if len(c.Options) == 0 {
		return fmt.Errorf("price config: at least one price option is required")
	}
	for i, opt := range c.Options {
		if !opt.Network.IsSupported() {
			return fmt.Errorf("price config: option %d: unsupported network %q", i, opt.Network)
		}
		amount, err := decimal.NewFromString(opt.Amount)
		if err != nil {
			return fmt.Errorf("price config: option %d: invalid amount: %w", i, err)
		}
		if !amount.IsPositive() {
			return fmt.Errorf("price config: option %d: amount must be positive", i)
		}
		if opt.PayTo == "" || opt.Asset == "" {
			return fmt.Errorf("price config: option %d: payTo and asset are required", i)
		}
	}
	return nil
}

// Status is the terminal outcome of evaluating one invocation.
type Status string

const (
	StatusChallenge  Status = "challenge"
	StatusAuthorized Status = "authorized"
	StatusRejected   Status = "rejected"
)

// Decision is the gate's verdict for a single request. The gate holds no
// state across requests; retries are a new invocation with a new proof.
type Decision struct {
	Status    Status
	Challenge *types.PaymentChallenge
	Reason    types.RejectReason
	Detail    string
	Payer     string
}

// Gate is stateless across requests and safe for concurrent use. Double-spend
// protection is delegated entirely to the facilitator.
type Gate struct {
	prices PriceConfig
	fac    facilitator.Facilitator
	obs    telemetry.Observer
	now    func() time.Time
}

func New(prices PriceConfig, fac facilitator.Facilitator, obs telemetry.Observer) (*Gate, error) {
	if err := prices.Validate(); err != nil {
		return nil, err
	}
	if fac == nil {
		return nil, fmt.Errorf("gate: facilitator is required")
	}
	if obs == nil {
		obs = telemetry.NoopObserver{}
	}

	return &Gate{
		prices: prices,
		fac:    fac,
		obs:    obs,
		now:    time.Now,
	}, nil
}

// Requirements computes the accepted payment requirement set. Deterministic
// for a fixed price configuration: same request, same challenge.
func (g *Gate) Requirements() []types.PaymentRequirements {
	accepts := make([]types.PaymentRequirements, 0, len(g.prices.Options))
	for _, opt := range g.prices.Options {
		accepts = append(accepts, types.PaymentRequirements{
			Scheme:            string(types.SchemeExact),
			Network:           opt.Network.String(),
			MaxAmountRequired: opt.Amount,
			Resource:          g.prices.Resource,
			Description:       g.prices.Description,
			MimeType:          "application/json",
			PayTo:             opt.PayTo,
			MaxTimeoutSeconds: g.prices.MaxTimeoutSeconds,
			Asset:             opt.Asset,
			Extra: map[string]interface{}{
				"name":    opt.TokenName,
				"version": opt.TokenVersion,
			},
		})
	}
	return accepts
}

func (g *Gate) challenge(errMsg string) *Decision {
	return &Decision{
		Status: StatusChallenge,
		Challenge: &types.PaymentChallenge{
			X402Version: int(types.X402Version1),
			Accepts:     g.Requirements(),
			Error:       errMsg,
		},
	}
}

func (g *Gate) reject(reason types.RejectReason, detail string) *Decision {
	g.obs.ProofRejected(g.prices.Resource, reason, detail)
	return &Decision{
		Status: StatusRejected,
		Reason: reason,
		Detail: detail,
	}
}

// Evaluate runs the per-request state machine: absent header issues a
// challenge; a present header is verified against the matching requirement
// and either authorizes the paid operation or rejects it with a
// machine-readable reason. Verification failures never authorize; a
// facilitator outage fails closed.
func (g *Gate) Evaluate(ctx context.Context, body []byte, proofHeader string) *Decision {
	if proofHeader == "" {
		g.obs.ChallengeIssued(g.prices.Resource, len(g.prices.Options))
		return g.challenge("")
	}

	payload, err := types.DecodePaymentHeader(proofHeader)
	if err != nil {
		return g.reject(types.RejectMalformed, err.Error())
	}

	requirement, ok := g.matchRequirement(payload)
	if !ok {
		return g.reject(types.RejectRequirementMismatch,
			fmt.Sprintf("no accepted requirement for scheme %q on network %q", payload.Scheme, payload.Network))
	}

	exact, err := payload.DecodeExact()
	if err != nil {
		return g.reject(types.RejectMalformed, err.Error())
	}

	// The proof must be bound to the exact body bytes being resubmitted.
	bodyHash := crypto.Keccak256Hash(body).Hex()
	if exact.RequestHash != bodyHash {
		return g.reject(types.RejectRequirementMismatch, "proof is bound to a different request body")
	}

	if reason, detail, ok := g.precheck(exact, requirement); !ok {
		return g.reject(reason, detail)
	}

	result, err := g.fac.Verify(ctx, payload, requirement)
	if err != nil {
		// Fail closed: the paid operation must never run on an unconfirmed proof.
		return g.reject(types.RejectSettlementUnreachable, err.Error())
	}
	if !result.IsValid {
		return g.reject(mapInvalidReason(result.InvalidReason), result.InvalidReason)
	}

	g.obs.ProofVerified(g.prices.Resource, payload.Network, result.Payer)
	return &Decision{
		Status: StatusAuthorized,
		Payer:  result.Payer,
	}
}

// precheck applies the cheap local checks before involving the facilitator.
func (g *Gate) precheck(exact *types.ExactEvmPayload, requirement types.PaymentRequirements) (types.RejectReason, string, bool) {
	value, err := decimal.NewFromString(exact.Authorization.Value)
	if err != nil {
		return types.RejectMalformed, fmt.Sprintf("invalid authorization value: %v", err), false
	}

	required, err := decimal.NewFromString(requirement.MaxAmountRequired)
	if err != nil {
		return types.RejectMalformed, fmt.Sprintf("invalid required amount: %v", err), false
	}

	if value.LessThan(required) {
		return types.RejectInsufficientAmount,
			fmt.Sprintf("authorized %s, required %s", value.String(), required.String()), false
	}

	before, err := decimal.NewFromString(exact.Authorization.ValidBefore)
	if err != nil {
		return types.RejectMalformed, fmt.Sprintf("invalid validBefore: %v", err), false
	}
	if decimal.NewFromInt(g.now().Unix()).GreaterThanOrEqual(before) {
		return types.RejectExpired, "authorization validity window has passed", false
	}

	return "", "", true
}

func (g *Gate) matchRequirement(payload *types.PaymentPayload) (types.PaymentRequirements, bool) {
	for _, req := range g.Requirements() {
		if req.Scheme == payload.Scheme && req.Network == payload.Network {
			return req, true
		}
	}
	return types.PaymentRequirements{}, false
}

func mapInvalidReason(reason string) types.RejectReason {
	switch reason {
	case facilitator.ReasonInsufficientAmount:
		return types.RejectInsufficientAmount
	case facilitator.ReasonAuthorizationStale:
		return types.RejectExpired
	case facilitator.ReasonRecipientMismatch, facilitator.ReasonNetworkMismatch:
		return types.RejectRequirementMismatch
	default:
		return types.RejectMalformed
	}
}
