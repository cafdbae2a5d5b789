package facilitator

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"

	"github.com/basstimam/jatevo-moodboard-agent/eip712"
	"github.com/basstimam/jatevo-moodboard-agent/signer"
	"github.com/basstimam/jatevo-moodboard-agent/types"
)

// Local verifies EIP-3009 proofs in-process by recovering the authorization
// signer. It performs no on-chain settlement; suitable for development and
// tests, or behind a settlement worker that submits authorizations later.
type Local struct {
	now func() time.Time
}

var _ Facilitator = (*Local)(nil)

func NewLocal() *Local {
	return &Local{now: time.Now}
}

// NewLocalWithClock allows a fixed clock for deterministic expiry checks.
func NewLocalWithClock(now func() time.Time) *Local {
	return &Local{now: now}
}

func invalid(reason string) *types.VerificationResult {
	return &types.VerificationResult{IsValid: false, InvalidReason: reason}
}

// Verify checks that the payload carries a well-formed authorization, signed
// by its claimed payer, paying the requirement's recipient at least the
// required amount inside the validity window.
func (l *Local) Verify(ctx context.Context, payload *types.PaymentPayload, requirement types.PaymentRequirements) (*types.VerificationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if payload.Network != requirement.Network {
		return invalid(ReasonNetworkMismatch), nil
	}

	exact, err := payload.DecodeExact()
	if err != nil {
		return invalid(ReasonMalformedPayload), nil
	}

	auth := exact.Authorization
	message, err := eip712.AuthorizationFromWire(
		auth.From, auth.To, auth.Value, auth.ValidAfter, auth.ValidBefore, auth.Nonce,
	)
	if err != nil {
		return invalid(ReasonMalformedPayload), nil
	}

	domain, err := signer.DomainFor(requirement)
	if err != nil {
		return invalid(ReasonNetworkMismatch), nil
	}

	digest, err := eip712.Digest(domain, message)
	if err != nil {
		return invalid(ReasonMalformedPayload), nil
	}

	sig, err := decodeSignature(exact.Signature)
	if err != nil {
		return invalid(ReasonInvalidSignature), nil
	}

	recovered, err := eip712.RecoverSigner(digest, sig)
	if err != nil {
		return invalid(ReasonInvalidSignature), nil
	}
	if recovered != message.From {
		return invalid(ReasonInvalidSignature), nil
	}

	if message.To.Hex() != normalizeAddress(requirement.PayTo) {
		return invalid(ReasonRecipientMismatch), nil
	}

	required, err := decimal.NewFromString(requirement.MaxAmountRequired)
	if err != nil {
		return nil, fmt.Errorf("invalid requirement amount: %w", err)
	}
	paid := decimal.NewFromBigInt(message.Value, 0)
	if paid.LessThan(required) {
		return invalid(ReasonInsufficientAmount), nil
	}

	now := l.now().Unix()
	if now < message.ValidAfter.Int64() || now >= message.ValidBefore.Int64() {
		return invalid(ReasonAuthorizationStale), nil
	}

	return &types.VerificationResult{
		IsValid: true,
		Payer:   recovered.Hex(),
	}, nil
}

func decodeSignature(sig string) ([]byte, error) {
	b, err := hexutil.Decode(sig)
	if err != nil {
		return nil, err
	}
	if len(b) != 65 {
		return nil, fmt.Errorf("signature must be 65 bytes, got %d", len(b))
	}
	return b, nil
}

func normalizeAddress(address string) string {
	if !common.IsHexAddress(address) {
		return ""
	}
	return common.HexToAddress(address).Hex()
}
