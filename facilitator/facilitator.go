// Package facilitator verifies payment proofs. It is the system of record for
// whether a proof satisfies a requirement; the gate fails closed when it
// cannot be reached.
package facilitator

import (
	"context"

	"github.com/basstimam/jatevo-moodboard-agent/types"
)

// Facilitator is the settlement collaborator contract. A non-nil error means
// the facilitator could not decide (unreachable, transport failure); a decided
// rejection comes back as IsValid=false with a reason.
type Facilitator interface {
	Verify(ctx context.Context, payload *types.PaymentPayload, requirement types.PaymentRequirements) (*types.VerificationResult, error)
}

// Invalid reasons reported by verification.
const (
	ReasonMalformedPayload   = "malformed_payload"
	ReasonInvalidSignature   = "invalid_signature"
	ReasonRecipientMismatch  = "recipient_mismatch"
	ReasonInsufficientAmount = "insufficient_amount"
	ReasonAuthorizationStale = "authorization_expired"
	ReasonNetworkMismatch    = "network_mismatch"
)
