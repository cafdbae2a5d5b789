// Package signer produces signed payment proofs for a payment requirement.
package signer

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/basstimam/jatevo-moodboard-agent/eip712"
	"github.com/basstimam/jatevo-moodboard-agent/types"
)

// SigningClient produces an X-Payment header value satisfying one payment
// requirement, bound to the exact request body bytes that will be resubmitted.
type SigningClient interface {
	Sign(ctx context.Context, requirement types.PaymentRequirements, requestBody []byte) (string, error)
	Address() common.Address
}

// EVMSigner signs EIP-3009 transfer authorizations with a local private key.
type EVMSigner struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

var _ SigningClient = (*EVMSigner)(nil)

// NewEVMSigner creates a signer from a hex-encoded private key.
func NewEVMSigner(hexKey string) (*EVMSigner, error) {
	hexKey = strings.TrimPrefix(hexKey, "0x")

	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return &EVMSigner{
		key:  key,
		addr: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Address returns the payer address derived from the private key.
func (s *EVMSigner) Address() common.Address {
	return s.addr
}

// Sign builds a transfer authorization for the requirement, signs its EIP-712
// digest, and encodes the result as an opaque proof header. The request body
// fingerprint travels inside the payload so the gate can check the proof was
// produced for this exact invocation.
func (s *EVMSigner) Sign(ctx context.Context, requirement types.PaymentRequirements, requestBody []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := requirement.Validate(); err != nil {
		return "", fmt.Errorf("invalid requirement: %w", err)
	}

	network := types.Network(requirement.Network)
	chainID, ok := network.ChainID()
	if !ok {
		return "", &types.AgentError{
			Code:    types.ErrUnsupportedNetwork,
			Message: fmt.Sprintf("unsupported network: %s", requirement.Network),
		}
	}

	nonce, err := randomNonce()
	if err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := time.Now().Unix()
	auth := types.EvmAuthorization{
		From:        s.addr.Hex(),
		To:          requirement.PayTo,
		Value:       requirement.MaxAmountRequired,
		ValidAfter:  fmt.Sprintf("%d", now-60),
		ValidBefore: fmt.Sprintf("%d", now+int64(requirement.MaxTimeoutSeconds)),
		Nonce:       hexutil.Encode(nonce[:]),
	}

	message, err := eip712.AuthorizationFromWire(
		auth.From, auth.To, auth.Value, auth.ValidAfter, auth.ValidBefore, auth.Nonce,
	)
	if err != nil {
		return "", err
	}

	digest, err := eip712.Digest(domainFor(requirement, chainID), message)
	if err != nil {
		return "", err
	}

	sig, err := crypto.Sign(digest.Bytes(), s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign digest: %w", err)
	}
	// normalize V to 27/28 as EIP-3009 contracts expect
	sig[64] += 27

	exact := &types.ExactEvmPayload{
		Signature:     hexutil.Encode(sig),
		Authorization: auth,
		RequestHash:   crypto.Keccak256Hash(requestBody).Hex(),
	}

	payload, err := exact.Encode(network)
	if err != nil {
		return "", err
	}

	return payload.EncodeHeader()
}

// DomainFor derives the token's EIP-712 domain from a payment requirement.
func DomainFor(requirement types.PaymentRequirements) (eip712.Domain, error) {
	chainID, ok := types.Network(requirement.Network).ChainID()
	if !ok {
		return eip712.Domain{}, fmt.Errorf("unsupported network: %s", requirement.Network)
	}
	return domainFor(requirement, chainID), nil
}

func domainFor(requirement types.PaymentRequirements, chainID int64) eip712.Domain {
	name, _ := requirement.Extra["name"].(string)
	version, _ := requirement.Extra["version"].(string)
	if version == "" {
		version = "1"
	}

	return eip712.Domain{
		Name:              name,
		Version:           version,
		ChainID:           big.NewInt(chainID),
		VerifyingContract: common.HexToAddress(requirement.Asset),
	}
}

func randomNonce() ([32]byte, error) {
	var nonce [32]byte
	_, err := rand.Read(nonce[:])
	return nonce, err
}
