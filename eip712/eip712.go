// Package eip712 implements the EIP-712 hashing needed to sign and verify
// EIP-3009 transfer authorizations.
package eip712

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Domain is the EIP-712 domain separator input.
type Domain struct {
	Name              string // token name, e.g. "USDC"
	Version           string // e.g. "2"
	ChainID           *big.Int
	VerifyingContract common.Address
}

// TransferWithAuthorization is the EIP-3009 message struct.
type TransferWithAuthorization struct {
	From        common.Address
	To          common.Address
	Value       *big.Int
	ValidAfter  *big.Int
	ValidBefore *big.Int
	Nonce       [32]byte
}

var (
	// keccak256 of the type signature strings; ordering matters
	domainTypeHash = crypto.Keccak256Hash([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))

	transferAuthTypeHash = crypto.Keccak256Hash([]byte("TransferWithAuthorization(address from,address to,uint256 value,uint256 validAfter,uint256 validBefore,bytes32 nonce)"))
)

// padLeft32 returns a 32-byte right-aligned representation of the given big.Int
func padLeft32(i *big.Int) []byte {
	b := i.Bytes()
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

// addressTo32 left-pads an address into 32 bytes
func addressTo32(a common.Address) []byte {
	out := make([]byte, 32)
	copy(out[12:], a.Bytes())
	return out
}

func stringToBig(s string) (*big.Int, error) {
	n := new(big.Int)
	if _, ok := n.SetString(s, 10); !ok {
		return nil, fmt.Errorf("invalid decimal integer string: %q", s)
	}
	return n, nil
}

// HexToBytes32 converts hex (with or without 0x) to a 32-byte array.
func HexToBytes32(hexStr string) ([32]byte, error) {
	var out [32]byte
	if len(hexStr) >= 2 && hexStr[0:2] == "0x" {
		hexStr = hexStr[2:]
	}
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return out, err
	}
	if len(b) > 32 {
		return out, errors.New("value longer than 32 bytes")
	}
	copy(out[32-len(b):], b)
	return out, nil
}

// DomainSeparator builds the domainSeparator hash per EIP-712:
// keccak256(abi.encode(domainTypeHash, keccak256(name), keccak256(version), chainId, verifyingContract))
func DomainSeparator(d Domain) (common.Hash, error) {
	if d.Name == "" || d.Version == "" || d.ChainID == nil {
		return common.Hash{}, errors.New("incomplete domain")
	}

	return crypto.Keccak256Hash(
		domainTypeHash.Bytes(),
		crypto.Keccak256Hash([]byte(d.Name)).Bytes(),
		crypto.Keccak256Hash([]byte(d.Version)).Bytes(),
		padLeft32(d.ChainID),
		addressTo32(d.VerifyingContract),
	), nil
}

// StructHash computes keccak256(abi.encode(typeHash, from, to, value, validAfter, validBefore, nonce)).
func StructHash(m TransferWithAuthorization) common.Hash {
	return crypto.Keccak256Hash(
		transferAuthTypeHash.Bytes(),
		addressTo32(m.From),
		addressTo32(m.To),
		padLeft32(m.Value),
		padLeft32(m.ValidAfter),
		padLeft32(m.ValidBefore),
		m.Nonce[:],
	)
}

// Digest returns the final EIP-712 digest to be signed or recovered:
// keccak256("\x19\x01" || domainSeparator || structHash).
func Digest(d Domain, m TransferWithAuthorization) (common.Hash, error) {
	domainSep, err := DomainSeparator(d)
	if err != nil {
		return common.Hash{}, err
	}

	structHash := StructHash(m)
	prefix := []byte{0x19, 0x01}
	return crypto.Keccak256Hash(append(append(prefix, domainSep.Bytes()...), structHash.Bytes()...)), nil
}

// AuthorizationFromWire converts the string-typed wire authorization into the
// typed EIP-3009 message. Value/validAfter/validBefore are decimal strings,
// nonce is hex.
func AuthorizationFromWire(from, to, value, validAfter, validBefore, nonce string) (TransferWithAuthorization, error) {
	var m TransferWithAuthorization

	if !common.IsHexAddress(from) {
		return m, fmt.Errorf("invalid from address: %q", from)
	}
	if !common.IsHexAddress(to) {
		return m, fmt.Errorf("invalid to address: %q", to)
	}

	v, err := stringToBig(value)
	if err != nil {
		return m, fmt.Errorf("invalid value: %w", err)
	}
	after, err := stringToBig(validAfter)
	if err != nil {
		return m, fmt.Errorf("invalid validAfter: %w", err)
	}
	before, err := stringToBig(validBefore)
	if err != nil {
		return m, fmt.Errorf("invalid validBefore: %w", err)
	}
	n, err := HexToBytes32(nonce)
	if err != nil {
		return m, fmt.Errorf("invalid nonce: %w", err)
	}

	m.From = common.HexToAddress(from)
	m.To = common.HexToAddress(to)
	m.Value = v
	m.ValidAfter = after
	m.ValidBefore = before
	m.Nonce = n
	return m, nil
}

// RecoverSigner recovers the address that signed the given digest.
// sig must be 65 bytes (R||S||V); V may be 0/1 or 27/28.
func RecoverSigner(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}

	// copy to avoid mutating the caller's slice
	s := make([]byte, 65)
	copy(s, sig)

	if s[64] >= 27 {
		s[64] -= 27
	}

	pubKey, err := crypto.SigToPub(digest.Bytes(), s)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}
