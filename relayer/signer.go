package relayer

import (
	"fmt"

	cryptotypes "github.com/cosmos/cosmos-sdk/crypto/types"
	"github.com/cosmos/cosmos-sdk/types/tx/signing"
)

// celestiaKeyringSigner is the subset of cosmos-sdk's keyring.Keyring this
// package needs — the same seam composer.Signer uses for the sequencer
// operator key, here bound to the relayer's Celestia account key instead.
// The concrete secp256k1 primitives behind it are an external collaborator
// (spec Non-goal: concrete cryptographic primitives); any keyring.Keyring
// satisfies this structurally, and tests substitute a minimal fake.
type celestiaKeyringSigner interface {
	Sign(uid string, msg []byte, signMode signing.SignMode) ([]byte, cryptotypes.PubKey, error)
}

// Signer signs the relayer's blob transactions with its Celestia account
// key.
type Signer struct {
	kr      celestiaKeyringSigner
	uid     string
	address string
}

// NewSigner wraps the keyring record uid as the relayer's Celestia signer.
// address is the Bech32-encoded Celestia account address corresponding to
// that record.
func NewSigner(kr celestiaKeyringSigner, uid, address string) *Signer {
	return &Signer{kr: kr, uid: uid, address: address}
}

// Sign signs payload (a SignDoc's bytes) with the relayer's Celestia key.
func (s *Signer) Sign(payload []byte) ([]byte, cryptotypes.PubKey, error) {
	sig, pubKey, err := s.kr.Sign(s.uid, payload, signing.SignMode_SIGN_MODE_DIRECT)
	if err != nil {
		return nil, nil, fmt.Errorf("signing payload with celestia account key: %w", err)
	}
	return sig, pubKey, nil
}

// Address is the Bech32-encoded Celestia account address for this signer.
func (s *Signer) Address() string { return s.address }
