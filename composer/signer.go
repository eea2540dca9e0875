package composer

import (
	"fmt"

	"github.com/astriaorg/astria-go/primitive"
	cryptotypes "github.com/cosmos/cosmos-sdk/crypto/types"
	"github.com/cosmos/cosmos-sdk/types/tx/signing"
)

// keyringSigner is the subset of cosmos-sdk's keyring.Keyring this package
// needs; any keyring.Keyring value satisfies it structurally, and tests can
// substitute a minimal fake without pulling in a full on-disk or in-memory
// backend.
type keyringSigner interface {
	Sign(uid string, msg []byte, signMode signing.SignMode) ([]byte, cryptotypes.PubKey, error)
}

// Signer signs composer-originated payloads — BuilderBundlePacket
// envelopes — with the composer's operator key (spec.md §9 Open
// Question: composer operator key). Modeled as a keyring.Keyring-backed
// signer rather than a literal embedded key: production deployments
// supply a file, OS, or HSM-backed keyring; tests use an in-memory one.
type Signer struct {
	kr   keyringSigner
	uid  string
	addr primitive.Address
}

// NewSigner wraps the keyring record uid as the operator signer. addr is
// the sequencer address corresponding to that record.
func NewSigner(kr keyringSigner, uid string, addr primitive.Address) *Signer {
	return &Signer{kr: kr, uid: uid, addr: addr}
}

// Sign signs payload with the operator key.
func (s *Signer) Sign(payload []byte) ([]byte, error) {
	sig, _, err := s.kr.Sign(s.uid, payload, signing.SignMode_SIGN_MODE_DIRECT)
	if err != nil {
		return nil, fmt.Errorf("signing payload with operator key: %w", err)
	}
	return sig, nil
}

// Address is the sequencer address corresponding to the operator key.
func (s *Signer) Address() primitive.Address {
	return s.addr
}
