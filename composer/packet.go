package composer

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/astriaorg/astria-go/actions"
	"github.com/astriaorg/astria-go/primitive"
)

// BuilderBundle is the top-of-block bundle a searcher submits through the
// composer: the rollup data a simulation run confirmed would execute,
// together with the parent block they were simulated against (Bundle
// Factory & Simulator §4.9).
type BuilderBundle struct {
	Transactions [][]byte
	ParentHash   []byte
}

// Encode produces a deterministic byte encoding of the bundle, suitable for
// hashing and signing: a count-prefixed, length-prefixed transaction list
// followed by the length-prefixed parent hash.
func (b BuilderBundle) Encode() []byte {
	size := 4
	for _, tx := range b.Transactions {
		size += 4 + len(tx)
	}
	size += 4 + len(b.ParentHash)

	out := make([]byte, 0, size)
	var buf [4]byte

	binary.BigEndian.PutUint32(buf[:], uint32(len(b.Transactions)))
	out = append(out, buf[:]...)
	for _, tx := range b.Transactions {
		binary.BigEndian.PutUint32(buf[:], uint32(len(tx)))
		out = append(out, buf[:]...)
		out = append(out, tx...)
	}

	binary.BigEndian.PutUint32(buf[:], uint32(len(b.ParentHash)))
	out = append(out, buf[:]...)
	out = append(out, b.ParentHash...)
	return out
}

// BuilderBundlePacket is the signed envelope wrapping a BuilderBundle,
// carried to the sequencer as a single RollupDataSubmission (one sequence
// action per bundle, per Bundle Factory & Simulator §4.9).
type BuilderBundlePacket struct {
	Bundle      BuilderBundle
	Signature   []byte
	MessageHash [32]byte
}

// Encode produces the wire bytes of the signed packet, as submitted to the
// sequencer in a RollupDataSubmission's Data field.
func (p BuilderBundlePacket) Encode() []byte {
	encodedBundle := p.Bundle.Encode()
	out := make([]byte, 0, 4+len(encodedBundle)+4+len(p.Signature)+len(p.MessageHash))
	var buf [4]byte

	binary.BigEndian.PutUint32(buf[:], uint32(len(encodedBundle)))
	out = append(out, buf[:]...)
	out = append(out, encodedBundle...)

	binary.BigEndian.PutUint32(buf[:], uint32(len(p.Signature)))
	out = append(out, buf[:]...)
	out = append(out, p.Signature...)

	out = append(out, p.MessageHash[:]...)
	return out
}

// BuildSignedBundlePacket turns a simulation result into a signed packet
// ready to be wrapped in a single RollupDataSubmission action and submitted
// to the sequencer.
func BuildSignedBundlePacket(signer *Signer, result BundleSimulationResult) (BuilderBundlePacket, error) {
	bundle := BuilderBundle{
		Transactions: result.IncludedActions,
		ParentHash:   result.ParentHash,
	}
	encodedBundle := bundle.Encode()
	messageHash := sha256.Sum256(encodedBundle)

	sig, err := signer.Sign(encodedBundle)
	if err != nil {
		return BuilderBundlePacket{}, fmt.Errorf("signing builder bundle: %w", err)
	}

	return BuilderBundlePacket{
		Bundle:      bundle,
		Signature:   sig,
		MessageHash: messageHash,
	}, nil
}

// WrapAsRollupDataSubmission packages a signed packet as the single
// sequence action submitted to the sequencer for this bundle.
func WrapAsRollupDataSubmission(rollupID primitive.RollupId, feeAsset primitive.Asset, packet BuilderBundlePacket) actions.RollupDataSubmission {
	return actions.RollupDataSubmission{
		RollupId: rollupID,
		Data:     packet.Encode(),
		FeeAsset: feeAsset,
	}
}
