package relayer

import (
	"crypto/sha256"
	"fmt"
	"math"
)

// Blob is one Celestia blob the relayer submits: a namespace plus the raw
// bytes a sequencer-block subset was serialized into. The real NMT-based
// share commitment scheme is out of scope (spec Non-goal: Celestia blob
// format internals); ShareCommitment below is a simplified stand-in so
// BlobTxEncoder has something deterministic to put in MsgPayForBlobs.
type Blob struct {
	Namespace    []byte
	Data         []byte
	ShareVersion uint8
}

// NewBlob builds a Blob over namespace and data.
func NewBlob(namespace, data []byte) Blob {
	return Blob{Namespace: namespace, Data: data}
}

// ShareCommitment is this blob's simplified share commitment.
func (b Blob) ShareCommitment() [32]byte {
	return sha256.Sum256(append(append([]byte{}, b.Namespace...), b.Data...))
}

// blobSizes extracts each blob's data length as a uint32, failing if any
// blob is too large to express as one (the MsgPayForBlobs wire field is
// u32 in the original).
func blobSizes(blobs []Blob) ([]uint32, error) {
	sizes := make([]uint32, 0, len(blobs))
	for _, b := range blobs {
		if len(b.Data) > math.MaxUint32 {
			return nil, fmt.Errorf("blob too large: %d bytes", len(b.Data))
		}
		sizes = append(sizes, uint32(len(b.Data)))
	}
	return sizes, nil
}
