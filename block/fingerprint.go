package block

import (
	"encoding/json"
	"fmt"

	"github.com/astriaorg/astria-go/state"
)

const fingerprintKey = "block/proposal_fingerprint"

// StoreFingerprint records the proposal fingerprint Prepare executed
// against, in the delta's ephemeral partition, so a subsequent Process of
// the same proposal on this node can detect the match and skip
// re-execution.
func StoreFingerprint(delta *state.StateDelta, fp Fingerprint) error {
	raw, err := json.Marshal(fp)
	if err != nil {
		return fmt.Errorf("encoding proposal fingerprint: %w", err)
	}
	delta.SetEphemeral(fingerprintKey, raw)
	return nil
}

// MatchesStoredFingerprint reports whether fp matches the fingerprint
// Prepare last stored, meaning Process may reuse Prepare's execution
// results instead of re-running Assemble from the latest committed
// snapshot.
func MatchesStoredFingerprint(delta *state.StateDelta, fp Fingerprint) bool {
	raw, ok := delta.Ephemeral(fingerprintKey)
	if !ok {
		return false
	}
	var stored Fingerprint
	if err := json.Unmarshal(raw, &stored); err != nil {
		return false
	}
	return stored == fp
}
