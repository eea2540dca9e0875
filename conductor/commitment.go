package conductor

// BlockIdent identifies one rollup block the way the rollup's
// CommitmentState does: by number, hash, and the hash of its parent.
type BlockIdent struct {
	Number uint32
	Hash   []byte
	Parent []byte
}

// CommitmentState mirrors the rollup-side record conductor reads via
// GetCommitmentState and advances via UpdateCommitmentState.
type CommitmentState struct {
	Soft               BlockIdent
	Firm               BlockIdent
	BaseCelestiaHeight uint64
}

// withSoft returns a copy of cs with Soft replaced by b.
func (cs CommitmentState) withSoft(b BlockIdent) CommitmentState {
	cs.Soft = b
	return cs
}

// withFirm returns a copy of cs with Firm replaced by b; BaseCelestiaHeight
// only ever moves forward, matching the rollup's own validation (4.11.2).
func (cs CommitmentState) withFirm(b BlockIdent, baseCelestiaHeight uint64) CommitmentState {
	cs.Firm = b
	if baseCelestiaHeight > cs.BaseCelestiaHeight {
		cs.BaseCelestiaHeight = baseCelestiaHeight
	}
	return cs
}

// CommitLevel selects which of the rollup's two commitments this
// conductor advances.
type CommitLevel int

const (
	SoftOnly CommitLevel = iota
	FirmOnly
	SoftAndFirm
)

// ExecutesSoft reports whether this level forwards soft blocks to
// execute_block as they arrive.
func (l CommitLevel) ExecutesSoft() bool { return l == SoftOnly || l == SoftAndFirm }

// UpdatesFirm reports whether this level advances the firm commitment
// from Celestia-derived blocks.
func (l CommitLevel) UpdatesFirm() bool { return l == FirmOnly || l == SoftAndFirm }
