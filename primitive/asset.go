package primitive

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Denom is a trace-prefixed asset denomination as it appears on the wire,
// e.g. "nria" for the native asset or "transfer/channel-0/utia" for an
// IBC-transferred one.
type Denom string

// IbcPrefixed is the canonical, fixed-width storage form of an asset: the
// sha256 of its trace-prefixed denom, displayed as "ibc/<hex>". Two trace
// denoms that transferred through different paths but resolve to the same
// underlying asset share an IbcPrefixed id only if their trace strings are
// byte-identical; the hash is purely a canonicalization of the one trace
// string, not a semantic dedup.
type IbcPrefixed [32]byte

// Asset is either form of an asset reference. Storage keys are always
// computed from the IbcPrefixed form so that a trace-prefixed and an
// already-ibc-prefixed reference to the same denom produce the same key
// (accounts/ relies on this; see the "storage keys have not changed"
// test).
type Asset struct {
	trace Denom
	ibc   IbcPrefixed
}

// NewAsset builds an Asset from its trace-prefixed denom string.
func NewAsset(trace string) Asset {
	return Asset{
		trace: Denom(trace),
		ibc:   hashDenom(trace),
	}
}

// NewIbcPrefixedAsset builds an Asset directly from an already-hashed
// ibc-prefixed id, with no known trace string (as seen on the wire for
// assets the local chain only ever references by hash).
func NewIbcPrefixedAsset(ibc IbcPrefixed) Asset {
	return Asset{ibc: ibc}
}

func hashDenom(trace string) IbcPrefixed {
	return sha256.Sum256([]byte(trace))
}

// ToIbcPrefixed returns the canonical hashed form.
func (a Asset) ToIbcPrefixed() IbcPrefixed {
	return a.ibc
}

// TraceDenom returns the trace-prefixed denom string and whether one is
// known for this Asset (it is not, for an Asset built from
// NewIbcPrefixedAsset alone).
func (a Asset) TraceDenom() (string, bool) {
	if a.trace == "" {
		return "", false
	}
	return string(a.trace), true
}

// String renders the ibc-prefixed display form, "ibc/<hex>", which is what
// storage keys and wire comparisons use.
func (i IbcPrefixed) String() string {
	return "ibc/" + hex.EncodeToString(i[:])
}

// Equal compares two assets by their canonical ibc-prefixed id, so a trace
// reference and a bare ibc-prefixed reference to the same underlying denom
// compare equal.
func (a Asset) Equal(other Asset) bool {
	return a.ibc == other.ibc
}

// IsIbcPrefixedString reports whether a denom string is already in
// "ibc/<hex>" form rather than a trace path.
func IsIbcPrefixedString(s string) bool {
	return strings.HasPrefix(s, "ibc/")
}
