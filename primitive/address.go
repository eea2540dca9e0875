// Package primitive implements the wire-level identifiers shared across the
// sequencer, composer, conductor and relayer: addresses, assets and rollup
// ids, as described in the Astria protocol's data model.
package primitive

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// AddressLen is the fixed byte length of an Address.
const AddressLen = 20

// Address is a 20-byte account identifier. Equality is defined purely over
// the 20 bytes; the display prefix only affects how an address is rendered,
// never its identity (bridge lookups key on the raw bytes, see
// AddressBytes).
type Address struct {
	bytes  [AddressLen]byte
	prefix string
}

// AddressBytes is implemented by anything that can be reduced to the raw
// 20-byte account identifier, mirroring the teacher's storage-key helper
// pattern (state_ext.rs's AddressBytes trait) so that accounts/ can key
// storage off the bytes alone, independent of display prefix.
type AddressBytes interface {
	AddressBytes() [AddressLen]byte
}

// NewAddress builds an Address from raw bytes and a bech32 human-readable
// prefix (e.g. "astria"). It does not validate the prefix against any
// chain configuration; callers compare prefixes explicitly where the spec
// requires it (Transfer's "destination must share the configured base
// prefix").
func NewAddress(raw []byte, prefix string) (Address, error) {
	if len(raw) != AddressLen {
		return Address{}, fmt.Errorf("address must be %d bytes, got %d", AddressLen, len(raw))
	}
	var a Address
	copy(a.bytes[:], raw)
	a.prefix = prefix
	return a, nil
}

// ParseBech32m decodes a user-facing Bech32m address string. It rejects a
// string that checksums as plain Bech32 (the CompatString encoding),
// since the two checksum constants are not interchangeable: an address
// encoded with EncodeM must be decoded with a bech32m-aware decoder or
// round-tripping silently corrupts on decode.
func ParseBech32m(s string) (Address, error) {
	hrp, data, version, err := bech32.DecodeGenericNoLimit(s)
	if err != nil {
		return Address{}, fmt.Errorf("decoding bech32m address: %w", err)
	}
	if version != bech32.VersionM {
		return Address{}, fmt.Errorf("address %q is not bech32m encoded", s)
	}
	converted, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("converting bech32m address bits: %w", err)
	}
	return NewAddress(converted, hrp)
}

// Bytes returns the raw 20-byte identifier.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLen)
	copy(out, a.bytes[:])
	return out
}

// AddressBytes implements AddressBytes.
func (a Address) AddressBytes() [AddressLen]byte {
	return a.bytes
}

// Prefix returns the address's configured display prefix.
func (a Address) Prefix() string {
	return a.prefix
}

// Equal compares two addresses by their raw bytes only, ignoring prefix, as
// required for bridge-account lookups (Data Model §3).
func (a Address) Equal(other Address) bool {
	return bytes.Equal(a.bytes[:], other.bytes[:])
}

// String renders the address as Bech32m using its configured prefix.
func (a Address) String() string {
	s, err := a.bech32mString(a.prefix)
	if err != nil {
		return hex.EncodeToString(a.bytes[:])
	}
	return s
}

func (a Address) bech32mString(hrp string) (string, error) {
	data, err := bech32.ConvertBits(a.bytes[:], 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.EncodeM(hrp, data)
}

// CompatString renders the address as plain Bech32 (not Bech32m) under a
// separately configured prefix, for IBC counterparties that do not
// understand Bech32m (External Interfaces §6, "use_compat_address").
func (a Address) CompatString(compatPrefix string) (string, error) {
	data, err := bech32.ConvertBits(a.bytes[:], 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(compatPrefix, data)
}
