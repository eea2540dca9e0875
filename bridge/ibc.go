package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/astriaorg/astria-go/primitive"
)

// GetIbcSudoAddress returns the chain's configured IBC sudo address, and
// whether one has been set.
func (a *Accessor) GetIbcSudoAddress() (primitive.Address, bool, error) {
	raw, err := a.delta.GetVerifiable(ibcSudoAddressKey)
	if err != nil {
		return primitive.Address{}, false, fmt.Errorf("reading ibc sudo address: %w", err)
	}
	if raw == nil {
		return primitive.Address{}, false, nil
	}
	addr, err := primitive.NewAddress(raw, "")
	if err != nil {
		return primitive.Address{}, false, fmt.Errorf("decoding ibc sudo address: %w", err)
	}
	return addr, true, nil
}

// PutIbcSudoAddress sets the chain's IBC sudo address.
func (a *Accessor) PutIbcSudoAddress(addr primitive.Address) {
	a.delta.PutVerifiable(ibcSudoAddressKey, addr.Bytes())
}

// IsIbcRelayer reports whether addr is on the allowed-IBC-relayer list.
func (a *Accessor) IsIbcRelayer(addr primitive.Address) (bool, error) {
	relayers, err := a.IbcRelayers()
	if err != nil {
		return false, err
	}
	for _, r := range relayers {
		if r.Equal(addr) {
			return true, nil
		}
	}
	return false, nil
}

// IbcRelayers returns the current allowed-IBC-relayer set.
func (a *Accessor) IbcRelayers() ([]primitive.Address, error) {
	raw, err := a.delta.GetVerifiable(ibcRelayerSetKey)
	if err != nil {
		return nil, fmt.Errorf("reading ibc relayer set: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	var rawAddrs [][]byte
	if err := json.Unmarshal(raw, &rawAddrs); err != nil {
		return nil, fmt.Errorf("decoding ibc relayer set: %w", err)
	}
	out := make([]primitive.Address, 0, len(rawAddrs))
	for _, r := range rawAddrs {
		addr, err := primitive.NewAddress(r, "")
		if err != nil {
			return nil, fmt.Errorf("decoding ibc relayer address: %w", err)
		}
		out = append(out, addr)
	}
	return out, nil
}

// AddIbcRelayer adds addr to the allowed-IBC-relayer set (a no-op if
// already present).
func (a *Accessor) AddIbcRelayer(addr primitive.Address) error {
	relayers, err := a.IbcRelayers()
	if err != nil {
		return err
	}
	for _, r := range relayers {
		if r.Equal(addr) {
			return nil
		}
	}
	return a.putIbcRelayers(append(relayers, addr))
}

// RemoveIbcRelayer removes addr from the allowed-IBC-relayer set.
func (a *Accessor) RemoveIbcRelayer(addr primitive.Address) error {
	relayers, err := a.IbcRelayers()
	if err != nil {
		return err
	}
	next := make([]primitive.Address, 0, len(relayers))
	for _, r := range relayers {
		if !r.Equal(addr) {
			next = append(next, r)
		}
	}
	return a.putIbcRelayers(next)
}

func (a *Accessor) putIbcRelayers(relayers []primitive.Address) error {
	rawAddrs := make([][]byte, len(relayers))
	for i, r := range relayers {
		rawAddrs[i] = r.Bytes()
	}
	raw, err := json.Marshal(rawAddrs)
	if err != nil {
		return fmt.Errorf("encoding ibc relayer set: %w", err)
	}
	a.delta.PutVerifiable(ibcRelayerSetKey, raw)
	return nil
}
