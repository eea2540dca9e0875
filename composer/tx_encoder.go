package composer

import "github.com/astriaorg/astria-go/actions"

// TxEncoder builds and signs the wire transaction the executor submits
// to the sequencer from a set of actions, a nonce, and the chain id.
// Kept as an interface rather than a concrete protocol-apis encoder, for
// the same reason app.TxCodec is: the exact generated Go field names of
// buf.build/gen/go/astria/protocol-apis' Transaction/Action oneof could
// not be verified from this sandbox, so building and signing the wire
// envelope is left to a caller-supplied implementation.
type TxEncoder interface {
	Encode(acts []actions.Action, nonce uint32, chainID string) (wireBytes []byte, err error)
}
