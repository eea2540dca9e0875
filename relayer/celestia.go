package relayer

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/log"
)

// insufficientFeeCode is the Celestia app's (cosmos-sdk) ABCI error code for
// a broadcast or confirmed tx that was rejected for too low a fee.
// https://github.com/celestiaorg/cosmos-sdk/blob/v1.18.3-sdk-v0.46.14/types/errors/errors.go#L75
const insufficientFeeCode = 13

// Fee/gas estimation constants, ported from celestia-app's own gas
// estimation (x/blob/types/payforblob.go, pkg/appconsts/global_consts.go,
// pkg/shares/share_sequence.go) and celestia-node's fee calculation
// (state/core_access.go).
const (
	shareSize                           = 512
	continuationCompactShareContentSize = 482
	firstSparseShareContentSize         = 478
	pfbGasFixedCost                     = 75_000
	bytesPerBlobInfo                    = 70
)

// BlobParams is the subset of celestia.v1.Query.Params the relayer needs.
type BlobParams struct {
	GasPerBlobByte uint32
}

// AuthParams is the subset of cosmos.auth.v1beta1.Query.Params the relayer
// needs.
type AuthParams struct {
	TxSizeCostPerByte uint64
}

// Account is the subset of a cosmos.auth.v1beta1.BaseAccount the relayer
// needs to build a signed tx.
type Account struct {
	AccountNumber uint64
	Sequence      uint64
}

// GasLimit is an estimated gas limit for a PayForBlobs transaction.
type GasLimit uint64

// CostParams bundles the three Celestia-app-reported values the relayer's
// gas/fee estimation is computed from.
type CostParams struct {
	GasPerBlobByte    uint32
	TxSizeCostPerByte uint64
	MinGasPrice       float64
}

// BroadcastError is a non-zero ABCI response code returned by either
// BroadcastTx or GetTx: a tx-level rejection, not a transport failure.
// A BroadcastError with Code == insufficientFeeCode drives the next
// attempt's fee recalculation (calculateFee below).
type BroadcastError struct {
	TxHash    string
	Code      uint32
	Namespace string
	Log       string
}

func (e *BroadcastError) Error() string {
	return "celestia tx rejected with code " + strconv.FormatUint(uint64(e.Code), 10) + ": " + e.Log
}

// TxHash is a hex-encoded Celestia transaction hash returned by
// BroadcastTx.
type TxHash string

// CelestiaClient is the subset of the Celestia app's gRPC surface the
// relayer needs (spec.md §6): cosmos.auth.v1beta1.Query.{Account,Params},
// celestia.v1.Query.Params, cosmos.base.node.v1beta1.Service.Config, and
// cosmos.tx.v1beta1.Service.{BroadcastTx,GetTx}. Kept as an interface for
// the same reason composer's SequencerClient/TxEncoder are: the generated
// celestia-apis/cosmos-sdk proto bindings for these RPCs could not be
// verified from this sandbox, so a concrete client is left to a caller.
type CelestiaClient interface {
	FetchBlobParams(ctx context.Context) (BlobParams, error)
	FetchAuthParams(ctx context.Context) (AuthParams, error)
	FetchMinGasPrice(ctx context.Context) (float64, error)
	FetchAccount(ctx context.Context) (Account, error)
	// BroadcastTx returns the tx hash if the tx is accepted into the node's
	// mempool (BroadcastMode_Sync); a *BroadcastError if rejected with a
	// non-zero ABCI code.
	BroadcastTx(ctx context.Context, txBytes []byte) (TxHash, error)
	// GetTx reports (0, false, nil) while the tx is still pending, the
	// confirming Celestia block height once found, or a *BroadcastError if
	// the tx was found but failed.
	GetTx(ctx context.Context, hash TxHash) (celestiaHeight uint64, found bool, err error)
}

// BlobTxEncoder builds and signs the wire BlobTx: a MsgPayForBlobs over
// blobs, wrapped in a signed cosmos Tx, wrapped in a BlobTx envelope. Left
// as an interface for the same reason as CelestiaClient above — the exact
// generated field names of the cosmos tx / celestia blob wire types are
// unverifiable from this sandbox.
type BlobTxEncoder interface {
	Encode(ctx context.Context, blobs []Blob, account Account, gasLimit GasLimit, fee uint64, chainID string, signer *Signer) ([]byte, error)
}

// sparseSharesNeeded returns the number of sparse shares blobLen bytes of
// blob data occupies, per celestia-app's pkg/shares/share_sequence.go.
func sparseSharesNeeded(blobLen uint32) uint64 {
	if blobLen == 0 {
		return 0
	}
	if blobLen < firstSparseShareContentSize {
		return 1
	}
	bytesAvailable := uint64(firstSparseShareContentSize)
	sharesNeeded := uint64(1)
	for bytesAvailable < uint64(blobLen) {
		bytesAvailable += continuationCompactShareContentSize
		sharesNeeded++
	}
	return sharesNeeded
}

// estimateGas estimates the gas limit for a PayForBlobs transaction over
// the given blob sizes, per celestia-app's x/blob/types/payforblob.go.
func estimateGas(sizes []uint32, cost CostParams) GasLimit {
	var totalShares uint64
	for _, sz := range sizes {
		totalShares += sparseSharesNeeded(sz)
	}
	sharesGas := totalShares * shareSize * uint64(cost.GasPerBlobByte)
	blobInfoGas := cost.TxSizeCostPerByte * bytesPerBlobInfo * uint64(len(sizes))
	return GasLimit(sharesGas + blobInfoGas + pfbGasFixedCost)
}

// calculateFee returns the fee for a PayForBlobs transaction: normally
// ceil(min gas price * gas limit), per celestia-node's state/core_access.go,
// but overridden by the required fee parsed out of the previous attempt's
// rejection log when that attempt failed with insufficientFeeCode.
func calculateFee(cost CostParams, gasLimit GasLimit, lastErr *BroadcastError) uint64 {
	calculated := uint64(math.Ceil(cost.MinGasPrice * float64(gasLimit)))

	if lastErr == nil || lastErr.Code != insufficientFeeCode {
		return calculated
	}
	required, ok := extractRequiredFeeFromLog(lastErr.Log)
	if !ok {
		return calculated
	}

	if calculated < required {
		log.Warn("fee calculation yielded a low value: investigate calculation function", "calculated_fee", calculated, "required_fee", required)
	}
	if calculated > required*6/5 {
		log.Warn("fee calculation yielded a high value: investigate calculation function", "calculated_fee", calculated, "required_fee", required)
	}
	return required
}

// extractRequiredFeeFromLog best-effort parses a required fee out of a
// celestia-app INSUFFICIENT_FEE error log, which looks like:
// "insufficient fees; got: 1234utia required: 7980utia: insufficient fee"
// This is a failsafe only — if parsing fails, calculateFee falls back to
// its own computed value.
func extractRequiredFeeFromLog(errLog string) (uint64, bool) {
	const suffix = "utia: insufficient fee"
	withoutSuffix, ok := strings.CutSuffix(errLog, suffix)
	if !ok {
		log.Warn("insufficient gas error doesn't end with expected suffix", "log", errLog, "suffix", suffix)
		return 0, false
	}
	idx := strings.LastIndexByte(withoutSuffix, ' ')
	if idx == -1 {
		log.Warn("insufficient gas error doesn't have a space before the required amount", "log", errLog)
		return 0, false
	}
	required, err := strconv.ParseUint(withoutSuffix[idx+1:], 10, 64)
	if err != nil {
		log.Warn("insufficient gas error required amount cannot be parsed as uint64", "log", errLog, "err", err)
		return 0, false
	}
	log.Info("extracted required fee from broadcast transaction response raw log", "required_fee", required)
	return required, true
}
