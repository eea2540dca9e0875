package relayer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSparseSharesNeeded(t *testing.T) {
	require.Equal(t, uint64(0), sparseSharesNeeded(0))
	require.Equal(t, uint64(1), sparseSharesNeeded(1))
	require.Equal(t, uint64(1), sparseSharesNeeded(firstSparseShareContentSize))
	require.Equal(t, uint64(2), sparseSharesNeeded(firstSparseShareContentSize+1))
	require.Equal(t, uint64(2), sparseSharesNeeded(firstSparseShareContentSize+continuationCompactShareContentSize))
	require.Equal(t, uint64(3), sparseSharesNeeded(firstSparseShareContentSize+continuationCompactShareContentSize+1))
}

func TestEstimateGas(t *testing.T) {
	cost := CostParams{GasPerBlobByte: 8, TxSizeCostPerByte: 10}

	gas := estimateGas([]uint32{100}, cost)
	require.Equal(t, GasLimit(1*shareSize*8+1*bytesPerBlobInfo*10+pfbGasFixedCost), gas)

	gasTwoBlobs := estimateGas([]uint32{100, 100}, cost)
	require.Equal(t, GasLimit(2*shareSize*8+2*bytesPerBlobInfo*10+pfbGasFixedCost), gasTwoBlobs)
}

func TestCalculateFeeWithoutPriorError(t *testing.T) {
	cost := CostParams{MinGasPrice: 0.02}
	fee := calculateFee(cost, GasLimit(100_000), nil)
	require.Equal(t, uint64(2_000), fee)
}

func TestCalculateFeeIgnoresNonInsufficientFeeError(t *testing.T) {
	cost := CostParams{MinGasPrice: 0.02}
	lastErr := &BroadcastError{Code: 1, Log: "some other rejection"}
	fee := calculateFee(cost, GasLimit(100_000), lastErr)
	require.Equal(t, uint64(2_000), fee)
}

func TestCalculateFeeUsesRequiredFeeFromInsufficientFeeLog(t *testing.T) {
	cost := CostParams{MinGasPrice: 0.02}
	lastErr := &BroadcastError{
		Code: insufficientFeeCode,
		Log:  "insufficient fees; got: 2000utia required: 7980utia: insufficient fee",
	}
	fee := calculateFee(cost, GasLimit(100_000), lastErr)
	require.Equal(t, uint64(7980), fee)
}

func TestCalculateFeeFallsBackIfLogUnparseable(t *testing.T) {
	cost := CostParams{MinGasPrice: 0.02}
	lastErr := &BroadcastError{Code: insufficientFeeCode, Log: "not a recognizable log line"}
	fee := calculateFee(cost, GasLimit(100_000), lastErr)
	require.Equal(t, uint64(2_000), fee)
}

func TestExtractRequiredFeeFromLog(t *testing.T) {
	required, ok := extractRequiredFeeFromLog("insufficient fees; got: 2000utia required: 7980utia: insufficient fee")
	require.True(t, ok)
	require.Equal(t, uint64(7980), required)
}

func TestExtractRequiredFeeFromLogMissingSuffix(t *testing.T) {
	_, ok := extractRequiredFeeFromLog("insufficient fees; got: 2000utia required: 7980utia")
	require.False(t, ok)
}

func TestExtractRequiredFeeFromLogMissingSpace(t *testing.T) {
	_, ok := extractRequiredFeeFromLog("required:7980utia: insufficient fee")
	require.False(t, ok)
}

func TestExtractRequiredFeeFromLogUnparseableAmount(t *testing.T) {
	_, ok := extractRequiredFeeFromLog("insufficient fees; got: 2000utia required: notanumberutia: insufficient fee")
	require.False(t, ok)
}
