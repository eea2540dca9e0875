// Package accounts implements typed balance, nonce and fee-schedule
// accessors on top of state/, keyed exactly as pinned by the
// storage-key snapshot test in accounts_test.go.
package accounts

import (
	"encoding/hex"
	"fmt"

	"github.com/astriaorg/astria-go/primitive"
)

const (
	transferBaseFeeKey  = "accounts/transferfee"
	allowedFeeAssetsKey = "accounts/fee_assets"
)

func addressKey(addr primitive.Address) string {
	raw := addr.AddressBytes()
	return hex.EncodeToString(raw[:])
}

// balanceStorageKey always resolves through the ibc-prefixed form of an
// asset so a trace-prefixed and an ibc-prefixed reference to the same
// underlying denom alias the same key.
func balanceStorageKey(addr primitive.Address, asset primitive.Asset) string {
	return fmt.Sprintf("accounts/%s/balance/%s", addressKey(addr), asset.ToIbcPrefixed().String())
}

func nonceStorageKey(addr primitive.Address) string {
	return fmt.Sprintf("accounts/%s/nonce", addressKey(addr))
}

func feeRecordKey(actionName string) string {
	return fmt.Sprintf("accounts/fees/%s", actionName)
}

func assetBalancePrefix(addr primitive.Address) string {
	return fmt.Sprintf("accounts/%s/balance/", addressKey(addr))
}
