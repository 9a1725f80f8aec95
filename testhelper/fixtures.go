package testhelper

import (
	"github.com/shopspring/decimal"

	"github.com/keepkey-community/wallet-gateway/walletstate"
)

// NewTestState builds a wallet state with one key per requested network and
// a funded balance for each asset id.
func NewTestState(networks map[string]string) *walletstate.State {
	var keys []walletstate.KeyInfo
	var balances []walletstate.Balance
	for networkID, assetID := range networks {
		keys = append(keys, walletstate.KeyInfo{
			PubKey:   "xpub-test-key",
			Address:  testAddressFor(networkID),
			Networks: []string{networkID},
			Path:     "m/44'/0'/0'/0/0",
		})
		balances = append(balances, walletstate.Balance{
			AssetID:  assetID,
			Symbol:   "TEST",
			Exponent: 8,
			Amount:   decimal.NewFromInt(5),
		})
	}
	return walletstate.New(keys, balances)
}

func testAddressFor(networkID string) string {
	switch {
	case networkID == "xrpl:0":
		return "rTestAccountXXXXXXXXXXXXXXXXXXXXXX"
	case len(networkID) > 7 && networkID[:7] == "eip155:":
		return "0x8ba1f109551bd432803012645ac136ddd64dba72"
	case len(networkID) > 7 && networkID[:7] == "cosmos:":
		return "cosmos1testaddressxxxxxxxxxxxxxxxxxxxxxxx"
	default:
		return "1TestUTXOAddrXXXXXXXXXXXXXXXXXXXXX"
	}
}
