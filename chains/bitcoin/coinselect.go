package bitcoin

import (
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/pkg/errors"
)

// ErrInsufficientFunds distinguishes a failed build from upstream failures;
// callers fall back to max-send selection before giving up.
var ErrInsufficientFunds = errors.New("insufficient funds for requested amount at this fee rate")

// Unspent is one spendable output owned by the wallet.
type Unspent struct {
	TxID    string         `json:"txid"`
	Vout    uint32         `json:"vout"`
	Amount  btcutil.Amount `json:"amount"`
	Address string         `json:"address"`
	PubKey  string         `json:"pubkey"`
	Path    string         `json:"path"`
}

// Output is one planned transaction output.
type Output struct {
	Address  string         `json:"address"`
	Amount   btcutil.Amount `json:"amount"`
	IsChange bool           `json:"isChange,omitempty"`
}

// Selection is a planned unsigned transaction. By construction
// sum(inputs) - sum(outputs) == Fee and Fee >= 0.
type Selection struct {
	Inputs  []Unspent      `json:"inputs"`
	Outputs []Output       `json:"outputs"`
	Fee     btcutil.Amount `json:"fee"`
	FeeRate btcutil.Amount `json:"feeRate"`
	MaxSend bool           `json:"maxSend,omitempty"`
}

// InputTotal returns the summed input value.
func (s *Selection) InputTotal() btcutil.Amount {
	var total btcutil.Amount
	for _, in := range s.Inputs {
		total += in.Amount
	}
	return total
}

// OutputTotal returns the summed output value.
func (s *Selection) OutputTotal() btcutil.Amount {
	var total btcutil.Amount
	for _, out := range s.Outputs {
		total += out.Amount
	}
	return total
}

// P2PKH weight approximation: 10 byte overhead, 148 per input, 34 per
// output.
func estimateVSize(nIn, nOut int) int64 {
	return 10 + 148*int64(nIn) + 34*int64(nOut)
}

func feeFor(nIn, nOut int, rate btcutil.Amount) btcutil.Amount {
	return rate * btcutil.Amount(estimateVSize(nIn, nOut))
}

// Select accumulates inputs largest first until the target plus fee is
// covered. A change output below the dust threshold is folded into the fee
// and the plan recomputed without it.
func Select(utxos []Unspent, target, rate, dust btcutil.Amount, destAddr, changeAddr string) (*Selection, error) {
	if target <= 0 {
		return nil, errors.New("target amount must be positive")
	}
	sorted := make([]Unspent, len(utxos))
	copy(sorted, utxos)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Amount > sorted[j].Amount })

	var inputs []Unspent
	var total btcutil.Amount
	for _, u := range sorted {
		if u.Amount <= 0 {
			continue
		}
		inputs = append(inputs, u)
		total += u.Amount

		feeWithChange := feeFor(len(inputs), 2, rate)
		if total < target+feeWithChange {
			continue
		}
		change := total - target - feeWithChange
		if change < dust {
			// dust change buys nothing; hand the surplus to the miner
			return &Selection{
				Inputs:  inputs,
				Outputs: []Output{{Address: destAddr, Amount: target}},
				Fee:     total - target,
				FeeRate: rate,
			}, nil
		}
		return &Selection{
			Inputs: inputs,
			Outputs: []Output{
				{Address: destAddr, Amount: target},
				{Address: changeAddr, Amount: change, IsChange: true},
			},
			Fee:     feeWithChange,
			FeeRate: rate,
		}, nil
	}
	return nil, ErrInsufficientFunds
}

// SelectMax spends every available input into a single output. Used as the
// fallback when standard selection cannot cover the requested amount.
func SelectMax(utxos []Unspent, rate btcutil.Amount, destAddr string) (*Selection, error) {
	var inputs []Unspent
	var total btcutil.Amount
	for _, u := range utxos {
		if u.Amount <= 0 {
			continue
		}
		inputs = append(inputs, u)
		total += u.Amount
	}
	if len(inputs) == 0 {
		return nil, ErrInsufficientFunds
	}
	fee := feeFor(len(inputs), 1, rate)
	amount := total - fee
	if amount <= 0 {
		return nil, ErrInsufficientFunds
	}
	return &Selection{
		Inputs:  inputs,
		Outputs: []Output{{Address: destAddr, Amount: amount}},
		Fee:     fee,
		FeeRate: rate,
		MaxSend: true,
	}, nil
}
