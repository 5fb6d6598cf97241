package guard

import (
	"github.com/shopspring/decimal"

	"stake-mirror-watch/internal/txsubmit"
)

const synthetixContract = "Synthetix"

// BurnCall selects exactly one of the four burn call variants, by delegate
// presence and by mode. ToTarget lets the contract derive the amount;
// everything else passes it explicitly.
func BurnCall(mode BurnMode, amount decimal.Decimal, delegate string, gasPrice decimal.Decimal) txsubmit.CallDescriptor {
	call := txsubmit.CallDescriptor{Contract: synthetixContract, GasPrice: gasPrice}

	switch {
	case delegate != "" && mode == ModeToTarget:
		call.Method = "burnSynthsToTargetOnBehalf"
		call.Args = []any{delegate}
	case delegate != "":
		call.Method = "burnSynthsOnBehalf"
		call.Args = []any{delegate, amount}
	case mode == ModeToTarget:
		call.Method = "burnSynthsToTarget"
		call.Args = []any{}
	default:
		call.Method = "burnSynths"
		call.Args = []any{amount}
	}

	return call
}

// MintCall selects the issuance call variant the same way: delegate
// presence crossed with max-vs-explicit amount.
func MintCall(max bool, amount decimal.Decimal, delegate string, gasPrice decimal.Decimal) txsubmit.CallDescriptor {
	call := txsubmit.CallDescriptor{Contract: synthetixContract, GasPrice: gasPrice}

	switch {
	case delegate != "" && max:
		call.Method = "issueMaxSynthsOnBehalf"
		call.Args = []any{delegate}
	case delegate != "":
		call.Method = "issueSynthsOnBehalf"
		call.Args = []any{delegate, amount}
	case max:
		call.Method = "issueMaxSynths"
		call.Args = []any{}
	default:
		call.Method = "issueSynths"
		call.Args = []any{amount}
	}

	return call
}
