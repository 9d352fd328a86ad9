// Package ledger holds the pure balance-transition arithmetic applied
// by the transaction state machine. No I/O lives here.
package ledger

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInsufficientFunds means a withdrawal exceeds deposit + interest.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Split is the outcome of debiting a withdrawal from an account.
type Split struct {
	FromDeposit  decimal.Decimal
	FromInterest decimal.Decimal
	NewDeposit   decimal.Decimal
	NewInterest  decimal.Decimal
}

// SplitWithdrawal debits amount from an account, principal first. The
// remainder comes out of interest, which is allowed to go negative when
// deposit and interest straddle the amount; deposit itself never does.
// Fails before any mutation when amount exceeds deposit + interest.
func SplitWithdrawal(amount, deposit, interest decimal.Decimal) (Split, error) {
	if amount.GreaterThan(deposit.Add(interest)) {
		return Split{}, ErrInsufficientFunds
	}

	fromDeposit := decimal.Min(amount, deposit)
	fromInterest := amount.Sub(fromDeposit)

	return Split{
		FromDeposit:  fromDeposit,
		FromInterest: fromInterest,
		NewDeposit:   deposit.Sub(fromDeposit),
		NewInterest:  interest.Sub(fromInterest),
	}, nil
}

// TradeInterest computes the interest a trade distributes to one
// account: the trade's rate applied to the account's deposit.
func TradeInterest(rate, deposit decimal.Decimal) decimal.Decimal {
	return rate.Mul(deposit)
}

// SettlementDelta returns the demo-balance change for a settled trade:
// +profit on a win, -amount on a loss. There is no floor; a loss can
// push the demo balance negative.
func SettlementDelta(win bool, amount, profit decimal.Decimal) decimal.Decimal {
	if win {
		return profit
	}
	return amount.Neg()
}
