package bank

import (
	"errors"
	"math/big"

	"crybsale/core/events"
)

var (
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrInvalidAmount       = errors.New("bank: amount must not be negative")
	ErrZeroAccount         = errors.New("bank: zero account")
	errNilState            = errors.New("bank: state not configured")
)

type bankState interface {
	CurrencyBalanceGet(account [20]byte) (*big.Int, error)
	CurrencyBalancePut(account [20]byte, amount *big.Int) error
}

// Ledger holds balances of the payment currency used to buy tokens.
type Ledger struct {
	state   bankState
	emitter events.Emitter
}

// NewLedger constructs a currency ledger with default dependencies.
func NewLedger() *Ledger {
	return &Ledger{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the ledger.
func (l *Ledger) SetState(state bankState) { l.state = state }

// SetEmitter configures the event emitter used by the ledger.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// BalanceOf returns the currency balance of account.
func (l *Ledger) BalanceOf(account [20]byte) (*big.Int, error) {
	if l.state == nil {
		return nil, errNilState
	}
	return l.state.CurrencyBalanceGet(account)
}

// Credit adds funds to account without a counterparty. Only genesis and
// deposits use it.
func (l *Ledger) Credit(account [20]byte, amount *big.Int) error {
	if l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	var zero [20]byte
	if account == zero {
		return ErrZeroAccount
	}
	balance, err := l.state.CurrencyBalanceGet(account)
	if err != nil {
		return err
	}
	return l.state.CurrencyBalancePut(account, new(big.Int).Add(balance, amount))
}

// Transfer moves amount between accounts.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	if l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	var zero [20]byte
	if to == zero {
		return ErrZeroAccount
	}
	fromBalance, err := l.state.CurrencyBalanceGet(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if from == to {
		return nil
	}
	toBalance, err := l.state.CurrencyBalanceGet(to)
	if err != nil {
		return err
	}
	if err := l.state.CurrencyBalancePut(from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	if err := l.state.CurrencyBalancePut(to, new(big.Int).Add(toBalance, amount)); err != nil {
		return err
	}
	l.emitter.Emit(events.CurrencyTransfer{From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}
