package events

import (
	"math/big"
	"strconv"

	"crybsale/core/types"
)

const (
	// TypeTokenTransfer is emitted for every token balance movement.
	TypeTokenTransfer = "token.transfer"
	// TypeTokenApproval is emitted when an allowance changes.
	TypeTokenApproval = "token.approval"
	// TypeTokenTax is emitted when a transfer tax is routed to the treasury.
	TypeTokenTax = "token.tax"
	// TypeTokenExclusion is emitted when an account enters or leaves the tax exclusion list.
	TypeTokenExclusion = "token.exclusion"
	// TypeCurrencyTransfer is emitted for native currency movements.
	TypeCurrencyTransfer = "bank.transfer"
)

// TokenTransfer mirrors the ERC20 Transfer log.
type TokenTransfer struct {
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

// EventType satisfies the events.Event interface.
func (TokenTransfer) EventType() string { return TypeTokenTransfer }

func (e TokenTransfer) Event() *types.Event {
	return &types.Event{Type: TypeTokenTransfer, Attributes: map[string]string{
		"from":   formatAddress(e.From),
		"to":     formatAddress(e.To),
		"amount": formatAmount(e.Amount),
	}}
}

// TokenApproval mirrors the ERC20 Approval log.
type TokenApproval struct {
	Owner   [20]byte
	Spender [20]byte
	Amount  *big.Int
}

// EventType satisfies the events.Event interface.
func (TokenApproval) EventType() string { return TypeTokenApproval }

func (e TokenApproval) Event() *types.Event {
	return &types.Event{Type: TypeTokenApproval, Attributes: map[string]string{
		"owner":   formatAddress(e.Owner),
		"spender": formatAddress(e.Spender),
		"amount":  formatAmount(e.Amount),
	}}
}

// TokenTax records the tax portion of a transfer.
type TokenTax struct {
	From     [20]byte
	Treasury [20]byte
	Gross    *big.Int
	Tax      *big.Int
}

// EventType satisfies the events.Event interface.
func (TokenTax) EventType() string { return TypeTokenTax }

func (e TokenTax) Event() *types.Event {
	return &types.Event{Type: TypeTokenTax, Attributes: map[string]string{
		"from":     formatAddress(e.From),
		"treasury": formatAddress(e.Treasury),
		"gross":    formatAmount(e.Gross),
		"tax":      formatAmount(e.Tax),
	}}
}

// TokenExclusion records a change to the tax exclusion list.
type TokenExclusion struct {
	Account  [20]byte
	Excluded bool
}

// EventType satisfies the events.Event interface.
func (TokenExclusion) EventType() string { return TypeTokenExclusion }

func (e TokenExclusion) Event() *types.Event {
	return &types.Event{Type: TypeTokenExclusion, Attributes: map[string]string{
		"account":  formatAddress(e.Account),
		"excluded": strconv.FormatBool(e.Excluded),
	}}
}

// CurrencyTransfer records a movement of the native payment currency.
type CurrencyTransfer struct {
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

// EventType satisfies the events.Event interface.
func (CurrencyTransfer) EventType() string { return TypeCurrencyTransfer }

func (e CurrencyTransfer) Event() *types.Event {
	return &types.Event{Type: TypeCurrencyTransfer, Attributes: map[string]string{
		"from":   formatAddress(e.From),
		"to":     formatAddress(e.To),
		"amount": formatAmount(e.Amount),
	}}
}

// Payload is implemented by every typed event that renders to a generic record.
type Payload interface {
	Event
	Event() *types.Event
}

// Render converts a typed event into its generic record when possible.
func Render(evt Event) *types.Event {
	if p, ok := evt.(Payload); ok {
		return p.Event()
	}
	return nil
}
