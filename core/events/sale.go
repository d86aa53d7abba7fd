package events

import (
	"math/big"
	"strconv"

	"crybsale/core/types"
)

const (
	// TypeSaleBuy is emitted for every accepted purchase.
	TypeSaleBuy = "sale.buy"
	// TypeSaleClaimed is emitted when vested tokens are delivered.
	TypeSaleClaimed = "sale.claimed"
	// TypeVestingOpened is emitted when a new vesting position is appended.
	TypeVestingOpened = "sale.vesting.opened"
	// TypeSaleWhitelisted is emitted for each operator grant.
	TypeSaleWhitelisted = "sale.whitelisted"
	// TypeRemainingWithdrawn is emitted when unsold inventory returns to the treasury.
	TypeRemainingWithdrawn = "sale.remaining.withdrawn"
	// TypeCeilingUpdated is emitted when the operator changes a sale ceiling.
	TypeCeilingUpdated = "sale.ceiling.updated"
)

// Buy records a purchase of tokens for currency.
type Buy struct {
	Beneficiary    [20]byte
	CurrencyAmount *big.Int
	TokenAmount    *big.Int
	Phase          string
	// Vested is true when the tokens were booked into a vesting position.
	Vested bool
}

// EventType satisfies the events.Event interface.
func (Buy) EventType() string { return TypeSaleBuy }

// Event converts the purchase into a broadcastable event.
func (e Buy) Event() *types.Event {
	return &types.Event{Type: TypeSaleBuy, Attributes: map[string]string{
		"beneficiary":    formatAddress(e.Beneficiary),
		"currencyAmount": formatAmount(e.CurrencyAmount),
		"tokenAmount":    formatAmount(e.TokenAmount),
		"phase":          e.Phase,
		"vested":         strconv.FormatBool(e.Vested),
	}}
}

// Claimed records tokens released from one or more vesting positions.
type Claimed struct {
	Beneficiary [20]byte
	Amount      *big.Int
	Positions   int
}

// EventType satisfies the events.Event interface.
func (Claimed) EventType() string { return TypeSaleClaimed }

func (e Claimed) Event() *types.Event {
	return &types.Event{Type: TypeSaleClaimed, Attributes: map[string]string{
		"beneficiary": formatAddress(e.Beneficiary),
		"amount":      formatAmount(e.Amount),
		"positions":   strconv.Itoa(e.Positions),
	}}
}

// VestingOpened records a new position on the beneficiary's schedule.
type VestingOpened struct {
	Beneficiary [20]byte
	Index       uint64
	Amount      *big.Int
	StartTime   int64
	Cliff       int64
	Duration    int64
	Origin      string
}

// EventType satisfies the events.Event interface.
func (VestingOpened) EventType() string { return TypeVestingOpened }

func (e VestingOpened) Event() *types.Event {
	return &types.Event{Type: TypeVestingOpened, Attributes: map[string]string{
		"beneficiary": formatAddress(e.Beneficiary),
		"index":       strconv.FormatUint(e.Index, 10),
		"amount":      formatAmount(e.Amount),
		"startTime":   intToString(e.StartTime),
		"cliff":       intToString(e.Cliff),
		"duration":    intToString(e.Duration),
		"origin":      e.Origin,
	}}
}

// Whitelisted records an operator grant outside purchased capacity.
type Whitelisted struct {
	Beneficiary [20]byte
	Amount      *big.Int
	Index       uint64
}

// EventType satisfies the events.Event interface.
func (Whitelisted) EventType() string { return TypeSaleWhitelisted }

func (e Whitelisted) Event() *types.Event {
	return &types.Event{Type: TypeSaleWhitelisted, Attributes: map[string]string{
		"beneficiary": formatAddress(e.Beneficiary),
		"amount":      formatAmount(e.Amount),
		"index":       strconv.FormatUint(e.Index, 10),
	}}
}

// RemainingWithdrawn records unsold tokens returned to the treasury.
type RemainingWithdrawn struct {
	Treasury [20]byte
	Amount   *big.Int
}

// EventType satisfies the events.Event interface.
func (RemainingWithdrawn) EventType() string { return TypeRemainingWithdrawn }

func (e RemainingWithdrawn) Event() *types.Event {
	return &types.Event{Type: TypeRemainingWithdrawn, Attributes: map[string]string{
		"treasury": formatAddress(e.Treasury),
		"amount":   formatAmount(e.Amount),
	}}
}

// CeilingUpdated records a change to the available-for-sale ceiling.
type CeilingUpdated struct {
	Phase    string
	Previous *big.Int
	Ceiling  *big.Int
}

// EventType satisfies the events.Event interface.
func (CeilingUpdated) EventType() string { return TypeCeilingUpdated }

func (e CeilingUpdated) Event() *types.Event {
	return &types.Event{Type: TypeCeilingUpdated, Attributes: map[string]string{
		"phase":    e.Phase,
		"previous": formatAmount(e.Previous),
		"ceiling":  formatAmount(e.Ceiling),
	}}
}
