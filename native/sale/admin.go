package sale

import (
	"math/big"

	"crybsale/core/events"
)

func (e *Engine) requireOwner(caller [20]byte) error {
	if caller != e.params.Owner {
		return ErrNotOwner
	}
	return nil
}

// Whitelist grants vesting positions outside purchased capacity. Every pair
// is validated before any position is opened.
func (e *Engine) Whitelist(caller [20]byte, beneficiaries [][20]byte, amounts []*big.Int) ([]uint64, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.requireOwner(caller); err != nil {
		return nil, err
	}
	if len(beneficiaries) != len(amounts) {
		return nil, ErrLengthMismatch
	}
	for i := range beneficiaries {
		if amounts[i] == nil || amounts[i].Sign() <= 0 {
			return nil, ErrZeroAmount
		}
		if isZeroAddress(beneficiaries[i]) {
			return nil, ErrZeroBeneficiary
		}
	}
	now := e.now()
	opened := make([]*Position, 0, len(beneficiaries))
	for i, beneficiary := range beneficiaries {
		pos, err := e.openPosition(beneficiary, amounts[i], e.vestingStart(now), OriginWhitelist, now)
		if err != nil {
			return nil, err
		}
		opened = append(opened, pos)
	}
	indexes := make([]uint64, len(opened))
	for i, pos := range opened {
		indexes[i] = pos.Index
		e.emitOpened(pos)
		e.emit(events.Whitelisted{Beneficiary: pos.Beneficiary, Amount: newBigInt(pos.Amount), Index: pos.Index})
	}
	return indexes, nil
}

// WithdrawRemaining returns unsold inventory to the treasury once the last
// phase has closed. Repeated calls transfer zero.
func (e *Engine) WithdrawRemaining(caller [20]byte) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.requireOwner(caller); err != nil {
		return nil, err
	}
	last := e.params.Phases[len(e.params.Phases)-1]
	if e.now() < last.EndTime {
		return nil, ErrSaleNotFinished
	}
	totals, err := e.loadTotals()
	if err != nil {
		return nil, err
	}
	amount := e.params.unsold(totals)
	if amount.Sign() == 0 {
		return amount, nil
	}
	totals.Withdrawn = new(big.Int).Add(totals.Withdrawn, amount)
	if err := e.state.SaleTotalsPut(totals); err != nil {
		return nil, err
	}
	if err := e.token.Transfer(e.params.Custody, e.params.Treasury, amount); err != nil {
		return nil, err
	}
	e.emit(events.RemainingWithdrawn{Treasury: e.params.Treasury, Amount: newBigInt(amount)})
	return amount, nil
}

// SetAvailableForSale replaces the ceiling used for the active phase. In
// shared mode that is the pool ceiling.
func (e *Engine) SetAvailableForSale(caller [20]byte, ceiling *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if ceiling == nil {
		return ErrCeilingBelowSold
	}
	totals, err := e.loadTotals()
	if err != nil {
		return err
	}
	phase := e.ActivePhase()
	name := "pool"
	var previous *big.Int
	if e.params.CeilingMode == CeilingPerPhase {
		if ceiling.Cmp(totals.PhaseSold[phase]) < 0 {
			return ErrCeilingBelowSold
		}
		previous = totals.PhaseCeilings[phase]
		totals.PhaseCeilings[phase] = newBigInt(ceiling)
		name = e.params.Phases[phase].Name
	} else {
		if ceiling.Cmp(totals.TotalSold) < 0 {
			return ErrCeilingBelowSold
		}
		previous = totals.Ceiling
		totals.Ceiling = newBigInt(ceiling)
	}
	if err := e.state.SaleTotalsPut(totals); err != nil {
		return err
	}
	e.emit(events.CeilingUpdated{Phase: name, Previous: newBigInt(previous), Ceiling: newBigInt(ceiling)})
	return nil
}

// ActivePhase returns the phase whose window contains now, else the next
// phase to open, else the last phase.
func (e *Engine) ActivePhase() int {
	now := e.now()
	for i, phase := range e.params.Phases {
		if Admissible(now, phase) == WindowOpen {
			return i
		}
	}
	for i, phase := range e.params.Phases {
		if now < phase.StartTime {
			return i
		}
	}
	return len(e.params.Phases) - 1
}
