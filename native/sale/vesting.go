package sale

import (
	"math/big"

	"crybsale/core/events"
)

// Releasable returns the amount of a position that can be claimed at now.
//
// Before the cliff nothing is releasable. After the schedule ends the whole
// unclaimed remainder is. In between the vested-to-date amount is
// floor(amount * elapsed / duration), less what was already claimed.
func Releasable(pos *Position, now int64) *big.Int {
	if pos == nil || pos.Amount == nil {
		return big.NewInt(0)
	}
	claimed := newBigInt(pos.TotalClaimed)
	if now < pos.StartTime+pos.Cliff {
		return big.NewInt(0)
	}
	var vested *big.Int
	if pos.Duration <= 0 || now >= pos.StartTime+pos.Duration {
		vested = newBigInt(pos.Amount)
	} else {
		vested = new(big.Int).Mul(pos.Amount, big.NewInt(now-pos.StartTime))
		vested.Quo(vested, big.NewInt(pos.Duration))
	}
	out := vested.Sub(vested, claimed)
	if out.Sign() < 0 {
		return big.NewInt(0)
	}
	return out
}

// elapsed returns the schedule time covered at now, bounded by the duration.
func elapsed(pos *Position, now int64) int64 {
	span := now - pos.StartTime
	if span < 0 {
		return 0
	}
	if span > pos.Duration {
		return pos.Duration
	}
	return span
}

// openPosition appends a new position to the beneficiary's schedule.
func (e *Engine) openPosition(beneficiary [20]byte, amount *big.Int, start int64, origin Origin, now int64) (*Position, error) {
	count, err := e.state.SalePositionCount(beneficiary)
	if err != nil {
		return nil, err
	}
	pos := &Position{
		Beneficiary:  beneficiary,
		Index:        count,
		Amount:       newBigInt(amount),
		StartTime:    start,
		Cliff:        e.params.Cliff,
		Duration:     e.params.Duration,
		TotalClaimed: big.NewInt(0),
		Origin:       origin,
		CreatedAt:    now,
	}
	if err := e.state.SalePositionPut(pos); err != nil {
		return nil, err
	}
	if count == 0 {
		if err := e.state.SaleBeneficiaryAdd(beneficiary); err != nil {
			return nil, err
		}
	}
	if err := e.state.SalePositionCountPut(beneficiary, count+1); err != nil {
		return nil, err
	}
	return pos, nil
}

func (e *Engine) emitOpened(pos *Position) {
	e.emit(events.VestingOpened{
		Beneficiary: pos.Beneficiary,
		Index:       pos.Index,
		Amount:      newBigInt(pos.Amount),
		StartTime:   pos.StartTime,
		Cliff:       pos.Cliff,
		Duration:    pos.Duration,
		Origin:      string(pos.Origin),
	})
}

// claim books the releasable amount of one position and returns it. Nothing
// is written when the amount is zero.
func (e *Engine) claim(pos *Position, now int64) (*big.Int, error) {
	amount := Releasable(pos, now)
	if amount.Sign() == 0 {
		return amount, nil
	}
	pos.TotalClaimed = new(big.Int).Add(newBigInt(pos.TotalClaimed), amount)
	pos.PeriodClaimed = elapsed(pos, now)
	if err := e.state.SalePositionPut(pos); err != nil {
		return nil, err
	}
	return amount, nil
}

// Release delivers the releasable amount of a single position. A position
// with nothing to release is a silent no-op.
func (e *Engine) Release(beneficiary [20]byte, index uint64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	pos, err := e.position(beneficiary, index)
	if err != nil {
		return nil, err
	}
	amount, err := e.claim(pos, e.now())
	if err != nil {
		return nil, err
	}
	if amount.Sign() == 0 {
		return amount, nil
	}
	if err := e.token.Transfer(e.params.Custody, beneficiary, amount); err != nil {
		return nil, err
	}
	e.emit(events.Claimed{Beneficiary: beneficiary, Amount: newBigInt(amount), Positions: 1})
	return amount, nil
}

// ReleaseAll releases every position of the beneficiary and delivers the
// aggregate in a single transfer. Beneficiaries without positions get zero.
func (e *Engine) ReleaseAll(beneficiary [20]byte) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	count, err := e.state.SalePositionCount(beneficiary)
	if err != nil {
		return nil, err
	}
	now := e.now()
	total := big.NewInt(0)
	released := 0
	for i := uint64(0); i < count; i++ {
		pos, err := e.position(beneficiary, i)
		if err != nil {
			return nil, err
		}
		amount, err := e.claim(pos, now)
		if err != nil {
			return nil, err
		}
		if amount.Sign() == 0 {
			continue
		}
		total.Add(total, amount)
		released++
	}
	if total.Sign() == 0 {
		return total, nil
	}
	if err := e.token.Transfer(e.params.Custody, beneficiary, total); err != nil {
		return nil, err
	}
	e.emit(events.Claimed{Beneficiary: beneficiary, Amount: newBigInt(total), Positions: released})
	return total, nil
}

// VestingCount returns the number of positions held by the beneficiary.
func (e *Engine) VestingCount(beneficiary [20]byte) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.SalePositionCount(beneficiary)
}

// VestingInfo returns the claim view of one position.
func (e *Engine) VestingInfo(beneficiary [20]byte, index uint64) (*VestingInfo, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pos, err := e.position(beneficiary, index)
	if err != nil {
		return nil, err
	}
	return &VestingInfo{
		Amount:        newBigInt(pos.Amount),
		TotalClaimed:  newBigInt(pos.TotalClaimed),
		PeriodClaimed: pos.PeriodClaimed,
	}, nil
}

// Position returns a copy of the stored position.
func (e *Engine) Position(beneficiary [20]byte, index uint64) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.position(beneficiary, index)
}

// Positions returns every position of the beneficiary in index order.
func (e *Engine) Positions(beneficiary [20]byte) ([]*Position, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	count, err := e.state.SalePositionCount(beneficiary)
	if err != nil {
		return nil, err
	}
	out := make([]*Position, 0, count)
	for i := uint64(0); i < count; i++ {
		pos, err := e.position(beneficiary, i)
		if err != nil {
			return nil, err
		}
		out = append(out, pos)
	}
	return out, nil
}

// Beneficiaries lists every account holding at least one position.
func (e *Engine) Beneficiaries() ([][20]byte, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.SaleBeneficiaries()
}

func (e *Engine) position(beneficiary [20]byte, index uint64) (*Position, error) {
	count, err := e.state.SalePositionCount(beneficiary)
	if err != nil {
		return nil, err
	}
	if index >= count {
		return nil, ErrPositionNotFound
	}
	pos, ok, err := e.state.SalePositionGet(beneficiary, index)
	if err != nil {
		return nil, err
	}
	if !ok || pos == nil {
		return nil, ErrPositionNotFound
	}
	return pos, nil
}
