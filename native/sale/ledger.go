package sale

import "math/big"

// ceilingFor returns the live ceiling and the sold counter it is compared
// against for the given phase.
func (p Params) ceilingFor(totals *Totals, phase int) (ceiling, sold *big.Int) {
	if p.CeilingMode == CeilingPerPhase {
		return totals.PhaseCeilings[phase], totals.PhaseSold[phase]
	}
	return totals.Ceiling, totals.TotalSold
}

// checkCapacity rejects a reservation that would push sold past the ceiling.
// It never mutates totals.
func (p Params) checkCapacity(totals *Totals, phase int, tokenAmount *big.Int) error {
	ceiling, sold := p.ceilingFor(totals, phase)
	next := new(big.Int).Add(sold, tokenAmount)
	if next.Cmp(ceiling) > 0 {
		return ErrSoldOut
	}
	return nil
}

// applyReservation books a checked purchase against the totals.
func applyReservation(totals *Totals, phase int, paid, tokenAmount *big.Int) {
	totals.TotalSold = new(big.Int).Add(totals.TotalSold, tokenAmount)
	totals.TotalRaised = new(big.Int).Add(totals.TotalRaised, paid)
	totals.PhaseSold[phase] = new(big.Int).Add(totals.PhaseSold[phase], tokenAmount)
	totals.PhaseRaised[phase] = new(big.Int).Add(totals.PhaseRaised[phase], paid)
}

// unsold returns the inventory still withdrawable by the treasury.
func (p Params) unsold(totals *Totals) *big.Int {
	remaining := big.NewInt(0)
	if p.CeilingMode == CeilingPerPhase {
		for i := range p.Phases {
			left := new(big.Int).Sub(totals.PhaseCeilings[i], totals.PhaseSold[i])
			if left.Sign() > 0 {
				remaining.Add(remaining, left)
			}
		}
	} else {
		remaining.Sub(totals.Ceiling, totals.TotalSold)
	}
	remaining.Sub(remaining, totals.Withdrawn)
	if remaining.Sign() < 0 {
		return big.NewInt(0)
	}
	return remaining
}
