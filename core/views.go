package core

import (
	"math/big"
	"sort"

	"crybsale/native/sale"
)

// PhaseStatus describes one sale window and its accounting.
type PhaseStatus struct {
	Index            int
	Name             string
	StartTime        int64
	EndTime          int64
	Rate             *big.Int
	MaxAllocation    *big.Int
	Gated            bool
	Window           string
	AvailableForSale *big.Int
	Sold             *big.Int
	Raised           *big.Int
}

// SaleStatus is a point-in-time snapshot of the sale.
type SaleStatus struct {
	Now              int64
	Layout           sale.Layout
	CeilingMode      sale.CeilingMode
	VestingStartMode sale.VestingStartMode
	ActivePhase      int
	TotalRaised      *big.Int
	TotalSold        *big.Int
	Withdrawn        *big.Int
	AvailableForSale *big.Int
	Remaining        *big.Int
	Phases           []PhaseStatus
}

// PositionView pairs a position with its currently releasable amount.
type PositionView struct {
	*sale.Position
	Releasable *big.Int
}

func windowLabel(status sale.WindowStatus) string {
	switch status {
	case sale.WindowOpen:
		return "open"
	case sale.WindowNotStarted:
		return "not_started"
	default:
		return "ended"
	}
}

// Status summarises phases, totals and remaining inventory.
func (r *Runtime) Status() (*SaleStatus, error) {
	var status *SaleStatus
	err := r.view(func() error {
		totals, err := r.sale.Totals()
		if err != nil {
			return err
		}
		remaining, err := r.sale.Remaining()
		if err != nil {
			return err
		}
		params := r.sale.Params()
		now := r.nowFn()
		status = &SaleStatus{
			Now:              now,
			Layout:           params.Layout,
			CeilingMode:      params.CeilingMode,
			VestingStartMode: params.VestingStartMode,
			ActivePhase:      r.sale.ActivePhase(),
			TotalRaised:      totals.TotalRaised,
			TotalSold:        totals.TotalSold,
			Withdrawn:        totals.Withdrawn,
			AvailableForSale: totals.Ceiling,
			Remaining:        remaining,
			Phases:           make([]PhaseStatus, 0, len(params.Phases)),
		}
		for i, phase := range params.Phases {
			status.Phases = append(status.Phases, phaseStatus(i, phase, totals, now))
		}
		return nil
	})
	return status, err
}

// Phase returns the status of one phase.
func (r *Runtime) Phase(index int) (*PhaseStatus, error) {
	var out *PhaseStatus
	err := r.view(func() error {
		params := r.sale.Params()
		if index < 0 || index >= len(params.Phases) {
			return sale.ErrUnknownPhase
		}
		totals, err := r.sale.Totals()
		if err != nil {
			return err
		}
		ps := phaseStatus(index, params.Phases[index], totals, r.nowFn())
		out = &ps
		return nil
	})
	return out, err
}

func phaseStatus(i int, phase sale.Phase, totals *sale.Totals, now int64) PhaseStatus {
	ps := PhaseStatus{
		Index:         i,
		Name:          phase.Name,
		StartTime:     phase.StartTime,
		EndTime:       phase.EndTime,
		Rate:          new(big.Int).Set(phase.Rate),
		MaxAllocation: new(big.Int).Set(phase.MaxAllocation),
		Gated:         phase.Gated,
		Window:        windowLabel(sale.Admissible(now, phase)),
	}
	if i < len(totals.PhaseCeilings) {
		ps.AvailableForSale = totals.PhaseCeilings[i]
		ps.Sold = totals.PhaseSold[i]
		ps.Raised = totals.PhaseRaised[i]
	}
	return ps
}

// Positions lists the vesting positions of beneficiary with releasable amounts.
func (r *Runtime) Positions(beneficiary [20]byte) ([]PositionView, error) {
	var out []PositionView
	err := r.view(func() error {
		positions, err := r.sale.Positions(beneficiary)
		if err != nil {
			return err
		}
		now := r.nowFn()
		out = make([]PositionView, 0, len(positions))
		for _, pos := range positions {
			out = append(out, PositionView{Position: pos, Releasable: sale.Releasable(pos, now)})
		}
		return nil
	})
	return out, err
}

// Position returns one vesting position.
func (r *Runtime) Position(beneficiary [20]byte, index uint64) (*PositionView, error) {
	var out *PositionView
	err := r.view(func() error {
		pos, err := r.sale.Position(beneficiary, index)
		if err != nil {
			return err
		}
		out = &PositionView{Position: pos, Releasable: sale.Releasable(pos, r.nowFn())}
		return nil
	})
	return out, err
}

// VestingCount returns how many positions beneficiary holds.
func (r *Runtime) VestingCount(beneficiary [20]byte) (uint64, error) {
	var count uint64
	err := r.view(func() error {
		var err error
		count, err = r.sale.VestingCount(beneficiary)
		return err
	})
	return count, err
}

// AllPositions returns every position ordered by beneficiary then index.
func (r *Runtime) AllPositions() ([]*sale.Position, error) {
	var out []*sale.Position
	err := r.view(func() error {
		beneficiaries, err := r.sale.Beneficiaries()
		if err != nil {
			return err
		}
		sort.Slice(beneficiaries, func(i, j int) bool {
			return string(beneficiaries[i][:]) < string(beneficiaries[j][:])
		})
		for _, ben := range beneficiaries {
			positions, err := r.sale.Positions(ben)
			if err != nil {
				return err
			}
			out = append(out, positions...)
		}
		return nil
	})
	return out, err
}

// Allocation returns the cumulative presale purchases of beneficiary.
func (r *Runtime) Allocation(beneficiary [20]byte) (*big.Int, error) {
	var out *big.Int
	err := r.view(func() error {
		var err error
		out, err = r.sale.Allocation(beneficiary)
		return err
	})
	return out, err
}

// TokenBalance returns the token balance of account.
func (r *Runtime) TokenBalance(account [20]byte) (*big.Int, error) {
	var out *big.Int
	err := r.view(func() error {
		var err error
		out, err = r.token.BalanceOf(account)
		return err
	})
	return out, err
}

// TokenSupply returns the total token supply.
func (r *Runtime) TokenSupply() (*big.Int, error) {
	var out *big.Int
	err := r.view(func() error {
		var err error
		out, err = r.token.TotalSupply()
		return err
	})
	return out, err
}

// TokenExcluded reports whether account is exempt from the transfer tax.
func (r *Runtime) TokenExcluded(account [20]byte) (bool, error) {
	var out bool
	err := r.view(func() error {
		var err error
		out, err = r.token.IsExcluded(account)
		return err
	})
	return out, err
}

// CurrencyBalance returns the payment currency balance of account.
func (r *Runtime) CurrencyBalance(account [20]byte) (*big.Int, error) {
	var out *big.Int
	err := r.view(func() error {
		var err error
		out, err = r.bank.BalanceOf(account)
		return err
	})
	return out, err
}
