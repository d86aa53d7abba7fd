package sale

import (
	"fmt"
	"math/big"
)

// Layout selects which open-sale entry point a deployment exposes.
type Layout string

const (
	// LayoutTiered runs a gated presale followed by a public sale that
	// delivers tokens immediately.
	LayoutTiered Layout = "tiered"
	// LayoutSingle runs one ungated phase whose purchases vest.
	LayoutSingle Layout = "single"
)

// CeilingMode selects how availableForSale is accounted across phases.
type CeilingMode string

const (
	// CeilingShared uses one pool for every phase.
	CeilingShared CeilingMode = "shared"
	// CeilingPerPhase caps each phase independently.
	CeilingPerPhase CeilingMode = "per_phase"
)

// VestingStartMode selects the clock reference of new positions.
type VestingStartMode string

const (
	// VestingStartShared seeds every position with the sale-wide vesting date.
	VestingStartShared VestingStartMode = "shared"
	// VestingStartPurchase seeds each position with its own creation time.
	VestingStartPurchase VestingStartMode = "purchase"
)

// Origin records how a vesting position came to exist.
type Origin string

const (
	OriginPresale   Origin = "presale"
	OriginBuy       Origin = "buy"
	OriginWhitelist Origin = "whitelist"
)

// Phase indexes for the tiered layout.
const (
	PhasePresale = 0
	PhasePublic  = 1
)

// Phase describes one sale window. AvailableForSale is the initial ceiling;
// the live value is kept in Totals so the operator can change it.
type Phase struct {
	Name             string
	StartTime        int64
	EndTime          int64
	Rate             *big.Int
	AvailableForSale *big.Int
	// MaxAllocation caps cumulative presale tokens per beneficiary. Zero
	// disables the cap. Ignored for ungated phases.
	MaxAllocation *big.Int
	Gated         bool
}

// Params is the immutable, versioned configuration of a deployment.
type Params struct {
	Version          uint64
	Layout           Layout
	CeilingMode      CeilingMode
	VestingStartMode VestingStartMode
	// VestingStart is the shared vesting clock used by VestingStartShared.
	VestingStart int64
	Cliff        int64
	Duration     int64
	// AvailableForSale seeds the shared pool ceiling.
	AvailableForSale *big.Int
	Phases           []Phase
	Owner            [20]byte
	Treasury         [20]byte
	// Custody is the account holding unsold and unvested tokens.
	Custody [20]byte
}

// Validate reports the first structural problem with the parameters.
func (p Params) Validate() error {
	switch p.Layout {
	case LayoutTiered:
		if len(p.Phases) != 2 {
			return fmt.Errorf("tiered layout requires 2 phases, got %d", len(p.Phases))
		}
		if !p.Phases[PhasePresale].Gated || p.Phases[PhasePublic].Gated {
			return fmt.Errorf("tiered layout requires a gated presale and an open public phase")
		}
	case LayoutSingle:
		if len(p.Phases) != 1 {
			return fmt.Errorf("single layout requires 1 phase, got %d", len(p.Phases))
		}
	default:
		return fmt.Errorf("unknown layout %q", p.Layout)
	}
	switch p.CeilingMode {
	case CeilingShared:
		if p.AvailableForSale == nil || p.AvailableForSale.Sign() < 0 {
			return fmt.Errorf("shared ceiling must be non-negative")
		}
	case CeilingPerPhase:
	default:
		return fmt.Errorf("unknown ceiling mode %q", p.CeilingMode)
	}
	switch p.VestingStartMode {
	case VestingStartShared:
	case VestingStartPurchase:
		if p.Layout != LayoutSingle {
			return fmt.Errorf("purchase vesting start requires the single layout")
		}
	default:
		return fmt.Errorf("unknown vesting start mode %q", p.VestingStartMode)
	}
	if p.Duration <= 0 {
		return fmt.Errorf("vesting duration must be positive")
	}
	if p.Cliff < 0 || p.Cliff > p.Duration {
		return fmt.Errorf("cliff must be within [0, duration]")
	}
	var prevEnd int64
	for i, phase := range p.Phases {
		if phase.StartTime >= phase.EndTime {
			return fmt.Errorf("phase %d: start must precede end", i)
		}
		if i > 0 && phase.StartTime < prevEnd {
			return fmt.Errorf("phase %d overlaps phase %d", i, i-1)
		}
		prevEnd = phase.EndTime
		if phase.Rate == nil || phase.Rate.Sign() <= 0 {
			return fmt.Errorf("phase %d: rate must be at least 1", i)
		}
		if p.CeilingMode == CeilingPerPhase && (phase.AvailableForSale == nil || phase.AvailableForSale.Sign() < 0) {
			return fmt.Errorf("phase %d: ceiling must be non-negative", i)
		}
		if phase.MaxAllocation != nil && phase.MaxAllocation.Sign() < 0 {
			return fmt.Errorf("phase %d: max allocation must be non-negative", i)
		}
	}
	return nil
}

// Totals is the single mutable record of sale accounting.
type Totals struct {
	TotalRaised *big.Int
	TotalSold   *big.Int
	// Withdrawn tracks unsold inventory already returned to the treasury.
	Withdrawn     *big.Int
	Ceiling       *big.Int
	PhaseCeilings []*big.Int
	PhaseSold     []*big.Int
	PhaseRaised   []*big.Int
}

// Clone returns a deep copy so callers never alias stored amounts.
func (t *Totals) Clone() *Totals {
	if t == nil {
		return nil
	}
	return &Totals{
		TotalRaised:   newBigInt(t.TotalRaised),
		TotalSold:     newBigInt(t.TotalSold),
		Withdrawn:     newBigInt(t.Withdrawn),
		Ceiling:       newBigInt(t.Ceiling),
		PhaseCeilings: cloneAmounts(t.PhaseCeilings),
		PhaseSold:     cloneAmounts(t.PhaseSold),
		PhaseRaised:   cloneAmounts(t.PhaseRaised),
	}
}

func (t *Totals) ensure(phases int) {
	t.TotalRaised = newBigInt(t.TotalRaised)
	t.TotalSold = newBigInt(t.TotalSold)
	t.Withdrawn = newBigInt(t.Withdrawn)
	t.Ceiling = newBigInt(t.Ceiling)
	for len(t.PhaseCeilings) < phases {
		t.PhaseCeilings = append(t.PhaseCeilings, big.NewInt(0))
	}
	for len(t.PhaseSold) < phases {
		t.PhaseSold = append(t.PhaseSold, big.NewInt(0))
	}
	for len(t.PhaseRaised) < phases {
		t.PhaseRaised = append(t.PhaseRaised, big.NewInt(0))
	}
	for i := 0; i < phases; i++ {
		t.PhaseCeilings[i] = newBigInt(t.PhaseCeilings[i])
		t.PhaseSold[i] = newBigInt(t.PhaseSold[i])
		t.PhaseRaised[i] = newBigInt(t.PhaseRaised[i])
	}
}

// Position is one vesting grant. Only TotalClaimed and PeriodClaimed change
// after creation.
type Position struct {
	Beneficiary  [20]byte
	Index        uint64
	Amount       *big.Int
	StartTime    int64
	Cliff        int64
	Duration     int64
	TotalClaimed *big.Int
	// PeriodClaimed is the elapsed schedule time, in seconds, covered by the
	// last non-zero release.
	PeriodClaimed int64
	Origin        Origin
	CreatedAt     int64
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Amount = newBigInt(p.Amount)
	clone.TotalClaimed = newBigInt(p.TotalClaimed)
	return &clone
}

// VestingInfo is the public view of a position.
type VestingInfo struct {
	Amount        *big.Int
	TotalClaimed  *big.Int
	PeriodClaimed int64
}

func newBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func cloneAmounts(values []*big.Int) []*big.Int {
	if values == nil {
		return nil
	}
	out := make([]*big.Int, len(values))
	for i, v := range values {
		out[i] = newBigInt(v)
	}
	return out
}
