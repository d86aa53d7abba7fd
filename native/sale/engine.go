package sale

import (
	"errors"
	"math/big"
	"time"

	"github.com/holiman/uint256"

	"crybsale/core/events"
)

// ErrUnknownPhase is returned when a phase index is outside the schedule.
var ErrUnknownPhase = errors.New("unknown sale phase")

type engineState interface {
	SaleTotalsGet() (*Totals, bool, error)
	SaleTotalsPut(totals *Totals) error
	SalePositionGet(beneficiary [20]byte, index uint64) (*Position, bool, error)
	SalePositionPut(pos *Position) error
	SalePositionCount(beneficiary [20]byte) (uint64, error)
	SalePositionCountPut(beneficiary [20]byte, count uint64) error
	SaleBeneficiaryAdd(beneficiary [20]byte) error
	SaleBeneficiaries() ([][20]byte, error)
	SaleAllocationGet(beneficiary [20]byte) (*big.Int, error)
	SaleAllocationPut(beneficiary [20]byte, amount *big.Int) error
}

// tokenLedger moves the token being sold.
type tokenLedger interface {
	Transfer(from, to [20]byte, amount *big.Int) error
}

// currencyLedger moves the payment currency.
type currencyLedger interface {
	Transfer(from, to [20]byte, amount *big.Int) error
}

// Engine executes purchases, vesting claims and operator settlement against
// the configured sale parameters.
type Engine struct {
	params   Params
	state    engineState
	token    tokenLedger
	currency currencyLedger
	emitter  events.Emitter
	nowFn    func() int64
}

// PurchaseResult describes an accepted purchase.
type PurchaseResult struct {
	TokenAmount *big.Int
	Vested      bool
	// Index is the new position index when Vested is true.
	Index uint64
}

// NewEngine validates the parameters and constructs an engine with default
// dependencies.
func NewEngine(params Params) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		params:  cloneParams(params),
		emitter: events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
	}, nil
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetToken configures the token ledger used for deliveries.
func (e *Engine) SetToken(token tokenLedger) { e.token = token }

// SetCurrency configures the ledger that forwards payments to the treasury.
func (e *Engine) SetCurrency(currency currencyLedger) { e.currency = currency }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Params returns a copy of the deployment parameters.
func (e *Engine) Params() Params { return cloneParams(e.params) }

// Init seeds the sale totals from the parameters. It is a no-op when the
// totals already exist.
func (e *Engine) Init() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	_, ok, err := e.state.SaleTotalsGet()
	if err != nil || ok {
		return err
	}
	totals := &Totals{Ceiling: newBigInt(e.params.AvailableForSale)}
	totals.ensure(len(e.params.Phases))
	for i, phase := range e.params.Phases {
		totals.PhaseCeilings[i] = newBigInt(phase.AvailableForSale)
	}
	return e.state.SaleTotalsPut(totals)
}

// PreSale buys into the gated phase. Purchased tokens always vest.
func (e *Engine) PreSale(beneficiary [20]byte, amount *big.Int) (*PurchaseResult, error) {
	if e.params.Layout != LayoutTiered {
		return nil, ErrEntryPointDisabled
	}
	return e.purchase(beneficiary, amount, PhasePresale, presaleWindow, OriginPresale)
}

// PublicSale buys into the open phase and delivers tokens immediately.
func (e *Engine) PublicSale(beneficiary [20]byte, amount *big.Int) (*PurchaseResult, error) {
	if e.params.Layout != LayoutTiered {
		return nil, ErrEntryPointDisabled
	}
	return e.purchase(beneficiary, amount, PhasePublic, publicWindow, "")
}

// Buy purchases in the single-phase layout and vests the tokens.
func (e *Engine) Buy(beneficiary [20]byte, amount *big.Int) (*PurchaseResult, error) {
	if e.params.Layout != LayoutSingle {
		return nil, ErrEntryPointDisabled
	}
	return e.purchase(beneficiary, amount, 0, singleWindow, OriginBuy)
}

// purchase runs the checks, then books every state change, then moves funds.
// An empty origin means the tokens are delivered rather than vested.
func (e *Engine) purchase(beneficiary [20]byte, amount *big.Int, phaseIdx int, window windowErrors, origin Origin) (*PurchaseResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	phase := e.params.Phases[phaseIdx]
	now := e.now()
	if err := window.check(now, phase); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	if isZeroAddress(beneficiary) {
		return nil, ErrZeroBeneficiary
	}
	tokenAmount, err := tokensFor(amount, phase.Rate)
	if err != nil {
		return nil, err
	}
	totals, err := e.loadTotals()
	if err != nil {
		return nil, err
	}
	if err := e.params.checkCapacity(totals, phaseIdx, tokenAmount); err != nil {
		return nil, err
	}
	capped := origin == OriginPresale
	var cumulative *big.Int
	if capped {
		cumulative, err = e.state.SaleAllocationGet(beneficiary)
		if err != nil {
			return nil, err
		}
		if err := checkAllocation(cumulative, tokenAmount, phase.MaxAllocation); err != nil {
			return nil, err
		}
	}

	applyReservation(totals, phaseIdx, amount, tokenAmount)
	if err := e.state.SaleTotalsPut(totals); err != nil {
		return nil, err
	}
	if capped {
		next := new(big.Int).Add(newBigInt(cumulative), tokenAmount)
		if err := e.state.SaleAllocationPut(beneficiary, next); err != nil {
			return nil, err
		}
	}
	result := &PurchaseResult{TokenAmount: newBigInt(tokenAmount)}
	var pos *Position
	if origin != "" {
		pos, err = e.openPosition(beneficiary, tokenAmount, e.vestingStart(now), origin, now)
		if err != nil {
			return nil, err
		}
		result.Vested = true
		result.Index = pos.Index
	}

	if err := e.currency.Transfer(beneficiary, e.params.Treasury, amount); err != nil {
		return nil, err
	}
	if pos == nil {
		if err := e.token.Transfer(e.params.Custody, beneficiary, tokenAmount); err != nil {
			return nil, err
		}
	} else {
		e.emitOpened(pos)
	}
	e.emit(events.Buy{
		Beneficiary:    beneficiary,
		CurrencyAmount: newBigInt(amount),
		TokenAmount:    newBigInt(tokenAmount),
		Phase:          phase.Name,
		Vested:         result.Vested,
	})
	return result, nil
}

// TotalRaised returns the aggregate currency received.
func (e *Engine) TotalRaised() (*big.Int, error) {
	totals, err := e.Totals()
	if err != nil {
		return nil, err
	}
	return totals.TotalRaised, nil
}

// TotalSold returns the aggregate tokens sold.
func (e *Engine) TotalSold() (*big.Int, error) {
	totals, err := e.Totals()
	if err != nil {
		return nil, err
	}
	return totals.TotalSold, nil
}

// Totals returns a copy of the sale accounting record.
func (e *Engine) Totals() (*Totals, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadTotals()
}

// StartTime returns the opening time of the given phase.
func (e *Engine) StartTime(phase int) (int64, error) {
	if phase < 0 || phase >= len(e.params.Phases) {
		return 0, ErrUnknownPhase
	}
	return e.params.Phases[phase].StartTime, nil
}

// EndTime returns the closing time of the given phase.
func (e *Engine) EndTime(phase int) (int64, error) {
	if phase < 0 || phase >= len(e.params.Phases) {
		return 0, ErrUnknownPhase
	}
	return e.params.Phases[phase].EndTime, nil
}

// AvailableForSale returns the live ceiling governing the given phase.
func (e *Engine) AvailableForSale(phase int) (*big.Int, error) {
	if phase < 0 || phase >= len(e.params.Phases) {
		return nil, ErrUnknownPhase
	}
	totals, err := e.Totals()
	if err != nil {
		return nil, err
	}
	ceiling, _ := e.params.ceilingFor(totals, phase)
	return newBigInt(ceiling), nil
}

// Remaining returns the unsold inventory the treasury could still withdraw.
func (e *Engine) Remaining() (*big.Int, error) {
	totals, err := e.Totals()
	if err != nil {
		return nil, err
	}
	return e.params.unsold(totals), nil
}

func (e *Engine) vestingStart(now int64) int64 {
	if e.params.VestingStartMode == VestingStartShared {
		return e.params.VestingStart
	}
	return now
}

func (e *Engine) loadTotals() (*Totals, error) {
	totals, ok, err := e.state.SaleTotalsGet()
	if err != nil {
		return nil, err
	}
	if !ok || totals == nil {
		return nil, errTotalsNotInitialised
	}
	totals.ensure(len(e.params.Phases))
	return totals, nil
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.token == nil {
		return errNilToken
	}
	if e.currency == nil {
		return errNilCurrency
	}
	return nil
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// tokensFor converts a currency amount at the phase rate, rejecting results
// that do not fit in 256 bits.
func tokensFor(amount, rate *big.Int) (*big.Int, error) {
	a, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, ErrAmountOverflow
	}
	r, overflow := uint256.FromBig(rate)
	if overflow {
		return nil, ErrAmountOverflow
	}
	out, overflow := new(uint256.Int).MulOverflow(a, r)
	if overflow {
		return nil, ErrAmountOverflow
	}
	return out.ToBig(), nil
}

func isZeroAddress(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}

func cloneParams(p Params) Params {
	clone := p
	clone.AvailableForSale = newBigInt(p.AvailableForSale)
	clone.Phases = make([]Phase, len(p.Phases))
	for i, phase := range p.Phases {
		phase.Rate = newBigInt(phase.Rate)
		phase.AvailableForSale = newBigInt(phase.AvailableForSale)
		phase.MaxAllocation = newBigInt(phase.MaxAllocation)
		clone.Phases[i] = phase
	}
	return clone
}
