package sale

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"crybsale/core/events"
)

const day = int64(86_400)

var (
	base     = int64(1_700_000_000)
	owner    = addr(0xA0)
	treasury = addr(0xA1)
	custody  = addr(0xA2)
	outsider = addr(0xA3)
	errBroke = errors.New("mock ledger: insufficient balance")
)

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

type mockState struct {
	totals        *Totals
	positions     map[[20]byte]map[uint64]*Position
	counts        map[[20]byte]uint64
	allocations   map[[20]byte]*big.Int
	beneficiaries [][20]byte
}

func newMockState() *mockState {
	return &mockState{
		positions:   make(map[[20]byte]map[uint64]*Position),
		counts:      make(map[[20]byte]uint64),
		allocations: make(map[[20]byte]*big.Int),
	}
}

func (m *mockState) SaleTotalsGet() (*Totals, bool, error) {
	if m.totals == nil {
		return nil, false, nil
	}
	return m.totals.Clone(), true, nil
}

func (m *mockState) SaleTotalsPut(totals *Totals) error {
	m.totals = totals.Clone()
	return nil
}

func (m *mockState) SalePositionGet(beneficiary [20]byte, index uint64) (*Position, bool, error) {
	pos, ok := m.positions[beneficiary][index]
	if !ok {
		return nil, false, nil
	}
	return pos.Clone(), true, nil
}

func (m *mockState) SalePositionPut(pos *Position) error {
	if m.positions[pos.Beneficiary] == nil {
		m.positions[pos.Beneficiary] = make(map[uint64]*Position)
	}
	m.positions[pos.Beneficiary][pos.Index] = pos.Clone()
	return nil
}

func (m *mockState) SalePositionCount(beneficiary [20]byte) (uint64, error) {
	return m.counts[beneficiary], nil
}

func (m *mockState) SalePositionCountPut(beneficiary [20]byte, count uint64) error {
	m.counts[beneficiary] = count
	return nil
}

func (m *mockState) SaleBeneficiaryAdd(beneficiary [20]byte) error {
	m.beneficiaries = append(m.beneficiaries, beneficiary)
	return nil
}

func (m *mockState) SaleBeneficiaries() ([][20]byte, error) {
	return append([][20]byte(nil), m.beneficiaries...), nil
}

func (m *mockState) SaleAllocationGet(beneficiary [20]byte) (*big.Int, error) {
	return newBigInt(m.allocations[beneficiary]), nil
}

func (m *mockState) SaleAllocationPut(beneficiary [20]byte, amount *big.Int) error {
	m.allocations[beneficiary] = newBigInt(amount)
	return nil
}

type mockLedger struct {
	balances  map[[20]byte]*big.Int
	transfers int
}

func newMockLedger() *mockLedger {
	return &mockLedger{balances: make(map[[20]byte]*big.Int)}
}

func (m *mockLedger) credit(account [20]byte, amount int64) {
	m.balances[account] = new(big.Int).Add(m.balance(account), big.NewInt(amount))
}

func (m *mockLedger) balance(account [20]byte) *big.Int {
	return newBigInt(m.balances[account])
}

func (m *mockLedger) Transfer(from, to [20]byte, amount *big.Int) error {
	if m.balance(from).Cmp(amount) < 0 {
		return errBroke
	}
	m.balances[from] = new(big.Int).Sub(m.balance(from), amount)
	m.balances[to] = new(big.Int).Add(m.balance(to), amount)
	m.transfers++
	return nil
}

type recorder struct {
	events []events.Event
}

func (r *recorder) Emit(evt events.Event) { r.events = append(r.events, evt) }

func (r *recorder) ofType(kind string) []events.Event {
	var out []events.Event
	for _, evt := range r.events {
		if evt.EventType() == kind {
			out = append(out, evt)
		}
	}
	return out
}

type fixture struct {
	engine   *Engine
	state    *mockState
	token    *mockLedger
	currency *mockLedger
	events   *recorder
	now      int64
}

func tieredParams() Params {
	return Params{
		Version:          1,
		Layout:           LayoutTiered,
		CeilingMode:      CeilingShared,
		VestingStartMode: VestingStartShared,
		VestingStart:     base + 30*day,
		Cliff:            0,
		Duration:         10 * day,
		AvailableForSale: big.NewInt(1000),
		Phases: []Phase{
			{Name: "presale", StartTime: base + day, EndTime: base + 20*day, Rate: big.NewInt(10), Gated: true, MaxAllocation: big.NewInt(500)},
			{Name: "public", StartTime: base + 20*day, EndTime: base + 25*day, Rate: big.NewInt(10)},
		},
		Owner:    owner,
		Treasury: treasury,
		Custody:  custody,
	}
}

func newFixture(t *testing.T, params Params) *fixture {
	t.Helper()
	engine, err := NewEngine(params)
	require.NoError(t, err)
	f := &fixture{
		engine:   engine,
		state:    newMockState(),
		token:    newMockLedger(),
		currency: newMockLedger(),
		events:   &recorder{},
		now:      base,
	}
	engine.SetState(f.state)
	engine.SetToken(f.token)
	engine.SetCurrency(f.currency)
	engine.SetEmitter(f.events)
	engine.SetNowFunc(func() int64 { return f.now })
	require.NoError(t, engine.Init())
	f.token.credit(custody, 1_000_000)
	for b := byte(1); b <= 10; b++ {
		f.currency.credit(addr(b), 10_000)
	}
	return f
}

func TestNewEngineRejectsInvalidParams(t *testing.T) {
	params := tieredParams()
	params.Cliff = params.Duration + 1
	_, err := NewEngine(params)
	require.Error(t, err)

	params = tieredParams()
	params.Phases[PhasePublic].StartTime = params.Phases[PhasePresale].EndTime - 1
	_, err = NewEngine(params)
	require.Error(t, err)

	params = tieredParams()
	params.Phases = params.Phases[:1]
	_, err = NewEngine(params)
	require.Error(t, err)

	params = tieredParams()
	params.VestingStartMode = VestingStartPurchase
	_, err = NewEngine(params)
	require.ErrorContains(t, err, "purchase vesting start requires the single layout")
}

func TestInitIsIdempotent(t *testing.T) {
	f := newFixture(t, tieredParams())
	f.now = base + day
	_, err := f.engine.PreSale(addr(1), big.NewInt(1))
	require.NoError(t, err)
	require.NoError(t, f.engine.Init())
	sold, err := f.engine.TotalSold()
	require.NoError(t, err)
	require.Equal(t, int64(10), sold.Int64())
}

func TestPreSaleRecordsVestingPosition(t *testing.T) {
	f := newFixture(t, tieredParams())
	buyer := addr(1)
	f.now = base + day

	res, err := f.engine.PreSale(buyer, big.NewInt(20))
	require.NoError(t, err)
	require.True(t, res.Vested)
	require.Equal(t, uint64(0), res.Index)
	require.Equal(t, int64(200), res.TokenAmount.Int64())

	sold, err := f.engine.TotalSold()
	require.NoError(t, err)
	require.Equal(t, int64(200), sold.Int64())
	raised, err := f.engine.TotalRaised()
	require.NoError(t, err)
	require.Equal(t, int64(20), raised.Int64())

	info, err := f.engine.VestingInfo(buyer, 0)
	require.NoError(t, err)
	require.Equal(t, int64(200), info.Amount.Int64())
	require.Zero(t, info.TotalClaimed.Sign())
	require.Zero(t, info.PeriodClaimed)

	count, err := f.engine.VestingCount(buyer)
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)

	require.Equal(t, int64(20), f.currency.balance(treasury).Int64())
	require.Zero(t, f.token.balance(buyer).Sign())

	buys := f.events.ofType(events.TypeSaleBuy)
	require.Len(t, buys, 1)
	buy := buys[0].(events.Buy)
	require.Equal(t, buyer, buy.Beneficiary)
	require.Equal(t, int64(20), buy.CurrencyAmount.Int64())
	require.Equal(t, int64(200), buy.TokenAmount.Int64())

	pos, err := f.engine.Position(buyer, 0)
	require.NoError(t, err)
	require.Equal(t, base+30*day, pos.StartTime)
	require.Equal(t, OriginPresale, pos.Origin)
}

func TestPreSaleWindowAndInputErrors(t *testing.T) {
	f := newFixture(t, tieredParams())
	buyer := addr(1)

	f.now = base + day - 1
	_, err := f.engine.PreSale(buyer, big.NewInt(1))
	require.EqualError(t, err, "presale not started")

	f.now = base + 20*day
	_, err = f.engine.PreSale(buyer, big.NewInt(1))
	require.EqualError(t, err, "presale ended")

	f.now = base + day
	_, err = f.engine.PreSale(buyer, big.NewInt(0))
	require.EqualError(t, err, "cannot accept 0")
	_, err = f.engine.PreSale(buyer, nil)
	require.ErrorIs(t, err, ErrZeroAmount)

	_, err = f.engine.PreSale([20]byte{}, big.NewInt(1))
	require.ErrorIs(t, err, ErrZeroBeneficiary)

	_, err = f.engine.Buy(buyer, big.NewInt(1))
	require.ErrorIs(t, err, ErrEntryPointDisabled)

	sold, err := f.engine.TotalSold()
	require.NoError(t, err)
	require.Zero(t, sold.Sign())
	require.Empty(t, f.events.events)
}

func TestCeilingExhaustedBySequentialBuyers(t *testing.T) {
	params := tieredParams()
	params.Phases[PhasePresale].MaxAllocation = big.NewInt(0)
	f := newFixture(t, params)
	f.now = base + day

	for i, amount := range []int64{30, 30, 30, 10} {
		_, err := f.engine.PreSale(addr(byte(i+1)), big.NewInt(amount))
		require.NoError(t, err)
	}
	sold, err := f.engine.TotalSold()
	require.NoError(t, err)
	require.Equal(t, int64(1000), sold.Int64())

	_, err = f.engine.PreSale(addr(5), big.NewInt(1))
	require.EqualError(t, err, "sold out")

	sold, err = f.engine.TotalSold()
	require.NoError(t, err)
	require.Equal(t, int64(1000), sold.Int64())
	raised, err := f.engine.TotalRaised()
	require.NoError(t, err)
	require.Equal(t, int64(100), raised.Int64())
	count, err := f.engine.VestingCount(addr(5))
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestMaxAllocationIsCumulative(t *testing.T) {
	params := tieredParams()
	params.Phases[PhasePresale].MaxAllocation = big.NewInt(200)
	f := newFixture(t, params)
	buyer := addr(1)
	f.now = base + day

	_, err := f.engine.PreSale(buyer, big.NewInt(10))
	require.NoError(t, err)
	_, err = f.engine.PreSale(buyer, big.NewInt(10))
	require.NoError(t, err)
	_, err = f.engine.PreSale(buyer, big.NewInt(1))
	require.EqualError(t, err, "max allocation violation")

	allocated, err := f.engine.Allocation(buyer)
	require.NoError(t, err)
	require.Equal(t, int64(200), allocated.Int64())
	sold, err := f.engine.TotalSold()
	require.NoError(t, err)
	require.Equal(t, int64(200), sold.Int64())

	// Grants do not consume the presale allocation.
	_, err = f.engine.Whitelist(owner, [][20]byte{buyer}, []*big.Int{big.NewInt(500)})
	require.NoError(t, err)
	allocated, err = f.engine.Allocation(buyer)
	require.NoError(t, err)
	require.Equal(t, int64(200), allocated.Int64())

	_, err = f.engine.PreSale(addr(2), big.NewInt(20))
	require.NoError(t, err)
}

func TestSoldOutCheckedBeforeAllocation(t *testing.T) {
	params := tieredParams()
	params.AvailableForSale = big.NewInt(100)
	params.Phases[PhasePresale].MaxAllocation = big.NewInt(50)
	f := newFixture(t, params)
	f.now = base + day

	_, err := f.engine.PreSale(addr(1), big.NewInt(20))
	require.ErrorIs(t, err, ErrSoldOut)
	_, err = f.engine.PreSale(addr(1), big.NewInt(6))
	require.ErrorIs(t, err, ErrMaxAllocation)
}

func TestPublicSaleDeliversImmediately(t *testing.T) {
	f := newFixture(t, tieredParams())
	buyer := addr(3)

	f.now = base + 20*day - 1
	_, err := f.engine.PublicSale(buyer, big.NewInt(5))
	require.EqualError(t, err, "public sale not started")

	f.now = base + 20*day
	res, err := f.engine.PublicSale(buyer, big.NewInt(60))
	require.NoError(t, err)
	require.False(t, res.Vested)
	require.Equal(t, int64(600), f.token.balance(buyer).Int64())
	require.Equal(t, int64(60), f.currency.balance(treasury).Int64())
	count, err := f.engine.VestingCount(buyer)
	require.NoError(t, err)
	require.Zero(t, count)

	f.now = base + 25*day
	_, err = f.engine.PublicSale(buyer, big.NewInt(5))
	require.EqualError(t, err, "public sale ended")
}

func TestPurchaseFailsWhenBuyerCannotPay(t *testing.T) {
	f := newFixture(t, tieredParams())
	f.now = base + day
	_, err := f.engine.PreSale(addr(50), big.NewInt(1))
	require.ErrorIs(t, err, errBroke)
	require.Empty(t, f.events.ofType(events.TypeSaleBuy))
}

func TestRateConversionOverflow(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 255)
	_, err := tokensFor(huge, big.NewInt(10))
	require.ErrorIs(t, err, ErrAmountOverflow)
	_, err = tokensFor(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	require.ErrorIs(t, err, ErrAmountOverflow)
	out, err := tokensFor(big.NewInt(7), big.NewInt(3))
	require.NoError(t, err)
	require.Equal(t, int64(21), out.Int64())
}

func TestStartAndEndTimes(t *testing.T) {
	f := newFixture(t, tieredParams())
	start, err := f.engine.StartTime(PhasePresale)
	require.NoError(t, err)
	require.Equal(t, base+day, start)
	end, err := f.engine.EndTime(PhasePublic)
	require.NoError(t, err)
	require.Equal(t, base+25*day, end)
	_, err = f.engine.StartTime(2)
	require.ErrorIs(t, err, ErrUnknownPhase)
}

func TestSingleLayoutBuyVestsFromPurchase(t *testing.T) {
	params := tieredParams()
	params.Layout = LayoutSingle
	params.VestingStartMode = VestingStartPurchase
	params.Phases = []Phase{{Name: "sale", StartTime: base + day, EndTime: base + 5*day, Rate: big.NewInt(10)}}
	f := newFixture(t, params)
	buyer := addr(1)

	f.now = base
	_, err := f.engine.Buy(buyer, big.NewInt(1))
	require.EqualError(t, err, "sale not started")

	f.now = base + 2*day
	res, err := f.engine.Buy(buyer, big.NewInt(30))
	require.NoError(t, err)
	require.True(t, res.Vested)
	pos, err := f.engine.Position(buyer, 0)
	require.NoError(t, err)
	require.Equal(t, base+2*day, pos.StartTime)
	require.Equal(t, OriginBuy, pos.Origin)

	_, err = f.engine.PreSale(buyer, big.NewInt(1))
	require.ErrorIs(t, err, ErrEntryPointDisabled)
	_, err = f.engine.PublicSale(buyer, big.NewInt(1))
	require.ErrorIs(t, err, ErrEntryPointDisabled)

	f.now = base + 7*day
	amount, err := f.engine.Release(buyer, 0)
	require.NoError(t, err)
	require.Equal(t, int64(150), amount.Int64())

	f.now = base + 5*day
	_, err = f.engine.Buy(buyer, big.NewInt(1))
	require.EqualError(t, err, "sale ended")
}

func TestClassify(t *testing.T) {
	cases := map[error]Kind{
		ErrPresaleNotStarted:      KindTiming,
		ErrSaleNotFinished:        KindTiming,
		ErrSoldOut:                KindCapacity,
		ErrMaxAllocation:          KindCapacity,
		ErrNotOwner:               KindAuthorization,
		ErrZeroAmount:             KindInput,
		errors.New("disk full"):   KindInternal,
		wrap(ErrPublicEnded):      KindTiming,
		wrap(ErrPositionNotFound): KindInput,
	}
	for err, want := range cases {
		require.Equal(t, want, Classify(err), err.Error())
	}
	require.Equal(t, "capacity", KindCapacity.String())
}

type wrapped struct{ inner error }

func (w wrapped) Error() string { return "wrapped: " + w.inner.Error() }
func (w wrapped) Unwrap() error { return w.inner }

func wrap(err error) error { return wrapped{inner: err} }
