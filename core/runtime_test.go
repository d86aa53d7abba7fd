package core

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"crybsale/config"
	"crybsale/core/events"
	salestate "crybsale/core/state"
	"crybsale/crypto"
	"crybsale/native/bank"
	"crybsale/native/sale"
	"crybsale/storage"
)

const day = int64(86_400)

var (
	base     = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	owner    = addr(0x01)
	treasury = addr(0x02)
	custody  = addr(0x03)
	buyer    = addr(0x09)
	outsider = addr(0x0A)
)

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func bech(a [20]byte) string { return crypto.FromArray(a).String() }

func at(days int64) time.Time { return base.Add(time.Duration(days*day) * time.Second) }

func testDeployment() *config.Deployment {
	return &config.Deployment{
		Version:          1,
		Owner:            bech(owner),
		Treasury:         bech(treasury),
		Custody:          bech(custody),
		Layout:           string(sale.LayoutTiered),
		CeilingMode:      string(sale.CeilingShared),
		VestingStartMode: string(sale.VestingStartShared),
		VestingStart:     at(30),
		DurationSeconds:  10 * day,
		AvailableForSale: "1000",
		Phases: []config.Phase{
			{Name: "presale", Start: at(1), End: at(20), Rate: "10", MaxAllocation: "500", Gated: true},
			{Name: "public", Start: at(20), End: at(25), Rate: "8"},
		},
		Token: config.Token{Name: "Cryb Token", Symbol: "CRYB", Decimals: 18, Supply: "1000000", TaxBps: 500},
		Genesis: config.Genesis{
			CustodyFunding: "1000",
			Currency:       []config.Balance{{Account: bech(buyer), Amount: "300"}},
		},
	}
}

type clock struct{ now int64 }

func (c *clock) set(days int64) { c.now = at(days).Unix() }
func (c *clock) fn() int64      { return c.now }

func newTestRuntime(t *testing.T) (*Runtime, *clock, storage.Database) {
	t.Helper()
	db := storage.NewMemDB()
	c := &clock{}
	c.set(5)
	rt, err := NewRuntime(db, testDeployment(), WithNowFunc(c.fn))
	require.NoError(t, err)
	return rt, c, db
}

func TestGenesisSeedsBalances(t *testing.T) {
	rt, _, _ := newTestRuntime(t)

	supply, err := rt.TokenSupply()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1_000_000), supply)

	ownerBal, err := rt.TokenBalance(owner)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(999_000), ownerBal)

	custodyBal, err := rt.TokenBalance(custody)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1000), custodyBal)

	excluded, err := rt.TokenExcluded(custody)
	require.NoError(t, err)
	require.True(t, excluded)

	cash, err := rt.CurrencyBalance(buyer)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(300), cash)

	status, err := rt.Status()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1000), status.AvailableForSale)
	require.Equal(t, 0, status.ActivePhase)
	require.Equal(t, "open", status.Phases[0].Window)
	require.Equal(t, "not_started", status.Phases[1].Window)

	// Genesis events are not published.
	require.Zero(t, rt.Events().Sequence())
}

func TestPurchaseCommitsAndPublishes(t *testing.T) {
	rt, _, _ := newTestRuntime(t)
	updates, cancel, backlog, err := rt.Events().Subscribe(context.Background(), "")
	require.NoError(t, err)
	defer cancel()
	require.Empty(t, backlog)

	result, err := rt.PreSale(context.Background(), buyer, big.NewInt(20))
	require.NoError(t, err)
	require.True(t, result.Vested)
	require.Equal(t, big.NewInt(200), result.TokenAmount)

	var types []string
	for len(types) < 3 {
		select {
		case update := <-updates:
			types = append(types, update.Event.Type)
		default:
			t.Fatalf("expected committed events, got %v", types)
		}
	}
	require.Equal(t, []string{events.TypeCurrencyTransfer, events.TypeVestingOpened, events.TypeSaleBuy}, types)

	cash, err := rt.CurrencyBalance(treasury)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(20), cash)

	positions, err := rt.Positions(buyer)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.Equal(t, at(30).Unix(), positions[0].StartTime)
	require.Equal(t, int64(0), positions[0].Releasable.Int64())
}

func TestFailedCallRollsBack(t *testing.T) {
	rt, _, _ := newTestRuntime(t)
	_, err := rt.PreSale(context.Background(), buyer, big.NewInt(20))
	require.NoError(t, err)
	seq := rt.Events().Sequence()

	_, err = rt.PreSale(context.Background(), buyer, big.NewInt(40))
	require.ErrorIs(t, err, sale.ErrMaxAllocation)
	require.Equal(t, sale.KindCapacity, ErrorKind(err))

	// Totals are written before the currency transfer fails.
	_, err = rt.PreSale(context.Background(), outsider, big.NewInt(1))
	require.ErrorIs(t, err, bank.ErrInsufficientBalance)
	require.Equal(t, sale.KindCapacity, ErrorKind(err))

	status, err := rt.Status()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(200), status.TotalSold)
	require.Equal(t, big.NewInt(20), status.TotalRaised)

	count, err := rt.VestingCount(outsider)
	require.NoError(t, err)
	require.Zero(t, count)

	cash, err := rt.CurrencyBalance(buyer)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(280), cash)
	require.Equal(t, seq, rt.Events().Sequence())
}

func TestReleaseAndTaxedTransfer(t *testing.T) {
	rt, c, _ := newTestRuntime(t)
	_, err := rt.PreSale(context.Background(), buyer, big.NewInt(20))
	require.NoError(t, err)

	c.set(35)
	released, err := rt.Release(context.Background(), buyer, 0)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(100), released)

	bal, err := rt.TokenBalance(buyer)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(100), bal)

	require.NoError(t, rt.TokenTransfer(context.Background(), buyer, outsider, big.NewInt(100)))
	received, err := rt.TokenBalance(outsider)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(95), received)
	tax, err := rt.TokenBalance(treasury)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(5), tax)
}

func TestCreditCurrencyRequiresOwner(t *testing.T) {
	rt, _, _ := newTestRuntime(t)
	err := rt.CreditCurrency(context.Background(), outsider, outsider, big.NewInt(5))
	require.ErrorIs(t, err, sale.ErrNotOwner)
	require.Equal(t, sale.KindAuthorization, ErrorKind(err))

	require.NoError(t, rt.CreditCurrency(context.Background(), owner, outsider, big.NewInt(5)))
	cash, err := rt.CurrencyBalance(outsider)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(5), cash)
}

func TestCancelledContextSkipsCall(t *testing.T) {
	rt, _, _ := newTestRuntime(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := rt.PreSale(ctx, buyer, big.NewInt(20))
	require.ErrorIs(t, err, context.Canceled)

	status, err := rt.Status()
	require.NoError(t, err)
	require.Zero(t, status.TotalSold.Sign())
}

func TestReopenKeepsStateAndChecksVersion(t *testing.T) {
	rt, c, db := newTestRuntime(t)
	_, err := rt.PreSale(context.Background(), buyer, big.NewInt(20))
	require.NoError(t, err)

	reopened, err := NewRuntime(db, testDeployment(), WithNowFunc(c.fn))
	require.NoError(t, err)
	status, err := reopened.Status()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(200), status.TotalSold)

	bumped := testDeployment()
	bumped.Version = 2
	_, err = NewRuntime(db, bumped, WithNowFunc(c.fn))
	require.ErrorIs(t, err, salestate.ErrDeploymentMismatch)
}

func TestAllPositionsOrdered(t *testing.T) {
	rt, _, _ := newTestRuntime(t)
	_, err := rt.Whitelist(context.Background(), owner,
		[][20]byte{outsider, buyer, buyer},
		[]*big.Int{big.NewInt(30), big.NewInt(10), big.NewInt(20)})
	require.NoError(t, err)

	all, err := rt.AllPositions()
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, buyer, all[0].Beneficiary)
	require.Equal(t, uint64(1), all[1].Index)
	require.Equal(t, outsider, all[2].Beneficiary)
}

func TestSubscribeResumesFromCursor(t *testing.T) {
	rt, _, _ := newTestRuntime(t)
	_, err := rt.PreSale(context.Background(), buyer, big.NewInt(20))
	require.NoError(t, err)

	_, cancel, backlog, err := rt.Events().Subscribe(context.Background(), "1")
	require.NoError(t, err)
	defer cancel()
	require.Len(t, backlog, 2)
	require.Equal(t, "2", backlog[0].Cursor)

	_, _, _, err = rt.Events().Subscribe(context.Background(), "abc")
	require.Error(t, err)
}
