package sale

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"crybsale/core/events"
)

func TestWithdrawRemainingSharedPool(t *testing.T) {
	params := tieredParams()
	params.AvailableForSale = big.NewInt(500)
	f := newFixture(t, params)

	f.now = base + day
	_, err := f.engine.PreSale(addr(1), big.NewInt(10))
	require.NoError(t, err)
	_, err = f.engine.PreSale(addr(2), big.NewInt(20))
	require.NoError(t, err)

	f.now = base + 21*day
	require.NoError(t, f.engine.SetAvailableForSale(owner, big.NewInt(1000)))
	_, err = f.engine.PublicSale(addr(3), big.NewInt(30))
	require.NoError(t, err)

	_, err = f.engine.WithdrawRemaining(owner)
	require.EqualError(t, err, "sale not finished yet")

	f.now = base + 25*day
	_, err = f.engine.WithdrawRemaining(outsider)
	require.EqualError(t, err, "Ownable: caller is not the owner")

	custodyBefore := f.token.balance(custody)
	amount, err := f.engine.WithdrawRemaining(owner)
	require.NoError(t, err)
	require.Equal(t, int64(400), amount.Int64())
	require.Equal(t, int64(400), f.token.balance(treasury).Int64())
	require.Equal(t, new(big.Int).Sub(custodyBefore, big.NewInt(400)), f.token.balance(custody))

	again, err := f.engine.WithdrawRemaining(owner)
	require.NoError(t, err)
	require.Zero(t, again.Sign())
	require.Equal(t, int64(400), f.token.balance(treasury).Int64())

	sold, err := f.engine.TotalSold()
	require.NoError(t, err)
	require.Equal(t, int64(600), sold.Int64())
	remaining, err := f.engine.Remaining()
	require.NoError(t, err)
	require.Zero(t, remaining.Sign())

	updates := f.events.ofType(events.TypeCeilingUpdated)
	require.Len(t, updates, 1)
	update := updates[0].(events.CeilingUpdated)
	require.Equal(t, "pool", update.Phase)
	require.Equal(t, int64(500), update.Previous.Int64())
	require.Len(t, f.events.ofType(events.TypeRemainingWithdrawn), 1)
}

func TestPerPhaseCeilings(t *testing.T) {
	params := tieredParams()
	params.CeilingMode = CeilingPerPhase
	params.Phases[PhasePresale].AvailableForSale = big.NewInt(300)
	params.Phases[PhasePresale].MaxAllocation = big.NewInt(0)
	params.Phases[PhasePublic].AvailableForSale = big.NewInt(500)
	f := newFixture(t, params)

	f.now = base + day
	_, err := f.engine.PreSale(addr(1), big.NewInt(30))
	require.NoError(t, err)
	_, err = f.engine.PreSale(addr(2), big.NewInt(1))
	require.ErrorIs(t, err, ErrSoldOut)

	ceiling, err := f.engine.AvailableForSale(PhasePresale)
	require.NoError(t, err)
	require.Equal(t, int64(300), ceiling.Int64())

	f.now = base + 20*day
	_, err = f.engine.PublicSale(addr(2), big.NewInt(20))
	require.NoError(t, err)

	require.NoError(t, f.engine.SetAvailableForSale(owner, big.NewInt(600)))
	ceiling, err = f.engine.AvailableForSale(PhasePublic)
	require.NoError(t, err)
	require.Equal(t, int64(600), ceiling.Int64())
	ceiling, err = f.engine.AvailableForSale(PhasePresale)
	require.NoError(t, err)
	require.Equal(t, int64(300), ceiling.Int64())

	totals, err := f.engine.Totals()
	require.NoError(t, err)
	require.Equal(t, int64(500), totals.TotalSold.Int64())
	require.Equal(t, int64(300), totals.PhaseSold[PhasePresale].Int64())
	require.Equal(t, int64(200), totals.PhaseSold[PhasePublic].Int64())

	f.now = base + 26*day
	amount, err := f.engine.WithdrawRemaining(owner)
	require.NoError(t, err)
	require.Equal(t, int64(400), amount.Int64())
}

func TestSetAvailableForSaleGuards(t *testing.T) {
	f := newFixture(t, tieredParams())
	require.ErrorIs(t, f.engine.SetAvailableForSale(outsider, big.NewInt(10)), ErrNotOwner)

	f.now = base + day
	_, err := f.engine.PreSale(addr(1), big.NewInt(30))
	require.NoError(t, err)
	require.ErrorIs(t, f.engine.SetAvailableForSale(owner, big.NewInt(299)), ErrCeilingBelowSold)
	require.ErrorIs(t, f.engine.SetAvailableForSale(owner, nil), ErrCeilingBelowSold)
	require.NoError(t, f.engine.SetAvailableForSale(owner, big.NewInt(300)))

	_, err = f.engine.PreSale(addr(2), big.NewInt(1))
	require.ErrorIs(t, err, ErrSoldOut)
}

func TestActivePhase(t *testing.T) {
	f := newFixture(t, tieredParams())
	f.now = base
	require.Equal(t, PhasePresale, f.engine.ActivePhase())
	f.now = base + 2*day
	require.Equal(t, PhasePresale, f.engine.ActivePhase())
	f.now = base + 20*day
	require.Equal(t, PhasePublic, f.engine.ActivePhase())
	f.now = base + 90*day
	require.Equal(t, PhasePublic, f.engine.ActivePhase())
}

func TestWhitelistValidation(t *testing.T) {
	f := newFixture(t, tieredParams())
	a, b := addr(1), addr(2)

	_, err := f.engine.Whitelist(outsider, [][20]byte{a}, []*big.Int{big.NewInt(1)})
	require.EqualError(t, err, "Ownable: caller is not the owner")

	_, err = f.engine.Whitelist(owner, [][20]byte{a, b}, []*big.Int{big.NewInt(1)})
	require.ErrorIs(t, err, ErrLengthMismatch)

	_, err = f.engine.Whitelist(owner, [][20]byte{a, b}, []*big.Int{big.NewInt(1), big.NewInt(0)})
	require.ErrorIs(t, err, ErrZeroAmount)

	count, err := f.engine.VestingCount(a)
	require.NoError(t, err)
	require.Zero(t, count)
	require.Empty(t, f.events.events)

	indexes, err := f.engine.Whitelist(owner, [][20]byte{a, a}, []*big.Int{big.NewInt(5), big.NewInt(7)})
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 1}, indexes)
	pos, err := f.engine.Position(a, 1)
	require.NoError(t, err)
	require.Equal(t, int64(7), pos.Amount.Int64())
	require.Equal(t, base+30*day, pos.StartTime)
}
