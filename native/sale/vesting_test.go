package sale

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"crybsale/core/events"
)

func position(amount int64, start, cliff, duration int64) *Position {
	return &Position{
		Amount:       big.NewInt(amount),
		StartTime:    start,
		Cliff:        cliff,
		Duration:     duration,
		TotalClaimed: big.NewInt(0),
	}
}

func TestReleasableSchedule(t *testing.T) {
	pos := position(1000, 100, 0, 10)
	require.Zero(t, Releasable(pos, 99).Sign())
	require.Zero(t, Releasable(pos, 100).Sign())
	require.Equal(t, int64(100), Releasable(pos, 101).Int64())
	require.Equal(t, int64(500), Releasable(pos, 105).Int64())
	require.Equal(t, int64(1000), Releasable(pos, 110).Int64())
	require.Equal(t, int64(1000), Releasable(pos, 10_000).Int64())

	pos.TotalClaimed = big.NewInt(400)
	require.Equal(t, int64(100), Releasable(pos, 105).Int64())
	pos.TotalClaimed = big.NewInt(600)
	require.Zero(t, Releasable(pos, 105).Sign())

	require.Zero(t, Releasable(nil, 200).Sign())
}

func TestReleasableRespectsCliff(t *testing.T) {
	pos := position(1000, 100, 4, 10)
	require.Zero(t, Releasable(pos, 103).Sign())
	require.Equal(t, int64(400), Releasable(pos, 104).Int64())
	require.Equal(t, int64(500), Releasable(pos, 105).Int64())
}

func TestReleasableFloorsWithoutDust(t *testing.T) {
	pos := position(1000, 0, 0, 7)
	total := big.NewInt(0)
	for now := int64(1); now <= 7; now++ {
		amount := Releasable(pos, now)
		require.True(t, amount.Sign() > 0)
		total.Add(total, amount)
		pos.TotalClaimed = new(big.Int).Add(pos.TotalClaimed, amount)
	}
	require.Equal(t, int64(1000), total.Int64())

	irregular := position(997, 0, 0, 13)
	total = big.NewInt(0)
	for _, now := range []int64{2, 3, 7, 8, 12, 40} {
		amount := Releasable(irregular, now)
		total.Add(total, amount)
		irregular.TotalClaimed = new(big.Int).Add(irregular.TotalClaimed, amount)
		vested := new(big.Int).Mul(big.NewInt(997), big.NewInt(min(now, 13)))
		vested.Quo(vested, big.NewInt(13))
		require.Equal(t, vested.Int64(), total.Int64())
	}
	require.Equal(t, int64(997), total.Int64())
}

func TestReleaseLinearDailyAndIdempotent(t *testing.T) {
	f := newFixture(t, tieredParams())
	buyer := addr(1)
	f.now = base + day
	_, err := f.engine.PreSale(buyer, big.NewInt(30))
	require.NoError(t, err)

	vestingStart := base + 30*day
	for i := int64(1); i <= 10; i++ {
		f.now = vestingStart + i*day
		amount, err := f.engine.Release(buyer, 0)
		require.NoError(t, err)
		require.Equal(t, int64(30), amount.Int64())

		again, err := f.engine.Release(buyer, 0)
		require.NoError(t, err)
		require.Zero(t, again.Sign())

		info, err := f.engine.VestingInfo(buyer, 0)
		require.NoError(t, err)
		require.Equal(t, i*day, info.PeriodClaimed)
	}
	require.Equal(t, int64(300), f.token.balance(buyer).Int64())
	require.Len(t, f.events.ofType(events.TypeSaleClaimed), 10)

	info, err := f.engine.VestingInfo(buyer, 0)
	require.NoError(t, err)
	require.Equal(t, int64(300), info.TotalClaimed.Int64())

	f.now += 30 * day
	amount, err := f.engine.Release(buyer, 0)
	require.NoError(t, err)
	require.Zero(t, amount.Sign())
}

func TestReleaseBeforeVestingStartIsNoop(t *testing.T) {
	f := newFixture(t, tieredParams())
	buyer := addr(1)
	f.now = base + day
	_, err := f.engine.PreSale(buyer, big.NewInt(30))
	require.NoError(t, err)

	f.now = base + 30*day
	amount, err := f.engine.Release(buyer, 0)
	require.NoError(t, err)
	require.Zero(t, amount.Sign())
	require.Empty(t, f.events.ofType(events.TypeSaleClaimed))
	require.Zero(t, f.token.transfers)
}

func TestReleaseUnknownPosition(t *testing.T) {
	f := newFixture(t, tieredParams())
	_, err := f.engine.Release(addr(1), 0)
	require.ErrorIs(t, err, ErrPositionNotFound)
	_, err = f.engine.VestingInfo(addr(1), 3)
	require.ErrorIs(t, err, ErrPositionNotFound)
}

func TestReleaseAllWithoutPositions(t *testing.T) {
	f := newFixture(t, tieredParams())
	amount, err := f.engine.ReleaseAll(addr(9))
	require.NoError(t, err)
	require.Zero(t, amount.Sign())
	require.Empty(t, f.events.events)
}

func TestReleaseAllAggregatesPositions(t *testing.T) {
	f := newFixture(t, tieredParams())
	buyer := addr(1)
	f.now = base + day
	_, err := f.engine.PreSale(buyer, big.NewInt(30))
	require.NoError(t, err)
	f.now = base + 6*day
	_, err = f.engine.PreSale(buyer, big.NewInt(20))
	require.NoError(t, err)

	vestingStart := base + 30*day
	for i := int64(1); i <= 10; i++ {
		f.now = vestingStart + i*day
		transfersBefore := f.token.transfers
		amount, err := f.engine.ReleaseAll(buyer)
		require.NoError(t, err)
		require.Equal(t, int64(50), amount.Int64())
		require.Equal(t, transfersBefore+1, f.token.transfers)
	}
	require.Equal(t, int64(500), f.token.balance(buyer).Int64())

	claims := f.events.ofType(events.TypeSaleClaimed)
	require.Len(t, claims, 10)
	last := claims[9].(events.Claimed)
	require.Equal(t, 2, last.Positions)
	require.Equal(t, int64(50), last.Amount.Int64())
}

func TestWhitelistGrantsReleaseLinearly(t *testing.T) {
	f := newFixture(t, tieredParams())
	a, b := addr(1), addr(2)

	indexes, err := f.engine.Whitelist(owner, [][20]byte{a, b}, []*big.Int{big.NewInt(300), big.NewInt(500)})
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 0}, indexes)
	require.Len(t, f.events.ofType(events.TypeSaleWhitelisted), 2)

	sold, err := f.engine.TotalSold()
	require.NoError(t, err)
	require.Zero(t, sold.Sign())

	vestingStart := base + 30*day
	for i := int64(1); i <= 10; i++ {
		f.now = vestingStart + i*day
		got, err := f.engine.ReleaseAll(a)
		require.NoError(t, err)
		require.Equal(t, int64(30), got.Int64())
		got, err = f.engine.ReleaseAll(b)
		require.NoError(t, err)
		require.Equal(t, int64(50), got.Int64())
	}
	require.Equal(t, int64(300), f.token.balance(a).Int64())
	require.Equal(t, int64(500), f.token.balance(b).Int64())

	beneficiaries, err := f.engine.Beneficiaries()
	require.NoError(t, err)
	require.Equal(t, [][20]byte{a, b}, beneficiaries)
}

func TestWhitelistedAccountCanStillBuy(t *testing.T) {
	f := newFixture(t, tieredParams())
	a := addr(1)
	_, err := f.engine.Whitelist(owner, [][20]byte{a}, []*big.Int{big.NewInt(300)})
	require.NoError(t, err)

	f.now = base + 6*day
	res, err := f.engine.PreSale(a, big.NewInt(51))
	require.ErrorIs(t, err, ErrMaxAllocation)
	require.Nil(t, res)

	res, err = f.engine.PreSale(a, big.NewInt(40))
	require.NoError(t, err)
	require.Equal(t, uint64(1), res.Index)

	f.now = base + 45*day
	got, err := f.engine.ReleaseAll(a)
	require.NoError(t, err)
	require.Equal(t, int64(700), got.Int64())

	positions, err := f.engine.Positions(a)
	require.NoError(t, err)
	require.Len(t, positions, 2)
	require.Equal(t, OriginWhitelist, positions[0].Origin)
	require.Equal(t, OriginPresale, positions[1].Origin)
}
