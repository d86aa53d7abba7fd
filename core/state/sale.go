package state

import (
	"math/big"

	"crybsale/native/sale"
)

type storedTotals struct {
	TotalRaised   *big.Int
	TotalSold     *big.Int
	Withdrawn     *big.Int
	Ceiling       *big.Int
	PhaseCeilings []*big.Int
	PhaseSold     []*big.Int
	PhaseRaised   []*big.Int
}

type storedPosition struct {
	Beneficiary   [20]byte
	Index         uint64
	Amount        *big.Int
	StartTime     uint64
	Cliff         uint64
	Duration      uint64
	TotalClaimed  *big.Int
	PeriodClaimed uint64
	Origin        string
	CreatedAt     uint64
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

func nonNilAll(values []*big.Int) []*big.Int {
	out := make([]*big.Int, len(values))
	for i, v := range values {
		out[i] = nonNil(v)
	}
	return out
}

func toUnsigned(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}

// SaleTotalsGet loads the sale accounting record.
func (m *Manager) SaleTotalsGet() (*sale.Totals, bool, error) {
	var stored storedTotals
	ok, err := m.load(saleTotalsKey, &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &sale.Totals{
		TotalRaised:   stored.TotalRaised,
		TotalSold:     stored.TotalSold,
		Withdrawn:     stored.Withdrawn,
		Ceiling:       stored.Ceiling,
		PhaseCeilings: stored.PhaseCeilings,
		PhaseSold:     stored.PhaseSold,
		PhaseRaised:   stored.PhaseRaised,
	}, true, nil
}

// SaleTotalsPut stores the sale accounting record.
func (m *Manager) SaleTotalsPut(totals *sale.Totals) error {
	return m.put(saleTotalsKey, storedTotals{
		TotalRaised:   nonNil(totals.TotalRaised),
		TotalSold:     nonNil(totals.TotalSold),
		Withdrawn:     nonNil(totals.Withdrawn),
		Ceiling:       nonNil(totals.Ceiling),
		PhaseCeilings: nonNilAll(totals.PhaseCeilings),
		PhaseSold:     nonNilAll(totals.PhaseSold),
		PhaseRaised:   nonNilAll(totals.PhaseRaised),
	})
}

// SalePositionGet loads one vesting position.
func (m *Manager) SalePositionGet(beneficiary [20]byte, index uint64) (*sale.Position, bool, error) {
	var stored storedPosition
	ok, err := m.load(salePositionKey(beneficiary, index), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &sale.Position{
		Beneficiary:   stored.Beneficiary,
		Index:         stored.Index,
		Amount:        stored.Amount,
		StartTime:     int64(stored.StartTime),
		Cliff:         int64(stored.Cliff),
		Duration:      int64(stored.Duration),
		TotalClaimed:  stored.TotalClaimed,
		PeriodClaimed: int64(stored.PeriodClaimed),
		Origin:        sale.Origin(stored.Origin),
		CreatedAt:     int64(stored.CreatedAt),
	}, true, nil
}

// SalePositionPut stores one vesting position.
func (m *Manager) SalePositionPut(pos *sale.Position) error {
	return m.put(salePositionKey(pos.Beneficiary, pos.Index), storedPosition{
		Beneficiary:   pos.Beneficiary,
		Index:         pos.Index,
		Amount:        nonNil(pos.Amount),
		StartTime:     toUnsigned(pos.StartTime),
		Cliff:         toUnsigned(pos.Cliff),
		Duration:      toUnsigned(pos.Duration),
		TotalClaimed:  nonNil(pos.TotalClaimed),
		PeriodClaimed: toUnsigned(pos.PeriodClaimed),
		Origin:        string(pos.Origin),
		CreatedAt:     toUnsigned(pos.CreatedAt),
	})
}

// SalePositionCount returns the number of positions held by beneficiary.
func (m *Manager) SalePositionCount(beneficiary [20]byte) (uint64, error) {
	var count uint64
	if _, err := m.load(saleCountKey(beneficiary), &count); err != nil {
		return 0, err
	}
	return count, nil
}

// SalePositionCountPut records the position count of beneficiary.
func (m *Manager) SalePositionCountPut(beneficiary [20]byte, count uint64) error {
	return m.put(saleCountKey(beneficiary), count)
}

// SaleBeneficiaryAdd appends beneficiary to the index of position holders.
func (m *Manager) SaleBeneficiaryAdd(beneficiary [20]byte) error {
	list, err := m.SaleBeneficiaries()
	if err != nil {
		return err
	}
	for _, existing := range list {
		if existing == beneficiary {
			return nil
		}
	}
	return m.put(saleBeneficiariesKey, append(list, beneficiary))
}

// SaleBeneficiaries lists position holders in first-grant order.
func (m *Manager) SaleBeneficiaries() ([][20]byte, error) {
	var list [][20]byte
	if _, err := m.load(saleBeneficiariesKey, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// SaleAllocationGet returns the cumulative presale tokens of beneficiary.
func (m *Manager) SaleAllocationGet(beneficiary [20]byte) (*big.Int, error) {
	return m.loadAmount(saleAllocationKey(beneficiary))
}

// SaleAllocationPut stores the cumulative presale tokens of beneficiary.
func (m *Manager) SaleAllocationPut(beneficiary [20]byte, amount *big.Int) error {
	return m.put(saleAllocationKey(beneficiary), nonNil(amount))
}

func (m *Manager) loadAmount(key []byte) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.load(key, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}
