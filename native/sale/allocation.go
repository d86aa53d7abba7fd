package sale

import "math/big"

// checkAllocation enforces the cumulative presale cap of a beneficiary.
func checkAllocation(cumulative, tokenAmount, maxAllocation *big.Int) error {
	if maxAllocation == nil || maxAllocation.Sign() == 0 {
		return nil
	}
	next := new(big.Int).Add(newBigInt(cumulative), tokenAmount)
	if next.Cmp(maxAllocation) > 0 {
		return ErrMaxAllocation
	}
	return nil
}

// Allocation returns the cumulative presale tokens booked for a beneficiary.
func (e *Engine) Allocation(beneficiary [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	amount, err := e.state.SaleAllocationGet(beneficiary)
	if err != nil {
		return nil, err
	}
	return newBigInt(amount), nil
}
