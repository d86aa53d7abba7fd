package token

import "math/big"

// MaxTaxBps is the largest tax a deployment may configure.
const MaxTaxBps = 10_000

// TaxInput captures the context required to evaluate the tax owed on a
// transfer.
type TaxInput struct {
	Gross    *big.Int
	Bps      uint32
	Excluded bool
}

// TaxResult summarises the computed tax and the amount reaching the recipient.
type TaxResult struct {
	Tax *big.Int
	Net *big.Int
}

// ApplyTax evaluates the transfer tax. Excluded transfers and zero rates pass
// the gross amount through untouched.
func ApplyTax(input TaxInput) TaxResult {
	result := TaxResult{Tax: big.NewInt(0)}
	if input.Gross != nil {
		result.Net = new(big.Int).Set(input.Gross)
	} else {
		result.Net = big.NewInt(0)
	}
	if result.Net.Sign() <= 0 || input.Excluded || input.Bps == 0 {
		return result
	}
	tax := new(big.Int).Mul(result.Net, big.NewInt(int64(input.Bps)))
	tax = tax.Div(tax, big.NewInt(10_000))
	if tax.Sign() <= 0 {
		return result
	}
	if tax.Cmp(result.Net) >= 0 {
		result.Tax = new(big.Int).Set(result.Net)
		result.Net = big.NewInt(0)
		return result
	}
	result.Tax = tax
	result.Net = new(big.Int).Sub(result.Net, tax)
	return result
}
