package config

import (
	"fmt"

	"crybsale/native/token"
)

// Validate checks the deployment for structural problems. Sale-specific
// rules are delegated to the engine parameter validation.
func Validate(d *Deployment) error {
	if d == nil {
		return fmt.Errorf("deployment: missing")
	}
	if d.Token.TaxBps > token.MaxTaxBps {
		return fmt.Errorf("token: tax_bps %d exceeds %d", d.Token.TaxBps, token.MaxTaxBps)
	}
	if d.Token.Symbol == "" {
		return fmt.Errorf("token: symbol required")
	}
	supply, err := d.Supply()
	if err != nil {
		return err
	}
	funding, err := d.CustodyFunding()
	if err != nil {
		return err
	}
	if funding.Cmp(supply) > 0 {
		return fmt.Errorf("genesis: custody funding exceeds supply")
	}
	if _, err := d.ExcludedAccounts(); err != nil {
		return err
	}
	if _, err := d.CurrencyBalances(); err != nil {
		return err
	}
	if d.VestingStartMode == "shared" && d.VestingStart.IsZero() {
		return fmt.Errorf("deployment: VestingStart required for shared vesting start")
	}
	params, err := d.SaleParams()
	if err != nil {
		return err
	}
	if params.Owner == ([20]byte{}) {
		return fmt.Errorf("deployment: owner must not be the zero address")
	}
	if err := params.Validate(); err != nil {
		return fmt.Errorf("deployment: %w", err)
	}
	return nil
}
