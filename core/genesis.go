package core

import (
	"fmt"

	"crybsale/config"
	salestate "crybsale/core/state"
)

// applyGenesis seeds empty state from the deployment: the supply is minted to
// the owner, custody and configured accounts are exempted from the tax, the
// custody account is funded and currency balances are credited. Genesis
// events are not published.
func (r *Runtime) applyGenesis(d *config.Deployment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.buffer.Reset()

	if err := r.seed(d); err != nil {
		r.state.Discard()
		return err
	}
	return r.state.Commit()
}

func (r *Runtime) seed(d *config.Deployment) error {
	params := r.sale.Params()
	supply, err := d.Supply()
	if err != nil {
		return err
	}
	if err := r.token.Mint(params.Owner, supply); err != nil {
		return fmt.Errorf("mint supply: %w", err)
	}

	excluded, err := d.ExcludedAccounts()
	if err != nil {
		return err
	}
	excluded = append(excluded, params.Owner, params.Custody)
	if err := r.token.ExcludeMultiple(params.Owner, excluded); err != nil {
		return fmt.Errorf("exclude accounts: %w", err)
	}

	funding, err := d.CustodyFunding()
	if err != nil {
		return err
	}
	if funding.Sign() > 0 {
		if err := r.token.Transfer(params.Owner, params.Custody, funding); err != nil {
			return fmt.Errorf("fund custody: %w", err)
		}
	}

	balances, err := d.CurrencyBalances()
	if err != nil {
		return err
	}
	for account, amount := range balances {
		if err := r.bank.Credit(account, amount); err != nil {
			return fmt.Errorf("credit currency: %w", err)
		}
	}

	if err := r.sale.Init(); err != nil {
		return fmt.Errorf("init sale: %w", err)
	}
	if err := r.state.SetStateVersion(salestate.StateVersion); err != nil {
		return err
	}
	return r.state.SetDeploymentVersion(d.Version)
}
