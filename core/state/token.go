package state

import "math/big"

// TokenBalanceGet returns the token balance of account.
func (m *Manager) TokenBalanceGet(account [20]byte) (*big.Int, error) {
	return m.loadAmount(tokenBalanceKey(account))
}

// TokenBalancePut stores the token balance of account.
func (m *Manager) TokenBalancePut(account [20]byte, amount *big.Int) error {
	return m.put(tokenBalanceKey(account), nonNil(amount))
}

// TokenAllowanceGet returns how much spender may move for owner.
func (m *Manager) TokenAllowanceGet(owner, spender [20]byte) (*big.Int, error) {
	return m.loadAmount(tokenAllowanceKey(owner, spender))
}

// TokenAllowancePut stores the allowance of spender over owner's tokens.
func (m *Manager) TokenAllowancePut(owner, spender [20]byte, amount *big.Int) error {
	return m.put(tokenAllowanceKey(owner, spender), nonNil(amount))
}

// TokenExcludedGet reports whether account is exempt from the transfer tax.
func (m *Manager) TokenExcludedGet(account [20]byte) (bool, error) {
	var excluded bool
	if _, err := m.load(tokenExcludedKey(account), &excluded); err != nil {
		return false, err
	}
	return excluded, nil
}

// TokenExcludedPut records the tax exemption of account.
func (m *Manager) TokenExcludedPut(account [20]byte, excluded bool) error {
	if !excluded {
		m.remove(tokenExcludedKey(account))
		return nil
	}
	return m.put(tokenExcludedKey(account), true)
}

// TokenSupplyGet returns the total token supply.
func (m *Manager) TokenSupplyGet() (*big.Int, error) {
	return m.loadAmount(tokenSupplyKey)
}

// TokenSupplyPut stores the total token supply.
func (m *Manager) TokenSupplyPut(amount *big.Int) error {
	return m.put(tokenSupplyKey, nonNil(amount))
}

// CurrencyBalanceGet returns the payment currency balance of account.
func (m *Manager) CurrencyBalanceGet(account [20]byte) (*big.Int, error) {
	return m.loadAmount(bankBalanceKey(account))
}

// CurrencyBalancePut stores the payment currency balance of account.
func (m *Manager) CurrencyBalancePut(account [20]byte, amount *big.Int) error {
	return m.put(bankBalanceKey(account), nonNil(amount))
}
