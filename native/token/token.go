package token

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"

	"crybsale/core/events"
)

var (
	ErrExceedsBalance     = errors.New("ERC20: transfer amount exceeds balance")
	ErrExceedsAllowance   = errors.New("ERC20: transfer amount exceeds allowance")
	ErrAllowanceBelowZero = errors.New("ERC20: decreased allowance below zero")
	ErrTransferToZero     = errors.New("ERC20: transfer to the zero address")
	ErrTransferFromZero   = errors.New("ERC20: transfer from the zero address")
	ErrApproveToZero      = errors.New("ERC20: approve to the zero address")
	ErrApproveFromZero    = errors.New("ERC20: approve from the zero address")
	ErrNotOwner           = errors.New("Ownable: caller is not the owner")
	ErrNegativeAmount     = errors.New("ERC20: negative amount")
	ErrSupplyOverflow     = errors.New("ERC20: supply exceeds 256 bits")
	errNilState           = errors.New("token: state not configured")
)

type tokenState interface {
	TokenBalanceGet(account [20]byte) (*big.Int, error)
	TokenBalancePut(account [20]byte, amount *big.Int) error
	TokenAllowanceGet(owner, spender [20]byte) (*big.Int, error)
	TokenAllowancePut(owner, spender [20]byte, amount *big.Int) error
	TokenExcludedGet(account [20]byte) (bool, error)
	TokenExcludedPut(account [20]byte, excluded bool) error
	TokenSupplyGet() (*big.Int, error)
	TokenSupplyPut(amount *big.Int) error
}

// Metadata describes the token and its tax routing.
type Metadata struct {
	Name     string
	Symbol   string
	Decimals uint8
	TaxBps   uint32
	Owner    [20]byte
	Treasury [20]byte
}

// Token is a fixed-supply ERC20 ledger that routes a transfer tax to the
// treasury unless either party is excluded.
type Token struct {
	meta    Metadata
	state   tokenState
	emitter events.Emitter
}

// New constructs a token with the supplied metadata.
func New(meta Metadata) *Token {
	if meta.TaxBps > MaxTaxBps {
		meta.TaxBps = MaxTaxBps
	}
	return &Token{meta: meta, emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the token.
func (t *Token) SetState(state tokenState) { t.state = state }

// SetEmitter configures the event emitter used by the token.
func (t *Token) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		t.emitter = events.NoopEmitter{}
		return
	}
	t.emitter = emitter
}

func (t *Token) Name() string       { return t.meta.Name }
func (t *Token) Symbol() string     { return t.meta.Symbol }
func (t *Token) Decimals() uint8    { return t.meta.Decimals }
func (t *Token) TaxBps() uint32     { return t.meta.TaxBps }
func (t *Token) Owner() [20]byte    { return t.meta.Owner }
func (t *Token) Treasury() [20]byte { return t.meta.Treasury }

// TotalSupply returns the number of tokens in existence.
func (t *Token) TotalSupply() (*big.Int, error) {
	if t.state == nil {
		return nil, errNilState
	}
	return t.state.TokenSupplyGet()
}

// BalanceOf returns the balance of account.
func (t *Token) BalanceOf(account [20]byte) (*big.Int, error) {
	if t.state == nil {
		return nil, errNilState
	}
	return t.state.TokenBalanceGet(account)
}

// Mint creates amount tokens for to. It is only used while applying genesis.
func (t *Token) Mint(to [20]byte, amount *big.Int) error {
	if t.state == nil {
		return errNilState
	}
	if isZero(to) {
		return ErrTransferToZero
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	supply, err := t.state.TokenSupplyGet()
	if err != nil {
		return err
	}
	next := new(big.Int).Add(supply, amount)
	if _, overflow := uint256.FromBig(next); overflow {
		return ErrSupplyOverflow
	}
	balance, err := t.state.TokenBalanceGet(to)
	if err != nil {
		return err
	}
	if err := t.state.TokenSupplyPut(next); err != nil {
		return err
	}
	if err := t.state.TokenBalancePut(to, new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	t.emitter.Emit(events.TokenTransfer{To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// Transfer moves amount from one account to another, deducting the tax to
// the treasury unless either side is excluded.
func (t *Token) Transfer(from, to [20]byte, amount *big.Int) error {
	if t.state == nil {
		return errNilState
	}
	if isZero(from) {
		return ErrTransferFromZero
	}
	if isZero(to) {
		return ErrTransferToZero
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	fromBalance, err := t.state.TokenBalanceGet(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrExceedsBalance
	}
	excluded, err := t.taxExempt(from, to)
	if err != nil {
		return err
	}
	result := ApplyTax(TaxInput{Gross: amount, Bps: t.meta.TaxBps, Excluded: excluded})

	if err := t.state.TokenBalancePut(from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	if err := t.credit(to, result.Net); err != nil {
		return err
	}
	if result.Tax.Sign() > 0 {
		if err := t.credit(t.meta.Treasury, result.Tax); err != nil {
			return err
		}
		t.emitter.Emit(events.TokenTransfer{From: from, To: t.meta.Treasury, Amount: result.Tax})
		t.emitter.Emit(events.TokenTax{From: from, Treasury: t.meta.Treasury, Gross: new(big.Int).Set(amount), Tax: result.Tax})
	}
	t.emitter.Emit(events.TokenTransfer{From: from, To: to, Amount: result.Net})
	return nil
}

// Allowance returns the remaining amount spender may move on behalf of owner.
func (t *Token) Allowance(owner, spender [20]byte) (*big.Int, error) {
	if t.state == nil {
		return nil, errNilState
	}
	return t.state.TokenAllowanceGet(owner, spender)
}

// Approve sets the allowance of spender over owner's tokens.
func (t *Token) Approve(owner, spender [20]byte, amount *big.Int) error {
	if t.state == nil {
		return errNilState
	}
	if isZero(owner) {
		return ErrApproveFromZero
	}
	if isZero(spender) {
		return ErrApproveToZero
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	if err := t.state.TokenAllowancePut(owner, spender, amount); err != nil {
		return err
	}
	t.emitter.Emit(events.TokenApproval{Owner: owner, Spender: spender, Amount: new(big.Int).Set(amount)})
	return nil
}

// TransferFrom moves tokens using the allowance granted to spender.
func (t *Token) TransferFrom(spender, from, to [20]byte, amount *big.Int) error {
	if t.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	allowance, err := t.state.TokenAllowanceGet(from, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return ErrExceedsAllowance
	}
	if err := t.Transfer(from, to, amount); err != nil {
		return err
	}
	return t.Approve(from, spender, new(big.Int).Sub(allowance, amount))
}

// IncreaseAllowance raises spender's allowance by delta.
func (t *Token) IncreaseAllowance(owner, spender [20]byte, delta *big.Int) error {
	current, err := t.Allowance(owner, spender)
	if err != nil {
		return err
	}
	if delta == nil || delta.Sign() < 0 {
		return ErrNegativeAmount
	}
	return t.Approve(owner, spender, new(big.Int).Add(current, delta))
}

// DecreaseAllowance lowers spender's allowance by delta.
func (t *Token) DecreaseAllowance(owner, spender [20]byte, delta *big.Int) error {
	current, err := t.Allowance(owner, spender)
	if err != nil {
		return err
	}
	if delta == nil || delta.Sign() < 0 {
		return ErrNegativeAmount
	}
	if current.Cmp(delta) < 0 {
		return ErrAllowanceBelowZero
	}
	return t.Approve(owner, spender, new(big.Int).Sub(current, delta))
}

// IsExcluded reports whether account is exempt from the transfer tax.
func (t *Token) IsExcluded(account [20]byte) (bool, error) {
	if t.state == nil {
		return false, errNilState
	}
	return t.state.TokenExcludedGet(account)
}

// Exclude exempts account from the transfer tax.
func (t *Token) Exclude(caller, account [20]byte) error {
	return t.setExcluded(caller, account, true)
}

// Include removes account from the exclusion list.
func (t *Token) Include(caller, account [20]byte) error {
	return t.setExcluded(caller, account, false)
}

// ExcludeMultiple exempts every listed account.
func (t *Token) ExcludeMultiple(caller [20]byte, accounts [][20]byte) error {
	if caller != t.meta.Owner {
		return ErrNotOwner
	}
	for _, account := range accounts {
		if err := t.setExcluded(caller, account, true); err != nil {
			return err
		}
	}
	return nil
}

func (t *Token) setExcluded(caller, account [20]byte, excluded bool) error {
	if t.state == nil {
		return errNilState
	}
	if caller != t.meta.Owner {
		return ErrNotOwner
	}
	current, err := t.state.TokenExcludedGet(account)
	if err != nil {
		return err
	}
	if current == excluded {
		return nil
	}
	if err := t.state.TokenExcludedPut(account, excluded); err != nil {
		return err
	}
	t.emitter.Emit(events.TokenExclusion{Account: account, Excluded: excluded})
	return nil
}

func (t *Token) taxExempt(from, to [20]byte) (bool, error) {
	if t.meta.TaxBps == 0 {
		return true, nil
	}
	excluded, err := t.state.TokenExcludedGet(from)
	if err != nil || excluded {
		return excluded, err
	}
	return t.state.TokenExcludedGet(to)
}

func (t *Token) credit(account [20]byte, amount *big.Int) error {
	balance, err := t.state.TokenBalanceGet(account)
	if err != nil {
		return err
	}
	return t.state.TokenBalancePut(account, new(big.Int).Add(balance, amount))
}

func isZero(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}
