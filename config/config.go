package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"crybsale/crypto"
	"crybsale/native/sale"
	"crybsale/native/token"
)

// Deployment is the versioned description of one token sale. It is read once
// when the daemon starts and applied to empty state as genesis.
type Deployment struct {
	Version          uint64    `toml:"Version"`
	Owner            string    `toml:"Owner"`
	Treasury         string    `toml:"Treasury"`
	Custody          string    `toml:"Custody"`
	Layout           string    `toml:"Layout"`
	CeilingMode      string    `toml:"CeilingMode"`
	VestingStartMode string    `toml:"VestingStartMode"`
	VestingStart     time.Time `toml:"VestingStart"`
	CliffSeconds     int64     `toml:"CliffSeconds"`
	DurationSeconds  int64     `toml:"VestingDurationSeconds"`
	AvailableForSale string    `toml:"AvailableForSale"`
	Phases           []Phase   `toml:"Phases"`
	Token            Token     `toml:"Token"`
	Genesis          Genesis   `toml:"Genesis"`
}

// Phase is one sale window.
type Phase struct {
	Name             string    `toml:"Name"`
	Start            time.Time `toml:"Start"`
	End              time.Time `toml:"End"`
	Rate             string    `toml:"Rate"`
	AvailableForSale string    `toml:"AvailableForSale"`
	MaxAllocation    string    `toml:"MaxAllocation"`
	Gated            bool      `toml:"Gated"`
}

// Token configures the fee-bearing token.
type Token struct {
	Name     string   `toml:"Name"`
	Symbol   string   `toml:"Symbol"`
	Decimals uint8    `toml:"Decimals"`
	Supply   string   `toml:"Supply"`
	TaxBps   uint32   `toml:"TaxBps"`
	Excluded []string `toml:"Excluded"`
}

// Genesis seeds balances when state is empty.
type Genesis struct {
	// CustodyFunding is moved from the owner to the custody account so the
	// sale can deliver tokens.
	CustodyFunding string    `toml:"CustodyFunding"`
	Currency       []Balance `toml:"Currency"`
}

// Balance credits an account with payment currency.
type Balance struct {
	Account string `toml:"Account"`
	Amount  string `toml:"Amount"`
}

// Load reads, defaults and validates the deployment file at path.
func Load(path string) (*Deployment, error) {
	cfg := &Deployment{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (d *Deployment) applyDefaults() {
	if strings.TrimSpace(d.Layout) == "" {
		d.Layout = string(sale.LayoutTiered)
	}
	if strings.TrimSpace(d.CeilingMode) == "" {
		d.CeilingMode = string(sale.CeilingShared)
	}
	if strings.TrimSpace(d.VestingStartMode) == "" {
		if d.Layout == string(sale.LayoutSingle) {
			d.VestingStartMode = string(sale.VestingStartPurchase)
		} else {
			d.VestingStartMode = string(sale.VestingStartShared)
		}
	}
	if d.Token.Decimals == 0 {
		d.Token.Decimals = 18
	}
	if d.Version == 0 {
		d.Version = 1
	}
}

// SaleParams converts the deployment into engine parameters.
func (d *Deployment) SaleParams() (sale.Params, error) {
	owner, err := parseAccount("Owner", d.Owner)
	if err != nil {
		return sale.Params{}, err
	}
	treasury, err := parseAccount("Treasury", d.Treasury)
	if err != nil {
		return sale.Params{}, err
	}
	custody, err := parseAccount("Custody", d.Custody)
	if err != nil {
		return sale.Params{}, err
	}
	pool, err := parseAmount("AvailableForSale", d.AvailableForSale)
	if err != nil {
		return sale.Params{}, err
	}
	params := sale.Params{
		Version:          d.Version,
		Layout:           sale.Layout(d.Layout),
		CeilingMode:      sale.CeilingMode(d.CeilingMode),
		VestingStartMode: sale.VestingStartMode(d.VestingStartMode),
		VestingStart:     d.VestingStart.Unix(),
		Cliff:            d.CliffSeconds,
		Duration:         d.DurationSeconds,
		AvailableForSale: pool,
		Owner:            owner,
		Treasury:         treasury,
		Custody:          custody,
	}
	for i, phase := range d.Phases {
		field := fmt.Sprintf("Phases[%d]", i)
		rate, err := parseAmount(field+".Rate", phase.Rate)
		if err != nil {
			return sale.Params{}, err
		}
		ceiling, err := parseAmount(field+".AvailableForSale", phase.AvailableForSale)
		if err != nil {
			return sale.Params{}, err
		}
		maxAllocation, err := parseAmount(field+".MaxAllocation", phase.MaxAllocation)
		if err != nil {
			return sale.Params{}, err
		}
		params.Phases = append(params.Phases, sale.Phase{
			Name:             phase.Name,
			StartTime:        phase.Start.Unix(),
			EndTime:          phase.End.Unix(),
			Rate:             rate,
			AvailableForSale: ceiling,
			MaxAllocation:    maxAllocation,
			Gated:            phase.Gated,
		})
	}
	return params, nil
}

// TokenMetadata converts the token section into token metadata.
func (d *Deployment) TokenMetadata() (token.Metadata, error) {
	owner, err := parseAccount("Owner", d.Owner)
	if err != nil {
		return token.Metadata{}, err
	}
	treasury, err := parseAccount("Treasury", d.Treasury)
	if err != nil {
		return token.Metadata{}, err
	}
	return token.Metadata{
		Name:     d.Token.Name,
		Symbol:   d.Token.Symbol,
		Decimals: d.Token.Decimals,
		TaxBps:   d.Token.TaxBps,
		Owner:    owner,
		Treasury: treasury,
	}, nil
}

// ExcludedAccounts returns the accounts exempt from the transfer tax at genesis.
func (d *Deployment) ExcludedAccounts() ([][20]byte, error) {
	out := make([][20]byte, 0, len(d.Token.Excluded))
	for i, raw := range d.Token.Excluded {
		account, err := parseAccount(fmt.Sprintf("Token.Excluded[%d]", i), raw)
		if err != nil {
			return nil, err
		}
		out = append(out, account)
	}
	return out, nil
}

// Supply returns the token supply minted to the owner at genesis.
func (d *Deployment) Supply() (*big.Int, error) {
	return parseAmount("Token.Supply", d.Token.Supply)
}

// CustodyFunding returns the tokens moved to the custody account at genesis.
func (d *Deployment) CustodyFunding() (*big.Int, error) {
	return parseAmount("Genesis.CustodyFunding", d.Genesis.CustodyFunding)
}

// CurrencyBalances returns the payment currency credited at genesis.
func (d *Deployment) CurrencyBalances() (map[[20]byte]*big.Int, error) {
	out := make(map[[20]byte]*big.Int, len(d.Genesis.Currency))
	for i, bal := range d.Genesis.Currency {
		field := fmt.Sprintf("Genesis.Currency[%d]", i)
		account, err := parseAccount(field+".Account", bal.Account)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount(field+".Amount", bal.Amount)
		if err != nil {
			return nil, err
		}
		if existing, ok := out[account]; ok {
			amount = new(big.Int).Add(existing, amount)
		}
		out[account] = amount
	}
	return out, nil
}

// Persist writes the deployment to path in TOML form.
func Persist(path string, cfg *Deployment) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func parseAccount(field, raw string) ([20]byte, error) {
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		return [20]byte{}, fmt.Errorf("%s: %w", field, err)
	}
	return addr.Array(), nil
}

// parseAmount reads a non-negative base-10 integer. Empty input is zero.
func parseAmount(field, raw string) (*big.Int, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(raw), "_", "")
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%s: invalid amount %q", field, raw)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("%s: amount must not be negative", field)
	}
	return amount, nil
}
