package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"crybsale/config"
	"crybsale/core/events"
	salestate "crybsale/core/state"
	"crybsale/native/bank"
	"crybsale/native/sale"
	"crybsale/native/token"
	"crybsale/observability"
	"crybsale/storage"
)

// ErrNilDeployment is returned when the runtime is built without a deployment.
var ErrNilDeployment = errors.New("core: deployment must not be nil")

// Runtime serialises calls into the sale engine, token and currency ledger.
// Every mutating call either commits all of its writes and events or none.
type Runtime struct {
	mu       sync.Mutex
	db       storage.Database
	state    *salestate.Manager
	sale     *sale.Engine
	token    *token.Token
	bank     *bank.Ledger
	buffer   *events.Buffer
	stream   *EventStream
	metrics  *observability.SaleMetrics
	tracer   trace.Tracer
	logger   *slog.Logger
	nowFn    func() int64
	deployed uint64
}

// Option customises a runtime.
type Option func(*Runtime)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithNowFunc overrides the clock shared by every component.
func WithNowFunc(now func() int64) Option {
	return func(r *Runtime) {
		if now != nil {
			r.nowFn = now
		}
	}
}

// WithMetrics enables Prometheus collectors for runtime calls.
func WithMetrics() Option {
	return func(r *Runtime) {
		r.metrics = observability.Sale()
		r.stream.metrics = observability.Events()
		r.stream.gauge = r.metrics
	}
}

// NewRuntime opens the sale held in db. Empty state is seeded from the
// deployment; existing state must match its version.
func NewRuntime(db storage.Database, deployment *config.Deployment, opts ...Option) (*Runtime, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database must not be nil")
	}
	if deployment == nil {
		return nil, ErrNilDeployment
	}
	params, err := deployment.SaleParams()
	if err != nil {
		return nil, err
	}
	meta, err := deployment.TokenMetadata()
	if err != nil {
		return nil, err
	}
	engine, err := sale.NewEngine(params)
	if err != nil {
		return nil, err
	}

	r := &Runtime{
		db:       db,
		state:    salestate.NewManager(db),
		sale:     engine,
		token:    token.New(meta),
		bank:     bank.NewLedger(),
		buffer:   &events.Buffer{},
		stream:   NewEventStream(),
		tracer:   otel.Tracer("crybsale/core"),
		logger:   slog.Default(),
		nowFn:    func() int64 { return time.Now().Unix() },
		deployed: deployment.Version,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.token.SetState(r.state)
	r.token.SetEmitter(r.buffer)
	r.bank.SetState(r.state)
	r.bank.SetEmitter(r.buffer)
	r.sale.SetState(r.state)
	r.sale.SetToken(r.token)
	r.sale.SetCurrency(r.bank)
	r.sale.SetEmitter(r.buffer)
	r.sale.SetNowFunc(r.nowFn)

	initialised, err := r.state.EnsureVersions(deployment.Version)
	if err != nil {
		return nil, err
	}
	if !initialised {
		if err := r.applyGenesis(deployment); err != nil {
			return nil, fmt.Errorf("core: genesis: %w", err)
		}
		r.logger.Info("sale genesis applied",
			"deployment", deployment.Version,
			"layout", string(params.Layout),
			"phases", len(params.Phases))
	}
	r.refreshRemaining()
	return r, nil
}

// Events returns the stream of committed events.
func (r *Runtime) Events() *EventStream { return r.stream }

// Params returns the sale parameters.
func (r *Runtime) Params() sale.Params { return r.sale.Params() }

// TokenMetadata returns the token description.
func (r *Runtime) TokenMetadata() token.Metadata {
	return token.Metadata{
		Name:     r.token.Name(),
		Symbol:   r.token.Symbol(),
		Decimals: r.token.Decimals(),
		TaxBps:   r.token.TaxBps(),
		Owner:    r.token.Owner(),
		Treasury: r.token.Treasury(),
	}
}

// Now returns the runtime clock in unix seconds.
func (r *Runtime) Now() int64 { return r.nowFn() }

// Close releases the underlying database.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Discard()
	r.db.Close()
}

// exec runs fn under the runtime lock and commits its writes atomically.
// Events emitted by fn are published only after a successful commit.
func (r *Runtime) exec(ctx context.Context, op string, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	_, span := r.tracer.Start(ctx, "sale."+op, trace.WithAttributes(attribute.String("operation", op)))
	defer span.End()
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	err := r.commit(fn)

	kind := ""
	if err != nil {
		kind = ErrorKind(err).String()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Warn("sale call rejected", "operation", op, "kind", kind, "error", err)
	} else {
		r.logger.Debug("sale call committed", "operation", op)
	}
	r.metrics.ObserveCall(op, kind, time.Since(start))
	return err
}

// commit runs fn and applies or drops its staged writes under the runtime lock.
func (r *Runtime) commit(fn func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := fn(); err != nil {
		r.state.Discard()
		r.buffer.Reset()
		return err
	}
	if err := r.state.Commit(); err != nil {
		r.state.Discard()
		r.buffer.Reset()
		return err
	}
	r.flush(r.buffer.Drain())
	return nil
}

// view runs a read-only fn under the runtime lock.
func (r *Runtime) view(fn func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn()
}

func (r *Runtime) flush(committed []events.Event) {
	if len(committed) == 0 {
		return
	}
	timestamp := r.nowFn()
	saleTouched := false
	for _, evt := range committed {
		switch e := evt.(type) {
		case events.Buy:
			r.metrics.RecordPurchase(e.Phase, e.CurrencyAmount, e.TokenAmount)
			saleTouched = true
		case events.Claimed:
			r.metrics.RecordClaim(e.Amount)
		case events.RemainingWithdrawn, events.CeilingUpdated, events.Whitelisted:
			saleTouched = true
		}
		r.stream.publish(events.Render(evt), timestamp)
	}
	if saleTouched {
		r.refreshRemainingLocked()
	}
}

func (r *Runtime) refreshRemaining() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshRemainingLocked()
}

func (r *Runtime) refreshRemainingLocked() {
	if r.metrics == nil {
		return
	}
	remaining, err := r.sale.Remaining()
	if err != nil {
		return
	}
	r.metrics.SetRemaining(remaining)
}

// PreSale buys into the gated presale phase.
func (r *Runtime) PreSale(ctx context.Context, beneficiary [20]byte, amount *big.Int) (*sale.PurchaseResult, error) {
	var result *sale.PurchaseResult
	err := r.exec(ctx, "presale", func() error {
		var err error
		result, err = r.sale.PreSale(beneficiary, amount)
		return err
	})
	return result, err
}

// PublicSale buys into the public phase with immediate delivery.
func (r *Runtime) PublicSale(ctx context.Context, beneficiary [20]byte, amount *big.Int) (*sale.PurchaseResult, error) {
	var result *sale.PurchaseResult
	err := r.exec(ctx, "public_sale", func() error {
		var err error
		result, err = r.sale.PublicSale(beneficiary, amount)
		return err
	})
	return result, err
}

// Buy purchases from a single-window sale.
func (r *Runtime) Buy(ctx context.Context, beneficiary [20]byte, amount *big.Int) (*sale.PurchaseResult, error) {
	var result *sale.PurchaseResult
	err := r.exec(ctx, "buy", func() error {
		var err error
		result, err = r.sale.Buy(beneficiary, amount)
		return err
	})
	return result, err
}

// Release delivers the vested amount of one position.
func (r *Runtime) Release(ctx context.Context, beneficiary [20]byte, index uint64) (*big.Int, error) {
	var released *big.Int
	err := r.exec(ctx, "release", func() error {
		var err error
		released, err = r.sale.Release(beneficiary, index)
		return err
	})
	return released, err
}

// ReleaseAll delivers the vested amount of every position of beneficiary.
func (r *Runtime) ReleaseAll(ctx context.Context, beneficiary [20]byte) (*big.Int, error) {
	var released *big.Int
	err := r.exec(ctx, "release_all", func() error {
		var err error
		released, err = r.sale.ReleaseAll(beneficiary)
		return err
	})
	return released, err
}

// Whitelist grants vesting positions outside the sale ledger.
func (r *Runtime) Whitelist(ctx context.Context, caller [20]byte, beneficiaries [][20]byte, amounts []*big.Int) ([]uint64, error) {
	var indices []uint64
	err := r.exec(ctx, "whitelist", func() error {
		var err error
		indices, err = r.sale.Whitelist(caller, beneficiaries, amounts)
		return err
	})
	return indices, err
}

// WithdrawRemaining sends unsold inventory to the treasury after the sale.
func (r *Runtime) WithdrawRemaining(ctx context.Context, caller [20]byte) (*big.Int, error) {
	var withdrawn *big.Int
	err := r.exec(ctx, "withdraw_remaining", func() error {
		var err error
		withdrawn, err = r.sale.WithdrawRemaining(caller)
		return err
	})
	return withdrawn, err
}

// SetAvailableForSale adjusts the ceiling of the active phase or shared pool.
func (r *Runtime) SetAvailableForSale(ctx context.Context, caller [20]byte, ceiling *big.Int) error {
	return r.exec(ctx, "set_available_for_sale", func() error {
		return r.sale.SetAvailableForSale(caller, ceiling)
	})
}

// TokenTransfer moves tokens between accounts applying the transfer tax.
func (r *Runtime) TokenTransfer(ctx context.Context, from, to [20]byte, amount *big.Int) error {
	return r.exec(ctx, "token_transfer", func() error {
		return r.token.Transfer(from, to, amount)
	})
}

// TokenApprove sets the allowance of spender over owner's tokens.
func (r *Runtime) TokenApprove(ctx context.Context, owner, spender [20]byte, amount *big.Int) error {
	return r.exec(ctx, "token_approve", func() error {
		return r.token.Approve(owner, spender, amount)
	})
}

// TokenTransferFrom spends an allowance.
func (r *Runtime) TokenTransferFrom(ctx context.Context, spender, from, to [20]byte, amount *big.Int) error {
	return r.exec(ctx, "token_transfer_from", func() error {
		return r.token.TransferFrom(spender, from, to, amount)
	})
}

// TokenExclude exempts accounts from the transfer tax.
func (r *Runtime) TokenExclude(ctx context.Context, caller [20]byte, accounts [][20]byte) error {
	return r.exec(ctx, "token_exclude", func() error {
		return r.token.ExcludeMultiple(caller, accounts)
	})
}

// TokenInclude subjects an account to the transfer tax again.
func (r *Runtime) TokenInclude(ctx context.Context, caller, account [20]byte) error {
	return r.exec(ctx, "token_include", func() error {
		return r.token.Include(caller, account)
	})
}

// CreditCurrency deposits payment currency into account. Only the owner may
// credit balances.
func (r *Runtime) CreditCurrency(ctx context.Context, caller, account [20]byte, amount *big.Int) error {
	return r.exec(ctx, "credit_currency", func() error {
		if caller != r.sale.Params().Owner {
			return sale.ErrNotOwner
		}
		return r.bank.Credit(account, amount)
	})
}
