package journal

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"lukechampine.com/blake3"

	"crybsale/core"
	"crybsale/core/events"
)

// ErrDSNRequired is returned when no journal DSN is configured.
var ErrDSNRequired = errors.New("journal: dsn must be configured")

// Purchase is an accepted purchase.
type Purchase struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Digest         string    `gorm:"size:64;uniqueIndex"`
	Sequence       uint64    `gorm:"index"`
	Beneficiary    string    `gorm:"size:96;index"`
	Phase          string    `gorm:"size:32"`
	CurrencyAmount string    `gorm:"size:80"`
	TokenAmount    string    `gorm:"size:80"`
	Vested         bool
	CommittedAt    time.Time `gorm:"index"`
	CreatedAt      time.Time
}

// Claim is a vesting release.
type Claim struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Digest      string    `gorm:"size:64;uniqueIndex"`
	Sequence    uint64    `gorm:"index"`
	Beneficiary string    `gorm:"size:96;index"`
	Amount      string    `gorm:"size:80"`
	Positions   int
	CommittedAt time.Time `gorm:"index"`
	CreatedAt   time.Time
}

// AdminAction is an owner operation: whitelist grants, withdrawals, ceiling
// changes and tax exclusions.
type AdminAction struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Digest      string    `gorm:"size:64;uniqueIndex"`
	Sequence    uint64    `gorm:"index"`
	Action      string    `gorm:"size:64;index"`
	Subject     string    `gorm:"size:96;index"`
	Amount      string    `gorm:"size:80"`
	Details     string    `gorm:"type:text"`
	CommittedAt time.Time `gorm:"index"`
	CreatedAt   time.Time
}

// Journal persists committed sale events for history queries.
type Journal struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to the journal database. DSNs starting with postgres:// or
// postgresql:// use PostgreSQL; everything else is treated as SQLite.
func Open(dsn string) (*Journal, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, ErrDSNRequired
	}
	var dialector gorm.Dialector
	if strings.HasPrefix(trimmed, "postgres://") || strings.HasPrefix(trimmed, "postgresql://") {
		dialector = postgres.Open(trimmed)
	} else {
		dialector = sqlite.Open(trimmed)
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return &Journal{db: db, logger: slog.Default()}, nil
}

// AutoMigrate creates or updates the journal tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Purchase{}, &Claim{}, &AdminAction{}, &IdempotencyKey{})
}

// SetLogger overrides the logger used by Run.
func (j *Journal) SetLogger(logger *slog.Logger) {
	if logger != nil {
		j.logger = logger
	}
}

// Close releases the database connection.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Digest returns the idempotency key of a committed event.
func Digest(update core.EventUpdate) string {
	keys := make([]string, 0, len(update.Event.Attributes))
	for k := range update.Event.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(update.Event.Type)
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(update.Timestamp, 10))
	b.WriteByte('|')
	b.WriteString(strconv.FormatUint(update.Sequence, 10))
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(update.Event.Attributes[k])
	}
	sum := blake3.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Record stores the event if it is journaled. It reports false when the
// event type is not journaled or the event was already recorded.
func (j *Journal) Record(ctx context.Context, update core.EventUpdate) (bool, error) {
	if j == nil || j.db == nil {
		return false, fmt.Errorf("journal not configured")
	}
	attrs := update.Event.Attributes
	digest := Digest(update)
	committed := time.Unix(update.Timestamp, 0).UTC()

	var row interface{}
	switch update.Event.Type {
	case events.TypeSaleBuy:
		vested, _ := strconv.ParseBool(attrs["vested"])
		row = &Purchase{
			ID:             uuid.New(),
			Digest:         digest,
			Sequence:       update.Sequence,
			Beneficiary:    attrs["beneficiary"],
			Phase:          attrs["phase"],
			CurrencyAmount: attrs["currencyAmount"],
			TokenAmount:    attrs["tokenAmount"],
			Vested:         vested,
			CommittedAt:    committed,
		}
	case events.TypeSaleClaimed:
		positions, _ := strconv.Atoi(attrs["positions"])
		row = &Claim{
			ID:          uuid.New(),
			Digest:      digest,
			Sequence:    update.Sequence,
			Beneficiary: attrs["beneficiary"],
			Amount:      attrs["amount"],
			Positions:   positions,
			CommittedAt: committed,
		}
	case events.TypeSaleWhitelisted, events.TypeRemainingWithdrawn, events.TypeCeilingUpdated, events.TypeTokenExclusion:
		details, err := json.Marshal(attrs)
		if err != nil {
			return false, err
		}
		row = &AdminAction{
			ID:          uuid.New(),
			Digest:      digest,
			Sequence:    update.Sequence,
			Action:      update.Event.Type,
			Subject:     adminSubject(attrs),
			Amount:      firstNonEmpty(attrs["amount"], attrs["ceiling"]),
			Details:     string(details),
			CommittedAt: committed,
		}
	default:
		return false, nil
	}

	result := j.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "digest"}}, DoNothing: true}).
		Create(row)
	if result.Error != nil {
		return false, fmt.Errorf("journal: record %s: %w", update.Event.Type, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func adminSubject(attrs map[string]string) string {
	return firstNonEmpty(attrs["beneficiary"], attrs["treasury"], attrs["account"], attrs["phase"])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Purchases lists purchases, newest first. An empty beneficiary lists all.
func (j *Journal) Purchases(ctx context.Context, beneficiary string, limit int) ([]Purchase, error) {
	var out []Purchase
	query := j.db.WithContext(ctx).Order("sequence desc, committed_at desc")
	if trimmed := strings.TrimSpace(beneficiary); trimmed != "" {
		query = query.Where("beneficiary = ?", trimmed)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("journal: list purchases: %w", err)
	}
	return out, nil
}

// Claims lists vesting releases of beneficiary, newest first.
func (j *Journal) Claims(ctx context.Context, beneficiary string, limit int) ([]Claim, error) {
	var out []Claim
	query := j.db.WithContext(ctx).Order("sequence desc, committed_at desc")
	if trimmed := strings.TrimSpace(beneficiary); trimmed != "" {
		query = query.Where("beneficiary = ?", trimmed)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("journal: list claims: %w", err)
	}
	return out, nil
}

// AdminActions lists owner operations, newest first.
func (j *Journal) AdminActions(ctx context.Context, limit int) ([]AdminAction, error) {
	var out []AdminAction
	query := j.db.WithContext(ctx).Order("sequence desc, committed_at desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("journal: list admin actions: %w", err)
	}
	return out, nil
}

// Run records events from the stream until ctx ends and prunes expired
// idempotency keys hourly.
func (j *Journal) Run(ctx context.Context, stream *core.EventStream) error {
	go j.pruneLoop(ctx, time.Hour)
	return stream.Follow(ctx, "", func(update core.EventUpdate) error {
		j.record(ctx, update)
		return nil
	})
}

func (j *Journal) pruneLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n, err := j.PruneResponses(ctx, now); err != nil {
				j.logger.Warn("journal prune failed", "error", err)
			} else if n > 0 {
				j.logger.Debug("journal pruned idempotency keys", "count", n)
			}
		}
	}
}

func (j *Journal) record(ctx context.Context, update core.EventUpdate) {
	if _, err := j.Record(ctx, update); err != nil {
		j.logger.Error("journal record failed", "type", update.Event.Type, "cursor", update.Cursor, "error", err)
	}
}
