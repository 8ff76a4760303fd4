package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/playerledger/wallet-service/internal/model"
	"github.com/playerledger/wallet-service/internal/store"
)

// ErrPlayerNotFound is returned when no player matches the given id.
var ErrPlayerNotFound = errors.New("player not found")

// ErrUsernameTaken is returned when a username is already registered. Under
// concurrent registration the unique constraint guarantees exactly one
// winner.
var ErrUsernameTaken = errors.New("username already taken")

// RepositoryInterface restricts Repo methods (makes unit-test mocks easy).
type RepositoryInterface interface {
	Conn(ctx context.Context) (*gorm.DB, error)
	CreatePlayer(ctx context.Context, tx *gorm.DB, p *model.Player) error
	VerifyPlayer(ctx context.Context, tx *gorm.DB, idPlayer string) error
	GetWallet(ctx context.Context, tx *gorm.DB, idPlayer string) (*model.Wallet, error)
	GetWalletForUpdate(ctx context.Context, tx *gorm.DB, idPlayer string) (*model.Wallet, error)
	UpsertWalletBalance(ctx context.Context, tx *gorm.DB, idPlayer string, balance decimal.Decimal) error
	CreateTransaction(ctx context.Context, tx *gorm.DB, t *model.Transaction) error
	ListTransactions(ctx context.Context, tx *gorm.DB, refType, idRef string) ([]model.Transaction, error)
	CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uint64) error
	PublishEvent(ctx context.Context, evt model.OutboxEvent) error
}

// Repository implements RepositoryInterface on top of the store provider.
type Repository struct {
	provider *store.Provider
	writer   *kafka.Writer
	log      *zap.SugaredLogger
}

// NewRepository constructs repo.
func NewRepository(p *store.Provider, w *kafka.Writer, logger *zap.SugaredLogger) *Repository {
	return &Repository{provider: p, writer: w, log: logger}
}

// Conn acquires a logical connection from the provider. Blocks until the
// schema has been bootstrapped.
func (r *Repository) Conn(ctx context.Context) (*gorm.DB, error) {
	return r.provider.Acquire(ctx)
}

// CreatePlayer inserts the identity row. Duplicate usernames surface as
// ErrUsernameTaken.
func (r *Repository) CreatePlayer(ctx context.Context, tx *gorm.DB, p *model.Player) error {
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUsernameTaken
		}
		return err
	}
	return nil
}

// VerifyPlayer returns ErrPlayerNotFound if no player row matches.
func (r *Repository) VerifyPlayer(ctx context.Context, tx *gorm.DB, idPlayer string) error {
	var n int64
	if err := tx.WithContext(ctx).Model(&model.Player{}).
		Where("id_player = ?", idPlayer).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrPlayerNotFound
	}
	return nil
}

// GetWallet reads the wallet row. gorm.ErrRecordNotFound means the player has
// no wallet row yet (balance 0), not an error condition.
func (r *Repository) GetWallet(ctx context.Context, tx *gorm.DB, idPlayer string) (*model.Wallet, error) {
	var w model.Wallet
	if err := tx.WithContext(ctx).Where("id_player = ?", idPlayer).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// GetWalletForUpdate reads the wallet row with a row lock. Postgres takes
// SELECT ... FOR UPDATE; sqlite ignores the locking clause, serialization
// there comes from the ledger's per-player lock.
func (r *Repository) GetWalletForUpdate(ctx context.Context, tx *gorm.DB, idPlayer string) (*model.Wallet, error) {
	var w model.Wallet
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id_player = ?", idPlayer).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// UpsertWalletBalance inserts the wallet row or overwrites its balance.
func (r *Repository) UpsertWalletBalance(ctx context.Context, tx *gorm.DB, idPlayer string, balance decimal.Decimal) error {
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id_player"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"balance": balance}),
		}).
		Create(&model.Wallet{IDPlayer: idPlayer, Balance: balance}).Error
}

// CreateTransaction appends an immutable ledger record.
func (r *Repository) CreateTransaction(ctx context.Context, tx *gorm.DB, t *model.Transaction) error {
	return tx.WithContext(ctx).Create(t).Error
}

// ListTransactions returns records for one referenced entity in insertion
// order.
func (r *Repository) ListTransactions(ctx context.Context, tx *gorm.DB, refType, idRef string) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := tx.WithContext(ctx).
		Where("ref_type = ? AND id_ref = ?", refType, idRef).
		Order("seq asc").
		Find(&txs).Error
	return txs, err
}

// CreateOutboxEvent writes event.
func (r *Repository) CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error {
	return tx.WithContext(ctx).Create(evt).Error
}

// PollOutbox pulls unprocessed events.
func (r *Repository) PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	db, err := r.Conn(ctx)
	if err != nil {
		return nil, err
	}
	var evts []model.OutboxEvent
	err = db.Where("processed = ?", false).Order("id").Limit(limit).Find(&evts).Error
	return evts, err
}

// MarkOutboxProcessed sets processed flag.
func (r *Repository) MarkOutboxProcessed(ctx context.Context, id uint64) error {
	db, err := r.Conn(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	return db.Model(&model.OutboxEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{"processed": true, "processed_at": &now}).Error
}

// PublishEvent sends to Kafka.
func (r *Repository) PublishEvent(ctx context.Context, evt model.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("%s:%d", evt.AggregateID, evt.ID)),
		Value: []byte(evt.Payload),
		Time:  time.Now(),
	}
	return r.writer.WriteMessages(ctx, msg)
}
