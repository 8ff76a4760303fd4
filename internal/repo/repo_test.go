package repo

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/playerledger/wallet-service/internal/logger"
	"github.com/playerledger/wallet-service/internal/model"
	"github.com/playerledger/wallet-service/internal/store"
)

func newTestRepo(t *testing.T, name string) (*Repository, *gorm.DB) {
	t.Helper()
	p := store.NewProvider(store.Config{
		Driver: store.DriverSQLite,
		DSN:    "file:" + name + "?mode=memory&cache=shared",
	}, logger.NewNop())
	require.NoError(t, p.Initialize(context.Background()))
	t.Cleanup(func() { _ = p.Shutdown() })

	r := NewRepository(p, &kafka.Writer{}, logger.NewNop())
	db, err := r.Conn(context.Background())
	require.NoError(t, err)
	return r, db
}

func TestCreatePlayer_DuplicateUsername(t *testing.T) {
	r, db := newTestRepo(t, "repo_dup_username")
	ctx := context.Background()

	require.NoError(t, r.CreatePlayer(ctx, db, &model.Player{IDPlayer: "p1", Username: "alice"}))
	err := r.CreatePlayer(ctx, db, &model.Player{IDPlayer: "p2", Username: "alice"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestVerifyPlayer(t *testing.T) {
	r, db := newTestRepo(t, "repo_verify_player")
	ctx := context.Background()

	assert.ErrorIs(t, r.VerifyPlayer(ctx, db, "missing"), ErrPlayerNotFound)

	require.NoError(t, r.CreatePlayer(ctx, db, &model.Player{IDPlayer: "p1", Username: "bob"}))
	assert.NoError(t, r.VerifyPlayer(ctx, db, "p1"))
}

func TestUpsertWalletBalance(t *testing.T) {
	r, db := newTestRepo(t, "repo_upsert_wallet")
	ctx := context.Background()

	// no row yet
	_, err := r.GetWallet(ctx, db, "p1")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// insert
	require.NoError(t, r.UpsertWalletBalance(ctx, db, "p1", decimal.NewFromInt(10)))
	w, err := r.GetWallet(ctx, db, "p1")
	require.NoError(t, err)
	assert.Equal(t, "10", w.Balance.StringFixed(0))

	// update
	require.NoError(t, r.UpsertWalletBalance(ctx, db, "p1", decimal.NewFromInt(25)))
	w, err = r.GetWallet(ctx, db, "p1")
	require.NoError(t, err)
	assert.Equal(t, "25", w.Balance.StringFixed(0))
}

func TestListTransactions_InsertionOrder(t *testing.T) {
	r, db := newTestRepo(t, "repo_list_order")
	ctx := context.Background()

	types := []string{model.TypeDeposit, model.TypeStake, model.TypeWin}
	for i, ty := range types {
		require.NoError(t, r.CreateTransaction(ctx, db, &model.Transaction{
			IDTransaction:   "t" + string(rune('1'+i)),
			IDRef:           "p1",
			RefType:         model.RefTypePlayer,
			Amount:          decimal.NewFromInt(int64(i + 1)),
			TransactionType: ty,
		}))
	}
	// a record for another entity kind must not leak into the listing
	require.NoError(t, r.CreateTransaction(ctx, db, &model.Transaction{
		IDTransaction:   "t9",
		IDRef:           "p1",
		RefType:         "Operator",
		Amount:          decimal.NewFromInt(99),
		TransactionType: model.TypeDeposit,
	}))

	txs, err := r.ListTransactions(ctx, db, model.RefTypePlayer, "p1")
	require.NoError(t, err)
	require.Len(t, txs, 3)
	for i, ty := range types {
		assert.Equal(t, ty, txs[i].TransactionType)
		assert.Equal(t, decimal.NewFromInt(int64(i+1)).StringFixed(0), txs[i].Amount.StringFixed(0))
	}
}

func TestOutboxLifecycle(t *testing.T) {
	r, db := newTestRepo(t, "repo_outbox")
	ctx := context.Background()

	require.NoError(t, r.CreateOutboxEvent(ctx, db, &model.OutboxEvent{
		Aggregate:   "Wallet",
		AggregateID: "p1",
		EventType:   "TransactionPosted",
		Payload:     `{"id_player":"p1"}`,
	}))

	evts, err := r.PollOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, evts, 1)

	require.NoError(t, r.MarkOutboxProcessed(ctx, evts[0].ID))

	evts, err = r.PollOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, evts)
}
