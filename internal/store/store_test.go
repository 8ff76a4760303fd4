package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playerledger/wallet-service/internal/logger"
)

func testProvider(t *testing.T, name string) *Provider {
	t.Helper()
	p := NewProvider(Config{
		Driver: DriverSQLite,
		DSN:    "file:" + name + "?mode=memory&cache=shared",
	}, logger.NewNop())
	t.Cleanup(func() { _ = p.Shutdown() })
	return p
}

func TestProvider_InitializeIdempotent(t *testing.T) {
	p := testProvider(t, "store_init_idem")
	ctx := context.Background()

	require.NoError(t, p.Initialize(ctx))
	require.NoError(t, p.Initialize(ctx))

	db, err := p.Acquire(ctx)
	require.NoError(t, err)

	// schema must be queryable
	var n int64
	assert.NoError(t, db.Table("player").Count(&n).Error)
	assert.NoError(t, db.Table("wallet").Count(&n).Error)
	assert.NoError(t, db.Table("ledger_transaction").Count(&n).Error)
	assert.NoError(t, db.Table("event_outbox").Count(&n).Error)
}

func TestProvider_AcquireBlocksUntilInitialize(t *testing.T) {
	p := testProvider(t, "store_acquire_blocks")
	ctx := context.Background()

	acquired := make(chan error, 1)
	go func() {
		_, err := p.Acquire(ctx)
		acquired <- err
	}()

	select {
	case <-acquired:
		t.Fatal("Acquire returned before Initialize completed")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, p.Initialize(ctx))

	select {
	case err := <-acquired:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Acquire did not return after Initialize")
	}
}

func TestProvider_AcquireHonorsContext(t *testing.T) {
	p := testProvider(t, "store_acquire_ctx")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProvider_ShutdownTwice(t *testing.T) {
	p := testProvider(t, "store_shutdown_twice")
	require.NoError(t, p.Initialize(context.Background()))

	assert.NoError(t, p.Shutdown())
	assert.NoError(t, p.Shutdown())
}

func TestProvider_InitializeAfterShutdown(t *testing.T) {
	p := testProvider(t, "store_init_after_shutdown")
	require.NoError(t, p.Initialize(context.Background()))
	require.NoError(t, p.Shutdown())

	assert.ErrorIs(t, p.Initialize(context.Background()), ErrShutdown)
}

func TestProvider_UnknownDriver(t *testing.T) {
	p := NewProvider(Config{Driver: "oracle"}, logger.NewNop())
	assert.Error(t, p.Initialize(context.Background()))
}
