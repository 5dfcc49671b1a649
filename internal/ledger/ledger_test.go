// Integration tests for the ledger engine against a real PostgreSQL
// container. Every mutation runs inside a unit of work, as in production.
package ledger

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"telegram-lottery-bot/internal/model"
	"telegram-lottery-bot/internal/pkg/db"
	"telegram-lottery-bot/internal/repository"
)

func setupEngine(t *testing.T) (*Engine, *db.Pool, func()) {
	if exec.Command("docker", "info").Run() != nil {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rawPool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx, rawPool))

	pool := &db.Pool{Pool: rawPool}
	eng := NewEngine(repository.NewAccountRepository(rawPool), repository.NewTransactionRepository(rawPool))

	cleanup := func() {
		rawPool.Close()
		_ = pgContainer.Terminate(ctx)
	}
	return eng, pool, cleanup
}

// seed creates the account and gives it an opening balance.
func seed(t *testing.T, eng *Engine, pool *db.Pool, userID int64, typ model.AccountType, amount int64) {
	t.Helper()
	ctx := context.Background()
	err := db.RunInTx(ctx, pool, func(tx pgx.Tx) error {
		if _, err := eng.GetOrCreateAccount(ctx, tx, userID, typ); err != nil {
			return err
		}
		if amount == 0 {
			return nil
		}
		_, err := eng.Credit(ctx, tx, userID, typ, amount, model.TxKindActivity, Source{Remarks: "seed"})
		return err
	})
	require.NoError(t, err)
}

func balance(t *testing.T, eng *Engine, pool *db.Pool, userID int64, typ model.AccountType) *model.Account {
	t.Helper()
	ctx := context.Background()
	var acct *model.Account
	err := db.RunInTx(ctx, pool, func(tx pgx.Tx) error {
		var err error
		acct, err = eng.Balance(ctx, tx, userID, typ)
		return err
	})
	require.NoError(t, err)
	return acct
}

func TestEngine_GetOrCreateAccount(t *testing.T) {
	eng, pool, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()

	var first, second *model.Account
	err := db.RunInTx(ctx, pool, func(tx pgx.Tx) error {
		var err error
		first, err = eng.GetOrCreateAccount(ctx, tx, 100, model.AccountPoints)
		if err != nil {
			return err
		}
		second, err = eng.GetOrCreateAccount(ctx, tx, 100, model.AccountPoints)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(0), first.TotalAmount)
}

func TestEngine_DebitCredit(t *testing.T) {
	eng, pool, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()

	seed(t, eng, pool, 100, model.AccountPoints, 1000)

	err := db.RunInTx(ctx, pool, func(tx pgx.Tx) error {
		entry, err := eng.Debit(ctx, tx, 100, model.AccountPoints, 300, model.TxKindLotteryBet, Source{Remarks: "buy"})
		if err != nil {
			return err
		}
		assert.Equal(t, int64(-300), entry.Amount)
		assert.Equal(t, int64(700), entry.BalanceAfter)
		return nil
	})
	require.NoError(t, err)

	acct := balance(t, eng, pool, 100, model.AccountPoints)
	assert.Equal(t, int64(700), acct.TotalAmount)
	assert.Equal(t, int64(700), acct.AvailableAmount)
}

func TestEngine_InsufficientFundsRollsBack(t *testing.T) {
	eng, pool, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()

	seed(t, eng, pool, 100, model.AccountPoints, 100)

	// A failing debit after a successful credit must undo both.
	err := db.RunInTx(ctx, pool, func(tx pgx.Tx) error {
		if _, err := eng.Credit(ctx, tx, 100, model.AccountPoints, 50, model.TxKindActivity, Source{}); err != nil {
			return err
		}
		_, err := eng.Debit(ctx, tx, 100, model.AccountPoints, 10_000, model.TxKindLotteryBet, Source{})
		return err
	})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	acct := balance(t, eng, pool, 100, model.AccountPoints)
	assert.Equal(t, int64(100), acct.AvailableAmount)
}

func TestEngine_InvalidAmount(t *testing.T) {
	eng, pool, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()

	seed(t, eng, pool, 100, model.AccountPoints, 100)

	err := db.RunInTx(ctx, pool, func(tx pgx.Tx) error {
		_, err := eng.Debit(ctx, tx, 100, model.AccountPoints, 0, model.TxKindConsume, Source{})
		return err
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	err = db.RunInTx(ctx, pool, func(tx pgx.Tx) error {
		_, err := eng.Credit(ctx, tx, 100, model.AccountPoints, -5, model.TxKindActivity, Source{})
		return err
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestEngine_FrozenAccountRejectsMutations(t *testing.T) {
	eng, pool, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()

	seed(t, eng, pool, 100, model.AccountPoints, 1000)

	accounts := repository.NewAccountRepository(pool.Pool)
	acct, err := accounts.GetByUserAndType(ctx, 100, model.AccountPoints)
	require.NoError(t, err)
	require.NoError(t, accounts.SetStatus(ctx, acct.ID, model.AccountFrozen))

	err = db.RunInTx(ctx, pool, func(tx pgx.Tx) error {
		_, err := eng.Debit(ctx, tx, 100, model.AccountPoints, 10, model.TxKindConsume, Source{})
		return err
	})
	assert.ErrorIs(t, err, ErrAccountFrozen)

	err = db.RunInTx(ctx, pool, func(tx pgx.Tx) error {
		_, err := eng.Credit(ctx, tx, 100, model.AccountPoints, 10, model.TxKindActivity, Source{})
		return err
	})
	assert.ErrorIs(t, err, ErrAccountFrozen)
}

func TestEngine_FreezeUnfreeze(t *testing.T) {
	eng, pool, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()

	seed(t, eng, pool, 100, model.AccountPoints, 1000)

	err := db.RunInTx(ctx, pool, func(tx pgx.Tx) error {
		return eng.Freeze(ctx, tx, 100, model.AccountPoints, 400)
	})
	require.NoError(t, err)

	acct := balance(t, eng, pool, 100, model.AccountPoints)
	assert.Equal(t, int64(1000), acct.TotalAmount)
	assert.Equal(t, int64(600), acct.AvailableAmount)
	assert.Equal(t, int64(400), acct.FrozenAmount)

	// Frozen funds are not spendable.
	err = db.RunInTx(ctx, pool, func(tx pgx.Tx) error {
		_, err := eng.Debit(ctx, tx, 100, model.AccountPoints, 700, model.TxKindConsume, Source{})
		return err
	})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// Unfreezing more than is frozen fails.
	err = db.RunInTx(ctx, pool, func(tx pgx.Tx) error {
		return eng.Unfreeze(ctx, tx, 100, model.AccountPoints, 500)
	})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	err = db.RunInTx(ctx, pool, func(tx pgx.Tx) error {
		return eng.Unfreeze(ctx, tx, 100, model.AccountPoints, 400)
	})
	require.NoError(t, err)

	acct = balance(t, eng, pool, 100, model.AccountPoints)
	assert.Equal(t, int64(1000), acct.AvailableAmount)
	assert.Equal(t, int64(0), acct.FrozenAmount)
}

func TestEngine_Transfer(t *testing.T) {
	eng, pool, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()

	seed(t, eng, pool, 100, model.AccountPoints, 1000)
	seed(t, eng, pool, 200, model.AccountPoints, 0)

	err := db.RunInTx(ctx, pool, func(tx pgx.Tx) error {
		return eng.Transfer(ctx, tx, 100, 200, model.AccountPoints, 250, model.TxKindTransfer, Source{Remarks: "转账"})
	})
	require.NoError(t, err)

	assert.Equal(t, int64(750), balance(t, eng, pool, 100, model.AccountPoints).AvailableAmount)
	assert.Equal(t, int64(250), balance(t, eng, pool, 200, model.AccountPoints).AvailableAmount)

	// Self-transfer is refused.
	err = db.RunInTx(ctx, pool, func(tx pgx.Tx) error {
		return eng.Transfer(ctx, tx, 100, 100, model.AccountPoints, 10, model.TxKindTransfer, Source{})
	})
	assert.ErrorIs(t, err, ErrSameAccount)

	// An overdraw leaves both sides untouched.
	err = db.RunInTx(ctx, pool, func(tx pgx.Tx) error {
		return eng.Transfer(ctx, tx, 200, 100, model.AccountPoints, 9999, model.TxKindTransfer, Source{})
	})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, int64(250), balance(t, eng, pool, 200, model.AccountPoints).AvailableAmount)
}

func TestEngine_CreditNoLogLeavesNoEntry(t *testing.T) {
	eng, pool, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()

	seed(t, eng, pool, 100, model.AccountPoints, 0)

	err := db.RunInTx(ctx, pool, func(tx pgx.Tx) error {
		return eng.CreditNoLog(ctx, tx, 100, model.AccountPoints, 88)
	})
	require.NoError(t, err)

	acct := balance(t, eng, pool, 100, model.AccountPoints)
	assert.Equal(t, int64(88), acct.AvailableAmount)

	txlog := repository.NewTransactionRepository(pool.Pool)
	entries, err := txlog.ListByAccount(ctx, acct.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEngine_LogBalancesMatchAccount(t *testing.T) {
	eng, pool, cleanup := setupEngine(t)
	defer cleanup()
	ctx := context.Background()

	seed(t, eng, pool, 100, model.AccountPoints, 0)

	// A mixed run of credits and debits; the log must sum to the balance
	// and each BalanceAfter must be the running total.
	amounts := []int64{500, -120, 300, -90, -40, 1000}
	for _, a := range amounts {
		err := db.RunInTx(ctx, pool, func(tx pgx.Tx) error {
			if a > 0 {
				_, err := eng.Credit(ctx, tx, 100, model.AccountPoints, a, model.TxKindActivity, Source{})
				return err
			}
			_, err := eng.Debit(ctx, tx, 100, model.AccountPoints, -a, model.TxKindConsume, Source{})
			return err
		})
		require.NoError(t, err)
	}

	acct := balance(t, eng, pool, 100, model.AccountPoints)

	txlog := repository.NewTransactionRepository(pool.Pool)
	sum, err := txlog.SumByAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, acct.AvailableAmount, sum)

	entries, err := txlog.ListByAccount(ctx, acct.ID, 100)
	require.NoError(t, err)
	require.Len(t, entries, len(amounts))
	// Newest first: the top entry's BalanceAfter is the final balance.
	assert.Equal(t, acct.AvailableAmount, entries[0].BalanceAfter)

	running := int64(0)
	for i := len(entries) - 1; i >= 0; i-- {
		running += entries[i].Amount
		assert.Equal(t, running, entries[i].BalanceAfter)
	}
}
