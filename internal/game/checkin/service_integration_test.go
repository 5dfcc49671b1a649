// Integration test of the check-in flow against a real PostgreSQL
// container: streak continuation, streak reset after a gap, and the
// same-day repeat rejection.
package checkin

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"telegram-lottery-bot/internal/config"
	"telegram-lottery-bot/internal/ledger"
	"telegram-lottery-bot/internal/model"
	"telegram-lottery-bot/internal/pkg/db"
	"telegram-lottery-bot/internal/repository"
)

type checkinFixture struct {
	svc      *Service
	accounts *repository.AccountRepository
}

func setupCheckin(t *testing.T, loc *time.Location) (*checkinFixture, func()) {
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
	accounts := repository.NewAccountRepository(rawPool)
	txlog := repository.NewTransactionRepository(rawPool)
	records := repository.NewSignInRepository(rawPool)
	eng := ledger.NewEngine(accounts, txlog)

	svc := NewService(pool, eng, records, config.CheckinConfig{BasePoints: 100}, loc, zerolog.Nop())

	cleanup := func() {
		rawPool.Close()
		_ = pgContainer.Terminate(ctx)
	}
	return &checkinFixture{svc: svc, accounts: accounts}, cleanup
}

func TestCheckin_StreakContinuationAndReset(t *testing.T) {
	f, cleanup := setupCheckin(t, time.UTC)
	defer cleanup()
	ctx := context.Background()

	const userID, groupID = int64(7001), int64(-2001)
	day1 := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)

	// First check-in starts a streak of 1.
	res, err := f.svc.SignIn(ctx, userID, groupID, day1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ContinuousDays)
	assert.Equal(t, int64(100), res.BasePoints)
	assert.Equal(t, int64(0), res.Bonus)

	// Same day again, any hour, is rejected.
	_, err = f.svc.SignIn(ctx, userID, groupID, day1.Add(10*time.Hour))
	assert.ErrorIs(t, err, ErrAlreadySignedToday)

	// Yesterday's record continues the streak.
	res, err = f.svc.SignIn(ctx, userID, groupID, day1.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, res.ContinuousDays)

	// Day 3 hits the first milestone.
	res, err = f.svc.SignIn(ctx, userID, groupID, day1.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Equal(t, 3, res.ContinuousDays)
	assert.Equal(t, int64(200), res.Bonus)

	// A missed day resets the streak to 1.
	res, err = f.svc.SignIn(ctx, userID, groupID, day1.AddDate(0, 0, 4))
	require.NoError(t, err)
	assert.Equal(t, 1, res.ContinuousDays)
	assert.Equal(t, int64(0), res.Bonus)

	// Every successful check-in credited the points ledger.
	acct, err := f.accounts.GetByUserAndType(ctx, userID, model.AccountPoints)
	require.NoError(t, err)
	assert.Equal(t, int64(100+100+300+100), acct.AvailableAmount)
}

// The calendar day is the configured location's, not UTC's: two evenings
// that share a UTC date are still distinct local days.
func TestCheckin_LocalDayBoundary(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	f, cleanup := setupCheckin(t, loc)
	defer cleanup()
	ctx := context.Background()

	const userID, groupID = int64(7002), int64(-2001)

	// 2026-03-31 20:00 local (12:00 UTC, March 31).
	day1Evening := time.Date(2026, 3, 31, 20, 0, 0, 0, loc)
	res, err := f.svc.SignIn(ctx, userID, groupID, day1Evening)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ContinuousDays)

	// 2026-04-01 07:00 local is still 2026-03-31 23:00 UTC — a UTC day
	// gate would reject this as a repeat; locally it is the next day.
	day2Morning := time.Date(2026, 4, 1, 7, 0, 0, 0, loc)
	res, err = f.svc.SignIn(ctx, userID, groupID, day2Morning)
	require.NoError(t, err)
	assert.Equal(t, 2, res.ContinuousDays)

	// Later the same local day is a repeat even though UTC has moved on.
	_, err = f.svc.SignIn(ctx, userID, groupID, time.Date(2026, 4, 1, 23, 30, 0, 0, loc))
	assert.ErrorIs(t, err, ErrAlreadySignedToday)
}
