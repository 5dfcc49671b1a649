// Integration tests against a real PostgreSQL container. The schema
// constraints (one open draw per group, one bet per type per draw, one
// reward per card per day) are part of the contract under test.
package repository

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"telegram-lottery-bot/internal/model"
	"telegram-lottery-bot/internal/pkg/db"
)

func checkDockerAvailable() bool {
	return exec.Command("docker", "info").Run() == nil
}

// setupTestDB starts a PostgreSQL container, applies the schema and
// returns a pool. Skips the test when Docker is unavailable.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
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

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, db.Migrate(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}
	return pool, cleanup
}

// ============================================================================
// UserRepository
// ============================================================================

func TestUserRepository_Upsert(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	user, err := repo.Upsert(ctx, 12345, "alice", "Alice")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), user.TelegramID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "Alice", user.FirstName)

	// Second upsert refreshes the profile fields.
	user, err = repo.Upsert(ctx, 12345, "alice_new", "Alice B")
	require.NoError(t, err)
	assert.Equal(t, "alice_new", user.Username)
	assert.Equal(t, "Alice B", user.FirstName)

	got, err := repo.GetByID(ctx, 12345)
	require.NoError(t, err)
	assert.Equal(t, "alice_new", got.Username)

	_, err = repo.GetByID(ctx, 99999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

// ============================================================================
// GroupRepository
// ============================================================================

func TestGroupRepository_Registry(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewGroupRepository(pool)
	ctx := context.Background()

	g, err := repo.Upsert(ctx, -1001, "Test Group", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(-1001), g.GroupID)
	assert.True(t, g.Enabled)

	require.NoError(t, repo.SetEnabled(ctx, -1001, false))
	require.NoError(t, repo.SetBetLimits(ctx, -1001, 50, 5000))

	g, err = repo.GetByID(ctx, -1001)
	require.NoError(t, err)
	assert.False(t, g.Enabled)
	assert.Equal(t, int64(50), g.MinBet)
	assert.Equal(t, int64(5000), g.MaxBet)

	_, err = repo.GetByID(ctx, -9999)
	assert.ErrorIs(t, err, ErrGroupNotFound)

	assert.ErrorIs(t, repo.SetEnabled(ctx, -9999, true), ErrGroupNotFound)
}

func TestGroupRepository_ListEnabled(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewGroupRepository(pool)
	ctx := context.Background()

	_, _ = repo.Upsert(ctx, -1, "on", 0, 0)
	_, _ = repo.Upsert(ctx, -2, "off", 0, 0)
	_, _ = repo.Upsert(ctx, -3, "on too", 0, 0)
	require.NoError(t, repo.SetEnabled(ctx, -2, false))

	groups, err := repo.ListEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	for _, g := range groups {
		assert.True(t, g.Enabled)
	}
}

// ============================================================================
// AccountRepository + TransactionRepository
// ============================================================================

func TestAccountRepository_CreateAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool)
	ctx := context.Background()

	acct, err := repo.Create(ctx, 100, model.AccountPoints)
	require.NoError(t, err)
	assert.Equal(t, int64(0), acct.TotalAmount)
	assert.Equal(t, model.AccountActive, acct.Status)

	// One account per (user, type).
	_, err = repo.Create(ctx, 100, model.AccountPoints)
	assert.Error(t, err)

	// The other ledger is independent.
	wallet, err := repo.Create(ctx, 100, model.AccountWallet)
	require.NoError(t, err)
	assert.NotEqual(t, acct.ID, wallet.ID)

	got, err := repo.GetByUserAndType(ctx, 100, model.AccountPoints)
	require.NoError(t, err)
	assert.Equal(t, acct.ID, got.ID)

	_, err = repo.GetByUserAndType(ctx, 100, model.AccountType(9))
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAccountRepository_UpdateBalances(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewAccountRepository(pool)
	ctx := context.Background()

	acct, err := repo.Create(ctx, 100, model.AccountPoints)
	require.NoError(t, err)

	require.NoError(t, repo.UpdateBalances(ctx, acct.ID, 1000, 700, 300))

	got, err := repo.GetByUserAndType(ctx, 100, model.AccountPoints)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.TotalAmount)
	assert.Equal(t, int64(700), got.AvailableAmount)
	assert.Equal(t, int64(300), got.FrozenAmount)

	// Negative balances are rejected by the schema.
	assert.Error(t, repo.UpdateBalances(ctx, acct.ID, -1, -1, 0))

	assert.ErrorIs(t, repo.UpdateBalances(ctx, 99999, 0, 0, 0), ErrAccountNotFound)
}

func TestTransactionRepository_AppendAndList(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	accounts := NewAccountRepository(pool)
	txlog := NewTransactionRepository(pool)
	ctx := context.Background()

	acct, err := accounts.Create(ctx, 100, model.AccountPoints)
	require.NoError(t, err)

	groupID := int64(-1001)
	entry, err := txlog.Append(ctx, &model.AccountTransaction{
		AccountID:    acct.ID,
		UserID:       100,
		AccountType:  model.AccountPoints,
		Kind:         model.TxKindCheckin,
		Amount:       100,
		BalanceAfter: 100,
		GroupID:      &groupID,
		Remarks:      "每日签到",
	})
	require.NoError(t, err)
	assert.NotZero(t, entry.ID)
	require.NotNil(t, entry.GroupID)
	assert.Equal(t, groupID, *entry.GroupID)

	_, err = txlog.Append(ctx, &model.AccountTransaction{
		AccountID: acct.ID, UserID: 100, AccountType: model.AccountPoints,
		Kind: model.TxKindLotteryBet, Amount: -60, BalanceAfter: 40,
	})
	require.NoError(t, err)

	entries, err := txlog.ListByAccount(ctx, acct.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Newest first.
	assert.Equal(t, model.TxKindLotteryBet, entries[0].Kind)

	sum, err := txlog.SumByAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), sum)

	filtered, err := txlog.ListRecentByUserAndKinds(ctx, 100, []model.TxKind{model.TxKindCheckin}, 10)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, int64(100), filtered[0].Amount)
}

// ============================================================================
// DrawRepository
// ============================================================================

func TestDrawRepository_OneOpenPerGroup(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDrawRepository(pool)
	ctx := context.Background()

	now := time.Now()
	draw, err := repo.Create(ctx, -1001, model.GameTypeLottery, "20260828001", now.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, model.DrawOpen, draw.Status)

	// A second open period in the same group is refused.
	_, err = repo.Create(ctx, -1001, model.GameTypeLottery, "20260828002", now.Add(5*time.Minute))
	assert.ErrorIs(t, err, ErrOpenDrawExists)

	// Other groups are unaffected.
	_, err = repo.Create(ctx, -1002, model.GameTypeLottery, "20260828001", now.Add(5*time.Minute))
	require.NoError(t, err)

	got, err := repo.GetOpen(ctx, -1001, model.GameTypeLottery)
	require.NoError(t, err)
	assert.Equal(t, draw.ID, got.ID)
}

func TestDrawRepository_SettleLifecycle(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDrawRepository(pool)
	ctx := context.Background()

	draw, err := repo.Create(ctx, -1001, model.GameTypeLottery, "20260828001", time.Now())
	require.NoError(t, err)

	require.NoError(t, repo.AddBetAmount(ctx, draw.ID, 500))
	require.NoError(t, repo.AddBetAmount(ctx, draw.ID, 300))

	require.NoError(t, repo.MarkSettled(ctx, draw.ID, 7, 472, 328))

	settled, err := repo.GetByDrawNumber(ctx, -1001, model.GameTypeLottery, "20260828001")
	require.NoError(t, err)
	assert.Equal(t, model.DrawSettled, settled.Status)
	require.NotNil(t, settled.Result)
	assert.Equal(t, int16(7), *settled.Result)
	assert.Equal(t, int64(800), settled.TotalBets)
	assert.Equal(t, int64(472), settled.TotalPayout)
	assert.Equal(t, int64(328), settled.Profit)

	// A settled period accepts no more bets.
	assert.ErrorIs(t, repo.AddBetAmount(ctx, draw.ID, 100), ErrDrawNotFound)

	// The open slot is free again.
	next, err := repo.Create(ctx, -1001, model.GameTypeLottery, "20260828002", time.Now())
	require.NoError(t, err)

	// But the old number stays taken.
	_, err = repo.GetOpen(ctx, -1001, model.GameTypeLottery)
	require.NoError(t, err)
	require.NoError(t, repo.MarkSettled(ctx, next.ID, 3, 0, 0))
	_, err = repo.Create(ctx, -1001, model.GameTypeLottery, "20260828001", time.Now())
	assert.ErrorIs(t, err, ErrDrawNumberTaken)
}

func TestDrawRepository_ListRecentSettled(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDrawRepository(pool)
	ctx := context.Background()

	for i, num := range []string{"001", "002", "003"} {
		d, err := repo.Create(ctx, -1001, model.GameTypeLottery, num, time.Now())
		require.NoError(t, err)
		require.NoError(t, repo.MarkSettled(ctx, d.ID, int16(i), 0, 0))
	}

	recent, err := repo.ListRecentSettled(ctx, -1001, model.GameTypeLottery, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "003", recent[0].DrawNumber)
	assert.Equal(t, "002", recent[1].DrawNumber)
}

// ============================================================================
// BetRepository
// ============================================================================

func newTestBet(userID int64, betType string, amount int64) *model.Bet {
	return &model.Bet{
		GroupID:            -1001,
		GameType:           model.GameTypeLottery,
		DrawNumber:         "20260828001",
		UserID:             userID,
		BetType:            betType,
		BetAmount:          amount,
		OddsAtBet:          236,
		CashbackAmount:     amount * 80 / 10000,
		CashbackExpireTime: time.Now().Add(24 * time.Hour),
	}
}

func TestBetRepository_InsertAndDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewBetRepository(pool)
	ctx := context.Background()

	bet, err := repo.Insert(ctx, newTestBet(100, "大", 200))
	require.NoError(t, err)
	assert.Equal(t, model.BetPlaced, bet.Status)
	assert.Nil(t, bet.IsWin)

	// Same user, same type, same draw: refused.
	_, err = repo.Insert(ctx, newTestBet(100, "大", 300))
	assert.ErrorIs(t, err, ErrDuplicateBet)

	// Different type or different user is fine.
	_, err = repo.Insert(ctx, newTestBet(100, "单", 200))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, newTestBet(101, "大", 200))
	require.NoError(t, err)

	all, err := repo.ListByDraw(ctx, -1001, model.GameTypeLottery, "20260828001")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := repo.ListByUserAndDraw(ctx, 100, -1001, model.GameTypeLottery, "20260828001")
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestBetRepository_MarkSettled(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewBetRepository(pool)
	ctx := context.Background()

	bet, err := repo.Insert(ctx, newTestBet(100, "大", 200))
	require.NoError(t, err)

	require.NoError(t, repo.MarkSettled(ctx, bet.ID, true, 472))

	settled, err := repo.ListByDraw(ctx, -1001, model.GameTypeLottery, "20260828001")
	require.NoError(t, err)
	require.Len(t, settled, 1)
	assert.Equal(t, model.BetSettled, settled[0].Status)
	require.NotNil(t, settled[0].IsWin)
	assert.True(t, *settled[0].IsWin)
	assert.Equal(t, int64(472), settled[0].WinAmount)
}

func TestBetRepository_Cashback(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewBetRepository(pool)
	ctx := context.Background()

	claimable := newTestBet(100, "大", 10000)
	claimable.CashbackAmount = 80
	_, err := repo.Insert(ctx, claimable)
	require.NoError(t, err)

	expired := newTestBet(100, "小", 10000)
	expired.CashbackAmount = 80
	expired.CashbackExpireTime = time.Now().Add(-time.Hour)
	_, err = repo.Insert(ctx, expired)
	require.NoError(t, err)

	now := time.Now()
	locked, err := repo.LockClaimableCashback(ctx, 100, now)
	require.NoError(t, err)
	require.Len(t, locked, 1)
	assert.Equal(t, "大", locked[0].BetType)

	require.NoError(t, repo.MarkCashbackClaimed(ctx, []int64{locked[0].ID}))

	// Claimed bets do not come back.
	locked, err = repo.LockClaimableCashback(ctx, 100, now)
	require.NoError(t, err)
	assert.Empty(t, locked)

	// The sweep marks the lapsed one.
	n, err := repo.SweepExpiredCashback(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Sweeping again finds nothing.
	n, err = repo.SweepExpiredCashback(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

// ============================================================================
// MiningRepository
// ============================================================================

func newTestCard(userID int64) *model.MiningCard {
	now := time.Now()
	return &model.MiningCard{
		UserID:        userID,
		Tier:          "bronze",
		Cost:          500_000,
		DailyPoints:   5000,
		TotalDays:     3,
		RemainingDays: 3,
		TotalPoints:   15000,
		StartTime:     now,
		EndTime:       now.AddDate(0, 0, 3),
	}
}

func TestMiningRepository_CardLifecycle(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewMiningRepository(pool)
	ctx := context.Background()

	card, err := repo.InsertCard(ctx, newTestCard(100))
	require.NoError(t, err)
	assert.Equal(t, model.MiningCardActive, card.Status)
	assert.Equal(t, 3, card.RemainingDays)

	n, err := repo.CountActiveByTier(ctx, 100, "bronze")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	today := time.Now().Truncate(24 * time.Hour)
	due, err := repo.ListDueForAccrual(ctx, today, 100)
	require.NoError(t, err)
	require.Len(t, due, 1)

	// Wind the card through all three days.
	for day := 1; day <= 3; day++ {
		date := today.AddDate(0, 0, day-1)
		_, err := repo.InsertReward(ctx, &model.MiningReward{
			CardID: card.ID, UserID: 100, Points: card.DailyPoints,
			DayIndex: day, RewardDate: date,
		})
		require.NoError(t, err)
		require.NoError(t, repo.ApplyAccrual(ctx, card.ID, date))
	}

	cards, err := repo.ListCardsByUser(ctx, 100, 10)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, model.MiningCardCompleted, cards[0].Status)
	assert.Equal(t, 0, cards[0].RemainingDays)
	assert.Equal(t, int64(15000), cards[0].EarnedPoints)

	// Completed cards drop out of both the active count and the due list.
	n, err = repo.CountActiveByTier(ctx, 100, "bronze")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	due, err = repo.ListDueForAccrual(ctx, today.AddDate(0, 0, 5), 100)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestMiningRepository_RewardIdempotency(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewMiningRepository(pool)
	ctx := context.Background()

	card, err := repo.InsertCard(ctx, newTestCard(100))
	require.NoError(t, err)

	date := time.Now().Truncate(24 * time.Hour)
	_, err = repo.InsertReward(ctx, &model.MiningReward{
		CardID: card.ID, UserID: 100, Points: 5000, DayIndex: 1, RewardDate: date,
	})
	require.NoError(t, err)

	_, err = repo.InsertReward(ctx, &model.MiningReward{
		CardID: card.ID, UserID: 100, Points: 5000, DayIndex: 1, RewardDate: date,
	})
	assert.ErrorIs(t, err, ErrRewardAlreadyExists)

	// An accrued card is no longer due for the same date.
	require.NoError(t, repo.ApplyAccrual(ctx, card.ID, date))
	due, err := repo.ListDueForAccrual(ctx, date, 100)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestMiningRepository_ClaimRewards(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewMiningRepository(pool)
	ctx := context.Background()

	card, err := repo.InsertCard(ctx, newTestCard(100))
	require.NoError(t, err)

	date := time.Now().Truncate(24 * time.Hour)
	for day := 1; day <= 2; day++ {
		_, err := repo.InsertReward(ctx, &model.MiningReward{
			CardID: card.ID, UserID: 100, Points: 5000,
			DayIndex: day, RewardDate: date.AddDate(0, 0, day-1),
		})
		require.NoError(t, err)
	}

	pending, err := repo.LockPendingRewards(ctx, 100)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	ids := []int64{pending[0].ID, pending[1].ID}
	require.NoError(t, repo.MarkRewardsClaimed(ctx, ids, time.Now()))

	pending, err = repo.LockPendingRewards(ctx, 100)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMiningRepository_StatsAccumulate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewMiningRepository(pool)
	ctx := context.Background()

	// Absent rows read as zero.
	stats, err := repo.GetStats(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalCards)

	require.NoError(t, repo.UpsertStats(ctx, 100, 1, 500_000, 0, 0))
	require.NoError(t, repo.UpsertStats(ctx, 100, 0, 0, 5000, 0))
	require.NoError(t, repo.UpsertStats(ctx, 100, 0, 0, 0, 5000))
	require.NoError(t, repo.UpsertStats(ctx, 100, 1, 1_000_000, 0, 0))

	stats, err = repo.GetStats(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalCards)
	assert.Equal(t, int64(1_500_000), stats.TotalSpent)
	assert.Equal(t, int64(5000), stats.TotalEarned)
	assert.Equal(t, int64(5000), stats.TotalClaimed)
}

// ============================================================================
// SignInRepository
// ============================================================================

func TestSignInRepository_OncePerDay(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSignInRepository(pool)
	ctx := context.Background()

	today := time.Now().Truncate(24 * time.Hour)
	rec, err := repo.Insert(ctx, &model.SignInRecord{
		UserID: 100, GroupID: -1001, SignDate: today,
		PointsEarned: 100, ContinuousDays: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.ContinuousDays)

	// Second check-in the same day, even from another group, is refused.
	_, err = repo.Insert(ctx, &model.SignInRecord{
		UserID: 100, GroupID: -1002, SignDate: today,
		PointsEarned: 100, ContinuousDays: 1,
	})
	assert.ErrorIs(t, err, ErrAlreadySigned)

	got, err := repo.GetByUserAndDate(ctx, 100, today)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.PointsEarned)

	_, err = repo.GetByUserAndDate(ctx, 100, today.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, ErrSignInNotFound)
}

// ============================================================================
// RechargeRepository
// ============================================================================

func TestRechargeRepository_OrderLifecycle(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRechargeRepository(pool)
	ctx := context.Background()

	order, err := repo.Insert(ctx, &model.RechargeOrder{
		OrderID: "ord-1", UserID: 100, Amount: 10_000_000, Memo: "AB12CD34EF",
	})
	require.NoError(t, err)
	assert.Equal(t, model.RechargePending, order.Status)

	pending, err := repo.GetPendingByUser(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "ord-1", pending.OrderID)

	_, err = repo.GetPendingByUser(ctx, 999)
	assert.ErrorIs(t, err, ErrRechargeOrderNotFound)

	require.NoError(t, repo.MarkConfirmed(ctx, "ord-1", "0xdeadbeef", time.Now()))

	// Confirmed orders are no longer pending, and cannot be confirmed twice.
	_, err = repo.GetPendingByUser(ctx, 100)
	assert.ErrorIs(t, err, ErrRechargeOrderNotFound)
	assert.ErrorIs(t, repo.MarkConfirmed(ctx, "ord-1", "0xdeadbeef", time.Now()), ErrRechargeOrderNotFound)
}

func TestRechargeRepository_Cancel(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRechargeRepository(pool)
	ctx := context.Background()

	_, err := repo.Insert(ctx, &model.RechargeOrder{
		OrderID: "ord-2", UserID: 100, Amount: 5_000_000, Memo: "0011223344",
	})
	require.NoError(t, err)

	require.NoError(t, repo.MarkCancelled(ctx, "ord-2"))
	_, err = repo.GetPendingByUser(ctx, 100)
	assert.ErrorIs(t, err, ErrRechargeOrderNotFound)

	// A cancelled order cannot be confirmed.
	assert.ErrorIs(t, repo.MarkConfirmed(ctx, "ord-2", "0xabc", time.Now()), ErrRechargeOrderNotFound)

	// Memo uniqueness holds across orders.
	_, err = repo.Insert(ctx, &model.RechargeOrder{
		OrderID: "ord-3", UserID: 100, Amount: 5_000_000, Memo: "0011223344",
	})
	assert.Error(t, err)
}

func TestRechargeRepository_ListPending(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRechargeRepository(pool)
	ctx := context.Background()

	for i, memo := range []string{"MEMO000001", "MEMO000002", "MEMO000003"} {
		_, err := repo.Insert(ctx, &model.RechargeOrder{
			OrderID: memo, UserID: int64(100 + i), Amount: 1_000_000, Memo: memo,
		})
		require.NoError(t, err)
	}
	require.NoError(t, repo.MarkCancelled(ctx, "MEMO000002"))

	orders, err := repo.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}
