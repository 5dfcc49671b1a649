package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"telegram-lottery-bot/internal/model"
	"telegram-lottery-bot/internal/pkg/db"
)

// Common errors for mining persistence.
var (
	ErrMiningCardNotFound  = errors.New("mining card not found")
	ErrRewardAlreadyExists = errors.New("reward already exists for this card and date")
)

const miningCardColumns = `id, user_id, tier, cost, daily_points, total_days, remaining_days, total_points, earned_points,
	status, start_time, end_time, last_reward_date, created_at, updated_at`

const miningRewardColumns = `id, card_id, user_id, points, day_index, reward_date, status, claimed_time, created_at`

// MiningRepository handles mining cards, daily rewards, and the per-user
// statistics roll-up.
type MiningRepository struct {
	q db.Querier
}

// NewMiningRepository creates a new MiningRepository instance.
func NewMiningRepository(q db.Querier) *MiningRepository {
	return &MiningRepository{q: q}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *MiningRepository) WithTx(tx pgx.Tx) *MiningRepository {
	return &MiningRepository{q: tx}
}

func scanMiningCard(row pgx.Row) (*model.MiningCard, error) {
	var c model.MiningCard
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Tier,
		&c.Cost,
		&c.DailyPoints,
		&c.TotalDays,
		&c.RemainingDays,
		&c.TotalPoints,
		&c.EarnedPoints,
		&c.Status,
		&c.StartTime,
		&c.EndTime,
		&c.LastRewardDate,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMiningCardNotFound
		}
		return nil, fmt.Errorf("failed to scan mining card: %w", err)
	}
	return &c, nil
}

func scanMiningReward(row pgx.Row) (*model.MiningReward, error) {
	var w model.MiningReward
	err := row.Scan(
		&w.ID,
		&w.CardID,
		&w.UserID,
		&w.Points,
		&w.DayIndex,
		&w.RewardDate,
		&w.Status,
		&w.ClaimedTime,
		&w.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan mining reward: %w", err)
	}
	return &w, nil
}

// InsertCard creates a new active card.
func (r *MiningRepository) InsertCard(ctx context.Context, c *model.MiningCard) (*model.MiningCard, error) {
	const query = `
		INSERT INTO mining_cards (user_id, tier, cost, daily_points, total_days, remaining_days, total_points, earned_points,
			status, start_time, end_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9, $10, NOW(), NOW())
		RETURNING ` + miningCardColumns

	return scanMiningCard(r.q.QueryRow(ctx, query,
		c.UserID, c.Tier, c.Cost, c.DailyPoints, c.TotalDays, c.RemainingDays, c.TotalPoints,
		model.MiningCardActive, c.StartTime, c.EndTime))
}

// CountActiveByTier returns how many active cards of one tier a user holds.
func (r *MiningRepository) CountActiveByTier(ctx context.Context, userID int64, tier string) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM mining_cards
		WHERE user_id = $1 AND tier = $2 AND status = $3 AND is_deleted = FALSE
	`
	var n int
	if err := r.q.QueryRow(ctx, query, userID, tier, model.MiningCardActive).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count active cards: %w", err)
	}
	return n, nil
}

// ListCardsByUser returns a user's cards, newest first.
func (r *MiningRepository) ListCardsByUser(ctx context.Context, userID int64, limit int) ([]*model.MiningCard, error) {
	const query = `
		SELECT ` + miningCardColumns + `
		FROM mining_cards
		WHERE user_id = $1 AND is_deleted = FALSE
		ORDER BY id DESC
		LIMIT $2
	`
	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	var cards []*model.MiningCard
	for rows.Next() {
		c, err := scanMiningCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cards: %w", err)
	}
	return cards, nil
}

// ListDueForAccrual returns a batch of active cards owed a reward for the
// given calendar date: remaining days left, within their date window, and
// not yet rewarded today. Rows are locked so concurrent ticks cannot
// double-accrue.
func (r *MiningRepository) ListDueForAccrual(ctx context.Context, date time.Time, batchSize int) ([]*model.MiningCard, error) {
	const query = `
		SELECT ` + miningCardColumns + `
		FROM mining_cards
		WHERE status = $1
		  AND remaining_days > 0
		  AND start_time::date <= $2::date
		  AND end_time::date >= $2::date
		  AND (last_reward_date IS NULL OR last_reward_date < $2::date)
		  AND is_deleted = FALSE
		ORDER BY id ASC
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`
	rows, err := r.q.Query(ctx, query, model.MiningCardActive, date, batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards due for accrual: %w", err)
	}
	defer rows.Close()

	var cards []*model.MiningCard
	for rows.Next() {
		c, err := scanMiningCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due cards: %w", err)
	}
	return cards, nil
}

// InsertReward creates one day's PENDING reward. The (card, date) pair is
// unique; a second insert for the same day fails with
// ErrRewardAlreadyExists, which makes the daily tick idempotent.
func (r *MiningRepository) InsertReward(ctx context.Context, w *model.MiningReward) (*model.MiningReward, error) {
	const query = `
		INSERT INTO mining_rewards (card_id, user_id, points, day_index, reward_date, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING ` + miningRewardColumns

	reward, err := scanMiningReward(r.q.QueryRow(ctx, query,
		w.CardID, w.UserID, w.Points, w.DayIndex, w.RewardDate, model.MiningRewardPending))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrRewardAlreadyExists
		}
		return nil, err
	}
	return reward, nil
}

// ApplyAccrual advances a card by one rewarded day.
func (r *MiningRepository) ApplyAccrual(ctx context.Context, cardID int64, date time.Time) error {
	const query = `
		UPDATE mining_cards
		SET earned_points = earned_points + daily_points,
		    remaining_days = remaining_days - 1,
		    last_reward_date = $2,
		    status = CASE WHEN remaining_days - 1 = 0 THEN $3::smallint ELSE status END,
		    updated_at = NOW()
		WHERE id = $1 AND remaining_days > 0
	`
	tag, err := r.q.Exec(ctx, query, cardID, date, model.MiningCardCompleted)
	if err != nil {
		return fmt.Errorf("failed to apply accrual: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMiningCardNotFound
	}
	return nil
}

// LockPendingRewards loads a user's PENDING rewards under a row lock.
func (r *MiningRepository) LockPendingRewards(ctx context.Context, userID int64) ([]*model.MiningReward, error) {
	const query = `
		SELECT ` + miningRewardColumns + `
		FROM mining_rewards
		WHERE user_id = $1 AND status = $2
		ORDER BY id ASC
		FOR UPDATE
	`
	rows, err := r.q.Query(ctx, query, userID, model.MiningRewardPending)
	if err != nil {
		return nil, fmt.Errorf("failed to lock pending rewards: %w", err)
	}
	defer rows.Close()

	var rewards []*model.MiningReward
	for rows.Next() {
		w, err := scanMiningReward(rows)
		if err != nil {
			return nil, err
		}
		rewards = append(rewards, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rewards: %w", err)
	}
	return rewards, nil
}

// MarkRewardsClaimed flips the given rewards to CLAIMED with a timestamp.
func (r *MiningRepository) MarkRewardsClaimed(ctx context.Context, rewardIDs []int64, claimedAt time.Time) error {
	const query = `
		UPDATE mining_rewards
		SET status = $2, claimed_time = $3
		WHERE id = ANY($1) AND status = $4
	`
	if _, err := r.q.Exec(ctx, query, rewardIDs, model.MiningRewardClaimed, claimedAt, model.MiningRewardPending); err != nil {
		return fmt.Errorf("failed to mark rewards claimed: %w", err)
	}
	return nil
}

// UpsertStats folds deltas into a user's mining statistics roll-up.
func (r *MiningRepository) UpsertStats(ctx context.Context, userID int64, cards, spent, earned, claimed int64) error {
	const query = `
		INSERT INTO mining_statistics (user_id, total_cards, total_spent, total_earned, total_claimed, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET total_cards = mining_statistics.total_cards + EXCLUDED.total_cards,
		    total_spent = mining_statistics.total_spent + EXCLUDED.total_spent,
		    total_earned = mining_statistics.total_earned + EXCLUDED.total_earned,
		    total_claimed = mining_statistics.total_claimed + EXCLUDED.total_claimed,
		    updated_at = NOW()
	`
	if _, err := r.q.Exec(ctx, query, userID, cards, spent, earned, claimed); err != nil {
		return fmt.Errorf("failed to upsert mining stats: %w", err)
	}
	return nil
}

// GetStats returns a user's mining roll-up, zeroed if absent.
func (r *MiningRepository) GetStats(ctx context.Context, userID int64) (*model.MiningStats, error) {
	const query = `
		SELECT user_id, total_cards, total_spent, total_earned, total_claimed, updated_at
		FROM mining_statistics
		WHERE user_id = $1
	`
	var s model.MiningStats
	err := r.q.QueryRow(ctx, query, userID).Scan(
		&s.UserID, &s.TotalCards, &s.TotalSpent, &s.TotalEarned, &s.TotalClaimed, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &model.MiningStats{UserID: userID}, nil
		}
		return nil, fmt.Errorf("failed to get mining stats: %w", err)
	}
	return &s, nil
}
