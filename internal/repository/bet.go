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

// Common errors for bet persistence.
var (
	ErrBetNotFound  = errors.New("bet not found")
	ErrDuplicateBet = errors.New("duplicate bet for this draw and bet type")
)

const betColumns = `id, group_id, game_type, draw_number, user_id, bet_type, bet_amount, odds_at_bet, is_win, win_amount,
	cashback_amount, cashback_claimed, cashback_expired, cashback_expire_time, status, created_at, updated_at`

// BetRepository handles bet persistence. The one-bet-per-type rule is a
// storage constraint: inserting a second (group, draw, user, bet type)
// row fails with ErrDuplicateBet.
type BetRepository struct {
	q db.Querier
}

// NewBetRepository creates a new BetRepository instance.
func NewBetRepository(q db.Querier) *BetRepository {
	return &BetRepository{q: q}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *BetRepository) WithTx(tx pgx.Tx) *BetRepository {
	return &BetRepository{q: tx}
}

func scanBet(row pgx.Row) (*model.Bet, error) {
	var b model.Bet
	err := row.Scan(
		&b.ID,
		&b.GroupID,
		&b.GameType,
		&b.DrawNumber,
		&b.UserID,
		&b.BetType,
		&b.BetAmount,
		&b.OddsAtBet,
		&b.IsWin,
		&b.WinAmount,
		&b.CashbackAmount,
		&b.CashbackClaimed,
		&b.CashbackExpired,
		&b.CashbackExpireTime,
		&b.Status,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBetNotFound
		}
		return nil, fmt.Errorf("failed to scan bet: %w", err)
	}
	return &b, nil
}

// Insert places a bet row.
func (r *BetRepository) Insert(ctx context.Context, b *model.Bet) (*model.Bet, error) {
	const query = `
		INSERT INTO lottery_bets (group_id, game_type, draw_number, user_id, bet_type, bet_amount, odds_at_bet,
			win_amount, cashback_amount, cashback_claimed, cashback_expired, cashback_expire_time, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, FALSE, FALSE, $9, $10, NOW(), NOW())
		RETURNING ` + betColumns

	bet, err := scanBet(r.q.QueryRow(ctx, query,
		b.GroupID, b.GameType, b.DrawNumber, b.UserID, b.BetType, b.BetAmount, b.OddsAtBet,
		b.CashbackAmount, b.CashbackExpireTime, model.BetPlaced))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateBet
		}
		return nil, err
	}
	return bet, nil
}

func (r *BetRepository) queryMany(ctx context.Context, query string, args ...any) ([]*model.Bet, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bets: %w", err)
	}
	defer rows.Close()

	var bets []*model.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		bets = append(bets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bets: %w", err)
	}
	return bets, nil
}

// ListByDraw returns every bet of one draw in ascending id order, the
// order settlement walks them in.
func (r *BetRepository) ListByDraw(ctx context.Context, groupID int64, gameType, drawNumber string) ([]*model.Bet, error) {
	const query = `
		SELECT ` + betColumns + `
		FROM lottery_bets
		WHERE group_id = $1 AND game_type = $2 AND draw_number = $3 AND is_deleted = FALSE
		ORDER BY id ASC
	`
	return r.queryMany(ctx, query, groupID, gameType, drawNumber)
}

// ListByUserAndDraw returns one user's bets on a draw.
func (r *BetRepository) ListByUserAndDraw(ctx context.Context, userID, groupID int64, gameType, drawNumber string) ([]*model.Bet, error) {
	const query = `
		SELECT ` + betColumns + `
		FROM lottery_bets
		WHERE user_id = $1 AND group_id = $2 AND game_type = $3 AND draw_number = $4 AND is_deleted = FALSE
		ORDER BY id ASC
	`
	return r.queryMany(ctx, query, userID, groupID, gameType, drawNumber)
}

// MarkSettled finalizes one bet with its outcome.
func (r *BetRepository) MarkSettled(ctx context.Context, betID int64, isWin bool, winAmount int64) error {
	const query = `
		UPDATE lottery_bets
		SET is_win = $2, win_amount = $3, status = $4, updated_at = NOW()
		WHERE id = $1 AND status = $5
	`
	tag, err := r.q.Exec(ctx, query, betID, isWin, winAmount, model.BetSettled, model.BetPlaced)
	if err != nil {
		return fmt.Errorf("failed to mark bet settled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBetNotFound
	}
	return nil
}

// LockClaimableCashback loads a user's unclaimed, unexpired cashback rows
// under a row lock. Rows exactly at the expiry boundary are excluded.
func (r *BetRepository) LockClaimableCashback(ctx context.Context, userID int64, now time.Time) ([]*model.Bet, error) {
	const query = `
		SELECT ` + betColumns + `
		FROM lottery_bets
		WHERE user_id = $1
		  AND cashback_amount > 0
		  AND cashback_claimed = FALSE
		  AND cashback_expired = FALSE
		  AND cashback_expire_time > $2
		  AND is_deleted = FALSE
		ORDER BY id ASC
		FOR UPDATE
	`
	return r.queryMany(ctx, query, userID, now)
}

// MarkCashbackClaimed flips the claimed flag on the given bets.
func (r *BetRepository) MarkCashbackClaimed(ctx context.Context, betIDs []int64) error {
	const query = `
		UPDATE lottery_bets
		SET cashback_claimed = TRUE, updated_at = NOW()
		WHERE id = ANY($1)
	`
	if _, err := r.q.Exec(ctx, query, betIDs); err != nil {
		return fmt.Errorf("failed to mark cashback claimed: %w", err)
	}
	return nil
}

// SweepExpiredCashback marks overdue unclaimed cashback rows so they can
// no longer be claimed. Returns the number of rows swept.
func (r *BetRepository) SweepExpiredCashback(ctx context.Context, now time.Time) (int64, error) {
	const query = `
		UPDATE lottery_bets
		SET cashback_expired = TRUE, updated_at = NOW()
		WHERE cashback_claimed = FALSE
		  AND cashback_expired = FALSE
		  AND cashback_expire_time <= $1
	`
	tag, err := r.q.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired cashback: %w", err)
	}
	return tag.RowsAffected(), nil
}
