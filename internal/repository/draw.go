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

// Common errors for draw-period persistence.
var (
	ErrDrawNotFound    = errors.New("draw period not found")
	ErrOpenDrawExists  = errors.New("an open draw period already exists")
	ErrDrawNumberTaken = errors.New("draw number already taken")
)

const drawColumns = `id, group_id, game_type, draw_number, result, total_bets, total_payout, profit, status, draw_time, created_at, updated_at`

// DrawRepository handles draw-period persistence. The one-open-period
// rule and draw-number uniqueness are enforced by storage constraints,
// not by optimistic code paths.
type DrawRepository struct {
	q db.Querier
}

// NewDrawRepository creates a new DrawRepository instance.
func NewDrawRepository(q db.Querier) *DrawRepository {
	return &DrawRepository{q: q}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *DrawRepository) WithTx(tx pgx.Tx) *DrawRepository {
	return &DrawRepository{q: tx}
}

func scanDraw(row pgx.Row) (*model.DrawPeriod, error) {
	var d model.DrawPeriod
	err := row.Scan(
		&d.ID,
		&d.GroupID,
		&d.GameType,
		&d.DrawNumber,
		&d.Result,
		&d.TotalBets,
		&d.TotalPayout,
		&d.Profit,
		&d.Status,
		&d.DrawTime,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDrawNotFound
		}
		return nil, fmt.Errorf("failed to scan draw period: %w", err)
	}
	return &d, nil
}

// Create opens a new draw period. Fails with ErrOpenDrawExists if the
// group already has an open period of this game type, or with
// ErrDrawNumberTaken on a draw-number collision.
func (r *DrawRepository) Create(ctx context.Context, groupID int64, gameType, drawNumber string, drawTime time.Time) (*model.DrawPeriod, error) {
	const query = `
		INSERT INTO lottery_draws (group_id, game_type, draw_number, total_bets, total_payout, profit, status, draw_time, created_at, updated_at)
		VALUES ($1, $2, $3, 0, 0, 0, $4, $5, NOW(), NOW())
		RETURNING ` + drawColumns

	d, err := scanDraw(r.q.QueryRow(ctx, query, groupID, gameType, drawNumber, model.DrawOpen, drawTime))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == "uq_lottery_draws_open" {
				return nil, ErrOpenDrawExists
			}
			return nil, ErrDrawNumberTaken
		}
		return nil, err
	}
	return d, nil
}

// GetOpen returns the group's open period of the given game type.
func (r *DrawRepository) GetOpen(ctx context.Context, groupID int64, gameType string) (*model.DrawPeriod, error) {
	const query = `
		SELECT ` + drawColumns + `
		FROM lottery_draws
		WHERE group_id = $1 AND game_type = $2 AND status = $3 AND is_deleted = FALSE
	`
	return scanDraw(r.q.QueryRow(ctx, query, groupID, gameType, model.DrawOpen))
}

// LockOpenForSettlement acquires the open period under a row lock. At
// most one settlement per period can proceed past this point.
func (r *DrawRepository) LockOpenForSettlement(ctx context.Context, groupID int64, gameType string) (*model.DrawPeriod, error) {
	const query = `
		SELECT ` + drawColumns + `
		FROM lottery_draws
		WHERE group_id = $1 AND game_type = $2 AND status = $3 AND is_deleted = FALSE
		FOR UPDATE
	`
	return scanDraw(r.q.QueryRow(ctx, query, groupID, gameType, model.DrawOpen))
}

// AddBetAmount rolls a placed bet's amount into the period totals.
func (r *DrawRepository) AddBetAmount(ctx context.Context, drawID int64, amount int64) error {
	const query = `
		UPDATE lottery_draws
		SET total_bets = total_bets + $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`
	tag, err := r.q.Exec(ctx, query, drawID, amount, model.DrawOpen)
	if err != nil {
		return fmt.Errorf("failed to add bet amount: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDrawNotFound
	}
	return nil
}

// MarkSettled finalizes a period with its result and payout totals.
func (r *DrawRepository) MarkSettled(ctx context.Context, drawID int64, result int16, totalPayout, profit int64) error {
	const query = `
		UPDATE lottery_draws
		SET result = $2, total_payout = $3, profit = $4, status = $5, updated_at = NOW()
		WHERE id = $1 AND status = $6
	`
	tag, err := r.q.Exec(ctx, query, drawID, result, totalPayout, profit, model.DrawSettled, model.DrawOpen)
	if err != nil {
		return fmt.Errorf("failed to mark draw settled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDrawNotFound
	}
	return nil
}

// GetByDrawNumber retrieves a period by its draw number within a group.
func (r *DrawRepository) GetByDrawNumber(ctx context.Context, groupID int64, gameType, drawNumber string) (*model.DrawPeriod, error) {
	const query = `
		SELECT ` + drawColumns + `
		FROM lottery_draws
		WHERE group_id = $1 AND game_type = $2 AND draw_number = $3 AND is_deleted = FALSE
	`
	return scanDraw(r.q.QueryRow(ctx, query, groupID, gameType, drawNumber))
}

// ListRecentSettled returns the group's newest settled periods.
func (r *DrawRepository) ListRecentSettled(ctx context.Context, groupID int64, gameType string, limit int) ([]*model.DrawPeriod, error) {
	const query = `
		SELECT ` + drawColumns + `
		FROM lottery_draws
		WHERE group_id = $1 AND game_type = $2 AND status = $3 AND is_deleted = FALSE
		ORDER BY id DESC
		LIMIT $4
	`
	rows, err := r.q.Query(ctx, query, groupID, gameType, model.DrawSettled, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list settled draws: %w", err)
	}
	defer rows.Close()

	var draws []*model.DrawPeriod
	for rows.Next() {
		d, err := scanDraw(rows)
		if err != nil {
			return nil, err
		}
		draws = append(draws, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating draws: %w", err)
	}
	return draws, nil
}
