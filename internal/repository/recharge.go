package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"telegram-lottery-bot/internal/model"
	"telegram-lottery-bot/internal/pkg/db"
)

// Common errors for recharge-order persistence.
var (
	ErrRechargeOrderNotFound = errors.New("recharge order not found")
)

const rechargeColumns = `id, order_id, user_id, amount, memo, status, tx_hash, confirmed_at, created_at, updated_at`

// RechargeRepository handles recharge-order persistence.
type RechargeRepository struct {
	q db.Querier
}

// NewRechargeRepository creates a new RechargeRepository instance.
func NewRechargeRepository(q db.Querier) *RechargeRepository {
	return &RechargeRepository{q: q}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *RechargeRepository) WithTx(tx pgx.Tx) *RechargeRepository {
	return &RechargeRepository{q: tx}
}

func scanRecharge(row pgx.Row) (*model.RechargeOrder, error) {
	var o model.RechargeOrder
	err := row.Scan(
		&o.ID,
		&o.OrderID,
		&o.UserID,
		&o.Amount,
		&o.Memo,
		&o.Status,
		&o.TxHash,
		&o.ConfirmedAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRechargeOrderNotFound
		}
		return nil, fmt.Errorf("failed to scan recharge order: %w", err)
	}
	return &o, nil
}

// Insert creates a PENDING order.
func (r *RechargeRepository) Insert(ctx context.Context, o *model.RechargeOrder) (*model.RechargeOrder, error) {
	const query = `
		INSERT INTO recharge_orders (order_id, user_id, amount, memo, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING ` + rechargeColumns

	return scanRecharge(r.q.QueryRow(ctx, query, o.OrderID, o.UserID, o.Amount, o.Memo, model.RechargePending))
}

// GetPendingByUser returns the user's newest pending order.
func (r *RechargeRepository) GetPendingByUser(ctx context.Context, userID int64) (*model.RechargeOrder, error) {
	const query = `
		SELECT ` + rechargeColumns + `
		FROM recharge_orders
		WHERE user_id = $1 AND status = $2 AND is_deleted = FALSE
		ORDER BY id DESC
		LIMIT 1
	`
	return scanRecharge(r.q.QueryRow(ctx, query, userID, model.RechargePending))
}

// ListPending returns all pending orders for the watcher to poll.
func (r *RechargeRepository) ListPending(ctx context.Context, limit int) ([]*model.RechargeOrder, error) {
	const query = `
		SELECT ` + rechargeColumns + `
		FROM recharge_orders
		WHERE status = $1 AND is_deleted = FALSE
		ORDER BY id ASC
		LIMIT $2
	`
	rows, err := r.q.Query(ctx, query, model.RechargePending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending orders: %w", err)
	}
	defer rows.Close()

	var orders []*model.RechargeOrder
	for rows.Next() {
		o, err := scanRecharge(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	return orders, nil
}

// LockPendingByOrderID loads a pending order under a row lock; the
// confirm path runs behind it so an order is credited exactly once.
func (r *RechargeRepository) LockPendingByOrderID(ctx context.Context, orderID string) (*model.RechargeOrder, error) {
	const query = `
		SELECT ` + rechargeColumns + `
		FROM recharge_orders
		WHERE order_id = $1 AND status = $2 AND is_deleted = FALSE
		FOR UPDATE
	`
	return scanRecharge(r.q.QueryRow(ctx, query, orderID, model.RechargePending))
}

// MarkConfirmed finalizes a confirmed order with its chain transaction hash.
func (r *RechargeRepository) MarkConfirmed(ctx context.Context, orderID string, txHash string, at time.Time) error {
	const query = `
		UPDATE recharge_orders
		SET status = $2, tx_hash = $3, confirmed_at = $4, updated_at = NOW()
		WHERE order_id = $1 AND status = $5
	`
	tag, err := r.q.Exec(ctx, query, orderID, model.RechargeConfirmed, txHash, at, model.RechargePending)
	if err != nil {
		return fmt.Errorf("failed to confirm order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRechargeOrderNotFound
	}
	return nil
}

// MarkCancelled cancels a pending order.
func (r *RechargeRepository) MarkCancelled(ctx context.Context, orderID string) error {
	const query = `
		UPDATE recharge_orders
		SET status = $2, updated_at = NOW()
		WHERE order_id = $1 AND status = $3
	`
	tag, err := r.q.Exec(ctx, query, orderID, model.RechargeCancelled, model.RechargePending)
	if err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRechargeOrderNotFound
	}
	return nil
}
