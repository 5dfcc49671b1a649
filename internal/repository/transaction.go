package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"telegram-lottery-bot/internal/model"
	"telegram-lottery-bot/internal/pkg/db"
)

const txColumns = `id, account_id, user_id, account_type, kind, amount, balance_after, group_id, source_id, remarks, created_at`

// TransactionRepository handles the append-only ledger log.
type TransactionRepository struct {
	q db.Querier
}

// NewTransactionRepository creates a new TransactionRepository instance.
func NewTransactionRepository(q db.Querier) *TransactionRepository {
	return &TransactionRepository{q: q}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *TransactionRepository) WithTx(tx pgx.Tx) *TransactionRepository {
	return &TransactionRepository{q: tx}
}

func scanTransaction(row pgx.Row) (*model.AccountTransaction, error) {
	var t model.AccountTransaction
	err := row.Scan(
		&t.ID,
		&t.AccountID,
		&t.UserID,
		&t.AccountType,
		&t.Kind,
		&t.Amount,
		&t.BalanceAfter,
		&t.GroupID,
		&t.SourceID,
		&t.Remarks,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	return &t, nil
}

// Append writes one log entry. The log is never updated or deleted.
func (r *TransactionRepository) Append(ctx context.Context, t *model.AccountTransaction) (*model.AccountTransaction, error) {
	const query = `
		INSERT INTO account_transactions (account_id, user_id, account_type, kind, amount, balance_after, group_id, source_id, remarks, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING ` + txColumns

	return scanTransaction(r.q.QueryRow(ctx, query,
		t.AccountID, t.UserID, t.AccountType, t.Kind, t.Amount, t.BalanceAfter, t.GroupID, t.SourceID, t.Remarks))
}

func (r *TransactionRepository) queryMany(ctx context.Context, query string, args ...any) ([]*model.AccountTransaction, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []*model.AccountTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return out, nil
}

// ListByAccount returns an account's log entries in ascending id order.
func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID int64, limit int) ([]*model.AccountTransaction, error) {
	const query = `
		SELECT ` + txColumns + `
		FROM account_transactions
		WHERE account_id = $1
		ORDER BY id ASC
		LIMIT $2
	`
	return r.queryMany(ctx, query, accountID, limit)
}

// ListRecentByUserAndKinds returns a user's newest entries filtered by kind.
func (r *TransactionRepository) ListRecentByUserAndKinds(ctx context.Context, userID int64, kinds []model.TxKind, limit int) ([]*model.AccountTransaction, error) {
	const query = `
		SELECT ` + txColumns + `
		FROM account_transactions
		WHERE user_id = $1 AND kind = ANY($2)
		ORDER BY id DESC
		LIMIT $3
	`
	ks := make([]int16, len(kinds))
	for i, k := range kinds {
		ks[i] = int16(k)
	}
	return r.queryMany(ctx, query, userID, ks, limit)
}

// SumByAccount returns the signed sum of all entries for an account.
// Used by the invariant audit: the sum must equal the account's
// available amount.
func (r *TransactionRepository) SumByAccount(ctx context.Context, accountID int64) (int64, error) {
	const query = `
		SELECT COALESCE(SUM(amount), 0)
		FROM account_transactions
		WHERE account_id = $1
	`
	var sum int64
	if err := r.q.QueryRow(ctx, query, accountID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum transactions: %w", err)
	}
	return sum, nil
}
