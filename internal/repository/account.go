// Package repository provides data access layer implementations.
// Every repository is bound to a db.Querier; WithTx rebinds it to a
// transaction so the same queries run inside a unit of work.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"telegram-lottery-bot/internal/model"
	"telegram-lottery-bot/internal/pkg/db"
)

// Common errors for account persistence.
var (
	ErrAccountNotFound = errors.New("account not found")
)

const accountColumns = `id, user_id, account_type, total_amount, available_amount, frozen_amount, status, created_at, updated_at`

// AccountRepository handles account row persistence.
type AccountRepository struct {
	q db.Querier
}

// NewAccountRepository creates a new AccountRepository instance.
func NewAccountRepository(q db.Querier) *AccountRepository {
	return &AccountRepository{q: q}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *AccountRepository) WithTx(tx pgx.Tx) *AccountRepository {
	return &AccountRepository{q: tx}
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.AccountType,
		&a.TotalAmount,
		&a.AvailableAmount,
		&a.FrozenAmount,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	return &a, nil
}

// Create inserts a new account row with zero balances and ACTIVE status.
func (r *AccountRepository) Create(ctx context.Context, userID int64, accountType model.AccountType) (*model.Account, error) {
	const query = `
		INSERT INTO accounts (user_id, account_type, total_amount, available_amount, frozen_amount, status, created_at, updated_at)
		VALUES ($1, $2, 0, 0, 0, $3, NOW(), NOW())
		RETURNING ` + accountColumns

	return scanAccount(r.q.QueryRow(ctx, query, userID, accountType, model.AccountActive))
}

// GetByUserAndType retrieves a user's account of the given type.
// Returns ErrAccountNotFound if it does not exist.
func (r *AccountRepository) GetByUserAndType(ctx context.Context, userID int64, accountType model.AccountType) (*model.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE user_id = $1 AND account_type = $2 AND is_deleted = FALSE
	`
	return scanAccount(r.q.QueryRow(ctx, query, userID, accountType))
}

// GetForUpdate loads an account row under a row-level exclusive lock.
// Must run inside a transaction; all mutations to one account serialize
// behind this lock.
func (r *AccountRepository) GetForUpdate(ctx context.Context, accountID int64) (*model.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE id = $1 AND is_deleted = FALSE
		FOR UPDATE
	`
	return scanAccount(r.q.QueryRow(ctx, query, accountID))
}

// GetForUpdateByUserAndType locks a user's account of the given type.
func (r *AccountRepository) GetForUpdateByUserAndType(ctx context.Context, userID int64, accountType model.AccountType) (*model.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE user_id = $1 AND account_type = $2 AND is_deleted = FALSE
		FOR UPDATE
	`
	return scanAccount(r.q.QueryRow(ctx, query, userID, accountType))
}

// UpdateBalances writes the three balance columns of a locked account.
func (r *AccountRepository) UpdateBalances(ctx context.Context, accountID int64, total, available, frozen int64) error {
	const query = `
		UPDATE accounts
		SET total_amount = $2, available_amount = $3, frozen_amount = $4, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.q.Exec(ctx, query, accountID, total, available, frozen)
	if err != nil {
		return fmt.Errorf("failed to update balances: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// SetStatus updates the account status.
func (r *AccountRepository) SetStatus(ctx context.Context, accountID int64, status model.AccountStatus) error {
	const query = `
		UPDATE accounts
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.q.Exec(ctx, query, accountID, status)
	if err != nil {
		return fmt.Errorf("failed to set account status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}
