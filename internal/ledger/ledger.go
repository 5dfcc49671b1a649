// Package ledger implements the dual-account ledger engine. Every
// observable balance change in the system goes through it, inside a
// caller-supplied unit of work.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"telegram-lottery-bot/internal/model"
	"telegram-lottery-bot/internal/repository"
)

// Expected, recoverable ledger errors surfaced to callers.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountFrozen     = errors.New("account frozen")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrSameAccount       = errors.New("transfer endpoints must differ")
)

// Source carries the optional correlation fields stamped on a log entry.
type Source struct {
	GroupID  *int64
	SourceID *string
	Remarks  string
}

// Engine mutates accounts and appends to the transaction log. All
// methods take the unit-of-work transaction they must run inside;
// account rows are acquired with row-level exclusive locks, so mutations
// on one account serialize in commit order.
type Engine struct {
	accounts *repository.AccountRepository
	txlog    *repository.TransactionRepository
}

// NewEngine creates a ledger engine over the given repositories.
func NewEngine(accounts *repository.AccountRepository, txlog *repository.TransactionRepository) *Engine {
	return &Engine{accounts: accounts, txlog: txlog}
}

// GetOrCreateAccount returns the user's account of the given type,
// creating it with zero balances on first need. Idempotent.
func (e *Engine) GetOrCreateAccount(ctx context.Context, tx pgx.Tx, userID int64, accountType model.AccountType) (*model.Account, error) {
	accounts := e.accounts.WithTx(tx)

	account, err := accounts.GetByUserAndType(ctx, userID, accountType)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, err
	}

	account, err = accounts.Create(ctx, userID, accountType)
	if err != nil {
		// A concurrent creation may have won the unique race.
		account, err = accounts.GetByUserAndType(ctx, userID, accountType)
		if err != nil {
			return nil, fmt.Errorf("failed to create account: %w", err)
		}
	}
	return account, nil
}

// Debit removes amount from the account's available and total balances
// and appends a log entry with a negative amount. Fails with
// ErrInsufficientFunds or ErrAccountFrozen without mutating anything.
func (e *Engine) Debit(ctx context.Context, tx pgx.Tx, userID int64, accountType model.AccountType, amount int64, kind model.TxKind, src Source) (*model.AccountTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	account, err := e.accounts.WithTx(tx).GetForUpdateByUserAndType(ctx, userID, accountType)
	if err != nil {
		return nil, err
	}
	if account.Status == model.AccountFrozen {
		return nil, ErrAccountFrozen
	}
	if account.AvailableAmount < amount {
		return nil, ErrInsufficientFunds
	}

	account.AvailableAmount -= amount
	account.TotalAmount -= amount
	return e.apply(ctx, tx, account, -amount, kind, src)
}

// Credit adds amount to the account's available and total balances and
// appends a log entry with a positive amount.
func (e *Engine) Credit(ctx context.Context, tx pgx.Tx, userID int64, accountType model.AccountType, amount int64, kind model.TxKind, src Source) (*model.AccountTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	account, err := e.accounts.WithTx(tx).GetForUpdateByUserAndType(ctx, userID, accountType)
	if err != nil {
		return nil, err
	}
	if account.Status == model.AccountFrozen {
		return nil, ErrAccountFrozen
	}

	account.AvailableAmount += amount
	account.TotalAmount += amount
	return e.apply(ctx, tx, account, amount, kind, src)
}

// CreditNoLog adds amount to the account without appending a log entry.
// The red-packet grab path uses it; every other credit must go through
// Credit so the log stays a complete history.
func (e *Engine) CreditNoLog(ctx context.Context, tx pgx.Tx, userID int64, accountType model.AccountType, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	account, err := e.accounts.WithTx(tx).GetForUpdateByUserAndType(ctx, userID, accountType)
	if err != nil {
		return err
	}
	if account.Status == model.AccountFrozen {
		return ErrAccountFrozen
	}

	account.AvailableAmount += amount
	account.TotalAmount += amount
	e.assertBalanced(account)
	return e.accounts.WithTx(tx).UpdateBalances(ctx, account.ID, account.TotalAmount, account.AvailableAmount, account.FrozenAmount)
}

// Freeze moves amount from available to frozen; total is unchanged and
// no log entry is written.
func (e *Engine) Freeze(ctx context.Context, tx pgx.Tx, userID int64, accountType model.AccountType, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	account, err := e.accounts.WithTx(tx).GetForUpdateByUserAndType(ctx, userID, accountType)
	if err != nil {
		return err
	}
	if account.Status == model.AccountFrozen {
		return ErrAccountFrozen
	}
	if account.AvailableAmount < amount {
		return ErrInsufficientFunds
	}

	account.AvailableAmount -= amount
	account.FrozenAmount += amount
	e.assertBalanced(account)
	return e.accounts.WithTx(tx).UpdateBalances(ctx, account.ID, account.TotalAmount, account.AvailableAmount, account.FrozenAmount)
}

// Unfreeze moves amount from frozen back to available.
func (e *Engine) Unfreeze(ctx context.Context, tx pgx.Tx, userID int64, accountType model.AccountType, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	account, err := e.accounts.WithTx(tx).GetForUpdateByUserAndType(ctx, userID, accountType)
	if err != nil {
		return err
	}
	if account.FrozenAmount < amount {
		return ErrInsufficientFunds
	}

	account.AvailableAmount += amount
	account.FrozenAmount -= amount
	e.assertBalanced(account)
	return e.accounts.WithTx(tx).UpdateBalances(ctx, account.ID, account.TotalAmount, account.AvailableAmount, account.FrozenAmount)
}

// Transfer atomically debits src and credits dst with the same kind and
// a shared source id. Row locks are taken in ascending account id so
// opposing transfers cannot deadlock.
func (e *Engine) Transfer(ctx context.Context, tx pgx.Tx, fromUser, toUser int64, accountType model.AccountType, amount int64, kind model.TxKind, src Source) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	accounts := e.accounts.WithTx(tx)
	fromAcct, err := accounts.GetByUserAndType(ctx, fromUser, accountType)
	if err != nil {
		return err
	}
	toAcct, err := accounts.GetByUserAndType(ctx, toUser, accountType)
	if err != nil {
		return err
	}
	if fromAcct.ID == toAcct.ID {
		return ErrSameAccount
	}

	// Canonical lock order: ascending account id.
	first, second := fromAcct.ID, toAcct.ID
	if first > second {
		first, second = second, first
	}
	if _, err := accounts.GetForUpdate(ctx, first); err != nil {
		return err
	}
	if _, err := accounts.GetForUpdate(ctx, second); err != nil {
		return err
	}

	if _, err := e.Debit(ctx, tx, fromUser, accountType, amount, kind, src); err != nil {
		return err
	}
	if _, err := e.Credit(ctx, tx, toUser, accountType, amount, kind, src); err != nil {
		return err
	}
	return nil
}

// Balance returns the user's account of the given type without creating it.
func (e *Engine) Balance(ctx context.Context, tx pgx.Tx, userID int64, accountType model.AccountType) (*model.Account, error) {
	return e.accounts.WithTx(tx).GetByUserAndType(ctx, userID, accountType)
}

// apply persists mutated balances and appends the log entry.
func (e *Engine) apply(ctx context.Context, tx pgx.Tx, account *model.Account, signedAmount int64, kind model.TxKind, src Source) (*model.AccountTransaction, error) {
	e.assertBalanced(account)

	if err := e.accounts.WithTx(tx).UpdateBalances(ctx, account.ID, account.TotalAmount, account.AvailableAmount, account.FrozenAmount); err != nil {
		return nil, err
	}

	entry, err := e.txlog.WithTx(tx).Append(ctx, &model.AccountTransaction{
		AccountID:    account.ID,
		UserID:       account.UserID,
		AccountType:  account.AccountType,
		Kind:         kind,
		Amount:       signedAmount,
		BalanceAfter: account.AvailableAmount,
		GroupID:      src.GroupID,
		SourceID:     src.SourceID,
		Remarks:      src.Remarks,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to append transaction: %w", err)
	}
	return entry, nil
}

// assertBalanced panics when the account identity is broken. A violation
// means corrupted state, not a user error; the unit of work rolls back
// and operators get the log line.
func (e *Engine) assertBalanced(account *model.Account) {
	if account.AvailableAmount < 0 || account.FrozenAmount < 0 ||
		account.AvailableAmount+account.FrozenAmount != account.TotalAmount {
		log.Error().
			Int64("account_id", account.ID).
			Int64("total", account.TotalAmount).
			Int64("available", account.AvailableAmount).
			Int64("frozen", account.FrozenAmount).
			Msg("Account balance invariant violated")
		panic(fmt.Sprintf("ledger: balance invariant violated for account %d", account.ID))
	}
}
