package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"telegram-lottery-bot/internal/model"
	"telegram-lottery-bot/internal/pkg/db"
)

// Common errors for user persistence.
var (
	ErrUserNotFound = errors.New("user not found")
)

// UserRepository handles user data persistence.
type UserRepository struct {
	q db.Querier
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(q db.Querier) *UserRepository {
	return &UserRepository{q: q}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	return &UserRepository{q: tx}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.TelegramID, &u.Username, &u.FirstName, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

// GetByID retrieves a user by their Telegram ID.
func (r *UserRepository) GetByID(ctx context.Context, telegramID int64) (*model.User, error) {
	const query = `
		SELECT telegram_id, username, first_name, created_at, updated_at
		FROM users
		WHERE telegram_id = $1 AND is_deleted = FALSE
	`
	return scanUser(r.q.QueryRow(ctx, query, telegramID))
}

// Upsert creates the user on first sight and refreshes the display fields
// on later sightings.
func (r *UserRepository) Upsert(ctx context.Context, telegramID int64, username, firstName string) (*model.User, error) {
	const query = `
		INSERT INTO users (telegram_id, username, first_name, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (telegram_id) DO UPDATE
		SET username = EXCLUDED.username, first_name = EXCLUDED.first_name, updated_at = NOW()
		RETURNING telegram_id, username, first_name, created_at, updated_at
	`
	return scanUser(r.q.QueryRow(ctx, query, telegramID, username, firstName))
}
