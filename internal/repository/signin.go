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

// Common errors for sign-in persistence.
var (
	ErrSignInNotFound = errors.New("sign-in record not found")
	ErrAlreadySigned  = errors.New("already signed in today")
)

const signInColumns = `id, user_id, group_id, sign_date, points_earned, continuous_days, created_at`

// SignInRepository handles daily check-in records. The once-per-day rule
// is a storage constraint on (user, sign date), across all groups.
type SignInRepository struct {
	q db.Querier
}

// NewSignInRepository creates a new SignInRepository instance.
func NewSignInRepository(q db.Querier) *SignInRepository {
	return &SignInRepository{q: q}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *SignInRepository) WithTx(tx pgx.Tx) *SignInRepository {
	return &SignInRepository{q: tx}
}

func scanSignIn(row pgx.Row) (*model.SignInRecord, error) {
	var s model.SignInRecord
	err := row.Scan(&s.ID, &s.UserID, &s.GroupID, &s.SignDate, &s.PointsEarned, &s.ContinuousDays, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSignInNotFound
		}
		return nil, fmt.Errorf("failed to scan sign-in record: %w", err)
	}
	return &s, nil
}

// GetByUserAndDate returns the user's record for one calendar date.
func (r *SignInRepository) GetByUserAndDate(ctx context.Context, userID int64, date time.Time) (*model.SignInRecord, error) {
	const query = `
		SELECT ` + signInColumns + `
		FROM sign_in_records
		WHERE user_id = $1 AND sign_date = $2 AND is_deleted = FALSE
	`
	return scanSignIn(r.q.QueryRow(ctx, query, userID, date))
}

// Insert writes one day's record. A second insert for the same (user,
// date) fails with ErrAlreadySigned.
func (r *SignInRepository) Insert(ctx context.Context, s *model.SignInRecord) (*model.SignInRecord, error) {
	const query = `
		INSERT INTO sign_in_records (user_id, group_id, sign_date, points_earned, continuous_days, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING ` + signInColumns

	rec, err := scanSignIn(r.q.QueryRow(ctx, query, s.UserID, s.GroupID, s.SignDate, s.PointsEarned, s.ContinuousDays))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAlreadySigned
		}
		return nil, err
	}
	return rec, nil
}
