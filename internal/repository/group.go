package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"telegram-lottery-bot/internal/model"
	"telegram-lottery-bot/internal/pkg/db"
)

// Common errors for group persistence.
var (
	ErrGroupNotFound = errors.New("group not found")
)

const groupColumns = `group_id, title, enabled, min_bet, max_bet, created_at, updated_at`

// GroupRepository handles the persisted group registry. Registry edits
// survive restarts; the scheduler enumerates enabled groups each tick.
type GroupRepository struct {
	q db.Querier
}

// NewGroupRepository creates a new GroupRepository instance.
func NewGroupRepository(q db.Querier) *GroupRepository {
	return &GroupRepository{q: q}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *GroupRepository) WithTx(tx pgx.Tx) *GroupRepository {
	return &GroupRepository{q: tx}
}

func scanGroup(row pgx.Row) (*model.Group, error) {
	var g model.Group
	err := row.Scan(&g.GroupID, &g.Title, &g.Enabled, &g.MinBet, &g.MaxBet, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to scan group: %w", err)
	}
	return &g, nil
}

// GetByID retrieves a group by its chat ID.
func (r *GroupRepository) GetByID(ctx context.Context, groupID int64) (*model.Group, error) {
	const query = `
		SELECT ` + groupColumns + `
		FROM groups
		WHERE group_id = $1 AND is_deleted = FALSE
	`
	return scanGroup(r.q.QueryRow(ctx, query, groupID))
}

// Upsert registers a group with the given defaults, refreshing the title
// if it already exists.
func (r *GroupRepository) Upsert(ctx context.Context, groupID int64, title string, minBet, maxBet int64) (*model.Group, error) {
	const query = `
		INSERT INTO groups (group_id, title, enabled, min_bet, max_bet, created_at, updated_at)
		VALUES ($1, $2, TRUE, $3, $4, NOW(), NOW())
		ON CONFLICT (group_id) DO UPDATE
		SET title = EXCLUDED.title, updated_at = NOW()
		RETURNING ` + groupColumns

	return scanGroup(r.q.QueryRow(ctx, query, groupID, title, minBet, maxBet))
}

// SetEnabled flips the group's enabled flag.
func (r *GroupRepository) SetEnabled(ctx context.Context, groupID int64, enabled bool) error {
	const query = `
		UPDATE groups
		SET enabled = $2, updated_at = NOW()
		WHERE group_id = $1 AND is_deleted = FALSE
	`
	tag, err := r.q.Exec(ctx, query, groupID, enabled)
	if err != nil {
		return fmt.Errorf("failed to set group enabled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrGroupNotFound
	}
	return nil
}

// SetBetLimits updates the per-group bet bounds.
func (r *GroupRepository) SetBetLimits(ctx context.Context, groupID int64, minBet, maxBet int64) error {
	const query = `
		UPDATE groups
		SET min_bet = $2, max_bet = $3, updated_at = NOW()
		WHERE group_id = $1 AND is_deleted = FALSE
	`
	tag, err := r.q.Exec(ctx, query, groupID, minBet, maxBet)
	if err != nil {
		return fmt.Errorf("failed to set bet limits: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrGroupNotFound
	}
	return nil
}

// ListEnabled returns every enabled group.
func (r *GroupRepository) ListEnabled(ctx context.Context) ([]*model.Group, error) {
	const query = `
		SELECT ` + groupColumns + `
		FROM groups
		WHERE enabled = TRUE AND is_deleted = FALSE
		ORDER BY group_id
	`
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*model.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating groups: %w", err)
	}
	return groups, nil
}
