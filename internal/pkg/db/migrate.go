package db

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// migrations holds the full schema. Every statement is idempotent so
// Migrate can run on every startup.
var migrations = []struct {
	name string
	sql  string
}{
	{"users", `
		CREATE TABLE IF NOT EXISTS users (
			telegram_id BIGINT PRIMARY KEY,
			username VARCHAR(255) NOT NULL DEFAULT '',
			first_name VARCHAR(255) NOT NULL DEFAULT '',
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			deleted_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`},
	{"groups", `
		CREATE TABLE IF NOT EXISTS groups (
			group_id BIGINT PRIMARY KEY,
			title VARCHAR(255) NOT NULL DEFAULT '',
			enabled BOOLEAN NOT NULL DEFAULT FALSE,
			min_bet BIGINT NOT NULL DEFAULT 0,
			max_bet BIGINT NOT NULL DEFAULT 0,
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			deleted_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`},
	{"accounts", `
		CREATE TABLE IF NOT EXISTS accounts (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			account_type SMALLINT NOT NULL,
			total_amount BIGINT NOT NULL DEFAULT 0 CHECK (total_amount >= 0),
			available_amount BIGINT NOT NULL DEFAULT 0 CHECK (available_amount >= 0),
			frozen_amount BIGINT NOT NULL DEFAULT 0 CHECK (frozen_amount >= 0),
			status SMALLINT NOT NULL DEFAULT 1,
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			deleted_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, account_type)
		);
	`},
	{"account_transactions", `
		CREATE TABLE IF NOT EXISTS account_transactions (
			id BIGSERIAL PRIMARY KEY,
			account_id BIGINT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL,
			account_type SMALLINT NOT NULL,
			kind SMALLINT NOT NULL,
			amount BIGINT NOT NULL,
			balance_after BIGINT NOT NULL,
			group_id BIGINT,
			source_id VARCHAR(64),
			remarks VARCHAR(255) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_account_tx_account ON account_transactions(account_id, id);
		CREATE INDEX IF NOT EXISTS idx_account_tx_user_kind ON account_transactions(user_id, kind, id DESC);
	`},
	{"lottery_draws", `
		CREATE TABLE IF NOT EXISTS lottery_draws (
			id BIGSERIAL PRIMARY KEY,
			group_id BIGINT NOT NULL,
			game_type VARCHAR(32) NOT NULL,
			draw_number VARCHAR(32) NOT NULL,
			result SMALLINT,
			total_bets BIGINT NOT NULL DEFAULT 0,
			total_payout BIGINT NOT NULL DEFAULT 0,
			profit BIGINT NOT NULL DEFAULT 0,
			status SMALLINT NOT NULL DEFAULT 1,
			draw_time TIMESTAMPTZ NOT NULL,
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			deleted_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (group_id, game_type, draw_number)
		);
		CREATE UNIQUE INDEX IF NOT EXISTS uq_lottery_draws_open
			ON lottery_draws (group_id, game_type) WHERE status = 1;
	`},
	{"lottery_bets", `
		CREATE TABLE IF NOT EXISTS lottery_bets (
			id BIGSERIAL PRIMARY KEY,
			group_id BIGINT NOT NULL,
			game_type VARCHAR(32) NOT NULL,
			draw_number VARCHAR(32) NOT NULL,
			user_id BIGINT NOT NULL,
			bet_type VARCHAR(16) NOT NULL,
			bet_amount BIGINT NOT NULL CHECK (bet_amount > 0),
			odds_at_bet BIGINT NOT NULL,
			is_win BOOLEAN,
			win_amount BIGINT NOT NULL DEFAULT 0,
			cashback_amount BIGINT NOT NULL DEFAULT 0,
			cashback_claimed BOOLEAN NOT NULL DEFAULT FALSE,
			cashback_expired BOOLEAN NOT NULL DEFAULT FALSE,
			cashback_expire_time TIMESTAMPTZ NOT NULL,
			status SMALLINT NOT NULL DEFAULT 1,
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			deleted_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (group_id, game_type, draw_number, user_id, bet_type)
		);
		CREATE INDEX IF NOT EXISTS idx_lottery_bets_draw ON lottery_bets(group_id, game_type, draw_number, id);
		CREATE INDEX IF NOT EXISTS idx_lottery_bets_cashback ON lottery_bets(user_id, cashback_claimed, cashback_expire_time);
	`},
	{"mining_cards", `
		CREATE TABLE IF NOT EXISTS mining_cards (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			tier VARCHAR(16) NOT NULL,
			cost BIGINT NOT NULL,
			daily_points BIGINT NOT NULL,
			total_days INT NOT NULL,
			remaining_days INT NOT NULL,
			total_points BIGINT NOT NULL,
			earned_points BIGINT NOT NULL DEFAULT 0,
			status SMALLINT NOT NULL DEFAULT 1,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			last_reward_date DATE,
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			deleted_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_mining_cards_user ON mining_cards(user_id, id DESC);
		CREATE INDEX IF NOT EXISTS idx_mining_cards_due ON mining_cards(status, last_reward_date);
	`},
	{"mining_rewards", `
		CREATE TABLE IF NOT EXISTS mining_rewards (
			id BIGSERIAL PRIMARY KEY,
			card_id BIGINT NOT NULL REFERENCES mining_cards(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL,
			points BIGINT NOT NULL,
			day_index INT NOT NULL,
			reward_date DATE NOT NULL,
			status SMALLINT NOT NULL DEFAULT 1,
			claimed_time TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (card_id, reward_date)
		);
		CREATE INDEX IF NOT EXISTS idx_mining_rewards_pending ON mining_rewards(user_id, status);
	`},
	{"mining_statistics", `
		CREATE TABLE IF NOT EXISTS mining_statistics (
			user_id BIGINT PRIMARY KEY,
			total_cards BIGINT NOT NULL DEFAULT 0,
			total_spent BIGINT NOT NULL DEFAULT 0,
			total_earned BIGINT NOT NULL DEFAULT 0,
			total_claimed BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`},
	{"sign_in_records", `
		CREATE TABLE IF NOT EXISTS sign_in_records (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			group_id BIGINT NOT NULL,
			sign_date DATE NOT NULL,
			points_earned BIGINT NOT NULL,
			continuous_days INT NOT NULL,
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			deleted_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, sign_date)
		);
	`},
	{"recharge_orders", `
		CREATE TABLE IF NOT EXISTS recharge_orders (
			id BIGSERIAL PRIMARY KEY,
			order_id VARCHAR(64) NOT NULL UNIQUE,
			user_id BIGINT NOT NULL,
			amount BIGINT NOT NULL CHECK (amount > 0),
			memo VARCHAR(32) NOT NULL UNIQUE,
			status SMALLINT NOT NULL DEFAULT 1,
			tx_hash VARCHAR(128),
			confirmed_at TIMESTAMPTZ,
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			deleted_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_recharge_pending ON recharge_orders(status, user_id);
	`},
}

// Migrate applies the full schema against q. Safe to call concurrently
// with a running instance; CREATE IF NOT EXISTS makes it a no-op after
// first run.
func Migrate(ctx context.Context, q Querier) error {
	for _, m := range migrations {
		if _, err := q.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %q failed: %w", m.name, err)
		}
		log.Debug().Str("table", m.name).Msg("Migration applied")
	}
	return nil
}
