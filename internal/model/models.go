// Package model defines the data models for the lottery bot.
package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType distinguishes the two ledgers each user holds.
type AccountType int16

const (
	AccountPoints AccountType = 1 // whole-integer points
	AccountWallet AccountType = 2 // USDT, stored as integer scaled by 1e6
)

// USDTScale is the smallest-unit multiplier for wallet amounts.
const USDTScale int64 = 1_000_000

// PointsPerUSDT is the fixed conversion rate between the two ledgers.
const PointsPerUSDT int64 = 1000

// ErrBadUSDTAmount is returned for unparseable or non-positive amounts.
var ErrBadUSDTAmount = errors.New("invalid USDT amount")

// ParseUSDT converts a user-entered USDT string to wallet smallest
// units, truncating anything beyond six decimal places. Float parsing
// would lose cents on amounts like "0.1"; decimal arithmetic does not.
func ParseUSDT(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return 0, ErrBadUSDTAmount
	}
	return d.Shift(6).IntPart(), nil
}

// FormatUSDT renders wallet smallest units as a two-decimal USDT string.
func FormatUSDT(amount int64) string {
	return decimal.New(amount, -6).StringFixed(2)
}

// AccountStatus is the lifecycle state of an account.
type AccountStatus int16

const (
	AccountActive AccountStatus = 1
	AccountFrozen AccountStatus = 2
)

// Account is one ledger (points or wallet) belonging to one user.
// Invariant: AvailableAmount + FrozenAmount == TotalAmount at every
// committed state, and AvailableAmount >= 0.
type Account struct {
	ID              int64         `db:"id"`
	UserID          int64         `db:"user_id"`
	AccountType     AccountType   `db:"account_type"`
	TotalAmount     int64         `db:"total_amount"`
	AvailableAmount int64         `db:"available_amount"`
	FrozenAmount    int64         `db:"frozen_amount"`
	Status          AccountStatus `db:"status"`
	CreatedAt       time.Time     `db:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at"`
}

// TxKind is the closed enum of transaction kinds written to the ledger log.
type TxKind int16

const (
	TxKindRecharge   TxKind = 1
	TxKindConsume    TxKind = 2
	TxKindTransfer   TxKind = 3
	TxKindCheckin    TxKind = 4
	TxKindActivity   TxKind = 5
	TxKindFishCost   TxKind = 20
	TxKindFishWin    TxKind = 21
	TxKindFishLegend TxKind = 22

	TxKindLotteryBet      TxKind = 30
	TxKindLotteryWin      TxKind = 31
	TxKindLotteryCashback TxKind = 32

	TxKindMiningBuy    TxKind = 40
	TxKindMiningReward TxKind = 41
	TxKindMiningExpire TxKind = 42

	TxKindRedpacketSend TxKind = 50
	TxKindRedpacketGrab TxKind = 51 // reserved, not written on grab
)

// AccountTransaction is an append-only ledger log entry. Amount is signed
// (debit < 0, credit > 0); BalanceAfter records the account's available
// amount immediately after this entry.
type AccountTransaction struct {
	ID           int64       `db:"id"`
	AccountID    int64       `db:"account_id"`
	UserID       int64       `db:"user_id"`
	AccountType  AccountType `db:"account_type"`
	Kind         TxKind      `db:"kind"`
	Amount       int64       `db:"amount"`
	BalanceAfter int64       `db:"balance_after"`
	GroupID      *int64      `db:"group_id"`
	SourceID     *string     `db:"source_id"`
	Remarks      string      `db:"remarks"`
	CreatedAt    time.Time   `db:"created_at"`
}

// User is a known Telegram user.
type User struct {
	TelegramID int64     `db:"telegram_id"`
	Username   string    `db:"username"`
	FirstName  string    `db:"first_name"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Group is a chat group the bot runs games in.
type Group struct {
	GroupID   int64     `db:"group_id"`
	Title     string    `db:"title"`
	Enabled   bool      `db:"enabled"`
	MinBet    int64     `db:"min_bet"`
	MaxBet    int64     `db:"max_bet"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// DrawStatus is the lifecycle state of a draw period.
type DrawStatus int16

const (
	DrawOpen    DrawStatus = 1
	DrawSettled DrawStatus = 2
)

// GameTypeLottery is the canonical 0-9 number draw game.
const GameTypeLottery = "lottery"

// DrawPeriod is one betting window of the number-draw game in one group.
// At most one OPEN period exists per (group, game type).
type DrawPeriod struct {
	ID          int64      `db:"id"`
	GroupID     int64      `db:"group_id"`
	GameType    string     `db:"game_type"`
	DrawNumber  string     `db:"draw_number"`
	Result      *int16     `db:"result"`
	TotalBets   int64      `db:"total_bets"`
	TotalPayout int64      `db:"total_payout"`
	Profit      int64      `db:"profit"`
	Status      DrawStatus `db:"status"`
	DrawTime    time.Time  `db:"draw_time"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

// BetStatus is the lifecycle state of a bet.
type BetStatus int16

const (
	BetPlaced  BetStatus = 1
	BetSettled BetStatus = 2
)

// Bet is one user's wager on one bet type within one draw period.
// Unique on (group, game type, draw number, user, bet type).
// OddsAtBet is captured from config at placement, stored as odds x100,
// so later config edits do not alter historical payouts.
type Bet struct {
	ID                 int64     `db:"id"`
	GroupID            int64     `db:"group_id"`
	GameType           string    `db:"game_type"`
	DrawNumber         string    `db:"draw_number"`
	UserID             int64     `db:"user_id"`
	BetType            string    `db:"bet_type"`
	BetAmount          int64     `db:"bet_amount"`
	OddsAtBet          int64     `db:"odds_at_bet"`
	IsWin              *bool     `db:"is_win"`
	WinAmount          int64     `db:"win_amount"`
	CashbackAmount     int64     `db:"cashback_amount"`
	CashbackClaimed    bool      `db:"cashback_claimed"`
	CashbackExpired    bool      `db:"cashback_expired"`
	CashbackExpireTime time.Time `db:"cashback_expire_time"`
	Status             BetStatus `db:"status"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

// MiningCardStatus is the lifecycle state of a mining card.
type MiningCardStatus int16

const (
	MiningCardActive    MiningCardStatus = 1
	MiningCardCompleted MiningCardStatus = 2
)

// MiningCard is a time-limited contract yielding daily points.
// Invariants: EarnedPoints <= TotalPoints, and RemainingDays == 0 iff
// Status == MiningCardCompleted.
type MiningCard struct {
	ID             int64            `db:"id"`
	UserID         int64            `db:"user_id"`
	Tier           string           `db:"tier"`
	Cost           int64            `db:"cost"`
	DailyPoints    int64            `db:"daily_points"`
	TotalDays      int              `db:"total_days"`
	RemainingDays  int              `db:"remaining_days"`
	TotalPoints    int64            `db:"total_points"`
	EarnedPoints   int64            `db:"earned_points"`
	Status         MiningCardStatus `db:"status"`
	StartTime      time.Time        `db:"start_time"`
	EndTime        time.Time        `db:"end_time"`
	LastRewardDate *time.Time       `db:"last_reward_date"`
	CreatedAt      time.Time        `db:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at"`
}

// MiningRewardStatus is the claim state of a daily mining reward.
type MiningRewardStatus int16

const (
	MiningRewardPending MiningRewardStatus = 1
	MiningRewardClaimed MiningRewardStatus = 2
)

// MiningReward is one day's accrued yield of one card.
// At most one reward exists per (card, reward date).
type MiningReward struct {
	ID          int64              `db:"id"`
	CardID      int64              `db:"card_id"`
	UserID      int64              `db:"user_id"`
	Points      int64              `db:"points"`
	DayIndex    int                `db:"day_index"`
	RewardDate  time.Time          `db:"reward_date"`
	Status      MiningRewardStatus `db:"status"`
	ClaimedTime *time.Time         `db:"claimed_time"`
	CreatedAt   time.Time          `db:"created_at"`
}

// MiningStats is a per-user roll-up maintained at accrual and claim time.
type MiningStats struct {
	UserID       int64     `db:"user_id"`
	TotalCards   int64     `db:"total_cards"`
	TotalSpent   int64     `db:"total_spent"`
	TotalEarned  int64     `db:"total_earned"`
	TotalClaimed int64     `db:"total_claimed"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// SignInRecord is one user's daily check-in. Unique on (user, sign date);
// the date gate applies across all groups.
type SignInRecord struct {
	ID             int64     `db:"id"`
	UserID         int64     `db:"user_id"`
	GroupID        int64     `db:"group_id"`
	SignDate       time.Time `db:"sign_date"`
	PointsEarned   int64     `db:"points_earned"`
	ContinuousDays int       `db:"continuous_days"`
	CreatedAt      time.Time `db:"created_at"`
}

// RechargeOrderStatus is the lifecycle state of a recharge order.
type RechargeOrderStatus int16

const (
	RechargePending   RechargeOrderStatus = 1
	RechargeConfirmed RechargeOrderStatus = 2
	RechargeCancelled RechargeOrderStatus = 3
)

// RechargeOrder is a pending USDT top-up awaiting on-chain confirmation.
// Amount is in wallet smallest units (USDT x1e6). Memo is the unique
// payment tag the watcher matches incoming transfers against.
type RechargeOrder struct {
	ID          int64               `db:"id"`
	OrderID     string              `db:"order_id"`
	UserID      int64               `db:"user_id"`
	Amount      int64               `db:"amount"`
	Memo        string              `db:"memo"`
	Status      RechargeOrderStatus `db:"status"`
	TxHash      *string             `db:"tx_hash"`
	ConfirmedAt *time.Time          `db:"confirmed_at"`
	CreatedAt   time.Time           `db:"created_at"`
	UpdatedAt   time.Time           `db:"updated_at"`
}
