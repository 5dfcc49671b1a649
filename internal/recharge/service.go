// Package recharge implements USDT top-up orders and the on-chain
// confirmation watcher. The chain itself sits behind a ChainClient.
package recharge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"telegram-lottery-bot/internal/ledger"
	"telegram-lottery-bot/internal/model"
	"telegram-lottery-bot/internal/pkg/db"
	"telegram-lottery-bot/internal/repository"
)

var (
	ErrPendingOrderExists = errors.New("a pending recharge order already exists")
	ErrNoPendingOrder     = errors.New("no pending recharge order")
	ErrInvalidAmount      = errors.New("recharge amount must be positive")
)

// Service manages recharge order lifecycle.
type Service struct {
	pool   *db.Pool
	ledger *ledger.Engine
	orders *repository.RechargeRepository
	log    zerolog.Logger
}

func NewService(pool *db.Pool, eng *ledger.Engine, orders *repository.RechargeRepository, logger zerolog.Logger) *Service {
	return &Service{
		pool:   pool,
		ledger: eng,
		orders: orders,
		log:    logger.With().Str("component", "recharge").Logger(),
	}
}

// newMemo derives the payment tag the user must attach to the transfer.
func newMemo() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

// CreateOrder opens a new pending order. A user holds at most one
// pending order at a time.
func (s *Service) CreateOrder(ctx context.Context, userID, amount int64) (*model.RechargeOrder, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	if _, err := s.orders.GetPendingByUser(ctx, userID); err == nil {
		return nil, ErrPendingOrderExists
	} else if !errors.Is(err, repository.ErrRechargeOrderNotFound) {
		return nil, err
	}

	order, err := s.orders.Insert(ctx, &model.RechargeOrder{
		OrderID: uuid.NewString(),
		UserID:  userID,
		Amount:  amount,
		Memo:    newMemo(),
		Status:  model.RechargePending,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("user_id", userID).
		Str("order_id", order.OrderID).
		Int64("amount", amount).
		Msg("Recharge order created")
	return order, nil
}

// Pending returns the user's open order.
func (s *Service) Pending(ctx context.Context, userID int64) (*model.RechargeOrder, error) {
	order, err := s.orders.GetPendingByUser(ctx, userID)
	if errors.Is(err, repository.ErrRechargeOrderNotFound) {
		return nil, ErrNoPendingOrder
	}
	return order, err
}

// Cancel closes the user's pending order without crediting anything.
func (s *Service) Cancel(ctx context.Context, userID int64) error {
	order, err := s.Pending(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.orders.MarkCancelled(ctx, order.OrderID); err != nil {
		return err
	}
	s.log.Info().Int64("user_id", userID).Str("order_id", order.OrderID).Msg("Recharge order cancelled")
	return nil
}

// Confirm settles an order against an observed transfer: the order row
// is locked, flipped to CONFIRMED, and the wallet credited — one
// transaction, so a watcher crash never double-credits.
func (s *Service) Confirm(ctx context.Context, orderID, txHash string) (*model.RechargeOrder, error) {
	var confirmed *model.RechargeOrder
	err := db.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
		orders := s.orders.WithTx(tx)
		order, err := orders.LockPendingByOrderID(ctx, orderID)
		if err != nil {
			return err
		}

		now := time.Now()
		if err := orders.MarkConfirmed(ctx, order.OrderID, txHash, now); err != nil {
			return err
		}

		if _, err := s.ledger.GetOrCreateAccount(ctx, tx, order.UserID, model.AccountWallet); err != nil {
			return err
		}
		src := ledger.Source{
			SourceID: &order.OrderID,
			Remarks:  fmt.Sprintf("充值到账 %s USDT", model.FormatUSDT(order.Amount)),
		}
		if _, err := s.ledger.Credit(ctx, tx, order.UserID, model.AccountWallet, order.Amount, model.TxKindRecharge, src); err != nil {
			return err
		}

		order.Status = model.RechargeConfirmed
		order.TxHash = &txHash
		order.ConfirmedAt = &now
		confirmed = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("order_id", confirmed.OrderID).
		Int64("user_id", confirmed.UserID).
		Str("tx_hash", txHash).
		Msg("Recharge confirmed")
	return confirmed, nil
}
