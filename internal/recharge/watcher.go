package recharge

import (
	"context"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog"

	"telegram-lottery-bot/internal/config"
	"telegram-lottery-bot/internal/model"
	"telegram-lottery-bot/internal/repository"
)

// Transfer is one incoming on-chain payment as reported by the chain
// backend. Amount is in wallet smallest units.
type Transfer struct {
	TxHash string
	Memo   string
	Amount int64
	Time   time.Time
}

// ChainClient reads incoming transfers to the deposit wallet. The
// concrete implementation lives at the composition root.
type ChainClient interface {
	IncomingTransfers(ctx context.Context, wallet string, since time.Time) ([]Transfer, error)
}

// Watcher polls the chain and settles pending orders whose memo and
// amount match an observed transfer.
type Watcher struct {
	svc    *Service
	orders *repository.RechargeRepository
	client ChainClient
	cfg    config.RechargeConfig
	log    zerolog.Logger

	// OnConfirmed lets the chat layer tell the user. May be nil.
	OnConfirmed func(order *model.RechargeOrder)

	since    time.Time
	stopOnce sync.Once
	stopped  chan struct{}
}

func NewWatcher(svc *Service, orders *repository.RechargeRepository, client ChainClient,
	cfg config.RechargeConfig, logger zerolog.Logger) *Watcher {
	return &Watcher{
		svc:     svc,
		orders:  orders,
		client:  client,
		cfg:     cfg,
		log:     logger.With().Str("component", "recharge_watcher").Logger(),
		since:   time.Now().Add(-1 * time.Hour),
		stopped: make(chan struct{}),
	}
}

func (w *Watcher) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopped) })
}

func (w *Watcher) run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.log.Info().Dur("interval", w.cfg.PollInterval).Msg("Recharge watcher started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopped:
			return
		case <-ticker.C:
			if err := w.poll(ctx); err != nil {
				w.log.Error().Err(err).Msg("Recharge poll failed")
			}
		}
	}
}

// poll fetches new transfers and matches them against pending orders by
// memo. The transfer must cover the order amount in full.
func (w *Watcher) poll(ctx context.Context) error {
	var transfers []Transfer
	err := retry.Do(
		func() error {
			var err error
			transfers, err = w.client.IncomingTransfers(ctx, w.cfg.WalletAddr, w.since)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return err
	}
	if len(transfers) == 0 {
		return nil
	}

	pending, err := w.orders.ListPending(ctx, 200)
	if err != nil {
		return err
	}
	byMemo := make(map[string]*model.RechargeOrder, len(pending))
	for _, o := range pending {
		byMemo[o.Memo] = o
	}

	for _, tr := range transfers {
		if tr.Time.After(w.since) {
			w.since = tr.Time
		}
		order, ok := byMemo[tr.Memo]
		if !ok || tr.Amount < order.Amount {
			continue
		}
		confirmed, err := w.svc.Confirm(ctx, order.OrderID, tr.TxHash)
		if err != nil {
			// Already confirmed by a previous poll round is fine.
			w.log.Warn().Err(err).Str("order_id", order.OrderID).Msg("Order confirmation skipped")
			continue
		}
		delete(byMemo, tr.Memo)
		if w.OnConfirmed != nil {
			w.OnConfirmed(confirmed)
		}
	}
	return nil
}
