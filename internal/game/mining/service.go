package mining

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"telegram-lottery-bot/internal/config"
	"telegram-lottery-bot/internal/ledger"
	"telegram-lottery-bot/internal/model"
	"telegram-lottery-bot/internal/pkg/db"
	"telegram-lottery-bot/internal/repository"
)

var (
	ErrUnknownCardTier = errors.New("unknown card tier")
	ErrMaxCardsReached = errors.New("active card limit reached for this tier")
	ErrNothingToClaim  = errors.New("no pending mining rewards")
)

// Service runs card purchases, the daily accrual tick, and reward claims.
// Accrual days follow the configured location.
type Service struct {
	pool   *db.Pool
	ledger *ledger.Engine
	cards  *repository.MiningRepository
	cfg    config.MiningConfig
	loc    *time.Location
	log    zerolog.Logger
}

func NewService(pool *db.Pool, eng *ledger.Engine, cards *repository.MiningRepository,
	cfg config.MiningConfig, loc *time.Location, logger zerolog.Logger) *Service {
	return &Service{
		pool:   pool,
		ledger: eng,
		cards:  cards,
		cfg:    cfg,
		loc:    loc,
		log:    logger.With().Str("game", "mining").Logger(),
	}
}

// Purchase buys one card of the given tier: wallet debit, per-tier active
// card limit, and the card insert commit together.
func (s *Service) Purchase(ctx context.Context, userID int64, tierName string) (*model.MiningCard, error) {
	tier, ok := LookupTier(tierName)
	if !ok {
		return nil, ErrUnknownCardTier
	}

	var card *model.MiningCard
	err := db.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
		cards := s.cards.WithTx(tx)

		active, err := cards.CountActiveByTier(ctx, userID, tier.Name)
		if err != nil {
			return err
		}
		if active >= tier.MaxCards {
			return ErrMaxCardsReached
		}

		if _, err := s.ledger.GetOrCreateAccount(ctx, tx, userID, model.AccountWallet); err != nil {
			return err
		}
		src := ledger.Source{Remarks: fmt.Sprintf("购买%s", tier.Label)}
		if _, err := s.ledger.Debit(ctx, tx, userID, model.AccountWallet, tier.Cost, model.TxKindMiningBuy, src); err != nil {
			return err
		}

		now := time.Now()
		card, err = cards.InsertCard(ctx, &model.MiningCard{
			UserID:        userID,
			Tier:          tier.Name,
			Cost:          tier.Cost,
			DailyPoints:   tier.DailyPoints,
			TotalDays:     tier.TotalDays,
			RemainingDays: tier.TotalDays,
			TotalPoints:   tier.TotalPoints(),
			Status:        model.MiningCardActive,
			StartTime:     now,
			EndTime:       now.AddDate(0, 0, tier.TotalDays),
		})
		if err != nil {
			return err
		}
		return cards.UpsertStats(ctx, userID, 1, tier.Cost, 0, 0)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("user_id", userID).
		Str("tier", tier.Name).
		Int64("card_id", card.ID).
		Msg("Mining card purchased")
	return card, nil
}

// AccrueDaily runs one day's accrual for every due card, in fixed-size
// batches. Each batch is one transaction and retries on transient
// failure; the (card, date) uniqueness of rewards makes re-runs no-ops.
func (s *Service) AccrueDaily(ctx context.Context, date time.Time) (int, error) {
	y, m, d := date.In(s.loc).Date()
	date = time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	accrued := 0
	for {
		var batch int
		err := retry.Do(
			func() error {
				var err error
				batch, err = s.accrueBatch(ctx, date)
				return err
			},
			retry.Context(ctx),
			retry.Attempts(uint(s.cfg.AccrualRetries)),
			retry.Delay(500*time.Millisecond),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			return accrued, err
		}
		accrued += batch
		if batch < s.cfg.AccrualBatchSize {
			break
		}
	}
	if accrued > 0 {
		s.log.Info().Int("cards", accrued).Str("date", date.Format("2006-01-02")).Msg("Daily accrual complete")
	}
	return accrued, nil
}

func (s *Service) accrueBatch(ctx context.Context, date time.Time) (int, error) {
	var processed int
	err := db.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
		cards := s.cards.WithTx(tx)
		due, err := cards.ListDueForAccrual(ctx, date, s.cfg.AccrualBatchSize)
		if err != nil {
			return err
		}
		for _, c := range due {
			dayIndex := c.TotalDays - c.RemainingDays + 1
			_, err := cards.InsertReward(ctx, &model.MiningReward{
				CardID:     c.ID,
				UserID:     c.UserID,
				Points:     c.DailyPoints,
				DayIndex:   dayIndex,
				RewardDate: date,
				Status:     model.MiningRewardPending,
			})
			if err != nil {
				return err
			}
			if err := cards.ApplyAccrual(ctx, c.ID, date); err != nil {
				return err
			}
			if err := cards.UpsertStats(ctx, c.UserID, 0, 0, c.DailyPoints, 0); err != nil {
				return err
			}
		}
		processed = len(due)
		return nil
	})
	return processed, err
}

// ClaimAll credits the sum of the user's pending rewards in one
// transaction and flips each reward to CLAIMED.
func (s *Service) ClaimAll(ctx context.Context, userID int64) (int64, error) {
	var total int64
	err := db.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
		cards := s.cards.WithTx(tx)
		pending, err := cards.LockPendingRewards(ctx, userID)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return ErrNothingToClaim
		}

		ids := make([]int64, 0, len(pending))
		for _, w := range pending {
			total += w.Points
			ids = append(ids, w.ID)
		}
		now := time.Now()
		if err := cards.MarkRewardsClaimed(ctx, ids, now); err != nil {
			return err
		}
		if _, err := s.ledger.GetOrCreateAccount(ctx, tx, userID, model.AccountPoints); err != nil {
			return err
		}
		src := ledger.Source{Remarks: fmt.Sprintf("挖矿收益 %d 笔", len(ids))}
		if _, err := s.ledger.Credit(ctx, tx, userID, model.AccountPoints, total, model.TxKindMiningReward, src); err != nil {
			return err
		}
		return cards.UpsertStats(ctx, userID, 0, 0, 0, total)
	})
	if err != nil {
		return 0, err
	}

	s.log.Info().Int64("user_id", userID).Int64("points", total).Msg("Mining rewards claimed")
	return total, nil
}

// Cards lists the user's cards, newest first.
func (s *Service) Cards(ctx context.Context, userID int64, limit int) ([]*model.MiningCard, error) {
	return s.cards.ListCardsByUser(ctx, userID, limit)
}

// Stats returns the user's lifetime mining roll-up.
func (s *Service) Stats(ctx context.Context, userID int64) (*model.MiningStats, error) {
	return s.cards.GetStats(ctx, userID)
}

// Ticker runs AccrueDaily at the top of every hour. The calendar-date
// gate inside the query makes each extra run within a day a no-op.
type Ticker struct {
	svc      *Service
	log      zerolog.Logger
	stopOnce sync.Once
	stopped  chan struct{}
}

func NewTicker(svc *Service, logger zerolog.Logger) *Ticker {
	return &Ticker{
		svc:     svc,
		log:     logger.With().Str("component", "mining_ticker").Logger(),
		stopped: make(chan struct{}),
	}
}

func (t *Ticker) Start(ctx context.Context) {
	go t.run(ctx)
}

func (t *Ticker) Stop() {
	t.stopOnce.Do(func() { close(t.stopped) })
}

func (t *Ticker) run(ctx context.Context) {
	for {
		wait := time.Until(nextHour(time.Now()))
		select {
		case <-ctx.Done():
			return
		case <-t.stopped:
			return
		case <-time.After(wait):
			if _, err := t.svc.AccrueDaily(ctx, time.Now()); err != nil {
				t.log.Error().Err(err).Msg("Accrual tick failed")
			}
		}
	}
}

func nextHour(now time.Time) time.Time {
	return now.Truncate(time.Hour).Add(time.Hour)
}
