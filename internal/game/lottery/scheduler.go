package lottery

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"telegram-lottery-bot/internal/config"
	"telegram-lottery-bot/internal/ledger"
	"telegram-lottery-bot/internal/model"
	"telegram-lottery-bot/internal/pkg/db"
	"telegram-lottery-bot/internal/pkg/drawno"
	"telegram-lottery-bot/internal/repository"
)

// Notifier pushes draw lifecycle announcements into the group chat.
// Implementations must not block; the scheduler calls them after the
// settlement transaction has committed.
type Notifier interface {
	AnnounceOpen(groupID int64, draw *model.DrawPeriod)
	AnnounceResult(groupID int64, draw *model.DrawPeriod, bets []*model.Bet)
}

// NopNotifier discards announcements. Used in tests and tools.
type NopNotifier struct{}

func (NopNotifier) AnnounceOpen(int64, *model.DrawPeriod)                 {}
func (NopNotifier) AnnounceResult(int64, *model.DrawPeriod, []*model.Bet) {}

// Scheduler drives the draw lifecycle for every enabled group: it keeps
// one period open per group, settles periods when their window elapses,
// and sweeps expired cashback.
type Scheduler struct {
	pool     *db.Pool
	ledger   *ledger.Engine
	draws    *repository.DrawRepository
	bets     *repository.BetRepository
	groups   *repository.GroupRepository
	svc      *Service
	notifier Notifier
	cfg      config.LotteryConfig
	log      zerolog.Logger

	// roll produces the winning digit. Overridable in tests.
	roll func() (int16, error)

	mu          sync.Mutex
	lastSettled map[int64]time.Time

	stopOnce sync.Once
	stopped  chan struct{}
}

func NewScheduler(pool *db.Pool, eng *ledger.Engine, draws *repository.DrawRepository,
	bets *repository.BetRepository, groups *repository.GroupRepository, svc *Service,
	notifier Notifier, cfg config.LotteryConfig, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		pool:        pool,
		ledger:      eng,
		draws:       draws,
		bets:        bets,
		groups:      groups,
		svc:         svc,
		notifier:    notifier,
		cfg:         cfg,
		log:         logger.With().Str("component", "lottery_scheduler").Logger(),
		roll:        secureRoll,
		lastSettled: make(map[int64]time.Time),
		stopped:     make(chan struct{}),
	}
}

func secureRoll() (int16, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10))
	if err != nil {
		return 0, fmt.Errorf("failed to draw result: %w", err)
	}
	return int16(n.Int64()), nil
}

// Start runs the scheduler loop until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopped) })
}

func (s *Scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	s.log.Info().Int("interval_minutes", s.cfg.DrawIntervalMinutes).Msg("Draw scheduler started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopped:
			return
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	groups, err := s.groups.ListEnabled(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list enabled groups")
		return
	}

	for _, g := range groups {
		if err := s.EnsureOpen(ctx, g.GroupID); err != nil {
			s.log.Error().Err(err).Int64("group_id", g.GroupID).Msg("Failed to ensure open period")
		}
		if s.dueForSettlement(ctx, g.GroupID, now) {
			if err := s.SettleGroup(ctx, g.GroupID); err != nil && !errors.Is(err, repository.ErrDrawNotFound) {
				s.log.Error().Err(err).Int64("group_id", g.GroupID).Msg("Settlement failed")
			}
		}
	}

	if swept, err := s.svc.SweepExpiredCashback(ctx); err != nil {
		s.log.Error().Err(err).Msg("Cashback sweep failed")
	} else if swept > 0 {
		s.log.Info().Int64("count", swept).Msg("Expired cashback swept")
	}
}

// dueForSettlement gates settlement to interval boundaries. The open
// period must have lived a full interval: one opened mid-interval (fresh
// group, process restart) keeps collecting bets until the boundary after
// next. A per-group guard keeps one boundary from settling twice.
func (s *Scheduler) dueForSettlement(ctx context.Context, groupID int64, now time.Time) bool {
	if now.Minute()%s.cfg.DrawIntervalMinutes != 0 {
		return false
	}

	draw, err := s.draws.GetOpen(ctx, groupID, model.GameTypeLottery)
	if err != nil {
		if !errors.Is(err, repository.ErrDrawNotFound) {
			s.log.Error().Err(err).Int64("group_id", groupID).Msg("Failed to load open period")
		}
		return false
	}
	// DrawTime truncates to the minute so a period opened moments after a
	// boundary still settles exactly one interval later.
	interval := time.Duration(s.cfg.DrawIntervalMinutes) * time.Minute
	if now.Sub(draw.DrawTime.Truncate(time.Minute)) < interval {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	guard := time.Duration(s.cfg.SettleGuardSecs) * time.Second
	if last, ok := s.lastSettled[groupID]; ok && now.Sub(last) < guard {
		return false
	}
	s.lastSettled[groupID] = now
	return true
}

// EnsureOpen opens a period for the group if none is open. Safe to call
// concurrently: the partial unique index makes the second creator lose
// cleanly, and a taken draw number is retried with a fresh one.
func (s *Scheduler) EnsureOpen(ctx context.Context, groupID int64) error {
	_, err := s.draws.GetOpen(ctx, groupID, model.GameTypeLottery)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrDrawNotFound) {
		return err
	}

	for attempt := 0; attempt < 3; attempt++ {
		draw, err := s.draws.Create(ctx, groupID, model.GameTypeLottery, drawno.Generate(time.Now()), time.Now())
		switch {
		case err == nil:
			s.log.Info().Int64("group_id", groupID).Str("draw_number", draw.DrawNumber).Msg("Period opened")
			s.notifier.AnnounceOpen(groupID, draw)
			return nil
		case errors.Is(err, repository.ErrOpenDrawExists):
			return nil
		case errors.Is(err, repository.ErrDrawNumberTaken):
			continue
		default:
			return err
		}
	}
	return repository.ErrDrawNumberTaken
}

// SettleGroup settles the group's open period: draws a result, marks every
// bet won or lost, credits winners, and finalizes the period — all in one
// transaction, retried on transient failure. The follow-up period is
// opened after the commit.
func (s *Scheduler) SettleGroup(ctx context.Context, groupID int64) error {
	var (
		settled *model.DrawPeriod
		bets    []*model.Bet
	)

	err := retry.Do(
		func() error {
			var err error
			settled, bets, err = s.settleOnce(ctx, groupID)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(s.cfg.SettleRetries)),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			// Business outcomes are final; only infrastructure errors retry.
			return !errors.Is(err, repository.ErrDrawNotFound)
		}),
	)
	if err != nil {
		return err
	}

	if err := s.EnsureOpen(ctx, groupID); err != nil {
		s.log.Error().Err(err).Int64("group_id", groupID).Msg("Failed to open follow-up period")
	}
	s.notifier.AnnounceResult(groupID, settled, bets)
	return nil
}

func (s *Scheduler) settleOnce(ctx context.Context, groupID int64) (*model.DrawPeriod, []*model.Bet, error) {
	var (
		outDraw *model.DrawPeriod
		outBets []*model.Bet
	)

	err := db.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
		draws := s.draws.WithTx(tx)
		betsRepo := s.bets.WithTx(tx)

		draw, err := draws.LockOpenForSettlement(ctx, groupID, model.GameTypeLottery)
		if err != nil {
			return err
		}

		result, err := s.roll()
		if err != nil {
			return err
		}

		bets, err := betsRepo.ListByDraw(ctx, groupID, model.GameTypeLottery, draw.DrawNumber)
		if err != nil {
			return err
		}

		var totalPayout int64
		for _, b := range bets {
			win := IsWin(b.BetType, result)
			var winAmount int64
			if win {
				winAmount = WinAmount(b.BetAmount, b.OddsAtBet)
				totalPayout += winAmount
				src := ledger.Source{
					GroupID:  &groupID,
					SourceID: &draw.DrawNumber,
					Remarks:  fmt.Sprintf("中奖 %s 开%d", b.BetType, result),
				}
				if _, err := s.ledger.Credit(ctx, tx, b.UserID, model.AccountPoints, winAmount, model.TxKindLotteryWin, src); err != nil {
					return err
				}
			}
			if err := betsRepo.MarkSettled(ctx, b.ID, win, winAmount); err != nil {
				return err
			}
			b.IsWin = &win
			b.WinAmount = winAmount
			b.Status = model.BetSettled
		}

		profit := draw.TotalBets - totalPayout
		if err := draws.MarkSettled(ctx, draw.ID, result, totalPayout, profit); err != nil {
			return err
		}

		draw.Result = &result
		draw.TotalPayout = totalPayout
		draw.Profit = profit
		draw.Status = model.DrawSettled
		outDraw, outBets = draw, bets
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.log.Info().
		Int64("group_id", groupID).
		Str("draw_number", outDraw.DrawNumber).
		Int16("result", *outDraw.Result).
		Int64("total_bets", outDraw.TotalBets).
		Int64("total_payout", outDraw.TotalPayout).
		Int("bet_count", len(outBets)).
		Msg("Period settled")
	return outDraw, outBets, nil
}
