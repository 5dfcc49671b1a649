package lottery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"telegram-lottery-bot/internal/config"
	"telegram-lottery-bot/internal/ledger"
	"telegram-lottery-bot/internal/model"
	"telegram-lottery-bot/internal/pkg/db"
	"telegram-lottery-bot/internal/repository"
)

var (
	ErrInvalidBetType   = errors.New("unknown bet type")
	ErrAmountOutOfRange = errors.New("bet amount outside group limits")
	ErrNoOpenPeriod     = errors.New("no open draw period")
	ErrGroupDisabled    = errors.New("games are disabled in this group")
	ErrNoCashback       = errors.New("no claimable cashback")
)

// Service places and settles number-draw bets.
type Service struct {
	pool   *db.Pool
	ledger *ledger.Engine
	draws  *repository.DrawRepository
	bets   *repository.BetRepository
	groups *repository.GroupRepository
	cfg    config.LotteryConfig
	log    zerolog.Logger
}

func NewService(pool *db.Pool, eng *ledger.Engine, draws *repository.DrawRepository,
	bets *repository.BetRepository, groups *repository.GroupRepository,
	cfg config.LotteryConfig, logger zerolog.Logger) *Service {
	return &Service{
		pool:   pool,
		ledger: eng,
		draws:  draws,
		bets:   bets,
		groups: groups,
		cfg:    cfg,
		log:    logger.With().Str("game", model.GameTypeLottery).Logger(),
	}
}

// Rejection pairs a parsed bet with the reason it was not placed.
type Rejection struct {
	Bet    ParsedBet
	Reason error
}

// PlaceReport summarizes what happened to every fragment of one message.
type PlaceReport struct {
	DrawNumber string
	Accepted   []*model.Bet
	Rejected   []Rejection
}

// TotalAccepted is the combined stake of the accepted bets.
func (r *PlaceReport) TotalAccepted() int64 {
	var sum int64
	for _, b := range r.Accepted {
		sum += b.BetAmount
	}
	return sum
}

// PlaceBets places each parsed bet independently: every bet runs in its
// own transaction, so one failing fragment (bad type, empty balance,
// duplicate) never rolls back its siblings.
func (s *Service) PlaceBets(ctx context.Context, groupID, userID int64, parsed []ParsedBet) (*PlaceReport, error) {
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.Enabled {
		return nil, ErrGroupDisabled
	}

	minBet, maxBet := s.cfg.MinBet, s.cfg.MaxBet
	if group.MinBet > 0 {
		minBet = group.MinBet
	}
	if group.MaxBet > 0 {
		maxBet = group.MaxBet
	}

	report := &PlaceReport{}
	for _, pb := range parsed {
		placed, err := s.placeOne(ctx, group, userID, pb, minBet, maxBet)
		if err != nil {
			report.Rejected = append(report.Rejected, Rejection{Bet: pb, Reason: err})
			continue
		}
		report.Accepted = append(report.Accepted, placed)
		report.DrawNumber = placed.DrawNumber
	}
	return report, nil
}

func (s *Service) placeOne(ctx context.Context, group *model.Group, userID int64, pb ParsedBet, minBet, maxBet int64) (*model.Bet, error) {
	option, ok := LookupOption(pb.BetType)
	if !ok {
		return nil, ErrInvalidBetType
	}
	if pb.Amount < minBet || pb.Amount > maxBet {
		return nil, ErrAmountOutOfRange
	}

	var placed *model.Bet
	err := db.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
		draws := s.draws.WithTx(tx)
		draw, err := draws.GetOpen(ctx, group.GroupID, model.GameTypeLottery)
		if err != nil {
			if errors.Is(err, repository.ErrDrawNotFound) {
				return ErrNoOpenPeriod
			}
			return err
		}

		if _, err := s.ledger.GetOrCreateAccount(ctx, tx, userID, model.AccountPoints); err != nil {
			return err
		}
		src := ledger.Source{
			GroupID:  &group.GroupID,
			SourceID: &draw.DrawNumber,
			Remarks:  fmt.Sprintf("下注 %s %d", pb.BetType, pb.Amount),
		}
		if _, err := s.ledger.Debit(ctx, tx, userID, model.AccountPoints, pb.Amount, model.TxKindLotteryBet, src); err != nil {
			return err
		}

		now := time.Now()
		bet := &model.Bet{
			GroupID:            group.GroupID,
			GameType:           model.GameTypeLottery,
			DrawNumber:         draw.DrawNumber,
			UserID:             userID,
			BetType:            pb.BetType,
			BetAmount:          pb.Amount,
			OddsAtBet:          option.OddsX100,
			CashbackAmount:     pb.Amount * s.cfg.CashbackRateBps / 10_000,
			CashbackExpireTime: now.Add(time.Duration(s.cfg.CashbackHours) * time.Hour),
			Status:             model.BetPlaced,
		}
		placed, err = s.bets.WithTx(tx).Insert(ctx, bet)
		if err != nil {
			return err
		}

		// Locks the draw row, so placement serializes against settlement.
		// A bet racing the settle transaction fails here and rolls the
		// debit back rather than landing on a settled period.
		return draws.AddBetAmount(ctx, draw.ID, pb.Amount)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("group_id", group.GroupID).
		Int64("user_id", userID).
		Str("bet_type", pb.BetType).
		Int64("amount", pb.Amount).
		Str("draw_number", placed.DrawNumber).
		Msg("Bet placed")
	return placed, nil
}

// CurrentBets lists the caller's bets on the group's open period.
func (s *Service) CurrentBets(ctx context.Context, groupID, userID int64) (*model.DrawPeriod, []*model.Bet, error) {
	draw, err := s.draws.GetOpen(ctx, groupID, model.GameTypeLottery)
	if err != nil {
		if errors.Is(err, repository.ErrDrawNotFound) {
			return nil, nil, ErrNoOpenPeriod
		}
		return nil, nil, err
	}
	bets, err := s.bets.ListByUserAndDraw(ctx, userID, groupID, model.GameTypeLottery, draw.DrawNumber)
	if err != nil {
		return nil, nil, err
	}
	return draw, bets, nil
}

// History returns the group's most recent settled periods.
func (s *Service) History(ctx context.Context, groupID int64, limit int) ([]*model.DrawPeriod, error) {
	return s.draws.ListRecentSettled(ctx, groupID, model.GameTypeLottery, limit)
}

// ClaimCashback credits the caller's unclaimed, unexpired cashback in a
// single transaction and marks the underlying bets claimed.
func (s *Service) ClaimCashback(ctx context.Context, userID int64) (int64, error) {
	var total int64
	err := db.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
		bets := s.bets.WithTx(tx)
		claimable, err := bets.LockClaimableCashback(ctx, userID, time.Now())
		if err != nil {
			return err
		}
		if len(claimable) == 0 {
			return ErrNoCashback
		}

		ids := make([]int64, 0, len(claimable))
		for _, b := range claimable {
			total += b.CashbackAmount
			ids = append(ids, b.ID)
		}
		if err := bets.MarkCashbackClaimed(ctx, ids); err != nil {
			return err
		}
		if total == 0 {
			return nil
		}
		_, err = s.ledger.Credit(ctx, tx, userID, model.AccountPoints, total, model.TxKindLotteryCashback,
			ledger.Source{Remarks: fmt.Sprintf("返水 %d 笔", len(ids))})
		return err
	})
	if err != nil {
		return 0, err
	}
	s.log.Info().Int64("user_id", userID).Int64("amount", total).Msg("Cashback claimed")
	return total, nil
}

// SweepExpiredCashback flags cashback whose claim window has passed.
// Called periodically by the scheduler.
func (s *Service) SweepExpiredCashback(ctx context.Context) (int64, error) {
	return s.bets.SweepExpiredCashback(ctx, time.Now())
}
