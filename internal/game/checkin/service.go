// Package checkin implements the daily check-in loyalty program with
// streak milestone bonuses.
package checkin

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

var ErrAlreadySignedToday = errors.New("already signed in today")

// milestones maps a consecutive-day count to its bonus. Days between
// milestones earn only the base credit.
var milestones = map[int]int64{
	3:   200,
	7:   500,
	14:  1_000,
	21:  1_500,
	30:  2_000,
	60:  5_000,
	90:  8_000,
	180: 20_000,
	365: 50_000,
}

// MilestoneBonus returns the bonus for a streak length, 0 if none.
func MilestoneBonus(continuousDays int) int64 {
	return milestones[continuousDays]
}

// Result is the outcome of one successful check-in.
type Result struct {
	ContinuousDays int
	BasePoints     int64
	Bonus          int64
}

func (r *Result) Total() int64 { return r.BasePoints + r.Bonus }

// Service runs daily check-ins. The once-per-day gate counts any group,
// so a user cannot farm the credit across groups. Calendar days follow
// the configured location.
type Service struct {
	pool    *db.Pool
	ledger  *ledger.Engine
	records *repository.SignInRepository
	cfg     config.CheckinConfig
	loc     *time.Location
	log     zerolog.Logger
}

func NewService(pool *db.Pool, eng *ledger.Engine, records *repository.SignInRepository,
	cfg config.CheckinConfig, loc *time.Location, logger zerolog.Logger) *Service {
	return &Service{
		pool:    pool,
		ledger:  eng,
		records: records,
		cfg:     cfg,
		loc:     loc,
		log:     logger.With().Str("game", "checkin").Logger(),
	}
}

// SignIn records today's check-in and credits base points plus any
// milestone bonus, all in one transaction. The streak continues only if
// yesterday has a record; otherwise it resets to 1.
func (s *Service) SignIn(ctx context.Context, userID, groupID int64, now time.Time) (*Result, error) {
	y, m, d := now.In(s.loc).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, s.loc)

	var res *Result
	err := db.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
		records := s.records.WithTx(tx)

		if _, err := records.GetByUserAndDate(ctx, userID, today); err == nil {
			return ErrAlreadySignedToday
		} else if !errors.Is(err, repository.ErrSignInNotFound) {
			return err
		}

		streak := 1
		yesterday := today.AddDate(0, 0, -1)
		if prev, err := records.GetByUserAndDate(ctx, userID, yesterday); err == nil {
			streak = prev.ContinuousDays + 1
		} else if !errors.Is(err, repository.ErrSignInNotFound) {
			return err
		}

		res = &Result{
			ContinuousDays: streak,
			BasePoints:     s.cfg.BasePoints,
			Bonus:          MilestoneBonus(streak),
		}

		_, err := records.Insert(ctx, &model.SignInRecord{
			UserID:         userID,
			GroupID:        groupID,
			SignDate:       today,
			PointsEarned:   res.Total(),
			ContinuousDays: streak,
		})
		if err != nil {
			// A concurrent sign-in can beat us to the unique index.
			if errors.Is(err, repository.ErrAlreadySigned) {
				return ErrAlreadySignedToday
			}
			return err
		}

		if _, err := s.ledger.GetOrCreateAccount(ctx, tx, userID, model.AccountPoints); err != nil {
			return err
		}
		src := ledger.Source{
			GroupID: &groupID,
			Remarks: fmt.Sprintf("签到 连续%d天", streak),
		}
		_, err = s.ledger.Credit(ctx, tx, userID, model.AccountPoints, res.Total(), model.TxKindCheckin, src)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("user_id", userID).
		Int64("group_id", groupID).
		Int("streak", res.ContinuousDays).
		Int64("points", res.Total()).
		Msg("Check-in recorded")
	return res, nil
}
