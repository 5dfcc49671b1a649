package fishing

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"telegram-lottery-bot/internal/ledger"
	"telegram-lottery-bot/internal/model"
	"telegram-lottery-bot/internal/pkg/db"
	"telegram-lottery-bot/internal/repository"
)

var ErrInvalidRodType = errors.New("unknown rod type")

// Result is the outcome of one cast.
type Result struct {
	Rod       Rod
	Success   bool
	Legendary bool
	Specimen  Specimen
	Net       int64 // reward minus cost; negative on a miss
}

// LegendaryHook fires after a legendary catch has committed. The chat
// layer uses it to announce the catch and drop a system red packet
// funded with the reward points.
type LegendaryHook func(groupID, userID int64, res *Result)

// Service runs casts against the ledger.
type Service struct {
	pool   *db.Pool
	ledger *ledger.Engine
	txlog  *repository.TransactionRepository
	log    zerolog.Logger

	// roll draws from [0, rollBasis). Overridable in tests.
	roll func() (int64, error)

	// OnLegendary may be nil.
	OnLegendary LegendaryHook
}

func NewService(pool *db.Pool, eng *ledger.Engine, txlog *repository.TransactionRepository, logger zerolog.Logger) *Service {
	return &Service{
		pool:   pool,
		ledger: eng,
		txlog:  txlog,
		log:    logger.With().Str("game", "fishing").Logger(),
		roll:   secureRoll,
	}
}

func secureRoll() (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(rollBasis))
	if err != nil {
		return 0, fmt.Errorf("failed to roll outcome: %w", err)
	}
	return n.Int64(), nil
}

// Cast performs one fishing attempt: debit the rod cost, roll the
// outcome, credit the reward on a catch. Everything commits in one
// transaction; the legendary hook runs only after that commit.
func (s *Service) Cast(ctx context.Context, groupID, userID int64, rodName string) (*Result, error) {
	rod, ok := LookupRod(rodName)
	if !ok {
		return nil, ErrInvalidRodType
	}

	res := &Result{Rod: rod}
	err := db.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := s.ledger.GetOrCreateAccount(ctx, tx, userID, model.AccountPoints); err != nil {
			return err
		}
		src := ledger.Source{GroupID: &groupID, Remarks: fmt.Sprintf("钓鱼 %s", rod.Label)}
		if _, err := s.ledger.Debit(ctx, tx, userID, model.AccountPoints, rod.Cost, model.TxKindFishCost, src); err != nil {
			return err
		}
		res.Net = -rod.Cost

		roll, err := s.roll()
		if err != nil {
			return err
		}
		cat := pickCategory(roll)
		if cat == nil {
			return nil // a miss still pays the rod cost
		}

		res.Success = true
		res.Legendary = cat.Legendary
		res.Specimen = cat.Specimens[rod.Index]
		res.Net = res.Specimen.Reward - rod.Cost

		kind := model.TxKindFishWin
		if cat.Legendary {
			kind = model.TxKindFishLegend
		}
		src.Remarks = fmt.Sprintf("钓到 %s", res.Specimen.Name)
		_, err = s.ledger.Credit(ctx, tx, userID, model.AccountPoints, res.Specimen.Reward, kind, src)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("group_id", groupID).
		Int64("user_id", userID).
		Str("rod", rod.Name).
		Bool("success", res.Success).
		Bool("legendary", res.Legendary).
		Int64("net", res.Net).
		Msg("Cast resolved")

	if res.Legendary && s.OnLegendary != nil {
		s.OnLegendary(groupID, userID, res)
	}
	return res, nil
}

// History returns the user's recent fishing ledger entries, newest first.
func (s *Service) History(ctx context.Context, userID int64, limit int) ([]*model.AccountTransaction, error) {
	kinds := []model.TxKind{model.TxKindFishCost, model.TxKindFishWin, model.TxKindFishLegend}
	return s.txlog.ListRecentByUserAndKinds(ctx, userID, kinds, limit)
}
