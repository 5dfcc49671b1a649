// Package main is the entry point for the lottery bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"telegram-lottery-bot/internal/bot"
	"telegram-lottery-bot/internal/config"
	"telegram-lottery-bot/internal/game/checkin"
	"telegram-lottery-bot/internal/game/fishing"
	"telegram-lottery-bot/internal/game/lottery"
	"telegram-lottery-bot/internal/game/mining"
	"telegram-lottery-bot/internal/game/redpacket"
	"telegram-lottery-bot/internal/ledger"
	"telegram-lottery-bot/internal/pkg/db"
	"telegram-lottery-bot/internal/recharge"
	"telegram-lottery-bot/internal/repository"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log.Info().Msg("Configuration loaded")

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve timezone")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := db.Migrate(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}
	log.Info().Msg("Database migrations applied")

	// Repositories
	users := repository.NewUserRepository(dbPool.Pool)
	accounts := repository.NewAccountRepository(dbPool.Pool)
	txlog := repository.NewTransactionRepository(dbPool.Pool)
	groups := repository.NewGroupRepository(dbPool.Pool)
	draws := repository.NewDrawRepository(dbPool.Pool)
	bets := repository.NewBetRepository(dbPool.Pool)
	miningRepo := repository.NewMiningRepository(dbPool.Pool)
	signins := repository.NewSignInRepository(dbPool.Pool)
	recharges := repository.NewRechargeRepository(dbPool.Pool)

	// Ledger and game engines
	eng := ledger.NewEngine(accounts, txlog)
	lotterySvc := lottery.NewService(dbPool, eng, draws, bets, groups, cfg.Lottery, log.Logger)
	fishingSvc := fishing.NewService(dbPool, eng, txlog, log.Logger)
	miningSvc := mining.NewService(dbPool, eng, miningRepo, cfg.Mining, loc, log.Logger)
	checkinSvc := checkin.NewService(dbPool, eng, signins, cfg.Checkin, loc, log.Logger)
	packets := redpacket.NewManager(dbPool, eng, cfg.RedPacket, log.Logger)
	rechargeSvc := recharge.NewService(dbPool, eng, recharges, log.Logger)

	telegramBot, err := bot.New(&bot.Dependencies{
		Config:   cfg,
		Pool:     dbPool,
		Ledger:   eng,
		Users:    users,
		Accounts: accounts,
		TxLog:    txlog,
		Groups:   groups,
		Lottery:  lotterySvc,
		Fishing:  fishingSvc,
		Mining:   miningSvc,
		Checkin:  checkinSvc,
		Packets:  packets,
		Recharge: rechargeSvc,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	// Background loops
	packets.Start()
	defer packets.Stop()

	scheduler := lottery.NewScheduler(dbPool, eng, draws, bets, groups, lotterySvc,
		telegramBot.Notifier(), cfg.Lottery, log.Logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	miningTicker := mining.NewTicker(miningSvc, log.Logger)
	miningTicker.Start(ctx)
	defer miningTicker.Stop()

	watcher := recharge.NewWatcher(rechargeSvc, recharges, newChainClient(cfg.Recharge), cfg.Recharge, log.Logger)
	watcher.OnConfirmed = telegramBot.NotifyRecharge
	watcher.Start(ctx)
	defer watcher.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Msg("Bot is starting")
		telegramBot.Start()
	}()

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	telegramBot.Stop()
	cancel()
	log.Info().Msg("Bot stopped gracefully")
}
