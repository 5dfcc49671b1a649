package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-lottery-bot/internal/config"
	"telegram-lottery-bot/internal/game/checkin"
	"telegram-lottery-bot/internal/game/fishing"
	"telegram-lottery-bot/internal/game/lottery"
	"telegram-lottery-bot/internal/game/mining"
	"telegram-lottery-bot/internal/game/redpacket"
	"telegram-lottery-bot/internal/handler"
	"telegram-lottery-bot/internal/ledger"
	"telegram-lottery-bot/internal/model"
	"telegram-lottery-bot/internal/pkg/db"
	"telegram-lottery-bot/internal/recharge"
	"telegram-lottery-bot/internal/repository"
)

// Dependencies holds everything the bot needs, built at the composition
// root.
type Dependencies struct {
	Config   *config.Config
	Pool     *db.Pool
	Ledger   *ledger.Engine
	Users    *repository.UserRepository
	Accounts *repository.AccountRepository
	TxLog    *repository.TransactionRepository
	Groups   *repository.GroupRepository

	Lottery  *lottery.Service
	Fishing  *fishing.Service
	Mining   *mining.Service
	Checkin  *checkin.Service
	Packets  *redpacket.Manager
	Recharge *recharge.Service
}

// Bot wraps the telebot instance and its handlers.
type Bot struct {
	bot  *tele.Bot
	cfg  *config.Config
	deps *Dependencies

	account   *handler.AccountHandler
	lottery   *handler.LotteryHandler
	fishing   *handler.FishingHandler
	mining    *handler.MiningHandler
	checkin   *handler.CheckinHandler
	redpacket *handler.RedPacketHandler
	recharge  *handler.RechargeHandler
	admin     *handler.AdminHandler
}

// New creates the bot and wires all handlers and game hooks.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	teleBot, err := tele.NewBot(tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:       teleBot,
		cfg:       deps.Config,
		deps:      deps,
		account:   handler.NewAccountHandler(deps.Users, deps.Accounts, deps.TxLog),
		lottery:   handler.NewLotteryHandler(deps.Lottery),
		fishing:   handler.NewFishingHandler(deps.Fishing),
		mining:    handler.NewMiningHandler(deps.Mining),
		checkin:   handler.NewCheckinHandler(deps.Checkin),
		redpacket: handler.NewRedPacketHandler(deps.Packets),
		recharge:  handler.NewRechargeHandler(deps.Recharge, deps.Config.Recharge),
		admin:     handler.NewAdminHandler(deps.Pool, deps.Groups, deps.Ledger),
	}

	b.registerMiddleware()
	b.registerHandlers()
	b.wireGameHooks()
	return b, nil
}

func (b *Bot) registerMiddleware() {
	b.bot.Use(GroupGateMiddleware(b.cfg, b.deps.Groups))
	b.bot.Use(LoggingMiddleware())
}

func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.account.HandleStart)
	b.bot.Handle("/help", b.account.HandleHelp)
	b.bot.Handle("/balance", b.account.HandleBalance)

	b.bot.Handle("/recharge", b.recharge.HandleRecharge)
	b.bot.Handle("/check_recharge", b.recharge.HandleCheckRecharge)
	b.bot.Handle("/cancel", b.recharge.HandleCancel)

	b.bot.Handle("/fishing", b.fishing.HandleFishing)
	b.bot.Handle("/fishing_history", b.fishing.HandleHistory)
	b.bot.Handle("/mining", b.mining.HandleMining)
	b.bot.Handle("/lottery", b.lottery.HandleLottery)
	b.bot.Handle("/bets", b.lottery.HandleBets)
	b.bot.Handle("/cashback", b.lottery.HandleCashback)
	b.bot.Handle("/redpacket", b.redpacket.HandleSend)

	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/admin_enable", b.admin.HandleEnable)
	adminGroup.Handle("/admin_disable", b.admin.HandleDisable)
	adminGroup.Handle("/admin_limits", b.admin.HandleLimits)
	adminGroup.Handle("/admin_credit", b.admin.HandleCredit)

	b.bot.Handle(tele.OnText, b.handleText)
	b.bot.Handle(tele.OnCallback, b.handleCallback)
}

// handleText routes plain group text: check-in, balance query, then the
// bet parser.
func (b *Bot) handleText(c tele.Context) error {
	switch strings.TrimSpace(c.Text()) {
	case "签到":
		return b.checkin.HandleCheckin(c)
	case "查询积分":
		return b.account.HandleBalance(c)
	}

	handled, err := b.lottery.MaybeHandleBet(c)
	if handled {
		return err
	}
	return nil
}

// handleCallback decodes button data and routes by domain.
func (b *Bot) handleCallback(c tele.Context) error {
	callback := c.Callback()
	if callback == nil {
		return nil
	}

	cb, err := handler.ParseCallback(callback.Data)
	if err != nil {
		log.Debug().Str("data", callback.Data).Msg("Unroutable callback")
		return c.Respond(&tele.CallbackResponse{})
	}

	switch cb.Domain {
	case "fishing":
		return b.fishing.HandleCast(c, cb)
	case "mining":
		switch cb.Action {
		case "buy":
			return b.mining.HandleBuy(c, cb)
		case "claim":
			return b.mining.HandleClaim(c, cb)
		}
	case "rp":
		return b.redpacket.HandleGrab(c, cb)
	case "lottery":
		if cb.Action == "cashback" {
			return b.lottery.HandleCashback(c)
		}
	}
	return c.Respond(&tele.CallbackResponse{})
}

// wireGameHooks connects engine callbacks that need the chat transport:
// red-packet settle edits and legendary fishing drops. The engines stay
// transport-free.
func (b *Bot) wireGameHooks() {
	b.deps.Packets.OnSettled = func(p *redpacket.Packet, expired bool) {
		if p.MessageID == 0 {
			return
		}
		msg := tele.StoredMessage{MessageID: fmt.Sprintf("%d", p.MessageID), ChatID: p.ChatID}
		if _, err := b.bot.Edit(msg, handler.FinalText(p, expired)); err != nil {
			log.Warn().Err(err).Str("packet_id", p.ID).Msg("Failed to edit packet message")
		}
	}

	b.deps.Fishing.OnLegendary = func(groupID, userID int64, res *fishing.Result) {
		p, err := b.deps.Packets.CreateSystem(groupID, res.Specimen.Reward, int(res.Specimen.Reward/10_000))
		if err != nil {
			log.Error().Err(err).Msg("Failed to create legendary packet")
			return
		}
		text := fmt.Sprintf("🎉 传说之鱼「%s」现身，系统发放 %d 积分红包！", res.Specimen.Name, p.TotalAmount)
		msg, err := b.bot.Send(tele.ChatID(groupID), text, handler.GrabMarkup(groupID, p.ID))
		if err != nil {
			log.Warn().Err(err).Int64("group_id", groupID).Msg("Failed to announce legendary packet")
			return
		}
		b.deps.Packets.Attach(p.ID, msg.ID)
	}
}

// Notifier returns the draw announcement sink backed by this bot.
func (b *Bot) Notifier() lottery.Notifier {
	return &drawNotifier{bot: b.bot}
}

// NotifyRecharge tells a user their recharge order has been credited.
func (b *Bot) NotifyRecharge(order *model.RechargeOrder) {
	text := fmt.Sprintf("✅ 充值到账 %s USDT，已存入钱包", model.FormatUSDT(order.Amount))
	if _, err := b.bot.Send(tele.ChatID(order.UserID), text); err != nil {
		log.Warn().Err(err).Int64("user_id", order.UserID).Msg("Failed to send recharge notice")
	}
}

// Start begins long polling. Blocks until Stop.
func (b *Bot) Start() {
	log.Info().Msg("Starting bot")
	b.bot.Start()
}

// Stop halts polling.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot")
	b.bot.Stop()
}
