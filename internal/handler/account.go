package handler

import (
	"context"
	"errors"
	"fmt"

	tele "gopkg.in/telebot.v3"

	"telegram-lottery-bot/internal/model"
	"telegram-lottery-bot/internal/repository"
)

// AccountHandler handles account, balance, and help commands.
type AccountHandler struct {
	users    *repository.UserRepository
	accounts *repository.AccountRepository
	txlog    *repository.TransactionRepository
}

func NewAccountHandler(users *repository.UserRepository, accounts *repository.AccountRepository,
	txlog *repository.TransactionRepository) *AccountHandler {
	return &AccountHandler{users: users, accounts: accounts, txlog: txlog}
}

// HandleStart greets the user and records their identity.
func (h *AccountHandler) HandleStart(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	if _, err := h.users.Upsert(ctx, sender.ID, sender.Username, sender.FirstName); err != nil {
		return c.Reply("❌ 系统错误，请稍后重试")
	}

	return c.Reply(
		"🎮 欢迎使用游戏助手！\n\n" +
			"可用命令:\n" +
			"/balance - 查询余额\n" +
			"/recharge - 充值 USDT\n" +
			"/fishing - 钓鱼\n" +
			"/mining - 矿卡\n" +
			"/lottery - 开奖记录\n" +
			"/bets - 本期投注\n\n" +
			"群内发送「签到」每日签到，发送「大100」「数字8 押100」等参与竞猜")
}

// HandleHelp lists the command surface.
func (h *AccountHandler) HandleHelp(c tele.Context) error {
	return c.Reply(
		"📖 命令说明\n\n" +
			"/balance - 查询积分与钱包余额\n" +
			"/recharge <金额> - 创建充值订单\n" +
			"/check_recharge - 查询充值状态\n" +
			"/cancel - 取消待支付订单\n" +
			"/fishing - 选择鱼竿钓鱼\n" +
			"/fishing_history - 钓鱼记录\n" +
			"/mining - 购买矿卡 / 领取收益\n" +
			"/lottery - 最近开奖\n" +
			"/bets - 本期我的投注\n" +
			"/redpacket <积分> - 发红包\n\n" +
			"群内文字: 签到 · 查询积分 · 投注(如 大100 / 小单50 / 数字8押100)")
}

// HandleBalance reports both ledgers. Missing accounts read as zero.
func (h *AccountHandler) HandleBalance(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	points, err := h.availableOrZero(ctx, sender.ID, model.AccountPoints)
	if err != nil {
		return c.Reply("❌ 查询失败，请稍后重试")
	}
	wallet, err := h.availableOrZero(ctx, sender.ID, model.AccountWallet)
	if err != nil {
		return c.Reply("❌ 查询失败，请稍后重试")
	}

	return c.Reply(fmt.Sprintf(
		"💰 账户余额\n\n积分: %d\n钱包: %s USDT",
		points, model.FormatUSDT(wallet)))
}

func (h *AccountHandler) availableOrZero(ctx context.Context, userID int64, t model.AccountType) (int64, error) {
	account, err := h.accounts.GetByUserAndType(ctx, userID, t)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return account.AvailableAmount, nil
}
