package handler

import (
	"context"
	"errors"
	"fmt"

	tele "gopkg.in/telebot.v3"

	"telegram-lottery-bot/internal/config"
	"telegram-lottery-bot/internal/model"
	"telegram-lottery-bot/internal/recharge"
)

// RechargeHandler handles USDT top-up commands. Orders are created and
// checked here; confirmation arrives through the watcher.
type RechargeHandler struct {
	svc *recharge.Service
	cfg config.RechargeConfig
}

func NewRechargeHandler(svc *recharge.Service, cfg config.RechargeConfig) *RechargeHandler {
	return &RechargeHandler{svc: svc, cfg: cfg}
}

// HandleRecharge creates an order: /recharge <USDT>.
func (h *RechargeHandler) HandleRecharge(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) != 1 {
		return c.Reply("用法: /recharge <USDT金额>，如 /recharge 10")
	}
	amount, err := model.ParseUSDT(args[0])
	if err != nil {
		return c.Reply("请输入正确的USDT金额")
	}

	order, err := h.svc.CreateOrder(context.Background(), sender.ID, amount)
	if err != nil {
		switch {
		case errors.Is(err, recharge.ErrPendingOrderExists):
			return c.Reply("已有待支付订单，/check_recharge 查询或 /cancel 取消")
		case errors.Is(err, recharge.ErrInvalidAmount):
			return c.Reply("请输入正确的USDT金额")
		default:
			return c.Reply("❌ 创建订单失败，请稍后重试")
		}
	}

	return c.Reply(fmt.Sprintf(
		"💳 充值订单已创建\n\n金额: %s USDT\n收款地址: %s\n备注(Memo): %s\n\n"+
			"⚠️ 转账时务必填写备注，到账后自动入账。/check_recharge 查询进度",
		model.FormatUSDT(order.Amount), h.cfg.WalletAddr, order.Memo))
}

// HandleCheckRecharge reports the pending order, if any.
func (h *RechargeHandler) HandleCheckRecharge(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	order, err := h.svc.Pending(context.Background(), sender.ID)
	if err != nil {
		if errors.Is(err, recharge.ErrNoPendingOrder) {
			return c.Reply("当前没有待支付的充值订单")
		}
		return c.Reply("❌ 查询失败，请稍后重试")
	}

	return c.Reply(fmt.Sprintf(
		"⏳ 等待到账\n\n金额: %s USDT\n备注(Memo): %s\n创建时间: %s",
		model.FormatUSDT(order.Amount), order.Memo, order.CreatedAt.Format("01-02 15:04")))
}

// HandleCancel cancels the pending order.
func (h *RechargeHandler) HandleCancel(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	if err := h.svc.Cancel(context.Background(), sender.ID); err != nil {
		if errors.Is(err, recharge.ErrNoPendingOrder) {
			return c.Reply("当前没有待支付的充值订单")
		}
		return c.Reply("❌ 取消失败，请稍后重试")
	}
	return c.Reply("✅ 订单已取消")
}
