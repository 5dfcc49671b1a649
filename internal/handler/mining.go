package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"telegram-lottery-bot/internal/game/mining"
	"telegram-lottery-bot/internal/ledger"
	"telegram-lottery-bot/internal/model"
)

// MiningHandler handles card purchase, the card overview, and claims.
type MiningHandler struct {
	svc *mining.Service
}

func NewMiningHandler(svc *mining.Service) *MiningHandler {
	return &MiningHandler{svc: svc}
}

// HandleMining shows the tier menu, the caller's cards, and a claim
// button.
func (h *MiningHandler) HandleMining(c tele.Context) error {
	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return nil
	}
	ctx := context.Background()

	cards, err := h.svc.Cards(ctx, sender.ID, 10)
	if err != nil {
		return c.Reply("❌ 查询失败，请稍后重试")
	}
	stats, err := h.svc.Stats(ctx, sender.ID)
	if err != nil {
		return c.Reply("❌ 查询失败，请稍后重试")
	}

	var b strings.Builder
	b.WriteString("⛏ 矿卡中心\n\n")
	for _, tier := range mining.Tiers() {
		fmt.Fprintf(&b, "%s %sU · 日产%d · %d天\n",
			tier.Label, model.FormatUSDT(tier.Cost), tier.DailyPoints, tier.TotalDays)
	}
	fmt.Fprintf(&b, "\n累计: 购卡%d张 · 产出%d · 已领取%d\n", stats.TotalCards, stats.TotalEarned, stats.TotalClaimed)

	if len(cards) > 0 {
		b.WriteString("\n我的矿卡:\n")
		for _, card := range cards {
			status := "⛏进行中"
			if card.Status == model.MiningCardCompleted {
				status = "✅已完成"
			}
			fmt.Fprintf(&b, "#%d %s %s 剩余%d天 已产%d\n", card.ID, card.Tier, status, card.RemainingDays, card.EarnedPoints)
		}
	}

	markup := &tele.ReplyMarkup{}
	var buyRow []tele.Btn
	for _, tier := range mining.Tiers() {
		data := Callback{Domain: "mining", Action: "buy", GroupID: chat.ID, Args: []string{tier.Name}}
		buyRow = append(buyRow, markup.Data(tier.Label, "mining", data.Encode()))
	}
	claim := Callback{Domain: "mining", Action: "claim", GroupID: chat.ID}
	markup.Inline(
		markup.Row(buyRow...),
		markup.Row(markup.Data("🎁 领取收益", "mining", claim.Encode())),
	)
	return c.Reply(b.String(), markup)
}

// HandleBuy purchases one card of the tier in the callback.
func (h *MiningHandler) HandleBuy(c tele.Context, cb Callback) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	card, err := h.svc.Purchase(context.Background(), sender.ID, cb.Arg(0))
	if err != nil {
		switch {
		case errors.Is(err, mining.ErrUnknownCardTier):
			return c.Respond(&tele.CallbackResponse{Text: "无效的矿卡类型"})
		case errors.Is(err, mining.ErrMaxCardsReached):
			return c.Respond(&tele.CallbackResponse{Text: "该矿卡持有数量已达上限"})
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return c.Respond(&tele.CallbackResponse{Text: "钱包余额不足，请先充值"})
		default:
			return c.Respond(&tele.CallbackResponse{Text: "系统错误，请稍后重试"})
		}
	}

	tier, _ := mining.LookupTier(card.Tier)
	return c.Send(fmt.Sprintf("⛏ %s 购买%s成功！每日产出 %d 积分，共 %d 天",
		displayName(sender), tier.Label, card.DailyPoints, card.TotalDays))
}

// HandleClaim claims all pending rewards.
func (h *MiningHandler) HandleClaim(c tele.Context, cb Callback) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	total, err := h.svc.ClaimAll(context.Background(), sender.ID)
	if err != nil {
		if errors.Is(err, mining.ErrNothingToClaim) {
			return c.Respond(&tele.CallbackResponse{Text: "暂无可领取的收益"})
		}
		return c.Respond(&tele.CallbackResponse{Text: "系统错误，请稍后重试"})
	}
	return c.Send(fmt.Sprintf("🎁 %s 领取挖矿收益 %d 积分", displayName(sender), total))
}
