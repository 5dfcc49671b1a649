package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"telegram-lottery-bot/internal/game/lottery"
	"telegram-lottery-bot/internal/ledger"
	"telegram-lottery-bot/internal/repository"
)

// LotteryHandler handles free-text bet messages, draw queries, and
// cashback claims.
type LotteryHandler struct {
	svc *lottery.Service
}

func NewLotteryHandler(svc *lottery.Service) *LotteryHandler {
	return &LotteryHandler{svc: svc}
}

// MaybeHandleBet inspects a group text message; if it looks like a bet
// it places the parsed fragments and replies with a per-bet report.
// Returns false when the message is not a bet, so other text handlers
// get a chance.
func (h *LotteryHandler) MaybeHandleBet(c tele.Context) (bool, error) {
	text := c.Text()
	if !lottery.IsBetMessage(text) {
		return false, nil
	}
	parsed := lottery.ParseBetMessage(text)
	if len(parsed) == 0 {
		return false, nil
	}

	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return true, nil
	}

	report, err := h.svc.PlaceBets(context.Background(), chat.ID, sender.ID, parsed)
	if err != nil {
		if errors.Is(err, lottery.ErrGroupDisabled) || errors.Is(err, repository.ErrGroupNotFound) {
			return true, nil // silently ignore bets in unregistered groups
		}
		return true, c.Reply("❌ 系统错误，请稍后重试")
	}
	return true, c.Reply(renderPlaceReport(report))
}

func renderPlaceReport(report *lottery.PlaceReport) string {
	var b strings.Builder
	if len(report.Accepted) > 0 {
		fmt.Fprintf(&b, "✅ 第 %s 期 投注成功 %d 笔，共 %d 积分\n", report.DrawNumber, len(report.Accepted), report.TotalAccepted())
		for _, bet := range report.Accepted {
			fmt.Fprintf(&b, "  %s %d (赔率 %.2f)\n", bet.BetType, bet.BetAmount, float64(bet.OddsAtBet)/100)
		}
	}
	if len(report.Rejected) > 0 {
		fmt.Fprintf(&b, "⚠️ 未成功 %d 笔\n", len(report.Rejected))
		for _, r := range report.Rejected {
			fmt.Fprintf(&b, "  %s %d: %s\n", r.Bet.BetType, r.Bet.Amount, rejectReason(r.Reason))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, lottery.ErrInvalidBetType):
		return "无效玩法"
	case errors.Is(err, lottery.ErrAmountOutOfRange):
		return "金额超出限制"
	case errors.Is(err, lottery.ErrNoOpenPeriod):
		return "当前无进行中的期号"
	case errors.Is(err, repository.ErrDuplicateBet):
		return "本期已投注该玩法"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "积分不足"
	case errors.Is(err, ledger.ErrAccountFrozen):
		return "账户已冻结"
	default:
		return "系统错误"
	}
}

// HandleLottery shows the most recent settled draws of this group.
func (h *LotteryHandler) HandleLottery(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}

	draws, err := h.svc.History(context.Background(), chat.ID, 10)
	if err != nil {
		return c.Reply("❌ 查询失败，请稍后重试")
	}
	if len(draws) == 0 {
		return c.Reply("暂无开奖记录")
	}

	var b strings.Builder
	b.WriteString("🎲 最近开奖\n")
	for _, d := range draws {
		fmt.Fprintf(&b, "第 %s 期: 开 %d (投注 %d / 派彩 %d)\n", d.DrawNumber, *d.Result, d.TotalBets, d.TotalPayout)
	}
	return c.Reply(strings.TrimRight(b.String(), "\n"))
}

// HandleBets shows the caller's bets on the current period.
func (h *LotteryHandler) HandleBets(c tele.Context) error {
	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	draw, bets, err := h.svc.CurrentBets(context.Background(), chat.ID, sender.ID)
	if err != nil {
		if errors.Is(err, lottery.ErrNoOpenPeriod) {
			return c.Reply("当前无进行中的期号")
		}
		return c.Reply("❌ 查询失败，请稍后重试")
	}
	if len(bets) == 0 {
		return c.Reply(fmt.Sprintf("第 %s 期 您还没有投注", draw.DrawNumber))
	}

	var b strings.Builder
	var total int64
	fmt.Fprintf(&b, "📋 第 %s 期 我的投注\n", draw.DrawNumber)
	for _, bet := range bets {
		total += bet.BetAmount
		fmt.Fprintf(&b, "  %s %d (赔率 %.2f)\n", bet.BetType, bet.BetAmount, float64(bet.OddsAtBet)/100)
	}
	fmt.Fprintf(&b, "合计 %d 积分", total)
	return c.Reply(b.String())
}

// HandleCashback claims all pending cashback for the caller.
func (h *LotteryHandler) HandleCashback(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	total, err := h.svc.ClaimCashback(context.Background(), sender.ID)
	if err != nil {
		if errors.Is(err, lottery.ErrNoCashback) {
			return c.Reply("暂无可领取的返水")
		}
		return c.Reply("❌ 领取失败，请稍后重试")
	}
	return c.Reply(fmt.Sprintf("🎁 返水已到账 %d 积分", total))
}
