package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"telegram-lottery-bot/internal/game/fishing"
	"telegram-lottery-bot/internal/ledger"
)

// FishingHandler handles rod selection, casts, and history.
type FishingHandler struct {
	svc *fishing.Service
}

func NewFishingHandler(svc *fishing.Service) *FishingHandler {
	return &FishingHandler{svc: svc}
}

// HandleFishing shows the rod selection keyboard.
func (h *FishingHandler) HandleFishing(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}

	markup := &tele.ReplyMarkup{}
	var row []tele.Btn
	for _, rod := range fishing.Rods() {
		data := Callback{Domain: "fishing", Action: "cast", GroupID: chat.ID, Args: []string{rod.Name}}
		row = append(row, markup.Data(fmt.Sprintf("%s (%d积分)", rod.Label, rod.Cost), "fishing", data.Encode()))
	}
	markup.Inline(markup.Row(row...))
	return c.Reply("🎣 选择鱼竿开始钓鱼", markup)
}

// HandleCast runs one cast from an inline button.
func (h *FishingHandler) HandleCast(c tele.Context, cb Callback) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	res, err := h.svc.Cast(context.Background(), cb.GroupID, sender.ID, cb.Arg(0))
	if err != nil {
		switch {
		case errors.Is(err, fishing.ErrInvalidRodType):
			return c.Respond(&tele.CallbackResponse{Text: "无效的鱼竿"})
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return c.Respond(&tele.CallbackResponse{Text: "积分不足"})
		case errors.Is(err, ledger.ErrAccountFrozen):
			return c.Respond(&tele.CallbackResponse{Text: "账户已冻结"})
		default:
			return c.Respond(&tele.CallbackResponse{Text: "系统错误，请稍后重试"})
		}
	}

	name := displayName(sender)
	if !res.Success {
		return c.Send(fmt.Sprintf("🎣 %s 用%s抛竿……鱼跑了！(-%d积分)", name, res.Rod.Label, res.Rod.Cost))
	}
	if res.Legendary {
		return c.Send(fmt.Sprintf("🐋 %s 用%s钓到了传说之鱼「%s」！获得 %d 积分，红包雨来了！",
			name, res.Rod.Label, res.Specimen.Name, res.Specimen.Reward))
	}
	return c.Send(fmt.Sprintf("🎣 %s 用%s钓到了「%s」，获得 %d 积分 (净 %+d)",
		name, res.Rod.Label, res.Specimen.Name, res.Specimen.Reward, res.Net))
}

// HandleHistory shows the caller's recent fishing ledger entries.
func (h *FishingHandler) HandleHistory(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	entries, err := h.svc.History(context.Background(), sender.ID, 20)
	if err != nil {
		return c.Reply("❌ 查询失败，请稍后重试")
	}
	if len(entries) == 0 {
		return c.Reply("暂无钓鱼记录")
	}

	var b strings.Builder
	b.WriteString("📜 钓鱼记录\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%s %+d %s\n", e.CreatedAt.Format("01-02 15:04"), e.Amount, e.Remarks)
	}
	return c.Reply(strings.TrimRight(b.String(), "\n"))
}

func displayName(u *tele.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return fmt.Sprintf("用户%d", u.ID)
}
