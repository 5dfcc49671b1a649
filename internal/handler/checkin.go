package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v3"

	"telegram-lottery-bot/internal/game/checkin"
)

// CheckinHandler handles the 签到 group text command.
type CheckinHandler struct {
	svc *checkin.Service
}

func NewCheckinHandler(svc *checkin.Service) *CheckinHandler {
	return &CheckinHandler{svc: svc}
}

// HandleCheckin runs the daily check-in.
func (h *CheckinHandler) HandleCheckin(c tele.Context) error {
	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	res, err := h.svc.SignIn(context.Background(), sender.ID, chat.ID, time.Now())
	if err != nil {
		if errors.Is(err, checkin.ErrAlreadySignedToday) {
			return c.Reply("📅 今天已经签到过了，明天再来吧")
		}
		return c.Reply("❌ 签到失败，请稍后重试")
	}

	msg := fmt.Sprintf("✅ %s 签到成功！连续 %d 天，获得 %d 积分", displayName(sender), res.ContinuousDays, res.Total())
	if res.Bonus > 0 {
		msg += fmt.Sprintf("（含连签奖励 %d）", res.Bonus)
	}
	return c.Reply(msg)
}
