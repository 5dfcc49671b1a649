package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"telegram-lottery-bot/internal/game/redpacket"
	"telegram-lottery-bot/internal/ledger"
	"telegram-lottery-bot/internal/repository"
)

// RedPacketHandler handles packet creation and grab buttons.
type RedPacketHandler struct {
	mgr *redpacket.Manager
}

func NewRedPacketHandler(mgr *redpacket.Manager) *RedPacketHandler {
	return &RedPacketHandler{mgr: mgr}
}

// HandleSend creates a user packet: /redpacket <积分>.
func (h *RedPacketHandler) HandleSend(c tele.Context) error {
	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	args := c.Args()
	if len(args) != 1 {
		return c.Reply("用法: /redpacket <积分>")
	}
	amount, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || amount <= 0 {
		return c.Reply("请输入正确的积分数")
	}

	p, err := h.mgr.CreateUser(context.Background(), sender.ID, displayName(sender), chat.ID, amount)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return c.Reply("积分不足")
		case errors.Is(err, redpacket.ErrInvalidAmount):
			return c.Reply("请输入正确的积分数")
		default:
			return c.Reply("❌ 发红包失败，请稍后重试")
		}
	}

	msg, err := c.Bot().Send(chat, PacketText(p), GrabMarkup(chat.ID, p.ID))
	if err != nil {
		return err
	}
	h.mgr.Attach(p.ID, msg.ID)
	return nil
}

// HandleGrab takes one slice from an inline button.
func (h *RedPacketHandler) HandleGrab(c tele.Context, cb Callback) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	amount, p, err := h.mgr.Grab(context.Background(), cb.Arg(0), sender.ID, displayName(sender))
	if err != nil {
		switch {
		case errors.Is(err, redpacket.ErrPacketNotFound):
			return c.Respond(&tele.CallbackResponse{Text: "红包已过期"})
		case errors.Is(err, redpacket.ErrFullyGrabbed):
			return c.Respond(&tele.CallbackResponse{Text: "手慢了，红包抢完了"})
		case errors.Is(err, redpacket.ErrSelfGrab):
			return c.Respond(&tele.CallbackResponse{Text: "不能抢自己的红包"})
		case errors.Is(err, redpacket.ErrAlreadyGrabbed):
			return c.Respond(&tele.CallbackResponse{Text: "你已经抢过这个红包了"})
		case errors.Is(err, redpacket.ErrGrabInProgress):
			return c.Respond(&tele.CallbackResponse{Text: "操作太快，请稍候"})
		case errors.Is(err, repository.ErrAccountNotFound):
			return c.Respond(&tele.CallbackResponse{Text: "请先私聊机器人 /start 开通账户"})
		default:
			return c.Respond(&tele.CallbackResponse{Text: "系统错误，请稍后重试"})
		}
	}

	if err := c.Respond(&tele.CallbackResponse{Text: fmt.Sprintf("抢到 %d 积分！", amount)}); err != nil {
		return err
	}
	// keep the tally on the original message fresh
	return c.Edit(PacketText(p), GrabMarkup(p.ChatID, p.ID))
}

// PacketText renders the live tally of a packet.
func PacketText(p *redpacket.Packet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🧧 %s 的红包: %d 积分 / %d 份\n", p.SenderName, p.TotalAmount, p.SliceCount)
	for _, g := range p.Grabs {
		fmt.Fprintf(&b, "  %s 抢到 %d\n", g.Name, g.Amount)
	}
	if p.RemainingCount > 0 {
		fmt.Fprintf(&b, "还剩 %d 份", p.RemainingCount)
	} else {
		b.WriteString("已抢完 🎉")
	}
	return b.String()
}

// FinalText renders the tally shown after a packet settles.
func FinalText(p *redpacket.Packet, expired bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🧧 %s 的红包: %d 积分 / %d 份\n", p.SenderName, p.TotalAmount, p.SliceCount)
	for _, g := range p.Grabs {
		fmt.Fprintf(&b, "  %s 抢到 %d\n", g.Name, g.Amount)
	}
	if expired && p.RemainingAmount > 0 {
		fmt.Fprintf(&b, "已过期，剩余 %d 积分退回", p.RemainingAmount)
	} else {
		b.WriteString("已抢完 🎉")
	}
	return b.String()
}

// GrabMarkup builds the grab button.
func GrabMarkup(chatID int64, packetID string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	data := Callback{Domain: "rp", Action: "grab", GroupID: chatID, Args: []string{packetID}}
	markup.Inline(markup.Row(markup.Data("🧧 抢红包", "rp", data.Encode())))
	return markup
}
