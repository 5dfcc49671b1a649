package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-lottery-bot/internal/model"
)

// drawNotifier pushes draw lifecycle announcements into group chats.
// Sends are retried a few times; persistent failure is logged and
// dropped, never propagated back into settlement.
type drawNotifier struct {
	bot *tele.Bot
}

func (n *drawNotifier) send(groupID int64, text string) {
	err := retry.Do(
		func() error {
			_, err := n.bot.Send(tele.ChatID(groupID), text)
			return err
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		log.Warn().Err(err).Int64("group_id", groupID).Msg("Failed to deliver draw announcement")
	}
}

func (n *drawNotifier) AnnounceOpen(groupID int64, draw *model.DrawPeriod) {
	n.send(groupID, fmt.Sprintf("🎲 第 %s 期 投注开始！\n发送 大100 / 小单50 / 数字8押100 参与", draw.DrawNumber))
}

func (n *drawNotifier) AnnounceResult(groupID int64, draw *model.DrawPeriod, bets []*model.Bet) {
	var b strings.Builder
	fmt.Fprintf(&b, "🎲 第 %s 期 开奖: %d\n", draw.DrawNumber, *draw.Result)

	winners := 0
	for _, bet := range bets {
		if bet.IsWin != nil && *bet.IsWin {
			winners++
			fmt.Fprintf(&b, "🏆 用户%d %s %d → 赢 %d\n", bet.UserID, bet.BetType, bet.BetAmount, bet.WinAmount)
		}
	}
	if winners == 0 {
		b.WriteString("本期无人中奖")
	} else {
		fmt.Fprintf(&b, "共派彩 %d 积分", draw.TotalPayout)
	}
	n.send(groupID, strings.TrimRight(b.String(), "\n"))
}
