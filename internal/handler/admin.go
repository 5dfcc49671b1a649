package handler

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	tele "gopkg.in/telebot.v3"

	"telegram-lottery-bot/internal/ledger"
	"telegram-lottery-bot/internal/model"
	"telegram-lottery-bot/internal/pkg/db"
	"telegram-lottery-bot/internal/repository"
)

// AdminHandler handles group registration and manual adjustments. The
// admin middleware gates every route here.
type AdminHandler struct {
	pool   *db.Pool
	groups *repository.GroupRepository
	ledger *ledger.Engine
}

func NewAdminHandler(pool *db.Pool, groups *repository.GroupRepository, eng *ledger.Engine) *AdminHandler {
	return &AdminHandler{pool: pool, groups: groups, ledger: eng}
}

// HandleEnable registers the current group and enables games in it.
func (h *AdminHandler) HandleEnable(c tele.Context) error {
	chat := c.Chat()
	if chat == nil || chat.Type == tele.ChatPrivate {
		return c.Reply("请在群内使用该命令")
	}
	ctx := context.Background()

	if _, err := h.groups.Upsert(ctx, chat.ID, chat.Title, 0, 0); err != nil {
		return c.Reply("❌ 操作失败，请稍后重试")
	}
	if err := h.groups.SetEnabled(ctx, chat.ID, true); err != nil {
		return c.Reply("❌ 操作失败，请稍后重试")
	}
	return c.Reply("✅ 本群游戏已开启")
}

// HandleDisable pauses games in the current group.
func (h *AdminHandler) HandleDisable(c tele.Context) error {
	chat := c.Chat()
	if chat == nil || chat.Type == tele.ChatPrivate {
		return c.Reply("请在群内使用该命令")
	}
	if err := h.groups.SetEnabled(context.Background(), chat.ID, false); err != nil {
		return c.Reply("❌ 操作失败，请稍后重试")
	}
	return c.Reply("⏸ 本群游戏已暂停")
}

// HandleLimits sets the group's per-bet range: /admin_limits <min> <max>.
func (h *AdminHandler) HandleLimits(c tele.Context) error {
	chat := c.Chat()
	if chat == nil || chat.Type == tele.ChatPrivate {
		return c.Reply("请在群内使用该命令")
	}

	args := c.Args()
	if len(args) != 2 {
		return c.Reply("用法: /admin_limits <最小> <最大>")
	}
	min, err1 := strconv.ParseInt(args[0], 10, 64)
	max, err2 := strconv.ParseInt(args[1], 10, 64)
	if err1 != nil || err2 != nil || min <= 0 || max < min {
		return c.Reply("请输入正确的限额范围")
	}

	if err := h.groups.SetBetLimits(context.Background(), chat.ID, min, max); err != nil {
		return c.Reply("❌ 操作失败，请稍后重试")
	}
	return c.Reply(fmt.Sprintf("✅ 投注限额已更新: %d - %d", min, max))
}

// HandleCredit grants activity points: /admin_credit <user_id> <points>.
func (h *AdminHandler) HandleCredit(c tele.Context) error {
	args := c.Args()
	if len(args) != 2 {
		return c.Reply("用法: /admin_credit <用户ID> <积分>")
	}
	userID, err1 := strconv.ParseInt(args[0], 10, 64)
	points, err2 := strconv.ParseInt(args[1], 10, 64)
	if err1 != nil || err2 != nil || points <= 0 {
		return c.Reply("请输入正确的用户ID和积分数")
	}

	ctx := context.Background()
	err := db.RunInTx(ctx, h.pool, func(tx pgx.Tx) error {
		if _, err := h.ledger.GetOrCreateAccount(ctx, tx, userID, model.AccountPoints); err != nil {
			return err
		}
		src := ledger.Source{Remarks: "活动奖励"}
		_, err := h.ledger.Credit(ctx, tx, userID, model.AccountPoints, points, model.TxKindActivity, src)
		return err
	})
	if err != nil {
		return c.Reply("❌ 发放失败，请稍后重试")
	}
	return c.Reply(fmt.Sprintf("✅ 已向用户 %d 发放 %d 积分", userID, points))
}
