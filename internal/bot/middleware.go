// Package bot wires the Telegram transport: bot construction, routing,
// and middleware.
package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-lottery-bot/internal/config"
	"telegram-lottery-bot/internal/repository"
)

// groupGateCacheTTL bounds how long an enabled/disabled verdict is
// reused before re-reading the registry.
const groupGateCacheTTL = 30 * time.Second

type gateEntry struct {
	allowed bool
	checked time.Time
}

// GroupGateMiddleware drops group updates from groups that are not
// registered and enabled. Private chats pass through, and admins pass
// everywhere so they can enable a fresh group.
func GroupGateMiddleware(cfg *config.Config, groups *repository.GroupRepository) tele.MiddlewareFunc {
	var (
		mu    sync.Mutex
		cache = make(map[int64]gateEntry)
	)

	allowed := func(chatID int64) bool {
		mu.Lock()
		if e, ok := cache[chatID]; ok && time.Since(e.checked) < groupGateCacheTTL {
			mu.Unlock()
			return e.allowed
		}
		mu.Unlock()

		g, err := groups.GetByID(context.Background(), chatID)
		ok := err == nil && g.Enabled
		if err != nil && !errors.Is(err, repository.ErrGroupNotFound) {
			log.Error().Err(err).Int64("chat_id", chatID).Msg("Group gate lookup failed")
		}

		mu.Lock()
		cache[chatID] = gateEntry{allowed: ok, checked: time.Now()}
		mu.Unlock()
		return ok
	}

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			chat, sender := c.Chat(), c.Sender()
			if chat == nil || sender == nil {
				return nil
			}
			if chat.Type == tele.ChatPrivate || cfg.IsAdmin(sender.ID) {
				return next(c)
			}
			if !allowed(chat.ID) {
				return nil
			}
			return next(c)
		}
	}
}

// AdminMiddleware restricts a route group to configured admins.
func AdminMiddleware(cfg *config.Config) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil || !cfg.IsAdmin(sender.ID) {
				return nil
			}
			return next(c)
		}
	}
}

// LoggingMiddleware logs every handled update and any handler error.
func LoggingMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			start := time.Now()
			err := next(c)

			evt := log.Debug()
			if err != nil {
				evt = log.Error().Err(err)
			}
			if sender := c.Sender(); sender != nil {
				evt = evt.Int64("user_id", sender.ID)
			}
			if chat := c.Chat(); chat != nil {
				evt = evt.Int64("chat_id", chat.ID)
			}
			evt.Str("text", c.Text()).Dur("took", time.Since(start)).Msg("Update handled")
			return err
		}
	}
}
