package bot

import (
	"context"
	"time"

	"log/slog"

	tele "gopkg.in/telebot.v4"

	"subbot/core/logger"
)

// runReminder periodically sends the unpaid report to every admin. A zero
// interval disables the worker.
func (a *App) runReminder(ctx context.Context, bot *tele.Bot) {
	interval := time.Duration(a.cfg.Reminder.IntervalHours) * time.Hour
	if interval <= 0 || bot == nil {
		return
	}

	logger.Remind.LogAttrs(ctx, slog.LevelInfo, "reminder started",
		slog.String("event", "start"),
		slog.Duration("interval", interval),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.remindOnce(ctx, bot)
		}
	}
}

func (a *App) remindOnce(ctx context.Context, bot *tele.Bot) {
	reports, err := a.store.UnpaidGroups(ctx)
	if err != nil {
		logger.Remind.LogAttrs(ctx, slog.LevelError, "report failed",
			slog.String("event", "report"),
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return
	}
	if len(reports) == 0 {
		logger.Remind.LogAttrs(ctx, slog.LevelDebug, "nothing to report",
			slog.String("event", "report"),
			slog.String("status", "ok"),
			slog.Int("groups", 0),
		)
		return
	}

	text := renderUnpaid(reports)
	for _, adminID := range a.cfg.Telegram.AdminIDs {
		if _, err := bot.Send(&tele.User{ID: adminID}, text, tele.ModeHTML); err != nil {
			logger.Remind.LogAttrs(ctx, slog.LevelWarn, "send failed",
				slog.String("event", "send"),
				slog.String("status", "fail"),
				slog.Int64("user_id", adminID),
				slog.String("err", err.Error()),
			)
		}
	}

	logger.Remind.LogAttrs(ctx, slog.LevelInfo, "report sent",
		slog.String("event", "report"),
		slog.String("status", "ok"),
		slog.Int("groups", len(reports)),
	)
}
