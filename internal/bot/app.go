// Package bot wires the subscription ledger to the Telegram runtime:
// command handlers, form definitions, and the reminder worker.
package bot

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/jmoiron/sqlx"

	"subbot/core/bootstrap"
	"subbot/core/logger"
	coretelegram "subbot/core/telegram"
	"subbot/internal/forms"
	"subbot/internal/ledger"
	"subbot/internal/settings"
)

// App owns the bot's long-lived components.
type App struct {
	cfg      *Config
	db       *sqlx.DB
	store    *ledger.Store
	settings *settings.Document
	engine   *forms.Engine
}

// New bootstraps infrastructure and builds the application.
func New(cfg *Config) (*App, error) {
	res, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	policy, err := ledger.ParseLinkPolicy(cfg.Ledger.LinkPolicy)
	if err != nil {
		_ = res.DB.Close()
		return nil, fmt.Errorf("bot: %w", err)
	}

	doc, err := settings.Load(cfg.Settings.Path)
	if err != nil {
		_ = res.DB.Close()
		return nil, fmt.Errorf("bot: %w", err)
	}

	return &App{
		cfg:      cfg,
		db:       res.DB,
		store:    ledger.NewStore(res.DB, policy),
		settings: doc,
		engine:   forms.NewEngine(time.Duration(cfg.Forms.IdleTTLMinutes) * time.Minute),
	}, nil
}

// TelegramRunOptions assembles the runtime options for the bot.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	a.registerCommands(reg)
	a.registerCallbacks(reg)
	reg.SetTextInterceptor(a.handleFormInput)

	return coretelegram.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg.CoreConfig(), nil),
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			go a.runReminder(ctx, rt.Bot)
			go a.runSessionSweeper(ctx)
			return nil
		},
		OnStop: func(ctx context.Context, rt coretelegram.Runtime) error {
			return a.Close()
		},
	}, nil
}

// Close releases the database pool.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	if err != nil {
		return fmt.Errorf("bot: close db: %w", err)
	}
	return nil
}

func (a *App) runSessionSweeper(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.engine.Sweep(); n > 0 {
				logger.Forms.LogAttrs(ctx, slog.LevelDebug, "idle sessions dropped",
					slog.String("event", "session.sweep"),
					slog.Int("count", n),
				)
			}
		}
	}
}
