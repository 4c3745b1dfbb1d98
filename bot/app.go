// Package bot assembles the promotion bot: configuration, market gateway,
// conversation state and Telegram routing.
package bot

import (
	"context"
	"time"

	coreconfig "github.com/solboost/promobot/core/config"
	"github.com/solboost/promobot/core/logger"
	tg "github.com/solboost/promobot/core/telegram"
	"github.com/solboost/promobot/core/telegram/commands"
	"github.com/solboost/promobot/core/telegram/router"
	"github.com/solboost/promobot/core/telegram/state"

	"github.com/solboost/promobot/bot/handlers"
	"github.com/solboost/promobot/bot/market"

	"log/slog"
)

// App bundles the wired components of the bot.
type App struct {
	cfg      *coreconfig.Config
	states   state.Manager
	registry *tg.Registry
	handlers *handlers.Handlers
}

// NewApp wires handlers, state and registry from config.
func NewApp(cfg *coreconfig.Config) *App {
	states := state.NewMemoryManager()
	gateway := market.NewClient(cfg.Market.BaseURL, time.Duration(cfg.Market.TimeoutSeconds)*time.Second)
	h := handlers.New(states, gateway, cfg.Wallet.Address)

	reg := tg.NewRegistry()
	reg.RegisterCommand("/start", commands.Command{
		Handler:     h.Start,
		Description: "Start token promotion",
	})
	reg.RegisterCommand("/wallet", commands.Command{
		Handler:     h.Wallet,
		Description: "Show the payment wallet",
		AdminOnly:   true,
		Hidden:      true,
	})
	_ = reg.RegisterCallback(handlers.CallbackKeyPackage, h.SelectPackage)
	reg.SetTextFallback(h.Guidance)

	state.RegisterHandler(handlers.StateAwaitingToken, h.HandleToken)

	return &App{
		cfg:      cfg,
		states:   states,
		registry: reg,
		handlers: h,
	}
}

// RunOptions builds the Telegram runtime options for this app.
func (a *App) RunOptions() tg.RunOptions {
	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{
		AdminID: a.cfg.Telegram.AdminID,
	})
	routes = append(routes, router.CallbackRoute(a.registry, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(a.states, a.registry)...)

	return tg.RunOptions{
		Config:      a.cfg,
		Registry:    a.registry,
		Middlewares: tg.DefaultMiddlewares(a.cfg, nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt tg.Runtime) error {
			logger.Bot.LogAttrs(ctx, slog.LevelInfo, "ready",
				slog.String("event", "ready"),
				slog.Int("commands", len(a.registry.Commands())),
				slog.Int("callbacks", len(a.registry.ListCallbacks())),
			)
			return nil
		},
		OnStop: func(ctx context.Context, rt tg.Runtime) error {
			logger.Bot.LogAttrs(ctx, slog.LevelInfo, "stopping",
				slog.String("event", "stopping"),
			)
			return nil
		},
	}
}
