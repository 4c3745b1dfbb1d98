package router

import (
	"time"

	tg "github.com/solboost/promobot/core/telegram"
	"github.com/solboost/promobot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// FSM defines the minimal interface for an FSM manager.
type FSM interface {
	InProgress(userID int64) bool
	ManagerHandler(c tele.Context) error
}

// TextRoutes builds the handler for plain text: in-progress conversations
// go to the FSM, slash commands are resolved via the registry, everything
// else falls through to the registry's text fallback.
func TextRoutes(fsmMgr FSM, reg *tg.Registry) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()

		if fsmMgr != nil && fsmMgr.InProgress(c.Sender().ID) {
			return runWithSummary(c, summary{handler: "fsm", start: start}, func() error {
				return fsmMgr.ManagerHandler(c)
			})
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok {
				return runWithSummary(c, summary{handler: normalizeHandlerName(key), start: start}, func() error {
					return cmd.Handler(c)
				})
			}
			if fb := reg.TextFallback(); fb != nil {
				return runWithSummary(c, summary{handler: "fallback", start: start}, func() error {
					return fb(c)
				})
			}
		}

		logSummary(c, summary{handler: "unknown_text", start: start, status: "skip", outcome: "ok"}, nil)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
	}
}
