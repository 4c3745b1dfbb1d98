package router

import (
	"time"

	tg "github.com/solboost/promobot/core/telegram"
	"github.com/solboost/promobot/core/telegram/callbacks"
	"github.com/solboost/promobot/core/telegram/middleware"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute returns a handler that routes callbacks through the registry.
// The callback query is acknowledged before dispatch so the client spinner
// clears even if the handler fails later.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		if c.Callback() == nil {
			return nil
		}

		key, _ := callbacks.ParseCallbackData(c.Callback())
		s := summary{
			handler: "callback." + normalizeHandlerName(key),
			start:   start,
			extras:  []slog.Attr{slog.String("cb_key", key)},
		}

		_ = c.Respond()

		cbHandler, ok := reg.Callback(key)
		if !ok {
			fallback := reg.CallbackNotFound()
			if fallback == nil {
				fallback = opts.NotFound
			}
			s.extras = append(s.extras, slog.String("reason", "not_found"))
			return runWithSummary(c, s, func() error {
				if fallback != nil {
					return fallback(c)
				}
				return nil
			})
		}

		return runWithSummary(c, s, func() error {
			return cbHandler(c)
		})
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
