package middleware

import (
	"sync"

	"log/slog"

	"github.com/solboost/promobot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// PerUserDispatchMiddleware moves update handling off the poller's dispatch
// loop. Each update is appended to its sender's serial queue and handled on
// a per-user goroutine: one user's slow market lookup cannot stall other
// users, while a single user's updates still run one at a time in arrival
// order, so session reads and writes never interleave.
//
// Handler errors cannot propagate to the poller anymore; they are logged
// here instead. Updates without a sender are handled inline.
func PerUserDispatchMiddleware() tele.MiddlewareFunc {
	d := &userDispatcher{queues: make(map[int64]*updateQueue)}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil {
				return next(c)
			}
			d.submit(user.ID, func() {
				if err := next(c); err != nil {
					logger.TG.Error("handler failed",
						slog.String("event", "tg.dispatch.error"),
						slog.Int64("user_id", user.ID),
						slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
					)
				}
			})
			return nil
		}
	}
}

type updateQueue struct {
	pending []func()
	running bool
}

type userDispatcher struct {
	mu     sync.Mutex
	queues map[int64]*updateQueue
}

func (d *userDispatcher) submit(userID int64, fn func()) {
	d.mu.Lock()
	q, ok := d.queues[userID]
	if !ok {
		q = &updateQueue{}
		d.queues[userID] = q
	}
	q.pending = append(q.pending, fn)
	if q.running {
		d.mu.Unlock()
		return
	}
	q.running = true
	d.mu.Unlock()

	go d.drain(userID, q)
}

// drain runs queued updates for one user until the queue empties, then
// removes it so idle users cost nothing.
func (d *userDispatcher) drain(userID int64, q *updateQueue) {
	for {
		d.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			delete(d.queues, userID)
			d.mu.Unlock()
			return
		}
		fn := q.pending[0]
		q.pending = q.pending[1:]
		d.mu.Unlock()

		fn()
	}
}
