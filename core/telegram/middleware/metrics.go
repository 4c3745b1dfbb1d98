package middleware

import (
	tele "gopkg.in/telebot.v4"
)

const replyStatsKey = "reply_stats"

// replyStats accumulates what a handler sent back during one update: the
// number of outbound messages and whether any of them carried an inline
// keyboard. The router logging layer reads it for the completion line.
type replyStats struct {
	messages int
	keyboard bool
}

// statsContext wraps tele.Context so every successful outbound call is
// counted against the update's replyStats.
type statsContext struct{ tele.Context }

func (s statsContext) record(opts []interface{}) {
	st, _ := s.Get(replyStatsKey).(*replyStats)
	if st == nil {
		return
	}
	st.messages++
	if !st.keyboard {
		st.keyboard = containsKeyboard(opts)
	}
}

func containsKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

func (s statsContext) Send(what interface{}, opts ...interface{}) error {
	err := s.Context.Send(what, opts...)
	if err == nil {
		s.record(opts)
	}
	return err
}

func (s statsContext) Reply(what interface{}, opts ...interface{}) error {
	err := s.Context.Reply(what, opts...)
	if err == nil {
		s.record(opts)
	}
	return err
}

// Edit counts as an outbound response too; the payment flow answers by
// editing the menu message in place.
func (s statsContext) Edit(what interface{}, opts ...interface{}) error {
	err := s.Context.Edit(what, opts...)
	if err == nil {
		s.record(opts)
	}
	return err
}

func (s statsContext) EditOrSend(what interface{}, opts ...interface{}) error {
	err := s.Context.EditOrSend(what, opts...)
	if err == nil {
		s.record(opts)
	}
	return err
}

// MessageMetricsMiddleware seeds the per-update replyStats and swaps in the
// counting context.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		c.Set(replyStatsKey, &replyStats{})
		return next(statsContext{Context: c})
	}
}

// GetCounters reports the outbound message count and keyboard presence for
// the current update.
func GetCounters(c tele.Context) (int, bool) {
	st, _ := c.Get(replyStatsKey).(*replyStats)
	if st == nil {
		return 0, false
	}
	return st.messages, st.keyboard
}
