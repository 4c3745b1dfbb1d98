// Package sender delivers outbound Telegram calls asynchronously.
//
// Jobs are fanned across a fixed set of serial lanes keyed by chat, so
// the messages of one conversation always leave in enqueue order — the
// welcome text cannot overtake the address prompt even while an earlier
// send is sitting in retry backoff. Different chats ride different
// lanes and do not block each other.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/solboost/promobot/core/logger"
	"github.com/solboost/promobot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the lane is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")

	tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	// Lanes is the number of serial delivery lanes. Jobs sharing a chat
	// always map to the same lane.
	Lanes int
	// LaneDepth is the buffered job capacity of each lane.
	LaneDepth int

	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the total time spent on a single job including backoff.
	MaxDuration time.Duration
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes outbound Telegram calls asynchronously with retries,
// preserving per-chat ordering.
type Dispatcher struct {
	opts  Options
	lanes []chan job
	rr    atomic.Uint64
	wg    sync.WaitGroup
	errs  atomic.Uint64

	closeOnce sync.Once
	closed    atomic.Bool
}

// NewDispatcher starts a dispatcher with sane defaults if options are zeroed.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.Lanes <= 0 {
		opts.Lanes = 4
	}
	if opts.LaneDepth <= 0 {
		opts.LaneDepth = 64
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}

	d := &Dispatcher{
		opts:  opts,
		lanes: make([]chan job, opts.Lanes),
	}
	for i := range d.lanes {
		lane := make(chan job, opts.LaneDepth)
		d.lanes[i] = lane
		d.wg.Add(1)
		go d.drain(lane)
	}
	return d
}

// Enqueue schedules the provided function for asynchronous execution on the
// lane owning the chat carried by ctx. The run closure must be idempotent if
// retries are desired.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if d.closed.Load() {
		return ErrQueueClosed
	}

	j := job{ctx: ctx, action: action, endpoint: endpoint, run: run}
	select {
	case d.laneFor(ctx) <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

// laneFor maps a context to a delivery lane. Jobs without chat or user
// metadata are spread round-robin; they carry no ordering contract.
func (d *Dispatcher) laneFor(ctx context.Context) chan job {
	key := logger.ChatIDFrom(ctx)
	if key == 0 {
		key = logger.UserIDFrom(ctx)
	}
	if key == 0 {
		return d.lanes[int(d.rr.Add(1)%uint64(len(d.lanes)))]
	}
	if key < 0 {
		key = -key
	}
	return d.lanes[int(key%int64(len(d.lanes)))]
}

// ErrorCount returns the number of failed jobs.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close stops accepting jobs and waits until every lane is drained.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		for _, lane := range d.lanes {
			close(lane)
		}
		d.wg.Wait()
	})
}

func (d *Dispatcher) drain(lane chan job) {
	defer d.wg.Done()
	for j := range lane {
		if err := d.deliver(j); err != nil {
			d.errs.Add(1)
		}
	}
}

// deliver runs a job with bounded retries. It blocks its lane for the whole
// attempt sequence: that is what keeps a conversation's messages ordered.
func (d *Dispatcher) deliver(j job) error {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	deadline := time.Now().Add(d.opts.MaxDuration)
	start := time.Now()

	logger.Debug(ctx, "tg.sender", "send.start", jobAttrs(ctx, j)...)

	attempts := d.opts.MaxRetries + 1
	for attempt := 1; ; attempt++ {
		err := j.run()
		if err == nil {
			attrs := jobAttrs(ctx, j)
			if attempt > 1 {
				attrs = append(attrs, slog.Int("attempt", attempt))
			}
			attrs = append(attrs, slog.Int64("elapsed_ms", logger.RoundMS(time.Since(start)).Milliseconds()))
			logger.Debug(ctx, "tg.sender", "send.success", attrs...)
			return nil
		}

		if !netutil.ShouldRetry(err) || attempt == attempts {
			logFailure(ctx, j, err, attempt, time.Since(start))
			return err
		}

		backoff := d.opts.RetryBackoff * time.Duration(attempt)
		if time.Now().Add(backoff).After(deadline) {
			logFailure(ctx, j, err, attempt, time.Since(start))
			return err
		}
		time.Sleep(backoff)
		logger.Debug(ctx, "tg.sender", "send.retry",
			append(jobAttrs(ctx, j),
				slog.Int("attempt", attempt),
				slog.Int64("delay_ms", backoff.Milliseconds()),
				slog.String("err", sanitizeErrorMessage(err)),
			)...,
		)
	}
}

func jobAttrs(ctx context.Context, j job) []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	if rid := logger.RIDFrom(ctx); rid != "" {
		attrs = append(attrs, slog.String("rid", rid))
	}
	if chatID := logger.ChatIDFrom(ctx); chatID != 0 {
		attrs = append(attrs, slog.Int64("chat_id", chatID))
	}
	if userID := logger.UserIDFrom(ctx); userID != 0 {
		attrs = append(attrs, slog.Int64("user_id", userID))
	}
	return attrs
}

func logFailure(ctx context.Context, j job, err error, attempts int, elapsed time.Duration) {
	logger.Error(ctx, "tg.sender", "send.fail",
		append(jobAttrs(ctx, j),
			slog.String("err", sanitizeErrorMessage(err)),
			slog.String("error_kind", classifyError(err)),
			slog.Int("attempts", attempts),
			slog.Int64("elapsed_ms", logger.RoundMS(elapsed).Milliseconds()),
		)...,
	)
}

// classifyError buckets a send failure for the error_kind log field.
func classifyError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return "dial"
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil && !errors.Is(urlErr.Err, err) {
		if kind := classifyError(urlErr.Err); kind != "" && kind != "unknown" {
			return kind
		}
	}

	switch status := httpStatusFromError(err); {
	case status >= 500:
		return "http_5xx"
	case status >= 400:
		return "http_4xx"
	}
	return "unknown"
}

// sanitizeErrorMessage prevents accidental leakage of Telegram bot tokens in logs.
func sanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}

func httpStatusFromError(err error) int {
	if err == nil {
		return 0
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var floodErr tele.FloodError
	if errors.As(err, &floodErr) {
		return http.StatusTooManyRequests
	}

	// telebot formats unknown API errors with a trailing "(code)".
	msg := err.Error()
	lastOpen := strings.LastIndex(msg, "(")
	lastClose := strings.LastIndex(msg, ")")
	if lastOpen >= 0 && lastClose > lastOpen+1 {
		if code, convErr := strconv.Atoi(strings.TrimSpace(msg[lastOpen+1 : lastClose])); convErr == nil {
			return code
		}
	}
	return 0
}
