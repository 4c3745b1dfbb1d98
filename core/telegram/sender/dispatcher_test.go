package sender

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solboost/promobot/core/logger"
)

func chatContext(chatID int64) context.Context {
	return logger.WithUpdateMeta(context.Background(), 1, chatID, chatID)
}

type recorder struct {
	mu   sync.Mutex
	seen []string
}

func (r *recorder) add(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, name)
}

func (r *recorder) order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.seen))
	copy(out, r.seen)
	return out
}

func TestSameChatDeliversInEnqueueOrder(t *testing.T) {
	d := NewDispatcher(Options{Lanes: 4, RetryBackoff: time.Millisecond})
	rec := &recorder{}
	ctx := chatContext(42)

	require.NoError(t, d.Enqueue(ctx, "send.text", "sendMessage", func() error {
		time.Sleep(30 * time.Millisecond) // slow first send must not be overtaken
		rec.add("welcome")
		return nil
	}))
	require.NoError(t, d.Enqueue(ctx, "send.text", "sendMessage", func() error {
		rec.add("prompt")
		return nil
	}))

	d.Close()
	assert.Equal(t, []string{"welcome", "prompt"}, rec.order())
}

func TestSameChatOrderSurvivesRetryBackoff(t *testing.T) {
	d := NewDispatcher(Options{Lanes: 4, MaxRetries: 2, RetryBackoff: 10 * time.Millisecond})
	rec := &recorder{}
	ctx := chatContext(42)

	failures := 0
	require.NoError(t, d.Enqueue(ctx, "send.md", "sendMessage", func() error {
		if failures == 0 {
			failures++
			return &net.OpError{Op: "dial", Err: errors.New("connection refused")}
		}
		rec.add("summary")
		return nil
	}))
	require.NoError(t, d.Enqueue(ctx, "send.text", "sendMessage", func() error {
		rec.add("menu")
		return nil
	}))

	d.Close()
	assert.Equal(t, []string{"summary", "menu"}, rec.order())
	assert.Zero(t, d.ErrorCount())
}

func TestDifferentChatsDoNotBlockEachOther(t *testing.T) {
	d := NewDispatcher(Options{Lanes: 4})
	rec := &recorder{}

	release := make(chan struct{})
	require.NoError(t, d.Enqueue(chatContext(8), "send.text", "sendMessage", func() error {
		<-release
		rec.add("slow-chat")
		return nil
	}))
	// Chat 9 maps to a different lane than chat 8 with 4 lanes.
	require.NoError(t, d.Enqueue(chatContext(9), "send.text", "sendMessage", func() error {
		rec.add("fast-chat")
		return nil
	}))

	deadline := time.After(2 * time.Second)
	for len(rec.order()) == 0 {
		select {
		case <-deadline:
			t.Fatal("second chat never delivered while first was blocked")
		case <-time.After(5 * time.Millisecond):
		}
	}
	assert.Equal(t, []string{"fast-chat"}, rec.order())

	close(release)
	d.Close()
	assert.ElementsMatch(t, []string{"slow-chat", "fast-chat"}, rec.order())
}

func TestNonRetryableFailureCounts(t *testing.T) {
	d := NewDispatcher(Options{Lanes: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})

	require.NoError(t, d.Enqueue(chatContext(42), "send.text", "sendMessage", func() error {
		return errors.New("telegram: bad request (400)")
	}))

	d.Close()
	assert.Equal(t, uint64(1), d.ErrorCount())
}

func TestEnqueueAfterClose(t *testing.T) {
	d := NewDispatcher(Options{Lanes: 1})
	d.Close()

	err := d.Enqueue(chatContext(42), "send.text", "sendMessage", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestLaneSaturationReportsQueueFull(t *testing.T) {
	d := NewDispatcher(Options{Lanes: 1, LaneDepth: 1})
	block := make(chan struct{})

	require.NoError(t, d.Enqueue(chatContext(42), "a", "sendMessage", func() error {
		<-block
		return nil
	}))

	// Fill the single lane's buffer, then one more must be rejected.
	var full bool
	for i := 0; i < 3; i++ {
		if err := d.Enqueue(chatContext(42), "b", "sendMessage", func() error { return nil }); err != nil {
			assert.ErrorIs(t, err, ErrQueueFull)
			full = true
			break
		}
	}
	assert.True(t, full)

	close(block)
	d.Close()
}

func TestClassifyError(t *testing.T) {
	cases := map[string]struct {
		err  error
		kind string
	}{
		"deadline": {context.DeadlineExceeded, "timeout"},
		"dial":     {&net.OpError{Op: "dial", Err: errors.New("refused")}, "dial"},
		"dns":      {&net.DNSError{Err: "no such host"}, "dns"},
		"http4xx":  {errors.New("telegram: bad request (400)"), "http_4xx"},
		"http5xx":  {errors.New("telegram: internal (502)"), "http_5xx"},
		"opaque":   {errors.New("boom"), "unknown"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.kind, classifyError(tc.err))
		})
	}
}

func TestSanitizeErrorMessage(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123456:AAH-secret_token/sendMessage": EOF`)
	got := sanitizeErrorMessage(err)
	assert.NotContains(t, got, "AAH-secret_token")
	assert.Contains(t, got, "bot<redacted>")
}
