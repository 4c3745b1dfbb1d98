package middleware

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

type dispatchContext struct {
	tele.Context
	sender *tele.User
}

func (d *dispatchContext) Sender() *tele.User { return d.sender }

func userCtx(id int64) *dispatchContext {
	return &dispatchContext{sender: &tele.User{ID: id}}
}

func TestPerUserDispatchSerializesOneUser(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
		done  = make(chan struct{}, 3)
	)
	record := func(name string, delay time.Duration) tele.HandlerFunc {
		return func(c tele.Context) error {
			time.Sleep(delay)
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			done <- struct{}{}
			return nil
		}
	}

	mw := PerUserDispatchMiddleware()
	first := mw(record("first", 30*time.Millisecond))
	second := mw(record("second", 0))
	third := mw(record("third", 0))

	c := userCtx(42)
	require.NoError(t, first(c))
	require.NoError(t, second(c))
	require.NoError(t, third(c))

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("handler never ran")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestPerUserDispatchDoesNotBlockOtherUsers(t *testing.T) {
	release := make(chan struct{})
	fastDone := make(chan struct{})

	mw := PerUserDispatchMiddleware()
	slow := mw(func(c tele.Context) error {
		<-release
		return nil
	})
	fast := mw(func(c tele.Context) error {
		close(fastDone)
		return nil
	})

	require.NoError(t, slow(userCtx(1)))
	require.NoError(t, fast(userCtx(2)))

	select {
	case <-fastDone:
	case <-time.After(2 * time.Second):
		t.Fatal("second user blocked behind first user's handler")
	}
	close(release)
}

func TestPerUserDispatchHandlesSenderlessInline(t *testing.T) {
	ran := false
	mw := PerUserDispatchMiddleware()
	h := mw(func(c tele.Context) error {
		ran = true
		return nil
	})

	require.NoError(t, h(&dispatchContext{sender: nil}))
	assert.True(t, ran, "senderless update should run synchronously")
}
