package handlers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solboost/promobot/bot/market"
	"github.com/solboost/promobot/bot/replies"
	"github.com/solboost/promobot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

const testWallet = "So1anaWa11etAddr1111111111111111111111111"

type sentMessage struct {
	what interface{}
	opts []interface{}
}

// fakeContext implements the subset of tele.Context the handlers touch.
type fakeContext struct {
	tele.Context

	text   string
	sender *tele.User
	chat   *tele.Chat
	update tele.Update
	cb     *tele.Callback

	store  map[string]interface{}
	sent   []sentMessage
	edited []sentMessage
}

func newFakeContext(userID int64, text string) *fakeContext {
	return &fakeContext{
		text:   text,
		sender: &tele.User{ID: userID},
		chat:   &tele.Chat{ID: userID},
		update: tele.Update{ID: 1},
		store:  make(map[string]interface{}),
	}
}

func (f *fakeContext) Text() string             { return f.text }
func (f *fakeContext) Sender() *tele.User       { return f.sender }
func (f *fakeContext) Chat() *tele.Chat         { return f.chat }
func (f *fakeContext) Update() tele.Update      { return f.update }
func (f *fakeContext) Callback() *tele.Callback { return f.cb }

func (f *fakeContext) Get(key string) interface{} { return f.store[key] }
func (f *fakeContext) Set(key string, val interface{}) {
	f.store[key] = val
}

func (f *fakeContext) Send(what interface{}, opts ...interface{}) error {
	f.sent = append(f.sent, sentMessage{what: what, opts: opts})
	return nil
}

func (f *fakeContext) Edit(what interface{}, opts ...interface{}) error {
	f.edited = append(f.edited, sentMessage{what: what, opts: opts})
	return nil
}

func (f *fakeContext) Respond(resp ...*tele.CallbackResponse) error { return nil }

type fakeGateway struct {
	snap  *market.Snapshot
	err   error
	calls []string
}

func (g *fakeGateway) Lookup(_ context.Context, address string) (*market.Snapshot, error) {
	g.calls = append(g.calls, address)
	if g.err != nil {
		return nil, g.err
	}
	return g.snap, nil
}

func sampleSnapshot() *market.Snapshot {
	return &market.Snapshot{
		Name:      "Sample Token",
		Symbol:    "SMPL",
		Dex:       "raydium",
		Price:     "$0.00001234",
		MarketCap: "$1,500,000",
		Liquidity: "$25,000",
	}
}

func newHandlers(gw Gateway) (*Handlers, state.Manager) {
	mgr := state.NewMemoryManager()
	return New(mgr, gw, testWallet), mgr
}

func sentTexts(msgs []sentMessage) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if s, ok := m.what.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func TestStartGreetsAndSetsState(t *testing.T) {
	h, mgr := newHandlers(&fakeGateway{snap: sampleSnapshot()})
	c := newFakeContext(42, "/start")

	require.NoError(t, h.Start(c))

	texts := sentTexts(c.sent)
	require.Len(t, texts, 2)
	assert.Equal(t, replies.Welcome, texts[0])
	assert.Equal(t, replies.AskAddress, texts[1])
	assert.Equal(t, StateAwaitingToken, mgr.GetState(42))
}

func TestStartIsRepeatable(t *testing.T) {
	h, mgr := newHandlers(&fakeGateway{snap: sampleSnapshot()})

	first := newFakeContext(42, "/start")
	require.NoError(t, h.Start(first))
	second := newFakeContext(42, "/start")
	require.NoError(t, h.Start(second))

	// A repeated /start restarts the flow with the exact same messages.
	require.Equal(t, []string{replies.Welcome, replies.AskAddress}, sentTexts(first.sent))
	assert.Equal(t, sentTexts(first.sent), sentTexts(second.sent))
	assert.Equal(t, StateAwaitingToken, mgr.GetState(42))
}

func TestHandleTokenLengthBounds(t *testing.T) {
	cases := []struct {
		name    string
		length  int
		allowed bool
	}{
		{"below_min", 29, false},
		{"at_min", 30, false},
		{"just_above_min", 31, true},
		{"just_below_max", 59, true},
		{"at_max", 60, false},
		{"above_max", 61, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := &fakeGateway{snap: sampleSnapshot()}
			h, mgr := newHandlers(gw)
			mgr.SetState(42, StateAwaitingToken)

			c := newFakeContext(42, strings.Repeat("a", tc.length))
			require.NoError(t, h.HandleToken(c))

			if tc.allowed {
				assert.Len(t, gw.calls, 1)
			} else {
				assert.Empty(t, gw.calls)
				texts := sentTexts(c.sent)
				require.Len(t, texts, 1)
				assert.Equal(t, replies.InvalidAddress, texts[0])
				// User may retry without restarting.
				assert.Equal(t, StateAwaitingToken, mgr.GetState(42))
			}
		})
	}
}

func TestHandleTokenTrimsWhitespace(t *testing.T) {
	gw := &fakeGateway{snap: sampleSnapshot()}
	h, mgr := newHandlers(gw)
	mgr.SetState(42, StateAwaitingToken)

	address := strings.Repeat("b", 40)
	c := newFakeContext(42, "  "+address+"\n")
	require.NoError(t, h.HandleToken(c))

	require.Len(t, gw.calls, 1)
	assert.Equal(t, address, gw.calls[0])
}

func TestHandleTokenNotFoundKeepsState(t *testing.T) {
	gw := &fakeGateway{err: market.ErrTokenNotFound}
	h, mgr := newHandlers(gw)
	mgr.SetState(42, StateAwaitingToken)

	c := newFakeContext(42, strings.Repeat("a", 40))
	require.NoError(t, h.HandleToken(c))

	texts := sentTexts(c.sent)
	require.Len(t, texts, 1)
	assert.Equal(t, replies.TokenNotFound, texts[0])
	assert.Equal(t, StateAwaitingToken, mgr.GetState(42))
}

func TestHandleTokenGatewayErrorKeepsState(t *testing.T) {
	gw := &fakeGateway{err: errors.New("connection refused")}
	h, mgr := newHandlers(gw)
	mgr.SetState(42, StateAwaitingToken)

	c := newFakeContext(42, strings.Repeat("a", 40))
	require.NoError(t, h.HandleToken(c))

	texts := sentTexts(c.sent)
	require.Len(t, texts, 1)
	assert.Equal(t, replies.TokenNotFound, texts[0])
	assert.Equal(t, StateAwaitingToken, mgr.GetState(42))
}

func TestHandleTokenSuccess(t *testing.T) {
	gw := &fakeGateway{snap: sampleSnapshot()}
	h, mgr := newHandlers(gw)
	mgr.SetState(42, StateAwaitingToken)

	c := newFakeContext(42, strings.Repeat("a", 40))
	require.NoError(t, h.HandleToken(c))

	require.Len(t, c.sent, 2)

	summary, ok := c.sent[0].what.(string)
	require.True(t, ok)
	assert.Contains(t, summary, "💎 *Sample Token* (SMPL)")
	assert.Contains(t, summary, "💰 Price: $0.00001234")
	assert.Contains(t, summary, "📍 DEX: raydium")

	menu, ok := c.sent[1].what.(string)
	require.True(t, ok)
	assert.Equal(t, replies.PackageMenu, menu)

	require.Len(t, c.sent[1].opts, 1)
	sendOpts, ok := c.sent[1].opts[0].(*tele.SendOptions)
	require.True(t, ok)
	markup := sendOpts.ReplyMarkup
	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 4)
	for _, row := range markup.InlineKeyboard {
		assert.Len(t, row, 2)
	}
	assert.Equal(t, "2 hours | 0.3 SOL", markup.InlineKeyboard[0][0].Text)
	assert.Equal(t, "24 hours | 3.5 SOL", markup.InlineKeyboard[3][1].Text)

	assert.False(t, mgr.InProgress(42))
}

func TestPackageMenuMarkupEncoding(t *testing.T) {
	markup := PackageMenuMarkup()

	require.Len(t, markup.InlineKeyboard, 4)
	first := markup.InlineKeyboard[0][0]
	assert.Equal(t, CallbackKeyPackage, first.Unique)
	assert.Equal(t, "package_2h", first.Data)

	last := markup.InlineKeyboard[3][1]
	assert.Equal(t, "package_24h", last.Data)
}

func TestSelectPackageEditsIntoPayment(t *testing.T) {
	h, _ := newHandlers(&fakeGateway{snap: sampleSnapshot()})

	c := newFakeContext(42, "")
	c.cb = &tele.Callback{Unique: CallbackKeyPackage, Data: "package_8h"}

	require.NoError(t, h.SelectPackage(c))

	require.Len(t, c.edited, 1)
	text, ok := c.edited[0].what.(string)
	require.True(t, ok)
	assert.Contains(t, text, "✅ You selected: *8 hours | 1.4 SOL*")
	assert.Contains(t, text, "`"+testWallet+"`")

	require.Len(t, c.edited[0].opts, 1)
	sendOpts, ok := c.edited[0].opts[0].(*tele.SendOptions)
	require.True(t, ok)
	require.NotNil(t, sendOpts.ReplyMarkup)
	require.Len(t, sendOpts.ReplyMarkup.InlineKeyboard, 1)
	btn := sendOpts.ReplyMarkup.InlineKeyboard[0][0]
	assert.Equal(t, replies.CopyAddressButton, btn.Text)
	assert.Equal(t, replies.CopyAddressURL(testWallet), btn.URL)
}

func TestSelectPackageUnknownID(t *testing.T) {
	h, _ := newHandlers(&fakeGateway{snap: sampleSnapshot()})

	c := newFakeContext(42, "")
	c.cb = &tele.Callback{Unique: CallbackKeyPackage, Data: "package_99h"}

	require.NoError(t, h.SelectPackage(c))

	require.Len(t, c.edited, 1)
	text, ok := c.edited[0].what.(string)
	require.True(t, ok)
	assert.Contains(t, text, "✅ You selected: *"+replies.UnknownPackage+"*")
	assert.Contains(t, text, "`"+testWallet+"`")
}

func TestGuidance(t *testing.T) {
	h, _ := newHandlers(&fakeGateway{snap: sampleSnapshot()})
	c := newFakeContext(42, "hello")

	require.NoError(t, h.Guidance(c))

	texts := sentTexts(c.sent)
	require.Len(t, texts, 1)
	assert.Equal(t, replies.Guidance, texts[0])
}

func TestWalletShowsConfiguredAddress(t *testing.T) {
	h, _ := newHandlers(&fakeGateway{snap: sampleSnapshot()})
	c := newFakeContext(42, "/wallet")

	require.NoError(t, h.Wallet(c))

	texts := sentTexts(c.sent)
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "`"+testWallet+"`")
}
