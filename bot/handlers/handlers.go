// Package handlers implements the conversation flow: /start, token
// submission, the package menu and payment instructions.
package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/solboost/promobot/bot/catalog"
	"github.com/solboost/promobot/bot/market"
	"github.com/solboost/promobot/bot/replies"
	"github.com/solboost/promobot/core/logger"
	"github.com/solboost/promobot/core/telegram/callbacks"
	tghelpers "github.com/solboost/promobot/core/telegram/helpers"
	"github.com/solboost/promobot/core/telegram/keyboard"
	"github.com/solboost/promobot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// StateAwaitingToken marks a user who has been asked for a contract address.
const StateAwaitingToken state.State = "awaiting_token"

// Address length bounds, exclusive. Solana addresses are 32-44 characters;
// the wide window avoids rejecting valid input over encoding quirks while
// still skipping API calls for obvious garbage.
const (
	minAddressLen = 30
	maxAddressLen = 60
)

// Gateway abstracts the market data source.
type Gateway interface {
	Lookup(ctx context.Context, address string) (*market.Snapshot, error)
}

// Handlers wires conversation handlers to their dependencies.
type Handlers struct {
	states state.Manager
	gw     Gateway
	wallet string
}

// New builds the handler set. wallet is the SOL address shown in payment
// instructions.
func New(states state.Manager, gw Gateway, wallet string) *Handlers {
	return &Handlers{states: states, gw: gw, wallet: wallet}
}

// Start greets the user and asks for a contract address. Repeated /start
// calls simply restart the conversation.
func (h *Handlers) Start(c tele.Context) error {
	if err := tghelpers.SendText(c, replies.Welcome); err != nil {
		return err
	}
	if err := tghelpers.SendText(c, replies.AskAddress); err != nil {
		return err
	}
	h.states.SetState(c.Sender().ID, StateAwaitingToken)
	return nil
}

// HandleToken processes a message while the user is awaiting_token. Invalid
// input and lookup misses keep the state so the user can retry in place.
func (h *Handlers) HandleToken(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	address := strings.TrimSpace(c.Text())

	if len(address) <= minAddressLen || len(address) >= maxAddressLen {
		logger.Debug(ctx, "bot", "token.invalid",
			slog.String("status", "ok"),
			slog.Int("address_len", len(address)),
		)
		return tghelpers.SendText(c, replies.InvalidAddress)
	}

	start := time.Now()
	snap, err := h.gw.Lookup(ctx, address)
	if err != nil {
		if errors.Is(err, market.ErrTokenNotFound) {
			logger.Info(ctx, "bot", "token.not_found",
				slog.String("status", "ok"),
				slog.Int("address_len", len(address)),
				slog.Int64("elapsed_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
			)
		} else {
			logger.Error(ctx, "bot", "token.lookup_error",
				slog.String("status", "fail"),
				slog.Int("address_len", len(address)),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
				slog.Int64("elapsed_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
			)
		}
		return tghelpers.SendText(c, replies.TokenNotFound)
	}

	if err := tghelpers.SendMD(c, replies.MarketSummary(snap)); err != nil {
		return err
	}
	if err := tghelpers.SendText(c, replies.PackageMenu, &tele.SendOptions{ReplyMarkup: PackageMenuMarkup()}); err != nil {
		return err
	}

	h.states.ClearState(c.Sender().ID)
	return nil
}

// Guidance answers messages that arrive outside an active conversation.
func (h *Handlers) Guidance(c tele.Context) error {
	return tghelpers.SendText(c, replies.Guidance)
}

// SelectPackage turns the menu message into payment instructions for the
// chosen package. Unknown package IDs still get instructions so a stale
// keyboard never strands the user.
func (h *Handlers) SelectPackage(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	id := callbacks.CallbackPayload(c)

	label := replies.UnknownPackage
	if pkg, ok := catalog.Find(id); ok {
		label = pkg.Label
	} else {
		logger.Warn(ctx, "bot", "package.unknown",
			slog.String("status", "ok"),
			slog.String("package_id", logger.SanitizeLimit(id, 64)),
		)
	}

	logger.Info(ctx, "bot", "package.selected",
		slog.String("status", "ok"),
		slog.String("package_id", logger.SanitizeLimit(id, 64)),
	)

	markup := keyboard.SingleURLMarkup(replies.CopyAddressButton, replies.CopyAddressURL(h.wallet))
	return tghelpers.EditMD(c, replies.PaymentInstructions(label, h.wallet), markup)
}

// Wallet reports the configured payment address. Admin-only.
func (h *Handlers) Wallet(c tele.Context) error {
	return tghelpers.SendMD(c, "💳 Current payment wallet:\n`"+h.wallet+"`")
}

// PackageMenuMarkup builds the promotion package keyboard, two packages per row.
func PackageMenuMarkup() *tele.ReplyMarkup {
	all := catalog.All()
	btns := make([]keyboard.InlineBtn, 0, len(all))
	for _, p := range all {
		btns = append(btns, keyboard.InlineBtn{
			Text:   p.Label,
			Unique: CallbackKeyPackage,
			Data:   p.ID,
		})
	}
	return keyboard.InlineButtonsNPerRow(btns, 2)
}

// CallbackKeyPackage is the callback unique under which package selections
// are registered.
const CallbackKeyPackage = "pkg"
