// Package replies holds every user-facing message the bot sends.
// Keeping the texts in one place makes copy changes reviewable without
// touching handler logic.
package replies

import (
	"fmt"
	"net/url"

	"github.com/solboost/promobot/bot/market"
)

const (
	// Welcome is sent in response to /start.
	Welcome = "👋 Welcome to Solana Official Promotion Bot!\n\n" +
		"Your one-step tool for checking tokens🔍 and boosting your project visibility 🚀 \n" +
		"With me, you can promote your meme coins and pump.fun coins easily. \n Guarantee your spot with fast-track! no queue.\n"

	// AskAddress prompts for the token contract address right after the welcome.
	AskAddress = "💳 Please send your coin's contract address:"

	// InvalidAddress rejects input that fails the length check.
	InvalidAddress = "❌ That doesn't look like a valid Solana contract address (usually 32-44 characters). Please try again."

	// TokenNotFound is sent when no DEX lists the submitted address.
	TokenNotFound = "❌ Token not found on supported DEXs. Please check the address."

	// Guidance nudges users who message the bot outside a conversation.
	Guidance = "ℹ️ Please start with /start to submit a token address."

	// PackageMenu titles the promotion package keyboard.
	PackageMenu = "📦 Select your promotion package:"

	// CopyAddressButton labels the share-URL button under the payment message.
	CopyAddressButton = "🔗 Tap Above To Copy Address"

	// UnknownPackage substitutes for the label when a callback carries an
	// unrecognized package ID.
	UnknownPackage = "an unknown package"
)

// MarketSummary renders the Markdown market overview for a token.
func MarketSummary(s *market.Snapshot) string {
	return fmt.Sprintf(
		"💎 *%s* (%s)\n"+
			"💰 Price: %s\n"+
			"📊 Market Cap: %s\n"+
			"💦 Liquidity: %s\n"+
			"📍 DEX: %s",
		s.Name, s.Symbol, s.Price, s.MarketCap, s.Liquidity, s.Dex,
	)
}

// PaymentInstructions renders the Markdown payment message shown after a
// package is selected. The wallet address is wrapped in backticks so
// clients offer tap-to-copy.
func PaymentInstructions(packageLabel, wallet string) string {
	return fmt.Sprintf(
		"✅ You selected: *%s*\n\n"+
			"Please proceed to make payment to the following address. \n"+
			"*Send the exact SOL amount indicated on the button.*\n\n"+
			"💳 **Payment Address:**\n`%s`\n\n"+
			"⏳ Your promotion will begin shortly after the transaction is confirmed.",
		packageLabel, wallet,
	)
}

// CopyAddressURL builds the Telegram share link used by the copy button.
func CopyAddressURL(wallet string) string {
	return "https://t.me/share/url?url=" + url.QueryEscape(wallet)
}
