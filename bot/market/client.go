// Package market looks up live token market data from the DexScreener API.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/solboost/promobot/core/logger"
)

// ErrTokenNotFound is returned when DexScreener knows nothing about the address.
var ErrTokenNotFound = errors.New("token not found on supported DEXs")

const notAvailable = "N/A"

// Snapshot carries display-ready market data for a token. Numeric fields
// are pre-formatted; missing or zero upstream values render as "N/A".
type Snapshot struct {
	Name      string
	Symbol    string
	Dex       string
	Price     string
	MarketCap string
	Liquidity string
}

// Client is a DexScreener API client.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Client against the given base URL with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type lookupResponse struct {
	Pairs []pair `json:"pairs"`
}

type pair struct {
	DexID     string  `json:"dexId"`
	PriceUSD  string  `json:"priceUsd"`
	FDV       float64 `json:"fdv"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	BaseToken struct {
		Name   string `json:"name"`
		Symbol string `json:"symbol"`
	} `json:"baseToken"`
}

// Lookup fetches market data for a token address. The first pair returned
// by DexScreener is treated as authoritative. ErrTokenNotFound means the
// API answered but listed no pairs; any other error is a gateway failure.
func (c *Client) Lookup(ctx context.Context, address string) (*Snapshot, error) {
	start := time.Now()
	endpoint := c.baseURL + "/latest/dex/tokens/" + url.PathEscape(address)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("market: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Error(ctx, "market", "lookup.fail",
			slog.String("status", "fail"),
			slog.Int("address_len", len(address)),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.Int64("elapsed_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
		)
		return nil, fmt.Errorf("market: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		logger.Warn(ctx, "market", "lookup.fail",
			slog.String("status", "fail"),
			slog.Int("address_len", len(address)),
			slog.Int("http_code", resp.StatusCode),
			slog.Int64("elapsed_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
		)
		return nil, fmt.Errorf("market: unexpected status %d", resp.StatusCode)
	}

	var decoded lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("market: decode response: %w", err)
	}

	if len(decoded.Pairs) == 0 {
		logger.Info(ctx, "market", "lookup.miss",
			slog.String("status", "ok"),
			slog.Int("address_len", len(address)),
			slog.Int("pairs", 0),
			slog.Int64("elapsed_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
		)
		return nil, ErrTokenNotFound
	}

	p := decoded.Pairs[0]
	snap := &Snapshot{
		Name:      orNA(p.BaseToken.Name),
		Symbol:    orNA(p.BaseToken.Symbol),
		Dex:       orNA(p.DexID),
		Price:     formatPrice(p.PriceUSD),
		MarketCap: formatUSDWhole(p.FDV),
		Liquidity: formatUSDWhole(p.Liquidity.USD),
	}

	logger.Info(ctx, "market", "lookup.ok",
		slog.String("status", "ok"),
		slog.Int("address_len", len(address)),
		slog.String("dex", snap.Dex),
		slog.String("symbol", logger.SanitizeLimit(snap.Symbol, 32)),
		slog.Int("pairs", len(decoded.Pairs)),
		slog.Int64("elapsed_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	)
	return snap, nil
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}

// formatPrice renders a USD price with eight decimal places and a
// comma-grouped integer part, e.g. "$0.00001234". Empty or unparsable
// input renders as "N/A".
func formatPrice(priceUSD string) string {
	if strings.TrimSpace(priceUSD) == "" {
		return notAvailable
	}
	v, err := strconv.ParseFloat(priceUSD, 64)
	if err != nil || v == 0 {
		return notAvailable
	}
	fixed := strconv.FormatFloat(v, 'f', 8, 64)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign = "-"
		fixed = fixed[1:]
	}
	intPart, fracPart, _ := strings.Cut(fixed, ".")
	return sign + "$" + groupThousands(intPart) + "." + fracPart
}

// formatUSDWhole renders a USD amount truncated to a comma-grouped whole
// number, e.g. "$1,500,000". Zero renders as "N/A".
func formatUSDWhole(v float64) string {
	if v == 0 {
		return notAvailable
	}
	n := int64(v)
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	return sign + "$" + groupThousands(strconv.FormatInt(n, 10))
}

// groupThousands inserts commas into a plain digit string.
func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
