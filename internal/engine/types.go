// Package engine contains the detection core: trade normalization, signal
// evaluation, severity classification, in-memory alert state, and the
// sell-side cashout correlator. The package is pure and does no I/O; all
// enrichment data arrives pre-fetched from the caller.
package engine

import (
	"strings"
	"time"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide parses a side string case-insensitively.
func ParseSide(s string) (Side, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return SideBuy, true
	case "SELL":
		return SideSell, true
	}
	return "", false
}

// Trade is the canonical trade record produced by Normalize. Every field
// above the display block is required.
type Trade struct {
	ID        string
	Wallet    string
	MarketID  string // condition ID
	Outcome   string
	Side      Side
	Price     float64 // in (0, 1]
	Size      float64 // shares
	USDSize   float64 // Price * Size when the source omits it
	Timestamp time.Time

	// Display-only fields, may be empty.
	EventSlug string
	Title     string
}

// WalletProfile holds enrichment data for a wallet. Nil pointers mean the
// value could not be determined; rules that depend on them are skipped.
type WalletProfile struct {
	Wallet       string
	AgeDays      *int
	TradeCount   *int
	VolumeUSD    *float64
	FreshOnChain bool // low Polygon nonce, used when AgeDays is unknown
	FetchedAt    time.Time
}

// MarketSnapshot holds enrichment data for a market. A zero Volume24h or
// zero EndDate disables the rules that depend on them.
type MarketSnapshot struct {
	MarketID  string
	Title     string
	Slug      string
	EventSlug string
	Volume24h float64
	Liquidity float64
	EndDate   time.Time
	TokenIDs  []string
	FetchedAt time.Time
}

// Position records the entry leg of an alerted buy, keyed by
// (wallet, market, outcome) in the store.
type Position struct {
	Wallet   string
	MarketID string
	Outcome  string
	Price    float64
	Size     float64
	USDSize  float64
	Title    string
	OpenedAt time.Time
}

// Cashout is a sell matched against a previously alerted position.
type Cashout struct {
	Position Position
	Sell     Trade
	PnlUSD   float64
	PnlPct   float64
	Held     time.Duration
}
