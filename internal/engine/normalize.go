package engine

import (
	"fmt"
	"time"
)

// RawTrade is a source-agnostic trade record as assembled from the Data API
// or the websocket feed before validation.
type RawTrade struct {
	ID        string
	Wallet    string
	MarketID  string
	Outcome   string
	Side      string
	Price     float64
	Size      float64
	USDSize   float64 // optional, computed from Price*Size when zero
	Timestamp int64   // unix seconds

	EventSlug string
	Title     string
}

// Normalize validates a raw trade and converts it into the canonical form.
// Malformed records return an error; callers are expected to count and drop
// them rather than abort their loop.
func Normalize(raw RawTrade) (Trade, error) {
	if raw.ID == "" {
		return Trade{}, fmt.Errorf("missing trade id")
	}
	if raw.Wallet == "" {
		return Trade{}, fmt.Errorf("trade %s: missing wallet", raw.ID)
	}
	if raw.MarketID == "" {
		return Trade{}, fmt.Errorf("trade %s: missing market id", raw.ID)
	}
	side, ok := ParseSide(raw.Side)
	if !ok {
		return Trade{}, fmt.Errorf("trade %s: invalid side %q", raw.ID, raw.Side)
	}
	if raw.Price <= 0 || raw.Price > 1 {
		return Trade{}, fmt.Errorf("trade %s: price %v out of range", raw.ID, raw.Price)
	}
	if raw.Size <= 0 {
		return Trade{}, fmt.Errorf("trade %s: size %v out of range", raw.ID, raw.Size)
	}
	if raw.Timestamp <= 0 {
		return Trade{}, fmt.Errorf("trade %s: missing timestamp", raw.ID)
	}

	usd := raw.USDSize
	if usd <= 0 {
		usd = raw.Price * raw.Size
	}

	return Trade{
		ID:        raw.ID,
		Wallet:    raw.Wallet,
		MarketID:  raw.MarketID,
		Outcome:   raw.Outcome,
		Side:      side,
		Price:     raw.Price,
		Size:      raw.Size,
		USDSize:   usd,
		Timestamp: time.Unix(raw.Timestamp, 0).UTC(),
		EventSlug: raw.EventSlug,
		Title:     raw.Title,
	}, nil
}
