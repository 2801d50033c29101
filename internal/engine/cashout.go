package engine

import "time"

// Correlator matches sells against previously alerted positions to surface
// the exit leg of a suspected insider trade.
type Correlator struct {
	store *Store
}

// NewCorrelator creates a correlator over the given store.
func NewCorrelator(store *Store) *Correlator {
	return &Correlator{store: store}
}

// OnSell attempts to match a sell against an open position. The position is
// consumed atomically, so a second sell on the same key will not match.
func (c *Correlator) OnSell(t Trade) (Cashout, bool) {
	if t.Side != SideSell {
		return Cashout{}, false
	}

	pos, ok := c.store.TakePosition(t.Wallet, t.MarketID, t.Outcome)
	if !ok {
		return Cashout{}, false
	}

	pnl := t.USDSize - pos.USDSize
	pct := 0.0
	if pos.USDSize > 0 {
		pct = pnl / pos.USDSize * 100
	}

	var held time.Duration
	if !pos.OpenedAt.IsZero() && t.Timestamp.After(pos.OpenedAt) {
		held = t.Timestamp.Sub(pos.OpenedAt)
	}

	return Cashout{
		Position: pos,
		Sell:     t,
		PnlUSD:   pnl,
		PnlPct:   pct,
		Held:     held,
	}, true
}
