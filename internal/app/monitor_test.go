package app

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"insiderbot/clients/polymarketapi"
	"insiderbot/internal/engine"

	"go.uber.org/zap"
)

type monitorFixture struct {
	monitor  *TradeMonitor
	store    *engine.Store
	markets  *MarketCache
	tradeAPI *mockTradeAPI
	alerts   *captureNotifier
}

// newMonitorFixture builds a monitor over a suspicious trader profile: a
// 5-day-old wallet with 2 lifetime trades, and one cached active market.
func newMonitorFixture(t *testing.T) *monitorFixture {
	t.Helper()

	profileAPI := &mockProfileAPI{
		profile: &polymarketapi.PublicProfile{
			ProxyWallet: "0xtrader",
			CreatedAt:   time.Now().AddDate(0, 0, -5).Format(time.RFC3339),
		},
		activity: []polymarketapi.Activity{
			{UsdcSize: 500},
			{UsdcSize: 1200},
		},
	}
	marketAPI := &mockMarketAPI{
		markets: []polymarketapi.GammaMarket{
			testGammaMarket("0xcond1", "Will the incumbent resign?", 100000),
		},
	}
	tradeAPI := &mockTradeAPI{}
	alerts := &captureNotifier{}

	store := engine.NewStore(engine.StoreConfig{})
	profiler := NewWalletProfiler(zap.NewNop(), profileAPI, nil, time.Minute, 5)
	markets := NewMarketCache(zap.NewNop(), marketAPI, 100, time.Minute)
	if err := markets.Refresh(context.Background()); err != nil {
		t.Fatalf("market refresh: %v", err)
	}

	monitor := NewTradeMonitor(zap.NewNop(), tradeAPI, profiler, markets, store, alerts, DefaultMonitorConfig())

	return &monitorFixture{
		monitor:  monitor,
		store:    store,
		markets:  markets,
		tradeAPI: tradeAPI,
		alerts:   alerts,
	}
}

func suspiciousBuy(id string) engine.RawTrade {
	return engine.RawTrade{
		ID:        id,
		Wallet:    "0xtrader",
		MarketID:  "0xcond1",
		Outcome:   "Yes",
		Side:      "BUY",
		Price:     0.10,
		Size:      100000,
		Timestamp: time.Now().Unix(),
		EventSlug: "incumbent-resign",
		Title:     "Will the incumbent resign?",
	}
}

func TestProcess_BuyFiresAlert(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()

	f.monitor.Process(ctx, suspiciousBuy("t1"), displayInfo{traderName: "whale"}, true)

	if f.alerts.insiderCount() != 1 {
		t.Fatalf("expected 1 insider alert, got %d", f.alerts.insiderCount())
	}

	alert := f.alerts.insider[0]
	// New wallet, low trade count, longshot, and 10% of 24h volume all fire.
	if len(alert.Signals) != 4 {
		t.Errorf("expected 4 signals, got %d", len(alert.Signals))
	}
	if alert.Severity != "HIGH_CONFIDENCE" {
		t.Errorf("expected HIGH_CONFIDENCE, got %s", alert.Severity)
	}
	if !alert.HasWalletAge || alert.WalletAgeDays != 5 {
		t.Errorf("expected wallet age 5, got %d (has=%v)", alert.WalletAgeDays, alert.HasWalletAge)
	}
	if !alert.HasTradeCount || alert.WalletTradeCount != 2 {
		t.Errorf("expected trade count 2, got %d (has=%v)", alert.WalletTradeCount, alert.HasTradeCount)
	}
	if !alert.HasWalletVolume || alert.WalletVolumeUSD != 1700 {
		t.Errorf("expected lifetime volume 1700, got %f (has=%v)", alert.WalletVolumeUSD, alert.HasWalletVolume)
	}
	if alert.TraderName != "whale" {
		t.Errorf("unexpected trader name %q", alert.TraderName)
	}
	if alert.Notional != 10000 {
		t.Errorf("expected notional 10000, got %f", alert.Notional)
	}
	if alert.MarketURL != "https://polymarket.com/event/event-0xcond1" {
		t.Errorf("unexpected market url %q", alert.MarketURL)
	}
	if alert.Priority <= 0 {
		t.Error("expected a positive priority score")
	}

	if f.store.OpenPositionCount() != 1 {
		t.Errorf("expected 1 open position, got %d", f.store.OpenPositionCount())
	}

	stats := f.monitor.Stats()
	if stats.AlertsHighConf != 1 {
		t.Errorf("expected high confidence counter 1, got %d", stats.AlertsHighConf)
	}
	if stats.LastAlertAt.IsZero() {
		t.Error("expected last alert timestamp")
	}
}

func TestProcess_SellAfterBuyReportsCashout(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()

	f.monitor.Process(ctx, suspiciousBuy("t1"), displayInfo{}, true)

	sell := suspiciousBuy("t2")
	sell.Side = "SELL"
	sell.Price = 0.16
	f.monitor.Process(ctx, sell, displayInfo{}, true)

	if f.alerts.cashoutCount() != 1 {
		t.Fatalf("expected 1 cashout alert, got %d", f.alerts.cashoutCount())
	}

	cashout := f.alerts.cashouts[0]
	if cashout.PnlUSD != 6000 {
		t.Errorf("expected pnl 6000, got %f", cashout.PnlUSD)
	}
	if cashout.PnlPct != 60 {
		t.Errorf("expected pnl 60%%, got %f", cashout.PnlPct)
	}
	if cashout.EntryNotional != 10000 {
		t.Errorf("expected entry 10000, got %f", cashout.EntryNotional)
	}
	if cashout.ExitNotional != 16000 {
		t.Errorf("expected exit 16000, got %f", cashout.ExitNotional)
	}

	// Position is consumed; a second sell matches nothing.
	sell2 := sell
	sell2.ID = "t3"
	f.monitor.Process(ctx, sell2, displayInfo{}, true)
	if f.alerts.cashoutCount() != 1 {
		t.Errorf("expected position consumed after first sell, got %d cashouts", f.alerts.cashoutCount())
	}

	if f.monitor.Stats().Cashouts != 1 {
		t.Errorf("expected cashout counter 1, got %d", f.monitor.Stats().Cashouts)
	}
}

func TestProcess_SellWithoutPositionIgnored(t *testing.T) {
	f := newMonitorFixture(t)

	sell := suspiciousBuy("t1")
	sell.Side = "SELL"
	f.monitor.Process(context.Background(), sell, displayInfo{}, true)

	if f.alerts.cashoutCount() != 0 {
		t.Errorf("expected no cashout, got %d", f.alerts.cashoutCount())
	}
}

func TestProcess_DuplicateSkipped(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()

	f.monitor.Process(ctx, suspiciousBuy("t1"), displayInfo{}, true)
	f.monitor.Process(ctx, suspiciousBuy("t1"), displayInfo{}, true)

	if f.alerts.insiderCount() != 1 {
		t.Errorf("expected 1 alert for duplicate trade, got %d", f.alerts.insiderCount())
	}
	if f.monitor.Stats().SkippedDuplicate != 1 {
		t.Errorf("expected duplicate counter 1, got %d", f.monitor.Stats().SkippedDuplicate)
	}
}

func TestProcess_LowNotionalBuySkipped(t *testing.T) {
	f := newMonitorFixture(t)

	small := suspiciousBuy("t1")
	small.Size = 100 // 100 shares at $0.10 is $10
	f.monitor.Process(context.Background(), small, displayInfo{}, true)

	if f.alerts.insiderCount() != 0 {
		t.Errorf("expected no alert, got %d", f.alerts.insiderCount())
	}
	if f.monitor.Stats().SkippedLowNotional != 1 {
		t.Errorf("expected low notional counter 1, got %d", f.monitor.Stats().SkippedLowNotional)
	}
}

func TestProcess_MalformedSkipped(t *testing.T) {
	f := newMonitorFixture(t)

	bad := suspiciousBuy("t1")
	bad.Price = 1.5
	f.monitor.Process(context.Background(), bad, displayInfo{}, true)

	if f.monitor.Stats().SkippedMalformed != 1 {
		t.Errorf("expected malformed counter 1, got %d", f.monitor.Stats().SkippedMalformed)
	}
	if f.alerts.insiderCount() != 0 {
		t.Errorf("expected no alert, got %d", f.alerts.insiderCount())
	}
}

func TestProcess_ObviousPriceNoSignals(t *testing.T) {
	f := newMonitorFixture(t)

	sure := suspiciousBuy("t1")
	sure.Price = 0.95
	sure.Size = 10000
	f.monitor.Process(context.Background(), sure, displayInfo{}, true)

	if f.alerts.insiderCount() != 0 {
		t.Errorf("expected no alert for near-certain price, got %d", f.alerts.insiderCount())
	}
	if f.monitor.Stats().SkippedNoSignals != 1 {
		t.Errorf("expected no-signals counter 1, got %d", f.monitor.Stats().SkippedNoSignals)
	}
}

func TestProcess_AlertsSuppressedWhenPriming(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()

	f.monitor.Process(ctx, suspiciousBuy("t1"), displayInfo{}, false)

	if f.alerts.insiderCount() != 0 {
		t.Errorf("expected suppressed alert, got %d", f.alerts.insiderCount())
	}
	// State is still recorded so the replayed backlog stays deduped and the
	// position can correlate a later sell.
	if f.store.SeenCount() != 1 {
		t.Errorf("expected trade recorded, seen=%d", f.store.SeenCount())
	}
	if f.store.OpenPositionCount() != 1 {
		t.Errorf("expected position opened, got %d", f.store.OpenPositionCount())
	}

	sell := suspiciousBuy("t2")
	sell.Side = "SELL"
	f.monitor.Process(ctx, sell, displayInfo{}, false)

	if f.alerts.cashoutCount() != 0 {
		t.Errorf("expected suppressed cashout, got %d", f.alerts.cashoutCount())
	}

	// The stats counters report delivered alerts only.
	stats := f.monitor.Stats()
	if stats.TotalAlerts() != 0 {
		t.Errorf("suppressed alerts must not be counted, got %d", stats.TotalAlerts())
	}
	if stats.Cashouts != 0 {
		t.Errorf("suppressed cashouts must not be counted, got %d", stats.Cashouts)
	}
	if !stats.LastAlertAt.IsZero() {
		t.Error("no alert was sent, last alert time must stay zero")
	}
}

func TestPollOnce_FirstPollPrimes(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()

	trade := polymarketapi.Trade{
		ID:          "t1",
		ProxyWallet: "0xtrader",
		Side:        "BUY",
		Size:        100000,
		Price:       0.10,
		Timestamp:   time.Now().Unix(),
		ConditionID: "0xcond1",
		Outcome:     "Yes",
		EventSlug:   "incumbent-resign",
		Title:       "Will the incumbent resign?",
		Name:        "whale",
	}
	trade2 := trade
	trade2.ID = "t2"

	f.tradeAPI.batches = [][]polymarketapi.Trade{
		{trade},
		{trade, trade2},
	}

	f.monitor.pollOnce(ctx)
	if f.alerts.insiderCount() != 0 {
		t.Fatalf("first poll must not alert, got %d", f.alerts.insiderCount())
	}

	f.monitor.pollOnce(ctx)
	if f.alerts.insiderCount() != 1 {
		t.Fatalf("expected 1 alert for the new trade only, got %d", f.alerts.insiderCount())
	}
	if f.alerts.insider[0].TraderName != "whale" {
		t.Errorf("unexpected trader name %q", f.alerts.insider[0].TraderName)
	}

	stats := f.monitor.Stats()
	if stats.Polls != 2 {
		t.Errorf("expected 2 polls, got %d", stats.Polls)
	}
	if stats.SkippedDuplicate != 1 {
		t.Errorf("expected 1 duplicate from the overlap, got %d", stats.SkippedDuplicate)
	}
}

func TestPollOnce_APIError(t *testing.T) {
	f := newMonitorFixture(t)
	f.tradeAPI.err = fmt.Errorf("data api down")

	f.monitor.pollOnce(context.Background())

	if f.monitor.Stats().Polls != 0 {
		t.Errorf("failed poll should not count, got %d", f.monitor.Stats().Polls)
	}
}

func TestHandleWSMessage_TradeProcessed(t *testing.T) {
	f := newMonitorFixture(t)

	frame := json.RawMessage(fmt.Sprintf(`{
		"event_type": "trade",
		"id": "ws-t1",
		"asset_id": "token-0xcond1-yes",
		"taker_address": "0xtrader",
		"side": "BUY",
		"price": "0.10",
		"size": "100000",
		"timestamp": "%d"
	}`, time.Now().Unix()))

	f.monitor.HandleWSMessage(context.Background(), frame)

	if f.alerts.insiderCount() != 1 {
		t.Fatalf("expected 1 alert from ws trade, got %d", f.alerts.insiderCount())
	}
	alert := f.alerts.insider[0]
	if alert.ConditionID != "0xcond1" {
		t.Errorf("expected token resolved to market, got %q", alert.ConditionID)
	}
	if alert.Outcome != "token-0xcond1-yes" {
		t.Errorf("expected asset id as outcome key, got %q", alert.Outcome)
	}
	if alert.MarketTitle != "Will the incumbent resign?" {
		t.Errorf("unexpected title %q", alert.MarketTitle)
	}
}

func TestHandleWSMessage_NonTradeIgnored(t *testing.T) {
	f := newMonitorFixture(t)

	f.monitor.HandleWSMessage(context.Background(), json.RawMessage(`{"event_type":"book","asset_id":"token-0xcond1-yes"}`))
	f.monitor.HandleWSMessage(context.Background(), json.RawMessage(`not json`))

	if f.monitor.Stats().TradesSeen != 0 {
		t.Errorf("expected nothing processed, got %d", f.monitor.Stats().TradesSeen)
	}
}

func TestHandleWSMessage_UnknownTokenIgnored(t *testing.T) {
	f := newMonitorFixture(t)

	frame := json.RawMessage(fmt.Sprintf(`{
		"event_type": "trade",
		"id": "ws-t1",
		"asset_id": "token-unknown",
		"taker_address": "0xtrader",
		"side": "BUY",
		"price": "0.10",
		"size": "100000",
		"timestamp": "%d"
	}`, time.Now().Unix()))

	f.monitor.HandleWSMessage(context.Background(), frame)

	if f.monitor.Stats().TradesSeen != 0 {
		t.Errorf("expected trade dropped for unknown token, got %d", f.monitor.Stats().TradesSeen)
	}
}

func TestMonitorStats_TotalAlerts(t *testing.T) {
	stats := MonitorStats{
		AlertsUrgent:   1,
		AlertsHighConf: 2,
		AlertsReliable: 3,
		AlertsMedium:   4,
	}
	if stats.TotalAlerts() != 10 {
		t.Errorf("expected 10, got %d", stats.TotalAlerts())
	}
}

func TestWalletURL(t *testing.T) {
	if got := walletURL("0xabc"); got != "https://polymarket.com/profile/0xabc" {
		t.Errorf("unexpected url %q", got)
	}
	if got := walletURL(""); got != "" {
		t.Errorf("expected empty url, got %q", got)
	}
}

func TestMarketURL(t *testing.T) {
	if got := marketURL("some-event"); got != "https://polymarket.com/event/some-event" {
		t.Errorf("unexpected url %q", got)
	}
	if got := marketURL(""); got != "" {
		t.Errorf("expected empty url, got %q", got)
	}
}
