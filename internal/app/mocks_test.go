package app

import (
	"context"
	"fmt"
	"sync"

	"insiderbot/clients/notifier"
	"insiderbot/clients/polymarketapi"
)

// mockProfileAPI is a mock implementation of ProfileAPI.
type mockProfileAPI struct {
	profile     *polymarketapi.PublicProfile
	profileErr  error
	activity    []polymarketapi.Activity
	activityErr error

	mu            sync.Mutex
	profileCalls  int
	activityCalls int
}

func (m *mockProfileAPI) GetPublicProfile(ctx context.Context, wallet string) (*polymarketapi.PublicProfile, error) {
	m.mu.Lock()
	m.profileCalls++
	m.mu.Unlock()
	if m.profileErr != nil {
		return nil, m.profileErr
	}
	if m.profile == nil {
		return &polymarketapi.PublicProfile{ProxyWallet: wallet}, nil
	}
	return m.profile, nil
}

func (m *mockProfileAPI) GetUserActivity(ctx context.Context, wallet string, limit int) ([]polymarketapi.Activity, error) {
	m.mu.Lock()
	m.activityCalls++
	m.mu.Unlock()
	if m.activityErr != nil {
		return nil, m.activityErr
	}
	return m.activity, nil
}

// mockNonceAPI is a mock implementation of NonceAPI.
type mockNonceAPI struct {
	nonce uint64
	err   error

	mu    sync.Mutex
	calls int
}

func (m *mockNonceAPI) GetTransactionCount(ctx context.Context, address string) (uint64, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	return m.nonce, nil
}

// mockMarketAPI is a mock implementation of MarketAPI.
type mockMarketAPI struct {
	markets   []polymarketapi.GammaMarket
	activeErr error
	lookupErr error

	mu          sync.Mutex
	activeCalls int
	lookupCalls int
}

func (m *mockMarketAPI) GetActiveMarkets(ctx context.Context, limit int) ([]polymarketapi.GammaMarket, error) {
	m.mu.Lock()
	m.activeCalls++
	m.mu.Unlock()
	if m.activeErr != nil {
		return nil, m.activeErr
	}
	return m.markets, nil
}

func (m *mockMarketAPI) GetMarketByConditionID(ctx context.Context, conditionID string) (*polymarketapi.GammaMarket, error) {
	m.mu.Lock()
	m.lookupCalls++
	m.mu.Unlock()
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	for i := range m.markets {
		if m.markets[i].ConditionID == conditionID {
			return &m.markets[i], nil
		}
	}
	return nil, fmt.Errorf("market not found: %s", conditionID)
}

// mockTradeAPI is a mock implementation of TradeAPI. Each poll returns the
// next batch, repeating the last one when exhausted.
type mockTradeAPI struct {
	batches [][]polymarketapi.Trade
	err     error

	mu    sync.Mutex
	calls int
}

func (m *mockTradeAPI) GetLargeTrades(ctx context.Context, minUSD float64, limit int) ([]polymarketapi.Trade, error) {
	m.mu.Lock()
	idx := m.calls
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if len(m.batches) == 0 {
		return nil, nil
	}
	if idx >= len(m.batches) {
		idx = len(m.batches) - 1
	}
	return m.batches[idx], nil
}

// captureNotifier records every alert it receives.
type captureNotifier struct {
	mu       sync.Mutex
	insider  []notifier.InsiderAlert
	cashouts []notifier.CashoutAlert
}

func (c *captureNotifier) SendInsiderAlert(alert notifier.InsiderAlert) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insider = append(c.insider, alert)
}

func (c *captureNotifier) SendCashoutAlert(alert notifier.CashoutAlert) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cashouts = append(c.cashouts, alert)
}

func (c *captureNotifier) Close() error { return nil }

func (c *captureNotifier) insiderCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.insider)
}

func (c *captureNotifier) cashoutCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cashouts)
}
