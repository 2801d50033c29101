package notifier

import (
	"time"
)

// Signal is a fired detection heuristic in display form.
type Signal struct {
	Kind   string // e.g. "new_wallet", "longshot"
	Detail string // e.g. "wallet is 4 days old"
}

// InsiderAlert contains all the data needed for a suspicious-buy notification.
type InsiderAlert struct {
	// Wallet info
	TraderName    string
	TraderAddress string
	WalletURL     string

	// Trade info
	Shares   float64
	Price    float64
	Notional float64
	Outcome  string

	// Market info
	MarketTitle string
	MarketURL   string
	ConditionID string
	EndDate     time.Time // zero when unknown

	// Wallet profile, when known
	WalletAgeDays    int
	WalletTradeCount int
	WalletVolumeUSD  float64
	HasWalletAge     bool
	HasTradeCount    bool
	HasWalletVolume  bool

	// Classification
	Severity   string // NONE, MEDIUM, RELIABLE, HIGH_CONFIDENCE, URGENT
	Priority   int
	Signals    []Signal
	EndingSoon bool

	Timestamp time.Time
}

// CashoutAlert contains the data for a matched exit on a previously alerted
// position.
type CashoutAlert struct {
	// Wallet info
	TraderAddress string
	WalletURL     string

	// Market info
	MarketTitle string
	MarketURL   string
	Outcome     string

	// Entry leg
	EntryNotional float64
	EntryPrice    float64

	// Exit leg
	ExitNotional float64
	ExitPrice    float64

	// Result
	PnlUSD float64
	PnlPct float64
	Held   time.Duration

	Timestamp time.Time
}

// Notifier is the interface for sending alerts to various channels.
type Notifier interface {
	// SendInsiderAlert sends a suspicious-buy notification.
	SendInsiderAlert(alert InsiderAlert)

	// SendCashoutAlert sends a matched-exit notification.
	SendCashoutAlert(alert CashoutAlert)

	// Close cleans up any resources.
	Close() error
}

// MultiNotifier broadcasts alerts to multiple notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a new MultiNotifier with the given notifiers.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	// Filter out nil notifiers
	var active []Notifier
	for _, n := range notifiers {
		if n != nil {
			active = append(active, n)
		}
	}
	return &MultiNotifier{notifiers: active}
}

// SendInsiderAlert sends the alert to all registered notifiers.
func (m *MultiNotifier) SendInsiderAlert(alert InsiderAlert) {
	for _, n := range m.notifiers {
		n.SendInsiderAlert(alert)
	}
}

// SendCashoutAlert sends the alert to all registered notifiers.
func (m *MultiNotifier) SendCashoutAlert(alert CashoutAlert) {
	for _, n := range m.notifiers {
		n.SendCashoutAlert(alert)
	}
}

// Close closes all registered notifiers.
func (m *MultiNotifier) Close() error {
	var lastErr error
	for _, n := range m.notifiers {
		if err := n.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Count returns the number of active notifiers.
func (m *MultiNotifier) Count() int {
	return len(m.notifiers)
}
