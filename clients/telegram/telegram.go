package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"insiderbot/clients/notifier"
	"insiderbot/config"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const telegramAPIURL = "https://api.telegram.org/bot%s/%s"

const maxSendAttempts = 3

// TelegramClient sends alerts to Telegram.
// Implements notifier.Notifier interface.
type TelegramClient struct {
	logger   *zap.Logger
	botToken string
	chatID   string
	isProd   bool
	client   *http.Client
}

func NewTelegramClient(logger *zap.Logger, cfg *config.Config) *TelegramClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	chatID := cfg.Telegram.BetaChatID
	if cfg.IsProd {
		chatID = cfg.Telegram.ProdChatID
	}

	token := cfg.Telegram.BotToken
	if token == "" {
		logger.Warn("TELEGRAM_BOT_KEY not set, Telegram alerts disabled")
		return &TelegramClient{
			logger: logger,
			chatID: chatID,
			isProd: cfg.IsProd,
		}
	}

	logger.Info("telegram bot initialized",
		zap.Bool("isProd", cfg.IsProd),
		zap.String("chatID", chatID),
	)

	return &TelegramClient{
		logger:   logger,
		botToken: token,
		chatID:   chatID,
		isProd:   cfg.IsProd,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// SendInsiderAlert sends a suspicious-buy notification.
// Implements notifier.Notifier interface.
func (tc *TelegramClient) SendInsiderAlert(alert notifier.InsiderAlert) {
	if tc.botToken == "" || tc.chatID == "" {
		tc.logger.Warn("telegram not configured, skipping alert")
		return
	}

	message := tc.buildInsiderMessage(alert)

	if err := tc.sendMessage(message); err != nil {
		tc.logger.Error("failed to send telegram message", zap.Error(err))
		return
	}

	tc.logger.Info("sent telegram insider alert",
		zap.String("trader", alert.TraderAddress),
		zap.String("market", alert.MarketTitle),
		zap.String("severity", alert.Severity),
	)
}

// SendCashoutAlert sends a matched-exit notification.
// Implements notifier.Notifier interface.
func (tc *TelegramClient) SendCashoutAlert(alert notifier.CashoutAlert) {
	if tc.botToken == "" || tc.chatID == "" {
		tc.logger.Warn("telegram not configured, skipping alert")
		return
	}

	message := tc.buildCashoutMessage(alert)

	if err := tc.sendMessage(message); err != nil {
		tc.logger.Error("failed to send telegram message", zap.Error(err))
		return
	}

	tc.logger.Info("sent telegram cashout alert",
		zap.String("trader", alert.TraderAddress),
		zap.String("market", alert.MarketTitle),
		zap.Float64("pnl", alert.PnlUSD),
	)
}

func (tc *TelegramClient) buildInsiderMessage(alert notifier.InsiderAlert) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("*%s*\n\n", escapeMarkdown(severityHeader(alert.Severity))))

	// Market info
	if alert.MarketURL != "" {
		sb.WriteString(fmt.Sprintf("*Market:* [%s](%s)\n", escapeMarkdown(alert.MarketTitle), alert.MarketURL))
	} else {
		sb.WriteString(fmt.Sprintf("*Market:* %s\n", escapeMarkdown(alert.MarketTitle)))
	}
	sb.WriteString(fmt.Sprintf("*Outcome:* %s\n", escapeMarkdown(alert.Outcome)))
	if alert.EndingSoon && !alert.EndDate.IsZero() {
		sb.WriteString(fmt.Sprintf("*Resolves:* %s\n", alert.EndDate.UTC().Format("Jan 2 15:04 MST")))
	}
	sb.WriteString("\n")

	// Trader info
	traderDisplay := alert.TraderName
	if traderDisplay == "" {
		traderDisplay = shortAddress(alert.TraderAddress)
	} else if alert.TraderAddress != "" {
		shortAddr := shortAddress(alert.TraderAddress)
		if traderDisplay != shortAddr {
			traderDisplay = fmt.Sprintf("%s (%s)", alert.TraderName, shortAddr)
		}
	}
	if alert.WalletURL != "" {
		sb.WriteString(fmt.Sprintf("*Trader:* [%s](%s)\n", escapeMarkdown(traderDisplay), alert.WalletURL))
	} else {
		sb.WriteString(fmt.Sprintf("*Trader:* %s\n", escapeMarkdown(traderDisplay)))
	}
	if alert.HasWalletAge {
		sb.WriteString(fmt.Sprintf("*Wallet Age:* %d days\n", alert.WalletAgeDays))
	}
	if alert.HasTradeCount {
		sb.WriteString(fmt.Sprintf("*Lifetime Trades:* %d\n", alert.WalletTradeCount))
	}
	if alert.HasWalletVolume {
		sb.WriteString(fmt.Sprintf("*Lifetime Volume:* $%.2f\n", alert.WalletVolumeUSD))
	}

	// Trade details
	sb.WriteString(fmt.Sprintf("*Trade:* %.2f shares @ $%.3f\n", alert.Shares, alert.Price))
	sb.WriteString(fmt.Sprintf("*Notional:* $%.2f\n\n", alert.Notional))

	// Signals
	if len(alert.Signals) > 0 {
		sb.WriteString("*Signals:*\n")
		for _, s := range alert.Signals {
			sb.WriteString(fmt.Sprintf("  • %s\n", escapeMarkdown(s.Detail)))
		}
	}
	sb.WriteString(fmt.Sprintf("*Priority:* %d\n", alert.Priority))

	sb.WriteString(fmt.Sprintf("\n_insiderbot • %s_", footerTime(alert.Timestamp)))

	return sb.String()
}

func (tc *TelegramClient) buildCashoutMessage(alert notifier.CashoutAlert) string {
	var sb strings.Builder

	header := "💰 Tracked Wallet Cashed Out"
	if alert.PnlUSD < 0 {
		header = "📉 Tracked Wallet Exited at a Loss"
	}
	sb.WriteString(fmt.Sprintf("*%s*\n\n", escapeMarkdown(header)))

	if alert.MarketURL != "" {
		sb.WriteString(fmt.Sprintf("*Market:* [%s](%s)\n", escapeMarkdown(alert.MarketTitle), alert.MarketURL))
	} else {
		sb.WriteString(fmt.Sprintf("*Market:* %s\n", escapeMarkdown(alert.MarketTitle)))
	}
	sb.WriteString(fmt.Sprintf("*Outcome:* %s\n\n", escapeMarkdown(alert.Outcome)))

	trader := shortAddress(alert.TraderAddress)
	if alert.WalletURL != "" {
		sb.WriteString(fmt.Sprintf("*Trader:* [%s](%s)\n", escapeMarkdown(trader), alert.WalletURL))
	} else {
		sb.WriteString(fmt.Sprintf("*Trader:* %s\n", escapeMarkdown(trader)))
	}

	sb.WriteString(fmt.Sprintf("*Entry:* $%.2f @ $%.3f\n", alert.EntryNotional, alert.EntryPrice))
	sb.WriteString(fmt.Sprintf("*Exit:* $%.2f @ $%.3f\n", alert.ExitNotional, alert.ExitPrice))

	pnlSign := "+"
	if alert.PnlUSD < 0 {
		pnlSign = ""
	}
	sb.WriteString(fmt.Sprintf("*P&L:* %s$%.2f (%s%.1f%%)\n", pnlSign, alert.PnlUSD, pnlSign, alert.PnlPct))
	if alert.Held > 0 {
		sb.WriteString(fmt.Sprintf("*Held:* %s\n", formatHeld(alert.Held)))
	}

	sb.WriteString(fmt.Sprintf("\n_insiderbot • %s_", footerTime(alert.Timestamp)))

	return sb.String()
}

func severityHeader(severity string) string {
	switch severity {
	case "URGENT":
		return "🚨 URGENT: Suspicious Bet Near Resolution"
	case "HIGH_CONFIDENCE":
		return "🔥 High Confidence Insider Signal"
	case "RELIABLE":
		return "⚠️ Reliable Insider Signal"
	case "MEDIUM":
		return "👀 Possible Insider Activity"
	default:
		return "📊 Trade Alert"
	}
}

func (tc *TelegramClient) sendMessage(text string) error {
	url := fmt.Sprintf(telegramAPIURL, tc.botToken, "sendMessage")

	payload := map[string]interface{}{
		"chat_id":    tc.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		resp, err := tc.client.Post(url, "application/json", bytes.NewReader(body))
		if err != nil {
			lastErr = fmt.Errorf("send request: %w", err)
		} else {
			status := resp.StatusCode
			resp.Body.Close()
			if status == http.StatusOK {
				return nil
			}
			lastErr = fmt.Errorf("telegram API returned status %d", status)
			// Only rate limits and server errors are worth retrying
			if status != http.StatusTooManyRequests && status < 500 {
				return lastErr
			}
		}
		if attempt < maxSendAttempts {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}

	return lastErr
}

// Close cleans up resources. Implements notifier.Notifier interface.
func (tc *TelegramClient) Close() error {
	return nil
}

func shortAddress(addr string) string {
	if len(addr) <= 14 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-6:]
}

func footerTime(ts time.Time) string {
	pst, _ := time.LoadLocation("America/Los_Angeles")
	if ts.IsZero() {
		ts = time.Now()
	}
	return ts.In(pst).Format("1/2/2006, 3:04:05PM (MST)")
}

func formatHeld(d time.Duration) string {
	if d >= 48*time.Hour {
		return fmt.Sprintf("%.1f days", d.Hours()/24)
	}
	if d >= time.Hour {
		return fmt.Sprintf("%.1f hours", d.Hours())
	}
	return fmt.Sprintf("%.0f minutes", d.Minutes())
}

// escapeMarkdown escapes special characters for Telegram Markdown.
func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"]", "\\]",
		"`", "\\`",
	)
	return replacer.Replace(s)
}
