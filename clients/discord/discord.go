package discord

import (
	"fmt"
	"insiderbot/clients/notifier"
	"insiderbot/config"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// DiscordClient sends alerts to Discord.
// Implements notifier.Notifier interface.
type DiscordClient struct {
	logger    *zap.Logger
	session   *discordgo.Session
	channelID string
	isProd    bool
}

func NewDiscordClient(logger *zap.Logger, cfg *config.Config) *DiscordClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	channelID := cfg.Discord.BetaChannelID
	if cfg.IsProd {
		channelID = cfg.Discord.ProdChannelID
	}

	token := cfg.Discord.BotToken
	if token == "" {
		logger.Warn("DISCORD_BOT_TOKEN not set, Discord alerts disabled")
		return &DiscordClient{
			logger:    logger,
			channelID: channelID,
			isProd:    cfg.IsProd,
		}
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		logger.Error("failed to create discord session", zap.Error(err))
		return &DiscordClient{
			logger:    logger,
			channelID: channelID,
			isProd:    cfg.IsProd,
		}
	}

	logger.Info("discord bot initialized",
		zap.Bool("isProd", cfg.IsProd),
		zap.String("channelID", channelID),
	)

	return &DiscordClient{
		logger:    logger,
		session:   session,
		channelID: channelID,
		isProd:    cfg.IsProd,
	}
}

// SendInsiderAlert sends a rich embedded suspicious-buy alert.
// Implements notifier.Notifier interface.
func (dc *DiscordClient) SendInsiderAlert(alert notifier.InsiderAlert) {
	if dc.session == nil {
		dc.logger.Warn("discord session not initialized, skipping alert")
		return
	}

	embed := dc.buildInsiderEmbed(alert)

	_, err := dc.session.ChannelMessageSendEmbed(dc.channelID, embed)
	if err != nil {
		dc.logger.Error("failed to send discord embed", zap.Error(err))
		return
	}

	dc.logger.Info("sent discord insider alert",
		zap.String("trader", alert.TraderAddress),
		zap.String("market", alert.MarketTitle),
		zap.String("severity", alert.Severity),
	)
}

// SendCashoutAlert sends a rich embedded matched-exit alert.
// Implements notifier.Notifier interface.
func (dc *DiscordClient) SendCashoutAlert(alert notifier.CashoutAlert) {
	if dc.session == nil {
		dc.logger.Warn("discord session not initialized, skipping alert")
		return
	}

	embed := dc.buildCashoutEmbed(alert)

	_, err := dc.session.ChannelMessageSendEmbed(dc.channelID, embed)
	if err != nil {
		dc.logger.Error("failed to send discord embed", zap.Error(err))
		return
	}

	dc.logger.Info("sent discord cashout alert",
		zap.String("trader", alert.TraderAddress),
		zap.String("market", alert.MarketTitle),
		zap.Float64("pnl", alert.PnlUSD),
	)
}

func (dc *DiscordClient) buildInsiderEmbed(alert notifier.InsiderAlert) *discordgo.MessageEmbed {
	color, title := severityStyle(alert.Severity)

	// Format trader display with link
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
		traderDisplay = fmt.Sprintf("[%s](%s)", traderDisplay, alert.WalletURL)
	}

	ageStr := "N/A"
	if alert.HasWalletAge {
		ageStr = fmt.Sprintf("%d days", alert.WalletAgeDays)
	}
	tradesStr := "N/A"
	if alert.HasTradeCount {
		tradesStr = fmt.Sprintf("%d", alert.WalletTradeCount)
	}
	volumeStr := "N/A"
	if alert.HasWalletVolume {
		volumeStr = fmt.Sprintf("$%.2f", alert.WalletVolumeUSD)
	}

	fields := []*discordgo.MessageEmbedField{
		{
			Name:   "Trader",
			Value:  traderDisplay,
			Inline: true,
		},
		{
			Name:   "Trade",
			Value:  fmt.Sprintf("%.2f shares @ $%.3f", alert.Shares, alert.Price),
			Inline: true,
		},
		{
			Name:   "Notional",
			Value:  fmt.Sprintf("$%.2f", alert.Notional),
			Inline: true,
		},
		{
			Name:   "Wallet Age",
			Value:  ageStr,
			Inline: true,
		},
		{
			Name:   "Lifetime Trades",
			Value:  tradesStr,
			Inline: true,
		},
		{
			Name:   "Lifetime Volume",
			Value:  volumeStr,
			Inline: true,
		},
		{
			Name:   "Priority",
			Value:  fmt.Sprintf("%d", alert.Priority),
			Inline: true,
		},
	}

	if len(alert.Signals) > 0 {
		var lines []string
		for _, s := range alert.Signals {
			lines = append(lines, "• "+s.Detail)
		}
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "Signals",
			Value:  strings.Join(lines, "\n"),
			Inline: false,
		})
	}

	description := fmt.Sprintf("**%s**\nOutcome: %s", alert.MarketTitle, alert.Outcome)
	if alert.EndingSoon && !alert.EndDate.IsZero() {
		description += fmt.Sprintf("\nResolves: %s", alert.EndDate.UTC().Format("Jan 2 15:04 MST"))
	}

	ts := alert.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	embed := &discordgo.MessageEmbed{
		Title:       title,
		URL:         alert.MarketURL, // Makes title clickable
		Description: description,
		Color:       color,
		Fields:      fields,
		Footer: &discordgo.MessageEmbedFooter{
			Text: footerText(ts),
		},
		Timestamp: ts.Format(time.RFC3339),
	}

	return embed
}

func (dc *DiscordClient) buildCashoutEmbed(alert notifier.CashoutAlert) *discordgo.MessageEmbed {
	color := 0x2ECC71 // Green for profit
	title := "💰 Tracked Wallet Cashed Out"
	pnlSign := "+"
	if alert.PnlUSD < 0 {
		color = 0xE74C3C
		title = "📉 Tracked Wallet Exited at a Loss"
		pnlSign = ""
	}

	trader := shortAddress(alert.TraderAddress)
	if alert.WalletURL != "" {
		trader = fmt.Sprintf("[%s](%s)", trader, alert.WalletURL)
	}

	heldStr := "N/A"
	if alert.Held > 0 {
		heldStr = formatHeld(alert.Held)
	}

	fields := []*discordgo.MessageEmbedField{
		{
			Name:   "Trader",
			Value:  trader,
			Inline: true,
		},
		{
			Name:   "Entry",
			Value:  fmt.Sprintf("$%.2f @ $%.3f", alert.EntryNotional, alert.EntryPrice),
			Inline: true,
		},
		{
			Name:   "Exit",
			Value:  fmt.Sprintf("$%.2f @ $%.3f", alert.ExitNotional, alert.ExitPrice),
			Inline: true,
		},
		{
			Name:   "P&L",
			Value:  fmt.Sprintf("%s$%.2f (%s%.1f%%)", pnlSign, alert.PnlUSD, pnlSign, alert.PnlPct),
			Inline: true,
		},
		{
			Name:   "Held",
			Value:  heldStr,
			Inline: true,
		},
	}

	ts := alert.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return &discordgo.MessageEmbed{
		Title:       title,
		URL:         alert.MarketURL,
		Description: fmt.Sprintf("**%s**\nOutcome: %s", alert.MarketTitle, alert.Outcome),
		Color:       color,
		Fields:      fields,
		Footer: &discordgo.MessageEmbedFooter{
			Text: footerText(ts),
		},
		Timestamp: ts.Format(time.RFC3339),
	}
}

// severityStyle maps a severity label to an embed color and title.
func severityStyle(severity string) (int, string) {
	switch severity {
	case "URGENT":
		return 0xE74C3C, "🚨 URGENT: Suspicious Bet Near Resolution" // Red
	case "HIGH_CONFIDENCE":
		return 0xE67E22, "🔥 High Confidence Insider Signal" // Orange
	case "RELIABLE":
		return 0x9B59B6, "⚠️ Reliable Insider Signal" // Purple
	case "MEDIUM":
		return 0xF1C40F, "👀 Possible Insider Activity" // Yellow
	default:
		return 0x95A5A6, "📊 Trade Alert" // Gray
	}
}

func footerText(ts time.Time) string {
	pst, _ := time.LoadLocation("America/Los_Angeles")
	return fmt.Sprintf("insiderbot * %s", ts.In(pst).Format("1/2/2006, 3:04:05PM (MST)"))
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

func shortAddress(addr string) string {
	if len(addr) <= 14 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-6:]
}

// Close closes the Discord session.
func (dc *DiscordClient) Close() error {
	if dc.session != nil {
		return dc.session.Close()
	}
	return nil
}
