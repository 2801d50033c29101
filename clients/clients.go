package clients

import (
	"insiderbot/clients/discord"
	"insiderbot/clients/notifier"
	"insiderbot/clients/polygonrpc"
	"insiderbot/clients/polymarketapi"
	"insiderbot/clients/polymarketevents"
	"insiderbot/clients/telegram"
	"insiderbot/config"

	"go.uber.org/zap"
)

type Clients struct {
	Logger *zap.Logger

	Discord          *discord.DiscordClient
	Telegram         *telegram.TelegramClient
	Notifier         notifier.Notifier // Combined notifier for all channels
	Polymarket       *polymarketapi.PolymarketApiClient
	PolymarketEvents *polymarketevents.PolymarketEventsClient
	PolygonRPC       *polygonrpc.PolygonRPCClient
}

func NewClients(logger *zap.Logger, cfg *config.Config) *Clients {
	discordClient := discord.NewDiscordClient(logger, cfg)
	telegramClient := telegram.NewTelegramClient(logger, cfg)

	// Combined notifier for all channels
	multiNotifier := notifier.NewMultiNotifier(discordClient, telegramClient)

	c := &Clients{
		Logger:     logger,
		Discord:    discordClient,
		Telegram:   telegramClient,
		Notifier:   multiNotifier,
		Polymarket: polymarketapi.NewPolymarketApiClient(logger, cfg),
		PolygonRPC: polygonrpc.NewPolygonRPCClient(logger, cfg),
	}

	// Only create WebSocket client if configured to use it
	if cfg.Monitor.UseWebSocket {
		c.PolymarketEvents = polymarketevents.NewPolymarketEventsClient(logger, cfg)
	}

	return c
}
