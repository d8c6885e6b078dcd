package main

import (
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/mfolsom/drivelog/internal/config"
	"github.com/mfolsom/drivelog/internal/db"
	"github.com/mfolsom/drivelog/internal/notify"
	"github.com/mfolsom/drivelog/internal/session"
	"github.com/mfolsom/drivelog/internal/storage"
)

const defaultConfigPath = "drivelog.yaml"

// openFromConfig loads the config and connects to the session store.
func openFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gdb, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return cfg, gdb, nil
}

// ledgerFromConfig opens the store and builds the session ledger on top.
func ledgerFromConfig(configPath string) (*config.Config, *session.Ledger, error) {
	cfg, gdb, err := openFromConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	ledger, err := session.NewLedger(gdb, cfg.Capture)
	if err != nil {
		return nil, nil, err
	}
	return cfg, ledger, nil
}

// mediaFromConfig opens the media tree under the configured storage root.
func mediaFromConfig(cfg *config.Config) (*storage.Media, error) {
	return storage.NewMedia(cfg.Storage.Root)
}

// notifierFromConfig builds a notifier from whichever chat tokens are set
// in the environment. Returns nil when none are configured.
func notifierFromConfig(cfg *config.Config) *notify.Notifier {
	var adapters []notify.Adapter

	if token := os.Getenv(cfg.Notify.SlackTokenEnv); token != "" && cfg.Notify.SlackChannel != "" {
		if a, err := notify.NewSlack(notify.SlackOpts{
			BotToken:  token,
			ChannelID: cfg.Notify.SlackChannel,
		}); err == nil {
			adapters = append(adapters, a)
		}
	}
	if token := os.Getenv(cfg.Notify.DiscordTokenEnv); token != "" && cfg.Notify.DiscordChannelID != "" {
		if a, err := notify.NewDiscord(notify.DiscordOpts{
			BotToken:  token,
			ChannelID: cfg.Notify.DiscordChannelID,
		}); err == nil {
			adapters = append(adapters, a)
		}
	}

	if len(adapters) == 0 {
		return nil
	}
	return notify.New(adapters...)
}
