package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Config captures the per-provider credentials syndicate reads from its
// config file. Every field is optional; environment variables override
// whatever the file supplies.
type Config struct {
	Discord  Discord  `toml:"discord"`
	Facebook Facebook `toml:"facebook"`
	Mastodon Mastodon `toml:"mastodon"`
}

// Discord holds bot credentials for a single channel.
type Discord struct {
	BotToken  string `toml:"bot_token"`
	ChannelID string `toml:"channel_id"`
}

// Facebook holds a Graph API token and an optional page target.
type Facebook struct {
	AccessToken string `toml:"access_token"`
	PageID      string `toml:"page_id"`
}

// Mastodon holds the server and tokens for one account.
type Mastodon struct {
	Server       string `toml:"server"`
	AccessToken  string `toml:"access_token"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

const defaultConfigPath = "~/.config/syndicate/config.toml"

// Load locates and parses the syndicate config. A missing file is not an
// error: providers configured purely through the environment still work.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
