package main

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the kiosk's local profile.
type Config struct {
	Server   string `toml:"server"`
	Category string `toml:"category"`
	Token    string `toml:"token,omitempty"`
	TZ       string `toml:"tz,omitempty"`
}

func defaultConfigPath() string {
	if p := os.Getenv("CHECKIN_KIOSK_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "kiosk.toml"
	}
	return filepath.Join(home, ".config", "checkin", "kiosk.toml")
}

// loadConfig reads path; a missing file yields an empty config.
func loadConfig(path string) (Config, error) {
	var c Config
	if _, err := toml.DecodeFile(path, &c); err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, err
	}
	return c, nil
}

func saveConfig(path string, c Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}
