package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Port          string `toml:"port"`
	Baud          int    `toml:"baud"`
	TCPAddr       string `toml:"tcp"`
	Delimiter     string `toml:"delimiter"`
	Listen        string `toml:"listen"`
	PollInterval  string `toml:"poll_interval"`
	OpenRetries   int    `toml:"open_retries"`
	RetryInterval string `toml:"retry_interval"`
	ReplyTimeout  string `toml:"reply_timeout"`
	LogLevel      string `toml:"log_level"`
	LogFormat     string `toml:"log_format"`

	RequestStatusOnWelcome *bool `toml:"request_status_on_welcome"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}

	return fc, nil
}

// DefaultConfigPath returns ~/.grblmon/config.toml, or "" if the home
// directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".grblmon", "config.toml")
	}

	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("port", fc.Port, &cfg.Port)
	s.setString("tcp", fc.TCPAddr, &cfg.TCPAddr)
	s.setString("delimiter", fc.Delimiter, &cfg.Delimiter)
	s.setString("listen", fc.Listen, &cfg.Listen)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-format", fc.LogFormat, &cfg.LogFormat)

	s.setInt("baud", fc.Baud, &cfg.Baud)
	s.setInt("open-retries", fc.OpenRetries, &cfg.OpenRetries)

	if err := s.setDuration("poll", fc.PollInterval, &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("retry-interval", fc.RetryInterval, &cfg.RetryInterval); err != nil {
		return err
	}
	if err := s.setDuration("reply-timeout", fc.ReplyTimeout, &cfg.ReplyTimeout); err != nil {
		return err
	}

	s.setBool("request-status", fc.RequestStatusOnWelcome, &cfg.RequestStatusOnWelcome)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
