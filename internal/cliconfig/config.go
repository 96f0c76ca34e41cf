package cliconfig

import (
	"fmt"
	"strconv"
	"time"

	"github.com/arloliu/go-grbl/logger"
)

// Delimiter names accepted by the delimiter option.
const (
	DelimiterLF   = "lf"
	DelimiterCRLF = "crlf"
	DelimiterCR   = "cr"
)

// Config holds CLI configuration for grblmon.
type Config struct {
	Port      string
	Baud      int
	TCPAddr   string
	Delimiter string

	Listen        string
	PollInterval  time.Duration
	OpenRetries   int
	RetryInterval time.Duration
	ReplyTimeout  time.Duration

	LogLevel  string
	LogFormat string

	RequestStatusOnWelcome bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Baud:                   115200,
		Delimiter:              DelimiterLF,
		PollInterval:           time.Second,
		OpenRetries:            3,
		RetryInterval:          500 * time.Millisecond,
		ReplyTimeout:           10 * time.Second,
		LogLevel:               "info",
		LogFormat:              "console",
		RequestStatusOnWelcome: true,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Port == "" && c.TCPAddr == "" {
		return fmt.Errorf("port or tcp address is required")
	}
	if c.Baud <= 0 {
		return fmt.Errorf("baud rate must be positive")
	}
	if _, err := c.DelimiterBytes(); err != nil {
		return err
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("poll interval must not be negative")
	}
	if c.OpenRetries < 0 {
		return fmt.Errorf("open retries must not be negative")
	}
	if c.RetryInterval <= 0 {
		return fmt.Errorf("retry interval must be positive")
	}
	if _, ok := logger.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "console", "json", "slog":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}

	return nil
}

// DelimiterBytes returns the frame delimiter selected by c.Delimiter.
func (c *Config) DelimiterBytes() ([]byte, error) {
	switch c.Delimiter {
	case DelimiterLF, "":
		return []byte("\n"), nil
	case DelimiterCRLF:
		return []byte("\r\n"), nil
	case DelimiterCR:
		return []byte("\r"), nil
	default:
		return nil, fmt.Errorf("unknown delimiter %q (want lf, crlf or cr)", c.Delimiter)
	}
}

// Endpoint returns the endpoint name passed to Open: the TCP address when
// set, the serial port otherwise.
func (c *Config) Endpoint() string {
	if c.TCPAddr != "" {
		return c.TCPAddr
	}

	return c.Port
}

// configSetter applies configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d

	return nil
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i

	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
