package cliconfig

import "os"

// EnvPrefix is the prefix of the environment variables read by ApplyEnvConfig.
const EnvPrefix = "GRBLMON_"

// ApplyEnvConfig applies configuration from environment variables (GRBLMON_*).
// These override file config but are overridden by flags.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("port", os.Getenv(EnvPrefix+"PORT"), &cfg.Port)
	s.setString("tcp", os.Getenv(EnvPrefix+"TCP"), &cfg.TCPAddr)
	s.setString("delimiter", os.Getenv(EnvPrefix+"DELIMITER"), &cfg.Delimiter)
	s.setString("listen", os.Getenv(EnvPrefix+"LISTEN"), &cfg.Listen)
	s.setString("log-level", os.Getenv(EnvPrefix+"LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-format", os.Getenv(EnvPrefix+"LOG_FORMAT"), &cfg.LogFormat)

	if err := s.setIntFromString("baud", os.Getenv(EnvPrefix+"BAUD"), &cfg.Baud); err != nil {
		return err
	}
	if err := s.setIntFromString("open-retries", os.Getenv(EnvPrefix+"OPEN_RETRIES"), &cfg.OpenRetries); err != nil {
		return err
	}
	if err := s.setDuration("poll", os.Getenv(EnvPrefix+"POLL_INTERVAL"), &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("retry-interval", os.Getenv(EnvPrefix+"RETRY_INTERVAL"), &cfg.RetryInterval); err != nil {
		return err
	}
	if err := s.setDuration("reply-timeout", os.Getenv(EnvPrefix+"REPLY_TIMEOUT"), &cfg.ReplyTimeout); err != nil {
		return err
	}

	s.setBoolFromString("request-status", os.Getenv(EnvPrefix+"REQUEST_STATUS"), &cfg.RequestStatusOnWelcome)

	return nil
}
