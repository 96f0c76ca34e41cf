package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/arloliu/go-grbl/internal/cliconfig"
	"github.com/arloliu/go-grbl/internal/monitor"
	"github.com/arloliu/go-grbl/logger"
	"github.com/arloliu/go-grbl/transport"
)

var exampleUsage = strings.TrimSpace(`
  grblmon ports
  grblmon monitor --port /dev/ttyUSB0 --listen :9090
  grblmon monitor --tcp 192.168.1.50:23 --poll 250ms
  grblmon send --port /dev/ttyUSB0 '$H' 'G0 X10 Y10'
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "grblmon:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:           "grblmon",
		Short:         "Talk to GRBL CNC controllers over serial or TCP",
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.grblmon/config.toml)")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	pf.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: console, json or slog")

	root.AddCommand(
		newPortsCmd(),
		newMonitorCmd(&cfg, &cfgPath),
		newSendCmd(&cfg, &cfgPath),
	)

	return root
}

func addConnFlags(fs *pflag.FlagSet, cfg *cliconfig.Config) {
	fs.StringVar(&cfg.Port, "port", cfg.Port, "serial port, e.g. /dev/ttyUSB0 or COM3")
	fs.IntVar(&cfg.Baud, "baud", cfg.Baud, "serial baud rate")
	fs.StringVar(&cfg.TCPAddr, "tcp", cfg.TCPAddr, "host:port of a serial-over-TCP bridge (overrides --port)")
	fs.StringVar(&cfg.Delimiter, "delimiter", cfg.Delimiter, "line delimiter: lf, crlf or cr")
	fs.IntVar(&cfg.OpenRetries, "open-retries", cfg.OpenRetries, "open retries after the first attempt")
	fs.DurationVar(&cfg.RetryInterval, "retry-interval", cfg.RetryInterval, "initial delay between open retries")
	fs.BoolVar(&cfg.RequestStatusOnWelcome, "request-status", cfg.RequestStatusOnWelcome, "request a status report when the controller resets")
}

// resolveConfig layers the config file and GRBLMON_* variables under the
// flags that were set explicitly, then validates the result.
func resolveConfig(cmd *cobra.Command, cfg *cliconfig.Config, cfgPath string) (string, error) {
	cfgFile := cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return "", fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(cfg, fc, changed); err != nil {
			return "", err
		}
	} else {
		cfgFile = ""
	}

	if err := cliconfig.ApplyEnvConfig(cfg, changed); err != nil {
		return "", err
	}

	if err := cfg.Validate(); err != nil {
		return "", err
	}

	return cfgFile, nil
}

func newLogger(cfg cliconfig.Config, w io.Writer) logger.Logger {
	level, _ := logger.ParseLevel(cfg.LogLevel)

	var l logger.Logger
	switch cfg.LogFormat {
	case "json":
		l = logger.NewZerolog(w, level, false)
	case "slog":
		l = logger.NewSlogWriter(w, level, false)
	default:
		l = logger.NewZerolog(w, level, true)
	}
	logger.SetLogger(l)

	return l
}

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ports, err := transport.ListPorts()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "no serial ports found")
				return nil
			}
			for _, p := range ports {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}

			return nil
		},
	}
}

func newMonitorCmd(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Print controller output, poll its status and forward stdin lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgFile, err := resolveConfig(cmd, cfg, *cfgPath)
			if err != nil {
				return err
			}
			log := newLogger(*cfg, cmd.ErrOrStderr())

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			m, err := monitor.New(*cfg, cmd.OutOrStdout(), log)
			if err != nil {
				return err
			}
			if err := m.Open(ctx); err != nil {
				return err
			}

			// the file only drives the level when no flag or env var pins it
			levelPinned := cmd.Flags().Changed("log-level") || os.Getenv(cliconfig.EnvPrefix+"LOG_LEVEL") != ""
			if cfgFile != "" && !levelPinned {
				go func() {
					if err := monitor.WatchLogLevel(ctx, cfgFile, log); err != nil {
						log.Warn("grblmon: config watch disabled", "error", err)
					}
				}()
			}

			return m.Run(ctx, cmd.InOrStdin())
		},
	}

	fs := cmd.Flags()
	addConnFlags(fs, cfg)
	fs.StringVar(&cfg.Listen, "listen", cfg.Listen, "address serving /metrics, /live and /ready (disabled when empty)")
	fs.DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "status poll interval (0 disables polling)")

	return cmd
}

func newSendCmd(cfg *cliconfig.Config, cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send LINE...",
		Short: "Send lines one by one, waiting for each reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := resolveConfig(cmd, cfg, *cfgPath); err != nil {
				return err
			}
			log := newLogger(*cfg, cmd.ErrOrStderr())

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			m, err := monitor.New(*cfg, cmd.OutOrStdout(), log)
			if err != nil {
				return err
			}
			if err := m.Open(ctx); err != nil {
				return err
			}
			defer m.Close()

			return m.SendLines(ctx, args)
		},
	}

	fs := cmd.Flags()
	addConnFlags(fs, cfg)
	fs.DurationVar(&cfg.ReplyTimeout, "reply-timeout", cfg.ReplyTimeout, "maximum wait for the reply to each line")

	return cmd
}
