package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-grbl/internal/cliconfig"
	"github.com/arloliu/go-grbl/logger"
)

func TestResolveConfigPrecedence(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
port = "/dev/from-file"
baud = 9600
poll_interval = "3s"
listen = ":9100"
`
	require.NoError(os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("GRBLMON_BAUD", "57600")
	t.Setenv("GRBLMON_LISTEN", ":9200")

	root := newRootCmd()
	cmd, _, err := root.Find([]string{"monitor"})
	require.NoError(err)
	require.NoError(cmd.ParseFlags([]string{"--listen", ":9300"}))

	cfg := cliconfig.DefaultConfig()
	cfg.Listen = ":9300"
	cfgFile, err := resolveConfig(cmd, &cfg, path)
	require.NoError(err)
	require.Equal(path, cfgFile)

	require.Equal("/dev/from-file", cfg.Port) // file
	require.Equal(57600, cfg.Baud)            // env over file
	require.Equal(3*time.Second, cfg.PollInterval)
	require.Equal(":9300", cfg.Listen) // flag over env
}

func TestResolveConfigMissingFile(t *testing.T) {
	require := require.New(t)

	root := newRootCmd()
	cmd, _, err := root.Find([]string{"send"})
	require.NoError(err)

	cfg := cliconfig.DefaultConfig()
	cfg.Port = "/dev/ttyUSB0"
	cfgFile, err := resolveConfig(cmd, &cfg, filepath.Join(t.TempDir(), "none.toml"))
	require.NoError(err)
	require.Empty(cfgFile)

	cfg = cliconfig.DefaultConfig()
	_, err = resolveConfig(cmd, &cfg, filepath.Join(t.TempDir(), "none.toml"))
	require.Error(err)
}

func TestNewLogger(t *testing.T) {
	require := require.New(t)
	defer logger.SetLogger(logger.GetLogger())

	var buf bytes.Buffer
	cfg := cliconfig.DefaultConfig()
	cfg.LogFormat = "json"
	cfg.LogLevel = "warn"

	l := newLogger(cfg, &buf)
	require.Equal(logger.WarnLevel, l.Level())
	require.Same(l, logger.GetLogger())

	l.Info("hidden")
	l.Warn("shown", "port", "/dev/ttyUSB0")
	require.NotContains(buf.String(), "hidden")
	require.Contains(buf.String(), `"port":"/dev/ttyUSB0"`)
}

func TestRootCommands(t *testing.T) {
	require := require.New(t)

	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	require.Subset(names, []string{"ports", "monitor", "send"})

	root.SetArgs([]string{"send"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	require.Error(root.Execute())
}
