package monitor

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/arloliu/go-grbl/internal/cliconfig"
	"github.com/arloliu/go-grbl/logger"
)

// WatchLogLevel applies the log_level of the config file at path to l
// whenever the file is written, until ctx is done. The directory is watched
// rather than the file so editors that replace the file are followed.
func WatchLogLevel(ctx context.Context, path string, l logger.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			reloadLogLevel(path, l)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.Warn("monitor: config watcher error", "error", err)
		}
	}
}

func reloadLogLevel(path string, l logger.Logger) {
	fc, err := cliconfig.LoadFileConfig(path)
	if err != nil {
		// partially written file, the next event retries
		l.Debug("monitor: config reload skipped", "path", path, "error", err)
		return
	}
	if fc.LogLevel == "" {
		return
	}

	level, ok := logger.ParseLevel(fc.LogLevel)
	if !ok {
		l.Warn("monitor: unknown log level in config", "path", path, "level", fc.LogLevel)
		return
	}
	if level != l.Level() {
		l.SetLevel(level)
		l.Info("monitor: log level changed", "level", level.String())
	}
}
