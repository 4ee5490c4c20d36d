package rules

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/plantsaathi/market-intelligence/internal/infrastructure/monitoring/logging"
	"github.com/plantsaathi/market-intelligence/pkg/errors"
)

// Watcher hot-reloads the engine's rule set when the rules file changes on
// disk.  A reload that fails validation is logged and discarded; the engine
// keeps serving the previous rule set.
type Watcher struct {
	engine *Engine
	path   string
	fsw    *fsnotify.Watcher
	logger logging.Logger
}

// NewWatcher loads the rules file into the engine once, then prepares a
// filesystem watch on its directory.  Watching the directory rather than the
// file survives the rename-and-replace writes editors and config tools do.
func NewWatcher(engine *Engine, path string, logger logging.Logger) (*Watcher, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeRuleLoadFailed, "failed to read rules file")
	}
	if err := engine.LoadJSON(data); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeRuleLoadFailed, "failed to create filesystem watcher")
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, errors.Wrap(err, errors.CodeRuleLoadFailed, "failed to watch rules directory")
	}

	return &Watcher{
		engine: engine,
		path:   path,
		fsw:    fsw,
		logger: logger.Named("rules.watcher"),
	}, nil
}

// Run blocks, applying reloads until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	w.logger.Info("watching rules file", logging.String("path", w.path))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("rules watcher error", logging.Err(err))
		}
	}
}

func (w *Watcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		w.logger.Error("failed to re-read rules file", logging.Err(err))
		return
	}
	if err := w.engine.LoadJSON(data); err != nil {
		w.logger.Error("rejected invalid rules file, keeping previous rule set", logging.Err(err))
		return
	}
	w.logger.Info("rules reloaded", logging.String("path", w.path))
}
