package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jhump/derivepoet"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [dirs...]",
		Short: "Re-expand Rust files whenever they change",
		Long: `watch expands every .rs file under the given directories once, then
waits for changes and expands each file again when it is written. Output
goes to --out, or next to each source file. Stop it with Ctrl-C.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.watch(cmd.Context(), args)
		},
	}
}

func (a *app) watch(ctx context.Context, dirs []string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating watcher")
	}
	defer w.Close()

	// Directories are added before the first pass so that no write in
	// between is missed.
	for _, d := range dirs {
		err := filepath.WalkDir(d, func(path string, e os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if e.IsDir() {
				if e.Name() == "target" {
					return filepath.SkipDir
				}
				return w.Add(path)
			}
			return nil
		})
		if err != nil {
			return errors.Wrapf(err, "watching %s", d)
		}
	}

	files, err := rustFiles(dirs)
	if err != nil {
		return err
	}
	for _, f := range files {
		a.regenerate(ctx, f)
	}
	a.log.Info("watching", zap.Strings("dirs", dirs), zap.Int("files", len(files)))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
				continue
			}
			if filepath.Ext(ev.Name) != ".rs" || strings.HasSuffix(ev.Name, "_derive.rs") {
				continue
			}
			a.log.Debug("changed", zap.String("file", ev.Name), zap.Stringer("op", ev.Op))
			a.regenerate(ctx, ev.Name)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			a.log.Warn("watch error", zap.Error(err))
		}
	}
}

// regenerate expands one file and writes the result. Failures are logged
// rather than returned so that watching continues.
func (a *app) regenerate(ctx context.Context, path string) {
	r := a.expandFile(ctx, path, outputName(path))
	for _, err := range derivepoet.Flatten(r.err) {
		a.log.Error("expansion failed", zap.String("file", path), zap.Error(err))
	}
	if r.file == nil || r.file.NumElements() == 0 {
		return
	}
	out := a.cfg.Out
	if out == "" {
		out = filepath.Dir(path)
	}
	if err := emit(nil, out, []result{r}); err != nil {
		a.log.Error("write failed", zap.String("file", path), zap.Error(err))
	}
}
