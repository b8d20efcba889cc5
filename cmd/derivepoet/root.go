package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jhump/derivepoet"
	"github.com/jhump/derivepoet/rustsrc"
)

// app is the state shared by the commands once the configuration is loaded.
type app struct {
	cfg *config
	log *zap.Logger
	gen *derivepoet.Generator
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var configPath string
	root := &cobra.Command{
		Use:   "derivepoet",
		Short: "Expand derive_more-style derives in Rust sources",
		Long: `derivepoet reads Rust sources, finds structs and enums that derive
Display-family formatting traits, From, or Into, and writes the trait
implementations those derives stand for.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags(), configPath)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg.LogLevel, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a.cfg, a.log = cfg, log
			a.gen = derivepoet.NewGenerator(derivepoet.WithLogger(log))
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default ./derivepoet.yaml)")
	flags.Bool("use-imports", false, "shorten paths with use declarations")
	flags.StringP("out", "o", "", "output directory (default: print to stdout)")
	flags.IntP("jobs", "j", 4, "number of files processed in parallel")
	flags.String("log-level", "warn", "log level: debug, info, warn, or error")
	flags.String("header", defaultHeader, "comment written at the top of generated files")

	root.AddCommand(
		newExpandCmd(a),
		newCheckCmd(a),
		newCrateCmd(a),
		newWatchCmd(a),
	)
	return root
}

// outputName is the name of the file generated for the given source file.
func outputName(src string) string {
	base := filepath.Base(src)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_derive.rs"
}

// result is the outcome of expanding one source file.
type result struct {
	src  string
	file *derivepoet.RustFile
	err  error
}

// expandFile scans one source file and expands its derived items into a
// file named name. Errors in individual items are reported in the result
// together with the impls of the other items.
func (a *app) expandFile(ctx context.Context, path, name string) result {
	src, err := os.ReadFile(path)
	if err != nil {
		return result{src: path, err: errors.Wrapf(err, "reading %s", path)}
	}
	parsed, perr := rustsrc.Parse(ctx, path, src)
	if parsed == nil {
		return result{src: path, err: perr}
	}
	f, err := a.gen.ExpandFile(name, parsed.Derived()...)
	f.Comment = a.cfg.Header
	f.UseImports = a.cfg.UseImports
	a.log.Info("expanded",
		zap.String("file", path),
		zap.Int("items", len(parsed.Derived())),
		zap.Int("impls", f.NumElements()))
	var errs derivepoet.Diagnostics
	errs = append(errs, derivepoet.Flatten(perr)...)
	errs = append(errs, derivepoet.Flatten(err)...)
	return result{src: path, file: f, err: errs.Err()}
}

// expandAll expands the given files, at most cfg.Jobs at a time. The
// results are in the order of the inputs. The error is only for failures
// that stop the whole run, such as cancellation.
func (a *app) expandAll(ctx context.Context, paths []string, nameFn func(string) string) ([]result, error) {
	results := make([]result, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Jobs)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = a.expandFile(gctx, p, nameFn(p))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// emit writes the generated files to the output directory, or to w if no
// directory is configured. Files without impls are not written.
func emit(w io.Writer, outDir string, results []result) error {
	for _, r := range results {
		if r.file == nil || r.file.NumElements() == 0 {
			continue
		}
		if outDir == "" {
			fmt.Fprintf(w, "// %s\n", r.file.Name)
			if err := derivepoet.WriteRustFile(w, r.file); err != nil {
				return err
			}
			continue
		}
		if err := derivepoet.WriteRustFilesToFileSystem(outDir, r.file); err != nil {
			return err
		}
	}
	return nil
}

// report prints the errors of the results to w, one per line, followed by
// any suggested rewrites. It returns an error if there were any.
func report(w io.Writer, results []result) error {
	n := 0
	for _, r := range results {
		for _, err := range derivepoet.Flatten(r.err) {
			n++
			fmt.Fprintln(w, err)
			for _, h := range errors.GetAllHints(err) {
				fmt.Fprintf(w, "    help: %s\n", h)
			}
		}
	}
	if n > 0 {
		return errors.Newf("%d error(s)", n)
	}
	return nil
}

// rustFiles expands directory arguments into the .rs files they contain.
func rustFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", arg)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() && d.Name() == "target" {
				return filepath.SkipDir
			}
			if !d.IsDir() && filepath.Ext(path) == ".rs" && !strings.HasSuffix(path, "_derive.rs") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "walking %s", arg)
		}
	}
	return files, nil
}
