package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cargoManifest is the part of Cargo.toml that the crate command reads.
type cargoManifest struct {
	Package struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
		Edition string `toml:"edition"`
	} `toml:"package"`
	Lib struct {
		Path string `toml:"path"`
	} `toml:"lib"`
}

func readManifest(dir string) (*cargoManifest, error) {
	var m cargoManifest
	path := filepath.Join(dir, "Cargo.toml")
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	if m.Package.Name == "" {
		return nil, errors.Newf("%s: missing package name", path)
	}
	return &m, nil
}

// crateOutputName flattens the path of a source file relative to the
// crate's src directory, so src/a/b.rs becomes a__b_derive.rs.
func crateOutputName(srcDir string) func(string) string {
	return func(path string) string {
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return outputName(path)
		}
		rel = strings.TrimSuffix(filepath.ToSlash(rel), ".rs")
		return strings.ReplaceAll(rel, "/", "__") + "_derive.rs"
	}
}

func newCrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "crate [dir]",
		Short: "Expand every source file of a Cargo crate",
		Long: `crate reads Cargo.toml in the given directory (default: the current
directory) and expands the .rs files under its src directory. Output goes
to --out, or to target/derivepoet inside the crate.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			m, err := readManifest(dir)
			if err != nil {
				return err
			}
			srcDir := filepath.Join(dir, "src")
			if m.Lib.Path != "" {
				srcDir = filepath.Dir(filepath.Join(dir, m.Lib.Path))
			}
			files, err := rustFiles([]string{srcDir})
			if err != nil {
				return err
			}
			out := a.cfg.Out
			if out == "" {
				out = filepath.Join(dir, "target", "derivepoet")
			}
			a.log.Info("expanding crate",
				zap.String("crate", m.Package.Name),
				zap.String("edition", m.Package.Edition),
				zap.Int("files", len(files)))

			results, err := a.expandAll(cmd.Context(), files, crateOutputName(srcDir))
			if err != nil {
				return err
			}
			if err := emit(cmd.OutOrStdout(), out, results); err != nil {
				return err
			}
			written := 0
			for _, r := range results {
				if r.file != nil && r.file.NumElements() > 0 {
					written++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: wrote %d file(s) to %s\n", m.Package.Name, written, out)
			return report(cmd.ErrOrStderr(), results)
		},
	}
}
