package main

import (
	"github.com/spf13/cobra"
)

func newExpandCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "expand [files or directories...]",
		Short: "Write the derived impls for Rust source files",
		Long: `expand reads the given Rust files (directories are searched for .rs
files) and writes one <name>_derive.rs file per input that has derived
items. Without --out the generated code is printed to stdout.

Items with invalid attributes are reported on stderr and skipped; the
impls of the other items are still written.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := rustFiles(args)
			if err != nil {
				return err
			}
			results, err := a.expandAll(cmd.Context(), files, outputName)
			if err != nil {
				return err
			}
			if err := emit(cmd.OutOrStdout(), a.cfg.Out, results); err != nil {
				return err
			}
			return report(cmd.ErrOrStderr(), results)
		},
	}
}
