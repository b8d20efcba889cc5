package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jhump/derivepoet"
)

// fileReport summarizes the expansion of one source file.
type fileReport struct {
	File   string   `yaml:"file"`
	Impls  int      `yaml:"impls"`
	Errors []string `yaml:"errors,omitempty"`
}

type checkReport struct {
	Files  []fileReport `yaml:"files"`
	Derive []string     `yaml:"supported_derives"`
}

func newCheckCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "check [files or directories...]",
		Short: "Validate derive attributes without writing anything",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "yaml" {
				return errors.Newf("unknown format %q: expected text or yaml", format)
			}
			files, err := rustFiles(args)
			if err != nil {
				return err
			}
			results, err := a.expandAll(cmd.Context(), files, outputName)
			if err != nil {
				return err
			}
			if format == "text" {
				if err := report(cmd.ErrOrStderr(), results); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok: %d file(s)\n", len(results))
				return nil
			}

			rep := checkReport{Derive: derivepoet.Derives()}
			failed := 0
			for _, r := range results {
				fr := fileReport{File: r.src}
				if r.file != nil {
					fr.Impls = r.file.NumElements()
				}
				for _, e := range derivepoet.Flatten(r.err) {
					fr.Errors = append(fr.Errors, e.Error())
					failed++
				}
				rep.Files = append(rep.Files, fr)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(rep); err != nil {
				return errors.Wrap(err, "encoding report")
			}
			if err := enc.Close(); err != nil {
				return err
			}
			if failed > 0 {
				return errors.Newf("%d error(s)", failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "report format: text or yaml")
	return cmd
}
