package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBuildCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Extract every query below the source root and rebuild the result cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, closePages, err := o.openPages()
			if err != nil {
				return err
			}
			defer func() { _ = closePages() }()

			p := o.newPipeline(reg)
			sum, err := p.Build(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Cached %d page and %d static queries from %d files into %s (%d skipped, %d pages updated) in %v.\n",
				sum.PageQueries, sum.StaticQueries, sum.Files, o.cfg.CacheRoot(), sum.Skipped, sum.PagesUpdated, sum.Duration)
			if err != nil {
				return fmt.Errorf("build: %w", err)
			}
			return nil
		},
	}
}
