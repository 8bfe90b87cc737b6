package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kmcaloon/groqcache/internal/linter"
	"github.com/kmcaloon/groqcache/internal/pipeline"
)

func newLintCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Report queries a build would skip, without touching the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := o.newPipeline(nil)
			p.ReloadFragments()
			files, err := pipeline.Scan(p.Config.SourceDir(), p.Config.Extensions)
			if err != nil {
				return fmt.Errorf("scan %s: %w", p.Config.SourceDir(), err)
			}

			l := &linter.Linter{Extractor: p.Extractor, Fragments: p.Fragments}
			problems := 0
			for _, f := range files {
				src, err := os.ReadFile(f)
				if err != nil {
					return err
				}
				diags, err := l.Lint(pipeline.ComponentKey(p.Config.Root, f), src)
				if err != nil {
					return err
				}
				for _, d := range diags {
					fmt.Fprintln(cmd.OutOrStdout(), d.String())
				}
				problems += len(diags)
			}
			if problems > 0 {
				return fmt.Errorf("%d problems in %d files", problems, len(files))
			}
			return nil
		},
	}
}
