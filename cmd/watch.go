package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kmcaloon/groqcache/internal/pipeline"
	"github.com/kmcaloon/groqcache/internal/watch"
)

func newWatchCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Build once, then keep the cache current as source and fragment files change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg, closePages, err := o.openPages()
			if err != nil {
				return err
			}
			defer func() { _ = closePages() }()

			p := o.newPipeline(reg)
			sum, err := p.Build(ctx)
			if err != nil {
				return fmt.Errorf("build: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cached %d page and %d static queries; watching for changes.\n",
				sum.PageQueries, sum.StaticQueries)

			roots := []string{p.Config.SourceDir()}
			if dir := p.Config.FragmentsPath(); dir != "" {
				roots = append(roots, dir)
			}
			w := &watch.Watcher{
				Roots:      roots,
				Extensions: p.Config.Extensions,
				Debounce:   time.Duration(p.Config.DebounceMillis) * time.Millisecond,
				Logger:     o.logger,
			}

			events := make(chan pipeline.ChangeEvent, 64)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				defer close(events)
				return w.Run(gctx, events)
			})
			g.Go(func() error {
				return p.Reconciler().Run(gctx, events)
			})
			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
