package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/kmcaloon/groqcache/api"
	"github.com/kmcaloon/groqcache/internal/pages"
	"github.com/kmcaloon/groqcache/internal/pipeline"
)

func newPagesCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pages",
		Short: "Manage the page registry",
	}
	cmd.AddCommand(newPagesAddCmd(o), newPagesListCmd(o))
	return cmd
}

// requirePages opens the page registry or fails when none is configured.
func (o *options) requirePages() (pages.Registry, func() error, error) {
	reg, closePages, err := o.openPages()
	if err != nil {
		return nil, nil, err
	}
	if reg == nil {
		return nil, nil, errNoPagesDB
	}
	return reg, closePages, nil
}

func newPagesAddCmd(o *options) *cobra.Command {
	var (
		path      string
		component string
		entries   []string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a page and inject its component's page query result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			vars, err := parseParams(entries)
			if err != nil {
				return err
			}
			if vars == nil {
				vars = map[string]any{}
			}
			reg, closePages, err := o.requirePages()
			if err != nil {
				return err
			}
			defer func() { _ = closePages() }()

			file := component
			if !filepath.IsAbs(file) {
				file = filepath.Join(o.cfg.Root, file)
			}
			page := api.Page{
				Path:      path,
				Component: pipeline.ComponentKey(o.cfg.Root, file),
				Context:   vars,
			}
			p := o.newPipeline(reg)
			p.ReloadFragments()
			created, err := p.OnCreatePage(cmd.Context(), page)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", created.Path, created.Component, oj.JSON(created.Context, &ojg.Options{Sort: true}))
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "URL path of the page")
	cmd.Flags().StringVar(&component, "component", "", "Source file rendering the page, relative to the root")
	cmd.Flags().StringArrayVar(&entries, "context", nil, "Page context entry as name=value")
	_ = cmd.MarkFlagRequired("path")
	_ = cmd.MarkFlagRequired("component")
	return cmd
}

func newPagesListCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered pages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, closePages, err := o.requirePages()
			if err != nil {
				return err
			}
			defer func() { _ = closePages() }()

			all, err := reg.Pages(cmd.Context())
			if err != nil {
				return err
			}
			for _, page := range all {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", page.Path, page.Component, oj.JSON(page.Context, &ojg.Options{Sort: true}))
			}
			return nil
		},
	}
}
