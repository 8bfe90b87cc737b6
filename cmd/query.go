package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/kmcaloon/groqcache/render"
)

func newGetCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <query>",
		Short: "Print the cached result of a static query",
		Long: "Print the cached result of a static query. The query must be the text\n" +
			"after fragment substitution, exactly as it was extracted.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := render.NewReader(o.cfg.CacheRoot(), o.logger)
			v, ok := r.Lookup(args[0])
			if !ok {
				return fmt.Errorf("no cached result for %q in %s", args[0], o.cfg.CacheRoot())
			}
			return printJSON(cmd.OutOrStdout(), v)
		},
	}
}

func newQueryCmd(o *options) *cobra.Command {
	var params []string
	cmd := &cobra.Command{
		Use:   "query <query>",
		Short: "Resolve fragments in a query and evaluate it against the dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vars, err := parseParams(params)
			if err != nil {
				return err
			}
			p := o.newPipeline(nil)
			p.ReloadFragments()
			text, err := p.Adapter.Resolve("cli", args[0])
			if err != nil {
				return err
			}
			nodes, err := p.Dataset.Nodes(cmd.Context())
			if err != nil {
				return fmt.Errorf("load dataset: %w", err)
			}
			v, err := p.Adapter.EvaluateParams(cmd.Context(), "cli", text, nodes, vars)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v)
		},
	}
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Query parameter as name=value; JSON values are decoded, anything else is a string")
	return cmd
}

// parseParams turns name=value pairs into a map. A value that parses as
// JSON keeps its type.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q (want name=value)", pair)
		}
		if raw == "" {
			out[name] = raw
		} else if v, err := oj.ParseString(raw); err == nil {
			out[name] = v
		} else {
			out[name] = raw
		}
	}
	return out, nil
}

func printJSON(w io.Writer, v any) error {
	_, err := fmt.Fprintln(w, oj.JSON(v, &ojg.Options{Indent: 2, Sort: true}))
	return err
}
