package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/spf13/cobra"

	"github.com/kmcaloon/groqcache/api"
	"github.com/kmcaloon/groqcache/internal/cache"
	"github.com/kmcaloon/groqcache/internal/dataset"
	"github.com/kmcaloon/groqcache/internal/pages"
	"github.com/kmcaloon/groqcache/internal/pipeline"
	"github.com/kmcaloon/groqcache/internal/report"
)

// ConfigFile is looked up in the project root when --config is not given.
const ConfigFile = "groqcache.hcl"

var version = "dev"

// options carries the flag values of one command invocation and the
// configuration resolved from them.
type options struct {
	root       string
	configPath string
	src        string
	fragments  string
	cacheDir   string
	mode       string
	dataset    string
	selector   string
	pagesDB    string
	logLevel   string
	logFormat  string

	cfg    api.Config
	logger *slog.Logger
}

// NewRootCmd returns the groqcache command tree.
func NewRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "groqcache",
		Short:         "Extract GROQ queries from source files and cache their results",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return o.load(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&o.root, "root", ".", "Project root")
	f.StringVar(&o.configPath, "config", "", "Config file (default <root>/"+ConfigFile+")")
	f.StringVar(&o.src, "src", "", "Source directory scanned for queries (default <root>/src)")
	f.StringVar(&o.fragments, "fragments", "", "Directory of the fragments module")
	f.StringVar(&o.cacheDir, "cache-dir", "", "Cache directory (default derived from --mode)")
	f.StringVar(&o.mode, "mode", "", "development or production (default from NODE_ENV)")
	f.StringVarP(&o.dataset, "dataset", "d", "", "Content nodes (.json, .ndjson or .db)")
	f.StringVar(&o.selector, "selector", "", "JSONPath of the node list inside a JSON dataset")
	f.StringVar(&o.pagesDB, "pages-db", "", "SQLite page registry")
	f.StringVar(&o.logLevel, "log-level", "info", "debug, info, warn or error")
	f.StringVar(&o.logFormat, "log-format", "text", "text or json")

	root.AddCommand(
		newBuildCmd(o),
		newWatchCmd(o),
		newGetCmd(o),
		newQueryCmd(o),
		newPagesCmd(o),
		newLintCmd(o),
		newMCPCmd(o),
	)
	return root
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// load resolves the configuration: flags win over the config file, which
// wins over defaults. NODE_ENV is consulted here and nowhere else.
func (o *options) load(cmd *cobra.Command) error {
	rootDir, err := filepath.Abs(o.root)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}

	var cfg api.Config
	path := o.configPath
	if path == "" {
		path = filepath.Join(rootDir, ConfigFile)
	}
	if _, err := os.Stat(path); err == nil {
		if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
			return fmt.Errorf("load config %s: %w", path, err)
		}
	} else if o.configPath != "" {
		return fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	switch {
	case flags.Changed("root") || cfg.Root == "":
		cfg.Root = rootDir
	case !filepath.IsAbs(cfg.Root):
		cfg.Root = filepath.Join(filepath.Dir(path), cfg.Root)
	}
	override := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	override("src", &cfg.SourceRoot, o.src)
	override("fragments", &cfg.FragmentsDir, o.fragments)
	override("cache-dir", &cfg.CacheDir, o.cacheDir)
	override("mode", &cfg.Mode, o.mode)
	override("dataset", &cfg.Dataset, o.dataset)
	override("selector", &cfg.DatasetSelector, o.selector)
	override("pages-db", &cfg.PagesDB, o.pagesDB)

	if cfg.Mode == "" && os.Getenv("NODE_ENV") == api.Production {
		cfg.Mode = api.Production
	}
	cfg = cfg.WithDefaults()
	if cfg.Mode != api.Development && cfg.Mode != api.Production {
		return fmt.Errorf("unknown mode %q (want %s or %s)", cfg.Mode, api.Development, api.Production)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := report.New(cmd.ErrOrStderr(), o.logLevel, o.logFormat)
	if err != nil {
		return err
	}
	o.cfg = cfg
	o.logger = logger
	return nil
}

// openPages opens the configured SQLite page registry. It returns a nil
// registry when none is configured.
func (o *options) openPages() (pages.Registry, func() error, error) {
	path := o.cfg.PagesDBPath()
	if path == "" {
		return nil, func() error { return nil }, nil
	}
	reg, err := pages.OpenSQLite(path)
	if err != nil {
		return nil, nil, err
	}
	return reg, reg.Close, nil
}

var errNoPagesDB = errors.New("no page registry configured (set --pages-db or pages_db)")

// newPipeline wires a pipeline over the on-disk cache and the configured dataset.
func (o *options) newPipeline(reg pages.Registry) *pipeline.Pipeline {
	c := cache.Open(o.cfg.CacheRoot())
	ds := dataset.Open(o.cfg.DatasetPath(), o.cfg.DatasetSelector)
	return pipeline.New(o.cfg, c, ds, reg, o.logger)
}
