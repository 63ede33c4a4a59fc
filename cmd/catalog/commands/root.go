package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"catalog/internal/application/listutil"
	"catalog/internal/config"
)

// version is set at build time via -ldflags "-X catalog/cmd/catalog/commands.version=..."
var version = "dev"

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "catalog",
	Short:         "catalog serves and renders filterable item catalogs.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "site configuration file (json5)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
}

// ExecuteContext runs the command line and exits non-zero on error.
func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// filterFlags are the page interactions accepted by list and render.
type filterFlags struct {
	category string
	rng      string
	query    string
	tier     string
	layout   string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.category, "category", "", "category, genre or subject to show")
	cmd.Flags().StringVar(&f.rng, "range", "", `year, "older" or "all"`)
	cmd.Flags().StringVar(&f.query, "q", "", "free-text search")
	cmd.Flags().StringVar(&f.tier, "tier", "", "membership tier (1-3) or all")
	cmd.Flags().StringVar(&f.layout, "layout", "", "grid or list")
}

// interactions returns only the flags the user actually set.
func (f *filterFlags) interactions(cmd *cobra.Command) listutil.Interactions {
	q := url.Values{}
	set := func(flag, key, value string) {
		if cmd.Flags().Changed(flag) {
			q.Set(key, value)
		}
	}
	set("category", "category", f.category)
	set("range", "range", f.rng)
	set("q", "q", f.query)
	set("tier", "tier", f.tier)
	set("layout", "layout", f.layout)
	return listutil.ParseInteractions(q)
}
