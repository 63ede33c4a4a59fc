package commands

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	web "catalog/internal/adapters/http"
	"catalog/internal/adapters/source"
	"catalog/internal/config"
)

var renderFilters filterFlags

func init() {
	renderFilters.register(renderCmd)
	rootCmd.AddCommand(renderCmd)
}

var renderCmd = &cobra.Command{
	Use:   "render <site>",
	Short: "Prints the rendered HTML page of a site.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Read(configPath)
		if err != nil {
			return err
		}
		d := &web.Deps{
			Config: cfg,
			Source: source.NewClient(cfg.FetchTimeout(), nil),
		}
		status, err := web.RenderSite(cmd.Context(), cmd.OutOrStdout(), d, args[0], renderFilters.interactions(cmd), "", "")
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return fmt.Errorf("site %q rendered with status %d", args[0], status)
		}
		return nil
	},
}
