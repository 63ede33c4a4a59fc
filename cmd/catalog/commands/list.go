package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	web "catalog/internal/adapters/http"
	"catalog/internal/adapters/source"
	"catalog/internal/application/filter"
	"catalog/internal/application/page"
	"catalog/internal/application/render"
	"catalog/internal/config"
	"catalog/internal/domain/item"
)

var listFilters filterFlags

func init() {
	listFilters.register(listCmd)
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list <site>",
	Short: "Prints the filtered items of a site as a table.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Read(configPath)
		if err != nil {
			return err
		}
		site, err := cfg.Site(args[0])
		if err != nil {
			return err
		}

		ctrl := page.New(web.SiteFor(site), nil, page.Deps{
			Source: source.NewClient(cfg.FetchTimeout(), nil),
		})
		if err := ctrl.Load(cmd.Context()); err != nil {
			return err
		}
		if err := ctrl.Apply(cmd.Context(), listFilters.interactions(cmd)); err != nil {
			return err
		}

		visible := ctrl.Visible()
		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetTitle(site.Title)
		writeRows(t, site.ItemKind(), visible)
		t.SetCaption(render.Summary(site.ItemKind(), visible))
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}

func writeRows(t table.Writer, kind item.Kind, items []item.Item) {
	switch kind {
	case item.KindBook:
		t.AppendHeader(table.Row{"ID", "Title", "Author", "Genre", "Year", "Rating", "Status"})
		for _, it := range items {
			status := "Checked Out"
			if it.Available {
				status = "Available"
			}
			t.AppendRow(table.Row{it.ID, it.Title, it.Byline, it.Category, year(it.Year), rating(it.Rating), status})
		}
	case item.KindMember:
		t.AppendHeader(table.Row{"Name", "Category", "Level", "Phone", "Since"})
		for _, it := range items {
			t.AppendRow(table.Row{it.Title, it.Category, it.Tier.Name(), render.FormatPhone(it.Phone), year(it.Year)})
		}
	case item.KindCourse:
		t.AppendHeader(table.Row{"Code", "Title", "Credits", "Technology", "Done"})
		for _, it := range items {
			done := ""
			if it.Available {
				done = "✓"
			}
			t.AppendRow(table.Row{it.Code(), it.Title, it.Credits, strings.Join(it.Tags, ", "), done})
		}
		t.AppendFooter(table.Row{"", "Total", filter.TotalCredits(items), "", ""})
	}
}

func year(y int) string {
	if y == 0 {
		return ""
	}
	return strconv.Itoa(y)
}

func rating(r float64) string {
	if r == 0 {
		return ""
	}
	return fmt.Sprintf("%.1f", r)
}
