package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBooks = `{"books":[
	{"id":1,"title":"The Hobbit","author":"J.R.R. Tolkien","genre":"fantasy","year":1937,"rating":4.7,"available":true},
	{"id":2,"title":"Dune","author":"Frank Herbert","genre":"science-fiction","year":1965,"rating":4.5,"available":false}
]}`

// writeConfig writes a one-site configuration backed by a local books file.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	books := filepath.Join(dir, "books.json")
	require.NoError(t, os.WriteFile(books, []byte(testBooks), 0o600))
	cfg := `{
		sites: [
			{key: "library", title: "Test Library", kind: "book", source: "` + filepath.ToSlash(books) + `", older_threshold: 2020}
		]
	}`
	path := filepath.Join(dir, "sites.json5")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		resetFlags(t, rootCmd)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// resetFlags restores every flag of cmd and its subcommands to its default and clears Changed.
func resetFlags(t *testing.T, cmd *cobra.Command) {
	t.Helper()
	reset := func(f *pflag.Flag) {
		if err := f.Value.Set(f.DefValue); err != nil {
			t.Errorf("reset --%s: %v", f.Name, err)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(t, sub)
	}
}

// TestList_PrintsFilteredTable verifies the query flag narrows the table and the caption counts it.
func TestList_PrintsFilteredTable(t *testing.T) {
	path := writeConfig(t)

	out, err := run(t, "list", "library", "--config", path, "--q", "dune")
	require.NoError(t, err)

	assert.Contains(t, out, "Dune")
	assert.NotContains(t, out, "The Hobbit")
	assert.Contains(t, out, "Showing 1 book")
	assert.Contains(t, out, "Checked Out")
}

// TestList_UnknownSite verifies an unconfigured key is an error.
func TestList_UnknownSite(t *testing.T) {
	path := writeConfig(t)

	_, err := run(t, "list", "nowhere", "--config", path)
	require.Error(t, err)
}

// TestRender_WritesPage verifies render emits the page with both items.
func TestRender_WritesPage(t *testing.T) {
	path := writeConfig(t)

	out, err := run(t, "render", "library", "--config", path)
	require.NoError(t, err)

	assert.Contains(t, out, `id="catalog"`)
	assert.Contains(t, out, "The Hobbit")
	assert.Contains(t, out, "Dune")
}

// TestList_FlagsDoNotLeakBetweenRuns verifies a filter set in one run is gone in the next.
func TestList_FlagsDoNotLeakBetweenRuns(t *testing.T) {
	path := writeConfig(t)

	t.Run("filtered", func(t *testing.T) {
		out, err := run(t, "list", "library", "--config", path, "--q", "dune")
		require.NoError(t, err)
		assert.NotContains(t, out, "The Hobbit")
	})
	t.Run("unfiltered", func(t *testing.T) {
		out, err := run(t, "list", "library", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, out, "The Hobbit")
		assert.Contains(t, out, "Dune")
		assert.Contains(t, out, "Showing 2 books")
		assert.False(t, listCmd.Flags().Changed("q"))
	})
}
