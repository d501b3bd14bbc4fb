package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "Lists the catalog's top-level categories",
		Long: `Fetches the catalog root page and prints every top-level category with
its 1-based index, title, path and whether a crawl strategy supports it.`,
		Args: cobra.NoArgs,
		RunE: runCategoriesCommand,
	}
}

func runCategoriesCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	session, err := appInstance.OpenSession()
	if err != nil {
		return err
	}
	defer session.Close()

	categories, err := session.Categories(cmd.Context())
	if err != nil {
		return fmt.Errorf("discover categories: %w", err)
	}

	registry := appInstance.Registry()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tTITLE\tPATH\tSUPPORTED")
	for i, c := range categories {
		supported := "no"
		if registry.Supports(c) {
			supported = "yes"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, c.Title, c.Path, supported)
	}
	return w.Flush()
}
