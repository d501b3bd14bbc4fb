package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
)

// errNoCategory is returned when neither --category nor parser.category is set.
var errNoCategory = errors.New("no category selected; pass --category or set parser.category")

func newCrawlCmd() *cobra.Command {
	var selector string
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls one category and exports it as CSV",
		Long: `Discovers the catalog's categories, selects one by path, title or 1-based
index, crawls every listing and detail page of it and writes the products to
the configured results location.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawlCommand(cmd, selector)
		},
	}
	cmd.Flags().StringVarP(&selector, "category", "c", "", "category path, title or 1-based index (default parser.category)")
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, selector string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	if selector == "" {
		selector = appInstance.Config().Parser.Category
	}
	if selector == "" {
		return errNoCategory
	}
	logger := appInstance.Logger()

	session, err := appInstance.OpenSession()
	if err != nil {
		return err
	}
	defer session.Close()

	categories, err := session.Categories(cmd.Context())
	if err != nil {
		return fmt.Errorf("discover categories: %w", err)
	}
	category, err := selectCategory(categories, selector)
	if err != nil {
		return err
	}
	logger.Info("Crawling category", zap.String("title", category.Title), zap.String("path", category.Path))

	products, err := session.Products(cmd.Context(), category)
	if err != nil {
		return fmt.Errorf("crawl %q: %w", category.Title, err)
	}

	location, err := appInstance.Export(cmd.Context(), category, products)
	if err != nil {
		return err
	}
	logger.Info("Crawl command finished", zap.Int("products", len(products)), zap.String("location", location))
	fmt.Fprintln(cmd.OutOrStdout(), location)
	return nil
}

// selectCategory finds the category matching selector by exact path, then by
// case-insensitive title, then by 1-based index.
func selectCategory(categories []crawler.Category, selector string) (crawler.Category, error) {
	selector = strings.TrimSpace(selector)
	for _, c := range categories {
		if c.Path == selector {
			return c, nil
		}
	}
	for _, c := range categories {
		if strings.EqualFold(strings.TrimSpace(c.Title), selector) {
			return c, nil
		}
	}
	if n, err := strconv.Atoi(selector); err == nil {
		if n >= 1 && n <= len(categories) {
			return categories[n-1], nil
		}
		return crawler.Category{}, fmt.Errorf("category index %d out of range 1..%d", n, len(categories))
	}
	return crawler.Category{}, fmt.Errorf("no category matches %q", selector)
}
