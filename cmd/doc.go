// Package cmd implements the catalog-crawler command line.
//
// Architecture overview:
//   - Configuration: internal/config loads defaults, an optional YAML file and CRAWLER_* environment variables
//     through Viper. The root command builds an internal/app.App from it before any subcommand runs.
//   - Session: each command opens a crawler.Session around a Colly-based fetch client. All requests of the run
//     share one token-bucket limiter, so parser.rps_limit bounds the whole run regardless of fan-out.
//   - Crawl: the category crawler reads page 1 to learn the page count, fetches the remaining listing pages
//     concurrently, enriches every product from its detail page concurrently and merges results in page order.
//     The first failure cancels every sibling and nothing is exported.
//   - Export: products are written as CSV to the configured blob store (local directory or GCS). When configured,
//     rows are also inserted into Postgres and a completion notice is published to Pub/Sub.
//   - Observability: zap logs carry the run id; Prometheus collectors track fetches, limiter delays and crawl
//     outcomes and can be scraped from metrics.addr during long runs.
//
// Commands:
//   - categories: list the catalog's top-level categories and whether a strategy supports them.
//   - crawl: crawl one category chosen by path, title or 1-based index and export the results.
package cmd
