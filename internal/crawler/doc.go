// Package crawler implements the catalog crawl orchestrator: the session that
// owns the fetch client, the strategy registry, the catalog (category list)
// crawl and the concurrent, pagination-aware category crawl.
package crawler
