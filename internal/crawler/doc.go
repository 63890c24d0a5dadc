// Package crawler defines the shared contracts of the crawl pipeline: the
// frontier, robots authority, politeness gate, fetcher, duplicate detector,
// link extractor, tokenizer, and analytics interfaces, plus the response and
// skip-reason types that flow between them. Implementations live in their own
// packages; this package must not import any of them.
package crawler
