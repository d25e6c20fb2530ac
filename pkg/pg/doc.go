// Package pg provides PostgreSQL connectivity for the mailroom services:
// pooled connections with startup retry, goose schema migrations, a health
// check closure, and error classification helpers used by the dispatch
// storage layer to distinguish "not found" from constraint violations.
package pg
