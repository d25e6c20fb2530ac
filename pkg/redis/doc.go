// Package redis provides Redis connectivity for the mailroom cron service:
// connection establishment with retry, a health check closure, and a
// TTL-bounded run lock that keeps overlapping cron triggers from processing
// the same batch concurrently.
package redis
