// Package config loads typed configuration structs from environment
// variables using caarlos0/env tags, with optional .env file support for
// local development.
//
// Every infrastructure package in this repository (pg, redis, email,
// dispatch) declares its own Config struct with `env` tags and is loaded
// through config.Load or config.MustLoad at process startup. Parsed
// configurations are cached per type, so the cron service and its job
// handlers always agree on the same values.
package config
