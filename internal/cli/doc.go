// Package cli implements the ducksgather command-line interface.
//
// The root command loads configuration and logging; subcommands run the
// ingestion pipeline once or on a schedule, export scraped records, serve the
// HTTP API and administer the database (migrations, location seeding, roles).
package cli
