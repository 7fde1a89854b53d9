// Package rulebook versions the shelf-life rule tables.
//
// A rule book is published as a new version and activated atomically: the
// Manager builds a fresh shelflife.Engine for the new tables and swaps it in,
// so calculations in flight finish against the tables they started with.
// Versions are kept in memory, PostgreSQL or SQLite, and can be imported
// from TOML artifacts on disk or in S3.
package rulebook
