// Package report persists analysis-run summaries to a SQLite database.
//
// The store is an append-only history: one row per analyzed pipeline,
// carrying the stage counts and the graph fingerprint but never the graph
// itself. Writes are best-effort from the CLI's point of view, degrading to
// a warning when an append fails; reads (the history subcommand) fail
// loudly.
//
// Database configuration follows the usual single-writer SQLite setup:
// WAL journal, NORMAL synchronous, 5s busy timeout, foreign keys on.
package report
