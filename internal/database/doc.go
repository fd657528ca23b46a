// Package database provides SQLite-based storage for events received by the
// local collector.
//
// Each accepted beacon request becomes one row of the events table. The
// store is deliberately write-once: events are inserted and summarized,
// never updated.
//
// modernc.org/sqlite keeps the build CGO-free, and WAL mode lets report
// queries read while the collector writes.
package database
