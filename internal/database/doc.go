// Package database stores scan history in SQLite.
//
// HistoryDB keeps every finalized scan report together with its summary
// counts and one row per discovered link, so later runs can be compared
// against earlier ones and a single link can be followed across scans.
//
// The driver is modernc.org/sqlite, a CGO-free SQLite port; the database is
// a single file opened in WAL mode.
package database
