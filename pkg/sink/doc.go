// Package sink writes discovered backends to the output artifact. Two
// implementations exist: a CSV file (the default, byte-compatible with the
// legacy report) and a SQLite inventory database whose rows are stamped with
// a run ID.
package sink
