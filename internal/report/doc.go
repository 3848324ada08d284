// Package report renders and persists finalized scan reports.
//
// Writers for the different output formats:
//   - ConsoleWriter: labelled per-link lines and the end-of-run summary
//   - NDJSONWriter: one record per link, the persisted result format
//   - JSONWriter: the full report as a single JSON document
//   - MarkdownWriter: a shareable Markdown summary
//
// FileWriter saves the NDJSON records to a named file and reports failures
// as *WriteError. ReadRecords parses such a file back.
//
// Writers implement the Writer interface, so they can be composed with
// MultiWriter for multi-format output.
package report
