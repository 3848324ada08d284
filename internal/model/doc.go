// Package model defines the core data structures used throughout linkscan.
//
// This package contains the following main types:
//   - Source: Where links are discovered (a webpage or a local file)
//   - Link: One discovered link with its classification and reachability
//   - Scan: The working state passed between pipeline steps
//   - Aggregator: Collects verified links and freezes them into a report
//   - ScanReport: The final, ordered result of a scan
//   - Record: The one-line JSON form of a link written to disk
//
// Models live in their own package so that the source, classify, verify,
// pipeline, report and database packages can share them without import cycles.
package model
