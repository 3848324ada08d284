// Package source loads raw link strings from a webpage or a local file.
//
// # Remote sources
//
// A location starting with http:// or https:// is downloaded once. The
// body is decoded (gzip, deflate, brotli), converted to UTF-8 and parsed
// with goquery; the href of every anchor is returned in document order.
// With rendering enabled, the page is first loaded in headless Chrome via
// chromedp so that script-generated links are included.
//
// # File sources
//
// Any other location is read as a text file and scanned for absolute
// http and https URLs. Relative links cannot appear in this mode.
//
// Loading never verifies links; that is the verify package's job.
package source
