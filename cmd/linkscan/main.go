// Package main provides the entry point for the linkscan CLI.
//
// linkscan collects the hyperlinks of one web page or text file, checks
// that each http(s) link answers, and reports broken and insecure links.
//
// Usage:
//
//	linkscan scan https://example.com
//	linkscan scan --base-domain https://example.com links.txt
//
// See --help for all available options.
package main

// main is the entry point for linkscan.
func main() {
	Execute()
}
