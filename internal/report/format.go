package report

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// FormatCount formats a count with English digit grouping, e.g. 12345 as
// "12,345".
func FormatCount(n int) string {
	return message.NewPrinter(language.English).Sprintf("%d", n)
}
