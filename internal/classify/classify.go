// Package classify turns raw link strings into classified links.
//
// Classification is a pure function of the raw text and the base domain:
// no network access, no shared state. Rules are applied in order and the
// first match wins:
//
//  1. "#..."       fragment, never verified
//  2. "http://..."  plain http
//  3. "https://..." https
//  4. "/..."       root-relative; resolved to base domain + path as https
//     when a base domain is known
//  5. anything else is unresolved
//
// Root-relative links are always treated as https, even when the base
// domain itself uses http.
package classify

import (
	"strings"

	"github.com/nao1215/linkscan/internal/model"
)

// Classify classifies one raw link. index is the discovery position.
func Classify(index int, raw, baseDomain string) model.Link {
	l := model.Link{
		Index:       index,
		RawText:     raw,
		ResolvedURL: raw,
	}

	switch {
	case strings.HasPrefix(raw, "#"):
		l.Scheme = model.SchemeFragment
	case strings.HasPrefix(raw, "http://"):
		l.Scheme = model.SchemeHTTP
	case strings.HasPrefix(raw, "https://"):
		l.Scheme = model.SchemeHTTPS
	case strings.HasPrefix(raw, "/") && baseDomain != "":
		l.ResolvedURL = baseDomain + raw
		l.Scheme = model.SchemeHTTPS
	default:
		l.Scheme = model.SchemeUnresolved
	}

	return l
}

// ClassifyAll classifies raw links in order, assigning discovery indexes.
func ClassifyAll(raws []string, baseDomain string) []model.Link {
	links := make([]model.Link, len(raws))
	for i, raw := range raws {
		links[i] = Classify(i, raw, baseDomain)
	}
	return links
}
