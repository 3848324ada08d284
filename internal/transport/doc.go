// Package transport builds the HTTP clients used by linkscan.
//
// A single Client configuration is shared by the source loader and the link
// verifier so that both see the same timeout, User-Agent and redirect
// policy. Cookies and headers are chosen per request host. Connections can be routed through a SOCKS5 proxy
// (golang.org/x/net/proxy), or through an embedded Tor daemon started with
// tornago, which also makes .onion links checkable.
package transport
