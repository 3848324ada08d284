// Package verify checks whether classified links are reachable.
//
// Only http and https links are checked. Fragments and unresolved links are
// passed through untouched with an unknown reachability, and no request is
// made for them.
package verify
