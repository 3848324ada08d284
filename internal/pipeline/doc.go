// Package pipeline runs a link scan as a sequence of steps.
//
// The default pipeline is:
//
//	load      read raw link strings from the source
//	classify  turn each string into a classified link
//	verify    check http(s) links and hand every link to the aggregator
//
// Verification runs sequentially with one worker, or on a bounded pool of
// goroutines (errgroup with SetLimit) otherwise. Either way the finalized
// report lists links in discovery order.
//
// Cancelling the context stops new checks from starting. Checks cut short
// by the cancellation are dropped rather than recorded as broken, and the
// scan is marked interrupted so the caller can persist a partial report.
package pipeline
