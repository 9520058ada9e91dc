// Package netop models a single in-flight network exchange (call, upload or
// download) as a cancellable, observable unit. An Operation owns the exchange
// handle and the bytes it produces; it moves through suspended -> running ->
// completed/failed/cancelled exactly once and reports its result through a
// single completion slot.
//
// The package performs no I/O on its own. Transports (see internal/transport)
// bind an Exchange to an Operation via a Binder and feed it through the Sink
// callbacks.
package netop
