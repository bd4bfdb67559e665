// Package replicator implements the registry and dispatcher that turns a
// set of independent [github.com/replicantd/core/replicant.Replicant]
// values into a replicated system: it services findOrDeclare, routes
// outbound flushes to a [Transport], applies inbound remote operations,
// and publishes full-value snapshots to newly declaring peers.
//
// Every flush emission and inbound-operation apply for every replicant
// the Registry owns runs on the single goroutine started by
// [Registry.Run], so the two can never interleave for a given
// (namespace, name). Each Replicant still guards its own value tree with
// its own mutex, so declaring a replicant or reading its current value
// from another goroutine stays safe without waiting on the dispatcher.
package replicator
