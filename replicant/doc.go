// Package replicant implements the named, namespaced, schema-validated
// observable value at the center of the runtime: a [Replicant]. Its value is
// mutated either through [Replicant.Update], a recording-proxy callback over
// a [View], or through the explicit [Replicant.Set] / [Replicant.Delete] /
// [Replicant.Mutate] path API -- both surfaces funnel into the same
// mutation-interception core in package
// [github.com/replicantd/core/proxy] so every invariant holds regardless of
// which a caller uses.
package replicant
