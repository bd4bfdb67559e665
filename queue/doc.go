// Package queue implements the per-Replicant operation queue and its
// end-of-turn flush scheduling: Operations accumulate synchronously as
// mutations are accepted, and the first Enqueue of a turn reports that a
// flush should be scheduled so the caller can hand that off to whatever
// "end of turn" primitive it uses (see [github.com/replicantd/core/replicator],
// which drains pending flushes on its single dispatcher goroutine).
package queue
