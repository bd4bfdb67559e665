// Package bus provides Bus[T], a generic fan-out primitive: one writer
// publishes values of type T to any number of subscribers, each with its
// own buffered, ring-buffer channel so a slow or absent subscriber never
// blocks the publisher.
//
// Bus[T] is the generalized form of this module's original single-purpose
// fan-out (log entry broadcast, package log's Publisher); package log's
// Publisher is now a [][]byte-flavored Bus, and package replicator uses
// Bus[replicator.Envelope] to broadcast operation batches to local
// subscribers over the same mechanism.
package bus
