// Package persistence implements the durable store backing a replicant's
// `persistent` option: one JSON file per (namespace, name), written via a
// temp-file-then-rename so a crash never leaves a truncated file readable,
// and coalesced per-key with a debounce timer so a burst of mutations
// inside one persistence interval produces a single write.
//
// This is the one component of the module without a direct teacher or pack
// grounding -- no example repo implements a debounced key/value file store
// -- so it is built directly on the standard library (os, time,
// encoding/json), in the config-struct/functional-option idiom the rest of
// the module uses. See DESIGN.md for the justification.
package persistence
