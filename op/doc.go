// Package op defines the wire representation of a single mutation applied
// to a Replicant's value tree: [Operation], its [Method] vocabulary, and the
// slash-delimited path format used to locate the affected node.
//
// A path is a JSON-Pointer-like string rooted at "/". Each segment names one
// step from the root to the mutated node; a literal "/" inside a key is
// escaped as "~1" so it cannot be confused with a path separator. [EscapeKey]
// and [UnescapeKey] convert a single key to and from its escaped form;
// [JoinPath] and [SplitPath] build and decompose whole paths.
package op
