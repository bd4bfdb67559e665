package persistence

import "errors"

// ErrPersistence is the sentinel every durable-store I/O failure wraps.
// A write failure is logged and its pending value is dropped; nothing is
// rewritten until a later Save for the same key schedules a new write. It
// never blocks or fails the in-memory mutation that triggered it.
var ErrPersistence = errors.New("persistence: I/O failure")
