package replicator

import "os"

// loadSchemaFile reads a replicant's configured schema document off disk.
// Extracted to its own small function so a future schema source (embedded
// FS, bundle manifest) is a one-line swap at the single call site.
func loadSchemaFile(path string) ([]byte, error) {
	return os.ReadFile(path) //nolint:gosec // path comes from a replicant's own declared Options.SchemaPath, not untrusted input.
}
