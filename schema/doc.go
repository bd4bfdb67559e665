// Package schema implements the validation gate every prospective
// Replicant mutation passes through before it is allowed to reach the live
// value: compiling a JSON Schema once at declare time, then running a
// greedy (report-all-errors) validation pass against a clone of the value
// with the mutation already applied.
//
// Compilation and validation are delegated to
// [github.com/google/jsonschema-go/jsonschema], the same dependency the
// wider project's schema tooling already carries -- [Gate] uses it for
// resolution and validation, the half of that package magicschema-derived
// code in this project does not otherwise exercise.
package schema
