package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/replicantd/core/op"
)

// ErrSchemaValidation is the sentinel every [ValidationError] wraps.
var ErrSchemaValidation = errors.New("schema validation failed")

// ErrInvalidSchema indicates the bytes given to [Gate.Compile] are not a
// valid JSON Schema document.
var ErrInvalidSchema = errors.New("invalid schema")

// Field is one validation failure: the offending field, a human-readable
// message, the type the schema expected, and the value actually found.
type Field struct {
	Path     string
	Message  string
	Expected string
	Value    any
}

// ValidationError reports that a candidate value failed schema
// validation. It carries every [Field] the validator found, since the
// gate validates greedily (report-all-errors) rather than stopping at the
// first failure.
type ValidationError struct {
	Fields []Field
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrSchemaValidation.Error()
	}

	return fmt.Sprintf("%s: %s: %s", ErrSchemaValidation, e.Fields[0].Path, e.Fields[0].Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrSchemaValidation
}

// Gate compiles one JSON Schema document and validates candidate values
// against it. The zero Gate has no schema attached and accepts everything
// -- [Gate.Validate] on an unattached Gate always succeeds, since a
// replicant's schema is optional.
type Gate struct {
	resolved *jsonschema.Resolved
	sum      string
}

// Compile parses schemaBytes as a JSON Schema document, resolves it into a
// reusable validator, and records its content hash (schemaSum) for
// cross-process agreement.
func (g *Gate) Compile(schemaBytes []byte) error {
	var s jsonschema.Schema
	if err := json.Unmarshal(schemaBytes, &s); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}

	resolved, err := s.Resolve(nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}

	sum := sha256.Sum256(canonicalize(schemaBytes))

	g.resolved = resolved
	g.sum = hex.EncodeToString(sum[:])

	return nil
}

// Attached reports whether a schema has been compiled into this Gate.
func (g *Gate) Attached() bool {
	return g.resolved != nil
}

// Sum returns the content hash computed by [Gate.Compile], or "" if no
// schema is attached.
func (g *Gate) Sum() string {
	return g.sum
}

// ValidateOptions configures [Gate.Validate].
type ValidateOptions struct {
	// ThrowOnInvalid, when true (the default meaning callers should pass
	// it explicitly), makes Validate return a *ValidationError on
	// failure. When false, Validate never errors and instead reports
	// validity via its bool return.
	ThrowOnInvalid bool
}

// Validate checks candidate against the attached schema. With
// opts.ThrowOnInvalid, a failing candidate returns (false, *ValidationError);
// without it, a failing candidate returns (false, nil) and never errors.
// A Gate with no schema attached always reports (true, nil).
func (g *Gate) Validate(candidate any, opts ValidateOptions) (bool, error) {
	if g.resolved == nil {
		return true, nil
	}

	err := g.resolved.Validate(candidate)
	if err == nil {
		return true, nil
	}

	if !opts.ThrowOnInvalid {
		return false, nil
	}

	return false, &ValidationError{Fields: leafFields(err, candidate)}
}

// leafFields flattens err into one [Field] per leaf schema-keyword failure,
// walking a [*jsonschema.ValidationError]'s nested Causes so that every
// simultaneously-failing constraint is reported rather than just the first.
func leafFields(err error, candidate any) []Field {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []Field{{Message: err.Error()}}
	}

	if len(ve.Causes) == 0 {
		return []Field{{
			Path:     ve.InstanceLocation,
			Message:  ve.Message,
			Expected: keywordOf(ve.KeywordLocation),
			Value:    valueAtPointer(candidate, ve.InstanceLocation),
		}}
	}

	fields := make([]Field, 0, len(ve.Causes))
	for _, cause := range ve.Causes {
		fields = append(fields, leafFields(cause, candidate)...)
	}

	return fields
}

// keywordOf extracts the failing schema keyword (e.g. "type", "required",
// "minimum") from a keyword-location JSON pointer such as
// "/properties/age/minimum".
func keywordOf(keywordLocation string) string {
	segments := op.SplitPath(keywordLocation)
	if len(segments) == 0 {
		return ""
	}

	return segments[len(segments)-1]
}

// valueAtPointer walks candidate along pointer (a JSON Pointer using the
// same "~1"-escaping as [op.SplitPath]), returning the offending value the
// validator flagged. Returns nil if the path can't be resolved, which is
// itself informative (e.g. a "required" failure points at a key that is
// simply absent).
func valueAtPointer(candidate any, pointer string) any {
	cur := candidate

	for _, key := range op.SplitPath(pointer) {
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[key]
			if !ok {
				return nil
			}

			cur = next
		case []any:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil
			}

			cur = v[idx]
		default:
			return nil
		}
	}

	return cur
}

// DryRun validates candidate and always throws on failure -- the shape the
// mutation-interception layer needs: either the prospective mutation is
// acceptable, or it is rejected with a descriptive error and the live
// value is left untouched.
func (g *Gate) DryRun(candidate any) error {
	_, err := g.Validate(candidate, ValidateOptions{ThrowOnInvalid: true})

	return err
}

// canonicalize re-marshals schema bytes through encoding/json so that
// whitespace-only differences in the source document do not change the
// computed schemaSum.
func canonicalize(schemaBytes []byte) []byte {
	var v any
	if err := json.Unmarshal(schemaBytes, &v); err != nil {
		return schemaBytes
	}

	out, err := json.Marshal(v)
	if err != nil {
		return schemaBytes
	}

	return out
}
