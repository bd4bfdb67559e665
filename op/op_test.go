package op_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/replicantd/core/op"
)

func TestEscapeUnescapeKey(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		raw      string
		escaped  string
	}{
		"no slash":    {raw: "name", escaped: "name"},
		"one slash":   {raw: "a/b", escaped: "a~1b"},
		"many slash":  {raw: "a/b/c", escaped: "a~1b~1c"},
		"empty":       {raw: "", escaped: ""},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.escaped, op.EscapeKey(tc.raw))
			assert.Equal(t, tc.raw, op.UnescapeKey(tc.escaped))
		})
	}
}

func TestJoinSplitPath(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		keys []string
		path string
	}{
		"root":        {keys: nil, path: "/"},
		"single":      {keys: []string{"a"}, path: "/a"},
		"nested":      {keys: []string{"a", "b"}, path: "/a/b"},
		"escaped key": {keys: []string{"a/b"}, path: "/a~1b"},
		"index":       {keys: []string{"xs", "1"}, path: "/xs/1"},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := op.JoinPath(tc.keys...)
			assert.Equal(t, tc.path, got)

			if tc.path == "/" {
				assert.Empty(t, op.SplitPath(tc.path))

				return
			}

			assert.Equal(t, tc.keys, op.SplitPath(got))
		})
	}
}

func TestIsArrayMutator(t *testing.T) {
	t.Parallel()

	assert.True(t, op.IsArrayMutator(op.Push))
	assert.True(t, op.IsArrayMutator(op.Splice))
	assert.False(t, op.IsArrayMutator(op.Update))
	assert.False(t, op.IsArrayMutator(op.Overwrite))
}
