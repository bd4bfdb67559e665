package replicant_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replicantd/core/op"
	"github.com/replicantd/core/proxy"
	"github.com/replicantd/core/replicant"
	"github.com/replicantd/core/schema"
)

func declared(t *testing.T, namespace, name string, initial any) *replicant.Replicant {
	t.Helper()

	r := replicant.New(namespace, name, true)
	require.NoError(t, r.MarkDeclared(initial, 0))

	return r
}

func TestValueAndUpdate(t *testing.T) {
	t.Parallel()

	r := declared(t, "dashboard", "score", map[string]any{"n": float64(0)})

	err := r.Update(func(v *replicant.View) error {
		return v.Set("n", float64(1))
	})
	require.NoError(t, err)

	got := r.Value().(map[string]any)
	assert.Equal(t, float64(1), got["n"])
}

func TestUpdateOnScalarRoot(t *testing.T) {
	t.Parallel()

	r := declared(t, "dashboard", "title", "hello")

	err := r.Update(func(v *replicant.View) error { return nil })
	require.ErrorIs(t, err, replicant.ErrNotComposite)
}

func TestSetValueOverwrite(t *testing.T) {
	t.Parallel()

	r := declared(t, "dashboard", "score", map[string]any{"n": float64(0)})

	require.NoError(t, r.SetValue(map[string]any{"n": float64(9)}))
	assert.Equal(t, map[string]any{"n": float64(9)}, r.Value())

	ops, _, _, ok := r.FlushPending()
	require.True(t, ok)
	require.Len(t, ops, 1)
	assert.Equal(t, op.Overwrite, ops[0].Method)
}

func TestExplicitPathAPI(t *testing.T) {
	t.Parallel()

	r := declared(t, "dashboard", "nested", map[string]any{
		"widgets": []any{map[string]any{"label": "a"}},
	})

	require.NoError(t, r.Set("/widgets/0/label", "b"))
	require.NoError(t, r.Delete("/widgets/0/label"))

	n, err := r.Mutate("/widgets", op.Push, map[string]any{"label": "c"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got := r.Value().(map[string]any)
	widgets := got["widgets"].([]any)
	require.Len(t, widgets, 2)
}

func TestSetRootPathRejected(t *testing.T) {
	t.Parallel()

	r := declared(t, "dashboard", "score", map[string]any{"n": float64(0)})

	err := r.Set("/", float64(1))
	require.ErrorIs(t, err, replicant.ErrRootPath)
}

func TestOnChangeFlushNotifiesListeners(t *testing.T) {
	t.Parallel()

	r := declared(t, "dashboard", "score", map[string]any{"n": float64(0)})

	var gotNew any

	calls := 0
	r.OnChange(func(newValue, oldValue any, ops []op.Operation) {
		calls++
		gotNew = newValue
	})

	// Registering against an already-declared replicant fires synchronously.
	require.Equal(t, 1, calls)

	require.NoError(t, r.Set("/n", float64(5)))

	ops, newValue, _, ok := r.FlushPending()
	require.True(t, ok)
	require.Len(t, ops, 1)

	r.NotifyChange(newValue, nil, ops)

	assert.Equal(t, 2, calls)
	assert.Equal(t, map[string]any{"n": float64(5)}, gotNew)
}

func TestFlushPendingReportsPreTurnOldValue(t *testing.T) {
	t.Parallel()

	r := declared(t, "dashboard", "score", map[string]any{"n": float64(0)})

	require.NoError(t, r.Set("/n", float64(1)))
	require.NoError(t, r.Set("/n", float64(2)))

	ops, newValue, oldValue, ok := r.FlushPending()
	require.True(t, ok)
	require.Len(t, ops, 2, "both updates land in the same turn, before any flush")

	assert.Equal(t, map[string]any{"n": float64(0)}, oldValue,
		"oldValue is the value at the start of the turn, not after the first update")
	assert.Equal(t, map[string]any{"n": float64(2)}, newValue)

	// A later turn's oldValue must not leak the previous turn's snapshot.
	require.NoError(t, r.Set("/n", float64(3)))

	_, newValue2, oldValue2, ok := r.FlushPending()
	require.True(t, ok)
	assert.Equal(t, map[string]any{"n": float64(2)}, oldValue2)
	assert.Equal(t, map[string]any{"n": float64(3)}, newValue2)
}

func TestOnceChangeFiresOnceAndDoesNotRearm(t *testing.T) {
	t.Parallel()

	r := declared(t, "dashboard", "score", map[string]any{"n": float64(0)})

	calls := 0
	r.OnceChange(func(newValue, oldValue any, ops []op.Operation) {
		calls++
	})

	// Already declared: fires immediately, and is never registered.
	require.Equal(t, 1, calls)

	require.NoError(t, r.Set("/n", float64(1)))

	ops, newValue, _, ok := r.FlushPending()
	require.True(t, ok)

	r.NotifyChange(newValue, nil, ops)

	assert.Equal(t, 1, calls, "one-shot listener satisfied at registration must not fire again on a later change")
}

func TestOnceChangeBeforeDeclaredFiresExactlyOnce(t *testing.T) {
	t.Parallel()

	r := replicant.New("dashboard", "score", true)

	calls := 0
	r.OnceChange(func(newValue, oldValue any, ops []op.Operation) {
		calls++
	})

	require.Equal(t, 0, calls)

	require.NoError(t, r.MarkDeclared(map[string]any{"n": float64(0)}, 0))
	require.NoError(t, r.Set("/n", float64(1)))

	ops, newValue, _, ok := r.FlushPending()
	require.True(t, ok)
	r.NotifyChange(newValue, nil, ops)
	assert.Equal(t, 1, calls)

	require.NoError(t, r.Set("/n", float64(2)))
	ops, newValue, _, ok = r.FlushPending()
	require.True(t, ok)
	r.NotifyChange(newValue, nil, ops)
	assert.Equal(t, 1, calls, "must not rearm after its single firing")
}

func TestCrossOwnership(t *testing.T) {
	t.Parallel()

	a := declared(t, "dashboard", "a", map[string]any{})
	b := declared(t, "dashboard", "b", map[string]any{})

	var shared any

	require.NoError(t, a.Update(func(v *replicant.View) error {
		if err := v.Set("x", map[string]any{"k": float64(1)}); err != nil {
			return err
		}

		child, ok := v.Get("x")
		if !ok {
			return errors.New("missing child x")
		}

		shared = child.(*replicant.View).Raw()

		return nil
	}))

	err := b.Update(func(v *replicant.View) error {
		return v.Set("y", shared)
	})

	var cross *proxy.CrossOwnershipError
	require.True(t, errors.As(err, &cross))
	assert.Equal(t, map[string]any{}, b.Value())
}

func TestSchemaValidationRejectsOverwrite(t *testing.T) {
	t.Parallel()

	r := replicant.New("dashboard", "score", true)
	require.NoError(t, r.CompileSchema([]byte(`{
		"type": "object",
		"properties": {"n": {"type": "number"}},
		"required": ["n"]
	}`)))
	require.NoError(t, r.MarkDeclared(map[string]any{"n": float64(0)}, 0))

	err := r.SetValue(map[string]any{"n": "not a number"})

	var verr *schema.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, map[string]any{"n": float64(0)}, r.Value())
}

func TestSchemaValidationRejectsNestedMutation(t *testing.T) {
	t.Parallel()

	r := replicant.New("dashboard", "score", true)
	require.NoError(t, r.CompileSchema([]byte(`{
		"type": "object",
		"properties": {"n": {"type": "number"}},
		"required": ["n"]
	}`)))
	require.NoError(t, r.MarkDeclared(map[string]any{"n": float64(0)}, 0))

	err := r.Set("/n", "nope")
	require.Error(t, err)
	assert.Equal(t, map[string]any{"n": float64(0)}, r.Value())
}

func TestEnqueueHookFiresOnFirstOpOfTurn(t *testing.T) {
	t.Parallel()

	r := declared(t, "dashboard", "score", map[string]any{"n": float64(0)})

	fired := 0
	r.SetEnqueueHook(func() { fired++ })

	require.NoError(t, r.Set("/n", float64(1)))
	require.NoError(t, r.Set("/n", float64(2)))

	assert.Equal(t, 1, fired, "hook fires once per turn, not once per operation")

	_, _, _, ok := r.FlushPending()
	require.True(t, ok)

	require.NoError(t, r.Set("/n", float64(3)))
	assert.Equal(t, 2, fired, "a fresh turn after a flush schedules again")
}

func TestBumpRevisionAndSetRevision(t *testing.T) {
	t.Parallel()

	r := declared(t, "dashboard", "score", map[string]any{"n": float64(0)})

	assert.Equal(t, uint64(1), r.BumpRevision())
	assert.Equal(t, uint64(2), r.BumpRevision())
	assert.Equal(t, uint64(2), r.Revision())

	r.SetRevision(9)
	assert.Equal(t, uint64(9), r.Revision())
}

func TestApplyRemoteReplaysOperationsAndInstallsRevision(t *testing.T) {
	t.Parallel()

	r := declared(t, "dashboard", "score", map[string]any{"n": float64(0)})

	oldValue, newValue, err := r.ApplyRemote([]op.Operation{
		{Path: "/", Method: op.Update, Args: op.Args{Prop: "n", NewValue: float64(5)}},
	}, 3)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"n": float64(0)}, oldValue)
	assert.Equal(t, map[string]any{"n": float64(5)}, newValue)
	assert.Equal(t, map[string]any{"n": float64(5)}, r.Value())
	assert.Equal(t, uint64(3), r.Revision())
}
