package script_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/rbmap/pkg/script"
)

func TestParseYAML(t *testing.T) {
	t.Parallel()

	parsed, err := script.Parse([]byte(`
name: rotations
ops:
  - {op: insert, value: 10}
  - {op: insert, value: 20}
  - {op: find, value: 10}
  - {op: erase, value: 20}
  - {op: clear}
`), true)
	require.NoError(t, err)

	assert.Equal(t, "rotations", parsed.Name)
	assert.Equal(t, []script.Step{
		{Op: script.OpInsert, Value: 10},
		{Op: script.OpInsert, Value: 20},
		{Op: script.OpFind, Value: 10},
		{Op: script.OpErase, Value: 20},
		{Op: script.OpClear},
	}, parsed.Ops)
}

func TestParseJSON(t *testing.T) {
	t.Parallel()

	parsed, err := script.Parse([]byte(`{"ops": [{"op": "insert", "value": -3}]}`), true)
	require.NoError(t, err)
	require.Len(t, parsed.Ops, 1)
	assert.Equal(t, -3, parsed.Ops[0].Value)
}

func TestParseStrictRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{"no_ops", `name: nothing`},
		{"unknown_op", `ops: [{op: upsert, value: 1}]`},
		{"missing_value", `ops: [{op: insert}]`},
		{"fractional_value", `ops: [{op: insert, value: 1.5}]`},
		{"extra_field", `ops: [{op: clear, when: now}]`},
		{"not_an_object", `[1, 2, 3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := script.Parse([]byte(tt.doc), true)
			require.ErrorIs(t, err, script.ErrInvalidScript)
		})
	}
}

func TestParseLenient(t *testing.T) {
	t.Parallel()

	parsed, err := script.Parse([]byte(`ops: [{op: insert}, {op: clear, when: now}]`), false)
	require.NoError(t, err)
	assert.Equal(t, 0, parsed.Ops[0].Value)

	_, err = script.Parse([]byte(`ops: [{op: upsert, value: 1}]`), false)
	require.ErrorIs(t, err, script.ErrInvalidScript)
	require.ErrorIs(t, err, script.ErrUnknownOp)
}

func TestParseEmpty(t *testing.T) {
	t.Parallel()

	_, err := script.Parse(nil, false)
	require.ErrorIs(t, err, script.ErrInvalidScript)

	_, err = script.Parse([]byte("ops: [\n"), false)
	require.ErrorIs(t, err, script.ErrInvalidScript)
}

func TestParseFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ops.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ops:\n  - {op: insert, value: 1}\n"), 0o600))

	parsed, err := script.ParseFile(path, true)
	require.NoError(t, err)
	assert.Equal(t, path, parsed.Name)

	_, err = script.ParseFile(filepath.Join(t.TempDir(), "absent.yaml"), true)
	require.Error(t, err)
}

func TestStepString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "insert 5", script.Step{Op: script.OpInsert, Value: 5}.String())
	assert.Equal(t, "clear", script.Step{Op: script.OpClear}.String())
}
