package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zodiac/roles/pkg/conditions"
	"zodiac/roles/pkg/runtime"
)

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"perm_gen", "-roles", "3", "-targets", "2", "-seed", "42", "-output", "out.json"})
	require.NoError(t, err)
	assert.Equal(t, options{roles: 3, targets: 2, seed: 42, output: "out.json"}, opts)

	opts, err = parseFlags([]string{"perm_gen"})
	require.NoError(t, err)
	assert.Equal(t, 10, opts.roles)
	assert.Equal(t, 5, opts.targets)
	assert.NotZero(t, opts.seed)
	assert.Equal(t, "permissions.json", opts.output)

	_, err = parseFlags([]string{"perm_gen", "-roles", "0"})
	assert.Error(t, err)
}

func TestGenerateDesired(t *testing.T) {
	for _, seed := range []uint64{1, 2, 3, 17, 99, 12345} {
		desired, err := generateDesired(gofakeit.New(seed), 8, 4)
		require.NoError(t, err, "seed %d", seed)
		require.Len(t, desired.Roles, 8)

		for _, role := range desired.Roles {
			assert.LessOrEqual(t, len(role.Key), 32)
			assert.NotEmpty(t, role.Members)
			require.Len(t, role.PermissionSets, 1)
			for _, p := range role.PermissionSets[0].Permissions {
				if p.Condition != nil {
					assert.NoError(t, conditions.Validate(*p.Condition))
				}
			}
		}

		state, err := desired.Project()
		require.NoError(t, err, "seed %d", seed)
		assert.Len(t, state.Roles, 8)
		assert.Len(t, state.Allowances, len(desired.Allowances))
	}
}

func TestGenerateDesiredDeterministic(t *testing.T) {
	a, err := generateDesired(gofakeit.New(7), 5, 3)
	require.NoError(t, err)
	b, err := generateDesired(gofakeit.New(7), 5, 3)
	require.NoError(t, err)

	first, err := json.Marshal(a)
	require.NoError(t, err)
	second, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(second))
}

func TestWriteDesiredToFile(t *testing.T) {
	desired, err := generateDesired(gofakeit.New(5), 3, 3)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "permissions.json")
	require.NoError(t, writeDesiredToFile(desired, path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded runtime.Desired
	require.NoError(t, json.Unmarshal(content, &decoded))

	want, err := desired.Project()
	require.NoError(t, err)
	got, err := decoded.Project()
	require.NoError(t, err)

	wantJSON, _ := json.Marshal(want)
	gotJSON, _ := json.Marshal(got)
	assert.JSONEq(t, string(wantJSON), string(gotJSON))
}
