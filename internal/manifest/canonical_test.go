package manifest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsKeysAndIndents(t *testing.T) {
	m := map[string]any{"b": 1, "a": 2}
	out, err := MarshalCanonical(m)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 2,\n  \"b\": 1\n}\n", string(out))
}

func TestMarshalCanonical_Deterministic(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := Manifest{
		SchemaVersion: SchemaVersion,
		BundleID:      "bundle-1",
		Fingerprint:   "abc",
		CreatedAt:     now,
		UpdatedAt:     now,
		Inputs:        CanonicalInputs([]string{"owner/repo"}, nil, nil),
	}

	out1, err := MarshalCanonical(m)
	require.NoError(t, err)
	out2, err := MarshalCanonical(m)
	require.NoError(t, err)
	assert.Equal(t, out1, out2)
}

func TestManifestValidate(t *testing.T) {
	now := time.Now()
	valid := Manifest{SchemaVersion: 1, BundleID: "b", Fingerprint: "f", CreatedAt: now, UpdatedAt: now}
	assert.NoError(t, valid.Validate())

	missingField := Manifest{CreatedAt: now, UpdatedAt: now}
	assert.Error(t, missingField.Validate())

	badOrdering := Manifest{SchemaVersion: 1, BundleID: "b", Fingerprint: "f", CreatedAt: now, UpdatedAt: now.Add(-time.Hour)}
	assert.Error(t, badOrdering.Validate())
}
