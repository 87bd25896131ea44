package security

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlocklistDefaultCategories(t *testing.T) {
	b, err := NewBlocklist(BlocklistConfig{})
	require.NoError(t, err)

	cases := map[string]string{
		"someone should take my exam for me":             "academic_fraud",
		"where can I buy a fake diploma":                 "forged_documents",
		"I will use a forged transcript":                 "forged_documents",
		"I am going to harass a teacher about my grades": "abuse",
	}
	for msg, category := range cases {
		v := b.Check(context.Background(), Request{Message: msg})
		assert.False(t, v.Allowed, msg)
		assert.Equal(t, category, v.Annotations["blocked_category"], msg)
	}

	v := b.Check(context.Background(), Request{Message: "I would like to check in and pay my fees"})
	assert.True(t, v.Allowed)
}

func TestBlocklistFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocklist.yaml")
	writeBlocklist(t, path, `
categories:
  custom:
    - '(?i)\bforbidden\s+phrase\b'
`)

	b, err := NewBlocklist(BlocklistConfig{Path: path})
	require.NoError(t, err)

	v := b.Check(context.Background(), Request{Message: "this has the Forbidden Phrase in it"})
	assert.False(t, v.Allowed)
	assert.Equal(t, "custom", v.Annotations["blocked_category"])

	// File categories replace the defaults entirely.
	v = b.Check(context.Background(), Request{Message: "where can I buy a fake diploma"})
	assert.True(t, v.Allowed)
}

func TestBlocklistReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocklist.yaml")
	writeBlocklist(t, path, `
categories:
  custom:
    - '\bold\b'
`)

	b, err := NewBlocklist(BlocklistConfig{Path: path})
	require.NoError(t, err)
	require.False(t, b.Check(context.Background(), Request{Message: "old pattern"}).Allowed)

	writeBlocklist(t, path, `
categories:
  custom:
    - '\bnew\b'
`)
	require.NoError(t, b.Reload())
	assert.True(t, b.Check(context.Background(), Request{Message: "old pattern"}).Allowed)
	assert.False(t, b.Check(context.Background(), Request{Message: "new pattern"}).Allowed)
}

func TestBlocklistReloadKeepsPatternsOnBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocklist.yaml")
	writeBlocklist(t, path, `
categories:
  custom:
    - '\bbad\b'
`)

	b, err := NewBlocklist(BlocklistConfig{Path: path})
	require.NoError(t, err)

	writeBlocklist(t, path, `
categories:
  custom:
    - '[unclosed'
`)
	require.Error(t, b.Reload())
	assert.False(t, b.Check(context.Background(), Request{Message: "bad content"}).Allowed)
}

func TestBlocklistInvalidPattern(t *testing.T) {
	_, err := NewBlocklist(BlocklistConfig{
		Categories: map[string][]string{"broken": {"[unclosed"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pattern")
}

func writeBlocklist(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
