// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package keystore

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	ks, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, ks.Set("groq", "gsk-test-123"))

	key, err := ks.Get("groq")
	require.NoError(t, err)
	assert.Equal(t, "gsk-test-123", key)
}

func TestGetMissingKey(t *testing.T) {
	ks, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = ks.Get("openai")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestProviderNameNormalized(t *testing.T) {
	ks, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, ks.Set("  OpenAI ", "sk-abc"))

	key, err := ks.Get("openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-abc", key)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	ks, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, ks.Set("anthropic", "sk-ant-xyz"))

	reopened, err := Open(dir)
	require.NoError(t, err)

	key, err := reopened.Get("anthropic")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-xyz", key)
}

func TestKeyFileIsNotPlaintext(t *testing.T) {
	dir := t.TempDir()

	ks, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, ks.Set("groq", "gsk-super-secret"))

	data, err := os.ReadFile(filepath.Join(dir, keysFile))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "gsk-super-secret")
	assert.NotContains(t, string(data), "groq")
}

func TestFilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file mode semantics differ on windows")
	}

	dir := t.TempDir()
	ks, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, ks.Set("groq", "gsk-abc"))

	for _, name := range []string{keysFile, masterFile} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), name)
	}
}

func TestDelete(t *testing.T) {
	ks, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, ks.Set("groq", "gsk-abc"))
	require.NoError(t, ks.Delete("groq"))

	_, err = ks.Get("groq")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	// Deleting a missing key is a no-op.
	require.NoError(t, ks.Delete("groq"))
}

func TestProvidersSorted(t *testing.T) {
	ks, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, ks.Set("openai", "a"))
	require.NoError(t, ks.Set("groq", "b"))
	require.NoError(t, ks.Set("anthropic", "c"))

	assert.Equal(t, []string{"anthropic", "groq", "openai"}, ks.Providers())
}

func TestPassphraseRoundTrip(t *testing.T) {
	dir := t.TempDir()

	ks, err := OpenWithPassphrase(dir, "correct horse")
	require.NoError(t, err)
	require.NoError(t, ks.Set("groq", "gsk-pw"))

	reopened, err := OpenWithPassphrase(dir, "correct horse")
	require.NoError(t, err)

	key, err := reopened.Get("groq")
	require.NoError(t, err)
	assert.Equal(t, "gsk-pw", key)
}

func TestWrongPassphraseFails(t *testing.T) {
	dir := t.TempDir()

	ks, err := OpenWithPassphrase(dir, "correct horse")
	require.NoError(t, err)
	require.NoError(t, ks.Set("groq", "gsk-pw"))

	_, err = OpenWithPassphrase(dir, "battery staple")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestOpenRejectsPassphraseStore(t *testing.T) {
	dir := t.TempDir()

	_, err := OpenWithPassphrase(dir, "correct horse")
	require.NoError(t, err)

	_, err = Open(dir)
	assert.ErrorIs(t, err, ErrPassphraseRequired)
}

func TestCorruptKeyFile(t *testing.T) {
	dir := t.TempDir()

	ks, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, ks.Set("groq", "gsk-abc"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, keysFile), []byte("junk"), 0600))

	_, err = Open(dir)
	assert.Error(t, err)
}
