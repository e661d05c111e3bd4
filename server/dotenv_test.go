// ABOUTME: Tests for the .env file loader.
// ABOUTME: Verifies parsing of KEY=VALUE pairs, comments, quotes, and no-override behavior.
package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetForTest unsets an env var and registers cleanup to unset it again after the test.
func unsetForTest(t *testing.T, key string) {
	t.Helper()
	_ = os.Unsetenv(key)
	t.Cleanup(func() { _ = os.Unsetenv(key) })
}

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDotEnvBasic(t *testing.T) {
	path := writeEnvFile(t, "# comment\n\nTEST_TOPO_BASIC=hello\nexport TEST_TOPO_EXPORTED=yes\nnot a pair\n")
	unsetForTest(t, "TEST_TOPO_BASIC")
	unsetForTest(t, "TEST_TOPO_EXPORTED")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "hello", os.Getenv("TEST_TOPO_BASIC"))
	assert.Equal(t, "yes", os.Getenv("TEST_TOPO_EXPORTED"))
}

func TestLoadDotEnvDoesNotOverrideExisting(t *testing.T) {
	path := writeEnvFile(t, "TEST_TOPO_EXISTING=fromfile\n")
	t.Setenv("TEST_TOPO_EXISTING", "fromenv")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "fromenv", os.Getenv("TEST_TOPO_EXISTING"))
}

func TestLoadDotEnvQuotedValues(t *testing.T) {
	path := writeEnvFile(t, "TEST_TOPO_DOUBLE=\"double quoted\"\nTEST_TOPO_SINGLE='single quoted'\nTEST_TOPO_EQ=a=b\n")
	unsetForTest(t, "TEST_TOPO_DOUBLE")
	unsetForTest(t, "TEST_TOPO_SINGLE")
	unsetForTest(t, "TEST_TOPO_EQ")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "double quoted", os.Getenv("TEST_TOPO_DOUBLE"))
	assert.Equal(t, "single quoted", os.Getenv("TEST_TOPO_SINGLE"))
	assert.Equal(t, "a=b", os.Getenv("TEST_TOPO_EQ"))
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")))
}
