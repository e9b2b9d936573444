package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelion/codelion/internal/output"
)

// testEnv sets up isolated config dir, viper, and buffered output for
// testing. It returns the config dir and the stdout buffer.
func testEnv(t *testing.T) (string, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()

	origFunc := configDirFunc
	configDirFunc = func() (string, error) { return dir, nil }
	t.Cleanup(func() { configDirFunc = origFunc })

	viper.Reset()
	viper.SetEnvPrefix("CODELION")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(dir)
	viper.Set("dashboard.demo", false)

	out := &bytes.Buffer{}
	ui = &output.UI{Out: out, ErrOut: &bytes.Buffer{}}

	t.Cleanup(func() {
		if dataStore != nil {
			_ = dataStore.Close()
			dataStore = nil
		}
	})

	return dir, out
}

func TestConfigInit_CreatesFile(t *testing.T) {
	dir, _ := testEnv(t)
	configForce = false

	require.NoError(t, configInitRun())

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "codelion configuration")
	assert.Contains(t, string(data), "max_concurrency: 4")
	assert.Contains(t, string(data), `model: "gemini-2.0-flash"`)
}

func TestConfigInit_DoesNotCopySecrets(t *testing.T) {
	dir, _ := testEnv(t)
	configForce = false
	viper.Set("gemini.api_key", "AIza-secret")

	require.NoError(t, configInitRun())
	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "AIza-secret")
}

func TestConfigInit_RefusesOverwrite(t *testing.T) {
	dir, _ := testEnv(t)

	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0o644))

	configForce = false
	err := configInitRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestConfigInit_ForceOverwrite(t *testing.T) {
	dir, _ := testEnv(t)

	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0o644))

	configForce = true
	t.Cleanup(func() { configForce = false })
	require.NoError(t, configInitRun())

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "codelion configuration")
}

func TestConfigShow(t *testing.T) {
	_, out := testEnv(t)
	viper.Set("github.token", "ghp_abcdefgh1234")

	require.NoError(t, configShowRun())
	text := out.String()
	assert.Contains(t, text, "Config file: (none)")
	assert.Contains(t, text, "review.max_concurrency")
	assert.Contains(t, text, "****1234")
	assert.NotContains(t, text, "ghp_abcdefgh1234")
}

func TestConfigShow_EnvSource(t *testing.T) {
	_, out := testEnv(t)
	t.Setenv("CODELION_LOG_LEVEL", "debug")

	require.NoError(t, configShowRun())
	assert.Contains(t, out.String(), "(env: CODELION_LOG_LEVEL)")
	assert.Equal(t, "debug", viper.GetString("log.level"))
}

func TestConfigEdit_NoEditor(t *testing.T) {
	testEnv(t)
	t.Setenv("EDITOR", "")
	t.Setenv("VISUAL", "")

	err := configEditRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "$EDITOR is not set")
}

func TestConfigEdit_NoConfigFile(t *testing.T) {
	testEnv(t)
	t.Setenv("EDITOR", "echo")

	err := configEditRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestEnvVar(t *testing.T) {
	assert.Equal(t, "CODELION_GEMINI_API_KEY", envVar("gemini.api_key"))
	assert.Equal(t, "CODELION_PORT", envVar("port"))
}

func TestMaskValue(t *testing.T) {
	assert.Equal(t, "", maskValue(""))
	assert.Equal(t, "****", maskValue("abc"))
	assert.Equal(t, "****6789", maskValue("123456789"))
	assert.True(t, isSecret("github.webhook_secret"))
	assert.False(t, isSecret("gemini.model"))
}

func TestDetectSource(t *testing.T) {
	fileValues := map[string]bool{"key_a": true}

	t.Setenv("CODELION_TEST_KEY", "val")
	assert.Contains(t, detectSource("test_key", "CODELION_TEST_KEY", fileValues), "env")
	assert.Contains(t, detectSource("key_a", "CODELION_KEY_A_NONEXISTENT", fileValues), "file")
	assert.Contains(t, detectSource("key_b", "CODELION_KEY_B_NONEXISTENT", fileValues), "default")
}

func TestFlattenKeys(t *testing.T) {
	input := map[string]any{
		"top": "val",
		"nested": map[string]any{
			"a": "1",
			"b": "2",
		},
	}

	result := make(map[string]bool)
	flattenKeys("", input, result)

	assert.True(t, result["top"])
	assert.True(t, result["nested.a"])
	assert.True(t, result["nested.b"])
	assert.False(t, result["nested"])
}
