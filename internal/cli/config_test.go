package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nestmap.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// clearEnv unsets the settings variables for one test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvDSN, EnvDatabaseURL, EnvDriver, EnvSchema} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
driver = "pgx"
dsn = "postgres://localhost/shop"
schema = "schema/shop.yaml"
log_statements = true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, &Config{
		Driver:        "pgx",
		DSN:           "postgres://localhost/shop",
		Schema:        "schema/shop.yaml",
		LogStatements: true,
	}, cfg)
}

func TestLoadConfigUnknownKey(t *testing.T) {
	path := writeConfig(t, `dns = "typo"`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown key "dns"`)
}

func TestLoadConfigMalformed(t *testing.T) {
	path := writeConfig(t, `driver = `)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestResolveDefaults(t *testing.T) {
	clearEnv(t)
	opts := &RootOptions{ConfigPath: writeConfig(t, "")}

	s, err := opts.Resolve()
	require.NoError(t, err)
	assert.Equal(t, Settings{Driver: DefaultDriver}, s)
}

func TestResolveFlagsOverrideConfig(t *testing.T) {
	clearEnv(t)
	opts := &RootOptions{
		ConfigPath: writeConfig(t, `
driver = "mysql"
dsn = "user@tcp(localhost)/shop"
schema = "shop.yaml"
`),
		DSN: "shop.db",
	}
	opts.Driver = "sqlite3"

	s, err := opts.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", s.Driver)
	assert.Equal(t, "shop.db", s.DSN)
	assert.Equal(t, "shop.yaml", s.Schema)
}

func TestResolveEnvFillsMissing(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDatabaseURL, "postgres://env/shop")
	t.Setenv(EnvDriver, "pgx")
	t.Setenv(EnvSchema, "env.yaml")

	opts := &RootOptions{ConfigPath: writeConfig(t, `schema = "config.yaml"`)}
	s, err := opts.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "pgx", s.Driver)
	assert.Equal(t, "postgres://env/shop", s.DSN)
	assert.Equal(t, "config.yaml", s.Schema, "config wins over environment")

	t.Setenv(EnvDSN, "nestmap.db")
	s, err = opts.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "nestmap.db", s.DSN, "NESTMAP_DSN wins over DATABASE_URL")
}

func TestResolveMissingExplicitConfig(t *testing.T) {
	opts := &RootOptions{ConfigPath: filepath.Join(t.TempDir(), "missing.toml")}

	_, err := opts.Resolve()
	require.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("NESTMAP_DSN=from-dotenv.db\n"), 0644))
	chdir(t, dir)
	clearEnv(t)
	require.NoError(t, os.Unsetenv(EnvDSN))

	require.NoError(t, loadDotEnv())
	assert.Equal(t, "from-dotenv.db", os.Getenv(EnvDSN))
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	chdir(t, t.TempDir())
	assert.NoError(t, loadDotEnv())
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { require.NoError(t, os.Chdir(prev)) })
}
