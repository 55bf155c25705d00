package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "library.db", cfg.DBPath)
	assert.Equal(t, bcrypt.DefaultCost, cfg.BcryptCost)
	assert.Equal(t, "defaultpassword", cfg.DefaultMemberPassword)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.JWTSecret)
	assert.Error(t, cfg.ValidateServe())
}

func TestLoadEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LIBRARY_JWT_SECRET", "from-env")
	t.Setenv("LIBRARY_DB_PATH", "/tmp/env.db")
	t.Setenv("LIBRARY_SHUTDOWN_TIMEOUT", "3s")

	cfg, err := Load(newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.JWTSecret)
	assert.Equal(t, "/tmp/env.db", cfg.DBPath)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.NoError(t, cfg.ValidateServe())
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LIBRARY_ADDR", ":9000")

	cfg, err := Load(newFlags(t, "--addr", ":7000", "--bcrypt-cost", "4"))
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, 4, cfg.BcryptCost)
}

func TestLoadRejectsInvalid(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := Load(newFlags(t, "--bcrypt-cost", "99"))
	assert.Error(t, err)

	_, err = Load(newFlags(t, "--log-format", "xml"))
	assert.Error(t, err)
}
