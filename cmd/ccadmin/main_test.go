package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"github.com/yigit/coursecred/internal/pkg/auth"
)

const testConfig = `
server:
  storage_path: %s
database:
  driver: memory
jwt:
  secret: cli-secret
  issuer: coursecred-cli
certificates:
  seal_secret: cli-seal
catalog:
  file: %s
logging:
  level: error
`

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := strings.Replace(testConfig, "%s", filepath.Join(dir, "storage"), 1)
	content = strings.Replace(content, "%s", filepath.Join(dir, "catalog.yaml"), 1)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"ccadmin"}, args...))
	return out.String(), err
}

func TestToken(t *testing.T) {
	t.Setenv("DOTENV_PATH", filepath.Join(t.TempDir(), "none.env"))
	path := writeConfig(t)

	out, err := run(t, "--config", path, "token", "--user", "42", "--admin")
	require.NoError(t, err)

	claims, err := auth.NewJWTService(auth.JWTConfig{SecretKey: "cli-secret", AccessTokenExp: time.Hour}).
		ValidateAndExtractClaims(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.True(t, claims.IsAdmin)
}

func TestToken_RejectsInvalidUser(t *testing.T) {
	t.Setenv("DOTENV_PATH", filepath.Join(t.TempDir(), "none.env"))
	path := writeConfig(t)

	_, err := run(t, "--config", path, "token", "--user", "0")
	assert.ErrorContains(t, err, "--user")
}

func TestDatabaseCommandsNeedPostgres(t *testing.T) {
	t.Setenv("DOTENV_PATH", filepath.Join(t.TempDir(), "none.env"))
	path := writeConfig(t)

	for _, cmd := range []string{"migrate", "recalculate-progress", "backfill-certificates"} {
		_, err := run(t, "--config", path, cmd)
		assert.ErrorContains(t, err, "postgres driver", cmd)
	}
}
