package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/order-desk/models"
)

// sqliteEnv points the loader at a throwaway sqlite database
func sqliteEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "cli.db"))
	t.Setenv("DATABASE_URL_AUDIT", "")
	t.Setenv("JWT_SECRET", "cli-test-secret")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FORMAT", "console")
	t.Setenv("DEV_SEED_EMAIL", "cli@orderdesk.local")
	t.Setenv("DEV_SEED_PASSWORD", "cli-password")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	envFile = ""
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()

	names := make([]string, 0)
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "migrate", "seed", "audit"}, names)
}

func TestMigrateCmd(t *testing.T) {
	sqliteEnv(t)

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema ready")

	// Idempotent
	_, err = execute(t, "migrate")
	require.NoError(t, err)
}

func TestSeedCmd(t *testing.T) {
	t.Run("seeds once", func(t *testing.T) {
		sqliteEnv(t)

		out, err := execute(t, "seed")
		require.NoError(t, err)
		assert.Contains(t, out, "cli@orderdesk.local")
		assert.Contains(t, out, "created=true")

		out, err = execute(t, "seed")
		require.NoError(t, err)
		assert.Contains(t, out, "created=false, orders created=0")
	})

	t.Run("refuses production without force", func(t *testing.T) {
		sqliteEnv(t)
		t.Setenv("ENVIRONMENT", "production")
		t.Setenv("JWT_SECRET", strings.Repeat("s", 32))

		_, err := execute(t, "seed")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--force")
	})
}

func TestAuditCmd(t *testing.T) {
	sqliteEnv(t)

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	require.Contains(t, out, "schema ready")

	out, err = execute(t, "audit", "--limit", "5")
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(out))
}

func TestWriteJSONLines(t *testing.T) {
	actor := "user-1"
	logs := []*models.AuditLog{
		models.NewAuditLog(models.AuditActionOrderCreated, models.ResourceTypeOrder, "/api/orders").WithActor(&actor),
		models.NewAuditLog(models.AuditActionAccessDenied, models.ResourceTypeAPI, "/api/orders").WithReason(models.AuditReasonUnauthorized),
	}

	var buf bytes.Buffer
	require.NoError(t, writeJSONLines(&buf, logs))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first models.AuditLog
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, models.AuditActionOrderCreated, first.Action)
	require.NotNil(t, first.ActorID)
	assert.Equal(t, "user-1", *first.ActorID)
}
