package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, BackendPostgres, cfg.MessageStore.Backend)
	require.Equal(t, 64, cfg.WebSocket.SendBuffer)
	require.Equal(t, time.Hour, cfg.Database.ConnMaxLifetime)
}

func TestLoadFileThenEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9000"
  shutdown_timeout: 3s
message_store:
  backend: memory
auth:
  jwt_secret: from-file
logging:
  level: debug
  format: pretty
`)
	t.Setenv("PORT", "9100")
	t.Setenv("AUTH_TRUST_USER_HEADER", "true")
	t.Setenv("WS_SEND_BUFFER", "8")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "9100", cfg.Server.Port)
	require.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	require.Equal(t, BackendMemory, cfg.MessageStore.Backend)
	require.Equal(t, "from-file", cfg.Auth.JWTSecret)
	require.True(t, cfg.Auth.TrustUserHeader)
	require.Equal(t, 8, cfg.WebSocket.SendBuffer)
	require.Equal(t, "pretty", cfg.Logging.Format)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]string{
		"unknown backend":    "auth:\n  jwt_secret: s\nmessage_store:\n  backend: redis\n",
		"mongo without uri":  "auth:\n  jwt_secret: s\nmessage_store:\n  backend: mongo\n",
		"no identity source": "auth:\n  jwt_secret: \"\"\n",
		"bad log format":     "auth:\n  jwt_secret: s\nlogging:\n  format: xml\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoadRejectsMalformedEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_MAX_OPEN_CONNS", "many")

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorContains(t, err, "load from environment")
	require.ErrorContains(t, err, "MaxOpenConns")
}

func TestLoadEnvLeavesUnsetFieldsAlone(t *testing.T) {
	path := writeConfig(t, `
database:
  max_idle_conns: 2
auth:
  jwt_secret: from-file
`)
	t.Setenv("DB_CONN_MAX_LIFETIME", "90s")
	t.Setenv("OPS_ROUTES", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, cfg.Database.MaxIdleConns)
	require.Equal(t, 20, cfg.Database.MaxOpenConns)
	require.Equal(t, 90*time.Second, cfg.Database.ConnMaxLifetime)
	require.Equal(t, "from-file", cfg.Auth.JWTSecret)
	require.True(t, cfg.Server.OpsRoutes)
}

func TestPathHonoursEnv(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/etc/studygroup/config.yaml")
	require.Equal(t, "/etc/studygroup/config.yaml", Path())
}
