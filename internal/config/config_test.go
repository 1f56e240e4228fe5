package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Verification.QuorumThreshold)
	assert.Equal(t, 15*time.Minute, cfg.Dialogue.IdleTimeout)
	assert.Equal(t, float64(150), cfg.Verification.DuplicateRadiusMeters)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server": {"port": 9090},
		"verification": {"quorum_threshold": 5}
	}`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Verification.QuorumThreshold)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "7001")
	t.Setenv("VERIFICATION_QUORUM_THRESHOLD", "4")
	t.Setenv("DIALOGUE_IDLE_TIMEOUT", "5m")
	t.Setenv("JWT_SECRET", "sekrit")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 7001, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Verification.QuorumThreshold)
	assert.Equal(t, 5*time.Minute, cfg.Dialogue.IdleTimeout)
	assert.Equal(t, "sekrit", cfg.Security.JWTSecret)
}

func TestGetDatabaseURL(t *testing.T) {
	db := DatabaseConfig{
		Host: "localhost", Port: 5432, User: "amala", Password: "pw",
		DBName: "amala_portal", SSLMode: "disable",
	}
	assert.Equal(t,
		"postgres://amala:pw@localhost:5432/amala_portal?sslmode=disable",
		db.GetDatabaseURL())
}
