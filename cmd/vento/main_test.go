package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/vento/internal/account"
	"github.com/mesh-intelligence/vento/pkg/types"
)

// run executes the root command with args after resetting flag state left
// by earlier runs.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	flagConfigDir, flagDataDir, flagBackend, flagLogLevel = "", "", "", ""
	flagAddr, flagBackupDest, flagRestoreSrc = "", "", ""
	flagJSON, flagSkipAdmin, flagOverwrite = false, false, false
	flagAdminUsername, flagAdminPassword = account.DefaultAdminUsername, account.DefaultAdminPassword

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

type workspace struct {
	configDir string
	dataDir   string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	root := t.TempDir()
	return workspace{configDir: filepath.Join(root, "config"), dataDir: filepath.Join(root, "data")}
}

func (w workspace) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	base := []string{"--config-dir", w.configDir, "--data-dir", w.dataDir, "--log-level", "error"}
	return run(t, append(base, args...)...)
}

func TestLoadConfigWritesDefault(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vento")
	v, err := loadConfig(dir)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, configFileExt))
	require.NoError(t, err)

	s := readSettings(v)
	assert.Equal(t, types.BackendTextFile, s.store.Backend)
	assert.Equal(t, ":3000", s.listenAddr)
	assert.Equal(t, "info", s.logLevel)
	assert.Equal(t, 168*time.Hour, s.sessionTTL)
	assert.Equal(t, types.DefaultMongoDatabase, s.store.MongoDatabase)
	assert.Equal(t, uint64(10), s.store.MongoMaxPoolSize)
	assert.Equal(t, 30*time.Second, s.store.MongoTimeout)
	assert.False(t, s.cookieSecure)
}

func TestLoadConfigSources(t *testing.T) {
	dir := t.TempDir()
	yaml := "backend: sqlite\ndata_dir: /srv/vento\nsession_ttl: 2h\ns3_region: eu-west-1\ns3_path_style: true\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileExt), []byte(yaml), 0o644))

	t.Setenv("VENTO_JWT_SECRET", "from-env")
	t.Setenv("VENTO_LOG_LEVEL", "debug")
	t.Setenv("VENTO_DATA_DIR", "/ignored")

	v, err := loadConfig(dir)
	require.NoError(t, err)
	s := readSettings(v)
	assert.Equal(t, types.BackendSQLite, s.store.Backend)
	assert.Equal(t, 2*time.Hour, s.sessionTTL)
	assert.Equal(t, "from-env", s.jwtSecret)
	assert.Equal(t, "debug", s.logLevel)
	assert.Equal(t, "eu-west-1", s.s3.Region)
	assert.True(t, s.s3.PathStyle)
	assert.Equal(t, "/srv/vento", v.GetString(cfgKeyDataDir))

	t.Setenv("VENTO_BACKEND", "postgres")
	v, err = loadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, types.BackendPostgres, readSettings(v).store.Backend)
}

func TestLoadConfigMalformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileExt), []byte("backend: [unclosed"), 0o644))
	_, err := loadConfig(dir)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level   string
		format  string
		wantErr bool
	}{
		{level: "info", format: "json"},
		{level: "debug", format: "console"},
		{level: "loud", format: "json", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			l, err := newLogger(tt.level, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "vento dev\n", out)
}

func TestInitAndUsers(t *testing.T) {
	w := newWorkspace(t)

	out, err := w.run(t, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "VENTO initialized successfully")
	assert.Contains(t, out, "created VentoAdmin")
	_, err = os.Stat(filepath.Join(w.configDir, configFileExt))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(w.dataDir, "accounts.txt"))
	require.NoError(t, err)

	out, err = w.run(t, "init")
	require.NoError(t, err)
	assert.NotContains(t, out, "created")

	out, err = w.run(t, "create-admin", "--username", "root", "--password", "toor")
	require.NoError(t, err)
	assert.Equal(t, "Administrator root created\n", out)

	_, err = w.run(t, "create-admin", "--username", "ROOT", "--password", "toor")
	var ue userError
	require.ErrorAs(t, err, &ue)
	assert.ErrorIs(t, err, types.ErrUsernameTaken)

	out, err = w.run(t, "users", "list", "--json")
	require.NoError(t, err)
	var users []account.UserInfo
	require.NoError(t, json.Unmarshal([]byte(out), &users))
	require.Len(t, users, 2)
	assert.Equal(t, "VentoAdmin", users[0].Username)
	assert.True(t, users[1].IsAdmin)

	out, err = w.run(t, "users", "list")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "USERNAME"))
	assert.Contains(t, out, "root")

	out, err = w.run(t, "users", "delete", "root")
	require.NoError(t, err)
	assert.Equal(t, "User root deleted\n", out)

	_, err = w.run(t, "users", "delete", "root")
	require.ErrorAs(t, err, &ue)
	assert.ErrorIs(t, err, types.ErrUserNotFound)
}

func TestUnknownBackend(t *testing.T) {
	w := newWorkspace(t)
	_, err := w.run(t, "--backend", "redis", "users", "list")
	var ue userError
	require.ErrorAs(t, err, &ue)
	assert.ErrorIs(t, err, types.ErrBackendUnknown)
}

func TestBackupRestoreMigratesBackend(t *testing.T) {
	w := newWorkspace(t)
	_, err := w.run(t, "init")
	require.NoError(t, err)
	_, err = w.run(t, "create-admin", "--username", "root", "--password", "toor")
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "backups")
	out, err := w.run(t, "backup", "--dest", dest)
	require.NoError(t, err)
	assert.Contains(t, out, "Backed up 2 users and 0 products")

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	src := filepath.Join(dest, entries[0].Name())

	out, err = w.run(t, "--backend", "sqlite", "restore", "--src", src)
	require.NoError(t, err)
	assert.Contains(t, out, "Restored into sqlite: users 2 added")
	_, err = os.Stat(filepath.Join(w.dataDir, types.DefaultSQLiteFileName))
	require.NoError(t, err)

	out, err = w.run(t, "--backend", "sqlite", "restore", "--src", src)
	require.NoError(t, err)
	assert.Contains(t, out, "users 0 added, 0 updated, 2 skipped")

	out, err = w.run(t, "--backend", "sqlite", "restore", "--src", src, "--overwrite")
	require.NoError(t, err)
	assert.Contains(t, out, "users 0 added, 2 updated, 0 skipped")

	_, err = w.run(t, "restore", "--src", filepath.Join(dest, "missing.json"))
	var ue userError
	assert.ErrorAs(t, err, &ue)
}

func TestDiagnose(t *testing.T) {
	w := newWorkspace(t)

	out, err := w.run(t, "diagnose")
	assert.ErrorIs(t, err, errDiagnoseFailed)
	assert.Contains(t, out, "[FAIL] jwt secret")
	assert.Contains(t, out, "[ok  ] backend")

	t.Setenv("VENTO_JWT_SECRET", "a-real-secret")
	out, err = w.run(t, "diagnose")
	require.NoError(t, err)
	assert.Contains(t, out, "[ok  ] jwt secret")
}
