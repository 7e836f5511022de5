package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"objectstorage/internal/storage"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Loader{}.Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 4*1024*1024, cfg.ChunkSize)
	assert.Equal(t, 30*time.Second, cfg.FlushTimeout)
	assert.Equal(t, storage.BackendMemory, cfg.Storage().Backend)
}

func TestLayering(t *testing.T) {
	yamlFile := writeFile(t, "config.yaml", `
chunkSize: 1048576
flushTimeout: 5s
log:
  level: debug
keyStore:
  backend: badger
  path: /var/lib/objectstorage
systemKey: device
`)
	envFile := writeFile(t, ".env", "OBJECTSTORAGE_LOG_FORMAT=json\nOBJECTSTORAGE_FLUSH_TIMEOUT=10s\n")

	cfg, err := Loader{
		ConfigFile: yamlFile,
		EnvFile:    envFile,
		LookupEnv:  env(map[string]string{"OBJECTSTORAGE_FLUSH_TIMEOUT": "2s"}),
	}.Load()
	require.NoError(t, err)

	assert.Equal(t, 1<<20, cfg.ChunkSize)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	// process environment beats the env file
	assert.Equal(t, 2*time.Second, cfg.FlushTimeout)
	assert.Equal(t, "device", cfg.SystemKey)
	assert.Equal(t, storage.Config{Backend: "badger", Path: "/var/lib/objectstorage", KeyPrefix: "keys/"}, cfg.Storage())
}

func TestEnvOverrides(t *testing.T) {
	cfg, err := Loader{LookupEnv: env(map[string]string{
		"OBJECTSTORAGE_CHUNK_SIZE":       "65536",
		"OBJECTSTORAGE_SECTOR_ALIGNMENT": "4096",
		"OBJECTSTORAGE_SPACE_CHECK":      "false",
		"OBJECTSTORAGE_KEYSTORE_BACKEND": "s3",
		"OBJECTSTORAGE_KEYSTORE_REGION":  "eu-west-1",
		"AWS_BUCKET_NAME":                "vault",
	})}.Load()
	require.NoError(t, err)
	assert.Equal(t, 65536, cfg.ChunkSize)
	assert.Equal(t, 4096, cfg.SectorAlignment)
	assert.False(t, cfg.SpaceCheck)
	assert.Equal(t, "vault", cfg.KeyStore.Bucket)
	assert.Equal(t, "eu-west-1", cfg.Storage().Region)
}

func TestMissingEnvFileIgnored(t *testing.T) {
	_, err := Loader{EnvFile: filepath.Join(t.TempDir(), ".env")}.Load()
	assert.NoError(t, err)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := Loader{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml")}.Load()
	assert.Error(t, err)
}

func TestInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{name: "unknown field", yaml: "chunkSize: 4096\nbogus: 1\n"},
		{name: "chunk too small", env: map[string]string{"OBJECTSTORAGE_CHUNK_SIZE": "100"}},
		{name: "chunk not a number", env: map[string]string{"OBJECTSTORAGE_CHUNK_SIZE": "big"}},
		{name: "alignment not power of two", env: map[string]string{"OBJECTSTORAGE_SECTOR_ALIGNMENT": "3000"}},
		{name: "bad timeout", env: map[string]string{"OBJECTSTORAGE_FLUSH_TIMEOUT": "soon"}},
		{name: "zero timeout", env: map[string]string{"OBJECTSTORAGE_FLUSH_TIMEOUT": "0s"}},
		{name: "bad level", env: map[string]string{"OBJECTSTORAGE_LOG_LEVEL": "loud"}},
		{name: "bad format", env: map[string]string{"OBJECTSTORAGE_LOG_FORMAT": "xml"}},
		{name: "bad system key", env: map[string]string{"OBJECTSTORAGE_SYSTEM_KEY": "hsm"}},
		{name: "bad space check", env: map[string]string{"OBJECTSTORAGE_SPACE_CHECK": "maybe"}},
		{name: "badger without path", env: map[string]string{"OBJECTSTORAGE_KEYSTORE_BACKEND": "badger"}},
		{name: "unknown backend", env: map[string]string{"OBJECTSTORAGE_KEYSTORE_BACKEND": "etcd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := Loader{LookupEnv: env(tt.env)}
			if tt.yaml != "" {
				l.ConfigFile = writeFile(t, "config.yaml", tt.yaml)
			}
			_, err := l.Load()
			assert.True(t, errors.Is(errors.Invalid, err), "got %v", err)
		})
	}
}
