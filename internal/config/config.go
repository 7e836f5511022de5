// objectstorage/internal/config/config.go
package config

import (
	goerrors "errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"objectstorage/internal/core/domain"
	"objectstorage/internal/encryption/chunking"
	"objectstorage/internal/keyvault"
	"objectstorage/internal/storage"
)

const envPrefix = "OBJECTSTORAGE_"

type Config struct {
	ChunkSize int `yaml:"chunkSize"`
	// SectorAlignment of 0 means probe the destination disk.
	SectorAlignment int            `yaml:"sectorAlignment"`
	FlushTimeout    time.Duration  `yaml:"flushTimeout"`
	Log             LogConfig      `yaml:"log"`
	KeyStore        KeyStoreConfig `yaml:"keyStore"`
	SystemKey       string         `yaml:"systemKey"`
	SpaceCheck      bool           `yaml:"spaceCheck"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type KeyStoreConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	Bucket  string `yaml:"bucket"`
	Prefix  string `yaml:"prefix"`
	Region  string `yaml:"region"`
}

func Default() Config {
	return Config{
		ChunkSize:    domain.ChunkSize,
		FlushTimeout: domain.FlushTimeout,
		Log:          LogConfig{Level: "info", Format: "text"},
		KeyStore:     KeyStoreConfig{Backend: storage.BackendMemory, Prefix: "keys/"},
		SystemKey:    keyvault.SystemKeyRandom,
		SpaceCheck:   true,
	}
}

// Loader layers configuration: defaults, then the YAML file, then the
// env file, then the process environment.
type Loader struct {
	ConfigFile string
	EnvFile    string
	LookupEnv  func(string) (string, bool)
}

// Load reads configuration from path and ".env" in the working directory.
// Either may be absent.
func Load(path string) (Config, error) {
	return Loader{ConfigFile: path, EnvFile: ".env", LookupEnv: os.LookupEnv}.Load()
}

func (l Loader) Load() (Config, error) {
	cfg := Default()
	if l.ConfigFile != "" {
		data, err := os.ReadFile(l.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
			return Config{}, errors.E(errors.Invalid, "failed to parse config file", l.ConfigFile, err)
		}
	}

	fileEnv := map[string]string{}
	if l.EnvFile != "" {
		m, err := godotenv.Read(l.EnvFile)
		switch {
		case err == nil:
			fileEnv = m
		case !goerrors.Is(err, os.ErrNotExist):
			return Config{}, errors.E(errors.Invalid, "failed to parse env file", l.EnvFile, err)
		}
	}
	lookup := func(key string) (string, bool) {
		if l.LookupEnv != nil {
			if v, ok := l.LookupEnv(key); ok {
				return v, true
			}
		}
		v, ok := fileEnv[key]
		return v, ok
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}
	integer := func(name string, dst *int) error {
		v, ok := lookup(envPrefix + name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.E(errors.Invalid, envPrefix+name, err)
		}
		*dst = n
		return nil
	}

	if err := integer("CHUNK_SIZE", &c.ChunkSize); err != nil {
		return err
	}
	if err := integer("SECTOR_ALIGNMENT", &c.SectorAlignment); err != nil {
		return err
	}
	if v, ok := lookup(envPrefix + "FLUSH_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.E(errors.Invalid, envPrefix+"FLUSH_TIMEOUT", err)
		}
		c.FlushTimeout = d
	}
	if v, ok := lookup(envPrefix + "SPACE_CHECK"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.E(errors.Invalid, envPrefix+"SPACE_CHECK", err)
		}
		c.SpaceCheck = b
	}
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("KEYSTORE_BACKEND", &c.KeyStore.Backend)
	str("KEYSTORE_PATH", &c.KeyStore.Path)
	str("KEYSTORE_BUCKET", &c.KeyStore.Bucket)
	str("KEYSTORE_PREFIX", &c.KeyStore.Prefix)
	str("KEYSTORE_REGION", &c.KeyStore.Region)
	str("SYSTEM_KEY", &c.SystemKey)

	if c.KeyStore.Bucket == "" {
		if v, ok := lookup("AWS_BUCKET_NAME"); ok {
			c.KeyStore.Bucket = v
		}
	}
	return nil
}

func (c Config) Validate() error {
	if c.ChunkSize < chunking.MinChunkSize || c.ChunkSize > chunking.MaxChunkSize {
		return errors.E(errors.Invalid, fmt.Sprintf("chunk size %d outside [%d, %d]", c.ChunkSize, chunking.MinChunkSize, chunking.MaxChunkSize))
	}
	if a := c.SectorAlignment; a != 0 {
		if a < 0 || a&(a-1) != 0 || c.ChunkSize%a != 0 {
			return errors.E(errors.Invalid, fmt.Sprintf("sector alignment %d must be a power of two dividing the chunk size %d", a, c.ChunkSize))
		}
	}
	if c.FlushTimeout <= 0 {
		return errors.E(errors.Invalid, "flush timeout must be positive")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return errors.E(errors.Invalid, "log level", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return errors.E(errors.Invalid, "unknown log format:", c.Log.Format)
	}
	if c.SystemKey != keyvault.SystemKeyRandom && c.SystemKey != keyvault.SystemKeyDevice {
		return errors.E(errors.Invalid, "unknown system key mode:", c.SystemKey)
	}
	return c.Storage().Validate()
}

// Storage returns the key store backend settings.
func (c Config) Storage() storage.Config {
	return storage.Config{
		Backend:    c.KeyStore.Backend,
		Path:       c.KeyStore.Path,
		BucketName: c.KeyStore.Bucket,
		Region:     c.KeyStore.Region,
		KeyPrefix:  c.KeyStore.Prefix,
	}
}
