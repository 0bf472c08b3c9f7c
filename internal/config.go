package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	appName = "cre-chat"

	// BackendFile stores one JSON file per key under the data directory
	BackendFile = "file"
	// BackendSQLite stores keys in a chatKV table of chats.db
	BackendSQLite = "sqlite"

	sqliteFileName = "chats.db"
)

// Config holds the client settings resolved from flags, environment,
// config file and defaults, in that order of precedence.
type Config struct {
	APIURL            string        `mapstructure:"api_url"`
	Agent             string        `mapstructure:"agent"`
	Storage           StorageConfig `mapstructure:"storage"`
	StreamTimeout     time.Duration `mapstructure:"stream_timeout"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	UploadConcurrency int           `mapstructure:"upload_concurrency"`
	PersistDebounce   time.Duration `mapstructure:"persist_debounce"`
}

// StorageConfig selects the key-value backend for saved chats
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// DefaultDataDir returns ~/.cre-chat, or .cre-chat when home is unknown
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + appName
	}
	return filepath.Join(home, "."+appName)
}

// LoadDotEnv loads .env.local and .env from dir into the environment.
// Variables that are already set win, and missing files are skipped.
func LoadDotEnv(dir string) {
	for _, name := range []string{".env.local", ".env"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			LogWarn("Failed to load %s: %v", path, err)
			continue
		}
		LogDebug("loaded environment from %s", path)
	}
}

// NewViper returns a viper instance with defaults, CRE_ environment
// bindings and the config file location set. An empty configFile means
// config.yaml in the default data directory.
func NewViper(configFile string) *viper.Viper {
	v := viper.New()

	v.SetDefault("api_url", DefaultBaseURL)
	v.SetDefault("agent", DefaultAgent)
	v.SetDefault("storage.backend", BackendFile)
	v.SetDefault("storage.path", DefaultDataDir())
	v.SetDefault("stream_timeout", time.Duration(0))
	v.SetDefault("request_timeout", defaultRequestTimeout)
	v.SetDefault("upload_concurrency", 1)
	v.SetDefault("persist_debounce", DefaultPersistDebounce)

	v.SetEnvPrefix("CRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// the web frontend's variable name is honoured as a fallback
	_ = v.BindEnv("api_url", "CRE_API_URL", "NEXT_PUBLIC_API_URL")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultDataDir())
	}
	return v
}

// LoadConfig reads the config file, if any, and decodes the settings.
// A missing config file is not an error.
func LoadConfig(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		LogDebug("no config file found, using defaults")
	} else {
		LogDebug("using config file %s", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.Agent = strings.ToLower(strings.TrimSpace(cfg.Agent))
	cfg.Storage.Path = expandHome(cfg.Storage.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the settings are usable
func (c *Config) Validate() error {
	v := &ValidationError{Form: "config"}
	v.require("api_url", c.APIURL)
	v.require("storage.path", c.Storage.Path)
	switch c.Storage.Backend {
	case BackendFile, BackendSQLite:
	default:
		v.Invalid = append(v.Invalid, "storage.backend")
	}
	if c.UploadConcurrency < 1 {
		v.Invalid = append(v.Invalid, "upload_concurrency")
	}
	if c.StreamTimeout < 0 {
		v.Invalid = append(v.Invalid, "stream_timeout")
	}
	if c.PersistDebounce < 0 {
		v.Invalid = append(v.Invalid, "persist_debounce")
	}
	return v.orNil()
}

// StorageLocation returns the path that holds saved chats: the data
// directory for the file backend, the database file for sqlite.
func (c *Config) StorageLocation() string {
	if c.Storage.Backend == BackendSQLite {
		return filepath.Join(c.Storage.Path, sqliteFileName)
	}
	return c.Storage.Path
}

// OpenStore opens the configured key-value backend
func OpenStore(cfg *Config) (KeyValueStore, error) {
	switch cfg.Storage.Backend {
	case BackendSQLite:
		if err := os.MkdirAll(cfg.Storage.Path, 0o755); err != nil {
			return nil, &StorageError{Op: "open", Key: cfg.Storage.Path, Err: err}
		}
		return OpenSQLiteStore(cfg.StorageLocation())
	case BackendFile, "":
		store := NewDirStore(cfg.Storage.Path)
		if err := store.EnsureDir(); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s (supported: file, sqlite)", cfg.Storage.Backend)
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
