package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	SearchIndex        = "dpla"
	RepositoryDatabase = SearchIndex
	DefaultPageSize    = 10
)

type MappingsConfig struct {
	Files []string `mapstructure:"files"`
}

type SearchConfig struct {
	Index       string `mapstructure:"index"`
	PointerFile string `mapstructure:"pointer_file"`
	DefaultFile string `mapstructure:"default_file"`
	// Endpoint overrides discovery through the Elasticsearch config files.
	Endpoint string `mapstructure:"endpoint"`
}

type RepositoryConfig struct {
	ConfigFile string `mapstructure:"config_file"`
}

type QueryConfig struct {
	DefaultPageSize int `mapstructure:"default_page_size"`
}

type DaemonConfig struct {
	ExpirationSeconds int `mapstructure:"expiration_seconds"`
}

type Config struct {
	Mappings   MappingsConfig   `mapstructure:"mappings"`
	Search     SearchConfig     `mapstructure:"search"`
	Repository RepositoryConfig `mapstructure:"repository"`
	Query      QueryConfig      `mapstructure:"query"`
	Daemon     DaemonConfig     `mapstructure:"daemon"`
}

// cacheBase returns the base cache directory for fieldmap.
// Checks XDG_CACHE_HOME, then ~/.cache, then /tmp/fieldmap as fallback.
func cacheBase() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "fieldmap")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "fieldmap")
	}
	return filepath.Join(os.TempDir(), "fieldmap")
}

// DBPath returns the path to the DuckDB field catalog.
func DBPath() string {
	return filepath.Join(cacheBase(), "catalog.db")
}

// CASDir returns the path to the mapping snapshot store.
func CASDir() string {
	return filepath.Join(cacheBase(), "cas")
}

// MappingCacheDir returns the path to the fetched mapping cache.
func MappingCacheDir() string {
	return filepath.Join(cacheBase(), "mappings")
}

// LogPath returns the path to the daemon's log file.
func LogPath() string {
	return filepath.Join(cacheBase(), "daemon.log")
}

// SocketPath returns the path to the daemon's unix socket.
func SocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "fieldmap", "daemon.sock")
	}
	return filepath.Join(fmt.Sprintf("/run/user/%d", os.Getuid()), "fieldmap", "daemon.sock")
}

func InitializeViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("toml")

	viper.AddConfigPath(".")
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		viper.AddConfigPath(filepath.Join(xdg, "fieldmap"))
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "fieldmap"))
	}

	viper.SetDefault("mappings.files", []string{})
	viper.SetDefault("search.index", SearchIndex)
	viper.SetDefault("search.pointer_file", filepath.Join("config", "elasticsearch", "elasticsearch_pointer.yml"))
	viper.SetDefault("search.default_file", "/etc/elasticsearch/elasticsearch.yml")
	viper.SetDefault("search.endpoint", "")
	viper.SetDefault("repository.config_file", filepath.Join("config", "couchdb.ini"))
	viper.SetDefault("query.default_page_size", DefaultPageSize)
	viper.SetDefault("daemon.expiration_seconds", 600)

	viper.SetEnvPrefix("FIELDMAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

// stringToFilesHookFunc lets mappings.files be given as one
// comma-separated string, which is how it arrives from the environment.
func stringToFilesHookFunc() mapstructure.DecodeHookFunc {
	return func(f, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf([]string{}) || f.Kind() != reflect.String {
			return data, nil
		}
		s := strings.TrimSpace(data.(string))
		if s == "" {
			return []string{}, nil
		}
		parts := strings.Split(s, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	}
}

func Load() (*Config, error) {
	if err := InitializeViper(); err != nil {
		return nil, err
	}

	var config Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: stringToFilesHookFunc(),
		Result:     &config,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(viper.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.Mappings.Files = expandHome(config.Mappings.Files)
	if config.Query.DefaultPageSize <= 0 {
		config.Query.DefaultPageSize = DefaultPageSize
	}

	return &config, nil
}

func expandHome(paths []string) []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return paths
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		if strings.HasPrefix(p, "~/") {
			p = filepath.Join(home, p[2:])
		}
		out[i] = p
	}
	return out
}
