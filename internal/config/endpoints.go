package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

const (
	defaultSearchHost     = "0.0.0.0"
	defaultSearchPort     = "9200"
	defaultRepositoryHost = "127.0.0.1"
	defaultRepositoryPort = "5984"
)

// SearchConfigFile locates the Elasticsearch config file. A pointer file,
// when present, names it under config_file and that file must exist;
// otherwise defaultFile is used if it exists.
func SearchConfigFile(pointerFile, defaultFile string) (string, error) {
	if _, err := os.Stat(pointerFile); err == nil {
		v := viper.New()
		v.SetConfigFile(pointerFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return "", fmt.Errorf("reading pointer file %s: %w", pointerFile, err)
		}
		custom := v.GetString("config_file")
		if _, err := os.Stat(custom); err != nil {
			return "", fmt.Errorf("invalid path (%s) for elasticsearch.yml specified in %s", custom, pointerFile)
		}
		return custom, nil
	}

	if _, err := os.Stat(defaultFile); err == nil {
		return defaultFile, nil
	}

	return "", fmt.Errorf("missing elasticsearch pointer file %s and no default %s found", pointerFile, defaultFile)
}

// SearchEndpoint builds the search engine's base URL from its
// elasticsearch.yml, falling back to 0.0.0.0:9200.
func SearchEndpoint(file string) (string, error) {
	v := viper.New()
	v.SetConfigFile(file)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return "", fmt.Errorf("reading search config %s: %w", file, err)
	}

	host := v.GetString("network.host")
	if host == "" {
		host = v.GetString("network.bind_host")
	}
	if host == "" {
		host = defaultSearchHost
	}

	port := v.GetString("http.port")
	if port == "" {
		port = defaultSearchPort
	}
	// http.port may be a range such as 9200-9300; the node binds the first.
	port, _, _ = strings.Cut(port, "-")

	return "http://" + net.JoinHostPort(host, port), nil
}

// RepositoryEndpoint builds the document store's base URL from a CouchDB
// ini file. A missing file logs a warning and yields 127.0.0.1:5984.
func RepositoryEndpoint(iniFile string) string {
	host, port := defaultRepositoryHost, defaultRepositoryPort

	cfg, err := ini.Load(iniFile)
	if err != nil {
		slog.Warn("no custom CouchDB config found, using default address:port", "path", iniFile, "error", err)
		return "http://" + net.JoinHostPort(host, port)
	}

	httpd := cfg.Section("httpd")
	if v := httpd.Key("bind_address").String(); v != "" {
		host = v
	}
	if v := httpd.Key("port").String(); v != "" {
		port = v
	}
	return "http://" + net.JoinHostPort(host, port)
}

// SearchEndpoint resolves the configured search endpoint, either the
// explicit override or through the Elasticsearch config files.
func (c *Config) SearchEndpoint() (string, error) {
	if c.Search.Endpoint != "" {
		return strings.TrimRight(c.Search.Endpoint, "/"), nil
	}
	file, err := SearchConfigFile(c.Search.PointerFile, c.Search.DefaultFile)
	if err != nil {
		return "", err
	}
	return SearchEndpoint(file)
}

func (c *Config) RepositoryEndpoint() string {
	return RepositoryEndpoint(c.Repository.ConfigFile)
}
