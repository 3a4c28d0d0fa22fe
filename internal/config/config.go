// Package config provides functionality for managing configuration options
// for the server using command-line flags, a JSON config file and environment variables.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"
	"time"
)

// Supported storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// User maps a set of client keys to one stable alias.
type User struct {
	// Alias is the server-side identity all data is stored under.
	Alias string `json:"alias"`
	// Keys are the values a client may present in the Authentication header.
	Keys []string `json:"keys"`
}

// Options holds the configuration values for the server.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"address"`

	// Driver selects the storage backend: "sqlite" or "postgres".
	Driver string `json:"driver"`

	// DatabaseDSN holds the Postgres connection string.
	DatabaseDSN string `json:"database_dsn"`

	// DataDir is the directory holding per-user SQLite files.
	DataDir string `json:"data_dir"`

	// Config is the path to the Config file.
	Config string `json:"-"`

	// LogLevel is the zap level name.
	LogLevel string `json:"log_level"`

	// CacheCount is the number of mutation batches retained per user. Zero disables pruning.
	CacheCount int `json:"cache_count"`

	// PruneInterval is how often the cache pruner runs.
	PruneInterval time.Duration `json:"-"`

	// HandleCache bounds the number of open SQLite handles.
	HandleCache int `json:"handle_cache"`

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string `json:"tls_cert"`
	TLSKey  string `json:"tls_key"`

	// EnableTestRoutes mounts the administrative reset endpoint.
	EnableTestRoutes bool `json:"enable_test_routes"`

	// Users lists the accounts served by this instance.
	Users []User `json:"users"`

	keys map[string]string
}

var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Parse parses the process arguments and environment. It exits the process on
// invalid configuration.
func Parse() *Options {
	options, err := ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	return options
}

// ParseArgs builds Options from args, the config file they point to, and the
// environment, in that order of precedence (later wins).
func ParseArgs(args []string) (*Options, error) {
	options := &Options{}

	fs := flag.NewFlagSet("vultsync", flag.ContinueOnError)
	fs.StringVar(&options.Port, "a", "localhost:8080", "run on ip:port server")
	fs.StringVar(&options.Driver, "driver", DriverSQLite, "storage driver (sqlite|postgres)")
	fs.StringVar(&options.DatabaseDSN, "d", "", "postgres dsn")
	fs.StringVar(&options.DataDir, "data", "./data", "sqlite data directory")
	fs.StringVar(&options.Config, "config", "config.json", "path to config file")
	fs.StringVar(&options.Config, "c", "config.json", "path to config file (shorthand)")
	fs.StringVar(&options.LogLevel, "log-level", "info", "log level")
	fs.IntVar(&options.CacheCount, "cache-count", 100, "mutation batches kept per user (0 keeps all)")
	fs.DurationVar(&options.PruneInterval, "prune-interval", time.Hour, "cache prune interval")
	fs.IntVar(&options.HandleCache, "handle-cache", 128, "open sqlite handles kept")
	fs.StringVar(&options.TLSCert, "tls-cert", "", "TLS certificate file")
	fs.StringVar(&options.TLSKey, "tls-key", "", "TLS key file")
	fs.BoolVar(&options.EnableTestRoutes, "test-routes", false, "enable test-only routes")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Override flags with environment variables if set
	if configPath := os.Getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		if _, err := os.Stat(options.Config); err == nil {
			data, err := os.ReadFile(options.Config)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}
			if err := json.Unmarshal(data, options); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	if serverAddress := os.Getenv("SERVER_ADDRESS"); serverAddress != "" {
		options.Port = serverAddress
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		options.DatabaseDSN = dsn
	}
	if dir := os.Getenv("DATA_DIR"); dir != "" {
		options.DataDir = dir
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		options.LogLevel = level
	}
	if v := os.Getenv("ENABLE_TEST_ROUTES"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("ENABLE_TEST_ROUTES: %w", err)
		}
		options.EnableTestRoutes = enabled
	}

	if err := options.validate(); err != nil {
		return nil, err
	}
	return options, nil
}

func (o *Options) validate() error {
	switch o.Driver {
	case DriverSQLite:
		if o.DataDir == "" {
			return errors.New("sqlite driver requires a data directory")
		}
		if o.HandleCache <= 0 {
			return fmt.Errorf("handle cache must be positive, got %d", o.HandleCache)
		}
	case DriverPostgres:
		if o.DatabaseDSN == "" {
			return errors.New("postgres driver requires a dsn")
		}
	default:
		return fmt.Errorf("unknown driver %q", o.Driver)
	}
	if o.CacheCount < 0 {
		return fmt.Errorf("cache count must not be negative, got %d", o.CacheCount)
	}
	if o.CacheCount > 0 && o.PruneInterval <= 0 {
		return fmt.Errorf("prune interval must be positive, got %s", o.PruneInterval)
	}
	if len(o.Users) == 0 {
		return errors.New("no users configured")
	}

	o.keys = make(map[string]string)
	aliases := make(map[string]struct{}, len(o.Users))
	for _, u := range o.Users {
		if !aliasPattern.MatchString(u.Alias) {
			return fmt.Errorf("invalid alias %q", u.Alias)
		}
		if _, dup := aliases[u.Alias]; dup {
			return fmt.Errorf("duplicate alias %q", u.Alias)
		}
		aliases[u.Alias] = struct{}{}

		for _, k := range u.Keys {
			if k == "" {
				return fmt.Errorf("empty key for alias %q", u.Alias)
			}
			if owner, dup := o.keys[k]; dup {
				return fmt.Errorf("key of alias %q already belongs to %q", u.Alias, owner)
			}
			o.keys[k] = u.Alias
		}
	}
	return nil
}

// ResolveAlias returns the alias owning key.
func (o *Options) ResolveAlias(key string) (string, bool) {
	alias, ok := o.keys[key]
	return alias, ok
}

// Aliases lists every configured alias.
func (o *Options) Aliases() []string {
	out := make([]string, 0, len(o.Users))
	for _, u := range o.Users {
		out = append(out, u.Alias)
	}
	return out
}
