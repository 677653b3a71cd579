package types

import (
	"errors"
	"time"
)

// Supported backend names.
const (
	BackendTextFile = "textfile"
	BackendMongo    = "mongo"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Defaults applied by the configuration layer.
const (
	DefaultMongoDatabase    = "vento_inventory"
	DefaultMongoMaxPoolSize = 10
	DefaultMongoMinPoolSize = 1
	DefaultMongoTimeout     = 30 * time.Second
	DefaultSQLiteFileName   = "vento.db"
	DefaultStoreOpTimeout   = 10 * time.Second
)

// Config holds backend selection and parameters.
type Config struct {
	Backend string `json:"backend" yaml:"backend"`
	DataDir string `json:"data_dir" yaml:"data_dir"`

	MongoURI         string        `json:"mongo_uri" yaml:"mongo_uri"`
	MongoDatabase    string        `json:"mongo_database" yaml:"mongo_database"`
	MongoMaxPoolSize uint64        `json:"mongo_max_pool_size" yaml:"mongo_max_pool_size"`
	MongoMinPoolSize uint64        `json:"mongo_min_pool_size" yaml:"mongo_min_pool_size"`
	MongoTimeout     time.Duration `json:"mongo_timeout" yaml:"mongo_timeout"`

	// SQLitePath defaults to DataDir/vento.db.
	SQLitePath  string `json:"sqlite_path" yaml:"sqlite_path"`
	PostgresDSN string `json:"postgres_dsn" yaml:"postgres_dsn"`
}

// Config validation errors.
var (
	ErrBackendEmpty     = errors.New("backend must not be empty")
	ErrBackendUnknown   = errors.New("unknown backend")
	ErrMongoURIEmpty    = errors.New("mongo backend requires mongo_uri")
	ErrPostgresDSNEmpty = errors.New("postgres backend requires postgres_dsn")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendTextFile: true,
	BackendMongo:    true,
	BackendSQLite:   true,
	BackendPostgres: true,
}

// KnownBackends returns the accepted backend names in display order.
func KnownBackends() []string {
	return []string{BackendTextFile, BackendMongo, BackendSQLite, BackendPostgres}
}

// Validate checks that the Config is well-formed.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	switch c.Backend {
	case BackendMongo:
		if c.MongoURI == "" {
			return ErrMongoURIEmpty
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return ErrPostgresDSNEmpty
		}
	}
	return nil
}
