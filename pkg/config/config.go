package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/cuemby/potato/pkg/ingest"
	"github.com/cuemby/potato/pkg/log"
	"github.com/cuemby/potato/pkg/storage"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes the environment variable of every flag:
// --chunk-size is read from POTATO_CHUNK_SIZE
const EnvPrefix = "POTATO"

// Backend selects the Store implementation
type Backend string

const (
	BackendMongo Backend = "mongo"
	BackendBolt  Backend = "bolt"
)

// Flag names shared by the commands
const (
	FlagConfig     = "config"
	FlagBackend    = "backend"
	FlagMongoURI   = "mongodb-uri"
	FlagDatabase   = "database"
	FlagCollection = "collection"
	FlagDataDir    = "data-dir"
	FlagLogLevel   = "log-level"
	FlagLogJSON    = "log-json"

	FlagInput     = "input"
	FlagChunkSize = "chunk-size"
	FlagCountRows = "count-rows"
	FlagBatchSize = "batch-size"
	FlagListen    = "listen"
)

// legacyEnv are unprefixed variables honoured for compatibility with
// existing deployments
var legacyEnv = map[string]string{
	FlagMongoURI:   "MONGODB_URI",
	FlagDatabase:   "DATABASE_NAME",
	FlagCollection: "COLLECTION_NAME",
}

// Config is the resolved configuration of one command
type Config struct {
	Backend    Backend `yaml:"backend"`
	MongoURI   string  `yaml:"mongodb_uri"`
	Database   string  `yaml:"database"`
	Collection string  `yaml:"collection"`
	DataDir    string  `yaml:"data_dir"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	Input     string `yaml:"input"`
	ChunkSize int    `yaml:"chunk_size"`
	CountRows bool   `yaml:"count_rows"`
	BatchSize int    `yaml:"batch_size"`
	Listen    string `yaml:"listen"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Backend:    BackendMongo,
		MongoURI:   storage.DefaultMongoURI,
		Database:   storage.DefaultDatabase,
		Collection: storage.DefaultCollection,
		DataDir:    "./data",
		LogLevel:   string(log.InfoLevel),
		Input:      "tweets.tsv",
		ChunkSize:  ingest.DefaultChunkSize,
		BatchSize:  ingest.DefaultResyncBatchSize,
		Listen:     ":5000",
	}
}

// RegisterFlags adds the flags every command understands
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.StringP(FlagConfig, "c", "", "Configuration file (YAML)")
	flags.String(FlagBackend, string(d.Backend), "Store backend: mongo or bolt")
	flags.String(FlagMongoURI, d.MongoURI, "MongoDB connection string")
	flags.String(FlagDatabase, d.Database, "Database name")
	flags.String(FlagCollection, d.Collection, "Collection holding the posts")
	flags.String(FlagDataDir, d.DataDir, "Data directory of the bolt backend")
	flags.String(FlagLogLevel, d.LogLevel, "Log level: debug, info, warn, error")
	flags.Bool(FlagLogJSON, d.LogJSON, "Log as JSON instead of console output")
}

// Apply resolves every flag of flags from, in decreasing priority, the
// command line, the environment, the configuration file named by --config,
// and the flag default. Resolved values are written back into the flags.
func Apply(flags *pflag.FlagSet) error {
	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		return err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	for name, env := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		if err := v.BindEnv(name, prefixed, env); err != nil {
			return err
		}
	}

	if path := v.GetString(FlagConfig); path != "" {
		values, err := readFile(path, flags)
		if err != nil {
			return err
		}
		if err := v.MergeConfigMap(values); err != nil {
			return fmt.Errorf("failed to merge configuration file '%s': %w", path, err)
		}
	}

	var flagErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if flagErr != nil || f.Changed {
			return
		}
		if err := f.Value.Set(v.GetString(f.Name)); err != nil {
			flagErr = fmt.Errorf("invalid value for %s: %w", f.Name, err)
		}
	})
	return flagErr
}

// readFile decodes a YAML configuration file into flag-keyed values. Keys may
// be written with underscores or dashes; keys naming no flag are an error.
func readFile(path string, flags *pflag.FlagSet) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading configuration file '%s': %w", path, err)
	}

	raw := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("error parsing configuration file '%s': %w", path, err)
	}

	values := make(map[string]interface{}, len(raw))
	for k, val := range raw {
		name := strings.ReplaceAll(k, "_", "-")
		if name == FlagConfig {
			continue
		}
		if flags.Lookup(name) == nil {
			// Settings of other commands may share one file
			if !knownKey(name) {
				return nil, fmt.Errorf("unknown key %q in configuration file '%s'", k, path)
			}
			continue
		}
		values[name] = val
	}
	return values, nil
}

func knownKey(name string) bool {
	switch name {
	case FlagBackend, FlagMongoURI, FlagDatabase, FlagCollection, FlagDataDir,
		FlagLogLevel, FlagLogJSON, FlagInput, FlagChunkSize, FlagCountRows,
		FlagBatchSize, FlagListen:
		return true
	}
	return false
}

// FromFlags builds a Config from resolved flags. Flags a command does not
// define keep their default.
func FromFlags(flags *pflag.FlagSet) (Config, error) {
	cfg := Default()

	str := func(name string, dst *string) {
		if f := flags.Lookup(name); f != nil {
			*dst = f.Value.String()
		}
	}
	var err error
	boolean := func(name string, dst *bool) {
		if flags.Lookup(name) != nil && err == nil {
			*dst, err = flags.GetBool(name)
		}
	}
	integer := func(name string, dst *int) {
		if flags.Lookup(name) != nil && err == nil {
			*dst, err = flags.GetInt(name)
		}
	}

	backend := string(cfg.Backend)
	str(FlagBackend, &backend)
	cfg.Backend = Backend(strings.ToLower(backend))
	str(FlagMongoURI, &cfg.MongoURI)
	str(FlagDatabase, &cfg.Database)
	str(FlagCollection, &cfg.Collection)
	str(FlagDataDir, &cfg.DataDir)
	str(FlagLogLevel, &cfg.LogLevel)
	str(FlagInput, &cfg.Input)
	str(FlagListen, &cfg.Listen)
	boolean(FlagLogJSON, &cfg.LogJSON)
	boolean(FlagCountRows, &cfg.CountRows)
	integer(FlagChunkSize, &cfg.ChunkSize)
	integer(FlagBatchSize, &cfg.BatchSize)
	if err != nil {
		return Config{}, err
	}

	return cfg, cfg.Validate()
}

// Validate checks the values every command depends on
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("%s is required for the mongo backend", FlagMongoURI)
		}
	case BackendBolt:
		if c.DataDir == "" {
			return fmt.Errorf("%s is required for the bolt backend", FlagDataDir)
		}
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendMongo, BackendBolt)
	}

	if c.Database == "" || c.Collection == "" {
		return fmt.Errorf("database and collection must not be empty")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%s must be positive, got %d", FlagChunkSize, c.ChunkSize)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%s must be positive, got %d", FlagBatchSize, c.BatchSize)
	}
	return nil
}

// Logging returns the logger settings
func (c Config) Logging() log.Config {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	return log.Config{Level: level, JSONOutput: c.LogJSON}
}

// YAML renders the configuration in the file format read by --config
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// Mongo returns the connection settings of the mongo backend
func (c Config) Mongo() storage.MongoConfig {
	return storage.MongoConfig{
		URI:        c.MongoURI,
		Database:   c.Database,
		Collection: c.Collection,
	}
}
