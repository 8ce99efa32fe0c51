package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-desk/pkg/errors"
	"github.com/rxtech-lab/argo-desk/pkg/utils"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so it can be written as "15s" or "30m" in
// YAML config files.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid duration %q", raw)
	}

	*d = Duration(parsed)

	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// DatabaseConfig selects the persistence backend. When PostgresURL is set
// the networked backend is used; otherwise the embedded DuckDB file at
// DuckDBPath (":memory:" allowed).
type DatabaseConfig struct {
	DuckDBPath  string `yaml:"duckdb_path" json:"duckdb_path" jsonschema:"title=DuckDB Path,description=Path to the embedded DuckDB database file,default=desk.duckdb"`
	PostgresURL string `yaml:"postgres_url" json:"postgres_url" jsonschema:"title=Postgres URL,description=Connection string for the networked PostgreSQL backend. When set it takes precedence over DuckDB"`
}

// CacheConfig tunes the market-data cache.
type CacheConfig struct {
	FetchTimeout Duration `yaml:"fetch_timeout" json:"fetch_timeout" jsonschema:"title=Fetch Timeout,description=Bounded timeout for one external fetch"`
	StaleIfError bool     `yaml:"stale_if_error" json:"stale_if_error" jsonschema:"title=Stale If Error,description=Serve an expired successful entry when a fresh fetch fails"`
	// TTLOverrides is merged over the built-in per-function TTL table.
	TTLOverrides map[string]Duration `yaml:"ttl_overrides" json:"ttl_overrides" jsonschema:"title=TTL Overrides,description=Per-function cache TTL overrides"`
}

// LedgerConfig tunes account provisioning.
type LedgerConfig struct {
	InitialCash float64 `yaml:"initial_cash" json:"initial_cash" validate:"gte=0" jsonschema:"title=Initial Cash,description=Starting cash balance for newly provisioned accounts,default=100000"`
}

// AgentConfig identifies one autonomous agent worker. Each agent owns
// exactly one account.
type AgentConfig struct {
	ID string `yaml:"id" json:"id" validate:"required" jsonschema:"title=Agent ID"`
}

// Config is the full desk configuration, read once at startup.
type Config struct {
	Database DatabaseConfig `yaml:"database" json:"database"`
	Cache    CacheConfig    `yaml:"cache" json:"cache"`
	Ledger   LedgerConfig   `yaml:"ledger" json:"ledger"`
	Agents   []AgentConfig  `yaml:"agents" json:"agents" validate:"dive"`
}

// Default values applied when the config file leaves fields unset.
const (
	DefaultDuckDBPath   = "desk.duckdb"
	DefaultFetchTimeout = 15 * time.Second
	DefaultInitialCash  = 100000
)

// EmptyConfig returns a config populated with defaults, used for schema and
// sample generation.
func EmptyConfig() Config {
	return Config{
		Database: DatabaseConfig{
			DuckDBPath:  DefaultDuckDBPath,
			PostgresURL: "",
		},
		Cache: CacheConfig{
			FetchTimeout: Duration(DefaultFetchTimeout),
			StaleIfError: true,
			TTLOverrides: map[string]Duration{},
		},
		Ledger: LedgerConfig{
			InitialCash: DefaultInitialCash,
		},
		Agents: []AgentConfig{},
	}
}

// Load reads, defaults, and validates a YAML config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %s", path)
	}

	return Parse(data)
}

// Parse unmarshals, defaults, and validates raw YAML config bytes.
func Parse(data []byte) (Config, error) {
	config := EmptyConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate validates the Config struct.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid config", err)
	}

	return nil
}

// GenerateSchemaJSON produces the JSON schema for editor support.
func (c *Config) GenerateSchemaJSON() (string, error) {
	return utils.GetSchemaFromConfig(c)
}

func (c *Config) applyDefaults() {
	if c.Database.DuckDBPath == "" {
		c.Database.DuckDBPath = DefaultDuckDBPath
	}

	if c.Cache.FetchTimeout == 0 {
		c.Cache.FetchTimeout = Duration(DefaultFetchTimeout)
	}

	if c.Ledger.InitialCash == 0 {
		c.Ledger.InitialCash = DefaultInitialCash
	}
}
