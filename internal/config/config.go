// Package config loads coachflow settings from an optional YAML file and
// COACHFLOW_* environment variables. Command-line flags are applied last by
// the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/coachflow/pkg/persistence/middleware"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "coachflow.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "COACHFLOW_"

// Config is the complete runtime configuration.
type Config struct {
	Sequences SequencesConfig `yaml:"sequences"`
	Store     StoreConfig     `yaml:"store"`
	Events    EventsConfig    `yaml:"events"`
	Engine    EngineConfig    `yaml:"engine"`
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	MCP       MCPConfig       `yaml:"mcp"`
}

// SequencesConfig selects where sequence documents come from.
type SequencesConfig struct {
	Dir           string `yaml:"dir"`
	Loader        string `yaml:"loader"` // file | loam
	EntrySequence string `yaml:"entrySequence"`
	EntryMessage  string `yaml:"entryMessage"`
	Watch         bool   `yaml:"watch"`
}

// StoreConfig selects the key/value store.
type StoreConfig struct {
	Driver   string        `yaml:"driver"` // memory | file | redis | sqlite | postgres
	Path     string        `yaml:"path"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	DSN      string        `yaml:"dsn"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
	Lock     bool          `yaml:"lock"`
	LockTTL  time.Duration `yaml:"lockTTL"`

	// EncryptionKey (base64, 32 bytes) encrypts every stored value.
	// FallbackKeys still decrypt values written before a key rotation.
	EncryptionKey string   `yaml:"encryptionKey"`
	FallbackKeys  []string `yaml:"fallbackKeys"`
}

// EventsConfig selects where trigger actions go.
type EventsConfig struct {
	Driver   string `yaml:"driver"` // none | log | amqp
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
	// Redact lists regular expressions; matching payload keys are masked.
	Redact []string `yaml:"redact"`
}

// EngineConfig tunes the runtime.
type EngineConfig struct {
	BubbleSeparator string `yaml:"bubbleSeparator"`
	MaxSteps        int    `yaml:"maxSteps"`
	MaxInputSize    int    `yaml:"maxInputSize"`
	ResponseKey     string `yaml:"responseKey"`
	ActiveDaysKey   string `yaml:"activeDaysKey"`
	AnchorKey       string `yaml:"anchorKey"`
	FormattersFile  string `yaml:"formattersFile"`
	ContentFile     string `yaml:"contentFile"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// MCPConfig configures the MCP transport.
type MCPConfig struct {
	Transport string `yaml:"transport"` // stdio | sse
	Addr      string `yaml:"addr"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Sequences: SequencesConfig{Dir: "sequences", Loader: "file"},
		Store:     StoreConfig{Driver: "memory", Path: ".coachflow/store.json"},
		Events:    EventsConfig{Driver: "none"},
		Engine: EngineConfig{
			BubbleSeparator: "|||",
			MaxSteps:        1000,
			MaxInputSize:    4096,
		},
		Log:  LogConfig{Level: "info", Format: "text"},
		HTTP: HTTPConfig{Addr: ":8080"},
		MCP:  MCPConfig{Transport: "stdio", Addr: ":8081"},
	}
}

// Load reads path (DefaultFile when empty, silently skipped if missing)
// over Default, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from COACHFLOW_* variables looked up with lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"SEQUENCES_DIR":        &c.Sequences.Dir,
		"SEQUENCES_LOADER":     &c.Sequences.Loader,
		"ENTRY_SEQUENCE":       &c.Sequences.EntrySequence,
		"ENTRY_MESSAGE":        &c.Sequences.EntryMessage,
		"STORE_DRIVER":         &c.Store.Driver,
		"STORE_PATH":           &c.Store.Path,
		"STORE_ADDR":           &c.Store.Addr,
		"STORE_PASSWORD":       &c.Store.Password,
		"STORE_DSN":            &c.Store.DSN,
		"STORE_PREFIX":         &c.Store.Prefix,
		"STORE_ENCRYPTION_KEY": &c.Store.EncryptionKey,
		"EVENTS_DRIVER":        &c.Events.Driver,
		"EVENTS_URL":           &c.Events.URL,
		"EVENTS_EXCHANGE":      &c.Events.Exchange,
		"BUBBLE_SEPARATOR":     &c.Engine.BubbleSeparator,
		"RESPONSE_KEY":         &c.Engine.ResponseKey,
		"ACTIVE_DAYS_KEY":      &c.Engine.ActiveDaysKey,
		"ANCHOR_KEY":           &c.Engine.AnchorKey,
		"FORMATTERS_FILE":      &c.Engine.FormattersFile,
		"CONTENT_FILE":         &c.Engine.ContentFile,
		"LOG_LEVEL":            &c.Log.Level,
		"LOG_FORMAT":           &c.Log.Format,
		"HTTP_ADDR":            &c.HTTP.Addr,
		"MCP_TRANSPORT":        &c.MCP.Transport,
		"MCP_ADDR":             &c.MCP.Addr,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"STORE_DB":       &c.Store.DB,
		"MAX_STEPS":      &c.Engine.MaxSteps,
		"MAX_INPUT_SIZE": &c.Engine.MaxInputSize,
	}
	for name, dst := range ints {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"STORE_TTL":      &c.Store.TTL,
		"STORE_LOCK_TTL": &c.Store.LockTTL,
	}
	for name, dst := range durations {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = d
		}
	}

	lists := map[string]*[]string{
		"STORE_FALLBACK_KEYS": &c.Store.FallbackKeys,
		"EVENTS_REDACT":       &c.Events.Redact,
	}
	for name, dst := range lists {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = splitList(v)
		}
	}

	bools := map[string]*bool{
		"STORE_LOCK":      &c.Store.Lock,
		"SEQUENCES_WATCH": &c.Sequences.Watch,
	}
	for name, dst := range bools {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = b
		}
	}
	return nil
}

// Validate rejects unknown drivers and settings a driver cannot start without.
func (c Config) Validate() error {
	var errs []error

	switch c.Sequences.Loader {
	case "file", "loam":
	default:
		errs = append(errs, fmt.Errorf("sequences.loader: unknown loader %q", c.Sequences.Loader))
	}

	switch c.Store.Driver {
	case "memory":
	case "file", "sqlite":
		if c.Store.Path == "" {
			errs = append(errs, fmt.Errorf("store.path is required for the %s driver", c.Store.Driver))
		}
	case "redis":
		if c.Store.Addr == "" {
			errs = append(errs, errors.New("store.addr is required for the redis driver"))
		}
	case "postgres":
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver))
	}
	if c.Store.Lock && c.Store.Driver != "redis" {
		errs = append(errs, errors.New("store.lock requires the redis driver"))
	}
	if c.Store.EncryptionKey != "" {
		if _, err := middleware.ParseKey(c.Store.EncryptionKey); err != nil {
			errs = append(errs, fmt.Errorf("store.encryptionKey: %w", err))
		}
	} else if len(c.Store.FallbackKeys) > 0 {
		errs = append(errs, errors.New("store.fallbackKeys requires store.encryptionKey"))
	}
	for i, k := range c.Store.FallbackKeys {
		if _, err := middleware.ParseKey(k); err != nil {
			errs = append(errs, fmt.Errorf("store.fallbackKeys[%d]: %w", i, err))
		}
	}

	switch c.Events.Driver {
	case "none", "log":
	case "amqp":
		if c.Events.URL == "" {
			errs = append(errs, errors.New("events.url is required for the amqp driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("events.driver: unknown driver %q", c.Events.Driver))
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}

	switch c.MCP.Transport {
	case "stdio", "sse":
	default:
		errs = append(errs, fmt.Errorf("mcp.transport: unknown transport %q", c.MCP.Transport))
	}

	if c.Engine.MaxSteps < 0 {
		errs = append(errs, errors.New("engine.maxSteps must not be negative"))
	}
	return errors.Join(errs...)
}

// splitList splits a comma-separated value, dropping empty items.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
