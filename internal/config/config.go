// Package config loads the lampd TOML configuration.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config is the lampd configuration file.
type Config struct {
	Database Database   `toml:"database"`
	Log      Log        `toml:"log"`
	REST     REST       `toml:"rest"`
	GRPC     GRPC       `toml:"grpc"`
	MCP      MCP        `toml:"mcp"`
	Review   Review     `toml:"review"`
	Dispatch Dispatcher `toml:"dispatcher"`
}

// Database locates the sqlite file.
type Database struct {
	Path string `toml:"path"`
}

// Log configures the subsystem loggers.
type Log struct {
	Level         string `toml:"level"`
	Dir           string `toml:"dir"`
	MaxFiles      int    `toml:"max_files"`
	MaxFileSizeMB int    `toml:"max_file_size_mb"`
}

// REST configures the HTTP API, websocket feed and metrics endpoint.
type REST struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// GRPC configures the health and reflection server.
type GRPC struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// MCP toggles the stdio moderation tools.
type MCP struct {
	Enabled bool `toml:"enabled"`
}

// Review configures reviewer allocation.
type Review struct {
	// Reviewers is the pool of human reviewer ids.
	Reviewers []int64 `toml:"reviewers"`

	// Selector is round_robin or least_loaded.
	Selector string `toml:"selector"`

	// TrustedAuthors are auto-approved on submission.
	TrustedAuthors []int64 `toml:"trusted_authors"`

	DedupeSize int `toml:"dedupe_size"`
}

// Dispatcher configures marker fan-out.
type Dispatcher struct {
	Workers       int      `toml:"workers"`
	MailboxSize   int      `toml:"mailbox_size"`
	Concurrency   int      `toml:"concurrency"`
	MarkerTimeout Duration `toml:"marker_timeout"`
	MaxAttempts   int      `toml:"max_attempts"`
	RetryBackoff  Duration `toml:"retry_backoff"`
	DrainTimeout  Duration `toml:"drain_timeout"`
	SinkCapacity  int      `toml:"sink_capacity"`
}

// Duration decodes TOML strings such as "10s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v

	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Selector names.
const (
	SelectorRoundRobin  = "round_robin"
	SelectorLeastLoaded = "least_loaded"
)

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Database: Database{Path: "lamp.db"},
		Log:      Log{Level: "info", MaxFiles: 3, MaxFileSizeMB: 10},
		REST:     REST{Enabled: true, Listen: "127.0.0.1:8080"},
		GRPC:     GRPC{Enabled: true, Listen: "127.0.0.1:10019"},
		Review: Review{
			Reviewers:  []int64{1},
			Selector:   SelectorRoundRobin,
			DedupeSize: 4096,
		},
		Dispatch: Dispatcher{
			Workers:       4,
			MailboxSize:   256,
			Concurrency:   8,
			MarkerTimeout: Duration{10 * time.Second},
			MaxAttempts:   3,
			RetryBackoff:  Duration{100 * time.Millisecond},
			DrainTimeout:  Duration{5 * time.Second},
			SinkCapacity:  256,
		},
	}
}

// Load reads path over the defaults. Keys absent from the file keep their
// default value.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("unknown keys in %s: %v", path,
			undecoded)
	}

	if cfg.Database.Path != "" && !filepath.IsAbs(cfg.Database.Path) {
		cfg.Database.Path = filepath.Join(
			filepath.Dir(path), cfg.Database.Path,
		)
	}

	return cfg, cfg.Validate()
}

// Validate checks the configuration for values lampd cannot start with.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Database),
		validation.Field(&c.Log),
		validation.Field(&c.REST),
		validation.Field(&c.GRPC),
		validation.Field(&c.Review),
		validation.Field(&c.Dispatch),
	)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// Validate implements validation.Validatable.
func (d Database) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Path, validation.Required),
	)
}

// Validate implements validation.Validatable.
func (l Log) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In(
			"", "trace", "debug", "info", "warn", "error",
			"critical", "off",
		)),
		validation.Field(&l.MaxFiles, validation.Min(0)),
		validation.Field(&l.MaxFileSizeMB, validation.Min(0)),
	)
}

// Validate implements validation.Validatable.
func (r REST) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Listen,
			validation.When(r.Enabled, validation.Required),
		),
	)
}

// Validate implements validation.Validatable.
func (g GRPC) Validate() error {
	return validation.ValidateStruct(&g,
		validation.Field(&g.Listen,
			validation.When(g.Enabled, validation.Required),
		),
	)
}

// Validate implements validation.Validatable.
func (r Review) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Reviewers, validation.Required,
			validation.Each(validation.Min(int64(1))),
		),
		validation.Field(&r.Selector, validation.In(
			SelectorRoundRobin, SelectorLeastLoaded,
		)),
		validation.Field(&r.TrustedAuthors,
			validation.Each(validation.Min(int64(1))),
		),
		validation.Field(&r.DedupeSize, validation.Min(0)),
	)
}

// Validate implements validation.Validatable.
func (d Dispatcher) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Workers, validation.Min(0)),
		validation.Field(&d.MailboxSize, validation.Min(0)),
		validation.Field(&d.Concurrency, validation.Min(0)),
		validation.Field(&d.MaxAttempts, validation.Min(0)),
		validation.Field(&d.SinkCapacity, validation.Min(0)),
		validation.Field(&d.MarkerTimeout, validation.By(nonNegative)),
		validation.Field(&d.RetryBackoff, validation.By(nonNegative)),
		validation.Field(&d.DrainTimeout, validation.By(nonNegative)),
	)
}

func nonNegative(value interface{}) error {
	d, _ := value.(Duration)
	if d.Duration < 0 {
		return validation.NewError(
			"validation_duration_negative", "must not be negative",
		)
	}

	return nil
}
