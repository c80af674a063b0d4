package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/talentflow/internal/faults"
	"github.com/starford/talentflow/internal/fixtures"
	"github.com/starford/talentflow/internal/pipeline"
	"github.com/starford/talentflow/internal/remote"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Faults   FaultsConfig      `yaml:"faults"`
	Fixtures FixturesConfig    `yaml:"fixtures"`
	Seed     SeedConfig        `yaml:"seed"`
	Uploads  UploadsConfig     `yaml:"uploads"`
	Client   ClientConfig      `yaml:"client"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Faults.Validate(); err != nil {
		return fmt.Errorf("faults: %w", err)
	}
	if err := c.Fixtures.Validate(); err != nil {
		return fmt.Errorf("fixtures: %w", err)
	}
	if err := c.Seed.Validate(); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if err := c.Uploads.Validate(); err != nil {
		return fmt.Errorf("uploads: %w", err)
	}
	return c.Client.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	// LogFile, when set, receives a JSON copy of every log record.
	LogFile string     `yaml:"log_file"`
	HTTP    HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// FaultsConfig controls the simulated unreliability of the API.
//
// FailureRate applies to every write without an entry in Rates. Rates are
// keyed by operation name (jobs.reorder, assessments.submit, ...).
type FaultsConfig struct {
	Enabled     bool               `yaml:"enabled"`
	FailureRate float64            `yaml:"failure_rate"`
	Rates       map[string]float64 `yaml:"rates"`
	LatencyMin  time.Duration      `yaml:"latency_min"`
	LatencyMax  time.Duration      `yaml:"latency_max"`
	// RandomSeed makes injected faults reproducible. Zero seeds from the clock.
	RandomSeed uint64 `yaml:"random_seed"`
}

var knownOps = []any{
	remote.OpCreateJob, remote.OpUpdateJob, remote.OpReorderJob,
	remote.OpCandidateStage, remote.OpAddNote, remote.OpPutAssessment, remote.OpSubmit,
}

// Validate validates the faults configuration.
func (c *FaultsConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.FailureRate, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.LatencyMin, validation.Min(time.Duration(0))),
		validation.Field(&c.LatencyMax, validation.Min(c.LatencyMin)),
	); err != nil {
		return err
	}
	for op, rate := range c.Rates {
		if err := validation.Validate(op, validation.In(knownOps...)); err != nil {
			return fmt.Errorf("rates: unknown operation %q", op)
		}
		if rate < 0 || rate > 1 {
			return fmt.Errorf("rates: %s must be between 0 and 1", op)
		}
	}
	return nil
}

// Policy returns the injection policy described by c.
func (c *FaultsConfig) Policy() faults.Policy {
	p := faults.Policy{
		FailureRate: c.FailureRate,
		LatencyMin:  c.LatencyMin,
		LatencyMax:  c.LatencyMax,
	}
	if len(c.Rates) > 0 {
		p.Rates = make(map[string]float64, len(c.Rates))
		for op, r := range c.Rates {
			p.Rates[op] = r
		}
	}
	return p
}

// FixturesConfig locates the static JSON fixtures.
type FixturesConfig struct {
	Path string `yaml:"path"`
	// Watch re-imports the fixtures whenever the files change.
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the fixtures configuration.
func (c *FixturesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// SeedConfig controls populating an empty database at startup.
type SeedConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Jobs       int    `yaml:"jobs"`
	Candidates int    `yaml:"candidates"`
	RandomSeed uint64 `yaml:"random_seed"`
}

// Validate validates the seed configuration.
func (c *SeedConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Jobs, validation.Min(1)),
		validation.Field(&c.Candidates, validation.Min(0)),
	)
}

// UploadsConfig holds the directory for files attached to assessment answers.
type UploadsConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the uploads configuration.
func (c *UploadsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ClientConfig configures the in-process client used by the mcp command.
//
// With RemoteURL empty the client talks to the local database directly,
// through the same fault injection as the HTTP API.
type ClientConfig struct {
	RemoteURL   string        `yaml:"remote_url"`
	SettleDelay time.Duration `yaml:"settle_delay"`
}

// Validate validates the client configuration.
func (c *ClientConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SettleDelay, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./talentflow.db",
		},
		Faults: FaultsConfig{
			Enabled:     true,
			FailureRate: 0.1,
			Rates: map[string]float64{
				remote.OpReorderJob: 0.05,
				remote.OpSubmit:     0,
			},
			LatencyMin: 200 * time.Millisecond,
			LatencyMax: 1200 * time.Millisecond,
		},
		Fixtures: FixturesConfig{
			Path:     "./data",
			Watch:    true,
			Debounce: fixtures.DefaultDebounce,
		},
		Seed: SeedConfig{
			Enabled:    true,
			Jobs:       fixtures.DefaultJobs,
			Candidates: fixtures.DefaultCandidates,
		},
		Uploads: UploadsConfig{
			Path: "./data/uploads",
		},
		Client: ClientConfig{
			SettleDelay: pipeline.DefaultSettleDelay,
		},
	}
}
