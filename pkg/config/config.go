// Package config loads the TOML file describing the backing store and the
// tables kept in it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"sheetsdb/pkg/schema"

	"github.com/pelletier/go-toml/v2"
	log "github.com/sirupsen/logrus"
)

// Backends a config may select.
const (
	BackendSheets = "sheets"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

const (
	defaultSQLitePath        = "sheetsdb.sqlite3"
	defaultRequestsPerMinute = 60
	defaultMaxRetries        = 15
	defaultMaxBackoff        = 60 * time.Second
	defaultListenAddress     = ":8080"
)

type Limits struct {
	RequestsPerMinute int    `toml:"requests_per_minute"`
	MaxRetries        int    `toml:"max_retries"`
	MaxBackoff        string `toml:"max_backoff"` // a Go duration such as "60s"
}

// Backoff parses MaxBackoff.
func (l Limits) Backoff() (time.Duration, error) {
	d, err := time.ParseDuration(l.MaxBackoff)
	if err != nil {
		return 0, fmt.Errorf("max_backoff: %w", err)
	}
	return d, nil
}

// FieldConfig declares one column. Order 0 lets the resolver pick one.
type FieldConfig struct {
	Name       string `toml:"name"`
	Type       string `toml:"type,omitempty"`
	Order      int    `toml:"order,omitempty"`
	PrimaryKey bool   `toml:"primary_key,omitempty"`
	Default    any    `toml:"default,omitempty"`
}

type TableConfig struct {
	Name        string        `toml:"name"`
	SheetName   string        `toml:"sheet_name,omitempty"`
	StartRow    int           `toml:"start_row,omitempty"`
	StartColumn int           `toml:"start_column,omitempty"`
	Fields      []FieldConfig `toml:"fields"`
}

type Store struct {
	Backend         string        `toml:"backend"`
	SpreadsheetID   string        `toml:"spreadsheet_id"`
	CredentialsFile string        `toml:"credentials_file"`
	SQLitePath      string        `toml:"sqlite_path"`
	ValueInput      string        `toml:"value_input"`
	ListenAddress   string        `toml:"listen_address"`
	Limits          Limits        `toml:"limits"`
	Tables          []TableConfig `toml:"tables"`
}

type Config struct {
	Filename string
	Store    Store
}

// Save writes the current config out to its TOML file.
func (c *Config) Save() error {
	b, err := toml.Marshal(c.Store)
	if err != nil {
		return err
	}
	return os.WriteFile(c.Filename, b, 0644)
}

// Load reads the config from its TOML file.
func (c *Config) Load() error {
	b, err := os.ReadFile(c.Filename)
	if err != nil {
		return err
	}
	return toml.Unmarshal(b, &c.Store)
}

// New loads filename, writing a default file first when it does not exist,
// then applies environment overrides and defaults.
func New(filename string) (*Config, error) {
	c := &Config{Filename: filename}
	if err := c.Load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", filename, err)
		}
		c.setDefaults()
		log.WithField("file", filename).Info("config not found, writing defaults")
		if err := c.Save(); err != nil {
			return nil, err
		}
	}
	c.applyEnv()
	c.setDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SPREADSHEET_ID"); v != "" {
		c.Store.SpreadsheetID = v
	}
	if v := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" && c.Store.CredentialsFile == "" {
		c.Store.CredentialsFile = v
	}
}

func (c *Config) setDefaults() {
	s := &c.Store
	if s.Backend == "" {
		s.Backend = BackendSQLite
	}
	if s.SQLitePath == "" {
		s.SQLitePath = defaultSQLitePath
	}
	if s.ValueInput == "" {
		s.ValueInput = "RAW"
	}
	if s.ListenAddress == "" {
		s.ListenAddress = defaultListenAddress
	}
	if s.Limits.RequestsPerMinute == 0 {
		s.Limits.RequestsPerMinute = defaultRequestsPerMinute
	}
	if s.Limits.MaxRetries == 0 {
		s.Limits.MaxRetries = defaultMaxRetries
	}
	if s.Limits.MaxBackoff == "" {
		s.Limits.MaxBackoff = defaultMaxBackoff.String()
	}
}

// Validate checks the backend settings and that every table declares fields
// with known types. Schema-level rules are left to the resolver.
func (c *Config) Validate() error {
	s := c.Store
	switch s.Backend {
	case BackendSheets:
		if s.SpreadsheetID == "" {
			return fmt.Errorf("%s: backend %q needs spreadsheet_id", c.Filename, s.Backend)
		}
	case BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("%s: unknown backend %q", c.Filename, s.Backend)
	}
	switch strings.ToUpper(s.ValueInput) {
	case "RAW", "USER_ENTERED":
	default:
		return fmt.Errorf("%s: unknown value_input %q", c.Filename, s.ValueInput)
	}
	if _, err := s.Limits.Backoff(); err != nil {
		return fmt.Errorf("%s: %w", c.Filename, err)
	}
	seen := make(map[string]bool, len(s.Tables))
	for _, t := range s.Tables {
		if t.Name == "" {
			return fmt.Errorf("%s: table without a name", c.Filename)
		}
		if seen[t.Name] {
			return fmt.Errorf("%s: table %q declared twice", c.Filename, t.Name)
		}
		seen[t.Name] = true
		if _, err := t.Declarations(); err != nil {
			return fmt.Errorf("%s: table %q: %w", c.Filename, t.Name, err)
		}
	}
	return nil
}

// Table returns the named table's config.
func (c *Config) Table(name string) (TableConfig, bool) {
	for _, t := range c.Store.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableConfig{}, false
}

// Declarations converts the table's fields into schema declarations.
func (t TableConfig) Declarations() ([]schema.Field, error) {
	if len(t.Fields) == 0 {
		return nil, fmt.Errorf("%w: no fields", schema.ErrInvalidSchema)
	}
	out := make([]schema.Field, len(t.Fields))
	for i, f := range t.Fields {
		typ := schema.TypeText
		if f.Type != "" {
			var err error
			if typ, err = schema.ParseFieldType(f.Type); err != nil {
				return nil, err
			}
		} else if f.PrimaryKey {
			typ = schema.TypeInt
		}
		out[i] = schema.Field{
			Name:        f.Name,
			Type:        typ,
			OrderNumber: f.Order,
			PrimaryKey:  f.PrimaryKey,
			Default:     f.Default,
		}
	}
	return out, nil
}
