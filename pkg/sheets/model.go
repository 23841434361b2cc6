package sheets

import (
	"time"

	"google.golang.org/api/sheets/v4"
)

// Value input options accepted by the values endpoints.
const (
	InputRaw         = "RAW"
	InputUserEntered = "USER_ENTERED"
)

const (
	defaultMaxRetries  = 15
	defaultMaxBackoff  = 60 * time.Second
	defaultBaseBackoff = time.Second
	defaultBurst       = 10

	dimensionRows    = "ROWS"
	dimensionColumns = "COLUMNS"
)

// Config describes one spreadsheet and how to talk to it.
type Config struct {
	SpreadsheetID string
	// CredentialsFile is a service-account or authorized-user JSON key. When
	// empty, application default credentials are used.
	CredentialsFile string
	// RequestsPerMinute caps outgoing calls. Zero or less disables the cap.
	RequestsPerMinute int
	MaxRetries        int
	MaxBackoff        time.Duration
	// BaseBackoff is the first retry delay; it doubles on every attempt.
	BaseBackoff      time.Duration
	ValueInputOption string
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaultMaxBackoff
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = defaultBaseBackoff
	}
	if c.ValueInputOption == "" {
		c.ValueInputOption = InputRaw
	}
	return c
}

// sheetInfo is the cached part of a sheet's properties.
type sheetInfo struct {
	id   int64
	rows int64
	cols int64
}

func infoFrom(p *sheets.SheetProperties) sheetInfo {
	info := sheetInfo{id: p.SheetId}
	if g := p.GridProperties; g != nil {
		info.rows, info.cols = g.RowCount, g.ColumnCount
	}
	return info
}
