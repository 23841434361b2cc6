// Package sheets is the Google Sheets implementation of grid.Store. Every
// call goes through a rate limiter and is retried with exponential backoff
// when the API reports a quota error.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"sheetsdb/pkg/grid"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

type Client struct {
	service       *sheets.Service
	spreadsheetID string
	cfg           Config
	limiter       *rate.Limiter

	mu     sync.Mutex
	meta   map[string]sheetInfo
	order  []string
	closed bool
}

// New connects to the spreadsheet in cfg. Extra options are passed to the
// Sheets service and take precedence over the configured credentials.
func New(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("spreadsheet id is required")
	}
	cfg = cfg.withDefaults()
	var all []option.ClientOption
	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("parse credentials %s: %w", cfg.CredentialsFile, err)
		}
		all = append(all, option.WithCredentials(creds))
	}
	all = append(all, opts...)
	srv, err := sheets.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets client: %w", err)
	}
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}
	return &Client{
		service:       srv,
		spreadsheetID: cfg.SpreadsheetID,
		cfg:           cfg,
		limiter:       rate.NewLimiter(limit, min(defaultBurst, max(cfg.RequestsPerMinute, 1))),
	}, nil
}

// Close marks the client unusable. Later calls fail with grid.ErrUnavailable.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// rateLimitReasons are the 403 reasons that mean "slow down" rather than
// "not allowed".
var rateLimitReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"quotaExceeded":         true,
}

func retryable(err error) bool {
	var gErr *googleapi.Error
	if !errors.As(err, &gErr) {
		return false
	}
	switch gErr.Code {
	case http.StatusTooManyRequests:
		return true
	case http.StatusForbidden:
		for _, item := range gErr.Errors {
			if rateLimitReasons[item.Reason] {
				return true
			}
		}
		return false
	}
	return gErr.Code >= 500
}

// do runs call under the rate limiter, retrying quota and server errors.
func (c *Client) do(ctx context.Context, op string, call func(context.Context) error) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return fmt.Errorf("%w: client closed", grid.ErrUnavailable)
	}

	var err error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		err = call(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return c.wrap(ctx, op, err)
		}
		backoff := min(c.cfg.BaseBackoff<<attempt, c.cfg.MaxBackoff)
		log.WithFields(log.Fields{
			"op":      op,
			"attempt": attempt + 1,
		}).Warnf("Rate limited by Google Sheets API, retrying in %v...", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("%s failed after %d retries: %w", op, c.cfg.MaxRetries, err)
}

func (c *Client) wrap(ctx context.Context, op string, err error) error {
	var gErr *googleapi.Error
	switch {
	case errors.As(err, &gErr):
		return fmt.Errorf("%s: %w", op, err)
	case ctx.Err() != nil:
		return ctx.Err()
	}
	return fmt.Errorf("%w: %s: %v", grid.ErrUnavailable, op, err)
}

// refresh reloads sheet properties.
func (c *Client) refresh(ctx context.Context) error {
	var ss *sheets.Spreadsheet
	err := c.do(ctx, "get spreadsheet", func(ctx context.Context) error {
		var err error
		ss, err = c.service.Spreadsheets.Get(c.spreadsheetID).
			Fields("sheets.properties").Context(ctx).Do()
		return err
	})
	if err != nil {
		return err
	}
	meta := make(map[string]sheetInfo, len(ss.Sheets))
	order := make([]string, 0, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties == nil {
			continue
		}
		meta[sh.Properties.Title] = infoFrom(sh.Properties)
		order = append(order, sh.Properties.Title)
	}
	c.mu.Lock()
	c.meta, c.order = meta, order
	c.mu.Unlock()
	return nil
}

// lookup returns a sheet's cached properties, reloading them once on a miss.
func (c *Client) lookup(ctx context.Context, sheet string) (sheetInfo, error) {
	c.mu.Lock()
	info, ok := c.meta[sheet]
	c.mu.Unlock()
	if ok {
		return info, nil
	}
	if err := c.refresh(ctx); err != nil {
		return sheetInfo{}, err
	}
	c.mu.Lock()
	info, ok = c.meta[sheet]
	c.mu.Unlock()
	if !ok {
		return sheetInfo{}, fmt.Errorf("%w: %s", grid.ErrSheetNotFound, sheet)
	}
	return info, nil
}

// reload refreshes the cache and returns the sheet's current properties.
// Other writers may have resized the sheet since it was cached.
func (c *Client) reload(ctx context.Context, sheet string) (sheetInfo, error) {
	if err := c.refresh(ctx); err != nil {
		return sheetInfo{}, err
	}
	return c.lookup(ctx, sheet)
}

func (c *Client) Values(ctx context.Context, sheet string, r grid.Range) ([][]any, error) {
	info, err := c.lookup(ctx, sheet)
	if err != nil {
		return nil, err
	}
	fr, _ := r.Origin()
	if info.rows > 0 && (int64(fr) > info.rows || int64(r.ToRow) > info.rows) {
		if info, err = c.reload(ctx, sheet); err != nil {
			return nil, err
		}
	}
	if info.rows > 0 && int64(fr) > info.rows {
		return nil, nil
	}
	if info.rows > 0 && int64(r.ToRow) > info.rows {
		r.ToRow = int(info.rows)
	}
	a1 := r.A1(sheet)
	var resp *sheets.ValueRange
	err = c.do(ctx, "get "+a1, func(ctx context.Context) error {
		var err error
		resp, err = c.service.Spreadsheets.Values.Get(c.spreadsheetID, a1).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([][]any, len(resp.Values))
	for i, row := range resp.Values {
		out[i] = []any(row)
	}
	return grid.Trim(out), nil
}

// cells converts nil to "", which the API treats as a cleared cell rather
// than one to skip.
func cells(values [][]any) [][]interface{} {
	out := make([][]interface{}, len(values))
	for i, row := range values {
		out[i] = make([]interface{}, len(row))
		for j, v := range row {
			if v == nil {
				v = ""
			}
			out[i][j] = v
		}
	}
	return out
}

// extent returns the last row and column values occupy when placed at r.
func extent(r grid.Range, values [][]any) (rows, cols int) {
	fr, fc := r.Origin()
	width := 0
	for _, row := range values {
		width = max(width, len(row))
	}
	return fr + len(values) - 1, fc + width - 1
}

// ensureGrid appends rows and columns so that the sheet reaches rows x cols.
func (c *Client) ensureGrid(ctx context.Context, sheet string, rows, cols int) error {
	info, err := c.lookup(ctx, sheet)
	if err != nil {
		return err
	}
	if int64(rows) > info.rows || int64(cols) > info.cols {
		if info, err = c.reload(ctx, sheet); err != nil {
			return err
		}
	}
	var reqs []*sheets.Request
	if extra := int64(rows) - info.rows; extra > 0 {
		reqs = append(reqs, appendDimension(info.id, dimensionRows, extra))
	}
	if extra := int64(cols) - info.cols; extra > 0 {
		reqs = append(reqs, appendDimension(info.id, dimensionColumns, extra))
	}
	if len(reqs) == 0 {
		return nil
	}
	log.WithFields(log.Fields{"sheet": sheet, "rows": rows, "cols": cols}).Debug("expanding sheet grid")
	if err := c.batchUpdate(ctx, "expand "+sheet, reqs); err != nil {
		return err
	}
	c.mu.Lock()
	info.rows, info.cols = max(info.rows, int64(rows)), max(info.cols, int64(cols))
	c.meta[sheet] = info
	c.mu.Unlock()
	return nil
}

func appendDimension(id int64, dim string, n int64) *sheets.Request {
	return &sheets.Request{AppendDimension: &sheets.AppendDimensionRequest{
		SheetId:         id,
		Dimension:       dim,
		Length:          n,
		ForceSendFields: []string{"SheetId"},
	}}
}

func (c *Client) batchUpdate(ctx context.Context, op string, reqs []*sheets.Request) error {
	return c.do(ctx, op, func(ctx context.Context) error {
		_, err := c.service.Spreadsheets.BatchUpdate(c.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: reqs,
		}).Context(ctx).Do()
		return err
	})
}

func (c *Client) Write(ctx context.Context, sheet string, r grid.Range, values [][]any) error {
	if len(values) == 0 {
		return nil
	}
	rows, cols := extent(r, values)
	if err := c.ensureGrid(ctx, sheet, rows, cols); err != nil {
		return err
	}
	a1 := r.A1(sheet)
	return c.do(ctx, "update "+a1, func(ctx context.Context) error {
		_, err := c.service.Spreadsheets.Values.Update(c.spreadsheetID, a1, &sheets.ValueRange{
			Values: cells(values),
		}).ValueInputOption(c.cfg.ValueInputOption).Context(ctx).Do()
		return err
	})
}

func (c *Client) BatchWrite(ctx context.Context, sheet string, updates []grid.Update) error {
	if len(updates) == 0 {
		return nil
	}
	rows, cols := 0, 0
	data := make([]*sheets.ValueRange, len(updates))
	for i, u := range updates {
		r, cl := extent(u.Range, u.Values)
		rows, cols = max(rows, r), max(cols, cl)
		data[i] = &sheets.ValueRange{Range: u.Range.A1(sheet), Values: cells(u.Values)}
	}
	if err := c.ensureGrid(ctx, sheet, rows, cols); err != nil {
		return err
	}
	return c.do(ctx, "batch update "+sheet, func(ctx context.Context) error {
		_, err := c.service.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, &sheets.BatchUpdateValuesRequest{
			ValueInputOption: c.cfg.ValueInputOption,
			Data:             data,
		}).Context(ctx).Do()
		return err
	})
}

func (c *Client) Clear(ctx context.Context, sheet string, r grid.Range) error {
	if _, err := c.lookup(ctx, sheet); err != nil {
		return err
	}
	a1 := r.A1(sheet)
	return c.do(ctx, "clear "+a1, func(ctx context.Context) error {
		_, err := c.service.Spreadsheets.Values.Clear(c.spreadsheetID, a1, &sheets.ClearValuesRequest{}).
			Context(ctx).Do()
		return err
	})
}

func (c *Client) SheetExists(ctx context.Context, sheet string) (bool, error) {
	_, err := c.lookup(ctx, sheet)
	if errors.Is(err, grid.ErrSheetNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (c *Client) CreateSheet(ctx context.Context, sheet string, rows, cols int) error {
	ok, err := c.SheetExists(ctx, sheet)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: %s", grid.ErrSheetExists, sheet)
	}
	err = c.batchUpdate(ctx, "add sheet "+sheet, []*sheets.Request{{
		AddSheet: &sheets.AddSheetRequest{
			Properties: &sheets.SheetProperties{
				Title: sheet,
				GridProperties: &sheets.GridProperties{
					RowCount:    int64(rows),
					ColumnCount: int64(cols),
				},
			},
		},
	}})
	if err != nil {
		return err
	}
	return c.refresh(ctx)
}

func (c *Client) DropSheet(ctx context.Context, sheet string) error {
	info, err := c.lookup(ctx, sheet)
	if err != nil {
		return err
	}
	err = c.batchUpdate(ctx, "delete sheet "+sheet, []*sheets.Request{{
		DeleteSheet: &sheets.DeleteSheetRequest{
			SheetId:         info.id,
			ForceSendFields: []string{"SheetId"},
		},
	}})
	if err != nil {
		return err
	}
	return c.refresh(ctx)
}

func (c *Client) SheetNames(ctx context.Context) ([]string, error) {
	if err := c.refresh(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.order...), nil
}

var _ grid.Store = (*Client)(nil)
