package api

import (
	"sheetsdb/pkg/schema"
	"sheetsdb/pkg/table"
)

// Database is what the handlers need from db.DB.
type Database interface {
	Tables() []string
	Table(name string) (*table.Table, error)
}

type columnInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Order      int    `json:"order"`
	PrimaryKey bool   `json:"primary_key,omitempty"`
	Default    any    `json:"default,omitempty"`
}

type tableInfo struct {
	Name    string       `json:"name"`
	Sheet   string       `json:"sheet"`
	Columns []columnInfo `json:"columns"`
}

func describe(t *table.Table) tableInfo {
	s := t.Schema()
	info := tableInfo{Name: s.Name(), Sheet: t.SheetName()}
	for _, c := range s.Columns() {
		info.Columns = append(info.Columns, columnInfo{
			Name:       c.Name,
			Type:       c.Type.String(),
			Order:      c.OrderNumber,
			PrimaryKey: c.PrimaryKey,
			Default:    c.Default,
		})
	}
	return info
}

type recordResponse struct {
	Index  int             `json:"index"`
	PK     any             `json:"pk,omitempty"`
	Fields schema.NamedRow `json:"fields"`
}

func toResponse(r *table.Record) recordResponse {
	return recordResponse{Index: r.Index, PK: r.PK(), Fields: r.Named()}
}

func toResponses(recs []*table.Record) []recordResponse {
	out := make([]recordResponse, len(recs))
	for i, r := range recs {
		out[i] = toResponse(r)
	}
	return out
}

// writeRequest carries positional values and named fields for insert and
// update.
type writeRequest struct {
	Values     schema.Row      `json:"values"`
	Fields     schema.NamedRow `json:"fields"`
	GeneratePK *bool           `json:"generate_pk,omitempty"`
}

type upsertRequest struct {
	Filter    schema.NamedRow `json:"filter"`
	Update    schema.NamedRow `json:"update"`
	FirstOnly bool            `json:"first_only"`
}

type batchRequest struct {
	Rows []schema.Row `json:"rows"`
}

type errorResponse struct {
	Error string `json:"error"`
}
