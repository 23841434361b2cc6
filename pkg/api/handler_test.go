package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sheetsdb/pkg/config"
	"sheetsdb/pkg/db"
	"sheetsdb/pkg/grid"
	"sheetsdb/pkg/schema"
	"sheetsdb/pkg/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T, store grid.Store) *db.DB {
	t.Helper()
	d, err := db.New(store, schema.NewRegistry(), []config.TableConfig{{
		Name: "People",
		Fields: []config.FieldConfig{
			{Name: "id", PrimaryKey: true},
			{Name: "first_name"},
			{Name: "last_name"},
		},
	}})
	require.NoError(t, err)
	return d
}

func newTestServer(t *testing.T) (*httptest.Server, *grid.Memory) {
	t.Helper()
	store := grid.NewMemory("People")
	srv := httptest.NewServer(GetRouter(newTestDB(t, store)))
	t.Cleanup(srv.Close)
	return srv, store
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func TestIndexAndTables(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := do(t, srv, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"service":"sheetsdb","tables":["People"]}`, body)

	status, body = do(t, srv, http.MethodGet, "/tables", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[{"name":"People","sheet":"People","columns":[
		{"name":"id","type":"int","order":1,"primary_key":true},
		{"name":"first_name","type":"text","order":2},
		{"name":"last_name","type":"text","order":3}
	]}]`, body)
}

func TestRecordLifecycle(t *testing.T) {
	srv, store := newTestServer(t)

	status, body := do(t, srv, http.MethodPost, "/tables/People/records", `{"values":["Name","Surname"]}`)
	require.Equal(t, http.StatusCreated, status, body)
	assert.JSONEq(t, `{"index":1,"pk":1,"fields":{"id":1,"first_name":"Name","last_name":"Surname"}}`, body)

	status, body = do(t, srv, http.MethodPut, "/tables/People/records/1", `{"values":["New","Surname2"]}`)
	require.Equal(t, http.StatusOK, status, body)
	values, err := store.Values(t.Context(), "People", grid.Range{})
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"1", "New", "Surname2"}}, values)

	status, body = do(t, srv, http.MethodGet, "/tables/People/records/1", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"index":1,"pk":"1","fields":{"id":"1","first_name":"New","last_name":"Surname2"}}`, body)

	status, body = do(t, srv, http.MethodPost, "/tables/People/upsert", `{"filter":{"pk":5},"update":{"first_name":"X"}}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.JSONEq(t, `[{"index":2,"pk":5,"fields":{"id":5,"first_name":"X","last_name":""}}]`, body)

	status, body = do(t, srv, http.MethodGet, "/tables/People/count", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"count":2}`, body)

	status, body = do(t, srv, http.MethodGet, "/tables/People/records", "")
	require.Equal(t, http.StatusOK, status)
	var recs []recordResponse
	require.NoError(t, json.Unmarshal([]byte(body), &recs))
	require.Len(t, recs, 2)
	assert.Equal(t, "X", recs[1].Fields["first_name"])

	status, body = do(t, srv, http.MethodPost, "/tables/People/batch", `{"rows":[["7","a","b"],["8"]]}`)
	require.Equal(t, http.StatusCreated, status, body)
	assert.JSONEq(t, `{"next_index":5}`, body)

	status, _ = do(t, srv, http.MethodDelete, "/tables/People/records", "")
	require.Equal(t, http.StatusNoContent, status)
	status, body = do(t, srv, http.MethodGet, "/tables/People/count", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"count":0}`, body)
}

func TestErrorStatus(t *testing.T) {
	srv, _ := newTestServer(t)
	_, _ = do(t, srv, http.MethodPost, "/tables/People/records", `{"values":["a","b"]}`)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown table", http.MethodGet, "/tables/Nope/records", "", http.StatusNotFound},
		{"missing record", http.MethodGet, "/tables/People/records/42", "", http.StatusNotFound},
		{"update missing record", http.MethodPut, "/tables/People/records/42", `{"values":["x"]}`, http.StatusNotFound},
		{"duplicate pk", http.MethodPost, "/tables/People/records", `{"fields":{"id":1},"generate_pk":false}`, http.StatusConflict},
		{"row too long", http.MethodPost, "/tables/People/records", `{"values":[1,2,3,4]}`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/tables/People/records", `{"fields":{"age":3}}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/tables/People/records", `{"values":`, http.StatusBadRequest},
		{"unknown body key", http.MethodPost, "/tables/People/upsert", `{"where":{}}`, http.StatusBadRequest},
		{"batch too long", http.MethodPost, "/tables/People/batch", `{"rows":[[1,2,3,4]]}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, status, body)
			assert.Contains(t, body, `"error"`)
		})
	}
}

func TestUnavailableStore(t *testing.T) {
	srv := httptest.NewServer(GetRouter(newTestDB(t, nil)))
	defer srv.Close()

	status, body := do(t, srv, http.MethodGet, "/tables/People/count", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, body, grid.ErrUnavailable.Error())
}

func TestListTablesError(t *testing.T) {
	m := &mockDatabase{
		TablesFunc: func() []string { return []string{"Ghost"} },
		TableFunc: func(name string) (*table.Table, error) {
			return nil, fmt.Errorf("%w: %s", db.ErrUnknownTable, name)
		},
	}
	srv := httptest.NewServer(GetRouter(m))
	defer srv.Close()

	status, _ := do(t, srv, http.MethodGet, "/tables", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{db.ErrUnknownTable, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", table.ErrRecordNotFound), http.StatusNotFound},
		{grid.ErrSheetNotFound, http.StatusNotFound},
		{table.ErrDuplicatePrimaryKey, http.StatusConflict},
		{schema.ErrUnknownField, http.StatusBadRequest},
		{schema.ErrRowTooLong, http.StatusBadRequest},
		{schema.ErrMissingPrimaryKey, http.StatusBadRequest},
		{grid.ErrUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
