package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"sheetsdb/pkg/db"
	"sheetsdb/pkg/grid"
	"sheetsdb/pkg/schema"
	"sheetsdb/pkg/table"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
)

type handler struct {
	db Database
}

func (h *handler) getIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "sheetsdb",
		"tables":  h.db.Tables(),
	})
}

func (h *handler) listTables(w http.ResponseWriter, r *http.Request) {
	out := []tableInfo{}
	for _, name := range h.db.Tables() {
		t, err := h.db.Table(name)
		if err != nil {
			sendError(w, err)
			return
		}
		out = append(out, describe(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// table resolves the {table} URL parameter, answering 404 itself on failure.
func (h *handler) table(w http.ResponseWriter, r *http.Request) (*table.Table, bool) {
	t, err := h.db.Table(chi.URLParam(r, "table"))
	if err != nil {
		sendError(w, err)
		return nil, false
	}
	return t, true
}

func (h *handler) listRecords(w http.ResponseWriter, r *http.Request) {
	t, ok := h.table(w, r)
	if !ok {
		return
	}
	recs, err := t.Records(r.Context())
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponses(recs))
}

func (h *handler) getRecord(w http.ResponseWriter, r *http.Request) {
	t, ok := h.table(w, r)
	if !ok {
		return
	}
	pk := chi.URLParam(r, "pk")
	rec, err := t.WithPK(r.Context(), pk)
	if err != nil {
		sendError(w, err)
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no record with pk " + pk})
		return
	}
	writeJSON(w, http.StatusOK, toResponse(rec))
}

func (h *handler) insertRecord(w http.ResponseWriter, r *http.Request) {
	t, ok := h.table(w, r)
	if !ok {
		return
	}
	var req writeRequest
	if !decode(w, r, &req) {
		return
	}
	var opts []table.InsertOption
	if req.GeneratePK != nil {
		opts = append(opts, table.GeneratePK(*req.GeneratePK))
	}
	rec, err := t.Insert(r.Context(), req.Values, req.Fields, opts...)
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(rec))
}

func (h *handler) insertBatch(w http.ResponseWriter, r *http.Request) {
	t, ok := h.table(w, r)
	if !ok {
		return
	}
	var req batchRequest
	if !decode(w, r, &req) {
		return
	}
	next, err := t.InsertMany(r.Context(), req.Rows)
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"next_index": next})
}

func (h *handler) updateRecord(w http.ResponseWriter, r *http.Request) {
	t, ok := h.table(w, r)
	if !ok {
		return
	}
	var req writeRequest
	if !decode(w, r, &req) {
		return
	}
	rec, err := t.UpdateWithPK(r.Context(), chi.URLParam(r, "pk"), req.Values, req.Fields)
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(rec))
}

func (h *handler) upsert(w http.ResponseWriter, r *http.Request) {
	t, ok := h.table(w, r)
	if !ok {
		return
	}
	var req upsertRequest
	if !decode(w, r, &req) {
		return
	}
	recs, err := t.UpdateOrInsert(r.Context(), req.Filter, req.Update, req.FirstOnly)
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponses(recs))
}

func (h *handler) count(w http.ResponseWriter, r *http.Request) {
	t, ok := h.table(w, r)
	if !ok {
		return
	}
	n, err := t.Count(r.Context())
	if err != nil {
		sendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (h *handler) truncate(w http.ResponseWriter, r *http.Request) {
	t, ok := h.table(w, r)
	if !ok {
		return
	}
	if err := t.Truncate(r.Context()); err != nil {
		sendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, db.ErrUnknownTable),
		errors.Is(err, table.ErrRecordNotFound),
		errors.Is(err, grid.ErrSheetNotFound):
		return http.StatusNotFound
	case errors.Is(err, table.ErrDuplicatePrimaryKey):
		return http.StatusConflict
	case errors.Is(err, schema.ErrUnknownField),
		errors.Is(err, schema.ErrRowTooLong),
		errors.Is(err, schema.ErrMissingPrimaryKey):
		return http.StatusBadRequest
	case errors.Is(err, grid.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func sendError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).Error("encoding response")
		sendResponse(w, http.StatusInternalServerError, []byte(`{"error":"encoding response"}`))
		return
	}
	sendResponse(w, status, body)
}

func sendResponse(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
