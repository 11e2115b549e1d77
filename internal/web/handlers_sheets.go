package web

// handlers_sheets.go serves the stateless sheet endpoints. Each request opens
// a fresh query manager, so no row numbers are kept between calls.

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/sheetq/internal/core"
	"github.com/JonMunkholm/sheetq/internal/query"
	"github.com/JonMunkholm/sheetq/internal/sheet"
)

// handleListSheets returns every sheet with its columns and row count.
func (s *Server) handleListSheets(w http.ResponseWriter, r *http.Request) {
	sheets, err := s.service.ListSheets(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sheets)
}

// handleCreateSheet creates an empty sheet from {"name", "columns"}.
func (s *Server) handleCreateSheet(w http.ResponseWriter, r *http.Request) {
	var req createSheetRequest
	if err := s.decodeBody(w, r, createSheetSchema, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	if err := s.service.CreateSheet(ctx, req.Name, req.Columns); err != nil {
		s.respondError(w, r, err)
		return
	}
	info, err := s.service.Describe(ctx, req.Name)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, info)
}

// handleDescribeSheet returns one sheet's columns and row count.
func (s *Server) handleDescribeSheet(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.Describe(r.Context(), chi.URLParam(r, "sheet"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, info)
}

// handleQuery filters a sheet and returns the matching records.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := s.decodeBody(w, r, querySchema, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	res, err := s.service.Query(r.Context(), chi.URLParam(r, "sheet"), req.Where, req.Fields)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// insertResponse reports the outcome of an append or prepend.
type insertResponse struct {
	Sheet   string        `json:"sheet"`
	Outcome query.Outcome `json:"outcome"`
}

// handleAppend adds {"record"} below the last row.
func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	s.handleInsert(w, r, query.OutcomeAppended)
}

// handlePrepend inserts {"record"} as the first data row.
func (s *Server) handlePrepend(w http.ResponseWriter, r *http.Request) {
	s.handleInsert(w, r, query.OutcomePrepended)
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request, outcome query.Outcome) {
	var req queryRequest
	if err := s.decodeBody(w, r, recordBodySchema, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	name := chi.URLParam(r, "sheet")
	ctx := WithRequestMetadata(r.Context(), r)
	var err error
	if outcome == query.OutcomePrepended {
		err = s.service.Prepend(ctx, name, req.Record)
	} else {
		err = s.service.Append(ctx, name, req.Record)
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, insertResponse{Sheet: name, Outcome: outcome})
}

// mutationResponse reports how many rows a bulk mutation touched.
type mutationResponse struct {
	Sheet string `json:"sheet"`
	Rows  int    `json:"rows"`
}

// handleUpdateWhere merges {"record"} into every row matching {"where"}.
func (s *Server) handleUpdateWhere(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := s.decodeBody(w, r, updateWhereSchema, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	name := chi.URLParam(r, "sheet")
	n, err := s.service.UpdateWhere(WithRequestMetadata(r.Context(), r), name, req.Where, req.Record)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, mutationResponse{Sheet: name, Rows: n})
}

// handleDeleteWhere deletes every row matching {"where"}.
func (s *Server) handleDeleteWhere(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := s.decodeBody(w, r, whereBodySchema, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	name := chi.URLParam(r, "sheet")
	n, err := s.service.DeleteWhere(WithRequestMetadata(r.Context(), r), name, req.Where)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, mutationResponse{Sheet: name, Rows: n})
}

// handleExport streams the rows matching the optional ?where= clause as CSV.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "sheet")
	where, err := whereParam(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	info, err := s.service.Describe(r.Context(), name)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	res, err := s.service.Query(r.Context(), name, where, nil)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	filename := fmt.Sprintf("%s_%s.csv", name, time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	cw := csv.NewWriter(w)
	cw.Write(info.Columns)
	for _, rec := range res.Records {
		line := make([]string, len(info.Columns))
		for i, col := range info.Columns {
			line[i] = sheet.Format(rec[col])
		}
		cw.Write(line)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		logWarn(r, "csv export write error", err)
	}
}

// whereParam decodes the optional ?where= query parameter.
func whereParam(r *http.Request) (query.Where, error) {
	raw := r.URL.Query().Get("where")
	if raw == "" {
		return nil, nil
	}
	var where query.Where
	if err := json.Unmarshal([]byte(raw), &where); err != nil {
		return nil, fmt.Errorf("%w: where: %v", core.ErrInvalidRequest, err)
	}
	return where, nil
}
