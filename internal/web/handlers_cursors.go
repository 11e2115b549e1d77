package web

// handlers_cursors.go exposes server-side cursors: a query manager kept
// alive between requests so a client can filter once and then act on the
// stored range set.

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/sheetq/internal/core"
	"github.com/JonMunkholm/sheetq/internal/query"
)

// handleOpenCursor opens an unfiltered cursor on {"sheet"}.
func (s *Server) handleOpenCursor(w http.ResponseWriter, r *http.Request) {
	var req openCursorRequest
	if err := s.decodeBody(w, r, openCursorSchema, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	info, err := s.service.OpenCursor(r.Context(), req.Sheet)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/cursors/"+info.ID)
	writeJSON(w, r, http.StatusCreated, info)
}

// handleGetCursor returns a cursor's state.
func (s *Server) handleGetCursor(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.Cursor(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, info)
}

// handleCloseCursor drops a cursor.
func (s *Server) handleCloseCursor(w http.ResponseWriter, r *http.Request) {
	if err := s.service.CloseCursor(chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCursorFilter replaces the cursor's range set with the rows matching
// {"where"}.
func (s *Server) handleCursorFilter(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := s.decodeBody(w, r, whereBodySchema, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	info, err := s.service.CursorFilter(r.Context(), chi.URLParam(r, "id"), req.Where)
	s.respondCursor(w, r, info, err)
}

// handleCursorRefresh re-runs the stored where-clause.
func (s *Server) handleCursorRefresh(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.CursorRefresh(r.Context(), chi.URLParam(r, "id"))
	s.respondCursor(w, r, info, err)
}

// handleCursorClear drops the range set and where-clause.
func (s *Server) handleCursorClear(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.CursorClear(r.Context(), chi.URLParam(r, "id"))
	s.respondCursor(w, r, info, err)
}

// fetchResponse carries the records of a cursor fetch.
type fetchResponse struct {
	Records []query.Record `json:"records"`
}

// handleCursorFetch returns the cursor's rows restricted to {"fields"}.
func (s *Server) handleCursorFetch(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := s.decodeBody(w, r, fetchSchema, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	recs, err := s.service.CursorFetch(r.Context(), chi.URLParam(r, "id"), req.Fields)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, fetchResponse{Records: recs})
}

// handleCursorUpdate merges {"record"} into every row of the cursor.
func (s *Server) handleCursorUpdate(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := s.decodeBody(w, r, recordBodySchema, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	info, err := s.service.CursorUpdate(WithRequestMetadata(r.Context(), r), chi.URLParam(r, "id"), req.Record)
	s.respondCursor(w, r, info, err)
}

// cursorDeleteResponse reports a cursor delete.
type cursorDeleteResponse struct {
	Deleted int             `json:"deleted"`
	Cursor  core.CursorInfo `json:"cursor"`
}

// handleCursorDelete deletes every row of the cursor. On a partial failure
// the response still reports how many rows were deleted.
func (s *Server) handleCursorDelete(w http.ResponseWriter, r *http.Request) {
	n, info, err := s.service.CursorDelete(WithRequestMetadata(r.Context(), r), chi.URLParam(r, "id"))
	if err != nil {
		if n > 0 {
			logWarn(r, "cursor delete stopped early", err, "deleted", n)
		}
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, cursorDeleteResponse{Deleted: n, Cursor: info})
}

// upsertResponse reports what an upsert did.
type upsertResponse struct {
	Outcome query.Outcome   `json:"outcome"`
	Cursor  core.CursorInfo `json:"cursor"`
}

// handleCursorUpsert updates the cursor's rows, or inserts {"record"} per
// {"mode"} when it matched nothing.
func (s *Server) handleCursorUpsert(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if err := s.decodeBody(w, r, upsertSchema, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	mode, err := core.ParseUpsertMode(req.Mode)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	out, info, err := s.service.CursorUpsert(WithRequestMetadata(r.Context(), r), chi.URLParam(r, "id"), req.Record, mode)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, upsertResponse{Outcome: out, Cursor: info})
}

func (s *Server) respondCursor(w http.ResponseWriter, r *http.Request, info core.CursorInfo, err error) {
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, info)
}
