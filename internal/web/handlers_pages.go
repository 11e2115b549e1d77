package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/sheetq/internal/core"
	"github.com/JonMunkholm/sheetq/internal/web/templates"
)

// handleIndex renders the sheet listing page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sheets, err := s.service.ListSheets(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.Layout("Sheets", templates.SheetIndex(sheets)).Render(r.Context(), w)
}

// handleSheetView renders a sheet as an HTML table, filtered by the optional
// ?where= clause. HTMX requests get the table fragment only.
func (s *Server) handleSheetView(w http.ResponseWriter, r *http.Request) {
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

	table := templates.SheetTable(info, res.Ranges, res.Records)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if isHTMX(r) {
		table.Render(r.Context(), w)
		return
	}
	templates.Layout(info.Name, table).Render(r.Context(), w)
}

// healthResponse is the /healthz body.
type healthResponse struct {
	Status  string                 `json:"status"`
	Cursors int                    `json:"cursors"`
	Scans   core.ScanLimiterStatus `json:"scans"`
}

// handleHealth reports liveness plus cursor and scan load.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, healthResponse{
		Status:  "ok",
		Cursors: s.service.CursorCount(),
		Scans:   s.service.Scans().Status(),
	})
}
