package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"

	"github.com/JonMunkholm/sheetq/internal/config"
	"github.com/JonMunkholm/sheetq/internal/core"
	"github.com/JonMunkholm/sheetq/internal/sheet"
	"github.com/JonMunkholm/sheetq/internal/sheet/memstore"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(func(string) string { return "" })
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	cfg.Rate.Enabled = false
	return *cfg
}

func newTestServer(t *testing.T, cfg config.Config) (*Server, *memstore.Store) {
	t.Helper()
	mem := memstore.New()
	mem.Load("people", [][]sheet.Value{
		{"name", "age", "id", "is_active"},
		{"Alice", 28, 1, true},
		{"Bob", 35, 2, true},
		{"Charlie", 23, 3, false},
	})
	return NewServer(core.NewService(mem, core.Options{}), cfg), mem
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestListSheets(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t))

	rec := do(t, s, http.MethodGet, "/api/sheets", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	got := decode[[]core.SheetInfo](t, rec)
	if len(got) != 1 || got[0].Name != "people" || got[0].Rows != 3 {
		t.Errorf("sheets = %+v", got)
	}
}

func TestQuery(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t))

	rec := do(t, s, http.MethodPost, "/api/sheets/people/query",
		`{"where": {"age": {"gte": 25}, "is_active": true}, "fields": ["name"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	got := decode[struct {
		Ranges  []string         `json:"ranges"`
		Records []map[string]any `json:"records"`
		Where   json.RawMessage  `json:"where"`
	}](t, rec)

	if !reflect.DeepEqual(got.Ranges, []string{"A2:D2", "A3:D3"}) {
		t.Errorf("ranges = %v", got.Ranges)
	}
	if len(got.Records) != 2 || got.Records[0]["name"] != "Alice" || got.Records[1]["name"] != "Bob" {
		t.Errorf("records = %v", got.Records)
	}
	if string(got.Where) != `{"age":{"gte":25},"is_active":true}` {
		t.Errorf("where echo = %s", got.Where)
	}
}

func TestQuery_Errors(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t))

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"unknown sheet", "/api/sheets/missing/query", `{}`, http.StatusNotFound, "SHEET001"},
		{"unknown column", "/api/sheets/people/query", `{"where": {"email": "x"}}`, http.StatusBadRequest, "COL001"},
		{"unknown operator", "/api/sheets/people/query", `{"where": {"age": {"like": 3}}}`, http.StatusBadRequest, "OP001"},
		{"bad operand", "/api/sheets/people/query", `{"where": {"age": {"between": 3}}}`, http.StatusBadRequest, "OP002"},
		{"where not an object", "/api/sheets/people/query", `{"where": [1]}`, http.StatusBadRequest, "REQ001"},
		{"unknown body field", "/api/sheets/people/query", `{"limit": 3}`, http.StatusBadRequest, "REQ001"},
		{"malformed json", "/api/sheets/people/query", `{"where":`, http.StatusBadRequest, "REQ001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body)
			}
			if got := decode[ErrorResponse](t, rec); got.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestMutations(t *testing.T) {
	s, mem := newTestServer(t, testConfig(t))

	rec := do(t, s, http.MethodPost, "/api/sheets/people/append", `{"record": {"name": "Zoe", "age": 30}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("append status = %d, body %s", rec.Code, rec.Body)
	}

	rec = do(t, s, http.MethodPost, "/api/sheets/people/update",
		`{"where": {"name": "Zoe"}, "record": {"is_active": true}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body)
	}
	if got := decode[mutationResponse](t, rec); got.Rows != 1 {
		t.Errorf("updated rows = %d, want 1", got.Rows)
	}

	rows, _ := mem.Rows("people")
	want := []sheet.Value{"Zoe", 30, "", true}
	if !reflect.DeepEqual(rows[4], want) {
		t.Errorf("appended row = %#v, want %#v", rows[4], want)
	}

	rec = do(t, s, http.MethodPost, "/api/sheets/people/delete", `{"where": {"is_active": false}}`)
	if got := decode[mutationResponse](t, rec); got.Rows != 1 {
		t.Errorf("deleted rows = %d, want 1", got.Rows)
	}

	rec = do(t, s, http.MethodPost, "/api/sheets/people/prepend", `{"record": {}}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty record status = %d, want 400", rec.Code)
	}
}

func TestCreateSheet(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t))

	rec := do(t, s, http.MethodPost, "/api/sheets", `{"name": "tasks", "columns": ["title", "done"]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if got := decode[core.SheetInfo](t, rec); !reflect.DeepEqual(got.Columns, []string{"title", "done"}) {
		t.Errorf("created = %+v", got)
	}

	rec = do(t, s, http.MethodPost, "/api/sheets", `{"name": "tasks", "columns": ["x"]}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", rec.Code)
	}
	rec = do(t, s, http.MethodPost, "/api/sheets", `{"name": "a/b", "columns": ["x"]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("slash name status = %d, want 400", rec.Code)
	}
}

func TestCursorFlow(t *testing.T) {
	s, mem := newTestServer(t, testConfig(t))

	rec := do(t, s, http.MethodPost, "/api/cursors", `{"sheet": "people"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("open status = %d, body %s", rec.Code, rec.Body)
	}
	id := decode[core.CursorInfo](t, rec).ID
	base := "/api/cursors/" + id

	rec = do(t, s, http.MethodPost, base+"/filter", `{"where": {"name": "Dana"}}`)
	if info := decode[core.CursorInfo](t, rec); !info.Filtered || info.Rows != 0 {
		t.Errorf("filter = %+v", info)
	}

	rec = do(t, s, http.MethodPost, base+"/upsert", `{"record": {"name": "Dana", "age": 41}, "mode": "prepend"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert status = %d, body %s", rec.Code, rec.Body)
	}
	if got := decode[upsertResponse](t, rec); got.Outcome != "prepended" {
		t.Errorf("outcome = %s", got.Outcome)
	}

	rec = do(t, s, http.MethodPost, base+"/refresh", "")
	if info := decode[core.CursorInfo](t, rec); !reflect.DeepEqual(info.Ranges, []string{"A2:D2"}) {
		t.Errorf("refresh ranges = %v", info.Ranges)
	}

	rec = do(t, s, http.MethodPost, base+"/fetch", `{"fields": ["age"]}`)
	if got := decode[fetchResponse](t, rec); len(got.Records) != 1 || got.Records[0]["age"] != 41 {
		t.Errorf("fetch = %+v", got)
	}

	rec = do(t, s, http.MethodPost, base+"/delete", "")
	if got := decode[cursorDeleteResponse](t, rec); got.Deleted != 1 {
		t.Errorf("deleted = %d, want 1", got.Deleted)
	}
	if rows, _ := mem.Rows("people"); rows[1][0] != "Alice" {
		t.Errorf("first row after delete = %v", rows[1])
	}

	if rec = do(t, s, http.MethodDelete, base, ""); rec.Code != http.StatusNoContent {
		t.Errorf("close status = %d", rec.Code)
	}
	rec = do(t, s, http.MethodGet, base, "")
	if rec.Code != http.StatusNotFound || decode[ErrorResponse](t, rec).Code != "CUR001" {
		t.Errorf("closed cursor status = %d body %s", rec.Code, rec.Body)
	}
}

func TestCursorUpsert_BadMode(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t))
	id := decode[core.CursorInfo](t, do(t, s, http.MethodPost, "/api/cursors", `{"sheet": "people"}`)).ID

	rec := do(t, s, http.MethodPost, "/api/cursors/"+id+"/upsert", `{"record": {"name": "x"}, "mode": "insert"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSheetView(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t))

	rec := do(t, s, http.MethodGet, "/sheets/people?where="+url.QueryEscape(`{"name": {"match": "^[AB]"}}`), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	body := rec.Body.String()
	for _, want := range []string{"<!DOCTYPE html>", "<th>is_active</th>", "<td>Alice</td>", "<td>Bob</td>", "A3:D3"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if strings.Contains(body, "Charlie") {
		t.Error("filtered row rendered")
	}

	req := httptest.NewRequest(http.MethodGet, "/sheets/people", nil)
	req.Header.Set("HX-Request", "true")
	hx := httptest.NewRecorder()
	s.Router().ServeHTTP(hx, req)
	if strings.Contains(hx.Body.String(), "<!DOCTYPE html>") {
		t.Error("HTMX request got full page")
	}
}

func TestSheetView_NotFoundHTMX(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t))

	req := httptest.NewRequest(http.MethodGet, "/sheets/missing", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Code: SHEET001") {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestExport(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t))

	rec := do(t, s, http.MethodGet, "/api/sheets/people/export?where="+url.QueryEscape(`{"is_active": false}`), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	want := "name,age,id,is_active\nCharlie,23,3,FALSE\n"
	if rec.Body.String() != want {
		t.Errorf("export = %q, want %q", rec.Body.String(), want)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t))

	rec := do(t, s, http.MethodGet, "/healthz", "")
	got := decode[healthResponse](t, rec)
	if got.Status != "ok" || got.Scans.MaxConcurrent != core.DefaultMaxConcurrentScans {
		t.Errorf("health = %+v", got)
	}

	do(t, s, http.MethodGet, "/api/sheets", "")
	rec = do(t, s, http.MethodGet, "/metrics", "")
	if !strings.Contains(rec.Body.String(), "sheetq_http_requests_total") {
		t.Error("metrics output missing request counter")
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Rate.Enabled = true
	cfg.Rate.RequestsPerMinute = 1
	cfg.Rate.Burst = 2
	s, _ := newTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		if rec := do(t, s, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec := do(t, s, http.MethodGet, "/api/sheets", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec); got.Code != "RATE001" {
		t.Errorf("code = %q, want RATE001", got.Code)
	}
}

func TestBodyLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.MaxBodyBytes = 16
	s, _ := newTestServer(t, cfg)

	rec := do(t, s, http.MethodPost, "/api/sheets/people/query", `{"where": {"name": "a long enough value"}}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
