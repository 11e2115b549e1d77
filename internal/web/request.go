package web

// request.go decodes and validates JSON request bodies.
//
// Each endpoint with a body has a JSON Schema compiled once at init. The raw
// body is validated against it first, so shape errors (a where-clause that
// is not an object, a non-string field name) are reported together with
// their JSON paths before anything reaches the service.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/JonMunkholm/sheetq/internal/core"
	"github.com/JonMunkholm/sheetq/internal/query"
)

// criterion is a scalar (equality) or an operator map.
const criterionSchema = `{
	"oneOf": [
		{"type": ["string", "number", "boolean", "null"]},
		{"type": "object", "minProperties": 1}
	]
}`

var (
	whereSchema  = `{"type": "object", "additionalProperties": ` + criterionSchema + `}`
	recordSchema = `{
		"type": "object",
		"minProperties": 1,
		"additionalProperties": {"type": ["string", "number", "boolean", "null"]}
	}`
	fieldsSchema = `{"type": "array", "items": {"type": "string", "minLength": 1}}`
)

var (
	createSheetSchema = mustSchema(`{
		"type": "object",
		"required": ["name", "columns"],
		"properties": {
			"name": {"type": "string", "minLength": 1, "pattern": "^[^/\\\\]+$"},
			"columns": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}}
		},
		"additionalProperties": false
	}`)

	querySchema = mustSchema(`{
		"type": "object",
		"properties": {"where": ` + whereSchema + `, "fields": ` + fieldsSchema + `},
		"additionalProperties": false
	}`)

	recordBodySchema = mustSchema(`{
		"type": "object",
		"required": ["record"],
		"properties": {"record": ` + recordSchema + `},
		"additionalProperties": false
	}`)

	updateWhereSchema = mustSchema(`{
		"type": "object",
		"required": ["where", "record"],
		"properties": {"where": ` + whereSchema + `, "record": ` + recordSchema + `},
		"additionalProperties": false
	}`)

	whereBodySchema = mustSchema(`{
		"type": "object",
		"required": ["where"],
		"properties": {"where": ` + whereSchema + `},
		"additionalProperties": false
	}`)

	fetchSchema = mustSchema(`{
		"type": "object",
		"properties": {"fields": ` + fieldsSchema + `},
		"additionalProperties": false
	}`)

	openCursorSchema = mustSchema(`{
		"type": "object",
		"required": ["sheet"],
		"properties": {"sheet": {"type": "string", "minLength": 1}},
		"additionalProperties": false
	}`)

	upsertSchema = mustSchema(`{
		"type": "object",
		"required": ["record"],
		"properties": {
			"record": ` + recordSchema + `,
			"mode": {"enum": ["append", "prepend"]}
		},
		"additionalProperties": false
	}`)
)

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("web: invalid request schema: %v", err))
	}
	return schema
}

// Request bodies. Fields absent from a given endpoint's schema stay zero.
type (
	createSheetRequest struct {
		Name    string   `json:"name"`
		Columns []string `json:"columns"`
	}

	queryRequest struct {
		Where  query.Where  `json:"where"`
		Fields []string     `json:"fields"`
		Record query.Record `json:"record"`
	}

	openCursorRequest struct {
		Sheet string `json:"sheet"`
	}

	upsertRequest struct {
		Record query.Record `json:"record"`
		Mode   string       `json:"mode"`
	}
)

// decodeBody reads r's body, validates it against schema and decodes it into
// dst. An empty body is treated as {}. Failures wrap core.ErrInvalidRequest.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, schema *gojsonschema.Schema, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: body exceeds %d bytes", core.ErrInvalidRequest, tooLarge.Limit)
		}
		return fmt.Errorf("%w: read body: %v", core.ErrInvalidRequest, err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		body = []byte("{}")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("%w: malformed JSON: %v", core.ErrInvalidRequest, err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return fmt.Errorf("%w: %s", core.ErrInvalidRequest, strings.Join(problems, "; "))
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidRequest, err)
	}
	return nil
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already sent; log only.
		logWarn(r, "json encode error", err)
	}
}
