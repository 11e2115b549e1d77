// Package templates holds the HTML components served by the web package.
//
// Components are plain templ.ComponentFunc values so they render with the
// same Render(ctx, w) call as generated templ code.
package templates

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/sheetq/internal/core"
	"github.com/JonMunkholm/sheetq/internal/query"
	"github.com/JonMunkholm/sheetq/internal/sheet"
)

// errWriter stops writing after the first error and remembers it.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) print(parts ...string) {
	for _, p := range parts {
		if e.err != nil {
			return
		}
		_, e.err = io.WriteString(e.w, p)
	}
}

func esc(s string) string { return templ.EscapeString(s) }

// Layout wraps body in the page shell.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		ew := &errWriter{w: w}
		ew.print(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`,
			`<meta name="viewport" content="width=device-width, initial-scale=1">`,
			`<title>`, esc(title), ` · sheetq</title></head>`,
			`<body><header><a href="/">sheetq</a></header><main>`)
		if ew.err != nil {
			return ew.err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		ew.print(`</main></body></html>`)
		return ew.err
	})
}

// SheetIndex lists every sheet with its size.
func SheetIndex(sheets []core.SheetInfo) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		ew := &errWriter{w: w}
		ew.print(`<h1>Sheets</h1>`)
		if len(sheets) == 0 {
			ew.print(`<p class="empty">No sheets yet.</p>`)
			return ew.err
		}
		ew.print(`<table class="sheets"><thead><tr><th>Name</th><th>Columns</th><th>Rows</th></tr></thead><tbody>`)
		for _, s := range sheets {
			ew.print(`<tr><td><a href="/sheets/`, esc(s.Name), `">`, esc(s.Name), `</a></td>`,
				`<td>`, strconv.Itoa(len(s.Columns)), `</td>`,
				`<td>`, strconv.Itoa(s.Rows), `</td></tr>`)
		}
		ew.print(`</tbody></table>`)
		return ew.err
	})
}

// SheetTable renders records under the sheet's header row. ranges holds the
// A1 location of each record and is shown as the row label.
func SheetTable(info core.SheetInfo, ranges []string, recs []query.Record) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		ew := &errWriter{w: w}
		ew.print(`<h1>`, esc(info.Name), `</h1>`,
			`<p class="summary">`, fmt.Sprintf("%d of %d rows", len(recs), info.Rows), `</p>`,
			`<table id="sheet-table"><thead><tr><th></th>`)
		for _, col := range info.Columns {
			ew.print(`<th>`, esc(col), `</th>`)
		}
		ew.print(`</tr></thead><tbody>`)
		for i, rec := range recs {
			label := ""
			if i < len(ranges) {
				label = ranges[i]
			}
			ew.print(`<tr><th scope="row">`, esc(label), `</th>`)
			for _, col := range info.Columns {
				ew.print(`<td>`, esc(sheet.Format(rec[col])), `</td>`)
			}
			ew.print(`</tr>`)
		}
		ew.print(`</tbody></table>`)
		return ew.err
	})
}

// ErrorAlert renders an error fragment for HTMX swaps and error pages.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		ew := &errWriter{w: w}
		ew.print(`<div class="alert alert-error" role="alert"><strong>`, esc(message), `</strong>`)
		if action != "" {
			ew.print(`<p>`, esc(action), `</p>`)
		}
		if code != "" {
			ew.print(`<small>Code: `, esc(code), `</small>`)
		}
		ew.print(`</div>`)
		return ew.err
	})
}
