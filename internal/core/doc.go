// Package core provides the service layer over the query engine.
//
// It is shared by the HTTP server and the CLI and holds no transport logic.
//
// # Architecture
//
//   - Service: stateless operations (Query, Append, Prepend, UpdateWhere,
//     DeleteWhere) plus sheet listing and creation. Each call opens a
//     short-lived [query.Manager] under the sheet's lock.
//   - Cursors: managers kept between requests so a client can filter once
//     and then fetch, update, upsert or delete against the stored range set.
//     Idle cursors expire after [Options.CursorTTL] and are removed by
//     [Service.StartCursorSweeper].
//   - Scan limiter: a semaphore bounding concurrent filter scans across all
//     sheets.
//
// # Concurrency
//
// The query engine assumes a single writer per sheet. Service keeps one
// mutex per sheet name and holds it for the whole of every engine call, so
// concurrent requests on one sheet are serialized while different sheets
// proceed in parallel.
//
// # Error Handling
//
// Errors are returned wrapped and matched with errors.Is / errors.As.
// [MapError] turns any of them into a [UserMessage] with a support code;
// see error_messages.go for the code table.
package core
