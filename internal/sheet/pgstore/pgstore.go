// Package pgstore is a sheet.Store backed by PostgreSQL. Every non-blank cell
// is one row in sheetq_cells keyed by (sheet, row_num, col_num); blank cells
// are simply absent, which keeps LastRow/LastColumn a MAX() away.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/sheetq/internal/sheet"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool used by the store.
// Satisfied by both *pgxpool.Pool and *pgx.Conn.
type DB interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Begin(context.Context) (pgx.Tx, error)
}

// uniqueViolation is the SQLSTATE for a duplicate primary key.
const uniqueViolation = "23505"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sheetq_sheets (
	name       TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS sheetq_cells (
	sheet   TEXT  NOT NULL REFERENCES sheetq_sheets(name) ON DELETE CASCADE,
	row_num INT   NOT NULL,
	col_num INT   NOT NULL,
	value   JSONB NOT NULL,
	PRIMARY KEY (sheet, row_num, col_num)
);`

// Store is a PostgreSQL workbook.
type Store struct {
	db DB
}

// New returns a store using db. Call EnsureSchema once before use.
func New(db DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the backing tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Create registers a sheet and writes its header row.
func (s *Store) Create(ctx context.Context, name string, header []string) (sheet.Handle, error) {
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO sheetq_sheets (name) VALUES ($1)`, name); err != nil {
			return err
		}
		row := make([]sheet.Value, len(header))
		for i, h := range header {
			row[i] = h
		}
		return writeCells(ctx, tx, name, 1, 1, [][]sheet.Value{row})
	})
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return nil, fmt.Errorf("%w: %s", sheet.ErrExists, name)
	}
	if err != nil {
		return nil, fmt.Errorf("create sheet %s: %w", name, err)
	}
	return sheet.NewHandle(name), nil
}

// Sheets lists sheet names alphabetically.
func (s *Store) Sheets(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT name FROM sheetq_sheets ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *Store) Locate(ctx context.Context, name string) (sheet.Handle, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM sheetq_sheets WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", sheet.ErrNotFound, name)
	}
	return sheet.NewHandle(name), nil
}

func (s *Store) ReadRegion(ctx context.Context, h sheet.Handle, row, col, numRows, numCols int) ([][]sheet.Value, error) {
	if err := checkRange(row, col, numRows, numCols); err != nil {
		return nil, err
	}

	out := make([][]sheet.Value, numRows)
	for i := range out {
		out[i] = make([]sheet.Value, numCols)
		for j := range out[i] {
			out[i][j] = ""
		}
	}

	rows, err := s.db.Query(ctx, `
		SELECT row_num, col_num, value::text
		FROM sheetq_cells
		WHERE sheet = $1
		  AND row_num BETWEEN $2 AND $3
		  AND col_num BETWEEN $4 AND $5`,
		h.Name(), row, row+numRows-1, col, col+numCols-1)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var r, c int
		var raw string
		if err := rows.Scan(&r, &c, &raw); err != nil {
			return nil, err
		}
		v, err := decodeValue(raw)
		if err != nil {
			return nil, err
		}
		out[r-row][c-col] = v
	}
	return out, rows.Err()
}

func (s *Store) ReadCell(ctx context.Context, h sheet.Handle, row, col int) (sheet.Value, error) {
	var raw string
	err := s.db.QueryRow(ctx, `
		SELECT value::text FROM sheetq_cells
		WHERE sheet = $1 AND row_num = $2 AND col_num = $3`,
		h.Name(), row, col).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return nil, err
	}
	return decodeValue(raw)
}

func (s *Store) WriteRegion(ctx context.Context, h sheet.Handle, row, col int, grid [][]sheet.Value) error {
	if err := checkRange(row, col, 1, 1); err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return writeCells(ctx, tx, h.Name(), row, col, grid)
	})
}

func (s *Store) ClearRegion(ctx context.Context, h sheet.Handle, row, col, numRows, numCols int) error {
	if err := checkRange(row, col, numRows, numCols); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, `
		DELETE FROM sheetq_cells
		WHERE sheet = $1
		  AND row_num BETWEEN $2 AND $3
		  AND col_num BETWEEN $4 AND $5`,
		h.Name(), row, row+numRows-1, col, col+numCols-1)
	return err
}

func (s *Store) LastRow(ctx context.Context, h sheet.Handle) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(row_num), 0) FROM sheetq_cells WHERE sheet = $1`, h.Name()).Scan(&n)
	return n, err
}

func (s *Store) LastColumn(ctx context.Context, h sheet.Handle) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(col_num), 0) FROM sheetq_cells WHERE sheet = $1`, h.Name()).Scan(&n)
	return n, err
}

// DeleteRow removes a row and renumbers the rows below it in one transaction.
// Renumbering goes through negative row numbers so the primary key is never
// violated mid-statement.
func (s *Store) DeleteRow(ctx context.Context, h sheet.Handle, row int) error {
	if err := checkRange(row, 1, 1, 1); err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM sheetq_cells WHERE sheet = $1 AND row_num = $2`, h.Name(), row); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE sheetq_cells SET row_num = -(row_num - 1) WHERE sheet = $1 AND row_num > $2`, h.Name(), row); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`UPDATE sheetq_cells SET row_num = -row_num WHERE sheet = $1 AND row_num < 0`, h.Name())
		return err
	})
}

// writeCells upserts non-blank cells and deletes blank ones in a single batch.
func writeCells(ctx context.Context, tx pgx.Tx, name string, row, col int, grid [][]sheet.Value) error {
	b := &pgx.Batch{}
	for i, vals := range grid {
		for j, v := range vals {
			r, c := row+i, col+j
			if sheet.IsBlank(v) {
				b.Queue(`DELETE FROM sheetq_cells WHERE sheet = $1 AND row_num = $2 AND col_num = $3`, name, r, c)
				continue
			}
			raw, err := encodeValue(v)
			if err != nil {
				return fmt.Errorf("cell (%d,%d): %w", r, c, err)
			}
			b.Queue(`
				INSERT INTO sheetq_cells (sheet, row_num, col_num, value)
				VALUES ($1, $2, $3, $4::jsonb)
				ON CONFLICT (sheet, row_num, col_num) DO UPDATE SET value = EXCLUDED.value`,
				name, r, c, raw)
		}
	}
	if b.Len() == 0 {
		return nil
	}
	return tx.SendBatch(ctx, b).Close()
}

func encodeValue(v sheet.Value) (string, error) {
	data, err := json.Marshal(sheet.Normalize(v))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeValue keeps integral numbers as int, matching the other stores.
func decodeValue(raw string) (sheet.Value, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode cell %q: %w", raw, err)
	}
	return sheet.Normalize(v), nil
}

func checkRange(row, col, numRows, numCols int) error {
	if row < 1 || col < 1 || numRows < 1 || numCols < 1 {
		return fmt.Errorf("%w: row=%d col=%d rows=%d cols=%d", sheet.ErrInvalidRange, row, col, numRows, numCols)
	}
	return nil
}
