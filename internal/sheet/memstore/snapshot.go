package memstore

// snapshot.go persists a workbook as zstd-compressed MessagePack so the CLI
// can operate on a single file between invocations.

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/JonMunkholm/sheetq/internal/sheet"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

const snapshotVersion = 1

type snapshot struct {
	Version int                        `msgpack:"version"`
	Sheets  map[string][][]sheet.Value `msgpack:"sheets"`
}

// Save writes every sheet to w.
func (s *Store) Save(w io.Writer) error {
	s.mu.RLock()
	snap := snapshot{Version: snapshotVersion, Sheets: make(map[string][][]sheet.Value, len(s.sheets))}
	for name, g := range s.sheets {
		snap.Sheets[name] = g.Rows()
	}
	s.mu.RUnlock()

	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	if err := msgpack.NewEncoder(zw).Encode(&snap); err != nil {
		zw.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return zw.Close()
}

// Restore reads a snapshot written by Save into a new Store.
func Restore(r io.Reader) (*Store, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer zr.Close()

	dec := msgpack.NewDecoder(zr)
	dec.UseLooseInterfaceDecoding(true)

	var snap snapshot
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}

	s := New()
	for name, rows := range snap.Sheets {
		for _, r := range rows {
			for i, v := range r {
				r[i] = fromWire(v)
			}
		}
		s.Load(name, rows)
	}
	return s, nil
}

// OpenFile restores a snapshot from path. A missing file yields an empty store.
func OpenFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Restore(f)
}

// SaveFile writes the snapshot to path via a temporary file and rename.
func (s *Store) SaveFile(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := s.Save(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// fromWire narrows loosely decoded integers back to int.
func fromWire(v sheet.Value) sheet.Value {
	switch x := v.(type) {
	case int64:
		return int(x)
	case uint64:
		return int(x)
	case nil:
		return ""
	}
	return v
}
