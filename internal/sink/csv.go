// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sink persists harvested records, one row per key, in either an
// append-only CSV file or a SQLite database. Both reject keys they already
// hold and report their stored keys so a new run can skip them.
package sink

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/pdiddy/paper-harvest/pkg/types"
)

// Store is a de-duplicating record sink.
type Store interface {
	Put(rec types.Record) (bool, error)
	Known() ([]string, error)
	Close() error
}

// ErrHeaderMismatch means an existing CSV file was written with different
// columns.
var ErrHeaderMismatch = errors.New("csv header mismatch")

// CSV appends records to a delimited file with a fixed header. The file is
// never rewritten; each row is flushed and synced before Put returns, so an
// interrupted run leaves no partial rows.
type CSV struct {
	f      *os.File
	w      *csv.Writer
	header []string
	keys   map[string]struct{}
	order  []string
}

// OpenCSV opens path for appending, creating it with header if it is absent
// or empty. The first column of every existing row is loaded as a known key.
func OpenCSV(path string, header []string) (*CSV, error) {
	s := &CSV{
		header: header,
		keys:   make(map[string]struct{}),
	}

	if err := s.load(path); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	s.f = f
	s.w = csv.NewWriter(f)

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		if err := s.writeRow(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing header: %w", err)
		}
	}
	return s, nil
}

func (s *CSV) load(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		if first {
			first = false
			if !slices.Equal(trimBOM(row), s.header) {
				return fmt.Errorf("%w in %s: have %s, want %s", ErrHeaderMismatch, path,
					strings.Join(row, ","), strings.Join(s.header, ","))
			}
			continue
		}
		if len(row) == 0 || row[0] == "" {
			continue
		}
		s.remember(row[0])
	}
}

func (s *CSV) remember(key string) {
	if _, ok := s.keys[key]; ok {
		return
	}
	s.keys[key] = struct{}{}
	s.order = append(s.order, key)
}

// Put appends rec unless its key is already stored.
func (s *CSV) Put(rec types.Record) (bool, error) {
	key := rec.Key()
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	if err := s.writeRow(rec.Values()); err != nil {
		return false, fmt.Errorf("appending %s: %w", key, err)
	}
	s.remember(key)
	return true, nil
}

func (s *CSV) writeRow(row []string) error {
	if err := s.w.Write(row); err != nil {
		return err
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return err
	}
	return s.f.Sync()
}

// Known returns the stored keys in file order.
func (s *CSV) Known() ([]string, error) {
	return slices.Clone(s.order), nil
}

// Close flushes and closes the file.
func (s *CSV) Close() error {
	s.w.Flush()
	werr := s.w.Error()
	if err := s.f.Close(); err != nil {
		return err
	}
	return werr
}

// ReadCSV returns the data rows of a CSV file written by CSV, checking its
// header.
func ReadCSV(path string, header []string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if !slices.Equal(trimBOM(rows[0]), header) {
		return nil, fmt.Errorf("%w in %s", ErrHeaderMismatch, path)
	}
	out := rows[1:]
	for i, row := range out {
		if len(row) < len(header) {
			padded := make([]string, len(header))
			copy(padded, row)
			out[i] = padded
		}
	}
	return out, nil
}

// trimBOM strips a UTF-8 byte order mark from the first header cell, as
// written by spreadsheet tools.
func trimBOM(row []string) []string {
	if len(row) == 0 || !strings.HasPrefix(row[0], "\ufeff") {
		return row
	}
	out := slices.Clone(row)
	out[0] = strings.TrimPrefix(out[0], "\ufeff")
	return out
}
