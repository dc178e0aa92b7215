package history

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Load reads the dataset at path. A missing file yields an empty dataset.
// today keys any legacy single-value counter cells.
func Load(path, today string) (*Dataset, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("no existing history file, starting with an empty dataset", "path", path)
		return NewDataset(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	defer f.Close()

	ds, err := Read(f, today)
	if err != nil {
		return nil, fmt.Errorf("history: %s: %w", path, err)
	}
	slog.Info("history loaded", "path", path, "courses", ds.Len())
	return ds, nil
}

// Read parses a history CSV. Columns are matched by header name, so column
// order does not matter and unknown columns are ignored.
func Read(r io.Reader, today string) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return NewDataset(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	if _, ok := col["Title"]; !ok {
		return nil, fmt.Errorf("header has no Title column: %v", header)
	}

	cell := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	ds := NewDataset()
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		title := cell(row, "Title")
		if strings.TrimSpace(title) == "" {
			slog.Warn("skipping history row without a title", "line", line)
			continue
		}

		enrollments := decodeCell(row, cell, "Enrollments", today, line)
		completed := decodeCell(row, cell, "Completed", today, line)

		rec := &Record{
			Title:             title,
			Type:              cell(row, "Type"),
			CreationDate:      cell(row, "Creation Date"),
			DaysSinceCreation: cell(row, "Days Since Creation"),
			TrainingMaterials: cell(row, "Training Materials"),
			Enrollments:       enrollments,
			Completed:         completed,
		}
		if existing, ok := ds.add(rec); !ok {
			slog.Warn("duplicate title in history file, folding into first row", "title", title, "line", line)
			fold(existing.Enrollments, enrollments)
			fold(existing.Completed, completed)
		}
	}
	return ds, nil
}

// decodeCell decodes one counter column, dropping what cannot be read so a
// single damaged cell never blocks the whole file.
func decodeCell(row []string, cell func([]string, string) string, column, today string, line int) map[string]int {
	m, err := DecodeCounters(cell(row, column), today)
	if err != nil {
		slog.Warn("dropping unreadable history values", "line", line, "column", column, "kept", len(m), "error", err)
	}
	return m
}

// fold copies dates from src that dst does not have yet.
func fold(dst, src map[string]int) {
	for d, v := range src {
		if _, ok := dst[d]; !ok {
			dst[d] = v
		}
	}
}

// Write serialises the dataset with the canonical header.
func Write(w io.Writer, ds *Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range ds.records {
		row := []string{
			r.Title,
			r.Type,
			r.CreationDate,
			r.DaysSinceCreation,
			r.TrainingMaterials,
			EncodeCounters(r.Enrollments),
			EncodeCounters(r.Completed),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Save rewrites the file at path with the full dataset. The new content is
// written to a temporary file in the same directory and renamed over path.
func Save(path string, ds *Dataset) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("history: mkdir %s: %w", dir, err)
		}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("history: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := Write(tmp, ds); err != nil {
		tmp.Close()
		return fmt.Errorf("history: write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("history: close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("history: replace %s: %w", path, err)
	}
	slog.Info("history saved", "path", path, "courses", ds.Len())
	return nil
}
