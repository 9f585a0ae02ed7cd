package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/nao1215/harvest/internal/model"
)

// ErrNotJSONArray is returned when an existing output file does not hold a
// JSON array.
var ErrNotJSONArray = errors.New("output file is not a JSON array")

// arrayTail closes the array after the last record.
const arrayTail = "\n]\n"

// outputFile is the part of *os.File the store uses.
type outputFile interface {
	io.Reader
	io.WriterAt
	io.Closer
	Truncate(size int64) error
	Sync() error
}

// JSONFileStore appends records to a JSON array file.
//
// The file holds one record per line. Each Write overwrites the closing
// bracket in place, writes the new records followed by a new closing bracket
// and fsyncs, so the file is a valid JSON array after every write. A failed
// write restores the closing bracket after the last complete record. Records
// already in the file are kept.
type JSONFileStore struct {
	mu    sync.Mutex
	path  string
	file  outputFile
	end   int64 // offset just past the last record (or the opening bracket)
	count int
}

// OpenJSONFile opens or creates the JSON array file at path.
func OpenJSONFile(path string) (*JSONFileStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600) //nolint:gosec // path is provided by the user
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}

	s := &JSONFileStore{path: path, file: f}
	if err := s.init(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

// init positions the store after the existing records, or writes an empty
// array into a new file.
func (s *JSONFileStore) init() error {
	data, err := io.ReadAll(s.file)
	if err != nil {
		return fmt.Errorf("failed to read output file: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		s.end = 1
		return s.writeAt(0, []byte("["+arrayTail))
	}

	var existing []json.RawMessage
	if err := json.Unmarshal(data, &existing); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotJSONArray, s.path, err)
	}

	closing := bytes.LastIndexByte(data, ']')
	s.end = int64(len(bytes.TrimRight(data[:closing], " \t\r\n")))
	s.count = len(existing)
	return nil
}

// Path returns the file path.
func (s *JSONFileStore) Path() string {
	return s.path
}

// Count returns the number of records in the file.
func (s *JSONFileStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Write implements Store.
func (s *JSONFileStore) Write(ctx context.Context, records []model.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	for i, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
		if s.count+i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
		buf.Write(data)
	}
	body := int64(buf.Len())
	buf.WriteString(arrayTail)

	if err := s.writeAt(s.end, buf.Bytes()); err != nil {
		if restoreErr := s.writeAt(s.end, []byte(arrayTail)); restoreErr != nil {
			return errors.Join(err, restoreErr)
		}
		return err
	}
	s.end += body
	s.count += len(records)
	return nil
}

// writeAt writes data at off, truncates the file after it and syncs.
func (s *JSONFileStore) writeAt(off int64, data []byte) error {
	if _, err := s.file.WriteAt(data, off); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := s.file.Truncate(off + int64(len(data))); err != nil {
		return fmt.Errorf("failed to truncate output file: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync output file: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *JSONFileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// ReadJSONFile decodes every page record and subdomain result in a file
// written by JSONFileStore.
func ReadJSONFile(path string) ([]model.PageRecord, []model.SubdomainResult, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by the user
	if err != nil {
		return nil, nil, err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrNotJSONArray, path, err)
	}

	var (
		pages   []model.PageRecord
		results []model.SubdomainResult
	)
	for _, item := range raw {
		var probe struct {
			FQDN *string `json:"fqdn"`
		}
		if err := json.Unmarshal(item, &probe); err != nil {
			return nil, nil, err
		}
		if probe.FQDN != nil {
			var res model.SubdomainResult
			if err := json.Unmarshal(item, &res); err != nil {
				return nil, nil, err
			}
			results = append(results, res)
			continue
		}

		var page model.PageRecord
		if err := json.Unmarshal(item, &page); err != nil {
			return nil, nil, err
		}
		pages = append(pages, page)
	}
	return pages, results, nil
}
