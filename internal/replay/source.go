// Package replay feeds historical or live alert records, in order, through a parser and a simulator.
package replay

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

// Record is one raw alert as it appears in an alert log or arrives on a feed.
type Record struct {
	// Line is the 1-based position in the source; for CSV it is the file line.
	Line        int
	Name        string
	Description string
}

// Source yields records in chronological order and returns io.EOF when exhausted.
type Source interface {
	Next(ctx context.Context) (Record, error)
}

// ErrMissingColumn is returned when a CSV header lacks the description column.
var ErrMissingColumn = errors.New("alert log: missing column")

var (
	nameColumns        = []string{"nom", "name", "alert", "title"}
	descriptionColumns = []string{"description", "message"}
)

// CSVSource reads an alert log with a header row. Column order is free; the
// description column is required, the name column optional.
type CSVSource struct {
	r       *csv.Reader
	closer  io.Closer
	nameIdx int
	descIdx int
}

// NewCSVSource reads the header from r and prepares to yield records.
func NewCSVSource(r io.Reader) (*CSVSource, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty alert log", ErrMissingColumn)
		}
		return nil, fmt.Errorf("read alert log header: %w", err)
	}

	s := &CSVSource{r: cr, nameIdx: -1, descIdx: -1}
	for i, col := range header {
		col = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		if s.nameIdx < 0 && slices.Contains(nameColumns, col) {
			s.nameIdx = i
		}
		if s.descIdx < 0 && slices.Contains(descriptionColumns, col) {
			s.descIdx = i
		}
	}
	if s.descIdx < 0 {
		return nil, fmt.Errorf("%w: description (header %v)", ErrMissingColumn, header)
	}
	return s, nil
}

// OpenCSV opens path as a CSVSource; Close releases the file.
func OpenCSV(path string) (*CSVSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open alert log: %w", err)
	}
	s, err := NewCSVSource(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	s.closer = file
	return s, nil
}

// Next returns the next record in file order.
func (s *CSVSource) Next(ctx context.Context) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	fields, err := s.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("read alert log: %w", err)
	}
	line, _ := s.r.FieldPos(0)
	rec := Record{Line: line}
	if s.descIdx < len(fields) {
		rec.Description = fields[s.descIdx]
	}
	if s.nameIdx >= 0 && s.nameIdx < len(fields) {
		rec.Name = fields[s.nameIdx]
	}
	return rec, nil
}

// Close releases the underlying file when the source was opened with OpenCSV.
func (s *CSVSource) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

// ChanSource adapts a live channel of records; a closed channel ends the stream.
type ChanSource struct {
	in <-chan Record
}

// NewChanSource wraps in.
func NewChanSource(in <-chan Record) *ChanSource {
	return &ChanSource{in: in}
}

// Next blocks until a record arrives, the channel closes, or ctx is done.
func (s *ChanSource) Next(ctx context.Context) (Record, error) {
	select {
	case <-ctx.Done():
		return Record{}, ctx.Err()
	case rec, ok := <-s.in:
		if !ok {
			return Record{}, io.EOF
		}
		return rec, nil
	}
}

// SliceSource yields a fixed list of records.
type SliceSource struct {
	records []Record
	pos     int
}

// NewSliceSource numbers records that do not carry a line.
func NewSliceSource(records []Record) *SliceSource {
	out := make([]Record, len(records))
	for i, r := range records {
		if r.Line == 0 {
			r.Line = i + 1
		}
		out[i] = r
	}
	return &SliceSource{records: out}
}

func (s *SliceSource) Next(ctx context.Context) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if s.pos >= len(s.records) {
		return Record{}, io.EOF
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}
