package tsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNoHeader is returned for an input without a header row
var ErrNoHeader = errors.New("tsv: missing header row")

// RowError reports a record the reader could not parse. The reader stays
// usable after returning one.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("tsv: row %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Header maps column names to positions
type Header struct {
	names []string
	index map[string]int
}

func newHeader(cells []string) *Header {
	h := &Header{
		names: make([]string, len(cells)),
		index: make(map[string]int, len(cells)),
	}
	for i, c := range cells {
		if i == 0 {
			c = strings.TrimPrefix(c, "\ufeff")
		}
		name := strings.TrimSpace(c)
		h.names[i] = name
		// First occurrence wins for duplicated columns
		if _, ok := h.index[name]; !ok {
			h.index[name] = i
		}
	}
	return h
}

// Names returns the trimmed column names in file order
func (h *Header) Names() []string {
	out := make([]string, len(h.names))
	copy(out, h.names)
	return out
}

// Has reports whether the column exists
func (h *Header) Has(name string) bool {
	_, ok := h.index[name]
	return ok
}

// Row is one data record
type Row struct {
	// Line is the 1-based record number, header excluded
	Line   int
	header *Header
	cells  []string
}

// NewRow builds a row from a name→value map. Used when rows come from
// somewhere other than a file, such as stored documents being resynced.
func NewRow(line int, values map[string]string) Row {
	names := make([]string, 0, len(values))
	cells := make([]string, 0, len(values))
	for k, v := range values {
		names = append(names, k)
		cells = append(cells, v)
	}
	return Row{Line: line, header: newHeader(names), cells: cells}
}

// Get returns the raw cell for a column. ok is false only when the column is
// not in the header; a row too short to reach the column yields an empty cell.
func (r Row) Get(name string) (string, bool) {
	if r.header == nil {
		return "", false
	}
	i, ok := r.header.index[name]
	if !ok {
		return "", false
	}
	if i >= len(r.cells) {
		return "", true
	}
	return r.cells[i], true
}

// Len returns the number of cells in the row
func (r Row) Len() int {
	return len(r.cells)
}

// Reader yields rows lazily from tab-separated input
type Reader struct {
	csv    *csv.Reader
	header *Header
	closer io.Closer
	line   int
}

func newCSV(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	return cr
}

// NewReader consumes the header row from r
func NewReader(r io.Reader) (*Reader, error) {
	cr := newCSV(r)
	cells, err := cr.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	return &Reader{csv: cr, header: newHeader(cells)}, nil
}

// Open opens a TSV file for reading
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// Header returns the parsed header
func (r *Reader) Header() *Header {
	return r.header
}

// Next returns the next row, io.EOF at the end of input, or a *RowError for
// a record that could not be parsed. Any other error is an I/O failure.
func (r *Reader) Next() (Row, error) {
	cells, err := r.csv.Read()
	if err == io.EOF {
		return Row{}, io.EOF
	}
	r.line++
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return Row{}, &RowError{Line: r.line, Err: pe.Err}
		}
		return Row{}, err
	}
	return Row{Line: r.line, header: r.header, cells: cells}, nil
}

// Close releases the underlying file, if any
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// CountRows counts the data records of a TSV file without keeping them
func CountRows(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	cr := newCSV(f)
	cr.ReuseRecord = true

	n := 0
	for {
		_, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return 0, err
			}
		}
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return n - 1, nil
}
