package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"ymlfeed/exporter/internal/domain"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"

	DefaultDelimiter = ';'
)

// RowSink appends rows to an output file. Nothing is visible at the target
// path until Close succeeds; Discard drops everything written so far and is a
// no-op after a successful Close.
type RowSink interface {
	WriteHeader(columns []string) error
	WriteRow(values []string) error
	Flush() error
	Close() error
	Discard() error
}

type Options struct {
	Format    string
	Delimiter rune
}

// ResolveFormat picks the output format from the explicit setting or the
// path extension, defaulting to CSV.
func ResolveFormat(format, path string) string {
	switch strings.ToLower(format) {
	case FormatCSV, FormatXLSX:
		return strings.ToLower(format)
	}
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return FormatXLSX
	}
	return FormatCSV
}

// ParseDelimiter validates a configured delimiter string.
func ParseDelimiter(s string) (rune, error) {
	if s == "" {
		return DefaultDelimiter, nil
	}
	if s == `\t` || strings.EqualFold(s, "tab") {
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, fmt.Errorf("invalid delimiter %q", s)
	}
	return r, nil
}

// Open creates the sink for path.
func Open(path string, opts Options) (RowSink, error) {
	switch ResolveFormat(opts.Format, path) {
	case FormatXLSX:
		return NewXLSXSink(path)
	default:
		delimiter := opts.Delimiter
		if delimiter == 0 {
			delimiter = DefaultDelimiter
		}
		return NewCSVSink(path, delimiter)
	}
}

// pendingFile is a temporary file next to the target that is renamed over it
// on commit.
type pendingFile struct {
	path string
	file *os.File
	done bool
}

func createPending(path string) (*pendingFile, error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	file, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return nil, &domain.WriteError{Path: path, Err: err}
	}

	return &pendingFile{path: path, file: file}, nil
}

func (p *pendingFile) commit() error {
	if p.done {
		return nil
	}
	p.done = true

	tmpName := p.file.Name()
	if err := p.file.Sync(); err != nil {
		p.file.Close()
		os.Remove(tmpName)
		return &domain.WriteError{Path: p.path, Err: err}
	}
	if err := p.file.Close(); err != nil {
		os.Remove(tmpName)
		return &domain.WriteError{Path: p.path, Err: err}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return &domain.WriteError{Path: p.path, Err: err}
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		os.Remove(tmpName)
		return &domain.WriteError{Path: p.path, Err: err}
	}
	return nil
}

func (p *pendingFile) discard() error {
	if p.done {
		return nil
	}
	p.done = true

	p.file.Close()
	if err := os.Remove(p.file.Name()); err != nil && !os.IsNotExist(err) {
		return &domain.WriteError{Path: p.path, Err: err}
	}
	return nil
}
