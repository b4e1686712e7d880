package sink

import (
	"encoding/csv"
	"fmt"

	"ymlfeed/exporter/internal/domain"
)

// CSVSink writes UTF-8 delimited text with "\n" line endings and no BOM.
// Fields containing the delimiter, a quote or a line break are quoted.
type CSVSink struct {
	out     *pendingFile
	writer  *csv.Writer
	columns int
}

func NewCSVSink(path string, delimiter rune) (*CSVSink, error) {
	out, err := createPending(path)
	if err != nil {
		return nil, err
	}

	writer := csv.NewWriter(out.file)
	writer.Comma = delimiter
	writer.UseCRLF = false

	return &CSVSink{out: out, writer: writer}, nil
}

func (s *CSVSink) WriteHeader(columns []string) error {
	s.columns = len(columns)
	return s.write(columns)
}

func (s *CSVSink) WriteRow(values []string) error {
	if len(values) != s.columns {
		return &domain.WriteError{
			Path: s.out.path,
			Err:  fmt.Errorf("row has %d fields, header has %d", len(values), s.columns),
		}
	}
	return s.write(values)
}

func (s *CSVSink) write(record []string) error {
	if err := s.writer.Write(record); err != nil {
		return &domain.WriteError{Path: s.out.path, Err: err}
	}
	return nil
}

func (s *CSVSink) Flush() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return &domain.WriteError{Path: s.out.path, Err: err}
	}
	return nil
}

func (s *CSVSink) Close() error {
	if err := s.Flush(); err != nil {
		s.out.discard()
		return err
	}
	return s.out.commit()
}

func (s *CSVSink) Discard() error {
	return s.out.discard()
}
