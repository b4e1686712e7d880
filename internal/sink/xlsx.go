package sink

import (
	"fmt"

	"ymlfeed/exporter/internal/domain"

	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "offers"

// XLSXSink streams rows into a single worksheet.
type XLSXSink struct {
	out     *pendingFile
	book    *excelize.File
	stream  *excelize.StreamWriter
	row     int
	columns int
}

func NewXLSXSink(path string) (*XLSXSink, error) {
	out, err := createPending(path)
	if err != nil {
		return nil, err
	}

	book := excelize.NewFile()
	if err := book.SetSheetName("Sheet1", xlsxSheet); err != nil {
		out.discard()
		return nil, &domain.WriteError{Path: path, Err: err}
	}

	stream, err := book.NewStreamWriter(xlsxSheet)
	if err != nil {
		out.discard()
		return nil, &domain.WriteError{Path: path, Err: err}
	}

	return &XLSXSink{out: out, book: book, stream: stream}, nil
}

func (s *XLSXSink) WriteHeader(columns []string) error {
	s.columns = len(columns)
	return s.write(columns)
}

func (s *XLSXSink) WriteRow(values []string) error {
	if len(values) != s.columns {
		return &domain.WriteError{
			Path: s.out.path,
			Err:  fmt.Errorf("row has %d fields, header has %d", len(values), s.columns),
		}
	}
	return s.write(values)
}

func (s *XLSXSink) write(record []string) error {
	s.row++
	cell, err := excelize.CoordinatesToCellName(1, s.row)
	if err != nil {
		return &domain.WriteError{Path: s.out.path, Err: err}
	}

	values := make([]interface{}, len(record))
	for i, v := range record {
		values[i] = v
	}

	if err := s.stream.SetRow(cell, values); err != nil {
		return &domain.WriteError{Path: s.out.path, Err: err}
	}
	return nil
}

// Flush is a no-op: the worksheet is finalized once, on Close.
func (s *XLSXSink) Flush() error {
	return nil
}

func (s *XLSXSink) Close() error {
	if err := s.stream.Flush(); err != nil {
		s.Discard()
		return &domain.WriteError{Path: s.out.path, Err: err}
	}
	if _, err := s.book.WriteTo(s.out.file); err != nil {
		s.Discard()
		return &domain.WriteError{Path: s.out.path, Err: err}
	}
	if err := s.book.Close(); err != nil {
		s.out.discard()
		return &domain.WriteError{Path: s.out.path, Err: err}
	}
	return s.out.commit()
}

func (s *XLSXSink) Discard() error {
	if s.out.done {
		return nil
	}
	s.book.Close()
	return s.out.discard()
}
