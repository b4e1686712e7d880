package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotModified is returned by a conditional fetch when the feed has not changed.
	ErrNotModified = errors.New("feed not modified")
	// ErrNestedOffer is wrapped in a ParseError when an <offer> opens inside another one.
	ErrNestedOffer = errors.New("nested offer element")
)

// FetchError covers network failures, non-2xx responses and read timeouts.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports malformed XML. Line is the decoder position, 0 if unknown.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse feed at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("parse feed: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// WriteError reports an output file that could not be created, written or flushed.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
