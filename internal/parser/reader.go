package parser

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"io"

	"golang.org/x/net/html/charset"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CountingReader tracks bytes read from the feed body.
type CountingReader struct {
	reader io.Reader
	n      int64
}

func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{reader: r}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.reader.Read(p)
	c.n += int64(n)
	return n, err
}

// BytesRead returns the number of bytes consumed so far.
func (c *CountingReader) BytesRead() int64 {
	return c.n
}

// skipBOM drops a leading UTF-8 byte order mark, which some feed generators
// emit in front of the XML declaration.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(utf8BOM))
	if err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// NewEventReader returns a decoder producing feed events in document order.
// Encodings other than UTF-8 declared in the XML prolog are transcoded, and
// HTML named entities (&nbsp; and friends) are accepted since YML generators
// frequently leak them into descriptions.
func NewEventReader(r io.Reader) *xml.Decoder {
	decoder := xml.NewDecoder(skipBOM(r))
	decoder.CharsetReader = charset.NewReaderLabel
	decoder.Entity = xml.HTMLEntity
	return decoder
}
