package parser

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"ymlfeed/exporter/internal/domain"

	log "github.com/sirupsen/logrus"
)

const (
	elementCategory   = "category"
	elementOffer      = "offer"
	elementCategoryID = "categoryId"
	elementPicture    = "picture"
	elementParam      = "param"
	attrID            = "id"
	attrParentID      = "parentId"
)

// OfferHandler receives every finished offer in document order.
type OfferHandler func(offer *domain.Offer) error

type Options struct {
	// CollectPictures fills Offer.Pictures from <picture> children.
	CollectPictures bool
}

type Stats struct {
	Categories          int
	DuplicateCategories int
	Offers              int
	LookupMisses        int
	BytesRead           int64
}

type Result struct {
	Categories *CategoryIndex
	Stats      Stats
}

type FeedParser interface {
	Parse(ctx context.Context, r io.Reader, handle OfferHandler) (*Result, error)
}

type feedParser struct {
	opts Options
}

func NewFeedParser(opts Options) FeedParser {
	return &feedParser{opts: opts}
}

type traversalState int

const (
	stateTop traversalState = iota
	stateCategory
	stateOffer
)

// traversal is the single-pass state machine over feed events. It owns the
// category index and at most one offer at a time.
type traversal struct {
	opts       Options
	categories *CategoryIndex
	handle     OfferHandler
	stats      Stats

	state    traversalState
	category domain.Category
	offer    *domain.Offer
	child    string
	hasText  bool
	text     strings.Builder
}

func (p *feedParser) Parse(ctx context.Context, r io.Reader, handle OfferHandler) (*Result, error) {
	counter := NewCountingReader(r)
	decoder := NewEventReader(counter)

	t := &traversal{
		opts:       p.opts,
		categories: NewCategoryIndex(),
		handle:     handle,
	}

	sawRoot := false
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, wrapDecodeError(decoder, err)
		}

		switch tok := token.(type) {
		case xml.StartElement:
			sawRoot = true
			if err := t.startElement(tok); err != nil {
				line, _ := decoder.InputPos()
				return nil, &domain.ParseError{Line: line, Err: err}
			}
		case xml.CharData:
			t.characters(tok)
		case xml.EndElement:
			if err := t.endElement(tok); err != nil {
				return nil, err
			}
		}
	}

	if !sawRoot {
		return nil, &domain.ParseError{Err: errors.New("document has no root element")}
	}

	t.stats.Categories = t.categories.Len()
	t.stats.BytesRead = counter.BytesRead()

	return &Result{
		Categories: t.categories,
		Stats:      t.stats,
	}, nil
}

// wrapDecodeError keeps read failures of the byte source as fetch errors and
// reports everything else as malformed XML.
func wrapDecodeError(decoder *xml.Decoder, err error) error {
	var fetchErr *domain.FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr
	}

	var syntaxErr *xml.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &domain.ParseError{Line: syntaxErr.Line, Err: err}
	}

	line, _ := decoder.InputPos()
	return &domain.ParseError{Line: line, Err: err}
}

func (t *traversal) startElement(el xml.StartElement) error {
	name := el.Name.Local

	switch t.state {
	case stateTop:
		switch name {
		case elementCategory:
			t.state = stateCategory
			t.category = domain.Category{
				ID:       attrValue(el.Attr, attrID),
				ParentID: attrValue(el.Attr, attrParentID),
			}
			t.text.Reset()
		case elementOffer:
			t.state = stateOffer
			t.offer = domain.NewOffer(attrValue(el.Attr, attrID))
			t.resetChild()
		}
	case stateOffer:
		if name == elementOffer {
			return fmt.Errorf("%w inside offer %q", domain.ErrNestedOffer, t.offer.ID)
		}
		t.commitChild()
		t.child = name
	}

	return nil
}

func (t *traversal) characters(data xml.CharData) {
	// Whitespace-only runs are indentation between elements.
	if len(strings.TrimSpace(string(data))) == 0 {
		return
	}

	switch t.state {
	case stateCategory:
		t.text.Write(data)
	case stateOffer:
		if t.child == "" {
			return
		}
		t.text.Write(data)
		t.hasText = true
	}
}

func (t *traversal) endElement(el xml.EndElement) error {
	name := el.Name.Local

	switch t.state {
	case stateCategory:
		if name != elementCategory {
			return nil
		}
		t.category.Name = t.text.String()
		if t.categories.Put(t.category) {
			t.stats.DuplicateCategories++
			log.Warnf("⚠️ Duplicate category id %q, keeping %q", t.category.ID, t.category.Name)
		}
		t.text.Reset()
		t.state = stateTop
	case stateOffer:
		if name != elementOffer {
			t.commitChild()
			return nil
		}
		t.commitChild()

		offer := t.offer
		t.offer = nil
		t.state = stateTop
		t.stats.Offers++

		if t.handle != nil {
			if err := t.handle(offer); err != nil {
				return fmt.Errorf("failed to handle offer %q: %w", offer.ID, err)
			}
		}
	}

	return nil
}

// commitChild stores the buffered text of the current offer child and clears
// the child so stray text between siblings is not attributed to it.
func (t *traversal) commitChild() {
	defer t.resetChild()

	if t.child == "" || !t.hasText {
		return
	}
	value := t.text.String()

	switch t.child {
	case elementCategoryID:
		t.offer.CategoryID = value
		name, ok := t.categories.Get(value)
		if !ok {
			t.stats.LookupMisses++
			log.Debugf("Offer %q references unknown category %q", t.offer.ID, value)
			name = domain.UndefinedCategory
		}
		t.offer.CategoryName = name
	case elementPicture:
		if t.opts.CollectPictures {
			t.offer.Pictures = append(t.offer.Pictures, strings.TrimSpace(value))
		}
	case elementParam:
	default:
		t.offer.Set(SanitizeKey(t.child), value)
	}
}

func (t *traversal) resetChild() {
	t.child = ""
	t.hasText = false
	t.text.Reset()
}

// SanitizeKey replaces every '.' in an element name with ',' so the column
// survives tools that read dots as path separators.
func SanitizeKey(name string) string {
	return strings.ReplaceAll(name, ".", ",")
}

func attrValue(attrs []xml.Attr, local string) string {
	for _, attr := range attrs {
		if attr.Name.Local == local {
			return attr.Value
		}
	}
	return ""
}
