package export

import (
	"fmt"

	"ymlfeed/exporter/internal/domain"

	log "github.com/sirupsen/logrus"
)

// RowWriter is the part of a row sink the projector drives.
type RowWriter interface {
	WriteHeader(columns []string) error
	WriteRow(values []string) error
}

type Options struct {
	StripHTML bool
}

// Projector buffers finished offers and grows the column registry, then
// emits a union header followed by one row per offer.
type Projector struct {
	opts     Options
	registry *Registry
	offers   []*domain.Offer
	shadowed map[string]struct{}
}

func NewProjector(opts Options) *Projector {
	return &Projector{
		opts:     opts,
		registry: NewRegistry(),
		shadowed: make(map[string]struct{}),
	}
}

// Collect matches parser.OfferHandler.
func (p *Projector) Collect(offer *domain.Offer) error {
	for _, key := range offer.Keys() {
		if IsFixed(key) {
			if _, seen := p.shadowed[key]; !seen {
				p.shadowed[key] = struct{}{}
				log.Warnf("⚠️ Offer child <%s> collides with a fixed column and is dropped", key)
			}
			continue
		}
		if p.registry.Add(key) {
			log.Debugf("New column %q from offer %q", key, offer.ID)
		}
	}

	p.offers = append(p.offers, offer)
	return nil
}

// Header returns the column names rows are written under.
func (p *Projector) Header() []string {
	return p.registry.Columns()
}

func (p *Projector) Len() int {
	return len(p.offers)
}

func (p *Projector) Offers() []*domain.Offer {
	return p.offers
}

// Project renders one offer under the current header. Missing cells are empty.
func (p *Projector) Project(offer *domain.Offer) []string {
	header := p.registry.columns
	row := make([]string, len(header))

	row[0] = offer.ID
	row[1] = offer.CategoryName
	row[2] = offer.PicturesField()

	for i := len(FixedColumns); i < len(header); i++ {
		value, ok := offer.Extra[header[i]]
		if !ok {
			continue
		}
		if p.opts.StripHTML {
			value = StripHTML(value)
		}
		row[i] = value
	}

	return row
}

// Emit writes the header and every buffered offer in collection order. It
// returns the number of data rows written.
func (p *Projector) Emit(w RowWriter) (int, error) {
	if err := w.WriteHeader(p.Header()); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	for i, offer := range p.offers {
		if err := w.WriteRow(p.Project(offer)); err != nil {
			return i, fmt.Errorf("failed to write row for offer %q: %w", offer.ID, err)
		}
	}

	return len(p.offers), nil
}
