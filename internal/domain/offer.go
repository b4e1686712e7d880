package domain

import (
	"sort"
	"strings"
)

// UndefinedCategory is written as category_name when an offer's categoryId
// has no matching <category>.
const UndefinedCategory = "Undefined"

// PictureSeparator joins collected picture URLs inside the pictures column.
const PictureSeparator = ","

type Offer struct {
	ID           string            `json:"id"`
	CategoryID   string            `json:"category_id,omitempty"`
	CategoryName string            `json:"category_name"`
	Extra        map[string]string `json:"extra"`
	Pictures     []string          `json:"pictures,omitempty"`

	order []string
}

// NewOffer returns an offer with an unresolved category and an empty attribute bag.
func NewOffer(id string) *Offer {
	return &Offer{
		ID:           id,
		CategoryName: UndefinedCategory,
		Extra:        make(map[string]string),
	}
}

// PicturesField is the value of the pictures column.
func (o *Offer) PicturesField() string {
	return strings.Join(o.Pictures, PictureSeparator)
}

// Set stores an extra attribute. A repeated key keeps its first position and
// takes the latest value.
func (o *Offer) Set(key, value string) {
	if o.Extra == nil {
		o.Extra = make(map[string]string)
	}
	if _, exists := o.Extra[key]; !exists {
		o.order = append(o.order, key)
	}
	o.Extra[key] = value
}

// Keys returns the extra attribute keys in the order they were first set.
// Keys written to Extra directly come last, sorted.
func (o *Offer) Keys() []string {
	keys := make([]string, 0, len(o.Extra))
	seen := make(map[string]struct{}, len(o.order))
	for _, key := range o.order {
		if _, ok := o.Extra[key]; ok {
			keys = append(keys, key)
			seen[key] = struct{}{}
		}
	}

	if len(keys) == len(o.Extra) {
		return keys
	}

	rest := make([]string, 0, len(o.Extra)-len(keys))
	for key := range o.Extra {
		if _, ok := seen[key]; !ok {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}
