package locator

import (
	"encoding/json"
	"reflect"
)

// Locator describes a position within a publication independent of pagination.
type Locator struct {
	Href      string     `json:"href" validate:"required"`
	Type      string     `json:"type" validate:"required"`
	Title     string     `json:"title,omitempty"` // chapter title
	Locations *Locations `json:"locations,omitempty"`
	Text      *Text      `json:"text,omitempty"`
}

// Locations narrows a Locator down to a point inside its resource.
type Locations struct {
	Fragments        []string `json:"fragments,omitempty"`
	Progression      *float64 `json:"progression,omitempty" validate:"omitempty,gte=0,lte=1"`
	Position         *int     `json:"position,omitempty" validate:"omitempty,gte=0"`
	TotalProgression *float64 `json:"totalProgression,omitempty" validate:"omitempty,gte=0,lte=1"`
	CSSSelector      string   `json:"cssSelector,omitempty"`
	PartialCFI       string   `json:"partialCfi,omitempty"`
}

// Text is the highlighted passage with surrounding context.
type Text struct {
	Before    string `json:"before,omitempty"`
	Highlight string `json:"highlight,omitempty"`
	After     string `json:"after,omitempty"`
}

// Normalize returns a copy with empty collections collapsed so that
// structurally equal locators compare equal regardless of how they were decoded.
func (l Locator) Normalize() Locator {
	if l.Locations != nil {
		locs := l.Locations.Normalize()
		if locs.isZero() {
			l.Locations = nil
		} else {
			l.Locations = &locs
		}
	}
	if l.Text != nil && *l.Text == (Text{}) {
		l.Text = nil
	}
	return l
}

// Normalize returns a copy with an empty fragment list collapsed to nil.
func (l Locations) Normalize() Locations {
	if len(l.Fragments) == 0 {
		l.Fragments = nil
	}
	return l
}

func (l Locations) isZero() bool {
	return l.Fragments == nil && l.Progression == nil && l.Position == nil &&
		l.TotalProgression == nil && l.CSSSelector == "" && l.PartialCFI == ""
}

// Equal reports whether two locators describe the same position: href,
// chapter title, type, locations and highlighted text all deep-equal.
func Equal(a, b Locator) bool {
	return reflect.DeepEqual(a.Normalize(), b.Normalize())
}

// Marshal encodes a locator for storage. A nil locator encodes to "".
func Marshal(l *Locator) (string, error) {
	if l == nil {
		return "", nil
	}
	data, err := json.Marshal(l.Normalize())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// MarshalLocations encodes locations for storage. Nil encodes to "".
func MarshalLocations(l *Locations) (string, error) {
	if l == nil {
		return "", nil
	}
	data, err := json.Marshal(l.Normalize())
	if err != nil {
		return "", err
	}
	return string(data), nil
}
