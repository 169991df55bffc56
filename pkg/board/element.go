// Package board defines the diagram primitives consumed by the external
// canvas renderer: the Element tagged union, the element factory, the board
// snapshot that is the unit of persistence, and bounding-box computation.
//
// Elements use a closed tagged union - check Type to determine which fields
// are populated - and convert to the renderer's loose schema only at the JSON
// boundary. All persisted types carry both JSON and BSON tags.
package board

import (
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// Constants - Single Source of Truth
// =============================================================================

// Element types.
const (
	TypeRectangle = "rectangle"
	TypeText      = "text"
	TypeImage     = "image"
	TypeArrow     = "arrow"
)

// Default visual styling shared by factory constructors.
const (
	DefaultStrokeColor = "#1e1e1e"
	DefaultBackground  = "transparent"
	DefaultFillStyle   = "solid"
	DefaultStrokeWidth = 1.0
	DefaultOpacity     = 100.0
	DefaultFontSize    = 16.0
	DefaultFontFamily  = 1
)

// TextWidthFactor approximates text width as len(text) * fontSize * factor.
// This is a known-imprecise heuristic, not exact glyph metrics; it keeps the
// factory pure and free of font dependencies. Cards size themselves with
// explicit widths, so the approximation only affects free-standing labels.
const TextWidthFactor = 0.6

// =============================================================================
// Element - Diagram Primitive
// =============================================================================

// Element is the unified diagram primitive, a tagged union over
// {rectangle, text, image, arrow}. Type is the discriminator:
//
//	rectangle: base fields only
//	text:      Text, FontSize (Width derived when not set explicitly)
//	image:     FileID referencing an entry in the snapshot's Files map
//	arrow:     Points (relative to X,Y), StartBinding, EndBinding
//
// IDs are globally unique, renderer-opaque strings. Elements belonging to one
// logical card share a group id in GroupIDs, enabling "select the whole card"
// semantics in the renderer.
type Element struct {
	ID     string  `json:"id" bson:"id"`
	Type   string  `json:"type" bson:"type"`
	X      float64 `json:"x" bson:"x"`
	Y      float64 `json:"y" bson:"y"`
	Width  float64 `json:"width" bson:"width"`
	Height float64 `json:"height" bson:"height"`

	GroupIDs  []string `json:"groupIds" bson:"group_ids"`
	Version   int      `json:"version" bson:"version"`
	IsDeleted bool     `json:"isDeleted,omitempty" bson:"is_deleted,omitempty"`

	// Generated marks elements produced by the layout engine, as opposed to
	// user-added ones. Regeneration replaces only generated elements.
	Generated bool `json:"generated,omitempty" bson:"generated,omitempty"`

	// Visual styling
	StrokeColor     string  `json:"strokeColor,omitempty" bson:"stroke_color,omitempty"`
	BackgroundColor string  `json:"backgroundColor,omitempty" bson:"background_color,omitempty"`
	FillStyle       string  `json:"fillStyle,omitempty" bson:"fill_style,omitempty"`
	StrokeWidth     float64 `json:"strokeWidth,omitempty" bson:"stroke_width,omitempty"`
	Opacity         float64 `json:"opacity,omitempty" bson:"opacity,omitempty"`

	// Text-specific
	Text       string  `json:"text,omitempty" bson:"text,omitempty"`
	FontSize   float64 `json:"fontSize,omitempty" bson:"font_size,omitempty"`
	FontFamily int     `json:"fontFamily,omitempty" bson:"font_family,omitempty"`

	// Image-specific
	FileID string `json:"fileId,omitempty" bson:"file_id,omitempty"`

	// Arrow-specific. Points are stored relative to (X,Y) as
	// [[0,0],[dx,dy]]; translating the arrow's container alone does not move
	// the endpoints correctly - callers must recompute points when moving an
	// already-created arrow.
	Points       [][2]float64 `json:"points,omitempty" bson:"points,omitempty"`
	StartBinding *Binding     `json:"startBinding,omitempty" bson:"start_binding,omitempty"`
	EndBinding   *Binding     `json:"endBinding,omitempty" bson:"end_binding,omitempty"`
}

// Binding ties an arrow endpoint to another element.
// The referenced element must exist in the same produced set; dangling
// bindings are a contract violation.
type Binding struct {
	ElementID string  `json:"elementId" bson:"element_id"`
	Focus     float64 `json:"focus" bson:"focus"`
	Gap       float64 `json:"gap" bson:"gap"`
}

// IsArrow returns true for connector elements.
func (e *Element) IsArrow() bool { return e.Type == TypeArrow }

// InGroup reports whether the element carries the given group id.
func (e *Element) InGroup(groupID string) bool {
	for _, g := range e.GroupIDs {
		if g == groupID {
			return true
		}
	}
	return false
}

// =============================================================================
// Element Set Helpers
// =============================================================================

// IsBoardEmpty reports whether the element set contains no live elements.
// A nil slice, an empty slice, and a slice of only soft-deleted elements all
// count as empty.
func IsBoardEmpty(elements []Element) bool {
	for i := range elements {
		if !elements[i].IsDeleted {
			return false
		}
	}
	return true
}

// Fingerprint returns a cheap change-detection digest of an element set built
// from per-element (id, version) pairs. It deliberately ignores geometry and
// styling: the renderer bumps an element's version on every mutation, so the
// pair is a sufficient proxy for deep equality at a fraction of the cost.
// The digest is order-insensitive.
func Fingerprint(elements []Element) string {
	pairs := make([]string, 0, len(elements))
	for i := range elements {
		pairs = append(pairs, fmt.Sprintf("%s:%d", elements[i].ID, elements[i].Version))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

// ValidateBindings checks that every arrow's start and end bindings reference
// ids present in the same set. Returns the first dangling id found.
func ValidateBindings(elements []Element) error {
	ids := make(map[string]bool, len(elements))
	for i := range elements {
		ids[elements[i].ID] = true
	}
	for i := range elements {
		e := &elements[i]
		if !e.IsArrow() {
			continue
		}
		for _, b := range []*Binding{e.StartBinding, e.EndBinding} {
			if b != nil && !ids[b.ElementID] {
				return fmt.Errorf("arrow %s: dangling binding to %s", e.ID, b.ElementID)
			}
		}
	}
	return nil
}
