// Package catalog defines the product catalog model: a Project owning Items,
// where each Item holds either a flat list of Parts (legacy shape) or one or
// more Versions that group Parts.
//
// The catalog is read-only input for the layout engine; it is created and
// mutated by the surrounding CRUD surfaces. All types carry both JSON and BSON
// tags so the same structs serve file I/O, the HTTP API, and Mongo persistence.
package catalog

import (
	"time"

	"github.com/partboard/partboard/pkg/errors"
)

// =============================================================================
// Project - Root Aggregate
// =============================================================================

// Project is the root aggregate. It owns its items by value.
type Project struct {
	ID       string `json:"id" bson:"id"`
	Title    string `json:"title" bson:"title"`
	Retailer string `json:"retailer,omitempty" bson:"retailer,omitempty"`
	DueDate  string `json:"due_date,omitempty" bson:"due_date,omitempty"` // ISO-8601 date, display only
	Items    []Item `json:"items" bson:"items"`
}

// Item is a top-level catalog entry (e.g., a product).
//
// An item is in exactly one of two content modes: "versioned" (one or more
// Versions) or "legacy" (a flat Parts list). Mode is determined solely by the
// presence of a non-empty Versions slice; see HasVersions. A well-formed item
// never populates both.
type Item struct {
	Name           string    `json:"name" bson:"name"`
	HeroImage      string    `json:"hero_image,omitempty" bson:"hero_image,omitempty"`
	Notes          string    `json:"notes,omitempty" bson:"notes,omitempty"`
	NeedsPackaging bool      `json:"needs_packaging,omitempty" bson:"needs_packaging,omitempty"`
	NeedsLogo      bool      `json:"needs_logo,omitempty" bson:"needs_logo,omitempty"`
	Versions       []Version `json:"versions,omitempty" bson:"versions,omitempty"`
	Parts          []Part    `json:"parts,omitempty" bson:"parts,omitempty"`
}

// Version is a named/numbered variant of an item, grouping its own parts.
// Versions are presented in slice order; VersionNumber values are unique
// within an item but not required to be contiguous.
type Version struct {
	ID            string    `json:"id" bson:"id"`
	VersionNumber int       `json:"versionNumber" bson:"version_number"`
	VersionName   string    `json:"versionName,omitempty" bson:"version_name,omitempty"`
	Parts         []Part    `json:"parts" bson:"parts"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
}

// Part is a component of an item or version with visual attributes.
type Part struct {
	ID         string      `json:"id,omitempty" bson:"id,omitempty"`
	Name       string      `json:"name" bson:"name"`
	Finish     string      `json:"finish" bson:"finish"`
	Color      string      `json:"color" bson:"color"`
	Texture    string      `json:"texture" bson:"texture"`
	Notes      string      `json:"notes,omitempty" bson:"notes,omitempty"`
	Annotation *Annotation `json:"annotation_data,omitempty" bson:"annotation_data,omitempty"`
}

// Annotation ties a part to a location on the item's hero image.
// X and Y are percentages of the image's width/height in [0,100], not pixels,
// which decouples annotation position from image resolution.
type Annotation struct {
	X  float64 `json:"x" bson:"x"`
	Y  float64 `json:"y" bson:"y"`
	ID string  `json:"id" bson:"id"`
}

// =============================================================================
// Item Content Mode
// =============================================================================

// ItemContent is the sum type over an item's two content modes.
// Obtain it via Item.Content and dispatch with a type switch:
//
//	switch c := item.Content().(type) {
//	case catalog.Versioned:
//	    // c.Versions
//	case catalog.Legacy:
//	    // c.Parts (possibly empty)
//	}
type ItemContent interface {
	isItemContent()
}

// Versioned is the content mode for items with one or more versions.
type Versioned struct {
	Versions []Version
}

// Legacy is the content mode for items with a flat parts list.
// Parts may be empty, in which case the item renders as a bare card.
type Legacy struct {
	Parts []Part
}

func (Versioned) isItemContent() {}
func (Legacy) isItemContent()    {}

// HasVersions is the single discriminant predicate for an item's content mode.
// All read paths dispatch through this rather than checking slice presence
// ad hoc.
func (i *Item) HasVersions() bool {
	return len(i.Versions) > 0
}

// Content returns the item's content in exactly one mode. An item with an
// empty Versions slice falls back to legacy parts rendering.
func (i *Item) Content() ItemContent {
	if i.HasVersions() {
		return Versioned{Versions: i.Versions}
	}
	return Legacy{Parts: i.Parts}
}

// PartCount returns the total number of parts across all modes.
func (i *Item) PartCount() int {
	if i.HasVersions() {
		n := 0
		for _, v := range i.Versions {
			n += len(v.Parts)
		}
		return n
	}
	return len(i.Parts)
}

// VersionsInNumericOrder reports whether the versions slice is already sorted
// by VersionNumber. Layout preserves slice order either way; callers use this
// to flag the discrepancy rather than silently reordering.
func (i *Item) VersionsInNumericOrder() bool {
	for j := 1; j < len(i.Versions); j++ {
		if i.Versions[j].VersionNumber < i.Versions[j-1].VersionNumber {
			return false
		}
	}
	return true
}

// =============================================================================
// Validation
// =============================================================================

// Validate checks structural invariants of the project.
// Returns a structured error with code INVALID_PROJECT on the first violation.
func (p *Project) Validate() error {
	if p.ID == "" {
		return errors.New(errors.ErrCodeInvalidProject, "project id is required")
	}
	if p.Title == "" {
		return errors.New(errors.ErrCodeInvalidProject, "project title is required")
	}
	for i := range p.Items {
		if err := p.Items[i].validate(); err != nil {
			return err
		}
	}
	return nil
}

func (i *Item) validate() error {
	if i.Name == "" {
		return errors.New(errors.ErrCodeInvalidProject, "item name is required")
	}
	if len(i.Versions) > 0 && len(i.Parts) > 0 {
		return errors.New(errors.ErrCodeInvalidProject,
			"item %q has both versions and legacy parts", i.Name)
	}

	seen := make(map[int]bool, len(i.Versions))
	for _, v := range i.Versions {
		if v.VersionNumber < 1 {
			return errors.New(errors.ErrCodeInvalidProject,
				"item %q: version number must be >= 1, got %d", i.Name, v.VersionNumber)
		}
		if seen[v.VersionNumber] {
			return errors.New(errors.ErrCodeInvalidProject,
				"item %q: duplicate version number %d", i.Name, v.VersionNumber)
		}
		seen[v.VersionNumber] = true

		for _, part := range v.Parts {
			if err := part.validate(i.Name); err != nil {
				return err
			}
		}
	}
	for _, part := range i.Parts {
		if err := part.validate(i.Name); err != nil {
			return err
		}
	}
	return nil
}

func (pt *Part) validate(itemName string) error {
	if pt.Name == "" {
		return errors.New(errors.ErrCodeInvalidProject,
			"item %q has a part with no name", itemName)
	}
	if a := pt.Annotation; a != nil {
		if a.X < 0 || a.X > 100 || a.Y < 0 || a.Y > 100 {
			return errors.New(errors.ErrCodeInvalidProject,
				"part %q: annotation coordinates must be percentages in [0,100]", pt.Name)
		}
	}
	return nil
}
