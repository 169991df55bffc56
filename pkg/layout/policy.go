package layout

import (
	"context"

	"github.com/partboard/partboard/pkg/board"
	"github.com/partboard/partboard/pkg/catalog"
)

// Default viewport used to center the initial camera when the caller does not
// supply one.
const (
	DefaultViewportWidth  = 1200.0
	DefaultViewportHeight = 800.0
)

// =============================================================================
// Initialization Policy
// =============================================================================

// ShouldInitialize decides whether to (re)run the layout engine for a
// project: true if no snapshot exists, or if the snapshot is empty (all
// elements absent or soft-deleted) while the project has at least one item.
// An existing non-empty board is never silently overwritten.
func ShouldInitialize(p *catalog.Project, existing *board.Snapshot) bool {
	if existing == nil {
		return true
	}
	return existing.IsEmpty() && len(p.Items) > 0
}

// InitOptions controls Initialize.
type InitOptions struct {
	// Force regenerates even when the policy says the board is already
	// populated. Generated elements are replaced; user-added elements
	// survive via provenance tagging (see MergeRegenerated).
	Force bool

	// Theme selects the view background ("light" or "dark").
	Theme string

	// Viewport used to center the initial camera. Zero values default to
	// DefaultViewportWidth/Height.
	ViewportWidth  float64
	ViewportHeight float64
}

// Initialize returns the snapshot the renderer should hydrate from.
//
// When not forced and the policy says the existing board stands, the existing
// snapshot is returned unchanged (same pointer). Otherwise the layout engine
// runs (with images when the engine has a fetcher) and the result is wrapped
// with a theme background and a scroll offset centering the generated content.
func (e *Engine) Initialize(ctx context.Context, p *catalog.Project, existing *board.Snapshot, opts InitOptions) (*board.Snapshot, error) {
	if !opts.Force && !ShouldInitialize(p, existing) {
		return existing, nil
	}

	var (
		elements []board.Element
		files    map[string]board.EmbeddedFile
	)
	if e.fetcher != nil {
		var err error
		elements, files, err = e.LayoutProjectWithImages(ctx, p)
		if err != nil {
			return nil, err
		}
	} else {
		elements = e.LayoutProject(p)
		files = map[string]board.EmbeddedFile{}
	}

	if opts.Force && existing != nil {
		elements = MergeRegenerated(existing, elements)
		for id, f := range existing.Files {
			if _, ok := files[id]; !ok {
				files[id] = f
			}
		}
	}

	w, h := opts.ViewportWidth, opts.ViewportHeight
	if w <= 0 {
		w = DefaultViewportWidth
	}
	if h <= 0 {
		h = DefaultViewportHeight
	}

	snap := board.NewSnapshot(elements, board.InitialViewState(board.ComputeBounds(elements), w, h, opts.Theme))
	snap.Files = files
	return snap, nil
}

// MergeRegenerated combines a freshly generated element set with an existing
// snapshot: elements the layout engine produced earlier (provenance-tagged
// via Element.Generated) are replaced wholesale by the new set, while
// user-added elements survive, appended after the generated ones.
//
// Soft-deleted user elements are carried over too so the renderer's history
// semantics are preserved.
func MergeRegenerated(existing *board.Snapshot, regenerated []board.Element) []board.Element {
	if existing == nil {
		return regenerated
	}
	merged := make([]board.Element, 0, len(regenerated)+len(existing.Elements))
	merged = append(merged, regenerated...)
	for i := range existing.Elements {
		if !existing.Elements[i].Generated {
			merged = append(merged, existing.Elements[i])
		}
	}
	return merged
}
