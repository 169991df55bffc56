package board

// Bounds is the axis-aligned bounding box of a set of elements.
// Width and Height are always >= 0; the zero value represents the bounds of
// an empty set.
type Bounds struct {
	MinX, MinY float64
	MaxX, MaxY float64
	Width      float64
	Height     float64
}

// ComputeBounds returns the bounding box of all non-deleted elements.
// Returns the all-zero box when the input is empty or fully soft-deleted;
// infinities never leak to callers. Used to derive an initial scroll/zoom
// offset so generated content is visible without camera search.
func ComputeBounds(elements []Element) Bounds {
	first := true
	var b Bounds

	for i := range elements {
		e := &elements[i]
		if e.IsDeleted {
			continue
		}
		if first {
			b.MinX, b.MinY = e.X, e.Y
			b.MaxX, b.MaxY = e.X+e.Width, e.Y+e.Height
			first = false
			continue
		}
		b.MinX = min(b.MinX, e.X)
		b.MinY = min(b.MinY, e.Y)
		b.MaxX = max(b.MaxX, e.X+e.Width)
		b.MaxY = max(b.MaxY, e.Y+e.Height)
	}

	if first {
		return Bounds{}
	}
	b.Width = b.MaxX - b.MinX
	b.Height = b.MaxY - b.MinY
	return b
}

// Contains reports whether the element's rectangle lies within the bounds.
func (b Bounds) Contains(e *Element) bool {
	return e.X >= b.MinX && e.Y >= b.MinY &&
		e.X+e.Width <= b.MaxX && e.Y+e.Height <= b.MaxY
}

// InitialViewState derives a view state that centers the given bounds in a
// viewport of the provided size at zoom 1. The background color follows the
// theme.
func InitialViewState(b Bounds, viewportW, viewportH float64, theme string) ViewState {
	vs := ViewState{
		Zoom:                1,
		Theme:               theme,
		ViewBackgroundColor: BackgroundForTheme(theme),
	}
	vs.ScrollX = -(b.MinX - (viewportW-b.Width)/2)
	vs.ScrollY = -(b.MinY - (viewportH-b.Height)/2)
	return vs
}
