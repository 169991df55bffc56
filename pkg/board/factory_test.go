package board

import "testing"

func TestSequenceGeneratorDeterminism(t *testing.T) {
	g1 := NewSequenceGenerator("el")
	g2 := NewSequenceGenerator("el")

	for i := 0; i < 3; i++ {
		a, b := g1.NewID(), g2.NewID()
		if a != b {
			t.Errorf("generators diverged: %q vs %q", a, b)
		}
	}
	if id := NewSequenceGenerator("").NewID(); id != "el-1" {
		t.Errorf("default prefix id = %q, want el-1", id)
	}
}

func TestUUIDGeneratorUnique(t *testing.T) {
	g := UUIDGenerator{}
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := g.NewID()
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestRectangleDefaults(t *testing.T) {
	f := NewFactory(NewSequenceGenerator("el"))
	e := f.Rectangle(10, 20, 100, 50)

	if e.Type != TypeRectangle {
		t.Errorf("Type = %q", e.Type)
	}
	if e.ID == "" {
		t.Error("ID should be assigned")
	}
	if e.X != 10 || e.Y != 20 || e.Width != 100 || e.Height != 50 {
		t.Errorf("geometry = (%v,%v,%v,%v)", e.X, e.Y, e.Width, e.Height)
	}
	if len(e.GroupIDs) != 0 {
		t.Errorf("GroupIDs should default to empty, got %v", e.GroupIDs)
	}
	if e.Version != 1 || e.Opacity != DefaultOpacity || e.StrokeColor != DefaultStrokeColor {
		t.Errorf("defaults not applied: %+v", e)
	}
}

func TestTextAutoWidth(t *testing.T) {
	f := NewFactory(NewSequenceGenerator("el"))

	e := f.Text(0, 0, "hello", 20, 0)
	want := float64(len("hello")) * 20 * TextWidthFactor
	if e.Width != want {
		t.Errorf("auto width = %v, want %v", e.Width, want)
	}

	explicit := f.Text(0, 0, "hello", 20, 300)
	if explicit.Width != 300 {
		t.Errorf("explicit width = %v, want 300", explicit.Width)
	}

	if e.FontSize != 20 || e.Text != "hello" {
		t.Errorf("text fields: %+v", e)
	}
}

func TestTextAutoWidthCountsRunes(t *testing.T) {
	f := NewFactory(NewSequenceGenerator("el"))

	// Five runes, fifteen bytes. The heuristic approximates glyph count, so
	// multibyte text must not inflate the width.
	e := f.Text(0, 0, "ラミネート", 20, 0)
	want := 5 * 20 * TextWidthFactor
	if e.Width != want {
		t.Errorf("auto width = %v, want %v (rune count, not byte count)", e.Width, want)
	}
}

func TestImageElement(t *testing.T) {
	f := NewFactory(NewSequenceGenerator("el"))
	e := f.Image(1, 2, 3, 4, "file-9")
	if e.Type != TypeImage || e.FileID != "file-9" {
		t.Errorf("image element: %+v", e)
	}
}

func TestArrowRelativePoints(t *testing.T) {
	f := NewFactory(NewSequenceGenerator("el"))
	start := &Binding{ElementID: "a", Gap: 8}
	end := &Binding{ElementID: "b", Gap: 8}

	e := f.Arrow(100, 50, 80, -30, start, end)

	if e.Type != TypeArrow {
		t.Errorf("Type = %q", e.Type)
	}
	if len(e.Points) != 2 || e.Points[0] != [2]float64{0, 0} || e.Points[1] != [2]float64{80, -30} {
		t.Errorf("Points = %v, want [[0,0],[80,-30]]", e.Points)
	}
	if e.Width != 80 || e.Height != 30 {
		t.Errorf("span = (%v,%v), want (80,30)", e.Width, e.Height)
	}
	if e.StartBinding != start || e.EndBinding != end {
		t.Error("bindings not attached")
	}
}
