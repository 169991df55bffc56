package catalog

import (
	"strings"
	"testing"

	"github.com/partboard/partboard/pkg/errors"
)

func TestHasVersions(t *testing.T) {
	tests := []struct {
		name string
		item Item
		want bool
	}{
		{
			name: "versioned item",
			item: Item{Name: "Chair", Versions: []Version{{ID: "v1", VersionNumber: 1}}},
			want: true,
		},
		{
			name: "legacy item",
			item: Item{Name: "Table", Parts: []Part{{Name: "Leg"}}},
			want: false,
		},
		{
			name: "empty versions slice falls back to legacy",
			item: Item{Name: "Lamp", Versions: []Version{}},
			want: false,
		},
		{
			name: "bare item",
			item: Item{Name: "Rug"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.HasVersions(); got != tt.want {
				t.Errorf("HasVersions() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContentDispatch(t *testing.T) {
	versioned := Item{Name: "Chair", Versions: []Version{{ID: "v1", VersionNumber: 1}}}
	if _, ok := versioned.Content().(Versioned); !ok {
		t.Errorf("Content() = %T, want Versioned", versioned.Content())
	}

	legacy := Item{Name: "Table", Parts: []Part{{Name: "Leg"}}}
	c, ok := legacy.Content().(Legacy)
	if !ok {
		t.Fatalf("Content() = %T, want Legacy", legacy.Content())
	}
	if len(c.Parts) != 1 {
		t.Errorf("Legacy.Parts = %d, want 1", len(c.Parts))
	}

	// Empty versions slice dispatches as legacy with empty parts.
	empty := Item{Name: "Lamp", Versions: []Version{}}
	if _, ok := empty.Content().(Legacy); !ok {
		t.Errorf("Content() = %T, want Legacy for empty versions", empty.Content())
	}
}

func TestPartCount(t *testing.T) {
	item := Item{
		Name: "Chair",
		Versions: []Version{
			{ID: "v1", VersionNumber: 1, Parts: []Part{{Name: "Seat"}, {Name: "Back"}}},
			{ID: "v2", VersionNumber: 2, Parts: []Part{{Name: "Seat"}}},
		},
	}
	if got := item.PartCount(); got != 3 {
		t.Errorf("PartCount() = %d, want 3", got)
	}

	legacy := Item{Name: "Table", Parts: []Part{{Name: "Leg"}, {Name: "Top"}}}
	if got := legacy.PartCount(); got != 2 {
		t.Errorf("PartCount() = %d, want 2", got)
	}
}

func TestVersionsInNumericOrder(t *testing.T) {
	ordered := Item{Name: "A", Versions: []Version{
		{VersionNumber: 1}, {VersionNumber: 3}, {VersionNumber: 7},
	}}
	if !ordered.VersionsInNumericOrder() {
		t.Error("non-contiguous ascending versions should count as ordered")
	}

	shuffled := Item{Name: "B", Versions: []Version{
		{VersionNumber: 2}, {VersionNumber: 1},
	}}
	if shuffled.VersionsInNumericOrder() {
		t.Error("descending versions should not count as ordered")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		project Project
		wantErr string
	}{
		{
			name:    "valid project",
			project: Project{ID: "p1", Title: "Fall Line", Items: []Item{{Name: "Chair"}}},
		},
		{
			name:    "missing id",
			project: Project{Title: "Fall Line"},
			wantErr: "project id is required",
		},
		{
			name:    "missing title",
			project: Project{ID: "p1"},
			wantErr: "project title is required",
		},
		{
			name: "item with both modes",
			project: Project{ID: "p1", Title: "T", Items: []Item{{
				Name:     "Chair",
				Versions: []Version{{ID: "v1", VersionNumber: 1}},
				Parts:    []Part{{Name: "Leg"}},
			}}},
			wantErr: "both versions and legacy parts",
		},
		{
			name: "version number below one",
			project: Project{ID: "p1", Title: "T", Items: []Item{{
				Name:     "Chair",
				Versions: []Version{{ID: "v1", VersionNumber: 0}},
			}}},
			wantErr: "must be >= 1",
		},
		{
			name: "duplicate version numbers",
			project: Project{ID: "p1", Title: "T", Items: []Item{{
				Name: "Chair",
				Versions: []Version{
					{ID: "v1", VersionNumber: 2},
					{ID: "v2", VersionNumber: 2},
				},
			}}},
			wantErr: "duplicate version number",
		},
		{
			name: "annotation out of range",
			project: Project{ID: "p1", Title: "T", Items: []Item{{
				Name: "Chair",
				Parts: []Part{{
					Name:       "Seat",
					Annotation: &Annotation{X: 120, Y: 40, ID: "a1"},
				}},
			}}},
			wantErr: "percentages in [0,100]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.project.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %q, want substring %q", err.Error(), tt.wantErr)
			}
			if !errors.Is(err, errors.ErrCodeInvalidProject) {
				t.Errorf("error code = %q, want INVALID_PROJECT", errors.GetCode(err))
			}
		})
	}
}

func TestProjectRoundTrip(t *testing.T) {
	p := &Project{
		ID:       "p1",
		Title:    "Spring Catalog",
		Retailer: "Homewares Inc",
		Items: []Item{
			{
				Name:      "Chair",
				HeroImage: "https://cdn.example.com/chair.png",
				Versions: []Version{
					{ID: "v1", VersionNumber: 1, VersionName: "Walnut", Parts: []Part{
						{Name: "Seat", Finish: "matte", Color: "#6b4f2a", Texture: "wood grain"},
					}},
				},
			},
		},
	}

	data, err := MarshalProject(p)
	if err != nil {
		t.Fatalf("MarshalProject: %v", err)
	}

	got, err := UnmarshalProject(data)
	if err != nil {
		t.Fatalf("UnmarshalProject: %v", err)
	}
	if got.Title != p.Title || len(got.Items) != 1 {
		t.Errorf("round trip lost data: %+v", got)
	}
	if !got.Items[0].HasVersions() {
		t.Error("round trip lost version mode")
	}
}

func TestUnmarshalProjectRejectsInvalid(t *testing.T) {
	if _, err := UnmarshalProject([]byte(`{"title":"no id"}`)); err == nil {
		t.Error("UnmarshalProject should validate structure")
	}
	if _, err := UnmarshalProject([]byte(`{not json`)); err == nil {
		t.Error("UnmarshalProject should reject malformed JSON")
	}
}
