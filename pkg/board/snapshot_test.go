package board

import (
	"strings"
	"testing"
)

func TestFingerprintOrderInsensitive(t *testing.T) {
	a := []Element{{ID: "x", Version: 1}, {ID: "y", Version: 2}}
	b := []Element{{ID: "y", Version: 2}, {ID: "x", Version: 1}}

	if Fingerprint(a) != Fingerprint(b) {
		t.Error("fingerprint should be order-insensitive")
	}
}

func TestFingerprintDetectsVersionBump(t *testing.T) {
	before := []Element{{ID: "x", Version: 1}}
	after := []Element{{ID: "x", Version: 2}}

	if Fingerprint(before) == Fingerprint(after) {
		t.Error("version bump should change fingerprint")
	}
	if Fingerprint(nil) != "" {
		t.Errorf("empty fingerprint = %q, want empty string", Fingerprint(nil))
	}
}

func TestValidateBindings(t *testing.T) {
	f := NewFactory(NewSequenceGenerator("el"))
	rect := f.Rectangle(0, 0, 10, 10)
	badge := f.Rectangle(50, 0, 10, 10)
	arrow := f.Arrow(10, 5, 40, 0,
		&Binding{ElementID: rect.ID, Gap: 8},
		&Binding{ElementID: badge.ID, Gap: 8})

	if err := ValidateBindings([]Element{rect, badge, arrow}); err != nil {
		t.Errorf("valid bindings rejected: %v", err)
	}

	dangling := f.Arrow(0, 0, 5, 5, &Binding{ElementID: "missing"}, nil)
	err := ValidateBindings([]Element{rect, dangling})
	if err == nil {
		t.Fatal("dangling binding should be rejected")
	}
	if !strings.Contains(err.Error(), "missing") {
		t.Errorf("error should name the dangling id: %v", err)
	}
}

func TestUnmarshalSnapshotDefensive(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{
			name: "valid snapshot",
			data: `{"elements":[{"id":"a","type":"rectangle","x":0,"y":0,"width":1,"height":1,"groupIds":[],"version":1}],"appState":{"scrollX":0,"scrollY":0,"zoom":1}}`,
		},
		{name: "missing elements", data: `{"appState":{}}`, wantErr: true},
		{name: "malformed json", data: `{"elements": [`, wantErr: true},
		{name: "empty object", data: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := UnmarshalSnapshot([]byte(tt.data))
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.Files == nil {
				t.Error("Files map should be initialized")
			}
		})
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	f := NewFactory(NewSequenceGenerator("el"))
	snap := NewSnapshot([]Element{f.Rectangle(0, 0, 10, 10)}, ViewState{Zoom: 1})

	data, err := MarshalSnapshot(snap)
	if err != nil {
		t.Fatalf("MarshalSnapshot: %v", err)
	}
	got, err := UnmarshalSnapshot(data)
	if err != nil {
		t.Fatalf("UnmarshalSnapshot: %v", err)
	}
	if len(got.Elements) != 1 || got.AppState.Zoom != 1 {
		t.Errorf("round trip lost data: %+v", got)
	}
}

func TestBackgroundForTheme(t *testing.T) {
	if BackgroundForTheme(ThemeDark) != BackgroundDark {
		t.Error("dark theme should map to dark background")
	}
	if BackgroundForTheme(ThemeLight) != BackgroundLight {
		t.Error("light theme should map to light background")
	}
	if BackgroundForTheme("unknown") != BackgroundLight {
		t.Error("unknown theme should default to light")
	}
}
