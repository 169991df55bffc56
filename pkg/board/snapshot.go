package board

import (
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// Snapshot - Unit of Persistence and Renderer Hydration
// =============================================================================

// Themes for the board background.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Background colors per theme.
const (
	BackgroundLight = "#ffffff"
	BackgroundDark  = "#121212"
)

// Snapshot is the complete state of one project's diagram: elements, view
// state, and embedded file blobs. It is the unit of persistence and of
// renderer hydration.
type Snapshot struct {
	Elements []Element               `json:"elements" bson:"elements"`
	AppState ViewState               `json:"appState" bson:"app_state"`
	Files    map[string]EmbeddedFile `json:"files" bson:"files"`
}

// ViewState holds the renderer's camera and background settings.
type ViewState struct {
	ScrollX             float64 `json:"scrollX" bson:"scroll_x"`
	ScrollY             float64 `json:"scrollY" bson:"scroll_y"`
	Zoom                float64 `json:"zoom" bson:"zoom"`
	ViewBackgroundColor string  `json:"viewBackgroundColor,omitempty" bson:"view_background_color,omitempty"`
	Theme               string  `json:"theme,omitempty" bson:"theme,omitempty"`
}

// EmbeddedFile is an image fetched from a remote URL and inlined as a data
// URL so the diagram is self-contained.
type EmbeddedFile struct {
	ID       string    `json:"id" bson:"id"`
	MimeType string    `json:"mimeType" bson:"mime_type"`
	DataURL  string    `json:"dataURL" bson:"data_url"`
	Created  time.Time `json:"created" bson:"created"`
}

// NewSnapshot creates a snapshot with a non-nil files map.
func NewSnapshot(elements []Element, appState ViewState) *Snapshot {
	return &Snapshot{
		Elements: elements,
		AppState: appState,
		Files:    map[string]EmbeddedFile{},
	}
}

// IsEmpty reports whether the snapshot contains no live elements.
func (s *Snapshot) IsEmpty() bool {
	return s == nil || IsBoardEmpty(s.Elements)
}

// Fingerprint returns the change-detection digest of the snapshot's elements.
func (s *Snapshot) Fingerprint() string {
	if s == nil {
		return ""
	}
	return Fingerprint(s.Elements)
}

// BackgroundForTheme maps a theme name to its view background color.
// Unknown themes default to light.
func BackgroundForTheme(theme string) string {
	if theme == ThemeDark {
		return BackgroundDark
	}
	return BackgroundLight
}

// =============================================================================
// Defensive Loading
// =============================================================================

// UnmarshalSnapshot decodes snapshot JSON, validating the minimal required
// top-level shape before hydrating. Malformed input returns an error rather
// than a partially-populated snapshot; callers substitute an empty board on
// failure so a bad row never crashes the renderer.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	// Probe top-level shape first: elements must be present and an array.
	var probe struct {
		Elements *json.RawMessage `json:"elements"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if probe.Elements == nil {
		return nil, fmt.Errorf("unmarshal snapshot: missing elements field")
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if s.Files == nil {
		s.Files = map[string]EmbeddedFile{}
	}
	return &s, nil
}

// MarshalSnapshot serializes a snapshot to JSON bytes.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
