package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/partboard/partboard/pkg/board"
	"github.com/partboard/partboard/pkg/catalog"
	"github.com/partboard/partboard/pkg/collab"
	"github.com/partboard/partboard/pkg/layout"
	"github.com/partboard/partboard/pkg/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	backend := store.NewMemoryStore()
	srv := New(Options{
		Store:  backend,
		Engine: layout.New(layout.Options{IDs: board.NewSequenceGenerator("el")}),
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, backend
}

func sampleProjectJSON(t *testing.T) []byte {
	t.Helper()
	data, err := catalog.MarshalProject(&catalog.Project{
		ID:    "p1",
		Title: "Catalog",
		Items: []catalog.Item{{Name: "Chair", Parts: []catalog.Part{{Name: "Seat"}}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func decodeError(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error.Code
}

func TestGetBoardNotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/projects/p1/board")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if code := decodeError(t, resp); code != "BOARD_NOT_FOUND" {
		t.Errorf("error code = %q", code)
	}
}

func TestPutThenGetBoard(t *testing.T) {
	ts, _ := newTestServer(t)

	snap := board.NewSnapshot([]board.Element{
		{ID: "e1", Type: board.TypeRectangle, Width: 10, Height: 10, Version: 1},
	}, board.ViewState{Zoom: 1})
	body, err := board.MarshalSnapshot(snap)
	if err != nil {
		t.Fatal(err)
	}

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/projects/p1/board", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT status = %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/projects/p1/board")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var row store.Row
	if err := json.NewDecoder(resp.Body).Decode(&row); err != nil {
		t.Fatal(err)
	}
	if row.ProjectID != "p1" || len(row.Snapshot.Elements) != 1 {
		t.Errorf("round trip row = %+v", row)
	}
}

func TestPutBoardRejectsMalformedSnapshot(t *testing.T) {
	ts, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/projects/p1/board",
		strings.NewReader(`{"notElements": []}`))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if code := decodeError(t, resp); code != "INVALID_SNAPSHOT" {
		t.Errorf("error code = %q", code)
	}
}

func TestInitBoardGeneratesAndPersists(t *testing.T) {
	ts, backend := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/projects/p1/board/init", "application/json",
		bytes.NewReader(sampleProjectJSON(t)))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var snap board.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if snap.IsEmpty() {
		t.Error("init should generate elements")
	}

	row, err := backend.Load(context.Background(), "p1")
	if err != nil {
		t.Fatalf("init should persist the generated board: %v", err)
	}
	if row.Snapshot.IsEmpty() {
		t.Error("persisted board is empty")
	}
}

func TestInitBoardLeavesPopulatedBoardAlone(t *testing.T) {
	ts, backend := newTestServer(t)

	user := board.NewSnapshot([]board.Element{
		{ID: "user-1", Type: board.TypeText, Text: "mine", Version: 7},
	}, board.ViewState{Zoom: 1})
	if err := backend.Save(context.Background(), "p1", user); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(ts.URL+"/api/projects/p1/board/init", "application/json",
		bytes.NewReader(sampleProjectJSON(t)))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	row, err := backend.Load(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(row.Snapshot.Elements) != 1 || row.Snapshot.Elements[0].ID != "user-1" {
		t.Error("populated board must not be silently regenerated")
	}
}

func TestInitBoardForceRequiresConfirm(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/projects/p1/board/init?force=true", "application/json",
		bytes.NewReader(sampleProjectJSON(t)))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
	if code := decodeError(t, resp); code != "CONFIRM_REQUIRED" {
		t.Errorf("error code = %q", code)
	}
}

func TestInitBoardForceConfirmRegenerates(t *testing.T) {
	ts, backend := newTestServer(t)

	existing := board.NewSnapshot([]board.Element{
		{ID: "gen-stale", Type: board.TypeRectangle, Generated: true, Version: 1},
		{ID: "user-note", Type: board.TypeText, Text: "keep", Version: 1},
	}, board.ViewState{Zoom: 1})
	if err := backend.Save(context.Background(), "p1", existing); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(ts.URL+"/api/projects/p1/board/init?force=true&confirm=true",
		"application/json", bytes.NewReader(sampleProjectJSON(t)))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	row, err := backend.Load(context.Background(), "p1")
	if err != nil {
		t.Fatal(err)
	}
	ids := map[string]bool{}
	for i := range row.Snapshot.Elements {
		ids[row.Snapshot.Elements[i].ID] = true
	}
	if ids["gen-stale"] {
		t.Error("stale generated elements should be replaced")
	}
	if !ids["user-note"] {
		t.Error("user elements should survive forced regeneration")
	}
}

func TestInitBoardRejectsInvalidProject(t *testing.T) {
	ts, _ := newTestServer(t)

	// An item carrying both versions and legacy parts is rejected.
	invalid := `{"id":"p1","title":"T","items":[{"name":"X",` +
		`"versions":[{"id":"v1","versionNumber":1}],"parts":[{"name":"P"}]}]}`
	resp, err := http.Post(ts.URL+"/api/projects/p1/board/init", "application/json",
		strings.NewReader(invalid))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if code := decodeError(t, resp); code != "INVALID_PROJECT" {
		t.Errorf("error code = %q", code)
	}
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

// =============================================================================
// Hub
// =============================================================================

func dialHub(t *testing.T, baseURL, projectID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws/projects/" + projectID
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial hub: %v", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readHubMessage(t *testing.T, conn *websocket.Conn) collab.Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg collab.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read hub message: %v", err)
	}
	return msg
}

func TestHubFansOutToProjectPeers(t *testing.T) {
	ts, _ := newTestServer(t)

	a := dialHub(t, ts.URL, "p1")
	b := dialHub(t, ts.URL, "p1")
	other := dialHub(t, ts.URL, "p2")

	sent := collab.Message{
		Type:   collab.MessageCursor,
		Sender: collab.Peer{UserID: "u1", UserName: "Alice"},
		Cursor: &collab.Cursor{X: 3, Y: 4},
	}
	if err := a.WriteJSON(sent); err != nil {
		t.Fatal(err)
	}

	got := readHubMessage(t, b)
	if got.Type != collab.MessageCursor || got.Sender.UserID != "u1" {
		t.Errorf("peer received %+v", got)
	}
	if got.ProjectID != "p1" {
		t.Errorf("hub should stamp project id, got %q", got.ProjectID)
	}

	// The p2 client must not see p1 traffic.
	_ = other.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var leaked collab.Message
	if err := other.ReadJSON(&leaked); err == nil {
		t.Errorf("message leaked across projects: %+v", leaked)
	}
}

func TestHubSenderDoesNotEchoToSelf(t *testing.T) {
	ts, _ := newTestServer(t)
	a := dialHub(t, ts.URL, "p1")

	if err := a.WriteJSON(collab.Message{Type: collab.MessageJoin, Sender: collab.Peer{UserID: "u1"}}); err != nil {
		t.Fatal(err)
	}

	_ = a.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var echo collab.Message
	if err := a.ReadJSON(&echo); err == nil {
		t.Errorf("sender received its own message: %+v", echo)
	}
}
