package server

import (
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/partboard/partboard/pkg/collab"
)

// Hub fans collaboration messages out between websocket clients on the same
// project channel. One hub serves every project; clients are bucketed by
// project id.
type Hub struct {
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	rooms map[string]map[*hubClient]struct{}
}

type hubClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// NewHub creates an empty hub.
func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The collab endpoint is same-origin in production and
			// origin-checked by the reverse proxy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		rooms: map[string]map[*hubClient]struct{}{},
	}
}

// HandleJoin upgrades the request and pumps the client's messages to its
// project peers until the connection drops.
func (h *Hub) HandleJoin(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "project", projectID, "err", err)
		return
	}

	client := &hubClient{conn: conn}
	h.add(projectID, client)
	defer func() {
		h.remove(projectID, client)
		_ = conn.Close()
	}()

	for {
		var msg collab.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		msg.ProjectID = projectID
		h.broadcast(projectID, client, msg)
	}
}

// ClientCount returns the number of clients on a project channel.
func (h *Hub) ClientCount(projectID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[projectID])
}

func (h *Hub) add(projectID string, c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[projectID] == nil {
		h.rooms[projectID] = map[*hubClient]struct{}{}
	}
	h.rooms[projectID][c] = struct{}{}
}

func (h *Hub) remove(projectID string, c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms[projectID], c)
	if len(h.rooms[projectID]) == 0 {
		delete(h.rooms, projectID)
	}
}

// broadcast sends msg to every client on the project channel except the
// sender. A failed write drops only that peer's message; the read loop
// notices the dead connection and removes it.
func (h *Hub) broadcast(projectID string, sender *hubClient, msg collab.Message) {
	h.mu.Lock()
	peers := make([]*hubClient, 0, len(h.rooms[projectID]))
	for c := range h.rooms[projectID] {
		if c != sender {
			peers = append(peers, c)
		}
	}
	h.mu.Unlock()

	for _, c := range peers {
		c.writeMu.Lock()
		err := c.conn.WriteJSON(msg)
		c.writeMu.Unlock()
		if err != nil {
			h.logger.Debug("peer write failed", "project", projectID, "err", err)
		}
	}
}
