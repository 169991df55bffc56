// Package collab bridges the local board session to collaboration peers.
//
// The bridge is strictly additive: when disconnected, persistence continues
// through the autosave path alone, and every bridge operation degrades to a
// no-op. Element and cursor broadcasts are throttled independently since
// cursor traffic runs at a much higher rate.
package collab

import (
	"context"

	"github.com/partboard/partboard/pkg/board"
)

// Message types on the collaboration wire.
const (
	MessageElements = "elements"
	MessageCursor   = "cursor"
	MessageJoin     = "join"
	MessageLeave    = "leave"
)

// Peer identifies one collaborator in the roster.
type Peer struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Color    string `json:"color"`
}

// Cursor is a pointer position in board coordinates.
type Cursor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Message is one collaboration event. Elements and Cursor are populated
// according to Type; Sender always identifies the origin peer.
type Message struct {
	Type      string          `json:"type"`
	ProjectID string          `json:"projectId"`
	Sender    Peer            `json:"sender"`
	Elements  []board.Element `json:"elements,omitempty"`
	Cursor    *Cursor         `json:"cursor,omitempty"`
}

// Transport moves collaboration messages between peers. Implementations:
// WSTransport (websocket to the collab server) and RedisTransport (pub/sub
// fan-out between server instances).
type Transport interface {
	// Send publishes a message to all peers on the project channel.
	Send(ctx context.Context, msg Message) error

	// Receive returns the inbound message stream. The channel closes when
	// the transport closes or the connection drops.
	Receive() <-chan Message

	// Close tears the connection down and closes the receive channel.
	Close() error
}
