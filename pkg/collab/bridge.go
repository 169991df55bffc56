package collab

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/partboard/partboard/pkg/board"
)

// Throttle intervals for the two outbound streams. Cursor traffic runs an
// order of magnitude hotter than element traffic.
const (
	ElementThrottle = 200 * time.Millisecond
	CursorThrottle  = 33 * time.Millisecond
)

// Dialer opens a transport for a project channel. The bridge owns the
// returned transport until Disconnect.
type Dialer func(ctx context.Context) (Transport, error)

// Handlers receives inbound peer events. Any handler may be nil.
// Handlers run on the bridge's read goroutine and must not block.
type Handlers struct {
	// OnElements delivers a peer's element delta for the renderer to apply.
	OnElements func(sender Peer, elements []board.Element)

	// OnCursor delivers a peer's pointer position.
	OnCursor func(sender Peer, cursor Cursor)

	// OnRosterChange fires after a peer joins or leaves.
	OnRosterChange func(roster []Peer)
}

// Bridge connects one local session to its collaboration peers.
//
// Connect and Disconnect are idempotent; calling either in the target state
// is a no-op. While disconnected every broadcast silently drops, so callers
// never need to branch on connection state.
type Bridge struct {
	self     Peer
	dial     Dialer
	handlers Handlers
	logger   *log.Logger

	elementTh *throttle
	cursorTh  *throttle

	mu        sync.Mutex
	connected bool
	transport Transport
	roster    map[string]Peer
	readDone  chan struct{}
}

// NewBridge creates a disconnected bridge for the given local peer.
func NewBridge(self Peer, dial Dialer, handlers Handlers, logger *log.Logger) *Bridge {
	if logger == nil {
		logger = log.Default()
	}
	return &Bridge{
		self:      self,
		dial:      dial,
		handlers:  handlers,
		logger:    logger,
		elementTh: newThrottle(ElementThrottle),
		cursorTh:  newThrottle(CursorThrottle),
		roster:    map[string]Peer{},
	}
}

// Connect dials the transport and announces this peer. Idempotent: connecting
// an already-connected bridge is a no-op. A dial failure leaves the bridge
// disconnected and retryable.
func (b *Bridge) Connect(ctx context.Context) error {
	b.mu.Lock()
	if b.connected {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	transport, err := b.dial(ctx)
	if err != nil {
		return err
	}

	b.mu.Lock()
	if b.connected {
		// Lost a connect race; keep the first transport.
		b.mu.Unlock()
		_ = transport.Close()
		return nil
	}
	b.transport = transport
	b.connected = true
	b.readDone = make(chan struct{})
	done := b.readDone
	b.mu.Unlock()

	go b.readLoop(transport, done)

	if err := transport.Send(ctx, Message{Type: MessageJoin, Sender: b.self}); err != nil {
		b.logger.Warn("join announce failed", "err", err)
	}
	return nil
}

// Disconnect announces departure and tears the transport down. Idempotent.
func (b *Bridge) Disconnect() {
	b.mu.Lock()
	if !b.connected {
		b.mu.Unlock()
		return
	}
	transport := b.transport
	done := b.readDone
	b.connected = false
	b.transport = nil
	b.roster = map[string]Peer{}
	b.mu.Unlock()

	b.elementTh.stop()
	b.cursorTh.stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := transport.Send(ctx, Message{Type: MessageLeave, Sender: b.self}); err != nil {
		b.logger.Debug("leave announce failed", "err", err)
	}
	_ = transport.Close()
	<-done
}

// Connected reports whether the bridge currently has a live transport.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// Roster returns the known peers, sorted by user id for stable display.
// The local peer is not included.
func (b *Bridge) Roster() []Peer {
	b.mu.Lock()
	peers := make([]Peer, 0, len(b.roster))
	for _, p := range b.roster {
		peers = append(peers, p)
	}
	b.mu.Unlock()

	sort.Slice(peers, func(i, j int) bool { return peers[i].UserID < peers[j].UserID })
	return peers
}

// BroadcastElements sends the local element set to peers, throttled. While
// disconnected this is a silent no-op.
func (b *Bridge) BroadcastElements(elements []board.Element) {
	b.elementTh.do(func() {
		b.send(Message{Type: MessageElements, Sender: b.self, Elements: elements})
	})
}

// BroadcastCursor sends the local pointer position to peers, throttled on its
// own, much shorter interval. While disconnected this is a silent no-op.
func (b *Bridge) BroadcastCursor(x, y float64) {
	b.cursorTh.do(func() {
		b.send(Message{Type: MessageCursor, Sender: b.self, Cursor: &Cursor{X: x, Y: y}})
	})
}

func (b *Bridge) send(msg Message) {
	b.mu.Lock()
	transport := b.transport
	b.mu.Unlock()
	if transport == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := transport.Send(ctx, msg); err != nil {
		b.logger.Warn("broadcast failed", "type", msg.Type, "err", err)
	}
}

// readLoop dispatches inbound messages until the transport's receive channel
// closes. Messages echoed back from this peer are dropped.
func (b *Bridge) readLoop(transport Transport, done chan struct{}) {
	defer close(done)

	for msg := range transport.Receive() {
		if msg.Sender.UserID == b.self.UserID {
			continue
		}

		switch msg.Type {
		case MessageJoin:
			b.mu.Lock()
			b.roster[msg.Sender.UserID] = msg.Sender
			b.mu.Unlock()
			b.notifyRoster()
		case MessageLeave:
			b.mu.Lock()
			delete(b.roster, msg.Sender.UserID)
			b.mu.Unlock()
			b.notifyRoster()
		case MessageElements:
			if b.handlers.OnElements != nil {
				b.handlers.OnElements(msg.Sender, msg.Elements)
			}
		case MessageCursor:
			if b.handlers.OnCursor != nil && msg.Cursor != nil {
				b.handlers.OnCursor(msg.Sender, *msg.Cursor)
			}
		default:
			b.logger.Debug("unknown collab message", "type", msg.Type)
		}
	}

	// Receive closed underneath us. After a local Disconnect the state is
	// already reset; otherwise the transport dropped and the bridge degrades
	// to local-only so Connect can be retried.
	b.mu.Lock()
	if !b.connected || b.transport != transport {
		b.mu.Unlock()
		return
	}
	b.connected = false
	b.transport = nil
	hadPeers := len(b.roster) > 0
	b.roster = map[string]Peer{}
	b.mu.Unlock()

	b.logger.Warn("collab transport dropped; working locally")
	_ = transport.Close()
	if hadPeers {
		b.notifyRoster()
	}
}

func (b *Bridge) notifyRoster() {
	if b.handlers.OnRosterChange != nil {
		b.handlers.OnRosterChange(b.Roster())
	}
}
