package collab

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/partboard/partboard/pkg/errors"
)

// WSTransport carries collaboration messages over a websocket to the collab
// endpoint. Writes are serialized with a mutex since gorilla connections
// allow only one concurrent writer.
type WSTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	recv    chan Message

	closeOnce sync.Once
}

// DialWS connects to a collab websocket endpoint and starts the read pump.
func DialWS(ctx context.Context, url string) (*WSTransport, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "dial collab endpoint %s", url)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	t := &WSTransport{
		conn: conn,
		recv: make(chan Message, 64),
	}
	go t.readPump()
	return t, nil
}

// Send publishes a message on the websocket.
func (t *WSTransport) Send(ctx context.Context, msg Message) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(deadline)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.conn.WriteJSON(msg); err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, err, "send %s message", msg.Type)
	}
	return nil
}

// Receive returns the inbound message stream.
func (t *WSTransport) Receive() <-chan Message {
	return t.recv
}

// Close sends a close frame and tears the connection down.
func (t *WSTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.writeMu.Lock()
		_ = t.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		t.writeMu.Unlock()
		err = t.conn.Close()
	})
	return err
}

// readPump decodes inbound frames until the connection drops, then closes
// the receive channel.
func (t *WSTransport) readPump() {
	defer close(t.recv)
	for {
		var msg Message
		if err := t.conn.ReadJSON(&msg); err != nil {
			return
		}
		select {
		case t.recv <- msg:
		default:
			// Receiver stalled; drop rather than block the pump.
		}
	}
}

// Ensure WSTransport implements Transport.
var _ Transport = (*WSTransport)(nil)
