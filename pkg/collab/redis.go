package collab

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/partboard/partboard/pkg/errors"
)

// RedisTransport fans collaboration messages out through a Redis pub/sub
// channel, one channel per project. Used between server instances so peers
// on different instances still see each other.
type RedisTransport struct {
	rdb       *redis.Client
	projectID string
	pubsub    *redis.PubSub
	recv      chan Message
	cancel    context.CancelFunc
}

// NewRedisTransport subscribes to the project's collab channel and starts
// the receive pump. The provided client is shared, not owned; Close leaves
// it open.
func NewRedisTransport(ctx context.Context, rdb *redis.Client, projectID string) (*RedisTransport, error) {
	pubsub := rdb.Subscribe(ctx, collabChannel(projectID))
	// Force the subscription onto the wire before returning so a Send
	// right after construction is not lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "subscribe collab channel for project %s", projectID)
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	t := &RedisTransport{
		rdb:       rdb,
		projectID: projectID,
		pubsub:    pubsub,
		recv:      make(chan Message, 64),
		cancel:    cancel,
	}
	go t.readPump(pumpCtx)
	return t, nil
}

// Send publishes a message to the project channel.
func (t *RedisTransport) Send(ctx context.Context, msg Message) error {
	msg.ProjectID = t.projectID
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode %s message", msg.Type)
	}
	if err := t.rdb.Publish(ctx, collabChannel(t.projectID), data).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, err, "publish %s message", msg.Type)
	}
	return nil
}

// Receive returns the inbound message stream.
func (t *RedisTransport) Receive() <-chan Message {
	return t.recv
}

// Close unsubscribes and closes the receive channel. The underlying Redis
// client stays open for other consumers.
func (t *RedisTransport) Close() error {
	t.cancel()
	return t.pubsub.Close()
}

func (t *RedisTransport) readPump(ctx context.Context) {
	defer close(t.recv)
	ch := t.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			var msg Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				continue
			}
			select {
			case t.recv <- msg:
			default:
			}
		}
	}
}

// collabChannel namespaces a project's collaboration channel.
func collabChannel(projectID string) string {
	return "partboard:collab:" + projectID
}

// Ensure RedisTransport implements Transport.
var _ Transport = (*RedisTransport)(nil)
