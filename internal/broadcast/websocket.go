package broadcast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// fallbackWriteWait applies when Deliver is called without a deadline.
	fallbackWriteWait = 5 * time.Second

	// maxClientMessage caps frames read from clients; they only send control traffic.
	maxClientMessage = 512
)

// WSSubscriber delivers messages over a gorilla WebSocket connection.
// Writes are serialized; the first failed write closes the connection.
type WSSubscriber struct {
	id       string
	conn     *websocket.Conn
	encoding Encoding

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// NewWSSubscriber wraps an upgraded connection with a fresh random id.
func NewWSSubscriber(conn *websocket.Conn, enc Encoding) *WSSubscriber {
	return &WSSubscriber{
		id:       uuid.NewString(),
		conn:     conn,
		encoding: enc,
		done:     make(chan struct{}),
	}
}

// ID implements Subscriber.
func (s *WSSubscriber) ID() string { return s.id }

// Encoding returns the wire format of this subscriber.
func (s *WSSubscriber) Encoding() Encoding { return s.encoding }

// Deliver implements Subscriber.
func (s *WSSubscriber) Deliver(ctx context.Context, msg *Message) error {
	data, err := msg.Encode(s.encoding)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	select {
	case <-s.done:
		return ErrSubscriberClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(fallbackWriteWait)
	}
	frame := websocket.TextMessage
	if s.encoding == EncodingMsgpack {
		frame = websocket.BinaryMessage
	}

	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		s.Close()
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := s.conn.WriteMessage(frame, data); err != nil {
		s.Close()
		return fmt.Errorf("write %s message: %w", msg.Kind(), err)
	}
	return nil
}

// ReadPump reads until the client goes away or ctx is cancelled, then closes
// the connection. Incoming frames are discarded.
func (s *WSSubscriber) ReadPump(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()

	s.conn.SetReadLimit(maxClientMessage)
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			s.Close()
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
	}
}

// Close closes the underlying connection, unblocking any pending read or
// write. It is idempotent.
func (s *WSSubscriber) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

// Done is closed once the connection has been closed.
func (s *WSSubscriber) Done() <-chan struct{} { return s.done }
