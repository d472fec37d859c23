package netclient

import (
	"context"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// Transport carries raw envelope frames. The client owns message semantics;
// the transport only moves bytes and reports when the link dies.
type Transport interface {
	Send(data []byte) error
	Close() error
}

// WSTransport is the gorilla/websocket transport. Writes go through a
// buffered channel drained by a single writer goroutine so Send never blocks
// on the socket.
type WSTransport struct {
	conn *websocket.Conn
	out  chan []byte
	log  *log.Logger

	cancel context.CancelFunc
}

const (
	wsWriteTimeout = 5 * time.Second
	wsReadTimeout  = 60 * time.Second
	wsSendQueue    = 32
)

// DialWS connects to the relay and starts the reader and writer loops.
// Every inbound frame is handed to onMessage; onClose fires once when the
// link dies, with the read error.
func DialWS(ctx context.Context, url string, logger *log.Logger, onMessage func([]byte), onClose func(error)) (*WSTransport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	t := &WSTransport{
		conn:   conn,
		out:    make(chan []byte, wsSendQueue),
		log:    logger,
		cancel: cancel,
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case b, ok := <-t.out:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	go func() {
		for {
			_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				_ = conn.Close()
				onClose(err)
				return
			}
			onMessage(msg)
		}
	}()

	return t, nil
}

func (t *WSTransport) Send(data []byte) error {
	select {
	case t.out <- data:
		return nil
	default:
		// A full queue means the link is stalled. Dropping here would
		// silently lose inputs, so treat it as a dead transport.
		t.cancel()
		return websocket.ErrCloseSent
	}
}

func (t *WSTransport) Close() error {
	t.cancel()
	return t.conn.Close()
}
