package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/temirov/codestream/internal/services/stream"
)

// websocketConn adapts a gorilla connection to session.Conn and session.Pinger.
type websocketConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	pongWait     time.Duration
	closeOnce    sync.Once
	closeErr     error
}

func newWebsocketConn(conn *websocket.Conn, writeTimeout time.Duration, pingInterval time.Duration, readLimit int64) *websocketConn {
	adapted := &websocketConn{conn: conn, writeTimeout: writeTimeout}
	conn.SetReadLimit(readLimit)
	if pingInterval > 0 {
		adapted.pongWait = 2 * pingInterval
		_ = conn.SetReadDeadline(time.Now().Add(adapted.pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(adapted.pongWait))
		})
	}
	return adapted
}

// ReadMessage returns the payload of the next text or binary frame. A frame
// larger than the read limit fails the read after gorilla has answered with a
// 1009 close frame, which ends the session without an error event.
func (adapted *websocketConn) ReadMessage() ([]byte, error) {
	for {
		messageType, payload, err := adapted.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType == websocket.TextMessage || messageType == websocket.BinaryMessage {
			if adapted.pongWait > 0 {
				_ = adapted.conn.SetReadDeadline(time.Now().Add(adapted.pongWait))
			}
			return payload, nil
		}
	}
}

func (adapted *websocketConn) WriteEvent(event stream.Event) error {
	if err := adapted.conn.SetWriteDeadline(time.Now().Add(adapted.writeTimeout)); err != nil {
		return err
	}
	payload, err := stream.MarshalEvent(event)
	if err != nil {
		return err
	}
	return adapted.conn.WriteMessage(websocket.TextMessage, payload)
}

func (adapted *websocketConn) Ping() error {
	return adapted.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(adapted.writeTimeout))
}

// Close sends a best effort close frame and releases the connection.
func (adapted *websocketConn) Close() error {
	adapted.closeOnce.Do(func() {
		closeFrame := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = adapted.conn.WriteControl(websocket.CloseMessage, closeFrame, time.Now().Add(time.Second))
		adapted.closeErr = adapted.conn.Close()
	})
	return adapted.closeErr
}
