package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	clientBuffer = 16

	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 45 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// snapshotFrames encodes the current queue and history partitions so a new
// push client sees state immediately instead of waiting for a mutation.
func (s *Server) snapshotFrames() [][]byte {
	frames := make([][]byte, 0, 2)
	if tasks, err := s.manager.ListDownloads(); err == nil {
		if data, err := json.Marshal(Event{Type: eventQueueUpdated, Payload: tasks}); err == nil {
			frames = append(frames, data)
		}
	}
	if tasks, err := s.manager.ListHistory(); err == nil {
		if data, err := json.Marshal(Event{Type: eventHistoryUpdated, Payload: tasks}); err == nil {
			frames = append(frames, data)
		}
	}
	return frames
}

// serveSSE streams hub events in text/event-stream framing until the client
// disconnects.
func (s *Server) serveSSE(c *gin.Context) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.String(http.StatusInternalServerError, "streaming unsupported")
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	msgCh := make(chan []byte, clientBuffer)
	s.hub.Subscribe(msgCh)
	defer s.hub.Unsubscribe(msgCh)

	// Handshake comment doubles as a proxy keep-alive; the snapshot frames
	// let the client render current state before the first mutation.
	fmt.Fprint(c.Writer, ": connected\n\n")
	for _, frame := range s.snapshotFrames() {
		fmt.Fprintf(c.Writer, "data: %s\n\n", frame)
	}
	flusher.Flush()

	done := c.Request.Context().Done()
	for {
		select {
		case <-done:
			return
		case msg := <-msgCh:
			fmt.Fprintf(c.Writer, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// serveWS mirrors the event stream over a websocket for clients that prefer
// a socket to SSE. Inbound frames are read only to service control messages.
func (s *Server) serveWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	msgCh := make(chan []byte, clientBuffer)
	s.hub.Subscribe(msgCh)
	defer s.hub.Unsubscribe(msgCh)

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for _, frame := range s.snapshotFrames() {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}

	// Reader goroutine: drains control frames and signals disconnect.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case msg := <-msgCh:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}
