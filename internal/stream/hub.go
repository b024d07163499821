// Package stream broadcasts status transitions to dashboard WebSocket
// clients. All hub state is owned by a single command loop; callers only
// ever send commands.
package stream

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// ErrHubFull is returned by Register when the client cap is reached.
var ErrHubFull = errors.New("dashboard hub is full")

const (
	maxClients   = 100
	writeTimeout = 5 * time.Second
)

type hubCmd interface{ hubCmd() }

type cmdRegister struct {
	conn  *websocket.Conn
	errCh chan error
}

func (cmdRegister) hubCmd() {}

type cmdUnregister struct {
	conn *websocket.Conn
}

func (cmdUnregister) hubCmd() {}

type cmdBroadcast struct {
	data []byte
}

func (cmdBroadcast) hubCmd() {}

type cmdClientCount struct {
	replyCh chan int
}

func (cmdClientCount) hubCmd() {}

type cmdStop struct{}

func (cmdStop) hubCmd() {}

// clientWriter serializes writes to one connection so a slow client never
// blocks the hub loop.
type clientWriter struct {
	conn   *websocket.Conn
	sendCh chan []byte
	done   chan struct{}
}

func newClientWriter(conn *websocket.Conn) *clientWriter {
	cw := &clientWriter{
		conn:   conn,
		sendCh: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	for {
		select {
		case msg, ok := <-cw.sendCh:
			if !ok {
				return
			}
			_ = cw.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cw.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-cw.done:
			return
		}
	}
}

func (cw *clientWriter) stop() {
	close(cw.done)
	_ = cw.conn.Close()
}

// Hub fans one status feed out to every connected dashboard client.
type Hub struct {
	cmdCh   chan hubCmd
	clients map[*websocket.Conn]*clientWriter
}

func NewHub() *Hub {
	hub := &Hub{
		cmdCh:   make(chan hubCmd, 256),
		clients: make(map[*websocket.Conn]*clientWriter),
	}
	go hub.run()
	return hub
}

func (h *Hub) run() {
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			h.handleRegister(c)
		case cmdUnregister:
			h.handleUnregister(c.conn)
		case cmdBroadcast:
			h.handleBroadcast(c.data)
		case cmdClientCount:
			c.replyCh <- len(h.clients)
		case cmdStop:
			h.handleStop()
			return
		}
	}
}

func (h *Hub) handleRegister(c cmdRegister) {
	if len(h.clients) >= maxClients {
		slog.Warn("Rejecting dashboard client, hub is full", "max_clients", maxClients)
		_ = c.conn.Close()
		c.errCh <- ErrHubFull
		return
	}
	h.clients[c.conn] = newClientWriter(c.conn)
	c.errCh <- nil
}

func (h *Hub) handleUnregister(conn *websocket.Conn) {
	if cw, ok := h.clients[conn]; ok {
		cw.stop()
		delete(h.clients, conn)
	}
}

func (h *Hub) handleBroadcast(data []byte) {
	for conn, cw := range h.clients {
		select {
		case cw.sendCh <- data:
		default:
			slog.Warn("Dropping slow dashboard client")
			cw.stop()
			delete(h.clients, conn)
		}
	}
}

func (h *Hub) handleStop() {
	for conn, cw := range h.clients {
		cw.stop()
		delete(h.clients, conn)
	}
}

// Register adds a dashboard connection; the hub owns it until Unregister or
// Stop.
func (h *Hub) Register(conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	h.cmdCh <- cmdRegister{conn: conn, errCh: errCh}
	return <-errCh
}

func (h *Hub) Unregister(conn *websocket.Conn) {
	h.cmdCh <- cmdUnregister{conn: conn}
}

// Broadcast sends a JSON payload to every connected client.
func (h *Hub) Broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal broadcast payload", "error", err)
		return
	}
	h.cmdCh <- cmdBroadcast{data: data}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	h.cmdCh <- cmdClientCount{replyCh: replyCh}
	return <-replyCh
}

// Stop disconnects all clients and shuts the hub down.
func (h *Hub) Stop() {
	h.cmdCh <- cmdStop{}
}
