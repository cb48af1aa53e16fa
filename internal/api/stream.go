/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"

	"github.com/ardikabs/ircnotify/internal/orchestrator"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Auth already happened in the bearer middleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

// streamHub fans delivery notes out to connected websocket clients.
// A note that does not fit a slow client's buffer is dropped for that client
// rather than allowed to block the pipeline.
type streamHub struct {
	log logr.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]chan orchestrator.DeliveryNote
	closed  bool
}

func newStreamHub(log logr.Logger) *streamHub {
	return &streamHub{
		log:     log.WithName("stream"),
		clients: map[*websocket.Conn]chan orchestrator.DeliveryNote{},
	}
}

// Broadcast queues a note for every connected client, dropping on overflow.
func (h *streamHub) Broadcast(note orchestrator.DeliveryNote) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.clients {
		select {
		case ch <- note:
		default:
		}
	}
}

// Close disconnects every client.
func (h *streamHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for conn, ch := range h.clients {
		close(ch)
		conn.Close()
	}
	h.clients = map[*websocket.Conn]chan orchestrator.DeliveryNote{}
}

func (h *streamHub) add(conn *websocket.Conn) chan orchestrator.DeliveryNote {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	ch := make(chan orchestrator.DeliveryNote, 64)
	h.clients[conn] = ch
	return ch
}

func (h *streamHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	conn.Close()
}

// handleStream upgrades the connection and writes one JSON frame per
// delivery until the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	ch := s.stream.add(conn)
	if ch == nil {
		conn.Close()
		return
	}
	s.log.V(1).Info("stream client connected", "remote", conn.RemoteAddr().String())

	// Reader goroutine: detect client close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			s.stream.remove(conn)
			return
		case note, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(note); err != nil {
				s.stream.remove(conn)
				return
			}
		}
	}
}
