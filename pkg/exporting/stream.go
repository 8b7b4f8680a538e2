package exporting

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

const streamSendBuffer = 64

// Stream fans frame records out to websocket trace consumers. Publishing
// never blocks: a consumer whose send buffer is full loses the record rather
// than stalling the hub.
type Stream struct {
	mu       sync.Mutex
	clients  map[*streamClient]struct{}
	upgrader websocket.Upgrader
}

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

func NewStream() *Stream {
	return &Stream{
		clients: make(map[*streamClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and registers the consumer.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("stream: upgrade failed: %v", err)
		return
	}

	c := &streamClient{conn: conn, send: make(chan []byte, streamSendBuffer)}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	go c.writeLoop(s)
}

func (c *streamClient) writeLoop(s *Stream) {
	defer func() {
		s.remove(c)
		c.conn.Close()
	}()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// Publish sends the record to every connected consumer.
func (s *Stream) Publish(record Record) {
	data, err := json.Marshal(record)
	if err != nil {
		log.Printf("stream: marshal failed: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (s *Stream) remove(c *streamClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}

// ClientCount reports how many consumers are connected.
func (s *Stream) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close disconnects all consumers.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
}
