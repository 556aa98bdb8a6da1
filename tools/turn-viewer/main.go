// Turn Viewer - live view of conversation turns
// Consumes the turn event topics from Kafka and pushes them to the browser over WebSocket
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/kafka-go"
)

// TurnEvent is the union of the completed and failed turn events.
type TurnEvent struct {
	EventType      string  `json:"eventType"`
	SessionID      string  `json:"sessionId"`
	TurnID         string  `json:"turnId"`
	Timestamp      int64   `json:"timestamp"`
	Language       string  `json:"language,omitempty"`
	UserText       string  `json:"userText,omitempty"`
	AssistantText  string  `json:"assistantText,omitempty"`
	Fallback       bool    `json:"fallback,omitempty"`
	Degraded       bool    `json:"degraded,omitempty"`
	AudioSeconds   float64 `json:"audioSeconds,omitempty"`
	SynthesisError string  `json:"synthesisError,omitempty"`
	HistoryLength  int     `json:"historyLength,omitempty"`
	FailedStage    string  `json:"failedStage,omitempty"`
	Error          string  `json:"error,omitempty"`
	DurationMs     int64   `json:"durationMs"`
}

// Hub manages WebSocket connections
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan TurnEvent
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan TurnEvent, 100),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("Client connected. Total: %d", n)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("Client disconnected. Total: %d", n)

		case event := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				if err := conn.WriteJSON(event); err != nil {
					log.Printf("Write error: %v", err)
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local tool
	},
}

func wsHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade error: %v", err)
			return
		}
		hub.register <- conn

		// Reads only detect the disconnect.
		go func() {
			defer func() {
				hub.unregister <- conn
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

func consumeKafka(ctx context.Context, hub *Hub, brokers, topic string, since time.Duration) {
	// Partition reader without a consumer group, so every viewer sees every event.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   strings.Split(brokers, ","),
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-since)); err != nil {
		log.Printf("Could not rewind %s: %v", topic, err)
	}

	log.Printf("Consuming from Kafka topic: %s partition 0 (last %s)", topic, since)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Kafka read error on %s: %v", topic, err)
			time.Sleep(time.Second)
			continue
		}

		var event TurnEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Printf("JSON unmarshal error: %v", err)
			continue
		}

		log.Printf("Received %s: %s (turn: %s)", event.EventType, truncate(event.AssistantText+event.Error, 40), event.TurnID)
		hub.broadcast <- event
	}
}

func main() {
	port := flag.String("port", "8081", "HTTP server port")
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topicCompleted := flag.String("topic-completed", "conversation.turn.completed", "Completed turn topic")
	topicFailed := flag.String("topic-failed", "conversation.turn.failed", "Failed turn topic")
	since := flag.Duration("since", time.Hour, "Replay events newer than this on startup")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := newHub()
	go hub.run(ctx)

	go consumeKafka(ctx, hub, *brokers, *topicCompleted, *since)
	go consumeKafka(ctx, hub, *brokers, *topicFailed, *since)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(indexHTML))
	})
	mux.HandleFunc("/ws", wsHandler(hub))

	log.Printf("Turn Viewer starting on http://localhost:%s", *port)
	log.Printf("   Kafka brokers: %s", *brokers)
	log.Printf("   Topics: %s, %s", *topicCompleted, *topicFailed)

	if err := http.ListenAndServe(":"+*port, mux); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

const indexHTML = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Turn Viewer</title>
<style>
body { font-family: sans-serif; margin: 2em; background: #fafafa; }
.turn { background: #fff; border-left: 4px solid #4a8; padding: .6em 1em; margin: .5em 0; }
.turn.failed { border-color: #c44; }
.turn.degraded { border-color: #da3; }
.meta { color: #888; font-size: .8em; }
</style>
</head>
<body>
<h1>Conversation turns</h1>
<div id="turns"></div>
<script>
const list = document.getElementById("turns");
const ws = new WebSocket("ws://" + location.host + "/ws");
ws.onmessage = (m) => {
  const e = JSON.parse(m.data);
  const div = document.createElement("div");
  div.className = "turn";
  const meta = document.createElement("div");
  meta.className = "meta";
  meta.textContent = e.turnId + " · " + e.durationMs + "ms";
  div.appendChild(meta);
  const body = document.createElement("div");
  if (e.eventType.endsWith("failed")) {
    div.classList.add("failed");
    body.textContent = "failed at " + e.failedStage + ": " + e.error;
  } else {
    if (e.degraded) div.classList.add("degraded");
    body.innerText = "you: " + e.userText + "\nsecretary: " + e.assistantText +
      (e.fallback ? " (fallback)" : "") + (e.degraded ? " (text only)" : "");
  }
  div.appendChild(body);
  list.prepend(div);
};
</script>
</body>
</html>
`
