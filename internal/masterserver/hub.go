package masterserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// AllGames subscribes a watcher to every game's events
const AllGames = "*"

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 4096
	feedQueueSize  = 256
	watcherBuffer  = 64
)

// FeedMessage is one registry event as sent to watchers
type FeedMessage struct {
	Type      string    `json:"type"`
	Host      Host      `json:"host"`
	Timestamp time.Time `json:"timestamp"`
}

// Watcher is a websocket subscriber to one game's registry events
type Watcher struct {
	ID     string
	GameID string
	Conn   *websocket.Conn
	Send   chan *FeedMessage
	hub    *Hub
}

// NewWatcher creates a watcher bound to hub
func NewWatcher(id, gameID string, conn *websocket.Conn, hub *Hub) *Watcher {
	if gameID == "" {
		gameID = AllGames
	}
	return &Watcher{
		ID:     id,
		GameID: gameID,
		Conn:   conn,
		Send:   make(chan *FeedMessage, watcherBuffer),
		hub:    hub,
	}
}

// Hub fans registry events out to watchers, keyed by game id
type Hub struct {
	mu       sync.RWMutex
	watchers map[string]map[*Watcher]struct{}

	join   chan *Watcher
	leave  chan *Watcher
	events chan *FeedMessage
	done   chan struct{}

	logger *slog.Logger
}

// NewHub creates an idle hub. Run must be started before watchers join.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		watchers: make(map[string]map[*Watcher]struct{}),
		join:     make(chan *Watcher),
		leave:    make(chan *Watcher),
		events:   make(chan *FeedMessage, feedQueueSize),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// Run serves joins, leaves and events until ctx is done, then closes every
// watcher.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case w := <-h.join:
			h.add(w)
		case w := <-h.leave:
			h.remove(w)
		case msg := <-h.events:
			h.fanOut(msg)
		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// Join subscribes w. It returns false once the hub has stopped.
func (h *Hub) Join(w *Watcher) bool {
	select {
	case h.join <- w:
		return true
	case <-h.done:
		return false
	}
}

// Leave unsubscribes w. After the hub has stopped it does nothing.
func (h *Hub) Leave(w *Watcher) {
	select {
	case h.leave <- w:
	case <-h.done:
	}
}

// Publish queues a registry event without blocking. Events are dropped when
// the queue is full.
func (h *Hub) Publish(event Event) {
	msg := &FeedMessage{Type: event.Type, Host: event.Host, Timestamp: time.Now()}
	select {
	case h.events <- msg:
	case <-h.done:
	default:
		h.logger.Warn("feed queue full, dropping event", "type", event.Type, "host_id", event.Host.ID)
	}
}

// WatcherCount returns the number of watchers subscribed to gameID
func (h *Hub) WatcherCount(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers[gameID])
}

func (h *Hub) add(w *Watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.watchers[w.GameID]
	if set == nil {
		set = make(map[*Watcher]struct{})
		h.watchers[w.GameID] = set
	}
	set[w] = struct{}{}
	h.logger.Debug("watcher joined", "watcher_id", w.ID, "game_id", w.GameID, "watchers", len(set))
}

func (h *Hub) remove(w *Watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.watchers[w.GameID]
	if _, ok := set[w]; !ok {
		return
	}
	delete(set, w)
	close(w.Send)
	if len(set) == 0 {
		delete(h.watchers, w.GameID)
	}
	h.logger.Debug("watcher left", "watcher_id", w.ID, "game_id", w.GameID)
}

// fanOut delivers msg to the host's game watchers and to AllGames watchers.
// Slow watchers miss the message instead of stalling the hub.
func (h *Hub) fanOut(msg *FeedMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := []string{AllGames}
	if id := msg.Host.GameID; id != "" && id != AllGames {
		targets = append(targets, id)
	}

	for _, gameID := range targets {
		for w := range h.watchers[gameID] {
			select {
			case w.Send <- msg:
			default:
				h.logger.Warn("watcher lagging, dropping event", "watcher_id", w.ID, "type", msg.Type)
			}
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, set := range h.watchers {
		for w := range set {
			close(w.Send)
			if w.Conn != nil {
				w.Conn.Close()
			}
		}
	}
	h.watchers = make(map[string]map[*Watcher]struct{})
}

// Listen keeps the connection's read side alive for control frames and
// returns when the peer goes away. Inbound data frames are ignored.
func (w *Watcher) Listen() {
	defer func() {
		w.hub.Leave(w)
		w.Conn.Close()
	}()

	w.Conn.SetReadLimit(maxInboundSize)
	w.Conn.SetReadDeadline(time.Now().Add(pongWait))
	w.Conn.SetPongHandler(func(string) error {
		return w.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := w.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				w.hub.logger.Debug("watcher read failed", "watcher_id", w.ID, "error", err)
			}
			return
		}
	}
}

// Deliver writes queued events and periodic pings until Send is closed or a
// write fails.
func (w *Watcher) Deliver() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		w.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-w.Send:
			w.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				w.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "master server stopping"))
				return
			}
			payload, err := json.Marshal(msg)
			if err != nil {
				w.hub.logger.Warn("failed to encode feed message", "error", err)
				continue
			}
			if err := w.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			w.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
