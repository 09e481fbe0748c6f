// Package progressws is the optional live-progress broadcaster: a batch
// run can optionally expose its progress over a websocket so a caller can
// watch images_processed / current_operation update in real time instead
// of waiting for the final report.
package progressws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Status is the snapshot broadcast to every connected client.
type Status struct {
	IsRunning        bool      `json:"is_running"`
	TotalImages      int       `json:"total_images"`
	ImagesProcessed  int       `json:"images_processed"`
	SuperSafeCount   int       `json:"super_safe_count"`
	SafeCount        int       `json:"safe_count"`
	NSFWCount        int       `json:"nsfw_count"`
	ErrorCount       int       `json:"error_count"`
	CurrentFile      string    `json:"current_file"`
	CurrentOperation string    `json:"current_operation"`
	Progress         float64   `json:"progress"` // 0-100
	StartedAt        time.Time `json:"started_at"`
	ETA              string    `json:"eta,omitempty"`
}

// Tracker manages real-time progress updates for a batch classification run,
// same register/unregister/
// broadcast channel trio, with scrape-shaped fields swapped for batch
// classification counters.
type Tracker struct {
	mu         sync.RWMutex
	status     Status
	clients    map[*websocket.Conn]bool
	broadcast  chan Status
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
}

// NewTracker creates a new progress tracker and starts its broadcast loop.
func NewTracker() *Tracker {
	t := &Tracker{
		status:     Status{IsRunning: false},
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan Status, 100),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}

	go t.run()

	return t
}

func (t *Tracker) run() {
	for {
		select {
		case client := <-t.register:
			t.mu.Lock()
			t.clients[client] = true
			t.mu.Unlock()
			t.sendToClient(client, t.GetStatus())

		case client := <-t.unregister:
			t.mu.Lock()
			if _, ok := t.clients[client]; ok {
				delete(t.clients, client)
				client.Close()
			}
			t.mu.Unlock()

		case status := <-t.broadcast:
			t.mu.RLock()
			for client := range t.clients {
				t.sendToClient(client, status)
			}
			t.mu.RUnlock()
		}
	}
}

func (t *Tracker) sendToClient(client *websocket.Conn, status Status) {
	data, err := json.Marshal(status)
	if err != nil {
		log.Errorf("failed to marshal progress status: %v", err)
		return
	}

	client.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Debugf("failed to send progress update to client: %v", err)
	}
}

// RegisterClient registers a new websocket client to receive updates.
func (t *Tracker) RegisterClient(client *websocket.Conn) {
	t.register <- client
}

// UnregisterClient removes a websocket client.
func (t *Tracker) UnregisterClient(client *websocket.Conn) {
	t.unregister <- client
}

// Start marks the beginning of a batch run over totalImages candidate files.
func (t *Tracker) Start(totalImages int) {
	t.mu.Lock()
	t.status = Status{
		IsRunning:   true,
		TotalImages: totalImages,
		StartedAt:   time.Now(),
	}
	t.mu.Unlock()

	t.broadcastStatus()
}

// Stop marks the end of a batch run.
func (t *Tracker) Stop() {
	t.mu.Lock()
	t.status.IsRunning = false
	t.status.CurrentOperation = "completed"
	t.status.Progress = 100
	t.mu.Unlock()

	t.broadcastStatus()
}

// UpdateOperation describes the phase currently running (e.g. "deduplicating",
// "classifying", "redacting").
func (t *Tracker) UpdateOperation(operation string) {
	t.mu.Lock()
	t.status.CurrentOperation = operation
	t.mu.Unlock()

	t.broadcastStatus()
}

// IncrementImages records that one image finished classification, updating
// the current filename, tier counter, and progress percentage.
func (t *Tracker) IncrementImages(filename string, tier string) {
	t.mu.Lock()
	t.status.ImagesProcessed++
	t.status.CurrentFile = filename
	switch tier {
	case "super_safe":
		t.status.SuperSafeCount++
	case "safe":
		t.status.SafeCount++
	case "nsfw":
		t.status.NSFWCount++
	case "error":
		t.status.ErrorCount++
	}
	if t.status.TotalImages > 0 {
		t.status.Progress = 100 * float64(t.status.ImagesProcessed) / float64(t.status.TotalImages)
	}
	t.updateETALocked()
	t.mu.Unlock()

	t.broadcastStatus()
}

// GetStatus returns the current status snapshot.
func (t *Tracker) GetStatus() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

func (t *Tracker) broadcastStatus() {
	t.mu.RLock()
	status := t.status
	t.mu.RUnlock()

	select {
	case t.broadcast <- status:
	default:
		// Channel full, drop this update; the next one will catch clients up.
	}
}

func (t *Tracker) updateETALocked() {
	if t.status.ImagesProcessed == 0 || t.status.TotalImages == 0 {
		return
	}

	elapsed := time.Since(t.status.StartedAt)
	avgPerImage := elapsed / time.Duration(t.status.ImagesProcessed)
	remaining := t.status.TotalImages - t.status.ImagesProcessed
	if remaining < 0 {
		remaining = 0
	}
	eta := avgPerImage * time.Duration(remaining)

	if eta < time.Minute {
		t.status.ETA = "< 1 minute"
	} else if eta < time.Hour {
		t.status.ETA = fmt.Sprintf("%d minutes", int(eta.Minutes()))
	} else {
		t.status.ETA = fmt.Sprintf("%dh %dm", int(eta.Hours()), int(eta.Minutes())%60)
	}
}

// GetClientCount returns the number of connected websocket clients.
func (t *Tracker) GetClientCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.clients)
}

// Server exposes a Tracker over a single websocket endpoint, adapted from
// a minimal websocket upgrade handler trimmed to the one route a
// batch run needs.
type Server struct {
	Tracker  *Tracker
	upgrader websocket.Upgrader
}

// NewServer creates a websocket server for tracker.
func NewServer(tracker *Tracker) *Server {
	return &Server{
		Tracker: tracker,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request to a websocket connection and registers it
// with the tracker. Connections are unregistered once the client disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("progress websocket upgrade error: %v", err)
		return
	}

	s.Tracker.RegisterClient(conn)

	go func() {
		defer s.Tracker.UnregisterClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// ListenAndServe starts an HTTP server on addr exposing the tracker at /progress.
func ListenAndServe(addr string, tracker *Tracker) error {
	mux := http.NewServeMux()
	mux.Handle("/progress", NewServer(tracker))
	log.Infof("progress websocket listening on %s/progress", addr)
	return http.ListenAndServe(addr, mux)
}
