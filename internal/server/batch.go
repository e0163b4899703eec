package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/emltools/eml2pdf/internal/converter"
)

// batchState holds the progress of the running directory conversion
type batchState struct {
	mu          sync.RWMutex
	running     bool
	current     int
	total       int
	currentFile string
	clients     []chan progressEvent
}

// progressEvent represents a progress update event
type progressEvent struct {
	Type string      `json:"type"` // "progress", "complete", "error"
	Data interface{} `json:"data"`
}

// StartBatch kicks off a directory conversion in the background.
func (s *Server) StartBatch(w http.ResponseWriter, r *http.Request) {
	root := r.FormValue("root")
	if root == "" {
		http.Error(w, "Missing root directory", http.StatusBadRequest)
		return
	}

	st := s.batch
	st.mu.Lock()
	if st.running {
		st.mu.Unlock()
		http.Error(w, "Batch already in progress", http.StatusConflict)
		return
	}
	st.running = true
	st.current = 0
	st.total = 0
	st.currentFile = ""
	st.mu.Unlock()

	// The request context dies with this response, so the batch gets its
	// own.
	go func() {
		defer func() {
			st.mu.Lock()
			st.running = false
			st.mu.Unlock()
		}()

		result, err := s.conv.ConvertDir(context.Background(), root, func(done, total int, path string) {
			st.mu.Lock()
			st.current = done
			st.total = total
			st.currentFile = path
			st.mu.Unlock()

			st.broadcastProgress()
		})
		if err != nil {
			s.logger.Error("batch failed", "root", root, "error", err)
			st.broadcastError(err)
			return
		}
		st.broadcastComplete(result)
	}()

	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintf(w, "Batch started")
}

// BatchProgressSSE handles Server-Sent Events for batch progress
func (s *Server) BatchProgressSSE(w http.ResponseWriter, r *http.Request) {
	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	st := s.batch
	clientChan := make(chan progressEvent, 10)

	// Register client
	st.mu.Lock()
	st.clients = append(st.clients, clientChan)

	// Send initial state if a batch is in progress
	if st.running {
		initialData := map[string]interface{}{
			"current": st.current,
			"total":   st.total,
			"file":    st.currentFile,
		}
		s.sendSSE(w, flusher, "progress", initialData)
	}
	st.mu.Unlock()

	// Listen for updates or client disconnect
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			// Client disconnected, clean up
			st.mu.Lock()
			for i, ch := range st.clients {
				if ch == clientChan {
					st.clients = append(st.clients[:i], st.clients[i+1:]...)
					break
				}
			}
			st.mu.Unlock()
			close(clientChan)
			return

		case event := <-clientChan:
			s.sendSSE(w, flusher, event.Type, event.Data)

			// Close connection after complete or error
			if event.Type == "complete" || event.Type == "error" {
				return
			}
		}
	}
}

// broadcastProgress sends a progress update to all connected clients
func (st *batchState) broadcastProgress() {
	st.mu.RLock()
	defer st.mu.RUnlock()

	event := progressEvent{
		Type: "progress",
		Data: map[string]interface{}{
			"current": st.current,
			"total":   st.total,
			"file":    st.currentFile,
		},
	}

	for _, client := range st.clients {
		select {
		case client <- event:
		default:
			// Client channel full, skip
		}
	}
}

// broadcastComplete sends the final counts to all connected clients
func (st *batchState) broadcastComplete(result *converter.BatchResult) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	event := progressEvent{
		Type: "complete",
		Data: map[string]interface{}{
			"found":     result.TotalFound,
			"converted": result.Converted,
			"skipped":   result.Skipped,
			"failed":    result.Failed,
		},
	}

	for _, client := range st.clients {
		select {
		case client <- event:
		default:
		}
	}
}

// broadcastError sends an error event to all connected clients
func (st *batchState) broadcastError(err error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	event := progressEvent{
		Type: "error",
		Data: map[string]interface{}{
			"error": err.Error(),
		},
	}

	for _, client := range st.clients {
		select {
		case client <- event:
		default:
		}
	}
}

// sendSSE sends an SSE message to the client
func (s *Server) sendSSE(w http.ResponseWriter, flusher http.Flusher, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
}
