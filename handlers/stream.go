package handlers

import (
	"net/http"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/websocket"

	"relaywatch/internal/queue"
	"relaywatch/internal/relaypaths"
	"relaywatch/pkg/logger"
)

// upgrader accepts same-origin and cross-origin connections alike; the
// peripheral HTTP layer's own CORS/auth middleware is the access check.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// streamPollFallback is how often Stream re-checks the sidecar file when
// no filesystem watcher is available for its directory.
const streamPollFallback = 500 * time.Millisecond

// Stream handles GET /api/jobs/{id}/ws: it tails the job's stream
// sidecar and relays every new chunk to the client as a text frame until
// the job leaves "processing" or the socket closes.
func (h *JobsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id := URLParam(r, "id")
	if _, err := h.Queue.Load(id); err != nil {
		WriteNotFound(w, "job")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Get().Warn("stream: upgrade failed", "job", id, "error", err)
		return
	}
	defer conn.Close()

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer watcher.Close()
		_ = watcher.Add(h.Queue.Dir())
	}

	path := h.Queue.StreamPath(id)
	var lastSent string
	ticker := time.NewTicker(streamPollFallback)
	defer ticker.Stop()

	send := func() bool {
		data, ok := relaypaths.ReadFileOrDefault(path)
		if ok && string(data) != lastSent {
			lastSent = string(data)
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return false
			}
		}
		job, err := h.Queue.Load(id)
		if err != nil || (job.Status != queue.StatusProcessing && job.Status != queue.StatusPending) {
			conn.WriteMessage(websocket.TextMessage, []byte(`{"done":true}`))
			return false
		}
		return true
	}

	if !send() {
		return
	}

	var events chan fsnotify.Event
	if watcher != nil {
		events = watcher.Events
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Name == path && !send() {
				return
			}
		case <-ticker.C:
			if !send() {
				return
			}
		}
	}
}
