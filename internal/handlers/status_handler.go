package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/interfaces"
)

// StatusHandler reports service health, version and queue depth counters.
type StatusHandler struct {
	queues    []interfaces.JobQueue
	logger    arbor.ILogger
	startedAt time.Time
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(queues []interfaces.JobQueue, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		queues:    queues,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// StatusHandler serves the status snapshot.
// GET /api/status
func (h *StatusHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	stats := make([]interfaces.QueueStats, 0, len(h.queues))
	for _, q := range h.queues {
		s, err := q.Stats(r.Context())
		if err != nil {
			h.logger.Warn().Err(err).Str("queue", string(q.Name())).Msg("Failed to read queue stats")
			continue
		}
		stats = append(stats, s)
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": common.GetFullVersion(),
		"uptime":  time.Since(h.startedAt).Round(time.Second).String(),
		"queues":  stats,
	})
}
