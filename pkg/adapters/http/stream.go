package http

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
)

const streamBuffer = 32

// StreamManager fans project deltas out to connected SSE and WebSocket
// clients. It is the Broadcaster of the coordinator serving this adapter.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan domain.ProjectDelta]struct{} // ProjectID -> set of channels
	logger      *slog.Logger
}

var _ ports.Broadcaster = (*StreamManager)(nil)

func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan domain.ProjectDelta]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a client of a project. The returned func
// unregisters it and closes the channel.
func (sm *StreamManager) Subscribe(projectID string) (<-chan domain.ProjectDelta, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan domain.ProjectDelta, streamBuffer)
	if _, ok := sm.subscribers[projectID]; !ok {
		sm.subscribers[projectID] = make(map[chan domain.ProjectDelta]struct{})
	}
	sm.subscribers[projectID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[projectID]; ok {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(sm.subscribers, projectID)
				}
			}
		})
	}
}

// Broadcast never blocks: a client whose buffer is full misses the delta.
func (sm *StreamManager) Broadcast(_ context.Context, delta domain.ProjectDelta) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	subs := sm.subscribers[delta.ProjectID]
	sm.logger.Debug("broadcasting delta", "project_id", delta.ProjectID, "type", delta.Type, "subscribers", len(subs))
	for ch := range subs {
		select {
		case ch <- delta:
		default:
			sm.logger.Warn("client buffer full, dropping delta", "project_id", delta.ProjectID, "type", delta.Type)
		}
	}
}

// Clients returns the number of connected clients of a project.
func (sm *StreamManager) Clients(projectID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[projectID])
}
