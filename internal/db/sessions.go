package db

import (
	"sync"

	"github.com/mfields/taskhive/pkg/models"
)

// StagedBatch accumulates tasks proposed over MCP before they are created
// in one bulk transaction. SubtaskTitles are stamped under every staged
// task at commit time.
type StagedBatch struct {
	Tasks         []*models.Task
	SubtaskTitles []string
}

// SessionManager provides thread-safe in-memory storage for staged batches.
type SessionManager struct {
	mu     sync.RWMutex
	staged map[string]*StagedBatch
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		staged: make(map[string]*StagedBatch),
	}
}

func (sm *SessionManager) AddTask(sessionID string, task *models.Task) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.staged[sessionID] == nil {
		sm.staged[sessionID] = &StagedBatch{}
	}
	sm.staged[sessionID].Tasks = append(sm.staged[sessionID].Tasks, task)
}

func (sm *SessionManager) SetSubtaskTitles(sessionID string, titles []string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.staged[sessionID] == nil {
		sm.staged[sessionID] = &StagedBatch{}
	}
	sm.staged[sessionID].SubtaskTitles = titles
}

func (sm *SessionManager) GetAndClear(sessionID string) *StagedBatch {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	batch, ok := sm.staged[sessionID]
	if !ok {
		return &StagedBatch{}
	}

	delete(sm.staged, sessionID)
	return batch
}

func (sm *SessionManager) Peek(sessionID string) *StagedBatch {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	batch, ok := sm.staged[sessionID]
	if !ok {
		return &StagedBatch{}
	}
	return batch
}
