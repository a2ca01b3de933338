// Package history persists terminal tasks as one versioned JSON document,
// rewritten in full on every terminal transition. Full rewrite beats an
// append log here: the document stays small, and a crash can at worst lose
// the latest transition, never corrupt the file.
package history

import (
	"encoding/json"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/nexmoe/vidbee-server/internal/model"
	"github.com/nexmoe/vidbee-server/internal/store"
)

const DocumentVersion = 1

type document struct {
	Version int                  `json:"version"`
	History []model.DownloadTask `json:"history"`
}

// Store reads and rewrites the history document. The in-memory copy of the
// history lives in the task registry; Store only owns the file.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

func NewStore(path string, logger *zap.Logger) *Store {
	return &Store{path: path, logger: logger}
}

// Load reads the persisted document. It accepts either the `{version,
// history}` wrapper or a bare task list, and drops invalid records one by
// one instead of refusing the whole file. A missing file is an empty
// history.
func (s *Store) Load() ([]model.DownloadTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var records []model.DownloadTask
	var doc document
	if err := json.Unmarshal(data, &doc); err == nil && doc.History != nil {
		records = doc.History
	} else if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}

	valid := make([]model.DownloadTask, 0, len(records))
	for _, t := range records {
		if !validRecord(t) {
			s.logger.Debug("dropping malformed history record",
				zap.String("task_id", t.ID),
				zap.String("status", t.Status))
			continue
		}
		valid = append(valid, t)
	}
	return valid, nil
}

// Save rewrites the whole document atomically.
func (s *Store) Save(history []model.DownloadTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if history == nil {
		history = []model.DownloadTask{}
	}
	return store.WriteJSON(s.path, document{Version: DocumentVersion, History: history})
}

func validRecord(t model.DownloadTask) bool {
	if t.ID == "" || t.URL == "" {
		return false
	}
	if !model.IsKnownMediaType(t.Type) {
		return false
	}
	if !model.IsTerminalStatus(t.Status) {
		return false
	}
	if t.CreatedAt.IsZero() {
		return false
	}
	return true
}
