package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"scout/internal/agent/ports"
	"scout/internal/agent/types"
	"scout/internal/logging"
)

// FileStore is a DocumentStore that keeps records in memory and writes every
// mutation through to JSON files under a data directory. Records are loaded
// back on open, one file per record:
//
//	<dataDir>/sessions/<id>.json
//	<dataDir>/episodes/<id>.json
//	<dataDir>/facts/<id>.json
//	<dataDir>/strategies/<id>.json
//	<dataDir>/feedback/<session id>.json
type FileStore struct {
	*MemoryStore
	dataDir string
	logger  logging.Logger
}

var _ ports.DocumentStore = (*FileStore)(nil)

const (
	dirSessions   = "sessions"
	dirEpisodes   = "episodes"
	dirFacts      = "facts"
	dirStrategies = "strategies"
	dirFeedback   = "feedback"
)

// NewFileStore opens (creating if needed) a file-backed document store.
func NewFileStore(dataDir string, logger logging.Logger) (*FileStore, error) {
	s := &FileStore{
		MemoryStore: NewMemoryStore(),
		dataDir:     dataDir,
		logger:      logging.OrNop(logger),
	}
	for _, dir := range []string{dirSessions, dirEpisodes, dirFacts, dirStrategies, dirFeedback} {
		if err := os.MkdirAll(filepath.Join(dataDir, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	ctx := context.Background()

	if err := loadDir(s, dirSessions, func(session types.Session) error {
		return s.MemoryStore.CreateSession(ctx, session)
	}); err != nil {
		return err
	}
	if err := loadDir(s, dirEpisodes, func(episode types.EpisodicMemory) error {
		return s.MemoryStore.StoreEpisode(ctx, episode)
	}); err != nil {
		return err
	}
	if err := loadDir(s, dirFacts, func(fact types.Fact) error {
		return s.MemoryStore.StoreFact(ctx, fact)
	}); err != nil {
		return err
	}
	if err := loadDir(s, dirStrategies, func(strategy types.Strategy) error {
		return s.MemoryStore.StoreStrategy(ctx, strategy)
	}); err != nil {
		return err
	}
	return loadDir(s, dirFeedback, func(items []types.Feedback) error {
		for _, fb := range items {
			if err := s.MemoryStore.StoreFeedback(ctx, fb); err != nil {
				return err
			}
		}
		return nil
	})
}

func loadDir[T any](s *FileStore, dir string, apply func(T) error) error {
	entries, err := os.ReadDir(filepath.Join(s.dataDir, dir))
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dataDir, dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("Skipping unreadable record %s: %v", path, err)
			continue
		}
		var record T
		if err := json.Unmarshal(data, &record); err != nil {
			s.logger.Warn("Skipping corrupt record %s: %v", path, err)
			continue
		}
		if err := apply(record); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileStore) persist(dir, id string, record any) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", id, err)
	}
	path := filepath.Join(s.dataDir, dir, id+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write record %s: %w", id, err)
	}
	return os.Rename(tmp, path)
}

func (s *FileStore) remove(dir, id string) {
	path := filepath.Join(s.dataDir, dir, id+".json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to remove record %s: %v", path, err)
	}
}

// CreateSession stores and persists a new session.
func (s *FileStore) CreateSession(ctx context.Context, session types.Session) error {
	if err := s.MemoryStore.CreateSession(ctx, session); err != nil {
		return err
	}
	return s.persist(dirSessions, session.ID, session)
}

// UpdateSession replaces and persists a session.
func (s *FileStore) UpdateSession(ctx context.Context, session types.Session) error {
	if err := s.MemoryStore.UpdateSession(ctx, session); err != nil {
		return err
	}
	return s.persist(dirSessions, session.ID, session)
}

// DeleteSession removes a session record and its file.
func (s *FileStore) DeleteSession(ctx context.Context, id string) error {
	if err := s.MemoryStore.DeleteSession(ctx, id); err != nil {
		return err
	}
	s.remove(dirSessions, id)
	return nil
}

// StoreEpisode stores and persists an episode.
func (s *FileStore) StoreEpisode(ctx context.Context, episode types.EpisodicMemory) error {
	if err := s.MemoryStore.StoreEpisode(ctx, episode); err != nil {
		return err
	}
	return s.persist(dirEpisodes, episode.ID, episode)
}

// DeleteEpisode removes an episode record and its file.
func (s *FileStore) DeleteEpisode(ctx context.Context, id string) error {
	if err := s.MemoryStore.DeleteEpisode(ctx, id); err != nil {
		return err
	}
	s.remove(dirEpisodes, id)
	return nil
}

// StoreFact stores and persists a fact.
func (s *FileStore) StoreFact(ctx context.Context, fact types.Fact) error {
	if err := s.MemoryStore.StoreFact(ctx, fact); err != nil {
		return err
	}
	return s.persist(dirFacts, fact.ID, fact)
}

// UpdateFact replaces and persists a fact.
func (s *FileStore) UpdateFact(ctx context.Context, fact types.Fact) error {
	if err := s.MemoryStore.UpdateFact(ctx, fact); err != nil {
		return err
	}
	return s.persist(dirFacts, fact.ID, fact)
}

// DeleteFact removes a fact record and its file.
func (s *FileStore) DeleteFact(ctx context.Context, id string) error {
	if err := s.MemoryStore.DeleteFact(ctx, id); err != nil {
		return err
	}
	s.remove(dirFacts, id)
	return nil
}

// StoreStrategy stores and persists a strategy.
func (s *FileStore) StoreStrategy(ctx context.Context, strategy types.Strategy) error {
	if err := s.MemoryStore.StoreStrategy(ctx, strategy); err != nil {
		return err
	}
	return s.persist(dirStrategies, strategy.ID, strategy)
}

// UpdateStrategy replaces and persists a strategy.
func (s *FileStore) UpdateStrategy(ctx context.Context, strategy types.Strategy) error {
	if err := s.MemoryStore.UpdateStrategy(ctx, strategy); err != nil {
		return err
	}
	return s.persist(dirStrategies, strategy.ID, strategy)
}

// StoreFeedback appends and persists feedback for a session.
func (s *FileStore) StoreFeedback(ctx context.Context, feedback types.Feedback) error {
	if err := s.MemoryStore.StoreFeedback(ctx, feedback); err != nil {
		return err
	}
	all, err := s.MemoryStore.GetFeedbackBySession(ctx, feedback.SessionID)
	if err != nil {
		return err
	}
	return s.persist(dirFeedback, feedback.SessionID, all)
}
