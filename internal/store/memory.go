package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/OpenHaul/ProfileFlow/internal/models"
)

// InMemoryStore is a Store kept entirely in process memory. Used in tests and
// for local experimentation; data does not survive a restart.
type InMemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string][]byte
	submissions map[string][]byte
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions:    make(map[string][]byte),
		submissions: make(map[string][]byte),
	}
}

// GetSession retrieves the session owned by userID, or nil when absent.
func (s *InMemoryStore) GetSession(userID string) (*models.Session, error) {
	s.mu.RLock()
	data, ok := s.sessions[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session for %s: %w", userID, err)
	}
	return &session, nil
}

// SaveSession stores or replaces the session keyed by its user ID. The
// session is serialized on write so callers cannot mutate stored state.
func (s *InMemoryStore) SaveSession(session models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session for %s: %w", session.UserID, err)
	}
	s.mu.Lock()
	s.sessions[session.UserID] = data
	s.mu.Unlock()
	return nil
}

// DeleteSession removes the session owned by userID.
func (s *InMemoryStore) DeleteSession(userID string) error {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
	return nil
}

// SaveSubmission stores or replaces the finalized submission for its user.
func (s *InMemoryStore) SaveSubmission(record models.SubmissionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode submission for %s: %w", record.UserID, err)
	}
	s.mu.Lock()
	s.submissions[record.UserID] = data
	s.mu.Unlock()
	return nil
}

// GetSubmission retrieves the submission for userID, or nil when absent.
func (s *InMemoryStore) GetSubmission(userID string) (*models.SubmissionRecord, error) {
	s.mu.RLock()
	data, ok := s.submissions[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var record models.SubmissionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode submission for %s: %w", userID, err)
	}
	return &record, nil
}

// ListSubmissions returns all finalized submissions ordered by user ID.
func (s *InMemoryStore) ListSubmissions() ([]models.SubmissionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userIDs := make([]string, 0, len(s.submissions))
	for id := range s.submissions {
		userIDs = append(userIDs, id)
	}
	sort.Strings(userIDs)

	records := make([]models.SubmissionRecord, 0, len(userIDs))
	for _, id := range userIDs {
		var record models.SubmissionRecord
		if err := json.Unmarshal(s.submissions[id], &record); err != nil {
			return nil, fmt.Errorf("failed to decode submission for %s: %w", id, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
