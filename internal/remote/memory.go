package remote

import (
	"context"
	"sync"

	appErrors "github.com/noah-isme/fieldsync/pkg/errors"
)

// MemoryStore is an in-process Store used in development and tests. It
// mirrors the adapter contract exactly, including merge-on-apply semantics.
type MemoryStore struct {
	mu          sync.RWMutex
	lois        map[string]map[string]map[string]interface{}
	submissions map[string]map[string]map[string]interface{}
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lois:        make(map[string]map[string]map[string]interface{}),
		submissions: make(map[string]map[string]map[string]interface{}),
	}
}

func (s *MemoryStore) PutLocationOfInterest(ctx context.Context, surveyID string, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	put(s.lois, surveyID, doc)
	return nil
}

func (s *MemoryStore) GetLocationOfInterest(ctx context.Context, surveyID, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return get(s.lois, surveyID, id)
}

func (s *MemoryStore) PutSubmission(ctx context.Context, surveyID string, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	put(s.submissions, surveyID, doc)
	return nil
}

func (s *MemoryStore) GetSubmission(ctx context.Context, surveyID, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return get(s.submissions, surveyID, id)
}

func (s *MemoryStore) ApplySubmissionDeltas(ctx context.Context, surveyID, id string, set map[string]interface{}, clear []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bySurvey := s.submissions[surveyID]
	if bySurvey == nil {
		bySurvey = make(map[string]map[string]interface{})
		s.submissions[surveyID] = bySurvey
	}
	fields := bySurvey[id]
	if fields == nil {
		fields = map[string]interface{}{}
		bySurvey[id] = fields
	}
	data, _ := fields["data"].(map[string]interface{})
	if data == nil {
		data = map[string]interface{}{}
		fields["data"] = data
	}
	for taskID, value := range set {
		data[taskID] = value
	}
	for _, taskID := range clear {
		delete(data, taskID)
	}
	return nil
}

func (s *MemoryStore) DeleteSubmission(ctx context.Context, surveyID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bySurvey, ok := s.submissions[surveyID]; ok {
		delete(bySurvey, id)
	}
	return nil
}

func put(store map[string]map[string]map[string]interface{}, surveyID string, doc Document) {
	bySurvey := store[surveyID]
	if bySurvey == nil {
		bySurvey = make(map[string]map[string]interface{})
		store[surveyID] = bySurvey
	}
	bySurvey[doc.ID] = copyFields(doc.Fields)
}

func get(store map[string]map[string]map[string]interface{}, surveyID, id string) (Document, error) {
	bySurvey, ok := store[surveyID]
	if !ok {
		return Document{}, appErrors.ErrNotFound
	}
	fields, ok := bySurvey[id]
	if !ok {
		return Document{}, appErrors.ErrNotFound
	}
	return Document{ID: id, Fields: copyFields(fields)}, nil
}

// copyFields keeps callers from mutating stored state through the returned
// document.
func copyFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for key, value := range fields {
		if nested, ok := value.(map[string]interface{}); ok {
			out[key] = copyFields(nested)
			continue
		}
		out[key] = value
	}
	return out
}
