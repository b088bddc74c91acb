// Package store provides persistence for interview sessions.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spigell/interviewer/internal/interview"
)

// MemoryStore keeps sessions in process memory. It is used by the practice command and
// by tests; data is lost on exit.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]*interview.Session
	questions map[string][]*interview.Question
	answers   map[string][]*interview.Answer
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		sessions:  make(map[string]*interview.Session),
		questions: make(map[string][]*interview.Question),
		answers:   make(map[string][]*interview.Answer),
	}
}

func (m *MemoryStore) CreateSession(_ context.Context, s *interview.Session, first *interview.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.ID]; ok {
		return fmt.Errorf("session %s already exists", s.ID)
	}

	m.sessions[s.ID] = s.Clone()
	if first != nil {
		q := *first
		m.questions[s.ID] = []*interview.Question{&q}
	}
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, id string) (*interview.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, interview.ErrSessionMissing
	}
	return s.Clone(), nil
}

func (m *MemoryStore) ListQuestions(_ context.Context, sessionID string) ([]*interview.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*interview.Question, 0, len(m.questions[sessionID]))
	for _, q := range m.questions[sessionID] {
		c := *q
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (m *MemoryStore) ListAnswers(_ context.Context, sessionID string) ([]*interview.Answer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*interview.Answer, 0, len(m.answers[sessionID]))
	for _, a := range m.answers[sessionID] {
		out = append(out, copyAnswer(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (m *MemoryStore) CommitStep(_ context.Context, c *interview.StepCommit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.sessions[c.Session.ID]
	if !ok {
		return interview.ErrSessionMissing
	}
	if current.StepIndex != c.ExpectedStep || current.Status != interview.StatusInProgress {
		return interview.ErrStepConflict
	}
	for _, a := range m.answers[c.Session.ID] {
		if a.Order == c.Answer.Order {
			return interview.ErrStepConflict
		}
	}

	m.sessions[c.Session.ID] = c.Session.Clone()
	m.answers[c.Session.ID] = append(m.answers[c.Session.ID], copyAnswer(c.Answer))
	if c.Next != nil {
		q := *c.Next
		m.questions[c.Session.ID] = append(m.questions[c.Session.ID], &q)
	}
	return nil
}

func (m *MemoryStore) MarkAbandoned(_ context.Context, id string, expectedStep int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.sessions[id]
	if !ok {
		return interview.ErrSessionMissing
	}
	if current.StepIndex != expectedStep || current.Status != interview.StatusInProgress {
		return interview.ErrStepConflict
	}

	updated := current.Clone()
	updated.Status = interview.StatusAbandoned
	updated.UpdatedAt = at
	m.sessions[id] = updated
	return nil
}

func (m *MemoryStore) ListIdle(_ context.Context, before time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, s := range m.sessions {
		if s.Status == interview.StatusInProgress && s.UpdatedAt.Before(before) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func copyAnswer(a *interview.Answer) *interview.Answer {
	c := *a
	if a.AudioScore != nil {
		v := *a.AudioScore
		c.AudioScore = &v
	}
	if a.VideoScore != nil {
		v := *a.VideoScore
		c.VideoScore = &v
	}
	return &c
}
