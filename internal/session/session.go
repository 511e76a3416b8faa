// Package session holds per-user editing state between requests. Each
// request loads its Session, mutates it, and puts it back; nothing is shared
// between sessions.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"statusboard/internal/model"
)

var ErrNotFound = errors.New("session not found")

// Draft is a project record being edited in one session.
type Draft struct {
	Record *model.ProjectRecord `json:"record"`
	// Dirty is true while the draft holds changes that are not persisted.
	Dirty bool `json:"dirty"`
}

type Session struct {
	ID        string            `json:"id"`
	Drafts    map[string]*Draft `json:"drafts"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func New() *Session {
	return &Session{
		ID:     uuid.NewString(),
		Drafts: make(map[string]*Draft),
	}
}

// Draft returns the draft for projectID, or nil.
func (s *Session) Draft(projectID string) *Draft {
	if s.Drafts == nil {
		return nil
	}
	return s.Drafts[projectID]
}

func (s *Session) SetDraft(projectID string, d *Draft) {
	if s.Drafts == nil {
		s.Drafts = make(map[string]*Draft)
	}
	s.Drafts[projectID] = d
}

// Store persists sessions between requests.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

func encode(s *Session) ([]byte, error) {
	return json.Marshal(s)
}

func decode(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.Drafts == nil {
		s.Drafts = make(map[string]*Draft)
	}
	for _, d := range s.Drafts {
		if d.Record != nil && d.Record.Milestones == nil {
			d.Record.Milestones = model.Milestones{}
		}
	}
	return &s, nil
}
