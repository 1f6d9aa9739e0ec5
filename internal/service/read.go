package service

import (
	"context"

	"taskcal/internal/model"
)

// RawEvents returns the raw record set as stored: parents, standalone events
// and exceptions, never generated instances.
func (s *Service) RawEvents(ctx context.Context) []model.Event {
	return s.store.ReadRaw(ctx)
}

// GetEvent returns one raw record by id.
func (s *Service) GetEvent(ctx context.Context, id string) (model.Event, error) {
	for _, e := range s.store.ReadRaw(ctx) {
		if e.ID == id {
			return e, nil
		}
	}
	return model.Event{}, ErrNotFound
}

// Project groups the task events that belong to one project.
type Project struct {
	Name  string        `json:"name"`
	Tasks []model.Event `json:"tasks"`
}

// Projects aggregates raw records with category "Task" by their project
// field. Records without a project are not listed.
func (s *Service) Projects(ctx context.Context) []Project {
	byName := make(map[string]*Project)
	order := make([]string, 0)
	for _, e := range s.store.ReadRaw(ctx) {
		if e.Category != "Task" || e.Project == "" {
			continue
		}
		p := byName[e.Project]
		if p == nil {
			p = &Project{Name: e.Project}
			byName[e.Project] = p
			order = append(order, e.Project)
		}
		p.Tasks = append(p.Tasks, e)
	}

	out := make([]Project, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out
}
