// Package memory реализует хранилище агрегатов в памяти процесса.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/reviewkit/engine/internal/domain/entity"
	"github.com/reviewkit/engine/internal/domain/repository"
	"github.com/reviewkit/engine/internal/domain/usecase"
)

var _ repository.PullRequestRepository = (*Storage)(nil)

type Storage struct {
	mu  sync.RWMutex
	prs map[string]entity.PullRequest
}

func NewStorage() *Storage {
	return &Storage{
		prs: make(map[string]entity.PullRequest),
	}
}

func (s *Storage) Save(ctx context.Context, pr entity.PullRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.prs[pr.ID]; exists {
		return usecase.ErrPRExists
	}
	pr.Version = 1
	s.prs[pr.ID] = pr.Clone()
	return nil
}

func (s *Storage) Get(ctx context.Context, id string) (entity.PullRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pr, ok := s.prs[id]
	if !ok {
		return entity.PullRequest{}, usecase.ErrPRNotFound
	}
	return pr.Clone(), nil
}

// Update — оптимистическая фиксация: версия входного агрегата должна
// совпадать с сохранённой, иначе конкурентная операция уже успела записать.
func (s *Storage) Update(ctx context.Context, pr entity.PullRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.prs[pr.ID]
	if !ok {
		return usecase.ErrPRNotFound
	}
	if stored.Version != pr.Version {
		return usecase.ErrVersionConflict
	}
	next := pr.Clone()
	next.Version = pr.Version + 1
	s.prs[pr.ID] = next
	return nil
}

func (s *Storage) List(ctx context.Context, state *entity.State) ([]entity.PullRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.PullRequest, 0, len(s.prs))
	for _, pr := range s.prs {
		if state != nil && pr.State != *state {
			continue
		}
		out = append(out, pr.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
