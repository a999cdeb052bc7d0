// Package redisrepo реализует хранилище агрегатов поверх Redis:
// агрегат хранится JSON-документом, версия проверяется через WATCH.
package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/reviewkit/engine/internal/domain/entity"
	"github.com/reviewkit/engine/internal/domain/repository"
	"github.com/reviewkit/engine/internal/domain/usecase"
)

var _ repository.PullRequestRepository = (*Storage)(nil)

type Storage struct {
	rdb       redis.UniversalClient
	keyPrefix string
}

func NewStorage(rdb redis.UniversalClient, keyPrefix string) *Storage {
	if keyPrefix == "" {
		keyPrefix = "reviewkit"
	}
	return &Storage{rdb: rdb, keyPrefix: keyPrefix}
}

func (s *Storage) key(id string) string { return s.keyPrefix + ":pr:" + id }

func (s *Storage) indexKey() string { return s.keyPrefix + ":pr:index" }

func (s *Storage) Save(ctx context.Context, pr entity.PullRequest) error {
	pr.Version = 1
	raw, err := json.Marshal(pr)
	if err != nil {
		return err
	}

	// Документ и индекс записываются одним MULTI/EXEC: частичной записи,
	// при которой Get агрегат видит, а List — нет, не бывает.
	// SAdd по уже существующему id — no-op.
	var set *redis.BoolCmd
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		set = pipe.SetNX(ctx, s.key(pr.ID), raw, 0)
		pipe.SAdd(ctx, s.indexKey(), pr.ID)
		return nil
	})
	if err != nil {
		return err
	}
	if !set.Val() {
		return usecase.ErrPRExists
	}
	return nil
}

func (s *Storage) Get(ctx context.Context, id string) (entity.PullRequest, error) {
	raw, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return entity.PullRequest{}, usecase.ErrPRNotFound
		}
		return entity.PullRequest{}, err
	}

	var pr entity.PullRequest
	if err := json.Unmarshal(raw, &pr); err != nil {
		return entity.PullRequest{}, err
	}
	return pr, nil
}

// Update — WATCH на ключе агрегата: если версия в хранилище не совпала с
// версией входного агрегата или ключ изменился между чтением и записью,
// фиксация отклоняется конфликтом.
func (s *Storage) Update(ctx context.Context, pr entity.PullRequest) error {
	key := s.key(pr.ID)

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return usecase.ErrPRNotFound
			}
			return err
		}

		var stored entity.PullRequest
		if err := json.Unmarshal(raw, &stored); err != nil {
			return err
		}
		if stored.Version != pr.Version {
			return usecase.ErrVersionConflict
		}

		next := pr
		next.Version = pr.Version + 1
		nextRaw, err := json.Marshal(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, nextRaw, 0)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return usecase.ErrVersionConflict
	}
	return err
}

func (s *Storage) List(ctx context.Context, state *entity.State) ([]entity.PullRequest, error) {
	ids, err := s.rdb.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []entity.PullRequest{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}

	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]entity.PullRequest, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // ключ удалён между SMembers и MGet
		}
		var pr entity.PullRequest
		if err := json.Unmarshal([]byte(raw), &pr); err != nil {
			return nil, err
		}
		if state != nil && pr.State != *state {
			continue
		}
		out = append(out, pr)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
