package repository

import (
	"context"

	"github.com/reviewkit/engine/internal/domain/entity"
)

// PullRequestRepository — непрозрачное хранилище агрегатов.
// Update сравнивает pr.Version с сохранённой версией и при несовпадении
// возвращает usecase.ErrVersionConflict; при успехе сохраняет агрегат
// с инкрементированной версией. Так две конкурентные операции над одним
// агрегатом никогда не переплетают свои фазы мутации.
type PullRequestRepository interface {
	Save(ctx context.Context, pr entity.PullRequest) error
	Get(ctx context.Context, id string) (entity.PullRequest, error)
	Update(ctx context.Context, pr entity.PullRequest) error
	List(ctx context.Context, state *entity.State) ([]entity.PullRequest, error)
}
