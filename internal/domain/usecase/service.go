package usecase

import (
	"context"

	"github.com/reviewkit/engine/internal/domain/entity"
)

// CreateParams — аргументы создания pull requestа. Создание фиксирует
// распределение ролей на весь жизненный цикл агрегата.
type CreateParams struct {
	Title        string
	Description  string
	SourceBranch string
	TargetBranch string
	Files        []entity.FileChange

	AuthorID     string
	ReviewerIDs  []string
	MaintainerID string

	// RequiredApprovals: 0 означает значение по умолчанию (2).
	RequiredApprovals int
}

// CommentParams — комментарий к строке файла.
type CommentParams struct {
	FilePath   string
	LineNumber int
	Text       string
}

// ReviewParams — аргументы submitReview.
type ReviewParams struct {
	Verdict  entity.Verdict
	Summary  string
	Comments []CommentParams
}

// ReviewResult — результат submitReview.
type ReviewResult struct {
	ReviewID      string
	State         entity.State
	ApprovalCount int
}

// MergeResult — результат merge.
type MergeResult struct {
	CommitID string
	State    entity.State
}

// Summary — производное read-only представление агрегата.
type Summary struct {
	ID                    string
	Title                 string
	Description           string
	SourceBranch          string
	TargetBranch          string
	State                 entity.State
	RequiredApprovals     int
	FileCount             int
	ReviewCount           int
	ApprovalCount         int
	ChangesRequestedCount int
	CommentCount          int
	DiscussionCount       int
	CanMerge              bool
}

// PullRequestEngine — операционная поверхность движка протокола.
// Каждая мутирующая операция следует последовательности
// authorize -> state guard -> валидация -> мутация -> переход -> событие,
// и либо фиксируется целиком, либо не оставляет следов.
type PullRequestEngine interface {
	CreatePullRequest(ctx context.Context, p CreateParams) (entity.PullRequest, error)

	UpdateDetails(ctx context.Context, callerID, prID, title, description string) (entity.PullRequest, error)
	AddFiles(ctx context.Context, callerID, prID string, files []entity.FileChange) (entity.PullRequest, error)
	MarkReadyForReview(ctx context.Context, callerID, prID string) (entity.State, error)
	ConvertToDraft(ctx context.Context, callerID, prID string) (entity.State, error)
	RequestReview(ctx context.Context, callerID, prID string) (entity.State, error)
	SubmitReview(ctx context.Context, callerID, prID string, p ReviewParams) (ReviewResult, error)
	AddComment(ctx context.Context, callerID, prID string, p CommentParams) (string, error)
	SetRequiredApprovals(ctx context.Context, callerID, prID string, count int) (entity.PullRequest, error)
	Merge(ctx context.Context, callerID, prID, commitMessage string) (MergeResult, error)
	Close(ctx context.Context, callerID, prID, reason string) (entity.State, error)
	Reopen(ctx context.Context, callerID, prID string) (entity.State, error)

	// Read-only операции: чистые чтения, доступны любой из трёх ролей.
	GetSummary(ctx context.Context, callerID, prID string) (Summary, error)
	GetReviewCount(ctx context.Context, callerID, prID string) (int, error)
	GetApprovalCount(ctx context.Context, callerID, prID string) (int, error)
	CanMerge(ctx context.Context, callerID, prID string) (bool, error)

	// ListPullRequests отдаёт только агрегаты, участником которых является вызывающий.
	ListPullRequests(ctx context.Context, callerID string, state *entity.State) ([]entity.PullRequest, error)
}
