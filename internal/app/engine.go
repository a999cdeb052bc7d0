package app

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reviewkit/engine/internal/domain/entity"
	"github.com/reviewkit/engine/internal/domain/repository"
	"github.com/reviewkit/engine/internal/domain/usecase"
)

// compile-time proof
var _ usecase.PullRequestEngine = (*Engine)(nil)

// Engine — реализация движка протокола. Композирует authorization guard,
// state machine и агрегатор ревью за единой операционной поверхностью.
type Engine struct {
	repo     repository.PullRequestRepository
	notifier usecase.Notifier
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewEngine(repo repository.PullRequestRepository, notifier usecase.Notifier, log *zap.SugaredLogger) *Engine {
	return &Engine{
		repo:     repo,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// mutate — общий каркас мутирующей операции:
// authorize -> state guard -> бизнес-валидация и мутация (fn) -> фиксация -> событие.
// fn получает глубокую копию агрегата; до успешного Update ни одно изменение
// не наблюдаемо. Конфликт версий при конкурентной записи возвращается как есть.
func (e *Engine) mutate(
	ctx context.Context,
	callerID, prID string,
	op entity.Operation,
	roles []entity.Role,
	fn func(pr *entity.PullRequest) (usecase.Event, error),
) (entity.PullRequest, error) {
	stored, err := e.repo.Get(ctx, prID)
	if err != nil {
		return entity.PullRequest{}, err
	}

	// Проверка роли и state guard независимы; обе должны пройти.
	if !stored.Participants.HasRole(callerID, roles...) {
		return entity.PullRequest{}, &usecase.AuthorizationError{CallerID: callerID, Operation: op}
	}
	if !entity.OperationAllowed(op, stored.State) {
		return entity.PullRequest{}, &usecase.StateGuardError{Operation: op, State: stored.State}
	}

	pr := stored.Clone()
	event, err := fn(&pr)
	if err != nil {
		return entity.PullRequest{}, err
	}
	pr.UpdatedAt = e.now()

	if err := e.repo.Update(ctx, pr); err != nil {
		return entity.PullRequest{}, err
	}

	event.PullRequestID = pr.ID
	event.ActorID = callerID
	event.OccurredAt = pr.UpdatedAt
	e.notifier.Notify(ctx, event)

	e.log.Debugw("operation committed", "pr_id", pr.ID, "operation", string(op), "state", string(pr.State))
	return pr, nil
}

func (e *Engine) CreatePullRequest(ctx context.Context, p usecase.CreateParams) (entity.PullRequest, error) {
	if err := validateTitle(p.Title); err != nil {
		return entity.PullRequest{}, err
	}
	if err := validateBranches(p.SourceBranch, p.TargetBranch); err != nil {
		return entity.PullRequest{}, err
	}
	if len(p.Files) == 0 {
		return entity.PullRequest{}, usecase.Validation("files.nonEmpty", "file change list must be non-empty at creation")
	}
	if err := validateFiles(p.Files); err != nil {
		return entity.PullRequest{}, err
	}
	if err := validateParticipants(p); err != nil {
		return entity.PullRequest{}, err
	}

	required := p.RequiredApprovals
	if required == 0 {
		required = entity.DefaultRequiredApprovals
	}
	if required < entity.MinRequiredApprovals || required > entity.MaxRequiredApprovals {
		return entity.PullRequest{}, usecase.Validation("requiredApprovals.range",
			"required approvals must be within [%d, %d], got %d",
			entity.MinRequiredApprovals, entity.MaxRequiredApprovals, required)
	}

	now := e.now()
	pr := entity.PullRequest{
		ID:                uuid.NewString(),
		Title:             p.Title,
		Description:       p.Description,
		SourceBranch:      p.SourceBranch,
		TargetBranch:      p.TargetBranch,
		Files:             append([]entity.FileChange(nil), p.Files...),
		State:             entity.StateDraft,
		RequiredApprovals: required,
		Participants: entity.Participants{
			AuthorID:     p.AuthorID,
			ReviewerIDs:  append([]string(nil), p.ReviewerIDs...),
			MaintainerID: p.MaintainerID,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := e.repo.Save(ctx, pr); err != nil {
		return entity.PullRequest{}, err
	}

	e.notifier.Notify(ctx, usecase.Event{
		Name:          usecase.EventCreated,
		PullRequestID: pr.ID,
		ActorID:       p.AuthorID,
		OccurredAt:    now,
		Payload:       map[string]any{"title": pr.Title, "state": string(pr.State)},
	})

	return pr, nil
}

func (e *Engine) UpdateDetails(ctx context.Context, callerID, prID, title, description string) (entity.PullRequest, error) {
	return e.mutate(ctx, callerID, prID, entity.OpUpdateDetails, []entity.Role{entity.RoleAuthor},
		func(pr *entity.PullRequest) (usecase.Event, error) {
			if err := validateTitle(title); err != nil {
				return usecase.Event{}, err
			}
			name := usecase.EventDetailsUpdated
			// Правка из changes_requested — ответ автора на ревью.
			if pr.State == entity.StateChangesRequested {
				name = usecase.EventAuthorResponded
			}
			pr.Title = title
			pr.Description = description
			return usecase.Event{Name: name}, nil
		})
}

func (e *Engine) AddFiles(ctx context.Context, callerID, prID string, files []entity.FileChange) (entity.PullRequest, error) {
	return e.mutate(ctx, callerID, prID, entity.OpAddFiles, []entity.Role{entity.RoleAuthor},
		func(pr *entity.PullRequest) (usecase.Event, error) {
			if len(files) == 0 {
				return usecase.Event{}, usecase.Validation("files.nonEmpty", "list of file changes is empty")
			}
			if err := validateFiles(files); err != nil {
				return usecase.Event{}, err
			}
			name := usecase.EventFilesAdded
			if pr.State == entity.StateChangesRequested {
				name = usecase.EventAuthorResponded
			}
			pr.Files = append(pr.Files, files...)
			return usecase.Event{Name: name, Payload: map[string]any{"file_count": len(pr.Files)}}, nil
		})
}

func (e *Engine) MarkReadyForReview(ctx context.Context, callerID, prID string) (entity.State, error) {
	return e.transition(ctx, callerID, prID, entity.OpMarkReadyForReview,
		[]entity.Role{entity.RoleAuthor}, entity.StateOpen, usecase.EventReadyForReview, nil)
}

func (e *Engine) ConvertToDraft(ctx context.Context, callerID, prID string) (entity.State, error) {
	return e.transition(ctx, callerID, prID, entity.OpConvertToDraft,
		[]entity.Role{entity.RoleAuthor}, entity.StateDraft, usecase.EventConvertedToDraft, nil)
}

func (e *Engine) RequestReview(ctx context.Context, callerID, prID string) (entity.State, error) {
	return e.transition(ctx, callerID, prID, entity.OpRequestReview,
		[]entity.Role{entity.RoleReviewer}, entity.StateReviewRequested, usecase.EventReviewRequested, nil)
}

// transition — операция, вся мутация которой сводится к смене состояния.
func (e *Engine) transition(
	ctx context.Context,
	callerID, prID string,
	op entity.Operation,
	roles []entity.Role,
	target entity.State,
	eventName string,
	mutateExtra func(pr *entity.PullRequest),
) (entity.State, error) {
	pr, err := e.mutate(ctx, callerID, prID, op, roles, func(pr *entity.PullRequest) (usecase.Event, error) {
		pr.State = target
		if mutateExtra != nil {
			mutateExtra(pr)
		}
		return usecase.Event{Name: eventName, Payload: map[string]any{"state": string(target)}}, nil
	})
	if err != nil {
		return "", err
	}
	return pr.State, nil
}

func (e *Engine) SubmitReview(ctx context.Context, callerID, prID string, p usecase.ReviewParams) (usecase.ReviewResult, error) {
	var result usecase.ReviewResult

	_, err := e.mutate(ctx, callerID, prID, entity.OpSubmitReview, []entity.Role{entity.RoleReviewer},
		func(pr *entity.PullRequest) (usecase.Event, error) {
			if !p.Verdict.IsValid() {
				return usecase.Event{}, usecase.Validation("review.verdict", "unknown verdict %q", p.Verdict)
			}
			if strings.TrimSpace(p.Summary) == "" {
				return usecase.Event{}, usecase.Validation("review.summary", "review summary must be non-empty")
			}
			comments, err := buildComments(p.Comments, e.now())
			if err != nil {
				return usecase.Event{}, err
			}

			review := entity.Review{
				ID:          uuid.NewString(),
				ReviewerID:  callerID,
				Verdict:     p.Verdict,
				Summary:     p.Summary,
				Comments:    comments,
				SubmittedAt: e.now(),
			}
			// Review неизменяем: добавляем и больше не трогаем.
			pr.Reviews = append(pr.Reviews, review)
			pr.State = pr.NextStateAfterReview(p.Verdict)

			result = usecase.ReviewResult{
				ReviewID:      review.ID,
				State:         pr.State,
				ApprovalCount: pr.ApprovalCount(),
			}
			return usecase.Event{Name: usecase.EventReviewSubmitted, Payload: map[string]any{
				"review_id":      review.ID,
				"verdict":        string(p.Verdict),
				"state":          string(pr.State),
				"approval_count": result.ApprovalCount,
			}}, nil
		})
	if err != nil {
		return usecase.ReviewResult{}, err
	}
	return result, nil
}

func (e *Engine) AddComment(ctx context.Context, callerID, prID string, p usecase.CommentParams) (string, error) {
	var commentID string

	_, err := e.mutate(ctx, callerID, prID, entity.OpAddComment,
		[]entity.Role{entity.RoleReviewer, entity.RoleMaintainer},
		func(pr *entity.PullRequest) (usecase.Event, error) {
			comment, err := buildComment(p, e.now())
			if err != nil {
				return usecase.Event{}, err
			}
			pr.Discussion = append(pr.Discussion, comment)
			commentID = comment.ID
			return usecase.Event{Name: usecase.EventCommentAdded, Payload: map[string]any{
				"comment_id": comment.ID,
				"file_path":  comment.FilePath,
				"line":       comment.LineNumber,
			}}, nil
		})
	if err != nil {
		return "", err
	}
	return commentID, nil
}

func (e *Engine) SetRequiredApprovals(ctx context.Context, callerID, prID string, count int) (entity.PullRequest, error) {
	return e.mutate(ctx, callerID, prID, entity.OpSetRequiredApprovals, []entity.Role{entity.RoleMaintainer},
		func(pr *entity.PullRequest) (usecase.Event, error) {
			if count < entity.MinRequiredApprovals || count > entity.MaxRequiredApprovals {
				return usecase.Event{}, usecase.Validation("requiredApprovals.range",
					"required approvals must be within [%d, %d], got %d",
					entity.MinRequiredApprovals, entity.MaxRequiredApprovals, count)
			}
			pr.RequiredApprovals = count
			return usecase.Event{Name: usecase.EventRequiredApprovalsChanged,
				Payload: map[string]any{"required_approvals": count}}, nil
		})
}

func (e *Engine) Merge(ctx context.Context, callerID, prID, commitMessage string) (usecase.MergeResult, error) {
	var result usecase.MergeResult

	_, err := e.mutate(ctx, callerID, prID, entity.OpMerge, []entity.Role{entity.RoleMaintainer},
		func(pr *entity.PullRequest) (usecase.Event, error) {
			if strings.TrimSpace(commitMessage) == "" {
				return usecase.Event{}, usecase.Validation("merge.commitMessage", "commit message must be non-empty")
			}
			if !pr.CanMerge() {
				return usecase.Event{}, &usecase.MergeEligibilityError{
					ApprovalCount:         pr.ApprovalCount(),
					RequiredApprovals:     pr.RequiredApprovals,
					ChangesRequestedCount: pr.ChangesRequestedCount(),
				}
			}

			// Реального git-мержа нет: фиксируем только метаданные.
			now := e.now()
			pr.MergeCommitID = uuid.NewString()
			pr.MergedAt = &now
			pr.MergedBy = callerID
			pr.State = entity.StateMerged

			result = usecase.MergeResult{CommitID: pr.MergeCommitID, State: pr.State}
			return usecase.Event{Name: usecase.EventMerged, Payload: map[string]any{
				"commit_id":      pr.MergeCommitID,
				"commit_message": commitMessage,
			}}, nil
		})
	if err != nil {
		return usecase.MergeResult{}, err
	}
	return result, nil
}

func (e *Engine) Close(ctx context.Context, callerID, prID, reason string) (entity.State, error) {
	pr, err := e.mutate(ctx, callerID, prID, entity.OpClose, []entity.Role{entity.RoleMaintainer},
		func(pr *entity.PullRequest) (usecase.Event, error) {
			now := e.now()
			pr.ClosedAt = &now
			pr.State = entity.StateClosed
			return usecase.Event{Name: usecase.EventClosed, Payload: map[string]any{"reason": reason}}, nil
		})
	if err != nil {
		return "", err
	}
	return pr.State, nil
}

func (e *Engine) Reopen(ctx context.Context, callerID, prID string) (entity.State, error) {
	return e.transition(ctx, callerID, prID, entity.OpReopen,
		[]entity.Role{entity.RoleMaintainer}, entity.StateOpen, usecase.EventReopened,
		func(pr *entity.PullRequest) {
			pr.ClosedAt = nil
		})
}

// Read-only операции.

func (e *Engine) GetSummary(ctx context.Context, callerID, prID string) (usecase.Summary, error) {
	pr, err := e.read(ctx, callerID, prID)
	if err != nil {
		return usecase.Summary{}, err
	}
	return usecase.Summary{
		ID:                    pr.ID,
		Title:                 pr.Title,
		Description:           pr.Description,
		SourceBranch:          pr.SourceBranch,
		TargetBranch:          pr.TargetBranch,
		State:                 pr.State,
		RequiredApprovals:     pr.RequiredApprovals,
		FileCount:             len(pr.Files),
		ReviewCount:           len(pr.Reviews),
		ApprovalCount:         pr.ApprovalCount(),
		ChangesRequestedCount: pr.ChangesRequestedCount(),
		CommentCount:          pr.CommentCount(),
		DiscussionCount:       len(pr.Discussion),
		CanMerge:              pr.CanMerge(),
	}, nil
}

func (e *Engine) GetReviewCount(ctx context.Context, callerID, prID string) (int, error) {
	pr, err := e.read(ctx, callerID, prID)
	if err != nil {
		return 0, err
	}
	return len(pr.Reviews), nil
}

func (e *Engine) GetApprovalCount(ctx context.Context, callerID, prID string) (int, error) {
	pr, err := e.read(ctx, callerID, prID)
	if err != nil {
		return 0, err
	}
	return pr.ApprovalCount(), nil
}

func (e *Engine) CanMerge(ctx context.Context, callerID, prID string) (bool, error) {
	pr, err := e.read(ctx, callerID, prID)
	if err != nil {
		return false, err
	}
	return pr.CanMerge(), nil
}

// ListPullRequests возвращает только агрегаты, участником которых
// является вызывающий; чужие pull requestы наружу не отдаются.
func (e *Engine) ListPullRequests(ctx context.Context, callerID string, state *entity.State) ([]entity.PullRequest, error) {
	if callerID == "" {
		return nil, &usecase.AuthorizationError{CallerID: callerID, Operation: "list"}
	}

	prs, err := e.repo.List(ctx, state)
	if err != nil {
		return nil, err
	}

	out := make([]entity.PullRequest, 0, len(prs))
	for _, pr := range prs {
		if pr.Participants.IsParticipant(callerID) {
			out = append(out, pr)
		}
	}
	return out, nil
}

func (e *Engine) read(ctx context.Context, callerID, prID string) (entity.PullRequest, error) {
	pr, err := e.repo.Get(ctx, prID)
	if err != nil {
		return entity.PullRequest{}, err
	}
	if !pr.Participants.IsParticipant(callerID) {
		return entity.PullRequest{}, &usecase.AuthorizationError{CallerID: callerID, Operation: "read"}
	}
	return pr, nil
}

// Валидации структурных инвариантов.

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return usecase.Validation("title.nonEmpty", "title must be non-empty")
	}
	if len(title) > entity.MaxTitleLen {
		return usecase.Validation("title.maxLen", "title exceeds %d characters", entity.MaxTitleLen)
	}
	return nil
}

func validateBranches(source, target string) error {
	if source == "" || target == "" {
		return usecase.Validation("branch.nonEmpty", "source and target branches must be non-empty")
	}
	if source == target {
		return usecase.Validation("branch.distinct", "source branch must differ from target branch")
	}
	return nil
}

func validateFiles(files []entity.FileChange) error {
	for _, f := range files {
		if f.Path == "" {
			return usecase.Validation("file.path", "file path must be non-empty")
		}
		if !f.ChangeType.IsValid() {
			return usecase.Validation("file.changeType", "unknown change type %q for %q", f.ChangeType, f.Path)
		}
		if f.LinesAdded < 0 || f.LinesDeleted < 0 {
			return usecase.Validation("file.lines", "line counts must be non-negative for %q", f.Path)
		}
		if f.ChangeType == entity.ChangeRenamed && f.OldPath == "" {
			return usecase.Validation("file.oldPath", "old path is required for RENAMED file %q", f.Path)
		}
		if f.ChangeType != entity.ChangeRenamed && f.OldPath != "" {
			return usecase.Validation("file.oldPath", "old path is only allowed for RENAMED files, got %q", f.Path)
		}
	}
	return nil
}

func validateParticipants(p usecase.CreateParams) error {
	if p.AuthorID == "" {
		return usecase.Validation("participants.author", "author identity is required")
	}
	if p.MaintainerID == "" {
		return usecase.Validation("participants.maintainer", "maintainer identity is required")
	}
	if len(p.ReviewerIDs) == 0 {
		return usecase.Validation("participants.reviewers", "reviewer set must be non-empty")
	}
	seen := make(map[string]bool, len(p.ReviewerIDs))
	for _, id := range p.ReviewerIDs {
		if id == "" {
			return usecase.Validation("participants.reviewers", "reviewer identity must be non-empty")
		}
		if id == p.AuthorID {
			return usecase.Validation("participants.reviewers", "author cannot review own pull request")
		}
		if seen[id] {
			return usecase.Validation("participants.reviewers", "duplicate reviewer %q", id)
		}
		seen[id] = true
	}
	return nil
}

func buildComments(params []usecase.CommentParams, now time.Time) ([]entity.ReviewComment, error) {
	if len(params) == 0 {
		return nil, nil
	}
	out := make([]entity.ReviewComment, 0, len(params))
	for _, p := range params {
		c, err := buildComment(p, now)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func buildComment(p usecase.CommentParams, now time.Time) (entity.ReviewComment, error) {
	if p.FilePath == "" {
		return entity.ReviewComment{}, usecase.Validation("comment.filePath", "comment file path must be non-empty")
	}
	if p.LineNumber <= 0 {
		return entity.ReviewComment{}, usecase.Validation("comment.lineNumber", "line number must be positive, got %d", p.LineNumber)
	}
	if strings.TrimSpace(p.Text) == "" {
		return entity.ReviewComment{}, usecase.Validation("comment.text", "comment text must be non-empty")
	}
	return entity.ReviewComment{
		ID:         uuid.NewString(),
		FilePath:   p.FilePath,
		LineNumber: p.LineNumber,
		Text:       p.Text,
		CreatedAt:  now,
	}, nil
}
