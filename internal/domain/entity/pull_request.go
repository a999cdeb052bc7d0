package entity

import "time"

// ChangeType — вид изменения файла.
type ChangeType string

const (
	ChangeAdded    ChangeType = "ADDED"
	ChangeModified ChangeType = "MODIFIED"
	ChangeDeleted  ChangeType = "DELETED"
	ChangeRenamed  ChangeType = "RENAMED"
)

// IsValid проверяет, что вид изменения известен.
func (c ChangeType) IsValid() bool {
	switch c {
	case ChangeAdded, ChangeModified, ChangeDeleted, ChangeRenamed:
		return true
	}
	return false
}

// FileChange — одно изменение файла в pull requestе.
// OldPath присутствует только для RENAMED.
type FileChange struct {
	Path         string
	ChangeType   ChangeType
	LinesAdded   int
	LinesDeleted int
	OldPath      string
}

// MaxTitleLen — предел длины заголовка.
const MaxTitleLen = 200

// Пределы порога одобрений.
const (
	MinRequiredApprovals     = 1
	MaxRequiredApprovals     = 10
	DefaultRequiredApprovals = 2
)

// PullRequest — корень агрегата. Владеет метаданными, списком изменений,
// append-only коллекцией Review и текущим состоянием. Участники (роли)
// фиксируются при создании. MergedBy — непрозрачная ссылка на identity,
// полные данные identity разрешаются внешним слоем.
type PullRequest struct {
	ID                string
	Title             string
	Description       string
	SourceBranch      string
	TargetBranch      string
	Files             []FileChange
	State             State
	RequiredApprovals int
	Participants      Participants

	Reviews []Review
	// Discussion — комментарии вне ревью (операция addComment).
	Discussion []ReviewComment

	CreatedAt time.Time
	UpdatedAt time.Time

	MergeCommitID string
	MergedAt      *time.Time
	MergedBy      string
	ClosedAt      *time.Time

	// Version — счётчик оптимистической блокировки; инкрементируется хранилищем.
	Version int
}

// Clone возвращает глубокую копию агрегата. Операции движка мутируют копию
// и публикуют её только после успешной фиксации в хранилище.
func (pr PullRequest) Clone() PullRequest {
	out := pr
	out.Files = append([]FileChange(nil), pr.Files...)
	out.Participants = pr.Participants.clone()
	out.Discussion = append([]ReviewComment(nil), pr.Discussion...)
	if pr.Reviews != nil {
		out.Reviews = make([]Review, len(pr.Reviews))
		for i, r := range pr.Reviews {
			out.Reviews[i] = r.clone()
		}
	}
	if pr.MergedAt != nil {
		t := *pr.MergedAt
		out.MergedAt = &t
	}
	if pr.ClosedAt != nil {
		t := *pr.ClosedAt
		out.ClosedAt = &t
	}
	return out
}

// Производные значения вычисляются по требованию и нигде не хранятся.

// ApprovalCount — число ревью с вердиктом APPROVE.
func (pr PullRequest) ApprovalCount() int {
	n := 0
	for _, r := range pr.Reviews {
		if r.Verdict == VerdictApprove {
			n++
		}
	}
	return n
}

// ChangesRequestedCount — число ревью с вердиктом REQUEST_CHANGES.
func (pr PullRequest) ChangesRequestedCount() int {
	n := 0
	for _, r := range pr.Reviews {
		if r.Verdict == VerdictRequestChanges {
			n++
		}
	}
	return n
}

// CommentCount — суммарное число комментариев по всем ревью.
func (pr PullRequest) CommentCount() int {
	n := 0
	for _, r := range pr.Reviews {
		n += len(r.Comments)
	}
	return n
}

// HasUnresolvedChangeRequests — существует ли хотя бы одно REQUEST_CHANGES.
// Более поздний APPROVE того же ревьювера раннее REQUEST_CHANGES не снимает:
// механизма resolve у запросов правок нет.
func (pr PullRequest) HasUnresolvedChangeRequests() bool {
	return pr.ChangesRequestedCount() > 0
}

// CanMerge — валидатор мержа.
func (pr PullRequest) CanMerge() bool {
	return pr.State == StateApproved &&
		pr.ApprovalCount() >= pr.RequiredApprovals &&
		!pr.HasUnresolvedChangeRequests()
}

// NextStateAfterReview выбирает состояние после добавления ревью.
// Приоритет: REQUEST_CHANGES всегда побеждает; APPROVE переводит в approved
// при достижении порога, иначе в in_review; COMMENT переводит в in_review,
// только если агрегат ещё не в in_review или changes_requested.
func (pr PullRequest) NextStateAfterReview(verdict Verdict) State {
	switch verdict {
	case VerdictRequestChanges:
		return StateChangesRequested
	case VerdictApprove:
		if pr.ApprovalCount() >= pr.RequiredApprovals {
			return StateApproved
		}
		return StateInReview
	default: // COMMENT
		if pr.State == StateInReview || pr.State == StateChangesRequested {
			return pr.State
		}
		return StateInReview
	}
}
