package usecase

import (
	"context"
	"time"
)

// Канонические имена событий. Каждая успешная мутирующая операция
// эмитит ровно одно событие.
const (
	EventCreated                  = "Created"
	EventReadyForReview           = "ReadyForReview"
	EventConvertedToDraft         = "ConvertedToDraft"
	EventDetailsUpdated           = "DetailsUpdated"
	EventFilesAdded               = "FilesAdded"
	EventReviewRequested          = "ReviewRequested"
	EventReviewSubmitted          = "ReviewSubmitted"
	EventCommentAdded             = "CommentAdded"
	EventRequiredApprovalsChanged = "RequiredApprovalsChanged"
	EventMerged                   = "Merged"
	EventClosed                   = "Closed"
	EventReopened                 = "Reopened"
	EventAuthorResponded          = "AuthorResponded"
)

// Event — типизированное описание события для внешней доставки.
// Движок только решает, что эмитить; транспорт уведомлений — забота коллаборатора.
type Event struct {
	Name          string         `json:"name"`
	PullRequestID string         `json:"pull_request_id"`
	ActorID       string         `json:"actor_id"`
	OccurredAt    time.Time      `json:"occurred_at"`
	Payload       map[string]any `json:"payload,omitempty"`
}

// Notifier получает событие после успешной фиксации операции.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}
