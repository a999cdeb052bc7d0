package handlers

import (
	"time"

	"github.com/reviewkit/engine/internal/domain/entity"
	"github.com/reviewkit/engine/internal/domain/usecase"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type FileChange struct {
	Path         string `json:"path"`
	ChangeType   string `json:"change_type"`
	LinesAdded   int    `json:"lines_added"`
	LinesDeleted int    `json:"lines_deleted"`
	OldPath      string `json:"old_path,omitempty"`
}

type CreatePullRequestRequest struct {
	Title             string       `json:"title"`
	Description       string       `json:"description"`
	SourceBranch      string       `json:"source_branch"`
	TargetBranch      string       `json:"target_branch"`
	Files             []FileChange `json:"files"`
	AuthorID          string       `json:"author_id"`
	ReviewerIDs       []string     `json:"reviewer_ids"`
	MaintainerID      string       `json:"maintainer_id"`
	RequiredApprovals int          `json:"required_approvals,omitempty"`
}

type UpdateDetailsRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type AddFilesRequest struct {
	Files []FileChange `json:"files"`
}

type CommentRequest struct {
	FilePath   string `json:"file_path"`
	LineNumber int    `json:"line_number"`
	Text       string `json:"text"`
}

type SubmitReviewRequest struct {
	Verdict  string           `json:"verdict"`
	Summary  string           `json:"summary"`
	Comments []CommentRequest `json:"comments,omitempty"`
}

type SetRequiredApprovalsRequest struct {
	Count int `json:"count"`
}

type MergeRequest struct {
	CommitMessage string `json:"commit_message"`
}

type CloseRequest struct {
	Reason string `json:"reason"`
}

type PullRequest struct {
	ID                string       `json:"id"`
	Title             string       `json:"title"`
	Description       string       `json:"description"`
	SourceBranch      string       `json:"source_branch"`
	TargetBranch      string       `json:"target_branch"`
	State             string       `json:"state"`
	RequiredApprovals int          `json:"required_approvals"`
	AuthorID          string       `json:"author_id"`
	ReviewerIDs       []string     `json:"reviewer_ids"`
	MaintainerID      string       `json:"maintainer_id"`
	Files             []FileChange `json:"files"`
	ReviewCount       int          `json:"review_count"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
	MergeCommitID     string       `json:"merge_commit_id,omitempty"`
	MergedAt          *time.Time   `json:"merged_at,omitempty"`
	MergedBy          string       `json:"merged_by,omitempty"`
	ClosedAt          *time.Time   `json:"closed_at,omitempty"`
}

type StateResponse struct {
	State string `json:"state"`
}

type ReviewResponse struct {
	ReviewID      string `json:"review_id"`
	State         string `json:"state"`
	ApprovalCount int    `json:"approval_count"`
}

type CommentResponse struct {
	CommentID string `json:"comment_id"`
}

type MergeResponse struct {
	CommitID string `json:"commit_id"`
	State    string `json:"state"`
}

type SummaryResponse struct {
	ID                    string `json:"id"`
	Title                 string `json:"title"`
	Description           string `json:"description"`
	SourceBranch          string `json:"source_branch"`
	TargetBranch          string `json:"target_branch"`
	State                 string `json:"state"`
	RequiredApprovals     int    `json:"required_approvals"`
	FileCount             int    `json:"file_count"`
	ReviewCount           int    `json:"review_count"`
	ApprovalCount         int    `json:"approval_count"`
	ChangesRequestedCount int    `json:"changes_requested_count"`
	CommentCount          int    `json:"comment_count"`
	DiscussionCount       int    `json:"discussion_count"`
	CanMerge              bool   `json:"can_merge"`
}

type CanMergeResponse struct {
	CanMerge bool `json:"can_merge"`
}

type CountResponse struct {
	Count int `json:"count"`
}

func toFileChanges(in []FileChange) []entity.FileChange {
	out := make([]entity.FileChange, 0, len(in))
	for _, f := range in {
		out = append(out, entity.FileChange{
			Path:         f.Path,
			ChangeType:   entity.ChangeType(f.ChangeType),
			LinesAdded:   f.LinesAdded,
			LinesDeleted: f.LinesDeleted,
			OldPath:      f.OldPath,
		})
	}
	return out
}

func fromFileChanges(in []entity.FileChange) []FileChange {
	out := make([]FileChange, 0, len(in))
	for _, f := range in {
		out = append(out, FileChange{
			Path:         f.Path,
			ChangeType:   string(f.ChangeType),
			LinesAdded:   f.LinesAdded,
			LinesDeleted: f.LinesDeleted,
			OldPath:      f.OldPath,
		})
	}
	return out
}

func toComments(in []CommentRequest) []usecase.CommentParams {
	out := make([]usecase.CommentParams, 0, len(in))
	for _, c := range in {
		out = append(out, usecase.CommentParams{
			FilePath:   c.FilePath,
			LineNumber: c.LineNumber,
			Text:       c.Text,
		})
	}
	return out
}

func fromPullRequest(pr entity.PullRequest) PullRequest {
	return PullRequest{
		ID:                pr.ID,
		Title:             pr.Title,
		Description:       pr.Description,
		SourceBranch:      pr.SourceBranch,
		TargetBranch:      pr.TargetBranch,
		State:             string(pr.State),
		RequiredApprovals: pr.RequiredApprovals,
		AuthorID:          pr.Participants.AuthorID,
		ReviewerIDs:       pr.Participants.ReviewerIDs,
		MaintainerID:      pr.Participants.MaintainerID,
		Files:             fromFileChanges(pr.Files),
		ReviewCount:       len(pr.Reviews),
		CreatedAt:         pr.CreatedAt,
		UpdatedAt:         pr.UpdatedAt,
		MergeCommitID:     pr.MergeCommitID,
		MergedAt:          pr.MergedAt,
		MergedBy:          pr.MergedBy,
		ClosedAt:          pr.ClosedAt,
	}
}
