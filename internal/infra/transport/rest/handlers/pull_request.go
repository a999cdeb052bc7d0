package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reviewkit/engine/internal/domain/entity"
	"github.com/reviewkit/engine/internal/domain/usecase"
)

// POST /pullRequests
func (h *Handlers) CreatePullRequest(w http.ResponseWriter, r *http.Request) {
	var req CreatePullRequestRequest
	if !decodeBody(w, r, &req) {
		return
	}

	pr, err := h.engine.CreatePullRequest(r.Context(), usecase.CreateParams{
		Title:             req.Title,
		Description:       req.Description,
		SourceBranch:      req.SourceBranch,
		TargetBranch:      req.TargetBranch,
		Files:             toFileChanges(req.Files),
		AuthorID:          req.AuthorID,
		ReviewerIDs:       req.ReviewerIDs,
		MaintainerID:      req.MaintainerID,
		RequiredApprovals: req.RequiredApprovals,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, fromPullRequest(pr))
}

// GET /pullRequests?state=
func (h *Handlers) ListPullRequests(w http.ResponseWriter, r *http.Request) {
	var state *entity.State
	if raw := r.URL.Query().Get("state"); raw != "" {
		s := entity.State(raw)
		if !s.IsValid() {
			writeError(w, http.StatusBadRequest, codeBadRequest, "unknown state filter")
			return
		}
		state = &s
	}

	prs, err := h.engine.ListPullRequests(r.Context(), callerID(r), state)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	out := make([]PullRequest, 0, len(prs))
	for _, pr := range prs {
		out = append(out, fromPullRequest(pr))
	}
	writeJSON(w, http.StatusOK, out)
}

// PATCH /pullRequests/{id}/details
func (h *Handlers) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	var req UpdateDetailsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	pr, err := h.engine.UpdateDetails(r.Context(), callerID(r), chi.URLParam(r, "id"), req.Title, req.Description)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fromPullRequest(pr))
}

// POST /pullRequests/{id}/files
func (h *Handlers) AddFiles(w http.ResponseWriter, r *http.Request) {
	var req AddFilesRequest
	if !decodeBody(w, r, &req) {
		return
	}

	pr, err := h.engine.AddFiles(r.Context(), callerID(r), chi.URLParam(r, "id"), toFileChanges(req.Files))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fromPullRequest(pr))
}

// POST /pullRequests/{id}/readyForReview
func (h *Handlers) MarkReadyForReview(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.MarkReadyForReview)
}

// POST /pullRequests/{id}/convertToDraft
func (h *Handlers) ConvertToDraft(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.ConvertToDraft)
}

// POST /pullRequests/{id}/requestReview
func (h *Handlers) RequestReview(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.RequestReview)
}

// POST /pullRequests/{id}/reopen
func (h *Handlers) Reopen(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.Reopen)
}

// POST /pullRequests/{id}/reviews
func (h *Handlers) SubmitReview(w http.ResponseWriter, r *http.Request) {
	var req SubmitReviewRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.engine.SubmitReview(r.Context(), callerID(r), chi.URLParam(r, "id"), usecase.ReviewParams{
		Verdict:  entity.Verdict(req.Verdict),
		Summary:  req.Summary,
		Comments: toComments(req.Comments),
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ReviewResponse{
		ReviewID:      result.ReviewID,
		State:         string(result.State),
		ApprovalCount: result.ApprovalCount,
	})
}

// POST /pullRequests/{id}/comments
func (h *Handlers) AddComment(w http.ResponseWriter, r *http.Request) {
	var req CommentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	id, err := h.engine.AddComment(r.Context(), callerID(r), chi.URLParam(r, "id"), usecase.CommentParams{
		FilePath:   req.FilePath,
		LineNumber: req.LineNumber,
		Text:       req.Text,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CommentResponse{CommentID: id})
}

// PATCH /pullRequests/{id}/requiredApprovals
func (h *Handlers) SetRequiredApprovals(w http.ResponseWriter, r *http.Request) {
	var req SetRequiredApprovalsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	pr, err := h.engine.SetRequiredApprovals(r.Context(), callerID(r), chi.URLParam(r, "id"), req.Count)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fromPullRequest(pr))
}

// POST /pullRequests/{id}/merge
func (h *Handlers) Merge(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.engine.Merge(r.Context(), callerID(r), chi.URLParam(r, "id"), req.CommitMessage)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MergeResponse{CommitID: result.CommitID, State: string(result.State)})
}

// POST /pullRequests/{id}/close
func (h *Handlers) Close(w http.ResponseWriter, r *http.Request) {
	var req CloseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	state, err := h.engine.Close(r.Context(), callerID(r), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StateResponse{State: string(state)})
}

// GET /pullRequests/{id}/summary
func (h *Handlers) GetSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.engine.GetSummary(r.Context(), callerID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SummaryResponse{
		ID:                    s.ID,
		Title:                 s.Title,
		Description:           s.Description,
		SourceBranch:          s.SourceBranch,
		TargetBranch:          s.TargetBranch,
		State:                 string(s.State),
		RequiredApprovals:     s.RequiredApprovals,
		FileCount:             s.FileCount,
		ReviewCount:           s.ReviewCount,
		ApprovalCount:         s.ApprovalCount,
		ChangesRequestedCount: s.ChangesRequestedCount,
		CommentCount:          s.CommentCount,
		DiscussionCount:       s.DiscussionCount,
		CanMerge:              s.CanMerge,
	})
}

// GET /pullRequests/{id}/reviewCount
func (h *Handlers) GetReviewCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.engine.GetReviewCount(r.Context(), callerID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// GET /pullRequests/{id}/approvalCount
func (h *Handlers) GetApprovalCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.engine.GetApprovalCount(r.Context(), callerID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// GET /pullRequests/{id}/canMerge
func (h *Handlers) CanMerge(w http.ResponseWriter, r *http.Request) {
	ok, err := h.engine.CanMerge(r.Context(), callerID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CanMergeResponse{CanMerge: ok})
}

func (h *Handlers) transition(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, callerID, prID string) (entity.State, error),
) {
	state, err := op(r.Context(), callerID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StateResponse{State: string(state)})
}
