//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewkit/engine/internal/infra/transport/rest/handlers"
)

type testClient struct {
	srv *httptest.Server
}

func (c *testClient) do(t *testing.T, method, path, caller string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set("X-Caller-Id", caller)
	}

	resp, err := c.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func TestFullLifecycleOverPostgres(t *testing.T) {
	db := setupTestDB(t)
	client := &testClient{srv: newTestServer(t, db)}

	const (
		author     = "u-author"
		reviewer1  = "u-rev1"
		reviewer2  = "u-rev2"
		maintainer = "u-maint"
	)

	// Создание
	resp := client.do(t, http.MethodPost, "/pullRequests", author, handlers.CreatePullRequestRequest{
		Title:        "Add cache layer",
		Description:  "LRU cache in front of storage",
		SourceBranch: "feat/cache",
		TargetBranch: "main",
		Files: []handlers.FileChange{
			{Path: "cache.go", ChangeType: "ADDED", LinesAdded: 200},
			{Path: "storage.go", ChangeType: "MODIFIED", LinesAdded: 12, LinesDeleted: 4},
		},
		AuthorID:          author,
		ReviewerIDs:       []string{reviewer1, reviewer2},
		MaintainerID:      maintainer,
		RequiredApprovals: 2,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var pr handlers.PullRequest
	decodeInto(t, resp, &pr)
	require.NotEmpty(t, pr.ID)
	assert.Equal(t, "draft", pr.State)
	base := "/pullRequests/" + pr.ID

	// Подготовка к ревью
	resp = client.do(t, http.MethodPost, base+"/readyForReview", author, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = client.do(t, http.MethodPost, base+"/requestReview", reviewer1, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Первый ревьюер требует правок
	resp = client.do(t, http.MethodPost, base+"/reviews", reviewer1, handlers.SubmitReviewRequest{
		Verdict: "REQUEST_CHANGES",
		Summary: "cache has no eviction",
		Comments: []handlers.CommentRequest{
			{FilePath: "cache.go", LineNumber: 42, Text: "unbounded growth"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var review handlers.ReviewResponse
	decodeInto(t, resp, &review)
	assert.Equal(t, "changes_requested", review.State)

	// Merge пока невозможен
	resp = client.do(t, http.MethodPost, base+"/merge", maintainer, handlers.MergeRequest{CommitMessage: "merge"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	var errBody handlers.ErrorResponse
	decodeInto(t, resp, &errBody)
	assert.Equal(t, "MERGE_NOT_ELIGIBLE", errBody.Error.Code)

	// Автор отвечает правкой
	resp = client.do(t, http.MethodPost, base+"/files", author, handlers.AddFilesRequest{
		Files: []handlers.FileChange{
			{Path: "eviction.go", ChangeType: "ADDED", LinesAdded: 60},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Оба ревьюера одобряют
	for _, rev := range []string{reviewer1, reviewer2} {
		resp = client.do(t, http.MethodPost, base+"/reviews", rev, handlers.SubmitReviewRequest{
			Verdict: "APPROVE",
			Summary: "eviction added, lgtm",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	// Поздние APPROVE раннее REQUEST_CHANGES не снимают: merge остаётся недоступен.
	resp = client.do(t, http.MethodGet, base+"/summary", maintainer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary handlers.SummaryResponse
	decodeInto(t, resp, &summary)
	assert.Equal(t, "approved", summary.State)
	assert.Equal(t, 2, summary.ApprovalCount)
	assert.Equal(t, 1, summary.ChangesRequestedCount)
	assert.False(t, summary.CanMerge)

	resp = client.do(t, http.MethodPost, base+"/merge", maintainer, handlers.MergeRequest{
		CommitMessage: "merge: add cache layer",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	decodeInto(t, resp, &errBody)
	assert.Equal(t, "MERGE_NOT_ELIGIBLE", errBody.Error.Code)

	// Агрегат читается из БД со всеми дочерними коллекциями
	resp = client.do(t, http.MethodGet, base+"/reviewCount", author, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var count handlers.CountResponse
	decodeInto(t, resp, &count)
	assert.Equal(t, 3, count.Count)
}

func TestMergeWithoutChangeRequestsOverPostgres(t *testing.T) {
	db := setupTestDB(t)
	client := &testClient{srv: newTestServer(t, db)}

	const (
		author     = "u-author"
		reviewer1  = "u-rev1"
		reviewer2  = "u-rev2"
		maintainer = "u-maint"
	)

	resp := client.do(t, http.MethodPost, "/pullRequests", author, handlers.CreatePullRequestRequest{
		Title:        "Evict cache entries",
		SourceBranch: "feat/eviction",
		TargetBranch: "main",
		Files: []handlers.FileChange{
			{Path: "eviction.go", ChangeType: "ADDED", LinesAdded: 60},
		},
		AuthorID:          author,
		ReviewerIDs:       []string{reviewer1, reviewer2},
		MaintainerID:      maintainer,
		RequiredApprovals: 2,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var pr handlers.PullRequest
	decodeInto(t, resp, &pr)
	base := "/pullRequests/" + pr.ID

	resp = client.do(t, http.MethodPost, base+"/readyForReview", author, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = client.do(t, http.MethodPost, base+"/requestReview", reviewer1, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for _, rev := range []string{reviewer1, reviewer2} {
		resp = client.do(t, http.MethodPost, base+"/reviews", rev, handlers.SubmitReviewRequest{
			Verdict: "APPROVE",
			Summary: "lgtm",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp = client.do(t, http.MethodGet, base+"/canMerge", maintainer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var eligible handlers.CanMergeResponse
	decodeInto(t, resp, &eligible)
	assert.True(t, eligible.CanMerge)

	resp = client.do(t, http.MethodPost, base+"/merge", maintainer, handlers.MergeRequest{
		CommitMessage: "merge: evict cache entries",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var merged handlers.MergeResponse
	decodeInto(t, resp, &merged)
	assert.Equal(t, "merged", merged.State)
	assert.NotEmpty(t, merged.CommitID)

	resp = client.do(t, http.MethodGet, base+"/summary", author, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary handlers.SummaryResponse
	decodeInto(t, resp, &summary)
	assert.Equal(t, "merged", summary.State)
	assert.Equal(t, 2, summary.ApprovalCount)
	assert.Equal(t, 0, summary.ChangesRequestedCount)
}

func TestVersionSurvivesRestart(t *testing.T) {
	db := setupTestDB(t)
	client := &testClient{srv: newTestServer(t, db)}

	resp := client.do(t, http.MethodPost, "/pullRequests", "a1", handlers.CreatePullRequestRequest{
		Title:        "T",
		SourceBranch: "feat",
		TargetBranch: "main",
		Files: []handlers.FileChange{
			{Path: "a.go", ChangeType: "ADDED", LinesAdded: 1},
		},
		AuthorID:     "a1",
		ReviewerIDs:  []string{"r1"},
		MaintainerID: "m1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var pr handlers.PullRequest
	decodeInto(t, resp, &pr)

	// Новый сервер поверх той же БД видит агрегат и продолжает цикл.
	second := &testClient{srv: newTestServer(t, db)}
	resp = second.do(t, http.MethodPost, "/pullRequests/"+pr.ID+"/readyForReview", "a1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = second.do(t, http.MethodGet, "/pullRequests/"+pr.ID+"/summary", "a1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary handlers.SummaryResponse
	decodeInto(t, resp, &summary)
	assert.Equal(t, "open", summary.State)
}

func TestListOverPostgres(t *testing.T) {
	db := setupTestDB(t)
	client := &testClient{srv: newTestServer(t, db)}

	for _, title := range []string{"first", "second"} {
		resp := client.do(t, http.MethodPost, "/pullRequests", "a1", handlers.CreatePullRequestRequest{
			Title:        title,
			SourceBranch: "feat/" + title,
			TargetBranch: "main",
			Files: []handlers.FileChange{
				{Path: title + ".go", ChangeType: "ADDED", LinesAdded: 1},
			},
			AuthorID:     "a1",
			ReviewerIDs:  []string{"r1"},
			MaintainerID: "m1",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := client.do(t, http.MethodGet, "/pullRequests?state=draft", "a1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var prs []handlers.PullRequest
	decodeInto(t, resp, &prs)
	assert.Len(t, prs, 2)
	assert.Equal(t, "first", prs[0].Title)
	assert.Equal(t, "second", prs[1].Title)
}
