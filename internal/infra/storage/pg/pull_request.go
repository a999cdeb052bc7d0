package pg

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/reviewkit/engine/internal/domain/entity"
	"github.com/reviewkit/engine/internal/domain/repository"
	"github.com/reviewkit/engine/internal/domain/usecase"
)

var _ repository.PullRequestRepository = (*PullRequestStorage)(nil)

type PullRequestStorage struct {
	db  *sql.DB
	txm repository.TxManager
	log *zap.SugaredLogger
}

func NewPullRequestStorage(db *sql.DB, txm repository.TxManager, log *zap.SugaredLogger) *PullRequestStorage {
	return &PullRequestStorage{db: db, txm: txm, log: log}
}

func (s *PullRequestStorage) getQuerier(ctx context.Context) Querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok && tx != nil {
		return tx
	}
	return s.db
}

func (s *PullRequestStorage) Save(ctx context.Context, pr entity.PullRequest) error {
	return s.txm.Do(ctx, func(txCtx context.Context) error {
		q := s.getQuerier(txCtx)

		var exists bool
		if err := q.QueryRowContext(txCtx,
			`SELECT EXISTS(SELECT 1 FROM pull_requests WHERE id = $1)`, pr.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check pr exists: %w", err)
		}
		if exists {
			return usecase.ErrPRExists
		}

		_, err := q.ExecContext(txCtx, `
			INSERT INTO pull_requests
				(id, title, description, source_branch, target_branch, state,
				 required_approvals, author_id, maintainer_id, reviewer_ids,
				 created_at, updated_at, merge_commit_id, merged_at, merged_by, closed_at, version)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,1)
		`,
			pr.ID, pr.Title, pr.Description, pr.SourceBranch, pr.TargetBranch, string(pr.State),
			pr.RequiredApprovals, pr.Participants.AuthorID, pr.Participants.MaintainerID,
			pq.Array(pr.Participants.ReviewerIDs),
			pr.CreatedAt, pr.UpdatedAt, nullString(pr.MergeCommitID), pr.MergedAt,
			nullString(pr.MergedBy), pr.ClosedAt,
		)
		if err != nil {
			return fmt.Errorf("insert pr: %w", err)
		}

		return s.insertChildren(txCtx, q, pr)
	})
}

// Update — оптимистическая фиксация: строка агрегата обновляется только при
// совпадении версии; дочерние строки переписываются в той же транзакции.
func (s *PullRequestStorage) Update(ctx context.Context, pr entity.PullRequest) error {
	return s.txm.Do(ctx, func(txCtx context.Context) error {
		q := s.getQuerier(txCtx)

		res, err := q.ExecContext(txCtx, `
			UPDATE pull_requests SET
				title = $2, description = $3, source_branch = $4, target_branch = $5,
				state = $6, required_approvals = $7, reviewer_ids = $8,
				updated_at = $9, merge_commit_id = $10, merged_at = $11,
				merged_by = $12, closed_at = $13, version = version + 1
			WHERE id = $1 AND version = $14
		`,
			pr.ID, pr.Title, pr.Description, pr.SourceBranch, pr.TargetBranch,
			string(pr.State), pr.RequiredApprovals, pq.Array(pr.Participants.ReviewerIDs),
			pr.UpdatedAt, nullString(pr.MergeCommitID), pr.MergedAt,
			nullString(pr.MergedBy), pr.ClosedAt, pr.Version,
		)
		if err != nil {
			return fmt.Errorf("update pr: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			// Либо агрегата нет, либо версия ушла вперёд.
			var exists bool
			if err := q.QueryRowContext(txCtx,
				`SELECT EXISTS(SELECT 1 FROM pull_requests WHERE id = $1)`, pr.ID).Scan(&exists); err != nil {
				return fmt.Errorf("check pr exists: %w", err)
			}
			if !exists {
				return usecase.ErrPRNotFound
			}
			return usecase.ErrVersionConflict
		}

		for _, table := range []string{"review_comments", "reviews", "pull_request_files"} {
			if _, err := q.ExecContext(txCtx,
				fmt.Sprintf(`DELETE FROM %s WHERE pr_id = $1`, table), pr.ID); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}

		return s.insertChildren(txCtx, q, pr)
	})
}

func (s *PullRequestStorage) insertChildren(ctx context.Context, q Querier, pr entity.PullRequest) error {
	for i, f := range pr.Files {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO pull_request_files (pr_id, position, path, change_type, lines_added, lines_deleted, old_path)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, pr.ID, i, f.Path, string(f.ChangeType), f.LinesAdded, f.LinesDeleted, f.OldPath); err != nil {
			return fmt.Errorf("insert file change: %w", err)
		}
	}

	for i, r := range pr.Reviews {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO reviews (id, pr_id, position, reviewer_id, verdict, summary, submitted_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, r.ID, pr.ID, i, r.ReviewerID, string(r.Verdict), r.Summary, r.SubmittedAt); err != nil {
			return fmt.Errorf("insert review: %w", err)
		}
		for j, c := range r.Comments {
			if err := s.insertComment(ctx, q, pr.ID, &r.ID, j, c); err != nil {
				return err
			}
		}
	}

	for i, c := range pr.Discussion {
		if err := s.insertComment(ctx, q, pr.ID, nil, i, c); err != nil {
			return err
		}
	}

	return nil
}

func (s *PullRequestStorage) insertComment(ctx context.Context, q Querier, prID string, reviewID *string, position int, c entity.ReviewComment) error {
	if _, err := q.ExecContext(ctx, `
		INSERT INTO review_comments (id, pr_id, review_id, position, file_path, line_number, text, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, c.ID, prID, reviewID, position, c.FilePath, c.LineNumber, c.Text, c.CreatedAt); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *PullRequestStorage) Get(ctx context.Context, id string) (entity.PullRequest, error) {
	q := s.getQuerier(ctx)

	pr, err := s.scanPR(q.QueryRowContext(ctx, `
		SELECT id, title, description, source_branch, target_branch, state,
		       required_approvals, author_id, maintainer_id, reviewer_ids,
		       created_at, updated_at, merge_commit_id, merged_at, merged_by, closed_at, version
		FROM pull_requests WHERE id = $1
	`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return entity.PullRequest{}, usecase.ErrPRNotFound
		}
		return entity.PullRequest{}, fmt.Errorf("get pr: %w", err)
	}

	if err := s.loadChildren(ctx, q, &pr); err != nil {
		return entity.PullRequest{}, err
	}
	return pr, nil
}

func (s *PullRequestStorage) List(ctx context.Context, state *entity.State) ([]entity.PullRequest, error) {
	q := s.getQuerier(ctx)

	query := `
		SELECT id, title, description, source_branch, target_branch, state,
		       required_approvals, author_id, maintainer_id, reviewer_ids,
		       created_at, updated_at, merge_commit_id, merged_at, merged_by, closed_at, version
		FROM pull_requests
	`
	args := []any{}
	if state != nil {
		query += ` WHERE state = $1`
		args = append(args, string(*state))
	}
	query += ` ORDER BY created_at`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list prs: %w", err)
	}
	defer closeRows(rows, s.log)

	var out []entity.PullRequest
	for rows.Next() {
		pr, err := s.scanPR(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pr: %w", err)
		}
		out = append(out, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if err := s.loadChildren(ctx, q, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PullRequestStorage) scanPR(row rowScanner) (entity.PullRequest, error) {
	var pr entity.PullRequest
	var state string
	var reviewerIDs pq.StringArray
	var mergeCommitID, mergedBy sql.NullString

	err := row.Scan(
		&pr.ID, &pr.Title, &pr.Description, &pr.SourceBranch, &pr.TargetBranch, &state,
		&pr.RequiredApprovals, &pr.Participants.AuthorID, &pr.Participants.MaintainerID, &reviewerIDs,
		&pr.CreatedAt, &pr.UpdatedAt, &mergeCommitID, &pr.MergedAt, &mergedBy, &pr.ClosedAt, &pr.Version,
	)
	if err != nil {
		return entity.PullRequest{}, err
	}

	pr.State = entity.State(state)
	pr.Participants.ReviewerIDs = []string(reviewerIDs)
	if mergeCommitID.Valid {
		pr.MergeCommitID = mergeCommitID.String
	}
	if mergedBy.Valid {
		pr.MergedBy = mergedBy.String
	}
	return pr, nil
}

func (s *PullRequestStorage) loadChildren(ctx context.Context, q Querier, pr *entity.PullRequest) error {
	// Изменения файлов
	rows, err := q.QueryContext(ctx, `
		SELECT path, change_type, lines_added, lines_deleted, old_path
		FROM pull_request_files WHERE pr_id = $1 ORDER BY position
	`, pr.ID)
	if err != nil {
		return fmt.Errorf("query files: %w", err)
	}
	defer closeRows(rows, s.log)

	for rows.Next() {
		var f entity.FileChange
		var changeType string
		if err := rows.Scan(&f.Path, &changeType, &f.LinesAdded, &f.LinesDeleted, &f.OldPath); err != nil {
			return fmt.Errorf("scan file change: %w", err)
		}
		f.ChangeType = entity.ChangeType(changeType)
		pr.Files = append(pr.Files, f)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	// Ревью
	reviewRows, err := q.QueryContext(ctx, `
		SELECT id, reviewer_id, verdict, summary, submitted_at
		FROM reviews WHERE pr_id = $1 ORDER BY position
	`, pr.ID)
	if err != nil {
		return fmt.Errorf("query reviews: %w", err)
	}
	defer closeRows(reviewRows, s.log)

	reviewIdx := make(map[string]int)
	for reviewRows.Next() {
		var r entity.Review
		var verdict string
		if err := reviewRows.Scan(&r.ID, &r.ReviewerID, &verdict, &r.Summary, &r.SubmittedAt); err != nil {
			return fmt.Errorf("scan review: %w", err)
		}
		r.Verdict = entity.Verdict(verdict)
		reviewIdx[r.ID] = len(pr.Reviews)
		pr.Reviews = append(pr.Reviews, r)
	}
	if err := reviewRows.Err(); err != nil {
		return err
	}

	// Комментарии: привязанные к ревью и комментарии дискуссии (review_id IS NULL)
	commentRows, err := q.QueryContext(ctx, `
		SELECT id, review_id, file_path, line_number, text, created_at
		FROM review_comments WHERE pr_id = $1 ORDER BY review_id NULLS LAST, position
	`, pr.ID)
	if err != nil {
		return fmt.Errorf("query comments: %w", err)
	}
	defer closeRows(commentRows, s.log)

	for commentRows.Next() {
		var c entity.ReviewComment
		var reviewID sql.NullString
		if err := commentRows.Scan(&c.ID, &reviewID, &c.FilePath, &c.LineNumber, &c.Text, &c.CreatedAt); err != nil {
			return fmt.Errorf("scan comment: %w", err)
		}
		if reviewID.Valid {
			if idx, ok := reviewIdx[reviewID.String]; ok {
				pr.Reviews[idx].Comments = append(pr.Reviews[idx].Comments, c)
			}
		} else {
			pr.Discussion = append(pr.Discussion, c)
		}
	}
	return commentRows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
