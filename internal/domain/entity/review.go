package entity

import "time"

// Verdict — классификация ревью.
type Verdict string

const (
	VerdictApprove        Verdict = "APPROVE"
	VerdictRequestChanges Verdict = "REQUEST_CHANGES"
	VerdictComment        Verdict = "COMMENT"
)

// IsValid проверяет, что вердикт известен.
func (v Verdict) IsValid() bool {
	switch v {
	case VerdictApprove, VerdictRequestChanges, VerdictComment:
		return true
	}
	return false
}

// Review — неизменяемый вердикт одного ревьювера. Создаётся движком
// в ответ на submitReview и никогда не обновляется: поправки моделируются
// новым Review.
type Review struct {
	ID          string
	ReviewerID  string
	Verdict     Verdict
	Summary     string
	Comments    []ReviewComment
	SubmittedAt time.Time
}

// ReviewComment — комментарий к конкретной строке файла.
type ReviewComment struct {
	ID         string
	FilePath   string
	LineNumber int
	Text       string
	CreatedAt  time.Time
}

func (r Review) clone() Review {
	out := r
	out.Comments = append([]ReviewComment(nil), r.Comments...)
	return out
}
