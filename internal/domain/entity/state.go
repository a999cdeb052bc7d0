package entity

// State описывает состояние жизненного цикла pull requestа.
type State string

const (
	StateDraft            State = "draft"
	StateOpen             State = "open"
	StateReviewRequested  State = "review_requested"
	StateInReview         State = "in_review"
	StateChangesRequested State = "changes_requested"
	StateApproved         State = "approved"
	StateMerged           State = "merged"
	StateClosed           State = "closed"
)

// AllStates — полный набор из восьми состояний.
var AllStates = []State{
	StateDraft,
	StateOpen,
	StateReviewRequested,
	StateInReview,
	StateChangesRequested,
	StateApproved,
	StateMerged,
	StateClosed,
}

// IsValid проверяет, что состояние входит в набор жизненного цикла.
func (s State) IsValid() bool {
	for _, st := range AllStates {
		if s == st {
			return true
		}
	}
	return false
}

// IsFinal — merged терминально; closed можно переоткрыть.
func (s State) IsFinal() bool {
	return s == StateMerged
}

// Operation — именованная операция протокола, для которой действует state guard.
type Operation string

const (
	OpUpdateDetails        Operation = "updateDetails"
	OpAddFiles             Operation = "addFiles"
	OpMarkReadyForReview   Operation = "markReadyForReview"
	OpConvertToDraft       Operation = "convertToDraft"
	OpRequestReview        Operation = "requestReview"
	OpSubmitReview         Operation = "submitReview"
	OpAddComment           Operation = "addComment"
	OpSetRequiredApprovals Operation = "setRequiredApprovals"
	OpMerge                Operation = "merge"
	OpClose                Operation = "close"
	OpReopen               Operation = "reopen"
)

// Таблица легальных переходов: операция -> состояния-источники.
// Целевое состояние вычисляется бизнес-логикой операции.
var allowedSourceStates = map[Operation][]State{
	OpUpdateDetails:        {StateDraft, StateOpen, StateReviewRequested, StateChangesRequested},
	OpAddFiles:             {StateDraft, StateOpen, StateReviewRequested, StateChangesRequested},
	OpMarkReadyForReview:   {StateDraft},
	OpConvertToDraft:       {StateOpen, StateReviewRequested},
	OpRequestReview:        {StateOpen},
	OpSubmitReview:         {StateReviewRequested, StateInReview, StateChangesRequested},
	OpAddComment:           {StateOpen, StateReviewRequested, StateInReview, StateChangesRequested},
	OpSetRequiredApprovals: {StateDraft, StateOpen, StateReviewRequested},
	// merge из фазы ревью отклоняет валидатор пригодности (MergeNotEligible);
	// state guard отсекает состояния, где merge нелегален категорически.
	OpMerge:                {StateReviewRequested, StateInReview, StateChangesRequested, StateApproved},
	OpClose:                {StateDraft, StateOpen, StateReviewRequested, StateInReview, StateChangesRequested, StateApproved},
	OpReopen:               {StateClosed},
}

// OperationAllowed сообщает, разрешена ли операция из данного состояния.
func OperationAllowed(op Operation, from State) bool {
	for _, s := range allowedSourceStates[op] {
		if s == from {
			return true
		}
	}
	return false
}
