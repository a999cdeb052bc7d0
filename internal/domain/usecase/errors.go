package usecase

import (
	"errors"
	"fmt"

	"github.com/reviewkit/engine/internal/domain/entity"
)

// Таксономия отказов. Любой отказ прерывает операцию без видимых изменений
// состояния. AuthorizationDenied и StateGuardViolation никогда не смешиваются
// с ValidationFailed, даже если транспорт отдаёт одинаковый статус.
var (
	ErrAuthorizationDenied = errors.New("authorization denied")
	ErrStateGuardViolation = errors.New("state guard violation")
	ErrValidationFailed    = errors.New("validation failed")
	ErrMergeNotEligible    = errors.New("merge not eligible")

	ErrPRNotFound      = errors.New("pull request not found")
	ErrPRExists        = errors.New("pull request already exists")
	ErrVersionConflict = errors.New("pull request version conflict")
)

// AuthorizationError — identity не входит в требуемую роль.
type AuthorizationError struct {
	CallerID  string
	Operation entity.Operation
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("identity %q is not authorized for operation %q", e.CallerID, e.Operation)
}

func (e *AuthorizationError) Is(target error) bool { return target == ErrAuthorizationDenied }

// StateGuardError — операция нелегальна из текущего состояния.
type StateGuardError struct {
	Operation entity.Operation
	State     entity.State
}

func (e *StateGuardError) Error() string {
	return fmt.Sprintf("operation %q is not allowed in state %q", e.Operation, e.State)
}

func (e *StateGuardError) Is(target error) bool { return target == ErrStateGuardViolation }

// ValidationError несёт конкретное нарушенное правило.
type ValidationError struct {
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Rule, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidationFailed }

// MergeEligibilityError — merge при недостатке одобрений или при
// неразрешённых запросах изменений.
type MergeEligibilityError struct {
	ApprovalCount         int
	RequiredApprovals     int
	ChangesRequestedCount int
}

func (e *MergeEligibilityError) Error() string {
	return fmt.Sprintf("merge not eligible: approvals %d/%d, change requests %d",
		e.ApprovalCount, e.RequiredApprovals, e.ChangesRequestedCount)
}

func (e *MergeEligibilityError) Is(target error) bool { return target == ErrMergeNotEligible }

func Validation(rule, format string, args ...any) error {
	return &ValidationError{Rule: rule, Message: fmt.Sprintf(format, args...)}
}
