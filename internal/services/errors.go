package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cropsgg/ionia-stage2-sub000/internal/models"
	"github.com/cropsgg/ionia-stage2-sub000/internal/validator"
)

// Sentinel errors. Every typed error below matches one of these via errors.Is.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrQuizNotFound       = errors.New("quiz not found")
	ErrAttemptNotFound    = errors.New("attempt not found")
	ErrQuestionNotFound   = errors.New("question not found")
	ErrValidationFailed   = errors.New("validation failed")
	ErrInvalidStructure   = errors.New("invalid quiz structure")
	ErrNotPublishable     = errors.New("quiz cannot be published")
	ErrStructureFrozen    = errors.New("quiz structure is frozen")
	ErrForbidden          = errors.New("forbidden")
	ErrQuizInactive       = errors.New("quiz is not active")
	ErrInvalidPassword    = errors.New("invalid quiz password")
	ErrAttemptLimit       = errors.New("maximum attempts reached")
	ErrAttemptExpired     = errors.New("attempt time has expired")
	ErrAlreadySubmitted   = errors.New("attempt already submitted")
	ErrConflict           = errors.New("resource conflict")
	ErrBusinessRule       = errors.New("business rule violated")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// ValidationError and ValidationErrors are shared with the request validator
// so handlers render both the same way.
type (
	ValidationError  = validator.ValidationError
	ValidationErrors = validator.ValidationErrors
)

func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
		Rule:    "business_logic",
	}
}

// StructureError names the first question that breaks the shape rules.
type StructureError struct {
	Index   int
	Message string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("question %d: %s", e.Index, e.Message)
}

func (e *StructureError) Is(target error) bool {
	return target == ErrInvalidStructure || target == ErrValidationFailed
}

type PublishError struct {
	QuizID uint
	Reason string
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("quiz %d cannot be published: %s", e.QuizID, e.Reason)
}

func (e *PublishError) Is(target error) bool { return target == ErrNotPublishable }

// ImmutableStructureError lists the patch fields rejected because the quiz
// already has attempts.
type ImmutableStructureError struct {
	QuizID uint
	Fields []string
}

func (e *ImmutableStructureError) Error() string {
	return fmt.Sprintf("quiz %d has attempts; cannot modify %s", e.QuizID, strings.Join(e.Fields, ", "))
}

func (e *ImmutableStructureError) Is(target error) bool { return target == ErrStructureFrozen }

type AuthzError struct {
	Resource string
	Action   string
	Reason   string
}

func (e *AuthzError) Error() string {
	return fmt.Sprintf("not allowed to %s %s: %s", e.Action, e.Resource, e.Reason)
}

func (e *AuthzError) Is(target error) bool { return target == ErrForbidden }

type InactiveQuizError struct {
	QuizID uint
	Status models.PresentationStatus
}

func (e *InactiveQuizError) Error() string {
	return fmt.Sprintf("quiz %d is %s", e.QuizID, e.Status)
}

func (e *InactiveQuizError) Is(target error) bool { return target == ErrQuizInactive }

type PasswordError struct {
	QuizID uint
}

func (e *PasswordError) Error() string {
	return fmt.Sprintf("invalid password for quiz %d", e.QuizID)
}

func (e *PasswordError) Is(target error) bool { return target == ErrInvalidPassword }

type AttemptLimitError struct {
	QuizID      uint
	MaxAttempts int
	Used        int64
}

func (e *AttemptLimitError) Error() string {
	return fmt.Sprintf("quiz %d allows %d attempts, %d used", e.QuizID, e.MaxAttempts, e.Used)
}

func (e *AttemptLimitError) Is(target error) bool { return target == ErrAttemptLimit }

// ExpiredAttemptError is returned after the attempt was auto-submitted on touch.
type ExpiredAttemptError struct {
	AttemptID uint
	Deadline  time.Time
}

func (e *ExpiredAttemptError) Error() string {
	return fmt.Sprintf("attempt %d expired at %s", e.AttemptID, e.Deadline.Format(time.RFC3339))
}

func (e *ExpiredAttemptError) Is(target error) bool { return target == ErrAttemptExpired }

type AlreadySubmittedError struct {
	AttemptID uint
	Status    models.AttemptStatus
}

func (e *AlreadySubmittedError) Error() string {
	return fmt.Sprintf("attempt %d is already %s", e.AttemptID, e.Status)
}

func (e *AlreadySubmittedError) Is(target error) bool { return target == ErrAlreadySubmitted }

type NotFoundError struct {
	Resource string
	ID       interface{}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return true
	case ErrQuizNotFound:
		return e.Resource == "quiz"
	case ErrAttemptNotFound:
		return e.Resource == "attempt"
	case ErrQuestionNotFound:
		return e.Resource == "question"
	}
	return false
}

// ConflictError means the optimistic guard lost more than once.
type ConflictError struct {
	Resource string
	ID       interface{}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %v was modified concurrently", e.Resource, e.ID)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

type BusinessRuleError struct {
	Rule    string
	Message string
	Context map[string]interface{}
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Rule, e.Message)
}

func (e *BusinessRuleError) Is(target error) bool { return target == ErrBusinessRule }
