package core

import (
	"errors"
	"fmt"

	"github.com/valter-silva-au/jizoni-schedule/pkg/models"
)

// ErrorKind groups schedule errors by how a caller should react to them.
type ErrorKind string

const (
	// KindValidation errors are caused by bad input and should be shown to the user.
	KindValidation ErrorKind = "validation"
	// KindConcurrency errors are transient and can be retried.
	KindConcurrency ErrorKind = "concurrency"
	// KindStructural errors mean the project cannot be scheduled as it stands.
	KindStructural ErrorKind = "structural"
)

// ErrorCode identifies a specific schedule failure.
type ErrorCode string

const (
	CodeCycleDetected         ErrorCode = "CycleDetected"
	CodeSelfLoop              ErrorCode = "SelfLoop"
	CodeDuplicateEdge         ErrorCode = "DuplicateEdge"
	CodeInvalidHierarchy      ErrorCode = "InvalidHierarchy"
	CodeHasChildren           ErrorCode = "HasChildren"
	CodeInvalidCalendarConfig ErrorCode = "InvalidCalendarConfig"
	CodeDuplicateBaselineName ErrorCode = "DuplicateBaselineName"
	CodeDuplicateWBSCode      ErrorCode = "DuplicateWBSCode"
	CodeInvalidWBSCode        ErrorCode = "InvalidWBSCode"
	CodeInvalidParent         ErrorCode = "InvalidParent"
	CodeUnknownTask           ErrorCode = "UnknownTask"
	CodeInvalidInput          ErrorCode = "InvalidInput"
	CodeScheduleBusy          ErrorCode = "ScheduleBusy"
	CodeStaleRecompute        ErrorCode = "StaleRecompute"
	CodeUnscheduledGraph      ErrorCode = "UnscheduledGraph"
)

var codeKinds = map[ErrorCode]ErrorKind{
	CodeCycleDetected:         KindValidation,
	CodeSelfLoop:              KindValidation,
	CodeDuplicateEdge:         KindValidation,
	CodeInvalidHierarchy:      KindValidation,
	CodeHasChildren:           KindValidation,
	CodeInvalidCalendarConfig: KindValidation,
	CodeDuplicateBaselineName: KindValidation,
	CodeDuplicateWBSCode:      KindValidation,
	CodeInvalidWBSCode:        KindValidation,
	CodeInvalidParent:         KindValidation,
	CodeUnknownTask:           KindValidation,
	CodeInvalidInput:          KindValidation,
	CodeScheduleBusy:          KindConcurrency,
	CodeStaleRecompute:        KindConcurrency,
	CodeUnscheduledGraph:      KindStructural,
}

// Sentinel errors for use with errors.Is.
var (
	ErrCycleDetected         = &ScheduleError{Code: CodeCycleDetected}
	ErrSelfLoop              = &ScheduleError{Code: CodeSelfLoop}
	ErrDuplicateEdge         = &ScheduleError{Code: CodeDuplicateEdge}
	ErrInvalidHierarchy      = &ScheduleError{Code: CodeInvalidHierarchy}
	ErrHasChildren           = &ScheduleError{Code: CodeHasChildren}
	ErrInvalidCalendarConfig = &ScheduleError{Code: CodeInvalidCalendarConfig}
	ErrDuplicateBaselineName = &ScheduleError{Code: CodeDuplicateBaselineName}
	ErrDuplicateWBSCode      = &ScheduleError{Code: CodeDuplicateWBSCode}
	ErrInvalidWBSCode        = &ScheduleError{Code: CodeInvalidWBSCode}
	ErrInvalidParent         = &ScheduleError{Code: CodeInvalidParent}
	ErrUnknownTask           = &ScheduleError{Code: CodeUnknownTask}
	ErrInvalidInput          = &ScheduleError{Code: CodeInvalidInput}
	ErrScheduleBusy          = &ScheduleError{Code: CodeScheduleBusy}
	ErrStaleRecompute        = &ScheduleError{Code: CodeStaleRecompute}
	ErrUnscheduledGraph      = &ScheduleError{Code: CodeUnscheduledGraph}
)

// ScheduleError is the single error type raised by the scheduling engine.
// Loop is set for CycleDetected and carries the offending path.
type ScheduleError struct {
	Code    ErrorCode
	Message string
	Loop    *models.ScheduleLoop
}

// Kind returns the error category for the code.
func (e *ScheduleError) Kind() ErrorKind {
	return codeKinds[e.Code]
}

func (e *ScheduleError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any ScheduleError with the same code, so that
// errors.Is(err, ErrCycleDetected) works on detailed errors.
func (e *ScheduleError) Is(target error) bool {
	t, ok := target.(*ScheduleError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func newError(code ErrorCode, format string, args ...any) *ScheduleError {
	return &ScheduleError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first ScheduleError in err's chain, or ""
// when err is not a schedule error.
func KindOf(err error) ErrorKind {
	var se *ScheduleError
	if errors.As(err, &se) {
		return se.Kind()
	}
	return ""
}

// IsValidation reports whether err is a recoverable input error.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsConcurrency reports whether err can be resolved by retrying.
func IsConcurrency(err error) bool { return KindOf(err) == KindConcurrency }

// IsStructural reports whether err means the project cannot be scheduled.
func IsStructural(err error) bool { return KindOf(err) == KindStructural }

// LoopFromError extracts the rejected loop from a CycleDetected error.
func LoopFromError(err error) (*models.ScheduleLoop, bool) {
	var se *ScheduleError
	if errors.As(err, &se) && se.Loop != nil {
		return se.Loop, true
	}
	return nil, false
}
