// Package errors provides structured error handling for classwork services.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Validation errors
	CodeAssignmentTitleEmpty   Code = "ASSIGNMENT_TITLE_EMPTY"
	CodeAssignmentDeadlineZero Code = "ASSIGNMENT_DEADLINE_ZERO"
	CodeMessageContentEmpty    Code = "MESSAGE_CONTENT_EMPTY"
	CodeGradeOutOfRange        Code = "GRADE_OUT_OF_RANGE"
	CodeMissingField           Code = "MISSING_REQUIRED_FIELD"

	// Submission eligibility errors
	CodeDeadlinePassed   Code = "SUBMISSION_DEADLINE_PASSED"
	CodeAlreadySubmitted Code = "SUBMISSION_ALREADY_EXISTS"

	// Pipeline stage errors
	CodeUploadFailed        Code = "UPLOAD_FAILED"
	CodeTranscriptionFailed Code = "TRANSCRIPTION_FAILED"
	CodeGradingFailed       Code = "GRADING_FAILED"
	CodeGradingMalformed    Code = "GRADING_MALFORMED_RESPONSE"
	CodePersistFailed       Code = "PERSIST_FAILED"

	// Reconciliation errors
	CodeReconcileRejected Code = "RECONCILE_REJECTED"
	CodeReconcileConflict Code = "RECONCILE_CONFLICT"
	CodeGradeNotEditable  Code = "GRADE_NOT_EDITABLE"

	// Realtime errors
	CodeDeltaDecodeFailed Code = "DELTA_DECODE_FAILED"

	// Lookup errors
	CodeNotFound Code = "NOT_FOUND"

	// Authorization boundary errors
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeForbidden       Code = "FORBIDDEN"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, bad input
	case CodeAssignmentTitleEmpty,
		CodeAssignmentDeadlineZero,
		CodeMessageContentEmpty,
		CodeGradeOutOfRange,
		CodeMissingField:
		return http.StatusBadRequest

	// Conflict - state doesn't allow the operation
	case CodeDeadlinePassed,
		CodeAlreadySubmitted,
		CodeReconcileConflict,
		CodeGradeNotEditable:
		return http.StatusConflict

	// Not found - resource doesn't exist
	case CodeNotFound:
		return http.StatusNotFound

	case CodeUnauthenticated:
		return http.StatusUnauthorized

	case CodeForbidden:
		return http.StatusForbidden

	// Upstream collaborator failures surface as bad gateway so callers can
	// distinguish them from local faults.
	case CodeUploadFailed,
		CodeTranscriptionFailed,
		CodeGradingFailed,
		CodeGradingMalformed:
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}
