package ldap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// ErrorCategory represents different categories of directory errors.
type ErrorCategory string

const (
	ErrorCategoryConnection     ErrorCategory = "connection"
	ErrorCategoryAuthentication ErrorCategory = "authentication"
	ErrorCategoryPermission     ErrorCategory = "permission"
	ErrorCategoryNotFound       ErrorCategory = "not_found"
	ErrorCategoryConflict       ErrorCategory = "conflict"
	ErrorCategoryValidation     ErrorCategory = "validation"
	ErrorCategoryServer         ErrorCategory = "server"
	ErrorCategoryUnknown        ErrorCategory = "unknown"
)

// OperationError is the single structured failure type surfaced by the
// failable operation executor. It aggregates the attempted operation name,
// the native client's diagnostic information, and any warning captured
// while the operation executed. Native signaling (raw *ldap.Error values,
// sentinel returns) never crosses this boundary.
type OperationError struct {
	Operation string           // The operation that failed
	Category  ErrorCategory    // Error category
	Code      uint16           // LDAP result code
	Message   string           // Human-readable message
	Detailed  *DetailedError   // Native diagnostic information
	Warning   *CapturedWarning // Warning captured during execution, if any
	Retryable bool             // Whether the error is retryable
	Cause     error            // Underlying error
}

func (e *OperationError) Error() string {
	var parts []string

	if e.Code > 0 {
		parts = append(parts, fmt.Sprintf("ldap operation [%s] failed (code %d)", e.Operation, e.Code))
	} else {
		parts = append(parts, fmt.Sprintf("ldap operation [%s] failed", e.Operation))
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.Detailed != nil && e.Detailed.Diagnostic != "" && e.Detailed.Diagnostic != e.Message {
		parts = append(parts, fmt.Sprintf("diagnostic: %s", e.Detailed.Diagnostic))
	}

	if e.Warning != nil {
		parts = append(parts, fmt.Sprintf("warning: %s", e.Warning.Message))
	}

	return strings.Join(parts, " - ")
}

func (e *OperationError) IsRetryable() bool {
	return e.Retryable
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// GetCategory returns the error category.
func (e *OperationError) GetCategory() ErrorCategory {
	return e.Category
}

// NewOperationError builds an OperationError from a native failure and an
// optionally captured warning. Returns nil when both are nil.
func NewOperationError(operation string, cause error, warning *CapturedWarning) *OperationError {
	if cause == nil && warning == nil {
		return nil
	}

	opErr := &OperationError{
		Operation: operation,
		Warning:   warning,
		Cause:     cause,
	}

	var ldapErr *ldap.Error
	switch {
	case errors.As(cause, &ldapErr):
		opErr.Code = ldapErr.ResultCode
		opErr.Detailed = NewDetailedError(ldapErr)
		opErr.Category = categorizeResultCode(ldapErr.ResultCode)
		opErr.Retryable = isResultCodeRetryable(ldapErr.ResultCode)
		opErr.Message = ldap.LDAPResultCodeMap[ldapErr.ResultCode]
	case cause != nil:
		opErr.Category = categorizeGenericError(cause)
		opErr.Retryable = isGenericErrorRetryable(cause)
		opErr.Message = cause.Error()
	default:
		// Warning-only failure: the native call succeeded but a non-benign
		// warning was emitted during execution.
		opErr.Category = categorizeGenericError(errors.New(warning.Message))
		opErr.Message = fmt.Sprintf("operation emitted warning: %s", warning.Message)
	}

	return opErr
}

// categorizeResultCode categorizes an error based on the LDAP result code.
func categorizeResultCode(code uint16) ErrorCategory {
	switch code {
	case ldap.LDAPResultInvalidCredentials,
		ldap.LDAPResultInappropriateAuthentication,
		ldap.LDAPResultStrongAuthRequired:
		return ErrorCategoryAuthentication

	case ldap.LDAPResultInsufficientAccessRights,
		ldap.LDAPResultUnwillingToPerform:
		return ErrorCategoryPermission

	case ldap.LDAPResultNoSuchObject,
		ldap.LDAPResultNoSuchAttribute,
		ldap.LDAPResultUndefinedAttributeType:
		return ErrorCategoryNotFound

	case ldap.LDAPResultEntryAlreadyExists,
		ldap.LDAPResultAttributeOrValueExists,
		ldap.LDAPResultObjectClassViolation,
		ldap.LDAPResultNotAllowedOnNonLeaf:
		return ErrorCategoryConflict

	case ldap.LDAPResultInvalidAttributeSyntax,
		ldap.LDAPResultConstraintViolation,
		ldap.LDAPResultInvalidDNSyntax,
		ldap.LDAPResultNamingViolation:
		return ErrorCategoryValidation

	case ldap.LDAPResultServerDown,
		ldap.LDAPResultUnavailable,
		ldap.LDAPResultBusy,
		ldap.LDAPResultTimeLimitExceeded,
		ldap.LDAPResultAdminLimitExceeded:
		return ErrorCategoryServer

	case ldap.LDAPResultConnectError,
		ldap.LDAPResultProtocolError:
		return ErrorCategoryConnection

	default:
		return ErrorCategoryUnknown
	}
}

// categorizeGenericError categorizes non-LDAP errors by message content.
func categorizeGenericError(err error) ErrorCategory {
	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset") {
		return ErrorCategoryConnection
	}

	if strings.Contains(errStr, "authentication") ||
		strings.Contains(errStr, "credentials") ||
		strings.Contains(errStr, "password") {
		return ErrorCategoryAuthentication
	}

	if strings.Contains(errStr, "permission") ||
		strings.Contains(errStr, "access") ||
		strings.Contains(errStr, "denied") {
		return ErrorCategoryPermission
	}

	return ErrorCategoryUnknown
}

// isResultCodeRetryable determines if an LDAP result code indicates a
// retryable condition.
func isResultCodeRetryable(code uint16) bool {
	switch code {
	case ldap.LDAPResultBusy,
		ldap.LDAPResultUnavailable,
		ldap.LDAPResultServerDown,
		ldap.LDAPResultTimeLimitExceeded,
		ldap.LDAPResultConnectError:
		return true
	default:
		return false
	}
}

// isGenericErrorRetryable determines if a generic error is retryable.
func isGenericErrorRetryable(err error) bool {
	errStr := strings.ToLower(err.Error())

	retryablePatterns := []string{
		"connection",
		"timeout",
		"network",
		"broken pipe",
		"connection reset",
		"temporary failure",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsRetryableError checks if an error is retryable.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var retryable RetryableError
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	return isGenericErrorRetryable(err)
}

// GetErrorCategory returns the category of an error.
func GetErrorCategory(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryUnknown
	}

	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.GetCategory()
	}

	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		return categorizeResultCode(ldapErr.ResultCode)
	}

	return categorizeGenericError(err)
}

// IsNotFoundError checks if an error indicates a "not found" condition.
func IsNotFoundError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryNotFound
}

// IsConflictError checks if an error indicates a conflict (already exists).
func IsConflictError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryConflict
}

// IsAuthenticationError checks if an error indicates an authentication problem.
func IsAuthenticationError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryAuthentication
}

// IsPermissionError checks if an error indicates a permission problem.
func IsPermissionError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryPermission
}
