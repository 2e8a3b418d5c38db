package ldap

import (
	"errors"
	"testing"

	"github.com/go-ldap/ldap/v3"
)

func TestNewOperationError(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		cause     error
		warning   *CapturedWarning
		wantNil   bool
	}{
		{
			name:      "nil cause and warning",
			operation: "search",
			wantNil:   true,
		},
		{
			name:      "ldap error",
			operation: "bind",
			cause:     ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("bad password")),
		},
		{
			name:      "generic error",
			operation: "connect",
			cause:     errors.New("connection refused"),
		},
		{
			name:      "warning only",
			operation: "bind",
			warning:   &CapturedWarning{Message: "unable to bind", Severity: SeverityWarning},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewOperationError(tt.operation, tt.cause, tt.warning)

			if tt.wantNil {
				if result != nil {
					t.Errorf("NewOperationError() = %v, want nil", result)
				}
				return
			}

			if result == nil {
				t.Fatal("NewOperationError() = nil, want non-nil")
			}

			if result.Operation != tt.operation {
				t.Errorf("Operation = %s, want %s", result.Operation, tt.operation)
			}

			if !errors.Is(result, tt.cause) && tt.cause != nil {
				t.Errorf("expected %v to unwrap to cause", result)
			}

			if result.Warning != tt.warning {
				t.Errorf("Warning = %v, want %v", result.Warning, tt.warning)
			}
		})
	}
}

func TestOperationError_Error(t *testing.T) {
	tests := []struct {
		name  string
		opErr *OperationError
		want  string
	}{
		{
			name: "basic error",
			opErr: &OperationError{
				Operation: "search",
				Message:   "operation failed",
			},
			want: "ldap operation [search] failed - operation failed",
		},
		{
			name: "error with code",
			opErr: &OperationError{
				Operation: "bind",
				Code:      ldap.LDAPResultInvalidCredentials,
				Message:   "authentication failed",
			},
			want: "ldap operation [bind] failed (code 49) - authentication failed",
		},
		{
			name: "error with diagnostic",
			opErr: &OperationError{
				Operation: "add",
				Message:   "validation failed",
				Detailed:  &DetailedError{Diagnostic: "attribute required"},
			},
			want: "ldap operation [add] failed - validation failed - diagnostic: attribute required",
		},
		{
			name: "error with warning context",
			opErr: &OperationError{
				Operation: "modify",
				Message:   "access denied",
				Warning:   &CapturedWarning{Message: "unable to modify"},
			},
			want: "ldap operation [modify] failed - access denied - warning: unable to modify",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opErr.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCategorizeResultCode(t *testing.T) {
	tests := []struct {
		name string
		code uint16
		want ErrorCategory
	}{
		{"invalid credentials", ldap.LDAPResultInvalidCredentials, ErrorCategoryAuthentication},
		{"insufficient access", ldap.LDAPResultInsufficientAccessRights, ErrorCategoryPermission},
		{"no such object", ldap.LDAPResultNoSuchObject, ErrorCategoryNotFound},
		{"entry already exists", ldap.LDAPResultEntryAlreadyExists, ErrorCategoryConflict},
		{"constraint violation", ldap.LDAPResultConstraintViolation, ErrorCategoryValidation},
		{"server busy", ldap.LDAPResultBusy, ErrorCategoryServer},
		{"protocol error", ldap.LDAPResultProtocolError, ErrorCategoryConnection},
		{"unknown code", 9999, ErrorCategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := categorizeResultCode(tt.code); got != tt.want {
				t.Errorf("categorizeResultCode(%d) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"server busy", NewOperationError("search", ldap.NewError(ldap.LDAPResultBusy, errors.New("busy")), nil), true},
		{"invalid credentials", NewOperationError("bind", ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("denied")), nil), false},
		{"retryable connection error", NewConnectionError("dial failed", true, nil), true},
		{"non-retryable connection error", NewConnectionError("bad config", false, nil), false},
		{"generic timeout", errors.New("i/o timeout"), true},
		{"generic validation", errors.New("invalid filter"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryableError(tt.err); got != tt.want {
				t.Errorf("IsRetryableError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorCategoryHelpers(t *testing.T) {
	notFound := NewOperationError("read", ldap.NewError(ldap.LDAPResultNoSuchObject, errors.New("missing")), nil)
	if !IsNotFoundError(notFound) {
		t.Error("IsNotFoundError() = false for no-such-object error")
	}

	conflict := NewOperationError("add", ldap.NewError(ldap.LDAPResultEntryAlreadyExists, errors.New("duplicate")), nil)
	if !IsConflictError(conflict) {
		t.Error("IsConflictError() = false for already-exists error")
	}

	auth := NewOperationError("bind", ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("denied")), nil)
	if !IsAuthenticationError(auth) {
		t.Error("IsAuthenticationError() = false for invalid-credentials error")
	}

	perm := NewOperationError("modify", ldap.NewError(ldap.LDAPResultInsufficientAccessRights, errors.New("denied")), nil)
	if !IsPermissionError(perm) {
		t.Error("IsPermissionError() = false for insufficient-access error")
	}

	// Raw native errors are classified too, even though they should not
	// normally escape this layer.
	if !IsNotFoundError(ldap.NewError(ldap.LDAPResultNoSuchObject, errors.New("missing"))) {
		t.Error("IsNotFoundError() = false for raw native error")
	}
}

func TestOperationError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	opErr := NewOperationError("delete", cause, nil)

	if !errors.Is(opErr, cause) {
		t.Error("expected errors.Is to reach the underlying cause")
	}
}
