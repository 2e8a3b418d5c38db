package ldap

import (
	"errors"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/go-hclog"
)

// LogOperation runs fn and logs its start, outcome, and duration.
func LogOperation(logger hclog.Logger, operation string, fields map[string]any, fn func() error) error {
	start := time.Now()

	args := fieldArgs(fields)
	args = append(args, "operation", operation)

	logger.Debug("starting operation", args...)

	err := fn()

	args = append(args, "duration_ms", time.Since(start).Milliseconds())

	if err != nil {
		args = append(args, "error", err.Error())
		logger.Error("operation failed", args...)
	} else {
		logger.Debug("operation completed", args...)
	}

	return err
}

// LogNativeError logs a failed native call with LDAP-specific detail.
func LogNativeError(logger hclog.Logger, operation string, err error, fields map[string]any) {
	args := fieldArgs(fields)
	args = append(args, "operation", operation, "error", err.Error())

	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		args = append(args, "ldap_result_code", ldapErr.ResultCode)
		if ldapErr.MatchedDN != "" {
			args = append(args, "ldap_matched_dn", ldapErr.MatchedDN)
		}
		if ldapErr.Err != nil {
			args = append(args, "ldap_diagnostic_message", ldapErr.Err.Error())
		}
	}

	logger.Error("native operation failed", args...)
}

// fieldArgs flattens a field map into hclog's alternating key/value form,
// redacting values under sensitive keys.
func fieldArgs(fields map[string]any) []any {
	args := make([]any, 0, 2*len(fields)+8)
	for key, value := range SanitizeFields(fields) {
		args = append(args, key, value)
	}
	return args
}

// SanitizeFields removes sensitive information from log fields.
func SanitizeFields(fields map[string]any) map[string]any {
	sanitized := make(map[string]any, len(fields))

	sensitiveKeys := map[string]bool{
		"password":    true,
		"passwd":      true,
		"secret":      true,
		"token":       true,
		"key":         true,
		"credential":  true,
		"credentials": true,
	}

	for k, v := range fields {
		if sensitiveKeys[k] {
			sanitized[k] = "[REDACTED]"
			continue
		}
		if str, ok := v.(string); ok && containsSensitivePattern(str) {
			sanitized[k] = "[REDACTED]"
			continue
		}
		sanitized[k] = v
	}

	return sanitized
}

// containsSensitivePattern checks if a string embeds a credential
// assignment that should not reach the logs.
func containsSensitivePattern(s string) bool {
	patterns := []string{
		"password=",
		"passwd=",
		"secret=",
		"token=",
	}

	lower := strings.ToLower(s)
	for _, pattern := range patterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}

	return false
}
