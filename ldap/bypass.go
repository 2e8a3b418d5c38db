package ldap

import (
	"errors"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// BypassReason identifies why a failing condition is treated as benign.
type BypassReason int

const (
	BypassNone BypassReason = iota
	BypassPaginationArtifact
	BypassSizeLimitExceeded
	BypassNoSuchObject
)

// String returns string representation of a bypass reason.
func (r BypassReason) String() string {
	switch r {
	case BypassPaginationArtifact:
		return "pagination_artifact"
	case BypassSizeLimitExceeded:
		return "size_limit_exceeded"
	case BypassNoSuchObject:
		return "no_such_object"
	default:
		return "none"
	}
}

// bypassPatterns is the table of known-benign diagnostic phrasings.
// Matching is case-insensitive substring and therefore tied to the
// diagnostic wording; extend this table rather than scattering string
// checks, and do not add or remove entries without justification.
var bypassPatterns = []struct {
	substring string
	reason    BypassReason
}{
	{"no server controls in methods", BypassPaginationArtifact},
	{"partial search results returned", BypassSizeLimitExceeded},
	{"no such object", BypassNoSuchObject},
}

// bypassResultCodes maps native result codes onto the same benign
// conditions the diagnostic patterns describe. The native client reports
// these structurally, so code matching takes precedence over text
// matching. The pagination artifact has no result code; it only ever
// surfaces as diagnostic text.
var bypassResultCodes = map[uint16]BypassReason{
	ldap.LDAPResultNoSuchObject:      BypassNoSuchObject,
	ldap.LDAPResultSizeLimitExceeded: BypassSizeLimitExceeded,
}

// bypassableOperations are the read-style operations for which a failure
// return is treated as "zero results" rather than an error. The native
// client frequently signals benign empty-result conditions this way.
var bypassableOperations = map[string]bool{
	"search":  true,
	"read":    true,
	"listing": true,
}

// ClassifyBypass matches a diagnostic message against the known-benign
// patterns and returns the reason, or BypassNone when the message does not
// match any of them. Matching ignores case.
func ClassifyBypass(message string) BypassReason {
	lower := strings.ToLower(message)
	for _, pattern := range bypassPatterns {
		if strings.Contains(lower, pattern.substring) {
			return pattern.reason
		}
	}
	return BypassNone
}

// ClassifyBypassError classifies a native failure. The structured result
// code is consulted first; failures that carry no recognized code fall
// back to diagnostic-text matching.
func ClassifyBypassError(err error) BypassReason {
	if err == nil {
		return BypassNone
	}

	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		if reason, ok := bypassResultCodes[ldapErr.ResultCode]; ok {
			return reason
		}
	}

	return ClassifyBypass(err.Error())
}

// ShouldBypassError reports whether a diagnostic message describes a
// known-benign condition that must be swallowed rather than surfaced.
func ShouldBypassError(message string) bool {
	return ClassifyBypass(message) != BypassNone
}

// ShouldBypassFailure reports whether a failure return from the named
// operation is treated as an empty result instead of an error.
func ShouldBypassFailure(operation string) bool {
	return bypassableOperations[operation]
}
