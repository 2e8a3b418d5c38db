package ldap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-ldap/ldap/v3"
)

// URI schemes and default ports for the two connect-time transports.
const (
	ProtocolPlain = "ldap://"
	ProtocolSSL   = "ldaps://"

	DefaultPort    = "389"
	DefaultSSLPort = "636"
)

// ConnectionConfig holds configuration for a directory connection.
type ConnectionConfig struct {
	// Connection settings
	Hosts   []string      // Directory server hosts, tried in order
	Domain  string        // Domain for SRV discovery when Hosts is empty
	Port    string        `default:"389"` // Server port
	Timeout time.Duration `default:"5s"`  // Network timeout on the native handle

	// Transport security
	SSL       bool        // Connect-time encrypted scheme (ldaps://)
	TLS       bool        // Post-connect StartTLS upgrade
	TLSConfig *tls.Config // TLS configuration for either transport

	// Retry settings for Connect
	MaxRetries     int           `default:"3"`     // Maximum retry rounds over all hosts
	InitialBackoff time.Duration `default:"500ms"` // Initial backoff duration
	MaxBackoff     time.Duration `default:"30s"`   // Maximum backoff duration
	BackoffFactor  float64       `default:"2.0"`   // Backoff multiplication factor
}

// DefaultConfig returns a configuration with defaults applied.
func DefaultConfig() *ConnectionConfig {
	config := &ConnectionConfig{}
	if err := defaults.Set(config); err != nil {
		// Tags are static; a failure here is a programming error.
		panic(fmt.Sprintf("ldap: applying config defaults: %v", err))
	}
	config.TLSConfig = &tls.Config{
		MinVersion: tls.VersionTLS12,
	}
	return config
}

// validateConfig validates the connection configuration.
func validateConfig(config *ConnectionConfig) error {
	if config.Port == "" {
		return errors.New("port cannot be empty")
	}

	if config.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}

	if config.MaxRetries < 0 {
		return errors.New("MaxRetries cannot be negative")
	}

	if config.BackoffFactor <= 1.0 {
		return errors.New("BackoffFactor must be greater than 1.0")
	}

	return nil
}

// Client is the operation surface the entity/query layer consumes. A
// Connection is the standard implementation; alternate implementations
// differ only in which native calls they invoke.
type Client interface {
	// Connection management
	Connect(ctx context.Context) error
	Reconnect(ctx context.Context) error
	Close() error

	// Authentication
	Bind(username, password string) error
	Unbind() error

	// Read-style operations
	Search(req *SearchRequest) (*ldap.SearchResult, error)
	Read(req *SearchRequest) (*ldap.SearchResult, error)
	Listing(req *SearchRequest) (*ldap.SearchResult, error)

	// Write-style operations
	Add(req *AddRequest) error
	Modify(req *ModifyRequest) error
	ModifyDN(req *ModifyDNRequest) error
	Delete(dn string) error

	// Diagnostics
	GetDetailedError() *DetailedError
}

// SearchRequest encapsulates directory search parameters. The scope is
// implied by the operation it is passed to: Search covers the whole
// subtree, Read the base object, Listing a single level.
type SearchRequest struct {
	BaseDN     string
	Filter     string
	Attributes []string
	SizeLimit  int
	TimeLimit  time.Duration
	Controls   []ldap.Control
}

// AddRequest encapsulates directory add parameters.
type AddRequest struct {
	DN         string
	Attributes map[string][]string
}

// ModifyRequest encapsulates directory modify parameters.
type ModifyRequest struct {
	DN                string
	AddAttributes     map[string][]string
	ReplaceAttributes map[string][]string
	DeleteAttributes  []string
}

// ModifyDNRequest encapsulates directory rename/move parameters.
type ModifyDNRequest struct {
	DN           string
	NewRDN       string
	DeleteOldRDN bool
	NewSuperior  string
}

// DetailedError carries the native client's diagnostic information for the
// last failed operation.
type DetailedError struct {
	Code       uint16 // LDAP result code
	Message    string // Human-readable result code message
	Diagnostic string // Server-provided diagnostic message
	MatchedDN  string // Matched DN reported by the server, if any
}

func (e *DetailedError) String() string {
	if e.MatchedDN != "" {
		return fmt.Sprintf("%s (code %d, matched DN %q): %s", e.Message, e.Code, e.MatchedDN, e.Diagnostic)
	}
	return fmt.Sprintf("%s (code %d): %s", e.Message, e.Code, e.Diagnostic)
}

// NewDetailedError extracts diagnostic information from a native client
// error. Returns nil for nil errors; non-LDAP errors yield a DetailedError
// with only the message populated.
func NewDetailedError(err error) *DetailedError {
	if err == nil {
		return nil
	}

	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		detailed := &DetailedError{
			Code:      ldapErr.ResultCode,
			Message:   ldap.LDAPResultCodeMap[ldapErr.ResultCode],
			MatchedDN: ldapErr.MatchedDN,
		}
		if ldapErr.Err != nil {
			detailed.Diagnostic = ldapErr.Err.Error()
		}
		return detailed
	}

	return &DetailedError{Message: err.Error()}
}

// RetryableError indicates an error that can be retried.
type RetryableError interface {
	error
	IsRetryable() bool
}

// ConnectionError represents connection-establishment errors.
type ConnectionError struct {
	message   string
	retryable bool
	cause     error
}

func (e *ConnectionError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *ConnectionError) IsRetryable() bool {
	return e.retryable
}

func (e *ConnectionError) Unwrap() error {
	return e.cause
}

// NewConnectionError creates a new connection error.
func NewConnectionError(message string, retryable bool, cause error) *ConnectionError {
	return &ConnectionError{
		message:   message,
		retryable: retryable,
		cause:     cause,
	}
}
