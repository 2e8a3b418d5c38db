/*
Package ldap provides the connection abstraction layer that sits between
higher-level directory code (query builders, entity layers) and the native
LDAP client facility (github.com/go-ldap/ldap/v3).

The package holds connection state, normalizes how directory operations
report failure, and builds the multi-host connection strings the native
client consumes.

# Architecture Overview

The package is organized into several core components:

  - Connection: state holder for host, native handle ownership, bound
    status, and transport security flags
  - Failable operation executor: wraps a single directory operation and
    converts the native client's inconsistent failure signaling into a
    single typed outcome
  - Bypass classifier: decides whether a failing condition is a genuine
    error or a known, recoverable artifact of directory-protocol semantics
  - Host discovery: DNS SRV based discovery of directory servers

# Failure Normalization

LDAP client facilities historically signal failure inconsistently: some
operations return an error where none is warranted, some emit non-fatal
warnings, and some "failures" (paging-control artifacts, size-limit
truncation, missing objects on lookup) are expected outcomes that callers
must be able to treat as empty results.

ExecuteFailableOperation converts all of this into one model. Recognized
benign conditions are absorbed and mapped to an empty or partial success.
Everything else is translated into an *OperationError carrying the operation
name, the native diagnostic message, and any warning captured during the
call. Raw *ldap.Error values never cross this boundary.

# Warning Interception

While an operation executes, a scoped interceptor is armed on the
Connection. Warnings emitted during the call are captured instead of being
logged, unless the bypass classifier recognizes them as benign, in which
case they are suppressed entirely. The interceptor is disarmed on every
exit path, so a subsequent operation never observes a stale warning.

# Connection Strings

ConnectionString renders the address-list format the native client expects:
one "{scheme}{host}:{port}" entry per host, space joined, with the default
secure port substituted when SSL is in use:

	conn := ldap.NewConnection(ldap.DefaultConfig()).SSL(true)
	conn.ConnectionString([]string{"dc1", "dc2"}, ldap.ProtocolPlain, "389")
	// "ldaps://dc1:636 ldaps://dc2:636"

# Thread Safety

A Connection is not safe for concurrent use: the warning interceptor is
scoped to the Connection, so overlapping calls to ExecuteFailableOperation
on the same Connection would observe each other's captures. Use one
Connection per goroutine, or serialize operations externally.

# Example Usage

	config := ldap.DefaultConfig()
	config.Hosts = []string{"dc1.example.com", "dc2.example.com"}
	config.SSL = true

	conn := ldap.NewConnection(config)
	if err := conn.Connect(ctx); err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Bind("cn=admin,dc=example,dc=com", "secret"); err != nil {
		return err
	}

	result, err := conn.Search(&ldap.SearchRequest{
		BaseDN: "dc=example,dc=com",
		Filter: "(objectClass=person)",
	})
	if err != nil {
		return err
	}
	for _, entry := range result.Entries {
		fmt.Println(entry.DN)
	}
*/
package ldap
