package ldap

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

var errNotConnected = errors.New("connection has not been established")

var _ Client = (*Connection)(nil)

// Connection holds directory connection state: the host, the exclusively
// owned native handle, the bound flag, and the transport security flags.
// It implements Client. A Connection is created unbound and host-less;
// Connect populates host and handle, a successful Bind flips the bound
// flag, and Close releases the handle and clears the bound flag.
//
// A Connection is not safe for concurrent use; see the package
// documentation.
type Connection struct {
	config *ConnectionConfig
	logger hclog.Logger
	id     string

	host   string
	conn   *ldap.Conn
	bound  bool
	useSSL bool
	useTLS bool

	interceptor *WarningInterceptor
	lastError   error
}

// NewConnection creates an unconnected Connection from the given
// configuration. A nil config gets defaults.
func NewConnection(config *ConnectionConfig) *Connection {
	return NewConnectionWithLogger(config, hclog.Default().Named("ldap"))
}

// NewConnectionWithLogger creates an unconnected Connection using the
// supplied structured logger for ambient diagnostics.
func NewConnectionWithLogger(config *ConnectionConfig, logger hclog.Logger) *Connection {
	if config == nil {
		config = DefaultConfig()
	}

	id := uuid.NewString()

	return &Connection{
		config: config,
		logger: logger.With("connection_id", id),
		id:     id,
		useSSL: config.SSL,
		useTLS: config.TLS,
	}
}

// SSL sets the connect-time encrypted transport flag. Chainable. Must be
// called before Connect; changing the flag on a live connection does not
// alter the established transport and is a caller error.
func (c *Connection) SSL(enabled bool) *Connection {
	c.useSSL = enabled
	return c
}

// TLS sets the post-connect StartTLS upgrade flag. Chainable. Must be
// called before Connect; changing the flag on a live connection does not
// alter the established transport and is a caller error.
func (c *Connection) TLS(enabled bool) *Connection {
	c.useTLS = enabled
	return c
}

// IsUsingSSL reports whether the connect-time encrypted scheme is enabled.
func (c *Connection) IsUsingSSL() bool {
	return c.useSSL
}

// IsUsingTLS reports whether the StartTLS upgrade is enabled.
func (c *Connection) IsUsingTLS() bool {
	return c.useTLS
}

// IsBound reports whether a bind has succeeded on this connection.
func (c *Connection) IsBound() bool {
	return c.bound
}

// Host returns the host of the last successful connect, or "" before one.
func (c *Connection) Host() string {
	return c.host
}

// Conn exposes the native handle for collaborators that need primitives
// this layer does not wrap. The handle remains exclusively owned by the
// Connection.
func (c *Connection) Conn() *ldap.Conn {
	return c.conn
}

// CanChangePasswords reports whether password-modify operations are
// permitted. Directory servers refuse password changes over plaintext, so
// this requires one of the secure transports. This is a policy gate, not a
// protocol check; callers are expected to consult it first.
func (c *Connection) CanChangePasswords() bool {
	return c.IsUsingSSL() || c.IsUsingTLS()
}

// Protocol returns the URI scheme for the connect-time transport: the
// secure scheme when SSL is enabled, the plain scheme otherwise. StartTLS
// is a post-connect upgrade and does not change the scheme.
func (c *Connection) Protocol() string {
	if c.IsUsingSSL() {
		return ProtocolSSL
	}
	return ProtocolPlain
}

// SupportsServerControlsInMethods reports whether server-side controls can
// be passed inline with an operation call. The native client attaches
// controls to every request struct, so this is always available here;
// callers branch on the query rather than assuming it.
func (c *Connection) SupportsServerControlsInMethods() bool {
	return true
}

// effectivePort substitutes the default secure port when SSL is enabled
// and the caller passed the default plaintext port.
func (c *Connection) effectivePort(port string) string {
	if c.IsUsingSSL() && port == DefaultPort {
		return DefaultSSLPort
	}
	return port
}

// ConnectionString builds the native client's multi-host address-list
// argument: one "{scheme}{host}:{port}" entry per host, input order
// preserved, joined with a single space. When SSL is enabled the secure
// scheme is used and the default plaintext port is substituted with the
// default secure port. Hosts are not validated here; malformed hosts are
// passed through for the native layer to reject.
func (c *Connection) ConnectionString(hosts []string, protocol, port string) string {
	if c.IsUsingSSL() {
		protocol = ProtocolSSL
	}
	port = c.effectivePort(port)

	uris := make([]string, len(hosts))
	for i, host := range hosts {
		uris[i] = fmt.Sprintf("%s%s:%s", protocol, host, port)
	}

	return strings.Join(uris, " ")
}

// Connect establishes the transport. Servers are taken from the
// configuration, or discovered via DNS SRV when only a domain is
// configured; discovered servers carry their advertised port and scheme.
// Each retry round walks the servers in order; per-server dial failures
// are emitted as warnings, and rounds are separated by exponential
// backoff. On success the Connection owns the native handle and records
// the connected host; the bound flag is left cleared.
func (c *Connection) Connect(ctx context.Context) error {
	if err := validateConfig(c.config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	servers, err := c.resolveServers(ctx)
	if err != nil {
		return err
	}

	urls := make([]string, len(servers))
	for i, server := range servers {
		urls[i] = ServerInfoToURL(server)
	}

	return LogOperation(c.logger, "connect", map[string]any{
		"servers": urls,
		"use_ssl": c.useSSL,
		"use_tls": c.useTLS,
	}, func() error {
		conn, host, err := c.dialFirstAvailable(ctx, servers)
		if err != nil {
			return err
		}

		if c.conn != nil {
			// Replacing an existing transport; release the old handle.
			_ = c.conn.Close()
		}

		c.conn = conn
		c.host = host
		c.bound = false
		return nil
	})
}

// resolveServers returns the configured servers, falling back to SRV
// discovery for the configured domain. A configured host may be a bare
// name, which takes the Connection's transport settings, or a full
// ldap:///ldaps:// URL, which carries its own scheme and port.
func (c *Connection) resolveServers(ctx context.Context) ([]*ServerInfo, error) {
	if len(c.config.Hosts) > 0 {
		servers := make([]*ServerInfo, 0, len(c.config.Hosts))
		for _, host := range c.config.Hosts {
			if strings.Contains(host, "://") {
				server, err := ParseLDAPURL(host)
				if err != nil {
					return nil, fmt.Errorf("invalid host %q: %w", host, err)
				}
				servers = append(servers, server)
				continue
			}

			port, err := strconv.Atoi(c.effectivePort(c.config.Port))
			if err != nil {
				return nil, fmt.Errorf("invalid port %q: %w", c.config.Port, err)
			}
			servers = append(servers, &ServerInfo{
				Host:   host,
				Port:   port,
				UseSSL: c.useSSL,
				Weight: 100,
				Source: "config",
			})
		}
		return servers, nil
	}

	if c.config.Domain == "" {
		return nil, errors.New("either hosts or a domain must be configured")
	}

	discovery := NewHostDiscovery(c.logger)
	servers, err := discovery.DiscoverServers(ctx, c.config.Domain)
	if err != nil {
		return nil, fmt.Errorf("host discovery failed: %w", err)
	}
	return servers, nil
}

// dialFirstAvailable walks the server list in order on each retry round
// and returns the first transport it can establish.
func (c *Connection) dialFirstAvailable(ctx context.Context, servers []*ServerInfo) (*ldap.Conn, string, error) {
	var lastErr error
	backoff := c.config.InitialBackoff

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		for _, server := range servers {
			conn, err := c.dialServer(server)
			if err != nil {
				lastErr = err
				c.EmitWarning(SeverityWarning, fmt.Sprintf("failed to connect to %s: %s", ServerInfoToURL(server), err))
				continue
			}
			return conn, server.Host, nil
		}

		if attempt == c.config.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return nil, "", NewConnectionError("connection attempt canceled", false, ctx.Err())
		case <-time.After(backoff):
			backoff = min(time.Duration(float64(backoff)*c.config.BackoffFactor), c.config.MaxBackoff)
		}
	}

	return nil, "", NewConnectionError("failed to connect to any configured host", true, lastErr)
}

// dialServer establishes the transport to one server at its advertised
// scheme and port, applying the StartTLS upgrade on plaintext transports
// when configured.
func (c *Connection) dialServer(server *ServerInfo) (*ldap.Conn, error) {
	url := ServerInfoToURL(server)

	var conn *ldap.Conn
	var err error

	if server.UseSSL {
		conn, err = ldap.DialURL(url, ldap.DialWithTLSConfig(c.config.TLSConfig))
	} else {
		conn, err = ldap.DialURL(url)
		if err == nil && c.useTLS {
			if tlsErr := conn.StartTLS(c.config.TLSConfig); tlsErr != nil {
				conn.Close()
				return nil, fmt.Errorf("starttls upgrade failed: %w", tlsErr)
			}
		}
	}

	if err != nil {
		return nil, err
	}

	conn.SetTimeout(c.config.Timeout)
	return conn, nil
}

// Reconnect tears down the current transport and establishes a fresh one.
// The bound flag is cleared; callers must bind again.
func (c *Connection) Reconnect(ctx context.Context) error {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.bound = false

	return c.Connect(ctx)
}

// Close releases the native handle and clears the bound flag. Safe to call
// on an unconnected Connection.
func (c *Connection) Close() error {
	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	c.bound = false
	return err
}

// Bind authenticates against the directory. An empty password performs an
// unauthenticated bind. The bound flag is set only on success and is not
// touched by a failed bind.
func (c *Connection) Bind(username, password string) error {
	if c.conn == nil {
		return errNotConnected
	}

	err := runFailableOperation(c, "bind", func() error {
		if password == "" {
			return c.conn.UnauthenticatedBind(username)
		}
		return c.conn.Bind(username, password)
	})

	if err == nil {
		c.bound = true
	}
	return err
}

// BindAnonymously performs an anonymous bind.
func (c *Connection) BindAnonymously() error {
	return c.Bind("", "")
}

// Unbind sends the protocol-level unbind request. The native client
// closes the transport as part of unbind, so the handle is released and
// the Connection returns to the unconnected state regardless of the
// outcome.
func (c *Connection) Unbind() error {
	if c.conn == nil {
		return errNotConnected
	}

	err := runFailableOperation(c, "unbind", func() error {
		return c.conn.Unbind()
	})

	c.conn = nil
	c.bound = false
	return err
}

// StartTLS upgrades the live plaintext transport.
func (c *Connection) StartTLS() error {
	if c.conn == nil {
		return errNotConnected
	}

	return runFailableOperation(c, "starttls", func() error {
		return c.conn.StartTLS(c.config.TLSConfig)
	})
}

// Search queries the whole subtree under the request's base DN. A failure
// from the native client is mapped to an empty result when it is one of
// the recognized benign conditions.
func (c *Connection) Search(req *SearchRequest) (*ldap.SearchResult, error) {
	return c.search("search", ldap.ScopeWholeSubtree, req)
}

// Read queries the base object itself.
func (c *Connection) Read(req *SearchRequest) (*ldap.SearchResult, error) {
	return c.search("read", ldap.ScopeBaseObject, req)
}

// Listing queries the immediate children of the base DN.
func (c *Connection) Listing(req *SearchRequest) (*ldap.SearchResult, error) {
	return c.search("listing", ldap.ScopeSingleLevel, req)
}

func (c *Connection) search(operation string, scope int, req *SearchRequest) (*ldap.SearchResult, error) {
	if req == nil {
		return nil, fmt.Errorf("%s request cannot be nil", operation)
	}

	filter := req.Filter
	if filter == "" {
		filter = "(objectClass=*)"
	}

	if c.conn == nil {
		return nil, errNotConnected
	}

	result, err := ExecuteFailableOperation(c, operation, func() (*ldap.SearchResult, error) {
		ldapReq := ldap.NewSearchRequest(
			req.BaseDN,
			scope,
			ldap.NeverDerefAliases,
			req.SizeLimit,
			int(req.TimeLimit.Seconds()),
			false, // TypesOnly
			filter,
			req.Attributes,
			req.Controls,
		)

		return c.conn.Search(ldapReq)
	})
	if err != nil {
		return nil, err
	}

	if result == nil {
		// Bypassed failure with no partial results: empty-result semantics.
		result = &ldap.SearchResult{}
	}
	return result, nil
}

// Add creates a new directory entry.
func (c *Connection) Add(req *AddRequest) error {
	if req == nil {
		return errors.New("add request cannot be nil")
	}

	if c.conn == nil {
		return errNotConnected
	}

	return runFailableOperation(c, "add", func() error {
		ldapReq := ldap.NewAddRequest(req.DN, nil)
		for attr, values := range req.Attributes {
			ldapReq.Attribute(attr, values)
		}

		return c.conn.Add(ldapReq)
	})
}

// Modify alters attributes of an existing directory entry.
func (c *Connection) Modify(req *ModifyRequest) error {
	if req == nil {
		return errors.New("modify request cannot be nil")
	}

	if c.conn == nil {
		return errNotConnected
	}

	return runFailableOperation(c, "modify", func() error {
		ldapReq := ldap.NewModifyRequest(req.DN, nil)
		for attr, values := range req.AddAttributes {
			ldapReq.Add(attr, values)
		}
		for attr, values := range req.ReplaceAttributes {
			ldapReq.Replace(attr, values)
		}
		for _, attr := range req.DeleteAttributes {
			ldapReq.Delete(attr, []string{})
		}

		return c.conn.Modify(ldapReq)
	})
}

// ModifyDN renames or moves a directory entry.
func (c *Connection) ModifyDN(req *ModifyDNRequest) error {
	if req == nil {
		return errors.New("modify DN request cannot be nil")
	}
	if req.DN == "" {
		return errors.New("DN cannot be empty")
	}
	if req.NewRDN == "" {
		return errors.New("new RDN cannot be empty")
	}

	if c.conn == nil {
		return errNotConnected
	}

	return runFailableOperation(c, "rename", func() error {
		ldapReq := ldap.NewModifyDNRequest(req.DN, req.NewRDN, req.DeleteOldRDN, req.NewSuperior)
		return c.conn.ModifyDN(ldapReq)
	})
}

// Delete removes a directory entry.
func (c *Connection) Delete(dn string) error {
	if dn == "" {
		return errors.New("DN cannot be empty")
	}

	if c.conn == nil {
		return errNotConnected
	}

	return runFailableOperation(c, "delete", func() error {
		return c.conn.Del(ldap.NewDelRequest(dn, nil))
	})
}

// rememberError records the last native failure for GetDetailedError and
// logs its native diagnostic detail.
func (c *Connection) rememberError(operation string, err error) {
	c.lastError = err
	LogNativeError(c.logger, operation, err, nil)
}

// GetDetailedError returns the native diagnostic information for the last
// failed native call, or nil when none has failed.
func (c *Connection) GetDetailedError() *DetailedError {
	return NewDetailedError(c.lastError)
}
