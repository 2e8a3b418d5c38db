package ldap

// WarningSeverity classifies emitted warnings.
type WarningSeverity string

const (
	SeverityNotice  WarningSeverity = "notice"
	SeverityWarning WarningSeverity = "warning"
)

// CapturedWarning holds a warning intercepted while an operation executed.
type CapturedWarning struct {
	Message   string
	Severity  WarningSeverity
	Operation string // The operation that was executing when the warning fired
}

// WarningInterceptor redirects a Connection's warnings into a capture slot
// for the duration of one operation. It is returned armed and must be
// disarmed via Disarm, which restores the previously installed interceptor
// (or the default logging behavior). Disarm is idempotent and must run on
// every exit path.
type WarningInterceptor struct {
	conn      *Connection
	prev      *WarningInterceptor
	operation string
	captured  *CapturedWarning
	disarmed  bool
}

// observe routes one emitted warning. Recognized-benign messages are
// suppressed entirely; everything else is captured. Only the first
// non-benign warning is retained, matching the native facility's behavior
// of failing on the first uncontrolled diagnostic.
func (w *WarningInterceptor) observe(severity WarningSeverity, message string) {
	if ShouldBypassError(message) {
		return
	}
	if w.captured == nil {
		w.captured = &CapturedWarning{
			Message:   message,
			Severity:  severity,
			Operation: w.operation,
		}
	}
}

// Captured returns the warning captured so far, or nil.
func (w *WarningInterceptor) Captured() *CapturedWarning {
	return w.captured
}

// Disarm restores the Connection's prior warning behavior.
func (w *WarningInterceptor) Disarm() {
	if w.disarmed {
		return
	}
	w.disarmed = true
	w.conn.interceptor = w.prev
}

// armWarningInterceptor installs a scoped interceptor for one operation.
func (c *Connection) armWarningInterceptor(operation string) *WarningInterceptor {
	interceptor := &WarningInterceptor{
		conn:      c,
		prev:      c.interceptor,
		operation: operation,
	}
	c.interceptor = interceptor
	return interceptor
}

// EmitWarning reports a non-fatal diagnostic. While an operation is
// executing the armed interceptor captures or suppresses it; otherwise it
// goes to the structured logger, the ambient behavior.
func (c *Connection) EmitWarning(severity WarningSeverity, message string) {
	if c.interceptor != nil {
		c.interceptor.observe(severity, message)
		return
	}
	c.logger.Warn("directory warning", "severity", string(severity), "message", message)
}

// ExecuteFailableOperation wraps a single directory operation and converts
// the native client's failure signaling into a single typed outcome:
//
//   - A nil error from fn is a success, even if a benign warning occurred.
//   - A failure whose result code or diagnostic marks a known-benign
//     condition is mapped to a success carrying fn's (possibly partial)
//     result.
//   - A warning captured during execution turns the outcome into a failure
//     carrying the warning context.
//   - A failure from a read-style operation (see ShouldBypassFailure) is
//     mapped to a success with empty-result semantics.
//   - Anything else becomes an *OperationError naming the operation.
//
// The warning interceptor armed for the call is disarmed on every exit
// path, including panics.
func ExecuteFailableOperation[T any](c *Connection, operation string, fn func() (T, error)) (T, error) {
	interceptor := c.armWarningInterceptor(operation)
	defer interceptor.Disarm()

	result, err := fn()
	if err == nil {
		if warning := interceptor.Captured(); warning != nil {
			var zero T
			return zero, NewOperationError(operation, nil, warning)
		}
		return result, nil
	}

	c.rememberError(operation, err)

	if ClassifyBypassError(err) != BypassNone {
		return result, nil
	}

	if warning := interceptor.Captured(); warning != nil {
		var zero T
		return zero, NewOperationError(operation, err, warning)
	}

	if ShouldBypassFailure(operation) {
		return result, nil
	}

	var zero T
	return zero, NewOperationError(operation, err, nil)
}

// runFailableOperation adapts result-less native calls to the executor.
func runFailableOperation(c *Connection, operation string, fn func() error) error {
	_, err := ExecuteFailableOperation(c, operation, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
