package contextkeys

// contextKey is an unexported type to prevent collisions with context keys defined in
// other packages.
type contextKey string

// String makes contextKey satisfy the Stringer interface to assist with debugging.
func (c contextKey) String() string {
	return "rtdb-bridge context key " + string(c)
}

const (
	// RequestIDKey carries the id assigned to one inbound request or CLI invocation.
	RequestIDKey = contextKey("requestID")

	// PathKey carries the normalized hierarchical path an operation targets.
	PathKey = contextKey("path")

	// OperationKey names the adapter operation, such as "once", "set" or "watch".
	OperationKey = contextKey("operation")
)
