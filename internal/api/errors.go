package api

import "fmt"

// TransportError wraps network-level failures: connection refused, DNS,
// timeouts. Recoverable from the caller's point of view; the client itself
// never retries.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RemoteError is a non-2xx response outside the statuses the scan state
// machine handles. Fatal for the invocation; Body carries an excerpt for the
// user-facing message.
type RemoteError struct {
	Stage  string
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: server returned status %d", e.Stage, e.Status)
	}
	return fmt.Sprintf("%s: server returned status %d: %s", e.Stage, e.Status, e.Body)
}

// AuthorizationError means the service will not run scans until the account
// is funded. CheckoutURL is where that happens.
type AuthorizationError struct {
	CheckoutURL string
}

func (e *AuthorizationError) Error() string {
	if e.CheckoutURL == "" {
		return "payment required"
	}
	return "payment required, complete checkout at " + e.CheckoutURL
}
