package devtools

import "fmt"

// ConnectionError is the single failure kind Connect produces: the dial,
// DNS resolution or websocket handshake did not succeed. The client does
// not retry; the embedding application decides whether to call Connect
// again.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("devtools connection to %s failed: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
