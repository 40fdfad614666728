package archive

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// HTTPError is a non-2xx response from the archive. Only 429, 502 and 503 are
// retryable.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("archive responded %d for %s", e.StatusCode, e.URL)
}

func (e *HTTPError) Retryable() bool {
	switch e.StatusCode {
	case 429, 502, 503:
		return true
	}
	return false
}

// ProtocolError is a response carrying a non-empty top-level errors array.
// Always terminal.
type ProtocolError struct {
	Details []ErrorDetail
}

func (e *ProtocolError) Error() string {
	if len(e.Details) == 0 {
		return "archive error"
	}
	return fmt.Sprintf("archive error: %s", e.Details[0].Message)
}

// DecodeError enriches a block decoding failure with the offending block's
// identity.
type DecodeError struct {
	BlockHeight int64
	BlockHash   string
	Cause       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode block %d (%s): %v", e.BlockHeight, e.BlockHash, e.Cause)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// isRetryable classifies transport-level failures. Connection resets, refused
// connections, broken pipes, DNS failures and timeouts are transient;
// everything else is terminal.
func isRetryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable()
	}
	var protocolErr *ProtocolError
	if errors.As(err, &protocolErr) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	// resets surface as plain *url.Error on some platforms
	if strings.Contains(err.Error(), "connection reset by peer") {
		return true
	}
	return false
}
