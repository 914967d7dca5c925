package network

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/perawallet/pera-wallet-sub002/pkg/txerr"
)

// The algod client reports non-2xx responses as "HTTP <code>: <body>".
var httpErrorRe = regexp.MustCompile(`(?s)^HTTP (\d{3}): (.*)$`)

var offlineHints = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"network is unreachable",
	"i/o timeout",
	"EOF",
}

// Classify wraps err from the node client as a *txerr.NetworkError:
// transport failures are offline, everything else is an API failure
// carrying the server's message when one is present.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var already *txerr.NetworkError
	if errors.As(err, &already) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	if m := httpErrorRe.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return &txerr.NetworkError{
			Offline: false,
			Message: serverMessage(m[2]),
			Err:     &StatusError{Code: code, Body: m[2]},
		}
	}

	if isOffline(err) {
		return &txerr.NetworkError{Offline: true, Err: err}
	}
	return &txerr.NetworkError{Message: err.Error(), Err: err}
}

// StatusError is a non-2xx response from the node.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return "HTTP " + strconv.Itoa(e.Code) + ": " + e.Body
}

// Retryable reports whether a request may succeed if repeated: offline
// failures, rate limiting and server errors.
func Retryable(err error) bool {
	var netErr *txerr.NetworkError
	if !errors.As(err, &netErr) {
		return false
	}
	if netErr.Offline {
		return true
	}
	var status *StatusError
	if errors.As(netErr.Err, &status) {
		return status.Code == 429 || status.Code >= 500
	}
	return false
}

func isOffline(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	msg := err.Error()
	for _, hint := range offlineHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

// serverMessage extracts "message" from a JSON error body.
func serverMessage(body string) string {
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}
	return strings.TrimSpace(body)
}
