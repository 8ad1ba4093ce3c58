package core

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"

	"python-buildpack/internal/types"
)

// transientOutputMarkers appear in pip, Poetry and uv output when the
// package index or the network misbehaved rather than the project.
var transientOutputMarkers = []string{
	"temporary failure in name resolution",
	"name or service not known",
	"could not resolve host",
	"dns error",
	"failed to lookup address",
	"connection reset by peer",
	"connection refused",
	"connectionreseterror",
	"connection aborted",
	"remotedisconnected",
	"newconnectionerror",
	"readtimeouterror",
	"read timed out",
	"operation timed out",
	"timed out",
	"incompleteread",
	"500 internal server error",
	"502 bad gateway",
	"503 service unavailable",
	"504 gateway timeout",
	"429 too many requests",
	"http error 5",
	"status code 5",
	"too many 500 error responses",
	"too many 502 error responses",
	"too many 503 error responses",
	"retryerror",
}

// ClassifyCommandFailure decides whether a failed manager run is worth
// repeating. Every input maps to exactly one class; unknown failures are
// fatal.
func ClassifyCommandFailure(result types.CommandResult, err error) types.FailureClass {
	if err == nil {
		return types.FailureFatal
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return types.FailureFatal
	}
	output := strings.ToLower(result.StderrTail + "\n" + result.Stdout)
	for _, marker := range transientOutputMarkers {
		if strings.Contains(output, marker) {
			return types.FailureRetryable
		}
	}
	return types.FailureFatal
}

// ClassifyHTTPStatus treats server errors and throttling as transient.
// A 404 is fatal: the artifact does not exist.
func ClassifyHTTPStatus(status int) types.FailureClass {
	if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout {
		return types.FailureRetryable
	}
	return types.FailureFatal
}

// ClassifyTransportError treats DNS, connection and timeout failures as
// transient. Cancellation by the caller is always fatal.
func ClassifyTransportError(err error) types.FailureClass {
	if err == nil {
		return types.FailureFatal
	}
	if errors.Is(err, context.Canceled) {
		return types.FailureFatal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.FailureRetryable
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return types.FailureRetryable
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return types.FailureRetryable
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return types.FailureRetryable
	}
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "unexpected eof") || strings.Contains(lower, "connection reset") {
		return types.FailureRetryable
	}
	return types.FailureFatal
}
