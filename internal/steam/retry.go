package steam

import (
	"errors"
	"strings"
)

// RetryClassifier decides whether a logon error is transient and worth a
// backed-off retry. The default matches the upstream library's known
// transient classes; deployments can substitute their own predicate.
type RetryClassifier func(err error) bool

// retryableFragments are the error-message classes the upstream session
// library surfaces for transient network/logon failures. String matching is
// an inherited fragility, which is why the classifier is replaceable.
var retryableFragments = []string{
	"Proxy connection timed out",
	"LogonSessionReplaced",
	"ServiceUnavailable",
	"ConnectFailed",
	"Timeout",
}

// retryableResults are the transient numeric EResult codes
// (TryAnotherCM, PasswordRequiredToKickSession, AccountLoginDeniedThrottle,
// TwoFactorCodeMismatch window).
var retryableResults = map[int]struct{}{
	84: {},
	85: {},
	86: {},
	87: {},
}

// ResultCoder is implemented by driver errors that carry a numeric EResult.
type ResultCoder interface {
	ResultCode() int
}

// ResultError is a convenience error type for drivers that want to surface
// an EResult code alongside a message.
type ResultError struct {
	Code int
	Msg  string
}

func (e *ResultError) Error() string {
	return e.Msg
}

// ResultCode implements ResultCoder.
func (e *ResultError) ResultCode() int {
	return e.Code
}

// DefaultRetryClassifier reports whether err belongs to a known transient
// class, by message fragment or by numeric result code.
func DefaultRetryClassifier(err error) bool {
	if err == nil {
		return false
	}

	var coder ResultCoder
	if errors.As(err, &coder) {
		if _, ok := retryableResults[coder.ResultCode()]; ok {
			return true
		}
	}

	msg := err.Error()
	for _, fragment := range retryableFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
