package platform

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

var (
	// ErrTransient marks failures worth retrying: network errors, timeouts,
	// throttling and server errors.
	ErrTransient = errors.New("transient platform failure")
	// ErrPermanent marks failures that will not succeed on retry.
	ErrPermanent = errors.New("permanent platform failure")
	// ErrCredentialInvalid is a permanent failure the account owner has to fix:
	// an expired or revoked access token, or a revoked permission. errors.Is
	// also matches ErrPermanent.
	ErrCredentialInvalid = errors.New("platform credential invalid")
)

type Class int

const (
	ClassTransient Class = iota
	ClassPermanent
	ClassCredentialInvalid
)

func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassPermanent:
		return "permanent"
	case ClassCredentialInvalid:
		return "credential_invalid"
	}
	return "unknown"
}

// Error is a classified platform failure.
type Error struct {
	Class      Class
	StatusCode int
	Code       int64
	Subcode    int64
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Code != 0:
		return fmt.Sprintf("platform %s error: status %d code %d/%d: %s", e.Class, e.StatusCode, e.Code, e.Subcode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("platform %s error: %v", e.Class, e.Err)
	}
	return fmt.Sprintf("platform %s error: status %d: %s", e.Class, e.StatusCode, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransient:
		return e.Class == ClassTransient
	case ErrPermanent:
		return e.Class == ClassPermanent || e.Class == ClassCredentialInvalid
	case ErrCredentialInvalid:
		return e.Class == ClassCredentialInvalid
	}
	return false
}

// Retryable reports whether err is a transient platform failure.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

// Graph API error codes.
const (
	codeUnknown          = 1
	codeService          = 2
	codeTooManyCalls     = 4
	codePermission       = 10
	codeUserRateLimit    = 17
	codePageRateLimit    = 32
	codeInvalidParameter = 100
	codeAccessToken      = 190
	codeAppRateLimit     = 613
	codeUserUnavailable  = 551
)

// classifyResponse maps a non-2xx Graph API response onto an Error.
func classifyResponse(status int, body []byte) *Error {
	e := &Error{
		StatusCode: status,
		Code:       gjson.GetBytes(body, "error.code").Int(),
		Subcode:    gjson.GetBytes(body, "error.error_subcode").Int(),
		Message:    gjson.GetBytes(body, "error.message").String(),
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	e.Class = classify(status, e.Code)
	return e
}

func classify(status int, code int64) Class {
	switch {
	case code == codeAccessToken:
		return ClassCredentialInvalid
	case code == codePermission || (code >= 200 && code <= 299):
		return ClassCredentialInvalid
	case code == codeTooManyCalls || code == codeUserRateLimit || code == codePageRateLimit || code == codeAppRateLimit:
		return ClassTransient
	case code == codeUnknown || code == codeService:
		return ClassTransient
	case code == codeInvalidParameter || code == codeUserUnavailable:
		return ClassPermanent
	}

	switch {
	case status == http.StatusUnauthorized:
		return ClassCredentialInvalid
	case status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500:
		return ClassTransient
	}
	return ClassPermanent
}
