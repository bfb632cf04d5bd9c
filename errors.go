package authcore

import (
	"errors"
	"strings"
	"time"
)

// Kind classifies an [Error] for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindPolicy
	KindAuthentication
	KindAuthorization
	KindRateLimited
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindPolicy:
		return "policy"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindRateLimited:
		return "rate_limited"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Code is the stable machine-readable error code.
type Code string

const (
	CodeValidation                   Code = "VALIDATION_ERROR"
	CodeEmailExists                  Code = "EMAIL_EXISTS"
	CodeUsernameExists               Code = "USERNAME_EXISTS"
	CodeWeakPassword                 Code = "WEAK_PASSWORD"
	CodePasswordReuse                Code = "PASSWORD_REUSE"
	CodeInvalidCredentials           Code = "INVALID_CREDENTIALS"
	CodeAccountInactive              Code = "ACCOUNT_INACTIVE"
	CodeEmailNotVerified             Code = "EMAIL_NOT_VERIFIED"
	CodePermissionDenied             Code = "PERMISSION_DENIED"
	CodeRateLimited                  Code = "RATE_LIMITED"
	CodeSessionNotFound              Code = "SESSION_NOT_FOUND"
	CodeInvalidRefreshToken          Code = "INVALID_REFRESH_TOKEN"
	CodeUserNotFound                 Code = "USER_NOT_FOUND"
	CodeInvalidVerificationCode      Code = "INVALID_VERIFICATION_CODE"
	CodeVerificationAttemptsExceeded Code = "VERIFICATION_ATTEMPTS_EXCEEDED"
	CodeEmailAlreadyVerified         Code = "EMAIL_ALREADY_VERIFIED"
	CodeInvalidResetToken            Code = "INVALID_RESET_TOKEN"
	CodeInvalidToken                 Code = "INVALID_TOKEN"
	CodeInternal                     Code = "INTERNAL_ERROR"
)

var (
	ErrValidation                   = errors.New("invalid request")
	ErrEmailExists                  = errors.New("email already registered")
	ErrUsernameExists               = errors.New("username already taken")
	ErrWeakPassword                 = errors.New("password does not meet policy")
	ErrPasswordReuse                = errors.New("new password must be different from current password")
	ErrInvalidCredentials           = errors.New("invalid credentials")
	ErrAccountInactive              = errors.New("account inactive")
	ErrEmailNotVerified             = errors.New("email not verified")
	ErrPermissionDenied             = errors.New("permission denied")
	ErrRateLimited                  = errors.New("rate limited")
	ErrSessionNotFound              = errors.New("session not found")
	ErrInvalidRefreshToken          = errors.New("invalid refresh token")
	ErrUserNotFound                 = errors.New("user not found")
	ErrInvalidVerificationCode      = errors.New("invalid verification code")
	ErrVerificationAttemptsExceeded = errors.New("verification attempts exceeded")
	ErrEmailAlreadyVerified         = errors.New("email already verified")
	ErrInvalidResetToken            = errors.New("invalid reset token")
	ErrInvalidToken                 = errors.New("invalid token")
	ErrInternal                     = errors.New("internal error")
	ErrEngineNotReady               = errors.New("engine not initialized")
	ErrInvalidRouteMode             = errors.New("invalid route validation mode")
)

// Error is the structured failure returned by every Engine flow.
//
// errors.Is matches both the condition sentinel (for example
// [ErrEmailExists]) and, for internal failures, the collaborator error that
// caused it. Message never carries the cause.
type Error struct {
	Kind    Kind
	Code    Code
	Message string

	// Fields maps request fields to validation messages.
	Fields map[string]string
	// Details itemizes policy failures.
	Details []string
	// ResetTime is set for rate-limited failures.
	ResetTime time.Time
	// RemainingAttempts is set for verification code mismatches.
	RemainingAttempts int

	sentinel error
	cause    error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e == nil {
		return nil
	}
	out := make([]error, 0, 2)
	if e.sentinel != nil {
		out = append(out, e.sentinel)
	}
	if e.cause != nil {
		out = append(out, e.cause)
	}
	return out
}

func newError(kind Kind, code Code, sentinel error, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, sentinel: sentinel}
}

func internalError(cause error) *Error {
	return &Error{
		Kind:     KindInternal,
		Code:     CodeInternal,
		Message:  "internal error",
		sentinel: ErrInternal,
		cause:    cause,
	}
}

func validationError(fields map[string]string) *Error {
	e := newError(KindValidation, CodeValidation, ErrValidation, "invalid request")
	e.Fields = fields
	return e
}

func invalidCredentials() *Error {
	// Same message for unknown email and wrong password.
	return newError(KindAuthentication, CodeInvalidCredentials, ErrInvalidCredentials, "invalid email or password")
}

func rateLimited(reset time.Time) *Error {
	e := newError(KindRateLimited, CodeRateLimited, ErrRateLimited, "too many attempts, try again later")
	e.ResetTime = reset
	return e
}

// KindOf returns the Kind of err, or KindInternal when err is not an
// [*Error].
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the Code of err, or CodeInternal when err is not an
// [*Error]. A nil err yields the empty code.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
